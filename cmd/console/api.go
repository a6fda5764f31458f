package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"github.com/AshramC/YXZX-ARG/internal/bridge"
)

func testConnection(client *http.Client, baseURL string) bool {
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

func listLanguages(client *http.Client, baseURL string) ([]string, error) {
	resp, err := client.Get(baseURL + "/v1/content/languages")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var body struct {
		Languages []string `json:"languages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.Languages, nil
}

// fetchSave returns the raw JSON of a save scope
func fetchSave(client *http.Client, baseURL, scope string) (string, error) {
	resp, err := client.Get(fmt.Sprintf("%s/v1/saves/%s", baseURL, url.PathEscape(scope)))
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var errorResp ErrorResponse
		if err := json.Unmarshal(body, &errorResp); err != nil {
			return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
		}
		return "", fmt.Errorf("failed to get save: %s", errorResp.Error)
	}
	return string(body), nil
}

// session is the campus WebSocket as seen from the terminal
type session struct {
	ws       *websocket.Conn
	writeMu  sync.Mutex
	messages chan bridge.Message
}

type serverMsg struct {
	msg bridge.Message
}

type sessionClosedMsg struct {
	err error
}

func dialCampus(baseURL, lang string, reset, localEnding bool) (*session, error) {
	u := strings.Replace(baseURL, "http", "ws", 1) + "/ws/campus?lang=" + url.QueryEscape(lang)
	if reset {
		u += "&reset=1"
	}
	if localEnding {
		u += "&cinematic=local"
	}
	ws, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open campus session: %w", err)
	}
	s := &session{ws: ws, messages: make(chan bridge.Message, 16)}
	go s.readLoop()
	return s, nil
}

func (s *session) readLoop() {
	defer close(s.messages)
	for {
		var msg bridge.Message
		if err := s.ws.ReadJSON(&msg); err != nil {
			return
		}
		s.messages <- msg
	}
}

// next waits for the following server message
func (s *session) next() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-s.messages
		if !ok {
			return sessionClosedMsg{}
		}
		return serverMsg{msg}
	}
}

func (s *session) send(msg bridge.Message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.ws.WriteJSON(msg)
}

func (s *session) reply(id string, payload any) tea.Cmd {
	return func() tea.Msg {
		raw, err := json.Marshal(payload)
		if err != nil {
			return sessionClosedMsg{err}
		}
		if err := s.send(bridge.Message{Type: bridge.TypeReply, ID: id, Payload: raw}); err != nil {
			return sessionClosedMsg{err}
		}
		return nil
	}
}

func (s *session) toggleSkip() tea.Cmd {
	return func() tea.Msg {
		if err := s.send(bridge.Message{Type: bridge.TypeSkip}); err != nil {
			return sessionClosedMsg{err}
		}
		return nil
	}
}

func (s *session) close() {
	_ = s.ws.Close()
}
