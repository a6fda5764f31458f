package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AshramC/YXZX-ARG/pkg/ending"
	"github.com/AshramC/YXZX-ARG/pkg/interpreter"
	"github.com/AshramC/YXZX-ARG/pkg/minigame"
	"github.com/AshramC/YXZX-ARG/pkg/script"
)

// pair starts a server that upgrades one connection and hands back the
// server-side Conn together with the browser-side socket.
func pair(t *testing.T) (*Conn, *websocket.Conn) {
	t.Helper()
	conns := make(chan *Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		c := NewConn(ws, nil)
		go func() { _ = c.ReadLoop() }()
		conns <- c
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	select {
	case c := <-conns:
		t.Cleanup(func() { c.Close() })
		return c, client
	case <-time.After(5 * time.Second):
		t.Fatal("server never accepted the connection")
		return nil, nil
	}
}

// answer reads one request from the browser side and replies with payload
func answer(t *testing.T, client *websocket.Conn, wantType string, payload any) Message {
	t.Helper()
	var req Message
	require.NoError(t, client.ReadJSON(&req))
	assert.Equal(t, wantType, req.Type)
	require.NotEmpty(t, req.ID)

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, client.WriteJSON(Message{Type: TypeReply, ID: req.ID, Payload: raw}))
	return req
}

func TestUIChoose(t *testing.T) {
	conn, client := pair(t)
	ui := NewUI(conn)

	done := make(chan struct{})
	var got int
	var err error
	go func() {
		defer close(done)
		got, err = ui.Choose(context.Background(), []string{"Library", "Rest"})
	}()

	req := answer(t, client, TypeChoice, choiceReply{Index: 1})
	var body choicePayload
	require.NoError(t, json.Unmarshal(req.Payload, &body))
	assert.Equal(t, []string{"Library", "Rest"}, body.Labels)

	<-done
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestUIChooseOutOfRange(t *testing.T) {
	conn, client := pair(t)
	ui := NewUI(conn)

	errs := make(chan error, 1)
	go func() {
		_, err := ui.Choose(context.Background(), []string{"only"})
		errs <- err
	}()
	answer(t, client, TypeChoice, choiceReply{Index: 3})
	assert.Error(t, <-errs)
}

func TestUIShowDialog(t *testing.T) {
	conn, client := pair(t)
	ui := NewUI(conn)

	errs := make(chan error, 1)
	go func() {
		errs <- ui.ShowDialog(context.Background(), interpreter.DialogLine{Speaker: "张晨", Text: "早"})
	}()
	req := answer(t, client, TypeDialog, struct{}{})
	var body dialogPayload
	require.NoError(t, json.Unmarshal(req.Payload, &body))
	assert.Equal(t, "张晨", body.Speaker)
	assert.Equal(t, "早", body.Text)
	assert.NoError(t, <-errs)
}

func TestMiniGamesResult(t *testing.T) {
	conn, client := pair(t)
	host := NewMiniGames(conn)

	type played struct {
		res minigame.Result
		err error
	}
	out := make(chan played, 1)
	go func() {
		res, err := host.Play(context.Background(), "wire_puzzle", map[string]any{"level": 2})
		out <- played{res, err}
	}()
	answer(t, client, TypeMiniGame, minigame.Result{Success: true})

	p := <-out
	require.NoError(t, p.err)
	assert.True(t, p.res.Success)
}

func TestMiniGamesDisconnectIsUnavailable(t *testing.T) {
	conn, client := pair(t)
	host := NewMiniGames(conn)

	errs := make(chan error, 1)
	go func() {
		_, err := host.Play(context.Background(), "wire_puzzle", nil)
		errs <- err
	}()

	var req Message
	require.NoError(t, client.ReadJSON(&req))
	client.Close()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, minigame.ErrUnavailable)
	case <-time.After(5 * time.Second):
		t.Fatal("Play did not return after disconnect")
	}
}

func TestCinematicDefaultsToSelection(t *testing.T) {
	tests := []struct {
		name  string
		reply endingReply
		want  string
	}{
		{name: "browser tag", reply: endingReply{Outcome: "perfect"}, want: "perfect"},
		{name: "empty reply", reply: endingReply{}, want: "good"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, client := pair(t)
			cin := NewCinematic(conn)

			out := make(chan string, 1)
			go func() {
				tag, err := cin.Present(context.Background(), ending.Selection{Outcome: ending.OutcomeGood})
				assert.NoError(t, err)
				out <- tag
			}()
			answer(t, client, TypeEnding, tt.reply)
			assert.Equal(t, tt.want, <-out)
		})
	}
}

func TestRequestHonorsContext(t *testing.T) {
	conn, client := pair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	go func() {
		var req Message
		_ = client.ReadJSON(&req)
	}()
	err := conn.Request(ctx, TypeAnnounce, announcePayload{Text: "DAY 1"}, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInboundRouting(t *testing.T) {
	conn, client := pair(t)
	require.NoError(t, client.WriteJSON(Message{Type: TypeCommand, Payload: json.RawMessage(`{"type":"move"}`)}))
	require.NoError(t, client.WriteJSON(Message{Type: TypeReply, ID: "nobody-waiting"}))
	require.NoError(t, client.WriteJSON(Message{Type: TypeSkip}))

	var got []string
	for len(got) < 2 {
		select {
		case msg := <-conn.Inbound():
			got = append(got, msg.Type)
		case <-time.After(5 * time.Second):
			t.Fatal("inbound messages not delivered")
		}
	}
	assert.Equal(t, []string{TypeCommand, TypeSkip}, got)
}

func TestSendAfterClose(t *testing.T) {
	conn, _ := pair(t)
	require.NoError(t, conn.Close())
	assert.ErrorIs(t, conn.Send(TypeEvent, map[string]string{"a": "b"}), ErrClosed)
	<-conn.Done()
}

func TestStageMirrorsCommands(t *testing.T) {
	conn, client := pair(t)
	stage := NewStage(conn, 0, nil)

	cmd := script.Stage{Cmd: "move_to", Args: map[string]any{"target": "chen", "duration": float64(800)}}
	require.NoError(t, stage.Perform(context.Background(), cmd))

	var msg Message
	require.NoError(t, client.ReadJSON(&msg))
	assert.Equal(t, TypeStage, msg.Type)
	assert.Empty(t, msg.ID)

	var got stagePayload
	require.NoError(t, json.Unmarshal(msg.Payload, &got))
	assert.Equal(t, "move_to", got.Cmd)
	assert.Equal(t, "chen", got.Args["target"])
}
