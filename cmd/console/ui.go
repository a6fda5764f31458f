package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/AshramC/YXZX-ARG/internal/bridge"
)

const PlaceHolderText = "Enter to continue, a number to choose, /help for commands"

// ConsoleUI is the BubbleTea model that plays the campus story.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config       *ConsoleConfig
	client       *http.Client
	sess         *session
	chatViewport viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int
	err          error

	// Language selection state
	showLangModal bool
	langs         []string
	selectedLang  int
	loadingLangs  bool
	connecting    bool
	lang          string

	// Quit confirmation state
	showQuitModal bool

	transcript []string
	pending    *bridge.Message
	choices    []string
	skipActive bool
	status     string
	result     string
}

type languagesLoadedMsg struct {
	langs []string
	err   error
}

type sessionOpenedMsg struct {
	sess *session
	err  error
}

type exportedMsg struct {
	err error
}

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	speakerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	narratorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	modalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	modalSelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("205")).
				Bold(true)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

func NewConsoleUI(cfg *ConsoleConfig, client *http.Client) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 200
	ta.SetWidth(50)
	ta.SetHeight(1)
	ta.ShowLineNumbers = false

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	return ConsoleUI{
		config:        cfg,
		client:        client,
		textarea:      ta,
		chatViewport:  chatVp,
		metaViewport:  metaVp,
		showLangModal: true,
		loadingLangs:  true,
		status:        "Connecting",
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return m.loadLanguages()
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showLangModal {
		return m.updateLangModal(msg)
	}
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.chatViewport, vpCmd = m.chatViewport.Update(msg)
		return m, vpCmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.ready = true
		m.render()

	case serverMsg:
		cmd := m.handleServer(msg.msg)
		m.render()
		return m, tea.Batch(cmd, m.sess.next())

	case sessionClosedMsg:
		m.pending = nil
		if msg.err != nil {
			m.err = msg.err
			m.appendLine(errorStyle.Render("Connection lost: " + msg.err.Error()))
		}
		if m.result == "" {
			m.status = "Disconnected"
		}
		m.render()
		return m, nil

	case exportedMsg:
		if msg.err != nil {
			m.appendLine(errorStyle.Render("Export failed: " + msg.err.Error()))
		} else {
			m.appendLine(promptStyle.Render("Campus save copied to clipboard."))
		}
		m.render()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyEnter:
			input := strings.TrimSpace(m.textarea.Value())
			m.textarea.Reset()
			if strings.HasPrefix(input, "/") {
				return m.handleCommand(input)
			}
			cmd := m.answer(input)
			m.render()
			return m, cmd
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd)
}

// handleServer records a server message. Requests that need the player
// become pending; the rest are answered at once.
func (m *ConsoleUI) handleServer(msg bridge.Message) tea.Cmd {
	width := m.chatWidth()
	switch msg.Type {
	case bridge.TypeDialog:
		var line struct {
			Speaker string `json:"speaker"`
			Text    string `json:"text"`
			Instant bool   `json:"instant"`
		}
		_ = json.Unmarshal(msg.Payload, &line)
		m.appendLine(formatLine(line.Speaker, line.Text, width))
		if line.Instant {
			return m.sess.reply(msg.ID, struct{}{})
		}
		m.await(msg, "Enter to continue")

	case bridge.TypeAnnounce:
		var a struct {
			Text string `json:"text"`
		}
		_ = json.Unmarshal(msg.Payload, &a)
		m.appendLine(titleStyle.Render("━━ " + a.Text + " ━━"))
		m.await(msg, "Enter to continue")

	case bridge.TypeChoice:
		var c struct {
			Labels []string `json:"labels"`
		}
		_ = json.Unmarshal(msg.Payload, &c)
		m.choices = c.Labels
		var b strings.Builder
		for i, label := range c.Labels {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, label)
		}
		m.appendLine(strings.TrimRight(b.String(), "\n"))
		m.await(msg, fmt.Sprintf("Choose 1-%d", len(c.Labels)))

	case bridge.TypeMiniGame:
		var g struct {
			GameID string `json:"gameId"`
		}
		_ = json.Unmarshal(msg.Payload, &g)
		m.appendLine(loadingStyle.Render("MINIGAME: " + g.GameID))
		m.await(msg, "y = complete, n = abort")

	case bridge.TypeEnding:
		var sel struct {
			Outcome  string   `json:"outcome"`
			Playlist []string `json:"playlist"`
		}
		_ = json.Unmarshal(msg.Payload, &sel)
		m.appendLine(titleStyle.Render("ENDING") + promptStyle.Render(" "+strings.Join(sel.Playlist, " → ")))
		return m.sess.reply(msg.ID, struct{}{})

	case bridge.TypeStage:
		var st struct {
			Cmd  string         `json:"cmd"`
			Args map[string]any `json:"args"`
		}
		_ = json.Unmarshal(msg.Payload, &st)
		line := "* " + st.Cmd
		if target, ok := st.Args["target"].(string); ok {
			line += " " + target
		}
		m.appendLine(promptStyle.Render(line))

	case bridge.TypeSkip:
		var s struct {
			Active bool `json:"active"`
		}
		_ = json.Unmarshal(msg.Payload, &s)
		m.skipActive = s.Active

	case bridge.TypeResult:
		var res struct {
			DemoEnd bool   `json:"demoEnd"`
			Ended   bool   `json:"ended"`
			Outcome string `json:"outcome"`
		}
		_ = json.Unmarshal(msg.Payload, &res)
		switch {
		case res.Ended:
			m.result = "Ending: " + res.Outcome
		case res.DemoEnd:
			m.result = "Demo complete"
		default:
			m.result = "Session over"
		}
		m.status = m.result
		m.appendLine(titleStyle.Render(m.result))

	case bridge.TypeError:
		m.appendLine(errorStyle.Render("Error: " + string(msg.Payload)))
	}
	return nil
}

func (m *ConsoleUI) await(msg bridge.Message, status string) {
	m.pending = &msg
	m.status = status
}

// answer replies to the pending request with the player's input
func (m *ConsoleUI) answer(input string) tea.Cmd {
	if m.pending == nil || m.sess == nil {
		return nil
	}
	req := *m.pending

	switch req.Type {
	case bridge.TypeDialog, bridge.TypeAnnounce:
		m.pending = nil
		m.status = "…"
		return m.sess.reply(req.ID, struct{}{})

	case bridge.TypeChoice:
		n, err := strconv.Atoi(input)
		if err != nil || n < 1 || n > len(m.choices) {
			m.status = fmt.Sprintf("Choose 1-%d", len(m.choices))
			return nil
		}
		m.appendLine(userStyle.Render("> " + m.choices[n-1]))
		m.pending = nil
		m.status = "…"
		return m.sess.reply(req.ID, map[string]int{"index": n - 1})

	case bridge.TypeMiniGame:
		var success bool
		switch strings.ToLower(input) {
		case "y":
			success = true
		case "n":
		default:
			return nil
		}
		m.pending = nil
		m.status = "…"
		return m.sess.reply(req.ID, map[string]bool{"success": success})
	}
	return nil
}

func (m ConsoleUI) handleCommand(input string) (tea.Model, tea.Cmd) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "/help":
		m.appendLine(titleStyle.Render("Help:") + `
• Enter - continue dialog
• 1..n - pick a menu option
• /skip - toggle skip mode (after the first clear)
• /export - copy the campus save to the clipboard
• Ctrl+C - quit`)
	case "/skip":
		if m.sess != nil {
			m.render()
			return m, m.sess.toggleSkip()
		}
	case "/export":
		return m, m.exportSave()
	case "/quit":
		m.showQuitModal = true
	}
	m.render()
	return m, nil
}

func (m ConsoleUI) exportSave() tea.Cmd {
	return func() tea.Msg {
		data, err := fetchSave(m.client, m.config.APIBaseURL, "campus")
		if err != nil {
			return exportedMsg{err}
		}
		return exportedMsg{clipboard.WriteAll(data)}
	}
}

func (m *ConsoleUI) appendLine(s string) {
	m.transcript = append(m.transcript, s)
}

func (m ConsoleUI) chatWidth() int {
	w := m.chatViewport.Width - 6
	if w < 20 {
		w = 20
	}
	return w
}

func (m *ConsoleUI) layout() {
	chatWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - chatWidth - 6
	m.chatViewport.Width = chatWidth - 2
	m.chatViewport.Height = m.height - 5
	m.metaViewport.Width = metaWidth - 2
	m.metaViewport.Height = m.height - 4
	m.textarea.SetWidth(chatWidth - 4)
}

// render rebuilds both panels
func (m *ConsoleUI) render() {
	var content strings.Builder
	content.WriteString(titleStyle.Render("YXZX") + "\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", m.chatWidth())) + "\n\n")
	for _, line := range m.transcript {
		content.WriteString(line + "\n\n")
	}
	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
	m.metaViewport.SetContent(m.writeMetadata())
}

func (m ConsoleUI) writeMetadata() string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("SESSION") + "\n\n")
	content.WriteString("Language:\n" + m.lang + "\n\n")

	skip := "off"
	if m.skipActive {
		skip = "on"
	}
	content.WriteString("Skip mode:\n" + skip + "\n\n")
	content.WriteString("Status:\n" + m.status + "\n\n")

	content.WriteString("Commands:\n")
	content.WriteString("• Ctrl+C: Quit\n")
	content.WriteString("• /help: Help\n")
	content.WriteString("• /skip: Skip\n")
	content.WriteString("• /export: Export\n")
	return content.String()
}

func formatLine(speaker, text string, width int) string {
	if speaker == "" {
		return narratorStyle.Render(wordwrap.String(text, width))
	}
	prefix := speaker + ": "
	wrapped := wordwrap.String(text, width-lipgloss.Width(prefix))
	return speakerStyle.Render(prefix) + wrapped
}

func (m ConsoleUI) loadLanguages() tea.Cmd {
	return func() tea.Msg {
		langs, err := listLanguages(m.client, m.config.APIBaseURL)
		return languagesLoadedMsg{langs, err}
	}
}

func (m ConsoleUI) openSession(lang string) tea.Cmd {
	return func() tea.Msg {
		s, err := dialCampus(m.config.APIBaseURL, lang, m.config.Reset, m.config.LocalEnding)
		return sessionOpenedMsg{s, err}
	}
}

func (m ConsoleUI) updateLangModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case languagesLoadedMsg:
		m.loadingLangs = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.langs = msg.langs
		}

	case sessionOpenedMsg:
		m.connecting = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.sess = msg.sess
		m.showLangModal = false
		m.status = "Waiting for server"
		if m.width > 0 && m.height > 0 {
			m.layout()
			m.ready = true
		}
		m.render()
		m.textarea.Focus()
		return m, tea.Batch(textarea.Blink, m.sess.next())

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		}
		if m.loadingLangs || m.connecting || m.err != nil {
			return m, nil
		}
		switch msg.Type {
		case tea.KeyUp:
			if m.selectedLang > 0 {
				m.selectedLang--
			}
		case tea.KeyDown:
			if m.selectedLang < len(m.langs)-1 {
				m.selectedLang++
			}
		case tea.KeyEnter:
			if len(m.langs) > 0 {
				m.lang = m.langs[m.selectedLang]
				m.connecting = true
				return m, m.openSession(m.lang)
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m.quit()
		default:
			switch msg.String() {
			case "y", "Y":
				return m.quit()
			case "n", "N":
				m.showQuitModal = false
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) quit() (tea.Model, tea.Cmd) {
	if m.sess != nil {
		m.sess.close()
	}
	return m, tea.Quit
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit Game?"))
	content.WriteString("\n\n")
	content.WriteString("Progress is autosaved at every time slot.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderLangModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder

	switch {
	case m.loadingLangs:
		content.WriteString(modalTitleStyle.Render("Loading Languages..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("Please wait while we fetch installed content..."))
	case m.err != nil:
		content.WriteString(modalTitleStyle.Render("Error"))
		content.WriteString("\n\n")
		content.WriteString(errorStyle.Render(m.err.Error()))
		content.WriteString("\n\n")
		content.WriteString("Press Ctrl+C to exit")
	case m.connecting:
		content.WriteString(modalTitleStyle.Render("Connecting..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("Opening the campus session..."))
	default:
		content.WriteString(modalTitleStyle.Render("Select a Language"))
		content.WriteString("\n\n")
		for i, lang := range m.langs {
			if i == m.selectedLang {
				content.WriteString(modalSelectedItemStyle.Render(fmt.Sprintf("▶ %s", lang)))
			} else {
				content.WriteString(modalItemStyle.Render(fmt.Sprintf("  %s", lang)))
			}
			content.WriteString("\n")
		}
		content.WriteString("\n")
		content.WriteString(promptStyle.Render("Use ↑/↓ to navigate, Enter to select, Ctrl+C to exit"))
	}

	modal := modalStyle.Width(60).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showLangModal {
		return m.renderLangModal()
	}
	if m.showQuitModal {
		return m.renderQuitModal()
	}
	if !m.ready {
		return "\n  Initializing..."
	}

	chatWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - chatWidth - 6

	chatPanel := chatPanelStyle.Width(chatWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.chatViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", chatWidth-4)),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, chatPanel, metaPanel)
}
