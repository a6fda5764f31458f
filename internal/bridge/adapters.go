package bridge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/AshramC/YXZX-ARG/internal/services/events"
	"github.com/AshramC/YXZX-ARG/pkg/campus"
	"github.com/AshramC/YXZX-ARG/pkg/ending"
	"github.com/AshramC/YXZX-ARG/pkg/interpreter"
	"github.com/AshramC/YXZX-ARG/pkg/minigame"
	"github.com/AshramC/YXZX-ARG/pkg/script"
)

type dialogPayload struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	Instant bool   `json:"instant,omitempty"`
}

type choicePayload struct {
	Labels []string `json:"labels"`
}

type choiceReply struct {
	Index int `json:"index"`
}

type announcePayload struct {
	Text string `json:"text"`
}

type miniGamePayload struct {
	GameID string         `json:"gameId"`
	Config map[string]any `json:"config,omitempty"`
}

type stagePayload struct {
	Cmd  string         `json:"cmd"`
	Args map[string]any `json:"args,omitempty"`
}

type endingReply struct {
	Outcome string `json:"outcome"`
}

// UI presents campus dialog, menus and cards in the browser
type UI struct {
	conn *Conn
}

// Ensure UI implements campus.UI
var _ campus.UI = (*UI)(nil)

func NewUI(c *Conn) *UI { return &UI{conn: c} }

// ShowDialog waits for the player to click through the line
func (u *UI) ShowDialog(ctx context.Context, line interpreter.DialogLine) error {
	return u.conn.Request(ctx, TypeDialog, dialogPayload{Speaker: line.Speaker, Text: line.Text, Instant: line.Instant}, nil)
}

func (u *UI) Choose(ctx context.Context, labels []string) (int, error) {
	var reply choiceReply
	if err := u.conn.Request(ctx, TypeChoice, choicePayload{Labels: labels}, &reply); err != nil {
		return 0, err
	}
	if reply.Index < 0 || reply.Index >= len(labels) {
		return 0, fmt.Errorf("choice index %d out of range", reply.Index)
	}
	return reply.Index, nil
}

func (u *UI) Announce(ctx context.Context, text string) error {
	return u.conn.Request(ctx, TypeAnnounce, announcePayload{Text: text}, nil)
}

// MiniGames runs mini-games in the browser. A dropped connection is
// reported as an unavailable host, which callers count as a failure.
type MiniGames struct {
	conn *Conn
}

// Ensure MiniGames implements minigame.Host
var _ minigame.Host = (*MiniGames)(nil)

func NewMiniGames(c *Conn) *MiniGames { return &MiniGames{conn: c} }

func (m *MiniGames) Play(ctx context.Context, gameID string, config map[string]any) (minigame.Result, error) {
	var res minigame.Result
	if err := m.conn.Request(ctx, TypeMiniGame, miniGamePayload{GameID: gameID, Config: config}, &res); err != nil {
		return minigame.Result{}, fmt.Errorf("%w: %v", minigame.ErrUnavailable, err)
	}
	return res, nil
}

// Cinematic plays the ending show in the browser
type Cinematic struct {
	conn *Conn
}

// Ensure Cinematic implements ending.Cinematic
var _ ending.Cinematic = (*Cinematic)(nil)

func NewCinematic(c *Conn) *Cinematic { return &Cinematic{conn: c} }

func (c *Cinematic) Present(ctx context.Context, sel ending.Selection) (string, error) {
	var reply endingReply
	if err := c.conn.Request(ctx, TypeEnding, sel, &reply); err != nil {
		return "", err
	}
	if reply.Outcome == "" {
		return string(sel.Outcome), nil
	}
	return reply.Outcome, nil
}

// Publisher forwards session events to the browser
type Publisher struct {
	conn *Conn
}

// Ensure Publisher implements events.Publisher
var _ events.Publisher = (*Publisher)(nil)

func NewPublisher(c *Conn) *Publisher { return &Publisher{conn: c} }

func (p *Publisher) Publish(_ context.Context, _ uuid.UUID, ev events.Event) error {
	return p.conn.Send(TypeEvent, ev)
}

// NewStage plays ending show commands in server time and mirrors each one
// to the browser as a stage message. scale multiplies every beat.
func NewStage(c *Conn, scale float64, logger *slog.Logger) *ending.TimedStage {
	if logger == nil {
		logger = slog.Default()
	}
	stage := ending.NewTimedStage(func(cmd script.Stage) {
		if err := c.Send(TypeStage, stagePayload{Cmd: cmd.Cmd, Args: cmd.Args}); err != nil {
			logger.Debug("Stage command not delivered", "cmd", cmd.Cmd, "error", err)
		}
	}, logger)
	stage.Scale = scale
	return stage
}
