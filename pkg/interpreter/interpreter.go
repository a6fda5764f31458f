// Package interpreter executes narrative scripts against a state store.
package interpreter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AshramC/YXZX-ARG/pkg/conditionals"
	"github.com/AshramC/YXZX-ARG/pkg/i18n"
	"github.com/AshramC/YXZX-ARG/pkg/minigame"
	"github.com/AshramC/YXZX-ARG/pkg/script"
	"github.com/AshramC/YXZX-ARG/pkg/state"
)

// Status tells the caller whether time may advance after a script
type Status int

const (
	Continue Status = iota
	Stopped
)

func (s Status) String() string {
	if s == Stopped {
		return "stopped"
	}
	return "continue"
}

// Stop reasons
const (
	ReasonEndEvent = "end_event"
	ReasonEnding   = "ending"
	ReasonEndShow  = "end_show"
	ReasonCanceled = "canceled"
)

// Outcome is the result of executing a script
type Outcome struct {
	Status Status
	Reason string
}

var (
	continued = Outcome{Status: Continue}
	canceled  = Outcome{Status: Stopped, Reason: ReasonCanceled}
)

// DialogLine is a resolved line ready for display
type DialogLine struct {
	Speaker string
	Text    string
	Instant bool // skip mode: show at once and auto-advance
}

// UI presents dialog and choices and blocks until the player responds
type UI interface {
	ShowDialog(ctx context.Context, line DialogLine) error
	// Choose returns the index of the picked label
	Choose(ctx context.Context, labels []string) (int, error)
}

// Stage renders presentation commands. Implementations must be safe for
// concurrent use since parallel and background actions share it.
type Stage interface {
	Perform(ctx context.Context, cmd script.Stage) error
}

// BadgeSink persists badges that outlive a playthrough
type BadgeSink interface {
	SetBadge(ctx context.Context, key string) error
}

// EndingTrigger runs the ending sequence when a script reaches play_ending
type EndingTrigger func(ctx context.Context) error

// Interpreter walks script trees. A single Interpreter may run several
// presentation scripts concurrently; story scripts run one at a time.
type Interpreter struct {
	store    *state.Store
	ui       UI
	games    minigame.Host
	stage    Stage
	badges   BadgeSink
	onEnding EndingTrigger
	skip     *SkipMode
	resolver *i18n.Resolver
	lang     string
	speakers map[string]i18n.Text
	logger   *slog.Logger

	background sync.WaitGroup

	mu          sync.Mutex
	showOutcome string
}

// Option configures an Interpreter
type Option func(*Interpreter)

// WithMiniGames sets the mini-game host
func WithMiniGames(h minigame.Host) Option {
	return func(in *Interpreter) { in.games = h }
}

// WithStage sets the renderer for presentation commands
func WithStage(s Stage) Option {
	return func(in *Interpreter) { in.stage = s }
}

// WithBadgeSink sets where global badges are written
func WithBadgeSink(b BadgeSink) Option {
	return func(in *Interpreter) { in.badges = b }
}

// WithEndingTrigger sets the callback for play_ending
func WithEndingTrigger(fn EndingTrigger) Option {
	return func(in *Interpreter) { in.onEnding = fn }
}

// WithSkipMode shares a skip mode switch with the front-end
func WithSkipMode(s *SkipMode) Option {
	return func(in *Interpreter) { in.skip = s }
}

// WithLanguage sets the resolver, display language and speaker name table
func WithLanguage(r *i18n.Resolver, lang string, speakers map[string]i18n.Text) Option {
	return func(in *Interpreter) {
		in.resolver = r
		in.lang = lang
		in.speakers = speakers
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(in *Interpreter) { in.logger = l }
}

// New creates an interpreter bound to store and ui
func New(store *state.Store, ui UI, opts ...Option) *Interpreter {
	in := &Interpreter{
		store:    store,
		ui:       ui,
		games:    minigame.Unavailable{},
		skip:     &SkipMode{},
		resolver: i18n.NewResolver("zh-CN"),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Store returns the state store the interpreter mutates
func (in *Interpreter) Store() *state.Store {
	return in.store
}

// SkipMode returns the skip mode switch
func (in *Interpreter) SkipMode() *SkipMode {
	return in.skip
}

// Execute runs root from the top. Labels referenced anywhere inside root are
// resolved against the whole of root.
func (in *Interpreter) Execute(ctx context.Context, root script.Script) (Outcome, error) {
	e := &execution{in: in, root: root}
	return e.run(ctx, root)
}

// Wait blocks until background loop bodies started by presentation scripts
// have finished
func (in *Interpreter) Wait() {
	in.background.Wait()
}

// ShowOutcome returns the outcome tag recorded by the last end_show
func (in *Interpreter) ShowOutcome() string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.showOutcome
}

// ResetShow forgets the outcome of a previous show
func (in *Interpreter) ResetShow() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.showOutcome = ""
}

type execution struct {
	in   *Interpreter
	root script.Script
}

func (e *execution) run(ctx context.Context, lines script.Script) (Outcome, error) {
	in := e.in
	for _, line := range lines {
		if err := ctx.Err(); err != nil {
			return canceled, err
		}

		switch ins := line.(type) {
		case script.Dialog:
			if err := in.ui.ShowDialog(ctx, in.dialogLine(ins)); err != nil {
				return canceled, fmt.Errorf("dialog: %w", err)
			}

		case script.Choice:
			in.skip.Disable()
			opt, ok, err := in.choose(ctx, ins)
			if err != nil {
				return canceled, err
			}
			if !ok {
				continue
			}
			in.store.AddScore(opt.Score)
			if err := in.apply(ctx, opt.Effect); err != nil {
				return canceled, err
			}
			if err := in.apply(ctx, opt.Reward); err != nil {
				return canceled, err
			}
			if len(opt.Next) > 0 {
				return e.run(ctx, opt.Next)
			}
			if opt.Jump != "" {
				return e.jump(ctx, opt.Jump)
			}

		case script.CheckScore:
			threshold := ins.Threshold
			if threshold == 0 {
				threshold = 1
			}
			if in.store.Score() >= threshold {
				if ins.Pass != "" {
					return e.jump(ctx, ins.Pass)
				}
			} else if ins.Fail != "" {
				return e.jump(ctx, ins.Fail)
			}
			// A score check always closes the current sequence
			return continued, nil

		case script.Reward:
			if err := in.apply(ctx, &ins.Effect); err != nil {
				return canceled, err
			}

		case script.Jump:
			return e.jump(ctx, ins.Target)

		case script.CheckFlag:
			target := ins.No
			if in.store.HasFlag(ins.Flag) {
				target = ins.Yes
			}
			if target != "" {
				return e.jump(ctx, target)
			}

		case script.MiniGame:
			out, done, err := e.miniGame(ctx, ins)
			if err != nil || done {
				return out, err
			}

		case script.PlayEnding:
			if in.onEnding != nil {
				if err := in.onEnding(ctx); err != nil {
					return Outcome{Status: Stopped, Reason: ReasonEnding}, fmt.Errorf("ending: %w", err)
				}
			}
			return Outcome{Status: Stopped, Reason: ReasonEnding}, nil

		case script.EndEvent:
			return Outcome{Status: Stopped, Reason: ReasonEndEvent}, nil

		case script.Block:
			// Entered only by jumps

		case script.Wait:
			select {
			case <-ctx.Done():
				return canceled, ctx.Err()
			case <-time.After(ins.Duration):
			}

		case script.Parallel:
			out, err := e.parallel(ctx, ins)
			if err != nil || out.Status == Stopped {
				return out, err
			}

		case script.Loop:
			if err := e.loop(ctx, ins); err != nil {
				return canceled, err
			}

		case script.Stage:
			if in.stage == nil {
				in.logger.Debug("No stage attached, skipping command", "cmd", ins.Cmd)
				continue
			}
			if err := in.stage.Perform(ctx, ins); err != nil {
				if ctx.Err() != nil {
					return canceled, ctx.Err()
				}
				in.logger.Warn("Stage command failed", "cmd", ins.Cmd, "error", err)
			}

		case script.EndShow:
			outcome := ins.Outcome
			if outcome == "" {
				outcome = "normal"
			}
			in.mu.Lock()
			in.showOutcome = outcome
			in.mu.Unlock()
			return Outcome{Status: Stopped, Reason: ReasonEndShow}, nil
		}
	}
	return continued, nil
}

// jump is a tail call: the caller returns whatever the target returns.
// An unknown label ends execution.
func (e *execution) jump(ctx context.Context, label string) (Outcome, error) {
	target, ok := e.root.FindLabel(label)
	if !ok {
		e.in.logger.Warn("Jump target not found", "label", label)
		return continued, nil
	}
	return e.run(ctx, target)
}

// miniGame reports done when the scan must stop after the game
func (e *execution) miniGame(ctx context.Context, ins script.MiniGame) (Outcome, bool, error) {
	in := e.in
	in.skip.Disable()

	res, err := in.games.Play(ctx, ins.GameID, ins.Config)
	if err != nil {
		if ctx.Err() != nil {
			return canceled, true, ctx.Err()
		}
		if !errors.Is(err, minigame.ErrUnavailable) {
			in.logger.Error("Mini-game failed", "game_id", ins.GameID, "error", err)
		} else {
			in.logger.Warn("Mini-game host unavailable", "game_id", ins.GameID)
		}
		res = minigame.Result{Success: false}
	}

	in.logger.Info("Mini-game finished", "game_id", ins.GameID, "success", res.Success)
	if res.Success {
		if err := in.apply(ctx, ins.Reward); err != nil {
			return canceled, true, err
		}
		if ins.Pass != "" {
			out, err := e.jump(ctx, ins.Pass)
			return out, true, err
		}
	} else if ins.Fail != "" {
		out, err := e.jump(ctx, ins.Fail)
		return out, true, err
	}
	if ins.Pass != "" || ins.Fail != "" {
		return continued, true, nil
	}
	return continued, false, nil
}

func (e *execution) parallel(ctx context.Context, ins script.Parallel) (Outcome, error) {
	g, gctx := errgroup.WithContext(ctx)
	outcomes := make([]Outcome, len(ins.Actions))
	for i, action := range ins.Actions {
		g.Go(func() error {
			out, err := e.run(gctx, script.Script{action})
			outcomes[i] = out
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return canceled, err
	}
	for _, out := range outcomes {
		if out.Status == Stopped {
			return out, nil
		}
	}
	return continued, nil
}

// loop blocks for Count intervals while the body runs in the background
func (e *execution) loop(ctx context.Context, ins script.Loop) error {
	for i := 0; i < ins.Count; i++ {
		e.in.background.Add(1)
		go func() {
			defer e.in.background.Done()
			if _, err := e.run(ctx, ins.Script); err != nil && ctx.Err() == nil {
				e.in.logger.Warn("Background loop body failed", "error", err)
			}
		}()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(ins.Interval):
		}
	}
	return nil
}

// choose offers the visible options and returns the picked one.
// ok is false when no option is visible.
func (in *Interpreter) choose(ctx context.Context, c script.Choice) (script.Option, bool, error) {
	reqs := make([]*conditionals.Requirement, len(c.Options))
	for i, opt := range c.Options {
		reqs[i] = opt.Requires
	}
	visible := conditionals.Visible(reqs, in.store)
	if len(visible) == 0 {
		in.logger.Warn("Choice has no visible options", "options", len(c.Options))
		return script.Option{}, false, nil
	}

	labels := make([]string, len(visible))
	for i, idx := range visible {
		labels[i] = in.resolver.Resolve(c.Options[idx].Text, in.lang)
	}
	picked, err := in.ui.Choose(ctx, labels)
	if err != nil {
		return script.Option{}, false, fmt.Errorf("choice: %w", err)
	}
	if picked < 0 || picked >= len(visible) {
		return script.Option{}, false, fmt.Errorf("choice: index %d out of range", picked)
	}
	return c.Options[visible[picked]], true, nil
}

func (in *Interpreter) apply(ctx context.Context, eff *state.Effect) error {
	if eff.IsEmpty() {
		return nil
	}
	in.store.Apply(eff)
	if eff.GlobalBadge != "" && in.badges != nil {
		if err := in.badges.SetBadge(ctx, eff.GlobalBadge); err != nil {
			return fmt.Errorf("badge %s: %w", eff.GlobalBadge, err)
		}
	}
	return nil
}

func (in *Interpreter) dialogLine(d script.Dialog) DialogLine {
	speaker := d.Speaker
	if name, ok := in.speakers[speaker]; ok {
		speaker = in.resolver.Resolve(name, in.lang)
	}
	return DialogLine{
		Speaker: speaker,
		Text:    in.resolver.Resolve(d.Text, in.lang),
		Instant: in.skip.Active(),
	}
}
