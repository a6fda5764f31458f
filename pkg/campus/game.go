// Package campus runs the day/slot schedule of the campus story: menus,
// events, the phone inbox and the hand-off to the ending.
package campus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AshramC/YXZX-ARG/pkg/content"
	"github.com/AshramC/YXZX-ARG/pkg/ending"
	"github.com/AshramC/YXZX-ARG/pkg/i18n"
	"github.com/AshramC/YXZX-ARG/pkg/interpreter"
	"github.com/AshramC/YXZX-ARG/pkg/minigame"
	"github.com/AshramC/YXZX-ARG/pkg/save"
	"github.com/AshramC/YXZX-ARG/pkg/state"
)

// Badges removed when the player resets the game
var resetBadges = []string{ending.BadgeWallSpecial, ending.BadgeWallPerformance}

// UI is the campus front-end
type UI interface {
	interpreter.UI
	// Announce shows a transition card such as a slot name or "DAY ENDED"
	Announce(ctx context.Context, text string) error
}

// Result tells why Run returned
type Result struct {
	DemoEnd bool
	Ended   bool
	Outcome ending.Outcome
}

// Game is one campus session. It is driven from a single goroutine.
type Game struct {
	content  content.Provider
	store    *state.Store
	ui       UI
	saves    *save.Manager
	games    minigame.Host
	director ending.Cinematic
	stage    interpreter.Stage
	skip     *interpreter.SkipMode
	resolver *i18n.Resolver
	logger   *slog.Logger

	inEnding bool
	outcome  ending.Outcome
}

// Option configures a Game
type Option func(*Game)

// WithSaves enables autosave, resume and global badges
func WithSaves(m *save.Manager) Option {
	return func(g *Game) { g.saves = m }
}

// WithMiniGames sets the mini-game host
func WithMiniGames(h minigame.Host) Option {
	return func(g *Game) { g.games = h }
}

// WithCinematic sets the ending presentation
func WithCinematic(c ending.Cinematic) Option {
	return func(g *Game) { g.director = c }
}

// WithLocalEnding plays the content's ending show in-process on stage
// instead of handing the selection to a Cinematic
func WithLocalEnding(stage interpreter.Stage) Option {
	return func(g *Game) { g.stage = stage }
}

// WithResolver sets the text resolver
func WithResolver(r *i18n.Resolver) Option {
	return func(g *Game) { g.resolver = r }
}

// WithSkipMode shares a skip switch with the front-end
func WithSkipMode(s *interpreter.SkipMode) Option {
	return func(g *Game) { g.skip = s }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(g *Game) { g.logger = l }
}

// New creates a game over provider. Call Boot before Run.
func New(provider content.Provider, ui UI, opts ...Option) (*Game, error) {
	if provider == nil || provider.Schedule() == nil {
		return nil, fmt.Errorf("campus schedule: %w", content.ErrContentMissing)
	}
	g := &Game{
		content:  provider,
		ui:       ui,
		games:    minigame.Unavailable{},
		skip:     &interpreter.SkipMode{},
		resolver: i18n.NewResolver("zh-CN"),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Store returns the live state
func (g *Game) Store() *state.Store { return g.store }

// SkipMode returns the skip switch
func (g *Game) SkipMode() *interpreter.SkipMode { return g.skip }

// Outcome returns the ending reached, if any
func (g *Game) Outcome() ending.Outcome { return g.outcome }

// Boot resumes the campus save or starts a new game. It reports whether a
// save was resumed.
func (g *Game) Boot(ctx context.Context) (bool, error) {
	if g.saves != nil && g.saves.HasBadge(ctx, ending.BadgeCleared) {
		g.skip.Unlock()
	}
	g.logger.Info("Booting campus", "lang", g.content.Language(), "skip_unlocked", g.skip.Unlocked())

	if g.saves != nil {
		if snap, ok := g.saves.Load(ctx, save.CampusScope); ok && snap.Campus != nil {
			g.store = snap.Campus
			day, slot := g.store.Clock()
			g.logger.Info("Found save file, resuming", "day", day, "slot", slot)
			return true, nil
		}
	}

	g.logger.Info("No save file found, starting new game")
	g.store = state.NewStore(g.content.Schedule().InitialDay())
	g.startDay(ctx, g.store.Day)
	return false, nil
}

// Reset clears the campus save and badges tied to it and starts over
func (g *Game) Reset(ctx context.Context) error {
	if g.saves != nil {
		if err := g.saves.Clear(ctx, save.CampusScope); err != nil {
			return err
		}
		for _, b := range resetBadges {
			if err := g.saves.ClearBadge(ctx, b); err != nil {
				return err
			}
		}
	}
	g.outcome = ""
	g.store = state.NewStore(g.content.Schedule().InitialDay())
	g.startDay(ctx, g.store.Day)
	return nil
}

// Run plays slots until the demo ends, an ending finishes, or ctx is done
func (g *Game) Run(ctx context.Context) (Result, error) {
	if g.store == nil {
		return Result{}, errors.New("game not booted")
	}
	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		res, done, err := g.step(ctx)
		if err != nil || done {
			return res, err
		}
	}
}

// step processes the current slot once
func (g *Game) step(ctx context.Context) (Result, bool, error) {
	slots := g.content.Schedule().TimeSlots
	day, idx := g.store.Clock()
	if idx >= len(slots) {
		return g.endDay(ctx)
	}

	slot := slots[idx]
	g.checkExpiration(day, slot.ID)
	auto := g.receive(content.TriggerID(day, slot.ID))

	label := g.resolver.Upper(g.text(slot.Label), g.content.Language())
	g.logger.Debug("Slot", "day", day, "slot", slot.ID)
	if err := g.ui.Announce(ctx, label); err != nil {
		return Result{}, false, err
	}

	if auto != nil && auto.Status == state.InboxUnread {
		g.logger.Debug("Auto-trigger detected", "contact", auto.Contact)
		if err := g.OpenThread(ctx, auto.ID); err != nil {
			return Result{}, false, err
		}
	}

	if slot.Passive() {
		g.advance(ctx)
		return Result{}, false, nil
	}

	for {
		items := g.menuWithPhone(day, slot.ID)
		labels := make([]string, len(items))
		for i, it := range items {
			labels[i] = it.Label
		}
		picked, err := g.ui.Choose(ctx, labels)
		if err != nil {
			return Result{}, false, err
		}
		if picked < 0 || picked >= len(items) {
			return Result{}, false, fmt.Errorf("menu: index %d out of range", picked)
		}

		item := items[picked]
		switch item.Kind {
		case ItemPhone:
			if err := g.phoneMenu(ctx); err != nil {
				return Result{}, false, err
			}
			continue
		case ItemAdvance:
			g.advance(ctx)
			return Result{}, false, nil
		}

		out, err := g.RunEvent(ctx, item.EventID)
		if err != nil {
			return Result{}, false, err
		}
		if out.Status == interpreter.Stopped && out.Reason == interpreter.ReasonEnding {
			g.logger.Info("Event triggered ending sequence, halting time flow")
			return Result{Ended: true, Outcome: g.outcome}, true, nil
		}
		// end_event stops the script but still advances the slot; only an
		// ending holds the clock
		g.advance(ctx)
		return Result{}, false, nil
	}
}

func (g *Game) startDay(ctx context.Context, day int) {
	g.store.StartDay(day)
	g.autosave(ctx)
}

func (g *Game) advance(ctx context.Context) {
	_, slot := g.store.Clock()
	g.store.SetSlot(slot + 1)
	g.autosave(ctx)
}

func (g *Game) endDay(ctx context.Context) (Result, bool, error) {
	if err := g.ui.Announce(ctx, g.tt("一天结束", "DAY ENDED")); err != nil {
		return Result{}, false, err
	}
	next := g.store.Day + 1
	if g.content.Schedule().HasDay(next) {
		g.startDay(ctx, next)
		return Result{}, false, nil
	}
	g.logger.Info("Demo end", "day", g.store.Day)
	if err := g.ui.Announce(ctx, g.tt("演示结束", "DEMO END")); err != nil {
		return Result{}, false, err
	}
	return Result{DemoEnd: true}, true, nil
}

func (g *Game) autosave(ctx context.Context) {
	if g.saves == nil {
		return
	}
	if err := g.saves.Save(ctx, save.CampusScope, save.Snapshot{Campus: g.store}); err != nil {
		g.logger.Error("Save failed", "error", err)
		return
	}
	day, slot := g.store.Clock()
	g.logger.Debug("Auto-saved", "day", day, "slot", slot)
}

// newInterpreter builds an interpreter over the live store for ui
func (g *Game) newInterpreter(ui interpreter.UI) *interpreter.Interpreter {
	opts := []interpreter.Option{
		interpreter.WithMiniGames(g.games),
		interpreter.WithSkipMode(g.skip),
		interpreter.WithEndingTrigger(g.triggerEnding),
		interpreter.WithLanguage(g.resolver, g.content.Language(), g.content.Speakers()),
		interpreter.WithLogger(g.logger),
	}
	if g.saves != nil {
		opts = append(opts, interpreter.WithBadgeSink(g.saves))
	}
	if g.stage != nil {
		opts = append(opts, interpreter.WithStage(g.stage))
	}
	return interpreter.New(g.store, ui, opts...)
}

func (g *Game) text(t i18n.Text) string {
	return g.resolver.Resolve(t, g.content.Language())
}

func (g *Game) tt(zh, en string) string {
	return g.text(i18n.Text{"zh-CN": zh, "en": en})
}

// speaker resolves a contact or speaker name through the speaker table
func (g *Game) speaker(name string) string {
	if t, ok := g.content.Speakers()[name]; ok {
		return g.text(t)
	}
	return name
}
