package campus

import (
	"context"
	"fmt"

	"github.com/AshramC/YXZX-ARG/pkg/ending"
	"github.com/AshramC/YXZX-ARG/pkg/state"
)

// triggerEnding plays the ending cinematic and the epilogue. It is wired as
// the interpreter's play_ending handler.
func (g *Game) triggerEnding(ctx context.Context) error {
	if g.inEnding {
		g.logger.Warn("Ending already running")
		return nil
	}
	g.inEnding = true
	defer func() { g.inEnding = false }()

	sel := ending.Select(g.store)
	g.logger.Info("Triggering ending", "outcome", sel.Outcome, "playlist", sel.Playlist)
	for _, badge := range sel.Badges {
		g.setBadge(ctx, badge)
	}

	director := g.cinematic()
	if director != nil {
		tag, err := director.Present(ctx, sel)
		if err != nil {
			return fmt.Errorf("ending cinematic: %w", err)
		}
		g.logger.Info("Ending show finished", "tag", tag)
	} else {
		g.logger.Warn("No cinematic configured, skipping ending show")
	}

	// The epilogue follows the selected outcome, not the show's tag
	if err := g.ui.Announce(ctx, g.tt("三天后", "THREE DAYS LATER")); err != nil {
		return err
	}
	g.store.ClearInbox()
	if err := g.playEpilogue(ctx, sel.Outcome); err != nil {
		return err
	}
	return g.complete(ctx, sel.Outcome)
}

// cinematic returns the in-process director when a local stage is attached
// and the content has an ending show, else the configured Cinematic
func (g *Game) cinematic() ending.Cinematic {
	if g.stage == nil {
		return g.director
	}
	show := g.content.Ending()
	if show == nil {
		g.logger.Warn("No ending show in content, using configured cinematic")
		return g.director
	}
	opts := []ending.SequencerOption{ending.WithLogger(g.logger)}
	if g.saves != nil {
		opts = append(opts, ending.WithBadges(g.saves))
	}
	seq, err := ending.NewSequencer(show, g.newInterpreter(g.ui), opts...)
	if err != nil {
		g.logger.Error("Failed to create ending sequencer", "error", err)
		return g.director
	}
	return ending.NewLocalDirector(seq, g.logger)
}

func (g *Game) playEpilogue(ctx context.Context, outcome ending.Outcome) error {
	id := ending.EpilogueEventID(outcome)
	ev, ok := g.content.Event(id)
	if !ok {
		g.logger.Warn("Epilogue not found, using fallback", "event_id", id)
		id = ending.FallbackEpilogue
		if ev, ok = g.content.Event(id); !ok {
			g.logger.Warn("Fallback epilogue not found", "event_id", id)
			return nil
		}
	}
	g.store.BeginEvent(id)
	_, err := g.newInterpreter(g.ui).Execute(ctx, ev.Script)
	if err != nil {
		return fmt.Errorf("epilogue %s: %w", id, err)
	}
	return nil
}

func (g *Game) complete(ctx context.Context, outcome ending.Outcome) error {
	g.outcome = outcome
	g.setBadge(ctx, ending.BadgeCleared)
	g.skip.Unlock()
	g.logger.Info("Game complete", "outcome", outcome)
	return g.ui.Announce(ctx, g.text(ending.Title(outcome)))
}

func (g *Game) setBadge(ctx context.Context, key string) {
	if g.saves == nil {
		return
	}
	if err := g.saves.SetBadge(ctx, key); err != nil {
		g.logger.Error("Failed to set badge", "badge", key, "error", err)
	}
}

// Simulate jumps straight to the ending a named scenario would reach
func (g *Game) Simulate(ctx context.Context, scenario string) (ending.Outcome, error) {
	flags, ok := ending.ScenarioFlags(scenario)
	if !ok {
		return "", fmt.Errorf("unknown ending scenario %q", scenario)
	}
	day := g.content.Schedule().InitialDay()
	if g.store != nil {
		day, _ = g.store.Clock()
	}
	g.store = state.NewStore(day)
	for _, f := range flags {
		g.store.AddFlag(f)
	}
	g.logger.Info("Simulating ending", "scenario", scenario, "flags", flags)
	if err := g.triggerEnding(ctx); err != nil {
		return "", err
	}
	return g.outcome, nil
}
