package ending

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AshramC/YXZX-ARG/pkg/interpreter"
	"github.com/AshramC/YXZX-ARG/pkg/script"
	"golang.org/x/sync/errgroup"
)

// FlowStep is one step of the default show: either run a fragment, or
// check a badge and run the pass or fail fragment.
type FlowStep struct {
	Run   string `json:"run,omitempty" yaml:"run,omitempty"`
	Check string `json:"check,omitempty" yaml:"check,omitempty"`
	Pass  string `json:"pass,omitempty" yaml:"pass,omitempty"`
	Fail  string `json:"fail,omitempty" yaml:"fail,omitempty"`
}

// Show is the ending content: named fragments and an optional default flow
type Show struct {
	Scripts map[string]script.Script `json:"scripts" yaml:"scripts"`
	Flow    []FlowStep               `json:"flow,omitempty" yaml:"flow,omitempty"`
}

// Runner executes fragments. *interpreter.Interpreter satisfies it.
type Runner interface {
	Execute(ctx context.Context, s script.Script) (interpreter.Outcome, error)
	Wait()
	ShowOutcome() string
	ResetShow()
}

// BadgeLookup answers flow checks
type BadgeLookup interface {
	HasBadge(ctx context.Context, key string) bool
}

// IsBackground reports whether a fragment id is dispatched without waiting
func IsBackground(id string) bool {
	for _, p := range backgroundPrefixes {
		if strings.HasPrefix(id, p) {
			return true
		}
	}
	return false
}

// Sequencer plays fragments of a Show in order
type Sequencer struct {
	show   *Show
	runner Runner
	badges BadgeLookup
	logger *slog.Logger
}

// SequencerOption configures a Sequencer
type SequencerOption func(*Sequencer)

// WithBadges sets the lookup used by flow checks
func WithBadges(b BadgeLookup) SequencerOption {
	return func(s *Sequencer) { s.badges = b }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) SequencerOption {
	return func(s *Sequencer) { s.logger = l }
}

// NewSequencer creates a sequencer for show
func NewSequencer(show *Show, runner Runner, opts ...SequencerOption) (*Sequencer, error) {
	if show == nil {
		return nil, errors.New("show is nil")
	}
	if runner == nil {
		return nil, errors.New("runner is nil")
	}
	s := &Sequencer{show: show, runner: runner, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// playback tracks one run of the show
type playback struct {
	s      *Sequencer
	ctx    context.Context
	cancel context.CancelFunc
	bg     errgroup.Group
	ended  bool
}

func (s *Sequencer) start(ctx context.Context) *playback {
	s.runner.ResetShow()
	pctx, cancel := context.WithCancel(ctx)
	return &playback{s: s, ctx: pctx, cancel: cancel}
}

// finish stops background fragments once the show has ended and waits for
// them to return
func (p *playback) finish() string {
	if p.ended {
		p.cancel()
	}
	_ = p.bg.Wait()
	p.s.runner.Wait()
	p.cancel()
	return p.s.runner.ShowOutcome()
}

// fragment runs id, in the background when its prefix says so. It returns
// false once an end_show stopped the show.
func (p *playback) fragment(id string) (bool, error) {
	commands, ok := p.s.show.Scripts[id]
	if !ok {
		p.s.logger.Warn("Sequence missing", "sequence_id", id)
		return true, nil
	}

	if IsBackground(id) {
		p.s.logger.Debug("Background sequence started", "sequence_id", id)
		p.bg.Go(func() error {
			if _, err := p.s.runner.Execute(p.ctx, commands); err != nil && p.ctx.Err() == nil {
				p.s.logger.Warn("Background sequence failed", "sequence_id", id, "error", err)
			}
			return nil
		})
		return true, nil
	}

	p.s.logger.Debug("Running sequence", "sequence_id", id)
	out, err := p.s.runner.Execute(p.ctx, commands)
	if err != nil {
		return false, fmt.Errorf("sequence %s: %w", id, err)
	}
	if out.Status == interpreter.Stopped && out.Reason == interpreter.ReasonEndShow {
		p.ended = true
		return false, nil
	}
	return true, nil
}

// Play runs playlist in order and returns the end_show outcome, or "" if no
// fragment ended the show. Background fragments are canceled when the show
// ends and awaited otherwise.
func (s *Sequencer) Play(ctx context.Context, playlist []string) (string, error) {
	s.logger.Info("Playing from playlist", "playlist", playlist)
	p := s.start(ctx)
	for _, id := range playlist {
		more, err := p.fragment(id)
		if err != nil {
			p.ended = true
			p.finish()
			return "", err
		}
		if !more {
			break
		}
	}
	return p.finish(), nil
}

// RunFlow runs the show's default flow. overrides are treated as badges
// that are set for this run only.
func (s *Sequencer) RunFlow(ctx context.Context, overrides ...string) (string, error) {
	if len(s.show.Flow) == 0 {
		s.logger.Warn("No playlist and no flow defined")
		return "", nil
	}
	s.logger.Info("Running default flow", "steps", len(s.show.Flow))

	p := s.start(ctx)
	for _, step := range s.show.Flow {
		id := step.Run
		if step.Check != "" {
			if s.checkBadge(ctx, step.Check, overrides) {
				id = step.Pass
			} else {
				id = step.Fail
			}
		}
		if id == "" {
			continue
		}
		more, err := p.fragment(id)
		if err != nil {
			p.ended = true
			p.finish()
			return "", err
		}
		if !more {
			break
		}
	}
	return p.finish(), nil
}

func (s *Sequencer) checkBadge(ctx context.Context, key string, overrides []string) bool {
	for _, o := range overrides {
		if o == key {
			return true
		}
	}
	return s.badges != nil && s.badges.HasBadge(ctx, key)
}
