package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AshramC/YXZX-ARG/internal/services/events"
	"github.com/AshramC/YXZX-ARG/pkg/infiltration"
	"github.com/AshramC/YXZX-ARG/pkg/minigame"
	"github.com/AshramC/YXZX-ARG/pkg/queue"
	"github.com/AshramC/YXZX-ARG/pkg/save"
)

const defaultTick = time.Second / 30

// Outcome tells how an infiltration session ended
type Outcome string

const (
	OutcomeStopped  Outcome = "stopped"
	OutcomeCaptured Outcome = "captured"
	OutcomeWon      Outcome = "won"
	OutcomeLocked   Outcome = "locked"
)

// Result is reported when the loop exits
type Result struct {
	Outcome   Outcome `json:"outcome"`
	NextLevel string  `json:"nextLevel,omitempty"`
}

// Worker owns one infiltration engine and is the only goroutine that
// touches it. Commands arrive through the queue and are applied at the
// start of each tick.
type Worker struct {
	id        string
	sessionID uuid.UUID
	scope     string
	engine    *infiltration.Engine
	queue     *queue.Queue
	saves     *save.Manager
	levels    infiltration.Library
	games     minigame.Host
	publisher events.Publisher
	tick      time.Duration
	log       *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	result Result
}

// Option configures a Worker
type Option func(*Worker)

// WithSaves persists checkpoints under scope
func WithSaves(m *save.Manager, scope string) Option {
	return func(w *Worker) {
		w.saves = m
		w.scope = scope
	}
}

// WithLevels lets a level-complete save point at the next level's start
func WithLevels(lib infiltration.Library) Option {
	return func(w *Worker) { w.levels = lib }
}

// WithMiniGames sets the host used on mini-game nodes
func WithMiniGames(h minigame.Host) Option {
	return func(w *Worker) { w.games = h }
}

// WithPublisher sets where events and frames go
func WithPublisher(p events.Publisher) Option {
	return func(w *Worker) { w.publisher = p }
}

// WithTick sets the fixed simulation step
func WithTick(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.tick = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) { w.log = l }
}

// New creates a worker for one session
func New(sessionID uuid.UUID, engine *infiltration.Engine, q *queue.Queue, opts ...Option) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		id:        fmt.Sprintf("worker-%s", uuid.New().String()[:8]),
		sessionID: sessionID,
		scope:     save.MainScope,
		engine:    engine,
		queue:     q,
		games:     minigame.Unavailable{},
		publisher: nopPublisher{},
		tick:      defaultTick,
		log:       slog.Default(),
		ctx:       ctx,
		cancel:    cancel,
		result:    Result{Outcome: OutcomeStopped},
	}
	for _, opt := range opts {
		opt(w)
	}
	w.log = w.log.With("worker_id", w.id, "session_id", sessionID.String())
	return w
}

// Start runs the loop until the session ends or Stop is called
func (w *Worker) Start() error {
	w.log.Info("Worker starting", "level_id", w.engine.LevelID(), "tick", w.tick)
	w.publishFrame()

	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()
	dt := w.tick.Seconds()

	for {
		select {
		case <-w.ctx.Done():
			w.log.Info("Worker shutting down")
			return nil
		case <-ticker.C:
		}

		done, err := w.step(dt)
		if err != nil {
			return err
		}
		if done {
			w.finish()
			return nil
		}
	}
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.log.Info("Worker stop requested")
	w.cancel()
}

// Result returns how the session ended
func (w *Worker) Result() Result {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.result
}

func (w *Worker) setResult(r Result) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.result = r
}

// step applies queued commands, advances the clock and reports what
// happened. It returns true when the session is over.
func (w *Worker) step(dt float64) (bool, error) {
	for _, req := range w.queue.Drain() {
		w.apply(req)
	}
	if err := w.engine.Handle(infiltration.Tick{DT: dt}); err != nil {
		return false, fmt.Errorf("tick: %w", err)
	}

	locked, err := w.process(w.engine.Drain())
	if err != nil {
		return false, err
	}
	w.publishFrame()

	if locked {
		return true, nil
	}
	if w.engine.Over() {
		if w.engine.Won() {
			r := w.Result()
			w.setResult(Result{Outcome: OutcomeWon, NextLevel: r.NextLevel})
		} else {
			w.setResult(Result{Outcome: OutcomeCaptured})
		}
		return true, nil
	}
	return false, nil
}

func (w *Worker) apply(req *queue.Request) {
	cmd, err := req.Command()
	if err == nil {
		err = w.engine.Handle(cmd)
	}
	if err == nil {
		return
	}
	if !errors.Is(err, infiltration.ErrIllegalAction) {
		w.log.Warn("Request rejected", "request_id", req.RequestID, "type", req.Type, "error", err)
	}
	ev, mErr := events.NewEvent(events.EventTypeRequestFailed, w.sessionID, map[string]string{"error": err.Error()})
	if mErr != nil {
		return
	}
	ev.RequestID = req.RequestID
	w.publish(ev)
}

// process publishes engine events and handles the ones with side effects.
// It reports whether a completed mini-game locked the session.
func (w *Worker) process(evs []infiltration.Event) (bool, error) {
	for _, ev := range evs {
		if out, err := events.GameEvent(w.sessionID, ev); err == nil {
			w.publish(out)
		}

		switch ev.Type {
		case infiltration.EventCheckpoint:
			w.checkpoint(ev.Checkpoint)
		case infiltration.EventWon:
			w.levelComplete(ev.Checkpoint)
		case infiltration.EventMiniGameReady:
			locked, err := w.playMiniGame(ev)
			if err != nil || locked {
				return locked, err
			}
		}
	}
	return false, nil
}

func (w *Worker) checkpoint(cp *infiltration.Checkpoint) {
	if cp == nil || w.saves == nil {
		return
	}
	snap := save.Snapshot{
		LevelID:          cp.LevelID,
		NodeID:           cp.NodeID,
		Inventory:        cp.Inventory,
		SaveType:         cp.SaveType,
		CompletedLevelID: cp.CompletedLevelID,
	}
	if err := w.saves.Save(w.ctx, w.scope, snap); err != nil {
		w.log.Error("Checkpoint save failed", "level_id", cp.LevelID, "error", err)
	}
}

// levelComplete saves at the start of the next level when there is one
func (w *Worker) levelComplete(cp *infiltration.Checkpoint) {
	if cp == nil || cp.LevelID == "" {
		w.log.Info("Final level cleared", "level_id", w.engine.LevelID())
		return
	}
	first, ok := w.levels.FirstNode(cp.LevelID)
	if !ok {
		w.log.Warn("Next level not found", "level_id", cp.LevelID)
		return
	}
	next := *cp
	next.NodeID = first
	w.checkpoint(&next)
	w.setResult(Result{Outcome: OutcomeWon, NextLevel: cp.LevelID})
}

// playMiniGame blocks the loop while the mini-game runs. Success locks the
// session down; failure leaves the player on the node.
func (w *Worker) playMiniGame(ev infiltration.Event) (bool, error) {
	w.log.Info("Starting mini-game", "game_id", ev.GameID, "node_id", ev.NodeID)
	res, err := w.games.Play(w.ctx, ev.GameID, map[string]any{
		"nodeId":    ev.NodeID,
		"inventory": w.engine.Inventory(),
	})
	if err != nil {
		if w.ctx.Err() != nil {
			return false, nil
		}
		w.log.Warn("Mini-game unavailable, counting as failure", "game_id", ev.GameID, "error", err)
		res = minigame.Result{}
	}

	if out, mErr := events.NewEvent(events.EventTypeMiniGameResult, w.sessionID, res); mErr == nil {
		w.publish(out)
	}
	if !res.Success {
		return false, nil
	}

	if w.saves != nil {
		if err := w.saves.Lockdown(w.ctx, w.scope, w.engine.Inventory()); err != nil {
			return false, fmt.Errorf("lockdown save: %w", err)
		}
	}
	w.log.Info("Session locked down", "level_id", w.engine.LevelID())
	w.setResult(Result{Outcome: OutcomeLocked})
	return true, nil
}

func (w *Worker) finish() {
	r := w.Result()
	w.log.Info("Session ended", "outcome", r.Outcome, "next_level", r.NextLevel)
	if ev, err := events.NewEvent(events.EventTypeSessionEnded, w.sessionID, r); err == nil {
		w.publish(ev)
	}
}

func (w *Worker) publishFrame() {
	if ev, err := events.Frame(w.sessionID, w.engine.Frame()); err == nil {
		w.publish(ev)
	}
}

func (w *Worker) publish(ev events.Event) {
	if err := w.publisher.Publish(w.ctx, w.sessionID, ev); err != nil {
		// Don't fail the session just because event publishing failed
		w.log.Debug("Failed to publish event", "event_type", ev.Type, "error", err)
	}
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, uuid.UUID, events.Event) error { return nil }
