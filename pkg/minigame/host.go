// Package minigame is the boundary to externally hosted mini-games.
package minigame

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrUnavailable is returned when no host can run the requested game.
// Callers treat it as a failed attempt.
var ErrUnavailable = errors.New("mini-game host unavailable")

// Result is what a mini-game reports when it exits
type Result struct {
	Success bool           `json:"success"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Host starts a mini-game and blocks until it reports a result
type Host interface {
	Play(ctx context.Context, gameID string, config map[string]any) (Result, error)
}

// Game runs one kind of mini-game in-process
type Game func(ctx context.Context, config map[string]any) (Result, error)

// Registry is a Host backed by in-process games keyed by id
type Registry struct {
	mu    sync.RWMutex
	games map[string]Game
}

// Ensure Registry implements Host interface
var _ Host = (*Registry)(nil)

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{games: make(map[string]Game)}
}

// Register adds or replaces the game for id
func (r *Registry) Register(id string, g Game) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.games[id] = g
	return r
}

func (r *Registry) Play(ctx context.Context, gameID string, config map[string]any) (Result, error) {
	r.mu.RLock()
	g, ok := r.games[gameID]
	r.mu.RUnlock()
	if !ok {
		return Result{}, fmt.Errorf("game %q: %w", gameID, ErrUnavailable)
	}
	return g(ctx, config)
}

// Unavailable is a Host with no games at all
type Unavailable struct{}

func (Unavailable) Play(context.Context, string, map[string]any) (Result, error) {
	return Result{}, ErrUnavailable
}

// Chooser picks one of several labels, returning its index
type Chooser interface {
	Choose(ctx context.Context, prompt string, labels []string) (int, error)
}

// Prompted is a Host that asks the player to decide the outcome. It stands
// in for the real puzzles in front-ends that cannot render them.
type Prompted struct {
	Chooser Chooser
}

func (p Prompted) Play(ctx context.Context, gameID string, _ map[string]any) (Result, error) {
	if p.Chooser == nil {
		return Result{}, ErrUnavailable
	}
	idx, err := p.Chooser.Choose(ctx, "MINIGAME: "+gameID, []string{"Complete", "Abort"})
	if err != nil {
		return Result{}, err
	}
	return Result{Success: idx == 0}, nil
}
