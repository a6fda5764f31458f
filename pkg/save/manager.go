// Package save persists progress snapshots per scope.
package save

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/AshramC/YXZX-ARG/pkg/state"
	"github.com/AshramC/YXZX-ARG/pkg/storage"
)

// Version is the snapshot schema version written by this build
const Version = 1

// Type tags why a snapshot was written
type Type string

const (
	TypeManual             Type = "manual"
	TypeLevelComplete      Type = "level_complete"
	TypeMiniGameCheckpoint Type = "minigame_checkpoint"
	TypeLockdown           Type = "lockdown"
)

// Scopes
const (
	MainScope   = "main"
	CampusScope = "campus"
	sidePrefix  = "side_"
)

// LockedLevelID marks a lockdown snapshot written by older builds
const LockedLevelID = "LOCKED_STATE"

// Position is a map position in percent
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Snapshot is one persisted save
type Snapshot struct {
	Version          int          `json:"version"`
	Scope            string       `json:"scope"`
	LevelID          string       `json:"levelId,omitempty"`
	NodeID           string       `json:"nodeId,omitempty"`
	Position         *Position    `json:"position,omitempty"`
	Inventory        []string     `json:"inventory"`
	CompletedLevels  []string     `json:"completedLevels"`
	CompletedLevelID string       `json:"completedLevelId,omitempty"`
	SaveType         Type         `json:"saveType"`
	Timestamp        int64        `json:"timestamp"` // unix milliseconds
	Campus           *state.Store `json:"campus,omitempty"`
}

// UnmarshalJSON maps the legacy "minigame" save type
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	type Alias Snapshot
	aux := &struct{ *Alias }{Alias: (*Alias)(s)}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	if s.SaveType == "minigame" {
		s.SaveType = TypeMiniGameCheckpoint
	}
	return nil
}

// Locked reports whether the snapshot is a lockdown
func (s *Snapshot) Locked() bool {
	return s.SaveType == TypeLockdown || s.LevelID == LockedLevelID
}

// Time returns the save time
func (s *Snapshot) Time() time.Time {
	return time.UnixMilli(s.Timestamp)
}

// IsSideMission reports whether scope follows the side-mission convention
func IsSideMission(scope string) bool {
	return strings.HasPrefix(scope, sidePrefix)
}

// Key returns the storage key for scope. Main, side-mission and level
// scopes live in separate key spaces.
func Key(scope string) string {
	switch {
	case scope == "" || scope == MainScope:
		return "save:main"
	case scope == CampusScope:
		return "save:campus"
	case IsSideMission(scope):
		return "save:side:" + scope
	default:
		return "save:level:" + scope
	}
}

func badgeKey(key string) string {
	return "badge:" + key
}

// Manager reads and writes snapshots through a KV store
type Manager struct {
	kv     storage.KV
	clock  func() time.Time
	logger *slog.Logger
}

// Option configures a Manager
type Option func(*Manager)

// WithClock replaces the wall clock
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) { m.clock = clock }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a manager on kv
func NewManager(kv storage.KV, opts ...Option) *Manager {
	m := &Manager{kv: kv, clock: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Save writes snap under scope. Completed levels carry over from the
// previous snapshot of the same scope, and a level_complete save adds
// CompletedLevelID.
func (m *Manager) Save(ctx context.Context, scope string, snap Snapshot) error {
	if scope == "" {
		scope = MainScope
	}
	completed := append([]string(nil), snap.CompletedLevels...)
	if prev, ok := m.Load(ctx, scope); ok {
		for _, id := range prev.CompletedLevels {
			if !slices.Contains(completed, id) {
				completed = append(completed, id)
			}
		}
	}
	if snap.SaveType == TypeLevelComplete && snap.CompletedLevelID != "" && !slices.Contains(completed, snap.CompletedLevelID) {
		completed = append(completed, snap.CompletedLevelID)
	}

	snap.Version = Version
	snap.Scope = scope
	snap.CompletedLevels = completed
	if snap.Inventory == nil {
		snap.Inventory = []string{}
	}
	if snap.SaveType == "" {
		snap.SaveType = TypeManual
	}
	snap.Timestamp = m.clock().UnixMilli()
	if snap.Campus != nil {
		snap.Campus = snap.Campus.Clone()
		snap.Campus.UpdatedAt = m.clock()
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := m.kv.Set(ctx, Key(scope), string(data)); err != nil {
		m.logger.Error("Failed to write save", "scope", scope, "error", err)
		return fmt.Errorf("failed to write save: %w", err)
	}
	m.logger.Info("Saved", "scope", scope, "save_type", snap.SaveType, "level_id", snap.LevelID, "node_id", snap.NodeID, "items", len(snap.Inventory))
	return nil
}

// Load returns the snapshot of scope. Missing, unreadable and malformed
// saves are all reported as absent.
func (m *Manager) Load(ctx context.Context, scope string) (*Snapshot, bool) {
	raw, ok, err := m.kv.Get(ctx, Key(scope))
	if err != nil {
		m.logger.Error("Failed to read save", "scope", scope, "error", err)
		return nil, false
	}
	if !ok || raw == "" {
		return nil, false
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		m.logger.Error("Malformed save, ignoring", "scope", scope, "error", err)
		return nil, false
	}
	if snap.Version != Version {
		m.logger.Warn("Save version mismatch", "scope", scope, "version", snap.Version, "expected", Version)
	}
	m.logger.Debug("Loaded save", "scope", scope, "level_id", snap.LevelID, "save_type", snap.SaveType, "age", FormatTimeAgo(snap.Time(), m.clock()))
	return &snap, true
}

// Clear removes the snapshot of scope
func (m *Manager) Clear(ctx context.Context, scope string) error {
	if err := m.kv.Remove(ctx, Key(scope)); err != nil {
		return fmt.Errorf("failed to clear save: %w", err)
	}
	m.logger.Info("Save cleared", "scope", scope)
	return nil
}

// IsLevelCompleted reports whether scope's save lists levelID as completed
func (m *Manager) IsLevelCompleted(ctx context.Context, scope, levelID string) bool {
	snap, ok := m.Load(ctx, scope)
	return ok && slices.Contains(snap.CompletedLevels, levelID)
}

// SetBadge records a badge that outlives every playthrough
func (m *Manager) SetBadge(ctx context.Context, key string) error {
	if err := m.kv.Set(ctx, badgeKey(key), "true"); err != nil {
		return fmt.Errorf("failed to set badge %s: %w", key, err)
	}
	return nil
}

// ClearBadge removes a badge
func (m *Manager) ClearBadge(ctx context.Context, key string) error {
	if err := m.kv.Remove(ctx, badgeKey(key)); err != nil {
		return fmt.Errorf("failed to clear badge %s: %w", key, err)
	}
	return nil
}

// HasBadge reports whether key was recorded. Read errors count as absent.
func (m *Manager) HasBadge(ctx context.Context, key string) bool {
	v, ok, err := m.kv.Get(ctx, badgeKey(key))
	if err != nil {
		m.logger.Warn("Failed to read badge", "badge", key, "error", err)
		return false
	}
	return ok && v == "true"
}

// FormatTimeAgo renders the age of t relative to now in a short form
func FormatTimeAgo(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
