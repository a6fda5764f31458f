package save

import (
	"context"
	"fmt"
	"time"
)

// Decision is the outcome of a boot check
type Decision string

const (
	DecisionFresh    Decision = "fresh"    // no usable save; start from the beginning
	DecisionResume   Decision = "resume"   // continue from the snapshot
	DecisionLocked   Decision = "locked"   // show the lockdown screen
	DecisionUnlocked Decision = "unlocked" // lockdown lifted; snapshot moved to the follow-up level
)

// LevelIndex answers which levels exist and where they start
type LevelIndex interface {
	FirstNode(levelID string) (string, bool)
}

// LockdownPolicy names when and where a lockdown save is released
type LockdownPolicy struct {
	UnlockAt    time.Time
	NextLevelID string
}

// BootResult is what a front-end needs to start a session
type BootResult struct {
	Decision Decision
	Snapshot *Snapshot
}

// Lockdown writes the terminal lockdown snapshot for scope
func (m *Manager) Lockdown(ctx context.Context, scope string, inventory []string) error {
	return m.Save(ctx, scope, Snapshot{
		LevelID:   LockedLevelID,
		Inventory: inventory,
		SaveType:  TypeLockdown,
	})
}

// Boot decides how to start scope. A lockdown save stays locked until the
// host wall clock passes policy.UnlockAt and the follow-up level exists;
// then it is rewritten as a manual save on that level's first node. A save
// pointing at an unknown level is cleared.
func (m *Manager) Boot(ctx context.Context, scope string, levels LevelIndex, policy LockdownPolicy) (BootResult, error) {
	snap, ok := m.Load(ctx, scope)
	if !ok {
		return BootResult{Decision: DecisionFresh}, nil
	}

	if snap.Locked() {
		first, exists := "", false
		if policy.NextLevelID != "" && levels != nil {
			first, exists = levels.FirstNode(policy.NextLevelID)
		}
		now := m.clock()
		if policy.UnlockAt.IsZero() || now.Before(policy.UnlockAt) || !exists {
			m.logger.Info("Lockdown in effect", "scope", scope, "unlock_at", policy.UnlockAt, "next_level", policy.NextLevelID)
			return BootResult{Decision: DecisionLocked, Snapshot: snap}, nil
		}

		migrated := Snapshot{
			LevelID:         policy.NextLevelID,
			NodeID:          first,
			Inventory:       snap.Inventory,
			CompletedLevels: snap.CompletedLevels,
			SaveType:        TypeManual,
		}
		if err := m.Save(ctx, scope, migrated); err != nil {
			return BootResult{}, fmt.Errorf("failed to lift lockdown: %w", err)
		}
		m.logger.Info("Lockdown lifted", "scope", scope, "level_id", policy.NextLevelID)
		out, _ := m.Load(ctx, scope)
		return BootResult{Decision: DecisionUnlocked, Snapshot: out}, nil
	}

	if snap.LevelID != "" && levels != nil {
		if _, exists := levels.FirstNode(snap.LevelID); !exists {
			m.logger.Warn("Saved level not found, starting fresh", "scope", scope, "level_id", snap.LevelID)
			if err := m.Clear(ctx, scope); err != nil {
				return BootResult{}, err
			}
			return BootResult{Decision: DecisionFresh}, nil
		}
	}
	return BootResult{Decision: DecisionResume, Snapshot: snap}, nil
}
