package infiltration

import (
	"github.com/AshramC/YXZX-ARG/pkg/i18n"
	"github.com/AshramC/YXZX-ARG/pkg/save"
)

// EventType names something that happened during a tick or command
type EventType string

const (
	EventArrived         EventType = "arrived"
	EventMoveStarted     EventType = "move_started"
	EventReversed        EventType = "move_reversed"
	EventLoot            EventType = "loot"
	EventThought         EventType = "thought"
	EventHackStarted     EventType = "hack_started"
	EventHackAborted     EventType = "hack_aborted"
	EventHackComplete    EventType = "hack_complete"
	EventSearchAvailable EventType = "search_available"
	EventSearchStarted   EventType = "search_started"
	EventSearchAborted   EventType = "search_aborted"
	EventSearchComplete  EventType = "search_complete"
	EventAlarm           EventType = "alarm"
	EventCaptured        EventType = "captured"
	EventWon             EventType = "won"
	EventCheckpoint      EventType = "checkpoint"
	EventMiniGameReady   EventType = "minigame_ready"
)

// Alarm reasons
const (
	AlarmSpotted = "spotted"
	AlarmNoise   = "noise"
)

// Save types carried by checkpoints
const (
	SaveLevelComplete      = save.TypeLevelComplete
	SaveMiniGameCheckpoint = save.TypeMiniGameCheckpoint
)

// Checkpoint asks the caller to persist progress
type Checkpoint struct {
	LevelID          string    `json:"levelId"`
	NodeID           string    `json:"nodeId,omitempty"`
	Inventory        []string  `json:"inventory"`
	SaveType         save.Type `json:"saveType"`
	CompletedLevelID string    `json:"completedLevelId,omitempty"`
}

// Event is emitted by the engine and drained by the session owner
type Event struct {
	Type       EventType   `json:"type"`
	At         float64     `json:"at"`
	NodeID     string      `json:"nodeId,omitempty"`
	LinkID     string      `json:"linkId,omitempty"`
	GuardID    string      `json:"guardId,omitempty"`
	Item       string      `json:"item,omitempty"`
	GameID     string      `json:"gameId,omitempty"`
	Reason     string      `json:"reason,omitempty"`
	Progress   float64     `json:"progress,omitempty"`
	Text       i18n.Text   `json:"text,omitempty"`
	Checkpoint *Checkpoint `json:"checkpoint,omitempty"`
}
