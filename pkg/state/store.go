package state

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AshramC/YXZX-ARG/pkg/conditionals"
)

// Runtime is the per-event scratch area. It is reset when an event starts.
type Runtime struct {
	EventID string `json:"currentEventId,omitempty"`
	Score   int    `json:"score"`
}

// Inbox item statuses
const (
	InboxUnread  = "unread"
	InboxRead    = "read"
	InboxReplied = "replied"
	InboxExpired = "expired"
)

// InboxItem is one phone thread delivered to the player. There is at most
// one item per contact; a newer message replaces the older one.
type InboxItem struct {
	ID         string `json:"uid"`
	TriggerID  string `json:"triggerId"`
	Candidate  int    `json:"candidate"`
	Contact    string `json:"contact"`
	Status     string `json:"status"`
	CreateDay  int    `json:"createDay"`
	ExpireSlot string `json:"expireSlot,omitempty"`
}

// Store is the player's narrative state for one playthrough.
// Flags only grow; trust is additive; History is append-only.
type Store struct {
	mu sync.RWMutex

	ID        uuid.UUID      `json:"id"`
	Day       int            `json:"day"`
	Slot      int            `json:"slot"`
	Flags     Set            `json:"flags"`
	Trust     map[string]int `json:"trust"`
	History   Set            `json:"history"`
	Daily     Set            `json:"dailyExecutedEvents"`
	Runtime   Runtime        `json:"runtime"`
	Inbox     []InboxItem    `json:"inbox,omitempty"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Ensure Store can be read by the requirement evaluator
var _ conditionals.StateView = (*Store)(nil)

// NewStore creates an empty store starting on day
func NewStore(day int) *Store {
	return &Store{
		ID:      uuid.New(),
		Day:     day,
		Flags:   NewSet(),
		Trust:   make(map[string]int),
		History: NewSet(),
		Daily:   NewSet(),
	}
}

func (s *Store) HasFlag(flag string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Flags.Has(flag)
}

// AddFlag sets flag. Setting an existing flag is a no-op.
func (s *Store) AddFlag(flag string) {
	if flag == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure()
	s.Flags.Add(flag)
}

func (s *Store) TrustOf(target string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Trust[target]
}

// AdjustTrust adds delta to target's trust, starting from zero
func (s *Store) AdjustTrust(target string, delta int) {
	if target == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure()
	s.Trust[target] += delta
}

func (s *Store) HasExecuted(eventID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.History.Has(eventID)
}

// ExecutedToday reports whether eventID already ran on the current day
func (s *Store) ExecutedToday(eventID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Daily.Has(eventID)
}

// DailyEvents returns the events executed today, sorted
func (s *Store) DailyEvents() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Daily.Sorted()
}

// BeginEvent records eventID in today's set and the history, and resets
// the runtime scratch area.
func (s *Store) BeginEvent(eventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure()
	s.Daily.Add(eventID)
	s.History.Add(eventID)
	s.Runtime = Runtime{EventID: eventID}
}

// StartDay moves to day and clears the per-day execution set
func (s *Store) StartDay(day int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Day = day
	s.Slot = 0
	s.Daily = NewSet()
}

// SetSlot moves the clock within the current day
func (s *Store) SetSlot(slot int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Slot = slot
}

// Clock returns the current day and slot index
func (s *Store) Clock() (day, slot int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Day, s.Slot
}

// AddScore adds delta to the running score of the current event
func (s *Store) AddScore(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Runtime.Score += delta
}

// Score returns the running score of the current event
func (s *Store) Score() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Runtime.Score
}

// Apply performs the trust and flag parts of e. Global badges live outside
// the playthrough and are left to the caller.
func (s *Store) Apply(e *Effect) {
	if e == nil {
		return
	}
	if e.Trust != nil {
		s.AdjustTrust(e.Trust.Target, e.Trust.Value)
	}
	if e.AddTrust != nil {
		s.AdjustTrust(e.AddTrust.Target, e.AddTrust.Value)
	}
	s.AddFlag(e.AddFlag)
}

// UpsertInbox replaces the item with the same ID or appends it
func (s *Store) UpsertInbox(item InboxItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Inbox {
		if s.Inbox[i].ID == item.ID {
			s.Inbox[i] = item
			return
		}
	}
	s.Inbox = append(s.Inbox, item)
}

// ClearInbox drops every phone thread
func (s *Store) ClearInbox() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Inbox = nil
}

// InboxItems returns a copy of the inbox
func (s *Store) InboxItems() []InboxItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]InboxItem, len(s.Inbox))
	copy(out, s.Inbox)
	return out
}

// UpdateInbox applies fn to every inbox item
func (s *Store) UpdateInbox(fn func(*InboxItem)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Inbox {
		fn(&s.Inbox[i])
	}
}

// Clone returns a deep copy suitable for persisting
func (s *Store) Clone() *Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := &Store{
		ID:        s.ID,
		Day:       s.Day,
		Slot:      s.Slot,
		Flags:     s.Flags.Clone(),
		Trust:     make(map[string]int, len(s.Trust)),
		History:   s.History.Clone(),
		Daily:     s.Daily.Clone(),
		Runtime:   s.Runtime,
		Inbox:     append([]InboxItem(nil), s.Inbox...),
		UpdatedAt: s.UpdatedAt,
	}
	for k, v := range s.Trust {
		out.Trust[k] = v
	}
	return out
}

// MarshalJSON serializes under the read lock
func (s *Store) MarshalJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	type alias struct {
		ID        uuid.UUID      `json:"id"`
		Day       int            `json:"day"`
		Slot      int            `json:"slot"`
		Flags     Set            `json:"flags"`
		Trust     map[string]int `json:"trust"`
		History   Set            `json:"history"`
		Daily     Set            `json:"dailyExecutedEvents"`
		Runtime   Runtime        `json:"runtime"`
		Inbox     []InboxItem    `json:"inbox,omitempty"`
		UpdatedAt time.Time      `json:"updatedAt"`
	}
	return json.Marshal(alias{
		ID: s.ID, Day: s.Day, Slot: s.Slot, Flags: s.Flags, Trust: s.Trust,
		History: s.History, Daily: s.Daily, Runtime: s.Runtime, Inbox: s.Inbox,
		UpdatedAt: s.UpdatedAt,
	})
}

// ensure initializes nil collections left by a partial decode.
// Caller must hold the write lock.
func (s *Store) ensure() {
	if s.Flags == nil {
		s.Flags = NewSet()
	}
	if s.Trust == nil {
		s.Trust = make(map[string]int)
	}
	if s.History == nil {
		s.History = NewSet()
	}
	if s.Daily == nil {
		s.Daily = NewSet()
	}
}
