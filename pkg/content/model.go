// Package content loads the authored game data: schedule, events, phone
// threads, infiltration levels and the ending show.
package content

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/AshramC/YXZX-ARG/pkg/conditionals"
	"github.com/AshramC/YXZX-ARG/pkg/i18n"
	"github.com/AshramC/YXZX-ARG/pkg/script"
	"github.com/AshramC/YXZX-ARG/pkg/state"
)

// Slot types
const (
	SlotPassive = "passive"
	SlotActive  = "active"
)

// Slot is one period of a day
type Slot struct {
	ID    string    `json:"id" yaml:"id"`
	Label i18n.Text `json:"label" yaml:"label"`
	Type  string    `json:"type" yaml:"type"`
}

// Passive reports whether the slot advances on its own
func (s Slot) Passive() bool {
	return s.Type == SlotPassive
}

// Entry is one menu candidate of a slot
type Entry struct {
	EventID  string                    `json:"eventId,omitempty" yaml:"eventId,omitempty"`
	Name     i18n.Text                 `json:"name,omitempty" yaml:"name,omitempty"`
	Location i18n.Text                 `json:"location,omitempty" yaml:"location,omitempty"`
	Requires *conditionals.Requirement `json:"requires,omitempty" yaml:"requires,omitempty"`
}

// ScheduleConfig holds campaign-wide settings
type ScheduleConfig struct {
	InitialDay int `json:"initialDay" yaml:"initialDay"`
}

// Schedule maps days and slots to menu entries
type Schedule struct {
	Config    ScheduleConfig                `json:"config" yaml:"config"`
	TimeSlots []Slot                        `json:"timeSlots" yaml:"timeSlots"`
	Days      map[string]map[string][]Entry `json:"schedule" yaml:"schedule"`
}

func dayKey(day int) string {
	return fmt.Sprintf("Day_%d", day)
}

// InitialDay returns the first day of a new game
func (s *Schedule) InitialDay() int {
	if s.Config.InitialDay > 0 {
		return s.Config.InitialDay
	}
	return 1
}

// HasDay reports whether the schedule defines day
func (s *Schedule) HasDay(day int) bool {
	_, ok := s.Days[dayKey(day)]
	return ok
}

// Entries returns the menu entries of a slot
func (s *Schedule) Entries(day int, slotID string) []Entry {
	return s.Days[dayKey(day)][slotID]
}

// Event is a story event played from the menu or a trigger
type Event struct {
	Title    i18n.Text                 `json:"title" yaml:"title"`
	Requires *conditionals.Requirement `json:"requires,omitempty" yaml:"requires,omitempty"`
	Script   script.Script             `json:"script" yaml:"script"`
}

// Events is the event table keyed by event id
type Events struct {
	Events map[string]*Event `json:"events" yaml:"events"`
}

// Phone message types
const (
	MessageReceived = "received"
	MessageReply    = "reply"
	MessageSystem   = "system"
)

// Message is one step of a phone thread
type Message struct {
	Type    string    `json:"type" yaml:"type"`
	Text    i18n.Text `json:"text,omitempty" yaml:"text,omitempty"`
	Delay   int       `json:"delay,omitempty" yaml:"delay,omitempty"` // milliseconds
	Options []Reply   `json:"options,omitempty" yaml:"options,omitempty"`
}

// Reply is an answer the player may send
type Reply struct {
	Label        i18n.Text                 `json:"label" yaml:"label"`
	Requirements *conditionals.Requirement `json:"requirements,omitempty" yaml:"requirements,omitempty"`
	Effect       *state.Effect             `json:"effect,omitempty" yaml:"effect,omitempty"`
	Reward       *state.Effect             `json:"reward,omitempty" yaml:"reward,omitempty"`
	Next         []Message                 `json:"next,omitempty" yaml:"next,omitempty"`
}

// Thread is a phone conversation candidate for a trigger
type Thread struct {
	ID           string                    `json:"id,omitempty" yaml:"id,omitempty"`
	Contact      string                    `json:"contact" yaml:"contact"`
	Preview      i18n.Text                 `json:"preview,omitempty" yaml:"preview,omitempty"`
	Expire       string                    `json:"expire,omitempty" yaml:"expire,omitempty"`
	Priority     int                       `json:"priority,omitempty" yaml:"priority,omitempty"`
	AutoTrigger  bool                      `json:"autoTrigger,omitempty" yaml:"autoTrigger,omitempty"`
	TriggerIf    *conditionals.Requirement `json:"triggerIf,omitempty" yaml:"triggerIf,omitempty"`
	Requires     *conditionals.Requirement `json:"requires,omitempty" yaml:"requires,omitempty"`
	NotTriggerIf *conditionals.Requirement `json:"notTriggerIf,omitempty" yaml:"notTriggerIf,omitempty"`
	Messages     []Message                 `json:"messages" yaml:"messages"`
}

// Gate returns the requirement that must hold for the thread to arrive
func (t *Thread) Gate() *conditionals.Requirement {
	if t.TriggerIf != nil {
		return t.TriggerIf
	}
	return t.Requires
}

// Threads holds the candidates of one trigger. Content may give a single
// thread instead of a list.
type Threads []Thread

func (t *Threads) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.MappingNode {
		var one Thread
		if err := node.Decode(&one); err != nil {
			return err
		}
		*t = Threads{one}
		return nil
	}
	var many []Thread
	if err := node.Decode(&many); err != nil {
		return err
	}
	*t = many
	return nil
}

// Phone maps trigger ids (phone_d<day>_<slot>) to thread candidates
type Phone map[string]Threads

// TriggerID names the phone trigger of a slot
func TriggerID(day int, slotID string) string {
	return fmt.Sprintf("phone_d%d_%s", day, slotID)
}
