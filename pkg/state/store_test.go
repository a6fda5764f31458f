package state

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_AddFlagIdempotent(t *testing.T) {
	s := NewStore(1)
	s.AddFlag("MET_CHEN")
	s.AddFlag("MET_CHEN")
	s.AddFlag("")

	assert.True(t, s.HasFlag("MET_CHEN"))
	assert.Len(t, s.Flags, 1)
}

func TestStore_TrustIsAdditive(t *testing.T) {
	s := NewStore(1)
	assert.Equal(t, 0, s.TrustOf("chen"))

	s.AdjustTrust("chen", 3)
	s.AdjustTrust("chen", -1)
	s.AdjustTrust("chen", 5)
	assert.Equal(t, 7, s.TrustOf("chen"))
}

func TestStore_BeginEventAndStartDay(t *testing.T) {
	s := NewStore(1)
	s.AddScore(4)
	s.BeginEvent("evt_chen_1")

	assert.Equal(t, 0, s.Score(), "score resets when an event begins")
	assert.Equal(t, "evt_chen_1", s.Runtime.EventID)
	assert.True(t, s.ExecutedToday("evt_chen_1"))
	assert.True(t, s.HasExecuted("evt_chen_1"))

	s.StartDay(2)
	day, slot := s.Clock()
	assert.Equal(t, 2, day)
	assert.Equal(t, 0, slot)
	assert.False(t, s.ExecutedToday("evt_chen_1"), "daily set clears on a new day")
	assert.True(t, s.HasExecuted("evt_chen_1"), "history survives the day change")
}

func TestStore_Apply(t *testing.T) {
	tests := []struct {
		name      string
		effect    *Effect
		wantTrust int
		wantFlag  bool
	}{
		{name: "nil effect", effect: nil},
		{name: "trust", effect: &Effect{Trust: &TrustDelta{Target: "lin", Value: 2}}, wantTrust: 2},
		{name: "addTrust", effect: &Effect{AddTrust: &TrustDelta{Target: "lin", Value: -3}}, wantTrust: -3},
		{name: "flag", effect: &Effect{AddFlag: "FLAG_X"}, wantFlag: true},
		{
			name:      "combined",
			effect:    &Effect{Trust: &TrustDelta{Target: "lin", Value: 1}, AddTrust: &TrustDelta{Target: "lin", Value: 1}, AddFlag: "FLAG_X"},
			wantTrust: 2,
			wantFlag:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(1)
			s.Apply(tt.effect)
			if got := s.TrustOf("lin"); got != tt.wantTrust {
				t.Errorf("TrustOf(lin) = %d, expected %d", got, tt.wantTrust)
			}
			if got := s.HasFlag("FLAG_X"); got != tt.wantFlag {
				t.Errorf("HasFlag(FLAG_X) = %v, expected %v", got, tt.wantFlag)
			}
		})
	}
}

func TestStore_InboxUpsert(t *testing.T) {
	s := NewStore(1)
	s.UpsertInbox(InboxItem{ID: "contact_chen", TriggerID: "phone_d1_morning", Status: InboxUnread})
	s.UpsertInbox(InboxItem{ID: "contact_lin", TriggerID: "phone_d1_morning", Status: InboxUnread})
	s.UpsertInbox(InboxItem{ID: "contact_chen", TriggerID: "phone_d1_noon", Status: InboxUnread})

	items := s.InboxItems()
	require.Len(t, items, 2)
	assert.Equal(t, "phone_d1_noon", items[0].TriggerID)

	s.UpdateInbox(func(it *InboxItem) { it.Status = InboxRead })
	for _, it := range s.InboxItems() {
		assert.Equal(t, InboxRead, it.Status)
	}
}

func TestStore_JSONRoundTripKeepsSets(t *testing.T) {
	s := NewStore(3)
	s.AddFlag("B")
	s.AddFlag("A")
	s.BeginEvent("evt_lin_2")

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"flags":["A","B"]`)

	var loaded Store
	require.NoError(t, json.Unmarshal(data, &loaded))
	assert.True(t, loaded.HasFlag("A"))
	assert.True(t, loaded.HasExecuted("evt_lin_2"))
	assert.Equal(t, 3, loaded.Day)
}

func TestSet_UnmarshalTaggedForm(t *testing.T) {
	var s Set
	require.NoError(t, json.Unmarshal([]byte(`{"_type":"Set","value":["x","y"]}`), &s))
	assert.True(t, s.Has("x"))
	assert.True(t, s.Has("y"))

	assert.Error(t, json.Unmarshal([]byte(`{"_type":"Map","value":[]}`), &s))
}

func TestStore_CloneIsIndependent(t *testing.T) {
	s := NewStore(1)
	s.AddFlag("A")
	s.AdjustTrust("chen", 1)

	c := s.Clone()
	c.AddFlag("B")
	c.AdjustTrust("chen", 5)

	assert.False(t, s.HasFlag("B"))
	assert.Equal(t, 1, s.TrustOf("chen"))
}
