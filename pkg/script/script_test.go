package script

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const sampleJSON = `[
	{"cmd": "dialog", "speaker": "chen", "text": {"cn": "你来了", "en": "You came"}},
	{"cmd": "choice", "options": [
		{"label": "Stay", "score": 1, "next": "stay"},
		{"label": "Leave", "requirements": {"flag": "BRAVE"}, "effect": {"addFlag": "LEFT"}},
		{"label": "Inline", "next": [{"cmd": "reward", "addFlag": "INLINE"}]}
	]},
	{"cmd": "check_score", "threshold": 2, "pass": "good", "fail": "bad"},
	{"label": "stay", "script": [
		{"cmd": "reward", "trust": {"target": "chen", "value": 2}, "globalBadge": "BADGE"},
		{"label": "nested", "script": [{"cmd": "end_event"}]}
	]},
	{"label": "good", "script": [{"cmd": "jump", "target": "nested"}]},
	{"cmd": "minigame", "gameId": "terminal", "config": {"level": 2}, "reward": {"addFlag": "HACKED"}, "pass": "good"},
	{"cmd": "check_flag", "flag": "HACKED", "yes": "good"},
	{"cmd": "play_ending"},
	{"note": "ignored"}
]`

func TestScript_UnmarshalJSON(t *testing.T) {
	var s Script
	require.NoError(t, json.Unmarshal([]byte(sampleJSON), &s))
	require.Len(t, s, 8)

	d, ok := s[0].(Dialog)
	require.True(t, ok)
	assert.Equal(t, "chen", d.Speaker)
	assert.Equal(t, "You came", d.Text["en"])

	c, ok := s[1].(Choice)
	require.True(t, ok)
	require.Len(t, c.Options, 3)
	assert.Equal(t, "stay", c.Options[0].Jump)
	assert.Equal(t, 1, c.Options[0].Score)
	require.NotNil(t, c.Options[1].Requires)
	assert.Equal(t, "BRAVE", c.Options[1].Requires.Flag)
	assert.Equal(t, "LEFT", c.Options[1].Effect.AddFlag)
	require.Len(t, c.Options[2].Next, 1)
	assert.Empty(t, c.Options[2].Jump)

	assert.Equal(t, CheckScore{Threshold: 2, Pass: "good", Fail: "bad"}, s[2])

	b, ok := s[3].(Block)
	require.True(t, ok)
	assert.Equal(t, "stay", b.Label)
	r, ok := b.Script[0].(Reward)
	require.True(t, ok)
	assert.Equal(t, "chen", r.Effect.Trust.Target)
	assert.Equal(t, 2, r.Effect.Trust.Value)
	assert.Equal(t, "BADGE", r.Effect.GlobalBadge)

	m, ok := s[5].(MiniGame)
	require.True(t, ok)
	assert.Equal(t, "terminal", m.GameID)
	assert.Equal(t, float64(2), m.Config["level"])
	assert.Equal(t, "HACKED", m.Reward.AddFlag)

	assert.Equal(t, CheckFlag{Flag: "HACKED", Yes: "good"}, s[6])
	assert.IsType(t, PlayEnding{}, s[7])
}

const sampleYAML = `
- cmd: wait
  time: 500
- cmd: parallel
  actions:
    - cmd: move
      actor: chen
      to: gate
    - cmd: bubble
      actor: lin
      text: "..."
- cmd: loop
  count: 3
  script:
    - cmd: spawn
      actorId: crowd
- cmd: end_show
  outcome: perfect
`

func TestScript_UnmarshalYAML(t *testing.T) {
	var s Script
	require.NoError(t, yaml.Unmarshal([]byte(sampleYAML), &s))
	require.Len(t, s, 4)

	assert.Equal(t, Wait{Duration: 500 * time.Millisecond}, s[0])

	p, ok := s[1].(Parallel)
	require.True(t, ok)
	require.Len(t, p.Actions, 2)
	move, ok := p.Actions[0].(Stage)
	require.True(t, ok)
	assert.Equal(t, "move", move.Cmd)
	assert.Equal(t, "gate", move.Args["to"])
	assert.NotContains(t, move.Args, "cmd")

	l, ok := s[2].(Loop)
	require.True(t, ok)
	assert.Equal(t, 3, l.Count)
	assert.Equal(t, defaultLoopInterval, l.Interval)

	assert.Equal(t, EndShow{Outcome: "perfect"}, s[3])
}

func TestScript_UnmarshalYAMLRejectsMapping(t *testing.T) {
	var s Script
	assert.Error(t, yaml.Unmarshal([]byte("cmd: dialog\n"), &s))
}

func TestScript_FindLabel(t *testing.T) {
	var s Script
	require.NoError(t, json.Unmarshal([]byte(sampleJSON), &s))

	tests := []struct {
		name    string
		label   string
		found   bool
		wantLen int
	}{
		{name: "top level", label: "stay", found: true, wantLen: 2},
		{name: "nested block", label: "nested", found: true, wantLen: 1},
		{name: "sibling block", label: "good", found: true, wantLen: 1},
		{name: "unknown", label: "missing", found: false},
		{name: "empty", label: "", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := s.FindLabel(tt.label)
			if ok != tt.found {
				t.Fatalf("FindLabel(%q) found = %v, expected %v", tt.label, ok, tt.found)
			}
			if ok && len(got) != tt.wantLen {
				t.Errorf("FindLabel(%q) len = %d, expected %d", tt.label, len(got), tt.wantLen)
			}
		})
	}
}

func TestScript_FindLabelFirstMatchWins(t *testing.T) {
	s := Script{
		Block{Label: "outer", Script: Script{
			Block{Label: "dup", Script: Script{EndEvent{}}},
		}},
		Block{Label: "dup", Script: Script{PlayEnding{}}},
	}
	got, ok := s.FindLabel("dup")
	require.True(t, ok)
	assert.IsType(t, EndEvent{}, got[0])
}

func TestScript_LabelsAndReferences(t *testing.T) {
	var s Script
	require.NoError(t, json.Unmarshal([]byte(sampleJSON), &s))

	assert.ElementsMatch(t, []string{"stay", "nested", "good"}, s.Labels())
	assert.ElementsMatch(t, []string{"stay", "good", "bad", "nested", "good", "good"}, s.References())
}
