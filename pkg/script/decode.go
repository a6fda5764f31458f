package script

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AshramC/YXZX-ARG/pkg/conditionals"
	"github.com/AshramC/YXZX-ARG/pkg/i18n"
	"github.com/AshramC/YXZX-ARG/pkg/state"
)

// Default loop interval when content omits one
const defaultLoopInterval = 200 * time.Millisecond

// rawLine is the content form of an instruction: a flat object tagged by cmd.
// A line with a label and no cmd is a labeled block.
type rawLine struct {
	Cmd   string `json:"cmd" yaml:"cmd"`
	Label string `json:"label" yaml:"label"`

	Script  Script `json:"script" yaml:"script"`
	Actions Script `json:"actions" yaml:"actions"`

	Speaker string      `json:"speaker" yaml:"speaker"`
	Text    i18n.Text   `json:"text" yaml:"text"`
	Options []rawOption `json:"options" yaml:"options"`

	Threshold int    `json:"threshold" yaml:"threshold"`
	Pass      string `json:"pass" yaml:"pass"`
	Fail      string `json:"fail" yaml:"fail"`
	Target    string `json:"target" yaml:"target"`
	Flag      string `json:"flag" yaml:"flag"`
	Yes       string `json:"yes" yaml:"yes"`
	No        string `json:"no" yaml:"no"`

	state.Effect `yaml:",inline"`

	GameID string         `json:"gameId" yaml:"gameId"`
	Config map[string]any `json:"config" yaml:"config"`
	Reward *state.Effect  `json:"reward" yaml:"reward"`

	Time     int    `json:"time" yaml:"time"`         // milliseconds
	Count    int    `json:"count" yaml:"count"`       // loop repetitions
	Interval int    `json:"interval" yaml:"interval"` // milliseconds
	Outcome  string `json:"outcome" yaml:"outcome"`
}

type rawOption struct {
	Label        i18n.Text                 `json:"label" yaml:"label"`
	Score        int                       `json:"score" yaml:"score"`
	Requirements *conditionals.Requirement `json:"requirements" yaml:"requirements"`
	Requires     *conditionals.Requirement `json:"requires" yaml:"requires"`
	Effect       *state.Effect             `json:"effect" yaml:"effect"`
	Reward       *state.Effect             `json:"reward" yaml:"reward"`
	Next         nextField                 `json:"next" yaml:"next"`
}

// nextField is either a label to jump to or an inline sub-script
type nextField struct {
	Label  string
	Script Script
}

func (n *nextField) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err == nil {
		n.Label = label
		return nil
	}
	return json.Unmarshal(data, &n.Script)
}

func (n *nextField) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		n.Label = node.Value
		return nil
	}
	return node.Decode(&n.Script)
}

// UnmarshalJSON decodes a JSON array of cmd-tagged objects
func (s *Script) UnmarshalJSON(data []byte) error {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return fmt.Errorf("script must be an array: %w", err)
	}
	out := make(Script, 0, len(elems))
	for i, elem := range elems {
		var raw rawLine
		if err := json.Unmarshal(elem, &raw); err != nil {
			return fmt.Errorf("script line %d: %w", i, err)
		}
		var args map[string]any
		if err := json.Unmarshal(elem, &args); err != nil {
			return fmt.Errorf("script line %d: %w", i, err)
		}
		if ins := raw.build(args); ins != nil {
			out = append(out, ins)
		}
	}
	*s = out
	return nil
}

// UnmarshalYAML decodes a YAML sequence of cmd-tagged mappings
func (s *Script) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: script must be a sequence", node.Line)
	}
	out := make(Script, 0, len(node.Content))
	for _, child := range node.Content {
		var raw rawLine
		if err := child.Decode(&raw); err != nil {
			return fmt.Errorf("line %d: %w", child.Line, err)
		}
		var args map[string]any
		if err := child.Decode(&args); err != nil {
			return fmt.Errorf("line %d: %w", child.Line, err)
		}
		if ins := raw.build(args); ins != nil {
			out = append(out, ins)
		}
	}
	*s = out
	return nil
}

// build converts a content line to its instruction. Lines with neither a
// cmd nor a label carry nothing executable and are dropped.
func (r rawLine) build(args map[string]any) Instruction {
	switch r.Cmd {
	case "":
		if r.Label == "" {
			return nil
		}
		return Block{Label: r.Label, Script: r.Script}
	case "dialog":
		return Dialog{Speaker: r.Speaker, Text: r.Text}
	case "choice":
		opts := make([]Option, 0, len(r.Options))
		for _, o := range r.Options {
			req := o.Requirements
			if req == nil {
				req = o.Requires
			}
			opts = append(opts, Option{
				Text:     o.Label,
				Score:    o.Score,
				Requires: req,
				Effect:   o.Effect,
				Reward:   o.Reward,
				Next:     o.Next.Script,
				Jump:     o.Next.Label,
			})
		}
		return Choice{Options: opts}
	case "check_score":
		return CheckScore{Threshold: r.Threshold, Pass: r.Pass, Fail: r.Fail}
	case "reward":
		return Reward{Effect: r.Effect}
	case "jump":
		return Jump{Target: r.Target}
	case "check_flag":
		return CheckFlag{Flag: r.Flag, Yes: r.Yes, No: r.No}
	case "minigame":
		return MiniGame{GameID: r.GameID, Config: r.Config, Reward: r.Reward, Pass: r.Pass, Fail: r.Fail}
	case "play_ending":
		return PlayEnding{}
	case "end_event":
		return EndEvent{}
	case "wait":
		return Wait{Duration: time.Duration(r.Time) * time.Millisecond}
	case "parallel":
		return Parallel{Actions: r.Actions}
	case "loop":
		count := r.Count
		if count <= 0 {
			count = 1
		}
		interval := time.Duration(r.Interval) * time.Millisecond
		if interval <= 0 {
			interval = defaultLoopInterval
		}
		return Loop{Count: count, Interval: interval, Script: r.Script}
	case "end_show":
		return EndShow{Outcome: r.Outcome}
	default:
		delete(args, "cmd")
		return Stage{Cmd: r.Cmd, Args: args}
	}
}
