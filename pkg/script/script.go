// Package script defines the instruction tree executed by the interpreter.
package script

import (
	"time"

	"github.com/AshramC/YXZX-ARG/pkg/conditionals"
	"github.com/AshramC/YXZX-ARG/pkg/i18n"
	"github.com/AshramC/YXZX-ARG/pkg/state"
)

// Script is an ordered list of instructions
type Script []Instruction

// Instruction is one step of a script. The set of variants is closed.
type Instruction interface {
	instruction()
}

// Dialog shows a line of text and waits for the player to acknowledge it
type Dialog struct {
	Speaker string
	Text    i18n.Text
}

// Choice offers the options whose requirements hold
type Choice struct {
	Options []Option
}

// Option is one answer of a Choice. When chosen, Score is added to the
// running score, Effect and Reward are applied, then execution continues
// in Next or at the Jump label if either is set.
type Option struct {
	Text     i18n.Text
	Score    int
	Requires *conditionals.Requirement
	Effect   *state.Effect
	Reward   *state.Effect
	Next     Script
	Jump     string
}

// CheckScore branches on the running score of the current event.
// A zero Threshold means 1.
type CheckScore struct {
	Threshold int
	Pass      string
	Fail      string
}

// Reward applies an effect to the state
type Reward struct {
	Effect state.Effect
}

// Jump transfers control to a labeled block and never returns
type Jump struct {
	Target string
}

// CheckFlag branches on a flag; an empty branch label falls through
type CheckFlag struct {
	Flag string
	Yes  string
	No   string
}

// MiniGame hands control to an external mini-game and branches on its result
type MiniGame struct {
	GameID string
	Config map[string]any
	Reward *state.Effect
	Pass   string
	Fail   string
}

// PlayEnding starts the ending sequence and stops the current event
type PlayEnding struct{}

// EndEvent stops the current event
type EndEvent struct{}

// Block is a labeled sub-script. It is skipped during linear execution and
// entered only through a jump.
type Block struct {
	Label  string
	Script Script
}

// Wait pauses a presentation script
type Wait struct {
	Duration time.Duration
}

// Parallel starts every action at once and waits for all of them
type Parallel struct {
	Actions Script
}

// Loop starts Script Count times in the background, Interval apart
type Loop struct {
	Count    int
	Interval time.Duration
	Script   Script
}

// Stage is a presentation command forwarded to the renderer unchanged
type Stage struct {
	Cmd  string
	Args map[string]any
}

// EndShow finishes a cinematic with an outcome tag
type EndShow struct {
	Outcome string
}

func (Dialog) instruction()     {}
func (Choice) instruction()     {}
func (CheckScore) instruction() {}
func (Reward) instruction()     {}
func (Jump) instruction()       {}
func (CheckFlag) instruction()  {}
func (MiniGame) instruction()   {}
func (PlayEnding) instruction() {}
func (EndEvent) instruction()   {}
func (Block) instruction()      {}
func (Wait) instruction()       {}
func (Parallel) instruction()   {}
func (Loop) instruction()       {}
func (Stage) instruction()      {}
func (EndShow) instruction()    {}

// FindLabel searches the whole tree depth-first for the block named label.
// The first match in document order wins.
func (s Script) FindLabel(label string) (Script, bool) {
	if label == "" {
		return nil, false
	}
	for _, ins := range s {
		switch v := ins.(type) {
		case Block:
			if v.Label == label {
				return v.Script, true
			}
			if found, ok := v.Script.FindLabel(label); ok {
				return found, true
			}
		case Choice:
			for _, opt := range v.Options {
				if found, ok := opt.Next.FindLabel(label); ok {
					return found, true
				}
			}
		case Parallel:
			if found, ok := v.Actions.FindLabel(label); ok {
				return found, true
			}
		case Loop:
			if found, ok := v.Script.FindLabel(label); ok {
				return found, true
			}
		}
	}
	return nil, false
}

// Labels returns every block label defined in the tree
func (s Script) Labels() []string {
	var out []string
	s.walk(func(ins Instruction) {
		if b, ok := ins.(Block); ok && b.Label != "" {
			out = append(out, b.Label)
		}
	})
	return out
}

// References returns every label the tree may jump to
func (s Script) References() []string {
	var out []string
	add := func(labels ...string) {
		for _, l := range labels {
			if l != "" {
				out = append(out, l)
			}
		}
	}
	s.walk(func(ins Instruction) {
		switch v := ins.(type) {
		case Jump:
			add(v.Target)
		case CheckScore:
			add(v.Pass, v.Fail)
		case CheckFlag:
			add(v.Yes, v.No)
		case MiniGame:
			add(v.Pass, v.Fail)
		case Choice:
			for _, opt := range v.Options {
				add(opt.Jump)
			}
		}
	})
	return out
}

func (s Script) walk(fn func(Instruction)) {
	for _, ins := range s {
		fn(ins)
		switch v := ins.(type) {
		case Block:
			v.Script.walk(fn)
		case Choice:
			for _, opt := range v.Options {
				opt.Next.walk(fn)
			}
		case Parallel:
			v.Actions.walk(fn)
		case Loop:
			v.Script.walk(fn)
		}
	}
}
