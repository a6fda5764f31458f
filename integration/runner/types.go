package runner

import "time"

// TestSuite is one scripted campus session
type TestSuite struct {
	Name string `json:"name"`
	// Query is appended to /ws/campus, e.g. "reset=1" or "simulate=good"
	Query string `json:"query,omitempty"`
	Lang  string `json:"lang,omitempty"`
	// Picks are the menu labels to choose, in order. Unlisted choices take
	// the first option.
	Picks []string `json:"picks,omitempty"`
	// MiniGames is the result reported for every mini-game
	MiniGames    bool         `json:"minigames"`
	Expectations Expectations `json:"expect"`
}

// Expectations is checked against the final result of the session
type Expectations struct {
	Outcome               *string  `json:"outcome,omitempty"`
	Ended                 *bool    `json:"ended,omitempty"`
	DemoEnd               *bool    `json:"demo_end,omitempty"`
	Announced             []string `json:"announced,omitempty"`
	TranscriptContains    []string `json:"transcript_contains,omitempty"`
	TranscriptNotContains []string `json:"transcript_not_contains,omitempty"`
	// MinStageCommands is the least number of ending stage commands the
	// server must stream (cinematic=local sessions)
	MinStageCommands      int      `json:"min_stage_commands,omitempty"`
}

// SessionResult is the final message of a campus session
type SessionResult struct {
	DemoEnd bool   `json:"demoEnd"`
	Ended   bool   `json:"ended"`
	Outcome string `json:"outcome"`
}

// TestRunResult is what running one suite produced
type TestRunResult struct {
	Suite      TestSuite
	Result     SessionResult
	Announced  []string
	Transcript []string
	Staged     []string
	Requests   int
	Error      error
	Duration   time.Duration
}
