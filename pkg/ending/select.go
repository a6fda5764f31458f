// Package ending picks and plays the final cinematic.
package ending

import "github.com/AshramC/YXZX-ARG/pkg/i18n"

// Story-line completion flags read by Select
const (
	FlagChen        = "LINE_CHEN_COMPLETE"
	FlagLin         = "LINE_LIN_COMPLETE"
	FlagHacker      = "LINE_HACKER_COMPLETE"
	FlagLuyan       = "LINE_LUYAN_COMPLETE"
	FlagOpinionWall = "FLAG_OPINION_WALL"
)

// Global badges written around the ending
const (
	BadgeWallSpecial     = "WALL_SPECIAL_MODE"
	BadgeWallPerformance = "WALL_PERFORMANCE_SEEN"
	BadgeCleared         = "CAMPUS_GAME_CLEARED"
)

// Badges lists every global badge the wall and title screen may read
var Badges = []string{BadgeWallSpecial, BadgeWallPerformance, BadgeCleared}

// Outcome tags an ending
type Outcome string

const (
	OutcomeBad       Outcome = "bad"
	OutcomeBadArrest Outcome = "bad_arrest"
	OutcomeNormal    Outcome = "normal"
	OutcomeGood      Outcome = "good"
	OutcomePerfect   Outcome = "perfect"
)

// Fragments whose id starts with one of these run in the background
var backgroundPrefixes = []string{"task_", "bg_"}

// FlagView is the slice of state Select reads
type FlagView interface {
	HasFlag(flag string) bool
}

// Selection is the playlist chosen for a playthrough
type Selection struct {
	Outcome  Outcome  `json:"outcome"`
	Playlist []string `json:"playlist"`
	Badges   []string `json:"badges,omitempty"`
}

// Select walks the ending decision tree. Missing the Chen line ends the show
// in round one and missing the Lin line ends it in round two; later rounds
// are not considered in either case.
func Select(flags FlagView) Selection {
	hasChen := flags.HasFlag(FlagChen)
	hasLin := flags.HasFlag(FlagLin)
	hasHacker := flags.HasFlag(FlagHacker)
	hasLuyan := flags.HasFlag(FlagLuyan)

	sel := Selection{Playlist: []string{"seq_intro"}}
	if hasHacker {
		sel.Badges = append(sel.Badges, BadgeWallSpecial)
	}
	if hasHacker || flags.HasFlag(FlagOpinionWall) {
		sel.Playlist = append(sel.Playlist, "task_spawn_crowd")
	}

	sel.Playlist = append(sel.Playlist, "seq_round_1_start")
	if !hasChen {
		sel.Outcome = OutcomeBad
		sel.Playlist = append(sel.Playlist, "seq_bad_end_brawl")
		return sel
	}
	sel.Playlist = append(sel.Playlist, "seq_round_1_counter", "seq_round_2_trap")
	if !hasLin {
		sel.Outcome = OutcomeBadArrest
		sel.Playlist = append(sel.Playlist, "seq_bad_end_arrest")
		return sel
	}
	sel.Playlist = append(sel.Playlist, "seq_round_2_block")

	if hasHacker {
		sel.Playlist = append(sel.Playlist, "seq_round_3_denial")
	} else {
		sel.Playlist = append(sel.Playlist, "seq_round_3_denial_no_crowd")
	}

	switch {
	case hasHacker && hasLuyan:
		sel.Outcome = OutcomePerfect
		sel.Playlist = append(sel.Playlist, "seq_true_ending")
	case hasHacker:
		sel.Outcome = OutcomeGood
		sel.Playlist = append(sel.Playlist, "seq_normal_ending")
	default:
		sel.Outcome = OutcomeNormal
		sel.Playlist = append(sel.Playlist, "seq_normal_ending")
	}
	return sel
}

// ScenarioFlags returns the flags that lead to an outcome, for debugging
// endings without playing the campaign. bad_brawl is accepted for bad.
func ScenarioFlags(name string) ([]string, bool) {
	switch name {
	case string(OutcomePerfect):
		return []string{FlagChen, FlagLin, FlagHacker, FlagLuyan}, true
	case string(OutcomeGood):
		return []string{FlagChen, FlagLin, FlagHacker}, true
	case string(OutcomeNormal):
		return []string{FlagChen, FlagLin}, true
	case string(OutcomeBad), "bad_brawl":
		return []string{}, true
	case string(OutcomeBadArrest):
		return []string{FlagChen}, true
	}
	return nil, false
}

// EpilogueEventID names the campus event played after an ending
func EpilogueEventID(outcome Outcome) string {
	return "epilogue_" + string(outcome)
}

// FallbackEpilogue is played when an outcome has no epilogue of its own
const FallbackEpilogue = "epilogue_normal"

var titles = map[Outcome]i18n.Text{
	OutcomePerfect:   {"zh-CN": "完美结局", "en": "PERFECT ENDING"},
	OutcomeGood:      {"zh-CN": "好结局", "en": "GOOD ENDING"},
	OutcomeNormal:    {"zh-CN": "普通结局", "en": "NORMAL ENDING"},
	OutcomeBad:       {"zh-CN": "坏结局", "en": "BAD ENDING"},
	OutcomeBadArrest: {"zh-CN": "坏结局", "en": "BAD ENDING"},
}

// Title returns the ending screen title
func Title(outcome Outcome) i18n.Text {
	if t, ok := titles[outcome]; ok {
		return t
	}
	return i18n.Text{"zh-CN": "结局", "en": "ENDING"}
}
