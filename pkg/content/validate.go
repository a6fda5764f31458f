package content

import (
	"fmt"
	"slices"
	"sort"

	"github.com/AshramC/YXZX-ARG/pkg/ending"
)

// Validate reports dead references in a bundle: jumps to labels that do not
// exist, menu entries naming unknown events, broken level graphs and
// ending fragments that no playlist can find. None of these stop the game;
// they are reported so authors can fix them.
func Validate(b *Bundle) []error {
	var errs []error

	if b.ScheduleDef != nil {
		days := make([]string, 0, len(b.ScheduleDef.Days))
		for day := range b.ScheduleDef.Days {
			days = append(days, day)
		}
		sort.Strings(days)
		for _, day := range days {
			for slot, entries := range b.ScheduleDef.Days[day] {
				if !slices.ContainsFunc(b.ScheduleDef.TimeSlots, func(s Slot) bool { return s.ID == slot }) {
					errs = append(errs, fmt.Errorf("schedule %s: unknown slot %q", day, slot))
				}
				for _, e := range entries {
					if e.EventID == "" {
						continue
					}
					if _, ok := b.Event(e.EventID); !ok {
						errs = append(errs, fmt.Errorf("schedule %s/%s: unknown event %q", day, slot, e.EventID))
					}
				}
			}
		}
	}

	if b.EventDefs != nil {
		ids := make([]string, 0, len(b.EventDefs.Events))
		for id := range b.EventDefs.Events {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			ev := b.EventDefs.Events[id]
			if ev == nil {
				continue
			}
			labels := ev.Script.Labels()
			for _, ref := range ev.Script.References() {
				if !slices.Contains(labels, ref) {
					errs = append(errs, fmt.Errorf("event %s: jump to unknown label %q", id, ref))
				}
			}
		}
	}

	levelIDs := make([]string, 0, len(b.LevelDefs))
	for id := range b.LevelDefs {
		levelIDs = append(levelIDs, id)
	}
	sort.Strings(levelIDs)
	for _, id := range levelIDs {
		level := b.LevelDefs[id]
		errs = append(errs, level.Validate()...)
		if level.NextLevel != "" {
			if _, ok := b.LevelDefs.Get(level.NextLevel); !ok {
				errs = append(errs, fmt.Errorf("level %s: unknown next level %q", id, level.NextLevel))
			}
		}
	}

	if b.EndingDef != nil && len(b.EndingDef.Scripts) > 0 {
		for _, outcome := range []ending.Outcome{ending.OutcomePerfect, ending.OutcomeGood, ending.OutcomeNormal, ending.OutcomeBad, ending.OutcomeBadArrest} {
			flags, _ := ending.ScenarioFlags(string(outcome))
			sel := ending.Select(flagList(flags))
			for _, id := range sel.Playlist {
				if _, ok := b.EndingDef.Scripts[id]; !ok {
					errs = append(errs, fmt.Errorf("ending %s: missing sequence %q", outcome, id))
				}
			}
			if _, ok := b.Event(ending.EpilogueEventID(outcome)); !ok {
				if _, ok := b.Event(ending.FallbackEpilogue); !ok {
					errs = append(errs, fmt.Errorf("ending %s: no epilogue event", outcome))
				}
			}
		}
		for i, step := range b.EndingDef.Flow {
			for _, id := range []string{step.Run, step.Pass, step.Fail} {
				if id == "" {
					continue
				}
				if _, ok := b.EndingDef.Scripts[id]; !ok {
					errs = append(errs, fmt.Errorf("ending flow step %d: missing sequence %q", i, id))
				}
			}
		}
	}

	return dedupe(errs)
}

type flagList []string

func (f flagList) HasFlag(flag string) bool {
	return slices.Contains(f, flag)
}

func dedupe(errs []error) []error {
	seen := make(map[string]bool, len(errs))
	out := errs[:0]
	for _, err := range errs {
		if seen[err.Error()] {
			continue
		}
		seen[err.Error()] = true
		out = append(out, err)
	}
	return out
}
