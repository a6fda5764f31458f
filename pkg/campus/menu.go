package campus

import (
	"context"
	"fmt"
	"strings"

	"github.com/AshramC/YXZX-ARG/pkg/conditionals"
	"github.com/AshramC/YXZX-ARG/pkg/ending"
	"github.com/AshramC/YXZX-ARG/pkg/interpreter"
	"github.com/AshramC/YXZX-ARG/pkg/state"
)

// ItemKind is what a menu item does when picked
type ItemKind int

const (
	ItemEvent ItemKind = iota
	ItemAdvance
	ItemPhone
)

// MenuItem is one decision offered in an active slot
type MenuItem struct {
	Label   string
	Kind    ItemKind
	EventID string
}

// A character whose line is complete no longer shows up in menus
var completionFlags = map[string]string{
	"chen":   ending.FlagChen,
	"lin":    ending.FlagLin,
	"hacker": ending.FlagHacker,
	"luyan":  ending.FlagLuyan,
}

// character returns the character of an event id of the form evt_<char>_...
func character(eventID string) string {
	rest, ok := strings.CutPrefix(eventID, "evt_")
	if !ok {
		return ""
	}
	char, _, ok := strings.Cut(rest, "_")
	if !ok {
		return ""
	}
	return char
}

// Menu builds the decision list of an active slot. Later entries take
// precedence when two resolve to the same label.
func (g *Game) Menu(day int, slotID string) []MenuItem {
	entries := g.content.Schedule().Entries(day, slotID)
	if len(entries) == 0 {
		return []MenuItem{{Label: g.tt("自由活动", "Free Time"), Kind: ItemAdvance}}
	}

	seenToday := make(map[string]bool)
	for _, id := range g.store.DailyEvents() {
		if c := character(id); c != "" {
			seenToday[c] = true
		}
	}

	var items []MenuItem
	labels := make(map[string]bool)
	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		if !conditionals.Evaluate(entry.Requires, g.store) {
			continue
		}

		label := g.text(entry.Name)
		if label == "" {
			label = g.text(entry.Location)
		}

		if entry.EventID != "" {
			if g.store.ExecutedToday(entry.EventID) {
				continue
			}
			if c := character(entry.EventID); c != "" {
				if flag, ok := completionFlags[c]; ok && g.store.HasFlag(flag) {
					continue
				}
				// One scene per character per day
				if seenToday[c] {
					continue
				}
			}
			if ev, ok := g.content.Event(entry.EventID); ok {
				if !conditionals.Evaluate(ev.Requires, g.store) {
					continue
				}
				if title := g.text(ev.Title); title != "" {
					label = title
				}
			}
		}

		if label == "" || labels[label] {
			continue
		}
		labels[label] = true
		items = append(items, MenuItem{Label: label, Kind: ItemEvent, EventID: entry.EventID})
	}

	if len(items) == 0 {
		return []MenuItem{{Label: g.tt("休息", "Rest"), Kind: ItemAdvance}}
	}
	return items
}

// menuWithPhone appends the phone entry when the inbox holds anything
func (g *Game) menuWithPhone(day int, slotID string) []MenuItem {
	items := g.Menu(day, slotID)
	inbox := g.store.InboxItems()
	if len(inbox) == 0 {
		return items
	}
	unread := 0
	for _, it := range inbox {
		if it.Status == state.InboxUnread {
			unread++
		}
	}
	label := g.tt("手机", "Phone")
	if unread > 0 {
		label = fmt.Sprintf("%s (%d)", label, unread)
	}
	return append(items, MenuItem{Label: label, Kind: ItemPhone})
}

// RunEvent plays eventID over the live store. A missing event does nothing
// and lets time advance.
func (g *Game) RunEvent(ctx context.Context, eventID string) (interpreter.Outcome, error) {
	ev, ok := g.content.Event(eventID)
	if !ok {
		if eventID != "" {
			g.logger.Warn("Event not found", "event_id", eventID)
		}
		return interpreter.Outcome{Status: interpreter.Continue}, nil
	}

	g.logger.Info("Running event", "event_id", eventID)
	g.store.BeginEvent(eventID)
	out, err := g.newInterpreter(g.ui).Execute(ctx, ev.Script)
	g.skip.Disable()
	if err != nil {
		return out, fmt.Errorf("event %s: %w", eventID, err)
	}
	return out, nil
}
