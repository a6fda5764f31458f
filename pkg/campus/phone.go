package campus

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/AshramC/YXZX-ARG/pkg/conditionals"
	"github.com/AshramC/YXZX-ARG/pkg/content"
	"github.com/AshramC/YXZX-ARG/pkg/interpreter"
	"github.com/AshramC/YXZX-ARG/pkg/script"
	"github.com/AshramC/YXZX-ARG/pkg/state"
)

// ExpireAtDayEnd keeps a thread open until the day is over
const ExpireAtDayEnd = "day_end"

// SystemSpeaker is the speaker of inbox notices
const SystemSpeaker = "System"

// Contacts whose story line boosts their messages on a day their scene ran
var contactLines = map[string]string{
	"陈雨菲":  "evt_chen",
	"林浩":   "evt_lin",
	"陆言":   "evt_luyan",
	"匿名黑客": "evt_hacker",
}

const (
	lineBonus    = 100
	friendBonus  = 50
	friendFilter = "张晨"
)

// contactID names the inbox item of a contact
func contactID(contact string) string {
	return "contact_" + contact
}

// receive delivers the best phone thread of a trigger into the inbox. It
// returns the item when the thread opens on its own.
func (g *Game) receive(triggerID string) *state.InboxItem {
	threads := g.content.Phone(triggerID)
	if len(threads) == 0 {
		return nil
	}

	type candidate struct {
		index int
		score int
	}
	daily := g.store.DailyEvents()
	var cands []candidate
	for i := range threads {
		th := &threads[i]
		if th.NotTriggerIf != nil && conditionals.Evaluate(th.NotTriggerIf, g.store) {
			continue
		}
		if gate := th.Gate(); gate != nil && !conditionals.Evaluate(gate, g.store) {
			continue
		}
		cands = append(cands, candidate{index: i, score: g.threadScore(th, daily)})
	}
	if len(cands) == 0 {
		return nil
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].score > cands[j].score })

	best := cands[0]
	th := threads[best.index]
	day, _ := g.store.Clock()
	item := state.InboxItem{
		ID:         contactID(th.Contact),
		TriggerID:  triggerID,
		Candidate:  best.index,
		Contact:    th.Contact,
		Status:     state.InboxUnread,
		CreateDay:  day,
		ExpireSlot: th.Expire,
	}
	g.store.UpsertInbox(item)
	g.logger.Debug("Phone message received", "trigger", triggerID, "contact", th.Contact, "score", best.score)

	if !th.AutoTrigger {
		return nil
	}
	return &item
}

func (g *Game) threadScore(th *content.Thread, daily []string) int {
	score := th.Priority
	if prefix, ok := contactLines[th.Contact]; ok {
		for _, id := range daily {
			if strings.HasPrefix(id, prefix) {
				score += lineBonus
				break
			}
		}
	}
	if th.Contact == friendFilter {
		score += friendBonus
	}
	return score
}

// checkExpiration expires threads left from earlier days and threads whose
// expiry slot has come
func (g *Game) checkExpiration(day int, slotID string) {
	g.store.UpdateInbox(func(it *state.InboxItem) {
		if it.Status == state.InboxReplied || it.Status == state.InboxExpired {
			return
		}
		expired := day > it.CreateDay
		if !expired && it.ExpireSlot != "" && it.ExpireSlot != ExpireAtDayEnd {
			expired = day == it.CreateDay && slotID == it.ExpireSlot
		}
		if expired {
			it.Status = state.InboxExpired
		}
	})
}

// thread returns the content of an inbox item
func (g *Game) thread(item state.InboxItem) (*content.Thread, bool) {
	threads := g.content.Phone(item.TriggerID)
	if item.Candidate < 0 || item.Candidate >= len(threads) {
		return nil, false
	}
	return &threads[item.Candidate], true
}

func (g *Game) inboxItem(uid string) (state.InboxItem, bool) {
	for _, it := range g.store.InboxItems() {
		if it.ID == uid {
			return it, true
		}
	}
	return state.InboxItem{}, false
}

func (g *Game) setStatus(uid, status string) {
	g.store.UpdateInbox(func(it *state.InboxItem) {
		if it.ID == uid {
			it.Status = status
		}
	})
}

// OpenThread shows an inbox thread. Unread threads become read; a reply
// closes the conversation.
func (g *Game) OpenThread(ctx context.Context, uid string) error {
	item, ok := g.inboxItem(uid)
	if !ok {
		return fmt.Errorf("inbox item %s not found", uid)
	}
	th, ok := g.thread(item)
	if !ok {
		g.logger.Warn("Phone thread content missing", "uid", uid, "trigger", item.TriggerID)
		return nil
	}

	switch item.Status {
	case state.InboxExpired:
		return g.ui.ShowDialog(ctx, interpreter.DialogLine{Speaker: SystemSpeaker, Text: g.tt("消息已过期。", "Message Expired.")})
	case state.InboxReplied:
		return g.ui.ShowDialog(ctx, interpreter.DialogLine{Speaker: SystemSpeaker, Text: g.tt("对话已结束。", "Conversation Ended.")})
	case state.InboxUnread:
		g.setStatus(uid, state.InboxRead)
		if th.NotTriggerIf != nil && th.NotTriggerIf.Flag != "" {
			g.store.AddFlag(th.NotTriggerIf.Flag)
		}
	}

	lines := ThreadScript(th.Contact, th.Messages, !g.skip.Active())
	ui := &replyUI{UI: g.ui, onReply: func() { g.setStatus(uid, state.InboxReplied) }}
	_, err := g.newInterpreter(ui).Execute(ctx, lines)
	return err
}

// ThreadScript turns phone messages into a script. Messages following a
// reply are played after the reply's own follow-up.
func ThreadScript(contact string, msgs []content.Message, delays bool) script.Script {
	var out script.Script
	for i, m := range msgs {
		if delays && m.Delay > 0 {
			out = append(out, script.Wait{Duration: time.Duration(m.Delay) * time.Millisecond})
		}
		switch m.Type {
		case content.MessageReceived:
			out = append(out, script.Dialog{Speaker: contact, Text: m.Text})
		case content.MessageSystem:
			out = append(out, script.Dialog{Speaker: SystemSpeaker, Text: m.Text})
		case content.MessageReply:
			rest := ThreadScript(contact, msgs[i+1:], delays)
			choice := script.Choice{Options: make([]script.Option, len(m.Options))}
			for j, r := range m.Options {
				next := append(ThreadScript(contact, r.Next, delays), rest...)
				choice.Options[j] = script.Option{
					Text:     r.Label,
					Requires: r.Requirements,
					Effect:   r.Effect,
					Reward:   r.Reward,
					Next:     next,
				}
			}
			// With no option available the thread continues past the reply
			return append(append(out, choice), rest...)
		}
	}
	return out
}

// replyUI marks the thread replied as soon as the player picks an answer
type replyUI struct {
	interpreter.UI
	onReply func()
}

func (r *replyUI) Choose(ctx context.Context, labels []string) (int, error) {
	idx, err := r.UI.Choose(ctx, labels)
	if err == nil {
		r.onReply()
	}
	return idx, err
}

// phoneMenu lists the inbox until the player goes back
func (g *Game) phoneMenu(ctx context.Context) error {
	for {
		inbox := g.store.InboxItems()
		labels := make([]string, 0, len(inbox)+1)
		for _, it := range inbox {
			labels = append(labels, g.inboxLabel(it))
		}
		labels = append(labels, g.tt("返回", "Back"))

		picked, err := g.ui.Choose(ctx, labels)
		if err != nil {
			return err
		}
		if picked < 0 || picked >= len(inbox) {
			return nil
		}
		if err := g.OpenThread(ctx, inbox[picked].ID); err != nil {
			return err
		}
	}
}

func (g *Game) inboxLabel(it state.InboxItem) string {
	name := g.speaker(it.Contact)
	switch it.Status {
	case state.InboxUnread:
		return name + " [" + g.tt("新", "NEW") + "]"
	case state.InboxExpired:
		return name + " [" + g.tt("过期", "EXPIRED") + "]"
	case state.InboxReplied:
		return name + " ✔"
	}
	return name
}
