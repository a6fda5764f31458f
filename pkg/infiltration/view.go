package infiltration

import "strconv"

// Fog is the visibility of one element
type Fog string

const (
	FogVisible Fog = "visible"
	FogDimmed  Fog = "dimmed"
	FogHidden  Fog = "hidden"
)

// FogView holds the visibility of every element around the player
type FogView struct {
	Elements map[string]Fog `json:"elements"`
	Links    map[string]Fog `json:"links"`
	Guards   map[string]Fog `json:"guards"`
}

// Fog computes visibility at radius around the player. Static elements and
// links are dimmed beyond the radius; guards are hidden beyond it unless
// they are hunting.
func (e *Engine) Fog(radius float64) FogView {
	if radius <= 0 {
		radius = e.cfg.FogRadius
	}
	p := e.player.pos
	view := FogView{
		Elements: make(map[string]Fog),
		Links:    make(map[string]Fog),
		Guards:   make(map[string]Fog),
	}
	for i, el := range e.level.Elements {
		if el.Type == ElementGuard {
			continue
		}
		key := el.ID
		if key == "" {
			key = elementKey(el.Type, i)
		}
		view.Elements[key] = dimBeyond(p.Dist(el.Pos()), radius)
	}
	for _, l := range e.level.Links {
		from, ok1 := e.level.Node(l.From)
		to, ok2 := e.level.Node(l.To)
		if !ok1 || !ok2 {
			continue
		}
		mid := from.Pos().Lerp(to.Pos(), 0.5)
		view.Links[l.ID] = dimBeyond(p.Dist(mid), radius)
	}
	for _, g := range e.guards {
		switch {
		case g.State == GuardHunt:
			view.Guards[g.ID] = FogVisible
		case p.Dist(g.Pos) > radius:
			view.Guards[g.ID] = FogHidden
		default:
			view.Guards[g.ID] = FogVisible
		}
	}
	return view
}

func dimBeyond(dist, radius float64) Fog {
	if dist > radius {
		return FogDimmed
	}
	return FogVisible
}

func elementKey(kind string, i int) string {
	return kind + "#" + strconv.Itoa(i)
}

// Action is one link the player may act on from the current node
type Action struct {
	LinkID      string  `json:"linkId"`
	To          string  `json:"to"`
	Interaction string  `json:"interaction"`
	Cost        float64 `json:"cost"`
	Stealthy    bool    `json:"stealthy"`
	Enabled     bool    `json:"enabled"`
	Progress    float64 `json:"progress,omitempty"`
}

// Actions lists the links leaving the player's node as the session sees them
func (e *Engine) Actions() []Action {
	links := e.level.Outgoing(e.player.nodeID)
	out := make([]Action, 0, len(links))
	for _, l := range links {
		l = e.effective(l)
		out = append(out, Action{
			LinkID:      l.ID,
			To:          l.To,
			Interaction: l.Interaction,
			Cost:        l.Cost,
			Stealthy:    l.Stealthy(),
			Enabled:     l.Interaction == InteractionHack || e.passable(l),
			Progress:    e.ov.linkProgress[l.ID],
		})
	}
	return out
}

// GuardView is a guard as sent to renderers
type GuardView struct {
	ID    string     `json:"id"`
	Pos   Point      `json:"pos"`
	State GuardState `json:"state"`
}

// Frame is a render snapshot of the session
type Frame struct {
	LevelID   string      `json:"levelId"`
	At        float64     `json:"at"`
	NodeID    string      `json:"nodeId"`
	Player    Point       `json:"player"`
	State     PlayerState `json:"state"`
	Guards    []GuardView `json:"guards"`
	Inventory []string    `json:"inventory"`
	Panic     bool        `json:"panic"`
	Over      bool        `json:"over"`
	Won       bool        `json:"won"`
	Actions   []Action    `json:"actions"`
	Fog       FogView     `json:"fog"`
}

// Frame captures the current state for rendering
func (e *Engine) Frame() Frame {
	guards := make([]GuardView, len(e.guards))
	for i, g := range e.guards {
		guards[i] = GuardView{ID: g.ID, Pos: g.Pos, State: g.State}
	}
	return Frame{
		LevelID:   e.level.ID,
		At:        e.now,
		NodeID:    e.player.nodeID,
		Player:    e.player.pos,
		State:     e.player.state,
		Guards:    guards,
		Inventory: e.Inventory(),
		Panic:     e.panic,
		Over:      e.over,
		Won:       e.won,
		Actions:   e.Actions(),
		Fog:       e.Fog(0),
	}
}
