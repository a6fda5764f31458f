// Package infiltration simulates the node-graph stealth levels: player
// traversal, hacking, searching, guard patrols, detection and fog.
package infiltration

import (
	"fmt"
	"math"
	"sync"

	"github.com/AshramC/YXZX-ARG/pkg/i18n"
)

// Element kinds in a level definition
const (
	ElementNode     = "node"
	ElementGuard    = "guard"
	ElementZone     = "zone"
	ElementObstacle = "obstacle"
)

// Node types
const (
	NodePlain      = "plain"
	NodeExit       = "exit"
	NodeMiniGame   = "minigame"
	NodeSearchable = "searchable"
)

// Link interactions
const (
	InteractionNone   = "none"
	InteractionKey    = "key"
	InteractionLocked = "locked"
	InteractionHack   = "hack"
)

// Default map width when a level omits it
const defaultWidth = 1000

// Point is a position in percent of the map size
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Dist returns the Euclidean distance between p and q
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Lerp interpolates from p toward q by t in [0,1]
func (p Point) Lerp(q Point, t float64) Point {
	return Point{X: p.X + (q.X-p.X)*t, Y: p.Y + (q.Y-p.Y)*t}
}

// SearchConfig makes a node searchable
type SearchConfig struct {
	Cost    float64 `json:"cost" yaml:"cost"`
	Loot    string  `json:"loot,omitempty" yaml:"loot,omitempty"`
	OneTime bool    `json:"oneTime,omitempty" yaml:"oneTime,omitempty"`
	Noisy   bool    `json:"noisy,omitempty" yaml:"noisy,omitempty"`
}

// Element is one entry of a level: a node, guard, zone or obstacle
type Element struct {
	Type         string        `json:"type" yaml:"type"`
	ID           string        `json:"id,omitempty" yaml:"id,omitempty"`
	X            float64       `json:"x" yaml:"x"`
	Y            float64       `json:"y" yaml:"y"`
	W            float64       `json:"w,omitempty" yaml:"w,omitempty"`
	H            float64       `json:"h,omitempty" yaml:"h,omitempty"`
	NodeType     string        `json:"nodeType,omitempty" yaml:"nodeType,omitempty"`
	Loot         string        `json:"loot,omitempty" yaml:"loot,omitempty"`
	Thought      i18n.Text     `json:"thought,omitempty" yaml:"thought,omitempty"`
	Msg          i18n.Text     `json:"msg,omitempty" yaml:"msg,omitempty"`
	MiniGameID   string        `json:"minigameId,omitempty" yaml:"minigameId,omitempty"`
	MiniGameName i18n.Text     `json:"minigameName,omitempty" yaml:"minigameName,omitempty"`
	Search       *SearchConfig `json:"search,omitempty" yaml:"search,omitempty"`
	PatrolPath   []string      `json:"patrolPath,omitempty" yaml:"patrolPath,omitempty"`
}

// Pos returns the element position
func (e Element) Pos() Point {
	return Point{X: e.X, Y: e.Y}
}

// Link is a directed edge between two nodes
type Link struct {
	ID          string    `json:"id" yaml:"id"`
	From        string    `json:"from" yaml:"from"`
	To          string    `json:"to" yaml:"to"`
	Cost        float64   `json:"cost" yaml:"cost"` // seconds
	IsHidden    bool      `json:"isHidden,omitempty" yaml:"isHidden,omitempty"`
	Interaction string    `json:"interaction,omitempty" yaml:"interaction,omitempty"`
	ParamID     string    `json:"paramId,omitempty" yaml:"paramId,omitempty"` // item required by key links
	BtnText     i18n.Text `json:"btnText,omitempty" yaml:"btnText,omitempty"`
}

// Stealthy reports whether traversal suppresses noise detection
func (l Link) Stealthy() bool {
	return l.IsHidden
}

// Level is an immutable level template. Runtime changes live in the
// engine's overlay and never touch the template.
type Level struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Width     float64   `json:"width,omitempty" yaml:"width,omitempty"`
	Height    float64   `json:"height,omitempty" yaml:"height,omitempty"`
	NextLevel string    `json:"nextLevel,omitempty" yaml:"nextLevel,omitempty"`
	Elements  []Element `json:"elements" yaml:"elements"`
	Links     []Link    `json:"links" yaml:"links"`

	once     sync.Once
	nodes    map[string]int
	links    map[string]int
	outgoing map[string][]int
}

func (l *Level) index() {
	l.once.Do(func() {
		l.nodes = make(map[string]int)
		l.links = make(map[string]int)
		l.outgoing = make(map[string][]int)
		for i, el := range l.Elements {
			if el.Type == ElementNode {
				if _, dup := l.nodes[el.ID]; !dup {
					l.nodes[el.ID] = i
				}
			}
		}
		for i, link := range l.Links {
			l.links[link.ID] = i
			l.outgoing[link.From] = append(l.outgoing[link.From], i)
		}
	})
}

// Node returns the node element with id
func (l *Level) Node(id string) (Element, bool) {
	l.index()
	i, ok := l.nodes[id]
	if !ok {
		return Element{}, false
	}
	return l.Elements[i], true
}

// Link returns the link with id
func (l *Level) Link(id string) (Link, bool) {
	l.index()
	i, ok := l.links[id]
	if !ok {
		return Link{}, false
	}
	return l.Links[i], true
}

// Outgoing returns the links leaving node id, in definition order
func (l *Level) Outgoing(id string) []Link {
	l.index()
	idx := l.outgoing[id]
	out := make([]Link, len(idx))
	for i, j := range idx {
		out[i] = l.Links[j]
	}
	return out
}

// StartNode returns the first node of the level
func (l *Level) StartNode() (Element, bool) {
	for _, el := range l.Elements {
		if el.Type == ElementNode {
			return el, true
		}
	}
	return Element{}, false
}

// FindNodeType returns the first node of the given type
func (l *Level) FindNodeType(nodeType string) (Element, bool) {
	for _, el := range l.Elements {
		if el.Type == ElementNode && el.NodeType == nodeType {
			return el, true
		}
	}
	return Element{}, false
}

// NoiseRadius scales the standard noise distance of 125 pixels to the
// level's percent coordinates.
func (l *Level) NoiseRadius(noisePixels float64) float64 {
	w := l.Width
	if w <= 0 {
		w = defaultWidth
	}
	return noisePixels / w * 100
}

// Validate reports dangling references inside the level
func (l *Level) Validate() []error {
	l.index()
	var errs []error
	if _, ok := l.StartNode(); !ok {
		errs = append(errs, fmt.Errorf("level %s: no nodes", l.ID))
	}
	for _, link := range l.Links {
		if _, ok := l.nodes[link.From]; !ok {
			errs = append(errs, fmt.Errorf("level %s: link %s: unknown from node %q", l.ID, link.ID, link.From))
		}
		if _, ok := l.nodes[link.To]; !ok {
			errs = append(errs, fmt.Errorf("level %s: link %s: unknown to node %q", l.ID, link.ID, link.To))
		}
		switch link.Interaction {
		case "", InteractionNone, InteractionLocked, InteractionHack:
		case InteractionKey:
			if link.ParamID == "" {
				errs = append(errs, fmt.Errorf("level %s: link %s: key link without paramId", l.ID, link.ID))
			}
		default:
			errs = append(errs, fmt.Errorf("level %s: link %s: unknown interaction %q", l.ID, link.ID, link.Interaction))
		}
	}
	for _, el := range l.Elements {
		if el.Type != ElementGuard {
			continue
		}
		for _, id := range el.PatrolPath {
			if _, ok := l.nodes[id]; !ok {
				errs = append(errs, fmt.Errorf("level %s: guard %s: unknown patrol node %q", l.ID, el.ID, id))
			}
		}
	}
	return errs
}

// Library holds level templates by id
type Library map[string]*Level

// Get returns the level with id
func (lib Library) Get(id string) (*Level, bool) {
	l, ok := lib[id]
	return l, ok && l != nil
}

// FirstNode returns the start node id of level id
func (lib Library) FirstNode(id string) (string, bool) {
	l, ok := lib.Get(id)
	if !ok {
		return "", false
	}
	n, ok := l.StartNode()
	return n.ID, ok
}
