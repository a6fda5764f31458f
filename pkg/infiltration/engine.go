package infiltration

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

// ErrIllegalAction is returned for commands the current state does not allow
var ErrIllegalAction = errors.New("illegal action")

// PlayerState is the player's traversal state
type PlayerState string

const (
	PlayerIdle      PlayerState = "IDLE"
	PlayerMoving    PlayerState = "MOVING"
	PlayerHacking   PlayerState = "HACKING"
	PlayerSearching PlayerState = "SEARCHING"
)

// GuardState is a guard's behavior mode
type GuardState string

const (
	GuardPatrol GuardState = "PATROL"
	GuardHunt   GuardState = "HUNT"
)

// Config holds the simulation constants
type Config struct {
	HitRadius      float64 // capture distance
	NoisePixels    float64 // noise distance before scaling by map width
	PatrolSpeed    float64 // percent per second
	HuntSpeed      float64
	GraceWindow    float64 // seconds of invincibility after a stealth detection
	FogRadius      float64
	FleeMultiplier float64 // cost multiplier for panic moves
	MinFleeCost    float64
	DefaultHack    float64 // hack cost when a link has none
	SnapDistance   float64 // patrol waypoint arrival distance
}

// DefaultConfig returns the standard tuning
func DefaultConfig() Config {
	return Config{
		HitRadius:      2.0,
		NoisePixels:    125,
		PatrolSpeed:    10,
		HuntSpeed:      32,
		GraceWindow:    0.8,
		FogRadius:      35,
		FleeMultiplier: 0.7,
		MinFleeCost:    0.5,
		DefaultHack:    5,
		SnapDistance:   0.5,
	}
}

// Guard is a live guard
type Guard struct {
	ID          string
	Pos         Point
	Path        []Point
	TargetIndex int
	State       GuardState
	Speed       float64
}

type player struct {
	nodeID   string // origin while moving
	targetID string
	pos      Point
	state    PlayerState
	link     Link // current link while moving, active link while hacking
	elapsed  float64
	duration float64
}

// overlay holds everything a session changes about the level template
type overlay struct {
	linkProgress   map[string]float64
	converted      map[string]bool
	looted         map[string]bool
	searched       map[string]bool
	searchProgress map[string]float64
}

func newOverlay() overlay {
	return overlay{
		linkProgress:   make(map[string]float64),
		converted:      make(map[string]bool),
		looted:         make(map[string]bool),
		searched:       make(map[string]bool),
		searchProgress: make(map[string]float64),
	}
}

// Engine runs one level for one session. It is not safe for concurrent use:
// all commands go through Handle from a single goroutine.
type Engine struct {
	cfg    Config
	level  *Level
	ov     overlay
	player player
	guards []*Guard

	inventory       []string
	now             float64
	panic           bool
	invincibleUntil float64
	over            bool
	won             bool
	noiseRadius     float64

	events []Event
	logger *slog.Logger
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithConfig overrides the simulation constants
func WithConfig(cfg Config) EngineOption {
	return func(e *Engine) { e.cfg = cfg }
}

// WithInventory starts the session holding items
func WithInventory(items []string) EngineOption {
	return func(e *Engine) { e.inventory = append([]string(nil), items...) }
}

// WithStartNode resumes the session at a node instead of the level start
func WithStartNode(id string) EngineOption {
	return func(e *Engine) { e.player.nodeID = id }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine loads level and places the player on its start node
func NewEngine(level *Level, opts ...EngineOption) (*Engine, error) {
	if level == nil {
		return nil, errors.New("level is nil")
	}
	e := &Engine{
		cfg:    DefaultConfig(),
		level:  level,
		ov:     newOverlay(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.noiseRadius = level.NoiseRadius(e.cfg.NoisePixels)

	start, ok := level.Node(e.player.nodeID)
	if !ok {
		if e.player.nodeID != "" {
			e.logger.Warn("Resume node not found, using level start", "level_id", level.ID, "node_id", e.player.nodeID)
		}
		start, ok = level.StartNode()
		if !ok {
			return nil, fmt.Errorf("level %s has no nodes", level.ID)
		}
	}
	for _, item := range e.inventory {
		for _, el := range level.Elements {
			if el.Type == ElementNode && el.Loot == item {
				e.ov.looted[el.ID] = true
			}
		}
	}

	for _, el := range level.Elements {
		if el.Type != ElementGuard {
			continue
		}
		g := &Guard{ID: el.ID, Pos: el.Pos(), TargetIndex: 1, State: GuardPatrol, Speed: e.cfg.PatrolSpeed}
		for _, id := range el.PatrolPath {
			if n, ok := level.Node(id); ok {
				g.Path = append(g.Path, n.Pos())
			}
		}
		if len(g.Path) > 0 {
			g.Pos = g.Path[0]
		}
		e.guards = append(e.guards, g)
	}

	e.logger.Info("Level loaded", "level_id", level.ID, "name", level.Name, "guards", len(e.guards))
	e.arrive(start)
	return e, nil
}

// Command is an input to the engine
type Command interface {
	command()
}

// Move starts a traversal along a none or key link
type Move struct{ LinkID string }

// ToggleHack starts hacking a hack link, or cancels the current hack
type ToggleHack struct{ LinkID string }

// ToggleSearch starts searching the current node, or cancels the search
type ToggleSearch struct{}

// Tick advances the simulation by DT seconds
type Tick struct{ DT float64 }

func (Move) command()         {}
func (ToggleHack) command()   {}
func (ToggleSearch) command() {}
func (Tick) command()         {}

// Handle applies one command. It is the only way to mutate the engine.
func (e *Engine) Handle(cmd Command) error {
	if e.over {
		if _, ok := cmd.(Tick); ok {
			return nil
		}
		return fmt.Errorf("session is over: %w", ErrIllegalAction)
	}
	switch c := cmd.(type) {
	case Move:
		return e.move(c.LinkID)
	case ToggleHack:
		return e.toggleHack(c.LinkID)
	case ToggleSearch:
		return e.toggleSearch()
	case Tick:
		e.tick(c.DT)
		return nil
	default:
		return fmt.Errorf("unknown command %T: %w", cmd, ErrIllegalAction)
	}
}

// effective returns link as modified by this session
func (e *Engine) effective(link Link) Link {
	if e.ov.converted[link.ID] {
		link.Interaction = InteractionNone
		link.Cost = 1
	}
	if link.Interaction == "" {
		link.Interaction = InteractionNone
	}
	return link
}

// outgoingLink finds linkID among the links leaving the player's node
func (e *Engine) outgoingLink(linkID string) (Link, error) {
	for _, l := range e.level.Outgoing(e.player.nodeID) {
		if l.ID == linkID {
			return e.effective(l), nil
		}
	}
	return Link{}, fmt.Errorf("link %q does not leave node %q: %w", linkID, e.player.nodeID, ErrIllegalAction)
}

// passable reports whether link can be walked right now
func (e *Engine) passable(link Link) bool {
	switch link.Interaction {
	case InteractionNone:
		return true
	case InteractionKey:
		return e.HasItem(link.ParamID)
	default:
		return false
	}
}

func (e *Engine) move(linkID string) error {
	if e.player.state != PlayerIdle {
		return fmt.Errorf("cannot move while %s: %w", e.player.state, ErrIllegalAction)
	}
	link, err := e.outgoingLink(linkID)
	if err != nil {
		return err
	}
	if !e.passable(link) {
		return fmt.Errorf("link %s is %s: %w", link.ID, link.Interaction, ErrIllegalAction)
	}
	e.startMove(link, link.Cost)
	return nil
}

func (e *Engine) startMove(link Link, cost float64) {
	target, ok := e.level.Node(link.To)
	if !ok {
		e.logger.Warn("Link target not found", "link_id", link.ID, "node_id", link.To)
		return
	}
	if cost <= 0 {
		cost = 1
	}
	e.player.state = PlayerMoving
	e.player.targetID = target.ID
	e.player.link = link
	e.player.elapsed = 0
	e.player.duration = cost
	e.emit(Event{Type: EventMoveStarted, LinkID: link.ID, NodeID: target.ID})
}

func (e *Engine) toggleHack(linkID string) error {
	if e.player.state == PlayerHacking {
		e.emit(Event{Type: EventHackAborted, LinkID: e.player.link.ID, Progress: e.ov.linkProgress[e.player.link.ID]})
		e.player.state = PlayerIdle
		e.player.link = Link{}
		return nil
	}
	if e.player.state != PlayerIdle {
		return fmt.Errorf("cannot hack while %s: %w", e.player.state, ErrIllegalAction)
	}
	link, err := e.outgoingLink(linkID)
	if err != nil {
		return err
	}
	if link.Interaction != InteractionHack {
		return fmt.Errorf("link %s is not hackable: %w", link.ID, ErrIllegalAction)
	}
	e.player.state = PlayerHacking
	e.player.link = link
	e.emit(Event{Type: EventHackStarted, LinkID: link.ID, Progress: e.ov.linkProgress[link.ID]})
	return nil
}

func (e *Engine) toggleSearch() error {
	if e.player.state == PlayerSearching {
		e.emit(Event{Type: EventSearchAborted, NodeID: e.player.nodeID, Progress: e.ov.searchProgress[e.player.nodeID]})
		e.player.state = PlayerIdle
		return nil
	}
	if e.player.state != PlayerIdle {
		return fmt.Errorf("cannot search while %s: %w", e.player.state, ErrIllegalAction)
	}
	node, _ := e.level.Node(e.player.nodeID)
	if node.Search == nil {
		return fmt.Errorf("node %s is not searchable: %w", node.ID, ErrIllegalAction)
	}
	if e.ov.searched[node.ID] {
		return fmt.Errorf("node %s already searched: %w", node.ID, ErrIllegalAction)
	}
	e.player.state = PlayerSearching
	e.emit(Event{Type: EventSearchStarted, NodeID: node.ID, Progress: e.ov.searchProgress[node.ID]})
	return nil
}

func (e *Engine) tick(dt float64) {
	if dt <= 0 {
		return
	}
	e.now += dt
	e.updateGuards(dt)
	e.updatePlayer(dt)
	e.updateHacking(dt)
	e.updateSearch(dt)
	e.checkCollisions()
}

func (e *Engine) updateGuards(dt float64) {
	for _, g := range e.guards {
		var target Point
		if g.State == GuardHunt {
			target = e.player.pos
		} else {
			if len(g.Path) < 2 {
				continue
			}
			target = g.Path[g.TargetIndex]
		}

		dist := g.Pos.Dist(target)
		if dist < e.cfg.SnapDistance {
			if g.State == GuardPatrol {
				g.Pos = target
				g.TargetIndex = (g.TargetIndex + 1) % len(g.Path)
			}
			continue
		}
		step := g.Speed * dt
		if step >= dist {
			g.Pos = target
			continue
		}
		g.Pos = g.Pos.Lerp(target, step/dist)
	}
}

func (e *Engine) updatePlayer(dt float64) {
	if e.player.state == PlayerMoving {
		e.player.elapsed += dt
		from, _ := e.level.Node(e.player.nodeID)
		to, _ := e.level.Node(e.player.targetID)
		progress := e.player.elapsed / e.player.duration
		if progress >= 1 {
			e.arrive(to)
			return
		}
		e.player.pos = from.Pos().Lerp(to.Pos(), progress)
		return
	}
	if e.panic && e.player.state == PlayerIdle && !e.over {
		e.flee()
	}
}

func (e *Engine) updateHacking(dt float64) {
	if e.player.state != PlayerHacking {
		return
	}
	link := e.player.link
	cost := link.Cost
	if cost <= 0 {
		cost = e.cfg.DefaultHack
	}
	e.ov.linkProgress[link.ID] += 100 / cost * dt
	if e.ov.linkProgress[link.ID] < 100 {
		return
	}

	e.ov.linkProgress[link.ID] = 100
	e.ov.converted[link.ID] = true
	e.player.state = PlayerIdle
	e.player.link = Link{}
	e.emit(Event{Type: EventHackComplete, LinkID: link.ID, Progress: 100})
	e.startMove(e.effective(link), 1)
}

func (e *Engine) updateSearch(dt float64) {
	if e.player.state != PlayerSearching {
		return
	}
	node, _ := e.level.Node(e.player.nodeID)
	cfg := node.Search
	cost := cfg.Cost
	if cost <= 0 {
		cost = e.cfg.DefaultHack
	}
	e.ov.searchProgress[node.ID] += 100 / cost * dt
	if e.ov.searchProgress[node.ID] < 100 {
		return
	}

	e.player.state = PlayerIdle
	e.ov.searchProgress[node.ID] = 0
	if cfg.OneTime {
		e.ov.searched[node.ID] = true
	}
	e.emit(Event{Type: EventSearchComplete, NodeID: node.ID, Item: cfg.Loot})
	e.pickUp(node.ID, cfg.Loot)
}

// arrive places the player on node and runs its handler
func (e *Engine) arrive(node Element) {
	e.player.nodeID = node.ID
	e.player.targetID = ""
	e.player.pos = node.Pos()
	e.player.state = PlayerIdle
	e.player.link = Link{}
	e.player.elapsed = 0
	e.player.duration = 0
	e.emit(Event{Type: EventArrived, NodeID: node.ID})

	if node.Loot != "" {
		e.pickUp(node.ID, node.Loot)
	}

	switch node.NodeType {
	case NodeExit:
		e.over = true
		e.won = true
		e.logger.Info("Level complete", "level_id", e.level.ID, "next_level", e.level.NextLevel)
		e.emit(Event{Type: EventWon, NodeID: node.ID, Checkpoint: &Checkpoint{
			LevelID:          e.level.NextLevel,
			Inventory:        e.Inventory(),
			SaveType:         SaveLevelComplete,
			CompletedLevelID: e.level.ID,
		}})
		return
	case NodeMiniGame:
		e.emit(Event{Type: EventCheckpoint, NodeID: node.ID, Checkpoint: &Checkpoint{
			LevelID:   e.level.ID,
			NodeID:    node.ID,
			Inventory: e.Inventory(),
			SaveType:  SaveMiniGameCheckpoint,
		}})
		e.emit(Event{Type: EventMiniGameReady, NodeID: node.ID, GameID: node.MiniGameID})
	case NodeSearchable:
		if node.Search != nil && !e.ov.searched[node.ID] {
			e.emit(Event{Type: EventSearchAvailable, NodeID: node.ID})
		}
	}
	if len(node.Thought) > 0 && !e.panic {
		e.emit(Event{Type: EventThought, NodeID: node.ID, Text: node.Thought})
	}
}

// pickUp adds item once
func (e *Engine) pickUp(nodeID, item string) {
	if item == "" || e.HasItem(item) {
		return
	}
	e.inventory = append(e.inventory, item)
	e.ov.looted[nodeID] = true
	e.emit(Event{Type: EventLoot, NodeID: nodeID, Item: item})
}

func (e *Engine) checkCollisions() {
	invincible := e.now < e.invincibleUntil
	for _, g := range e.guards {
		if e.player.pos.Dist(g.Pos) >= e.cfg.HitRadius {
			continue
		}
		sneaking := e.player.state == PlayerMoving && e.player.link.Stealthy()
		if sneaking && !e.panic {
			e.hunt(g)
			e.invincibleUntil = e.now + e.cfg.GraceWindow
			e.emit(Event{Type: EventAlarm, GuardID: g.ID, Reason: AlarmSpotted})
			e.triggerPanic()
			return
		}
		if !invincible {
			e.over = true
			e.logger.Info("Player captured", "level_id", e.level.ID, "guard_id", g.ID)
			e.emit(Event{Type: EventCaptured, GuardID: g.ID, NodeID: e.player.nodeID})
			return
		}
	}

	if !e.noisy() {
		return
	}
	for _, g := range e.guards {
		if g.State == GuardHunt || e.player.pos.Dist(g.Pos) >= e.noiseRadius {
			continue
		}
		e.hunt(g)
		e.emit(Event{Type: EventAlarm, GuardID: g.ID, Reason: AlarmNoise})
		e.triggerPanic()
	}
}

// noisy reports whether the player's current activity can be heard
func (e *Engine) noisy() bool {
	switch e.player.state {
	case PlayerMoving:
		return !e.player.link.Stealthy()
	case PlayerHacking:
		return true
	case PlayerSearching:
		node, _ := e.level.Node(e.player.nodeID)
		return node.Search != nil && node.Search.Noisy
	}
	return false
}

func (e *Engine) hunt(g *Guard) {
	g.State = GuardHunt
	g.Speed = e.cfg.HuntSpeed
}

func (e *Engine) firstHunter() *Guard {
	for _, g := range e.guards {
		if g.State == GuardHunt {
			return g
		}
	}
	return nil
}

// triggerPanic enters panic mode. A move in flight is turned around when
// the hunter is closer to its destination than to its origin.
func (e *Engine) triggerPanic() {
	if e.panic {
		return
	}
	e.panic = true
	e.logger.Debug("Panic mode", "level_id", e.level.ID)

	if e.player.state != PlayerMoving {
		return
	}
	hunter := e.firstHunter()
	if hunter == nil {
		return
	}
	from, ok1 := e.level.Node(e.player.nodeID)
	to, ok2 := e.level.Node(e.player.targetID)
	if !ok1 || !ok2 {
		return
	}
	if hunter.Pos.Dist(to.Pos()) >= hunter.Pos.Dist(from.Pos()) {
		return
	}
	e.player.nodeID, e.player.targetID = to.ID, from.ID
	e.player.elapsed = e.player.duration - e.player.elapsed
	e.emit(Event{Type: EventReversed, LinkID: e.player.link.ID, NodeID: from.ID})
}

// flee takes the passable link that lands farthest from the hunter, if it
// gains distance at all, at a discounted cost.
func (e *Engine) flee() {
	hunter := e.firstHunter()
	if hunter == nil {
		return
	}
	current := e.player.pos.Dist(hunter.Pos)
	best, bestDist := Link{}, -1.0
	for _, l := range e.level.Outgoing(e.player.nodeID) {
		l = e.effective(l)
		if !e.passable(l) {
			continue
		}
		target, ok := e.level.Node(l.To)
		if !ok {
			continue
		}
		d := target.Pos().Dist(hunter.Pos)
		if d > current && d > bestDist {
			best, bestDist = l, d
		}
	}
	if bestDist < 0 {
		return
	}
	cost := max(e.cfg.MinFleeCost, best.Cost*e.cfg.FleeMultiplier)
	e.startMove(best, cost)
}

func (e *Engine) emit(ev Event) {
	ev.At = e.now
	e.events = append(e.events, ev)
}

// Drain returns and clears the events produced since the last call
func (e *Engine) Drain() []Event {
	out := e.events
	e.events = nil
	return out
}

// HasItem reports whether the player holds item
func (e *Engine) HasItem(item string) bool {
	return slices.Contains(e.inventory, item)
}

// Inventory returns a copy of the held items
func (e *Engine) Inventory() []string {
	return append([]string(nil), e.inventory...)
}

// LevelID returns the id of the loaded level
func (e *Engine) LevelID() string { return e.level.ID }

// State returns the player state
func (e *Engine) State() PlayerState { return e.player.state }

// NodeID returns the node the player stands on, or left from while moving
func (e *Engine) NodeID() string { return e.player.nodeID }

// Position returns the player position
func (e *Engine) Position() Point { return e.player.pos }

// Over reports whether the session ended by capture or win
func (e *Engine) Over() bool { return e.over }

// Won reports whether the player reached an exit
func (e *Engine) Won() bool { return e.won }

// Panicking reports whether panic mode is active
func (e *Engine) Panicking() bool { return e.panic }

// Now returns the simulation clock in seconds
func (e *Engine) Now() float64 { return e.now }

// LinkProgress returns the hack progress of a link in percent
func (e *Engine) LinkProgress(id string) float64 { return e.ov.linkProgress[id] }

// SearchProgress returns the search progress of a node in percent
func (e *Engine) SearchProgress(id string) float64 { return e.ov.searchProgress[id] }

// Guards returns copies of the live guards
func (e *Engine) Guards() []Guard {
	out := make([]Guard, len(e.guards))
	for i, g := range e.guards {
		out[i] = *g
	}
	return out
}
