package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AshramC/YXZX-ARG/internal/bridge"
	"github.com/AshramC/YXZX-ARG/internal/config"
	"github.com/AshramC/YXZX-ARG/internal/logger"
	"github.com/AshramC/YXZX-ARG/internal/services/events"
	"github.com/AshramC/YXZX-ARG/internal/worker"
	"github.com/AshramC/YXZX-ARG/pkg/content"
	"github.com/AshramC/YXZX-ARG/pkg/infiltration"
	"github.com/AshramC/YXZX-ARG/pkg/queue"
	"github.com/AshramC/YXZX-ARG/pkg/save"
)

// InfiltrationHandler runs one map session per WebSocket connection
type InfiltrationHandler struct {
	loader      *content.Loader
	saves       *save.Manager
	policy      save.LockdownPolicy
	startLevel  string
	defaultLang string
	tick        time.Duration
	broadcaster events.Publisher
	logger      *slog.Logger
}

func NewInfiltrationHandler(loader *content.Loader, saves *save.Manager, cfg *config.Config, broadcaster events.Publisher, logger *slog.Logger) *InfiltrationHandler {
	return &InfiltrationHandler{
		loader: loader,
		saves:  saves,
		policy: save.LockdownPolicy{
			UnlockAt:    cfg.LockdownUnlockAt,
			NextLevelID: cfg.LockdownNextLevel,
		},
		startLevel:  cfg.StartLevel,
		defaultLang: cfg.LangDefault,
		tick:        cfg.TickRate,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

type sessionPayload struct {
	SessionID string         `json:"sessionId"`
	Decision  save.Decision  `json:"decision"`
	LevelID   string         `json:"levelId,omitempty"`
	Snapshot  *save.Snapshot `json:"snapshot,omitempty"`
}

// Serve boots the save of a scope and runs the level it points at.
// Query parameters: lang, scope (default main), level for a fresh start.
func (h *InfiltrationHandler) Serve(c *gin.Context) {
	lang := c.DefaultQuery("lang", h.defaultLang)
	scope := c.DefaultQuery("scope", save.MainScope)

	bundle, err := h.loader.Load(lang)
	if err != nil {
		h.logger.Error("Failed to load level content", "lang", lang, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	lib := bundle.Levels()

	boot, err := h.saves.Boot(c.Request.Context(), scope, lib, h.policy)
	if err != nil {
		h.logger.Error("Boot failed", "scope", scope, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	levelID, opts := h.startOptions(c.DefaultQuery("level", h.startLevel), boot)
	level, ok := lib.Get(levelID)
	if boot.Decision != save.DecisionLocked && !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown level", "levelId": levelID})
		return
	}

	ws, err := bridge.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", "error", err)
		return
	}
	conn := bridge.NewConn(ws, h.logger)
	defer conn.Close()
	go func() {
		_ = conn.ReadLoop()
	}()

	sessionID := uuid.New()
	log := logger.WithSession(logger.WithComponent(h.logger, "infiltration"), sessionID.String()).With("scope", scope)

	hello := sessionPayload{SessionID: sessionID.String(), Decision: boot.Decision, LevelID: levelID}
	if boot.Decision == save.DecisionLocked {
		hello.LevelID = ""
		hello.Snapshot = boot.Snapshot
		_ = conn.Send(bridge.TypeSession, hello)
		_ = conn.Send(bridge.TypeResult, gin.H{"outcome": worker.OutcomeLocked})
		return
	}

	engine, err := infiltration.NewEngine(level, append(opts, infiltration.WithLogger(log))...)
	if err != nil {
		log.Error("Failed to start engine", "level_id", levelID, "error", err)
		_ = conn.Send(bridge.TypeError, gin.H{"error": err.Error()})
		return
	}
	if err := conn.Send(bridge.TypeSession, hello); err != nil {
		return
	}

	var publisher events.Publisher = bridge.NewPublisher(conn)
	if h.broadcaster != nil {
		publisher = events.Fanout{publisher, h.broadcaster}
	}

	q := queue.New(queue.DefaultSize)
	w := worker.New(sessionID, engine, q,
		worker.WithSaves(h.saves, scope),
		worker.WithLevels(lib),
		worker.WithMiniGames(bridge.NewMiniGames(conn)),
		worker.WithPublisher(publisher),
		worker.WithTick(h.tick),
		worker.WithLogger(log))

	done := make(chan struct{})
	go h.relayCommands(conn, w, q, sessionID, publisher, done, log)

	err = w.Start()
	close(done)
	if err != nil {
		log.Error("Worker failed", "error", err)
		_ = conn.Send(bridge.TypeError, gin.H{"error": err.Error()})
		return
	}
	res := w.Result()
	_ = conn.Send(bridge.TypeResult, gin.H{"outcome": res.Outcome, "nextLevel": res.NextLevel})
}

// startOptions picks the level and engine options for a boot decision
func (h *InfiltrationHandler) startOptions(requested string, boot save.BootResult) (string, []infiltration.EngineOption) {
	snap := boot.Snapshot
	switch boot.Decision {
	case save.DecisionResume, save.DecisionUnlocked:
		var opts []infiltration.EngineOption
		if snap.NodeID != "" {
			opts = append(opts, infiltration.WithStartNode(snap.NodeID))
		}
		if len(snap.Inventory) > 0 {
			opts = append(opts, infiltration.WithInventory(snap.Inventory))
		}
		return snap.LevelID, opts
	default:
		return requested, nil
	}
}

// relayCommands feeds browser commands into the session queue until the
// worker finishes. A dropped connection stops the worker.
func (h *InfiltrationHandler) relayCommands(conn *bridge.Conn, w *worker.Worker, q *queue.Queue, sessionID uuid.UUID, publisher events.Publisher, done <-chan struct{}, log *slog.Logger) {
	for {
		select {
		case <-done:
			return
		case <-conn.Done():
			w.Stop()
			return
		case msg := <-conn.Inbound():
			if msg.Type != bridge.TypeCommand {
				continue
			}
			req, err := queue.ParseRequest(msg.Payload)
			if err != nil {
				_ = conn.Send(bridge.TypeError, gin.H{"error": err.Error()})
				continue
			}
			req.SessionID = sessionID

			if err := q.Enqueue(req); err != nil {
				log.Warn("Command dropped", "request_id", req.RequestID, "error", err)
				if ev, evErr := events.NewEvent(events.EventTypeRequestFailed, sessionID, gin.H{"error": err.Error()}); evErr == nil {
					ev.RequestID = req.RequestID
					_ = publisher.Publish(context.Background(), sessionID, ev)
				}
				continue
			}
			if ev, err := events.NewEvent(events.EventTypeRequestQueued, sessionID, gin.H{"type": req.Type}); err == nil {
				ev.RequestID = req.RequestID
				if err := publisher.Publish(context.Background(), sessionID, ev); err != nil && !errors.Is(err, bridge.ErrClosed) {
					log.Warn("Failed to publish queued event", "error", err)
				}
			}
		}
	}
}
