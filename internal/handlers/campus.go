package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AshramC/YXZX-ARG/internal/bridge"
	"github.com/AshramC/YXZX-ARG/internal/logger"
	"github.com/AshramC/YXZX-ARG/pkg/campus"
	"github.com/AshramC/YXZX-ARG/pkg/content"
	"github.com/AshramC/YXZX-ARG/pkg/save"
)

// CampusHandler runs one campus story per WebSocket connection
type CampusHandler struct {
	loader      *content.Loader
	saves       *save.Manager
	defaultLang string
	logger      *slog.Logger
}

func NewCampusHandler(loader *content.Loader, saves *save.Manager, defaultLang string, logger *slog.Logger) *CampusHandler {
	return &CampusHandler{loader: loader, saves: saves, defaultLang: defaultLang, logger: logger}
}

// Serve upgrades the connection and plays the campus story over it.
// Query parameters: lang, reset=1 to start over, simulate=<scenario> to
// jump straight to an ending, cinematic=local to play the ending show on
// the server and stream its stage commands.
func (h *CampusHandler) Serve(c *gin.Context) {
	lang := c.DefaultQuery("lang", h.defaultLang)
	bundle, err := h.loader.Load(lang)
	if err != nil {
		h.logger.Error("Failed to load campus content", "lang", lang, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-conn.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	log := logger.WithComponent(h.logger, "campus").With("lang", bundle.Lang)
	opts := []campus.Option{
		campus.WithSaves(h.saves),
		campus.WithMiniGames(bridge.NewMiniGames(conn)),
		campus.WithCinematic(bridge.NewCinematic(conn)),
		campus.WithLogger(log),
	}
	if c.Query("cinematic") == "local" {
		opts = append(opts, campus.WithLocalEnding(bridge.NewStage(conn, 1, log)))
	}
	game, err := campus.New(bundle, bridge.NewUI(conn), opts...)
	if err != nil {
		h.fail(conn, err)
		return
	}
	go h.relaySkip(ctx, conn, game)

	if scenario := c.Query("simulate"); scenario != "" {
		outcome, err := game.Simulate(ctx, scenario)
		if err != nil {
			h.fail(conn, err)
			return
		}
		_ = conn.Send(bridge.TypeResult, gin.H{"ended": true, "outcome": outcome})
		return
	}

	if c.Query("reset") == "1" {
		err = game.Reset(ctx)
	} else {
		var resumed bool
		resumed, err = game.Boot(ctx)
		log.Info("Campus booted", "resumed", resumed)
	}
	if err != nil {
		h.fail(conn, err)
		return
	}

	res, err := game.Run(ctx)
	if err != nil {
		h.fail(conn, err)
		return
	}
	_ = conn.Send(bridge.TypeResult, gin.H{
		"demoEnd": res.DemoEnd,
		"ended":   res.Ended,
		"outcome": res.Outcome,
	})
}

// relaySkip toggles skip mode when the browser asks for it
func (h *CampusHandler) relaySkip(ctx context.Context, conn *bridge.Conn, game *campus.Game) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-conn.Inbound():
			if msg.Type != bridge.TypeSkip {
				continue
			}
			active := game.SkipMode().Toggle()
			_ = conn.Send(bridge.TypeSkip, gin.H{"active": active})
		}
	}
}

func (h *CampusHandler) fail(conn *bridge.Conn, err error) {
	if errors.Is(err, bridge.ErrClosed) || errors.Is(err, context.Canceled) {
		h.logger.Info("Campus session closed by client")
		return
	}
	h.logger.Error("Campus session failed", "error", err)
	_ = conn.Send(bridge.TypeError, gin.H{"error": err.Error()})
}
