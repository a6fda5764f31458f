package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AshramC/YXZX-ARG/pkg/ending"
	"github.com/AshramC/YXZX-ARG/pkg/save"
)

// SaveResponse is a snapshot plus a human readable age for the title screen
type SaveResponse struct {
	*save.Snapshot
	Lockdown bool   `json:"locked"`
	TimeAgo  string `json:"timeAgo"`
}

type SaveHandler struct {
	saves  *save.Manager
	logger *slog.Logger
}

func NewSaveHandler(saves *save.Manager, logger *slog.Logger) *SaveHandler {
	return &SaveHandler{saves: saves, logger: logger}
}

// Get returns the save of a scope or 404
func (h *SaveHandler) Get(c *gin.Context) {
	scope := c.Param("scope")
	snap, ok := h.saves.Load(c.Request.Context(), scope)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no save", "scope": scope})
		return
	}
	c.JSON(http.StatusOK, SaveResponse{
		Snapshot: snap,
		Lockdown: snap.Locked(),
		TimeAgo:  save.FormatTimeAgo(snap.Time(), time.Now()),
	})
}

// Delete clears the save of a scope
func (h *SaveHandler) Delete(c *gin.Context) {
	scope := c.Param("scope")
	if err := h.saves.Clear(c.Request.Context(), scope); err != nil {
		h.logger.Error("Failed to clear save", "scope", scope, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear save"})
		return
	}
	h.logger.Info("Save cleared", "scope", scope)
	c.Status(http.StatusNoContent)
}

// Badges reports which global badges are set. The campus wall reads
// WALL_SPECIAL_MODE from here to reveal removed posts.
func (h *SaveHandler) Badges(c *gin.Context) {
	ctx := c.Request.Context()
	badges := make(map[string]bool, len(ending.Badges))
	for _, key := range ending.Badges {
		badges[key] = h.saves.HasBadge(ctx, key)
	}
	c.JSON(http.StatusOK, gin.H{"badges": badges})
}
