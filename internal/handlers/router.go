package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AshramC/YXZX-ARG/internal/config"
	"github.com/AshramC/YXZX-ARG/internal/services/events"
	"github.com/AshramC/YXZX-ARG/pkg/content"
	"github.com/AshramC/YXZX-ARG/pkg/save"
	"github.com/AshramC/YXZX-ARG/pkg/storage"
)

// Deps is everything the HTTP surface needs
type Deps struct {
	Config *config.Config
	KV     storage.KV
	Saves  *save.Manager
	Loader *content.Loader
	// Broadcaster is optional; infiltration events are also relayed over
	// Redis Pub/Sub when set
	Broadcaster events.Publisher
	Logger      *slog.Logger
}

// NewRouter registers every route
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(d.Logger))
	r.Use(corsMiddleware())

	health := NewHealthHandler(d.KV, d.Logger)
	r.GET("/health", health.Check)

	v1 := r.Group("/v1")
	{
		saves := NewSaveHandler(d.Saves, d.Logger)
		v1.GET("/saves/:scope", saves.Get)
		v1.DELETE("/saves/:scope", saves.Delete)
		v1.GET("/badges", saves.Badges)

		contentHandler := NewContentHandler(d.Loader, d.Logger)
		v1.GET("/content/languages", contentHandler.Languages)
		v1.GET("/content/:lang/problems", contentHandler.Problems)
	}

	ws := r.Group("/ws")
	{
		campusHandler := NewCampusHandler(d.Loader, d.Saves, d.Config.LangDefault, d.Logger)
		ws.GET("/campus", campusHandler.Serve)

		infiltrationHandler := NewInfiltrationHandler(d.Loader, d.Saves, d.Config, d.Broadcaster, d.Logger)
		ws.GET("/infiltration", infiltrationHandler.Serve)
	}

	return r
}

// RequestLogger logs one line per request
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"remote_addr", c.ClientIP())
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Origin")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, DELETE, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
