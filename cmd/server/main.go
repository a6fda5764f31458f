package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AshramC/YXZX-ARG/internal/config"
	"github.com/AshramC/YXZX-ARG/internal/handlers"
	"github.com/AshramC/YXZX-ARG/internal/logger"
	"github.com/AshramC/YXZX-ARG/internal/services/events"
	"github.com/AshramC/YXZX-ARG/internal/storage"
	"github.com/AshramC/YXZX-ARG/pkg/content"
	"github.com/AshramC/YXZX-ARG/pkg/save"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting YXZX ARG server",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"store_backend", cfg.StoreBackend,
		"data_dir", cfg.DataDir,
		"lang_default", cfg.LangDefault)

	storeCtx, storeCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storeCancel()
	kv, err := storage.Open(storeCtx, cfg, log)
	if err != nil {
		log.Error("Failed to open save store", "error", err)
		os.Exit(1)
	}
	log.Info("Save store ready", "backend", cfg.StoreBackend)

	loader := content.NewLoader(cfg.DataDir, cfg.LangDefault, log)
	if _, err := loader.Load(cfg.LangDefault); err != nil {
		log.Error("Default language content is unusable", "lang", cfg.LangDefault, "error", err)
		os.Exit(1)
	}

	var broadcaster events.Publisher
	if r, ok := kv.(*storage.RedisKV); ok {
		broadcaster = events.NewBroadcaster(r.Client(), log)
		log.Info("Relaying infiltration events over Redis Pub/Sub")
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(handlers.Deps{
		Config:      cfg,
		KV:          kv,
		Saves:       save.NewManager(kv, save.WithLogger(log)),
		Loader:      loader,
		Broadcaster: broadcaster,
		Logger:      log,
	})

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: WebSocket sessions are long-lived
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	if err := kv.Close(); err != nil {
		log.Error("Error closing save store", "error", err)
	}

	log.Info("Server exited")
}
