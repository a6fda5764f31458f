package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/AshramC/YXZX-ARG/internal/services/events"
)

// watch prints the events of one infiltration session as the server relays
// them over Redis Pub/Sub.
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <session_id>\n", os.Args[0])
		os.Exit(1)
	}
	sessionID, err := uuid.Parse(os.Args[1])
	if err != nil {
		log.Fatal("Invalid session id:", err)
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: redisURL})
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	fmt.Printf("Watching %s\n", events.Channel(sessionID))

	b := events.NewBroadcaster(client, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	out := make(chan events.Event, 64)
	errs := make(chan error, 1)
	go func() {
		errs <- b.Subscribe(ctx, sessionID, out)
	}()

	for {
		select {
		case ev := <-out:
			if ev.RequestID != "" {
				fmt.Printf("%-22s %s %s\n", ev.Type, ev.RequestID, ev.Data)
			} else {
				fmt.Printf("%-22s %s\n", ev.Type, ev.Data)
			}
			if ev.Type == events.EventTypeSessionEnded {
				return
			}
		case err := <-errs:
			if err != nil {
				log.Fatal(err)
			}
			return
		}
	}
}
