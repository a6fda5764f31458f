package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type ConsoleConfig struct {
	APIBaseURL  string
	Reset       bool
	LocalEnding bool
	Timeout     time.Duration
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func main() {
	reset := flag.Bool("reset", false, "start the campus story over")
	localEnding := flag.Bool("local-ending", false, "play the ending show on the server and print its stage commands")
	flag.Parse()

	cfg := &ConsoleConfig{
		APIBaseURL:  getEnv("API_BASE_URL", "http://localhost:8080"),
		Reset:       *reset,
		LocalEnding: *localEnding,
		Timeout:     30 * time.Second,
	}

	client := &http.Client{
		Timeout: cfg.Timeout,
	}

	if !testConnection(client, cfg.APIBaseURL) {
		fmt.Fprintf(os.Stderr, "Could not connect to API. Please ensure the server is running.\nTry: go run ./cmd/server\n")
		os.Exit(1)
	}

	p := tea.NewProgram(NewConsoleUI(cfg, client),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
