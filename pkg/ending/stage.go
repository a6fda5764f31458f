package ending

import (
	"context"
	"log/slog"
	"time"

	"github.com/AshramC/YXZX-ARG/pkg/interpreter"
	"github.com/AshramC/YXZX-ARG/pkg/script"
)

// Default beat lengths in milliseconds for commands that animate
var defaultBeats = map[string]int{
	"move":      1000,
	"move_to":   1000,
	"move_path": 3000,
	"bubble":    2000,
	"shake":     500,
}

// TimedStage is a headless stage: it reports each command to an observer
// and blocks for as long as the command would animate.
type TimedStage struct {
	// Scale multiplies every beat. Zero skips the waits entirely.
	Scale   float64
	Observe func(cmd script.Stage)
	logger  *slog.Logger
}

// Ensure TimedStage implements interpreter.Stage
var _ interpreter.Stage = (*TimedStage)(nil)

// NewTimedStage creates a stage playing beats in real time
func NewTimedStage(observe func(script.Stage), logger *slog.Logger) *TimedStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &TimedStage{Scale: 1, Observe: observe, logger: logger}
}

// Perform blocks for the command's beat
func (s *TimedStage) Perform(ctx context.Context, cmd script.Stage) error {
	s.logger.Debug("Stage command", "cmd", cmd.Cmd, "target", cmd.Args["target"])
	if s.Observe != nil {
		s.Observe(cmd)
	}

	d := time.Duration(float64(Beat(cmd))*s.Scale) * time.Millisecond
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Beat returns how long cmd animates, in milliseconds
func Beat(cmd script.Stage) int {
	if cmd.Cmd == "fight" {
		count := intArg(cmd.Args, "count", 3)
		speed := intArg(cmd.Args, "speed", 150)
		return count * speed * 2
	}
	return intArg(cmd.Args, "duration", defaultBeats[cmd.Cmd])
}

func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}
