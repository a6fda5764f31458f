package ending

import (
	"context"
	"log/slog"
	"strings"
)

// Cinematic launches the ending presentation and blocks until it reports
// completion with an outcome tag
type Cinematic interface {
	Present(ctx context.Context, sel Selection) (string, error)
}

// LocalDirector presents endings in-process through a Sequencer
type LocalDirector struct {
	seq    *Sequencer
	logger *slog.Logger
}

// Ensure LocalDirector implements Cinematic
var _ Cinematic = (*LocalDirector)(nil)

// NewLocalDirector wraps seq
func NewLocalDirector(seq *Sequencer, logger *slog.Logger) *LocalDirector {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalDirector{seq: seq, logger: logger}
}

// Present plays the selection's playlist. A selection without a playlist
// runs the default flow with a FLAG_ENDING_<OUTCOME> override so flow
// checks can branch on the requested outcome. The returned tag is the one
// recorded by end_show, or the selection outcome when the show never ended
// itself.
func (d *LocalDirector) Present(ctx context.Context, sel Selection) (string, error) {
	var (
		tag string
		err error
	)
	if len(sel.Playlist) > 0 {
		tag, err = d.seq.Play(ctx, sel.Playlist)
	} else {
		var overrides []string
		if sel.Outcome != "" {
			overrides = append(overrides, "FLAG_ENDING_"+strings.ToUpper(string(sel.Outcome)))
		}
		tag, err = d.seq.RunFlow(ctx, overrides...)
	}
	if err != nil {
		return "", err
	}
	if tag == "" {
		tag = string(sel.Outcome)
	}
	d.logger.Info("Ending complete", "outcome", tag)
	return tag, nil
}
