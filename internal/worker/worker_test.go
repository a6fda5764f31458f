package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AshramC/YXZX-ARG/internal/services/events"
	"github.com/AshramC/YXZX-ARG/pkg/infiltration"
	"github.com/AshramC/YXZX-ARG/pkg/minigame"
	"github.com/AshramC/YXZX-ARG/pkg/queue"
	"github.com/AshramC/YXZX-ARG/pkg/save"
	"github.com/AshramC/YXZX-ARG/pkg/storage"
)

type recordingPublisher struct {
	mu  sync.Mutex
	got []events.Event
}

func (r *recordingPublisher) Publish(_ context.Context, _ uuid.UUID, ev events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, ev)
	return nil
}

func (r *recordingPublisher) ofType(typ events.EventType) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, ev := range r.got {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func nodeAt(id string, x float64, nodeType string) infiltration.Element {
	return infiltration.Element{Type: infiltration.ElementNode, ID: id, X: x, Y: 50, NodeType: nodeType}
}

func testLibrary() infiltration.Library {
	terminal := nodeAt("terminal", 30, infiltration.NodeMiniGame)
	terminal.MiniGameID = "wire_puzzle"
	return infiltration.Library{
		"level_01": {
			ID:        "level_01",
			NextLevel: "level_02",
			Elements:  []infiltration.Element{nodeAt("a", 10, infiltration.NodePlain), nodeAt("exit", 30, infiltration.NodeExit)},
			Links:     []infiltration.Link{{ID: "a-exit", From: "a", To: "exit", Cost: 1}},
		},
		"level_02": {
			ID:       "level_02",
			Elements: []infiltration.Element{nodeAt("s", 10, infiltration.NodePlain), terminal},
			Links:    []infiltration.Link{{ID: "s-t", From: "s", To: "terminal", Cost: 1}},
		},
	}
}

type fixture struct {
	w     *Worker
	q     *queue.Queue
	saves *save.Manager
	pub   *recordingPublisher
	id    uuid.UUID
}

func newFixture(t *testing.T, levelID string, opts ...Option) fixture {
	t.Helper()
	lib := testLibrary()
	engine, err := infiltration.NewEngine(lib[levelID])
	require.NoError(t, err)

	f := fixture{
		q:     queue.New(8),
		saves: save.NewManager(storage.NewMockKV()),
		pub:   &recordingPublisher{},
		id:    uuid.New(),
	}
	base := []Option{WithSaves(f.saves, save.MainScope), WithLevels(lib), WithPublisher(f.pub)}
	f.w = New(f.id, engine, f.q, append(base, opts...)...)
	return f
}

func TestWorker_LevelCompleteSavesNextLevel(t *testing.T) {
	f := newFixture(t, "level_01")
	require.NoError(t, f.q.Enqueue(queue.NewRequest(f.id, queue.RequestTypeMove, "a-exit")))

	done, err := f.w.step(0.5)
	require.NoError(t, err)
	assert.False(t, done)

	done, err = f.w.step(0.6)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, Result{Outcome: OutcomeWon, NextLevel: "level_02"}, f.w.Result())

	snap, ok := f.saves.Load(context.Background(), save.MainScope)
	require.True(t, ok)
	assert.Equal(t, "level_02", snap.LevelID)
	assert.Equal(t, "s", snap.NodeID)
	assert.Equal(t, save.TypeLevelComplete, snap.SaveType)
	assert.Equal(t, []string{"level_01"}, snap.CompletedLevels)

	assert.NotEmpty(t, f.pub.ofType(events.EventTypeFrame))
	assert.NotEmpty(t, f.pub.ofType(events.EventTypeGameEvent))
}

func TestWorker_RejectedRequestIsReported(t *testing.T) {
	f := newFixture(t, "level_01")
	req := queue.NewRequest(f.id, queue.RequestTypeMove, "nowhere")
	require.NoError(t, f.q.Enqueue(req))

	done, err := f.w.step(0.1)
	require.NoError(t, err)
	assert.False(t, done)

	failed := f.pub.ofType(events.EventTypeRequestFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, req.RequestID, failed[0].RequestID)
}

func TestWorker_MiniGame(t *testing.T) {
	tests := []struct {
		name    string
		host    minigame.Host
		done    bool
		locked  bool
		outcome Outcome
	}{
		{
			name: "success locks the session down",
			host: minigame.NewRegistry().Register("wire_puzzle", func(context.Context, map[string]any) (minigame.Result, error) {
				return minigame.Result{Success: true}, nil
			}),
			done:    true,
			locked:  true,
			outcome: OutcomeLocked,
		},
		{
			name: "failure keeps the checkpoint",
			host: minigame.NewRegistry().Register("wire_puzzle", func(context.Context, map[string]any) (minigame.Result, error) {
				return minigame.Result{Success: false}, nil
			}),
			outcome: OutcomeStopped,
		},
		{
			name:    "missing host counts as failure",
			host:    minigame.Unavailable{},
			outcome: OutcomeStopped,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "level_02", WithMiniGames(tt.host))
			require.NoError(t, f.q.Enqueue(queue.NewRequest(f.id, queue.RequestTypeMove, "s-t")))

			done, err := f.w.step(1.1)
			require.NoError(t, err)
			assert.Equal(t, tt.done, done)
			assert.Equal(t, tt.outcome, f.w.Result().Outcome)
			assert.Len(t, f.pub.ofType(events.EventTypeMiniGameResult), 1)

			snap, ok := f.saves.Load(context.Background(), save.MainScope)
			require.True(t, ok)
			assert.Equal(t, tt.locked, snap.Locked())
			if !tt.locked {
				assert.Equal(t, save.TypeMiniGameCheckpoint, snap.SaveType)
				assert.Equal(t, "terminal", snap.NodeID)
			}
		})
	}
}

func TestWorker_Captured(t *testing.T) {
	lib := testLibrary()
	level := lib["level_01"]
	level.Elements = append(level.Elements, infiltration.Element{Type: infiltration.ElementGuard, ID: "g1", X: 20, Y: 50})
	engine, err := infiltration.NewEngine(level)
	require.NoError(t, err)

	q := queue.New(4)
	w := New(uuid.New(), engine, q)
	require.NoError(t, q.Enqueue(queue.NewRequest(uuid.New(), queue.RequestTypeMove, "a-exit")))

	done, err := w.step(0.5)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, OutcomeCaptured, w.Result().Outcome)
}

func TestWorker_StartAndStop(t *testing.T) {
	f := newFixture(t, "level_01", WithTick(time.Millisecond))

	errc := make(chan error, 1)
	go func() { errc <- f.w.Start() }()

	require.Eventually(t, func() bool {
		return len(f.pub.ofType(events.EventTypeFrame)) > 2
	}, 2*time.Second, 5*time.Millisecond)

	f.w.Stop()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Equal(t, OutcomeStopped, f.w.Result().Outcome)
}

func TestWorker_StartEndsWithSession(t *testing.T) {
	f := newFixture(t, "level_01", WithTick(time.Millisecond))
	require.NoError(t, f.q.Enqueue(queue.NewRequest(f.id, queue.RequestTypeMove, "a-exit")))

	errc := make(chan error, 1)
	go func() { errc <- f.w.Start() }()

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("session did not end")
	}
	assert.Equal(t, OutcomeWon, f.w.Result().Outcome)
	assert.Len(t, f.pub.ofType(events.EventTypeSessionEnded), 1)
}
