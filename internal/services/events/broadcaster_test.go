package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AshramC/YXZX-ARG/pkg/infiltration"
)

func newTestBroadcaster(t *testing.T) *Broadcaster {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewBroadcaster(client, slog.Default())
}

func TestBroadcaster_PublishAndSubscribe(t *testing.T) {
	b := newTestBroadcaster(t)
	session := uuid.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan Event, 4)
	done := make(chan error, 1)
	go func() { done <- b.Subscribe(ctx, session, out) }()

	ev, err := GameEvent(session, infiltration.Event{Type: infiltration.EventAlarm, Reason: infiltration.AlarmNoise})
	require.NoError(t, err)

	// Publish until the subscriber is attached
	require.Eventually(t, func() bool {
		_ = b.Publish(ctx, session, ev)
		return len(out) > 0
	}, 2*time.Second, 20*time.Millisecond)

	got := <-out
	assert.Equal(t, EventTypeGameEvent, got.Type)
	assert.Equal(t, session.String(), got.SessionID)

	var decoded infiltration.Event
	require.NoError(t, json.Unmarshal(got.Data, &decoded))
	assert.Equal(t, infiltration.EventAlarm, decoded.Type)
	assert.Equal(t, infiltration.AlarmNoise, decoded.Reason)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}

func TestBroadcaster_RequestEvents(t *testing.T) {
	b := newTestBroadcaster(t)
	session := uuid.New()
	ctx := context.Background()

	// Publishing with no subscriber is not an error
	assert.NoError(t, b.PublishRequestQueued(ctx, session, "req-1", "move"))
	assert.NoError(t, b.PublishRequestFailed(ctx, session, "req-1", "link locked"))
}

func TestChannel(t *testing.T) {
	id := uuid.MustParse("6f1c2a44-0a8b-4c55-9a62-93c0f1b2d3e4")
	assert.Equal(t, "game-events:6f1c2a44-0a8b-4c55-9a62-93c0f1b2d3e4", Channel(id))
}

type recordingPublisher struct {
	got []Event
	err error
}

func (r *recordingPublisher) Publish(_ context.Context, _ uuid.UUID, ev Event) error {
	r.got = append(r.got, ev)
	return r.err
}

func TestFanout(t *testing.T) {
	failing := &recordingPublisher{err: errors.New("down")}
	ok := &recordingPublisher{}
	f := Fanout{failing, ok}

	err := f.Publish(context.Background(), uuid.New(), Event{Type: EventTypeSessionEnded})
	assert.Error(t, err)
	assert.Len(t, failing.got, 1)
	assert.Len(t, ok.got, 1)
}
