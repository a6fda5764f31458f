package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AshramC/YXZX-ARG/pkg/infiltration"
)

// RequestType identifies the type of request in the queue
type RequestType string

const (
	// RequestTypeMove walks a link
	RequestTypeMove RequestType = "move"

	// RequestTypeHack starts or cancels a hack on a link
	RequestTypeHack RequestType = "hack"

	// RequestTypeSearch starts or cancels searching the current node
	RequestTypeSearch RequestType = "search"
)

// Request is a player command waiting for the simulation loop
type Request struct {
	RequestID string      `json:"request_id"`
	Type      RequestType `json:"type"`
	SessionID uuid.UUID   `json:"session_id"`

	// Move and hack target
	LinkID string `json:"link_id,omitempty"`

	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewRequest stamps a request with an id and the current time
func NewRequest(sessionID uuid.UUID, typ RequestType, linkID string) *Request {
	return &Request{
		RequestID:  uuid.New().String(),
		Type:       typ,
		SessionID:  sessionID,
		LinkID:     linkID,
		EnqueuedAt: time.Now(),
	}
}

// ParseRequest decodes a request sent by a client
func ParseRequest(data []byte) (*Request, error) {
	var r Request
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	if r.RequestID == "" {
		r.RequestID = uuid.New().String()
	}
	if r.EnqueuedAt.IsZero() {
		r.EnqueuedAt = time.Now()
	}
	if _, err := r.Command(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Command converts the request into an engine command
func (r *Request) Command() (infiltration.Command, error) {
	switch r.Type {
	case RequestTypeMove:
		if r.LinkID == "" {
			return nil, fmt.Errorf("move request %s has no link", r.RequestID)
		}
		return infiltration.Move{LinkID: r.LinkID}, nil
	case RequestTypeHack:
		if r.LinkID == "" {
			return nil, fmt.Errorf("hack request %s has no link", r.RequestID)
		}
		return infiltration.ToggleHack{LinkID: r.LinkID}, nil
	case RequestTypeSearch:
		return infiltration.ToggleSearch{}, nil
	}
	return nil, fmt.Errorf("unknown request type %q", r.Type)
}
