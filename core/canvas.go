package core

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrCanvasNotFound is returned by stores when no canvas exists for an id.
var ErrCanvasNotFound = errors.New("canvas not found")

// EmptyCanvasData is the payload a canvas starts with and the payload a
// clear writes back.
var EmptyCanvasData = json.RawMessage(`{"elements":[]}`)

type (
	// Canvas is a shared drawing surface: ownership metadata plus the last
	// persisted snapshot of its content. Every write of Data fully replaces
	// the previous payload.
	Canvas struct {
		ID            string          `json:"canvasId"`
		Name          string          `json:"name"`
		Owner         string          `json:"owner"`
		Collaborators []string        `json:"collaborators"`
		Data          json.RawMessage `json:"data,omitempty"` // omitted in list views
		CreatedAt     time.Time       `json:"createdAt"`
		LastModified  time.Time       `json:"lastModified"`
	}

	// CanvasStore defines the persistence layer for canvases.
	CanvasStore interface {
		// Get returns a canvas with its full snapshot payload, or
		// ErrCanvasNotFound.
		Get(ctx context.Context, id string) (*Canvas, error)

		// List returns metadata for all canvases the user owns or
		// collaborates on. The returned canvases do not carry Data.
		List(ctx context.Context, userID string) ([]*Canvas, error)

		// Create stores a new canvas under its ID.
		Create(ctx context.Context, canvas *Canvas) error

		// SaveData replaces the snapshot payload of an existing canvas and
		// stamps it with the given modification time.
		SaveData(ctx context.Context, id string, data json.RawMessage, modified time.Time) error

		// AddCollaborator grants a user access to the canvas. Adding a user
		// twice is a no-op.
		AddCollaborator(ctx context.Context, id, userID string) error

		// Delete removes a canvas and its collaborator set.
		Delete(ctx context.Context, id string) error
	}
)

// HasAccess reports whether userID is the owner or a collaborator.
func (c *Canvas) HasAccess(userID string) bool {
	if c.Owner == userID {
		return true
	}
	for _, collaborator := range c.Collaborators {
		if collaborator == userID {
			return true
		}
	}
	return false
}
