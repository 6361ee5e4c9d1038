package collab

import (
	"encoding/json"
	"time"
)

// Inbound event names.
const (
	EventJoinCanvas     = "join-canvas"
	EventLeaveCanvas    = "leave-canvas"
	EventGetActiveUsers = "get-active-users"
	EventDrawElement    = "draw-element"
	EventUpdateElement  = "update-element"
	EventDeleteElement  = "delete-element"
	EventSaveCanvas     = "save-canvas"
	EventClearCanvas    = "clear-canvas"
)

// Outbound event names.
const (
	EventCanvasData  = "canvas-data"
	EventActiveUsers = "active-users"
	EventUserJoined  = "user-joined"
	EventUserLeft    = "user-left"
	EventCanvasSaved = "canvas-saved"
	EventError       = "error"
)

type (
	// CanvasData seeds a joining peer with the persisted snapshot.
	CanvasData struct {
		CanvasID string          `json:"canvasId"`
		Data     json.RawMessage `json:"data"`
	}

	// ActiveUsers carries the full roster of a canvas.
	ActiveUsers struct {
		CanvasID string        `json:"canvasId"`
		Users    []RosterEntry `json:"users"`
	}

	// UserJoined announces a new roster member to the peers already present.
	UserJoined struct {
		UserID   string    `json:"userId"`
		Name     string    `json:"name"`
		JoinedAt time.Time `json:"joinedAt"`
	}

	// UserLeft announces a departure to the remaining peers.
	UserLeft struct {
		UserID string `json:"userId"`
	}

	// DrawElement relays a newly drawn element, stamped with the sender.
	DrawElement struct {
		UserID  string `json:"userId"`
		Element any    `json:"element"`
	}

	// UpdateElement relays a partial update to one element.
	UpdateElement struct {
		UserID    string `json:"userId"`
		ElementID string `json:"elementId"`
		Updates   any    `json:"updates"`
	}

	// DeleteElement relays an element removal.
	DeleteElement struct {
		UserID    string `json:"userId"`
		ElementID string `json:"elementId"`
	}

	// CanvasCleared relays a clear to the other peers of a canvas.
	CanvasCleared struct {
		UserID string `json:"userId"`
	}

	// CanvasSaved acknowledges a save or clear to the sender only.
	CanvasSaved struct {
		Success bool `json:"success"`
	}

	// ErrorSignal is sent to the offending connection; it never terminates
	// the session.
	ErrorSignal struct {
		Message string `json:"message"`
	}
)
