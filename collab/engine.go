package collab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"collabcanvas/core"

	"github.com/sirupsen/logrus"
)

// defaultStoreTimeout bounds every snapshot store call so a stuck store
// surfaces as a failure instead of blocking the connection's event loop.
const defaultStoreTimeout = 5 * time.Second

type (
	// SnapshotStore is the durable side of the engine: room metadata for
	// authorization and the fully-replacing snapshot payload.
	SnapshotStore interface {
		Get(ctx context.Context, id string) (*core.Canvas, error)
		SaveData(ctx context.Context, id string, data json.RawMessage, modified time.Time) error
	}

	// Engine routes realtime events between the connections of a canvas and
	// coordinates checkpointed persistence. Authorization is checked against
	// the store once per join and cached as the connection's joined canvas;
	// edit events only check that cache.
	Engine struct {
		store        SnapshotStore
		sessions     *Registry
		storeTimeout time.Duration
	}
)

func NewEngine(store SnapshotStore) *Engine {
	return &Engine{
		store:        store,
		sessions:     NewRegistry(),
		storeTimeout: defaultStoreTimeout,
	}
}

// Join authorizes the connection for the canvas, registers it in the
// roster, seeds it with the persisted snapshot and the current roster, and
// announces it to the peers already present.
//
// A connection already joined to another canvas leaves it first. A snapshot
// load failure after authorization does not undo the join: the peer gets an
// error signal instead of canvas data.
func (e *Engine) Join(ctx context.Context, c *Conn, canvasID string) error {
	if canvasID == "" {
		return ErrMalformedRequest
	}
	if c.isClosed() {
		return nil
	}

	canvas, err := e.getCanvas(ctx, canvasID)
	if err != nil {
		return err
	}
	if !canvas.HasAccess(c.identity.ID) {
		return ErrAccessDenied
	}

	if current, ok := c.Room(); ok && current != canvasID {
		e.Leave(c)
	}

	entry, roster := e.sessions.Join(canvasID, c)
	c.setRoom(canvasID)

	// A transport disconnect can land while the join is in flight; its Leave
	// runs before the roster entry exists and removes nothing. Re-check and
	// back out so a closed connection never stays registered.
	if c.isClosed() {
		c.setRoom("")
		e.sessions.Leave(canvasID, c)
		return nil
	}

	if data, err := e.loadSnapshot(ctx, canvasID); err != nil {
		logrus.WithFields(logrus.Fields{
			"canvas_id": canvasID,
			"user_id":   c.identity.ID,
		}).WithError(err).Warn("Snapshot load failed after join")
		c.peer.Send(EventError, ErrorSignal{Message: ErrLoadFailed.Error()})
	} else {
		c.peer.Send(EventCanvasData, CanvasData{CanvasID: canvasID, Data: data})
	}

	c.peer.Send(EventActiveUsers, ActiveUsers{CanvasID: canvasID, Users: roster})
	e.announceJoin(canvasID, entry)

	logrus.WithFields(logrus.Fields{
		"canvas_id": canvasID,
		"user_id":   c.identity.ID,
		"name":      c.identity.Name,
	}).Info("User joined canvas")
	return nil
}

// Leave removes the connection from its current canvas and announces the
// departure. Calling it on a connection that is not joined anywhere, or
// whose roster entry was already replaced, is a no-op with no announcement.
func (e *Engine) Leave(c *Conn) {
	canvasID, ok := c.Room()
	if !ok {
		return
	}
	c.setRoom("")

	entry, removed := e.sessions.Leave(canvasID, c)
	if !removed {
		return
	}
	e.announceLeave(canvasID, entry)

	logrus.WithFields(logrus.Fields{
		"canvas_id": canvasID,
		"user_id":   c.identity.ID,
	}).Info("User left canvas")
}

// Disconnect is the transport-level cleanup path. It shares Leave's
// idempotence so racing an explicit leave yields a single departure. The
// connection is marked closed first, so a join still in flight backs out
// instead of re-registering it.
func (e *Engine) Disconnect(c *Conn) {
	c.setClosed()
	e.Leave(c)
	logrus.WithField("user_id", c.identity.ID).Info("User disconnected")
}

// ActiveUsers returns the live roster of a canvas, empty if nobody is
// present.
func (e *Engine) ActiveUsers(canvasID string) []RosterEntry {
	return e.sessions.ActiveUsers(canvasID)
}

// Relay fans an edit event out to every other member of the canvas. It
// never echoes to the sender and never crosses canvases. Delivery is
// best-effort with no queue or retry; only per-sender ordering holds.
func (e *Engine) Relay(c *Conn, canvasID, event string, payload any) error {
	if canvasID == "" {
		return ErrMalformedRequest
	}
	if current, ok := c.Room(); !ok || current != canvasID {
		return ErrNotJoined
	}

	for _, peer := range e.sessions.Peers(canvasID, c.identity.ID) {
		peer.Send(event, payload)
	}
	return nil
}

// Save persists the payload as the canvas's new snapshot, fully replacing
// the previous one. A failure is reported to the caller only; the roster
// and the other peers are unaffected.
func (e *Engine) Save(ctx context.Context, c *Conn, canvasID string, data json.RawMessage) error {
	if canvasID == "" {
		return ErrMalformedRequest
	}
	if current, ok := c.Room(); !ok || current != canvasID {
		return ErrNotJoined
	}

	if err := e.saveData(ctx, canvasID, data); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"canvas_id": canvasID,
		"user_id":   c.identity.ID,
		"bytes":     len(data),
	}).Debug("Canvas saved")
	return nil
}

// Clear broadcasts a cleared signal to the other peers and persists an
// empty payload. The two steps are deliberately independent: peers may see
// the clear before, or in rare failure cases without, the persisted write.
// The returned error reflects the persist step only.
func (e *Engine) Clear(ctx context.Context, c *Conn, canvasID string) error {
	if canvasID == "" {
		return ErrMalformedRequest
	}
	if current, ok := c.Room(); !ok || current != canvasID {
		return ErrNotJoined
	}

	for _, peer := range e.sessions.Peers(canvasID, c.identity.ID) {
		peer.Send(EventClearCanvas, CanvasCleared{UserID: c.identity.ID})
	}

	return e.saveData(ctx, canvasID, core.EmptyCanvasData)
}

func (e *Engine) getCanvas(ctx context.Context, canvasID string) (*core.Canvas, error) {
	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()

	canvas, err := e.store.Get(ctx, canvasID)
	if err != nil {
		if errors.Is(err, core.ErrCanvasNotFound) {
			return nil, ErrCanvasNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}
	return canvas, nil
}

func (e *Engine) loadSnapshot(ctx context.Context, canvasID string) (json.RawMessage, error) {
	canvas, err := e.getCanvas(ctx, canvasID)
	if err != nil {
		return nil, err
	}
	if canvas.Data == nil {
		return core.EmptyCanvasData, nil
	}
	return canvas.Data, nil
}

func (e *Engine) saveData(ctx context.Context, canvasID string, data json.RawMessage) error {
	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()

	if err := e.store.SaveData(ctx, canvasID, data, time.Now()); err != nil {
		logrus.WithField("canvas_id", canvasID).WithError(err).Error("Failed to persist snapshot")
		if errors.Is(err, core.ErrCanvasNotFound) {
			return ErrCanvasNotFound
		}
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	return nil
}
