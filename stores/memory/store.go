package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"collabcanvas/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// memStore implements CanvasStore and ShareStore for in-memory storage.
// It is the default backend and what the tests run against.
type memStore struct {
	mu       sync.RWMutex
	canvases map[string]*core.Canvas
	shares   map[string][]byte
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{
		canvases: make(map[string]*core.Canvas),
		shares:   make(map[string][]byte),
	}
}

func (s *memStore) Get(ctx context.Context, id string) (*core.Canvas, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	canvas, ok := s.canvases[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrCanvasNotFound, id)
	}
	return cloneCanvas(canvas, true), nil
}

func (s *memStore) List(ctx context.Context, userID string) ([]*core.Canvas, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	canvases := make([]*core.Canvas, 0)
	for _, canvas := range s.canvases {
		if canvas.HasAccess(userID) {
			canvases = append(canvases, cloneCanvas(canvas, false))
		}
	}

	logrus.WithField("user_id", userID).Debugf("Listed %d canvases", len(canvases))
	return canvases, nil
}

func (s *memStore) Create(ctx context.Context, canvas *core.Canvas) error {
	if canvas.ID == "" {
		return fmt.Errorf("canvas ID cannot be empty")
	}
	if canvas.Owner == "" {
		return fmt.Errorf("canvas owner cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.canvases[canvas.ID]; exists {
		return fmt.Errorf("canvas with id %s already exists", canvas.ID)
	}
	s.canvases[canvas.ID] = cloneCanvas(canvas, true)

	logrus.WithFields(logrus.Fields{
		"canvas_id": canvas.ID,
		"owner":     canvas.Owner,
	}).Info("Canvas created")
	return nil
}

func (s *memStore) SaveData(ctx context.Context, id string, data json.RawMessage, modified time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	canvas, ok := s.canvases[id]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrCanvasNotFound, id)
	}

	canvas.Data = append(json.RawMessage(nil), data...)
	canvas.LastModified = modified

	logrus.WithFields(logrus.Fields{
		"canvas_id": id,
		"bytes":     len(data),
	}).Debug("Canvas snapshot saved")
	return nil
}

func (s *memStore) AddCollaborator(ctx context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	canvas, ok := s.canvases[id]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrCanvasNotFound, id)
	}

	for _, collaborator := range canvas.Collaborators {
		if collaborator == userID {
			return nil
		}
	}
	canvas.Collaborators = append(canvas.Collaborators, userID)
	return nil
}

func (s *memStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.canvases[id]; !ok {
		return fmt.Errorf("%w: %s", core.ErrCanvasNotFound, id)
	}
	delete(s.canvases, id)

	logrus.WithField("canvas_id", id).Info("Canvas deleted")
	return nil
}

// ShareStore implementation.

func (s *memStore) FindID(ctx context.Context, id string) (*core.Share, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.shares[id]
	if !ok {
		return nil, fmt.Errorf("share with id %s not found", id)
	}

	share := &core.Share{}
	share.Data.Write(data)
	return share, nil
}

func (s *memStore) Publish(ctx context.Context, share *core.Share) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := ulid.Make().String()
	s.shares[id] = append([]byte(nil), share.Data.Bytes()...)

	logrus.WithFields(logrus.Fields{
		"share_id":    id,
		"data_length": share.Data.Len(),
	}).Info("Share created")
	return id, nil
}

// cloneCanvas keeps callers from mutating stored state. withData controls
// whether the snapshot payload travels along; list views drop it.
func cloneCanvas(canvas *core.Canvas, withData bool) *core.Canvas {
	clone := &core.Canvas{
		ID:            canvas.ID,
		Name:          canvas.Name,
		Owner:         canvas.Owner,
		Collaborators: append([]string(nil), canvas.Collaborators...),
		CreatedAt:     canvas.CreatedAt,
		LastModified:  canvas.LastModified,
	}
	if withData {
		clone.Data = append(json.RawMessage(nil), canvas.Data...)
	}
	return clone
}
