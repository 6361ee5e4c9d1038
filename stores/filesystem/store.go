package filesystem

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"collabcanvas/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

type fsStore struct {
	basePath string
}

// NewStore creates a new filesystem-based store. Canvases live as one JSON
// file each under canvases/, shares under shares/.
func NewStore(basePath string) *fsStore {
	for _, dir := range []string{"canvases", "shares"} {
		if err := os.MkdirAll(filepath.Join(basePath, dir), 0755); err != nil {
			log.Fatalf("failed to create storage directory: %v", err)
		}
	}
	return &fsStore{basePath: basePath}
}

// canvasPath rejects ids that would escape the canvases directory.
func (s *fsStore) canvasPath(id string) (string, error) {
	if id == "" || id == "." || id == ".." || filepath.Base(id) != id {
		return "", fmt.Errorf("invalid canvas id")
	}
	return filepath.Join(s.basePath, "canvases", id+".json"), nil
}

func (s *fsStore) sharePath(id string) (string, error) {
	if id == "" || id == "." || id == ".." || filepath.Base(id) != id {
		return "", fmt.Errorf("invalid share id")
	}
	return filepath.Join(s.basePath, "shares", id), nil
}

func (s *fsStore) Get(ctx context.Context, id string) (*core.Canvas, error) {
	path, err := s.canvasPath(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", core.ErrCanvasNotFound, id)
		}
		logrus.WithField("canvas_id", id).WithError(err).Error("Failed to read canvas file")
		return nil, err
	}

	var canvas core.Canvas
	if err := json.Unmarshal(data, &canvas); err != nil {
		return nil, err
	}
	return &canvas, nil
}

func (s *fsStore) List(ctx context.Context, userID string) ([]*core.Canvas, error) {
	dir := filepath.Join(s.basePath, "canvases")
	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*core.Canvas{}, nil
		}
		return nil, err
	}

	canvases := make([]*core.Canvas, 0, len(files))
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			logrus.WithError(err).Warnf("Failed to read canvas file %s, skipping", file.Name())
			continue
		}

		var canvas core.Canvas
		if err := json.Unmarshal(data, &canvas); err != nil {
			logrus.WithError(err).Warnf("Failed to unmarshal canvas file %s, skipping", file.Name())
			continue
		}

		if canvas.HasAccess(userID) {
			canvas.Data = nil
			canvases = append(canvases, &canvas)
		}
	}

	logrus.WithField("user_id", userID).Debugf("Listed %d canvases", len(canvases))
	return canvases, nil
}

func (s *fsStore) Create(ctx context.Context, canvas *core.Canvas) error {
	path, err := s.canvasPath(canvas.ID)
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("canvas with id %s already exists", canvas.ID)
	}
	return s.write(path, canvas)
}

func (s *fsStore) SaveData(ctx context.Context, id string, data json.RawMessage, modified time.Time) error {
	canvas, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	canvas.Data = data
	canvas.LastModified = modified

	path, err := s.canvasPath(id)
	if err != nil {
		return err
	}
	return s.write(path, canvas)
}

func (s *fsStore) AddCollaborator(ctx context.Context, id, userID string) error {
	canvas, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	for _, collaborator := range canvas.Collaborators {
		if collaborator == userID {
			return nil
		}
	}
	canvas.Collaborators = append(canvas.Collaborators, userID)

	path, err := s.canvasPath(id)
	if err != nil {
		return err
	}
	return s.write(path, canvas)
}

func (s *fsStore) Delete(ctx context.Context, id string) error {
	path, err := s.canvasPath(id)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", core.ErrCanvasNotFound, id)
		}
		return err
	}

	logrus.WithField("canvas_id", id).Info("Canvas deleted")
	return nil
}

func (s *fsStore) write(path string, canvas *core.Canvas) error {
	data, err := json.Marshal(canvas)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		logrus.WithField("path", path).WithError(err).Error("Failed to write canvas file")
		return err
	}
	return nil
}

// ShareStore implementation.

func (s *fsStore) FindID(ctx context.Context, id string) (*core.Share, error) {
	path, err := s.sharePath(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("share with id %s not found", id)
		}
		return nil, err
	}
	return &core.Share{Data: *bytes.NewBuffer(data)}, nil
}

func (s *fsStore) Publish(ctx context.Context, share *core.Share) (string, error) {
	id := ulid.Make().String()
	path, err := s.sharePath(id)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, share.Data.Bytes(), 0644); err != nil {
		logrus.WithField("share_id", id).WithError(err).Error("Failed to write share file")
		return "", err
	}
	return id, nil
}
