package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"collabcanvas/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db *sql.DB
}

// NewStore creates a new SQLite-based store.
func NewStore(dataSourceName string) *sqliteStore {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		log.Fatalf("failed to open sqlite database: %v", err)
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS canvases (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			owner TEXT NOT NULL,
			data BLOB,
			created_at DATETIME,
			last_modified DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS collaborators (
			canvas_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			PRIMARY KEY (canvas_id, user_id)
		);`,
		`CREATE TABLE IF NOT EXISTS shares (id TEXT PRIMARY KEY, data BLOB);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			log.Fatalf("failed to initialize sqlite schema: %v", err)
		}
	}

	return &sqliteStore{db}
}

func (s *sqliteStore) Get(ctx context.Context, id string) (*core.Canvas, error) {
	canvas := core.Canvas{ID: id}
	var data []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT name, owner, data, created_at, last_modified FROM canvases WHERE id = ?", id,
	).Scan(&canvas.Name, &canvas.Owner, &data, &canvas.CreatedAt, &canvas.LastModified)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", core.ErrCanvasNotFound, id)
		}
		return nil, err
	}
	canvas.Data = json.RawMessage(data)

	collaborators, err := s.collaborators(ctx, id)
	if err != nil {
		return nil, err
	}
	canvas.Collaborators = collaborators
	return &canvas, nil
}

func (s *sqliteStore) List(ctx context.Context, userID string) ([]*core.Canvas, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, owner, created_at, last_modified FROM canvases
		WHERE owner = ? OR id IN (SELECT canvas_id FROM collaborators WHERE user_id = ?)
		ORDER BY last_modified DESC`, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var canvases []*core.Canvas
	for rows.Next() {
		var canvas core.Canvas
		if err := rows.Scan(&canvas.ID, &canvas.Name, &canvas.Owner, &canvas.CreatedAt, &canvas.LastModified); err != nil {
			return nil, err
		}
		collaborators, err := s.collaborators(ctx, canvas.ID)
		if err != nil {
			return nil, err
		}
		canvas.Collaborators = collaborators
		canvases = append(canvases, &canvas)
	}
	return canvases, rows.Err()
}

func (s *sqliteStore) Create(ctx context.Context, canvas *core.Canvas) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO canvases (id, name, owner, data, created_at, last_modified) VALUES (?, ?, ?, ?, ?, ?)",
		canvas.ID, canvas.Name, canvas.Owner, []byte(canvas.Data), canvas.CreatedAt, canvas.LastModified)
	if err != nil {
		return err
	}

	for _, collaborator := range canvas.Collaborators {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO collaborators (canvas_id, user_id) VALUES (?, ?)",
			canvas.ID, collaborator); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"canvas_id": canvas.ID,
		"owner":     canvas.Owner,
	}).Info("Canvas created")
	return nil
}

func (s *sqliteStore) SaveData(ctx context.Context, id string, data json.RawMessage, modified time.Time) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE canvases SET data = ?, last_modified = ? WHERE id = ?",
		[]byte(data), modified, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", core.ErrCanvasNotFound, id)
	}
	return nil
}

func (s *sqliteStore) AddCollaborator(ctx context.Context, id, userID string) error {
	var exists bool
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM canvases WHERE id = ?", id).Scan(&exists)
	if err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: %s", core.ErrCanvasNotFound, id)
		}
		return err
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO collaborators (canvas_id, user_id) VALUES (?, ?)", id, userID)
	return err
}

func (s *sqliteStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, "DELETE FROM canvases WHERE id = ?", id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", core.ErrCanvasNotFound, id)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM collaborators WHERE canvas_id = ?", id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *sqliteStore) collaborators(ctx context.Context, id string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id FROM collaborators WHERE canvas_id = ? ORDER BY user_id", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	collaborators := []string{}
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		collaborators = append(collaborators, userID)
	}
	return collaborators, rows.Err()
}

// ShareStore implementation.

func (s *sqliteStore) FindID(ctx context.Context, id string) (*core.Share, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM shares WHERE id = ?", id).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("share with id %s not found", id)
		}
		return nil, err
	}
	return &core.Share{Data: *bytes.NewBuffer(data)}, nil
}

func (s *sqliteStore) Publish(ctx context.Context, share *core.Share) (string, error) {
	id := ulid.Make().String()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO shares (id, data) VALUES (?, ?)", id, share.Data.Bytes())
	if err != nil {
		logrus.WithError(err).Error("Failed to create share")
		return "", err
	}
	return id, nil
}
