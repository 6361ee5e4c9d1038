package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"collabcanvas/core"
)

func newTestStore(t *testing.T) *fsStore {
	t.Helper()
	return NewStore(t.TempDir())
}

func newCanvas(id, owner string) *core.Canvas {
	return &core.Canvas{
		ID:        id,
		Name:      "Test Canvas",
		Owner:     owner,
		Data:      core.EmptyCanvasData,
		CreatedAt: time.Now(),
	}
}

func TestCreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, newCanvas("canvas-1", "alice")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	canvas, err := store.Get(ctx, "canvas-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if canvas.Owner != "alice" {
		t.Errorf("Expected owner alice, got %s", canvas.Owner)
	}
}

func TestGetUnknownCanvas(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "nonexistent")
	if !errors.Is(err, core.ErrCanvasNotFound) {
		t.Fatalf("Expected ErrCanvasNotFound, got %v", err)
	}
}

func TestRejectsPathTraversal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"", ".", "..", "../escape", "a/b"} {
		if _, err := store.Get(ctx, id); err == nil {
			t.Errorf("Get(%q) should be rejected", id)
		}
		if _, err := store.FindID(ctx, id); err == nil {
			t.Errorf("FindID(%q) should be rejected", id)
		}
	}
}

func TestSaveDataRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, newCanvas("canvas-1", "alice")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	payload := json.RawMessage(`{"elements":[{"id":"el-1"}]}`)
	if err := store.SaveData(ctx, "canvas-1", payload, time.Now()); err != nil {
		t.Fatalf("SaveData failed: %v", err)
	}

	canvas, err := store.Get(ctx, "canvas-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(canvas.Data) != string(payload) {
		t.Errorf("Expected saved payload back, got %s", canvas.Data)
	}
}

func TestListFiltersByAccess(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	owned := newCanvas("canvas-1", "alice")
	shared := newCanvas("canvas-2", "bob")
	shared.Collaborators = []string{"alice"}
	foreign := newCanvas("canvas-3", "bob")

	for _, c := range []*core.Canvas{owned, shared, foreign} {
		if err := store.Create(ctx, c); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	canvases, err := store.List(ctx, "alice")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(canvases) != 2 {
		t.Errorf("Expected 2 canvases for alice, got %d", len(canvases))
	}
}

func TestAddCollaboratorIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, newCanvas("canvas-1", "alice")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.AddCollaborator(ctx, "canvas-1", "carol"); err != nil {
		t.Fatalf("AddCollaborator failed: %v", err)
	}
	if err := store.AddCollaborator(ctx, "canvas-1", "carol"); err != nil {
		t.Fatalf("Repeated AddCollaborator failed: %v", err)
	}

	canvas, err := store.Get(ctx, "canvas-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(canvas.Collaborators) != 1 {
		t.Errorf("Expected one collaborator, got %v", canvas.Collaborators)
	}
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, newCanvas("canvas-1", "alice")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.Delete(ctx, "canvas-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "canvas-1"); !errors.Is(err, core.ErrCanvasNotFound) {
		t.Fatalf("Expected ErrCanvasNotFound after delete, got %v", err)
	}
}

func TestShareRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	share := &core.Share{}
	share.Data.WriteString(`{"scene":"payload"}`)

	id, err := store.Publish(ctx, share)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	found, err := store.FindID(ctx, id)
	if err != nil {
		t.Fatalf("FindID failed: %v", err)
	}
	if found.Data.String() != `{"scene":"payload"}` {
		t.Errorf("Unexpected share payload: %s", found.Data.String())
	}
}

func TestStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first := NewStore(dir)
	if err := first.Create(ctx, newCanvas("canvas-1", "alice")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	second := NewStore(dir)
	canvas, err := second.Get(ctx, "canvas-1")
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if canvas.Owner != "alice" {
		t.Errorf("Expected persisted owner alice, got %s", canvas.Owner)
	}
}
