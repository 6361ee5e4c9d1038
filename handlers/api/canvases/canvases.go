package canvases

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"collabcanvas/collab"
	"collabcanvas/core"
	"collabcanvas/handlers/auth"
	"collabcanvas/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type (
	CreateCanvasRequest struct {
		Name string `json:"name"`
	}

	AddCollaboratorRequest struct {
		UserID string `json:"userId"`
	}

	// Presence exposes the live roster of the realtime engine to the API.
	Presence interface {
		ActiveUsers(canvasID string) []collab.RosterEntry
	}
)

func requestClaims(r *http.Request) (string, bool) {
	claims, ok := r.Context().Value(middleware.ClaimsContextKey).(*auth.AppClaims)
	if !ok || claims.Subject == "" {
		return "", false
	}
	return claims.Subject, true
}

func HandleCreate(store core.CanvasStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requestClaims(r)
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		var req CreateCanvasRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Canvas name is required"})
			return
		}

		now := time.Now()
		canvas := &core.Canvas{
			ID:            uuid.NewString(),
			Name:          req.Name,
			Owner:         userID,
			Collaborators: []string{},
			Data:          core.EmptyCanvasData,
			CreatedAt:     now,
			LastModified:  now,
		}

		if err := store.Create(r.Context(), canvas); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":   err,
				"user_id": userID,
			}).Error("Failed to create canvas")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to create canvas"})
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, canvas)
	}
}

func HandleList(store core.CanvasStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requestClaims(r)
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		canvases, err := store.List(r.Context(), userID)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":   err,
				"user_id": userID,
			}).Error("Failed to list canvases")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to list canvases"})
			return
		}

		if canvases == nil {
			canvases = []*core.Canvas{}
		}
		render.JSON(w, r, canvases)
	}
}

func HandleGet(store core.CanvasStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requestClaims(r)
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		canvas, err := fetchCanvas(w, r, store, userID)
		if err != nil {
			return
		}
		render.JSON(w, r, canvas)
	}
}

// HandleActiveUsers reports who is connected to the canvas right now. The
// roster comes from the realtime engine, not the store, so it is empty for
// a canvas nobody has joined.
func HandleActiveUsers(store core.CanvasStore, presence Presence) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requestClaims(r)
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		canvas, err := fetchCanvas(w, r, store, userID)
		if err != nil {
			return
		}

		render.JSON(w, r, collab.ActiveUsers{
			CanvasID: canvas.ID,
			Users:    presence.ActiveUsers(canvas.ID),
		})
	}
}

func HandleAddCollaborator(store core.CanvasStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requestClaims(r)
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		id := chi.URLParam(r, "id")
		canvas, err := store.Get(r.Context(), id)
		if err != nil {
			respondStoreError(w, r, err, userID, id)
			return
		}

		if canvas.Owner != userID {
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, map[string]string{"error": "Only the owner can add collaborators"})
			return
		}

		var req AddCollaboratorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "User id is required"})
			return
		}

		for _, collaborator := range canvas.Collaborators {
			if collaborator == req.UserID {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, map[string]string{"error": "User is already a collaborator"})
				return
			}
		}

		if err := store.AddCollaborator(r.Context(), id, req.UserID); err != nil {
			respondStoreError(w, r, err, userID, id)
			return
		}

		canvas.Collaborators = append(canvas.Collaborators, req.UserID)
		render.JSON(w, r, canvas)
	}
}

func HandleDelete(store core.CanvasStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requestClaims(r)
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		id := chi.URLParam(r, "id")
		canvas, err := store.Get(r.Context(), id)
		if err != nil {
			respondStoreError(w, r, err, userID, id)
			return
		}

		if canvas.Owner != userID {
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, map[string]string{"error": "Only the owner can delete the canvas"})
			return
		}

		if err := store.Delete(r.Context(), id); err != nil {
			respondStoreError(w, r, err, userID, id)
			return
		}

		render.JSON(w, r, map[string]string{"message": "Canvas deleted successfully"})
	}
}

// fetchCanvas loads the canvas and enforces owner-or-collaborator access,
// writing the error response itself when something is off.
func fetchCanvas(w http.ResponseWriter, r *http.Request, store core.CanvasStore, userID string) (*core.Canvas, error) {
	id := chi.URLParam(r, "id")
	canvas, err := store.Get(r.Context(), id)
	if err != nil {
		respondStoreError(w, r, err, userID, id)
		return nil, err
	}

	if !canvas.HasAccess(userID) {
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, map[string]string{"error": "Access denied"})
		return nil, errors.New("access denied")
	}
	return canvas, nil
}

func respondStoreError(w http.ResponseWriter, r *http.Request, err error, userID, id string) {
	if errors.Is(err, core.ErrCanvasNotFound) {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, map[string]string{"error": "Canvas not found"})
		return
	}

	logrus.WithFields(logrus.Fields{
		"error":     err,
		"user_id":   userID,
		"canvas_id": id,
	}).Error("Canvas store operation failed")
	render.Status(r, http.StatusInternalServerError)
	render.JSON(w, r, map[string]string{"error": "Something went wrong"})
}
