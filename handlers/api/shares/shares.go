package shares

import (
	"bytes"
	"io"
	"net/http"

	"collabcanvas/core"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type CreateShareResponse struct {
	ID string `json:"id"`
}

// HandleCreate publishes a canvas export under an anonymous id. Shares are
// immutable: there is no update or delete, the link either resolves or not.
func HandleCreate(store core.ShareStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			logrus.WithError(err).Error("Failed to read share body")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to read request body"})
			return
		}
		defer r.Body.Close()

		if len(data) == 0 {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Share payload is required"})
			return
		}

		share := &core.Share{Data: *bytes.NewBuffer(data)}
		id, err := store.Publish(r.Context(), share)
		if err != nil {
			logrus.WithError(err).Error("Failed to create share")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to create share"})
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, CreateShareResponse{ID: id})
	}
}

func HandleGet(store core.ShareStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		share, err := store.FindID(r.Context(), id)
		if err != nil {
			logrus.WithField("share_id", id).WithError(err).Warn("Share not found")
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Share not found"})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(share.Data.Bytes())
	}
}
