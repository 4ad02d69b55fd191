package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/gembooth/internal/images"
	"github.com/lehigh-university-libraries/gembooth/internal/models"
	"github.com/lehigh-university-libraries/gembooth/internal/session"
)

type snapResponse struct {
	Photo models.Photo `json:"photo"`
	Error string       `json:"error,omitempty"`
}

func (h *Handler) HandleListPhotos(w http.ResponseWriter, r *http.Request) {
	s, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, s.List())
}

func (h *Handler) HandleGetPhoto(w http.ResponseWriter, r *http.Request) {
	s, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	photo, ok := s.Get(r.PathValue("photo"))
	if !ok {
		h.writeError(w, "Photo not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, photo)
}

func (h *Handler) HandleDeletePhoto(w http.ResponseWriter, r *http.Request) {
	s, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	if !s.Remove(r.PathValue("photo")) {
		h.writeError(w, "Photo not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandlePhotoImage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	id := r.PathValue("photo")
	var (
		payload models.Payload
		found   bool
	)
	switch r.PathValue("kind") {
	case "input":
		payload, found = s.Input(id)
	case "output":
		payload, found = s.Output(id)
	default:
		h.writeError(w, "Unknown image kind", http.StatusNotFound)
		return
	}
	if !found {
		h.writeError(w, "Image not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", payload.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(len(payload.Data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if _, err := w.Write(payload.Data); err != nil {
		h.writeError(w, "Unable to write image: "+err.Error(), http.StatusInternalServerError)
	}
}

// HandleSnap captures a photo. The image is either a multipart "file" field
// or a JSON body {"image": "data:image/jpeg;base64,..."}. With ?wait=true
// the response is delayed until the transformation outcome is known.
func (h *Handler) HandleSnap(w http.ResponseWriter, r *http.Request) {
	s, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	var (
		payload models.Payload
		err     error
	)
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		payload, err = readDataURIUpload(r)
	} else {
		payload, err = readFileUpload(r)
	}
	if err != nil {
		h.writeError(w, "Invalid image: "+err.Error(), http.StatusBadRequest)
		return
	}

	task, err := s.Snap(payload)
	if err != nil {
		if errors.Is(err, images.ErrEmptyInput) {
			h.writeError(w, "Invalid image: "+err.Error(), http.StatusBadRequest)
			return
		}
		h.writeSessionError(w, err)
		return
	}

	if r.URL.Query().Get("wait") != "true" {
		h.writeSnapAccepted(w, s, task)
		return
	}

	result, err := task.Wait(r.Context())
	if err != nil {
		// client went away; the photo keeps processing
		return
	}
	photo, ok := s.Get(task.ID())
	if result.Status == models.StatusRemoved || !ok {
		h.writeError(w, "Photo was removed", http.StatusGone)
		return
	}
	resp := snapResponse{Photo: photo}
	if result.Err != nil {
		resp.Error = result.Err.Error()
	}
	h.writeJSON(w, resp)
}

// writeSnapAccepted answers a capture without waiting for its outcome. The
// photo may already be gone if another request removed it.
func (h *Handler) writeSnapAccepted(w http.ResponseWriter, s *session.Session, task *session.Task) {
	photo, ok := s.Get(task.ID())
	if !ok {
		h.writeError(w, "Photo was removed", http.StatusGone)
		return
	}
	h.writeJSONStatus(w, http.StatusAccepted, snapResponse{Photo: photo})
}

func readDataURIUpload(r *http.Request) (models.Payload, error) {
	var request struct {
		Image string `json:"image"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 2*images.MaxSize)).Decode(&request); err != nil {
		return models.Payload{}, err
	}
	if request.Image == "" {
		return models.Payload{}, images.ErrEmptyInput
	}
	return images.ParseDataURI(request.Image)
}

func readFileUpload(r *http.Request) (models.Payload, error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		file, header, err = r.FormFile("files")
		if err != nil {
			return models.Payload{}, err
		}
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, images.MaxSize+1))
	if err != nil {
		return models.Payload{}, err
	}

	return images.Validate(models.Payload{
		Data:     data,
		MIMEType: header.Header.Get("Content-Type"),
	})
}
