package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/marden/trove/internal/apperr"
	"github.com/marden/trove/internal/models"
	"github.com/marden/trove/internal/store"
)

// TagRequest is the request body for creating or updating a tag.
type TagRequest struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
}

// ListTags handles GET /tags.
func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.db.ListTags()
	if err != nil {
		internalError(w, "list tags", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": nonNil(tags)})
}

// CreateTag handles POST /tags. Tag names are unique; creating a duplicate
// returns 409.
func (h *Handler) CreateTag(w http.ResponseWriter, r *http.Request) {
	var req TagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Name == nil || *req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}
	t := models.Tag{Name: *req.Name, Color: req.Color}
	id, err := h.db.AddTag(t)
	if err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			writeJSON(w, http.StatusConflict, errorBody("tag already exists"))
			return
		}
		internalError(w, "create tag", err)
		return
	}
	t.ID = id
	h.publish("tag", "created", id)
	writeJSON(w, http.StatusCreated, t)
}

// GetTag handles GET /tags/{id}.
func (h *Handler) GetTag(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid id"))
		return
	}
	t, err := h.db.TagByID(id)
	if err != nil {
		internalError(w, "get tag", err)
		return
	}
	if t == nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// UpdateTag handles PUT /tags/{id}.
func (h *Handler) UpdateTag(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid id"))
		return
	}
	var req TagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	existing, err := h.db.TagByID(id)
	if err != nil {
		internalError(w, "update tag", err)
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	if err := h.db.UpdateTag(id, store.TagPatch{Name: req.Name, Color: req.Color}); err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			writeJSON(w, http.StatusConflict, errorBody("tag already exists"))
			return
		}
		internalError(w, "update tag", err)
		return
	}
	updated, err := h.db.TagByID(id)
	if err != nil {
		internalError(w, "update tag", err)
		return
	}
	h.publish("tag", "updated", id)
	writeJSON(w, http.StatusOK, updated)
}

// DeleteTag handles DELETE /tags/{id}. Item and project links cascade.
func (h *Handler) DeleteTag(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid id"))
		return
	}
	if err := h.db.DeleteTag(id); err != nil {
		internalError(w, "delete tag", err)
		return
	}
	h.publish("tag", "deleted", id)
	w.WriteHeader(http.StatusNoContent)
}

// ListTagItems handles GET /tags/{id}/items.
func (h *Handler) ListTagItems(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid id"))
		return
	}
	items, err := h.db.ItemsByTag(id)
	if err != nil {
		internalError(w, "list tag items", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": nonNil(items)})
}

// ListTagProjects handles GET /tags/{id}/projects.
func (h *Handler) ListTagProjects(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid id"))
		return
	}
	projects, err := h.db.ProjectsByTag(id)
	if err != nil {
		internalError(w, "list tag projects", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": nonNil(projects)})
}
