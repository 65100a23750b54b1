package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/marden/trove/internal/apperr"
	"github.com/marden/trove/internal/models"
	"github.com/marden/trove/internal/store"
)

// ProjectRequest is the request body for creating or updating a project.
// On update, absent fields are left untouched.
type ProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	DateCreated *string `json:"date_created"`
}

// ListProjects handles GET /projects with optional ?q= search.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	var (
		projects []models.Project
		err      error
	)
	if q := r.URL.Query().Get("q"); q != "" {
		projects, err = h.db.SearchProjects(q)
	} else {
		projects, err = h.db.ListProjects()
	}
	if err != nil {
		internalError(w, "list projects", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": nonNil(projects)})
}

// CreateProject handles POST /projects.
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req ProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Name == nil || *req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}
	p := models.Project{Name: *req.Name, Description: req.Description, DateCreated: req.DateCreated}
	id, err := h.db.AddProject(p)
	if err != nil {
		internalError(w, "create project", err)
		return
	}
	p.ID = id
	h.publish("project", "created", id)
	writeJSON(w, http.StatusCreated, p)
}

// GetProject handles GET /projects/{id}.
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid id"))
		return
	}
	p, err := h.db.ProjectByID(id)
	if err != nil {
		internalError(w, "get project", err)
		return
	}
	if p == nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdateProject handles PUT /projects/{id}.
func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid id"))
		return
	}
	var req ProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	existing, err := h.db.ProjectByID(id)
	if err != nil {
		internalError(w, "update project", err)
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	patch := store.ProjectPatch{
		Name:        req.Name,
		Description: req.Description,
		DateCreated: req.DateCreated,
	}
	if err := h.db.UpdateProject(id, patch); err != nil {
		internalError(w, "update project", err)
		return
	}
	updated, err := h.db.ProjectByID(id)
	if err != nil {
		internalError(w, "update project", err)
		return
	}
	h.publish("project", "updated", id)
	writeJSON(w, http.StatusOK, updated)
}

// DeleteProject handles DELETE /projects/{id}. Material rows and tag links cascade.
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid id"))
		return
	}
	if err := h.db.DeleteProject(id); err != nil {
		internalError(w, "delete project", err)
		return
	}
	h.publish("project", "deleted", id)
	w.WriteHeader(http.StatusNoContent)
}

// ListMaterials handles GET /projects/{id}/materials.
func (h *Handler) ListMaterials(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid id"))
		return
	}
	materials, err := h.db.MaterialsByProject(id)
	if err != nil {
		internalError(w, "list materials", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"materials": nonNil(materials)})
}

// AddMaterial handles POST /projects/{id}/materials with body
// {"item_id": n, "quantity_used": x}.
func (h *Handler) AddMaterial(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid id"))
		return
	}
	var req struct {
		ItemID       int64   `json:"item_id"`
		QuantityUsed float64 `json:"quantity_used"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ItemID == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("item_id is required"))
		return
	}
	mid, err := h.db.AddMaterial(id, req.ItemID, req.QuantityUsed)
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			writeJSON(w, http.StatusConflict, errorBody("unknown project or item"))
			return
		}
		internalError(w, "add material", err)
		return
	}
	h.publish("project", "updated", id)
	writeJSON(w, http.StatusCreated, map[string]any{"id": mid})
}

// UpdateMaterial handles PUT /materials/{id} with body {"quantity_used": x}.
func (h *Handler) UpdateMaterial(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid id"))
		return
	}
	var req struct {
		QuantityUsed *float64 `json:"quantity_used"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.QuantityUsed == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("quantity_used is required"))
		return
	}
	if err := h.db.UpdateMaterial(id, store.MaterialPatch{QuantityUsed: req.QuantityUsed}); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		internalError(w, "update material", err)
		return
	}
	h.publish("material", "updated", id)
	w.WriteHeader(http.StatusNoContent)
}

// DeleteMaterial handles DELETE /materials/{id}.
func (h *Handler) DeleteMaterial(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid id"))
		return
	}
	if err := h.db.DeleteMaterial(id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		internalError(w, "delete material", err)
		return
	}
	h.publish("material", "deleted", id)
	w.WriteHeader(http.StatusNoContent)
}

// ListProjectTags handles GET /projects/{id}/tags.
func (h *Handler) ListProjectTags(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid id"))
		return
	}
	tags, err := h.db.ProjectTags(id)
	if err != nil {
		internalError(w, "list project tags", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": nonNil(tags)})
}

// TagProject handles POST /projects/{id}/tags with body {"tag_id": n}.
func (h *Handler) TagProject(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid id"))
		return
	}
	var req struct {
		TagID int64 `json:"tag_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TagID == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("tag_id is required"))
		return
	}
	if err := h.db.TagProject(id, req.TagID); err != nil {
		internalError(w, "tag project", err)
		return
	}
	h.publish("project", "updated", id)
	w.WriteHeader(http.StatusNoContent)
}

// UntagProject handles DELETE /projects/{id}/tags/{tagID}.
func (h *Handler) UntagProject(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid id"))
		return
	}
	tagID, err := strconv.ParseInt(chi.URLParam(r, "tagID"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid tag id"))
		return
	}
	if err := h.db.UntagProject(id, tagID); err != nil {
		internalError(w, "untag project", err)
		return
	}
	h.publish("project", "updated", id)
	w.WriteHeader(http.StatusNoContent)
}
