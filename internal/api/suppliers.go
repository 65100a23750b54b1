package api

import (
	"encoding/json"
	"net/http"

	"github.com/marden/trove/internal/models"
	"github.com/marden/trove/internal/store"
)

// SupplierRequest is the request body for creating or updating a supplier.
// On update, absent fields are left untouched.
type SupplierRequest struct {
	Name        *string `json:"name"`
	ContactInfo *string `json:"contact_info"`
	Website     *string `json:"website"`
	Notes       *string `json:"notes"`
}

// ListSuppliers handles GET /suppliers with optional ?q= search.
func (h *Handler) ListSuppliers(w http.ResponseWriter, r *http.Request) {
	var (
		suppliers []models.Supplier
		err       error
	)
	if q := r.URL.Query().Get("q"); q != "" {
		suppliers, err = h.db.SearchSuppliers(q)
	} else {
		suppliers, err = h.db.ListSuppliers()
	}
	if err != nil {
		internalError(w, "list suppliers", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suppliers": nonNil(suppliers)})
}

// CreateSupplier handles POST /suppliers.
func (h *Handler) CreateSupplier(w http.ResponseWriter, r *http.Request) {
	var req SupplierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Name == nil || *req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}
	s := models.Supplier{Name: *req.Name, Website: req.Website, Notes: req.Notes}
	if req.ContactInfo != nil {
		s.ContactInfo = *req.ContactInfo
	}
	id, err := h.db.AddSupplier(s)
	if err != nil {
		internalError(w, "create supplier", err)
		return
	}
	s.ID = id
	h.publish("supplier", "created", id)
	writeJSON(w, http.StatusCreated, s)
}

// GetSupplier handles GET /suppliers/{id}.
func (h *Handler) GetSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid id"))
		return
	}
	s, err := h.db.SupplierByID(id)
	if err != nil {
		internalError(w, "get supplier", err)
		return
	}
	if s == nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// UpdateSupplier handles PUT /suppliers/{id}.
func (h *Handler) UpdateSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid id"))
		return
	}
	var req SupplierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	existing, err := h.db.SupplierByID(id)
	if err != nil {
		internalError(w, "update supplier", err)
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	patch := store.SupplierPatch{
		Name:        req.Name,
		ContactInfo: req.ContactInfo,
		Website:     req.Website,
		Notes:       req.Notes,
	}
	if err := h.db.UpdateSupplier(id, patch); err != nil {
		internalError(w, "update supplier", err)
		return
	}
	updated, err := h.db.SupplierByID(id)
	if err != nil {
		internalError(w, "update supplier", err)
		return
	}
	h.publish("supplier", "updated", id)
	writeJSON(w, http.StatusOK, updated)
}

// DeleteSupplier handles DELETE /suppliers/{id}. Items keep a null supplier.
func (h *Handler) DeleteSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid id"))
		return
	}
	if err := h.db.DeleteSupplier(id); err != nil {
		internalError(w, "delete supplier", err)
		return
	}
	h.publish("supplier", "deleted", id)
	w.WriteHeader(http.StatusNoContent)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
