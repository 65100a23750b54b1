package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/marden/trove/internal/models"
	"github.com/marden/trove/internal/store"
)

// ItemRequest is the request body for creating or updating an item.
// On update, absent fields are left untouched.
type ItemRequest struct {
	Name         *string  `json:"name"`
	Category     *string  `json:"category"`
	Quantity     *float64 `json:"quantity"`
	Unit         *string  `json:"unit"`
	PurchaseDate *string  `json:"purchase_date"`
	PhotoPath    *string  `json:"photo_path"`
	SupplierID   *int64   `json:"supplier_id"`
}

// ListItems handles GET /items. Supports ?q= full-text search and the
// filter parameters category, supplier_id, date_from, date_to,
// quantity_min and quantity_max.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		items []models.Item
		err   error
	)
	switch {
	case q.Get("q") != "":
		items, err = h.db.SearchItems(q.Get("q"))
	case hasFilterParams(q):
		filter, ferr := parseItemFilter(q)
		if ferr != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(ferr.Error()))
			return
		}
		items, err = h.db.FilterItems(filter)
	default:
		items, err = h.db.ListItems()
	}
	if err != nil {
		internalError(w, "list items", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": nonNil(items)})
}

func hasFilterParams(q map[string][]string) bool {
	for _, key := range []string{"category", "supplier_id", "date_from", "date_to", "quantity_min", "quantity_max"} {
		if _, ok := q[key]; ok {
			return true
		}
	}
	return false
}

func parseItemFilter(q map[string][]string) (store.ItemFilter, error) {
	get := func(key string) string {
		if v, ok := q[key]; ok && len(v) > 0 {
			return v[0]
		}
		return ""
	}
	f := store.ItemFilter{
		Category: get("category"),
		DateFrom: get("date_from"),
		DateTo:   get("date_to"),
	}
	if v := get("supplier_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, fmt.Errorf("invalid parameter supplier_id")
		}
		f.SupplierID = &id
	}
	if v := get("quantity_min"); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return f, fmt.Errorf("invalid parameter quantity_min")
		}
		f.QuantityMin = &n
	}
	if v := get("quantity_max"); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return f, fmt.Errorf("invalid parameter quantity_max")
		}
		f.QuantityMax = &n
	}
	return f, nil
}

// CreateItem handles POST /items.
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req ItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Name == nil || *req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}
	item := models.Item{
		Name:         *req.Name,
		Category:     req.Category,
		Quantity:     req.Quantity,
		Unit:         req.Unit,
		PurchaseDate: req.PurchaseDate,
		PhotoPath:    req.PhotoPath,
		SupplierID:   req.SupplierID,
	}
	id, err := h.db.AddItem(item)
	if err != nil {
		internalError(w, "create item", err)
		return
	}
	item.ID = id
	h.publish("item", "created", id)
	writeJSON(w, http.StatusCreated, item)
}

// GetItem handles GET /items/{id}.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid id"))
		return
	}
	item, err := h.db.ItemByID(id)
	if err != nil {
		internalError(w, "get item", err)
		return
	}
	if item == nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// UpdateItem handles PUT /items/{id}.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid id"))
		return
	}
	var req ItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	existing, err := h.db.ItemByID(id)
	if err != nil {
		internalError(w, "update item", err)
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	patch := store.ItemPatch{
		Name:         req.Name,
		Category:     req.Category,
		Quantity:     req.Quantity,
		Unit:         req.Unit,
		PurchaseDate: req.PurchaseDate,
		PhotoPath:    req.PhotoPath,
		SupplierID:   req.SupplierID,
	}
	if err := h.db.UpdateItem(id, patch); err != nil {
		internalError(w, "update item", err)
		return
	}
	updated, err := h.db.ItemByID(id)
	if err != nil {
		internalError(w, "update item", err)
		return
	}
	h.publish("item", "updated", id)
	writeJSON(w, http.StatusOK, updated)
}

// DeleteItem handles DELETE /items/{id}. Metadata, tag links and project
// material rows cascade.
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid id"))
		return
	}
	if err := h.db.DeleteItem(id); err != nil {
		internalError(w, "delete item", err)
		return
	}
	h.publish("item", "deleted", id)
	w.WriteHeader(http.StatusNoContent)
}

// ListItemTags handles GET /items/{id}/tags.
func (h *Handler) ListItemTags(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid id"))
		return
	}
	tags, err := h.db.ItemTags(id)
	if err != nil {
		internalError(w, "list item tags", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": nonNil(tags)})
}

// TagItem handles POST /items/{id}/tags with body {"tag_id": n}.
func (h *Handler) TagItem(w http.ResponseWriter, r *http.Request) {
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
	if err := h.db.TagItem(id, req.TagID); err != nil {
		internalError(w, "tag item", err)
		return
	}
	h.publish("item", "updated", id)
	w.WriteHeader(http.StatusNoContent)
}

// UntagItem handles DELETE /items/{id}/tags/{tagID}.
func (h *Handler) UntagItem(w http.ResponseWriter, r *http.Request) {
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
	if err := h.db.UntagItem(id, tagID); err != nil {
		internalError(w, "untag item", err)
		return
	}
	h.publish("item", "updated", id)
	w.WriteHeader(http.StatusNoContent)
}

// ListMetadata handles GET /items/{id}/metadata.
func (h *Handler) ListMetadata(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid id"))
		return
	}
	entries, err := h.db.Metadata(id)
	if err != nil {
		internalError(w, "list metadata", err)
		return
	}
	meta := make(map[string]string, len(entries))
	for _, e := range entries {
		meta[e.Key] = e.Value
	}
	writeJSON(w, http.StatusOK, map[string]any{"metadata": meta})
}

// SetMetadata handles PUT /items/{id}/metadata with body {"key": ..., "value": ...}.
// Setting an existing key replaces its value.
func (h *Handler) SetMetadata(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid id"))
		return
	}
	var req struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("key is required"))
		return
	}
	if err := h.db.SetMetadata(id, req.Key, req.Value); err != nil {
		internalError(w, "set metadata", err)
		return
	}
	h.publish("item", "updated", id)
	w.WriteHeader(http.StatusNoContent)
}

// DeleteMetadata handles DELETE /items/{id}/metadata/{key}.
func (h *Handler) DeleteMetadata(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid id"))
		return
	}
	key := chi.URLParam(r, "key")
	if key == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid key"))
		return
	}
	if err := h.db.DeleteMetadata(id, key); err != nil {
		internalError(w, "delete metadata", err)
		return
	}
	h.publish("item", "updated", id)
	w.WriteHeader(http.StatusNoContent)
}
