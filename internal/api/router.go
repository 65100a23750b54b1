package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marden/trove/internal/storage"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// ws is the workspace provider that photos and backups live in.
func NewRouter(h *Handler, authEnabled bool, token string, sseHandler http.Handler, ws storage.Provider) chi.Router {
	ph := NewPhotoHandler(ws)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Suppliers.
	r.Get("/suppliers", h.ListSuppliers)
	r.Post("/suppliers", h.CreateSupplier)
	r.Get("/suppliers/{id}", h.GetSupplier)
	r.Put("/suppliers/{id}", h.UpdateSupplier)
	r.Delete("/suppliers/{id}", h.DeleteSupplier)

	// Items, their tags and metadata.
	r.Get("/items", h.ListItems)
	r.Post("/items", h.CreateItem)
	r.Get("/items/{id}", h.GetItem)
	r.Put("/items/{id}", h.UpdateItem)
	r.Delete("/items/{id}", h.DeleteItem)
	r.Get("/items/{id}/tags", h.ListItemTags)
	r.Post("/items/{id}/tags", h.TagItem)
	r.Delete("/items/{id}/tags/{tagID}", h.UntagItem)
	r.Get("/items/{id}/metadata", h.ListMetadata)
	r.Put("/items/{id}/metadata", h.SetMetadata)
	r.Delete("/items/{id}/metadata/{key}", h.DeleteMetadata)

	// Projects, their materials and tags.
	r.Get("/projects", h.ListProjects)
	r.Post("/projects", h.CreateProject)
	r.Get("/projects/{id}", h.GetProject)
	r.Put("/projects/{id}", h.UpdateProject)
	r.Delete("/projects/{id}", h.DeleteProject)
	r.Get("/projects/{id}/materials", h.ListMaterials)
	r.Post("/projects/{id}/materials", h.AddMaterial)
	r.Get("/projects/{id}/tags", h.ListProjectTags)
	r.Post("/projects/{id}/tags", h.TagProject)
	r.Delete("/projects/{id}/tags/{tagID}", h.UntagProject)
	r.Put("/materials/{id}", h.UpdateMaterial)
	r.Delete("/materials/{id}", h.DeleteMaterial)

	// Tags.
	r.Get("/tags", h.ListTags)
	r.Post("/tags", h.CreateTag)
	r.Get("/tags/{id}", h.GetTag)
	r.Put("/tags/{id}", h.UpdateTag)
	r.Delete("/tags/{id}", h.DeleteTag)
	r.Get("/tags/{id}/items", h.ListTagItems)
	r.Get("/tags/{id}/projects", h.ListTagProjects)

	// Export, import, backup.
	r.Get("/export/items.csv", h.ExportItemsCSV)
	r.Get("/export/projects.csv", h.ExportProjectsCSV)
	r.Get("/export/suppliers.csv", h.ExportSuppliersCSV)
	r.Get("/export/snapshot.json", h.ExportSnapshot)
	r.Get("/backups", h.ListBackups)
	r.Post("/backups", h.CreateBackup)
	r.Post("/import", h.Import)

	// Item photos (multipart upload, auth-protected).
	r.Post("/photos", ph.Upload)
	r.Get("/photos/{filename}", ph.ServeFile)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
