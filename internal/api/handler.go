package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/marden/trove/internal/exchange"
	"github.com/marden/trove/internal/sse"
	"github.com/marden/trove/internal/storage"
	"github.com/marden/trove/internal/store"
)

// Handler holds API route handlers. All routes are thin pass-throughs to the
// store and the exchange engine; no business logic lives here.
type Handler struct {
	db       store.Store
	exporter *exchange.Exporter
	importer *exchange.Importer
	broker   *sse.Broker
	ws       storage.Provider
	backups  string // backup directory (absolute)
}

// NewHandler creates a new Handler. broker may be nil (no change events).
func NewHandler(db store.Store, exporter *exchange.Exporter, importer *exchange.Importer, broker *sse.Broker, ws storage.Provider, backupDir string) *Handler {
	return &Handler{db: db, exporter: exporter, importer: importer, broker: broker, ws: ws, backups: backupDir}
}

// idParam parses the {id} URL parameter.
func idParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

func (h *Handler) publish(entity, kind string, id int64) {
	if h.broker != nil {
		h.broker.PublishChange(entity, kind, id)
	}
}

func internalError(w http.ResponseWriter, op string, err error) {
	slog.Error(op+" failed", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
}
