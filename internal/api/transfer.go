package api

import (
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/marden/trove/internal/checksum"
	"github.com/marden/trove/internal/exchange"
)

const maxImportBytes = 100 << 20 // 100 MB

// ExportItemsCSV handles GET /export/items.csv.
func (h *Handler) ExportItemsCSV(w http.ResponseWriter, r *http.Request) {
	h.streamCSV(w, "items.csv", h.exporter.WriteItemsCSV)
}

// ExportProjectsCSV handles GET /export/projects.csv.
func (h *Handler) ExportProjectsCSV(w http.ResponseWriter, r *http.Request) {
	h.streamCSV(w, "projects.csv", h.exporter.WriteProjectsCSV)
}

// ExportSuppliersCSV handles GET /export/suppliers.csv.
func (h *Handler) ExportSuppliersCSV(w http.ResponseWriter, r *http.Request) {
	h.streamCSV(w, "suppliers.csv", h.exporter.WriteSuppliersCSV)
}

func (h *Handler) streamCSV(w http.ResponseWriter, filename string, render func(io.Writer) error) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := render(w); err != nil {
		// Headers are already out; the response cannot be rewritten.
		slog.Error("export "+filename+" failed", slog.String("error", err.Error()))
	}
}

// ExportSnapshot handles GET /export/snapshot.json.
func (h *Handler) ExportSnapshot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="snapshot.json"`)
	if err := h.exporter.WriteSnapshotJSON(w); err != nil {
		slog.Error("export snapshot failed", slog.String("error", err.Error()))
	}
}

// ListBackups handles GET /backups, listing snapshot files in the workspace
// backups directory.
func (h *Handler) ListBackups(w http.ResponseWriter, r *http.Request) {
	files, err := h.ws.List("backups", ".json")
	if err != nil {
		internalError(w, "list backups", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"backups": nonNil(files)})
}

// CreateBackup handles POST /backups. Writes a timestamped snapshot into the
// backup directory and reports its path and checksum.
func (h *Handler) CreateBackup(w http.ResponseWriter, r *http.Request) {
	path, err := h.exporter.CreateBackup(h.backups)
	if err != nil {
		internalError(w, "create backup", err)
		return
	}
	sum, err := checksum.SumFile(path)
	if err != nil {
		internalError(w, "create backup", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"path":     path,
		"checksum": sum,
	})
}

// Import handles POST /import (multipart/form-data, field "file").
// Form values: "format" is csv or json (defaults from the file extension),
// "policy" is skip, update or rename (defaults to skip).
// The import result is returned even when individual rows failed.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	policy, err := exchange.ParsePolicy(r.FormValue("policy"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	format := strings.ToLower(r.FormValue("format"))
	if format == "" {
		switch strings.ToLower(filepath.Ext(header.Filename)) {
		case ".json":
			format = "json"
		case ".csv":
			format = "csv"
		}
	}
	if format != "csv" && format != "json" {
		writeJSON(w, http.StatusBadRequest, errorBody("format must be csv or json"))
		return
	}

	// The import engine works on files; spool the upload to a temp file.
	tmp, err := os.CreateTemp("", "trove-import-*."+format)
	if err != nil {
		internalError(w, "import", err)
		return
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		internalError(w, "import", err)
		return
	}
	if err := tmp.Close(); err != nil {
		internalError(w, "import", err)
		return
	}

	var result exchange.Result
	if format == "json" {
		result = h.importer.ImportSnapshot(tmp.Name(), policy)
	} else {
		result = h.importer.ImportItemsCSV(tmp.Name(), policy)
	}

	if result.Imported > 0 {
		h.publish("inventory", "imported", 0)
	}
	writeJSON(w, http.StatusOK, result)
}
