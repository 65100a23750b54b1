// Package exchange implements the export/import reconciliation engine: it
// serializes the full dataset to portable CSV/JSON files and replays such
// files back into the store, remapping IDs and resolving name conflicts.
package exchange

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/marden/trove/internal/models"
	"github.com/marden/trove/internal/store"
)

// Exporter walks the store and renders portable exports. Exporting is a pure
// read-then-render operation; it never mutates the repository.
type Exporter struct {
	db store.Store
}

// NewExporter creates an Exporter backed by the given store.
func NewExporter(db store.Store) *Exporter {
	return &Exporter{db: db}
}

// WriteItemsCSV writes all items to w with the supplier column denormalized
// to the supplier's name. An empty item set produces a header-only file.
func (e *Exporter) WriteItemsCSV(w io.Writer) error {
	items, err := e.db.ListItems()
	if err != nil {
		return fmt.Errorf("exchange: list items: %w", err)
	}
	suppliers, err := e.db.ListSuppliers()
	if err != nil {
		return fmt.Errorf("exchange: list suppliers: %w", err)
	}
	names := make(map[int64]string, len(suppliers))
	for _, s := range suppliers {
		names[s.ID] = s.Name
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "name", "category", "quantity", "unit", "supplier", "purchase_date", "photo_path"}); err != nil {
		return fmt.Errorf("exchange: write header: %w", err)
	}
	for _, i := range items {
		supplier := ""
		if i.SupplierID != nil {
			supplier = names[*i.SupplierID]
		}
		rec := []string{
			strconv.FormatInt(i.ID, 10),
			i.Name,
			strOrEmpty(i.Category),
			floatOrEmpty(i.Quantity),
			strOrEmpty(i.Unit),
			supplier,
			strOrEmpty(i.PurchaseDate),
			strOrEmpty(i.PhotoPath),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("exchange: write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteProjectsCSV writes all projects to w.
func (e *Exporter) WriteProjectsCSV(w io.Writer) error {
	projects, err := e.db.ListProjects()
	if err != nil {
		return fmt.Errorf("exchange: list projects: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "name", "description", "date_created"}); err != nil {
		return fmt.Errorf("exchange: write header: %w", err)
	}
	for _, p := range projects {
		rec := []string{strconv.FormatInt(p.ID, 10), p.Name, strOrEmpty(p.Description), strOrEmpty(p.DateCreated)}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("exchange: write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSuppliersCSV writes all suppliers to w.
func (e *Exporter) WriteSuppliersCSV(w io.Writer) error {
	suppliers, err := e.db.ListSuppliers()
	if err != nil {
		return fmt.Errorf("exchange: list suppliers: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "name", "contact_info", "website", "notes"}); err != nil {
		return fmt.Errorf("exchange: write header: %w", err)
	}
	for _, s := range suppliers {
		rec := []string{strconv.FormatInt(s.ID, 10), s.Name, s.ContactInfo, strOrEmpty(s.Website), strOrEmpty(s.Notes)}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("exchange: write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// BuildSnapshot assembles the full-dataset snapshot, including every
// association map, keyed by the current (soon to be "old") entity IDs.
func (e *Exporter) BuildSnapshot() (*Snapshot, error) {
	suppliers, err := e.db.ListSuppliers()
	if err != nil {
		return nil, fmt.Errorf("exchange: list suppliers: %w", err)
	}
	items, err := e.db.ListItems()
	if err != nil {
		return nil, fmt.Errorf("exchange: list items: %w", err)
	}
	projects, err := e.db.ListProjects()
	if err != nil {
		return nil, fmt.Errorf("exchange: list projects: %w", err)
	}
	tags, err := e.db.ListTags()
	if err != nil {
		return nil, fmt.Errorf("exchange: list tags: %w", err)
	}

	data := SnapshotData{
		Suppliers:        suppliers,
		Items:            items,
		Projects:         projects,
		Tags:             tags,
		ProjectMaterials: map[string][]models.ProjectMaterial{},
		ItemTags:         map[string][]int64{},
		ProjectTags:      map[string][]int64{},
		ItemMetadata:     map[string]map[string]string{},
	}

	for _, p := range projects {
		key := strconv.FormatInt(p.ID, 10)
		materials, err := e.db.MaterialsByProject(p.ID)
		if err != nil {
			return nil, fmt.Errorf("exchange: materials for project %d: %w", p.ID, err)
		}
		data.ProjectMaterials[key] = materials

		ptags, err := e.db.ProjectTags(p.ID)
		if err != nil {
			return nil, fmt.Errorf("exchange: tags for project %d: %w", p.ID, err)
		}
		ids := make([]int64, 0, len(ptags))
		for _, t := range ptags {
			ids = append(ids, t.ID)
		}
		data.ProjectTags[key] = ids
	}

	for _, i := range items {
		key := strconv.FormatInt(i.ID, 10)
		itags, err := e.db.ItemTags(i.ID)
		if err != nil {
			return nil, fmt.Errorf("exchange: tags for item %d: %w", i.ID, err)
		}
		ids := make([]int64, 0, len(itags))
		for _, t := range itags {
			ids = append(ids, t.ID)
		}
		data.ItemTags[key] = ids

		meta, err := e.db.Metadata(i.ID)
		if err != nil {
			return nil, fmt.Errorf("exchange: metadata for item %d: %w", i.ID, err)
		}
		kv := make(map[string]string, len(meta))
		for _, m := range meta {
			kv[m.Key] = m.Value
		}
		data.ItemMetadata[key] = kv
	}

	return &Snapshot{
		ExportDate: time.Now().Format(time.RFC3339),
		Version:    SnapshotVersion,
		Data:       data,
	}, nil
}

// WriteSnapshotJSON renders the snapshot to w as pretty-printed JSON with
// Unicode preserved (HTML escaping off).
func (e *Exporter) WriteSnapshotJSON(w io.Writer) error {
	snap, err := e.BuildSnapshot()
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("exchange: encode snapshot: %w", err)
	}
	return nil
}

// ExportItemsCSV writes the item export to path atomically.
func (e *Exporter) ExportItemsCSV(path string) error {
	return writeFileAtomic(path, e.WriteItemsCSV)
}

// ExportProjectsCSV writes the project export to path atomically.
func (e *Exporter) ExportProjectsCSV(path string) error {
	return writeFileAtomic(path, e.WriteProjectsCSV)
}

// ExportSuppliersCSV writes the supplier export to path atomically.
func (e *Exporter) ExportSuppliersCSV(path string) error {
	return writeFileAtomic(path, e.WriteSuppliersCSV)
}

// ExportSnapshotJSON writes the full snapshot to path atomically.
func (e *Exporter) ExportSnapshotJSON(path string) error {
	return writeFileAtomic(path, e.WriteSnapshotJSON)
}

// CreateBackup writes a timestamped snapshot into dir (created if absent) and
// returns the resolved file path.
func (e *Exporter) CreateBackup(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("exchange: create backup dir: %w", err)
	}
	name := fmt.Sprintf("backup_%s.json", time.Now().Format("20060102_150405"))
	path := filepath.Join(dir, name)
	if err := e.ExportSnapshotJSON(path); err != nil {
		return "", err
	}
	return path, nil
}

// writeFileAtomic renders into a temp file in the destination directory and
// renames it into place, so a failed export never leaves a partial file.
func writeFileAtomic(path string, render func(io.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".trove-export-*")
	if err != nil {
		return fmt.Errorf("exchange: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err := render(tmp); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("exchange: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("exchange: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("exchange: rename: %w", err)
	}
	success = true
	return nil
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func floatOrEmpty(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
