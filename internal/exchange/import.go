package exchange

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/marden/trove/internal/models"
	"github.com/marden/trove/internal/store"
)

// Policy selects how a natural-identity (name) conflict is resolved during
// import.
type Policy string

// Conflict policies.
const (
	// PolicySkip leaves the existing record untouched and counts the
	// incoming one as skipped.
	PolicySkip Policy = "skip"
	// PolicyUpdate applies non-empty incoming fields onto the existing
	// record in place.
	PolicyUpdate Policy = "update"
	// PolicyRename inserts the incoming record under a disambiguated name
	// ("name (n)" with the smallest free n).
	PolicyRename Policy = "rename"
)

// ParsePolicy validates a policy string from a CLI flag or query parameter.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicySkip, PolicyUpdate, PolicyRename:
		return Policy(s), nil
	case "":
		return PolicySkip, nil
	}
	return "", fmt.Errorf("exchange: unknown conflict policy %q", s)
}

// Result is the outcome of an import run. A single record's failure never
// aborts the run; it is recorded here and processing continues.
type Result struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors"`
}

func (r *Result) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Importer replays portable export files into the store, rebuilding
// foreign-key relationships under the chosen conflict policy.
//
// Referential gaps during snapshot import are skipped silently, not reported
// as errors: a snapshot pruned of some entities is still importable, and
// associations pointing at the pruned entities simply find no remap entry.
type Importer struct {
	db store.Store
}

// NewImporter creates an Importer backed by the given store.
func NewImporter(db store.Store) *Importer {
	return &Importer{db: db}
}

// ImportItemsCSV imports an item CSV (columns: name, category, quantity,
// unit, supplier, purchase_date, photo_path; supplier matched by name).
// File-level failures are reported inside the Result, never raised.
func (imp *Importer) ImportItemsCSV(path string, policy Policy) Result {
	var res Result

	f, err := os.Open(path)
	if err != nil {
		res.errorf("File error: %v", err)
		return res
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		res.errorf("File error: %v", err)
		return res
	}
	cols := make(map[string]int, len(header))
	for idx, name := range header {
		cols[strings.TrimSpace(name)] = idx
	}
	field := func(rec []string, name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[idx])
	}

	// Data rows are numbered from 2; row 1 is the header.
	for rowNum := 2; ; rowNum++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			res.errorf("Row %d: %v", rowNum, err)
			res.Skipped++
			continue
		}

		name := field(rec, "name")
		if name == "" {
			res.errorf("Row %d: Missing required field 'name'", rowNum)
			res.Skipped++
			continue
		}

		items, err := imp.db.ListItems()
		if err != nil {
			res.errorf("Row %d: %v", rowNum, err)
			res.Skipped++
			continue
		}
		existing := findItem(items, name)

		if existing != nil {
			switch policy {
			case PolicySkip:
				res.Skipped++
				continue

			case PolicyUpdate:
				patch := store.ItemPatch{}
				if v := field(rec, "category"); v != "" {
					patch.Category = &v
				}
				if v := field(rec, "quantity"); v != "" {
					q, err := strconv.ParseFloat(v, 64)
					if err != nil {
						res.errorf("Row %d: invalid quantity %q", rowNum, v)
						res.Skipped++
						continue
					}
					patch.Quantity = &q
				}
				if v := field(rec, "unit"); v != "" {
					patch.Unit = &v
				}
				if v := field(rec, "purchase_date"); v != "" {
					patch.PurchaseDate = &v
				}
				if v := field(rec, "photo_path"); v != "" {
					patch.PhotoPath = &v
				}
				if id := imp.resolveSupplier(field(rec, "supplier")); id != nil {
					patch.SupplierID = id
				}
				if err := imp.db.UpdateItem(existing.ID, patch); err != nil {
					res.errorf("Row %d: %v", rowNum, err)
					res.Skipped++
					continue
				}
				res.Imported++
				continue

			case PolicyRename:
				taken := make(map[string]bool, len(items))
				for _, i := range items {
					taken[i.Name] = true
				}
				// Fall through to a plain insert under the free name,
				// with every field re-resolved.
				name = uniqueName(name, taken)
			}
		}

		item := models.Item{Name: name}
		if v := field(rec, "category"); v != "" {
			item.Category = &v
		}
		if v := field(rec, "quantity"); v != "" {
			q, err := strconv.ParseFloat(v, 64)
			if err != nil {
				res.errorf("Row %d: invalid quantity %q", rowNum, v)
				res.Skipped++
				continue
			}
			item.Quantity = &q
		}
		if v := field(rec, "unit"); v != "" {
			item.Unit = &v
		}
		if v := field(rec, "purchase_date"); v != "" {
			item.PurchaseDate = &v
		}
		if v := field(rec, "photo_path"); v != "" {
			item.PhotoPath = &v
		}
		item.SupplierID = imp.resolveSupplier(field(rec, "supplier"))

		if _, err := imp.db.AddItem(item); err != nil {
			res.errorf("Row %d: %v", rowNum, err)
			res.Skipped++
			continue
		}
		res.Imported++
	}

	return res
}

// ImportSnapshot replays a JSON snapshot produced by ExportSnapshotJSON
// (possibly by a different database instance, so numeric IDs are never
// trusted). One remap table per entity kind translates old IDs to the IDs
// assigned here, and entity kinds are processed in dependency order so every
// foreign key resolves to a record created earlier in the same pass.
func (imp *Importer) ImportSnapshot(path string, policy Policy) Result {
	var res Result

	raw, err := os.ReadFile(path)
	if err != nil {
		res.errorf("File error: %v", err)
		return res
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		res.errorf("File error: %v", err)
		return res
	}
	data := snap.Data

	supplierMap := make(map[int64]int64)
	itemMap := make(map[int64]int64)
	tagMap := make(map[int64]int64)
	projectMap := make(map[int64]int64)

	// 1. Suppliers (no FK dependency).
	for _, s := range data.Suppliers {
		newID, skipped, err := imp.reconcileSupplier(s, policy)
		if err != nil {
			res.errorf("Supplier %s: %v", s.Name, err)
			res.Skipped++
			continue
		}
		if s.ID != 0 {
			supplierMap[s.ID] = newID
		}
		if skipped {
			res.Skipped++
		} else {
			res.Imported++
		}
	}

	// 2. Items, with supplier_id translated through the supplier remap.
	for _, i := range data.Items {
		incoming := i
		incoming.SupplierID = remapOptional(i.SupplierID, supplierMap)
		newID, skipped, err := imp.reconcileItem(incoming, policy)
		if err != nil {
			res.errorf("Item %s: %v", i.Name, err)
			res.Skipped++
			continue
		}
		if i.ID != 0 {
			itemMap[i.ID] = newID
		}
		if skipped {
			res.Skipped++
		} else {
			res.Imported++
		}
	}

	// 3. Tags.
	for _, t := range data.Tags {
		newID, skipped, err := imp.reconcileTag(t, policy)
		if err != nil {
			res.errorf("Tag %s: %v", t.Name, err)
			res.Skipped++
			continue
		}
		if t.ID != 0 {
			tagMap[t.ID] = newID
		}
		if skipped {
			res.Skipped++
		} else {
			res.Imported++
		}
	}

	// 4. Item-tag associations. Either side missing from its remap means the
	// owning entity was pruned or failed: skip silently.
	for key, tagIDs := range data.ItemTags {
		itemID, ok := remapKey(key, itemMap)
		if !ok {
			continue
		}
		for _, oldTag := range tagIDs {
			tagID, ok := tagMap[oldTag]
			if !ok {
				continue
			}
			if err := imp.db.TagItem(itemID, tagID); err != nil {
				res.errorf("Item tag association: %v", err)
			}
		}
	}

	// 5. Projects.
	for _, p := range data.Projects {
		newID, skipped, err := imp.reconcileProject(p, policy)
		if err != nil {
			res.errorf("Project %s: %v", p.Name, err)
			res.Skipped++
			continue
		}
		if p.ID != 0 {
			projectMap[p.ID] = newID
		}
		if skipped {
			res.Skipped++
		} else {
			res.Imported++
		}
	}

	// 6. Project materials.
	for key, materials := range data.ProjectMaterials {
		projectID, ok := remapKey(key, projectMap)
		if !ok {
			continue
		}
		for _, m := range materials {
			itemID, ok := itemMap[m.ItemID]
			if !ok {
				continue
			}
			if imp.materialExists(projectID, itemID, m.QuantityUsed) {
				continue
			}
			if _, err := imp.db.AddMaterial(projectID, itemID, m.QuantityUsed); err != nil {
				res.errorf("Project material: %v", err)
			}
		}
	}

	// 7. Project-tag associations.
	for key, tagIDs := range data.ProjectTags {
		projectID, ok := remapKey(key, projectMap)
		if !ok {
			continue
		}
		for _, oldTag := range tagIDs {
			tagID, ok := tagMap[oldTag]
			if !ok {
				continue
			}
			if err := imp.db.TagProject(projectID, tagID); err != nil {
				res.errorf("Project tag association: %v", err)
			}
		}
	}

	// 8. Item metadata (upsert: re-imported keys overwrite).
	for key, kv := range data.ItemMetadata {
		itemID, ok := remapKey(key, itemMap)
		if !ok {
			continue
		}
		for k, v := range kv {
			if err := imp.db.SetMetadata(itemID, k, v); err != nil {
				res.errorf("Item metadata: %v", err)
			}
		}
	}

	return res
}

// reconcileSupplier resolves one incoming supplier. The ID-based lookup comes
// first (a backup restored into its source database hits it); the name lookup
// makes re-importing the same snapshot idempotent under skip.
func (imp *Importer) reconcileSupplier(s models.Supplier, policy Policy) (id int64, skipped bool, err error) {
	existing, err := imp.supplierConflict(s)
	if err != nil {
		return 0, false, err
	}
	if existing != nil {
		switch policy {
		case PolicySkip:
			return existing.ID, true, nil
		case PolicyUpdate:
			patch := store.SupplierPatch{}
			if s.Name != "" {
				patch.Name = &s.Name
			}
			if s.ContactInfo != "" {
				patch.ContactInfo = &s.ContactInfo
			}
			patch.Website = s.Website
			patch.Notes = s.Notes
			if err := imp.db.UpdateSupplier(existing.ID, patch); err != nil {
				return 0, false, err
			}
			return existing.ID, false, nil
		case PolicyRename:
			suppliers, err := imp.db.ListSuppliers()
			if err != nil {
				return 0, false, err
			}
			taken := make(map[string]bool, len(suppliers))
			for _, cur := range suppliers {
				taken[cur.Name] = true
			}
			s.Name = uniqueName(s.Name, taken)
		}
	}
	newID, err := imp.db.AddSupplier(s)
	if err != nil {
		return 0, false, err
	}
	return newID, false, nil
}

func (imp *Importer) supplierConflict(s models.Supplier) (*models.Supplier, error) {
	if s.ID != 0 {
		existing, err := imp.db.SupplierByID(s.ID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}
	suppliers, err := imp.db.ListSuppliers()
	if err != nil {
		return nil, err
	}
	for idx := range suppliers {
		if suppliers[idx].Name == s.Name {
			return &suppliers[idx], nil
		}
	}
	return nil, nil
}

func (imp *Importer) reconcileItem(i models.Item, policy Policy) (id int64, skipped bool, err error) {
	items, err := imp.db.ListItems()
	if err != nil {
		return 0, false, err
	}
	existing := findItem(items, i.Name)
	if existing != nil {
		switch policy {
		case PolicySkip:
			return existing.ID, true, nil
		case PolicyUpdate:
			patch := store.ItemPatch{
				Category:     i.Category,
				Quantity:     i.Quantity,
				Unit:         i.Unit,
				SupplierID:   i.SupplierID,
				PurchaseDate: i.PurchaseDate,
				PhotoPath:    i.PhotoPath,
			}
			if err := imp.db.UpdateItem(existing.ID, patch); err != nil {
				return 0, false, err
			}
			return existing.ID, false, nil
		case PolicyRename:
			taken := make(map[string]bool, len(items))
			for _, cur := range items {
				taken[cur.Name] = true
			}
			i.Name = uniqueName(i.Name, taken)
		}
	}
	newID, err := imp.db.AddItem(i)
	if err != nil {
		return 0, false, err
	}
	return newID, false, nil
}

// reconcileTag dedups tags by name, the same natural-identity handling as
// the other kinds. Re-importing a snapshot must not duplicate tags.
func (imp *Importer) reconcileTag(t models.Tag, policy Policy) (id int64, skipped bool, err error) {
	existing, err := imp.db.TagByName(t.Name)
	if err != nil {
		return 0, false, err
	}
	if existing != nil {
		switch policy {
		case PolicySkip:
			return existing.ID, true, nil
		case PolicyUpdate:
			if err := imp.db.UpdateTag(existing.ID, store.TagPatch{Color: t.Color}); err != nil {
				return 0, false, err
			}
			return existing.ID, false, nil
		case PolicyRename:
			tags, err := imp.db.ListTags()
			if err != nil {
				return 0, false, err
			}
			taken := make(map[string]bool, len(tags))
			for _, cur := range tags {
				taken[cur.Name] = true
			}
			t.Name = uniqueName(t.Name, taken)
		}
	}
	newID, err := imp.db.AddTag(t)
	if err != nil {
		return 0, false, err
	}
	return newID, false, nil
}

func (imp *Importer) reconcileProject(p models.Project, policy Policy) (id int64, skipped bool, err error) {
	projects, err := imp.db.ListProjects()
	if err != nil {
		return 0, false, err
	}
	var existing *models.Project
	for idx := range projects {
		if projects[idx].Name == p.Name {
			existing = &projects[idx]
			break
		}
	}
	if existing != nil {
		switch policy {
		case PolicySkip:
			return existing.ID, true, nil
		case PolicyUpdate:
			patch := store.ProjectPatch{Description: p.Description, DateCreated: p.DateCreated}
			if err := imp.db.UpdateProject(existing.ID, patch); err != nil {
				return 0, false, err
			}
			return existing.ID, false, nil
		case PolicyRename:
			taken := make(map[string]bool, len(projects))
			for _, cur := range projects {
				taken[cur.Name] = true
			}
			p.Name = uniqueName(p.Name, taken)
		}
	}
	newID, err := imp.db.AddProject(p)
	if err != nil {
		return 0, false, err
	}
	return newID, false, nil
}

// materialExists reports whether an identical material row is already
// recorded, so re-importing a snapshot does not multiply material rows.
func (imp *Importer) materialExists(projectID, itemID int64, quantityUsed float64) bool {
	materials, err := imp.db.MaterialsByProject(projectID)
	if err != nil {
		return false
	}
	for _, m := range materials {
		if m.ItemID == itemID && m.QuantityUsed == quantityUsed {
			return true
		}
	}
	return false
}

// resolveSupplier matches a supplier name against existing suppliers.
// An unresolved name yields a null supplier, not an error.
func (imp *Importer) resolveSupplier(name string) *int64 {
	if name == "" {
		return nil
	}
	suppliers, err := imp.db.ListSuppliers()
	if err != nil {
		return nil
	}
	for _, s := range suppliers {
		if s.Name == name {
			id := s.ID
			return &id
		}
	}
	return nil
}

func findItem(items []models.Item, name string) *models.Item {
	for idx := range items {
		if items[idx].Name == name {
			return &items[idx]
		}
	}
	return nil
}

// uniqueName appends " (n)" with the smallest positive n whose result does
// not collide with a taken name.
func uniqueName(name string, taken map[string]bool) string {
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s (%d)", name, n)
		if !taken[candidate] {
			return candidate
		}
	}
}

// remapOptional translates a nullable FK through a remap table; an unmapped
// or null old ID becomes null.
func remapOptional(old *int64, remap map[int64]int64) *int64 {
	if old == nil {
		return nil
	}
	id, ok := remap[*old]
	if !ok {
		return nil
	}
	return &id
}

// remapKey parses a stringified owner ID and translates it through a remap
// table. Unparsable or unmapped keys are skipped by the caller.
func remapKey(key string, remap map[int64]int64) (int64, bool) {
	old, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return 0, false
	}
	id, ok := remap[old]
	return id, ok
}
