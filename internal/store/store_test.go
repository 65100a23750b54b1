package store_test

import (
	"errors"
	"os"
	"testing"

	"github.com/marden/trove/internal/apperr"
	"github.com/marden/trove/internal/models"
	"github.com/marden/trove/internal/store"
	"github.com/marden/trove/internal/testutil"
)

func strPtr(s string) *string   { return &s }
func f64Ptr(f float64) *float64 { return &f }
func i64Ptr(n int64) *int64     { return &n }

func TestOpenCreatesSchema(t *testing.T) {
	db := testutil.TestDB(t)

	if _, err := db.ListItems(); err != nil {
		t.Fatalf("ListItems on fresh db: %v", err)
	}
	if _, err := db.ListSuppliers(); err != nil {
		t.Fatalf("ListSuppliers on fresh db: %v", err)
	}
}

func TestOpenBadPath(t *testing.T) {
	if _, err := store.Open("/nonexistent-dir/trove.db"); err == nil {
		t.Fatal("expected error for unwritable path")
	}
}

func TestSupplierCRUD(t *testing.T) {
	db := testutil.TestDB(t)

	id, err := db.AddSupplier(models.Supplier{
		Name:        "Stitch Supply",
		ContactInfo: "orders@stitch.example",
		Website:     strPtr("https://stitch.example"),
	})
	if err != nil {
		t.Fatalf("AddSupplier: %v", err)
	}

	s, err := db.SupplierByID(id)
	if err != nil {
		t.Fatalf("SupplierByID: %v", err)
	}
	if s == nil || s.Name != "Stitch Supply" {
		t.Fatalf("got %+v", s)
	}
	if s.Website == nil || *s.Website != "https://stitch.example" {
		t.Errorf("website = %v", s.Website)
	}
	if s.Notes != nil {
		t.Errorf("notes should be nil, got %q", *s.Notes)
	}

	if err := db.UpdateSupplier(id, store.SupplierPatch{Notes: strPtr("ships fast")}); err != nil {
		t.Fatalf("UpdateSupplier: %v", err)
	}
	s, _ = db.SupplierByID(id)
	if s.Notes == nil || *s.Notes != "ships fast" {
		t.Errorf("notes = %v", s.Notes)
	}
	// Untouched fields survive a partial update.
	if s.Name != "Stitch Supply" || s.ContactInfo != "orders@stitch.example" {
		t.Errorf("partial update clobbered fields: %+v", s)
	}

	if err := db.DeleteSupplier(id); err != nil {
		t.Fatalf("DeleteSupplier: %v", err)
	}
	s, err = db.SupplierByID(id)
	if err != nil {
		t.Fatalf("SupplierByID after delete: %v", err)
	}
	if s != nil {
		t.Errorf("supplier still present after delete: %+v", s)
	}
}

func TestDeleteSupplierNullsItems(t *testing.T) {
	db := testutil.TestDB(t)

	sid, _ := db.AddSupplier(models.Supplier{Name: "Hardwood Co"})
	iid, err := db.AddItem(models.Item{Name: "Oak dowel", SupplierID: i64Ptr(sid)})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	if err := db.DeleteSupplier(sid); err != nil {
		t.Fatalf("DeleteSupplier: %v", err)
	}

	item, _ := db.ItemByID(iid)
	if item == nil {
		t.Fatal("item deleted with supplier")
	}
	if item.SupplierID != nil {
		t.Errorf("supplier_id = %v, want nil", *item.SupplierID)
	}
}

func TestItemCRUDAndSearch(t *testing.T) {
	db := testutil.TestDB(t)

	id, err := db.AddItem(models.Item{
		Name:     "Linen thread",
		Category: strPtr("Thread"),
		Quantity: f64Ptr(3.5),
		Unit:     strPtr("spools"),
	})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	item, _ := db.ItemByID(id)
	if item == nil || *item.Quantity != 3.5 {
		t.Fatalf("got %+v", item)
	}

	found, err := db.SearchItems("linen")
	if err != nil {
		t.Fatalf("SearchItems: %v", err)
	}
	if len(found) != 1 || found[0].ID != id {
		t.Errorf("search hits = %+v", found)
	}

	// Category matches too.
	found, _ = db.SearchItems("thread")
	if len(found) != 1 {
		t.Errorf("category search hits = %d", len(found))
	}

	if err := db.UpdateItem(id, store.ItemPatch{Quantity: f64Ptr(2)}); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	item, _ = db.ItemByID(id)
	if *item.Quantity != 2 {
		t.Errorf("quantity = %v", *item.Quantity)
	}
	if item.Unit == nil || *item.Unit != "spools" {
		t.Errorf("unit clobbered: %v", item.Unit)
	}

	if err := db.DeleteItem(id); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	if item, _ := db.ItemByID(id); item != nil {
		t.Errorf("item still present after delete")
	}
}

func TestFilterItems(t *testing.T) {
	db := testutil.TestDB(t)

	sid, _ := db.AddSupplier(models.Supplier{Name: "Hardwood Co"})
	db.AddItem(models.Item{Name: "Oak dowel", Category: strPtr("Wood"), Quantity: f64Ptr(12), PurchaseDate: strPtr("2025-03-01"), SupplierID: i64Ptr(sid)})
	db.AddItem(models.Item{Name: "Pine board", Category: strPtr("Wood"), Quantity: f64Ptr(2), PurchaseDate: strPtr("2025-01-15")})
	db.AddItem(models.Item{Name: "Linen thread", Category: strPtr("Thread"), Quantity: f64Ptr(3.5)})

	byCategory, err := db.FilterItems(store.ItemFilter{Category: "Wood"})
	if err != nil {
		t.Fatalf("FilterItems: %v", err)
	}
	if len(byCategory) != 2 {
		t.Errorf("category filter = %d items", len(byCategory))
	}

	bySupplier, _ := db.FilterItems(store.ItemFilter{SupplierID: i64Ptr(sid)})
	if len(bySupplier) != 1 || bySupplier[0].Name != "Oak dowel" {
		t.Errorf("supplier filter = %+v", bySupplier)
	}

	byDate, _ := db.FilterItems(store.ItemFilter{DateFrom: "2025-02-01", DateTo: "2025-12-31"})
	if len(byDate) != 1 || byDate[0].Name != "Oak dowel" {
		t.Errorf("date filter = %+v", byDate)
	}

	byQty, _ := db.FilterItems(store.ItemFilter{QuantityMin: f64Ptr(3), QuantityMax: f64Ptr(20)})
	if len(byQty) != 2 {
		t.Errorf("quantity filter = %d items", len(byQty))
	}
}

func TestMetadataUpsert(t *testing.T) {
	db := testutil.TestDB(t)

	id, _ := db.AddItem(models.Item{Name: "Oak dowel"})

	if err := db.SetMetadata(id, "grain", "straight"); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	// Same key again replaces, never duplicates.
	if err := db.SetMetadata(id, "grain", "curly"); err != nil {
		t.Fatalf("SetMetadata update: %v", err)
	}
	db.SetMetadata(id, "origin", "local mill")

	meta, err := db.Metadata(id)
	if err != nil {
		t.Fatalf("Metadata: %v", err)
	}
	if len(meta) != 2 {
		t.Fatalf("metadata rows = %d, want 2", len(meta))
	}
	values := map[string]string{}
	for _, m := range meta {
		values[m.Key] = m.Value
	}
	if values["grain"] != "curly" {
		t.Errorf("grain = %q, want curly", values["grain"])
	}

	if err := db.DeleteMetadata(id, "grain"); err != nil {
		t.Fatalf("DeleteMetadata: %v", err)
	}
	meta, _ = db.Metadata(id)
	if len(meta) != 1 || meta[0].Key != "origin" {
		t.Errorf("after delete: %+v", meta)
	}
}

func TestDeleteItemCascades(t *testing.T) {
	db := testutil.TestDB(t)

	iid, _ := db.AddItem(models.Item{Name: "Oak dowel"})
	pid, _ := db.AddProject(models.Project{Name: "Bookshelf"})
	tid, _ := db.AddTag(models.Tag{Name: "woodworking"})

	db.SetMetadata(iid, "grain", "straight")
	db.TagItem(iid, tid)
	if _, err := db.AddMaterial(pid, iid, 4); err != nil {
		t.Fatalf("AddMaterial: %v", err)
	}

	if err := db.DeleteItem(iid); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}

	if meta, _ := db.Metadata(iid); len(meta) != 0 {
		t.Errorf("metadata survived item delete: %+v", meta)
	}
	if items, _ := db.ItemsByTag(tid); len(items) != 0 {
		t.Errorf("tag link survived item delete: %+v", items)
	}
	if materials, _ := db.MaterialsByProject(pid); len(materials) != 0 {
		t.Errorf("material rows survived item delete: %+v", materials)
	}
	// The project and the tag themselves are untouched.
	if p, _ := db.ProjectByID(pid); p == nil {
		t.Error("project deleted with item")
	}
	if tag, _ := db.TagByID(tid); tag == nil {
		t.Error("tag deleted with item")
	}
}

func TestDeleteProjectCascades(t *testing.T) {
	db := testutil.TestDB(t)

	iid, _ := db.AddItem(models.Item{Name: "Oak dowel"})
	pid, _ := db.AddProject(models.Project{Name: "Bookshelf"})
	tid, _ := db.AddTag(models.Tag{Name: "gift"})

	db.AddMaterial(pid, iid, 4)
	db.TagProject(pid, tid)

	if err := db.DeleteProject(pid); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}

	if projects, _ := db.ProjectsByTag(tid); len(projects) != 0 {
		t.Errorf("tag link survived project delete")
	}
	if item, _ := db.ItemByID(iid); item == nil {
		t.Error("item deleted with project")
	}
}

func TestMaterialsDenormalized(t *testing.T) {
	db := testutil.TestDB(t)

	iid, _ := db.AddItem(models.Item{Name: "Oak dowel", Category: strPtr("Wood"), Unit: strPtr("pcs")})
	pid, _ := db.AddProject(models.Project{Name: "Bookshelf"})

	mid, err := db.AddMaterial(pid, iid, 4)
	if err != nil {
		t.Fatalf("AddMaterial: %v", err)
	}

	materials, err := db.MaterialsByProject(pid)
	if err != nil {
		t.Fatalf("MaterialsByProject: %v", err)
	}
	if len(materials) != 1 {
		t.Fatalf("materials = %d", len(materials))
	}
	m := materials[0]
	if m.ItemName != "Oak dowel" || m.Category == nil || *m.Category != "Wood" {
		t.Errorf("denormalized fields: %+v", m)
	}

	if err := db.UpdateMaterial(mid, store.MaterialPatch{QuantityUsed: f64Ptr(6)}); err != nil {
		t.Fatalf("UpdateMaterial: %v", err)
	}
	materials, _ = db.MaterialsByProject(pid)
	if materials[0].QuantityUsed != 6 {
		t.Errorf("quantity_used = %v", materials[0].QuantityUsed)
	}

	if err := db.DeleteMaterial(mid); err != nil {
		t.Fatalf("DeleteMaterial: %v", err)
	}
	if materials, _ := db.MaterialsByProject(pid); len(materials) != 0 {
		t.Errorf("material survived delete")
	}
}

func TestDuplicateTagName(t *testing.T) {
	db := testutil.TestDB(t)

	if _, err := db.AddTag(models.Tag{Name: "woodworking"}); err != nil {
		t.Fatalf("AddTag: %v", err)
	}
	if _, err := db.AddTag(models.Tag{Name: "woodworking"}); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate AddTag err = %v", err)
	}

	tid, _ := db.AddTag(models.Tag{Name: "gift"})
	err := db.UpdateTag(tid, store.TagPatch{Name: strPtr("woodworking")})
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("rename to taken name err = %v", err)
	}
}

func TestMaterialConstraints(t *testing.T) {
	db := testutil.TestDB(t)

	pid, _ := db.AddProject(models.Project{Name: "Bookshelf"})
	if _, err := db.AddMaterial(pid, 999, 1); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("AddMaterial with missing item err = %v", err)
	}

	if err := db.UpdateMaterial(999, store.MaterialPatch{QuantityUsed: f64Ptr(2)}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("UpdateMaterial on missing row err = %v", err)
	}
	if err := db.DeleteMaterial(999); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("DeleteMaterial on missing row err = %v", err)
	}
}

func TestTagAssociations(t *testing.T) {
	db := testutil.TestDB(t)

	iid, _ := db.AddItem(models.Item{Name: "Oak dowel"})
	pid, _ := db.AddProject(models.Project{Name: "Bookshelf"})
	tid, _ := db.AddTag(models.Tag{Name: "woodworking", Color: strPtr("#8b5a2b")})

	if tag, _ := db.TagByName("woodworking"); tag == nil || tag.ID != tid {
		t.Fatalf("TagByName = %+v", tag)
	}
	if tag, _ := db.TagByName("no-such"); tag != nil {
		t.Fatalf("TagByName for missing name = %+v", tag)
	}

	if err := db.TagItem(iid, tid); err != nil {
		t.Fatalf("TagItem: %v", err)
	}
	// Tagging twice is a no-op, not an error.
	if err := db.TagItem(iid, tid); err != nil {
		t.Fatalf("TagItem repeat: %v", err)
	}
	tags, _ := db.ItemTags(iid)
	if len(tags) != 1 {
		t.Errorf("item tags = %d, want 1", len(tags))
	}

	db.TagProject(pid, tid)
	db.TagProject(pid, tid)
	ptags, _ := db.ProjectTags(pid)
	if len(ptags) != 1 {
		t.Errorf("project tags = %d, want 1", len(ptags))
	}

	if err := db.UntagItem(iid, tid); err != nil {
		t.Fatalf("UntagItem: %v", err)
	}
	if tags, _ := db.ItemTags(iid); len(tags) != 0 {
		t.Errorf("untag left %d tags", len(tags))
	}

	if err := db.UntagProject(pid, tid); err != nil {
		t.Fatalf("UntagProject: %v", err)
	}
	if ptags, _ := db.ProjectTags(pid); len(ptags) != 0 {
		t.Errorf("untag left %d tags", len(ptags))
	}
}

func TestProjectSearch(t *testing.T) {
	db := testutil.TestDB(t)

	db.AddProject(models.Project{Name: "Bookshelf", Description: strPtr("walnut and oak")})
	db.AddProject(models.Project{Name: "Quilt"})

	found, err := db.SearchProjects("walnut")
	if err != nil {
		t.Fatalf("SearchProjects: %v", err)
	}
	if len(found) != 1 || found[0].Name != "Bookshelf" {
		t.Errorf("hits = %+v", found)
	}
}

func TestPersistenceAcrossOpen(t *testing.T) {
	dbFile, err := os.CreateTemp("", "trove-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	id, err := db.AddItem(models.Item{Name: "Oak dowel"})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	db.Close()

	db, err = store.Open(dbFile.Name())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	item, err := db.ItemByID(id)
	if err != nil {
		t.Fatalf("ItemByID: %v", err)
	}
	if item == nil || item.Name != "Oak dowel" {
		t.Errorf("item after reopen = %+v", item)
	}
}
