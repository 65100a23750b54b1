package exchange_test

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/marden/trove/internal/exchange"
	"github.com/marden/trove/internal/models"
	"github.com/marden/trove/internal/testutil"
)

func strPtr(s string) *string   { return &s }
func f64Ptr(f float64) *float64 { return &f }
func i64Ptr(n int64) *int64     { return &n }

func TestWriteItemsCSV(t *testing.T) {
	db := testutil.TestDB(t)
	sid, _ := db.AddSupplier(models.Supplier{Name: "Hardwood Co"})
	db.AddItem(models.Item{
		Name:         "Oak dowel",
		Category:     strPtr("Wood"),
		Quantity:     f64Ptr(12),
		Unit:         strPtr("pcs"),
		PurchaseDate: strPtr("2025-03-01"),
		SupplierID:   i64Ptr(sid),
	})
	db.AddItem(models.Item{Name: "Linen thread", Quantity: f64Ptr(3.5)})

	var buf bytes.Buffer
	if err := exchange.NewExporter(db).WriteItemsCSV(&buf); err != nil {
		t.Fatalf("WriteItemsCSV: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(records))
	}

	wantHeader := []string{"id", "name", "category", "quantity", "unit", "supplier", "purchase_date", "photo_path"}
	for i, col := range wantHeader {
		if records[0][i] != col {
			t.Errorf("header[%d] = %q, want %q", i, records[0][i], col)
		}
	}

	byName := map[string][]string{}
	for _, rec := range records[1:] {
		byName[rec[1]] = rec
	}
	oak := byName["Oak dowel"]
	if oak == nil {
		t.Fatal("Oak dowel row missing")
	}
	if oak[5] != "Hardwood Co" {
		t.Errorf("supplier column = %q, want denormalized name", oak[5])
	}
	if oak[3] != "12" {
		t.Errorf("quantity column = %q", oak[3])
	}
	thread := byName["Linen thread"]
	if thread[3] != "3.5" {
		t.Errorf("fractional quantity = %q", thread[3])
	}
	if thread[5] != "" {
		t.Errorf("null supplier column = %q, want empty", thread[5])
	}
}

func TestWriteItemsCSVEmpty(t *testing.T) {
	db := testutil.TestDB(t)

	var buf bytes.Buffer
	if err := exchange.NewExporter(db).WriteItemsCSV(&buf); err != nil {
		t.Fatalf("WriteItemsCSV: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 1 {
		t.Fatalf("empty export = %d lines, want header only", len(lines))
	}
	if !strings.HasPrefix(lines[0], "id,name,") {
		t.Errorf("header = %q", lines[0])
	}
}

func TestWriteSuppliersCSV(t *testing.T) {
	db := testutil.TestDB(t)
	db.AddSupplier(models.Supplier{
		Name:        "Stitch Supply",
		ContactInfo: "orders@stitch.example",
		Notes:       strPtr("ships fast"),
	})

	var buf bytes.Buffer
	if err := exchange.NewExporter(db).WriteSuppliersCSV(&buf); err != nil {
		t.Fatalf("WriteSuppliersCSV: %v", err)
	}
	records, _ := csv.NewReader(&buf).ReadAll()
	if len(records) != 2 {
		t.Fatalf("rows = %d", len(records))
	}
	if records[1][1] != "Stitch Supply" || records[1][2] != "orders@stitch.example" || records[1][4] != "ships fast" {
		t.Errorf("row = %v", records[1])
	}
	if records[1][3] != "" {
		t.Errorf("null website = %q, want empty", records[1][3])
	}
}

func TestWriteProjectsCSV(t *testing.T) {
	db := testutil.TestDB(t)
	db.AddProject(models.Project{Name: "Bookshelf", Description: strPtr("walnut and oak"), DateCreated: strPtr("2025-02-10")})

	var buf bytes.Buffer
	if err := exchange.NewExporter(db).WriteProjectsCSV(&buf); err != nil {
		t.Fatalf("WriteProjectsCSV: %v", err)
	}
	records, _ := csv.NewReader(&buf).ReadAll()
	if len(records) != 2 {
		t.Fatalf("rows = %d", len(records))
	}
	if records[1][1] != "Bookshelf" || records[1][2] != "walnut and oak" || records[1][3] != "2025-02-10" {
		t.Errorf("row = %v", records[1])
	}
}

func TestBuildSnapshot(t *testing.T) {
	db := testutil.TestDB(t)

	sid, _ := db.AddSupplier(models.Supplier{Name: "Hardwood Co"})
	iid, _ := db.AddItem(models.Item{Name: "Oak dowel", SupplierID: i64Ptr(sid)})
	pid, _ := db.AddProject(models.Project{Name: "Bookshelf"})
	tid, _ := db.AddTag(models.Tag{Name: "woodworking"})
	db.AddMaterial(pid, iid, 4)
	db.TagItem(iid, tid)
	db.TagProject(pid, tid)
	db.SetMetadata(iid, "grain", "straight")

	snap, err := exchange.NewExporter(db).BuildSnapshot()
	if err != nil {
		t.Fatalf("BuildSnapshot: %v", err)
	}

	if snap.Version != exchange.SnapshotVersion {
		t.Errorf("version = %q", snap.Version)
	}
	if snap.ExportDate == "" {
		t.Error("export_date empty")
	}
	if len(snap.Data.Suppliers) != 1 || len(snap.Data.Items) != 1 || len(snap.Data.Projects) != 1 || len(snap.Data.Tags) != 1 {
		t.Fatalf("entity counts: %+v", snap.Data)
	}

	itemKey := "1"
	projectKey := "1"
	if got := snap.Data.ItemTags[itemKey]; len(got) != 1 || got[0] != tid {
		t.Errorf("item_tags = %v", snap.Data.ItemTags)
	}
	if got := snap.Data.ProjectTags[projectKey]; len(got) != 1 || got[0] != tid {
		t.Errorf("project_tags = %v", snap.Data.ProjectTags)
	}
	if got := snap.Data.ProjectMaterials[projectKey]; len(got) != 1 || got[0].QuantityUsed != 4 {
		t.Errorf("project_materials = %v", snap.Data.ProjectMaterials)
	}
	if got := snap.Data.ItemMetadata[itemKey]; got["grain"] != "straight" {
		t.Errorf("item_metadata = %v", snap.Data.ItemMetadata)
	}
}

func TestWriteSnapshotJSONPreservesUnicode(t *testing.T) {
	db := testutil.TestDB(t)
	db.AddItem(models.Item{Name: "Fil de lin <fin> & doux", Unit: strPtr("écheveaux")})

	var buf bytes.Buffer
	if err := exchange.NewExporter(db).WriteSnapshotJSON(&buf); err != nil {
		t.Fatalf("WriteSnapshotJSON: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, `\u003c`) || strings.Contains(out, `\u0026`) {
		t.Error("HTML escaping applied to snapshot JSON")
	}
	if !strings.Contains(out, "<fin> & doux") {
		t.Error("angle brackets and ampersand not preserved")
	}
	if !strings.Contains(out, "écheveaux") {
		t.Error("unicode not preserved")
	}
	// Pretty-printed: at least one indented line.
	if !strings.Contains(out, "\n  ") {
		t.Error("snapshot not indented")
	}
}

func TestExportAtomicWrite(t *testing.T) {
	db := testutil.TestDB(t)
	db.AddItem(models.Item{Name: "Oak dowel"})

	dir := t.TempDir()
	path := filepath.Join(dir, "items.csv")
	if err := exchange.NewExporter(db).ExportItemsCSV(path); err != nil {
		t.Fatalf("ExportItemsCSV: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("export file: %v", err)
	}

	// No temp files left behind.
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("leftover files in export dir: %d", len(entries))
	}
}

func TestCreateBackup(t *testing.T) {
	db := testutil.TestDB(t)
	db.AddItem(models.Item{Name: "Oak dowel"})

	dir := filepath.Join(t.TempDir(), "backups")
	path, err := exchange.NewExporter(db).CreateBackup(dir)
	if err != nil {
		t.Fatalf("CreateBackup: %v", err)
	}

	name := filepath.Base(path)
	if ok, _ := regexp.MatchString(`^backup_\d{8}_\d{6}\.json$`, name); !ok {
		t.Errorf("backup filename = %q", name)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	var snap exchange.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		t.Fatalf("backup is not valid snapshot JSON: %v", err)
	}
	if len(snap.Data.Items) != 1 {
		t.Errorf("backup items = %d", len(snap.Data.Items))
	}
}
