package mcpserver

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/marden/trove/internal/models"
	"github.com/marden/trove/internal/store"
	"github.com/marden/trove/internal/testutil"
)

func testServer(t *testing.T) (*Server, *store.DB) {
	t.Helper()
	db := testutil.TestDB(t)
	srv := New(db, filepath.Join(t.TempDir(), "backups"))
	return srv, db
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct call-tool test helper; invoke handlers directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_items":
		result, err = srv.listItems(ctx, req)
	case "search_items":
		result, err = srv.searchItems(ctx, req)
	case "get_item":
		result, err = srv.getItem(ctx, req)
	case "create_item":
		result, err = srv.createItem(ctx, req)
	case "export_backup":
		result, err = srv.exportBackup(ctx, req)
	case "import_snapshot":
		result, err = srv.importSnapshot(ctx, req)
	case "get_import_contract":
		result, err = srv.getImportContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCreateAndGetItem(t *testing.T) {
	srv, db := testServer(t)

	r := callTool(t, srv, "create_item", map[string]interface{}{
		"name":     "Oak dowel",
		"category": "Wood",
		"quantity": "12",
	})
	if r.IsError {
		t.Fatalf("create result = %q", resultText(r))
	}
	if !strings.Contains(resultText(r), "Oak dowel") {
		t.Errorf("create result = %q", resultText(r))
	}

	items, _ := db.ListItems()
	if len(items) != 1 || items[0].Quantity == nil || *items[0].Quantity != 12 {
		t.Fatalf("items = %+v", items)
	}

	db.SetMetadata(items[0].ID, "grain", "straight")

	r = callTool(t, srv, "get_item", map[string]interface{}{
		"id": strconv.FormatInt(items[0].ID, 10),
	})
	var detail struct {
		Item     models.Item       `json:"item"`
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &detail); err != nil {
		t.Fatalf("get result not JSON: %v", err)
	}
	if detail.Item.Name != "Oak dowel" || detail.Metadata["grain"] != "straight" {
		t.Errorf("detail = %+v", detail)
	}
}

func TestCreateItemInvalidQuantity(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "create_item", map[string]interface{}{
		"name":     "Oak dowel",
		"quantity": "a lot",
	})
	if !r.IsError {
		t.Error("invalid quantity should error")
	}
}

func TestGetItemMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_item", map[string]interface{}{"id": "42"})
	if !r.IsError {
		t.Error("missing item should error")
	}
}

func TestSearchItems(t *testing.T) {
	srv, db := testServer(t)
	db.AddItem(models.Item{Name: "Linen thread"})
	db.AddItem(models.Item{Name: "Oak dowel"})

	r := callTool(t, srv, "search_items", map[string]interface{}{"query": "linen"})
	text := resultText(r)
	if !strings.Contains(text, "Linen thread") || strings.Contains(text, "Oak dowel") {
		t.Errorf("search result = %q", text)
	}
}

func TestBackupAndImportSnapshot(t *testing.T) {
	srv, db := testServer(t)
	db.AddItem(models.Item{Name: "Oak dowel"})

	r := callTool(t, srv, "export_backup", map[string]interface{}{})
	if r.IsError {
		t.Fatalf("backup error: %q", resultText(r))
	}
	var backup struct {
		Path     string `json:"path"`
		Checksum string `json:"checksum"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &backup); err != nil {
		t.Fatalf("backup result not JSON: %v", err)
	}
	if backup.Path == "" || len(backup.Checksum) != 64 {
		t.Fatalf("backup = %+v", backup)
	}

	// Re-importing the backup under skip changes nothing.
	r = callTool(t, srv, "import_snapshot", map[string]interface{}{
		"path":   backup.Path,
		"policy": "skip",
	})
	if r.IsError {
		t.Fatalf("import error: %q", resultText(r))
	}
	var res struct {
		Imported int `json:"imported"`
		Skipped  int `json:"skipped"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &res); err != nil {
		t.Fatalf("import result not JSON: %v", err)
	}
	if res.Imported != 0 || res.Skipped != 1 {
		t.Errorf("result = %+v", res)
	}
	if items, _ := db.ListItems(); len(items) != 1 {
		t.Errorf("items = %d", len(items))
	}
}

func TestImportContract(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_import_contract", map[string]interface{}{})
	text := resultText(r)
	if !strings.Contains(text, "Conflict policy") || !strings.Contains(text, "Items CSV") {
		t.Errorf("contract = %q", text[:80])
	}
}
