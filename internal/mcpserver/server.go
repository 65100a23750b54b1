// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Trove inventory tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/marden/trove/internal/checksum"
	"github.com/marden/trove/internal/exchange"
	"github.com/marden/trove/internal/models"
	"github.com/marden/trove/internal/store"
)

// Server wraps the MCP server with Trove tools.
type Server struct {
	mcp      *server.MCPServer
	db       store.Store
	exporter *exchange.Exporter
	importer *exchange.Importer
	backups  string
}

// New creates a new MCP server with all Trove tools registered.
// backupDir is where export_backup writes snapshot files.
func New(db store.Store, backupDir string) *Server {
	s := &Server{
		db:       db,
		exporter: exchange.NewExporter(db),
		importer: exchange.NewImporter(db),
		backups:  backupDir,
	}

	s.mcp = server.NewMCPServer(
		"Trove",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_items",
		mcp.WithDescription("List inventory items, optionally filtered by category."),
		mcp.WithString("category", mcp.Description("Optional category filter (exact match)")),
	), s.listItems)

	s.mcp.AddTool(mcp.NewTool("search_items",
		mcp.WithDescription("Search items by name, category or unit."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchItems)

	s.mcp.AddTool(mcp.NewTool("get_item",
		mcp.WithDescription("Read one item with its tags and metadata."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Numeric item id")),
	), s.getItem)

	s.mcp.AddTool(mcp.NewTool("create_item",
		mcp.WithDescription("Create a new inventory item."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Item name")),
		mcp.WithString("category", mcp.Description("Optional category")),
		mcp.WithString("quantity", mcp.Description("Optional quantity (decimal number)")),
		mcp.WithString("unit", mcp.Description("Optional unit of measure")),
	), s.createItem)

	s.mcp.AddTool(mcp.NewTool("export_backup",
		mcp.WithDescription("Write a timestamped full-inventory JSON snapshot to the backup directory."),
	), s.exportBackup)

	s.mcp.AddTool(mcp.NewTool("import_snapshot",
		mcp.WithDescription("Import a JSON snapshot or items CSV file from disk. "+
			"Files MUST follow the canonical import format. Read the contract first via "+
			"the get_import_contract tool or the trove://import-format resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to the .json or .csv file")),
		mcp.WithString("policy", mcp.Description("Conflict policy: skip (default), update or rename")),
	), s.importSnapshot)

	s.mcp.AddTool(mcp.NewTool("get_import_contract",
		mcp.WithDescription("Returns the canonical Trove import file format contract. "+
			"Call this before preparing files for import_snapshot."),
	), s.getImportContract)

	// Resource: import format contract.
	s.mcp.AddResource(
		mcp.NewResource("trove://import-format", "Import Format Contract",
			mcp.WithResourceDescription("Canonical CSV and JSON snapshot formats accepted by the importer."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readImportFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category := ""
	if c, err := req.RequireString("category"); err == nil {
		category = c
	}

	var (
		items []models.Item
		err   error
	)
	if category != "" {
		items, err = s.db.FilterItems(store.ItemFilter{Category: category})
	} else {
		items, err = s.db.ListItems()
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(items, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) searchItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	items, err := s.db.SearchItems(query)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(items, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid id: %s", raw)), nil
	}

	item, err := s.db.ItemByID(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if item == nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %d", id)), nil
	}

	tags, err := s.db.ItemTags(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entries, err := s.db.Metadata(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	meta := make(map[string]string, len(entries))
	for _, e := range entries {
		meta[e.Key] = e.Value
	}

	out, _ := json.MarshalIndent(map[string]any{
		"item":     item,
		"tags":     tags,
		"metadata": meta,
	}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) createItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(name) == "" {
		return mcp.NewToolResultError("name must not be blank"), nil
	}

	item := models.Item{Name: name}
	if c, cErr := req.RequireString("category"); cErr == nil && c != "" {
		item.Category = &c
	}
	if u, uErr := req.RequireString("unit"); uErr == nil && u != "" {
		item.Unit = &u
	}
	if q, qErr := req.RequireString("quantity"); qErr == nil && q != "" {
		n, parseErr := strconv.ParseFloat(q, 64)
		if parseErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid quantity: %s", q)), nil
		}
		item.Quantity = &n
	}

	id, err := s.db.AddItem(item)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created item %d: %s", id, name)), nil
}

func (s *Server) exportBackup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := s.exporter.CreateBackup(s.backups)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sum, err := checksum.SumFile(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(map[string]string{
		"path":     path,
		"checksum": sum,
	}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) importSnapshot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawPolicy := ""
	if p, pErr := req.RequireString("policy"); pErr == nil {
		rawPolicy = p
	}
	policy, err := exchange.ParsePolicy(rawPolicy)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result exchange.Result
	if strings.HasSuffix(strings.ToLower(path), ".csv") {
		result = s.importer.ImportItemsCSV(path, policy)
	} else {
		result = s.importer.ImportSnapshot(path, policy)
	}
	out, _ := json.MarshalIndent(result, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getImportContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ImportFormatContract), nil
}

func (s *Server) readImportFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "trove://import-format",
			MIMEType: "text/markdown",
			Text:     ImportFormatContract,
		},
	}, nil
}
