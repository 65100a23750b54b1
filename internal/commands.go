package internal

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/marden/trove/internal/checksum"
	"github.com/marden/trove/internal/exchange"
	"github.com/marden/trove/internal/mcpserver"
	"github.com/marden/trove/internal/store"
)

// openStore opens the configured SQLite database for one-shot CLI commands.
func openStore(cfg *Config) (*store.DB, error) {
	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// RunExport exports one entity kind to a file. entity is "items", "projects",
// "suppliers" (CSV) or "snapshot" (JSON).
func RunExport(cfg *Config, entity, out string) error {
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	exporter := exchange.NewExporter(db)
	switch strings.ToLower(entity) {
	case "items":
		return exporter.ExportItemsCSV(out)
	case "projects":
		return exporter.ExportProjectsCSV(out)
	case "suppliers":
		return exporter.ExportSuppliersCSV(out)
	case "snapshot":
		return exporter.ExportSnapshotJSON(out)
	default:
		return fmt.Errorf("unknown entity %q (want items, projects, suppliers or snapshot)", entity)
	}
}

// RunImport imports a CSV or JSON file. format is "csv", "json" or empty to
// infer from the file extension.
func RunImport(cfg *Config, file, format, policy string) (exchange.Result, error) {
	var result exchange.Result

	p, err := exchange.ParsePolicy(policy)
	if err != nil {
		return result, err
	}

	if format == "" {
		switch strings.ToLower(filepath.Ext(file)) {
		case ".json":
			format = "json"
		case ".csv":
			format = "csv"
		}
	}

	db, err := openStore(cfg)
	if err != nil {
		return result, err
	}
	defer db.Close()

	importer := exchange.NewImporter(db)
	switch strings.ToLower(format) {
	case "json":
		result = importer.ImportSnapshot(file, p)
	case "csv":
		result = importer.ImportItemsCSV(file, p)
	default:
		return result, fmt.Errorf("unknown format %q (want csv or json)", format)
	}
	return result, nil
}

// RunBackup writes a timestamped snapshot into dir (defaulting to the
// workspace backups directory) and returns its path and checksum.
func RunBackup(cfg *Config, dir string) (path, sum string, err error) {
	if dir == "" {
		dir = filepath.Join(cfg.Workspace.Path, backupsDir)
	}

	db, err := openStore(cfg)
	if err != nil {
		return "", "", err
	}
	defer db.Close()

	exporter := exchange.NewExporter(db)
	path, err = exporter.CreateBackup(dir)
	if err != nil {
		return "", "", err
	}
	sum, err = checksum.SumFile(path)
	if err != nil {
		return "", "", err
	}
	return path, sum, nil
}

// RunMCP serves the MCP stdio transport until the client disconnects.
func RunMCP(cfg *Config) error {
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	srv := mcpserver.New(db, filepath.Join(cfg.Workspace.Path, backupsDir))
	return srv.ServeStdio()
}
