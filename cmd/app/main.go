package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/marden/trove/internal"
	pkgconfig "github.com/marden/trove/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func runExport(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	entity := cmd.String("entity")
	out := cmd.String("out")
	if err := internal.RunExport(cfg, entity, out); err != nil {
		return err
	}
	fmt.Printf("exported %s to %s\n", entity, out)
	return nil
}

func runImport(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	res, err := internal.RunImport(cfg, cmd.String("file"), cmd.String("format"), cmd.String("policy"))
	if err != nil {
		return err
	}
	fmt.Printf("imported: %d, skipped: %d\n", res.Imported, res.Skipped)
	for _, e := range res.Errors {
		fmt.Fprintf(os.Stderr, "error: %s\n", e)
	}
	return nil
}

func runBackup(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	path, sum, err := internal.RunBackup(cfg, cmd.String("dir"))
	if err != nil {
		return err
	}
	fmt.Printf("backup written to %s (sha256 %s)\n", path, sum)
	return nil
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(cfg)
}

func main() {
	configFlag := &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("APP_CONFIG_FILE"),
	}

	cmd := &cli.Command{
		Name:   "trove",
		Usage:  "Craft-supply inventory with portable CSV/JSON export and conflict-aware import",
		Action: runServe,
		Flags:  []cli.Flag{configFlag},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API server (default)",
				Action: runServe,
				Flags:  []cli.Flag{configFlag},
			},
			{
				Name:   "export",
				Usage:  "Export items, projects, suppliers (CSV) or a full snapshot (JSON)",
				Action: runExport,
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{
						Name:  "entity",
						Usage: "What to export: items, projects, suppliers or snapshot",
						Value: "snapshot",
					},
					&cli.StringFlag{
						Name:     "out",
						Usage:    "Output file path",
						Required: true,
					},
				},
			},
			{
				Name:   "import",
				Usage:  "Import a CSV or JSON snapshot file",
				Action: runImport,
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{
						Name:     "file",
						Usage:    "File to import",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "format",
						Usage: "File format: csv or json (default: from extension)",
					},
					&cli.StringFlag{
						Name:  "policy",
						Usage: "Conflict policy: skip, update or rename",
						Value: "skip",
					},
				},
			},
			{
				Name:   "backup",
				Usage:  "Write a timestamped snapshot into the backup directory",
				Action: runBackup,
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{
						Name:  "dir",
						Usage: "Backup directory (default: <workspace>/backups)",
					},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve inventory tools over the Model Context Protocol on stdio",
				Action: runMCP,
				Flags:  []cli.Flag{configFlag},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
