package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"memorypal/keeper/internal/config"
	"memorypal/keeper/internal/db"
	"memorypal/keeper/internal/logger"
)

const dbFileName = ".memorypal.db"

var (
	dbPath     string
	configPath string
	logMode    string
)

var rootCmd = &cobra.Command{
	Use:           "keeper",
	Short:         "MemoryPal keeper: capture pages and build a local knowledge graph",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the knowledge database")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to keeper.yaml")
	rootCmd.PersistentFlags().StringVar(&logMode, "log", "", "Log mode: dev, prod or quiet")
}

// app bundles what every command needs.
type app struct {
	cfg   *config.AppConfig
	log   *logger.Logger
	store *db.DB
}

func loadConfig() (*config.AppConfig, error) {
	if configPath != "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("loading config %s: %w", configPath, err)
		}
		return cfg, nil
	}
	cfg, _, err := config.LoadDefault()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// openApp loads config, builds the logger and opens the database.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if logMode != "" {
		cfg.LogMode = logMode
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, err
	}

	path, err := DiscoverDB(cfg)
	if err != nil {
		return nil, err
	}
	store, err := db.OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureDefaultSettings(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("initializing settings: %w", err)
	}
	log.Debug("database opened", "path", path)
	return &app{cfg: cfg, log: log, store: store}, nil
}

func (a *app) Close() {
	a.store.Close()
	a.log.Sync()
}

// DiscoverDB finds the database path using priority:
// env > flag > config > walk-up > XDG default (created if missing)
func DiscoverDB(cfg *config.AppConfig) (string, error) {
	if envPath := os.Getenv("MEMORYPAL_DB"); envPath != "" {
		return envPath, nil
	}
	if dbPath != "" {
		return dbPath, nil
	}
	if cfg != nil && cfg.Database != "" {
		return cfg.Database, nil
	}

	if dir, err := os.Getwd(); err == nil {
		for {
			candidate := filepath.Join(dir, dbFileName)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("no database found (set MEMORYPAL_DB, use --db, or run from a directory containing %s)", dbFileName)
	}
	dataDir := filepath.Join(home, ".local", "share", "memorypal")
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		dataDir = filepath.Join(xdg, "memorypal")
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("creating data dir: %w", err)
	}
	return filepath.Join(dataDir, "memorypal.db"), nil
}

// ResolvePage finds a page by full ID, URL, ID prefix, or full-text search.
func ResolvePage(ctx context.Context, d *db.DB, reference string) (*db.Page, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, errors.New("empty page reference")
	}

	if page, err := d.GetPage(ctx, reference); err == nil {
		return page, nil
	} else if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}

	if page, err := d.GetPageByURL(ctx, reference); err == nil {
		return page, nil
	} else if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}

	// ID prefix match (>=6 hex chars)
	if len(reference) >= 6 && isHex(reference) {
		matches, err := d.SearchPagesByIDPrefix(ctx, strings.ToLower(reference), 10)
		if err != nil {
			return nil, err
		}
		switch len(matches) {
		case 0:
		case 1:
			return &matches[0], nil
		default:
			return nil, ambiguous(reference, matches, "Use a full page ID instead.")
		}
	}

	matches, err := d.SearchPages(ctx, reference, 10)
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("page not found: %s", reference)
	case 1:
		return &matches[0], nil
	default:
		return nil, ambiguous(reference, matches, "Use a page ID or URL instead.")
	}
}

func ambiguous(reference string, matches []db.Page, hint string) error {
	lines := make([]string, len(matches))
	for i, m := range matches {
		lines[i] = fmt.Sprintf("  %s %s", truncID(m.ID), pageLabel(m))
	}
	return fmt.Errorf("ambiguous reference '%s'. %d matches:\n%s\n%s",
		reference, len(matches), strings.Join(lines, "\n"), hint)
}

func isHex(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}

func pageLabel(p db.Page) string {
	if p.Title != "" {
		return p.Title
	}
	return p.URL
}
