package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"memorypal/keeper/internal/config"
	"memorypal/keeper/internal/db"
)

func TestIsHex(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"deadbeef", true},
		{"DEADBEEF", true},
		{"0123456789abcdef", true},
		{"", true},
		{"graph", false},
		{"abc-123", false},
	}
	for _, tt := range tests {
		if got := isHex(tt.in); got != tt.want {
			t.Errorf("isHex(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseSettingValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"true", true},
		{"false", false},
		{"0.8", 0.8},
		{`"text"`, "text"},
		{"plain words", "plain words"},
	}
	for _, tt := range tests {
		if got := parseSettingValue(tt.in); got != tt.want {
			t.Errorf("parseSettingValue(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestReadTextArg(t *testing.T) {
	if got, err := readTextArg("inline text"); err != nil || got != "inline text" {
		t.Errorf("literal: got %q, %v", got, err)
	}

	path := filepath.Join(t.TempDir(), "page.txt")
	if err := os.WriteFile(path, []byte("from a file"), 0644); err != nil {
		t.Fatal(err)
	}
	if got, err := readTextArg("@" + path); err != nil || got != "from a file" {
		t.Errorf("file: got %q, %v", got, err)
	}
	if _, err := readTextArg("@" + path + ".missing"); err == nil {
		t.Error("expected error for missing file")
	}
}

func withDBFlag(t *testing.T, value string) {
	t.Helper()
	old := dbPath
	dbPath = value
	t.Cleanup(func() { dbPath = old })
}

func TestDiscoverDBPriority(t *testing.T) {
	cfg := &config.AppConfig{Database: "/from/config.db"}

	t.Setenv("MEMORYPAL_DB", "/from/env.db")
	withDBFlag(t, "/from/flag.db")
	if got, _ := DiscoverDB(cfg); got != "/from/env.db" {
		t.Errorf("env should win, got %s", got)
	}

	t.Setenv("MEMORYPAL_DB", "")
	if got, _ := DiscoverDB(cfg); got != "/from/flag.db" {
		t.Errorf("flag should beat config, got %s", got)
	}

	dbPath = ""
	if got, _ := DiscoverDB(cfg); got != "/from/config.db" {
		t.Errorf("expected config path, got %s", got)
	}
}

func TestDiscoverDBWalksUp(t *testing.T) {
	t.Setenv("MEMORYPAL_DB", "")
	withDBFlag(t, "")

	root := t.TempDir()
	want := filepath.Join(root, dbFileName)
	if err := os.WriteFile(want, nil, 0644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	t.Chdir(sub)

	got, err := DiscoverDB(&config.AppConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestDiscoverDBDataDir(t *testing.T) {
	t.Setenv("MEMORYPAL_DB", "")
	withDBFlag(t, "")
	t.Chdir(t.TempDir())
	xdg := t.TempDir()
	t.Setenv("XDG_DATA_HOME", xdg)

	got, err := DiscoverDB(nil)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(xdg, "memorypal", "memorypal.db"); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
	if _, err := os.Stat(filepath.Join(xdg, "memorypal")); err != nil {
		t.Errorf("data dir not created: %v", err)
	}
}

func seedPages(t *testing.T) (*db.DB, []*db.Page) {
	t.Helper()
	d, err := db.OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { d.Close() })

	ctx := context.Background()
	var pages []*db.Page
	for _, p := range []struct{ url, title, content string }{
		{"https://a.example/graph", "Graph Theory Primer", "vertices and edges"},
		{"https://b.example/bread", "Sourdough Baking", "flour water salt"},
		{"https://c.example/graphdb", "Graph Databases", "nodes stored on disk"},
	} {
		page, err := d.UpsertPage(ctx, db.PagePatch{
			ID:      db.HashString(p.url),
			URL:     db.Ptr(p.url),
			Title:   db.Ptr(p.title),
			Content: db.Ptr(p.content),
		})
		if err != nil {
			t.Fatal(err)
		}
		pages = append(pages, page)
	}
	return d, pages
}

func TestResolvePage(t *testing.T) {
	d, pages := seedPages(t)
	ctx := context.Background()

	tests := []struct {
		name string
		ref  string
		want string
	}{
		{"full id", pages[0].ID, pages[0].ID},
		{"url", "https://b.example/bread", pages[1].ID},
		{"id prefix", pages[2].ID[:8], pages[2].ID},
		{"upper-case prefix", strings.ToUpper(pages[1].ID[:10]), pages[1].ID},
		{"search", "sourdough", pages[1].ID},
		{"padded", "  " + pages[0].ID + " ", pages[0].ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolvePage(ctx, d, tt.ref)
			if err != nil {
				t.Fatalf("ResolvePage(%q): %v", tt.ref, err)
			}
			if got.ID != tt.want {
				t.Errorf("got %s, want %s", got.ID, tt.want)
			}
		})
	}
}

func TestResolvePageErrors(t *testing.T) {
	d, _ := seedPages(t)
	ctx := context.Background()

	if _, err := ResolvePage(ctx, d, "   "); err == nil {
		t.Error("expected error for empty reference")
	}
	if _, err := ResolvePage(ctx, d, "quantum"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not found, got %v", err)
	}
	_, err := ResolvePage(ctx, d, "graph")
	if err == nil || !strings.Contains(err.Error(), "ambiguous") {
		t.Fatalf("expected ambiguous error, got %v", err)
	}
	if !strings.Contains(err.Error(), "Graph Theory Primer") || !strings.Contains(err.Error(), "Graph Databases") {
		t.Errorf("ambiguous error should list matches: %v", err)
	}
}

func TestSortedKeys(t *testing.T) {
	got := sortedKeys(map[string]int{"b": 1, "a": 2, "c": 3})
	if strings.Join(got, ",") != "a,b,c" {
		t.Errorf("got %v", got)
	}
}
