package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

// setClock pins the store clock to a sequence starting at ms, advancing 1ms per call.
func setClock(d *DB, ms int64) {
	d.now = func() time.Time {
		ms++
		return time.UnixMilli(ms - 1)
	}
}

func mustUpsertPage(t *testing.T, d *DB, patch PagePatch) *Page {
	t.Helper()
	p, err := d.UpsertPage(context.Background(), patch)
	if err != nil {
		t.Fatalf("UpsertPage(%s): %v", patch.ID, err)
	}
	return p
}

func TestOpenDB_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	d, err := OpenDB(path)
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	mustUpsertPage(t, d, PagePatch{ID: "p1", URL: Ptr("https://a.example")})
	d.Close()

	d, err = OpenDB(path)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer d.Close()
	if _, err := d.GetPage(context.Background(), "p1"); err != nil {
		t.Errorf("page lost across reopen: %v", err)
	}
}

func TestPlaceholders(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, ""},
		{1, "?"},
		{3, "?, ?, ?"},
	}
	for _, tt := range tests {
		if got := placeholders(tt.n); got != tt.want {
			t.Errorf("placeholders(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestDSN(t *testing.T) {
	if got := dsn("/tmp/x.db"); got != "/tmp/x.db?_pragma=busy_timeout(5000)&_txlock=immediate" {
		t.Errorf("unexpected dsn %q", got)
	}
	if got := dsn("file:x.db?mode=rwc"); got != "file:x.db?mode=rwc&_pragma=busy_timeout(5000)&_txlock=immediate" {
		t.Errorf("unexpected dsn %q", got)
	}
}

func TestCounts(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	mustUpsertPage(t, d, PagePatch{ID: "p1", URL: Ptr("https://a.example"), Embedding: []float32{1}})
	mustUpsertPage(t, d, PagePatch{ID: "p2", URL: Ptr("https://b.example")})
	if _, err := d.UpsertEntity(ctx, EntityPatch{ID: "e1", Name: Ptr("Go")}); err != nil {
		t.Fatal(err)
	}
	err := d.BulkUpsertRelations(ctx, []Relation{
		{SourceType: KindPage, SourceID: "p1", TargetType: KindEntity, TargetID: "e1", RelType: RelMentions},
		{SourceType: KindPage, SourceID: "p1", TargetType: KindPage, TargetID: "p2", RelType: RelPageSimilar},
	})
	if err != nil {
		t.Fatal(err)
	}

	c, err := d.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if c.Pages != 2 || c.EmbeddedPages != 1 || c.Entities != 1 || c.QueuedTasks != 0 {
		t.Errorf("unexpected counts %+v", c)
	}
	if c.Relations[RelMentions] != 1 || c.Relations[RelPageSimilar] != 1 {
		t.Errorf("unexpected relation counts %v", c.Relations)
	}
}

func TestIDs(t *testing.T) {
	if HashString("https://a.example") != HashString("https://a.example") {
		t.Error("HashString not deterministic")
	}
	if len(HashString("x")) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(HashString("x")))
	}
	if EntityID("Go", EntityConcept) != EntityID(" go ", EntityConcept) {
		t.Error("EntityID should ignore case and surrounding space")
	}
	if EntityID("Go", EntityConcept) == EntityID("Go", EntityAcronym) {
		t.Error("EntityID should depend on type")
	}
	if got := RelationID("page", "a", RelMentions, "entity", "b"); got != "page:a|MENTIONS|entity:b" {
		t.Errorf("unexpected relation id %q", got)
	}
}

func TestErrNotFound(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	if _, err := d.GetPage(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPage: expected ErrNotFound, got %v", err)
	}
	if _, err := d.GetPageByURL(ctx, "https://missing.example"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPageByURL: expected ErrNotFound, got %v", err)
	}
	if _, err := d.GetEntity(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetEntity: expected ErrNotFound, got %v", err)
	}
	if _, err := d.GetRelation(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRelation: expected ErrNotFound, got %v", err)
	}
}
