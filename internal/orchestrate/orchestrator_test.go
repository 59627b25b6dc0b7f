package orchestrate

import (
	"context"
	"encoding/json"
	"math"
	"path/filepath"
	"testing"
	"time"

	"memorypal/keeper/internal/bus"
	"memorypal/keeper/internal/db"
	"memorypal/keeper/internal/queue"
	"memorypal/keeper/internal/summarize"
)

type fixture struct {
	store *db.DB
	queue *queue.Queue
	bus   *bus.Local
	orch  *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	d, err := db.OpenDB(filepath.Join(t.TempDir(), "pipeline.db"))
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	b := bus.NewLocal()
	t.Cleanup(func() { b.Close() })
	q := queue.New(d, nil)
	return &fixture{
		store: d,
		queue: q,
		bus:   b,
		orch:  New(d, q, b, summarize.New(nil, summarize.Options{}, nil), DefaultConfig(), nil),
	}
}

func pageTask(pageID, url, title, text string) queue.Task {
	return queue.NewTask(pageID, url, title, "", text, db.HashString(url+"|"+text), 0)
}

func mentionTargets(t *testing.T, d *db.DB, pageID string) map[string]bool {
	t.Helper()
	rels, err := d.GetRelationsBySource(context.Background(), db.KindPage, pageID, db.RelMentions)
	if err != nil {
		t.Fatal(err)
	}
	out := map[string]bool{}
	for _, r := range rels {
		out[r.TargetID] = true
	}
	return out
}

func TestProcess_SharedConceptAndSimilarity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	text := "Reinforcement Learning basics"

	a := pageTask("page-a", "https://a.example/rl", text, text)
	b := pageTask("page-b", "https://b.example/rl", text, text)
	for _, task := range []queue.Task{a, b} {
		if res := f.orch.Process(ctx, task); res.Status != StatusSuccess {
			t.Fatalf("Process(%s) = %+v", task.PageID, res)
		}
	}

	concepts, err := f.store.FindEntitiesByNameLower(ctx, "reinforcement learning")
	if err != nil {
		t.Fatal(err)
	}
	if len(concepts) != 1 || concepts[0].Type != db.EntityConcept {
		t.Fatalf("expected one shared Concept entity, got %+v", concepts)
	}
	entID := concepts[0].ID

	for _, pageID := range []string{"page-a", "page-b"} {
		targets := mentionTargets(t, f.store, pageID)
		if len(targets) != 1 || !targets[entID] {
			t.Errorf("%s mentions %v, want only %s", pageID, targets, entID)
		}
	}

	sims, err := f.store.AllRelations(ctx, db.RelPageSimilar)
	if err != nil {
		t.Fatal(err)
	}
	if len(sims) != 1 {
		t.Fatalf("expected one PAGE_SIMILAR relation, got %d", len(sims))
	}
	if math.Abs(sims[0].Weight-1.0) > 1e-4 {
		t.Errorf("similarity weight = %v, want ~1.0", sims[0].Weight)
	}
	if sims[0].SourceID != "page-a" || sims[0].TargetID != "page-b" {
		t.Errorf("expected canonical orientation a->b, got %s->%s", sims[0].SourceID, sims[0].TargetID)
	}

	page, err := f.store.GetPage(ctx, "page-b")
	if err != nil {
		t.Fatal(err)
	}
	if page.Metadata[db.MetaSummarySource] != summarize.SourceLocal {
		t.Errorf("summarySource = %v", page.Metadata[db.MetaSummarySource])
	}
	if len(page.Embedding) != 384 || page.ContentHash != b.ContentHash {
		t.Errorf("page not fully persisted: dim %d hash %q", len(page.Embedding), page.ContentHash)
	}
}

func TestProcess_ReprocessReplacesMentionsAndSimilarity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rl := "Reinforcement Learning basics"
	if res := f.orch.Process(ctx, pageTask("page-a", "https://a.example", "", rl)); res.Status != StatusSuccess {
		t.Fatal(res.Error)
	}
	if res := f.orch.Process(ctx, pageTask("page-b", "https://b.example", "", rl)); res.Status != StatusSuccess {
		t.Fatal(res.Error)
	}
	// The canonical edge runs page-a -> page-b, so reprocessing page-b has
	// to clear it from the target side.
	if sims, _ := f.store.AllRelations(ctx, db.RelPageSimilar); len(sims) != 1 {
		t.Fatalf("expected similarity edge before reprocess, got %d", len(sims))
	}

	res := f.orch.Process(ctx, pageTask("page-b", "https://b.example", "", "Visit NASA today."))
	if res.Status != StatusSuccess {
		t.Fatal(res.Error)
	}

	targets := mentionTargets(t, f.store, "page-b")
	want := db.EntityID("NASA", db.EntityAcronym)
	if len(targets) != 1 || !targets[want] {
		t.Errorf("mentions after reprocess = %v, want only %s", targets, want)
	}
	if sims, _ := f.store.AllRelations(ctx, db.RelPageSimilar); len(sims) != 0 {
		t.Errorf("stale similarity edges remain: %+v", sims)
	}
}

func TestProcess_CoMentions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.orch.Process(ctx, pageTask("p", "https://p.example", "Graph Theory notes", "NASA studies Graph Theory."))
	if res.Status != StatusSuccess {
		t.Fatal(res.Error)
	}
	if res.Entities != 2 {
		t.Fatalf("expected 2 entities, got %d", res.Entities)
	}
	co, err := f.store.AllRelations(ctx, db.RelCoMention)
	if err != nil {
		t.Fatal(err)
	}
	if len(co) != 1 {
		t.Fatalf("expected 1 co-mention, got %d", len(co))
	}
	if co[0].Metadata["pageId"] != "p" {
		t.Errorf("co-mention metadata = %v", co[0].Metadata)
	}
	mentions, _ := f.store.GetRelationsBySource(ctx, db.KindPage, "p", db.RelMentions)
	minWeight := math.Inf(1)
	for _, m := range mentions {
		minWeight = math.Min(minWeight, m.Weight)
	}
	if co[0].Weight != minWeight {
		t.Errorf("co-mention weight = %v, want min mention weight %v", co[0].Weight, minWeight)
	}
}

func TestProcess_SkipsInFlight(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := pageTask("p", "https://p.example", "Title", "Some text here.")

	var nested Result
	f.orch.OnStage = func(taskID string, stage Stage) {
		if stage == StageSummarizing {
			nested = f.orch.Process(ctx, task)
		}
	}
	res := f.orch.Process(ctx, task)
	if res.Status != StatusSuccess {
		t.Fatalf("outer Process = %+v", res)
	}
	if nested.Status != StatusSkipped {
		t.Errorf("re-dispatch while in flight = %s, want skipped", nested.Status)
	}
	if f.orch.InFlight(task.TaskID) {
		t.Error("task still marked in flight")
	}
}

func TestProcess_FailureAbandonsTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// No URL and no stored page: the page upsert fails.
	task := pageTask("p", "", "Title", "Body text.")
	if err := f.queue.Enqueue(ctx, task); err != nil {
		t.Fatal(err)
	}
	var stages []Stage
	f.orch.OnStage = func(_ string, s Stage) { stages = append(stages, s) }

	res := f.orch.Process(ctx, task)
	if res.Status != StatusFailed || res.Stage != StageFailed || res.Error == "" {
		t.Fatalf("expected failure, got %+v", res)
	}
	if stages[len(stages)-2] != StagePersisting {
		t.Errorf("expected failure during persisting, stages %v", stages)
	}
	if f.orch.InFlight(task.TaskID) {
		t.Error("failed task still in flight")
	}
	pending, _ := f.queue.Pending(ctx)
	if len(pending) != 1 {
		t.Errorf("failed task should stay queued, got %d pending", len(pending))
	}
}

func TestProcess_CompletionRemovesAndAnnounces(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := f.bus.Subscribe(ctx, bus.TopicPageProcessed)
	if err != nil {
		t.Fatal(err)
	}
	task := pageTask("p", "https://p.example", "Title", "Body text.")
	if err := f.queue.Enqueue(ctx, task); err != nil {
		t.Fatal(err)
	}

	var stages []Stage
	f.orch.OnStage = func(_ string, s Stage) { stages = append(stages, s) }
	if res := f.orch.Process(ctx, task); res.Status != StatusSuccess {
		t.Fatal(res.Error)
	}

	want := []Stage{StageReceived, StageSummarizing, StageEmbedding, StageExtracting,
		StagePersisting, StageSimilarityLinking, StageComplete}
	if len(stages) != len(want) {
		t.Fatalf("stages = %v, want %v", stages, want)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Errorf("stage %d = %s, want %s", i, stages[i], want[i])
		}
	}

	pending, _ := f.queue.Pending(ctx)
	if len(pending) != 0 {
		t.Errorf("completed task still queued")
	}
	select {
	case payload := <-events:
		var ev bus.PageProcessed
		if err := json.Unmarshal(payload, &ev); err != nil {
			t.Fatal(err)
		}
		if ev.PageID != "p" {
			t.Errorf("event page = %q", ev.PageID)
		}
	case <-time.After(time.Second):
		t.Fatal("no page-processed event")
	}
}

func TestProcess_InvalidTask(t *testing.T) {
	f := newFixture(t)
	if res := f.orch.Process(context.Background(), queue.Task{}); res.Status != StatusFailed {
		t.Errorf("expected failure for empty task, got %s", res.Status)
	}
}

func TestTaskFromPage(t *testing.T) {
	page := &db.Page{
		ID:          "p1",
		URL:         "https://a.example",
		Title:       "A",
		Content:     "body",
		ContentHash: "h",
		Timestamp:   42,
		Metadata:    map[string]any{db.MetaDescription: "desc"},
	}
	task, err := TaskFromPage(page)
	if err != nil {
		t.Fatal(err)
	}
	if task.TaskID != queue.TaskID("p1", "h") || task.Meta != "desc" || task.Text != "body" || task.Timestamp != 42 {
		t.Errorf("unexpected task %+v", task)
	}

	page.ContentHash = ""
	task, err = TaskFromPage(page)
	if err != nil {
		t.Fatal(err)
	}
	if task.ContentHash != db.HashString("https://a.example|body") {
		t.Errorf("hash not derived: %q", task.ContentHash)
	}

	if _, err := TaskFromPage(&db.Page{ID: "empty"}); err != ErrNoTask {
		t.Errorf("expected ErrNoTask, got %v", err)
	}
}
