package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"memorypal/keeper/internal/bus"
	"memorypal/keeper/internal/db"
	"memorypal/keeper/internal/queue"
)

type fixture struct {
	store    *db.DB
	queue    *queue.Queue
	bus      *bus.Local
	fallback *Fallback
	producer *Producer
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	dir := t.TempDir()
	d, err := db.OpenDB(filepath.Join(dir, "capture.db"))
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	b := bus.NewLocal()
	t.Cleanup(func() { b.Close() })
	q := queue.New(d, nil)
	fb := NewFallback(filepath.Join(dir, "fallback.json"))
	return &fixture{store: d, queue: q, bus: b, fallback: fb, producer: NewProducer(d, q, b, fb, opts, nil)}
}

func TestIsCapturable(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"", false},
		{"about:blank", false},
		{"chrome://settings", false},
		{"edge://flags", false},
		{"brave://rewards", false},
		{"opera://about", false},
		{"vivaldi://notes", false},
		{"chrome-extension://abc/popup.html", false},
		{"file:///etc/hosts", false},
		{"ftp://example.com", false},
		{"http://example.com", true},
		{"https://example.com/a?b=c", true},
		{"HTTPS://EXAMPLE.COM", true},
	}
	for _, tt := range tests {
		if got := IsCapturable(tt.url); got != tt.want {
			t.Errorf("IsCapturable(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestCapture_SkipsWithoutTask(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	cases := []struct {
		url  string
		text string
	}{
		{"chrome://settings", "Settings page"},
		{"about:blank", "anything"},
		{"https://example.com", "   \n\t "},
	}
	for _, c := range cases {
		out, err := f.producer.Capture(ctx, c.url, Capture{Text: c.text})
		if err != nil {
			t.Fatalf("Capture(%q): %v", c.url, err)
		}
		if out.Status != StatusSkipped {
			t.Errorf("Capture(%q) = %s, want skipped", c.url, out.Status)
		}
	}
	if pending, _ := f.queue.Pending(ctx); len(pending) != 0 {
		t.Errorf("skipped captures queued %d tasks", len(pending))
	}
	if pages, _ := f.store.AllPages(ctx); len(pages) != 0 {
		t.Errorf("skipped captures stored %d pages", len(pages))
	}
}

func TestCapture_QueuesThenUnchanged(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	url := "https://example.com/post"
	c := Capture{Title: "Post", Meta: "A post", Text: "Body of the post."}

	out, err := f.producer.Capture(ctx, url, c)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != StatusQueued {
		t.Fatalf("first capture = %s", out.Status)
	}
	if out.PageID != db.HashString(url) {
		t.Errorf("page id = %s", out.PageID)
	}
	hash := db.HashString(url + "|" + c.Text)
	if out.TaskID != queue.TaskID(out.PageID, hash) {
		t.Errorf("task id = %s", out.TaskID)
	}
	if out.Delivery.Result != bus.NoReceiver {
		t.Errorf("delivery with no consumer = %s", out.Delivery.Result)
	}

	page, err := f.store.GetPageByURL(ctx, url)
	if err != nil {
		t.Fatal(err)
	}
	if page.ContentHash != hash || page.Content != c.Text || page.Summary != "" {
		t.Errorf("unexpected stub %+v", page)
	}
	if page.Metadata[db.MetaDescription] != "A post" {
		t.Errorf("metadata = %v", page.Metadata)
	}

	pending, _ := f.queue.Pending(ctx)
	if len(pending) != 1 || pending[0].Meta != "A post" || pending[0].ContentHash != hash {
		t.Fatalf("pending = %+v", pending)
	}

	again, err := f.producer.Capture(ctx, url, c)
	if err != nil {
		t.Fatal(err)
	}
	if again.Status != StatusUnchanged || again.PageID != out.PageID {
		t.Errorf("second capture = %+v", again)
	}
	if pending, _ := f.queue.Pending(ctx); len(pending) != 1 {
		t.Errorf("unchanged capture queued work: %d pending", len(pending))
	}
}

func TestCapture_PreservesAnalysisFields(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	url := "https://example.com/doc"

	_, err := f.store.UpsertPage(ctx, db.PagePatch{
		ID:        "custom-id",
		URL:       db.Ptr(url),
		Title:     db.Ptr("Old"),
		Summary:   db.Ptr("Existing summary."),
		Content:   db.Ptr("old text"),
		Embedding: []float32{1, 0, 0},
		Tags:      &[]string{"keep"},
		Metadata:  map[string]any{"summarySource": "local-fallback"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.store.AddNote(ctx, "custom-id", "remember this"); err != nil {
		t.Fatal(err)
	}

	out, err := f.producer.Capture(ctx, url, Capture{Title: "New", Meta: "desc", Text: "new text"})
	if err != nil {
		t.Fatal(err)
	}
	if out.PageID != "custom-id" {
		t.Errorf("stored id not reused: %s", out.PageID)
	}
	page, err := f.store.GetPage(ctx, "custom-id")
	if err != nil {
		t.Fatal(err)
	}
	if page.Title != "New" || page.Content != "new text" {
		t.Errorf("capture fields not updated: %+v", page)
	}
	if page.Summary != "Existing summary." || len(page.Embedding) != 3 {
		t.Errorf("analysis fields lost: summary %q embedding %v", page.Summary, page.Embedding)
	}
	if len(page.Notes) != 1 || len(page.Tags) != 1 {
		t.Errorf("notes/tags lost: %+v %+v", page.Notes, page.Tags)
	}
	if page.Metadata["summarySource"] != "local-fallback" || page.Metadata[db.MetaDescription] != "desc" {
		t.Errorf("metadata not merged: %v", page.Metadata)
	}
}

func TestCapture_TruncatesText(t *testing.T) {
	f := newFixture(t, Options{MaxChars: 10})
	ctx := context.Background()
	url := "https://example.com/long"

	if _, err := f.producer.Capture(ctx, url, Capture{Text: strings.Repeat("é", 25)}); err != nil {
		t.Fatal(err)
	}
	page, err := f.store.GetPageByURL(ctx, url)
	if err != nil {
		t.Fatal(err)
	}
	if page.Content != strings.Repeat("é", 10) {
		t.Errorf("content = %q", page.Content)
	}
	if page.ContentHash != db.HashString(url+"|"+page.Content) {
		t.Error("hash not computed over truncated text")
	}
}

func TestCapture_DeliversToSubscriber(t *testing.T) {
	f := newFixture(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tasks, err := f.bus.Subscribe(ctx, bus.TopicTasks)
	if err != nil {
		t.Fatal(err)
	}
	out, err := f.producer.Capture(ctx, "https://example.com", Capture{Text: "hello world"})
	if err != nil {
		t.Fatal(err)
	}
	if out.Delivery.Result != bus.Delivered || out.Delivery.Receivers != 1 {
		t.Fatalf("delivery = %+v", out.Delivery)
	}
	task, err := queue.Decode(<-tasks)
	if err != nil {
		t.Fatal(err)
	}
	if task.TaskID != out.TaskID || task.Text != "hello world" {
		t.Errorf("delivered task = %+v", task)
	}
}

func TestCapture_StoreUnavailableUsesFallback(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.store.Close()

	out, err := f.producer.Capture(ctx, "https://example.com/offline", Capture{Title: "Offline", Text: "saved anyway"})
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != StatusDeferred || !out.Stub {
		t.Fatalf("outcome = %+v", out)
	}
	stubs, err := f.fallback.Stubs()
	if err != nil {
		t.Fatal(err)
	}
	if len(stubs) != 1 || stubs[0].Title != "Offline" || stubs[0].Summary != "" || stubs[0].ID != out.PageID {
		t.Errorf("stubs = %+v", stubs)
	}
}

func TestNavigate(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	calls := 0
	fetch := func(ctx context.Context, url string) (Capture, error) {
		calls++
		return Capture{Title: "T", Text: "content for " + url}, nil
	}

	out, err := f.producer.Navigate(ctx, "chrome://newtab", fetch)
	if err != nil || out.Status != StatusSkipped || calls != 0 {
		t.Fatalf("internal page: %+v %v calls=%d", out, err, calls)
	}

	out, err = f.producer.Navigate(ctx, "https://example.com", fetch)
	if err != nil || out.Status != StatusQueued || calls != 1 {
		t.Fatalf("auto-analyze default: %+v %v calls=%d", out, err, calls)
	}

	if err := f.store.SetSetting(ctx, db.SettingAutoAnalyze, false); err != nil {
		t.Fatal(err)
	}
	out, err = f.producer.Navigate(ctx, "https://example.org", fetch)
	if err != nil || out.Status != StatusSkipped || calls != 1 {
		t.Fatalf("auto-analyze off: %+v %v calls=%d", out, err, calls)
	}

	if err := f.store.SetSetting(ctx, db.SettingAutoAnalyze, true); err != nil {
		t.Fatal(err)
	}
	failing := func(context.Context, string) (Capture, error) { return Capture{}, errors.New("boom") }
	out, err = f.producer.Navigate(ctx, "https://example.net", failing)
	if err != nil || out.Status != StatusSkipped {
		t.Fatalf("fetch failure: %+v %v", out, err)
	}
}

func TestRecoverStubs(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	if _, err := f.store.UpsertPage(ctx, db.PagePatch{ID: "present", URL: db.Ptr("https://a.example"), Content: db.Ptr("x")}); err != nil {
		t.Fatal(err)
	}
	for _, s := range []Stub{
		{ID: "dup", URL: "https://a.example", Content: "stale", ContentHash: "old"},
		{ID: "new", URL: "https://b.example", Title: "B", Content: "recovered", ContentHash: "h"},
	} {
		if err := f.fallback.SaveStub(s); err != nil {
			t.Fatal(err)
		}
	}

	n, err := f.producer.RecoverStubs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("recovered %d stubs, want 1", n)
	}
	page, err := f.store.GetPage(ctx, "new")
	if err != nil {
		t.Fatal(err)
	}
	if page.Content != "recovered" || page.ContentHash != "h" {
		t.Errorf("recovered page = %+v", page)
	}
	pending, err := f.queue.Pending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].PageID != "new" || pending[0].Text != "recovered" {
		t.Errorf("pending after recovery = %+v", pending)
	}
	if _, err := os.Stat(f.fallback.Path()); !os.IsNotExist(err) {
		t.Errorf("fallback file should be removed, stat err = %v", err)
	}
}

func TestRecoverStubs_OfflineCaptureIsAnalyzedLater(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "capture.db")
	fb := NewFallback(filepath.Join(dir, "fallback.json"))

	offline, err := db.OpenDB(path)
	if err != nil {
		t.Fatal(err)
	}
	offline.Close()
	b := bus.NewLocal()
	t.Cleanup(func() { b.Close() })

	url := "https://example.com/offline"
	c := Capture{Title: "Offline", Meta: "desc", Text: "captured while the store was down"}
	out, err := NewProducer(offline, queue.New(offline, nil), b, fb, Options{}, nil).Capture(ctx, url, c)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != StatusDeferred || !out.Stub {
		t.Fatalf("offline capture = %+v", out)
	}

	d, err := db.OpenDB(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { d.Close() })
	q := queue.New(d, nil)
	p := NewProducer(d, q, b, fb, Options{}, nil)

	n, err := p.RecoverStubs(ctx)
	if err != nil || n != 1 {
		t.Fatalf("RecoverStubs = %d, %v", n, err)
	}
	pending, err := q.Pending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].TaskID != out.TaskID || pending[0].Meta != "desc" {
		t.Fatalf("pending after recovery = %+v", pending)
	}

	again, err := p.Capture(ctx, url, c)
	if err != nil {
		t.Fatal(err)
	}
	if again.Status != StatusUnchanged {
		t.Errorf("recapture = %+v", again)
	}
	if pending, _ := q.Pending(ctx); len(pending) != 1 {
		t.Errorf("recovered task lost: %+v", pending)
	}
}
