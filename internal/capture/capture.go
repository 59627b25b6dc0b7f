// Package capture is the producer side of the pipeline: it stores a stub
// for a visited page, then enqueues and announces an analysis task.
package capture

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"memorypal/keeper/internal/bus"
	"memorypal/keeper/internal/db"
	"memorypal/keeper/internal/logger"
	"memorypal/keeper/internal/queue"
	"memorypal/keeper/internal/textutil"
)

const DefaultMaxChars = 60000

var (
	browserSchemeRe = regexp.MustCompile(`^(?:chrome|edge|brave|opera|vivaldi)://`)
	httpRe          = regexp.MustCompile(`(?i)^https?://`)
)

// IsCapturable reports whether url points at ordinary web content.
func IsCapturable(url string) bool {
	switch {
	case url == "":
		return false
	case strings.HasPrefix(url, "about:"):
		return false
	case strings.HasPrefix(url, "chrome-extension://"):
		return false
	case browserSchemeRe.MatchString(url):
		return false
	}
	return httpRe.MatchString(url)
}

// Capture is what was read off a page.
type Capture struct {
	Title string
	Meta  string // meta description
	Text  string
}

// Fetcher reads a page's content.
type Fetcher func(ctx context.Context, url string) (Capture, error)

type Status string

const (
	StatusSkipped   Status = "skipped"
	StatusUnchanged Status = "unchanged"
	StatusQueued    Status = "queued"
	// StatusDeferred means the task could not be queued; the page waits in
	// the fallback file until RecoverStubs queues it.
	StatusDeferred  Status = "deferred"
)

// Outcome describes what a capture did.
type Outcome struct {
	Status   Status       `json:"status"`
	PageID   string       `json:"page_id,omitempty"`
	TaskID   string       `json:"task_id,omitempty"`
	Delivery bus.Delivery `json:"-"`
	Stub     bool         `json:"fallback_stub,omitempty"` // page stub went to the fallback file
}

type Options struct {
	MaxChars int
}

// Producer turns captures into stored page stubs and pipeline tasks.
type Producer struct {
	store    *db.DB
	queue    *queue.Queue
	pub      bus.Publisher
	fallback *Fallback
	maxChars int
	log      *logger.Logger
}

func NewProducer(store *db.DB, q *queue.Queue, pub bus.Publisher, fallback *Fallback, opts Options, log *logger.Logger) *Producer {
	if opts.MaxChars <= 0 {
		opts.MaxChars = DefaultMaxChars
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Producer{
		store:    store,
		queue:    q,
		pub:      pub,
		fallback: fallback,
		maxChars: opts.MaxChars,
		log:      log.With("component", "capture"),
	}
}

// Capture stores a stub for url and queues an analysis task, unless the url
// is not capturable, the text is empty, or the content is unchanged since
// the last capture.
func (p *Producer) Capture(ctx context.Context, url string, c Capture) (Outcome, error) {
	out := Outcome{Status: StatusSkipped}
	if !IsCapturable(url) {
		return out, nil
	}
	text := textutil.Prefix(c.Text, p.maxChars)
	if strings.TrimSpace(text) == "" {
		return out, nil
	}
	hash := db.HashString(url + "|" + text)

	existing, err := p.store.GetPageByURL(ctx, url)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		p.log.Warn("reading existing page", "url", url, "error", err)
	}
	if existing != nil && existing.ContentHash == hash {
		p.log.Debug("skipping unchanged page", "url", url)
		out.Status = StatusUnchanged
		out.PageID = existing.ID
		return out, nil
	}

	pageID := db.HashString(url)
	if existing != nil {
		pageID = existing.ID
	}
	timestamp := p.store.NowMillis()

	_, err = p.store.UpsertPage(ctx, db.PagePatch{
		ID:          pageID,
		Title:       db.Ptr(c.Title),
		URL:         db.Ptr(url),
		Timestamp:   db.Ptr(timestamp),
		Content:     db.Ptr(text),
		ContentHash: db.Ptr(hash),
		Metadata:    map[string]any{db.MetaDescription: c.Meta},
	})
	if err != nil {
		p.log.Warn("persisting page stub", "url", url, "error", err)
		if p.fallback == nil {
			return out, fmt.Errorf("persisting page stub: %w", err)
		}
		stub := Stub{ID: pageID, Title: c.Title, URL: url, Timestamp: timestamp, Meta: c.Meta, Content: text, ContentHash: hash}
		if ferr := p.fallback.SaveStub(stub); ferr != nil {
			return out, fmt.Errorf("persisting page stub: %w (fallback: %v)", err, ferr)
		}
		out.Stub = true
	}

	task := queue.NewTask(pageID, url, c.Title, c.Meta, text, hash, timestamp)
	out.Status = StatusQueued
	if err := p.queue.Enqueue(ctx, task); err != nil {
		p.log.Warn("enqueueing task", "task_id", task.TaskID, "error", err)
		out.Status = StatusDeferred
		if !out.Stub && p.fallback != nil {
			// The stored hash would make a recapture look unchanged, so keep
			// a stub that recovery can queue.
			stub := Stub{ID: pageID, Title: c.Title, URL: url, Timestamp: timestamp, Meta: c.Meta, Content: text, ContentHash: hash}
			if ferr := p.fallback.SaveStub(stub); ferr != nil {
				p.log.Warn("saving fallback stub", "url", url, "error", ferr)
			} else {
				out.Stub = true
			}
		}
	}
	out.PageID = pageID
	out.TaskID = task.TaskID
	out.Delivery = p.dispatch(ctx, task)
	return out, nil
}

func (p *Producer) dispatch(ctx context.Context, task queue.Task) bus.Delivery {
	d := queue.Dispatch(ctx, p.pub, task)
	if d.Result == bus.Failed {
		p.log.Warn("dispatching task", "task_id", task.TaskID, "error", d.Err)
	} else {
		p.log.Debug("task dispatched", "task_id", task.TaskID, "delivery", d.Result.String())
	}
	return d
}

// Navigate handles a finished page load: when auto-analysis is enabled and
// the url is capturable it fetches the page and captures it.
func (p *Producer) Navigate(ctx context.Context, url string, fetch Fetcher) (Outcome, error) {
	out := Outcome{Status: StatusSkipped}
	if !IsCapturable(url) {
		return out, nil
	}
	enabled, err := p.store.AutoAnalyze(ctx)
	if err != nil {
		p.log.Warn("reading autoAnalyze setting", "error", err)
	}
	if !enabled {
		return out, nil
	}
	c, err := fetch(ctx, url)
	if err != nil {
		p.log.Warn("capturing page content", "url", url, "error", err)
		return out, nil
	}
	return p.Capture(ctx, url, c)
}

// RecoverStubs moves page stubs saved while the store was unavailable into
// the store and queues an analysis task for each. Stubs for urls that
// already have a stored page with different content are dropped.
func (p *Producer) RecoverStubs(ctx context.Context) (int, error) {
	if p.fallback == nil {
		return 0, nil
	}
	stubs, err := p.fallback.Stubs()
	if err != nil {
		return 0, err
	}
	recovered := 0
	var remaining []Stub
	for _, s := range stubs {
		if existing, err := p.store.GetPageByURL(ctx, s.URL); err == nil && existing.ContentHash != s.ContentHash {
			continue
		}
		task := queue.NewTask(s.ID, s.URL, s.Title, s.Meta, s.Content, s.ContentHash, s.Timestamp)
		if err := p.queue.Enqueue(ctx, task); err != nil {
			p.log.Warn("queueing recovered stub", "url", s.URL, "error", err)
			remaining = append(remaining, s)
			continue
		}
		_, err := p.store.UpsertPage(ctx, db.PagePatch{
			ID:          s.ID,
			Title:       db.Ptr(s.Title),
			URL:         db.Ptr(s.URL),
			Timestamp:   db.Ptr(s.Timestamp),
			Content:     db.Ptr(s.Content),
			ContentHash: db.Ptr(s.ContentHash),
			Metadata:    map[string]any{db.MetaDescription: s.Meta},
		})
		if err != nil {
			// The queued task persists the page when it runs.
			p.log.Warn("recovering page stub", "url", s.URL, "error", err)
		}
		p.dispatch(ctx, task)
		recovered++
	}
	if err := p.fallback.Replace(remaining); err != nil {
		return recovered, err
	}
	return recovered, nil
}
