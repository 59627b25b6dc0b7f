// Package summarize produces short page summaries, preferring an external
// summarizer and falling back to a local frequency ranker.
package summarize

import (
	"context"
	"strings"
	"sync"

	"memorypal/keeper/internal/logger"
	"memorypal/keeper/internal/textutil"
)

// Summary sources recorded in page metadata.
const (
	SourceEmpty    = "empty"
	SourceExternal = "external-ai"
	SourceLocal    = "local-fallback"
)

const (
	DefaultMaxContext = 6500
	DefaultSentences  = 3
)

// External is a summarization capability outside the process.
type External interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// ExternalFactory creates the external summarizer. A nil External with a
// nil error means the capability is absent.
type ExternalFactory func(ctx context.Context) (External, error)

type Input struct {
	Title string
	Meta  string
	Text  string
}

type Result struct {
	Summary string
	Source  string
}

// Summarizer owns one external session, created at most once. If creation
// fails the external path stays disabled for the life of the Summarizer.
type Summarizer struct {
	factory    ExternalFactory
	maxContext int
	sentences  int
	log        *logger.Logger

	once     sync.Once
	external External
}

type Options struct {
	MaxContext int
	Sentences  int
}

func New(factory ExternalFactory, opts Options, log *logger.Logger) *Summarizer {
	if opts.MaxContext <= 0 {
		opts.MaxContext = DefaultMaxContext
	}
	if opts.Sentences <= 0 {
		opts.Sentences = DefaultSentences
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Summarizer{
		factory:    factory,
		maxContext: opts.MaxContext,
		sentences:  opts.Sentences,
		log:        log,
	}
}

func (s *Summarizer) session(ctx context.Context) External {
	s.once.Do(func() {
		if s.factory == nil {
			return
		}
		ext, err := s.factory(ctx)
		if err != nil {
			s.log.Warn("external summarizer unavailable", "error", err)
			return
		}
		if ext != nil {
			s.log.Info("external summarizer ready")
		}
		s.external = ext
	})
	return s.external
}

// Summarize bounds title, meta and text to the context budget and summarizes it.
func (s *Summarizer) Summarize(ctx context.Context, in Input) Result {
	bounded := textutil.Prefix(in.Title+"\n"+in.Meta+"\n"+in.Text, s.maxContext)
	if strings.TrimSpace(bounded) == "" {
		return Result{Summary: "", Source: SourceEmpty}
	}

	if ext := s.session(ctx); ext != nil {
		summary, err := ext.Summarize(ctx, bounded)
		switch {
		case err != nil:
			s.log.Warn("external summarize failed", "error", err)
		case strings.TrimSpace(summary) != "":
			return Result{Summary: strings.TrimSpace(summary), Source: SourceExternal}
		}
	}
	return Result{Summary: Local(bounded, s.sentences), Source: SourceLocal}
}
