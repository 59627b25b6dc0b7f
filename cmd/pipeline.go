package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"memorypal/keeper/internal/bus"
	"memorypal/keeper/internal/capture"
	"memorypal/keeper/internal/config"
	"memorypal/keeper/internal/logger"
	"memorypal/keeper/internal/orchestrate"
	"memorypal/keeper/internal/queue"
	"memorypal/keeper/internal/scrape"
	"memorypal/keeper/internal/summarize"
	"memorypal/keeper/internal/textutil"
)

// pipeline is the producer and consumer sides wired from config.
type pipeline struct {
	bus      bus.Bus
	queue    *queue.Queue
	orch     *orchestrate.Orchestrator
	producer *capture.Producer
	fetcher  *scrape.Client
}

func newBus(ctx context.Context, cfg config.BusConfig, log *logger.Logger) (bus.Bus, error) {
	switch cfg.Type {
	case "", "local":
		return bus.NewLocal(), nil
	case "redis":
		r := cfg.Redis
		if r == nil {
			return nil, fmt.Errorf("bus type redis needs a redis section")
		}
		return bus.NewRedis(ctx, bus.RedisOptions{
			Addr:          r.Addr,
			Password:      r.Password,
			DB:            r.DB,
			ChannelPrefix: r.ChannelPrefix,
		}, log)
	default:
		return nil, fmt.Errorf("unknown bus type %q", cfg.Type)
	}
}

func newSummarizer(cfg *config.AppConfig, log *logger.Logger) *summarize.Summarizer {
	var factory summarize.ExternalFactory
	if cfg.Summarizer.Type == "openai" && cfg.Summarizer.OpenAI != nil {
		o := cfg.Summarizer.OpenAI
		if key := o.APIKey(); key != "" {
			factory = summarize.OpenAIFactory(summarize.OpenAIConfig{
				BaseURL: o.BaseURL,
				APIKey:  key,
				Model:   o.Model,
				Timeout: time.Duration(o.TimeoutSecs) * time.Second,
			})
		} else {
			log.Warn("openai summarizer configured without an api key, using local summaries", "api_key_env", o.APIKeyEnv)
		}
	}
	return summarize.New(factory, summarize.Options{
		MaxContext: cfg.Pipeline.MaxContextChars,
		Sentences:  cfg.Pipeline.SummarySentences,
	}, log)
}

func fallbackPath(a *app) string {
	if a.cfg.FallbackFile != "" {
		return a.cfg.FallbackFile
	}
	return filepath.Join(filepath.Dir(a.store.Path), "memorypal-fallback.json")
}

func newPipeline(ctx context.Context, a *app) (*pipeline, error) {
	b, err := newBus(ctx, a.cfg.Bus, a.log)
	if err != nil {
		return nil, fmt.Errorf("connecting bus: %w", err)
	}
	q := queue.New(a.store, a.log)
	p := a.cfg.Pipeline
	orch := orchestrate.New(a.store, q, b, newSummarizer(a.cfg, a.log), orchestrate.Config{
		MaxContextChars:     p.MaxContextChars,
		TextSliceChars:      p.TextSliceChars,
		EntityLimit:         p.EntityLimit,
		SimilarityThreshold: p.SimilarityThreshold,
		SimilarityTopN:      p.SimilarityTopN,
	}, a.log)
	producer := capture.NewProducer(a.store, q, b, capture.NewFallback(fallbackPath(a)),
		capture.Options{MaxChars: a.cfg.Capture.MaxChars}, a.log)
	fetcher := scrape.NewClient(scrape.Options{
		Timeout:   time.Duration(a.cfg.Capture.TimeoutSecs) * time.Second,
		UserAgent: a.cfg.Capture.UserAgent,
	})
	return &pipeline{bus: b, queue: q, orch: orch, producer: producer, fetcher: fetcher}, nil
}

func (p *pipeline) Close() {
	_ = p.bus.Close()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResult(r orchestrate.Result) {
	line := fmt.Sprintf("  %-8s %s  %s", r.Status, truncID(r.PageID), textutil.FormatDurationShort(r.Duration.Milliseconds()))
	if r.Status == orchestrate.StatusSuccess {
		line += fmt.Sprintf("  summary=%s entities=%d similar=%d", r.SummarySource, r.Entities, r.Similar)
	}
	if r.Error != "" {
		line += fmt.Sprintf("  at %s: %s", r.Stage, r.Error)
	}
	fmt.Println(line)
}

func truncID(id string) string {
	return textutil.Prefix(id, 8)
}

func truncTitle(s string, max int) string {
	if textutil.RuneLen(s) <= max {
		return s
	}
	return textutil.Prefix(s, max) + "..."
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
