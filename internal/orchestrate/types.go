package orchestrate

import "time"

// Stage identifies how far a task has progressed through the pipeline.
type Stage string

const (
	StageReceived          Stage = "received"
	StageSummarizing       Stage = "summarizing"
	StageEmbedding         Stage = "embedding"
	StageExtracting        Stage = "extracting-entities"
	StagePersisting        Stage = "persisting"
	StageSimilarityLinking Stage = "similarity-linking"
	StageComplete          Stage = "complete"
	StageFailed            Stage = "failed"
)

func (s Stage) String() string { return string(s) }

// RunStatus is the outcome of processing one task
type RunStatus string

const (
	StatusSuccess RunStatus = "success"
	StatusSkipped RunStatus = "skipped" // same task already in flight
	StatusFailed  RunStatus = "failed"
)

// Config controls the analysis constants
type Config struct {
	MaxContextChars     int     // bound for summarizer and embedding input (default 6500)
	TextSliceChars      int     // text considered by entity extraction (default 15000)
	EntityLimit         int     // max entities kept per page (default 24)
	SimilarityThreshold float64 // minimum cosine for PAGE_SIMILAR (default 0.18)
	SimilarityTopN      int     // max PAGE_SIMILAR edges per page (default 12)
}

// DefaultConfig returns production defaults
func DefaultConfig() Config {
	return Config{
		MaxContextChars:     6500,
		TextSliceChars:      15000,
		EntityLimit:         24,
		SimilarityThreshold: 0.18,
		SimilarityTopN:      12,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.MaxContextChars <= 0 {
		c.MaxContextChars = d.MaxContextChars
	}
	if c.TextSliceChars <= 0 {
		c.TextSliceChars = d.TextSliceChars
	}
	if c.EntityLimit <= 0 {
		c.EntityLimit = d.EntityLimit
	}
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = d.SimilarityThreshold
	}
	if c.SimilarityTopN <= 0 {
		c.SimilarityTopN = d.SimilarityTopN
	}
}

// Result is the full outcome of processing one task
type Result struct {
	TaskID        string        `json:"task_id"`
	PageID        string        `json:"page_id"`
	Status        RunStatus     `json:"status"`
	Stage         Stage         `json:"stage"` // last stage reached
	SummarySource string        `json:"summary_source,omitempty"`
	Entities      int           `json:"entities"`
	Similar       int           `json:"similar"`
	Duration      time.Duration `json:"duration"`
	Error         string        `json:"error,omitempty"`
}
