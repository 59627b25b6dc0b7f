package orchestrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"memorypal/keeper/internal/bus"
	"memorypal/keeper/internal/db"
	"memorypal/keeper/internal/embedding"
	"memorypal/keeper/internal/entity"
	"memorypal/keeper/internal/graph"
	"memorypal/keeper/internal/logger"
	"memorypal/keeper/internal/queue"
	"memorypal/keeper/internal/summarize"
	"memorypal/keeper/internal/textutil"
)

// Orchestrator turns queued tasks into page, entity and relation records.
// One instance owns its in-flight set and summarizer session.
type Orchestrator struct {
	store      *db.DB
	queue      *queue.Queue
	pub        bus.Publisher
	summarizer *summarize.Summarizer
	extractor  entity.Extractor
	resolver   *entity.Resolver
	config     Config
	log        *logger.Logger

	// OnStage, when set, is called as a task enters each stage.
	OnStage func(taskID string, stage Stage)

	mu       sync.Mutex
	inFlight map[string]bool
}

func New(store *db.DB, q *queue.Queue, pub bus.Publisher, s *summarize.Summarizer, config Config, log *logger.Logger) *Orchestrator {
	config.applyDefaults()
	if log == nil {
		log = logger.NewNop()
	}
	if s == nil {
		s = summarize.New(nil, summarize.Options{MaxContext: config.MaxContextChars}, log)
	}
	log = log.With("component", "orchestrator")
	return &Orchestrator{
		store:      store,
		queue:      q,
		pub:        pub,
		summarizer: s,
		extractor:  entity.Extractor{TextSlice: config.TextSliceChars, Limit: config.EntityLimit},
		resolver:   entity.NewResolver(store, log),
		config:     config,
		log:        log,
		inFlight:   make(map[string]bool),
	}
}

func (o *Orchestrator) claim(taskID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inFlight[taskID] {
		return false
	}
	o.inFlight[taskID] = true
	return true
}

func (o *Orchestrator) release(taskID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inFlight, taskID)
}

// InFlight reports whether taskID is currently being processed.
func (o *Orchestrator) InFlight(taskID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inFlight[taskID]
}

func (o *Orchestrator) enter(res *Result, stage Stage) {
	res.Stage = stage
	if o.OnStage != nil {
		o.OnStage(res.TaskID, stage)
	}
}

// Process runs one task through summarize, embed, extract, persist and
// similarity-link. A task already in flight is skipped. Once started the
// pipeline runs to completion even if ctx is cancelled.
func (o *Orchestrator) Process(ctx context.Context, task queue.Task) Result {
	res := Result{TaskID: task.TaskID, PageID: task.PageID}
	if task.TaskID == "" || task.PageID == "" {
		res.Status = StatusFailed
		res.Stage = StageFailed
		res.Error = "task id and page id are required"
		return res
	}
	if !o.claim(task.TaskID) {
		res.Status = StatusSkipped
		return res
	}
	defer o.release(task.TaskID)

	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	log := o.log.With("task_id", task.TaskID, "page_id", task.PageID)
	o.enter(&res, StageReceived)

	err := o.run(ctx, task, &res, log)
	res.Duration = time.Since(start)
	if err != nil {
		log.Warn("pipeline task failed", "stage", res.Stage.String(), "error", err)
		res.Status = StatusFailed
		res.Error = err.Error()
		o.enter(&res, StageFailed)
		return res
	}

	res.Status = StatusSuccess
	o.enter(&res, StageComplete)
	if o.queue != nil {
		if err := o.queue.Remove(ctx, task.TaskID); err != nil {
			log.Warn("removing completed task from queue", "error", err)
		}
	}
	o.announce(ctx, task, log)
	log.Info("pipeline task complete",
		"summary_source", res.SummarySource,
		"entities", res.Entities,
		"similar", res.Similar,
		"duration", textutil.FormatDurationShort(res.Duration.Milliseconds()))
	return res
}

func (o *Orchestrator) run(ctx context.Context, task queue.Task, res *Result, log *logger.Logger) error {
	o.enter(res, StageSummarizing)
	summary := o.summarizer.Summarize(ctx, summarize.Input{Title: task.Title, Meta: task.Meta, Text: task.Text})
	res.SummarySource = summary.Source

	o.enter(res, StageEmbedding)
	vector := embedding.Compute(textutil.Prefix(task.Title+"\n"+summary.Summary+"\n"+task.Text, o.config.MaxContextChars))

	o.enter(res, StageExtracting)
	entities := o.resolver.Resolve(ctx, o.extractor.Extract(task.Title, summary.Summary, task.Text))

	o.enter(res, StagePersisting)
	if err := o.persistPage(ctx, task, summary, vector); err != nil {
		return err
	}
	res.Entities = o.persistEntities(ctx, task.PageID, entities, log)

	o.enter(res, StageSimilarityLinking)
	res.Similar = o.linkSimilar(ctx, task.PageID, vector, log)
	return nil
}

func (o *Orchestrator) persistPage(ctx context.Context, task queue.Task, summary summarize.Result, vector []float32) error {
	timestamp := task.Timestamp
	if timestamp == 0 {
		timestamp = o.store.NowMillis()
	}
	metadata := make(map[string]any, len(task.Metadata)+1)
	for k, v := range task.Metadata {
		metadata[k] = v
	}
	metadata[db.MetaSummarySource] = summary.Source

	patch := db.PagePatch{
		ID:          task.PageID,
		Title:       db.Ptr(task.Title),
		Timestamp:   db.Ptr(timestamp),
		Summary:     db.Ptr(summary.Summary),
		Content:     db.Ptr(task.Text),
		ContentHash: db.Ptr(task.ContentHash),
		Embedding:   vector,
		Metadata:    metadata,
	}
	if task.URL != "" {
		patch.URL = db.Ptr(task.URL)
	}
	if _, err := o.store.UpsertPage(ctx, patch); err != nil {
		return fmt.Errorf("persisting page: %w", err)
	}
	return nil
}

// persistEntities replaces the page's outgoing relations with MENTIONS for
// each stored entity plus CO_MENTION for every pair. Returns the number of
// entities stored. Individual failures are logged, not fatal.
func (o *Orchestrator) persistEntities(ctx context.Context, pageID string, entities []entity.Resolved, log *logger.Logger) int {
	if _, err := o.store.DeleteRelationsBySource(ctx, db.KindPage, pageID, ""); err != nil {
		log.Warn("clearing previous relations", "error", err)
	}

	var stored []entity.Resolved
	var mentions []db.Relation
	for _, ent := range entities {
		_, err := o.store.UpsertEntity(ctx, db.EntityPatch{
			ID:       ent.ID,
			Name:     db.Ptr(ent.Name),
			Type:     db.Ptr(ent.Type),
			Aliases:  ent.Aliases,
			Weight:   db.Ptr(ent.Weight),
			Metadata: map[string]any{"source": ent.Source},
		})
		if err != nil {
			log.Warn("upserting entity", "entity", ent.Name, "error", err)
			continue
		}
		stored = append(stored, ent)
		mentions = append(mentions, db.Relation{
			SourceType: db.KindPage,
			SourceID:   pageID,
			TargetType: db.KindEntity,
			TargetID:   ent.ID,
			RelType:    db.RelMentions,
			Weight:     ent.Weight,
			Metadata:   map[string]any{"frequency": ent.Frequency, "source": ent.Source},
		})
	}

	var coMentions []db.Relation
	for i := 0; i < len(stored); i++ {
		for j := i + 1; j < len(stored); j++ {
			a, b := stored[i], stored[j]
			weight := a.Weight
			if b.Weight < weight {
				weight = b.Weight
			}
			coMentions = append(coMentions, db.Relation{
				SourceType: db.KindEntity,
				SourceID:   a.ID,
				TargetType: db.KindEntity,
				TargetID:   b.ID,
				RelType:    db.RelCoMention,
				Weight:     weight,
				Metadata:   map[string]any{"pageId": pageID},
			})
		}
	}

	if err := o.store.BulkUpsertRelations(ctx, mentions); err != nil {
		log.Warn("storing mention relations", "error", err)
	} else if err := o.store.BulkUpsertRelations(ctx, coMentions); err != nil {
		log.Warn("storing co-mention relations", "error", err)
	}
	return len(stored)
}

// linkSimilar recomputes PAGE_SIMILAR edges for pageID against every other
// embedded page. Returns the number of edges written.
func (o *Orchestrator) linkSimilar(ctx context.Context, pageID string, vector []float32, log *logger.Logger) int {
	if vector == nil {
		return 0
	}
	for _, del := range []func(context.Context, string, string, string) (int64, error){
		o.store.DeleteRelationsBySource,
		o.store.DeleteRelationsByTarget,
	} {
		if _, err := del(ctx, db.KindPage, pageID, db.RelPageSimilar); err != nil {
			log.Warn("clearing page similarity relations", "error", err)
			return 0
		}
	}

	candidates, err := o.store.GetPagesWithEmbeddings(ctx)
	if err != nil {
		log.Warn("loading page embeddings", "error", err)
		return 0
	}
	similar := graph.FindSimilar(vector, candidates, pageID, o.config.SimilarityTopN, o.config.SimilarityThreshold)
	if len(similar) == 0 {
		return 0
	}

	rels := make([]db.Relation, 0, len(similar))
	for _, s := range similar {
		rels = append(rels, db.Relation{
			SourceType: db.KindPage,
			SourceID:   pageID,
			TargetType: db.KindPage,
			TargetID:   s.ID,
			RelType:    db.RelPageSimilar,
			Weight:     s.Similarity,
		})
	}
	if err := o.store.BulkUpsertRelations(ctx, rels); err != nil {
		log.Warn("storing page similarity relations", "error", err)
		return 0
	}
	return len(rels)
}

func (o *Orchestrator) announce(ctx context.Context, task queue.Task, log *logger.Logger) {
	if o.pub == nil {
		return
	}
	payload, err := json.Marshal(bus.PageProcessed{PageID: task.PageID, TaskID: task.TaskID})
	if err != nil {
		log.Warn("encoding page-processed event", "error", err)
		return
	}
	d := o.pub.Publish(ctx, bus.TopicPageProcessed, payload)
	if !d.OK() {
		log.Warn("publishing page-processed event", "error", d.Err)
		return
	}
	log.Debug("page-processed event published", "delivery", d.Result.String())
}

// ErrNoTask is returned when a page cannot be turned into a task.
var ErrNoTask = errors.New("page has no content to process")

// TaskFromPage rebuilds a pipeline task from a stored page, for forced reprocessing.
func TaskFromPage(p *db.Page) (queue.Task, error) {
	if p == nil || p.Content == "" {
		return queue.Task{}, ErrNoTask
	}
	hash := p.ContentHash
	if hash == "" {
		hash = db.HashString(p.URL + "|" + p.Content)
	}
	meta, _ := p.Metadata[db.MetaDescription].(string)
	task := queue.NewTask(p.ID, p.URL, p.Title, meta, p.Content, hash, p.Timestamp)
	return task, nil
}
