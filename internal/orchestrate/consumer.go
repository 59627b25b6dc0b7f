package orchestrate

import (
	"context"
	"fmt"
	"time"

	"memorypal/keeper/internal/bus"
	"memorypal/keeper/internal/logger"
	"memorypal/keeper/internal/queue"
)

// Consumer feeds the orchestrator from the durable queue and from task
// notifications on the bus.
type Consumer struct {
	orch  *Orchestrator
	queue *queue.Queue
	bus   bus.Bus
	log   *logger.Logger

	// OnResult, when set, receives every processed task's result.
	OnResult      func(Result)
	// DrainInterval, when positive, makes Run drain the queue periodically so
	// tasks queued by processes on another bus are picked up.
	DrainInterval time.Duration
}

func NewConsumer(orch *Orchestrator, q *queue.Queue, b bus.Bus, log *logger.Logger) *Consumer {
	if log == nil {
		log = logger.NewNop()
	}
	return &Consumer{orch: orch, queue: q, bus: b, log: log.With("component", "consumer")}
}

func (c *Consumer) handle(ctx context.Context, task queue.Task) Result {
	res := c.orch.Process(ctx, task)
	if c.OnResult != nil {
		c.OnResult(res)
	}
	return res
}

// DrainOnce processes every queued task sequentially and returns their results.
func (c *Consumer) DrainOnce(ctx context.Context) ([]Result, error) {
	tasks, err := c.queue.DrainAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("draining queue: %w", err)
	}
	if len(tasks) > 0 {
		c.log.Info("draining queued tasks", "count", len(tasks))
	}

	results := make([]Result, 0, len(tasks))
	for _, task := range tasks {
		if ctx.Err() != nil {
			// Tasks not yet started go back on the queue.
			if err := c.queue.Enqueue(context.WithoutCancel(ctx), task); err != nil {
				c.log.Warn("requeueing task", "task_id", task.TaskID, "error", err)
			}
			continue
		}
		results = append(results, c.handle(ctx, task))
	}
	return results, nil
}

// Run subscribes for task notifications, drains the backlog, then processes
// notified tasks one at a time until ctx is done. With DrainInterval set it
// also drains the queue on every tick.
func (c *Consumer) Run(ctx context.Context) error {
	notifications, err := c.bus.Subscribe(ctx, bus.TopicTasks)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", bus.TopicTasks, err)
	}
	if _, err := c.DrainOnce(ctx); err != nil {
		return err
	}
	c.log.Info("waiting for tasks")

	var tick <-chan time.Time
	if c.DrainInterval > 0 {
		ticker := time.NewTicker(c.DrainInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			if _, err := c.DrainOnce(ctx); err != nil {
				c.log.Warn("periodic drain", "error", err)
			}
		case payload, ok := <-notifications:
			if !ok {
				return nil
			}
			task, err := queue.Decode(payload)
			if err != nil {
				c.log.Warn("dropping malformed task notification", "error", err)
				continue
			}
			c.handle(ctx, task)
		}
	}
}
