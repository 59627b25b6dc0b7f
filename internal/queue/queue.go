// Package queue is the durable FIFO of pending pipeline tasks, stored in the
// knowledge database so producer and consumer processes can come and go.
package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"memorypal/keeper/internal/bus"
	"memorypal/keeper/internal/db"
	"memorypal/keeper/internal/logger"
)

type Queue struct {
	store *db.DB
	log   *logger.Logger
}

func New(store *db.DB, log *logger.Logger) *Queue {
	if log == nil {
		log = logger.NewNop()
	}
	return &Queue{store: store, log: log.With("component", "queue")}
}

// Enqueue appends task, or replaces the payload in place when a task with
// the same id is already pending.
func (q *Queue) Enqueue(ctx context.Context, task Task) error {
	if task.TaskID == "" {
		return errors.New("enqueue: task id is required")
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encoding task %s: %w", task.TaskID, err)
	}
	_, err = q.store.Conn().ExecContext(ctx, `
		INSERT INTO task_queue (task_id, payload, enqueued_at) VALUES (?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET payload=excluded.payload
	`, task.TaskID, string(payload), q.store.NowMillis())
	if err != nil {
		return fmt.Errorf("enqueueing task %s: %w", task.TaskID, err)
	}
	return nil
}

// DrainAll returns every pending task in FIFO order and empties the queue atomically.
func (q *Queue) DrainAll(ctx context.Context) ([]Task, error) {
	tx, err := q.store.Conn().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning drain: %w", err)
	}
	defer tx.Rollback()

	tasks, err := q.list(ctx, tx)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_queue`); err != nil {
		return nil, fmt.Errorf("clearing queue: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing drain: %w", err)
	}
	return tasks, nil
}

// Pending lists queued tasks without removing them.
func (q *Queue) Pending(ctx context.Context) ([]Task, error) {
	return q.list(ctx, q.store.Conn())
}

// Remove deletes a task by id. Absent ids are not an error.
func (q *Queue) Remove(ctx context.Context, taskID string) error {
	if _, err := q.store.Conn().ExecContext(ctx, `DELETE FROM task_queue WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("removing task %s: %w", taskID, err)
	}
	return nil
}

type rowQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (q *Queue) list(ctx context.Context, src rowQuerier) ([]Task, error) {
	rows, err := src.QueryContext(ctx, `SELECT task_id, payload FROM task_queue ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("listing queue: %w", err)
	}
	defer rows.Close()

	tasks := []Task{}
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		var t Task
		if err := json.Unmarshal([]byte(payload), &t); err != nil {
			q.log.Warn("dropping malformed queued task", "task_id", id, "error", err)
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Dispatch announces task on the tasks topic. The task stays queued either
// way; NoReceiver simply means no consumer is running yet.
func Dispatch(ctx context.Context, pub bus.Publisher, task Task) bus.Delivery {
	payload, err := json.Marshal(task)
	if err != nil {
		return bus.Delivery{Result: bus.Failed, Err: fmt.Errorf("encoding task: %w", err)}
	}
	return pub.Publish(ctx, bus.TopicTasks, payload)
}

// Decode parses a task payload received from the bus.
func Decode(payload []byte) (Task, error) {
	var t Task
	if err := json.Unmarshal(payload, &t); err != nil {
		return t, fmt.Errorf("decoding task: %w", err)
	}
	if t.TaskID == "" || t.PageID == "" {
		return t, errors.New("decoding task: missing taskId or pageId")
	}
	return t, nil
}
