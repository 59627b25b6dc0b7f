package queue

import (
	"memorypal/keeper/internal/db"
)

// Task is a unit of pipeline work for one captured page version.
type Task struct {
	TaskID      string         `json:"taskId"`
	PageID      string         `json:"pageId"`
	URL         string         `json:"url"`
	Title       string         `json:"title"`
	Text        string         `json:"text"`
	Meta        string         `json:"meta"`
	ContentHash string         `json:"contentHash"`
	Timestamp   int64          `json:"timestamp"` // Unix millis
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// TaskID derives the task id from the page id and content hash, so
// re-capturing unchanged content yields the same task.
func TaskID(pageID, contentHash string) string {
	return db.HashString(pageID + "|" + contentHash)
}

// NewTask builds a task and assigns its id.
func NewTask(pageID, url, title, meta, text, contentHash string, timestamp int64) Task {
	return Task{
		TaskID:      TaskID(pageID, contentHash),
		PageID:      pageID,
		URL:         url,
		Title:       title,
		Text:        text,
		Meta:        meta,
		ContentHash: contentHash,
		Timestamp:   timestamp,
	}
}
