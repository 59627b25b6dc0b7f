// Package bus carries fire-and-forget notifications between the capture
// producer and the pipeline consumer.
package bus

import "context"

// Topics.
const (
	TopicTasks         = "tasks"
	TopicPageProcessed = "page-processed"
)

// Result classifies a publish attempt.
type Result int

const (
	Delivered Result = iota
	NoReceiver
	Failed
)

func (r Result) String() string {
	switch r {
	case Delivered:
		return "delivered"
	case NoReceiver:
		return "no-receiver"
	default:
		return "failed"
	}
}

// Delivery is the outcome of Publish. NoReceiver is not an error: the
// consumer drains the durable queue when it starts.
type Delivery struct {
	Result    Result
	Receivers int
	Err       error
}

// OK reports whether the publish succeeded, with or without a receiver.
func (d Delivery) OK() bool {
	return d.Result != Failed
}

// PageProcessed is the payload published on TopicPageProcessed.
type PageProcessed struct {
	PageID string `json:"pageId"`
	TaskID string `json:"taskId,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) Delivery
}

type Bus interface {
	Publisher
	// Subscribe returns a channel of payloads that is closed when ctx is done
	// or the bus is closed.
	Subscribe(ctx context.Context, topic string) (<-chan []byte, error)
	Close() error
}
