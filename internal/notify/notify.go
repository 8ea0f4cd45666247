// Package notify publishes identification events after an image has been resolved.
package notify

import (
	"context"
	"time"
)

// PersonLink is one identified person in an event.
type PersonLink struct {
	PersonID   int64   `json:"person_id"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// Event describes the outcome of one ingestion.
type Event struct {
	ImageID   int64        `json:"image_id"`
	Filename  string       `json:"filename"`
	Caption   string       `json:"caption"`
	Tags      []string     `json:"tags"`
	Persons   []PersonLink `json:"persons"`
	Created   []int64      `json:"created_persons"`
	Timestamp time.Time    `json:"timestamp"`
}

// Notifier delivers events to subscribers.
type Notifier interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(ctx context.Context, ev Event) error { return nil }

func (Nop) Close() error { return nil }
