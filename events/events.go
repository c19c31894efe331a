// Package events announces migration outcomes on a message bus.
package events

import (
	"context"
	"time"
)

// Event topics
const (
	TopicCollectionCreated = "mongrato.collection.created"
	TopicCollectionExists  = "mongrato.collection.exists"
	TopicCollectionFailed  = "mongrato.collection.failed"
	TopicCollectionDropped = "mongrato.collection.dropped"
	TopicRunCompleted      = "mongrato.run.completed"
)

// CollectionEvent is published once per applied definition file.
type CollectionEvent struct {
	RunID      string    `json:"run_id"`
	File       string    `json:"file"`
	Collection string    `json:"collection"`
	Namespace  string    `json:"namespace,omitempty"`
	Error      string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
}

// RunCompleted summarises a migrate run.
type RunCompleted struct {
	RunID    string         `json:"run_id"`
	Counts   map[string]int `json:"counts"` // status -> files
	Duration time.Duration  `json:"duration"`
	At       time.Time      `json:"at"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
