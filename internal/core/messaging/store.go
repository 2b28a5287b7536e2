package messaging

import (
	"context"
	"errors"
	"time"
)

var ErrTopicNotFound = errors.New("topic not found")

// Store defines the interface for record persistence.
type Store interface {
	// Publish appends a record to a topic, creating the topic if it doesn't exist.
	Publish(ctx context.Context, rec Record) error

	// Subscribe returns all records for a topic pattern created after since.
	// Returns ErrTopicNotFound if no topic matches.
	Subscribe(ctx context.Context, pattern string, since time.Time) ([]Record, error)

	// List returns all topic names.
	List(ctx context.Context) ([]string, error)

	// Prune removes records older than the given duration across all topics.
	// Returns the number of records removed.
	Prune(ctx context.Context, olderThan time.Duration) (int, error)
}
