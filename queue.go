package tidings

import "context"

// QueueService delivers raw messages published on a named queue.
type QueueService interface {
	Consume(ctx context.Context, queue string) (<-chan []byte, error)
}
