package mock

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// QueueService hands out the channel given to Return, so tests control
// what gets consumed and when the stream ends.
type QueueService struct {
	mock.Mock
}

func (m *QueueService) Consume(ctx context.Context, queue string) (<-chan []byte, error) {
	args := m.Called(ctx, queue)
	ch, _ := args.Get(0).(chan []byte)
	return ch, args.Error(1)
}
