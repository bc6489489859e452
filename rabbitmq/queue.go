// Package rabbitmq consumes broadcast requests published on an AMQP queue.
package rabbitmq

import (
	"context"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/gracechurch/tidings"
)

var _ tidings.QueueService = (*QueueService)(nil)

type QueueService struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewQueueService(url string) (*QueueService, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to rabbitmq")
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "failed to open channel")
	}

	return &QueueService{
		conn: conn,
		ch:   ch,
	}, nil
}

// Consume declares a durable queue and streams message bodies until ctx is
// done or the broker closes the delivery channel.
func (s *QueueService) Consume(ctx context.Context, queue string) (<-chan []byte, error) {
	q, err := s.ch.QueueDeclare(
		queue,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to declare queue %s", queue)
	}

	deliveries, err := s.ch.Consume(
		q.Name,
		"",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to consume queue %s", queue)
	}

	return forward(ctx, deliveries), nil
}

func forward(ctx context.Context, deliveries <-chan amqp.Delivery) <-chan []byte {
	messages := make(chan []byte)

	go func() {
		defer close(messages)

		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				select {
				case messages <- d.Body:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return messages
}

// Close closes the channel and the connection
func (s *QueueService) Close() error {
	if s.ch != nil {
		if err := s.ch.Close(); err != nil {
			return err
		}
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
