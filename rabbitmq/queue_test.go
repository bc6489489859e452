package rabbitmq

import (
	"context"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

func TestForward(t *testing.T) {
	deliveries := make(chan amqp.Delivery, 2)
	deliveries <- amqp.Delivery{Body: []byte("one")}
	deliveries <- amqp.Delivery{Body: []byte("two")}
	close(deliveries)

	var got []string
	for msg := range forward(context.Background(), deliveries) {
		got = append(got, string(msg))
	}
	assert.Equal(t, []string{"one", "two"}, got)
}

func TestForward_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	messages := forward(ctx, make(chan amqp.Delivery))
	cancel()

	select {
	case _, ok := <-messages:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("messages was not closed after cancel")
	}
}

func TestClose_Unopened(t *testing.T) {
	assert.NoError(t, new(QueueService).Close())
}
