package shared

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

type RMQueue struct {
	Connection *amqp.Connection
	Channel    *amqp.Channel
	Queue      amqp.Queue
}

func NewRMQueue(Url string, QueueName string) (*RMQueue, error) {
	q := &RMQueue{}
	var err error
	q.Connection, err = amqp.Dial(Url)
	if err != nil {
		return q, err
	}
	q.Channel, err = q.Connection.Channel()
	if err != nil {
		q.Connection.Close()
		return q, err
	}
	q.Queue, err = q.Channel.QueueDeclare(QueueName, true, false, false, false, nil)
	if err != nil {
		q.Close()
		return q, err
	}
	return q, nil
}

func (q *RMQueue) Close() {
	if q.Channel != nil {
		q.Channel.Close()
	}
	if q.Connection != nil {
		q.Connection.Close()
	}
}

func (q *RMQueue) Publish(ctx context.Context, body []byte) error {
	return q.Channel.PublishWithContext(ctx, "", q.Queue.Name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

func (q *RMQueue) PublishPayment(ctx context.Context, e PaymentRequested) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode payment event: %w", err)
	}
	return q.Publish(ctx, body)
}
