package orphans

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/streadway/amqp"
)

// publisher is satisfied by *amqp.Channel.
type publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPReporter publishes each orphan as a persistent JSON message to a
// durable queue through the default exchange.
type AMQPReporter struct {
	mu    sync.Mutex
	ch    publisher
	queue string
	close func() error
}

var dialAMQP = amqp.Dial

// DialAMQP connects to url and declares queue.
func DialAMQP(url, queue string) (*AMQPReporter, error) {
	conn, err := dialAMQP(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp queue declare: %w", err)
	}

	r := newAMQPReporter(ch, queue)
	r.close = func() error {
		_ = ch.Close()
		return conn.Close()
	}
	return r, nil
}

func newAMQPReporter(ch publisher, queue string) *AMQPReporter {
	return &AMQPReporter{ch: ch, queue: queue, close: func() error { return nil }}
}

func (r *AMQPReporter) Report(ctx context.Context, o Orphan) error {
	body, err := json.Marshal(o)
	if err != nil {
		return err
	}

	// amqp channels are not safe for concurrent publishing
	r.mu.Lock()
	defer r.mu.Unlock()

	err = r.ch.Publish("", r.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    o.At,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("amqp publish: %w", err)
	}
	return nil
}

func (r *AMQPReporter) Close() error {
	return r.close()
}
