package rabbitmq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// New dials the broker and proves it usable by opening a channel. ctx bounds
// the whole handshake.
func New(ctx context.Context, url string) (*amqp.Connection, error) {
	type result struct {
		conn *amqp.Connection
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := amqp.DialConfig(url, amqp.Config{
			Dial:       amqp.DefaultDial(3 * time.Second),
			Properties: amqp.Table{"connection_name": "tenantrag"},
		})
		if err != nil {
			done <- result{err: fmt.Errorf("dial rabbitmq failed: %w", err)}
			return
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			done <- result{err: fmt.Errorf("open rabbitmq channel failed: %w", err)}
			return
		}
		_ = ch.Close()
		done <- result{conn: conn}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-done; r.conn != nil {
				_ = r.conn.Close()
			}
		}()
		return nil, fmt.Errorf("rabbitmq connect aborted: %w", ctx.Err())
	case r := <-done:
		return r.conn, r.err
	}
}

// DeclareQueue declares the durable work queue shared by publisher and
// consumer.
func DeclareQueue(ch *amqp.Channel, name string) error {
	if _, err := ch.QueueDeclare(
		name,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("declare queue %s failed: %w", name, err)
	}
	return nil
}
