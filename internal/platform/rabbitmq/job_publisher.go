package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"tenantrag/internal/model"
)

var ErrPublishNotConfirmed = errors.New("broker did not confirm publish")

type JobPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewJobPublisher(conn *amqp.Connection, queueName string) *JobPublisher {
	return &JobPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

// Enqueue publishes a persistent job and waits for the broker to confirm it.
// It returns the job id carried as the AMQP message id.
func (p *JobPublisher) Enqueue(ctx context.Context, job model.DocumentJob) (string, error) {
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return "", fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if err := DeclareQueue(ch, p.queueName); err != nil {
		return "", err
	}
	if err := ch.Confirm(false); err != nil {
		return "", fmt.Errorf("enable publisher confirms failed: %w", err)
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal job payload failed: %w", err)
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    job.JobID,
			Timestamp:    job.EnqueuedAt,
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return "", fmt.Errorf("publish job failed: %w", err)
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return "", fmt.Errorf("wait for publish confirm failed: %w", err)
	}
	if !acked {
		return "", ErrPublishNotConfirmed
	}
	return job.JobID, nil
}
