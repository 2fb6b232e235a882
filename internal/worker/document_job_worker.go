package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	"tenantrag/internal/model"
	"tenantrag/internal/pkg/logger"
	"tenantrag/internal/platform/rabbitmq"
)

const (
	defaultMaxJobs    = 2
	defaultJobTimeout = 10 * time.Minute
)

type DocumentProcessor interface {
	Process(ctx context.Context, documentID string) (model.DocumentStatus, error)
}

// DocumentJobWorker consumes ingestion jobs with manual acks. A job whose
// processing failed is acked because the failure is recorded on the
// document; a job whose outcome could not be recorded is requeued; a
// malformed job is dropped.
type DocumentJobWorker struct {
	conn       *amqp.Connection
	processor  DocumentProcessor
	log        *logger.Logger
	queueName  string
	maxJobs    int
	jobTimeout time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}
}

func NewDocumentJobWorker(
	conn *amqp.Connection,
	processor DocumentProcessor,
	log *logger.Logger,
	queueName string,
	maxJobs int,
	jobTimeout time.Duration,
) *DocumentJobWorker {
	if log == nil {
		log = logger.Nop()
	}
	if maxJobs <= 0 {
		maxJobs = defaultMaxJobs
	}
	if jobTimeout <= 0 {
		jobTimeout = defaultJobTimeout
	}
	return &DocumentJobWorker{
		conn:       conn,
		processor:  processor,
		log:        log.With("component", "document_job_worker", "queue", queueName),
		queueName:  queueName,
		maxJobs:    maxJobs,
		jobTimeout: jobTimeout,
		done:       make(chan struct{}),
	}
}

func (w *DocumentJobWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}
	if err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}
	if err := ch.Qos(w.maxJobs, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker prefetch failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer close(w.done)
		defer ch.Close()
		w.consume(workerCtx, deliveries)
	}()

	w.log.Info("document job worker started", "max_jobs", w.maxJobs)
	return nil
}

// consume runs up to maxJobs deliveries at once. Stopping ends intake only;
// jobs already running finish under their own timeout.
func (w *DocumentJobWorker) consume(ctx context.Context, deliveries <-chan amqp.Delivery) {
	var g errgroup.Group
	g.SetLimit(w.maxJobs)
	defer func() { _ = g.Wait() }()

	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				w.log.Warn("delivery channel closed")
				return
			}
			g.Go(func() error {
				w.handle(context.WithoutCancel(ctx), d)
				return nil
			})
		}
	}
}

func (w *DocumentJobWorker) handle(ctx context.Context, d amqp.Delivery) {
	var job model.DocumentJob
	if err := json.Unmarshal(d.Body, &job); err != nil || job.DocumentID == "" {
		w.log.Error("drop malformed job", "message_id", d.MessageId, "error", err)
		_ = d.Nack(false, false)
		return
	}

	log := w.log.With("job_id", job.JobID, "document_id", job.DocumentID)
	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	start := time.Now()
	status, err := w.processor.Process(jobCtx, job.DocumentID)
	if err != nil {
		log.Error("job outcome not recorded, requeueing", "error", err)
		_ = d.Nack(false, true)
		return
	}
	if err := d.Ack(false); err != nil {
		log.Warn("ack job failed", "error", err)
	}
	log.Info("job finished", "status", status, "elapsed", time.Since(start).String())
}

// Done is closed once intake has stopped, either through Close or because
// the broker closed the delivery channel.
func (w *DocumentJobWorker) Done() <-chan struct{} {
	return w.done
}

func (w *DocumentJobWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
