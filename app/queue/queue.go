// Package queue provides the background work queue used by the
// dispatch flows. Delivery is at-least-once and unordered; jobs may be
// delayed. The in-process implementation is the default, the AMQP one
// serves deployments with external workers.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/streadway/amqp"
)

// Handler processes one job payload
type Handler func(ctx context.Context, payload []byte) error

// Queue dispatches named jobs to registered handlers
type Queue interface {
	// Register binds a handler to a task name. Must be called before
	// any Enqueue for that task.
	Register(task string, handler Handler)
	Enqueue(ctx context.Context, task string, payload []byte, opts ...Option) error
	Close() error
}

type options struct {
	delay time.Duration
}

// Option configures a single enqueue
type Option func(*options)

// WithDelay postpones the job's execution
func WithDelay(d time.Duration) Option {
	return func(o *options) {
		o.delay = d
	}
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// InProcessQueue runs each job on its own goroutine. Delays are
// cooperative sleeps; a sleeping job is lost on process exit, which is
// acceptable because queued placeholders are re-dispatched on retry.
type InProcessQueue struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *log.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewInProcessQueue(logger *log.Logger) *InProcessQueue {
	ctx, cancel := context.WithCancel(context.Background())
	return &InProcessQueue{
		handlers: make(map[string]Handler),
		logger:   logger,
		baseCtx:  ctx,
		cancel:   cancel,
	}
}

func (q *InProcessQueue) Register(task string, handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[task] = handler
}

func (q *InProcessQueue) Enqueue(ctx context.Context, task string, payload []byte, opts ...Option) error {
	q.mu.RLock()
	handler, ok := q.handlers[task]
	q.mu.RUnlock()
	if !ok {
		return fmt.Errorf("queue: no handler registered for task %q", task)
	}

	o := applyOptions(opts)

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()

		if o.delay > 0 {
			timer := time.NewTimer(o.delay)
			select {
			case <-timer.C:
			case <-q.baseCtx.Done():
				timer.Stop()
				return
			}
		}

		if err := handler(q.baseCtx, payload); err != nil && q.logger != nil {
			q.logger.Printf("queue: task %s failed: %v", task, err)
		}
	}()
	return nil
}

// Close stops accepting delayed jobs and waits for running ones
func (q *InProcessQueue) Close() error {
	q.cancel()
	q.wg.Wait()
	return nil
}

// amqpEnvelope is the wire format of an AMQP-queued job
type amqpEnvelope struct {
	Task    string          `json:"task"`
	Payload json.RawMessage `json:"payload"`
	RunAt   time.Time       `json:"run_at,omitempty"`
}

// AMQPQueue publishes jobs to a broker queue and consumes them on
// Start. Delays are honored by the consumer sleeping until RunAt.
type AMQPQueue struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	queueName string
	logger    *log.Logger

	mu       sync.RWMutex
	handlers map[string]Handler

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewAMQPQueue(url, queueName string, logger *log.Logger) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("queue: failed to connect to broker: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("queue: failed to open channel: %w", err)
	}
	_, err = channel.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("queue: failed to declare queue: %w", err)
	}
	return &AMQPQueue{
		conn:      conn,
		channel:   channel,
		queueName: queueName,
		logger:    logger,
		handlers:  make(map[string]Handler),
	}, nil
}

func (q *AMQPQueue) Register(task string, handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[task] = handler
}

func (q *AMQPQueue) Enqueue(ctx context.Context, task string, payload []byte, opts ...Option) error {
	o := applyOptions(opts)
	env := amqpEnvelope{Task: task, Payload: payload}
	if o.delay > 0 {
		env.RunAt = time.Now().UTC().Add(o.delay)
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal envelope: %w", err)
	}
	return q.channel.Publish("", q.queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// Start consumes the queue until the context is cancelled. Unknown
// tasks and handler failures are requeued once, then dropped with a
// log line.
func (q *AMQPQueue) Start(ctx context.Context) error {
	deliveries, err := q.channel.Consume(q.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue: failed to start consumer: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				q.handleDelivery(runCtx, d)
			}
		}
	}()
	return nil
}

func (q *AMQPQueue) handleDelivery(ctx context.Context, d amqp.Delivery) {
	var env amqpEnvelope
	if err := json.Unmarshal(d.Body, &env); err != nil {
		if q.logger != nil {
			q.logger.Printf("queue: dropping malformed delivery: %v", err)
		}
		d.Nack(false, false)
		return
	}

	if !env.RunAt.IsZero() {
		if wait := time.Until(env.RunAt); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				d.Nack(false, true)
				return
			}
		}
	}

	q.mu.RLock()
	handler, ok := q.handlers[env.Task]
	q.mu.RUnlock()
	if !ok {
		if q.logger != nil {
			q.logger.Printf("queue: no handler for task %q, dropping", env.Task)
		}
		d.Nack(false, false)
		return
	}

	if err := handler(ctx, env.Payload); err != nil {
		if q.logger != nil {
			q.logger.Printf("queue: task %s failed: %v", env.Task, err)
		}
		d.Nack(false, !d.Redelivered)
		return
	}
	d.Ack(false)
}

func (q *AMQPQueue) Close() error {
	if q.cancel != nil {
		q.cancel()
	}
	q.wg.Wait()
	if err := q.channel.Close(); err != nil {
		q.conn.Close()
		return err
	}
	return q.conn.Close()
}
