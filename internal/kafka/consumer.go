package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler returns nil only when the message is fully processed and its
// offset may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

// Reader is the subset of *kafka.Reader the consumer needs.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r        Reader
	workers  int
	attempts int
	backoff  time.Duration
	log      *zap.Logger
}

func NewConsumer(brokers []string, group, topic string, workers int, log *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // commit synchronously per message
	})
	return newConsumer(r, workers, log)
}

func newConsumer(r Reader, workers int, log *zap.Logger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{r: r, workers: workers, attempts: 3, backoff: 200 * time.Millisecond, log: log}
}

// Start fetches until ctx is cancelled. Messages of one partition always go
// to the same worker so their order is kept. Start returns after every
// worker has exited and the reader is closed.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	jobs := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range jobs {
		jobs[i] = make(chan kafka.Message, 64)
		wg.Add(1)
		go func(in <-chan kafka.Message) {
			defer wg.Done()
			for m := range in {
				c.process(ctx, h, m)
			}
		}(jobs[i])
	}

	err := c.dispatch(ctx, jobs)

	for _, ch := range jobs {
		close(ch)
	}
	wg.Wait()
	if cerr := c.r.Close(); cerr != nil {
		c.log.Warn("kafka reader close", zap.Error(cerr))
	}
	return err
}

func (c *Consumer) dispatch(ctx context.Context, jobs []chan kafka.Message) error {
	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case jobs[m.Partition%len(jobs)] <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

// process retries a failing handler a few times, then gives up on the
// message and commits past it.
func (c *Consumer) process(ctx context.Context, h Handler, m kafka.Message) {
	var err error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if err = h(ctx, m); err == nil {
			break
		}
		c.log.Warn("handler failed",
			zap.String("topic", m.Topic),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		select {
		case <-time.After(c.backoff * time.Duration(attempt)):
		case <-ctx.Done():
			return
		}
	}
	if err != nil {
		c.log.Error("message dropped after retries",
			zap.String("topic", m.Topic),
			zap.Int64("offset", m.Offset),
			zap.Error(err),
		)
	}
	if err := c.r.CommitMessages(ctx, m); err != nil && !errors.Is(err, context.Canceled) {
		c.log.Warn("commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
	}
}
