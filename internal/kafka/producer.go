package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var ErrProducerClosed = errors.New("producer closed")

const writeTimeout = 10 * time.Second

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer buffers messages in an inbox and writes them from one goroutine,
// so publishing never waits on the broker. Each message carries its topic.
type Producer struct {
	w     messageWriter
	inbox chan kafka.Message
	done  chan struct{}
	log   *zap.Logger

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

func NewProducer(brokers []string, buf int, log *zap.Logger) *Producer {
	return newProducer(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}, buf, log)
}

func newProducer(w messageWriter, buf int, log *zap.Logger) *Producer {
	if buf <= 0 {
		buf = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Producer{w: w, inbox: make(chan kafka.Message, buf), done: make(chan struct{}), log: log}
}

// Start runs the write loop until Close has been called and the inbox is
// drained.
func (p *Producer) Start() {
	go func() {
		defer close(p.done)
		for m := range p.inbox {
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			if err := p.w.WriteMessages(ctx, m); err != nil {
				p.log.Warn("kafka write failed",
					zap.String("topic", m.Topic),
					zap.ByteString("key", m.Key),
					zap.Error(err),
				)
			}
			cancel()
		}
		if err := p.w.Close(); err != nil {
			p.log.Warn("kafka writer close", zap.Error(err))
		}
	}()
}

func (p *Producer) Publish(ctx context.Context, topic string, key, value []byte, headers ...kafka.Header) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrProducerClosed
	}
	m := kafka.Message{Topic: topic, Key: key, Value: value, Headers: headers, Time: time.Now()}
	select {
	case p.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting messages; the loop flushes what is buffered. Safe to
// call more than once.
func (p *Producer) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.inbox)
		p.mu.Unlock()
	})
}

// WaitClosed blocks until the buffered messages are flushed or ctx ends.
func (p *Producer) WaitClosed(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
