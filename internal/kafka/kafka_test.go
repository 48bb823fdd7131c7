package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeWriter struct {
	mu     sync.Mutex
	got    []kafka.Message
	fail   bool
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return errors.New("broker down")
	}
	w.got = append(w.got, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestProducerFlushesOnClose(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, 8, nil)
	p.Start()
	ctx := context.Background()

	require.NoError(t, p.Publish(ctx, "order.created", []byte("o-1"), []byte(`{}`)))
	require.NoError(t, p.Publish(ctx, "order.assigned", []byte("o-1"), []byte(`{}`), kafka.Header{Key: "event_type", Value: []byte("OrderAssigned")}))
	p.Close()
	p.Close()

	wctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, p.WaitClosed(wctx))

	w.mu.Lock()
	defer w.mu.Unlock()
	require.Len(t, w.got, 2)
	assert.Equal(t, "order.created", w.got[0].Topic)
	assert.Equal(t, "OrderAssigned", Header(w.got[1].Headers, "event_type"))
	assert.True(t, w.closed)

	assert.ErrorIs(t, p.Publish(ctx, "order.created", nil, nil), ErrProducerClosed)
}

func TestProducerWriteFailureDoesNotStopLoop(t *testing.T) {
	w := &fakeWriter{fail: true}
	p := newProducer(w, 1, nil)
	p.Start()

	require.NoError(t, p.Publish(context.Background(), "t", nil, []byte("a")))
	require.NoError(t, p.Publish(context.Background(), "t", nil, []byte("b")))
	p.Close()
	require.NoError(t, p.WaitClosed(context.Background()))
	assert.True(t, w.closed)
}

func TestProducerPublishRespectsContext(t *testing.T) {
	p := newProducer(&fakeWriter{}, 1, nil)
	// loop not started: the inbox fills after one message
	require.NoError(t, p.Publish(context.Background(), "t", nil, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, "t", nil, nil), context.Canceled)

	p.Close()
	p.Start()
	require.NoError(t, p.WaitClosed(context.Background()))
}

type fakeReader struct {
	in        chan kafka.Message
	mu        sync.Mutex
	committed []int64
	closed    atomic.Bool
	fetchErr  error
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if r.fetchErr != nil {
		return kafka.Message{}, r.fetchErr
	}
	select {
	case m := <-r.in:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.closed.Store(true)
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func TestConsumerCommitsAfterHandlerAndJoinsWorkers(t *testing.T) {
	r := &fakeReader{in: make(chan kafka.Message, 10)}
	c := newConsumer(r, 3, nil)
	c.backoff = time.Millisecond

	for i := 0; i < 6; i++ {
		r.in <- kafka.Message{Partition: i % 2, Offset: int64(i)}
	}

	var handled atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Start(ctx, func(context.Context, kafka.Message) error {
			handled.Add(1)
			return nil
		})
	}()

	require.Eventually(t, func() bool { return len(r.commits()) == 6 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, int32(6), handled.Load())
	assert.True(t, r.closed.Load())
}

func TestConsumerRetriesThenCommitsPast(t *testing.T) {
	r := &fakeReader{in: make(chan kafka.Message, 1)}
	c := newConsumer(r, 1, nil)
	c.backoff = time.Millisecond
	r.in <- kafka.Message{Offset: 7}

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Start(ctx, func(context.Context, kafka.Message) error {
			if calls.Add(1) < 2 {
				return errors.New("transient")
			}
			return nil
		})
	}()

	require.Eventually(t, func() bool { return len(r.commits()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []int64{7}, r.commits())
}

func TestConsumerReturnsFetchError(t *testing.T) {
	r := &fakeReader{fetchErr: errors.New("group coordinator gone")}
	c := newConsumer(r, 2, nil)

	err := c.Start(context.Background(), func(context.Context, kafka.Message) error { return nil })
	assert.EqualError(t, err, "group coordinator gone")
	assert.True(t, r.closed.Load())
}

func TestUnwrapPayload(t *testing.T) {
	type payload struct {
		OrderID string `json:"order_id"`
	}
	var env struct {
		EventType string          `json:"event_type"`
		Payload   json.RawMessage `json:"payload"`
	}
	require.NoError(t, UnmarshalEnvelope([]byte(`{"event_type":"X","payload":{"order_id":"o-1"}}`), &env))
	p, err := UnwrapPayload[payload](env.Payload)
	require.NoError(t, err)
	assert.Equal(t, "o-1", p.OrderID)

	_, err = UnwrapPayload[payload]([]byte(`[`))
	assert.Error(t, err)
}
