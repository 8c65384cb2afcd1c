package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"example.com/extracurricular/internal/domain"
)

type stubWriter struct {
	mu      sync.Mutex
	batches [][]kafka.Message
	err     error
}

func (s *stubWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]kafka.Message(nil), msgs...))
	return s.err
}

func (s *stubWriter) snapshot() [][]kafka.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]kafka.Message(nil), s.batches...)
}

func change(activity, email string) domain.ParticipantChange {
	return domain.ParticipantChange{
		Kind:             domain.ChangeRegistered,
		Activity:         activity,
		Email:            email,
		ParticipantCount: 3,
		MaxParticipants:  12,
		OccurredAt:       time.Date(2025, time.September, 1, 15, 30, 0, 0, time.UTC),
	}
}

func TestDispatcherDeliversFullBatches(t *testing.T) {
	defer goleak.VerifyNone(t)

	writer := &stubWriter{}
	d := NewDispatcher(writer, DispatcherConfig{BatchSize: 2, FlushInterval: time.Hour}, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	go d.Start(ctx)

	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com", "d@example.com"} {
		require.NoError(t, d.PublishParticipantChanged(ctx, change("Chess Club", email)))
	}

	require.Eventually(t, func() bool { return len(writer.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	d.Wait()

	batches := writer.snapshot()
	require.Len(t, batches, 2)
	require.Len(t, batches[0], 2)
	require.Len(t, batches[1], 2)
}

func TestDispatcherFlushesOnInterval(t *testing.T) {
	defer goleak.VerifyNone(t)

	writer := &stubWriter{}
	d := NewDispatcher(writer, DispatcherConfig{BatchSize: 10, FlushInterval: 10 * time.Millisecond}, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	go d.Start(ctx)

	require.NoError(t, d.PublishParticipantChanged(ctx, change("Art Club", "painter@example.com")))
	require.Eventually(t, func() bool { return len(writer.snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	d.Wait()
}

func TestDispatcherFlushesQueuedEventsOnShutdown(t *testing.T) {
	defer goleak.VerifyNone(t)

	writer := &stubWriter{}
	d := NewDispatcher(writer, DispatcherConfig{BatchSize: 10, FlushInterval: time.Hour}, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		require.NoError(t, d.PublishParticipantChanged(ctx, change("Math Club", email)))
	}

	go d.Start(ctx)
	cancel()
	d.Wait()

	batches := writer.snapshot()
	total := 0
	for _, batch := range batches {
		total += len(batch)
	}
	require.Equal(t, 3, total)
}

func TestDispatcherRejectsWhenQueueFull(t *testing.T) {
	d := NewDispatcher(&stubWriter{}, DispatcherConfig{BufferSize: 1}, zaptest.NewLogger(t))
	before := testutil.ToFloat64(droppedCounter)

	require.NoError(t, d.PublishParticipantChanged(context.Background(), change("Chess Club", "a@example.com")))
	err := d.PublishParticipantChanged(context.Background(), change("Chess Club", "b@example.com"))
	require.ErrorIs(t, err, ErrQueueFull)
	require.Equal(t, before+1, testutil.ToFloat64(droppedCounter))
}

func TestDispatcherCountsFailedDeliveries(t *testing.T) {
	defer goleak.VerifyNone(t)

	writer := &stubWriter{err: errors.New("leader not available")}
	d := NewDispatcher(writer, DispatcherConfig{BatchSize: 1, FlushInterval: time.Hour}, zaptest.NewLogger(t))
	before := testutil.ToFloat64(failedCounter)

	ctx, cancel := context.WithCancel(context.Background())
	go d.Start(ctx)

	require.NoError(t, d.PublishParticipantChanged(ctx, change("Drama Club", "actor@example.com")))
	require.Eventually(t, func() bool { return testutil.ToFloat64(failedCounter) == before+1 }, time.Second, 5*time.Millisecond)

	cancel()
	d.Wait()
}

func TestEncodeMessage(t *testing.T) {
	msg, err := encodeMessage(change("Chess Club", "testuser@example.com"))
	require.NoError(t, err)

	require.Equal(t, "Chess Club", string(msg.Key))
	require.Equal(t, "event_type", msg.Headers[0].Key)
	require.Equal(t, string(domain.ChangeRegistered), string(msg.Headers[0].Value))

	var event ParticipantChanged
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	require.NotEmpty(t, event.EventID)
	require.Equal(t, string(msg.Headers[1].Value), event.EventID)
	require.Equal(t, "testuser@example.com", event.Email)
	require.Equal(t, 3, event.ParticipantCount)
	require.Equal(t, 12, event.MaxParticipants)
}

func TestDispatcherDefaults(t *testing.T) {
	cfg := DispatcherConfig{}.withDefaults()
	require.Equal(t, 256, cfg.BufferSize)
	require.Equal(t, 25, cfg.BatchSize)
	require.Equal(t, 2*time.Second, cfg.FlushInterval)
	require.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
}

func TestDispatcherRejectsPublishAfterStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	writer := &stubWriter{}
	d := NewDispatcher(writer, DispatcherConfig{BatchSize: 10, FlushInterval: time.Hour}, zaptest.NewLogger(t))
	before := testutil.ToFloat64(droppedCounter)

	ctx, cancel := context.WithCancel(context.Background())
	go d.Start(ctx)
	cancel()
	d.Wait()

	err := d.PublishParticipantChanged(context.Background(), change("Chess Club", "late@example.com"))
	require.ErrorIs(t, err, ErrDispatcherStopped)
	require.Equal(t, before+1, testutil.ToFloat64(droppedCounter))
	require.Empty(t, d.queue)
	require.Empty(t, writer.snapshot())
}

// blockingWriter holds the first write open until released and records whether
// the context it was handed had been cancelled by then.
type blockingWriter struct {
	entered  chan struct{}
	release  chan struct{}
	mu       sync.Mutex
	ctxErrs  []error
	messages int
}

func (b *blockingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	b.mu.Lock()
	first := len(b.ctxErrs) == 0
	b.mu.Unlock()
	if first {
		close(b.entered)
		<-b.release
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.ctxErrs = append(b.ctxErrs, ctx.Err())
	b.messages += len(msgs)
	return ctx.Err()
}

func TestDispatcherCompletesInFlightBatchDuringShutdown(t *testing.T) {
	defer goleak.VerifyNone(t)

	writer := &blockingWriter{entered: make(chan struct{}), release: make(chan struct{})}
	d := NewDispatcher(writer, DispatcherConfig{BatchSize: 1, FlushInterval: time.Hour}, zaptest.NewLogger(t))
	failedBefore := testutil.ToFloat64(failedCounter)

	ctx, cancel := context.WithCancel(context.Background())
	go d.Start(ctx)

	require.NoError(t, d.PublishParticipantChanged(ctx, change("Soccer Team", "keeper@example.com")))
	<-writer.entered
	cancel()
	close(writer.release)
	d.Wait()

	require.Equal(t, []error{nil}, writer.ctxErrs)
	require.Equal(t, 1, writer.messages)
	require.Equal(t, failedBefore, testutil.ToFloat64(failedCounter))
}
