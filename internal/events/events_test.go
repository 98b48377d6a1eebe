package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registrar/pkg/requestcontext"
)

func TestPublisherAppendsInOrder(t *testing.T) {
	ctx := context.Background()
	sink := NewInMemoryStore()
	publisher := NewPublisher(sink)

	require.NoError(t, publisher.Emit(ctx, Event{Type: TypeNameRegistered, Name: "alice", Owner: "a"}))
	require.NoError(t, publisher.Emit(ctx, Event{Type: TypeFeeUpdated, Fee: 250}))

	emitted, err := sink.List(ctx)
	require.NoError(t, err)
	require.Len(t, emitted, 2)
	assert.Equal(t, TypeNameRegistered, emitted[0].Type)
	assert.Equal(t, "alice", emitted[0].Name)
	assert.Equal(t, TypeFeeUpdated, emitted[1].Type)
	assert.Equal(t, int64(250), emitted[1].Fee)
}

func TestPublisherStampsMissingTimestamp(t *testing.T) {
	ctx := context.Background()
	sink := NewInMemoryStore()
	publisher := NewPublisher(sink)

	require.NoError(t, publisher.Emit(ctx, Event{Type: TypeNameRegistered, Name: "alice"}))

	emitted, err := sink.List(ctx)
	require.NoError(t, err)
	require.Len(t, emitted, 1)
	assert.False(t, emitted[0].Timestamp.IsZero())
}

func TestPublisherKeepsExplicitTimestamp(t *testing.T) {
	ctx := context.Background()
	sink := NewInMemoryStore()
	publisher := NewPublisher(sink)

	at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	require.NoError(t, publisher.Emit(ctx, Event{Timestamp: at, Type: TypeFeeUpdated, Fee: 1}))

	emitted, err := sink.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, at, emitted[0].Timestamp)
}

func TestAsyncPublisherDeliversThroughWorker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := NewInMemoryStore()
	inbox := make(chan Event, 8)
	worker := NewWorker(sink, inbox)

	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	publisher := NewAsyncPublisher(inbox)
	emitCtx := requestcontext.WithTime(context.Background(), at)
	require.NoError(t, publisher.Emit(emitCtx, Event{Type: TypeNameRegistered, Name: "alice"}))

	require.Eventually(t, func() bool {
		emitted, err := sink.List(ctx)
		return err == nil && len(emitted) == 1
	}, time.Second, 10*time.Millisecond)

	emitted, err := sink.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", emitted[0].Name)
	// The request-pinned clock stamps the event, not wall time at delivery.
	assert.Equal(t, at, emitted[0].Timestamp)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestAsyncPublisherHonorsContextCancellation(t *testing.T) {
	inbox := make(chan Event) // unbuffered, no consumer
	publisher := NewAsyncPublisher(inbox)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := publisher.Emit(ctx, Event{Type: TypeFeeUpdated, Fee: 1})
	require.ErrorIs(t, err, context.Canceled)
}
