package imagegen

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storybook/pkg/queue"
	"storybook/pkg/schema"
)

func TestQueueDeliversResult(t *testing.T) {
	q := New(func(_ context.Context, req *queue.Request) ([]byte, error) {
		return []byte("img:" + req.Prompt), nil
	}, Options{Workers: 2, Capacity: 4})
	q.Start()
	defer q.Stop()

	respCh, errCh, err := q.Add(&queue.Request{Ctx: t.Context(), Prompt: "castle"})
	require.NoError(t, err)

	data, ok := <-respCh
	require.True(t, ok)
	assert.Equal(t, []byte("img:castle"), data)
	assert.NoError(t, <-errCh)
}

func TestQueueDeliversError(t *testing.T) {
	fail := errors.New("upstream down")
	q := New(func(context.Context, *queue.Request) ([]byte, error) {
		return nil, fail
	}, Options{})
	q.Start()
	defer q.Stop()

	respCh, errCh, err := q.Add(&queue.Request{Ctx: t.Context()})
	require.NoError(t, err)

	assert.ErrorIs(t, <-errCh, fail)
	_, ok := <-respCh
	assert.False(t, ok)
}

func TestQueueRejectsWhenFull(t *testing.T) {
	// Not started, so nothing drains the buffer.
	q := New(func(context.Context, *queue.Request) ([]byte, error) { return nil, nil }, Options{Capacity: 1})

	_, _, err := q.Add(&queue.Request{})
	require.NoError(t, err)
	_, _, err = q.Add(&queue.Request{})
	assert.ErrorIs(t, err, schema.ErrBackendUnavailable)
}

func TestQueueSkipsCancelledRequests(t *testing.T) {
	var calls atomic.Int32
	q := New(func(context.Context, *queue.Request) ([]byte, error) {
		calls.Add(1)
		return nil, nil
	}, Options{PerMinute: 60})
	q.Start()
	defer q.Stop()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, errCh, err := q.Add(&queue.Request{Ctx: ctx})
	require.NoError(t, err)
	err = <-errCh
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, schema.ErrBackendUnavailable)
	assert.Zero(t, calls.Load())
}

func TestQueuePacingPastDeadlineIsUnavailable(t *testing.T) {
	var calls atomic.Int32
	q := New(func(context.Context, *queue.Request) ([]byte, error) {
		calls.Add(1)
		return []byte("img"), nil
	}, Options{Workers: 1, PerMinute: 1})
	q.Start()
	defer q.Stop()

	respCh, _, err := q.Add(&queue.Request{Ctx: t.Context()})
	require.NoError(t, err)
	assert.Equal(t, []byte("img"), <-respCh)

	// The next token is a minute away, past this deadline.
	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()
	_, errCh, err := q.Add(&queue.Request{Ctx: ctx})
	require.NoError(t, err)

	err = <-errCh
	assert.ErrorIs(t, err, schema.ErrBackendUnavailable)
	assert.NoError(t, ctx.Err())
	assert.Equal(t, int32(1), calls.Load())
}
