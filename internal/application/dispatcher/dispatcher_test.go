package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/field-reports/internal/domain/event"
)

type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) errorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

func saved() *event.Event {
	return event.New(event.TypeDraftSaved, "daily", "d1")
}

func TestSubscribe(t *testing.T) {
	t.Run("runs handlers in order", func(t *testing.T) {
		d := NewDispatcher()
		var order []string
		d.Subscribe(event.TypeDraftSaved, "first", func(ctx context.Context, evt *event.Event) error {
			order = append(order, "first")
			return nil
		})
		d.Subscribe(event.TypeDraftSaved, "second", func(ctx context.Context, evt *event.Event) error {
			order = append(order, "second")
			return nil
		})

		require.NoError(t, d.Dispatch(context.Background(), saved()))
		assert.Equal(t, []string{"first", "second"}, order)
	})

	t.Run("other event types are not delivered", func(t *testing.T) {
		d := NewDispatcher()
		called := false
		d.Subscribe(event.TypeDraftDeleted, "deleted", func(ctx context.Context, evt *event.Event) error {
			called = true
			return nil
		})

		require.NoError(t, d.Dispatch(context.Background(), saved()))
		assert.False(t, called)
	})

	t.Run("subscribe all covers every type", func(t *testing.T) {
		d := NewDispatcher()
		var seen []event.Type
		d.SubscribeAll("audit", func(ctx context.Context, evt *event.Event) error {
			seen = append(seen, evt.Type)
			return nil
		})

		for _, typ := range event.Types() {
			require.NoError(t, d.Dispatch(context.Background(), event.New(typ, "daily", "d1")))
		}
		assert.Equal(t, event.Types(), seen)
	})
}

func TestUnsubscribe(t *testing.T) {
	d := NewDispatcher()
	var calls []string
	for _, name := range []string{"keep", "drop"} {
		name := name
		d.Subscribe(event.TypeDraftSaved, name, func(ctx context.Context, evt *event.Event) error {
			calls = append(calls, name)
			return nil
		})
	}

	d.Unsubscribe(event.TypeDraftSaved, "drop")
	require.NoError(t, d.Dispatch(context.Background(), saved()))
	assert.Equal(t, []string{"keep"}, calls)
}

func TestDispatch(t *testing.T) {
	t.Run("stops at the first error", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		boom := errors.New("boom")
		secondCalled := false
		d.Subscribe(event.TypeDraftSaved, "failing", func(ctx context.Context, evt *event.Event) error {
			return boom
		})
		d.Subscribe(event.TypeDraftSaved, "after", func(ctx context.Context, evt *event.Event) error {
			secondCalled = true
			return nil
		})

		err := d.Dispatch(context.Background(), saved())
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "failing")
		assert.False(t, secondCalled)
		assert.Equal(t, 1, logger.errorCount())
	})

	t.Run("recovers from handler panic", func(t *testing.T) {
		d := NewDispatcher()
		d.Subscribe(event.TypeDraftSaved, "panics", func(ctx context.Context, evt *event.Event) error {
			panic("bad handler")
		})

		err := d.Dispatch(context.Background(), saved())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad handler")
	})

	t.Run("closed dispatcher rejects events", func(t *testing.T) {
		d := NewDispatcher()
		require.NoError(t, d.Close())
		assert.ErrorIs(t, d.Dispatch(context.Background(), saved()), ErrClosed)
	})
}

func TestDispatchAsync(t *testing.T) {
	t.Run("close waits for handlers", func(t *testing.T) {
		d := NewDispatcher()
		var count atomic.Int32
		for _, name := range []string{"a", "b", "c"} {
			d.Subscribe(event.TypeReportSubmitted, name, func(ctx context.Context, evt *event.Event) error {
				time.Sleep(10 * time.Millisecond)
				count.Add(1)
				return nil
			})
		}

		d.DispatchAsync(context.Background(), event.New(event.TypeReportSubmitted, "daily", "d1"))
		require.NoError(t, d.Close())
		assert.Equal(t, int32(3), count.Load())
	})

	t.Run("errors and panics are logged", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		d.Subscribe(event.TypeDraftSaved, "errors", func(ctx context.Context, evt *event.Event) error {
			return errors.New("boom")
		})
		d.Subscribe(event.TypeDraftSaved, "panics", func(ctx context.Context, evt *event.Event) error {
			panic("bad handler")
		})

		d.DispatchAsync(context.Background(), saved())
		require.NoError(t, d.Close())
		assert.Equal(t, 2, logger.errorCount())
	})

	t.Run("closed dispatcher drops events", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		called := false
		d.Subscribe(event.TypeDraftSaved, "h", func(ctx context.Context, evt *event.Event) error {
			called = true
			return nil
		})
		require.NoError(t, d.Close())

		d.DispatchAsync(context.Background(), saved())
		assert.False(t, called)
		assert.Equal(t, 1, logger.errorCount())
	})
}

func TestHandlers(t *testing.T) {
	d := NewDispatcher()
	assert.Empty(t, d.Handlers(event.TypeDraftSaved))

	d.Subscribe(event.TypeDraftSaved, "metrics", func(ctx context.Context, evt *event.Event) error { return nil })
	handlers := d.Handlers(event.TypeDraftSaved)
	require.Len(t, handlers, 1)
	assert.Equal(t, "metrics", handlers[0].Name)
	assert.Nil(t, handlers[0].Handler)
}

func TestClose_Twice(t *testing.T) {
	d := NewDispatcher()
	require.NoError(t, d.Close())
	assert.Error(t, d.Close())
}

func TestConcurrentSubscribeAndDispatch(t *testing.T) {
	d := NewDispatcher()
	var count atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			d.Subscribe(event.TypeDraftSaved, "h", func(ctx context.Context, evt *event.Event) error {
				count.Add(1)
				return nil
			})
		}()
		go func() {
			defer wg.Done()
			_ = d.Dispatch(context.Background(), saved())
		}()
	}
	wg.Wait()

	assert.Len(t, d.Handlers(event.TypeDraftSaved), 20)
	require.NoError(t, d.Dispatch(context.Background(), saved()))
	assert.GreaterOrEqual(t, count.Load(), int32(20))
}
