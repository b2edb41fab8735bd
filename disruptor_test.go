package match

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ringEvent struct {
	ID    int64
	Value int64
}

// funcHandler adapts a function to EventHandler.
type funcHandler[T any] struct {
	fn func(*T)
}

func (h *funcHandler[T]) OnEvent(e *T) {
	h.fn(e)
}

func TestRingBuffer_PublishOrder(t *testing.T) {
	var processed []int64
	var mu sync.Mutex

	handler := &funcHandler[ringEvent]{
		fn: func(e *ringEvent) {
			mu.Lock()
			processed = append(processed, e.ID)
			mu.Unlock()
		},
	}

	rb := NewRingBuffer[ringEvent](16, handler)
	rb.Start()

	// more events than slots, so the producer has to wait for the consumer
	for i := int64(1); i <= 40; i++ {
		require.True(t, rb.Publish(ringEvent{ID: i}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, rb.Shutdown(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, processed, 40)
	for i := int64(1); i <= 40; i++ {
		assert.Equal(t, i, processed[i-1])
	}
}

func TestRingBuffer_PublishAfterShutdown(t *testing.T) {
	var count atomic.Int64
	rb := NewRingBuffer[ringEvent](16, &funcHandler[ringEvent]{fn: func(e *ringEvent) { count.Add(1) }})
	rb.Start()

	require.NoError(t, rb.Shutdown(context.Background()))

	assert.False(t, rb.Publish(ringEvent{ID: 1}))
	assert.Equal(t, int64(0), count.Load())
	assert.Equal(t, int64(-1), rb.ProducerSequence())
}

func TestRingBuffer_ShutdownWithoutStart(t *testing.T) {
	rb := NewRingBuffer[ringEvent](16, &funcHandler[ringEvent]{fn: func(e *ringEvent) {}})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.NoError(t, rb.Shutdown(ctx))
}

func TestRingBuffer_SlotIsClearedAfterHandling(t *testing.T) {
	rb := NewRingBuffer[ringEvent](4, &funcHandler[ringEvent]{fn: func(e *ringEvent) {}})
	rb.Start()

	rb.Publish(ringEvent{ID: 7, Value: 70})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, rb.Shutdown(ctx))

	assert.Equal(t, ringEvent{}, rb.buffer[0])
}

func TestRingBuffer_GetPendingEvents(t *testing.T) {
	blockCh := make(chan struct{})
	handler := &funcHandler[ringEvent]{
		fn: func(e *ringEvent) {
			<-blockCh
		},
	}

	rb := NewRingBuffer[ringEvent](16, handler)
	rb.Start()

	for i := 0; i < 5; i++ {
		rb.Publish(ringEvent{ID: int64(i)})
	}

	// the first event is held by the handler, the rest are queued behind it
	assert.Eventually(t, func() bool {
		return rb.GetPendingEvents() == 5
	}, time.Second, 5*time.Millisecond)

	close(blockCh)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, rb.Shutdown(ctx))

	assert.Equal(t, int64(0), rb.GetPendingEvents())
}

func TestRingBuffer_SequenceMonitoring(t *testing.T) {
	rb := NewRingBuffer[ringEvent](16, &funcHandler[ringEvent]{fn: func(e *ringEvent) {}})

	assert.Equal(t, int64(-1), rb.ProducerSequence())
	assert.Equal(t, int64(-1), rb.ConsumerSequence())

	rb.Start()
	for i := 0; i < 3; i++ {
		rb.Publish(ringEvent{ID: int64(i)})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, rb.Shutdown(ctx))

	assert.Equal(t, int64(2), rb.ProducerSequence())
	assert.Equal(t, int64(2), rb.ConsumerSequence())
}

func TestRingBuffer_ShutdownTimeout(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	rb := NewRingBuffer[ringEvent](16, &funcHandler[ringEvent]{fn: func(e *ringEvent) { <-release }})
	rb.Start()
	rb.Publish(ringEvent{ID: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := rb.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRingBuffer_ConcurrentPublish(t *testing.T) {
	var count atomic.Int64
	lastByProducer := make(map[int64]int64)

	// the consumer is the only goroutine touching lastByProducer
	handler := &funcHandler[ringEvent]{
		fn: func(e *ringEvent) {
			count.Add(1)
			if last, ok := lastByProducer[e.ID]; ok && e.Value <= last {
				t.Errorf("producer %d: event %d handled after %d", e.ID, e.Value, last)
			}
			lastByProducer[e.ID] = e.Value
		},
	}

	rb := NewRingBuffer[ringEvent](1024, handler)
	rb.Start()

	const numPublishers = 10
	const eventsPerPublisher = 500

	var wg sync.WaitGroup
	wg.Add(numPublishers)
	for i := 0; i < numPublishers; i++ {
		go func(id int64) {
			defer wg.Done()
			for j := int64(0); j < eventsPerPublisher; j++ {
				rb.Publish(ringEvent{ID: id, Value: j})
			}
		}(int64(i))
	}
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, rb.Shutdown(ctx))

	assert.Equal(t, int64(numPublishers*eventsPerPublisher), count.Load())
}

func TestRingBuffer_ShutdownDuringPublish(t *testing.T) {
	for round := 0; round < 50; round++ {
		var handled atomic.Int64
		handler := &funcHandler[ringEvent]{fn: func(e *ringEvent) { handled.Add(1) }}

		rb := NewRingBuffer[ringEvent](8, handler)
		rb.Start()

		const numPublishers = 8
		var accepted atomic.Int64
		var wg sync.WaitGroup
		wg.Add(numPublishers)
		for i := 0; i < numPublishers; i++ {
			go func(id int64) {
				defer wg.Done()
				for j := int64(0); j < 200; j++ {
					if rb.Publish(ringEvent{ID: id, Value: j}) {
						accepted.Add(1)
					}
				}
			}(int64(i))
		}

		time.Sleep(time.Duration(round%5) * 100 * time.Microsecond)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		require.NoError(t, rb.Shutdown(ctx))
		cancel()
		wg.Wait()

		// every accepted event was handled before the consumer exited
		require.Equal(t, accepted.Load(), handled.Load(), "round %d", round)
		assert.Equal(t, rb.ProducerSequence(), rb.ConsumerSequence())
	}
}

func TestRingBuffer_PowerOf2Validation(t *testing.T) {
	handler := &funcHandler[ringEvent]{fn: func(e *ringEvent) {}}

	assert.Panics(t, func() {
		NewRingBuffer[ringEvent](15, handler)
	})
	assert.Panics(t, func() {
		NewRingBuffer[ringEvent](0, handler)
	})
	assert.Panics(t, func() {
		NewRingBuffer[ringEvent](-1, handler)
	})
	assert.NotPanics(t, func() {
		NewRingBuffer[ringEvent](16, handler)
	})
}

func BenchmarkRingBuffer(b *testing.B) {
	rb := NewRingBuffer[ringEvent](1024*1024, &funcHandler[ringEvent]{fn: func(e *ringEvent) {}})
	rb.Start()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		var i int64
		for pb.Next() {
			i++
			rb.Publish(ringEvent{ID: i})
		}
	})
	b.StopTimer()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = rb.Shutdown(ctx)
}

func BenchmarkChannel(b *testing.B) {
	ch := make(chan ringEvent, 1024*1024)
	done := make(chan struct{})
	go func() {
		for range ch {
		}
		close(done)
	}()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		var i int64
		for pb.Next() {
			i++
			ch <- ringEvent{ID: i}
		}
	})
	b.StopTimer()

	close(ch)
	<-done
}
