package match

import (
	"context"
	"runtime"
	"sync/atomic"
)

// EventHandler processes events on the ring buffer's consumer goroutine.
type EventHandler[T any] interface {
	OnEvent(event *T)
}

// RingBuffer is a multi-producer single-consumer ring buffer.
// All events are handled, in publish order, by one consumer goroutine.
type RingBuffer[T any] struct {
	// Cache line padding to avoid false sharing
	_                [56]byte
	producerSequence atomic.Int64
	_                [56]byte
	consumerSequence atomic.Int64
	_                [56]byte

	buffer     []T
	bufferMask int64
	capacity   int64

	// published[i] holds the sequence last written into slot i
	published []atomic.Int64

	handler EventHandler[T]

	// inflight counts producers between the shutdown check and the slot store.
	// The consumer does not exit while it is non-zero.
	inflight   atomic.Int64
	isShutdown atomic.Bool
	started    atomic.Bool
	done       chan struct{}
}

// NewRingBuffer creates a ring buffer. capacity must be a power of 2.
func NewRingBuffer[T any](capacity int64, handler EventHandler[T]) *RingBuffer[T] {
	if capacity <= 0 || (capacity&(capacity-1)) != 0 {
		panic("size must be a power of 2")
	}

	rb := &RingBuffer[T]{
		buffer:     make([]T, capacity),
		published:  make([]atomic.Int64, capacity),
		capacity:   capacity,
		bufferMask: capacity - 1,
		handler:    handler,
		done:       make(chan struct{}),
	}

	rb.producerSequence.Store(-1)
	rb.consumerSequence.Store(-1)

	for i := range rb.published {
		rb.published[i].Store(-1)
	}

	return rb
}

// Publish claims a slot, writes the event and makes it visible to the consumer.
// It is safe for concurrent producers. It returns false once Shutdown has been called.
func (rb *RingBuffer[T]) Publish(event T) bool {
	rb.inflight.Add(1)
	defer rb.inflight.Add(-1)

	if rb.isShutdown.Load() {
		return false
	}

	var nextSeq int64
	for {
		currentProducerSeq := rb.producerSequence.Load()
		nextSeq = currentProducerSeq + 1

		// The producer may not lap the consumer.
		wrapPoint := nextSeq - rb.capacity
		if wrapPoint > rb.consumerSequence.Load() {
			runtime.Gosched()
			continue
		}

		if rb.producerSequence.CompareAndSwap(currentProducerSeq, nextSeq) {
			break
		}
		runtime.Gosched()
	}

	index := nextSeq & rb.bufferMask
	rb.buffer[index] = event
	rb.published[index].Store(nextSeq)
	return true
}

// Start runs the consumer loop on a new goroutine.
func (rb *RingBuffer[T]) Start() {
	go rb.Run()
}

// Run runs the consumer loop on the calling goroutine until Shutdown is called
// and every claimed event has been handled.
func (rb *RingBuffer[T]) Run() {
	if !rb.started.CompareAndSwap(false, true) {
		return
	}
	defer close(rb.done)

	nextConsumerSeq := rb.consumerSequence.Load() + 1

	for {
		shutdown := rb.isShutdown.Load()
		availableSeq := rb.producerSequence.Load()

		processed := false
		for nextConsumerSeq <= availableSeq {
			rb.consume(nextConsumerSeq)
			nextConsumerSeq++
			processed = true
		}

		// inflight is read before the producer sequence: a producer that passed the
		// shutdown check has either claimed its slot by now or is still counted.
		if shutdown && !processed && rb.inflight.Load() == 0 && rb.producerSequence.Load() < nextConsumerSeq {
			return
		}

		if !processed {
			runtime.Gosched()
		}
	}
}

// consume waits for the slot of seq to be published and hands it to the handler.
func (rb *RingBuffer[T]) consume(seq int64) {
	index := seq & rb.bufferMask

	for rb.published[index].Load() != seq {
		runtime.Gosched()
	}

	rb.handler.OnEvent(&rb.buffer[index])

	var zero T
	rb.buffer[index] = zero
	rb.consumerSequence.Store(seq)
}

// Shutdown stops accepting events and waits for the consumer to drain the buffer.
// It returns ctx.Err() if the context ends first.
func (rb *RingBuffer[T]) Shutdown(ctx context.Context) error {
	rb.isShutdown.Store(true)

	if !rb.started.Load() {
		return nil
	}

	select {
	case <-rb.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ConsumerSequence returns the last handled sequence.
func (rb *RingBuffer[T]) ConsumerSequence() int64 {
	return rb.consumerSequence.Load()
}

// ProducerSequence returns the last claimed sequence.
func (rb *RingBuffer[T]) ProducerSequence() int64 {
	return rb.producerSequence.Load()
}

// GetPendingEvents returns the number of claimed events not yet handled.
func (rb *RingBuffer[T]) GetPendingEvents() int64 {
	return rb.producerSequence.Load() - rb.consumerSequence.Load()
}
