package match

// SequenceAllocator hands out monotonically increasing numbers.
// Each engine owns its own allocators so independent engines never share counters.
type SequenceAllocator struct {
	next uint64
}

// NewSequenceAllocator returns an allocator whose first value is start.
func NewSequenceAllocator(start uint64) *SequenceAllocator {
	return &SequenceAllocator{next: start}
}

// Next returns the next value and advances the allocator.
func (a *SequenceAllocator) Next() uint64 {
	v := a.next
	a.next++
	return v
}

// Peek returns the value the next call to Next will return.
func (a *SequenceAllocator) Peek() uint64 {
	return a.next
}

// reset moves the allocator so that Next returns v.
func (a *SequenceAllocator) reset(v uint64) {
	a.next = v
}
