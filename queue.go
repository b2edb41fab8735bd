package match

import (
	"github.com/huandu/skiplist"
	"github.com/shopspring/decimal"
)

// queueKey is a price queue entry. It refers to an order by sequence only.
type queueKey struct {
	price decimal.Decimal
	seq   uint64
}

// PriceQueue orders (price, sequence) tokens for one side of the book.
// Front of the skip list is always the best price, earliest sequence first.
//
// Entries are not removed when their order dies; they become tombstones and
// are discarded the next time they reach the front during PeekBest/PopBest.
type PriceQueue struct {
	side      Side
	list      *skiplist.SkipList
	discarded uint64
}

// NewBidQueue creates a new queue for buy orders (bids).
// The entries are sorted by price in descending order (highest price first).
func NewBidQueue() *PriceQueue {
	return &PriceQueue{
		side: Buy,
		list: skiplist.New(skiplist.GreaterThanFunc(func(lhs, rhs any) int {
			k1, _ := lhs.(queueKey)
			k2, _ := rhs.(queueKey)

			if k1.price.LessThan(k2.price) {
				return 1
			} else if k1.price.GreaterThan(k2.price) {
				return -1
			}

			return compareSeq(k1.seq, k2.seq)
		})),
	}
}

// NewAskQueue creates a new queue for sell orders (asks).
// The entries are sorted by price in ascending order (lowest price first).
func NewAskQueue() *PriceQueue {
	return &PriceQueue{
		side: Sell,
		list: skiplist.New(skiplist.GreaterThanFunc(func(lhs, rhs any) int {
			k1, _ := lhs.(queueKey)
			k2, _ := rhs.(queueKey)

			if k1.price.GreaterThan(k2.price) {
				return 1
			} else if k1.price.LessThan(k2.price) {
				return -1
			}

			return compareSeq(k1.seq, k2.seq)
		})),
	}
}

func compareSeq(a, b uint64) int {
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	default:
		return 0
	}
}

// Side returns the side this queue holds.
func (q *PriceQueue) Side() Side {
	return q.side
}

// Push inserts a token for the order with the given price and sequence.
// Pushing a partially filled order again with its original sequence keeps its time priority.
func (q *PriceQueue) Push(price decimal.Decimal, seq uint64) {
	q.list.Set(queueKey{price: price, seq: seq}, seq)
}

// PeekBest returns the best live order without removing its entry.
// Tombstones found at the front on the way are discarded.
func (q *PriceQueue) PeekBest(reg *OrderRegistry) *Order {
	for {
		el := q.list.Front()
		if el == nil {
			return nil
		}

		key, _ := el.Key().(queueKey)
		if order := reg.resolve(key.seq); order != nil {
			return order
		}

		q.list.RemoveElement(el)
		q.discarded++
	}
}

// PopBest returns the best live order and removes its entry.
// Tombstones found at the front on the way are discarded.
func (q *PriceQueue) PopBest(reg *OrderRegistry) *Order {
	for {
		el := q.list.Front()
		if el == nil {
			return nil
		}

		q.list.RemoveElement(el)
		key, _ := el.Key().(queueKey)
		if order := reg.resolve(key.seq); order != nil {
			return order
		}
		q.discarded++
	}
}

// Len returns the number of physical entries, tombstones included.
func (q *PriceQueue) Len() int {
	return q.list.Len()
}

// Discarded returns how many tombstones have been removed so far.
func (q *PriceQueue) Discarded() uint64 {
	return q.discarded
}

// walk visits live orders in priority order until fn returns false.
// It never removes entries, so read-only views do not disturb the queue.
func (q *PriceQueue) walk(reg *OrderRegistry, fn func(order *Order) bool) {
	for el := q.list.Front(); el != nil; el = el.Next() {
		key, _ := el.Key().(queueKey)
		order := reg.resolve(key.seq)
		if order == nil {
			continue
		}
		if !fn(order) {
			return
		}
	}
}

// depth returns up to limit aggregated price levels, best first.
func (q *PriceQueue) depth(reg *OrderRegistry, limit uint32) []*DepthItem {
	if limit == 0 {
		return []*DepthItem{}
	}

	// capacity is bounded by the entries present, not by limit
	capacity := q.list.Len()
	if uint64(limit) < uint64(capacity) {
		capacity = int(limit)
	}
	result := make([]*DepthItem, 0, capacity)

	var current *DepthItem
	q.walk(reg, func(order *Order) bool {
		if current != nil && current.Price.Equal(order.Price) {
			current.Size = current.Size.Add(order.Quantity)
			current.Count++
			return true
		}

		if uint32(len(result)) == limit {
			return false
		}

		current = &DepthItem{
			Price: order.Price,
			Size:  order.Quantity,
			Count: 1,
		}
		result = append(result, current)
		return true
	})

	return result
}

// toSnapshot returns copies of the live orders in priority order.
func (q *PriceQueue) toSnapshot(reg *OrderRegistry) []Order {
	snapshots := make([]Order, 0, q.list.Len())
	q.walk(reg, func(order *Order) bool {
		snapshots = append(snapshots, *order)
		return true
	})
	return snapshots
}
