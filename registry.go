package match

// OrderRegistry is the authoritative owner of every live order.
// Price queues only hold sequence numbers and must resolve them here before use.
type OrderRegistry struct {
	bySequence map[uint64]*Order
	byID       map[uint64]*Order
}

// NewOrderRegistry creates an empty registry.
func NewOrderRegistry() *OrderRegistry {
	return &OrderRegistry{
		bySequence: make(map[uint64]*Order),
		byID:       make(map[uint64]*Order),
	}
}

// Register inserts the order under both its sequence and its id.
// It returns ErrDuplicateOrder if either key is already present.
func (r *OrderRegistry) Register(order *Order) error {
	if _, ok := r.bySequence[order.Sequence]; ok {
		return ErrDuplicateOrder
	}
	if _, ok := r.byID[order.ID]; ok {
		return ErrDuplicateOrder
	}

	r.bySequence[order.Sequence] = order
	r.byID[order.ID] = order
	return nil
}

// LookupBySequence returns the live order registered under seq.
func (r *OrderRegistry) LookupBySequence(seq uint64) (*Order, bool) {
	order, ok := r.bySequence[seq]
	return order, ok
}

// LookupByID returns the live order registered under id.
func (r *OrderRegistry) LookupByID(id uint64) (*Order, bool) {
	order, ok := r.byID[id]
	return order, ok
}

// Remove deletes the order under both keys. Removing an absent order is a no-op.
func (r *OrderRegistry) Remove(order *Order) {
	delete(r.bySequence, order.Sequence)
	delete(r.byID, order.ID)
}

// Len returns the number of registered orders.
func (r *OrderRegistry) Len() int {
	return len(r.bySequence)
}

// resolve returns the order for seq only if it is still matchable.
func (r *OrderRegistry) resolve(seq uint64) *Order {
	order, ok := r.bySequence[seq]
	if !ok || !order.live() {
		return nil
	}
	return order
}
