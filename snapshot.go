package match

import "fmt"

// Snapshot contains the full resting state of one Engine.
// The trade log is not part of a snapshot.
type Snapshot struct {
	SchemaVersion int     `json:"schema_version"`
	EngineVersion string  `json:"engine_version"`
	EngineID      string  `json:"engine_id"`
	Instrument    string  `json:"instrument,omitempty"`
	NextSequence  uint64  `json:"next_sequence"`
	NextOrderID   uint64  `json:"next_order_id"`
	NextTradeID   uint64  `json:"next_trade_id"`
	Bids          []Order `json:"bids"` // Ordered list of bids (best price first)
	Asks          []Order `json:"asks"` // Ordered list of asks (best price first)
}

// Snapshot captures the live orders of both sides in priority order together with
// the engine counters. It does not discard tombstones.
func (e *Engine) Snapshot() *Snapshot {
	return &Snapshot{
		SchemaVersion: SnapshotSchemaVersion,
		EngineVersion: EngineVersion,
		EngineID:      e.ID(),
		Instrument:    e.instrument,
		NextSequence:  e.sequences.Peek(),
		NextOrderID:   e.orderIDs.Peek(),
		NextTradeID:   e.tradeIDs.Peek(),
		Bids:          e.bidQueue.toSnapshot(e.registry),
		Asks:          e.askQueue.toSnapshot(e.registry),
	}
}

// Restore replaces the engine's books and counters with the snapshot contents.
// Orders keep their original sequences, so time priority is identical after restore.
// The trade log is kept, so a snapshot whose NextTradeID is behind the trades already
// logged is rejected. On error the engine is left unchanged.
func (e *Engine) Restore(snap *Snapshot) error {
	if snap == nil {
		return ErrInvalidParam
	}
	if snap.SchemaVersion != SnapshotSchemaVersion {
		return fmt.Errorf("snapshot schema version %d: %w", snap.SchemaVersion, ErrInvalidParam)
	}
	if snap.NextOrderID == 0 || snap.NextTradeID == 0 {
		return fmt.Errorf("snapshot counters start at 1: %w", ErrInvalidParam)
	}
	if e.tradeLog.Len() > 0 && snap.NextTradeID < e.tradeIDs.Peek() {
		return fmt.Errorf("snapshot next trade id %d behind logged trades (next %d): %w",
			snap.NextTradeID, e.tradeIDs.Peek(), ErrInvalidParam)
	}

	registry := NewOrderRegistry()
	bidQueue := NewBidQueue()
	askQueue := NewAskQueue()

	restoreOrders := func(orders []Order, queue *PriceQueue) error {
		for i := range orders {
			o := orders[i]
			if o.Side != queue.Side() || !o.live() {
				return fmt.Errorf("restore order %d: %w", o.ID, ErrInvalidParam)
			}
			if o.Sequence >= snap.NextSequence || o.ID == 0 || o.ID >= snap.NextOrderID {
				return fmt.Errorf("restore order %d: counters behind order: %w", o.ID, ErrInvalidParam)
			}
			if err := registry.Register(&o); err != nil {
				return fmt.Errorf("restore order %d: %w", o.ID, err)
			}
			queue.Push(o.Price, o.Sequence)
		}
		return nil
	}

	if err := restoreOrders(snap.Bids, bidQueue); err != nil {
		return err
	}
	if err := restoreOrders(snap.Asks, askQueue); err != nil {
		return err
	}

	e.registry = registry
	e.bidQueue = bidQueue
	e.askQueue = askQueue
	e.sequences.reset(snap.NextSequence)
	e.orderIDs.reset(snap.NextOrderID)
	e.tradeIDs.reset(snap.NextTradeID)
	if e.instrument == "" {
		e.instrument = snap.Instrument
	}

	logger.Info("engine restored from snapshot",
		"engine_id", e.ID(),
		"source_engine_id", snap.EngineID,
		"bids", len(snap.Bids),
		"asks", len(snap.Asks),
	)
	return nil
}
