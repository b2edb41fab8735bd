package match

import (
	"log/slog"

	"github.com/rs/xid"
	"github.com/shopspring/decimal"
)

// Engine matches limit orders for a single instrument in strict price-time priority.
//
// Engine is not safe for concurrent use. Every call, including BestBid and
// BestAsk (which discard tombstones), must be serialized by the caller.
// OrderBook wraps an Engine with a single-writer goroutine.
type Engine struct {
	id         string
	instrument string
	clock      Clock
	publisher  PublishTrader

	sequences *SequenceAllocator
	orderIDs  *SequenceAllocator
	tradeIDs  *SequenceAllocator

	registry *OrderRegistry
	bidQueue *PriceQueue
	askQueue *PriceQueue
	tradeLog *TradeLog
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for order and trade timestamps.
func WithClock(clock Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithPublishTrader sets the trade feed consumer.
// The default logs every trade with the package logger at info level.
func WithPublishTrader(publisher PublishTrader) Option {
	return func(e *Engine) {
		if publisher != nil {
			e.publisher = publisher
		}
	}
}

// WithInstrument names the instrument this engine trades. It only appears in logs and feed events.
func WithInstrument(instrument string) Option {
	return func(e *Engine) {
		e.instrument = instrument
	}
}

// WithTradeLogCapacity preallocates room for n trades in the trade log.
func WithTradeLogCapacity(n int) Option {
	return func(e *Engine) {
		e.tradeLog = NewTradeLog(n)
	}
}

// WithNextTradeID makes the first trade id n instead of 1, so an engine attached to an
// existing journal continues after its LastTradeID. Zero is ignored.
func WithNextTradeID(n uint64) Option {
	return func(e *Engine) {
		if n > 0 {
			e.tradeIDs.reset(n)
		}
	}
}

// NewEngine creates an engine with empty books.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		id:        xid.New().String(),
		clock:     systemClock{},
		publisher: NewLogPublishTrader(nil, slog.LevelInfo),
		sequences: NewSequenceAllocator(0),
		orderIDs:  NewSequenceAllocator(1),
		tradeIDs:  NewSequenceAllocator(1),
		registry:  NewOrderRegistry(),
		bidQueue:  NewBidQueue(),
		askQueue:  NewAskQueue(),
		tradeLog:  NewTradeLog(defaultTradeLogCapacity),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// ID returns the engine instance id.
func (e *Engine) ID() string {
	return e.id
}

// Instrument returns the configured instrument name.
func (e *Engine) Instrument() string {
	return e.instrument
}

// AddOrder submits a limit order and matches it immediately against the opposite side.
// It returns the id of the order if a remainder rests on the book, or 0 if the order
// was fully executed or rejected. Orders with a non-positive quantity or an unknown
// side are rejected without allocating an id.
func (e *Engine) AddOrder(side Side, price, quantity decimal.Decimal) uint64 {
	if quantity.Sign() <= 0 || !side.Valid() {
		logger.Debug("order rejected",
			slog.String("engine_id", e.ID()),
			slog.Int("side", int(side)),
			slog.String("price", price.String()),
			slog.String("quantity", quantity.String()),
		)
		return 0
	}

	taker := &Order{
		Sequence:  e.sequences.Next(),
		ID:        e.orderIDs.Next(),
		Side:      side,
		Price:     price,
		Quantity:  quantity,
		Timestamp: e.clock.Now(),
	}

	myQueue, targetQueue := e.bidQueue, e.askQueue
	if side == Sell {
		myQueue, targetQueue = e.askQueue, e.bidQueue
	}

	firstTrade := e.tradeLog.Len()

	for taker.live() {
		// Peek first to check if matching is possible
		maker := targetQueue.PeekBest(e.registry)
		if maker == nil {
			break
		}

		// Check price condition before popping
		if !crosses(taker, maker) {
			break
		}

		if popped := targetQueue.PopBest(e.registry); popped != maker {
			panic("match: price queue returned a different order on pop than on peek")
		}

		fill := decimal.Min(taker.Quantity, maker.Quantity)
		e.tradeLog.Append(Trade{
			ID:           e.tradeIDs.Next(),
			EngineID:     e.ID(),
			Instrument:   e.instrument,
			Time:         e.clock.Now(),
			Price:        maker.Price,
			Quantity:     fill,
			TakerSide:    taker.Side,
			MakerOrderID: maker.ID,
			TakerOrderID: taker.ID,
		})

		taker.Quantity = taker.Quantity.Sub(fill)
		maker.Quantity = maker.Quantity.Sub(fill)

		if maker.live() {
			targetQueue.Push(maker.Price, maker.Sequence)
		} else {
			e.registry.Remove(maker)
		}
	}

	e.publish(firstTrade)

	if !taker.live() {
		return 0
	}

	if err := e.registry.Register(taker); err != nil {
		panic("match: register order: " + err.Error())
	}
	myQueue.Push(taker.Price, taker.Sequence)

	return taker.ID
}

// crosses reports whether the taker accepts the maker's price.
func crosses(taker, maker *Order) bool {
	if taker.Side == Buy {
		return maker.Price.LessThanOrEqual(taker.Price)
	}
	return maker.Price.GreaterThanOrEqual(taker.Price)
}

// publish hands the trades appended since index from to the trade feed.
func (e *Engine) publish(from int) {
	if e.tradeLog.Len() == from {
		return
	}

	trades := e.tradeLog.Since(from)
	ptrs := make([]*Trade, len(trades))
	for i := range trades {
		ptrs[i] = &trades[i]
	}
	e.publisher.PublishTrades(ptrs...)
}

// BestBid returns the price and remaining quantity of the best live bid.
func (e *Engine) BestBid() (Quote, bool) {
	return e.best(e.bidQueue)
}

// BestAsk returns the price and remaining quantity of the best live ask.
func (e *Engine) BestAsk() (Quote, bool) {
	return e.best(e.askQueue)
}

func (e *Engine) best(q *PriceQueue) (Quote, bool) {
	order := q.PeekBest(e.registry)
	if order == nil {
		return Quote{}, false
	}
	return Quote{Price: order.Price, Quantity: order.Quantity}, true
}

// Order returns a copy of the resting order with the given id.
// Orders that were fully filled, or never rested, are reported as absent.
func (e *Engine) Order(id uint64) (Order, bool) {
	order, ok := e.registry.LookupByID(id)
	if !ok || !order.live() {
		return Order{}, false
	}
	return *order, true
}

// Trades returns a copy of every trade executed so far, oldest first.
func (e *Engine) Trades() []Trade {
	return e.tradeLog.All()
}

// TradeLog returns the engine's trade log.
func (e *Engine) TradeLog() *TradeLog {
	return e.tradeLog
}

// Depth returns up to limit aggregated price levels per side.
// It does not discard tombstones.
func (e *Engine) Depth(limit uint32) *Depth {
	return &Depth{
		Asks: e.askQueue.depth(e.registry, limit),
		Bids: e.bidQueue.depth(e.registry, limit),
	}
}

// Stats returns usage statistics for the order book.
func (e *Engine) Stats() BookStats {
	return BookStats{
		LiveOrders:    e.registry.Len(),
		AskEntryCount: e.askQueue.Len(),
		BidEntryCount: e.bidQueue.Len(),
		TradeCount:    e.tradeLog.Len(),
	}
}
