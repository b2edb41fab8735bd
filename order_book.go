package match

import (
	"context"
	"runtime"
	"sync/atomic"

	"github.com/0x5487/limit-engine/protocol"
	"github.com/shopspring/decimal"
)

// inputEvent is the internal wrapper for all events entering the OrderBook consumer.
type inputEvent struct {
	SeqID uint64
	Type  protocol.CommandType

	// Place order fields (in-process path)
	Side     Side
	Price    decimal.Decimal
	Quantity decimal.Decimal

	// Payload is set for commands that arrived serialized (EnqueueCommand).
	Payload []byte

	Limit uint32

	// Resp is optional; fire-and-forget commands leave it nil.
	Resp chan any
}

type bestResult struct {
	quote Quote
	ok    bool
}

type orderBookConfig struct {
	ringCapacity int64
	engineOpts   []Option
	serializer   protocol.Serializer
}

// OrderBookOption configures an OrderBook.
type OrderBookOption func(*orderBookConfig)

// WithRingBufferCapacity sets the command ring size. It must be a power of 2.
func WithRingBufferCapacity(n int64) OrderBookOption {
	return func(c *orderBookConfig) {
		c.ringCapacity = n
	}
}

// WithEngineOptions passes options through to the wrapped Engine.
func WithEngineOptions(opts ...Option) OrderBookOption {
	return func(c *orderBookConfig) {
		c.engineOpts = append(c.engineOpts, opts...)
	}
}

// WithSerializer sets the serializer used to decode EnqueueCommand payloads.
func WithSerializer(s protocol.Serializer) OrderBookOption {
	return func(c *orderBookConfig) {
		if s != nil {
			c.serializer = s
		}
	}
}

// OrderBook serializes every call to an Engine through a single consumer goroutine,
// so it may be shared by many producers.
type OrderBook struct {
	engine       *Engine
	ring         *RingBuffer[inputEvent]
	serializer   protocol.Serializer
	isShutdown   atomic.Bool
	lastCmdSeqID atomic.Uint64 // Last sequence ID of the command
}

// NewOrderBook creates a new order book. Call Start to begin processing.
func NewOrderBook(opts ...OrderBookOption) *OrderBook {
	cfg := orderBookConfig{
		ringCapacity: defaultRingBufferCapacity,
		serializer:   protocol.DefaultJSONSerializer{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	book := &OrderBook{
		engine:     NewEngine(cfg.engineOpts...),
		serializer: cfg.serializer,
	}
	book.ring = NewRingBuffer[inputEvent](cfg.ringCapacity, book)
	return book
}

// Start runs the consumer loop on the calling goroutine.
// Returns nil when Shutdown() is called and all pending commands are drained.
func (book *OrderBook) Start() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	book.ring.Run()
	return nil
}

// Shutdown signals the order book to stop accepting new commands and waits for all pending commands to be processed.
// The method blocks until all commands are drained or the context is cancelled/timed out.
func (book *OrderBook) Shutdown(ctx context.Context) error {
	book.isShutdown.Store(true)
	return book.ring.Shutdown(ctx)
}

// LastCmdSeqID returns the sequence ID of the last processed command.
func (book *OrderBook) LastCmdSeqID() uint64 {
	return book.lastCmdSeqID.Load()
}

// EngineID returns the id of the wrapped engine.
func (book *OrderBook) EngineID() string {
	return book.engine.ID()
}

// EnqueueCommand submits a serialized write command asynchronously.
// Use it to feed the book from a command log; results are only visible through the trade feed.
func (book *OrderBook) EnqueueCommand(cmd *protocol.Command) error {
	if cmd == nil || cmd.Type != protocol.CmdPlaceOrder || len(cmd.Payload) == 0 {
		return ErrInvalidParam
	}
	if book.isShutdown.Load() {
		return ErrShutdown
	}

	if !book.ring.Publish(inputEvent{SeqID: cmd.SeqID, Type: cmd.Type, Payload: cmd.Payload}) {
		return ErrShutdown
	}
	return nil
}

// PlaceOrder submits a limit order and waits for the matching result.
// The returned id is 0 when nothing rests on the book.
func (book *OrderBook) PlaceOrder(ctx context.Context, side Side, price, quantity decimal.Decimal) (uint64, error) {
	res, err := book.request(ctx, inputEvent{
		Type:     protocol.CmdPlaceOrder,
		Side:     side,
		Price:    price,
		Quantity: quantity,
	})
	if err != nil {
		return 0, err
	}
	id, _ := res.(uint64)
	return id, nil
}

// BestBid returns the best live bid.
func (book *OrderBook) BestBid(ctx context.Context) (Quote, bool, error) {
	return book.best(ctx, protocol.CmdBestBid)
}

// BestAsk returns the best live ask.
func (book *OrderBook) BestAsk(ctx context.Context) (Quote, bool, error) {
	return book.best(ctx, protocol.CmdBestAsk)
}

func (book *OrderBook) best(ctx context.Context, typ protocol.CommandType) (Quote, bool, error) {
	res, err := book.request(ctx, inputEvent{Type: typ})
	if err != nil {
		return Quote{}, false, err
	}
	r, _ := res.(bestResult)
	return r.quote, r.ok, nil
}

// Depth returns the current depth of the order book up to the specified limit.
func (book *OrderBook) Depth(ctx context.Context, limit uint32) (*Depth, error) {
	if limit == 0 {
		return nil, ErrInvalidParam
	}

	res, err := book.request(ctx, inputEvent{Type: protocol.CmdDepth, Limit: limit})
	if err != nil {
		return nil, err
	}
	depth, _ := res.(*Depth)
	return depth, nil
}

// GetStats returns usage statistics for the order book.
func (book *OrderBook) GetStats(ctx context.Context) (BookStats, error) {
	res, err := book.request(ctx, inputEvent{Type: protocol.CmdGetStats})
	if err != nil {
		return BookStats{}, err
	}
	stats, _ := res.(BookStats)
	return stats, nil
}

// TakeSnapshot captures the current state of the order book.
func (book *OrderBook) TakeSnapshot(ctx context.Context) (*Snapshot, error) {
	res, err := book.request(ctx, inputEvent{Type: protocol.CmdSnapshot})
	if err != nil {
		return nil, err
	}
	snap, _ := res.(*Snapshot)
	return snap, nil
}

// request publishes ev and waits for its response.
func (book *OrderBook) request(ctx context.Context, ev inputEvent) (any, error) {
	if book.isShutdown.Load() {
		return nil, ErrShutdown
	}

	resp := make(chan any, 1)
	ev.Resp = resp
	if !book.ring.Publish(ev) {
		return nil, ErrShutdown
	}

	select {
	case res := <-resp:
		if err, ok := res.(error); ok {
			return nil, err
		}
		return res, nil
	case <-ctx.Done():
		return nil, ErrTimeout
	}
}

// OnEvent handles one command on the consumer goroutine.
func (book *OrderBook) OnEvent(ev *inputEvent) {
	var result any

	switch ev.Type {
	case protocol.CmdPlaceOrder:
		result = book.placeOrder(ev)
	case protocol.CmdBestBid:
		q, ok := book.engine.BestBid()
		result = bestResult{quote: q, ok: ok}
	case protocol.CmdBestAsk:
		q, ok := book.engine.BestAsk()
		result = bestResult{quote: q, ok: ok}
	case protocol.CmdDepth:
		result = book.engine.Depth(ev.Limit)
	case protocol.CmdGetStats:
		result = book.engine.Stats()
	case protocol.CmdSnapshot:
		result = book.engine.Snapshot()
	default:
		logger.Warn("unknown command type", "type", ev.Type, "engine_id", book.engine.ID())
		result = ErrInvalidParam
	}

	if ev.SeqID > 0 {
		book.lastCmdSeqID.Store(ev.SeqID)
	}

	// Non-blocking send, if no one is listening, just drop it
	if ev.Resp != nil {
		select {
		case ev.Resp <- result:
		default:
		}
	}
}

func (book *OrderBook) placeOrder(ev *inputEvent) any {
	if ev.Payload == nil {
		return book.engine.AddOrder(ev.Side, ev.Price, ev.Quantity)
	}

	payload := &protocol.PlaceOrderCommand{}
	if err := book.serializer.Unmarshal(ev.Payload, payload); err != nil {
		logger.Error("failed to unmarshal PlaceOrder command", "error", err, "seq_id", ev.SeqID)
		return ErrInvalidParam
	}

	price, err := decimal.NewFromString(payload.Price)
	if err != nil {
		logger.Error("invalid price in PlaceOrder command", "error", err, "seq_id", ev.SeqID)
		return ErrInvalidParam
	}

	quantity, err := decimal.NewFromString(payload.Quantity)
	if err != nil {
		logger.Error("invalid quantity in PlaceOrder command", "error", err, "seq_id", ev.SeqID)
		return ErrInvalidParam
	}

	return book.engine.AddOrder(payload.Side, price, quantity)
}
