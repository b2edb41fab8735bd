package match

import (
	"context"
	"log/slog"
	"sync"
)

// PublishTrader receives the trades produced by one AddOrder call, in execution order.
//
// IMPORTANT: the engine calls PublishTrades synchronously on the matching path.
// Implementations that hand trades to another goroutine must copy them first.
type PublishTrader interface {
	PublishTrades(...*Trade)
}

// MemoryPublishTrader stores trades in memory, useful for testing.
type MemoryPublishTrader struct {
	mu     sync.RWMutex
	Trades []*Trade
}

// NewMemoryPublishTrader creates a new MemoryPublishTrader.
func NewMemoryPublishTrader() *MemoryPublishTrader {
	return &MemoryPublishTrader{
		Trades: make([]*Trade, 0),
	}
}

// PublishTrades appends copies of the trades to the in-memory slice.
func (m *MemoryPublishTrader) PublishTrades(trades ...*Trade) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, trade := range trades {
		cpy := new(Trade)
		*cpy = *trade
		m.Trades = append(m.Trades, cpy)
	}
}

// Count returns the number of trades stored.
func (m *MemoryPublishTrader) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Trades)
}

// Get returns the trade at the specified index.
func (m *MemoryPublishTrader) Get(index int) *Trade {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.Trades[index]
}

// DiscardPublishTrader discards all trades, useful for benchmarking.
type DiscardPublishTrader struct {
}

// NewDiscardPublishTrader creates a new DiscardPublishTrader.
func NewDiscardPublishTrader() *DiscardPublishTrader {
	return &DiscardPublishTrader{}
}

// PublishTrades does nothing.
func (p *DiscardPublishTrader) PublishTrades(trades ...*Trade) {

}

// LogPublishTrader writes one log line per executed trade.
type LogPublishTrader struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogPublishTrader logs trades with l at the given level. A nil l uses the package logger.
func NewLogPublishTrader(l *slog.Logger, level slog.Level) *LogPublishTrader {
	return &LogPublishTrader{logger: l, level: level}
}

func (p *LogPublishTrader) PublishTrades(trades ...*Trade) {
	l := p.logger
	if l == nil {
		l = logger
	}
	for _, t := range trades {
		l.Log(context.Background(), p.level, "executed trade",
			slog.Uint64("trade_id", t.ID),
			slog.String("engine_id", t.EngineID),
			slog.String("price", t.Price.String()),
			slog.String("quantity", t.Quantity.String()),
			slog.String("taker_side", t.TakerSide.String()),
			slog.Uint64("maker_order_id", t.MakerOrderID),
			slog.Uint64("taker_order_id", t.TakerOrderID),
			slog.Time("time", t.Time),
		)
	}
}

// MultiPublishTrader forwards trades to several publishers in order.
type MultiPublishTrader struct {
	publishers []PublishTrader
}

// NewMultiPublishTrader creates a fan-out publisher.
func NewMultiPublishTrader(publishers ...PublishTrader) *MultiPublishTrader {
	return &MultiPublishTrader{publishers: publishers}
}

func (p *MultiPublishTrader) PublishTrades(trades ...*Trade) {
	for _, pub := range p.publishers {
		pub.PublishTrades(trades...)
	}
}
