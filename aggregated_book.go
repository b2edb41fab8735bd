package match

import (
	"fmt"

	"github.com/0x5487/limit-engine/protocol"
	"github.com/igrmk/treemap/v2"
	"github.com/shopspring/decimal"
)

// AggregatedBook maintains executed volume per price level, split by taker side.
// It is designed for downstream services that rebuild trade statistics from
// TradeEvents read back from the journal or received from the broadcast feed.
//
// AggregatedBook is not safe for concurrent use.
type AggregatedBook struct {
	lastTradeID uint64 // Last applied TradeID for gap detection and deduplication
	buy         *treemap.TreeMap[decimal.Decimal, *DepthItem]
	sell        *treemap.TreeMap[decimal.Decimal, *DepthItem]
}

// NewAggregatedBook creates an empty AggregatedBook.
func NewAggregatedBook() *AggregatedBook {
	ab := &AggregatedBook{}
	ab.Reset()
	return ab
}

func newPriceLevels() *treemap.TreeMap[decimal.Decimal, *DepthItem] {
	return treemap.NewWithKeyCompare[decimal.Decimal, *DepthItem](func(a, b decimal.Decimal) bool {
		return a.LessThan(b)
	})
}

// LastTradeID returns the id of the last applied trade.
func (ab *AggregatedBook) LastTradeID() uint64 {
	return ab.lastTradeID
}

// Replay applies one trade event. Events at or below LastTradeID are ignored.
// A gap in trade ids returns ErrTradeGap and leaves the book unchanged.
func (ab *AggregatedBook) Replay(ev protocol.TradeEvent) error {
	if ev.TradeID <= ab.lastTradeID {
		return nil
	}
	if ev.TradeID != ab.lastTradeID+1 {
		return fmt.Errorf("expected trade %d, got %d: %w", ab.lastTradeID+1, ev.TradeID, ErrTradeGap)
	}

	price, err := decimal.NewFromString(ev.Price)
	if err != nil {
		return fmt.Errorf("trade %d price %q: %w", ev.TradeID, ev.Price, ErrInvalidParam)
	}
	quantity, err := decimal.NewFromString(ev.Quantity)
	if err != nil {
		return fmt.Errorf("trade %d quantity %q: %w", ev.TradeID, ev.Quantity, ErrInvalidParam)
	}

	levels, err := ab.side(ev.TakerSide)
	if err != nil {
		return fmt.Errorf("trade %d: %w", ev.TradeID, err)
	}

	if item, ok := levels.Get(price); ok {
		item.Size = item.Size.Add(quantity)
		item.Count++
	} else {
		levels.Set(price, &DepthItem{Price: price, Size: quantity, Count: 1})
	}

	ab.lastTradeID = ev.TradeID
	return nil
}

// Volume returns the quantity executed at price by takers on the given side.
func (ab *AggregatedBook) Volume(takerSide Side, price decimal.Decimal) decimal.Decimal {
	levels, err := ab.side(takerSide)
	if err != nil {
		return decimal.Zero
	}
	if item, ok := levels.Get(price); ok {
		return item.Size
	}
	return decimal.Zero
}

// Levels returns copies of the price levels for one taker side, lowest price first.
// Count is the number of trades at that price.
func (ab *AggregatedBook) Levels(takerSide Side) []DepthItem {
	levels, err := ab.side(takerSide)
	if err != nil {
		return nil
	}

	result := make([]DepthItem, 0, levels.Len())
	for it := levels.Iterator(); it.Valid(); it.Next() {
		result = append(result, *it.Value())
	}
	return result
}

// Reset clears the book so it can be rebuilt from the first trade.
func (ab *AggregatedBook) Reset() {
	ab.buy = newPriceLevels()
	ab.sell = newPriceLevels()
	ab.lastTradeID = 0
}

func (ab *AggregatedBook) side(s Side) (*treemap.TreeMap[decimal.Decimal, *DepthItem], error) {
	switch s {
	case Buy:
		return ab.buy, nil
	case Sell:
		return ab.sell, nil
	default:
		return nil, ErrInvalidParam
	}
}
