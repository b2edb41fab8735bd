package match

import (
	"time"

	"github.com/0x5487/limit-engine/protocol"
	"github.com/shopspring/decimal"
)

type Side = protocol.Side

const (
	Buy  Side = protocol.SideBuy
	Sell Side = protocol.SideSell
)

// Order represents the state of one order.
// Only Quantity changes after creation; it counts down to zero as the order fills.
type Order struct {
	ID        uint64          `json:"id"`
	Side      Side            `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Quantity  decimal.Decimal `json:"quantity"` // Remaining quantity
	Timestamp time.Time       `json:"timestamp"`
	Sequence  uint64          `json:"sequence"` // Arrival order, used for time priority
}

// live reports whether the order can still be matched.
func (o *Order) live() bool {
	return o.Quantity.Sign() > 0
}

// Trade is one execution between a resting maker and an incoming taker.
// Price is always the maker's price.
// EngineID and Instrument identify the engine that executed it.
type Trade struct {
	ID           uint64          `json:"id"`
	EngineID     string          `json:"engine_id"`
	Instrument   string          `json:"instrument,omitempty"`
	Time         time.Time       `json:"time"`
	Price        decimal.Decimal `json:"price"`
	Quantity     decimal.Decimal `json:"quantity"`
	TakerSide    Side            `json:"taker_side"`
	MakerOrderID uint64          `json:"maker_order_id"`
	TakerOrderID uint64          `json:"taker_order_id"`
}

// Amount returns Price * Quantity.
func (t *Trade) Amount() decimal.Decimal {
	return t.Price.Mul(t.Quantity)
}

// Event converts the trade into its wire form.
func (t *Trade) Event() protocol.TradeEvent {
	return protocol.TradeEvent{
		EngineID:     t.EngineID,
		Instrument:   t.Instrument,
		TradeID:      t.ID,
		Time:         t.Time.UnixNano(),
		Price:        t.Price.String(),
		Quantity:     t.Quantity.String(),
		TakerSide:    t.TakerSide,
		MakerOrderID: t.MakerOrderID,
		TakerOrderID: t.TakerOrderID,
	}
}

// Quote is the price and remaining quantity of the best live order on one side.
type Quote struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// DepthItem is one aggregated price level.
type DepthItem struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
	Count int64           `json:"count"`
}

// Depth holds aggregated price levels for both sides, best price first.
type Depth struct {
	Asks []*DepthItem `json:"asks"`
	Bids []*DepthItem `json:"bids"`
}

// Response converts the depth into its wire form.
func (d *Depth) Response() *protocol.GetDepthResponse {
	conv := func(items []*DepthItem) []*protocol.DepthItem {
		out := make([]*protocol.DepthItem, 0, len(items))
		for _, item := range items {
			out = append(out, &protocol.DepthItem{
				Price: item.Price.String(),
				Size:  item.Size.String(),
				Count: item.Count,
			})
		}
		return out
	}
	return &protocol.GetDepthResponse{
		Asks: conv(d.Asks),
		Bids: conv(d.Bids),
	}
}

// BookStats contains statistics about the order book queues.
// Entry counts include tombstones that have not been discarded yet.
type BookStats struct {
	LiveOrders    int `json:"live_orders"`
	AskEntryCount int `json:"ask_entry_count"`
	BidEntryCount int `json:"bid_entry_count"`
	TradeCount    int `json:"trade_count"`
}
