package protocol

// Side represents the order side (Buy/Sell).
type Side int8

const (
	SideBuy  Side = 1
	SideSell Side = 2
)

// String returns the lowercase side name used on the wire and in logs.
func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return "unknown"
	}
}

// Valid reports whether s is one of the known sides.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// TradeEvent is the serialized form of an executed trade handed to external
// collaborators (journal, message queue, audit log).
// Decimals are carried as strings to prevent precision loss in JSON.
type TradeEvent struct {
	EngineID     string `json:"engine_id"`
	Instrument   string `json:"instrument,omitempty"`
	TradeID      uint64 `json:"trade_id"`
	Time         int64  `json:"time"` // Unix nano
	Price        string `json:"price"`
	Quantity     string `json:"quantity"`
	TakerSide    Side   `json:"taker_side"`
	MakerOrderID uint64 `json:"maker_order_id"`
	TakerOrderID uint64 `json:"taker_order_id"`
}

// DepthItem is one aggregated price level.
type DepthItem struct {
	Price string `json:"price"`
	Size  string `json:"size"`
	Count int64  `json:"count"`
}

// GetDepthResponse represents the state of the order book depth.
type GetDepthResponse struct {
	Asks []*DepthItem `json:"asks"`
	Bids []*DepthItem `json:"bids"`
}
