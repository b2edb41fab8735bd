package match

// TradeLog is the append-only record of executed trades, oldest first.
// Entries are stored by value; callers only ever receive copies.
type TradeLog struct {
	trades []Trade
}

// NewTradeLog creates an empty log with room for capacity trades.
func NewTradeLog(capacity int) *TradeLog {
	if capacity < 0 {
		capacity = 0
	}
	return &TradeLog{
		trades: make([]Trade, 0, capacity),
	}
}

// Append adds a trade to the end of the log.
func (l *TradeLog) Append(trade Trade) {
	l.trades = append(l.trades, trade)
}

// Len returns the number of trades recorded.
func (l *TradeLog) Len() int {
	return len(l.trades)
}

// At returns the trade at index i.
func (l *TradeLog) At(i int) (Trade, bool) {
	if i < 0 || i >= len(l.trades) {
		return Trade{}, false
	}
	return l.trades[i], true
}

// Since returns copies of all trades from index i onwards.
func (l *TradeLog) Since(i int) []Trade {
	if i < 0 {
		i = 0
	}
	if i >= len(l.trades) {
		return []Trade{}
	}
	out := make([]Trade, len(l.trades)-i)
	copy(out, l.trades[i:])
	return out
}

// All returns a copy of every trade in the log.
func (l *TradeLog) All() []Trade {
	return l.Since(0)
}
