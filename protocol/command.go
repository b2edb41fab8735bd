package protocol

// CommandType defines the type of the command (using uint8 for memory alignment and performance)
type CommandType uint8

// Command Type Numbering Strategy:
// - 0-50:  Query Commands (read path, answered on a response channel)
// - 51+:   Trading Commands (write path)
const (
	CmdUnknown  CommandType = 0
	CmdBestBid  CommandType = 1
	CmdBestAsk  CommandType = 2
	CmdDepth    CommandType = 3
	CmdGetStats CommandType = 4
	CmdSnapshot CommandType = 5

	CmdPlaceOrder CommandType = 51
)

// Command is the standard carrier for commands entering an order book.
// It is designed to be efficient for serialization and compatible with Event Sourcing,
// so a recorded command stream can be replayed into a fresh book deterministically.
type Command struct {
	// Version is the protocol version for backward compatibility.
	Version uint8 `json:"version"`

	// SeqID is used for global ordering and deduplication.
	SeqID uint64 `json:"seq_id"`

	// Type identifies the payload type for fast routing.
	Type CommandType `json:"type"`

	// Payload contains the serialized business data (e.g., JSON bytes of PlaceOrderCommand).
	Payload []byte `json:"payload"`

	// Metadata stores non-business context (e.g., Tracing ID, Source IP).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// PlaceOrderCommand is the payload for placing a new limit order.
type PlaceOrderCommand struct {
	Side     Side   `json:"side"`
	Price    string `json:"price"` // Using string to prevent precision loss in JSON
	Quantity string `json:"quantity"`
}
