// Package journal stores the trade feed of one engine in a pebble database.
//
// Keys are fixed width ("trade/%020d") so iteration order is trade id order.
// Values are protocol.TradeEvent encoded with the configured serializer.
// Trade ids only move forward: a trade at or below LastTradeID is refused, so an
// engine attached to an existing journal must start after it (match.WithNextTradeID).
package journal

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	match "github.com/0x5487/limit-engine"
	"github.com/0x5487/limit-engine/protocol"
)

const keyPrefix = "trade/"

var (
	lowerBound = []byte(keyPrefix)
	upperBound = []byte("trade/~")
)

// Journal is a durable match.PublishTrader.
type Journal struct {
	db         *pebble.DB
	serializer protocol.Serializer
	writeOpts  *pebble.WriteOptions
	logger     *slog.Logger

	mu          sync.Mutex
	lastTradeID uint64
}

type options struct {
	fs         vfs.FS
	sync       bool
	serializer protocol.Serializer
	logger     *slog.Logger
}

// Option configures a Journal.
type Option func(*options)

// WithFS sets the filesystem pebble writes to. vfs.NewMem() keeps the journal in memory.
func WithFS(fs vfs.FS) Option {
	return func(o *options) {
		o.fs = fs
	}
}

// WithSync controls whether every batch is fsynced before PublishTrades returns. Default true.
func WithSync(sync bool) Option {
	return func(o *options) {
		o.sync = sync
	}
}

// WithSerializer sets the value encoding.
func WithSerializer(s protocol.Serializer) Option {
	return func(o *options) {
		if s != nil {
			o.serializer = s
		}
	}
}

// WithLogger sets the logger used for write failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Open opens (or creates) the journal at dir.
func Open(dir string, opts ...Option) (*Journal, error) {
	o := options{
		sync:       true,
		serializer: protocol.DefaultJSONSerializer{},
		logger:     match.Logger(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	pebbleOpts := &pebble.Options{}
	if o.fs != nil {
		pebbleOpts.FS = o.fs
	}

	db, err := pebble.Open(dir, pebbleOpts)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", dir, err)
	}

	writeOpts := pebble.NoSync
	if o.sync {
		writeOpts = pebble.Sync
	}

	j := &Journal{
		db:         db,
		serializer: o.serializer,
		writeOpts:  writeOpts,
		logger:     o.logger,
	}

	last, err := j.scanLastTradeID()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	j.lastTradeID = last

	return j, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// PublishTrades writes the trades in one atomic batch.
// Failures are logged; the matching path never blocks on a retry.
func (j *Journal) PublishTrades(trades ...*match.Trade) {
	if err := j.Append(trades...); err != nil {
		j.logger.Error("journal: append trades failed",
			"error", err,
			"engine_id", trades[0].EngineID,
			"count", len(trades),
		)
	}
}

// Append writes the trades in one atomic batch and returns any error.
// Trade ids must be strictly increasing and greater than LastTradeID; otherwise
// nothing is written and the error wraps match.ErrTradeIDReused.
func (j *Journal) Append(trades ...*match.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	last := j.lastTradeID
	for _, t := range trades {
		if t.ID <= last {
			return fmt.Errorf("journal: trade %d, last recorded %d: %w", t.ID, last, match.ErrTradeIDReused)
		}
		last = t.ID
	}

	batch := j.db.NewBatch()
	defer batch.Close()

	for _, t := range trades {
		value, err := j.serializer.Marshal(t.Event())
		if err != nil {
			return fmt.Errorf("journal: encode trade %d: %w", t.ID, err)
		}
		if err := batch.Set(keyFor(t.ID), value, nil); err != nil {
			return fmt.Errorf("journal: stage trade %d: %w", t.ID, err)
		}
	}

	if err := batch.Commit(j.writeOpts); err != nil {
		return fmt.Errorf("journal: commit: %w", err)
	}
	j.lastTradeID = last
	return nil
}

// Get returns the trade with the given id, or match.ErrNotFound.
func (j *Journal) Get(tradeID uint64) (protocol.TradeEvent, error) {
	val, closer, err := j.db.Get(keyFor(tradeID))
	if errors.Is(err, pebble.ErrNotFound) {
		return protocol.TradeEvent{}, match.ErrNotFound
	}
	if err != nil {
		return protocol.TradeEvent{}, fmt.Errorf("journal: get trade %d: %w", tradeID, err)
	}
	defer closer.Close()

	var ev protocol.TradeEvent
	if err := j.serializer.Unmarshal(val, &ev); err != nil {
		return protocol.TradeEvent{}, fmt.Errorf("journal: decode trade %d: %w", tradeID, err)
	}
	return ev, nil
}

// Replay calls fn for every stored trade with id >= fromID, in trade id order.
// It stops at the first error returned by fn.
func (j *Journal) Replay(fromID uint64, fn func(ev protocol.TradeEvent) error) error {
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: keyFor(fromID),
		UpperBound: upperBound,
	})
	if err != nil {
		return fmt.Errorf("journal: iterate: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var ev protocol.TradeEvent
		if err := j.serializer.Unmarshal(iter.Value(), &ev); err != nil {
			return fmt.Errorf("journal: decode %s: %w", iter.Key(), err)
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
	return iter.Error()
}

// LastTradeID returns the highest stored trade id, or 0 if the journal is empty.
func (j *Journal) LastTradeID() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastTradeID
}

func (j *Journal) scanLastTradeID() (uint64, error) {
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: lowerBound,
		UpperBound: upperBound,
	})
	if err != nil {
		return 0, fmt.Errorf("journal: iterate: %w", err)
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, iter.Error()
	}
	return parseKey(iter.Key())
}

func keyFor(tradeID uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", keyPrefix, tradeID))
}

func parseKey(b []byte) (uint64, error) {
	if len(b) <= len(keyPrefix) {
		return 0, fmt.Errorf("journal: malformed key %q", b)
	}
	id, err := strconv.ParseUint(string(b[len(keyPrefix):]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("journal: malformed key %q: %w", b, err)
	}
	return id, nil
}
