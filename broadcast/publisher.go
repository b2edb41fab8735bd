// Package broadcast publishes the trade feed of one engine to Kafka.
package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	match "github.com/0x5487/limit-engine"
	"github.com/0x5487/limit-engine/protocol"
)

// messageWriter is the subset of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher is a match.PublishTrader that writes one Kafka message per trade.
// Messages are keyed by the trade's engine id so the trades of one engine keep
// their order within a partition.
type Publisher struct {
	writer       messageWriter
	serializer   protocol.Serializer
	writeTimeout time.Duration
	logger       *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithWriteTimeout bounds how long PublishTrades waits for the brokers. Default 5s.
func WithWriteTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.writeTimeout = d
		}
	}
}

// WithSerializer sets the message value encoding.
func WithSerializer(s protocol.Serializer) Option {
	return func(p *Publisher) {
		if s != nil {
			p.serializer = s
		}
	}
}

// WithLogger sets the logger used for delivery failures.
func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPublisher creates a publisher writing to topic on the given brokers.
func NewPublisher(brokers []string, topic string, opts ...Option) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchTimeout: 10 * time.Millisecond,
	}
	return newPublisher(writer, opts...)
}

func newPublisher(writer messageWriter, opts ...Option) *Publisher {
	p := &Publisher{
		writer:       writer,
		serializer:   protocol.DefaultJSONSerializer{},
		writeTimeout: 5 * time.Second,
		logger:       match.Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PublishTrades sends the trades synchronously. Failures are logged, not retried.
func (p *Publisher) PublishTrades(trades ...*match.Trade) {
	ctx, cancel := context.WithTimeout(context.Background(), p.writeTimeout)
	defer cancel()

	if err := p.Send(ctx, trades...); err != nil {
		p.logger.Error("broadcast: publish trades failed",
			"error", err,
			"engine_id", trades[0].EngineID,
			"count", len(trades),
		)
	}
}

// Send writes the trades and returns the delivery error, if any.
func (p *Publisher) Send(ctx context.Context, trades ...*match.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(trades))
	for _, t := range trades {
		value, err := p.serializer.Marshal(t.Event())
		if err != nil {
			return fmt.Errorf("broadcast: encode trade %d: %w", t.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(t.EngineID),
			Value: value,
			Time:  t.Time,
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("broadcast: write %d messages: %w", len(msgs), err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
