package notify

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/segmentio/kafka-go"

	"github.com/xenking/kart-commerce/internal/domain/auth"
	"github.com/xenking/kart-commerce/internal/domain/order"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes order events to a topic, keyed by order id.
type Kafka struct {
	writer  messageWriter
	brokers []string
	now     func() time.Time
}

var _ order.Notifier = (*Kafka)(nil)

// NewKafka creates a publisher for topic on brokers.
func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
		brokers: brokers,
		now:     time.Now,
	}
}

// OrderConfirmed publishes the order.confirmed event for o.
func (k *Kafka) OrderConfirmed(ctx context.Context, o *order.Order, customer auth.Identity) error {
	now := k.now()
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encodeOrderConfirmed(e, o, customer, now)

	msg := kafka.Message{
		Key:   []byte(o.ID),
		Value: append([]byte(nil), e.Bytes()...),
		Time:  now.UTC(),
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(EventOrderConfirmed)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "publish %s for order %s", EventOrderConfirmed, o.ID)
	}
	return nil
}

// Ping dials the first reachable broker.
func (k *Kafka) Ping(ctx context.Context) error {
	var lastErr error
	for _, b := range k.brokers {
		conn, err := kafka.DialContext(ctx, "tcp", b)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	if lastErr == nil {
		return errors.New("no kafka brokers configured")
	}
	return errors.Wrap(lastErr, "dial kafka")
}

// Close flushes pending messages and releases the writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}
