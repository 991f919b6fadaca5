package notify

import (
	"context"
	"time"

	"github.com/go-faster/jx"
	"go.uber.org/zap"

	"github.com/xenking/kart-commerce/internal/domain/auth"
	"github.com/xenking/kart-commerce/internal/domain/order"
)

// Log writes order events to a logger. It stands in for Kafka when no
// brokers are configured.
type Log struct {
	lg  *zap.Logger
	now func() time.Time
}

var _ order.Notifier = (*Log)(nil)

// NewLog creates a logging notifier.
func NewLog(lg *zap.Logger) *Log {
	return &Log{lg: lg, now: time.Now}
}

func (l *Log) OrderConfirmed(_ context.Context, o *order.Order, customer auth.Identity) error {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encodeOrderConfirmed(e, o, customer, l.now())

	l.lg.Info("Order confirmed",
		zap.String("order_id", o.ID),
		zap.String("email", customer.Email),
		zap.ByteString("event", e.Bytes()),
	)
	return nil
}
