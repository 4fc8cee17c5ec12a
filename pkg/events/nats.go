// Package events publishes domain events to NATS for downstream notification senders.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-core/internal/models"
	"github.com/noah-isme/academic-core/pkg/config"
)

type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSPublisher writes each event as JSON to "<prefix>.<event type>".
type NATSPublisher struct {
	nc     conn
	prefix string
	logger *zap.Logger
}

// Connect dials NATS. It returns nil, nil when the bus is disabled.
func Connect(cfg config.NATSConfig, logger *zap.Logger) (*NATSPublisher, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(cfg.URL,
		nats.Name("academic-core"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return NewNATSPublisher(nc, cfg.SubjectPrefix, logger), nil
}

// NewNATSPublisher wraps an established connection.
func NewNATSPublisher(nc conn, prefix string, logger *zap.Logger) *NATSPublisher {
	if prefix == "" {
		prefix = "academic"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSPublisher{nc: nc, prefix: prefix, logger: logger}
}

// Name identifies the sink in metrics.
func (p *NATSPublisher) Name() string {
	return "nats"
}

// Subject returns the subject an event type is published on.
func (p *NATSPublisher) Subject(eventType models.EventType) string {
	return p.prefix + "." + string(eventType)
}

// Deliver publishes the event. NATS core publish does not take a context, so
// cancellation is only honoured before the write.
func (p *NATSPublisher) Deliver(ctx context.Context, event models.DomainEvent) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.ID, err)
	}
	subject := p.Subject(event.Type)
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.logger.Debug("event published", zap.String("subject", subject), zap.String("event_id", event.ID))
	return nil
}

// Close drains pending publishes and closes the connection.
func (p *NATSPublisher) Close() error {
	if p == nil || p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}
