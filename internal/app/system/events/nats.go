package events

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSBus publishes over a core NATS connection.
type NATSBus struct {
	nc  *nats.Conn
	log *zap.Logger
}

// ConnectNATS dials url with reconnects enabled and logs connection changes.
func ConnectNATS(url string, log *zap.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("alumnihub"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return nc, nil
}

// NewNATSBus wraps an established connection.
func NewNATSBus(nc *nats.Conn, log *zap.Logger) *NATSBus {
	return &NATSBus{nc: nc, log: log}
}

func (b *NATSBus) Publish(_ context.Context, subject string, v any) error {
	data, err := encode(subject, v)
	if err != nil {
		return err
	}
	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header:  nats.Header{},
	}
	msg.Header.Set("Content-Type", "application/json")
	if err := b.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

func (b *NATSBus) Subscribe(subject string, h Handler) (Subscription, error) {
	sub, err := b.nc.Subscribe(subject, func(m *nats.Msg) {
		h(m.Subject, m.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	return sub, nil
}

// Close drains pending messages before closing the connection.
func (b *NATSBus) Close() {
	if err := b.nc.Drain(); err != nil {
		b.log.Warn("nats drain failed", zap.Error(err))
		b.nc.Close()
	}
}
