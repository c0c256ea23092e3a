// Package messaging forwards committed ledger events to RabbitMQ.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pharmaledger/backend/internal/infrastructure/config"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Connection owns one AMQP connection and the channel used for publishing.
// A closed channel or connection is reopened on the next use.
type Connection struct {
	url      string
	exchange string
	logger   *zap.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool
}

// Dial connects to the broker and declares the durable topic exchange
func Dial(cfg *config.RabbitMQConfig, logger *zap.Logger) (*Connection, error) {
	if cfg.URL == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	if cfg.Exchange == "" {
		return nil, errors.New("rabbitmq exchange is required")
	}
	c := &Connection{
		url:      cfg.URL,
		exchange: cfg.Exchange,
		logger:   logger.Named("rabbitmq"),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.channelLocked(); err != nil {
		return nil, err
	}
	return c, nil
}

// Exchange returns the exchange events are published to
func (c *Connection) Exchange() string {
	return c.exchange
}

func (c *Connection) channelLocked() (*amqp.Channel, error) {
	if c.closed {
		return nil, errors.New("rabbitmq connection closed")
	}
	if c.channel != nil && !c.channel.IsClosed() {
		return c.channel, nil
	}

	if c.conn == nil || c.conn.IsClosed() {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		c.conn = conn
	}

	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(c.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", c.exchange, err)
	}
	c.channel = ch
	c.logger.Info("Connected to RabbitMQ", zap.String("exchange", c.exchange))
	return ch, nil
}

// PublishWithContext publishes on the shared channel, reopening it if the
// broker closed it.
func (c *Connection) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, err := c.channelLocked()
	if err != nil {
		return err
	}
	return ch.PublishWithContext(ctx, exchange, key, mandatory, immediate, msg)
}

// Healthy reports whether the connection is open
func (c *Connection) Healthy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.conn != nil && !c.conn.IsClosed()
}

// Close closes the channel and the connection
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.channel != nil {
		if err := c.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			c.logger.Warn("Failed to close channel", zap.Error(err))
		}
	}
	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Close(); err != nil {
			return fmt.Errorf("failed to close connection: %w", err)
		}
	}
	return nil
}
