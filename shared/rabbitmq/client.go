package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrNotConnected is returned while the connection is down or being re-established
var ErrNotConnected = errors.New("not connected to RabbitMQ")

// Config holds RabbitMQ connection configuration
type Config struct {
	Host               string
	Port               int
	User               string
	Password           string
	VHost              string
	ExchangeName       string
	ExchangeType       string
	ExchangeDurable    bool
	ExchangeAutoDelete bool
	Queues             []string // each queue is bound with its own name as routing key
	QueueDurable       bool
	QueueAutoDelete    bool
	QueueExclusive     bool
	RetryAttempts      int
	RetryInterval      time.Duration
	Heartbeat          time.Duration
	ConnectionTimeout  time.Duration
	PublishRetries     int
	PublishRetryDelay  time.Duration
	PublishBackoffMult float64
}

// Client owns the single process-wide RabbitMQ connection. Publishing goes
// through one confirm-mode channel; every consumer gets its own channel.
// The client redials in the background when the broker drops the connection.
type Client struct {
	config *Config
	logger *slog.Logger

	mu      sync.RWMutex
	conn    *amqp.Connection
	pubChan *amqp.Channel
	pubMu   sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
	watchWG   sync.WaitGroup
}

// NewClient dials RabbitMQ, declares the topology and starts the reconnect watcher
func NewClient(config *Config, logger *slog.Logger) (*Client, error) {
	client := &Client{
		config: config,
		logger: logger,
		done:   make(chan struct{}),
	}

	if err := client.connectWithRetry(); err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ client: %w", err)
	}

	client.watchWG.Add(1)
	go client.watch()

	return client, nil
}

func (c *Client) dsn() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d%s",
		c.config.User,
		c.config.Password,
		c.config.Host,
		c.config.Port,
		c.config.VHost,
	)
}

// connectWithRetry tries RetryAttempts times, sleeping RetryInterval in between
func (c *Client) connectWithRetry() error {
	attempts := c.config.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		c.logger.Info("Connecting to RabbitMQ",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
		)

		if err = c.connect(); err == nil {
			return nil
		}

		c.logger.Error("Failed to connect to RabbitMQ",
			slog.Any("error", err),
			slog.Int("attempt", attempt),
		)

		if attempt < attempts {
			time.Sleep(c.config.RetryInterval)
		}
	}

	return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", attempts, err)
}

// connect performs a single dial, declares the topology and swaps in the new connection
func (c *Client) connect() error {
	amqpConfig := amqp.Config{
		Heartbeat: c.config.Heartbeat,
		Locale:    "en_US",
	}
	if c.config.ConnectionTimeout > 0 {
		amqpConfig.Dial = amqp.DefaultDial(c.config.ConnectionTimeout)
	}

	conn, err := amqp.DialConfig(c.dsn(), amqpConfig)
	if err != nil {
		return fmt.Errorf("failed to dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create channel: %w", err)
	}

	if err := c.setup(ch); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("failed to setup exchange and queues: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.pubChan = ch
	c.mu.Unlock()

	c.logger.Info("RabbitMQ client initialized",
		slog.String("exchange", c.config.ExchangeName),
		slog.Any("queues", c.config.Queues),
	)

	return nil
}

// setup declares the exchange and binds every configured queue to it
func (c *Client) setup(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(
		c.config.ExchangeName,       // name
		c.config.ExchangeType,       // type
		c.config.ExchangeDurable,    // durable
		c.config.ExchangeAutoDelete, // auto-deleted
		false,                       // internal
		false,                       // no-wait
		nil,                         // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	for _, queue := range c.config.Queues {
		_, err = ch.QueueDeclare(
			queue,                    // name
			c.config.QueueDurable,    // durable
			c.config.QueueAutoDelete, // auto-delete
			c.config.QueueExclusive,  // exclusive
			false,                    // no-wait
			nil,                      // arguments
		)
		if err != nil {
			return fmt.Errorf("failed to declare queue %q: %w", queue, err)
		}

		if err = ch.QueueBind(queue, queue, c.config.ExchangeName, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %q: %w", queue, err)
		}
	}

	return nil
}

// watch waits for the connection to drop and redials until Close is called
func (c *Client) watch() {
	defer c.watchWG.Done()

	for {
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()

		if conn == nil {
			return
		}

		closed := conn.NotifyClose(make(chan *amqp.Error, 1))

		select {
		case <-c.done:
			return
		case amqpErr := <-closed:
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("RabbitMQ connection lost, reconnecting",
				slog.Any("error", amqpErr),
			)
		}

		c.mu.Lock()
		c.pubChan = nil
		c.mu.Unlock()

		if !c.reconnect() {
			return
		}
	}
}

// reconnect redials until it succeeds or the client is closed
func (c *Client) reconnect() bool {
	interval := c.config.RetryInterval
	if interval <= 0 {
		interval = time.Second
	}

	for attempt := 1; ; attempt++ {
		select {
		case <-c.done:
			return false
		case <-time.After(interval):
		}

		if err := c.connect(); err != nil {
			c.logger.Error("RabbitMQ reconnect failed",
				slog.Int("attempt", attempt),
				slog.Any("error", err),
			)
			continue
		}

		c.logger.Info("RabbitMQ reconnected", slog.Int("attempt", attempt))
		return true
	}
}

// publishOnce publishes on the confirm channel and waits for the broker ack
func (c *Client) publishOnce(ctx context.Context, routingKey string, msg amqp.Publishing) error {
	c.mu.RLock()
	ch := c.pubChan
	c.mu.RUnlock()

	if ch == nil || ch.IsClosed() {
		return ErrNotConnected
	}

	c.pubMu.Lock()
	confirm, err := ch.PublishWithDeferredConfirmWithContext(
		ctx,
		c.config.ExchangeName, // exchange
		routingKey,            // routing key
		false,                 // mandatory
		false,                 // immediate
		msg,
	)
	c.pubMu.Unlock()
	if err != nil {
		return err
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !acked {
		return errors.New("broker nacked the message")
	}

	return nil
}

// Publish publishes a persistent message with retry and exponential backoff
func (c *Client) Publish(ctx context.Context, routingKey string, msg amqp.Publishing) error {
	maxRetries := c.config.PublishRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	delay := c.config.PublishRetryDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	backoffMult := c.config.PublishBackoffMult
	if backoffMult <= 1 {
		backoffMult = 2.0
	}

	msg.DeliveryMode = amqp.Persistent
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		lastErr = c.publishOnce(ctx, routingKey, msg)
		if lastErr == nil {
			c.logger.Debug("Message published to RabbitMQ",
				slog.String("routing_key", routingKey),
				slog.Int("attempt", attempt+1),
				slog.Int("body_size", len(msg.Body)),
			)
			return nil
		}

		if attempt == maxRetries || ctx.Err() != nil {
			break
		}

		c.logger.Warn("Failed to publish message to RabbitMQ, retrying...",
			slog.String("routing_key", routingKey),
			slog.Int("attempt", attempt+1),
			slog.Duration("retry_after", delay),
			slog.Any("error", lastErr),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("failed to publish message: %w", ctx.Err())
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * backoffMult)
	}

	c.logger.Error("Failed to publish message to RabbitMQ",
		slog.String("routing_key", routingKey),
		slog.Any("error", lastErr),
	)
	return fmt.Errorf("failed to publish message: %w", lastErr)
}

// Subscription is a live consumer on its own channel
type Subscription struct {
	Deliveries <-chan amqp.Delivery
	channel    *amqp.Channel
}

// Close cancels the consumer by closing its channel
func (s *Subscription) Close() error {
	if s.channel == nil || s.channel.IsClosed() {
		return nil
	}
	return s.channel.Close()
}

// Consume opens a dedicated channel with the given prefetch and starts a
// manual-ack consumer on queue
func (c *Client) Consume(queue, consumerTag string, prefetch int) (*Subscription, error) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil || conn.IsClosed() {
		return nil, ErrNotConnected
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open consumer channel: %w", err)
	}

	if err := ch.Qos(prefetch, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := ch.Consume(
		queue,       // queue
		consumerTag, // consumer tag
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to consume messages: %w", err)
	}

	c.logger.Info("Started consuming messages from RabbitMQ",
		slog.String("queue", queue),
		slog.String("consumer_tag", consumerTag),
		slog.Int("prefetch_count", prefetch),
	)

	return &Subscription{Deliveries: deliveries, channel: ch}, nil
}

// IsConnected returns the connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed() && c.pubChan != nil
}

// Close stops the reconnect watcher and closes the connection. Safe to call twice.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.logger.Info("Closing RabbitMQ connection")
		close(c.done)

		c.mu.Lock()
		conn := c.conn
		c.conn = nil
		c.pubChan = nil
		c.mu.Unlock()

		if conn != nil && !conn.IsClosed() {
			if err = conn.Close(); err != nil {
				c.logger.Error("Failed to close RabbitMQ connection",
					slog.Any("error", err),
				)
			}
		}

		c.watchWG.Wait()
		c.logger.Info("RabbitMQ connection closed")
	})
	return err
}
