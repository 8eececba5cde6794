// Package rabbitmq wraps the broker connection shared by every worker
// process. It declares the job exchange with its named work queues, one
// delayed-retry queue per work queue, and the topic exchange used for
// per-(tenant, channel) delivery notifications.
package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Config holds RabbitMQ connection and topology configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	VHost    string

	JobExchange      string
	NotifyExchange   string
	Queues           []string // named FIFO work queues to declare
	RetryQueueSuffix string   // appended to a work queue name, default ".retry"
	RetryAttempts    int
	RetryInterval    time.Duration
	Heartbeat        time.Duration
}

// Client is a single-connection broker client. One per process.
type Client struct {
	config      *Config
	conn        *amqp.Connection
	channel     *amqp.Channel
	logger      *slog.Logger
	closeChan   chan *amqp.Error
	isConnected bool
}

// NewClient connects, declares the topology, and returns a ready client.
func NewClient(config *Config, logger *slog.Logger) (*Client, error) {
	if config.RetryQueueSuffix == "" {
		config.RetryQueueSuffix = ".retry"
	}
	client := &Client{
		config: config,
		logger: logger,
	}
	if err := client.connect(); err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ client: %w", err)
	}
	return client, nil
}

func (c *Client) connect() error {
	var err error

	dsn := fmt.Sprintf("amqp://%s:%s@%s:%d%s",
		c.config.User,
		c.config.Password,
		c.config.Host,
		c.config.Port,
		c.config.VHost,
	)

	amqpConfig := amqp.Config{
		Heartbeat: c.config.Heartbeat,
		Locale:    "en_US",
	}

	for attempt := 1; attempt <= c.config.RetryAttempts; attempt++ {
		c.logger.Info("Connecting to RabbitMQ",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", c.config.RetryAttempts),
		)

		c.conn, err = amqp.DialConfig(dsn, amqpConfig)
		if err == nil {
			break
		}

		c.logger.Error("Failed to connect to RabbitMQ",
			slog.Any("error", err),
			slog.Int("attempt", attempt),
		)
		if attempt < c.config.RetryAttempts {
			time.Sleep(c.config.RetryInterval)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", c.config.RetryAttempts, err)
	}

	c.channel, err = c.conn.Channel()
	if err != nil {
		c.conn.Close()
		return fmt.Errorf("failed to create channel: %w", err)
	}

	if err := c.setup(); err != nil {
		c.channel.Close()
		c.conn.Close()
		return fmt.Errorf("failed to declare topology: %w", err)
	}

	c.closeChan = make(chan *amqp.Error)
	c.channel.NotifyClose(c.closeChan)
	c.isConnected = true

	c.logger.Info("RabbitMQ client initialized",
		slog.String("job_exchange", c.config.JobExchange),
		slog.String("notify_exchange", c.config.NotifyExchange),
		slog.Int("queues", len(c.config.Queues)),
	)
	return nil
}

// setup declares the job exchange, every work queue with its paired retry
// queue, and the notification topic exchange. Retry queues have no consumer:
// messages published there carry a per-message TTL and dead-letter back onto
// the work queue once it expires, which is how delayed requeue is realized.
func (c *Client) setup() error {
	if err := c.channel.ExchangeDeclare(
		c.config.JobExchange, // name
		"direct",             // type
		true,                 // durable
		false,                // auto-delete
		false,                // internal
		false,                // no-wait
		nil,                  // arguments
	); err != nil {
		return fmt.Errorf("failed to declare job exchange: %w", err)
	}

	for _, queue := range c.config.Queues {
		if _, err := c.channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", queue, err)
		}
		if err := c.channel.QueueBind(queue, queue, c.config.JobExchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %s: %w", queue, err)
		}

		retryQueue := queue + c.config.RetryQueueSuffix
		if _, err := c.channel.QueueDeclare(retryQueue, true, false, false, false, amqp.Table{
			"x-dead-letter-exchange":    c.config.JobExchange,
			"x-dead-letter-routing-key": queue,
		}); err != nil {
			return fmt.Errorf("failed to declare retry queue %s: %w", retryQueue, err)
		}
	}

	if c.config.NotifyExchange != "" {
		if err := c.channel.ExchangeDeclare(
			c.config.NotifyExchange,
			"topic",
			true, false, false, false, nil,
		); err != nil {
			return fmt.Errorf("failed to declare notify exchange: %w", err)
		}
	}

	return nil
}

// Publish pushes a job body onto a named work queue.
func (c *Client) Publish(ctx context.Context, queue string, body []byte) error {
	if !c.isConnected {
		return fmt.Errorf("not connected to RabbitMQ")
	}

	err := c.channel.PublishWithContext(ctx,
		c.config.JobExchange,
		queue, // routing key == queue name
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		c.logger.Error("Failed to publish message",
			slog.String("queue", queue),
			slog.Any("error", err),
		)
		return fmt.Errorf("failed to publish to %s: %w", queue, err)
	}

	c.logger.Debug("Message published",
		slog.String("queue", queue),
		slog.Int("body_size", len(body)),
	)
	return nil
}

// PublishDelayed parks a job body on the queue's retry queue with a
// per-message TTL equal to delay; expiry routes it back onto the work queue.
func (c *Client) PublishDelayed(ctx context.Context, queue string, body []byte, delay time.Duration) error {
	if !c.isConnected {
		return fmt.Errorf("not connected to RabbitMQ")
	}
	if delay <= 0 {
		return c.Publish(ctx, queue, body)
	}

	retryQueue := queue + c.config.RetryQueueSuffix
	err := c.channel.PublishWithContext(ctx,
		"", // default exchange routes straight to the retry queue
		retryQueue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Expiration:   strconv.FormatInt(delay.Milliseconds(), 10),
		},
	)
	if err != nil {
		c.logger.Error("Failed to publish delayed message",
			slog.String("queue", queue),
			slog.Duration("delay", delay),
			slog.Any("error", err),
		)
		return fmt.Errorf("failed to publish delayed to %s: %w", queue, err)
	}

	c.logger.Debug("Delayed message published",
		slog.String("queue", queue),
		slog.Duration("delay", delay),
	)
	return nil
}

// PublishNotification emits an event on the topic exchange using a routing
// key such as "notify.<tenant>.<channel>".
func (c *Client) PublishNotification(ctx context.Context, routingKey string, body []byte) error {
	if !c.isConnected {
		return fmt.Errorf("not connected to RabbitMQ")
	}
	if c.config.NotifyExchange == "" {
		return fmt.Errorf("notify exchange not configured")
	}

	err := c.channel.PublishWithContext(ctx,
		c.config.NotifyExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish notification %s: %w", routingKey, err)
	}
	return nil
}

// Qos bounds the number of unacknowledged deliveries per consumer.
func (c *Client) Qos(prefetchCount int) error {
	return c.channel.Qos(prefetchCount, 0, false)
}

// Consume starts consuming from a named work queue with manual acks.
func (c *Client) Consume(queue, consumerTag string) (<-chan amqp.Delivery, error) {
	if !c.isConnected {
		return nil, fmt.Errorf("not connected to RabbitMQ")
	}

	messages, err := c.channel.Consume(
		queue,
		consumerTag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return nil, fmt.Errorf("failed to consume from %s: %w", queue, err)
	}

	c.logger.Info("Started consuming",
		slog.String("queue", queue),
		slog.String("consumer_tag", consumerTag),
	)
	return messages, nil
}

// QueueLength reports the current message count of a work queue.
func (c *Client) QueueLength(queue string) (int, error) {
	if !c.isConnected {
		return 0, fmt.Errorf("not connected to RabbitMQ")
	}
	state, err := c.channel.QueueDeclarePassive(queue, true, false, false, false, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect queue %s: %w", queue, err)
	}
	return state.Messages, nil
}

// Close tears down the channel and connection.
func (c *Client) Close() error {
	c.logger.Info("Closing RabbitMQ connection")
	c.isConnected = false

	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			c.logger.Error("Failed to close RabbitMQ channel", slog.Any("error", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Error("Failed to close RabbitMQ connection", slog.Any("error", err))
			return err
		}
	}
	return nil
}

// IsConnected reports whether the underlying connection is open.
func (c *Client) IsConnected() bool {
	return c.isConnected && c.conn != nil && !c.conn.IsClosed()
}
