package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration shared by the
// worker processes and the admin API.
type Config struct {
	App          AppConfig          `yaml:"app"`
	Logging      LoggingConfig      `yaml:"logging"`
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	RabbitMQ     RabbitMQConfig     `yaml:"rabbitmq"`
	Worker       WorkerConfig       `yaml:"worker"`
	RateLimit    RateLimitConfig    `yaml:"ratelimit"`
	Provider     ProviderConfig     `yaml:"provider"`
	Idempotency  IdempotencyConfig  `yaml:"idempotency"`
	Conversation ConversationConfig `yaml:"conversation"`
	Media        MediaConfig        `yaml:"media"`
}

// AppConfig holds application metadata.
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// ServerConfig holds the admin API HTTP server configuration.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds broker connection and topology configuration.
type RabbitMQConfig struct {
	Host           string           `yaml:"host"`
	Port           int              `yaml:"port"`
	User           string           `yaml:"user"`
	Password       string           `yaml:"password"`
	VHost          string           `yaml:"vhost"`
	JobExchange    string           `yaml:"job_exchange"`
	NotifyExchange string           `yaml:"notify_exchange"`
	Queues         QueueNamesConfig `yaml:"queues"`
	Connection     ConnectionConfig `yaml:"connection"`
}

// QueueNamesConfig names the four work queues.
type QueueNamesConfig struct {
	Outbound string `yaml:"outbound"`
	Webhook  string `yaml:"webhook"`
	Media    string `yaml:"media"`
	Campaign string `yaml:"campaign"`
}

// All returns every configured queue name for topology declaration.
func (q QueueNamesConfig) All() []string {
	return []string{q.Outbound, q.Webhook, q.Media, q.Campaign}
}

// ConnectionConfig holds broker connection settings.
type ConnectionConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

// WorkerConfig holds settings shared by all worker processes.
type WorkerConfig struct {
	Concurrency     int           `yaml:"concurrency"`
	PrefetchCount   int           `yaml:"prefetch_count"`
	MaxAttempts     int           `yaml:"max_attempts"`
	BaseBackoff     time.Duration `yaml:"base_backoff"`
	MaxBackoff      time.Duration `yaml:"max_backoff"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// RateLimitConfig holds the token-bucket parameters. Rate values are tokens
// per second; Burst is the bucket capacity.
type RateLimitConfig struct {
	ChannelRate  float64       `yaml:"channel_rate"`
	ChannelBurst float64       `yaml:"channel_burst"`
	GlobalRate   float64       `yaml:"global_rate"`
	GlobalBurst  float64       `yaml:"global_burst"`
	WaitTimeout  time.Duration `yaml:"wait_timeout"`
}

// ProviderConfig holds per-call timeouts against the messaging provider.
// Interactive sends get a shorter budget than media transfers.
type ProviderConfig struct {
	SendTimeout  time.Duration `yaml:"send_timeout"`
	MediaTimeout time.Duration `yaml:"media_timeout"`
}

// IdempotencyConfig bounds how long idempotency marks live.
type IdempotencyConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// ConversationConfig holds derived-conversation settings.
type ConversationConfig struct {
	ReplyWindow time.Duration `yaml:"reply_window"`
}

// MediaConfig holds object-storage settings for the media worker.
type MediaConfig struct {
	StorageRoot string        `yaml:"storage_root"`
	URLTTL      time.Duration `yaml:"url_ttl"`
}

// Load reads and parses the configuration file.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// validateShared checks the sections every process depends on.
func (c *Config) validateShared() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}
	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}
	if c.RabbitMQ.JobExchange == "" {
		return fmt.Errorf("rabbitmq job exchange is required")
	}
	for _, name := range c.RabbitMQ.Queues.All() {
		if name == "" {
			return fmt.Errorf("all rabbitmq queue names are required")
		}
	}
	return nil
}

// ValidateWorkerConfig checks everything a worker process needs at startup.
func (c *Config) ValidateWorkerConfig() error {
	if err := c.validateShared(); err != nil {
		return err
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}
	if c.Worker.MaxAttempts <= 0 {
		return fmt.Errorf("worker max_attempts must be greater than 0")
	}
	if c.Worker.BaseBackoff <= 0 {
		return fmt.Errorf("worker base_backoff must be greater than 0")
	}
	if c.Worker.MaxBackoff < c.Worker.BaseBackoff {
		return fmt.Errorf("worker max_backoff must be >= base_backoff")
	}
	if c.Worker.ShutdownTimeout <= 0 {
		return fmt.Errorf("worker shutdown_timeout must be greater than 0")
	}
	if c.RateLimit.ChannelRate <= 0 || c.RateLimit.ChannelBurst <= 0 {
		return fmt.Errorf("ratelimit channel_rate and channel_burst must be greater than 0")
	}
	if c.RateLimit.WaitTimeout <= 0 {
		return fmt.Errorf("ratelimit wait_timeout must be greater than 0")
	}
	if c.Provider.SendTimeout <= 0 || c.Provider.MediaTimeout <= 0 {
		return fmt.Errorf("provider send_timeout and media_timeout must be greater than 0")
	}
	if c.Idempotency.TTL <= 0 {
		return fmt.Errorf("idempotency ttl must be greater than 0")
	}
	if c.Conversation.ReplyWindow <= 0 {
		return fmt.Errorf("conversation reply_window must be greater than 0")
	}
	return nil
}

// ValidateAdminConfig checks everything the admin API needs at startup.
func (c *Config) ValidateAdminConfig() error {
	if err := c.validateShared(); err != nil {
		return err
	}
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}
	return nil
}
