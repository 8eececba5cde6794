package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				assert.Equal(t, "relay-workers", cfg.App.Name)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "relay_db", cfg.Database.Database)
				assert.Equal(t, "relay.jobs", cfg.RabbitMQ.JobExchange)
				assert.Equal(t, "outbound-send", cfg.RabbitMQ.Queues.Outbound)
				assert.Equal(t, []string{"outbound-send", "inbound-webhook", "media-download", "campaign-dispatch"}, cfg.RabbitMQ.Queues.All())
				assert.Equal(t, 5, cfg.Worker.MaxAttempts)
				assert.Equal(t, time.Second, cfg.Worker.BaseBackoff)
				assert.Equal(t, 30*time.Second, cfg.Worker.MaxBackoff)
				assert.Equal(t, float64(10), cfg.RateLimit.ChannelRate)
				assert.Equal(t, 24*time.Hour, cfg.Idempotency.TTL)
				assert.Equal(t, 24*time.Hour, cfg.Conversation.ReplyWindow)
			}
		})
	}
}

func validWorkerConfig() *Config {
	cfg, err := Load("testdata/valid_config.yaml")
	if err != nil {
		panic(err)
	}
	return cfg
}

func TestConfig_ValidateWorkerConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:      "missing database host",
			mutate:    func(c *Config) { c.Database.Host = "" },
			wantErr:   true,
			errString: "database host is required",
		},
		{
			name:      "invalid rabbitmq port",
			mutate:    func(c *Config) { c.RabbitMQ.Port = 0 },
			wantErr:   true,
			errString: "invalid rabbitmq port",
		},
		{
			name:      "missing queue name",
			mutate:    func(c *Config) { c.RabbitMQ.Queues.Media = "" },
			wantErr:   true,
			errString: "queue names are required",
		},
		{
			name:      "zero concurrency",
			mutate:    func(c *Config) { c.Worker.Concurrency = 0 },
			wantErr:   true,
			errString: "concurrency must be greater than 0",
		},
		{
			name:      "max backoff below base",
			mutate:    func(c *Config) { c.Worker.MaxBackoff = c.Worker.BaseBackoff / 2 },
			wantErr:   true,
			errString: "max_backoff must be >= base_backoff",
		},
		{
			name:      "zero channel rate",
			mutate:    func(c *Config) { c.RateLimit.ChannelRate = 0 },
			wantErr:   true,
			errString: "channel_rate and channel_burst",
		},
		{
			name:      "zero idempotency ttl",
			mutate:    func(c *Config) { c.Idempotency.TTL = 0 },
			wantErr:   true,
			errString: "idempotency ttl",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validWorkerConfig()
			tt.mutate(cfg)

			err := cfg.ValidateWorkerConfig()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateAdminConfig(t *testing.T) {
	cfg := validWorkerConfig()
	require.NoError(t, cfg.ValidateAdminConfig())

	cfg.Server.Port = 0
	err := cfg.ValidateAdminConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid server port")
}
