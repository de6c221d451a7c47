package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"
)

const (
	BrokerRedis  = "redis"
	BrokerMemory = "memory"
)

type Config struct {
	Addr     string `env:"API_ADDR" envDefault:"127.0.0.1:8080"` // "127.0.0.1:8080" locally or ":8080" in Docker
	LogDir   string `env:"LOG_DIR" envDefault:"logs"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Broker is "redis" for the distributed deployment or "memory" to run
	// api and workers in one process.
	Broker        string        `env:"BROKER" envDefault:"redis"`
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	StreamPrefix  string        `env:"STREAM_PREFIX" envDefault:"probe"`
	StreamMaxLen  int64         `env:"STREAM_MAXLEN" envDefault:"10000"`
	StreamBlock   time.Duration `env:"STREAM_BLOCK" envDefault:"2s"`

	HTTPTimeout      time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`
	DNSTimeout       time.Duration `env:"DNS_TIMEOUT" envDefault:"5s"`
	ConnectTimeout   time.Duration `env:"CONNECT_TIMEOUT" envDefault:"5s"`
	HandshakeTimeout time.Duration `env:"HANDSHAKE_TIMEOUT" envDefault:"10s"`
	IOTimeout        time.Duration `env:"IO_TIMEOUT" envDefault:"10s"`

	WorkerGroup       string        `env:"WORKER_GROUP" envDefault:"probe-workers"`
	WorkerID          string        `env:"WORKER_ID"`
	WorkerConcurrency int           `env:"WORKER_CONCURRENCY" envDefault:"1"`
	JobTimeout        time.Duration `env:"JOB_TIMEOUT" envDefault:"30s"`

	ResultGroup string `env:"RESULT_GROUP" envDefault:"result-api"`
	CacheSize   int    `env:"CACHE_SIZE" envDefault:"100"`
	RecentLimit int    `env:"RECENT_LIMIT" envDefault:"10"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	SubmitRPM      int      `env:"SUBMIT_RPM" envDefault:"120"`
	SubmitBurst    int      `env:"SUBMIT_BURST" envDefault:"60"`

	SlackWebhookURL string        `env:"SLACK_WEBHOOK_URL"`
	AlertOnRecovery bool          `env:"ALERT_ON_RECOVERY" envDefault:"true"`
	AlertCooldown   time.Duration `env:"ALERT_COOLDOWN" envDefault:"10m"`
}

// FromEnv loads an optional .env file, then parses the environment.
func FromEnv() (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.Sanitize()
	return cfg, nil
}

// Sanitize replaces out-of-range values with their defaults.
func (c *Config) Sanitize() {
	c.Broker = strings.ToLower(strings.TrimSpace(c.Broker))
	if c.Broker == "" {
		c.Broker = BrokerRedis
	}
	if c.StreamPrefix == "" {
		c.StreamPrefix = "probe"
	}
	if c.StreamMaxLen < 0 {
		c.StreamMaxLen = 0
	}
	if c.StreamBlock <= 0 {
		c.StreamBlock = 2 * time.Second
	}
	positive(&c.HTTPTimeout, 10*time.Second)
	positive(&c.DNSTimeout, 5*time.Second)
	positive(&c.ConnectTimeout, 5*time.Second)
	positive(&c.HandshakeTimeout, 10*time.Second)
	positive(&c.IOTimeout, 10*time.Second)
	positive(&c.JobTimeout, 30*time.Second)
	if c.WorkerGroup == "" {
		c.WorkerGroup = "probe-workers"
	}
	if c.WorkerConcurrency < 1 {
		c.WorkerConcurrency = 1
	}
	if c.ResultGroup == "" {
		c.ResultGroup = "result-api"
	}
	if c.CacheSize < 1 {
		c.CacheSize = 100
	}
	if c.RecentLimit < 1 {
		c.RecentLimit = 10
	}
	if c.RecentLimit > c.CacheSize {
		c.RecentLimit = c.CacheSize
	}
	if c.SubmitRPM < 0 {
		c.SubmitRPM = 0
	}
	if c.SubmitBurst < 1 {
		c.SubmitBurst = 1
	}
	origins := c.AllowedOrigins[:0]
	for _, o := range c.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c.AllowedOrigins = origins
	if c.AlertCooldown < 0 {
		c.AlertCooldown = 0
	}
}

// Validate reports every setting that would stop a process from starting.
func (c Config) Validate() error {
	var err error
	switch c.Broker {
	case BrokerRedis:
		if c.RedisAddr == "" {
			err = multierr.Append(err, errors.New("REDIS_ADDR is required when BROKER=redis"))
		}
	case BrokerMemory:
	default:
		err = multierr.Append(err, fmt.Errorf("BROKER must be %q or %q, got %q", BrokerRedis, BrokerMemory, c.Broker))
	}
	if c.Addr == "" {
		err = multierr.Append(err, errors.New("API_ADDR is empty"))
	}
	if c.SlackWebhookURL != "" {
		u, perr := url.Parse(c.SlackWebhookURL)
		if perr != nil || u.Scheme != "https" || u.Host == "" {
			err = multierr.Append(err, errors.New("SLACK_WEBHOOK_URL must be an https URL"))
		}
	}
	return err
}

func positive(d *time.Duration, def time.Duration) {
	if *d <= 0 {
		*d = def
	}
}
