// Package config loads process configuration from defaults, an optional
// YAML file, and ROLLCALL_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"rollcall/internal/ledger"
	id "rollcall/pkg/domain"
	stringutil "rollcall/pkg/platform/strings"
)

// EnvPrefix namespaces environment overrides, e.g. ROLLCALL_SERVER_ADDR.
const EnvPrefix = "ROLLCALL"

// Ledger backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Identity IdentityConfig `mapstructure:"identity"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Breaker  BreakerConfig  `mapstructure:"breaker"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Limits   LimitsConfig   `mapstructure:"limits"`
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	// RequestTimeout bounds how long a request waits for confirmation. The
	// transaction itself keeps being tracked after the request gives up.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "text"
}

type LedgerConfig struct {
	Backend string `mapstructure:"backend"`
	// Registry is the address of the published registry to operate on. The
	// memory backend ignores it and publishes a fresh one at startup.
	Registry          string        `mapstructure:"registry"`
	Owner             string        `mapstructure:"owner"`
	Policy            string        `mapstructure:"policy"`
	ConfirmationDelay time.Duration `mapstructure:"confirmation_delay"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
}

type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// RedisConfig configures the snapshot mirror. An empty URL disables it.
type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MirrorTTL    time.Duration `mapstructure:"mirror_ttl"`
}

// KafkaConfig configures outcome publishing. No brokers disables it.
type KafkaConfig struct {
	Brokers     []string      `mapstructure:"brokers"`
	Topic       string        `mapstructure:"topic"`
	ClientID    string        `mapstructure:"client_id"`
	Linger      time.Duration `mapstructure:"linger"`
	Retries     int           `mapstructure:"retries"`
	Partitions  int32         `mapstructure:"partitions"`
	Replication int16         `mapstructure:"replication"`
}

// IdentityConfig configures the wallet bridge endpoint. An empty signing
// key disables it.
type IdentityConfig struct {
	SigningKey   string        `mapstructure:"signing_key"`
	Issuer       string        `mapstructure:"issuer"`
	ReplayWindow time.Duration `mapstructure:"replay_window"`
	// AllowedOrigins are browser origins permitted on the bridge websocket.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// Initial is the account active at startup, if any.
	Initial string `mapstructure:"initial"`
}

type CacheConfig struct {
	Parallelism    int `mapstructure:"parallelism"`
	ResyncAttempts int `mapstructure:"resync_attempts"`
}

type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	SuccessThreshold int           `mapstructure:"success_threshold"`
	Cooldown         time.Duration `mapstructure:"cooldown"`
}

// LimitsConfig bounds transaction submissions per client IP. Zero
// submissions disables the limit. Limits are shared through Redis when it
// is configured.
type LimitsConfig struct {
	Submissions int           `mapstructure:"submissions"`
	Window      time.Duration `mapstructure:"window"`
}

type TracingConfig struct {
	// Stdout exports spans to standard output. Without it spans are dropped.
	Stdout bool `mapstructure:"stdout"`
}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   15 * time.Second,
			RequestTimeout:    30 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Ledger: LedgerConfig{
			Backend:      BackendMemory,
			Policy:       string(ledger.PolicyOpen),
			PollInterval: 500 * time.Millisecond,
		},
		Postgres: PostgresConfig{MaxConns: 10},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 1,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Topic:       "rollcall.outcomes",
			ClientID:    "rollcall",
			Linger:      10 * time.Millisecond,
			Retries:     5,
			Partitions:  3,
			Replication: 1,
		},
		Identity: IdentityConfig{
			Issuer:         "wallet-bridge",
			ReplayWindow:   10 * time.Minute,
			AllowedOrigins: []string{},
		},
		Cache:   CacheConfig{Parallelism: 8, ResyncAttempts: 3},
		Breaker: BreakerConfig{FailureThreshold: 5, SuccessThreshold: 3, Cooldown: 30 * time.Second},
		Limits:  LimitsConfig{Submissions: 60, Window: time.Minute},
	}
}

// Bind registers defaults and environment lookup on v.
func Bind(v *viper.Viper) {
	d := Defaults()
	for key, value := range map[string]any{
		"server.addr":                d.Server.Addr,
		"server.read_header_timeout": d.Server.ReadHeaderTimeout,
		"server.shutdown_timeout":    d.Server.ShutdownTimeout,
		"server.request_timeout":     d.Server.RequestTimeout,
		"log.level":                  d.Log.Level,
		"log.format":                 d.Log.Format,
		"ledger.backend":             d.Ledger.Backend,
		"ledger.registry":            d.Ledger.Registry,
		"ledger.owner":               d.Ledger.Owner,
		"ledger.policy":              d.Ledger.Policy,
		"ledger.confirmation_delay":  d.Ledger.ConfirmationDelay,
		"ledger.poll_interval":       d.Ledger.PollInterval,
		"postgres.dsn":               d.Postgres.DSN,
		"postgres.max_conns":         d.Postgres.MaxConns,
		"redis.url":                  d.Redis.URL,
		"redis.pool_size":            d.Redis.PoolSize,
		"redis.min_idle_conns":       d.Redis.MinIdleConns,
		"redis.dial_timeout":         d.Redis.DialTimeout,
		"redis.read_timeout":         d.Redis.ReadTimeout,
		"redis.write_timeout":        d.Redis.WriteTimeout,
		"redis.mirror_ttl":           d.Redis.MirrorTTL,
		"kafka.brokers":              d.Kafka.Brokers,
		"kafka.topic":                d.Kafka.Topic,
		"kafka.client_id":            d.Kafka.ClientID,
		"kafka.linger":               d.Kafka.Linger,
		"kafka.retries":              d.Kafka.Retries,
		"kafka.partitions":           d.Kafka.Partitions,
		"kafka.replication":          d.Kafka.Replication,
		"identity.signing_key":       d.Identity.SigningKey,
		"identity.issuer":            d.Identity.Issuer,
		"identity.replay_window":     d.Identity.ReplayWindow,
		"identity.allowed_origins":   d.Identity.AllowedOrigins,
		"identity.initial":           d.Identity.Initial,
		"cache.parallelism":          d.Cache.Parallelism,
		"cache.resync_attempts":      d.Cache.ResyncAttempts,
		"breaker.failure_threshold":  d.Breaker.FailureThreshold,
		"breaker.success_threshold":  d.Breaker.SuccessThreshold,
		"breaker.cooldown":           d.Breaker.Cooldown,
		"tracing.stdout":             d.Tracing.Stdout,
		"limits.submissions":         d.Limits.Submissions,
		"limits.window":              d.Limits.Window,
	} {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads the optional config file and unmarshals v into a validated
// Config. Bind must have been called on v.
func Load(v *viper.Viper, file string) (Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)
	cfg.Identity.AllowedOrigins = splitList(cfg.Identity.AllowedOrigins)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// splitList expands a comma-separated env value, which arrives as a single
// element, and drops blanks and repeats.
func splitList(values []string) []string {
	if len(values) == 1 && strings.Contains(values[0], ",") {
		values = strings.Split(values[0], ",")
	}
	return stringutil.DedupeAndTrim(values)
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error
	switch c.Ledger.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("postgres.dsn is required for the postgres ledger backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ledger backend %q", c.Ledger.Backend))
	}
	if _, err := ledger.ParsePolicy(c.Ledger.Policy); err != nil {
		errs = append(errs, err)
	}
	for name, value := range map[string]string{
		"ledger.registry":  c.Ledger.Registry,
		"ledger.owner":     c.Ledger.Owner,
		"identity.initial": c.Identity.Initial,
	} {
		if value == "" {
			continue
		}
		if _, err := id.ParseAddress(value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if c.Limits.Submissions > 0 && c.Limits.Window <= 0 {
		errs = append(errs, errors.New("limits.window must be positive when limits.submissions is set"))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	if c.Cache.Parallelism <= 0 {
		errs = append(errs, errors.New("cache.parallelism must be positive"))
	}
	return errors.Join(errs...)
}
