package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/bartime/bartime-api/internal/domain"
)

const envPrefix = "BARTIME"

var ErrInvalidLedgerConfig = errors.New("invalid ledger config")

type AppConfig struct {
	API      *APIConfig      `mapstructure:"api"`
	Gin      *GinConfig      `mapstructure:"gin"`
	Postgres *PostgresConfig `mapstructure:"postgres"`
	Ledger   *LedgerConfig   `mapstructure:"ledger"`
	Jobs     *JobsConfig     `mapstructure:"jobs"`
	Tracing  *TracingConfig  `mapstructure:"tracing"`

	v  *viper.Viper
	mu sync.Mutex
}

type APIConfig struct {
	Environment            string        `mapstructure:"environment"`
	Port                   string        `mapstructure:"port"`
	BaseURL                string        `mapstructure:"base_url"`
	AllowedCORSDomains     []string      `mapstructure:"allowed_cors_domains"`
	JWTSigningKey          string        `mapstructure:"jwt_signing_key"`
	JWTTTL                 time.Duration `mapstructure:"jwt_ttl"`
	LoginAttemptsPerMinute int           `mapstructure:"login_attempts_per_minute"`
}

type GinConfig struct {
	Mode string `mapstructure:"mode"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DB       string `mapstructure:"db"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

func (c *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DB, c.SSLMode)
}

type LedgerConfig struct {
	DefaultFloor    string `mapstructure:"default_floor"`
	TopUpCeiling    string `mapstructure:"topup_ceiling"`
	MaxRetries      int    `mapstructure:"max_retries"`
	HistoryMaxLimit int    `mapstructure:"history_max_limit"`
}

// Policy parses the default association policy.
func (c *LedgerConfig) Policy() (domain.Policy, error) {
	policy := domain.Policy{Floor: decimal.Zero}

	if c.DefaultFloor != "" {
		floor, err := decimal.NewFromString(c.DefaultFloor)
		if err != nil {
			return domain.Policy{}, fmt.Errorf("%w: default_floor %q -> %w", ErrInvalidLedgerConfig, c.DefaultFloor, err)
		}
		policy.Floor = floor
	}

	if c.TopUpCeiling != "" {
		ceiling, err := decimal.NewFromString(c.TopUpCeiling)
		if err != nil {
			return domain.Policy{}, fmt.Errorf("%w: topup_ceiling %q -> %w", ErrInvalidLedgerConfig, c.TopUpCeiling, err)
		}
		policy.TopUpCeiling = &ceiling
	}

	return policy, nil
}

type JobsConfig struct {
	ReconcileEveryMinutes uint64 `mapstructure:"reconcile_every_minutes"`
}

type TracingConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
	Insecure    bool   `mapstructure:"insecure"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.environment", "development")
	v.SetDefault("api.port", "8080")
	v.SetDefault("api.jwt_ttl", 12*time.Hour)
	v.SetDefault("api.login_attempts_per_minute", 10)
	v.SetDefault("gin.mode", "debug")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("ledger.default_floor", "0")
	v.SetDefault("ledger.max_retries", 5)
	v.SetDefault("ledger.history_max_limit", 100)
	v.SetDefault("jobs.reconcile_every_minutes", 15)
	v.SetDefault("tracing.service_name", "bartime-api")
}

func Load(path string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("v.ReadInConfig -> %w", err)
	}

	conf := &AppConfig{v: v}
	if err := v.Unmarshal(conf); err != nil {
		return nil, fmt.Errorf("v.Unmarshal -> %w", err)
	}

	if _, err := conf.Ledger.Policy(); err != nil {
		return nil, err
	}

	return conf, nil
}

// OnLedgerChange re-reads the ledger block each time the config file is
// written and hands it to fn. Invalid blocks are reported through onErr and
// leave the previous values in place.
func (c *AppConfig) OnLedgerChange(fn func(LedgerConfig), onErr func(error)) {
	c.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		var ledger LedgerConfig
		if err := c.v.UnmarshalKey("ledger", &ledger); err != nil {
			onErr(fmt.Errorf("c.v.UnmarshalKey -> %w", err))
			return
		}
		if _, err := ledger.Policy(); err != nil {
			onErr(err)
			return
		}

		c.mu.Lock()
		*c.Ledger = ledger
		c.mu.Unlock()

		fn(ledger)
	})
	c.v.WatchConfig()
}
