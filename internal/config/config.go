package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment  DeploymentConfig  `mapstructure:"deployment" validate:"required"`
	Server      ServerConfig      `mapstructure:"server" validate:"required"`
	Logging     LoggingConfig     `mapstructure:"logging" validate:"required"`
	Postgres    PostgresConfig    `mapstructure:"postgres"`
	Redis       RedisConfig       `mapstructure:"redis"`
	DynamoDB    DynamoDBConfig    `mapstructure:"dynamodb"`
	TokenStore  TokenStoreConfig  `mapstructure:"token_store" validate:"required"`
	Kiwify      KiwifyConfig      `mapstructure:"kiwify" validate:"required"`
	BillingSync BillingSyncConfig `mapstructure:"billing_sync" validate:"required"`
	Identity    IdentityConfig    `mapstructure:"identity"`
	Supabase    SupabaseConfig    `mapstructure:"supabase"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Temporal    TemporalConfig    `mapstructure:"temporal"`
	Sentry      SentryConfig      `mapstructure:"sentry"`
	Profiling   ProfilingConfig   `mapstructure:"profiling"`
}

type DeploymentConfig struct {
	Mode string `mapstructure:"mode" validate:"required,oneof=local api temporal_worker"`
}

type ServerConfig struct {
	Address string `mapstructure:"address" validate:"required"`
}

type LoggingConfig struct {
	Level          string `mapstructure:"level" validate:"required"`
	FluentdEnabled bool   `mapstructure:"fluentd_enabled"`
	FluentdHost    string `mapstructure:"fluentd_host"`
	FluentdPort    int    `mapstructure:"fluentd_port"`
}

type PostgresConfig struct {
	Host                   string `mapstructure:"host"`
	Port                   int    `mapstructure:"port"`
	User                   string `mapstructure:"user"`
	Password               string `mapstructure:"password"`
	DBName                 string `mapstructure:"dbname"`
	SSLMode                string `mapstructure:"sslmode"`
	MaxOpenConns           int    `mapstructure:"max_open_conns"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes"`
	AutoMigrate            bool   `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	UseTLS   bool          `mapstructure:"use_tls"`
	PoolSize int           `mapstructure:"pool_size"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type DynamoDBConfig struct {
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	TableName string `mapstructure:"table_name"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// TokenStoreConfig selects the durable tier of the OAuth token cache
type TokenStoreConfig struct {
	Type      string `mapstructure:"type" validate:"required,oneof=memory redis dynamodb"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type KiwifyConfig struct {
	BaseURL           string            `mapstructure:"base_url" validate:"required,url"`
	ClientID          string            `mapstructure:"client_id"`
	ClientSecret      string            `mapstructure:"client_secret"`
	AccountID         string            `mapstructure:"account_id"`
	RequestsPerMinute int               `mapstructure:"requests_per_minute" validate:"min=1"`
	PageSize          int               `mapstructure:"page_size" validate:"min=1,max=100"`
	TokenSafetyMargin time.Duration     `mapstructure:"token_safety_margin"`
	HTTPTimeout       time.Duration     `mapstructure:"http_timeout"`
	TransportRetries  int               `mapstructure:"transport_retries"`
	PlanMappings      map[string]string `mapstructure:"plan_mappings"`
}

type BillingSyncConfig struct {
	DefaultLookbackHours int           `mapstructure:"default_lookback_hours" validate:"min=1"`
	Overlap              time.Duration `mapstructure:"overlap"`
	ExclusiveRuns        bool          `mapstructure:"exclusive_runs"`
	StrictPlanMapping    bool          `mapstructure:"strict_plan_mapping"`
	CronSecret           string        `mapstructure:"cron_secret"`
	Schedule             string        `mapstructure:"schedule"`
}

// IdentityConfig selects where customer emails are resolved to local users
type IdentityConfig struct {
	Source string `mapstructure:"source" validate:"omitempty,oneof=postgres supabase"`
	Table  string `mapstructure:"table"`
}

type SupabaseConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	ServiceKey string `mapstructure:"service_key"`
}

type AuthConfig struct {
	Secret     string `mapstructure:"secret"`
	AdminRoles string `mapstructure:"admin_roles"`
}

type TemporalConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// ProfilingConfig enables continuous profiling through Pyroscope
type ProfilingConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	ServerAddress   string `mapstructure:"server_address" validate:"required_if=Enabled true"`
	ApplicationName string `mapstructure:"application_name"`
}

// NewConfig loads config.yaml (if present), the .env file (if present) and
// NUTRIPLAN_* environment overrides, then validates the result.
func NewConfig() (*Configuration, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvPrefix("NUTRIPLAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate runs struct tag validation over the whole configuration
func (c *Configuration) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// GetDefaultConfig returns the built-in defaults without reading files or env.
// Used by the global logger and by tests.
func GetDefaultConfig() *Configuration {
	v := viper.New()
	setDefaults(v)

	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("invalid default config: %v", err))
	}
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", "local")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", "info")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "nutriplan")
	v.SetDefault("postgres.dbname", "nutriplan")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime_minutes", 60)
	v.SetDefault("postgres.auto_migrate", true)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.timeout", 5*time.Second)

	v.SetDefault("dynamodb.region", "us-east-1")
	v.SetDefault("dynamodb.table_name", "nutriplan-tokens")

	v.SetDefault("token_store.type", "memory")
	v.SetDefault("token_store.key_prefix", "kiwify:oauth:token")

	// empty defaults register the keys so AutomaticEnv can override them on Unmarshal
	for _, key := range []string{
		"postgres.password", "redis.password", "dynamodb.endpoint", "dynamodb.access_key", "dynamodb.secret_key",
		"kiwify.client_id", "kiwify.client_secret", "kiwify.account_id", "billing_sync.cron_secret",
		"supabase.base_url", "supabase.service_key", "auth.secret", "sentry.dsn", "sentry.environment",
		"logging.fluentd_host", "profiling.server_address",
	} {
		v.SetDefault(key, "")
	}

	v.SetDefault("kiwify.base_url", "https://public-api.kiwify.com/v1")
	v.SetDefault("kiwify.requests_per_minute", 100)
	v.SetDefault("kiwify.page_size", 50)
	v.SetDefault("kiwify.token_safety_margin", 60*time.Second)
	v.SetDefault("kiwify.http_timeout", 30*time.Second)
	v.SetDefault("kiwify.transport_retries", 2)

	v.SetDefault("billing_sync.default_lookback_hours", 24)
	v.SetDefault("billing_sync.overlap", 5*time.Minute)
	v.SetDefault("billing_sync.exclusive_runs", false)
	v.SetDefault("billing_sync.strict_plan_mapping", false)
	v.SetDefault("billing_sync.schedule", "*/15 * * * *")

	v.SetDefault("identity.source", "postgres")
	v.SetDefault("identity.table", "profiles")

	v.SetDefault("auth.admin_roles", "admin")

	v.SetDefault("temporal.address", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "billing")

	v.SetDefault("sentry.sample_rate", 1.0)

	v.SetDefault("profiling.application_name", "nutriplan")
}
