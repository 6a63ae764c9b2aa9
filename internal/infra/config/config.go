package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "PROFILES"

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	GRPC      GRPCSettings      `mapstructure:"grpc"`
	Store     StoreSettings     `mapstructure:"store"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	Auth      AuthSettings      `mapstructure:"auth"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
	Username  UsernameSettings  `mapstructure:"username"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// CORSOrigins lists browser origins allowed to call the API. Empty allows any origin.
	CORSOrigins []string `mapstructure:"cors_origins"`
	// TrustedProxies lists proxy IPs or CIDRs whose forwarding headers set the client IP.
	// Empty trusts none, so the client IP is always the connection's remote address.
	TrustedProxies  []string      `mapstructure:"trusted_proxies"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type GRPCSettings struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// StoreSettings selects the profile store backend.
type StoreSettings struct {
	// Driver is "postgres" or "memory".
	Driver      string `mapstructure:"driver"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	Schema            string        `mapstructure:"schema"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// DSN renders a libpq connection string.
func (p PostgresSettings) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// RedisSettings configures Redis connection and TLS
type RedisSettings struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	DB         int    `mapstructure:"db"`
	Password   string `mapstructure:"password"`
	TLSEnabled bool   `mapstructure:"tls_enabled"`
	KeyPrefix  string `mapstructure:"key_prefix"`
}

// KafkaSettings configures Kafka producer
type KafkaSettings struct {
	Enabled     bool     `mapstructure:"enabled"`
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

// AuthSettings configures verification of access tokens minted by the hosted auth provider.
type AuthSettings struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	Audience  string        `mapstructure:"audience"`
	Leeway    time.Duration `mapstructure:"leeway"`
}

type TelemetrySettings struct {
	TracingEnabled bool    `mapstructure:"tracing_enabled"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

// ActionLimit is a fixed-window limit for one action.
type ActionLimit struct {
	Max    int           `mapstructure:"max"`
	Window time.Duration `mapstructure:"window"`
}

// RateLimitSettings configures the limiter backend and per-action windows
type RateLimitSettings struct {
	// Backend is "memory" for a single instance or "redis" for shared counters.
	Backend        string        `mapstructure:"backend"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	Post           ActionLimit   `mapstructure:"post"`
	Comment        ActionLimit   `mapstructure:"comment"`
	ProfileComment ActionLimit   `mapstructure:"profile_comment"`
	Friendship     ActionLimit   `mapstructure:"friendship"`
	General        ActionLimit   `mapstructure:"general"`
	ClaimUsername  ActionLimit   `mapstructure:"claim_username"`
	UpdateUsername ActionLimit   `mapstructure:"update_username"`
	Moderation     ActionLimit   `mapstructure:"moderation"`

	EditPost             ActionLimit `mapstructure:"edit_post"`
	DeletePost           ActionLimit `mapstructure:"delete_post"`
	DeleteComment        ActionLimit `mapstructure:"delete_comment"`
	UpdateProfile        ActionLimit `mapstructure:"update_profile"`
	UpdateTheme          ActionLimit `mapstructure:"update_theme"`
	AcceptFriendRequest  ActionLimit `mapstructure:"accept_friend_request"`
	DeclineFriendRequest ActionLimit `mapstructure:"decline_friend_request"`
	BlockUser            ActionLimit `mapstructure:"block_user"`
	CreateReport         ActionLimit `mapstructure:"create_report"`
	ModerateReport       ActionLimit `mapstructure:"moderate_report"`
}

// Actions returns every configured limit keyed by action name.
func (r RateLimitSettings) Actions() map[string]ActionLimit {
	return map[string]ActionLimit{
		"post":                   r.Post,
		"comment":                r.Comment,
		"profile_comment":        r.ProfileComment,
		"friendship":             r.Friendship,
		"general":                r.General,
		"claim_username":         r.ClaimUsername,
		"update_username":        r.UpdateUsername,
		"moderation":             r.Moderation,
		"edit_post":              r.EditPost,
		"delete_post":            r.DeletePost,
		"delete_comment":         r.DeleteComment,
		"update_profile":         r.UpdateProfile,
		"update_theme":           r.UpdateTheme,
		"accept_friend_request":  r.AcceptFriendRequest,
		"decline_friend_request": r.DeclineFriendRequest,
		"block_user":             r.BlockUser,
		"create_report":          r.CreateReport,
		"moderate_report":        r.ModerateReport,
	}
}

type UsernameSettings struct {
	RedirectTTL          time.Duration `mapstructure:"redirect_ttl"`
	RedirectWriteTimeout time.Duration `mapstructure:"redirect_write_timeout"`
	PurgeInterval        time.Duration `mapstructure:"purge_interval"`
}

// minuteActions share the default of 10 calls per minute.
var minuteActions = []string{
	"edit_post",
	"delete_post",
	"delete_comment",
	"update_profile",
	"update_theme",
	"accept_friend_request",
	"decline_friend_request",
	"block_user",
	"create_report",
	"moderate_report",
}

var rateLimitActions = append([]string{
	"post",
	"comment",
	"profile_comment",
	"friendship",
	"general",
	"claim_username",
	"update_username",
	"moderation",
}, minuteActions...)

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(envPrefix)

	setDefaults(v)

	keys := []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"app.cors_origins",
		"app.trusted_proxies",
		"app.shutdown_timeout",
		"grpc.enabled",
		"grpc.host",
		"grpc.port",
		"store.driver",
		"store.auto_migrate",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.schema",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.key_prefix",
		"kafka.enabled",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"auth.jwt_secret",
		"auth.issuer",
		"auth.audience",
		"auth.leeway",
		"telemetry.tracing_enabled",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
		"rate_limit.backend",
		"rate_limit.sweep_interval",
		"username.redirect_ttl",
		"username.redirect_write_timeout",
		"username.purge_interval",
	}
	for _, action := range rateLimitActions {
		keys = append(keys, "rate_limit."+action+".max", "rate_limit."+action+".window")
	}

	if err := bindEnvs(v, keys); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *AppConfig) Validate() error {
	switch c.Store.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("store.driver must be postgres or memory, got %q", c.Store.Driver)
	}

	switch c.RateLimit.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("rate_limit.backend must be memory or redis, got %q", c.RateLimit.Backend)
	}

	for action, limit := range c.RateLimit.Actions() {
		if limit.Max <= 0 || limit.Window <= 0 {
			return fmt.Errorf("rate_limit.%s requires positive max and window", action)
		}
	}

	if c.RateLimit.SweepInterval <= 0 {
		return fmt.Errorf("rate_limit.sweep_interval must be positive")
	}

	if c.App.Env == "production" && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required in production")
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "profile-service")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.cors_origins", []string{})
	v.SetDefault("app.trusted_proxies", []string{})
	v.SetDefault("app.shutdown_timeout", "15s")

	v.SetDefault("grpc.enabled", true)
	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 50051)

	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.auto_migrate", true)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "profiles")
	v.SetDefault("postgres.password", "profiles_password")
	v.SetDefault("postgres.database", "profiles")
	v.SetDefault("postgres.schema", "social")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.key_prefix", "profiles:ratelimit")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "profiles")
	v.SetDefault("kafka.async", true)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.audience", "authenticated")
	v.SetDefault("auth.leeway", "30s")

	v.SetDefault("telemetry.tracing_enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4318")
	v.SetDefault("telemetry.service_name", "profile-service")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("rate_limit.backend", "memory")
	v.SetDefault("rate_limit.sweep_interval", "1m")
	v.SetDefault("rate_limit.post.max", 10)
	v.SetDefault("rate_limit.post.window", "15m")
	v.SetDefault("rate_limit.comment.max", 20)
	v.SetDefault("rate_limit.comment.window", "15m")
	v.SetDefault("rate_limit.profile_comment.max", 5)
	v.SetDefault("rate_limit.profile_comment.window", "1h")
	v.SetDefault("rate_limit.friendship.max", 10)
	v.SetDefault("rate_limit.friendship.window", "1h")
	v.SetDefault("rate_limit.general.max", 100)
	v.SetDefault("rate_limit.general.window", "15m")
	v.SetDefault("rate_limit.claim_username.max", 10)
	v.SetDefault("rate_limit.claim_username.window", "1m")
	v.SetDefault("rate_limit.update_username.max", 10)
	v.SetDefault("rate_limit.update_username.window", "1m")
	v.SetDefault("rate_limit.moderation.max", 10)
	v.SetDefault("rate_limit.moderation.window", "1m")
	for _, action := range minuteActions {
		v.SetDefault("rate_limit."+action+".max", 10)
		v.SetDefault("rate_limit."+action+".window", "1m")
	}

	v.SetDefault("username.redirect_ttl", "720h")
	v.SetDefault("username.redirect_write_timeout", "5s")
	v.SetDefault("username.purge_interval", "1h")
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envPrefix+"_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
