package config // package config loads application configuration from .env, an optional config file and the environment

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv" // loads .env into the process environment
	"github.com/spf13/viper"   // layered config: defaults < file < env
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable of the same upper-case name.
type Config struct {
	Env      string // application environment (e.g. "dev", "prod")
	Port     string // HTTP port to listen on
	GRPCPort string // gRPC port to listen on

	DBDriver   string // mysql | sqlite
	DBUser     string // database username
	DBPass     string // database password (optional)
	DBHost     string // database host address
	DBPort     string // database port number
	DBName     string // database name
	SQLitePath string // database file when DBDriver is sqlite

	IdentityMode    string // jwt | rpc
	JWTSecret       string // secret used to verify JWTs in jwt mode
	AuthServiceAddr string // auth service host:port in rpc mode
	UserServiceAddr string // user service host:port; empty uses DefaultLimits
	ProfileCacheTTL time.Duration
	DefaultMaxAdult int32 // limits granted when no user service is configured
	DefaultMaxChild int32

	RabbitMQURL         string // empty disables publishing and the audit consumer
	RabbitMQDialTimeout time.Duration
	ReservationQueue    string
	AuditLogPath        string

	ReleaseSeatsOnCancel      bool
	RejectOverlappingBookings bool

	LogLevel        string
	OTelEnabled     bool
	OTelEndpoint    string
	OTelServiceName string

	Redis     RedisConfig
	RateLimit RateLimitConfig
}

// Load reads .env (when present), an optional config.{yaml,toml,json} in
// the working directory and the environment, in increasing precedence.
// Missing required settings are reported together in one error.
func Load() (Config, error) {
	_ = godotenv.Load() // .env is optional; real env vars are never overridden

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	setDefaults(v)
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}
	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("GRPC_PORT", "9090")
	v.SetDefault("DB_DRIVER", "mysql")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("SQLITE_PATH", "reservation.db")
	v.SetDefault("IDENTITY_MODE", "jwt")
	v.SetDefault("PROFILE_CACHE_TTL", "5m")
	v.SetDefault("DEFAULT_MAX_ADULT", 10)
	v.SetDefault("DEFAULT_MAX_CHILD", 10)
	v.SetDefault("RABBITMQ_DIAL_TIMEOUT", "2s")
	v.SetDefault("RESERVATION_QUEUE", "reservation.events")
	v.SetDefault("AUDIT_LOG_PATH", "logs/reservation.log")
	v.SetDefault("RELEASE_SEATS_ON_CANCEL", true)
	v.SetDefault("REJECT_OVERLAPPING_BOOKINGS", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_ENDPOINT", "localhost:4317")
	v.SetDefault("OTEL_SERVICE_NAME", "schedule-reservation")
	setRedisDefaults(v)
	setRateLimitDefaults(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Env:      v.GetString("APP_ENV"),
		Port:     v.GetString("APP_PORT"),
		GRPCPort: v.GetString("GRPC_PORT"),

		DBDriver:   strings.ToLower(v.GetString("DB_DRIVER")),
		DBUser:     v.GetString("DB_USER"),
		DBPass:     v.GetString("DB_PASS"), // empty allowed
		DBHost:     v.GetString("DB_HOST"),
		DBPort:     v.GetString("DB_PORT"),
		DBName:     v.GetString("DB_NAME"),
		SQLitePath: v.GetString("SQLITE_PATH"),

		IdentityMode:    strings.ToLower(v.GetString("IDENTITY_MODE")),
		JWTSecret:       v.GetString("JWT_SECRET"),
		AuthServiceAddr: v.GetString("AUTH_SERVICE_ADDR"),
		UserServiceAddr: v.GetString("USER_SERVICE_ADDR"),
		ProfileCacheTTL: v.GetDuration("PROFILE_CACHE_TTL"),
		DefaultMaxAdult: v.GetInt32("DEFAULT_MAX_ADULT"),
		DefaultMaxChild: v.GetInt32("DEFAULT_MAX_CHILD"),

		RabbitMQURL:         firstNonEmpty(v.GetString("RABBITMQ_URL"), v.GetString("AMQP_URL")),
		RabbitMQDialTimeout: v.GetDuration("RABBITMQ_DIAL_TIMEOUT"),
		ReservationQueue:    v.GetString("RESERVATION_QUEUE"),
		AuditLogPath:        v.GetString("AUDIT_LOG_PATH"),

		ReleaseSeatsOnCancel:      v.GetBool("RELEASE_SEATS_ON_CANCEL"),
		RejectOverlappingBookings: v.GetBool("REJECT_OVERLAPPING_BOOKINGS"),

		LogLevel:        v.GetString("LOG_LEVEL"),
		OTelEnabled:     v.GetBool("OTEL_ENABLED"),
		OTelEndpoint:    v.GetString("OTEL_ENDPOINT"),
		OTelServiceName: v.GetString("OTEL_SERVICE_NAME"),

		Redis:     redisFromViper(v),
		RateLimit: rateLimitFromViper(v),
	}
	return cfg, cfg.validate()
}

// validate enforces the settings each mode depends on.
func (c Config) validate() error {
	var missing []string
	need := func(key, val string) {
		if strings.TrimSpace(val) == "" {
			missing = append(missing, key)
		}
	}
	need("APP_PORT", c.Port)
	need("GRPC_PORT", c.GRPCPort)

	var errs []error
	switch c.DBDriver {
	case "mysql":
		need("DB_USER", c.DBUser)
		need("DB_HOST", c.DBHost)
		need("DB_PORT", c.DBPort)
		need("DB_NAME", c.DBName)
	case "sqlite":
		need("SQLITE_PATH", c.SQLitePath)
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be mysql or sqlite, got %q", c.DBDriver))
	}
	switch c.IdentityMode {
	case "jwt":
		need("JWT_SECRET", c.JWTSecret)
	case "rpc":
		need("AUTH_SERVICE_ADDR", c.AuthServiceAddr)
	default:
		errs = append(errs, fmt.Errorf("IDENTITY_MODE must be jwt or rpc, got %q", c.IdentityMode))
	}
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("missing required config: %s", strings.Join(missing, ", ")))
	}
	return errors.Join(errs...)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
