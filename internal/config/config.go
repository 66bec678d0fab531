// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"

	otpdomain "otp-verification-service/internal/otp/domain"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// HTTPAddr is the address the JSON API listens on (e.g. :8081).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address the gRPC health server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`

	// DatabaseURL is the Postgres DSN. Empty selects the in-memory stores (development only).
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// DBMaxOpenConns bounds the process-wide connection pool.
	DBMaxOpenConns int `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns int `mapstructure:"DB_MAX_IDLE_CONNS"`
	// TrustedProxies is a comma-separated list of proxy IPs or CIDRs whose X-Forwarded-For and X-Real-IP
	// headers are honored. Empty means the TCP peer address is always the client address.
	TrustedProxies string `mapstructure:"TRUSTED_PROXIES"`
	// AuthRateLimitWindowMS and AuthRateLimitMaxRequests bound OTP API calls per client IP.
	// A non-positive max disables the limiter.
	AuthRateLimitWindowMS    int `mapstructure:"AUTH_RATE_LIMIT_WINDOW_MS"`
	AuthRateLimitMaxRequests int `mapstructure:"AUTH_RATE_LIMIT_MAX_REQUESTS"`
	// StoreTimeout is the deadline applied to every challenge store operation (e.g. "5s").
	StoreTimeout string `mapstructure:"STORE_TIMEOUT"`

	OTPLength                  int  `mapstructure:"OTP_LENGTH"`
	OTPExpiryMinutes           int  `mapstructure:"OTP_EXPIRY_MINUTES"`
	OTPResendCooldownSeconds   int  `mapstructure:"OTP_RESEND_COOLDOWN_SECONDS"`
	OTPMaxIssuancePerDevice    int  `mapstructure:"OTP_MAX_ISSUANCE_PER_DEVICE"`
	OTPIssuanceWindowMinutes   int  `mapstructure:"OTP_ISSUANCE_WINDOW_MINUTES"`
	OTPAccountFanoutMultiplier int  `mapstructure:"OTP_ACCOUNT_FANOUT_MULTIPLIER"`
	OTPMaxAttempts             int  `mapstructure:"OTP_MAX_ATTEMPTS"`
	OTPStrictDeviceBinding     bool `mapstructure:"OTP_STRICT_DEVICE_BINDING"`
	OTPCleanupIntervalMinutes  int  `mapstructure:"OTP_CLEANUP_INTERVAL_MINUTES"`
	OTPCleanupOnStartup        bool `mapstructure:"OTP_CLEANUP_ON_STARTUP"`
	// OTPReturnToClient when true enables dev OTP mode: no email, codes readable via GET /dev/otp/{processId}.
	// Must not be true when Env is production.
	OTPReturnToClient bool `mapstructure:"OTP_RETURN_TO_CLIENT"`

	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; enables reset grants.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	JWTIssuer    string `mapstructure:"JWT_ISSUER"`
	JWTAudience  string `mapstructure:"JWT_AUDIENCE"`
	// ResetGrantTTL is the lifetime of the grant minted after a reset verification (e.g. "10m").
	ResetGrantTTL string `mapstructure:"RESET_GRANT_TTL"`

	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUser     string `mapstructure:"SMTP_USER"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	OTLPEndpoint    string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure    bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	OTelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// TelemetryKafkaBrokers is a comma-separated list of Kafka broker addresses. Empty disables the Kafka producer.
	TelemetryKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	TelemetryKafkaTopic   string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`

	// Worker-only: Loki URL the telemetry worker pushes to (e.g. http://localhost:3100).
	LokiURL      string `mapstructure:"LOKI_URL"`
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "")
	v.SetDefault("HTTP_ADDR", ":8081")
	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("STORE_TIMEOUT", "5s")
	v.SetDefault("TRUSTED_PROXIES", "")
	v.SetDefault("AUTH_RATE_LIMIT_WINDOW_MS", 300000)
	v.SetDefault("AUTH_RATE_LIMIT_MAX_REQUESTS", 5)
	v.SetDefault("OTP_LENGTH", 6)
	v.SetDefault("OTP_EXPIRY_MINUTES", 5)
	v.SetDefault("OTP_RESEND_COOLDOWN_SECONDS", 60)
	v.SetDefault("OTP_MAX_ISSUANCE_PER_DEVICE", 5)
	v.SetDefault("OTP_ISSUANCE_WINDOW_MINUTES", 5)
	v.SetDefault("OTP_ACCOUNT_FANOUT_MULTIPLIER", 3)
	v.SetDefault("OTP_MAX_ATTEMPTS", 3)
	v.SetDefault("OTP_STRICT_DEVICE_BINDING", false)
	v.SetDefault("OTP_CLEANUP_INTERVAL_MINUTES", 60)
	v.SetDefault("OTP_CLEANUP_ON_STARTUP", true)
	v.SetDefault("OTP_RETURN_TO_CLIENT", false)
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "otp-auth")
	v.SetDefault("JWT_AUDIENCE", "otp-reset")
	v.SetDefault("RESET_GRANT_TTL", "10m")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "no-reply@localhost")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "otp-verification-service")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "otp-events")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "otp-events-worker")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.GRPCAddr == "" {
		return nil, errors.New("config: GRPC_ADDR must be set")
	}
	if cfg.OTPReturnToClient && cfg.Env == "production" {
		return nil, errors.New("config: OTP_RETURN_TO_CLIENT must not be true when APP_ENV=production")
	}
	if cfg.OTPLength < 4 || cfg.OTPLength > 10 {
		return nil, errors.New("config: OTP_LENGTH must be between 4 and 10")
	}
	if cfg.OTPExpiryMinutes <= 0 {
		return nil, errors.New("config: OTP_EXPIRY_MINUTES must be positive")
	}
	if cfg.OTPResendCooldownSeconds < 0 {
		return nil, errors.New("config: OTP_RESEND_COOLDOWN_SECONDS must not be negative")
	}
	if cfg.OTPMaxIssuancePerDevice <= 0 || cfg.OTPAccountFanoutMultiplier <= 0 {
		return nil, errors.New("config: OTP_MAX_ISSUANCE_PER_DEVICE and OTP_ACCOUNT_FANOUT_MULTIPLIER must be positive")
	}
	if cfg.OTPIssuanceWindowMinutes <= 0 {
		return nil, errors.New("config: OTP_ISSUANCE_WINDOW_MINUTES must be positive")
	}
	if cfg.OTPMaxAttempts <= 0 {
		return nil, errors.New("config: OTP_MAX_ATTEMPTS must be positive")
	}
	if cfg.OTPCleanupIntervalMinutes <= 0 {
		return nil, errors.New("config: OTP_CLEANUP_INTERVAL_MINUTES must be positive")
	}
	if cfg.AuthRateLimitMaxRequests > 0 && cfg.AuthRateLimitWindowMS <= 0 {
		return nil, errors.New("config: AUTH_RATE_LIMIT_WINDOW_MS must be positive when the auth rate limit is enabled")
	}
	if cfg.DBMaxOpenConns <= 0 {
		cfg.DBMaxOpenConns = 20
	}

	return &cfg, nil
}

// OTPPolicy builds the OTP policy value object from the loaded configuration.
func (c *Config) OTPPolicy() otpdomain.Policy {
	return otpdomain.Policy{
		CodeLength:              c.OTPLength,
		TTL:                     time.Duration(c.OTPExpiryMinutes) * time.Minute,
		ResendCooldown:          time.Duration(c.OTPResendCooldownSeconds) * time.Second,
		MaxIssuancePerDevice:    c.OTPMaxIssuancePerDevice,
		IssuanceWindow:          time.Duration(c.OTPIssuanceWindowMinutes) * time.Minute,
		AccountFanoutMultiplier: c.OTPAccountFanoutMultiplier,
		MaxVerificationAttempts: c.OTPMaxAttempts,
		StrictDeviceBinding:     c.OTPStrictDeviceBinding,
		CleanupInterval:         time.Duration(c.OTPCleanupIntervalMinutes) * time.Minute,
		CleanupOnStartup:        c.OTPCleanupOnStartup,
	}
}

// StoreOpTimeout parses StoreTimeout as a time.Duration. Returns 5s if unset or invalid.
func (c *Config) StoreOpTimeout() time.Duration {
	d, err := time.ParseDuration(c.StoreTimeout)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

// GrantTTL parses ResetGrantTTL as a time.Duration. Returns 10m if unset or invalid.
func (c *Config) GrantTTL() time.Duration {
	d, err := time.ParseDuration(c.ResetGrantTTL)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// AuthRateLimitWindow returns the auth rate limit window as a time.Duration.
func (c *Config) AuthRateLimitWindow() time.Duration {
	return time.Duration(c.AuthRateLimitWindowMS) * time.Millisecond
}

// TrustedProxyList returns the trusted proxy entries from the comma-separated config.
func (c *Config) TrustedProxyList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.TrustedProxies)
}

// TelemetryKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if the Kafka producer is enabled (non-empty list) and to create it.
func (c *Config) TelemetryKafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.TelemetryKafkaBrokers)
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
