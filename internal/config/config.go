package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	minSecretLength = 32
)

type Config struct {
	AppEnv   string
	HTTPAddr string
	LogLevel string

	DatabaseDriver string
	DatabaseURL    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTIssuer          string
	JWTAudience        string
	JWTAccessSecret    string
	JWTRefreshSecret   string
	JWTAccessTTL       time.Duration
	JWTRefreshTTL      time.Duration
	SessionTTL         time.Duration
	RefreshTokenPepper string

	VerificationCodeTTL time.Duration
	ResetCodeTTL        time.Duration
	BcryptCost          int

	SMTPHost        string
	SMTPPort        int
	SMTPUsername    string
	SMTPPassword    string
	MailFromName    string
	MailFromAddress string
	MailWorkers     int
	MailQueueSize   int

	CORSAllowedOrigins         []string
	AuthRateLimitRPM           int
	PasswordForgotRateLimitRPM int
	APIRateLimitRPM            int
	CodeEmailRateLimit         int
	CodeEmailRateWindow        time.Duration

	SessionCleanupInterval time.Duration
	ShutdownTimeout        time.Duration

	SentryDSN string

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsEnabled        bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
	OTELMetricsExportInterval time.Duration
}

func (c *Config) IsProduction() bool {
	return normalizeConfigProfile(c.AppEnv) == EnvProduction
}

// Load reads configuration from the environment, optionally seeded from the
// dotenv file named by CONFIG_FILE. Real environment variables win over the file.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	if path := strings.TrimSpace(v.GetString("CONFIG_FILE")); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				err = fmt.Errorf("read config file %s: %w", path, err)
				recordConfigValidationEvent(context.Background(), v.GetString("APP_ENV"), "error", classifyConfigLoadError(err))
				return nil, err
			}
		}
	}

	cfg, err := fromViper(v)
	if err == nil {
		err = cfg.Validate()
	}
	recordConfigValidationEvent(context.Background(), v.GetString("APP_ENV"), outcome(err), classifyConfigLoadError(err))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", EnvDevelopment)
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATABASE_DRIVER", "postgres")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_ISSUER", "timber-backend")
	v.SetDefault("JWT_AUDIENCE", "timber-web")
	v.SetDefault("JWT_ACCESS_TTL", "10m")
	v.SetDefault("JWT_REFRESH_TTL", "720h")
	v.SetDefault("SESSION_TTL", "720h")
	v.SetDefault("VERIFICATION_CODE_TTL", "15m")
	v.SetDefault("RESET_CODE_TTL", "10m")
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("MAIL_FROM_NAME", "Timber")
	v.SetDefault("MAIL_WORKERS", 2)
	v.SetDefault("MAIL_QUEUE_SIZE", 256)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("AUTH_RATE_LIMIT_RPM", 30)
	v.SetDefault("PASSWORD_FORGOT_RATE_LIMIT_RPM", 5)
	v.SetDefault("API_RATE_LIMIT_RPM", 300)
	v.SetDefault("CODE_EMAIL_RATE_LIMIT", 5)
	v.SetDefault("CODE_EMAIL_RATE_WINDOW", "15m")
	v.SetDefault("SESSION_CLEANUP_INTERVAL", "1h")
	v.SetDefault("SHUTDOWN_TIMEOUT", "15s")
	v.SetDefault("OTEL_SERVICE_NAME", "timber-backend")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", true)
	v.SetDefault("OTEL_METRICS_EXPORT_INTERVAL", "15s")
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		AppEnv:                     normalizeConfigProfile(v.GetString("APP_ENV")),
		HTTPAddr:                   v.GetString("HTTP_ADDR"),
		LogLevel:                   v.GetString("LOG_LEVEL"),
		DatabaseDriver:             strings.ToLower(strings.TrimSpace(v.GetString("DATABASE_DRIVER"))),
		DatabaseURL:                strings.TrimSpace(v.GetString("DATABASE_URL")),
		RedisAddr:                  strings.TrimSpace(v.GetString("REDIS_ADDR")),
		RedisPassword:              v.GetString("REDIS_PASSWORD"),
		RedisDB:                    v.GetInt("REDIS_DB"),
		JWTIssuer:                  v.GetString("JWT_ISSUER"),
		JWTAudience:                v.GetString("JWT_AUDIENCE"),
		JWTAccessSecret:            v.GetString("JWT_ACCESS_SECRET"),
		JWTRefreshSecret:           v.GetString("JWT_REFRESH_SECRET"),
		RefreshTokenPepper:         v.GetString("REFRESH_TOKEN_PEPPER"),
		BcryptCost:                 v.GetInt("BCRYPT_COST"),
		SMTPHost:                   strings.TrimSpace(v.GetString("SMTP_HOST")),
		SMTPPort:                   v.GetInt("SMTP_PORT"),
		SMTPUsername:               v.GetString("SMTP_USERNAME"),
		SMTPPassword:               v.GetString("SMTP_PASSWORD"),
		MailFromName:               v.GetString("MAIL_FROM_NAME"),
		MailFromAddress:            v.GetString("MAIL_FROM_ADDRESS"),
		MailWorkers:                v.GetInt("MAIL_WORKERS"),
		MailQueueSize:              v.GetInt("MAIL_QUEUE_SIZE"),
		CORSAllowedOrigins:         splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		AuthRateLimitRPM:           v.GetInt("AUTH_RATE_LIMIT_RPM"),
		PasswordForgotRateLimitRPM: v.GetInt("PASSWORD_FORGOT_RATE_LIMIT_RPM"),
		APIRateLimitRPM:            v.GetInt("API_RATE_LIMIT_RPM"),
		CodeEmailRateLimit:         v.GetInt("CODE_EMAIL_RATE_LIMIT"),
		SentryDSN:                  strings.TrimSpace(v.GetString("SENTRY_DSN")),
		OTELServiceName:            v.GetString("OTEL_SERVICE_NAME"),
		OTELEnvironment:            v.GetString("OTEL_ENVIRONMENT"),
		OTELExporterOTLPEndpoint:   v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTELExporterOTLPInsecure:   v.GetBool("OTEL_EXPORTER_OTLP_INSECURE"),
		OTELMetricsEnabled:         v.GetBool("OTEL_METRICS_ENABLED"),
		OTELTracingEnabled:         v.GetBool("OTEL_TRACING_ENABLED"),
		OTELLogsEnabled:            v.GetBool("OTEL_LOGS_ENABLED"),
	}
	if cfg.OTELEnvironment == "" {
		cfg.OTELEnvironment = cfg.AppEnv
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"JWT_ACCESS_TTL", &cfg.JWTAccessTTL},
		{"JWT_REFRESH_TTL", &cfg.JWTRefreshTTL},
		{"SESSION_TTL", &cfg.SessionTTL},
		{"VERIFICATION_CODE_TTL", &cfg.VerificationCodeTTL},
		{"RESET_CODE_TTL", &cfg.ResetCodeTTL},
		{"CODE_EMAIL_RATE_WINDOW", &cfg.CodeEmailRateWindow},
		{"SESSION_CLEANUP_INTERVAL", &cfg.SessionCleanupInterval},
		{"SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout},
		{"OTEL_METRICS_EXPORT_INTERVAL", &cfg.OTELMetricsExportInterval},
	}
	for _, d := range durations {
		parsed, err := time.ParseDuration(strings.TrimSpace(v.GetString(d.key)))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = parsed
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var problems []string
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		problems = append(problems, fmt.Sprintf("DATABASE_DRIVER %q is not supported", c.DatabaseDriver))
	}
	if c.DatabaseURL == "" {
		problems = append(problems, "DATABASE_URL is required")
	}
	if c.JWTAccessSecret == "" || c.JWTRefreshSecret == "" {
		problems = append(problems, "JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required")
	}
	if c.IsProduction() {
		if len(c.JWTAccessSecret) < minSecretLength || len(c.JWTRefreshSecret) < minSecretLength {
			problems = append(problems, fmt.Sprintf("JWT secrets must be at least %d bytes in production", minSecretLength))
		}
		if c.JWTAccessSecret == c.JWTRefreshSecret {
			problems = append(problems, "JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
		}
		if c.RefreshTokenPepper == "" {
			problems = append(problems, "REFRESH_TOKEN_PEPPER is required in production")
		}
		if c.SMTPHost == "" {
			problems = append(problems, "SMTP_HOST is required in production")
		}
	}
	if c.JWTAccessTTL <= 0 || c.JWTRefreshTTL <= 0 || c.SessionTTL <= 0 {
		problems = append(problems, "token and session TTLs must be positive")
	}
	if c.VerificationCodeTTL <= 0 || c.ResetCodeTTL <= 0 {
		problems = append(problems, "one-time code TTLs must be positive")
	}
	if c.CodeEmailRateLimit <= 0 || c.CodeEmailRateWindow <= 0 {
		problems = append(problems, "CODE_EMAIL_RATE_LIMIT and CODE_EMAIL_RATE_WINDOW must be positive")
	}
	if c.SMTPHost != "" && c.MailFromAddress == "" {
		problems = append(problems, "MAIL_FROM_ADDRESS is required when SMTP_HOST is set")
	}
	if len(problems) > 0 {
		return fmt.Errorf("validate config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
