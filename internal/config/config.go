package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from config.yaml or environment variables
// (nested keys map to env names with "_", e.g. jwt.secret -> JWT_SECRET).
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	S3         S3Config         `mapstructure:"s3"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	OTP        OTPConfig        `mapstructure:"otp"`
	Mail       MailConfig       `mapstructure:"mail"`
	Stripe     StripeConfig     `mapstructure:"stripe"`
	Khalti     KhaltiConfig     `mapstructure:"khalti"`
	QR         QRConfig         `mapstructure:"qr"`
	Attendance AttendanceConfig `mapstructure:"attendance"`
	AI         AIConfig         `mapstructure:"ai"`
	Log        LogConfig        `mapstructure:"log"`
	Sentry     SentryConfig     `mapstructure:"sentry"`
	CORS       CORSConfig       `mapstructure:"cors"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	FrontendBaseURL string `mapstructure:"frontend_base_url"` // used to build payment return links and reset links
	ReleaseMode     bool   `mapstructure:"release_mode"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // "mongo" | "memory"
	URI    string `mapstructure:"uri"`
	Name   string `mapstructure:"name"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// JWTConfig defines JWT specific configuration
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
	Issuer     string        `mapstructure:"issuer"`
}

// OTPConfig controls email verification codes.
type OTPConfig struct {
	Length         int           `mapstructure:"length"`
	TTL            time.Duration `mapstructure:"ttl"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	ResendCooldown time.Duration `mapstructure:"resend_cooldown"`
	// ResetTimeout is how long a password reset link stays valid.
	ResetTimeout time.Duration `mapstructure:"reset_timeout"`
}

// MailConfig selects the email transport. Provider "console" logs messages
// instead of sending them, which is what local development uses.
type MailConfig struct {
	Provider       string `mapstructure:"provider"` // "sendgrid" | "console"
	SendGridAPIKey string `mapstructure:"sendgrid_api_key"`
	AppName        string `mapstructure:"app_name"`
	FromEmail      string `mapstructure:"from_email"`
}

type StripeConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

type KhaltiConfig struct {
	SecretKey  string `mapstructure:"secret_key"`
	BaseURL    string `mapstructure:"base_url"`
	WebsiteURL string `mapstructure:"website_url"`
}

// QRConfig controls the attendance check-in codes displayed at the gym.
type QRConfig struct {
	TokenTTL time.Duration `mapstructure:"token_ttl"`
	Size     int           `mapstructure:"size"`
}

type AttendanceConfig struct {
	RequireMembership bool   `mapstructure:"require_membership"`
	Timezone          string `mapstructure:"timezone"`
}

// AIConfig points at an OpenAI compatible chat completions endpoint.
// Leaving APIKey empty disables AI drafts; the generic templates are used instead.
type AIConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	APIURL  string        `mapstructure:"api_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "console" | "json"
}

type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}

type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

var ErrMissingJWTSecret = errors.New("config: jwt.secret is required")

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// server.address -> SERVER_ADDRESS, jwt.expiration -> JWT_EXPIRATION
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	setDefaults(v)

	err = v.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// No file is fine, env vars and defaults are enough.
		err = nil
	} else if err != nil {
		return
	}

	// time.Duration fields are decoded from strings like "10m".
	if err = v.Unmarshal(&config); err != nil {
		return
	}

	if err = config.Validate(); err != nil {
		return
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.frontend_base_url", "http://localhost:3000")
	v.SetDefault("server.release_mode", false)

	v.SetDefault("database.driver", "mongo")
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "gym_app")

	v.SetDefault("s3.use_ssl", true)

	// Registered so AutomaticEnv can see them during Unmarshal.
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiration", "24h")
	v.SetDefault("jwt.issuer", "gym-app")

	v.SetDefault("otp.length", 6)
	v.SetDefault("otp.ttl", "10m")
	v.SetDefault("otp.max_attempts", 5)
	v.SetDefault("otp.resend_cooldown", "60s")
	v.SetDefault("otp.reset_timeout", "72h")

	v.SetDefault("mail.provider", "console")
	v.SetDefault("mail.sendgrid_api_key", "")
	v.SetDefault("mail.app_name", "Gym App")
	v.SetDefault("mail.from_email", "noreply@gym.local")

	v.SetDefault("stripe.secret_key", "")
	v.SetDefault("stripe.webhook_secret", "")

	v.SetDefault("khalti.secret_key", "")
	v.SetDefault("khalti.base_url", "https://dev.khalti.com/api/v2")
	v.SetDefault("khalti.website_url", "http://localhost:3000")

	v.SetDefault("qr.token_ttl", "5m")
	v.SetDefault("qr.size", 256)

	v.SetDefault("attendance.require_membership", true)
	v.SetDefault("attendance.timezone", "UTC")

	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.api_url", "https://api.openai.com/v1/chat/completions")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.timeout", "30s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "development")

	v.SetDefault("cors.allow_origins", []string{"http://localhost:3000"})
}

// Validate checks the settings the server cannot start without.
func (c Config) Validate() error {
	if c.JWT.Secret == "" {
		return ErrMissingJWTSecret
	}
	if c.OTP.Length < 4 || c.OTP.Length > 10 {
		return errors.New("config: otp.length must be between 4 and 10")
	}
	if c.OTP.MaxAttempts <= 0 {
		return errors.New("config: otp.max_attempts must be positive")
	}
	if c.Database.Driver != "mongo" && c.Database.Driver != "memory" {
		return errors.New("config: database.driver must be mongo or memory")
	}
	switch c.Mail.Provider {
	case "console":
	case "sendgrid":
		if c.Mail.SendGridAPIKey == "" {
			return errors.New("config: mail.sendgrid_api_key is required for the sendgrid provider")
		}
	default:
		return errors.New("config: unknown mail.provider " + c.Mail.Provider)
	}
	return nil
}

// Location returns the timezone attendance days are bucketed in.
func (a AttendanceConfig) Location() *time.Location {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
