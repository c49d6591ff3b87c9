package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port           string
	AppEnv         string
	LogLevel       string
	PublicURL      string
	AllowedOrigins []string
	MaxBodyBytes   int64
	RequestTimeout time.Duration

	MongoURI string
	DBName   string

	JWTSecret string
	JWTTTL    time.Duration

	Payment PaymentConfig

	RedisURL        string
	CatalogCacheTTL time.Duration

	RateLimitCheckout int
	RateLimitLogin    int
	RateLimitWindow   time.Duration

	Mail MailConfig
}

type PaymentConfig struct {
	Provider              string
	Currency              string
	StripeSecretKey       string
	StripeWebhookSecret   string
	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string
}

type MailConfig struct {
	Transport         string
	From              string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
	KafkaBrokers      string
	NotificationTopic string
}

// LoadEnv reads a .env file when one exists. Real environment variables win.
func LoadEnv() {
	_ = godotenv.Load()
}

func GetEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("PUBLIC_URL", "http://localhost:3000")
	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("MAX_BODY_BYTES", 1<<20)
	v.SetDefault("REQUEST_TIMEOUT", "10s")
	v.SetDefault("DB_NAME", "furnistore")
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("PAYMENT_PROVIDER", "stripe")
	v.SetDefault("CURRENCY", "usd")
	v.SetDefault("CATALOG_CACHE_TTL", "5m")
	v.SetDefault("RATE_LIMIT_CHECKOUT", 10)
	v.SetDefault("RATE_LIMIT_LOGIN", 20)
	v.SetDefault("RATE_LIMIT_WINDOW", "1m")
	v.SetDefault("MAIL_TRANSPORT", "log")
	v.SetDefault("MAIL_FROM", "Furnistore <orders@furnistore.local>")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("KAFKA_NOTIFICATION_TOPIC", "furnistore.notifications")
}

// Load builds the configuration from the environment (after LoadEnv).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Port:           v.GetString("PORT"),
		AppEnv:         strings.ToLower(v.GetString("APP_ENV")),
		LogLevel:       v.GetString("LOG_LEVEL"),
		PublicURL:      strings.TrimRight(v.GetString("PUBLIC_URL"), "/"),
		AllowedOrigins: splitCSV(v.GetString("ALLOWED_ORIGINS")),
		MaxBodyBytes:   v.GetInt64("MAX_BODY_BYTES"),
		RequestTimeout: v.GetDuration("REQUEST_TIMEOUT"),

		MongoURI: v.GetString("MONGO_URI"),
		DBName:   v.GetString("DB_NAME"),

		JWTSecret: v.GetString("JWT_SECRET"),
		JWTTTL:    v.GetDuration("JWT_TTL"),

		Payment: PaymentConfig{
			Provider:              strings.ToLower(v.GetString("PAYMENT_PROVIDER")),
			Currency:              strings.ToLower(v.GetString("CURRENCY")),
			StripeSecretKey:       v.GetString("STRIPE_SECRET_KEY"),
			StripeWebhookSecret:   v.GetString("STRIPE_WEBHOOK_SECRET"),
			RazorpayKeyID:         v.GetString("RAZORPAY_KEY_ID"),
			RazorpayKeySecret:     v.GetString("RAZORPAY_KEY_SECRET"),
			RazorpayWebhookSecret: v.GetString("RAZORPAY_WEBHOOK_SECRET"),
		},

		RedisURL:        v.GetString("REDIS_URL"),
		CatalogCacheTTL: v.GetDuration("CATALOG_CACHE_TTL"),

		RateLimitCheckout: v.GetInt("RATE_LIMIT_CHECKOUT"),
		RateLimitLogin:    v.GetInt("RATE_LIMIT_LOGIN"),
		RateLimitWindow:   v.GetDuration("RATE_LIMIT_WINDOW"),

		Mail: MailConfig{
			Transport:         strings.ToLower(v.GetString("MAIL_TRANSPORT")),
			From:              v.GetString("MAIL_FROM"),
			SMTPHost:          v.GetString("SMTP_HOST"),
			SMTPPort:          v.GetInt("SMTP_PORT"),
			SMTPUsername:      v.GetString("SMTP_USERNAME"),
			SMTPPassword:      v.GetString("SMTP_PASSWORD"),
			KafkaBrokers:      v.GetString("KAFKA_BROKERS"),
			NotificationTopic: v.GetString("KAFKA_NOTIFICATION_TOPIC"),
		},
	}

	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{cfg.PublicURL}
	}

	return cfg, cfg.Validate()
}

func (c *Config) Production() bool {
	return c.AppEnv == "production"
}

func (c *Config) Validate() error {
	var errs []error
	if c.MongoURI == "" {
		errs = append(errs, errors.New("MONGO_URI is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("MAX_BODY_BYTES must be positive"))
	}
	switch c.Payment.Provider {
	case "stripe":
		if c.Payment.StripeSecretKey == "" || c.Payment.StripeWebhookSecret == "" {
			errs = append(errs, errors.New("STRIPE_SECRET_KEY and STRIPE_WEBHOOK_SECRET are required"))
		}
	case "razorpay":
		if c.Payment.RazorpayKeyID == "" || c.Payment.RazorpayKeySecret == "" || c.Payment.RazorpayWebhookSecret == "" {
			errs = append(errs, errors.New("RAZORPAY_KEY_ID, RAZORPAY_KEY_SECRET and RAZORPAY_WEBHOOK_SECRET are required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown PAYMENT_PROVIDER %q", c.Payment.Provider))
	}
	switch c.Mail.Transport {
	case "log":
	case "smtp":
		if c.Mail.SMTPHost == "" {
			errs = append(errs, errors.New("SMTP_HOST is required for MAIL_TRANSPORT=smtp"))
		}
	case "kafka":
		if len(splitCSV(c.Mail.KafkaBrokers)) == 0 {
			errs = append(errs, errors.New("KAFKA_BROKERS is required for MAIL_TRANSPORT=kafka"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown MAIL_TRANSPORT %q", c.Mail.Transport))
	}
	return errors.Join(errs...)
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, strings.TrimRight(part, "/"))
		}
	}
	return out
}
