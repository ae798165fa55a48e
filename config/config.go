package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	GatewayRazorpay = "razorpay"
	GatewayPhonePe  = "phonepe"

	PhonePeSandboxURL    = "https://api-preprod.phonepe.com/apis/pg-sandbox"
	PhonePeProductionURL = "https://api.phonepe.com/apis/hermes"
)

// Config holds application configuration
type Config struct {
	ServiceName   string
	Port          string
	AllowedOrigin string
	Gateways      []string

	OTELEnabled  bool
	OTELEndpoint string

	Razorpay RazorpayConfig
	PhonePe  PhonePeConfig
	Kafka    KafkaConfig
}

// RazorpayConfig holds Razorpay API credentials
type RazorpayConfig struct {
	KeyID     string
	KeySecret string
}

// PhonePeConfig holds PhonePe merchant credentials and endpoints
type PhonePeConfig struct {
	MerchantID    string
	SaltKey       string
	SaltIndex     string
	BaseURL       string
	RedirectURL   string
	RedirectMode  string
	CallbackURL   string
	RelaxedInput  bool
	DefaultUserID string
	Timeout       time.Duration
}

// Complete reports whether the merchant credentials needed for signing are set.
func (c PhonePeConfig) Complete() bool {
	return c.MerchantID != "" && c.SaltKey != "" && c.SaltIndex != ""
}

// KafkaConfig configures the payment event publisher. Empty Brokers disables Kafka.
type KafkaConfig struct {
	Brokers   []string
	Topic     string
	QueueSize int // events waiting for the broker; further events are dropped
}

// Load reads configuration from the working directory.
func Load() (*Config, error) {
	return LoadFrom(".")
}

// LoadFrom reads configuration from defaults, an optional config.yaml, an
// optional .env file and environment variables, in increasing order of
// precedence. Both files are looked up in dir.
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetConfigFile(filepath.Join(dir, ".env"))
	v.SetConfigType("env")
	if err := v.MergeInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read .env file: %w", err)
	}
	v.AutomaticEnv()

	return fromViper(v), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVICE_NAME", "checkout-gateway")
	v.SetDefault("PORT", "5001")
	v.SetDefault("ALLOWED_ORIGIN", "http://localhost:8080")
	v.SetDefault("GATEWAYS", GatewayRazorpay+","+GatewayPhonePe)

	v.SetDefault("OTEL_ENABLED", true)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")

	v.SetDefault("RAZORPAY_KEY_ID", "")
	v.SetDefault("RAZORPAY_KEY_SECRET", "")

	v.SetDefault("PHONEPE_MERCHANT_ID", "")
	v.SetDefault("PHONEPE_SALT_KEY", "")
	v.SetDefault("PHONEPE_SALT_INDEX", "")
	v.SetDefault("PHONEPE_BASE_URL", PhonePeSandboxURL)
	v.SetDefault("PHONEPE_REDIRECT_URL", "http://localhost:8080/payment-status")
	v.SetDefault("PHONEPE_REDIRECT_MODE", "REDIRECT")
	v.SetDefault("PHONEPE_CALLBACK_URL", "http://localhost:5001/api/callback")
	v.SetDefault("PHONEPE_RELAXED_INPUT", false)
	v.SetDefault("PHONEPE_DEFAULT_USER_ID", "guest")
	v.SetDefault("PHONEPE_TIMEOUT", 10*time.Second)

	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_PAYMENT_EVENTS_TOPIC", "payment_events")
	v.SetDefault("KAFKA_EVENT_QUEUE_SIZE", 256)
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		ServiceName:   v.GetString("SERVICE_NAME"),
		Port:          v.GetString("PORT"),
		AllowedOrigin: v.GetString("ALLOWED_ORIGIN"),
		Gateways:      splitList(v.GetString("GATEWAYS")),
		OTELEnabled:   v.GetBool("OTEL_ENABLED"),
		OTELEndpoint:  v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Razorpay: RazorpayConfig{
			KeyID:     v.GetString("RAZORPAY_KEY_ID"),
			KeySecret: v.GetString("RAZORPAY_KEY_SECRET"),
		},
		PhonePe: PhonePeConfig{
			MerchantID:    v.GetString("PHONEPE_MERCHANT_ID"),
			SaltKey:       v.GetString("PHONEPE_SALT_KEY"),
			SaltIndex:     v.GetString("PHONEPE_SALT_INDEX"),
			BaseURL:       strings.TrimRight(v.GetString("PHONEPE_BASE_URL"), "/"),
			RedirectURL:   v.GetString("PHONEPE_REDIRECT_URL"),
			RedirectMode:  v.GetString("PHONEPE_REDIRECT_MODE"),
			CallbackURL:   v.GetString("PHONEPE_CALLBACK_URL"),
			RelaxedInput:  v.GetBool("PHONEPE_RELAXED_INPUT"),
			DefaultUserID: v.GetString("PHONEPE_DEFAULT_USER_ID"),
			Timeout:       v.GetDuration("PHONEPE_TIMEOUT"),
		},
		Kafka: KafkaConfig{
			Brokers:   splitList(v.GetString("KAFKA_BROKERS")),
			Topic:     v.GetString("KAFKA_PAYMENT_EVENTS_TOPIC"),
			QueueSize: v.GetInt("KAFKA_EVENT_QUEUE_SIZE"),
		},
	}
}

// GatewayEnabled reports whether the named gateway is listed in GATEWAYS.
func (c *Config) GatewayEnabled(name string) bool {
	for _, g := range c.Gateways {
		if strings.EqualFold(g, name) {
			return true
		}
	}
	return false
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
