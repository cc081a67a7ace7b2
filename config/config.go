package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// PaymentCallbackPath is appended to the client base URL to build the gateway callback.
const PaymentCallbackPath = "/dashboard/confirm-payment"

// Config holds application configuration
type Config struct {
	ServiceName  string `validate:"required"`
	OTELEndpoint string `validate:"required"`
	Port         string `validate:"required,numeric"`

	Database DatabaseConfig

	PaystackBaseURL   string        `validate:"required,url"`
	PaystackSecretKey string        `validate:"required"`
	GatewayTimeout    time.Duration `validate:"gt=0"`
	ClientBaseURL     string        `validate:"required,url"`

	// DollarToNaira converts bill amounts (USD) into payment currency (NGN).
	// Clients must use the same value.
	DollarToNaira     decimal.Decimal
	ApplicationFeeUSD decimal.Decimal

	JWTSecret          string `validate:"required"`
	CORSAllowedOrigins []string
}

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	Host     string `validate:"required"`
	Port     string `validate:"required,numeric"`
	User     string `validate:"required"`
	Password string
	Name     string `validate:"required"`
	SSLMode  string `validate:"oneof=disable allow prefer require verify-ca verify-full"`
}

// DSN renders the connection string understood by the postgres driver.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   net.JoinHostPort(d.Host, d.Port),
		Path:   "/" + d.Name,
		RawQuery: url.Values{
			"sslmode":          {d.SSLMode},
			"application_name": {"billing-service"},
		}.Encode(),
	}
	return u.String()
}

// PaymentCallbackURL is where the gateway sends the payer after checkout.
func (c *Config) PaymentCallbackURL() string {
	return strings.TrimRight(c.ClientBaseURL, "/") + PaymentCallbackPath
}

// Load loads configuration from environment variables, reading a .env file
// first when one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	rate, err := decimal.NewFromString(getEnv("DOLLAR_TO_NAIRA", "800"))
	if err != nil {
		return nil, fmt.Errorf("DOLLAR_TO_NAIRA: %w", err)
	}
	appFee, err := decimal.NewFromString(getEnv("APPLICATION_FEE_USD", "20"))
	if err != nil {
		return nil, fmt.Errorf("APPLICATION_FEE_USD: %w", err)
	}
	timeout, err := time.ParseDuration(getEnv("GATEWAY_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("GATEWAY_TIMEOUT: %w", err)
	}

	cfg := &Config{
		ServiceName:  getEnv("SERVICE_NAME", "billing-service"),
		OTELEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		Port:         getEnv("PORT", "8081"),
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     getEnv("DB_NAME", "billing"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		PaystackBaseURL:    getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		PaystackSecretKey:  os.Getenv("PAYSTACK_SECRET_KEY"),
		GatewayTimeout:     timeout,
		ClientBaseURL:      os.Getenv("CLIENT_BASE_URL"),
		DollarToNaira:      rate,
		ApplicationFeeUSD:  appFee,
		JWTSecret:          os.Getenv("JWT_SECRET"),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate refuses configurations the service cannot run with.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if !c.DollarToNaira.IsPositive() {
		return fmt.Errorf("invalid configuration: DOLLAR_TO_NAIRA must be positive")
	}
	if !c.ApplicationFeeUSD.IsPositive() || !c.ApplicationFeeUSD.Equal(c.ApplicationFeeUSD.Truncate(2)) {
		return fmt.Errorf("invalid configuration: APPLICATION_FEE_USD must be positive with at most two decimal places")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
