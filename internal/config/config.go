package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds environment-driven configuration.
type Config struct {
	Addr             string
	DatabaseURL      string
	JWTSecret        string
	LogLevel         string
	LogFormat        string
	CatalogCacheTTL  time.Duration
	StatsDefaultDays int
	TaxRate          decimal.Decimal
	ShippingCost     decimal.Decimal
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first when present.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr:             getEnv("STOREFRONT_ADDR", ":8080"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "json"),
		CatalogCacheTTL:  getDuration("CATALOG_CACHE_TTL", 30*time.Second),
		StatsDefaultDays: getInt("ORDER_STATS_DEFAULT_DAYS", 30),
		TaxRate:          getDecimal("CHECKOUT_TAX_RATE", decimal.Zero, decimal.NewFromInt(100)),
		ShippingCost:     getDecimal("CHECKOUT_SHIPPING_COST", decimal.Zero, decimal.Zero),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// getDecimal reads a non-negative amount. A positive limit caps it; values
// outside the range fall back.
func getDecimal(key string, fallback, limit decimal.Decimal) decimal.Decimal {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() || (limit.IsPositive() && d.GreaterThan(limit)) {
		return fallback
	}
	return d
}
