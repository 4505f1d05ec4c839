package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Infrastructure
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	ListenAddr    string
	MetricsAddr   string

	// Analysis
	ReferenceCity    string
	TransportCostPct float64

	// Basket (comma-separated product names)
	BasketProducts string

	// RefreshCronSpec schedules the weekly cache rewarm.
	RefreshCronSpec string

	// WebhookURL receives price alerts after a rewarm; empty disables.
	WebhookURL string
}

// Load reads configuration from environment variables with sensible
// defaults, after loading a .env file when one is present.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[config] skipping .env: %v", err)
	}

	return &Config{
		SQLitePath:    getEnv("SQLITE_PATH", "data/fruver.db"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		ListenAddr:    getEnv("LISTEN_ADDR", ":8080"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),

		ReferenceCity:    getEnv("REFERENCE_CITY", "bogota"),
		TransportCostPct: getEnvFloat("TRANSPORT_COST_PCT", 15),

		BasketProducts: getEnv("BASKET_PRODUCTS",
			"papa,tomate,cebolla,zanahoria,platano,yuca,arroz,frijol"),

		// Source data lands weekly; rewarm Mondays at 06:00.
		RefreshCronSpec: getEnv("REFRESH_CRON", "0 6 * * 1"),

		WebhookURL: getEnv("WEBHOOK_URL", ""),
	}
}

// ParseBasket parses the BasketProducts string into a product list.
func (c *Config) ParseBasket() []string {
	parts := strings.Split(c.BasketProducts, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return f
}
