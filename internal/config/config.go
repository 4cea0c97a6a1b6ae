package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Purchase stock modes. Symmetric keeps the stock ledger consistent with
// the invoice store on edits and deletes; legacy reproduces the old
// cumulative behavior where every re-save adds on top.
const (
	PurchaseStockSymmetric = "symmetric"
	PurchaseStockLegacy    = "legacy"
)

type Config struct {
	Port                    string
	AllowedOrigin           string
	SQLitePath              string
	DataDir                 string
	RedisAddr               string
	RedisPassword           string
	RedisDB                 int
	CustomerCacheTTLSeconds int
	AuthSecret              string
	AccessTokenTTLMinutes   int
	PurchaseStockMode       string
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	ttl, err := strconv.Atoi(getEnv("CUSTOMER_CACHE_TTL_SECONDS", "300"))
	if err != nil || ttl < 1 {
		ttl = 300
	}
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}
	stockMode := strings.ToLower(getEnv("PURCHASE_STOCK_MODE", PurchaseStockSymmetric))
	if stockMode != PurchaseStockLegacy {
		stockMode = PurchaseStockSymmetric
	}

	cfg := Config{
		Port:                    getEnv("PORT", "8080"),
		AllowedOrigin:           getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		SQLitePath:              os.Getenv("SQLITE_PATH"),
		DataDir:                 getEnv("DATA_DIR", "data"),
		RedisAddr:               os.Getenv("REDIS_ADDR"),
		RedisPassword:           os.Getenv("REDIS_PASSWORD"),
		RedisDB:                 redisDB,
		CustomerCacheTTLSeconds: ttl,
		AuthSecret:              strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes:   tokenTTL,
		PurchaseStockMode:       stockMode,
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
