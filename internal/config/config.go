package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                   string
	AllowedOrigin          string
	DatabaseURL            string
	RedisAddr              string
	RedisPassword          string
	RedisDB                int
	DefaultBranchID        string
	MerchantName           string
	AuthSecret             string
	AccessTokenTTLMinutes  int
	KafkaBrokers           string
	KafkaTopic             string
	BlobDir                string
	BlobBaseURL            string
	CatalogCacheTTLSeconds int
	LogLevel               string
	LogFormat              string
}

// Load reads the environment. A .env file in the working directory, when
// present, fills variables that are not already set.
func Load() Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}
	cacheTTL, err := strconv.Atoi(getEnv("CATALOG_CACHE_TTL_SECONDS", "30"))
	if err != nil || cacheTTL < 1 {
		cacheTTL = 30
	}

	port := getEnv("PORT", "8080")
	cfg := Config{
		Port:                   port,
		AllowedOrigin:          getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                redisDB,
		DefaultBranchID:        getEnv("DEFAULT_BRANCH_ID", "main-branch"),
		MerchantName:           getEnv("MERCHANT_NAME", "Pure Gold Jewellers Faisalabad"),
		AuthSecret:             strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes:  tokenTTL,
		KafkaBrokers:           os.Getenv("KAFKA_BROKERS"),
		KafkaTopic:             getEnv("KAFKA_TOPIC", "puregold.sales"),
		BlobDir:                getEnv("BLOB_DIR", "./data/blobs"),
		BlobBaseURL:            getEnv("BLOB_BASE_URL", fmt.Sprintf("http://127.0.0.1:%s/blobs", port)),
		CatalogCacheTTLSeconds: cacheTTL,
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		LogFormat:              getEnv("LOG_FORMAT", "json"),
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
