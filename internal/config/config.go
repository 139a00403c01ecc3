package config

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServerAddr     string
	LogLevel       string
	AllowedOrigins []string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Access and refresh tokens are signed with distinct secrets so a
	// leaked access secret cannot mint refresh tokens.
	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration

	// CookieSecure marks auth cookies Secure; leave off for local http dev.
	CookieSecure bool

	RedisAddr string

	// MinIO/S3 configuration for cover images
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

func Load() *Config {
	accessTTL := getDurationOrDefault("ACCESS_TOKEN_TTL", 7*24*time.Hour)
	refreshTTL := getDurationOrDefault("REFRESH_TOKEN_TTL", 30*24*time.Hour)
	minioUseSSL, _ := strconv.ParseBool(getEnvOrDefault("MINIO_USE_SSL", "false"))
	cookieSecure, _ := strconv.ParseBool(getEnvOrDefault("COOKIE_SECURE", "false"))

	return &Config{
		ServerAddr:         getEnvOrDefault("SERVER_ADDR", ":8080"),
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
		AllowedOrigins:     splitList(getEnvOrDefault("ALLOWED_ORIGINS", "http://localhost:3000")),
		DBHost:             getEnvOrDefault("DB_HOST", "localhost"),
		DBPort:             getEnvOrDefault("DB_PORT", "5432"),
		DBUser:             getEnvOrDefault("DB_USER", "openblog"),
		DBPassword:         getEnvOrDefault("DB_PASSWORD", "openblog_dev_password"),
		DBName:             getEnvOrDefault("DB_NAME", "openblog"),
		AccessTokenSecret:  getEnvOrDefault("ACCESS_TOKEN_SECRET", generateDefaultSecret()),
		RefreshTokenSecret: getEnvOrDefault("REFRESH_TOKEN_SECRET", generateDefaultSecret()),
		AccessTokenTTL:     accessTTL,
		RefreshTokenTTL:    refreshTTL,
		CookieSecure:       cookieSecure,
		RedisAddr:          getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		MinioEndpoint:      getEnvOrDefault("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey:     getEnvOrDefault("MINIO_ACCESS_KEY", "minioadmin"),
		MinioSecretKey:     getEnvOrDefault("MINIO_SECRET_KEY", "minioadmin"),
		MinioBucket:        getEnvOrDefault("MINIO_BUCKET", "blog-media"),
		MinioUseSSL:        minioUseSSL,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func generateDefaultSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "dev-secret-change-in-production"
	}
	return hex.EncodeToString(bytes)
}
