package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port                      string
	VerifyToken               string
	WhatsAppToken             string
	PhoneNumberID             string
	WhatsAppBusinessAccountID string
	GraphAPIURL               string

	DBDriver    string
	DBPath      string
	DatabaseURL string

	UploadDir       string
	UploadURLPrefix string

	ProbeTimeout     time.Duration
	ProbeConcurrency int
	ProjectCacheTTL  time.Duration

	JWTSecret    string
	JWTIssuer    string
	JWTExpiresIn time.Duration
	BotName      string

	LogLevel    string
	LogFormat   string
	CORSOrigins []string
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Warn().Err(err).Msg("No .env file loaded, relying on environment variables")
	}

	return &Config{
		Port:                      getEnv("PORT", "8080"),
		VerifyToken:               getEnv("VERIFY_TOKEN", ""),
		WhatsAppToken:             getEnv("WHATSAPP_TOKEN", ""),
		PhoneNumberID:             getEnv("PHONE_NUMBER_ID", ""),
		WhatsAppBusinessAccountID: getEnv("WABA_ID", ""),
		GraphAPIURL:               getEnv("GRAPH_API_URL", "https://graph.facebook.com/v21.0"),
		DBDriver:                  getEnv("DB_DRIVER", "sqlite"),
		DBPath:                    getEnv("DB_PATH", "./whatsapp.db"),
		DatabaseURL:               getEnv("DATABASE_URL", ""),
		UploadDir:                 getEnv("UPLOAD_DIR", "./public/uploads"),
		UploadURLPrefix:           getEnv("UPLOAD_URL_PREFIX", "/uploads"),
		ProbeTimeout:              getDuration("PROBE_TIMEOUT", 60*time.Second),
		ProbeConcurrency:          getInt("PROBE_CONCURRENCY", 8),
		ProjectCacheTTL:           getDuration("PROJECT_CACHE_TTL", 30*time.Second),
		JWTSecret:                 getEnv("JWT_SECRET", ""),
		JWTIssuer:                 getEnv("JWT_ISSUER", ""),
		JWTExpiresIn:              getDuration("JWT_EXPIRES_IN", 24*time.Hour),
		BotName:                   getEnv("BOT_NAME", "Alessandro"),
		LogLevel:                  getEnv("LOG_LEVEL", "info"),
		LogFormat:                 getEnv("LOG_FORMAT", "console"),
		CORSOrigins:               splitList(getEnv("CORS_ORIGINS", "*")),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Warn().Str("key", key).Str("value", raw).Dur("fallback", fallback).Msg("Invalid duration, using default")
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.Warn().Str("key", key).Str("value", raw).Int("fallback", fallback).Msg("Invalid integer, using default")
		return fallback
	}
	return n
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
