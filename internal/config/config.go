package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// Database
	DatabaseURL string

	// Redis (확인 토큰 저장소)
	RedisURL string

	// JWT (게이트웨이가 발급한 토큰 검증용)
	JWTSecret string

	// Economy collaborator
	EconomyURL     string
	EconomyEnabled bool

	// Game resolution
	DefaultRaffleValue int           // raffle_ticket_reward가 0일 때 지급할 기본값
	ReAddDelay         time.Duration // 게임 종료 후 재입장 대기 시간
	ConfirmTokenTTL    time.Duration // 확인 토큰 만료 시간

	// Waitlist poller
	WaitlistPollInterval time.Duration

	// CORS
	CORSAllowedOrigins []string
}

func Load() (*Config, error) {
	// .env 파일 로드 (있는 경우)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		Env:                  getEnv("ENV", "development"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		RedisURL:             getEnv("REDIS_URL", "redis://localhost:6379"),
		JWTSecret:            getEnv("JWT_SECRET", "your-secret-key"),
		EconomyURL:           getEnv("ECONOMY_URL", "http://localhost:8082"),
		EconomyEnabled:       getEnvBool("ECONOMY_ENABLED", false),
		DefaultRaffleValue:   getEnvInt("DEFAULT_RAFFLE_VALUE", 5),
		ReAddDelay:           parseDuration(getEnv("RE_ADD_DELAY", "30s")),
		ConfirmTokenTTL:      parseDuration(getEnv("CONFIRM_TOKEN_TTL", "60s")),
		WaitlistPollInterval: parseDuration(getEnv("WAITLIST_POLL_INTERVAL", "5s")),
		CORSAllowedOrigins:   strings.Split(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"), ","),
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 30 * time.Second
	}
	return d
}
