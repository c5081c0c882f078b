package config

import (
	"os"
	"strconv"
	"time"

	"rewards_app/internal/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort     string
	DatabaseURL string // empty selects the in-memory store
	JWTSecret   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Reward amounts
	CheckinReward  int64
	WatchReward    int64
	ReferralReward int64
	SignupBonus    int64

	// Spin feature
	SpinCooldown time.Duration

	// API rate limiting
	APIRateLimit  int
	APIRateWindow time.Duration
}

// Load reads configuration from the environment (.env honored for local
// runs). JWT_SECRET is the only hard requirement.
func Load() *Config {
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Fatal("JWT_SECRET is not set")
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	return &Config{
		AppPort:       port,
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		JWTSecret:     jwtSecret,
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),

		CheckinReward:  envInt64("CHECKIN_REWARD", 10),
		WatchReward:    envInt64("WATCH_REWARD", 20),
		ReferralReward: envInt64("REFERRAL_REWARD", 300),
		SignupBonus:    envInt64("SIGNUP_BONUS", 50),

		SpinCooldown: envDuration("SPIN_COOLDOWN_SECONDS", time.Hour),

		APIRateLimit:  envInt("API_RATE_LIMIT", 60),
		APIRateWindow: envDuration("API_RATE_WINDOW_SECONDS", time.Minute),
	}
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func envInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return def
}
