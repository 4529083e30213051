package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all server settings, loaded from environment variables.
type Config struct {
	Addr string

	JWTSecret string

	HeartbeatInterval time.Duration
	PongWait          time.Duration
	WriteWait         time.Duration

	MaxMessageBytes int
	SendBuffer      int

	LocationRatePerSec float64
	LocationBurst      int

	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	RedisWorkers       int
	RedisQueueSize     int
	LocationTTLSeconds int
}

// Load reads configuration from the environment, falling back to defaults
// suitable for local development.
func Load() Config {
	return Config{
		Addr: getEnv("ADDR", ":8080"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		HeartbeatInterval: getEnvDuration("HEARTBEAT_INTERVAL_MS", 30000),
		PongWait:          getEnvDuration("PONG_WAIT_MS", 60000),
		WriteWait:         getEnvDuration("WRITE_WAIT_MS", 10000),

		MaxMessageBytes: getEnvInt("MAX_MESSAGE_BYTES", 4096),
		SendBuffer:      getEnvInt("SEND_BUFFER", 256),

		LocationRatePerSec: getEnvFloat("LOCATION_RATE_PER_SEC", 5),
		LocationBurst:      getEnvInt("LOCATION_BURST", 10),

		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		RedisWorkers:       getEnvInt("REDIS_WORKERS", 4),
		RedisQueueSize:     getEnvInt("REDIS_QUEUE_SIZE", 10000),
		LocationTTLSeconds: getEnvInt("LOCATION_TTL_SECONDS", 120),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

// getEnvDuration reads a millisecond value from the environment.
func getEnvDuration(key string, fallbackMS int) time.Duration {
	return time.Duration(getEnvInt(key, fallbackMS)) * time.Millisecond
}
