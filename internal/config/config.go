package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	HTTPAddr        string
	MySQLDSN        string
	RedisAddr       string
	NotifyWorkers   int
	NotifyQueueSize int
}

// Load reads configuration from the environment, with .env as a local
// development convenience.
func Load() Config {
	godotenv.Load()

	return Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		MySQLDSN:        getenv("MYSQL_DSN", "root:root@tcp(localhost:3306)/barangay?parseTime=true"),
		RedisAddr:       getenv("REDIS_ADDR", "localhost:6379"),
		NotifyWorkers:   getenvInt("NOTIFY_WORKERS", 4),
		NotifyQueueSize: getenvInt("NOTIFY_QUEUE_SIZE", 1024),
	}
}

// NewLogger builds the process-wide logrus logger. JSON output so the log
// shipper can index notification events.
func NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)
	logger.SetOutput(os.Stdout)
	return logger
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
