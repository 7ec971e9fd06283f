package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	storageDriverPostgres = "postgres"
	storageDriverMemory   = "memory"
)

type Config struct {
	ServerAddress string
	AllowedOrigin string

	StorageDriver    string
	PostgresConn     string
	PostgresDatabase string
	MigrationsUrl    string
	MemorySeedFile   string

	LockTimeout       time.Duration
	BidRetryAttempts  int
	BidRetryBackoff   time.Duration
	DispatchQueueSize int
	LifecycleInterval time.Duration
	NotifyOnCancel    bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	NatsUrl       string

	LogLevel  string
	LogFormat string
}

// LoadConfig reads the environment, after loading .env if there is one.
func LoadConfig() *Config {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("failed to load .env file")
	}

	return &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		AllowedOrigin: getEnv("WS_ALLOWED_ORIGIN", "*"),

		StorageDriver:    strings.ToLower(getEnv("STORAGE_DRIVER", storageDriverPostgres)),
		PostgresConn:     os.Getenv("POSTGRES_CONN"),
		PostgresDatabase: os.Getenv("POSTGRES_DATABASE"),
		MigrationsUrl:    getEnv("MIGRATIONS_URL", "file://migrations"),
		MemorySeedFile:   os.Getenv("MEMORY_SEED_FILE"),

		LockTimeout:       getEnvAsDuration("LOCK_TIMEOUT", 2*time.Second),
		BidRetryAttempts:  getEnvAsInt("BID_RETRY_ATTEMPTS", 3),
		BidRetryBackoff:   getEnvAsDuration("BID_RETRY_BACKOFF", 50*time.Millisecond),
		DispatchQueueSize: getEnvAsInt("DISPATCH_QUEUE_SIZE", 1024),
		LifecycleInterval: getEnvAsDuration("LIFECYCLE_INTERVAL", time.Second),
		NotifyOnCancel:    getEnvAsBool("NOTIFY_ON_CANCEL", false),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		NatsUrl:       os.Getenv("NATS_URL"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

func setupLogging(cfg *Config) {
	if cfg.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.WithField("level", cfg.LogLevel).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

func getEnv(key string, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}

func getEnvAsBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}

	return b
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}
