package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type Config struct {
	AppURL                 string
	LogLevel               string
	AgentName              string
	DatabaseDriver         string
	DatabaseDSN            string
	RateLimit              int
	RedisAddr              string
	EventStreamKey         string
	KafkaBrokers           []string
	EventTopic             string
	EventLogWorkers        int
	EventLogQueueSize      int
	ExecutorTimeoutSeconds int
	BackupBucket           string
	DeployAPIKey           string
	SchedulesFile          string
	ShutdownTimeoutSeconds int
}

func Load() Config {
	appHost := getEnv("APP_HOST", "127.0.0.1")
	appPort := getEnv("APP_PORT", "8080")

	cfg := Config{
		AppURL:                 fmt.Sprintf("%s:%s", appHost, appPort),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		AgentName:              getEnv("OPS_AGENT_NAME", "ops_agent"),
		DatabaseDriver:         getEnv("DATABASE_DRIVER", DriverSQLite),
		DatabaseDSN:            getEnv("DATABASE_DSN", "ops_tasks.db"),
		RateLimit:              getEnvAsInt("RATE_LIMIT_PER_MINUTE", 60),
		RedisAddr:              getEnv("REDIS_ADDR", ""),
		EventStreamKey:         getEnv("REDIS_EVENT_STREAM", "infra_logs"),
		KafkaBrokers:           getEnvAsList("KAFKA_BROKERS"),
		EventTopic:             getEnv("KAFKA_EVENT_TOPIC", "infra_logs"),
		EventLogWorkers:        getEnvAsInt("EVENT_LOG_WORKERS", 2),
		EventLogQueueSize:      getEnvAsInt("EVENT_LOG_QUEUE_SIZE", 256),
		ExecutorTimeoutSeconds: getEnvAsInt("EXECUTOR_TIMEOUT_SECONDS", 60),
		BackupBucket:           getEnv("BACKUP_BUCKET", "backups"),
		DeployAPIKey:           getEnv("DEPLOY_API_KEY", ""),
		SchedulesFile:          getEnv("SCHEDULES_FILE", ""),
		ShutdownTimeoutSeconds: getEnvAsInt("SHUTDOWN_TIMEOUT_SECONDS", 20),
	}

	if err := validate(cfg); err != nil {
		logrus.Fatal(err)
	}
	return cfg
}

func (c Config) ExecutorTimeout() time.Duration {
	return time.Duration(c.ExecutorTimeoutSeconds) * time.Second
}

func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

func validate(cfg Config) error {
	if cfg.AppURL == "" {
		return fmt.Errorf("APP_HOST/APP_PORT must not be empty (e.g. 127.0.0.1:8080)")
	}
	if cfg.AgentName == "" {
		return fmt.Errorf("OPS_AGENT_NAME must not be empty")
	}
	switch cfg.DatabaseDriver {
	case DriverSQLite, DriverPostgres, DriverMySQL:
	default:
		return fmt.Errorf("DATABASE_DRIVER must be one of sqlite, postgres, mysql (got %q)", cfg.DatabaseDriver)
	}
	if cfg.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN must not be empty")
	}
	if cfg.RateLimit <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be greater than 0")
	}
	if cfg.EventLogWorkers <= 0 {
		return fmt.Errorf("EVENT_LOG_WORKERS must be greater than 0")
	}
	if cfg.EventLogQueueSize <= 0 {
		return fmt.Errorf("EVENT_LOG_QUEUE_SIZE must be greater than 0")
	}
	if cfg.ExecutorTimeoutSeconds <= 0 {
		return fmt.Errorf("EXECUTOR_TIMEOUT_SECONDS must be greater than 0")
	}
	if cfg.ShutdownTimeoutSeconds <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT_SECONDS must be greater than 0")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			logrus.Fatalf("invalid integer value for %s", key)
		}
		return i
	}
	return defaultVal
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
