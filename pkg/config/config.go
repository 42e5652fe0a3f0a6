package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the infrastructure configuration loaded from the
// environment. Application-level options live in the yaml file, see App.
type Config struct {
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Gateway   GatewayConfig
	Scheduler SchedulerConfig
	SMTP      SMTPConfig

	// AppConfigPath points at the yaml application config
	AppConfigPath string
	LogLevel      string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers        []string
	TopicForecasts string
	TopicOps       string
	NumPartitions  int
	BatchSize      int
	BatchTimeout   time.Duration
}

type GatewayConfig struct {
	Port              int
	MaxConnections    int
	IdentifyTimeout   time.Duration
	InactivityTimeout time.Duration
	UseWorkerPool     bool
	WorkerCount       int
	JobQueueSize      int
}

type SchedulerConfig struct {
	Workers int
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

// Load reads the environment, honoring a .env file when present
func Load() (*Config, error) {
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "astro_user"),
			Password: getEnv("DB_PASSWORD", "astro_pass"),
			DBName:   getEnv("DB_NAME", "astro_db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:        strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			TopicForecasts: getEnv("KAFKA_TOPIC_FORECASTS", "astro.forecasts.daily"),
			TopicOps:       getEnv("KAFKA_TOPIC_OPS", "astro.ops.alerts"),
			NumPartitions:  getEnvAsInt("KAFKA_NUM_PARTITIONS", 10),
			BatchSize:      getEnvAsInt("KAFKA_BATCH_SIZE", 100),
			BatchTimeout:   getEnvAsDuration("KAFKA_BATCH_TIMEOUT", time.Second),
		},
		Gateway: GatewayConfig{
			Port:              getEnvAsInt("GATEWAY_PORT", 8080),
			MaxConnections:    getEnvAsInt("GATEWAY_MAX_CONNECTIONS", 1000),
			IdentifyTimeout:   getEnvAsDuration("GATEWAY_IDENTIFY_TIMEOUT", 10*time.Second),
			InactivityTimeout: getEnvAsDuration("GATEWAY_INACTIVITY_TIMEOUT", 2*time.Minute),
			UseWorkerPool:     getEnvAsBool("GATEWAY_USE_WORKER_POOL", true),
			WorkerCount:       getEnvAsInt("GATEWAY_WORKER_COUNT", 0),
			JobQueueSize:      getEnvAsInt("GATEWAY_JOB_QUEUE_SIZE", 256),
		},
		Scheduler: SchedulerConfig{
			Workers: getEnvAsInt("SCHEDULER_WORKERS", 10),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "astrobot@example.com"),
			To:       getEnv("SMTP_TO", "admin@example.com"),
		},
		AppConfigPath: getEnv("APP_CONFIG", "astrobot.yml"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
