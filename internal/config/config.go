// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Storage     StorageConfig
	Auth        AuthConfig
	Events      EventsConfig
	Search      SearchConfig
	Upload      UploadConfig
	Frontend    FrontendConfig
	Worker      WorkerConfig
}

type ServerConfig struct {
	Port           string
	ReadTimeout    int
	WriteTimeout   int
	IdleTimeout    int
	RequestTimeout int
}

type DatabaseConfig struct {
	URL          string
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
}

type StorageConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
}

type AuthConfig struct {
	URL          string
	Realm        string
	ClientID     string
	ClientSecret string
}

type EventsConfig struct {
	NATSEndpoint         string
	ValidateImageSubject string
	ValidateModelSubject string
	IndexListingSubject  string
}

type SearchConfig struct {
	TypesenseURL    string
	TypesenseAPIKey string
}

type UploadConfig struct {
	ValidationWindowHours int
}

type FrontendConfig struct {
	DomainName     string
	PublicFilesURL string
}

type WorkerConfig struct {
	Environment string
	Port        string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:           getEnv("API_PORT", "8080"),
			ReadTimeout:    getEnvAsInt("SERVER_READ_TIMEOUT", 10),
			WriteTimeout:   getEnvAsInt("SERVER_WRITE_TIMEOUT", 30),
			IdleTimeout:    getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
			RequestTimeout: getEnvAsInt("SERVER_REQUEST_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			URL:          getEnv("DB_DSN", ""),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "marketplace"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "silent"),
		},
		Redis: RedisConfig{
			Addr:         getEnv("REDIS_ADDR", "localhost:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 100),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 10),
		},
		Storage: StorageConfig{
			Endpoint:        getEnv("S3_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getEnv("GATEWAY_S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("GATEWAY_S3_SECRET_ACCESS_KEY", ""),
			UseSSL:          getEnvAsBool("S3_USE_SSL", false),
		},
		Auth: AuthConfig{
			URL:          getEnv("AUTHORIZATION_URL", "http://localhost:8180"),
			Realm:        getEnv("AUTHORIZATION_REALM", "marketplace"),
			ClientID:     getEnv("AUTHORIZATION_CLIENT_ID", ""),
			ClientSecret: getEnv("AUTHORIZATION_CLIENT_SECRET", ""),
		},
		Events: EventsConfig{
			NATSEndpoint:         getEnv("NATS_ENDPOINT", "nats://localhost:4222"),
			ValidateImageSubject: getEnv("EVENT_VALIDATE_IMAGE_START", "events.files.validate.image.start"),
			ValidateModelSubject: getEnv("EVENT_VALIDATE_MODEL_START", "events.files.validate.model.start"),
			IndexListingSubject:  getEnv("EVENT_INDEX_LISTING", "events.listings.index"),
		},
		Search: SearchConfig{
			TypesenseURL:    getEnv("TYPESENSE_URL", "http://localhost:8108"),
			TypesenseAPIKey: getEnv("TYPESENSE_API_KEY", ""),
		},
		Upload: UploadConfig{
			ValidationWindowHours: getEnvAsInt("FILE_VALIDATION_WINDOW_HOURS", 1),
		},
		Frontend: FrontendConfig{
			DomainName:     getEnv("DOMAIN_NAME", "http://localhost:3000"),
			PublicFilesURL: getEnv("PUBLIC_FILES_URL", "http://localhost:9000/public-files"),
		},
		Worker: WorkerConfig{
			Environment: getEnv("INDEX_WORKER_ENV", "development"),
			Port:        getEnv("INDEX_WORKER_PORT", "8081"),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.Environment == "production" {
		if c.Storage.AccessKeyID == "" || c.Storage.SecretAccessKey == "" {
			return fmt.Errorf("object storage credentials are required in production")
		}
		if c.Auth.ClientID == "" {
			return fmt.Errorf("authorization client id is required in production")
		}
		if c.Database.URL == "" && c.Database.Password == "" {
			return fmt.Errorf("database password or DSN is required in production")
		}
	}

	if c.Upload.ValidationWindowHours <= 0 {
		return fmt.Errorf("file validation window must be positive")
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
