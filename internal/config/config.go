package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/joho/godotenv"
)

const (
	UploadBackendLocal = "local"
	UploadBackendS3    = "s3"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	WebSocket WebSocketConfig
	CORS      CORSConfig
	Logging   LoggingConfig
	Upload    UploadConfig
	S3        S3Config
	Sync      SyncConfig
}

type ServerConfig struct {
	Port      string
	Host      string
	Env       string
	PublicURL string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// URL is the CouchDB endpoint with credentials embedded and escaped.
func (c DatabaseConfig) URL() string {
	u := url.URL{Scheme: "http", Host: net.JoinHostPort(c.Host, c.Port)}
	if c.User != "" {
		u.User = url.UserPassword(c.User, c.Password)
	}
	return u.String()
}

type JWTConfig struct {
	Secret                 string
	Expiration             time.Duration
	RefreshTokenExpiration time.Duration
}

type WebSocketConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	MaxMessageSize  int64
	WriteWait       time.Duration
	PongWait        time.Duration
	PingPeriod      time.Duration
	MaxConnPerUser  int
}

type CORSConfig struct {
	AllowedOrigins string
	AllowedMethods string
	AllowedHeaders string
}

type LoggingConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type UploadConfig struct {
	Backend            string
	Path               string
	MaxFileSize        int64
	MaxFilesPerRequest int
}

type S3Config struct {
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	URLExpiration time.Duration
}

type SyncConfig struct {
	ConflictWorkers int
	DuplicateSuffix string
	MaxWriteRetries int
	RecordsMaxLimit int
}

func Load() (*Config, error) {
	godotenv.Load()

	jwtExp, err := time.ParseDuration(getEnv("JWT_EXPIRATION", "15m"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION: %w", err)
	}

	refreshExp, err := time.ParseDuration(getEnv("REFRESH_TOKEN_EXPIRATION", "168h"))
	if err != nil {
		return nil, fmt.Errorf("invalid REFRESH_TOKEN_EXPIRATION: %w", err)
	}

	s3Exp, err := time.ParseDuration(getEnv("S3_URL_EXPIRATION", "15m"))
	if err != nil {
		return nil, fmt.Errorf("invalid S3_URL_EXPIRATION: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:      getEnv("PORT", "5000"),
			Host:      getEnv("HOST", "0.0.0.0"),
			Env:       getEnv("ENV", "development"),
			PublicURL: getEnv("PUBLIC_URL", ""),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5984"),
			User:     getEnv("DB_USER", "admin"),
			Password: getEnv("DB_PASSWORD", "password"),
			Name:     getEnv("DB_NAME", "yeenote"),
		},
		JWT: JWTConfig{
			Secret:                 getEnv("JWT_SECRET", "dev-secret-change-in-production"),
			Expiration:             jwtExp,
			RefreshTokenExpiration: refreshExp,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  getEnvAsInt("WS_READ_BUFFER_SIZE", 4096),
			WriteBufferSize: getEnvAsInt("WS_WRITE_BUFFER_SIZE", 4096),
			MaxMessageSize:  int64(getEnvAsInt("WS_MAX_MESSAGE_SIZE", 1<<20)),
			WriteWait:       10 * time.Second,
			PongWait:        60 * time.Second,
			PingPeriod:      54 * time.Second,
			MaxConnPerUser:  getEnvAsInt("WS_MAX_CONN_PER_USER", 5),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			AllowedMethods: getEnv("CORS_ALLOWED_METHODS", "GET,POST,PUT,PATCH,DELETE,OPTIONS"),
			AllowedHeaders: getEnv("CORS_ALLOWED_HEADERS", "Content-Type,Authorization,X-Device-ID"),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvAsInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 3),
			MaxAgeDays: getEnvAsInt("LOG_MAX_AGE_DAYS", 28),
		},
		Upload: UploadConfig{
			Backend:            getEnv("UPLOAD_BACKEND", UploadBackendLocal),
			Path:               getEnv("UPLOAD_PATH", "./uploads"),
			MaxFileSize:        int64(getEnvAsInt("MAX_FILE_SIZE", 5<<20)),
			MaxFilesPerRequest: getEnvAsInt("MAX_FILES_PER_REQUEST", 10),
		},
		S3: S3Config{
			Region:        getEnv("S3_REGION", "us-east-1"),
			Endpoint:      getEnv("S3_ENDPOINT", ""),
			AccessKey:     getEnv("S3_ACCESS_KEY", ""),
			SecretKey:     getEnv("S3_SECRET_KEY", ""),
			Bucket:        getEnv("S3_BUCKET", ""),
			URLExpiration: s3Exp,
		},
		Sync: SyncConfig{
			ConflictWorkers: getEnvAsInt("SYNC_CONFLICT_WORKERS", 4),
			DuplicateSuffix: getEnv("SYNC_DUPLICATE_SUFFIX", " (copy)"),
			MaxWriteRetries: getEnvAsInt("SYNC_MAX_WRITE_RETRIES", 5),
			RecordsMaxLimit: getEnvAsInt("SYNC_RECORDS_MAX_LIMIT", 100),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validation.ValidateStruct(&c.Server,
		validation.Field(&c.Server.Port, validation.Required, is.Port),
		validation.Field(&c.Server.PublicURL, is.URL),
	); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	if err := validation.ValidateStruct(&c.Database,
		validation.Field(&c.Database.Host, validation.Required),
		validation.Field(&c.Database.Port, validation.Required, is.Port),
		validation.Field(&c.Database.Name, validation.Required),
	); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := validation.ValidateStruct(&c.JWT,
		validation.Field(&c.JWT.Secret, validation.Required),
		validation.Field(&c.JWT.Expiration, validation.Required, validation.Min(time.Second)),
	); err != nil {
		return fmt.Errorf("jwt: %w", err)
	}

	if err := validation.ValidateStruct(&c.Upload,
		validation.Field(&c.Upload.Backend, validation.Required, validation.In(UploadBackendLocal, UploadBackendS3)),
		validation.Field(&c.Upload.Path, validation.When(c.Upload.Backend == UploadBackendLocal, validation.Required)),
		validation.Field(&c.Upload.MaxFileSize, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.Upload.MaxFilesPerRequest, validation.Required, validation.Min(1)),
	); err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	if c.Upload.Backend == UploadBackendS3 {
		if err := validation.ValidateStruct(&c.S3,
			validation.Field(&c.S3.Region, validation.Required),
			validation.Field(&c.S3.Bucket, validation.Required),
			validation.Field(&c.S3.Endpoint, is.URL),
		); err != nil {
			return fmt.Errorf("s3: %w", err)
		}
	}

	if err := validation.ValidateStruct(&c.Sync,
		validation.Field(&c.Sync.ConflictWorkers, validation.Required, validation.Min(1)),
		validation.Field(&c.Sync.MaxWriteRetries, validation.Required, validation.Min(1)),
		validation.Field(&c.Sync.RecordsMaxLimit, validation.Required, validation.Min(1)),
	); err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	return nil
}

func (c *Config) IsDebug() bool {
	return c.Logging.Level == "debug"
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
