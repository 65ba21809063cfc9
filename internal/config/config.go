package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Session  SessionConfig
	Remember RememberConfig
	TMDB     TMDBConfig
	Storage  StorageConfig
	MyList   MyListConfig
	CORS     CORSConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string
	Port string
	// BcryptCost is the cost factor used for new password hashes
	BcryptCost int
	// LoginRateLimit is the number of login/signup posts allowed per IP per minute
	LoginRateLimit int
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection configuration.
// An empty Addr selects the in-memory session store.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// SessionConfig holds session lifecycle configuration
type SessionConfig struct {
	CookieName       string
	IdleTimeout      time.Duration
	RotationInterval time.Duration
	SecureCookies    bool
}

// RememberConfig holds remember-me cookie configuration
type RememberConfig struct {
	Expiry time.Duration
	// SigningKey enables signed remember-me tokens when non-empty
	SigningKey string
}

// TMDBConfig holds movie metadata API configuration
type TMDBConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// StorageConfig holds S3/MinIO configuration for the artwork cache.
// An empty Endpoint disables the cache.
type StorageConfig struct {
	Endpoint           string
	Region             string
	AccessKeyID        string
	SecretAccessKey    string
	Bucket             string
	UseSSL             bool
	PresignedURLExpiry time.Duration
}

// MyListConfig holds "my list" configuration
type MyListConfig struct {
	ServerSync bool
}

// CORSConfig holds allowed origins for the JSON API
type CORSConfig struct {
	AllowedOrigins []string
}

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnv("SERVER_PORT", "8080"),
			BcryptCost:     getIntEnv("BCRYPT_COST", 10),
			LoginRateLimit: getIntEnv("LOGIN_RATE_LIMIT", 10),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "cineflix_db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", ""),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getIntEnv("REDIS_DB", 0),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "cineflix:session:"),
		},
		Session: SessionConfig{
			CookieName:       getEnv("SESSION_COOKIE_NAME", "cineflix_session"),
			IdleTimeout:      getDurationEnv("SESSION_IDLE_TIMEOUT", 30*time.Minute),
			RotationInterval: getDurationEnv("SESSION_ROTATION_INTERVAL", 30*time.Minute),
			SecureCookies:    getBoolEnv("COOKIE_SECURE", false),
		},
		Remember: RememberConfig{
			Expiry:     getDurationEnv("REMEMBER_ME_EXPIRY", 30*24*time.Hour),
			SigningKey: getEnv("REMEMBER_ME_SIGNING_KEY", ""),
		},
		TMDB: TMDBConfig{
			APIKey:  getEnv("TMDB_API_KEY", ""),
			BaseURL: getEnv("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
			Timeout: getDurationEnv("TMDB_TIMEOUT", 10*time.Second),
		},
		Storage: StorageConfig{
			Endpoint:           getEnv("S3_ENDPOINT", ""),
			Region:             getEnv("S3_REGION", "us-east-1"),
			AccessKeyID:        getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey:    getEnv("S3_SECRET_ACCESS_KEY", ""),
			Bucket:             getEnv("S3_BUCKET", "cineflix-artwork"),
			UseSSL:             getBoolEnv("S3_USE_SSL", false),
			PresignedURLExpiry: getDurationEnv("S3_PRESIGN_EXPIRY", 15*time.Minute),
		},
		MyList: MyListConfig{
			ServerSync: getBoolEnv("MYLIST_SERVER_SYNC", false),
		},
		CORS: CORSConfig{
			AllowedOrigins: getListEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:8080"}),
		},
	}
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	return "host=" + d.Host +
		" port=" + d.Port +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.DBName +
		" sslmode=" + d.SSLMode
}

// URL returns the PostgreSQL connection URL used by database/sql drivers
func (d *DatabaseConfig) URL() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultValue
}

// getDurationEnv accepts Go duration strings ("30m") or a bare number of minutes
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
