package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	BackendGCS    = "gcs"
	BackendMinio  = "minio"
	BackendMemory = "memory"
)

type Config struct {
	Port     string
	LogLevel string
	Debug    bool

	// empty DatabaseURL keeps records in memory
	DatabaseURL string

	StorageBackend string
	GCSBucket      string
	GCSUploadPath  string
	GCSCredentials string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	SignedURLTTL   time.Duration
	MaxUploadBytes int
	PublicBaseURL  string

	// signs the memory backend's /serve_image URLs; random per process when empty
	URLSigningSecret string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "3000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DEBUG", false)
	v.SetDefault("STORAGE_BACKEND", BackendMemory)
	v.SetDefault("GCS_UPLOAD_PATH", "images/")
	v.SetDefault("MINIO_USE_SSL", false)
	v.SetDefault("GEMINI_MODEL", "gemini-1.5-flash")
	v.SetDefault("SIGNED_URL_TTL", "3600")
	v.SetDefault("MAX_UPLOAD_BYTES", 16*1024*1024)
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:3000")
}

// Load reads configuration from an optional .env file and the process
// environment. Environment variables win over the .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	ttl, err := parseTTL(v.GetString("SIGNED_URL_TTL"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:     v.GetString("PORT"),
		LogLevel: v.GetString("LOG_LEVEL"),
		Debug:    v.GetBool("DEBUG"),

		DatabaseURL: v.GetString("DATABASE_URL"),

		StorageBackend: strings.ToLower(v.GetString("STORAGE_BACKEND")),
		GCSBucket:      v.GetString("GCS_BUCKET_NAME"),
		GCSUploadPath:  v.GetString("GCS_UPLOAD_PATH"),
		GCSCredentials: v.GetString("GOOGLE_APPLICATION_CREDENTIALS"),

		MinioEndpoint:  v.GetString("MINIO_ENDPOINT"),
		MinioAccessKey: v.GetString("MINIO_ACCESS_KEY"),
		MinioSecretKey: v.GetString("MINIO_SECRET_KEY"),
		MinioBucket:    v.GetString("MINIO_BUCKET"),
		MinioUseSSL:    v.GetBool("MINIO_USE_SSL"),

		GeminiAPIKey:  v.GetString("GEMINI_API_KEY"),
		GeminiModel:   v.GetString("GEMINI_MODEL"),
		GeminiBaseURL: v.GetString("GEMINI_BASE_URL"),

		SignedURLTTL:     ttl,
		MaxUploadBytes:   v.GetInt("MAX_UPLOAD_BYTES"),
		PublicBaseURL:    strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/"),
		URLSigningSecret: v.GetString("URL_SIGNING_SECRET"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseTTL reads SIGNED_URL_TTL. A bare integer is a number of seconds;
// anything else must be a Go duration such as "15m".
func parseTTL(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("SIGNED_URL_TTL %q is neither seconds nor a duration", raw)
	}
	return d, nil
}

// Validate checks that the settings needed by the selected backends are present.
func (c *Config) Validate() error {
	var missing []string

	switch c.StorageBackend {
	case BackendGCS:
		if c.GCSBucket == "" {
			missing = append(missing, "GCS_BUCKET_NAME")
		}
	case BackendMinio:
		for key, val := range map[string]string{
			"MINIO_ENDPOINT":   c.MinioEndpoint,
			"MINIO_ACCESS_KEY": c.MinioAccessKey,
			"MINIO_SECRET_KEY": c.MinioSecretKey,
			"MINIO_BUCKET":     c.MinioBucket,
		} {
			if val == "" {
				missing = append(missing, key)
			}
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%s not set", strings.Join(missing, ", "))
	}
	// signed URLs carry whole-second expiries
	if c.SignedURLTTL < time.Second {
		return fmt.Errorf("SIGNED_URL_TTL must be at least 1s, got %s", c.SignedURLTTL)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}

	return nil
}
