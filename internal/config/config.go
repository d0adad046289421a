package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	JWTSecret              string
	CORSAllowedOrigins     string
	AllowedExtensions      map[string]struct{}
	MaxFileSize            int64
	WorkerPoolSize         int
	AdapterTimeout         time.Duration
	StatusCacheTTL         time.Duration
	StorageBackend         string
	StorageRoot            string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	OCRLanguages           []string
	AIProvider             string
	AIModel                string
	OpenAIAPIKey           string
	AnthropicAPIKey        string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// ExtensionAllowed reports whether the lowercase file extension may be
// ingested. Plain text is always accepted regardless of configuration; the
// roster export tooling produces txt answer sheets.
func (c Config) ExtensionAllowed(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "txt" {
		return true
	}
	_, ok := c.AllowedExtensions[ext]
	return ok
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("EXAMFLOW")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "ExamFlow API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("upload.allowed_extensions", "pdf,jpg,jpeg,png,txt")
	v.SetDefault("upload.max_file_size_mb", 10)
	v.SetDefault("pipeline.worker_pool_size", 4)
	v.SetDefault("pipeline.adapter_timeout", "60s")
	v.SetDefault("status.cache_ttl", "30s")
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.root", "uploads")
	v.SetDefault("cloudinary.folder", "examflow/submissions")
	v.SetDefault("ocr.languages", "eng")
	v.SetDefault("ai.provider", "openai")

	adapterTimeout, err := time.ParseDuration(v.GetString("pipeline.adapter_timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid adapter timeout: %w", err)
	}

	cacheTTL, err := time.ParseDuration(v.GetString("status.cache_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid status cache ttl: %w", err)
	}

	maxSizeMB := v.GetInt64("upload.max_file_size_mb")
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}

	workers := v.GetInt("pipeline.worker_pool_size")
	if workers <= 0 {
		workers = 4
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		JWTSecret:              v.GetString("jwt.secret"),
		CORSAllowedOrigins:     v.GetString("cors.allowed_origins"),
		AllowedExtensions:      parseExtensionSet(v.GetString("upload.allowed_extensions")),
		MaxFileSize:            maxSizeMB * 1024 * 1024,
		WorkerPoolSize:         workers,
		AdapterTimeout:         adapterTimeout,
		StatusCacheTTL:         cacheTTL,
		StorageBackend:         strings.ToLower(v.GetString("storage.backend")),
		StorageRoot:            v.GetString("storage.root"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		OCRLanguages:           splitList(v.GetString("ocr.languages")),
		AIProvider:             strings.ToLower(v.GetString("ai.provider")),
		AIModel:                v.GetString("ai.model"),
		OpenAIAPIKey:           v.GetString("openai_api_key"),
		AnthropicAPIKey:        v.GetString("anthropic_api_key"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	return cfg, nil
}

func parseExtensionSet(raw string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, ext := range splitList(raw) {
		set[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}
	return set
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
