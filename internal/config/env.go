package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// AIConfig defines the generation service endpoint and credentials.
// Resolved once here and passed by value; nothing deeper reads the environment.
type AIConfig struct {
	APIKey         string
	Model          string
	BaseURL        string
	RequestTimeout time.Duration
}

// ConvertConfig defines batching, retry and pacing behavior of the conversion
// coordinator.
type ConvertConfig struct {
	MaxRetries        int
	InitialRetryDelay time.Duration
	MaxTokensPerBatch int
	AvgCharsPerToken  int
	MaxBatchSize      int
	BatchDelay        time.Duration
	SheetDelay        time.Duration
	MaxRowsPerTable   int
	MaxRowsFallback   int
	ExtraInstructions string
}

// ServerConfig defines the HTTP surface.
type ServerConfig struct {
	Port        string
	UploadDir   string
	OutputDir   string
	MaxUploadMB int
}

// StorageConfig defines the S3 collaborator.
type StorageConfig struct {
	Bucket        string
	UploadResults bool
}

// StoreConfig defines job status store connectivity.
type StoreConfig struct {
	RedisURL string
}

// Config is the top-level configuration.
type Config struct {
	Logging LoggingConfig
	Axiom   AxiomConfig
	AI      AIConfig
	Convert ConvertConfig
	Server  ServerConfig
	Storage StorageConfig
	Store   StoreConfig
}

// FromEnv loads configuration from environment with sensible defaults.
// A .env file in the working directory is honored if present.
func FromEnv() Config {
	_ = godotenv.Load()

	cfg := Config{}

	// Logging defaults
	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/sheetmd.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	// Axiom defaults
	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_sheetmd",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	// Generation service defaults
	cfg.AI = AIConfig{
		APIKey:         getEnv("GEMINI_API_KEY", ""),
		Model:          getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		BaseURL:        getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		RequestTimeout: parseDuration(getEnv("AI_REQUEST_TIMEOUT", "120s"), 120*time.Second),
	}

	// Conversion defaults. The token budget leaves roughly a 20% margin below
	// the model context window.
	cfg.Convert = ConvertConfig{
		MaxRetries:        parseInt(getEnv("AI_MAX_RETRIES", "5"), 5),
		InitialRetryDelay: parseDuration(getEnv("AI_INITIAL_RETRY_DELAY", "10s"), 10*time.Second),
		MaxTokensPerBatch: parseInt(getEnv("MAX_TOKENS_PER_BATCH", "800000"), 800000),
		AvgCharsPerToken:  parseInt(getEnv("AVG_CHARS_PER_TOKEN", "4"), 4),
		MaxBatchSize:      parseInt(getEnv("MAX_BATCH_SIZE", "20"), 20),
		BatchDelay:        parseDuration(getEnv("BATCH_DELAY", "10s"), 10*time.Second),
		SheetDelay:        parseDuration(getEnv("SHEET_DELAY", "5s"), 5*time.Second),
		MaxRowsPerTable:   parseInt(getEnv("MAX_ROWS_PER_TABLE", "5000"), 5000),
		MaxRowsFallback:   parseInt(getEnv("MAX_ROWS_FALLBACK", "3000"), 3000),
		ExtraInstructions: getEnv("AI_EXTRA_INSTRUCTIONS", ""),
	}

	// Server defaults
	cfg.Server = ServerConfig{
		Port:        getEnv("PORT", "8080"),
		UploadDir:   getEnv("UPLOAD_DIR", "uploads"),
		OutputDir:   getEnv("OUTPUT_DIR", "output"),
		MaxUploadMB: parseInt(getEnv("MAX_UPLOAD_MB", "50"), 50),
	}

	// Storage defaults
	cfg.Storage = StorageConfig{
		Bucket:        getEnv("AWS_S3_BUCKET", ""),
		UploadResults: parseBool(getEnv("UPLOAD_RESULTS_TO_S3", "0")),
	}

	// Status store defaults
	cfg.Store = StoreConfig{
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379"),
	}

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
