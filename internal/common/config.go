package common

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Templates TemplatesConfig
	Oracle    OracleConfig
	PDF       PDFConfig
	Pipeline  PipelineConfig
	Ledger    LedgerConfig
	Server    ServerConfig
}

// TemplatesConfig points at the per-bank template tree.
type TemplatesConfig struct {
	Dir string
}

// OracleConfig selects and configures the vision model backend.
type OracleConfig struct {
	Backend string // "gemini" or "ollama"
	Timeout time.Duration

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	OllamaHost  string
	OllamaModel string

	Temperature float32
}

// PDFConfig holds external PDF tooling configuration
type PDFConfig struct {
	PdftoppmBin string
	PreviewDPI  int
}

// PipelineConfig holds batch behaviour knobs.
type PipelineConfig struct {
	MatchPolicy    string // "best-of-n" or "first-above-threshold"
	MatchThreshold float64
	Workers        int
	QueueSize      int
	WorkDir        string
	OutputDir      string
	RejectMode     string // "keep" or "delete"
	FileTimeout    time.Duration
}

// LedgerConfig holds the processing ledger database configuration.
type LedgerConfig struct {
	DSN string // "sqlite:<path>" or "postgres://..."; empty disables the ledger
}

// ServerConfig holds daemon listener configuration
type ServerConfig struct {
	HTTPAddr      string
	GRPCAddr      string
	WatchDir      string
	WatchDebounce time.Duration
}

const (
	BackendGemini = "gemini"
	BackendOllama = "ollama"

	RejectKeep   = "keep"
	RejectDelete = "delete"
)

// LoadConfig loads configuration from environment variables. A .env file in the
// working directory is read first when present; real environment wins.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("config.dotenv.load_failed", "error", err)
	}

	return &Config{
		Templates: TemplatesConfig{
			Dir: getEnv("TEMPLATES_DIR", "templates"),
		},
		Oracle: OracleConfig{
			Backend:       strings.ToLower(getEnv("ORACLE_BACKEND", BackendGemini)),
			Timeout:       getEnvAsDuration("ORACLE_TIMEOUT", 120*time.Second),
			GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
			GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			GeminiBaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			OllamaHost:    getEnv("OLLAMA_HOST", "http://localhost:11434"),
			OllamaModel:   getEnv("OLLAMA_MODEL", "qwen2.5vl:7b"),
			Temperature:   getEnvAsFloat32("ORACLE_TEMPERATURE", 0.0),
		},
		PDF: PDFConfig{
			PdftoppmBin: getEnv("PDFTOPPM_BIN", "pdftoppm"),
			PreviewDPI:  getEnvAsInt("PREVIEW_DPI", 144),
		},
		Pipeline: PipelineConfig{
			MatchPolicy:    getEnv("MATCH_POLICY", "best-of-n"),
			MatchThreshold: getEnvAsFloat64("MATCH_THRESHOLD", 0.95),
			Workers:        getEnvAsInt("WORKERS", 1),
			QueueSize:      getEnvAsInt("QUEUE_SIZE", 256),
			WorkDir:        getEnv("WORK_DIR", "z_temp_masked_files"),
			OutputDir:      getEnv("OUTPUT_DIR", "redacted"),
			RejectMode:     strings.ToLower(getEnv("REJECT_MODE", RejectKeep)),
			FileTimeout:    getEnvAsDuration("FILE_TIMEOUT", 15*time.Minute),
		},
		Ledger: LedgerConfig{
			DSN: getEnv("LEDGER_DSN", ""),
		},
		Server: ServerConfig{
			HTTPAddr:      getEnv("HTTP_ADDR", ":8081"),
			GRPCAddr:      getEnv("GRPC_ADDR", ":8080"),
			WatchDir:      getEnv("WATCH_DIR", ""),
			WatchDebounce: getEnvAsDuration("WATCH_DEBOUNCE", 2*time.Second),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator().
		Field("TEMPLATES_DIR", c.Templates.Dir, Required).
		Field("ORACLE_BACKEND", c.Oracle.Backend, OneOf(BackendGemini, BackendOllama)).
		Field("REJECT_MODE", c.Pipeline.RejectMode, OneOf(RejectKeep, RejectDelete)).
		Field("MATCH_THRESHOLD", c.Pipeline.MatchThreshold, UnitInterval).
		Field("WORKERS", c.Pipeline.Workers, Positive).
		Field("ORACLE_TIMEOUT", c.Oracle.Timeout, Positive)
	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrInvalidInput)
	}
	if c.Oracle.Backend == BackendGemini && c.Oracle.GeminiAPIKey == "" {
		return NewAppError("CONFIG_ERROR", "GEMINI_API_KEY is required for the gemini backend", ErrInvalidInput)
	}
	return nil
}
