package common

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Paths          PathsConfig          `yaml:"paths"`
	OCR            OCRConfig            `yaml:"ocr"`
	Classification ClassificationConfig `yaml:"classification"`
	Mapping        MappingConfig        `yaml:"mapping"`
	Renaming       RenamingConfig       `yaml:"renaming"`
	Database       DatabaseConfig       `yaml:"database"`
	Cache          CacheConfig          `yaml:"cache"`
	Server         ServerConfig         `yaml:"server"`
}

// PathsConfig holds the directories and files the pipeline reads and writes
type PathsConfig struct {
	InputDir     string `yaml:"input_dir"`
	DocumentsDir string `yaml:"documents_dir"`
	FallbackDir  string `yaml:"fallback_dir"`
	DBPath       string `yaml:"db_path"`
	LogsDir      string `yaml:"logs_dir"`
	MappingJSON  string `yaml:"mapping_json"`
	Recursive    bool   `yaml:"recursive"` // also scan subdirectories of input_dir
}

// OCRConfig holds text extraction thresholds and OCR tool settings
type OCRConfig struct {
	Enabled          bool     `yaml:"use_vision"` // key name kept from the first config format
	MaxPages         int      `yaml:"max_pages"`
	DPI              int      `yaml:"dpi"`
	MinTextChars     int      `yaml:"min_text_chars"`
	MinAlnumRatio    float64  `yaml:"min_alnum_ratio"`
	RecognitionLevel string   `yaml:"recognition_level"` // accurate | fast
	Languages        []string `yaml:"languages"`
	TextLayer        string   `yaml:"text_layer"` // builtin | pdftotext
	Pdftoppm         string   `yaml:"pdftoppm"`
	Tesseract        string   `yaml:"tesseract"`
	TessdataDir      string   `yaml:"tessdata_dir"`
}

// ClassificationConfig holds LLM-related configuration
type ClassificationConfig struct {
	Provider                 string  `yaml:"provider"` // ollama | openai
	OllamaHost               string  `yaml:"ollama_host"`
	OpenAIBaseURL            string  `yaml:"openai_base_url"`
	OpenAIAPIKey             string  `yaml:"-"`
	Stage1Model              string  `yaml:"stage1_model"`
	Stage2Model              string  `yaml:"stage2_model"`
	ThresholdAccept          float64 `yaml:"threshold_accept"`
	ThresholdSafeToFile      float64 `yaml:"threshold_safe_to_file"`
	Temperature              float64 `yaml:"temperature"`
	MaxInputChars            int     `yaml:"max_input_chars"`
	RequireEvidence          bool    `yaml:"require_evidence"`
	TimeoutSeconds           int     `yaml:"timeout_seconds"`
	AllowLLMFolderOverride   bool    `yaml:"allow_llm_folder_override"`
	LLMFolderOverrideMinConf float64 `yaml:"llm_folder_override_min_conf"`
}

// Timeout is the per-call deadline for the classification service.
func (c ClassificationConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// MappingConfig holds sender routing policy
type MappingConfig struct {
	RouteUnknownSenderToFallback bool `yaml:"route_unknown_sender_to_fallback"`
}

// RenamingConfig holds filename construction settings
type RenamingConfig struct {
	Separator             string   `yaml:"separator"`
	CollisionSuffixFormat string   `yaml:"collision_suffix_format"`
	MaxSuffix             int      `yaml:"max_suffix"`
	DateSourcePriority    []string `yaml:"date_source_priority"`
	FilenameMaxLen        int      `yaml:"filename_max_len"`
	KeepUmlauts           bool     `yaml:"keep_umlauts"`
	NamingTemplate        string   `yaml:"naming_template"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string        `yaml:"driver"` // sqlite | postgres
	DSN              string        `yaml:"dsn"`    // postgres only; sqlite uses paths.db_path
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// CacheConfig controls reuse of earlier classifications by content fingerprint
type CacheConfig struct {
	ReuseClassification bool `yaml:"reuse_classification"`
}

// ServerConfig holds watch daemon configuration
type ServerConfig struct {
	GRPCAddr      string        `yaml:"grpc_addr"`
	WatchDebounce time.Duration `yaml:"watch_debounce"`
}

// DefaultConfig returns the configuration used for every key a config file leaves out.
func DefaultConfig() Config {
	return Config{
		OCR: OCRConfig{
			Enabled:          true,
			MaxPages:         5,
			DPI:              250,
			MinTextChars:     150,
			MinAlnumRatio:    0.35,
			RecognitionLevel: "accurate",
			Languages:        []string{"deu", "eng"},
			TextLayer:        "builtin",
			Pdftoppm:         "pdftoppm",
			Tesseract:        "tesseract",
		},
		Classification: ClassificationConfig{
			Provider:                 "ollama",
			OllamaHost:               "http://localhost:11434",
			OpenAIBaseURL:            "https://api.openai.com/v1",
			Stage1Model:              "qwen2.5:1.5b-instruct",
			Stage2Model:              "qwen2.5:3b-instruct",
			ThresholdAccept:          0.80,
			ThresholdSafeToFile:      0.70,
			Temperature:              0.0,
			MaxInputChars:            12000,
			RequireEvidence:          true,
			TimeoutSeconds:           90,
			AllowLLMFolderOverride:   false,
			LLMFolderOverrideMinConf: 0.85,
		},
		Renaming: RenamingConfig{
			Separator:             " ",
			CollisionSuffixFormat: "_{n}",
			MaxSuffix:             999,
			DateSourcePriority:    []string{"pdf_meta", "file_birthtime", "mtime", "today"},
			FilenameMaxLen:        120,
			KeepUmlauts:           true,
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			MaxConns:        4,
			MinConns:        1,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Server: ServerConfig{
			GRPCAddr:      ":8080",
			WatchDebounce: 2 * time.Second,
		},
	}
}

// LoadConfig reads a YAML config file over the defaults, applies environment
// overrides and validates the result. Unknown keys are rejected.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewAppError("CONFIG_ERROR", "read config", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	cfg.expandPaths()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseConfig decodes YAML bytes over DefaultConfig without env overrides or validation.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, NewAppError("CONFIG_ERROR", "parse config", err)
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.Paths.InputDir = getEnv("PDF_FILER_INPUT_DIR", c.Paths.InputDir)
	c.Paths.DocumentsDir = getEnv("PDF_FILER_DOCUMENTS_DIR", c.Paths.DocumentsDir)
	c.Paths.FallbackDir = getEnv("PDF_FILER_FALLBACK_DIR", c.Paths.FallbackDir)
	c.Paths.DBPath = getEnv("PDF_FILER_DB_PATH", c.Paths.DBPath)
	c.Paths.LogsDir = getEnv("PDF_FILER_LOGS_DIR", c.Paths.LogsDir)
	c.Paths.MappingJSON = getEnv("PDF_FILER_MAPPING_JSON", c.Paths.MappingJSON)

	c.Classification.Provider = getEnv("PDF_FILER_LLM_PROVIDER", c.Classification.Provider)
	c.Classification.OllamaHost = getEnv("OLLAMA_HOST", c.Classification.OllamaHost)
	c.Classification.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", c.Classification.OpenAIBaseURL)
	c.Classification.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.Classification.OpenAIAPIKey)
	c.Classification.Stage1Model = getEnv("PDF_FILER_STAGE1_MODEL", c.Classification.Stage1Model)
	c.Classification.Stage2Model = getEnv("PDF_FILER_STAGE2_MODEL", c.Classification.Stage2Model)
	c.Classification.TimeoutSeconds = getEnvAsInt("PDF_FILER_LLM_TIMEOUT_SECONDS", c.Classification.TimeoutSeconds)
	c.Classification.Temperature = getEnvAsFloat64("PDF_FILER_LLM_TEMPERATURE", c.Classification.Temperature)

	c.Database.Driver = getEnv("PDF_FILER_DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)
	c.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", c.Database.StatementTimeout)

	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
	c.Server.WatchDebounce = getEnvAsDuration("PDF_FILER_WATCH_DEBOUNCE", c.Server.WatchDebounce)
}

func (c *Config) expandPaths() {
	for _, p := range []*string{
		&c.Paths.InputDir, &c.Paths.DocumentsDir, &c.Paths.FallbackDir,
		&c.Paths.DBPath, &c.Paths.LogsDir, &c.Paths.MappingJSON,
	} {
		*p = expandHome(*p)
	}
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
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

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
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

var knownDateSources = []string{"pdf_meta", "file_birthtime", "mtime", "today"}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator()
	v.Field("paths.input_dir", c.Paths.InputDir, Required).
		Field("paths.documents_dir", c.Paths.DocumentsDir, Required).
		Field("paths.fallback_dir", c.Paths.FallbackDir, Required).
		Field("paths.logs_dir", c.Paths.LogsDir, Required).
		Field("paths.mapping_json", c.Paths.MappingJSON, Required)

	v.Field("ocr.max_pages", c.OCR.MaxPages, Positive).
		Field("ocr.dpi", c.OCR.DPI, Positive).
		Field("ocr.min_alnum_ratio", c.OCR.MinAlnumRatio, Between(0, 1)).
		Field("ocr.recognition_level", c.OCR.RecognitionLevel, OneOf("accurate", "fast")).
		Field("ocr.text_layer", c.OCR.TextLayer, OneOf("builtin", "pdftotext"))

	v.Field("classification.provider", c.Classification.Provider, OneOf("ollama", "openai")).
		Field("classification.stage1_model", c.Classification.Stage1Model, Required).
		Field("classification.stage2_model", c.Classification.Stage2Model, Required).
		Field("classification.threshold_accept", c.Classification.ThresholdAccept, Between(0, 1)).
		Field("classification.threshold_safe_to_file", c.Classification.ThresholdSafeToFile, Between(0, 1)).
		Field("classification.llm_folder_override_min_conf", c.Classification.LLMFolderOverrideMinConf, Between(0, 1)).
		Field("classification.max_input_chars", c.Classification.MaxInputChars, Positive).
		Field("classification.timeout_seconds", c.Classification.TimeoutSeconds, Positive)
	if c.Classification.Provider == "openai" {
		v.Field("OPENAI_API_KEY", c.Classification.OpenAIAPIKey, Required)
	}

	v.Field("renaming.collision_suffix_format", c.Renaming.CollisionSuffixFormat, Contains("{n}")).
		Field("renaming.separator", c.Renaming.Separator, MaxLength(8)).
		Field("renaming.max_suffix", c.Renaming.MaxSuffix, Positive).
		Field("renaming.filename_max_len", c.Renaming.FilenameMaxLen, Positive)
	for i, src := range c.Renaming.DateSourcePriority {
		v.Field(fmt.Sprintf("renaming.date_source_priority[%d]", i), src, OneOf(knownDateSources...))
	}

	v.Field("database.driver", c.Database.Driver, OneOf("sqlite", "postgres"))
	switch c.Database.Driver {
	case "sqlite":
		v.Field("paths.db_path", c.Paths.DBPath, Required)
	case "postgres":
		v.Field("database.dsn", c.Database.DSN, Required)
	}

	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}
