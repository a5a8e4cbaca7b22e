package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Raster   RasterConfig   `yaml:"raster"`
	OCR      OCRConfig      `yaml:"ocr"`
	Extract  ExtractConfig  `yaml:"extract"`
	NER      NERConfig      `yaml:"ner"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Store    StoreConfig    `yaml:"store"`
	Server   ServerConfig   `yaml:"server"`
}

// RasterConfig holds PDF rasterization settings.
type RasterConfig struct {
	Pdftoppm    string `yaml:"pdftoppm"`     // binary name or absolute path; if empty -> "pdftoppm"
	DPI         int    `yaml:"dpi"`          // rasterization DPI, default 300
	MaxPages    int    `yaml:"max_pages"`    // 0 = no limit
	ScratchRoot string `yaml:"scratch_root"` // root for per-run page image dirs
}

// OCRConfig holds text recognition settings.
type OCRConfig struct {
	Engine        string `yaml:"engine"` // "exec" (tesseract binary) | "gosseract"
	Tesseract     string `yaml:"tesseract"`
	Language      string `yaml:"language"` // default "eng"
	TessdataDir   string `yaml:"tessdata_dir"`
	PSM           int    `yaml:"psm"` // e.g. 6 is good for a uniform block of text
	OEM           int    `yaml:"oem"` // 1 = LSTM; 0 = engine default
	TSVConfidence bool   `yaml:"tsv_confidence"`
}

// ExtractConfig selects and orders the field extraction strategies.
type ExtractConfig struct {
	Strategies []string `yaml:"strategies"` // subset of: labeled, narrative, entity
}

// NERConfig holds the named-entity-recognition capability settings.
type NERConfig struct {
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
	Retries int           `yaml:"retries"` // transport-error retries only
}

// PipelineConfig holds orchestrator settings.
type PipelineConfig struct {
	PageWorkers int `yaml:"page_workers"` // parallel page OCR limit, default 4
}

// IngestConfig holds upload-directory watcher settings.
type IngestConfig struct {
	WatchRoots  []string      `yaml:"watch_roots"`
	InitialScan bool          `yaml:"initial_scan"`
	Debounce    time.Duration `yaml:"debounce"`
	Workers     int           `yaml:"workers"`
	QueueSize   int           `yaml:"queue_size"`
	JobTimeout  time.Duration `yaml:"job_timeout"`
}

// StoreConfig holds the run-history database settings.
type StoreConfig struct {
	Path string `yaml:"path"` // sqlite file path; empty disables the store
}

// ServerConfig holds daemon server settings.
type ServerConfig struct {
	GRPCAddr string `yaml:"grpc_addr"`
}

// LoadConfig loads configuration from environment variables. When path is
// non-empty the YAML file is read first and environment variables override it.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Raster: RasterConfig{
			Pdftoppm:    "pdftoppm",
			DPI:         300,
			ScratchRoot: os.TempDir(),
		},
		OCR: OCRConfig{
			Engine:    "exec",
			Tesseract: "tesseract",
			Language:  "eng",
		},
		Extract: ExtractConfig{
			Strategies: []string{"labeled", "narrative", "entity"},
		},
		NER: NERConfig{
			BaseURL: "https://api-inference.huggingface.co",
			Model:   "dslim/bert-base-NER",
			Timeout: 30 * time.Second,
			Retries: 1,
		},
		Pipeline: PipelineConfig{PageWorkers: 4},
		Ingest: IngestConfig{
			Debounce:   500 * time.Millisecond,
			Workers:    4,
			QueueSize:  256,
			JobTimeout: 3 * time.Minute,
		},
		Server: ServerConfig{GRPCAddr: ":8080"},
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, WrapError(err, "read config file")
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, WrapError(err, "parse config file")
		}
	}

	cfg.Raster.Pdftoppm = getEnv("PDFTOPPM", cfg.Raster.Pdftoppm)
	cfg.Raster.DPI = getEnvAsInt("RASTER_DPI", cfg.Raster.DPI)
	cfg.Raster.MaxPages = getEnvAsInt("RASTER_MAX_PAGES", cfg.Raster.MaxPages)
	cfg.Raster.ScratchRoot = getEnv("SCRATCH_ROOT", cfg.Raster.ScratchRoot)

	cfg.OCR.Engine = getEnv("OCR_ENGINE", cfg.OCR.Engine)
	cfg.OCR.Tesseract = getEnv("TESSERACT", cfg.OCR.Tesseract)
	cfg.OCR.Language = getEnv("OCR_LANGUAGE", cfg.OCR.Language)
	cfg.OCR.TessdataDir = getEnv("TESSDATA_PREFIX", cfg.OCR.TessdataDir)

	if v := getEnv("EXTRACT_STRATEGIES", ""); v != "" {
		cfg.Extract.Strategies = splitList(v)
	}

	cfg.NER.BaseURL = getEnv("NER_BASE_URL", cfg.NER.BaseURL)
	cfg.NER.Model = getEnv("NER_MODEL", cfg.NER.Model)
	cfg.NER.APIKey = getEnv("HF_API_KEY", cfg.NER.APIKey)
	cfg.NER.Timeout = getEnvAsDuration("NER_TIMEOUT", cfg.NER.Timeout)
	cfg.NER.Retries = getEnvAsInt("NER_RETRIES", cfg.NER.Retries)

	cfg.Pipeline.PageWorkers = getEnvAsInt("PAGE_WORKERS", cfg.Pipeline.PageWorkers)

	if v := getEnv("WATCH_ROOTS", ""); v != "" {
		cfg.Ingest.WatchRoots = splitList(v)
	}
	cfg.Store.Path = getEnv("STORE_PATH", cfg.Store.Path)
	cfg.Server.GRPCAddr = getEnv("GRPC_ADDR", cfg.Server.GRPCAddr)

	return cfg, nil
}

// Validate checks the loaded configuration, failing fast rather than letting
// a bad path or zero timeout surface mid-pipeline.
func (c *Config) Validate() error {
	if c.Raster.ScratchRoot == "" {
		return NewAppError("CONFIG_ERROR", "scratch root is required", ErrInvalidInput)
	}
	if c.Raster.DPI <= 0 {
		return NewAppError("CONFIG_ERROR", "raster DPI must be positive", ErrInvalidInput)
	}
	switch c.OCR.Engine {
	case "exec", "gosseract":
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown OCR engine %q", c.OCR.Engine), ErrInvalidInput)
	}
	if len(c.Extract.Strategies) == 0 {
		return NewAppError("CONFIG_ERROR", "at least one extraction strategy is required", ErrInvalidInput)
	}
	for _, s := range c.Extract.Strategies {
		switch s {
		case "labeled", "narrative", "entity":
		default:
			return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown strategy %q", s), ErrInvalidInput)
		}
		if s == "entity" && c.NER.Timeout <= 0 {
			return NewAppError("CONFIG_ERROR", "NER timeout must be positive when the entity strategy is enabled", ErrInvalidInput)
		}
	}
	if c.Pipeline.PageWorkers <= 0 {
		return NewAppError("CONFIG_ERROR", "page workers must be positive", ErrInvalidInput)
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Helper functions for environment variable parsing.
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
