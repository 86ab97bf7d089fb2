package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const configPathEnv = "FINDOC_CONFIG"

// Config is the runtime configuration. Defaults come from the constants in
// environmentVariables.go, then the YAML file named by FINDOC_CONFIG, then the environment.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Auth       AuthConfig       `yaml:"auth"`
	Redis      RedisConfig      `yaml:"redis"`
	Extraction ExtractionConfig `yaml:"extraction"`
	OCR        OCRConfig        `yaml:"ocr"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listenAddr"`
	UploadDir  string `yaml:"uploadDir"`
}

type AuthConfig struct {
	Token  string `yaml:"token"`
	Bypass bool   `yaml:"bypass"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	Enabled  bool   `yaml:"enabled"`
}

type ExtractionConfig struct {
	MinNativeChars       int     `yaml:"minNativeChars"`
	TableThreshold       float64 `yaml:"tableThreshold"`
	Language             string  `yaml:"language"`
	DPI                  int     `yaml:"dpi"`
	PageWorkers          int     `yaml:"pageWorkers"`
	ValidateISINChecksum bool    `yaml:"validateIsinChecksum"`
}

type OCRConfig struct {
	Engine       string `yaml:"engine"`
	GeminiAPIKey string `yaml:"geminiApiKey"`
	GeminiModel  string `yaml:"geminiModel"`
	TesseractBin string `yaml:"tesseractBin"`
	PdftoppmBin  string `yaml:"pdftoppmBin"`
}

type AnalysisConfig struct {
	TopHoldings int `yaml:"topHoldings"`
}

var (
	current *Config
	once    sync.Once
)

// Get returns the process configuration, loading it on first use.
// A broken config file falls back to defaults plus environment.
func Get() *Config {
	once.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintln(os.Stderr, "config:", err)
			cfg = Defaults()
			applyEnv(cfg)
		}
		current = cfg
	})
	return current
}

func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: ServerListenAddr,
			UploadDir:  UploadDirName,
		},
		Redis: RedisConfig{
			Addr:    RedisAddr,
			Enabled: true,
		},
		Extraction: ExtractionConfig{
			MinNativeChars:       MinNativeChars,
			TableThreshold:       TableConfidenceThreshold,
			Language:             DefaultOCRLanguage,
			DPI:                  DefaultDPI,
			PageWorkers:          DefaultPageWorkers,
			ValidateISINChecksum: ValidateISINChecksum,
		},
		OCR: OCRConfig{
			Engine:       OCREngineNone,
			GeminiModel:  GeminiModelName,
			TesseractBin: "tesseract",
			PdftoppmBin:  "pdftoppm",
		},
		Analysis: AnalysisConfig{
			TopHoldings: TopHoldingsCount,
		},
	}
}

func Load() (*Config, error) {
	//.env is optional
	_ = godotenv.Load()

	cfg := Defaults()
	if path := os.Getenv(configPathEnv); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Server.ListenAddr = getEnv("LISTEN_ADDR", cfg.Server.ListenAddr)
	cfg.Server.UploadDir = getEnv("UPLOAD_DIR", cfg.Server.UploadDir)

	cfg.Auth.Token = getEnv("AUTH_TOKEN", cfg.Auth.Token)
	cfg.Auth.Bypass = getEnvAsBool("NO_AUTH_BYPASS", cfg.Auth.Bypass)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.Enabled = getEnvAsBool("REDIS_ENABLED", cfg.Redis.Enabled)

	cfg.Extraction.MinNativeChars = getEnvAsInt("MIN_NATIVE_CHARS", cfg.Extraction.MinNativeChars)
	cfg.Extraction.TableThreshold = getEnvAsFloat("TABLE_CONFIDENCE_THRESHOLD", cfg.Extraction.TableThreshold)
	cfg.Extraction.Language = getEnv("OCR_LANGUAGE", cfg.Extraction.Language)
	cfg.Extraction.DPI = getEnvAsInt("OCR_DPI", cfg.Extraction.DPI)
	cfg.Extraction.PageWorkers = getEnvAsInt("PAGE_WORKERS", cfg.Extraction.PageWorkers)
	cfg.Extraction.ValidateISINChecksum = getEnvAsBool("VALIDATE_ISIN_CHECKSUM", cfg.Extraction.ValidateISINChecksum)

	cfg.OCR.Engine = strings.ToLower(getEnv("OCR_ENGINE", cfg.OCR.Engine))
	cfg.OCR.GeminiAPIKey = getEnv("GEMINI_API_KEY", cfg.OCR.GeminiAPIKey)
	cfg.OCR.GeminiModel = getEnv("GEMINI_MODEL", cfg.OCR.GeminiModel)
	cfg.OCR.TesseractBin = getEnv("TESSERACT_BIN", cfg.OCR.TesseractBin)
	cfg.OCR.PdftoppmBin = getEnv("PDFTOPPM_BIN", cfg.OCR.PdftoppmBin)

	cfg.Analysis.TopHoldings = getEnvAsInt("TOP_HOLDINGS", cfg.Analysis.TopHoldings)
}

func (c *Config) Validate() error {
	if c.Extraction.TableThreshold < 0 || c.Extraction.TableThreshold > 1 {
		return fmt.Errorf("table confidence threshold must be in [0,1], got %v", c.Extraction.TableThreshold)
	}
	if c.Extraction.DPI <= 0 {
		return fmt.Errorf("dpi must be positive, got %d", c.Extraction.DPI)
	}
	if c.Extraction.PageWorkers < 1 {
		c.Extraction.PageWorkers = 1
	}
	switch c.OCR.Engine {
	case OCREngineNone, OCREngineGemini, OCREngineTesseract:
	default:
		return fmt.Errorf("unknown ocr engine %q", c.OCR.Engine)
	}
	if c.OCR.Engine == OCREngineGemini && c.OCR.GeminiAPIKey == "" {
		return fmt.Errorf("ocr engine gemini needs GEMINI_API_KEY")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return v
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}
