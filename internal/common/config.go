package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/receipts-intake/constants"
)

// Extractor providers.
const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// Config holds all application configuration
type Config struct {
	Folders   FoldersConfig   `yaml:"folders"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Hash      HashConfig      `yaml:"hash"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Log       LogConfig       `yaml:"log"`
	Watch     WatchConfig     `yaml:"watch"`
}

// FoldersConfig holds the four lifecycle folders. Relative folders are resolved against Root.
type FoldersConfig struct {
	Root     string `yaml:"root"`
	Incoming string `yaml:"incoming"`
	Scanned  string `yaml:"scanned"`
	Imported string `yaml:"imported"`
	Failed   string `yaml:"failed"`
}

// LedgerConfig holds staging ledger configuration
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// HashConfig holds hashing configuration
type HashConfig struct {
	ChunkSize int `yaml:"chunk_size"`
}

// ExtractorConfig selects and configures the extraction collaborator
type ExtractorConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// WatchConfig holds watch-mode configuration
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// DefaultConfig returns the configuration used when nothing else is provided.
func DefaultConfig() *Config {
	return &Config{
		Folders: FoldersConfig{
			Root:     "./receipts",
			Incoming: "incoming",
			Scanned:  "scanned",
			Imported: "imported",
			Failed:   "failed",
		},
		Ledger: LedgerConfig{
			Path: "staging.csv",
		},
		Hash: HashConfig{
			ChunkSize: 64 * 1024,
		},
		Extractor: ExtractorConfig{
			Provider:    ProviderOpenAI,
			Model:       "gpt-4o-mini",
			BaseURL:     "https://api.openai.com/v1",
			Temperature: 0.0,
			Timeout:     45 * time.Second,
			MaxAttempts: 2,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Watch: WatchConfig{
			Debounce: 2 * time.Second,
		},
	}
}

// LoadConfig reads the configuration and validates all of it.
func LoadConfig(path string) (*Config, error) {
	cfg, err := ReadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ReadConfig loads defaults, then the YAML file at path (if path is not empty),
// then environment variable overrides. It does not validate.
func ReadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		// #nosec G304 -- path is operator-provided config path.
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, NewAppError(constants.ConfigInvalid, "read config", path, err)
		}
		expanded := os.ExpandEnv(string(raw))
		expanded = strings.ReplaceAll(expanded, "\r\n", "\n")
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, NewAppError(constants.ConfigInvalid, "parse config", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Folders.Root = getEnv("RECEIPTS_ROOT", c.Folders.Root)
	c.Folders.Incoming = getEnv("RECEIPTS_INCOMING_DIR", c.Folders.Incoming)
	c.Folders.Scanned = getEnv("RECEIPTS_SCANNED_DIR", c.Folders.Scanned)
	c.Folders.Imported = getEnv("RECEIPTS_IMPORTED_DIR", c.Folders.Imported)
	c.Folders.Failed = getEnv("RECEIPTS_FAILED_DIR", c.Folders.Failed)
	c.Ledger.Path = getEnv("RECEIPTS_LEDGER_PATH", c.Ledger.Path)
	c.Hash.ChunkSize = getEnvAsInt("RECEIPTS_HASH_CHUNK_SIZE", c.Hash.ChunkSize)
	c.Extractor.Provider = getEnv("RECEIPTS_EXTRACTOR", c.Extractor.Provider)
	c.Extractor.Model = getEnv("OPENAI_MODEL", c.Extractor.Model)
	c.Extractor.APIKey = getEnv("OPENAI_API_KEY", c.Extractor.APIKey)
	c.Extractor.BaseURL = getEnv("OPENAI_BASE_URL", c.Extractor.BaseURL)
	c.Extractor.Temperature = getEnvAsFloat32("OPENAI_TEMPERATURE", c.Extractor.Temperature)
	c.Extractor.Timeout = getEnvAsDuration("OPENAI_TIMEOUT", c.Extractor.Timeout)
	c.Extractor.MaxAttempts = getEnvAsInt("OPENAI_MAX_ATTEMPTS", c.Extractor.MaxAttempts)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
	c.Watch.Debounce = getEnvAsDuration("RECEIPTS_WATCH_DEBOUNCE", c.Watch.Debounce)
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Resolved returns the folder set with every relative folder joined onto Root.
func (f FoldersConfig) Resolved() FoldersConfig {
	return FoldersConfig{
		Root:     f.Root,
		Incoming: f.resolve(f.Incoming),
		Scanned:  f.resolve(f.Scanned),
		Imported: f.resolve(f.Imported),
		Failed:   f.resolve(f.Failed),
	}
}

func (f FoldersConfig) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || f.Root == "" {
		return filepath.Clean(p)
	}
	return filepath.Join(f.Root, p)
}

// LedgerPath resolves the ledger path against the folder root.
func (c *Config) LedgerPath() string {
	return c.Folders.resolve(c.Ledger.Path)
}

func invalidConfig(msg string) error {
	return NewAppError(constants.ConfigInvalid, msg, "", ErrInvalidInput)
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if err := c.ValidateLayout(); err != nil {
		return err
	}
	invalid := invalidConfig

	switch c.Extractor.Provider {
	case ProviderOpenAI:
		if c.Extractor.APIKey == "" {
			return invalid("OPENAI_API_KEY is required when extractor.provider=openai")
		}
	case ProviderMock:
	default:
		return invalid(fmt.Sprintf("extractor.provider must be %q or %q, got %q", ProviderOpenAI, ProviderMock, c.Extractor.Provider))
	}
	if c.Extractor.MaxAttempts < 1 {
		return invalid("extractor.max_attempts must be at least 1")
	}
	return nil
}

// ValidateLayout checks everything except the extractor section; commands
// that never extract use it.
func (c *Config) ValidateLayout() error {
	invalid := invalidConfig

	folders := map[string]string{
		"folders.incoming": c.Folders.Incoming,
		"folders.scanned":  c.Folders.Scanned,
		"folders.imported": c.Folders.Imported,
		"folders.failed":   c.Folders.Failed,
	}
	seen := map[string]string{}
	for key, p := range folders {
		if strings.TrimSpace(p) == "" {
			return invalid(key + " is required")
		}
		resolved := c.Folders.resolve(p)
		if other, dup := seen[resolved]; dup {
			return invalid(fmt.Sprintf("%s and %s resolve to the same folder %q", key, other, resolved))
		}
		seen[resolved] = key
	}
	if strings.TrimSpace(c.Ledger.Path) == "" {
		return invalid("ledger.path is required")
	}
	if c.Hash.ChunkSize <= 0 {
		return invalid("hash.chunk_size must be positive")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return invalid(fmt.Sprintf("log.level %q is not one of debug|info|warn|error", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return invalid(fmt.Sprintf("log.format %q is not one of text|json", c.Log.Format))
	}
	return nil
}
