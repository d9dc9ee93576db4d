// Package config provides configuration loading and structs for the cursobot server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug    bool           `yaml:"debug"`
	LogLevel string         `yaml:"log_level"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Ranking  RankingConfig  `yaml:"ranking"`
	Dialogue DialogueConfig `yaml:"dialogue"`
	Tagging  TaggingConfig  `yaml:"tagging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// CORSOrigins lists the origins allowed to call the API from a browser.
	CORSOrigins []string `yaml:"cors_origins"`
	// RateLimit is the number of chat messages accepted per client IP per minute. 0 disables it.
	RateLimit int `yaml:"rate_limit"`
}

// StorageConfig selects the conversation store.
type StorageConfig struct {
	Driver       string `yaml:"driver"` // sqlite or postgres
	DatabasePath string `yaml:"database_path"`
	PostgresDSN  string `yaml:"postgres_dsn"`
}

// CatalogConfig points at the course table and its row-aligned embedding matrix.
type CatalogConfig struct {
	CoursesPath    string `yaml:"courses_path"`
	EmbeddingsPath string `yaml:"embeddings_path"`
	Sheet          string `yaml:"sheet"`
	Watch          bool   `yaml:"watch"`
}

// RankingConfig holds similarity ranker settings.
type RankingConfig struct {
	Variant string `yaml:"variant"` // standard or contextual
	// EmbeddingWeight is a pointer so that an explicit 0 (lexical only) survives ApplyDefaults.
	EmbeddingWeight *float64 `yaml:"embedding_weight"`
	NameFeatures    int      `yaml:"name_features"`
	ContextFeatures int      `yaml:"context_features"`
	SeedSize        int      `yaml:"seed_size"`
	TypoCorrection  *bool    `yaml:"typo_correction"`
	MaxEditDistance int      `yaml:"max_edit_distance"`
	DefaultLimit    int      `yaml:"default_limit"`
	MaxLimit        int      `yaml:"max_limit"`
}

// DialogueConfig holds conversation flow settings.
type DialogueConfig struct {
	Store          string `yaml:"store"` // memory or badger
	StatePath      string `yaml:"state_path"`
	PageSize       int    `yaml:"page_size"`
	CandidatePool  int    `yaml:"candidate_pool"`
	Alternatives   int    `yaml:"alternatives"`
	ResetOnRestart bool   `yaml:"reset_on_restart"`
	// ExtensionCodes are portfolio codes of offerings open to the general public.
	ExtensionCodes []string `yaml:"extension_codes"`
	// ExtensionLabels are category label fragments marking continuing education offerings.
	ExtensionLabels []string `yaml:"extension_labels"`
}

// TaggingConfig holds settings for tagging user messages with a topic cluster.
type TaggingConfig struct {
	Enabled bool `yaml:"enabled"`
	// Embedder is onnx or hash. The hash embedder needs no model file.
	Embedder      string `yaml:"embedder"`
	ModelPath     string `yaml:"model_path"`
	CentroidsPath string `yaml:"centroids_path"`
	Dimensions    int    `yaml:"dimensions"`
	MaxTokens     int    `yaml:"max_tokens"`
	CacheSize     int    `yaml:"cache_size"`
}

// EmbeddingWeightOrDefault returns the configured embedding weight.
func (r *RankingConfig) EmbeddingWeightOrDefault() float64 {
	if r.EmbeddingWeight != nil {
		return *r.EmbeddingWeight
	}
	return DefaultEmbeddingWeight
}

// TypoCorrectionOrDefault returns whether query terms are corrected; defaults to true when unset.
func (r *RankingConfig) TypoCorrectionOrDefault() bool {
	if r.TypoCorrection != nil {
		return *r.TypoCorrection
	}
	return true
}

// Load reads and parses the config file at path, applies environment overrides,
// expands paths, and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := finish(&cfg, filepath.Dir(path)); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config built only from defaults and the environment.
// Relative paths are resolved against dir.
func Default(dir string) (*Config, error) {
	var cfg Config
	if err := finish(&cfg, dir); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func finish(cfg *Config, configDir string) error {
	if err := ApplyEnv(cfg); err != nil {
		return err
	}
	ApplyDefaults(cfg)

	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Catalog.CoursesPath = expandPath(cfg.Catalog.CoursesPath, configDir)
	cfg.Catalog.EmbeddingsPath = expandPath(cfg.Catalog.EmbeddingsPath, configDir)
	cfg.Dialogue.StatePath = expandPath(cfg.Dialogue.StatePath, configDir)
	cfg.Tagging.ModelPath = expandPath(cfg.Tagging.ModelPath, configDir)
	cfg.Tagging.CentroidsPath = expandPath(cfg.Tagging.CentroidsPath, configDir)

	return cfg.Validate()
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// LoadDotEnv loads the first readable .env file among paths into the process
// environment. Variables already set are not overridden. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
		return nil
	}
	return nil
}

// ApplyEnv overrides cfg with CURSOBOT_* environment variables.
func ApplyEnv(cfg *Config) error {
	if v := os.Getenv("CURSOBOT_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("CURSOBOT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CURSOBOT_PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("CURSOBOT_DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid CURSOBOT_DEBUG %q: %w", v, err)
		}
		cfg.Debug = debug
	}
	if v := os.Getenv("CURSOBOT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CURSOBOT_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("CURSOBOT_DATABASE_URL"); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v := os.Getenv("CURSOBOT_COURSES_PATH"); v != "" {
		cfg.Catalog.CoursesPath = v
	}
	if v := os.Getenv("CURSOBOT_EMBEDDINGS_PATH"); v != "" {
		cfg.Catalog.EmbeddingsPath = v
	}
	return nil
}

// Validate checks enumerations and numeric ranges.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case StorageSQLite:
	case StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}
	switch c.Ranking.Variant {
	case VariantStandard, VariantContextual:
	default:
		errs = append(errs, fmt.Errorf("unknown ranking.variant %q", c.Ranking.Variant))
	}
	if w := c.Ranking.EmbeddingWeightOrDefault(); w < 0 || w > 1 {
		errs = append(errs, fmt.Errorf("ranking.embedding_weight must be in [0,1], got %v", w))
	}
	switch c.Dialogue.Store {
	case StoreMemory, StoreBadger:
	default:
		errs = append(errs, fmt.Errorf("unknown dialogue.store %q", c.Dialogue.Store))
	}
	switch c.Tagging.Embedder {
	case EmbedderONNX, EmbedderHash:
	default:
		errs = append(errs, fmt.Errorf("unknown tagging.embedder %q", c.Tagging.Embedder))
	}
	return errors.Join(errs...)
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if strings.HasPrefix(path, "~/") {
		path = path[2:]
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
