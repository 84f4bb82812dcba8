package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed prices.yaml
var pricesYAML []byte

//go:embed categories.yaml
var categoriesYAML []byte

type Config struct {
	OpenAI     OpenAIConfig
	Gemini     GeminiConfig
	Ollama     OllamaConfig
	LlamaCpp   LlamaCppConfig
	AIProvider string // default provider name (openai, gemini, ollama, llamacpp)
	Database   DatabaseConfig
	Web        WebConfig
	Prices     PricesConfig
	Categories []string // fixed category enumeration offered to the AI
}

type OpenAIConfig struct {
	APIKey string
}

type GeminiConfig struct {
	APIKey string
}

type OllamaConfig struct {
	URL   string // defaults to http://localhost:11434
	Model string // defaults to llama3.2-vision:11b
}

type LlamaCppConfig struct {
	URL   string // defaults to http://localhost:8080
	Model string // defaults to llava
}

type DatabaseConfig struct {
	URL                string // connection URL / DSN; empty keeps photos in memory only
	Driver             string // postgres or mysql (default postgres)
	MaxOpenConns       int    // Maximum open connections (default 25)
	MaxIdleConns       int    // Maximum idle connections (default 5)
	DuplicateIndexPath string // Path to persist the duplicate HNSW index (optional, if empty index is rebuilt on startup)
}

type WebConfig struct {
	Port   int    // defaults to 8080
	Host   string // defaults to 0.0.0.0
	APIKey string // bearer token required by the API; empty leaves the API open
}

type PricesConfig struct {
	Models map[string]ModelPricing `yaml:"models"`
}

type ModelPricing struct {
	Standard RequestPricing `yaml:"standard"`
	Batch    RequestPricing `yaml:"batch"`
}

type RequestPricing struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

type categoriesFile struct {
	Categories []string `yaml:"categories"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envString reads an environment variable, falling back to a default when unset.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var prices PricesConfig
	if err := yaml.Unmarshal(pricesYAML, &prices); err != nil {
		// Embedded file, a parse failure is a build defect not a runtime condition
		panic("failed to unmarshal embedded prices.yaml: " + err.Error())
	}

	var categories categoriesFile
	if err := yaml.Unmarshal(categoriesYAML, &categories); err != nil {
		panic("failed to unmarshal embedded categories.yaml: " + err.Error())
	}

	return &Config{
		OpenAI: OpenAIConfig{
			APIKey: os.Getenv("OPENAI_API_KEY"),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
		},
		Ollama: OllamaConfig{
			URL:   os.Getenv("OLLAMA_URL"),
			Model: os.Getenv("OLLAMA_MODEL"),
		},
		LlamaCpp: LlamaCppConfig{
			URL:   os.Getenv("LLAMACPP_URL"),
			Model: os.Getenv("LLAMACPP_MODEL"),
		},
		AIProvider: envString("AI_PROVIDER", "openai"),
		Database: DatabaseConfig{
			URL:                os.Getenv("DATABASE_URL"),
			Driver:             envString("DATABASE_DRIVER", "postgres"),
			MaxOpenConns:       envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:       envInt("DATABASE_MAX_IDLE_CONNS", 5),
			DuplicateIndexPath: os.Getenv("DUPLICATE_INDEX_PATH"),
		},
		Web: WebConfig{
			Port:   envInt("WEB_PORT", 8080),
			Host:   envString("WEB_HOST", "0.0.0.0"),
			APIKey: os.Getenv("API_KEY"),
		},
		Prices:     prices,
		Categories: categories.Categories,
	}
}

// GetModelPricing returns pricing for a specific model, with fallback defaults
func (c *Config) GetModelPricing(modelName string) ModelPricing {
	if pricing, ok := c.Prices.Models[modelName]; ok {
		return pricing
	}
	// Return zero pricing if model not found (local models are free)
	return ModelPricing{}
}
