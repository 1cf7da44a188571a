package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Configuration values, populated from the environment by LoadConfig
var (
	// Provider API keys
	OpenRouterAPIKey string
	OpenAIAPIKey     string
	GeminiAPIKey     string
	DeepSeekAPIKey   string
	MistralAPIKey    string

	// OpenRouterAPIURL is the endpoint for OpenRouter API
	OpenRouterAPIURL = "https://openrouter.ai/api/v1/chat/completions"

	// Base URLs for OpenAI-compatible providers
	DeepSeekBaseURL = "https://api.deepseek.com/v1"
	MistralBaseURL  = "https://api.mistral.ai/v1"

	// DataDir holds raw experiment runs and CSV exports
	DataDir = "data/experiments"

	// ResultsDir holds computed metrics
	ResultsDir = "results"

	// Timeout constants
	ModelQueryTimeout = 120 * time.Second
	FetchURLTimeout   = 30 * time.Second

	// CORS allowed origins (configurable via environment)
	// In development (empty/default), allows any localhost port
	CORSAllowedOrigins = []string{}

	// MaxRequestBodySize is the maximum allowed request body size (1MB)
	MaxRequestBodySize int64 = 1 << 20

	// PromptContextCacheTTL is how long fetched URL context is reused
	PromptContextCacheTTL = 10 * time.Minute
)

// LoadConfig loads configuration from the environment, reading a .env file first if one exists
func LoadConfig() {
	envLocations := []string{
		".env",
		"../.env",
	}

	envLoaded := false
	for _, envPath := range envLocations {
		absPath, err := filepath.Abs(envPath)
		if err != nil {
			continue
		}

		if _, err := os.Stat(absPath); err == nil {
			if err := godotenv.Load(absPath); err == nil {
				logger.Infof("Loaded .env from: %s", absPath)
				envLoaded = true
				break
			}
		}
	}

	if !envLoaded {
		logger.Debug(".env file not found in any expected location")
	}

	OpenRouterAPIKey = os.Getenv("OPENROUTER_API_KEY")
	OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	DeepSeekAPIKey = os.Getenv("DEEPSEEK_API_KEY")
	MistralAPIKey = os.Getenv("MISTRAL_API_KEY")

	if dir := os.Getenv("DATA_DIR"); dir != "" {
		DataDir = dir
	}
	if dir := os.Getenv("RESULTS_DIR"); dir != "" {
		ResultsDir = dir
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		SetLogLevel(level)
	}

	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		CORSAllowedOrigins = []string{}
		for _, origin := range strings.Split(corsOrigins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				CORSAllowedOrigins = append(CORSAllowedOrigins, origin)
			}
		}
	}

	logger.Debug("Configuration loaded successfully")
}

// APIKeyFor returns the key configured for provider, or "" if none applies
func APIKeyFor(provider string) string {
	switch provider {
	case ProviderOpenRouter:
		return OpenRouterAPIKey
	case ProviderOpenAI:
		return OpenAIAPIKey
	case ProviderGemini, ProviderGoogle:
		return GeminiAPIKey
	case ProviderDeepSeek:
		return DeepSeekAPIKey
	case ProviderMistral:
		return MistralAPIKey
	}
	return ""
}

// GenerationConfig carries the options the generation collaborator understands
type GenerationConfig struct {
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// ExperimentSettings tunes one run
type ExperimentSettings struct {
	Temperature      float64 `json:"temperature" yaml:"temperature"`
	MaxTokens        int     `json:"max_tokens" yaml:"max_tokens"`
	VoteTemperature  float64 `json:"vote_temperature" yaml:"vote_temperature"`
	VoteMaxTokens    int     `json:"vote_max_tokens" yaml:"vote_max_tokens"`
	CollectReasoning *bool   `json:"collect_reasoning,omitempty" yaml:"collect_reasoning"`
	Seed             int64   `json:"seed" yaml:"seed"`
	Concurrency      int     `json:"concurrency" yaml:"concurrency"`
	VoteConcurrency  int     `json:"vote_concurrency" yaml:"vote_concurrency"`
}

// DefaultExperimentSettings mirrors the defaults of the original experiment
func DefaultExperimentSettings() ExperimentSettings {
	return ExperimentSettings{
		Temperature:     0.7,
		MaxTokens:       1000,
		VoteTemperature: 0.3,
		VoteMaxTokens:   500,
		Seed:            42,
		Concurrency:     2,
		VoteConcurrency: 4,
	}
}

// AnswerConfig is the generation config for answering prompts
func (s ExperimentSettings) AnswerConfig() GenerationConfig {
	return GenerationConfig{Temperature: s.Temperature, MaxTokens: s.MaxTokens}
}

// VoteConfig is the generation config for voting
func (s ExperimentSettings) VoteConfig() GenerationConfig {
	return GenerationConfig{Temperature: s.VoteTemperature, MaxTokens: s.VoteMaxTokens}
}

// ShouldCollectReasoning reports whether raw vote text is kept on VoteRecords
func (s ExperimentSettings) ShouldCollectReasoning() bool {
	return s.CollectReasoning == nil || *s.CollectReasoning
}

// withDefaults fills zero token limits and concurrency from DefaultExperimentSettings.
// Temperatures are left alone since 0 is a valid setting.
func (s ExperimentSettings) withDefaults() ExperimentSettings {
	d := DefaultExperimentSettings()
	if s.MaxTokens <= 0 {
		s.MaxTokens = d.MaxTokens
	}
	if s.VoteMaxTokens <= 0 {
		s.VoteMaxTokens = d.VoteMaxTokens
	}
	if s.Concurrency <= 0 {
		s.Concurrency = d.Concurrency
	}
	if s.VoteConcurrency <= 0 {
		s.VoteConcurrency = d.VoteConcurrency
	}
	return s
}

// OutputConfig names where results are written
type OutputConfig struct {
	DataDir    string `yaml:"data_dir"`
	ResultsDir string `yaml:"results_dir"`
}

// ExperimentConfig is the shape of config.yaml
type ExperimentConfig struct {
	Models     []ModelSpec        `yaml:"models"`
	Experiment ExperimentSettings `yaml:"experiment"`
	Prompts    []Prompt           `yaml:"prompts"`
	Output     OutputConfig       `yaml:"output"`
}

// UnmarshalYAML accepts a prompt as either a plain string or a {id, text, url} mapping
func (p *Prompt) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		p.Text = value.Value
		return nil
	}
	type rawPrompt Prompt
	var raw rawPrompt
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*p = Prompt(raw)
	return nil
}

// LoadExperimentConfig reads and validates an experiment file
func LoadExperimentConfig(path string) (*ExperimentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read experiment config: %w", err)
	}
	return ParseExperimentConfig(data)
}

// ParseExperimentConfig decodes YAML, applies defaults and assigns prompt ids
func ParseExperimentConfig(data []byte) (*ExperimentConfig, error) {
	// keys absent from the file keep their defaults
	cfg := ExperimentConfig{Experiment: DefaultExperimentSettings()}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse experiment config: %w", err)
	}

	cfg.Experiment = cfg.Experiment.withDefaults()
	prompts, err := NormalizePrompts(cfg.Prompts)
	if err != nil {
		return nil, err
	}
	cfg.Prompts = prompts

	if _, err := NewModelRegistry(cfg.Models); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NormalizePrompts trims prompts, assigns missing ids and rejects duplicates
func NormalizePrompts(prompts []Prompt) ([]Prompt, error) {
	out := make([]Prompt, 0, len(prompts))
	seen := make(map[string]bool)
	for i, p := range prompts {
		p.Text = strings.TrimSpace(p.Text)
		p.ID = strings.TrimSpace(p.ID)
		if p.Text == "" && p.URL == "" {
			return nil, &ConfigError{Reason: fmt.Sprintf("prompt %d has no text", i+1)}
		}
		if p.ID == "" {
			p.ID = fmt.Sprintf("prompt-%03d", i+1)
		}
		if seen[p.ID] {
			return nil, &ConfigError{Reason: fmt.Sprintf("duplicate prompt id %s", p.ID)}
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out, nil
}

// ApplyMockProviders replaces every provider with the mock provider
func (c *ExperimentConfig) ApplyMockProviders() {
	for i := range c.Models {
		c.Models[i].Provider = ProviderMock
	}
}
