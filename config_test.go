package main

import (
	"os"
	"testing"
)

// TestLoadConfig tests configuration loading
func TestLoadConfig(t *testing.T) {
	t.Run("loads API keys from environment", func(t *testing.T) {
		t.Setenv("OPENROUTER_API_KEY", "test-key-12345")
		t.Setenv("GEMINI_API_KEY", "gemini-key")

		// LoadConfig will try to load .env but that's OK if it fails
		LoadConfig()

		if OpenRouterAPIKey != "test-key-12345" {
			t.Errorf("API key = %q, want 'test-key-12345'", OpenRouterAPIKey)
		}
		if APIKeyFor(ProviderGemini) != "gemini-key" || APIKeyFor(ProviderGoogle) != "gemini-key" {
			t.Errorf("gemini and google providers should share GEMINI_API_KEY")
		}
		if APIKeyFor(ProviderMock) != "" {
			t.Errorf("mock provider should need no key")
		}
	})

	t.Run("reads directories and CORS origins", func(t *testing.T) {
		oldDataDir, oldResultsDir, oldOrigins := DataDir, ResultsDir, CORSAllowedOrigins
		defer func() {
			DataDir, ResultsDir, CORSAllowedOrigins = oldDataDir, oldResultsDir, oldOrigins
		}()

		t.Setenv("DATA_DIR", "/tmp/runs")
		t.Setenv("RESULTS_DIR", "/tmp/results")
		t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
		LoadConfig()

		if DataDir != "/tmp/runs" {
			t.Errorf("DataDir = %q, want /tmp/runs", DataDir)
		}
		if ResultsDir != "/tmp/results" {
			t.Errorf("ResultsDir = %q, want /tmp/results", ResultsDir)
		}
		if len(CORSAllowedOrigins) != 2 || CORSAllowedOrigins[1] != "https://b.example" {
			t.Errorf("CORSAllowedOrigins = %v", CORSAllowedOrigins)
		}
	})
}

// TestConfigConstants tests configuration defaults
func TestConfigConstants(t *testing.T) {
	expectedURL := "https://openrouter.ai/api/v1/chat/completions"
	if OpenRouterAPIURL != expectedURL {
		t.Errorf("OpenRouterAPIURL = %q, want %q", OpenRouterAPIURL, expectedURL)
	}

	if os.Getenv("DATA_DIR") == "" && DataDir != "data/experiments" {
		t.Errorf("DataDir = %q, want data/experiments", DataDir)
	}

	d := DefaultExperimentSettings()
	if d.Temperature != 0.7 || d.MaxTokens != 1000 {
		t.Errorf("answer defaults = %v/%d, want 0.7/1000", d.Temperature, d.MaxTokens)
	}
	if d.VoteTemperature != 0.3 || d.VoteMaxTokens != 500 {
		t.Errorf("vote defaults = %v/%d, want 0.3/500", d.VoteTemperature, d.VoteMaxTokens)
	}
	if !d.ShouldCollectReasoning() {
		t.Error("collect_reasoning should default to true")
	}
}

// TestParseExperimentConfig tests decoding of config.yaml
func TestParseExperimentConfig(t *testing.T) {
	t.Run("full config with mixed prompts", func(t *testing.T) {
		cfg, err := ParseExperimentConfig([]byte(`
models:
  - name: openai/gpt-4o
    provider: openrouter
  - name: gemini-2.0-flash
    provider: gemini
experiment:
  temperature: 0.5
  vote_temperature: 0.1
  collect_reasoning: false
  seed: 7
prompts:
  - "What is recursion?"
  - id: custom
    text: "Summarise this page"
    url: https://example.com
output:
  data_dir: out/runs
`))
		if err != nil {
			t.Fatalf("ParseExperimentConfig failed: %v", err)
		}

		if len(cfg.Models) != 2 || cfg.Models[1].Provider != ProviderGemini {
			t.Errorf("Models = %+v", cfg.Models)
		}
		if cfg.Experiment.Temperature != 0.5 || cfg.Experiment.VoteTemperature != 0.1 {
			t.Errorf("temperatures = %v/%v", cfg.Experiment.Temperature, cfg.Experiment.VoteTemperature)
		}
		if cfg.Experiment.MaxTokens != 1000 || cfg.Experiment.VoteMaxTokens != 500 {
			t.Errorf("defaults not applied: %+v", cfg.Experiment)
		}
		if cfg.Experiment.ShouldCollectReasoning() {
			t.Error("collect_reasoning: false was ignored")
		}
		if cfg.Experiment.Seed != 7 {
			t.Errorf("Seed = %d, want 7", cfg.Experiment.Seed)
		}

		if len(cfg.Prompts) != 2 {
			t.Fatalf("Prompts = %+v", cfg.Prompts)
		}
		if cfg.Prompts[0].ID != "prompt-001" || cfg.Prompts[0].Text != "What is recursion?" {
			t.Errorf("Prompts[0] = %+v", cfg.Prompts[0])
		}
		if cfg.Prompts[1].ID != "custom" || cfg.Prompts[1].URL != "https://example.com" {
			t.Errorf("Prompts[1] = %+v", cfg.Prompts[1])
		}
		if cfg.Output.DataDir != "out/runs" {
			t.Errorf("Output.DataDir = %q", cfg.Output.DataDir)
		}
	})

	t.Run("invalid configs", func(t *testing.T) {
		tests := []struct {
			name string
			yaml string
		}{
			{"single model", "models:\n  - name: a\nprompts: [x]\n"},
			{"duplicate model", "models:\n  - name: a\n  - name: a\n"},
			{"unknown provider", "models:\n  - name: a\n  - name: b\n    provider: carrier-pigeon\n"},
			{"duplicate prompt id", "models:\n  - name: a\n  - name: b\nprompts:\n  - {id: x, text: one}\n  - {id: x, text: two}\n"},
			{"empty prompt", "models:\n  - name: a\n  - name: b\nprompts:\n  - \"  \"\n"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := ParseExperimentConfig([]byte(tt.yaml))
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !IsConfigError(err) {
					t.Errorf("expected ConfigError, got %T: %v", err, err)
				}
			})
		}
	})

	t.Run("malformed YAML", func(t *testing.T) {
		if _, err := ParseExperimentConfig([]byte("models: [")); err == nil {
			t.Error("expected parse error")
		}
	})
}

// TestLoadExperimentConfig tests reading the config file from disk
func TestLoadExperimentConfig(t *testing.T) {
	helper := NewTestHelper(t)
	defer helper.Cleanup()

	path := helper.WriteFile("config.yaml", "models:\n  - name: a\n  - name: b\nprompts:\n  - hello\n")
	cfg, err := LoadExperimentConfig(path)
	if err != nil {
		t.Fatalf("LoadExperimentConfig failed: %v", err)
	}
	cfg.ApplyMockProviders()
	for _, m := range cfg.Models {
		if m.Provider != ProviderMock {
			t.Errorf("model %s provider = %s, want mock", m.Name, m.Provider)
		}
	}

	if _, err := LoadExperimentConfig(path + ".missing"); err == nil {
		t.Error("expected error for missing file")
	}
}
