package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/siherrmann/scholar/model"
	"gopkg.in/yaml.v3"
)

// DefaultTemperature is the generation temperature if none is configured.
const DefaultTemperature = 0.2

// Embedding providers understood by the facade.
const (
	ProviderHugot  = "hugot"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderHash   = "hash"
)

// Settings is the YAML configuration of a Scholar instance.
type Settings struct {
	Retrieval model.RetrievalConfig `yaml:"retrieval"`

	Chunking struct {
		Size    int `yaml:"size"`
		Overlap int `yaml:"overlap"`
	} `yaml:"chunking"`

	Embedding struct {
		Provider       string        `yaml:"provider"`
		Model          string        `yaml:"model"`
		BaseURL        string        `yaml:"base_url"`
		Dims           int           `yaml:"dims"`
		BatchSize      int           `yaml:"batch_size"`
		RatePerSecond  float64       `yaml:"rate_per_second"`
		Burst          int           `yaml:"burst"`
		MaxAttempts    int           `yaml:"max_attempts"`
		InitialBackoff time.Duration `yaml:"initial_backoff"`
		APIKey         string        `yaml:"-"`
	} `yaml:"embedding"`

	Generation struct {
		Provider    string   `yaml:"provider"`
		Model       string   `yaml:"model"`
		BaseURL     string   `yaml:"base_url"`
		MaxTokens   int      `yaml:"max_tokens"`
		Temperature *float64 `yaml:"temperature"` // nil uses DefaultTemperature, 0 is deterministic
	} `yaml:"generation"`

	Keywords struct {
		// Extract fills missing paper keywords with a local NER model
		Extract bool `yaml:"extract"`
	} `yaml:"keywords"`

	Translation struct {
		Enabled        bool   `yaml:"enabled"`
		TargetLanguage string `yaml:"target_language"`
	} `yaml:"translation"`

	Queue struct {
		Workers  int `yaml:"workers"`
		Capacity int `yaml:"capacity"`
	} `yaml:"queue"`
}

// LoadSettings reads the settings file at path. An empty path tries
// scholar.yaml in the working directory and the user config directory and
// falls back to the defaults when none exists.
func LoadSettings(path string) (*Settings, error) {
	if path == "" {
		locations := []string{
			"scholar.yaml",
			"scholar.yml",
			filepath.Join(os.Getenv("HOME"), ".config/scholar/scholar.yaml"),
		}
		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return DefaultSettings(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading settings file: %w", err)
	}

	settings := &Settings{}
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("error parsing settings file: %w", err)
	}

	mergeWithEnv(settings)
	applyDefaults(settings)

	return settings, nil
}

// DefaultSettings returns the defaults merged with the environment.
func DefaultSettings() *Settings {
	settings := &Settings{}
	mergeWithEnv(settings)
	applyDefaults(settings)
	return settings
}

// GenerationTemperature returns the configured temperature or DefaultTemperature.
func (s *Settings) GenerationTemperature() float64 {
	if s.Generation.Temperature == nil {
		return DefaultTemperature
	}
	return *s.Generation.Temperature
}

// RetrievalConfig returns the retrieval part of the settings.
func (s *Settings) RetrievalConfig() model.RetrievalConfig {
	return s.Retrieval
}

func applyDefaults(s *Settings) {
	defaults := model.DefaultRetrievalConfig()
	if s.Retrieval.DenseWeight == 0 && s.Retrieval.SparseWeight == 0 {
		s.Retrieval.DenseWeight = defaults.DenseWeight
		s.Retrieval.SparseWeight = defaults.SparseWeight
	}
	if s.Retrieval.TopK == 0 {
		s.Retrieval.TopK = defaults.TopK
	}
	if s.Retrieval.PerPaperCap == 0 {
		s.Retrieval.PerPaperCap = defaults.PerPaperCap
	}
	if s.Retrieval.TokenBudget == 0 {
		s.Retrieval.TokenBudget = defaults.TokenBudget
	}
	if s.Retrieval.CandidateFactor == 0 {
		s.Retrieval.CandidateFactor = defaults.CandidateFactor
	}
	if s.Retrieval.BranchTimeout == 0 {
		s.Retrieval.BranchTimeout = defaults.BranchTimeout
	}

	if s.Chunking.Size == 0 {
		s.Chunking.Size = 500
	}
	if s.Chunking.Overlap == 0 {
		s.Chunking.Overlap = 100
	}

	if s.Embedding.Provider == "" {
		s.Embedding.Provider = ProviderHugot
	}
	if s.Embedding.Model == "" {
		switch s.Embedding.Provider {
		case ProviderOllama:
			s.Embedding.Model = "nomic-embed-text"
		case ProviderOpenAI:
			s.Embedding.Model = "text-embedding-3-small"
		case ProviderHash:
			s.Embedding.Model = "hash"
		default:
			s.Embedding.Model = "sentence-transformers/all-MiniLM-L6-v2"
		}
	}
	if s.Embedding.Dims == 0 {
		switch s.Embedding.Provider {
		case ProviderOllama:
			s.Embedding.Dims = 768
		case ProviderOpenAI:
			s.Embedding.Dims = 1536
		default:
			s.Embedding.Dims = 384
		}
	}
	if s.Embedding.BaseURL == "" && s.Embedding.Provider == ProviderOllama {
		s.Embedding.BaseURL = "http://localhost:11434"
	}
	if s.Embedding.BatchSize == 0 {
		s.Embedding.BatchSize = 100
	}
	if s.Embedding.RatePerSecond == 0 {
		s.Embedding.RatePerSecond = 5
	}
	if s.Embedding.Burst == 0 {
		s.Embedding.Burst = 1
	}
	if s.Embedding.MaxAttempts == 0 {
		s.Embedding.MaxAttempts = 4
	}
	if s.Embedding.InitialBackoff == 0 {
		s.Embedding.InitialBackoff = 500 * time.Millisecond
	}

	if s.Generation.Provider == ProviderOllama && s.Generation.BaseURL == "" {
		s.Generation.BaseURL = "http://localhost:11434"
	}
	if s.Generation.Provider != "" && s.Generation.Model == "" {
		if s.Generation.Provider == ProviderOpenAI {
			s.Generation.Model = "gpt-4o-mini"
		} else {
			s.Generation.Model = "mistral"
		}
	}
	if s.Generation.MaxTokens == 0 {
		s.Generation.MaxTokens = 1024
	}
	if s.Generation.Temperature == nil {
		temperature := DefaultTemperature
		s.Generation.Temperature = &temperature
	}

	if s.Translation.TargetLanguage == "" {
		s.Translation.TargetLanguage = "English"
	}

	if s.Queue.Workers == 0 {
		s.Queue.Workers = 2
	}
	if s.Queue.Capacity == 0 {
		s.Queue.Capacity = 256
	}
}

func mergeWithEnv(s *Settings) {
	if provider := os.Getenv("SCHOLAR_EMBEDDING_PROVIDER"); provider != "" {
		s.Embedding.Provider = provider
	}
	if embeddingModel := os.Getenv("SCHOLAR_EMBEDDING_MODEL"); embeddingModel != "" {
		s.Embedding.Model = embeddingModel
	}
	if provider := os.Getenv("SCHOLAR_GENERATION_PROVIDER"); provider != "" {
		s.Generation.Provider = provider
	}
	if generationModel := os.Getenv("SCHOLAR_GENERATION_MODEL"); generationModel != "" {
		s.Generation.Model = generationModel
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		s.Embedding.BaseURL = baseURL
		s.Generation.BaseURL = baseURL
	}
	if workers, err := strconv.Atoi(os.Getenv("SCHOLAR_QUEUE_WORKERS")); err == nil {
		s.Queue.Workers = workers
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		s.Embedding.APIKey = apiKey
	}
}
