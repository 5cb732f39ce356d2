package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/siherrmann/scholar/helper"
)

// ValidationError names an invalid settings field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate returns every invalid field. An empty slice means the settings are usable.
func (s *Settings) Validate() []ValidationError {
	var errors []ValidationError

	if err := s.Retrieval.Validate(); err != nil {
		errors = append(errors, ValidationError{
			Field:   "retrieval",
			Message: err.Error(),
		})
	}

	// Chunking
	if s.Chunking.Size < 1 {
		errors = append(errors, ValidationError{
			Field:   "chunking.size",
			Message: "size must be positive",
		})
	}
	if s.Chunking.Overlap < 0 || s.Chunking.Overlap >= s.Chunking.Size {
		errors = append(errors, ValidationError{
			Field:   "chunking.overlap",
			Message: "overlap must be non-negative and less than size",
		})
	}

	// Embedding
	switch s.Embedding.Provider {
	case ProviderHugot, ProviderOllama, ProviderOpenAI, ProviderHash:
	default:
		errors = append(errors, ValidationError{
			Field:   "embedding.provider",
			Message: fmt.Sprintf("unknown provider %q", s.Embedding.Provider),
		})
	}
	if s.Embedding.Dims < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedding.dims",
			Message: "dims must be positive",
		})
	}
	if s.Embedding.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedding.batch_size",
			Message: "batch_size must be positive",
		})
	}
	if s.Embedding.RatePerSecond <= 0 {
		errors = append(errors, ValidationError{
			Field:   "embedding.rate_per_second",
			Message: "rate_per_second must be positive",
		})
	}
	if s.Embedding.MaxAttempts < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedding.max_attempts",
			Message: "max_attempts must be positive",
		})
	}
	if s.Embedding.Provider == ProviderOpenAI && s.Embedding.APIKey == "" {
		errors = append(errors, ValidationError{
			Field:   "embedding.api_key",
			Message: "OPENAI_API_KEY is required for the openai provider",
		})
	}
	if s.Embedding.BaseURL != "" {
		if _, err := url.Parse(s.Embedding.BaseURL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "embedding.base_url",
				Message: "invalid base URL",
			})
		}
	}

	// Generation
	switch s.Generation.Provider {
	case "", ProviderOllama, ProviderOpenAI:
	default:
		errors = append(errors, ValidationError{
			Field:   "generation.provider",
			Message: fmt.Sprintf("unknown provider %q", s.Generation.Provider),
		})
	}
	if temperature := s.GenerationTemperature(); temperature < 0 || temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "generation.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	// Queue
	if s.Queue.Workers < 1 {
		errors = append(errors, ValidationError{
			Field:   "queue.workers",
			Message: "workers must be positive",
		})
	}
	if s.Queue.Capacity < 1 {
		errors = append(errors, ValidationError{
			Field:   "queue.capacity",
			Message: "capacity must be positive",
		})
	}

	return errors
}

// Check returns the validation errors as a single invalid input error.
func (s *Settings) Check() error {
	errs := s.Validate()
	if len(errs) == 0 {
		return nil
	}
	messages := make([]string, len(errs))
	for i, e := range errs {
		messages[i] = e.Error()
	}
	return helper.Wrap(helper.ErrInvalidInput, "invalid settings: %s", strings.Join(messages, "; "))
}
