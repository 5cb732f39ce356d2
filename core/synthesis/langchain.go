package synthesis

import (
	"context"
	"fmt"

	"github.com/siherrmann/scholar/core/retrieval"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// DefaultGenerateOptions keep answers close to the sources.
func DefaultGenerateOptions() []llms.CallOption {
	return []llms.CallOption{
		llms.WithTemperature(0.1),
		llms.WithMaxTokens(1500),
	}
}

// LangchainGenerator adapts a langchaingo model to a GenerateFunc.
// Without options DefaultGenerateOptions are used.
func LangchainGenerator(llm llms.Model, opts ...llms.CallOption) GenerateFunc {
	if len(opts) == 0 {
		opts = DefaultGenerateOptions()
	}
	return func(ctx context.Context, prompt string) (string, error) {
		return llms.GenerateFromSinglePrompt(ctx, llm, prompt, opts...)
	}
}

// LangchainTranslator translates queries into language with a langchaingo model.
func LangchainTranslator(llm llms.Model, language string) retrieval.TranslateFunc {
	return func(ctx context.Context, text string) (string, error) {
		prompt := fmt.Sprintf(
			"Translate the following search query into %s. Keep technical terms and gene names unchanged. Reply with the translation only.\n\nQuery: %s",
			language, text,
		)
		return llms.GenerateFromSinglePrompt(ctx, llm, prompt, llms.WithTemperature(0))
	}
}

// NewOllamaModel connects to an ollama server, an empty serverURL uses the default.
func NewOllamaModel(modelName string, serverURL string) (llms.Model, error) {
	opts := []ollama.Option{ollama.WithModel(modelName)}
	if serverURL != "" {
		opts = append(opts, ollama.WithServerURL(serverURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating ollama model: %w", err)
	}
	return llm, nil
}
