package synthesis

import (
	"context"
	"log/slog"
	"strings"

	"github.com/siherrmann/scholar/core/pipeline"
	"github.com/siherrmann/scholar/helper"
	"github.com/siherrmann/scholar/model"
)

// GenerateFunc turns a prompt into generated text.
type GenerateFunc func(ctx context.Context, prompt string) (string, error)

// Synthesizer answers questions from a context window with a language model.
type Synthesizer struct {
	generate GenerateFunc
	logger   *slog.Logger
}

// NewSynthesizer creates a new synthesizer.
func NewSynthesizer(generate GenerateFunc, logger *slog.Logger) (*Synthesizer, error) {
	if generate == nil {
		return nil, helper.Wrap(helper.ErrInvalidInput, "generate function is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{generate: generate, logger: logger}, nil
}

// Answer generates a cited answer. An empty window yields a no-evidence
// answer without calling the model.
func (s *Synthesizer) Answer(ctx context.Context, question string, window *model.ContextWindow) (*model.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, helper.NewError("answer", helper.Wrap(helper.ErrInvalidInput, "question is empty"))
	}

	answer := &model.Answer{
		Question: question,
		Sources:  []model.SourceCitation{},
	}
	if window.Empty() {
		answer.NoEvidence = true
		return answer, nil
	}

	text, err := s.generate(ctx, BuildPrompt(question, window))
	if err != nil {
		return nil, helper.NewError("generate answer", pipeline.ClassifyProviderError(err))
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, helper.NewError("generate answer", helper.Wrap(helper.ErrProviderTransient, "empty response"))
	}

	answer.Text = text
	answer.Sources = ParseCitations(text, window)
	answer.Confidence = Confidence(text, answer.Sources, window)

	s.logger.Debug("Generated answer",
		"sources", len(answer.Sources),
		"context_items", len(window.Items),
		"confidence", answer.Confidence,
	)

	return answer, nil
}
