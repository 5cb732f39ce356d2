package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/siherrmann/scholar/helper"
	"golang.org/x/time/rate"
)

// EmbeddingClientConfig configures batching, rate limiting and retries.
type EmbeddingClientConfig struct {
	Model          string
	Dims           int
	BatchSize      int
	RatePerSecond  float64
	Burst          int
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultEmbeddingClientConfig returns the configuration for the default hugot model.
func DefaultEmbeddingClientConfig() EmbeddingClientConfig {
	return EmbeddingClientConfig{
		Model:          DefaultEmbeddingModel,
		Dims:           DefaultEmbeddingDims,
		BatchSize:      100,
		RatePerSecond:  5,
		Burst:          1,
		MaxAttempts:    4,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
	}
}

// EmbedResult holds one slot per input text. Vectors[i] is nil exactly when
// Errors[i] is set.
type EmbedResult struct {
	Vectors   [][]float32
	Errors    []error
	Succeeded int
	Failed    int
}

// EmbeddingClient batches texts, rate limits provider calls and retries
// transient failures with exponential backoff.
type EmbeddingClient struct {
	embed   BatchEmbedFunc
	config  EmbeddingClientConfig
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewEmbeddingClient creates a client for the given provider function.
func NewEmbeddingClient(embed BatchEmbedFunc, config EmbeddingClientConfig, logger *slog.Logger) (*EmbeddingClient, error) {
	if embed == nil {
		return nil, helper.Wrap(helper.ErrInvalidInput, "embed function is nil")
	}
	if config.Model == "" {
		return nil, helper.Wrap(helper.ErrInvalidInput, "embedding model is empty")
	}
	if config.Dims <= 0 || config.BatchSize <= 0 || config.MaxAttempts <= 0 || config.RatePerSecond <= 0 {
		return nil, helper.Wrap(helper.ErrInvalidInput, "dims, batch size, max attempts and rate must be positive")
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = 500 * time.Millisecond
	}
	if config.MaxBackoff < config.InitialBackoff {
		config.MaxBackoff = config.InitialBackoff
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &EmbeddingClient{
		embed:   embed,
		config:  config,
		limiter: rate.NewLimiter(rate.Limit(config.RatePerSecond), config.Burst),
		logger:  logger,
	}, nil
}

// Model returns the embedding model identifier.
func (c *EmbeddingClient) Model() string {
	return c.config.Model
}

// Dims returns the embedding dimensionality.
func (c *EmbeddingClient) Dims() int {
	return c.config.Dims
}

// Embed embeds texts in batches. Transient failures that survive all
// attempts fail their batch only. A fatal provider error or a cancelled
// context fails every remaining text and is returned together with the
// partial result.
func (c *EmbeddingClient) Embed(ctx context.Context, texts []string) (*EmbedResult, error) {
	result := &EmbedResult{
		Vectors: make([][]float32, len(texts)),
		Errors:  make([]error, len(texts)),
	}

	for start := 0; start < len(texts); start += c.config.BatchSize {
		end := min(start+c.config.BatchSize, len(texts))

		vectors, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			stop := ctx.Err() != nil || errors.Is(err, helper.ErrProviderFatal)
			failUntil := end
			if stop {
				failUntil = len(texts)
			}
			for i := start; i < failUntil; i++ {
				result.Errors[i] = err
				result.Failed++
			}
			if stop {
				return result, helper.NewError("embed", err)
			}
			c.logger.Warn("Embedding batch failed", "model", c.config.Model, "batch_start", start, "batch_size", end-start, "error", err)
			continue
		}

		for i, vector := range vectors {
			if len(vector) != c.config.Dims {
				result.Errors[start+i] = helper.Wrap(helper.ErrProviderFatal, "embedding has %d dimensions, expected %d", len(vector), c.config.Dims)
				result.Failed++
				continue
			}
			result.Vectors[start+i] = vector
			result.Succeeded++
		}
	}

	return result, nil
}

// EmbedQuery embeds a single query text.
func (c *EmbeddingClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	result, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if result.Errors[0] != nil {
		return nil, helper.NewError("embed query", result.Errors[0])
	}
	return result.Vectors[0], nil
}

func (c *EmbeddingClient) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	exponential := backoff.NewExponentialBackOff()
	exponential.InitialInterval = c.config.InitialBackoff
	exponential.MaxInterval = c.config.MaxBackoff
	exponential.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(exponential, uint64(c.config.MaxAttempts-1)), ctx)

	var vectors [][]float32
	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		v, err := c.embed(ctx, batch)
		if err == nil {
			if len(v) != len(batch) {
				return backoff.Permanent(helper.Wrap(helper.ErrProviderFatal, "got %d embeddings for %d texts", len(v), len(batch)))
			}
			vectors = v
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return backoff.Permanent(ctxErr)
		}

		classified := ClassifyProviderError(err)
		if errors.Is(classified, helper.ErrProviderTransient) {
			return classified
		}
		return backoff.Permanent(classified)
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Debug("Retrying embedding batch", "model", c.config.Model, "wait", wait, "error", err)
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, err
	}
	return vectors, nil
}

// ClassifyProviderError maps a provider failure onto the error taxonomy.
// Authentication and quota failures are fatal. Rate limits, timeouts,
// unavailability and unknown failures are transient. Errors that already
// carry a kind and context cancellation are returned unchanged.
func ClassifyProviderError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || helper.KindOf(err) != nil {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return helper.Wrap(helper.ErrProviderTransient, "provider timeout")
	}

	e := strings.ToLower(err.Error())
	switch {
	case strings.Contains(e, "quota"), strings.Contains(e, "credit"), strings.Contains(e, "billing"):
		return helper.Wrap(helper.ErrProviderFatal, "provider quota exhausted")
	case strings.Contains(e, "401"), strings.Contains(e, "403"), strings.Contains(e, "unauthorized"),
		strings.Contains(e, "forbidden"), strings.Contains(e, "api key"), strings.Contains(e, "authentication"):
		return helper.Wrap(helper.ErrProviderFatal, "provider authentication failed")
	case strings.Contains(e, "rate limit"), strings.Contains(e, "rate_limit"), strings.Contains(e, "429"), strings.Contains(e, "too many requests"):
		return helper.Wrap(helper.ErrProviderTransient, "provider rate limited")
	case strings.Contains(e, "timeout"), strings.Contains(e, "temporarily"), strings.Contains(e, "unavailable"):
		return helper.Wrap(helper.ErrProviderTransient, "provider unavailable")
	default:
		return helper.Wrap(helper.ErrProviderTransient, "provider call failed: %v", err)
	}
}
