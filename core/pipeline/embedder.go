package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/knights-analytics/hugot"
	"github.com/siherrmann/scholar/helper"
)

const (
	DefaultEmbeddingModel = "sentence-transformers/all-MiniLM-L6-v2"
	DefaultEmbeddingDims  = 384
)

// DefaultEmbedder creates an embedder using a real sentence transformer model
// Uses the all-MiniLM-L6-v2 model which produces 384-dimensional embeddings
func DefaultEmbedder() (BatchEmbedFunc, error) {
	return HugotEmbedder(DefaultEmbeddingModel, "onnx/model.onnx")
}

// HugotEmbedder runs a feature extraction model locally with the pure Go
// hugot backend. The model is downloaded on first use.
func HugotEmbedder(modelName string, onnxFilePath string) (BatchEmbedFunc, error) {
	modelPath, err := helper.PrepareModel(modelName, onnxFilePath)
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "embedder-pipeline",
	}
	sentencePipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create sentence pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create sentence pipeline: %w", err)
	}

	return func(ctx context.Context, texts []string) ([][]float32, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := sentencePipeline.RunPipeline(texts)
		if err != nil {
			return nil, fmt.Errorf("failed to generate embeddings: %w", err)
		}
		if len(result.Embeddings) != len(texts) {
			return nil, fmt.Errorf("embedding count mismatch: got %d embeddings for %d texts", len(result.Embeddings), len(texts))
		}

		return result.Embeddings, nil
	}, nil
}

// EmbeddingCreator is implemented by the langchaingo ollama and openai clients.
type EmbeddingCreator interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// LangchainEmbedder embeds through a remote provider.
func LangchainEmbedder(client EmbeddingCreator) BatchEmbedFunc {
	return func(ctx context.Context, texts []string) ([][]float32, error) {
		vectors, err := client.CreateEmbedding(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(texts) {
			return nil, fmt.Errorf("embedding count mismatch: got %d embeddings for %d texts", len(vectors), len(texts))
		}
		return vectors, nil
	}
}

// FromEmbedFunc embeds a batch by calling embed once per text.
func FromEmbedFunc(embed EmbedFunc) BatchEmbedFunc {
	return func(ctx context.Context, texts []string) ([][]float32, error) {
		vectors := make([][]float32, len(texts))
		for i, text := range texts {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			vector, err := embed(text)
			if err != nil {
				return nil, err
			}
			vectors[i] = vector
		}
		return vectors, nil
	}
}

// HashEmbedder is a deterministic offline embedder. Every lowercased word is
// hashed into a bucket of a dim sized vector which is then L2 normalized,
// so texts sharing vocabulary have a positive cosine similarity.
func HashEmbedder(dim int) BatchEmbedFunc {
	return FromEmbedFunc(func(text string) ([]float32, error) {
		if dim <= 0 {
			return nil, helper.Wrap(helper.ErrInvalidInput, "embedding dimension must be positive")
		}

		vector := make([]float32, dim)
		for _, word := range strings.FieldsFunc(strings.ToLower(text), isNotWordRune) {
			sum := sha256.Sum256([]byte(word))
			bucket := binary.BigEndian.Uint32(sum[:4]) % uint32(dim)
			vector[bucket]++
		}

		var norm float64
		for _, v := range vector {
			norm += float64(v) * float64(v)
		}
		if norm == 0 {
			return vector, nil
		}
		norm = math.Sqrt(norm)
		for i := range vector {
			vector[i] = float32(float64(vector[i]) / norm)
		}
		return vector, nil
	})
}

func isNotWordRune(r rune) bool {
	return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r > 127)
}
