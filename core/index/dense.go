package index

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/siherrmann/scholar/helper"
	"github.com/siherrmann/scholar/model"
)

type denseKey struct {
	chunkID uuid.UUID
	model   string
}

type denseStore struct {
	mu      sync.RWMutex
	entries map[denseKey]*model.DenseEntry
}

// MemoryDenseIndex is an exact, in-process DenseIndex. Like the pgvector
// table it keeps one vector per chunk and model and only queries the
// vectors of its own model.
type MemoryDenseIndex struct {
	store *denseStore
	model string
	dim   int
}

// NewMemoryDenseIndex creates a dense index for vectors of embeddingModel with dim dimensions.
func NewMemoryDenseIndex(embeddingModel string, dim int) *MemoryDenseIndex {
	return &MemoryDenseIndex{
		store: &denseStore{entries: map[denseKey]*model.DenseEntry{}},
		model: embeddingModel,
		dim:   dim,
	}
}

// ForModel returns a view on the same vectors that queries embeddingModel.
// Vectors of the previous model are kept until their papers are purged.
func (d *MemoryDenseIndex) ForModel(embeddingModel string, dim int) *MemoryDenseIndex {
	return &MemoryDenseIndex{
		store: d.store,
		model: embeddingModel,
		dim:   dim,
	}
}

// Model returns the embedding model the index queries.
func (d *MemoryDenseIndex) Model() string {
	return d.model
}

func (d *MemoryDenseIndex) Upsert(ctx context.Context, entries []*model.DenseEntry) error {
	d.store.mu.Lock()
	defer d.store.mu.Unlock()

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(entry.Vector) != d.dim {
			return helper.NewError("upsert embedding", helper.Wrap(helper.ErrInvalidInput, "vector of chunk %s has %d dimensions, expected %d", entry.ChunkID, len(entry.Vector), d.dim))
		}
		stored := *entry
		if stored.Model == "" {
			stored.Model = d.model
		}
		stored.Vector = append([]float32(nil), entry.Vector...)
		d.store.entries[denseKey{chunkID: stored.ChunkID, model: stored.Model}] = &stored
	}
	return nil
}

func (d *MemoryDenseIndex) Query(ctx context.Context, vector []float32, topK int, paperIDs []string) ([]*model.Hit, error) {
	if len(vector) != d.dim {
		return nil, helper.NewError("query embeddings", helper.Wrap(helper.ErrInvalidInput, "query vector has %d dimensions, expected %d", len(vector), d.dim))
	}

	allowed := allowlist(paperIDs)

	d.store.mu.RLock()
	defer d.store.mu.RUnlock()

	hits := []*model.Hit{}
	for key, entry := range d.store.entries {
		if key.model != d.model || (allowed != nil && !allowed[entry.PaperID]) {
			continue
		}
		hits = append(hits, &model.Hit{
			ChunkID: entry.ChunkID,
			PaperID: entry.PaperID,
			Ordinal: entry.Ordinal,
			Score:   math.Max(0, math.Min(1, cosineSimilarity(vector, entry.Vector))),
		})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return topHits(hits, topK), nil
}

// DeletePapers removes the vectors of every model.
func (d *MemoryDenseIndex) DeletePapers(_ context.Context, paperIDs []string) error {
	remove := allowlist(paperIDs)

	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	for key, entry := range d.store.entries {
		if remove[entry.PaperID] {
			delete(d.store.entries, key)
		}
	}
	return nil
}

func (d *MemoryDenseIndex) Clear(_ context.Context) error {
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	d.store.entries = map[denseKey]*model.DenseEntry{}
	return nil
}

// Count returns the number of vectors of the index model.
func (d *MemoryDenseIndex) Count() int {
	d.store.mu.RLock()
	defer d.store.mu.RUnlock()
	count := 0
	for key := range d.store.entries {
		if key.model == d.model {
			count++
		}
	}
	return count
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func allowlist(paperIDs []string) map[string]bool {
	if len(paperIDs) == 0 {
		return nil
	}
	allowed := make(map[string]bool, len(paperIDs))
	for _, id := range paperIDs {
		allowed[id] = true
	}
	return allowed
}

// topHits sorts by score desc, then paper id and chunk ordinal, and keeps
// at most topK hits. Chunk ids are random, they only decide between chunks
// without ordinal.
func topHits(hits []*model.Hit, topK int) []*model.Hit {
	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.PaperID != b.PaperID {
			return a.PaperID < b.PaperID
		}
		if a.Ordinal != b.Ordinal {
			return a.Ordinal < b.Ordinal
		}
		return a.ChunkID.String() < b.ChunkID.String()
	})
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}
