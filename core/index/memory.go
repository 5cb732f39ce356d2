package index

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/scholar/helper"
	"github.com/siherrmann/scholar/model"
)

// MemoryPaperStore is an in-process PaperStore.
type MemoryPaperStore struct {
	mu     sync.RWMutex
	papers map[string]*model.Paper
}

// NewMemoryPaperStore creates an empty paper store.
func NewMemoryPaperStore() *MemoryPaperStore {
	return &MemoryPaperStore{papers: map[string]*model.Paper{}}
}

func (s *MemoryPaperStore) UpsertPaper(_ context.Context, paper *model.Paper) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	stored := *paper
	stored.Sections = nil
	if existing, ok := s.papers[paper.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	s.papers[paper.ID] = &stored

	paper.CreatedAt = stored.CreatedAt
	paper.UpdatedAt = stored.UpdatedAt
	return nil
}

func (s *MemoryPaperStore) SelectPaper(_ context.Context, id string) (*model.Paper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paper, ok := s.papers[id]
	if !ok {
		return nil, helper.NewError("select paper", helper.Wrap(helper.ErrNotFound, "paper %s", id))
	}
	copied := *paper
	return &copied, nil
}

func (s *MemoryPaperStore) SelectPapers(_ context.Context, ids []string) ([]*model.Paper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var papers []*model.Paper
	for _, id := range ids {
		if paper, ok := s.papers[id]; ok {
			copied := *paper
			papers = append(papers, &copied)
		}
	}
	return papers, nil
}

// SelectAllPapers returns the corpus ordered by id.
func (s *MemoryPaperStore) SelectAllPapers(_ context.Context) ([]*model.Paper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	papers := make([]*model.Paper, 0, len(s.papers))
	for _, paper := range s.papers {
		copied := *paper
		papers = append(papers, &copied)
	}
	sort.Slice(papers, func(i, j int) bool { return papers[i].ID < papers[j].ID })
	return papers, nil
}

func (s *MemoryPaperStore) DeletePaper(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.papers, id)
	return nil
}

func (s *MemoryPaperStore) DeleteAllPapers(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.papers = map[string]*model.Paper{}
	return nil
}

// MemoryChunkStore is an in-process ChunkStore with the same uniqueness
// rule as the chunks table: one content hash per paper.
type MemoryChunkStore struct {
	mu      sync.RWMutex
	chunks  map[uuid.UUID]*model.Chunk
	byPaper map[string]map[string]uuid.UUID // paper id -> content hash -> chunk id
}

// NewMemoryChunkStore creates an empty chunk store.
func NewMemoryChunkStore() *MemoryChunkStore {
	return &MemoryChunkStore{
		chunks:  map[uuid.UUID]*model.Chunk{},
		byPaper: map[string]map[string]uuid.UUID{},
	}
}

func (s *MemoryChunkStore) InsertChunk(_ context.Context, chunk *model.Chunk) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hashes, ok := s.byPaper[chunk.PaperID]
	if !ok {
		hashes = map[string]uuid.UUID{}
		s.byPaper[chunk.PaperID] = hashes
	}
	if _, exists := hashes[chunk.ContentHash]; exists {
		return false, nil
	}

	if chunk.ID == uuid.Nil {
		chunk.ID = uuid.New()
	}
	chunk.CreatedAt = time.Now().UTC()

	stored := *chunk
	s.chunks[chunk.ID] = &stored
	hashes[chunk.ContentHash] = chunk.ID
	return true, nil
}

func (s *MemoryChunkStore) SelectChunks(_ context.Context, ids []uuid.UUID) ([]*model.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var chunks []*model.Chunk
	for _, id := range ids {
		if chunk, ok := s.chunks[id]; ok {
			copied := *chunk
			chunks = append(chunks, &copied)
		}
	}
	return chunks, nil
}

// SelectChunksByPaper returns the chunks of a paper in ordinal order.
func (s *MemoryChunkStore) SelectChunksByPaper(_ context.Context, paperID string) ([]*model.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var chunks []*model.Chunk
	for _, id := range s.byPaper[paperID] {
		copied := *s.chunks[id]
		chunks = append(chunks, &copied)
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Ordinal < chunks[j].Ordinal })
	return chunks, nil
}

func (s *MemoryChunkStore) MarkChunksDense(_ context.Context, ids []uuid.UUID, embeddingModel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if chunk, ok := s.chunks[id]; ok {
			chunk.EmbeddingModel = embeddingModel
		}
	}
	return nil
}

func (s *MemoryChunkStore) MarkChunksSparse(_ context.Context, ids []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if chunk, ok := s.chunks[id]; ok {
			chunk.SparseIndexed = true
		}
	}
	return nil
}

func (s *MemoryChunkStore) CountChunks(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

func (s *MemoryChunkStore) DeleteChunksByPaper(_ context.Context, paperID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.byPaper[paperID] {
		delete(s.chunks, id)
	}
	delete(s.byPaper, paperID)
	return nil
}

func (s *MemoryChunkStore) DeleteAllChunks(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = map[uuid.UUID]*model.Chunk{}
	s.byPaper = map[string]map[string]uuid.UUID{}
	return nil
}
