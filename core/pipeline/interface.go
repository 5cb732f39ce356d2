package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/siherrmann/scholar/helper"
	"github.com/siherrmann/scholar/model"
)

// ChunkFunc splits cleaned section text into ordered, overlapping chunks.
type ChunkFunc func(text string) ([]TextChunk, error)

// EmbedFunc generates the embedding of a single text.
type EmbedFunc func(text string) ([]float32, error)

// BatchEmbedFunc generates one embedding per text. Providers may fail per call,
// the EmbeddingClient turns that into per-text partial success.
type BatchEmbedFunc func(ctx context.Context, texts []string) ([][]float32, error)

// TextChunk is a chunk before it is bound to a paper.
// Start and End are token offsets into the section text.
type TextChunk struct {
	Content    string
	TokenCount int
	Start      int
	End        int
}

// Pipeline turns papers into chunk records.
type Pipeline struct {
	Chunker  ChunkFunc
	Cleaner  func(string) string
	Keywords KeywordExtractFunc // optional, fills missing paper keywords
}

// NewPipeline creates a new chunking pipeline. A nil chunker uses DefaultChunker.
func NewPipeline(chunker ChunkFunc) *Pipeline {
	if chunker == nil {
		chunker = DefaultChunker()
	}
	return &Pipeline{
		Chunker: chunker,
		Cleaner: CleanText,
	}
}

// ChunkPaper chunks the title and abstract as section "abstract", followed by
// every full-text section under its lowercased label. Ordinals are contiguous
// across the whole paper.
func (p *Pipeline) ChunkPaper(paper *model.Paper) ([]*model.Chunk, error) {
	if err := paper.Validate(); err != nil {
		return nil, err
	}

	head := paper.Title
	if strings.TrimSpace(paper.Abstract) != "" {
		head = strings.TrimRight(strings.TrimSpace(paper.Title), ".") + ". " + paper.Abstract
	}

	sections := append([]model.Section{{Label: "abstract", Text: head}}, paper.Sections...)

	var chunks []*model.Chunk
	for _, section := range sections {
		text := section.Text
		if p.Cleaner != nil {
			text = p.Cleaner(text)
		}

		textChunks, err := p.Chunker(text)
		if err != nil {
			return nil, helper.NewError("chunk section "+section.Label, err)
		}

		label := strings.ToLower(strings.TrimSpace(section.Label))
		for _, tc := range textChunks {
			chunks = append(chunks, &model.Chunk{
				PaperID:     paper.ID,
				Section:     label,
				Ordinal:     len(chunks),
				Content:     tc.Content,
				TokenCount:  tc.TokenCount,
				ContentHash: HashContent(tc.Content),
			})
		}
	}

	return chunks, nil
}

// HashContent returns the hex SHA-256 of a chunk's content.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
