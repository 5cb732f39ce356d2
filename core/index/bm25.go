package index

import (
	"context"
	"math"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/siherrmann/scholar/model"
)

const (
	BM25K1 = 1.5
	BM25B  = 0.75
)

var bm25Token = regexp.MustCompile(`[\p{L}\p{N}]+(?:-[\p{L}\p{N}]+)*`)

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true, "be": true, "by": true,
	"for": true, "from": true, "has": true, "have": true, "in": true, "is": true, "it": true, "its": true,
	"of": true, "on": true, "or": true, "that": true, "the": true, "this": true, "to": true, "was": true,
	"were": true, "which": true, "with": true, "we": true, "our": true, "these": true, "those": true,
}

// Tokenize lowercases text and splits it into terms. Hyphenated compounds
// such as "crispr-cas9" are kept whole and also contribute their parts.
// Stopwords and single character terms are dropped.
func Tokenize(text string) []string {
	var terms []string
	for _, token := range bm25Token.FindAllString(strings.ToLower(text), -1) {
		terms = appendTerm(terms, token)
		if strings.Contains(token, "-") {
			for _, part := range strings.Split(token, "-") {
				terms = appendTerm(terms, part)
			}
		}
	}
	return terms
}

func appendTerm(terms []string, term string) []string {
	if len([]rune(term)) <= 1 || stopwords[term] {
		return terms
	}
	return append(terms, term)
}

type bm25Doc struct {
	paperID string
	ordinal int
	tf      map[string]int
	length  int
}

// BM25Index is an in-process SparseIndex scoring with Okapi BM25
// (k1 1.5, b 0.75, idf ln((N-df+0.5)/(df+0.5)+1)).
type BM25Index struct {
	mu          sync.RWMutex
	docs        map[uuid.UUID]*bm25Doc
	df          map[string]int
	totalLength int
}

// NewBM25Index creates an empty BM25 index.
func NewBM25Index() *BM25Index {
	return &BM25Index{
		docs: map[uuid.UUID]*bm25Doc{},
		df:   map[string]int{},
	}
}

// Upsert indexes the entries, replacing earlier versions of the same chunk.
func (b *BM25Index) Upsert(ctx context.Context, entries []*model.SparseEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.remove(entry.ChunkID)

		doc := &bm25Doc{paperID: entry.PaperID, ordinal: entry.Ordinal, tf: map[string]int{}}
		for _, term := range Tokenize(entry.Content) {
			doc.tf[term]++
			doc.length++
		}
		for term := range doc.tf {
			b.df[term]++
		}
		b.docs[entry.ChunkID] = doc
		b.totalLength += doc.length
	}
	return nil
}

// Query scores every chunk sharing at least one term with text.
func (b *BM25Index) Query(ctx context.Context, text string, topK int, paperIDs []string) ([]*model.Hit, error) {
	terms := uniqueTerms(Tokenize(text))
	if len(terms) == 0 {
		return []*model.Hit{}, nil
	}
	allowed := allowlist(paperIDs)

	b.mu.RLock()
	defer b.mu.RUnlock()

	n := float64(len(b.docs))
	if n == 0 {
		return []*model.Hit{}, nil
	}
	avgLength := float64(b.totalLength) / n
	if avgLength == 0 {
		avgLength = 1
	}

	idf := make(map[string]float64, len(terms))
	for _, term := range terms {
		df := float64(b.df[term])
		if df > 0 {
			idf[term] = math.Log((n-df+0.5)/(df+0.5) + 1)
		}
	}

	hits := []*model.Hit{}
	for chunkID, doc := range b.docs {
		if allowed != nil && !allowed[doc.paperID] {
			continue
		}
		score := 0.0
		for term, termIDF := range idf {
			tf := float64(doc.tf[term])
			if tf == 0 {
				continue
			}
			score += termIDF * tf * (BM25K1 + 1) / (tf + BM25K1*(1-BM25B+BM25B*float64(doc.length)/avgLength))
		}
		if score > 0 {
			hits = append(hits, &model.Hit{ChunkID: chunkID, PaperID: doc.paperID, Ordinal: doc.ordinal, Score: score})
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return topHits(hits, topK), nil
}

func (b *BM25Index) DeletePapers(_ context.Context, paperIDs []string) error {
	remove := allowlist(paperIDs)

	b.mu.Lock()
	defer b.mu.Unlock()
	for chunkID, doc := range b.docs {
		if remove[doc.paperID] {
			b.remove(chunkID)
		}
	}
	return nil
}

func (b *BM25Index) Clear(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.docs = map[uuid.UUID]*bm25Doc{}
	b.df = map[string]int{}
	b.totalLength = 0
	return nil
}

// Count returns the number of indexed chunks.
func (b *BM25Index) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.docs)
}

// remove drops a chunk. The caller holds the write lock.
func (b *BM25Index) remove(chunkID uuid.UUID) {
	doc, ok := b.docs[chunkID]
	if !ok {
		return
	}
	for term := range doc.tf {
		b.df[term]--
		if b.df[term] <= 0 {
			delete(b.df, term)
		}
	}
	b.totalLength -= doc.length
	delete(b.docs, chunkID)
}

func uniqueTerms(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	unique := terms[:0]
	for _, term := range terms {
		if !seen[term] {
			seen[term] = true
			unique = append(unique, term)
		}
	}
	return unique
}
