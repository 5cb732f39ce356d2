package model

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/siherrmann/scholar/helper"
)

// Paper is a scientific paper as delivered by the literature source.
type Paper struct {
	ID          string    `json:"id"` // stable external id, e.g. a PMID
	Title       string    `json:"title"`
	Abstract    string    `json:"abstract,omitempty"`
	Authors     []string  `json:"authors,omitempty"`
	Venue       string    `json:"venue,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"` // zero if unknown
	Keywords    []string  `json:"keywords,omitempty"`
	Sections    []Section `json:"sections,omitempty" db:"-"` // full text, only used while indexing
	Metadata    Metadata  `json:"metadata,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Section is a labelled block of full text.
type Section struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// Validate checks the fields every stage relies on.
func (p *Paper) Validate() error {
	if p == nil {
		return helper.Wrap(helper.ErrInvalidInput, "paper is nil")
	}
	if strings.TrimSpace(p.ID) == "" {
		return helper.Wrap(helper.ErrInvalidInput, "paper id is empty")
	}
	for _, s := range p.texts() {
		if !utf8.ValidString(s) || strings.ContainsRune(s, 0) {
			return helper.Wrap(helper.ErrInvalidInput, "paper %s contains non-text content", p.ID)
		}
	}
	return nil
}

// ContentHash identifies the indexable content version of the paper.
func (p *Paper) ContentHash() string {
	h := sha256.New()
	for _, s := range p.texts() {
		_, _ = io.WriteString(h, s)
		_, _ = h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Year returns the publication year or 0 if unknown.
func (p *Paper) Year() int {
	if p.PublishedAt.IsZero() {
		return 0
	}
	return p.PublishedAt.Year()
}

func (p *Paper) texts() []string {
	texts := []string{p.Title, p.Abstract}
	for _, s := range p.Sections {
		texts = append(texts, s.Label, s.Text)
	}
	return texts
}

// NewPaperFromFile reads a plain text file into a single-section paper.
// The id and title default to the file name without extension.
func NewPaperFromFile(filePath string, metadata Metadata) (*Paper, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, helper.NewError("read paper file", err)
	}
	return newPaperFromText(filePath, string(content), metadata), nil
}

// NewPaperFromPDF extracts the plain text of a PDF into a single-section paper.
func NewPaperFromPDF(filePath string, metadata Metadata) (*Paper, error) {
	f, r, err := pdf.Open(filePath)
	if err != nil {
		return nil, helper.NewError("open pdf", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return nil, helper.NewError("extract pdf text", err)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, reader); err != nil {
		return nil, helper.NewError("read pdf text", err)
	}

	text := strings.TrimSpace(buf.String())
	if text == "" {
		return nil, helper.NewError("extract pdf text", helper.Wrap(helper.ErrInvalidInput, "no extractable text in %s", filePath))
	}
	return newPaperFromText(filePath, text, metadata), nil
}

func newPaperFromText(filePath, text string, metadata Metadata) *Paper {
	filename := filepath.Base(filePath)
	title := strings.TrimSuffix(filename, filepath.Ext(filename))
	if title == "" {
		title = filename
	}
	if metadata == nil {
		metadata = Metadata{}
	}
	metadata["source"] = filePath

	return &Paper{
		ID:       title,
		Title:    title,
		Sections: []Section{{Label: "body", Text: text}},
		Metadata: metadata,
	}
}
