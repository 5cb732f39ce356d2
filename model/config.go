package model

import (
	"math"
	"time"

	"github.com/siherrmann/scholar/helper"
)

// SearchMode selects which indexes a search consults.
type SearchMode string

const (
	SearchModeHybrid SearchMode = "hybrid"
	SearchModeDense  SearchMode = "dense"
	SearchModeSparse SearchMode = "sparse"
)

// RetrievalConfig enumerates every recognized retrieval setting.
// It is validated once when the engine is constructed.
type RetrievalConfig struct {
	// Fusion
	DenseWeight  float64 `json:"dense_weight" yaml:"dense_weight"`
	SparseWeight float64 `json:"sparse_weight" yaml:"sparse_weight"`
	TopK         int     `json:"top_k" yaml:"top_k"`
	// Context assembly
	PerPaperCap int `json:"per_paper_cap" yaml:"per_paper_cap"`
	TokenBudget int `json:"token_budget" yaml:"token_budget"`
	// Each branch fetches TopK*CandidateFactor candidates before fusion
	CandidateFactor int           `json:"candidate_factor" yaml:"candidate_factor"`
	BranchTimeout   time.Duration `json:"branch_timeout" yaml:"branch_timeout"`
}

// DefaultRetrievalConfig returns the default hybrid configuration.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		DenseWeight:     0.7,
		SparseWeight:    0.3,
		TopK:            10,
		PerPaperCap:     2,
		TokenBudget:     4000,
		CandidateFactor: 3,
		BranchTimeout:   5 * time.Second,
	}
}

// Validate checks the weights sum to one and all limits are positive.
func (c RetrievalConfig) Validate() error {
	if c.DenseWeight < 0 || c.DenseWeight > 1 || c.SparseWeight < 0 || c.SparseWeight > 1 {
		return helper.Wrap(helper.ErrInvalidInput, "weights must be within [0,1], got dense=%v sparse=%v", c.DenseWeight, c.SparseWeight)
	}
	if math.Abs(c.DenseWeight+c.SparseWeight-1) > 1e-9 {
		return helper.Wrap(helper.ErrInvalidInput, "dense and sparse weight must sum to 1, got %v", c.DenseWeight+c.SparseWeight)
	}
	if c.TopK <= 0 {
		return helper.Wrap(helper.ErrInvalidInput, "top_k must be positive")
	}
	if c.PerPaperCap <= 0 {
		return helper.Wrap(helper.ErrInvalidInput, "per_paper_cap must be positive")
	}
	if c.TokenBudget <= 0 {
		return helper.Wrap(helper.ErrInvalidInput, "token_budget must be positive")
	}
	if c.CandidateFactor <= 0 {
		return helper.Wrap(helper.ErrInvalidInput, "candidate_factor must be positive")
	}
	if c.BranchTimeout <= 0 {
		return helper.Wrap(helper.ErrInvalidInput, "branch_timeout must be positive")
	}
	return nil
}

// SearchOptions are per-query settings.
type SearchOptions struct {
	Mode     SearchMode `json:"mode,omitempty"`
	PaperIDs []string   `json:"paper_ids,omitempty"` // allowlist, empty means all papers
	TopK     int        `json:"top_k,omitempty"`     // 0 uses the configured TopK
}
