package database

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/siherrmann/scholar/helper"
	"github.com/siherrmann/scholar/model"
	loadSql "github.com/siherrmann/scholar/sql"
)

// SparseDBHandlerFunctions defines the sparse index operations backed by Postgres full text search.
type SparseDBHandlerFunctions interface {
	Upsert(ctx context.Context, entries []*model.SparseEntry) error
	Query(ctx context.Context, text string, topK int, paperIDs []string) ([]*model.Hit, error)
	CountEntries(ctx context.Context) (int, error)
	DeletePapers(ctx context.Context, paperIDs []string) error
	Clear(ctx context.Context) error
}

// SparseDBHandler is the sparse index. Scores are raw ts_rank_cd values and
// are normalized by the fusion stage.
type SparseDBHandler struct {
	db *helper.Database
}

var tsqueryTerm = regexp.MustCompile(`[a-z0-9]+`)

// NewSparseDBHandler creates a new sparse index handler.
// If force is true, it will reload the SQL functions even if they already exist.
func NewSparseDBHandler(db *helper.Database, force bool) (*SparseDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	sparseDbHandler := &SparseDBHandler{
		db: db,
	}

	err := loadSql.LoadSparseSql(sparseDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load sparse sql", err)
	}

	err = sparseDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized SparseDBHandler")

	return sparseDbHandler, nil
}

// CreateTable creates the 'sparse_entries' table with its GIN index.
func (h *SparseDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_sparse_entries();`)
	if err != nil {
		log.Panicf("error initializing sparse_entries table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table sparse_entries")

	return nil
}

// Upsert stores the entries in one transaction.
func (h *SparseDBHandler) Upsert(ctx context.Context, entries []*model.SparseEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := h.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return helper.NewError("begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, entry := range entries {
		_, err := tx.ExecContext(
			ctx,
			`SELECT upsert_sparse_entry($1, $2, $3, $4)`,
			entry.ChunkID,
			entry.PaperID,
			entry.Section,
			entry.Content,
		)
		if err != nil {
			return helper.NewError("exec", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return helper.NewError("commit", err)
	}

	return nil
}

// Query ranks entries matching any of the query terms.
func (h *SparseDBHandler) Query(ctx context.Context, text string, topK int, paperIDs []string) ([]*model.Hit, error) {
	tsquery := BuildTsQuery(text)
	if tsquery == "" {
		return []*model.Hit{}, nil
	}

	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_sparse_entries_by_query($1, $2, $3)`,
		tsquery,
		topK,
		pq.Array(paperIDs),
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	hits := []*model.Hit{}
	for rows.Next() {
		hit := &model.Hit{}
		if err := rows.Scan(&hit.ChunkID, &hit.PaperID, &hit.Score); err != nil {
			return nil, helper.NewError("scan", err)
		}
		hits = append(hits, hit)
	}

	if err := rows.Err(); err != nil {
		return nil, helper.NewError("rows iteration", err)
	}

	return hits, nil
}

// CountEntries returns the number of sparse entries.
func (h *SparseDBHandler) CountEntries(ctx context.Context) (int, error) {
	var count int
	err := h.db.Instance.QueryRowContext(ctx, `SELECT count_sparse_entries()`).Scan(&count)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}
	return count, nil
}

// DeletePapers removes the entries of the given papers.
func (h *SparseDBHandler) DeletePapers(ctx context.Context, paperIDs []string) error {
	_, err := h.db.Instance.ExecContext(ctx, `SELECT delete_sparse_entries_by_papers($1)`, pq.Array(paperIDs))
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// Clear removes every entry.
func (h *SparseDBHandler) Clear(ctx context.Context) error {
	_, err := h.db.Instance.ExecContext(ctx, `SELECT delete_all_sparse_entries()`)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// BuildTsQuery turns free text into an OR-ed to_tsquery expression of its
// alphanumeric terms, e.g. "off-target effects" -> "off | target | effects".
func BuildTsQuery(text string) string {
	terms := tsqueryTerm.FindAllString(strings.ToLower(text), -1)
	seen := make(map[string]bool, len(terms))
	unique := terms[:0]
	for _, term := range terms {
		if len(term) <= 1 || seen[term] {
			continue
		}
		seen[term] = true
		unique = append(unique, term)
	}
	return strings.Join(unique, " | ")
}
