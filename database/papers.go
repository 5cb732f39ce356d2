package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"
	"github.com/siherrmann/scholar/helper"
	"github.com/siherrmann/scholar/model"
	loadSql "github.com/siherrmann/scholar/sql"
)

// PapersDBHandlerFunctions defines the interface for Papers database operations.
type PapersDBHandlerFunctions interface {
	UpsertPaper(ctx context.Context, paper *model.Paper) error
	SelectPaper(ctx context.Context, id string) (*model.Paper, error)
	SelectPapers(ctx context.Context, ids []string) ([]*model.Paper, error)
	SelectAllPapers(ctx context.Context) ([]*model.Paper, error)
	DeletePaper(ctx context.Context, id string) error
	DeleteAllPapers(ctx context.Context) error
}

// PapersDBHandler handles paper-related database operations
type PapersDBHandler struct {
	db *helper.Database
}

// NewPapersDBHandler creates a new papers database handler.
// It loads the paper-related SQL functions and creates the table.
// If force is true, it will reload the SQL functions even if they already exist.
func NewPapersDBHandler(db *helper.Database, force bool) (*PapersDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	papersDbHandler := &PapersDBHandler{
		db: db,
	}

	err := loadSql.LoadPapersSql(papersDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load papers sql", err)
	}

	err = papersDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized PapersDBHandler")

	return papersDbHandler, nil
}

// CreateTable creates the 'papers' table in the database.
// If the table already exists, it does not create it again.
func (h *PapersDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_papers();`)
	if err != nil {
		log.Panicf("error initializing papers table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table papers")

	return nil
}

// UpsertPaper inserts a paper or refreshes its metadata.
// The paper is updated in place with the stored timestamps.
func (h *PapersDBHandler) UpsertPaper(ctx context.Context, paper *model.Paper) error {
	metadata := paper.Metadata
	if metadata == nil {
		metadata = model.Metadata{}
	}

	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM upsert_paper($1, $2, $3, $4, $5, $6, $7, $8)`,
		paper.ID,
		paper.Title,
		paper.Abstract,
		pq.Array(nonNil(paper.Authors)),
		paper.Venue,
		nullTime(paper.PublishedAt),
		pq.Array(nonNil(paper.Keywords)),
		metadata,
	)

	stored, err := scanPaper(row)
	if err != nil {
		return helper.NewError("scan", err)
	}

	paper.CreatedAt = stored.CreatedAt
	paper.UpdatedAt = stored.UpdatedAt

	return nil
}

// SelectPaper retrieves a paper by its external id
func (h *PapersDBHandler) SelectPaper(ctx context.Context, id string) (*model.Paper, error) {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_paper($1)`,
		id,
	)

	paper, err := scanPaper(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, helper.NewError("select paper", helper.Wrap(helper.ErrNotFound, "paper %s", id))
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return paper, nil
}

// SelectPapers retrieves the papers with the given ids. Unknown ids are ignored.
func (h *PapersDBHandler) SelectPapers(ctx context.Context, ids []string) ([]*model.Paper, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_papers($1)`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return scanPapers(rows)
}

// SelectAllPapers enumerates the whole corpus ordered by id.
// Pages through the table so large corpora do not hold one long query open.
func (h *PapersDBHandler) SelectAllPapers(ctx context.Context) ([]*model.Paper, error) {
	const pageSize = 500

	var papers []*model.Paper
	lastID := ""
	for {
		rows, err := h.db.Instance.QueryContext(
			ctx,
			`SELECT * FROM select_all_papers($1, $2)`,
			lastID,
			pageSize,
		)
		if err != nil {
			return nil, helper.NewError("query", err)
		}

		page, err := scanPapers(rows)
		rows.Close()
		if err != nil {
			return nil, err
		}

		papers = append(papers, page...)
		if len(page) < pageSize {
			return papers, nil
		}
		lastID = page[len(page)-1].ID
	}
}

// DeletePaper deletes a paper. Its chunks are removed by the foreign key cascade.
func (h *PapersDBHandler) DeletePaper(ctx context.Context, id string) error {
	_, err := h.db.Instance.ExecContext(ctx, `SELECT delete_paper($1)`, id)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// DeleteAllPapers purges the corpus.
func (h *PapersDBHandler) DeleteAllPapers(ctx context.Context) error {
	_, err := h.db.Instance.ExecContext(ctx, `SELECT delete_all_papers()`)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPaper(row rowScanner) (*model.Paper, error) {
	paper := &model.Paper{}
	var publishedAt sql.NullTime
	var authors, keywords pq.StringArray

	err := row.Scan(
		&paper.ID,
		&paper.Title,
		&paper.Abstract,
		&authors,
		&paper.Venue,
		&publishedAt,
		&keywords,
		&paper.Metadata,
		&paper.CreatedAt,
		&paper.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	paper.Authors = []string(authors)
	paper.Keywords = []string(keywords)
	if publishedAt.Valid {
		paper.PublishedAt = publishedAt.Time
	}

	return paper, nil
}

func scanPapers(rows *sql.Rows) ([]*model.Paper, error) {
	var papers []*model.Paper
	for rows.Next() {
		paper, err := scanPaper(rows)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		papers = append(papers, paper)
	}

	if err := rows.Err(); err != nil {
		return nil, helper.NewError("rows iteration", err)
	}

	return papers, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
