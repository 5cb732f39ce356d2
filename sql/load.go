package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
)

//go:embed init.sql
var initSQL string

//go:embed papers.sql
var papersSQL string

//go:embed chunks.sql
var chunksSQL string

//go:embed embeddings.sql
var embeddingsSQL string

//go:embed sparse.sql
var sparseSQL string

// Function lists for verification
var PapersFunctions = []string{
	"init_papers",
	"upsert_paper",
	"select_paper",
	"select_papers",
	"select_all_papers",
	"delete_paper",
	"delete_all_papers",
}

var ChunksFunctions = []string{
	"init_chunks",
	"insert_chunk",
	"select_chunks",
	"select_chunks_by_paper",
	"mark_chunks_dense",
	"mark_chunks_sparse",
	"count_chunks",
	"delete_chunks_by_paper",
	"delete_all_chunks",
}

var EmbeddingsFunctions = []string{
	"init_embeddings",
	"upsert_embedding",
	"select_embeddings_by_similarity",
	"count_embeddings",
	"delete_embeddings_by_papers",
	"delete_all_embeddings",
}

var SparseFunctions = []string{
	"init_sparse_entries",
	"upsert_sparse_entry",
	"select_sparse_entries_by_query",
	"count_sparse_entries",
	"delete_sparse_entries_by_papers",
	"delete_all_sparse_entries",
}

// Init intializes db extensions
func Init(db *sql.DB) error {
	_, err := db.Exec(initSQL)
	if err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}

	log.Println("Database extensions initialized successfully")
	return nil
}

// LoadPapersSql loads paper-related SQL functions
func LoadPapersSql(db *sql.DB, force bool) error {
	return load(db, "papers", papersSQL, PapersFunctions, force)
}

// LoadChunksSql loads chunk-related SQL functions
func LoadChunksSql(db *sql.DB, force bool) error {
	return load(db, "chunks", chunksSQL, ChunksFunctions, force)
}

// LoadEmbeddingsSql loads the dense index SQL functions
func LoadEmbeddingsSql(db *sql.DB, force bool) error {
	return load(db, "embeddings", embeddingsSQL, EmbeddingsFunctions, force)
}

// LoadSparseSql loads the sparse index SQL functions
func LoadSparseSql(db *sql.DB, force bool) error {
	return load(db, "sparse", sparseSQL, SparseFunctions, force)
}

// LoadAllSql loads all SQL functions
func LoadAllSql(db *sql.DB, force bool) error {
	if err := LoadPapersSql(db, force); err != nil {
		return err
	}

	if err := LoadChunksSql(db, force); err != nil {
		return err
	}

	if err := LoadEmbeddingsSql(db, force); err != nil {
		return err
	}

	if err := LoadSparseSql(db, force); err != nil {
		return err
	}

	return nil
}

// load executes the SQL of one table unless all of its functions exist already.
func load(db *sql.DB, name, script string, functions []string, force bool) error {
	if !force {
		exist, err := checkFunctions(db, functions)
		if err != nil {
			return fmt.Errorf("error checking existing %s functions: %w", name, err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(script)
	if err != nil {
		return fmt.Errorf("error executing %s SQL: %w", name, err)
	}

	exist, err := checkFunctions(db, functions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Printf("SQL %s functions loaded successfully", name)
	return nil
}

// checkFunctions verifies that all required functions exist in the database
func checkFunctions(db *sql.DB, sqlFunctions []string) (bool, error) {
	var allExist bool
	for _, f := range sqlFunctions {
		err := db.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1);`,
			f,
		).Scan(&allExist)
		if err != nil {
			return false, fmt.Errorf("error checking existence of function %s: %w", f, err)
		}
		if !allExist {
			log.Printf("Function %s does not exist", f)
			break
		}
	}
	return allExist, nil
}
