package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAllSql(t *testing.T) {
	database := initDB(t)

	t.Run("Load all functions with force", func(t *testing.T) {
		err := LoadAllSql(database.Instance, true)
		require.NoError(t, err, "Expected LoadAllSql to not return an error")

		for _, functions := range [][]string{PapersFunctions, ChunksFunctions, EmbeddingsFunctions, SparseFunctions} {
			exist, err := checkFunctions(database.Instance, functions)
			require.NoError(t, err, "Expected checkFunctions to not return an error")
			assert.True(t, exist, "Expected all functions of %v to exist", functions)
		}
	})

	t.Run("Loading again without force is a no-op", func(t *testing.T) {
		err := LoadAllSql(database.Instance, false)
		assert.NoError(t, err, "Expected LoadAllSql without force to not return an error")
	})
}

func TestCheckFunctions(t *testing.T) {
	database := initDB(t)

	t.Run("Unknown function is reported missing", func(t *testing.T) {
		exist, err := checkFunctions(database.Instance, []string{"no_such_function_in_scholar"})
		require.NoError(t, err, "Expected checkFunctions to not return an error")
		assert.False(t, exist, "Expected unknown function to be reported missing")
	})
}
