package database

import (
	"path/filepath"
	"testing"

	"depthdemo-server-go/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDBSQLite(t *testing.T) {
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "index.db")
	db, dbType, err := InitDB(dsn)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", dbType)
	assert.True(t, db.Migrator().HasTable(&models.TestCase{}))
}

func TestInitDBRejectsUnknownDSN(t *testing.T) {
	tests := []string{"", "redis://localhost:6379", "just-a-path.db"}
	for _, dsn := range tests {
		t.Run(dsn, func(t *testing.T) {
			_, _, err := InitDB(dsn)
			assert.Error(t, err)
		})
	}
}
