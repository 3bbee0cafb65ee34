// Package dbtest opens throwaway databases for package tests.
package dbtest

import (
	"fmt"
	"testing"

	"whatsapp-router/internal/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Open returns a migrated in-memory sqlite database private to tb.
func Open(tb testing.TB) *gorm.DB {
	tb.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.OpenDialector(sqlite.Open(dsn))
	require.NoError(tb, err)
	require.NoError(tb, database.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(tb, err)
	tb.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// Store wraps Open in a database.Store.
func Store(tb testing.TB) *database.Store {
	return database.NewStore(Open(tb))
}
