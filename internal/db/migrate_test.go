package db

import (
	"testing"

	"content_platform/internal/config"
	"content_platform/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestMigrateCreatesAllTables(t *testing.T) {
	gdb, err := gorm.Open(sqlite.Open("file:migrate?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, Migrate(gdb))

	for _, model := range domain.All() {
		assert.True(t, gdb.Migrator().HasTable(model), "missing table for %T", model)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(&config.Config{DBDriver: "oracle"})
	assert.ErrorContains(t, err, "unsupported database driver")
}
