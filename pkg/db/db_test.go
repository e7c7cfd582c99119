package db

import (
	"io/fs"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_AreEmbedded(t *testing.T) {
	files, err := fs.Glob(migrations, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		data, err := fs.ReadFile(migrations, f)
		require.NoError(t, err)
		assert.True(t, strings.Contains(string(data), "-- +goose Up"), f)
		assert.True(t, strings.Contains(string(data), "-- +goose Down"), f)
	}
}

func TestNew_InvalidDSN(t *testing.T) {
	_, err := New(Config{DSN: "postgres://%zz"}, slog.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse database config")
}
