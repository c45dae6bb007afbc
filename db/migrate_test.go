package db

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractUpMigration(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "no markers", content: "CREATE TABLE a();", want: "CREATE TABLE a();"},
		{name: "up only", content: "-- +migrate Up\nCREATE TABLE a();", want: "\nCREATE TABLE a();"},
		{name: "up and down", content: "-- +migrate Up\nCREATE TABLE a();\n-- +migrate Down\nDROP TABLE a;", want: "\nCREATE TABLE a();\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractUpMigration(tt.content))
		})
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	sub, err := fs.Sub(migrationFiles, "migrations")
	require.NoError(t, err)

	content, err := fs.ReadFile(sub, "0001_init.sql")
	require.NoError(t, err)

	up := ExtractUpMigration(string(content))
	for _, table := range []string{"accounts", "account_ratings", "match_records", "rating_history"} {
		assert.Contains(t, up, "CREATE TABLE IF NOT EXISTS "+table)
	}
	assert.False(t, strings.Contains(up, "DROP TABLE"), "down section must not leak into up")
}
