package migrations

import (
	"io/fs"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsAreEmbedded(t *testing.T) {
	for dir, fsys := range map[string]fs.FS{"mysql": mysqlMigrations, "postgres": postgresMigrations} {
		names, err := fs.Glob(fsys, dir+"/*.sql")
		require.NoError(t, err)
		assert.NotEmpty(t, names, dir)
		for _, name := range names {
			body, err := fs.ReadFile(fsys, name)
			require.NoError(t, err)
			assert.Contains(t, string(body), "-- +goose Up", name)
			assert.Contains(t, string(body), "-- +goose Down", name)
		}
	}
}

// The newest definition of the notify function must keep message bodies out
// of the payload, which Postgres caps below 8000 bytes.
func TestNotifyPayloadOmitsContent(t *testing.T) {
	names, err := fs.Glob(postgresMigrations, "postgres/*.sql")
	require.NoError(t, err)
	sort.Strings(names)

	var latest string
	for _, name := range names {
		body, err := fs.ReadFile(postgresMigrations, name)
		require.NoError(t, err)
		up, _, _ := strings.Cut(string(body), "-- +goose Down")
		if strings.Contains(up, "FUNCTION doulitsa_notify_change") {
			latest = up
		}
	}
	require.NotEmpty(t, latest)
	assert.Contains(t, latest, "to_jsonb(NEW) - 'content'")
	assert.Contains(t, latest, "to_jsonb(OLD) - 'content'")
}
