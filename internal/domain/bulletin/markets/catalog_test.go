package markets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.NotEmpty(t, c.Version)
	assert.Equal(t, "NCR", c.Region)

	names := c.Names()
	assert.Contains(t, names, "Paco Market")
	assert.Contains(t, names, "Munoz Market")

	// a name must come before any catalog name that contains it
	for i, n := range names {
		for _, earlier := range names[:i] {
			assert.NotContains(t, n, earlier, "%q is listed after %q", n, earlier)
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"valid", "version: \"1\"\nmarkets:\n  - name: A\n", ""},
		{"missing version", "markets:\n  - name: A\n", "version is required"},
		{"no markets", "version: \"1\"\n", "at least one market"},
		{"empty name", "version: \"1\"\nmarkets:\n  - name: \"\"\n", "empty name"},
		{"duplicate alias", "version: \"1\"\nmarkets:\n  - name: A\n  - name: B\n    aliases: [A]\n", "duplicate name"},
		{"invalid yaml", "version: [", "parse market catalog"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Parse([]byte(tt.yaml))
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, []string{"A"}, c.Names())
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("empty path uses default", func(t *testing.T) {
		c, err := Load("")
		require.NoError(t, err)
		assert.NotEmpty(t, c.Markets)
	})

	t.Run("file override", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "markets.yaml")
		require.NoError(t, os.WriteFile(path, []byte("version: \"2\"\nregion: CAR\nmarkets:\n  - name: Baguio City Public Market\n    city: Baguio\n"), 0o600))

		c, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "2", c.Version)
		assert.Equal(t, []string{"Baguio City Public Market"}, c.Names())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestCatalog_Lookup(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	t.Run("case-insensitive subsequence", func(t *testing.T) {
		matches := c.Lookup("quinta", 5)
		require.NotEmpty(t, matches)
		assert.Equal(t, "Quinta Market", matches[0].Market.Name)
		assert.Equal(t, "Manila", matches[0].Market.City)
	})

	t.Run("alias resolves to market once", func(t *testing.T) {
		matches := c.Lookup("munoz", 0)
		require.Len(t, matches, 1)
		assert.Equal(t, "Muñoz Market", matches[0].Market.Name)
	})

	t.Run("limit", func(t *testing.T) {
		assert.Len(t, c.Lookup("market", 3), 3)
	})

	t.Run("no match", func(t *testing.T) {
		assert.Empty(t, c.Lookup("zzzz", 0))
		assert.Nil(t, c.Lookup("  ", 0))
	})
}
