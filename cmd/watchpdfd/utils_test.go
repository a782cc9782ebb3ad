package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFolders(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := normalizeFolders([]string{"~/papers", "~/papers/", "/tmp/inbox/../inbox", "~"})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(home, "papers"), "/tmp/inbox", home}, got)
}
