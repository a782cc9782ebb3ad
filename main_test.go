package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ohamelijnck/watchpdf/internal/config"
	"github.com/ohamelijnck/watchpdf/pkg/naming"
)

func run(t *testing.T, configPath string, args ...string) error {
	t.Helper()
	argv := append([]string{"watchpdf", "--config", configPath}, args...)
	return newApp(configPath).Run(context.Background(), argv)
}

func loadConfig(t *testing.T, path string) *config.Config {
	t.Helper()
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestAddExpandsHomeAndIsIdempotent(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	configPath := filepath.Join(t.TempDir(), "watchpdf", config.DefaultConfigFilename)

	require.NoError(t, run(t, configPath, "add", "~/papers"))
	require.NoError(t, run(t, configPath, "add", "~/papers/"))
	require.NoError(t, run(t, configPath, "add", filepath.Join(home, "papers")))

	cfg := loadConfig(t, configPath)
	assert.Equal(t, []string{filepath.Join(home, "papers")}, cfg.WatchFolderList)
	assert.Equal(t, naming.DefaultFormat, cfg.Format)
}

func TestAddRequiresFolder(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), config.DefaultConfigFilename)
	assert.Error(t, run(t, configPath, "add"))
}

func TestRemoveAndClear(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, config.DefaultConfigFilename)
	a, b := filepath.Join(dir, "a"), filepath.Join(dir, "b")

	require.NoError(t, run(t, configPath, "add", a))
	require.NoError(t, run(t, configPath, "add", b))
	require.NoError(t, run(t, configPath, "remove", a))
	assert.Equal(t, []string{b}, loadConfig(t, configPath).WatchFolderList)

	require.NoError(t, run(t, configPath, "clear_watch_folders"))
	assert.Empty(t, loadConfig(t, configPath).WatchFolderList)
}

func TestSetFormat(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), config.DefaultConfigFilename)

	require.NoError(t, run(t, configPath, "set_format", "{author}_{year}_{title}"))
	assert.Equal(t, "{author}_{year}_{title}", loadConfig(t, configPath).Format)

	err := run(t, configPath, "set_format", "{nonsense}")
	assert.ErrorIs(t, err, naming.ErrInvalidFormat)
	assert.Equal(t, "{author}_{year}_{title}", loadConfig(t, configPath).Format)
}

func TestWatchWithEmptyListReturns(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), config.DefaultConfigFilename)
	assert.NoError(t, run(t, configPath, "watch"))
}

func TestScanEmptyFolder(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "cfg", config.DefaultConfigFilename)
	papers := filepath.Join(dir, "papers")
	require.NoError(t, os.MkdirAll(papers, 0o755))

	assert.NoError(t, run(t, configPath, "--dry", "scan", "--folder_path", papers))
	assert.NoError(t, run(t, configPath, "scan"))
}

func TestScanRecursesOnlyWhenAsked(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "cfg", config.DefaultConfigFilename)
	papers := filepath.Join(dir, "papers")
	nested := filepath.Join(papers, "sub", "notes.pdf")
	require.NoError(t, os.MkdirAll(filepath.Dir(nested), 0o755))
	require.NoError(t, os.WriteFile(nested, []byte("not a pdf"), 0o644))
	require.NoError(t, run(t, configPath, "add", papers))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"default is flat", []string{"scan"}, "0 PDFs"},
		{"recursive flag", []string{"scan", "--recursive"}, "1 PDFs: 0 renamed, 0 unchanged, 1 unresolved"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			root := newApp(configPath)
			root.Writer = &out

			argv := append([]string{"watchpdf", "--config", configPath}, tt.args...)
			require.NoError(t, root.Run(context.Background(), argv))
			assert.Contains(t, out.String(), tt.want)
			assert.FileExists(t, nested)
		})
	}
}

func TestScanWithoutFoldersHasNothingToWatch(t *testing.T) {
	var out bytes.Buffer
	configPath := filepath.Join(t.TempDir(), config.DefaultConfigFilename)
	root := newApp(configPath)
	root.Writer = &out

	require.NoError(t, root.Run(context.Background(), []string{"watchpdf", "--config", configPath, "scan"}))
	assert.Equal(t, "Nothing to watch!\n", out.String())
}

func TestListAndHistoryWithoutState(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), config.DefaultConfigFilename)

	assert.NoError(t, run(t, configPath, "list"))
	assert.NoError(t, run(t, configPath, "history", "--limit", "5"))
}

func TestSetLogLevel(t *testing.T) {
	tests := []struct {
		level   string
		verbose bool
		want    string
	}{
		{"warn", false, "warning"},
		{"bogus", false, "info"},
		{"error", true, "debug"},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			setLogLevel(tt.level, tt.verbose)
			assert.Equal(t, tt.want, log.GetLevel().String())
		})
	}
}
