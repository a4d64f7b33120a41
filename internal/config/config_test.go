package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "_helpers-microservice.yaml", cfg.HelpersFile)
	assert.Equal(t, 5, cfg.SnapshotRetention)
	assert.Empty(t, cfg.ExcludeFiles)
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	content := `helpersFile: _shared.yaml
snapshotRetention: 10
excludeFiles:
  - NOTES.txt
  - legacy.yaml
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "_shared.yaml", cfg.HelpersFile)
	assert.Equal(t, 10, cfg.SnapshotRetention)
	assert.Equal(t, []string{"NOTES.txt", "legacy.yaml"}, cfg.ExcludeFiles)
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("snapshotRetention: 3\n"), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "_helpers-microservice.yaml", cfg.HelpersFile)
	assert.Equal(t, 3, cfg.SnapshotRetention)
}

func TestLoadMalformed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("helpersFile: [unclosed"), 0644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse chartfold.yaml")
}

func TestFindChart(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "Chart.yaml"), []byte("name: demo\n"), 0644))
	nested := filepath.Join(root, "templates", "sub")
	require.NoError(t, os.MkdirAll(nested, 0755))

	found, err := FindChart(nested)
	require.NoError(t, err)
	assert.Equal(t, root, found)
}

func TestFindChartMissing(t *testing.T) {
	_, err := FindChart(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no Chart.yaml found")
}
