package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mdml.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Manifest(t *testing.T) {
	path := writeManifest(t, `
project:
  name: shop
  version: "2.1"
source_patterns:
  - models/**/*.mdm
  - views/**/*.mdm
strict: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "shop", cfg.Project.Name)
	assert.Equal(t, "2.1", cfg.Project.Version)
	assert.Equal(t, []string{"models/**/*.mdm", "views/**/*.mdm"}, cfg.SourcePatterns)
	assert.True(t, cfg.Strict)
}

func TestLoad_MissingManifestUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Project.Name)
	assert.Empty(t, cfg.SourcePatterns)
	assert.False(t, cfg.Strict)
}

func TestLoad_MalformedManifest(t *testing.T) {
	path := writeManifest(t, "project: [broken\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	path := writeManifest(t, "project:\n  name: from-file\nstrict: false\n")

	t.Run("Project Name", func(t *testing.T) {
		t.Setenv("MDML_PROJECT_NAME", "from-env")
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "from-env", cfg.Project.Name)
	})

	t.Run("Strict Flag", func(t *testing.T) {
		for _, val := range []string{"1", "true"} {
			t.Setenv("MDML_STRICT", val)
			cfg, err := Load(path)
			require.NoError(t, err)
			assert.True(t, cfg.Strict, val)
		}
		t.Setenv("MDML_STRICT", "0")
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.False(t, cfg.Strict)
	})

	t.Run("Unset Env Keeps File Values", func(t *testing.T) {
		t.Setenv("MDML_PROJECT_NAME", "")
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "from-file", cfg.Project.Name)
	})
}
