package datadir

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_EnvVarWins(t *testing.T) {
	dir := t.TempDir()
	envDir := filepath.Join(dir, "env-dir")

	t.Setenv(EnvVar, envDir)

	got, err := Resolve("/should/be/ignored")
	require.NoError(t, err)
	assert.Equal(t, envDir, got)

	// Directory should have been created with tight permissions.
	info, err := os.Stat(envDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
}

func TestResolve_ConfigValueFallback(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "cfg-dir")

	t.Setenv(EnvVar, "")

	got, err := Resolve(cfgDir)
	require.NoError(t, err)
	assert.Equal(t, cfgDir, got)
}

func TestResolve_DefaultHome(t *testing.T) {
	t.Setenv(EnvVar, "")
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := Resolve("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, DefaultDirName), got)
}

func TestDataDirLayout(t *testing.T) {
	root := filepath.Join(t.TempDir(), "orbit-root")
	t.Setenv(EnvVar, root)

	d, err := New("")
	require.NoError(t, err)
	assert.Equal(t, root, d.Root())
	assert.Equal(t, filepath.Join(root, "texts"), d.TextsDir())
	assert.Equal(t, filepath.Join(root, "images"), d.ImagesDir())
	assert.Equal(t, filepath.Join(root, "audio"), d.AudioDir())
	assert.Equal(t, filepath.Join(root, "index"), d.IndexDir())
	assert.Equal(t, filepath.Join(root, "index", "index.db"), d.IndexFilePath("index.db"))

	require.NoError(t, d.EnsureDirs())
	for _, dir := range []string{d.ConfigDir(), d.TextsDir(), d.ImagesDir(), d.AudioDir(), d.IndexDir()} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestLoadEnvPriority(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"), []byte("ORBIT_ENV_A=from-datadir\nORBIT_ENV_B='quoted'\n"), 0600))

	extra := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(extra, ".env"), []byte("ORBIT_ENV_A=from-extra\nORBIT_ENV_C=only-here\n"), 0600))

	t.Setenv(EnvFileEnvVar, "")
	t.Setenv("ORBIT_ENV_A", "")
	os.Unsetenv("ORBIT_ENV_A")
	os.Unsetenv("ORBIT_ENV_B")
	os.Unsetenv("ORBIT_ENV_C")

	require.NoError(t, LoadEnv(root, extra))
	// First file wins; later files fill only the gaps.
	assert.Equal(t, "from-datadir", os.Getenv("ORBIT_ENV_A"))
	assert.Equal(t, "quoted", os.Getenv("ORBIT_ENV_B"))
	assert.Equal(t, "only-here", os.Getenv("ORBIT_ENV_C"))
}

func TestFindEnvFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"), []byte("X=1\n"), 0600))

	t.Setenv(EnvFileEnvVar, "")
	found := FindEnvFiles(root)
	require.NotEmpty(t, found)
	assert.Equal(t, filepath.Join(root, ".env"), found[0])
}
