package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBundleFromSingleFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "strategy.py")
	require.NoError(t, os.WriteFile(src, []byte("def on_event(e): pass\n"), 0o644))

	bundle, err := CreateBundle(src, "", "my-strategy", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "my-strategy", bundle.Manifest.StrategyID)
	assert.Equal(t, "user_strategy.py", bundle.Manifest.Entrypoint)
	assert.Contains(t, bundle.Manifest.Files, "strategy/user_strategy.py")
	assert.Len(t, bundle.SHA256, 64)

	_, err = os.Stat(bundle.BundlePath)
	require.NoError(t, err)
}

func TestCreateBundleFromDirectoryRequiresEntrypoint(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "helper.py"), []byte("x = 1\n"), 0o644))

	_, err := CreateBundle(dir, "user_strategy.py", "strat", t.TempDir())
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "user_strategy.py"), []byte("def on_event(e): pass\n"), 0o644))
	bundle, err := CreateBundle(dir, "user_strategy.py", "strat", t.TempDir())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"strategy/helper.py", "strategy/user_strategy.py"}, bundle.Manifest.Files)
}

func TestCreateBundleRejectsNonPyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "strategy.txt")
	require.NoError(t, os.WriteFile(src, []byte("not python"), 0o644))

	_, err := CreateBundle(src, "", "strat", t.TempDir())
	assert.Error(t, err)
}

func TestCreateBundleIsDeterministicHash(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "strategy.py")
	require.NoError(t, os.WriteFile(src, []byte("def on_event(e): pass\n"), 0o644))

	b1, err := CreateBundle(src, "", "strat", t.TempDir())
	require.NoError(t, err)
	b2, err := CreateBundle(src, "", "strat", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, b1.SHA256, b2.SHA256)
}
