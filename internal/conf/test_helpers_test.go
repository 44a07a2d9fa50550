package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// isolateEnv points the data directory at a temp dir and clears overrides
// that would leak in from the developer's shell.
func isolateEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("TROLLTRACK_DATA_DIR", dir)
	for _, b := range getEnvBindings() {
		t.Setenv(b.EnvVar, "")
		require.NoError(t, os.Unsetenv(b.EnvVar))
	}
	return dir
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
