//go:build integration

package integration

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// writeRecipe creates recipes/<name>/meta.yaml under root
func writeRecipe(t *testing.T, root, name, version string, deps []string) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}

	meta := fmt.Sprintf("package:\n  name: %s\n  version: \"%s\"\n", name, version)
	if len(deps) > 0 {
		meta += "requirements:\n  run:\n"
		for _, d := range deps {
			meta += "    - " + d + "\n"
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "meta.yaml"), []byte(meta), 0644); err != nil {
		t.Fatal(err)
	}
}

// tempDBPath returns a throwaway database path
func tempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "runs.db")
}
