package observer

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"
)

func TestPackageForPath(t *testing.T) {
	rw := &RecipeWatcher{recipeDir: "/srv/recipes"}

	tests := []struct {
		path string
		want string
	}{
		{"/srv/recipes/samtools/meta.yaml", "samtools"},
		{"/srv/recipes/nested/bwa/build.sh", "bwa"},
		{"/srv/recipes/README", ""},
		{"/elsewhere/meta.yaml", ""},
	}
	for _, tt := range tests {
		if got := rw.PackageForPath(tt.path); got != tt.want {
			t.Errorf("PackageForPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestRecipeWatcher_ReportsChangedPackages(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "samtools")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var got []string
	done := make(chan struct{})

	rw, err := NewRecipeWatcher(root, func(packages []string) {
		mu.Lock()
		got = append(got, packages...)
		mu.Unlock()
		close(done)
	})
	if err != nil {
		t.Fatalf("NewRecipeWatcher() error = %v", err)
	}
	defer rw.Stop()
	rw.SetDebounce(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rw.Start(ctx)

	if err := os.WriteFile(filepath.Join(dir, "meta.yaml"), []byte("package:\n  name: samtools\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change callback")
	}

	mu.Lock()
	defer mu.Unlock()
	sort.Strings(got)
	if len(got) != 1 || got[0] != "samtools" {
		t.Errorf("changed packages = %v, want [samtools]", got)
	}
}
