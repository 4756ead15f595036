// Package observer watches the recipe tree for edits so developers can
// see which packages (and their dependents) a change affects before
// pushing to CI.
package observer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeCallback is called with the package names whose recipes changed
type ChangeCallback func(packages []string)

// RecipeWatcher monitors a recipe tree for meta.yaml changes
type RecipeWatcher struct {
	watcher   *fsnotify.Watcher
	callback  ChangeCallback
	recipeDir string
	debounce  time.Duration

	// Debounce state
	pending map[string]struct{}
	timer   *time.Timer
	mu      sync.Mutex

	cancel context.CancelFunc
}

// NewRecipeWatcher creates a watcher over the recipe tree
func NewRecipeWatcher(recipeDir string, callback ChangeCallback) (*RecipeWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	rw := &RecipeWatcher{
		watcher:   watcher,
		callback:  callback,
		recipeDir: recipeDir,
		debounce:  500 * time.Millisecond, // recipe edits often come in bursts
		pending:   make(map[string]struct{}),
	}

	// Watch the tree and all subdirectories
	err = filepath.Walk(recipeDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if info.IsDir() {
			return rw.watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		watcher.Close()
		return nil, err
	}

	return rw, nil
}

// Start begins watching for file changes
func (rw *RecipeWatcher) Start(ctx context.Context) {
	ctx, rw.cancel = context.WithCancel(ctx)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-rw.watcher.Events:
				if !ok {
					return
				}
				rw.handleEvent(event)
			case _, ok := <-rw.watcher.Errors:
				if !ok {
					return
				}
				// Keep watching after transient errors
			}
		}
	}()
}

// Stop stops watching for file changes
func (rw *RecipeWatcher) Stop() {
	if rw.cancel != nil {
		rw.cancel()
	}
	rw.watcher.Close()
}

func (rw *RecipeWatcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	pkg := rw.PackageForPath(event.Name)
	if pkg == "" {
		return
	}

	rw.mu.Lock()
	defer rw.mu.Unlock()

	rw.pending[pkg] = struct{}{}

	// Reset or start debounce timer
	if rw.timer != nil {
		rw.timer.Stop()
	}
	rw.timer = time.AfterFunc(rw.debounce, rw.flush)
}

// PackageForPath maps a changed file to its recipe's package name, or ""
// when the file lies outside any recipe directory
func (rw *RecipeWatcher) PackageForPath(path string) string {
	rel, err := filepath.Rel(rw.recipeDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return ""
	}
	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) < 2 {
		return "" // a file directly in the tree root is not a recipe
	}
	return parts[len(parts)-2]
}

func (rw *RecipeWatcher) flush() {
	rw.mu.Lock()
	pending := rw.pending
	rw.pending = make(map[string]struct{})
	rw.mu.Unlock()

	if rw.callback == nil || len(pending) == 0 {
		return
	}

	packages := make([]string, 0, len(pending))
	for p := range pending {
		packages = append(packages, p)
	}
	rw.callback(packages)
}

// SetDebounce sets the debounce duration for batching changes
func (rw *RecipeWatcher) SetDebounce(d time.Duration) {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	rw.debounce = d
}
