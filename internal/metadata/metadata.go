// Package metadata reads recipe metadata from a recipe tree on disk.
//
// A recipe is a directory containing a meta.yaml. The scan is
// deterministic for a given tree snapshot: results come back sorted by
// package name regardless of load order.
package metadata

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

const metaFileName = "meta.yaml"

// Source reads recipes from a directory tree
type Source struct {
	recipeDir string
	debug     bool
}

// NewSource creates a Source rooted at recipeDir
func NewSource(recipeDir string, debug bool) *Source {
	return &Source{recipeDir: recipeDir, debug: debug}
}

// ListPackages returns the recipe directory names matching the glob,
// sorted. A recipe directory is any direct or nested subdirectory
// holding a meta.yaml.
func (s *Source) ListPackages(glob string) ([]string, error) {
	if glob == "" {
		glob = "*"
	}

	var names []string
	err := filepath.WalkDir(s.recipeDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != metaFileName {
			return nil
		}
		name := filepath.Base(filepath.Dir(path))
		ok, err := filepath.Match(glob, name)
		if err != nil {
			return fmt.Errorf("bad package glob %q: %w", glob, err)
		}
		if ok {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", s.recipeDir, err)
	}

	sort.Strings(names)
	return names, nil
}

// LoadRecipes parses the meta.yaml of each named recipe concurrently and
// returns them keyed by package name. Recipes flagged skip are omitted.
func (s *Source) LoadRecipes(ctx context.Context, names []string) (map[string]*Recipe, error) {
	dirs, err := s.recipeDirs(names)
	if err != nil {
		return nil, err
	}

	recipes := make(map[string]*Recipe, len(names))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for name, dir := range dirs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(filepath.Join(dir, metaFileName))
			if err != nil {
				return err
			}
			recipe, err := ParseMeta(data)
			if err != nil {
				return fmt.Errorf("parsing %s: %w", name, err)
			}
			recipe.Dir = dir
			if recipe.Skip {
				if s.debug {
					log.Printf("[metadata] recipe %s flagged skip", name)
				}
				return nil
			}
			mu.Lock()
			recipes[recipe.Name] = recipe
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return recipes, nil
}

// recipeDirs maps the requested names to their directories
func (s *Source) recipeDirs(names []string) (map[string]string, error) {
	wanted := make(map[string]string, len(names))
	for _, n := range names {
		wanted[n] = ""
	}

	err := filepath.WalkDir(s.recipeDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != metaFileName {
			return nil
		}
		dir := filepath.Dir(path)
		name := filepath.Base(dir)
		if _, ok := wanted[name]; ok {
			wanted[name] = dir
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for n, dir := range wanted {
		if dir == "" {
			return nil, fmt.Errorf("recipe %s not found under %s", n, s.recipeDir)
		}
	}
	return wanted, nil
}
