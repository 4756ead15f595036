package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Package is a named recipe plus the targets expanded from it.
// Identity is the name; packages are immutable once loaded.
type Package struct {
	Name      string
	Version   string
	RecipeDir string
	Targets   []*Target
}

// Target is one (package, build environment) pair that is independently
// buildable, testable and uploadable
type Target struct {
	Package      string
	RecipeDir    string
	Env          map[string]string
	ArtifactPath string
}

// ID returns the canonical identifier "package[env]" used for state tracking
func (t *Target) ID() string {
	return fmt.Sprintf("%s[%s]", t.Package, t.EnvString())
}

// EnvString returns the environment as "k=v;k=v" with sorted keys
func (t *Target) EnvString() string {
	keys := make([]string, 0, len(t.Env))
	for k := range t.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+t.Env[k])
	}
	return strings.Join(parts, ";")
}

// EnvTag returns a filesystem-safe environment suffix for artifact paths
func (t *Target) EnvTag() string {
	if len(t.Env) == 0 {
		return "0"
	}
	keys := make([]string, 0, len(t.Env))
	for k := range t.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+strings.ReplaceAll(t.Env[k], ".", ""))
	}
	return strings.Join(parts, "_")
}
