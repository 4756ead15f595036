package metadata

import (
	"fmt"
	"path/filepath"

	"github.com/hochfrequenz/recipe-build-orchestrator/internal/domain"
)

// ExpandTargets turns recipes into packages with one target per
// environment combination. The artifact path is derived from package
// name, version and environment, under bldDir.
func ExpandTargets(recipes map[string]*Recipe, envs []map[string]string, bldDir string) map[string]*domain.Package {
	packages := make(map[string]*domain.Package, len(recipes))
	for name, recipe := range recipes {
		pkg := &domain.Package{
			Name:      name,
			Version:   recipe.Version,
			RecipeDir: recipe.Dir,
		}
		for _, env := range envs {
			t := &domain.Target{
				Package:   name,
				RecipeDir: recipe.Dir,
				Env:       env,
			}
			t.ArtifactPath = filepath.Join(bldDir, fmt.Sprintf("%s-%s-%s.tar.bz2", name, recipe.Version, t.EnvTag()))
			pkg.Targets = append(pkg.Targets, t)
		}
		packages[name] = pkg
	}
	return packages
}
