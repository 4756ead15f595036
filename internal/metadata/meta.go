package metadata

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Recipe is the parsed metadata of one package recipe
type Recipe struct {
	Name      string
	Version   string
	Dir       string
	BuildDeps []string
	RunDeps   []string
	Skip      bool
}

// Dependencies returns the union of build and run dependencies, sorted
// and deduplicated. Version constraints ("zlib >=1.2") are stripped to
// the bare package name so specs match graph nodes.
func (r *Recipe) Dependencies() []string {
	seen := make(map[string]struct{}, len(r.BuildDeps)+len(r.RunDeps))
	for _, d := range r.BuildDeps {
		if name := depName(d); name != "" {
			seen[name] = struct{}{}
		}
	}
	for _, d := range r.RunDeps {
		if name := depName(d); name != "" {
			seen[name] = struct{}{}
		}
	}

	deps := make([]string, 0, len(seen))
	for d := range seen {
		deps = append(deps, d)
	}
	sort.Strings(deps)
	return deps
}

// depName strips a version constraint from a dependency spec
func depName(spec string) string {
	fields := strings.Fields(spec)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// metaFile mirrors the subset of meta.yaml the scheduler needs
type metaFile struct {
	Package struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"package"`
	Requirements struct {
		Build []string `yaml:"build"`
		Run   []string `yaml:"run"`
	} `yaml:"requirements"`
	Build struct {
		Skip bool `yaml:"skip"`
	} `yaml:"build"`
}

// ParseMeta parses a meta.yaml document
func ParseMeta(data []byte) (*Recipe, error) {
	var mf metaFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, err
	}
	if mf.Package.Name == "" {
		return nil, fmt.Errorf("meta.yaml missing package.name")
	}
	return &Recipe{
		Name:      mf.Package.Name,
		Version:   mf.Package.Version,
		BuildDeps: mf.Requirements.Build,
		RunDeps:   mf.Requirements.Run,
		Skip:      mf.Build.Skip,
	}, nil
}
