package metadata

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeRecipe(t *testing.T, root, name, meta string) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "meta.yaml"), []byte(meta), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestParseMeta(t *testing.T) {
	recipe, err := ParseMeta([]byte(`
package:
  name: samtools
  version: "1.19"
requirements:
  build:
    - zlib
    - htslib
  run:
    - zlib
`))
	if err != nil {
		t.Fatalf("ParseMeta() error = %v", err)
	}

	if recipe.Name != "samtools" || recipe.Version != "1.19" {
		t.Errorf("recipe = %s %s, want samtools 1.19", recipe.Name, recipe.Version)
	}
	if got := recipe.Dependencies(); !reflect.DeepEqual(got, []string{"htslib", "zlib"}) {
		t.Errorf("Dependencies() = %v, want [htslib zlib]", got)
	}
}

func TestDependencies_StripsVersionConstraints(t *testing.T) {
	r := &Recipe{
		BuildDeps: []string{"zlib >=1.2", "gcc"},
		RunDeps:   []string{"zlib", "htslib >=1.9,<2"},
	}
	if got := r.Dependencies(); !reflect.DeepEqual(got, []string{"gcc", "htslib", "zlib"}) {
		t.Errorf("Dependencies() = %v, want [gcc htslib zlib]", got)
	}
}

func TestParseMeta_MissingName(t *testing.T) {
	if _, err := ParseMeta([]byte("package:\n  version: \"1\"\n")); err == nil {
		t.Error("ParseMeta() error = nil, want error for missing name")
	}
}

func TestListPackages_Glob(t *testing.T) {
	root := t.TempDir()
	writeRecipe(t, root, "samtools", "package:\n  name: samtools\n")
	writeRecipe(t, root, "bwa", "package:\n  name: bwa\n")
	writeRecipe(t, root, "bcftools", "package:\n  name: bcftools\n")

	src := NewSource(root, false)

	all, err := src.ListPackages("*")
	if err != nil {
		t.Fatalf("ListPackages() error = %v", err)
	}
	if !reflect.DeepEqual(all, []string{"bcftools", "bwa", "samtools"}) {
		t.Errorf("ListPackages(*) = %v", all)
	}

	b, err := src.ListPackages("b*")
	if err != nil {
		t.Fatalf("ListPackages() error = %v", err)
	}
	if !reflect.DeepEqual(b, []string{"bcftools", "bwa"}) {
		t.Errorf("ListPackages(b*) = %v", b)
	}
}

func TestLoadRecipes(t *testing.T) {
	root := t.TempDir()
	writeRecipe(t, root, "a", "package:\n  name: a\n  version: \"1\"\n")
	writeRecipe(t, root, "b", "package:\n  name: b\nrequirements:\n  run: [a]\n")
	writeRecipe(t, root, "old", "package:\n  name: old\nbuild:\n  skip: true\n")

	src := NewSource(root, false)
	recipes, err := src.LoadRecipes(context.Background(), []string{"a", "b", "old"})
	if err != nil {
		t.Fatalf("LoadRecipes() error = %v", err)
	}

	if len(recipes) != 2 {
		t.Fatalf("len(recipes) = %d, want 2 (skip flag honored)", len(recipes))
	}
	if !reflect.DeepEqual(recipes["b"].Dependencies(), []string{"a"}) {
		t.Errorf("b deps = %v, want [a]", recipes["b"].Dependencies())
	}
	if recipes["a"].Dir == "" {
		t.Error("recipe Dir not set")
	}
}

func TestLoadRecipes_Missing(t *testing.T) {
	src := NewSource(t.TempDir(), false)
	if _, err := src.LoadRecipes(context.Background(), []string{"ghost"}); err == nil {
		t.Error("LoadRecipes(ghost) error = nil, want not found")
	}
}

func TestLoadBlacklist(t *testing.T) {
	dir := t.TempDir()
	one := filepath.Join(dir, "bl1")
	two := filepath.Join(dir, "bl2")
	os.WriteFile(one, []byte("# broken on arm\nsamtools\n\nbwa\n"), 0644)
	os.WriteFile(two, []byte("bwa\nhtslib\n"), 0644)

	bl, err := LoadBlacklist([]string{one, two})
	if err != nil {
		t.Fatalf("LoadBlacklist() error = %v", err)
	}

	want := map[string]bool{"samtools": true, "bwa": true, "htslib": true}
	if !reflect.DeepEqual(bl, want) {
		t.Errorf("LoadBlacklist() = %v, want %v", bl, want)
	}
}

func TestExpandTargets(t *testing.T) {
	recipes := map[string]*Recipe{
		"samtools": {Name: "samtools", Version: "1.19", Dir: "/r/samtools"},
	}
	envs := []map[string]string{
		{"CONDA_PY": "3.10"},
		{"CONDA_PY": "3.11"},
	}

	packages := ExpandTargets(recipes, envs, "/bld")
	pkg := packages["samtools"]
	if pkg == nil || len(pkg.Targets) != 2 {
		t.Fatalf("packages = %v, want samtools with 2 targets", packages)
	}
	want := "/bld/samtools-1.19-CONDA_PY310.tar.bz2"
	if pkg.Targets[0].ArtifactPath != want {
		t.Errorf("ArtifactPath = %q, want %q", pkg.Targets[0].ArtifactPath, want)
	}
}
