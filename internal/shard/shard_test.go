package shard

import (
	"reflect"
	"testing"

	"github.com/hochfrequenz/recipe-build-orchestrator/internal/depgraph"
)

func mustGraph(t *testing.T, packages []string, deps map[string][]string) *depgraph.Graph {
	t.Helper()
	g, err := depgraph.New(packages, deps, nil)
	if err != nil {
		t.Fatalf("depgraph.New() error = %v", err)
	}
	return g
}

func TestPartition_ChainStaysTogether(t *testing.T) {
	g := mustGraph(t, []string{"a", "b", "c"}, map[string][]string{"b": {"a"}, "c": {"b"}})

	shards, err := Partition(g, 1, false)
	if err != nil {
		t.Fatalf("Partition() error = %v", err)
	}
	if len(shards) != 1 {
		t.Fatalf("shard count = %d, want 1", len(shards))
	}
	if !reflect.DeepEqual(shards[0], Shard{"a", "b", "c"}) {
		t.Errorf("shard = %v, want [a b c]", shards[0])
	}
}

func TestPartition_MoreShardsThanGroups(t *testing.T) {
	// one connected component; asking for 2 shards yields just 1
	g := mustGraph(t, []string{"a", "b", "c"}, map[string][]string{"b": {"a"}, "c": {"b"}})

	shards, err := Partition(g, 2, false)
	if err != nil {
		t.Fatalf("Partition() error = %v", err)
	}
	if len(shards) != 1 {
		t.Fatalf("shard count = %d, want 1", len(shards))
	}

	if _, ok := Select(shards, 2); ok {
		t.Error("Select(2) = ok, want nothing to do")
	}
}

func TestPartition_RoundRobin(t *testing.T) {
	// four singleton components dealt over two buckets
	g := mustGraph(t, []string{"a", "b", "c", "d"}, nil)

	shards, err := Partition(g, 2, false)
	if err != nil {
		t.Fatalf("Partition() error = %v", err)
	}
	want := []Shard{{"a", "c"}, {"b", "d"}}
	if !reflect.DeepEqual(shards, want) {
		t.Errorf("Partition() = %v, want %v", shards, want)
	}
}

func TestPartition_CompleteAndDisjoint(t *testing.T) {
	packages := []string{"a", "b", "c", "d", "e", "f", "g"}
	deps := map[string][]string{"b": {"a"}, "d": {"c"}, "f": {"e"}}
	g := mustGraph(t, packages, deps)

	for count := 1; count <= 8; count++ {
		shards, err := Partition(g, count, false)
		if err != nil {
			t.Fatalf("Partition(%d) error = %v", count, err)
		}

		seen := make(map[string]int)
		for _, s := range shards {
			for _, n := range s {
				seen[n]++
			}
		}
		if len(seen) != len(packages) {
			t.Errorf("count=%d: union has %d nodes, want %d", count, len(seen), len(packages))
		}
		for n, c := range seen {
			if c != 1 {
				t.Errorf("count=%d: node %s appears %d times", count, n, c)
			}
		}
	}
}

func TestPartition_Deterministic(t *testing.T) {
	g := mustGraph(t, []string{"a", "b", "c", "d", "e"}, map[string][]string{"b": {"a"}})

	first, err := Partition(g, 3, false)
	if err != nil {
		t.Fatalf("Partition() error = %v", err)
	}
	second, err := Partition(g, 3, false)
	if err != nil {
		t.Fatalf("Partition() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Partition() not deterministic: %v vs %v", first, second)
	}
}

func TestPartition_PerNodeMode(t *testing.T) {
	g := mustGraph(t, []string{"a", "b", "c"}, map[string][]string{"b": {"a"}, "c": {"b"}})

	shards, err := Partition(g, 2, true)
	if err != nil {
		t.Fatalf("Partition() error = %v", err)
	}
	// three singleton groups over two buckets
	want := []Shard{{"a", "c"}, {"b"}}
	if !reflect.DeepEqual(shards, want) {
		t.Errorf("Partition(perNode) = %v, want %v", shards, want)
	}
}

func TestPartition_InvalidCount(t *testing.T) {
	g := mustGraph(t, []string{"a"}, nil)
	if _, err := Partition(g, 0, false); err == nil {
		t.Error("Partition(0) error = nil, want error")
	}
}

func TestSelect(t *testing.T) {
	shards := []Shard{{"a"}, {"b"}}

	if s, ok := Select(shards, 1); !ok || !reflect.DeepEqual(s, Shard{"b"}) {
		t.Errorf("Select(1) = %v, %v", s, ok)
	}
	if _, ok := Select(shards, -1); ok {
		t.Error("Select(-1) = ok, want false")
	}
}
