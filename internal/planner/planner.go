// Package planner computes the per-shard execution order
package planner

import (
	"fmt"

	"github.com/hochfrequenz/recipe-build-orchestrator/internal/depgraph"
	"github.com/hochfrequenz/recipe-build-orchestrator/internal/domain"
	"github.com/hochfrequenz/recipe-build-orchestrator/internal/shard"
)

// Plan returns the shard's packages in topological build order. Every
// package appears after all of its in-shard dependencies; ties break by
// name so the order matches the partitioner's determinism guarantee.
// The cycle check is re-applied on the subgraph even though graph
// construction already validated the whole graph.
func Plan(g *depgraph.Graph, s shard.Shard) ([]string, error) {
	order, err := g.TopoSort(s)
	if err != nil {
		return nil, fmt.Errorf("planning shard: %w", err)
	}
	return order, nil
}

// Targets expands an ordered package list into the flat target sequence
// the executor walks. Targets of the same package stay adjacent, in the
// order the metadata source produced them.
func Targets(order []string, packages map[string]*domain.Package) []*domain.Target {
	var targets []*domain.Target
	for _, name := range order {
		pkg, ok := packages[name]
		if !ok {
			continue
		}
		targets = append(targets, pkg.Targets...)
	}
	return targets
}
