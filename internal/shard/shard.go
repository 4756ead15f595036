// Package shard partitions the dependency graph into dependency-closed
// node sets so many CI workers can build in parallel, one shard each.
package shard

import (
	"fmt"

	"github.com/hochfrequenz/recipe-build-orchestrator/internal/depgraph"
)

// Shard is one bucket of graph nodes assigned to a single worker
type Shard []string

// Partition splits the graph into at most count shards.
//
// Natural groups are the graph's weakly connected components, or every
// node on its own when perNode is set (test-only runs, where cross-package
// batching is undesirable). Groups are sorted by name and dealt
// round-robin: group i lands in bucket i mod count. With fewer groups
// than requested shards the result is shorter than count.
//
// The same graph, count and perNode always yield identical shards.
func Partition(g *depgraph.Graph, count int, perNode bool) ([]Shard, error) {
	if count < 1 {
		return nil, fmt.Errorf("shard count must be >= 1, got %d", count)
	}

	var groups [][]string
	if perNode {
		for _, n := range g.Nodes() {
			groups = append(groups, []string{n})
		}
	} else {
		groups = g.Components()
	}

	if len(groups) <= count {
		shards := make([]Shard, 0, len(groups))
		for _, grp := range groups {
			shards = append(shards, Shard(grp))
		}
		return shards, nil
	}

	buckets := make([]Shard, count)
	for i, grp := range groups {
		buckets[i%count] = append(buckets[i%count], grp...)
	}
	return buckets, nil
}

// Select returns the shard at index, or ok=false when the index is past
// the last shard. An out-of-range index is a normal "nothing to do"
// outcome, not an error: CI matrices may request more shards than the
// graph has natural groups.
func Select(shards []Shard, index int) (Shard, bool) {
	if index < 0 || index >= len(shards) {
		return nil, false
	}
	return shards[index], true
}
