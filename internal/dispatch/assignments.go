package dispatch

import "sync"

// ShardResult records the outcome one worker reported for a shard
type ShardResult struct {
	ShardIndex int
	WorkerID   string
	Success    bool
	Built      int
	Failed     int
	Skipped    int
}

// assignments tracks which shard is handed to which worker. Shards
// abandoned by a disconnecting worker go back into the pool.
type assignments struct {
	mu      sync.Mutex
	count   int
	pending []int
	held    map[int]string // shard index -> worker ID
	results map[int]ShardResult
}

func newAssignments(shardCount int) *assignments {
	pending := make([]int, shardCount)
	for i := range pending {
		pending[i] = i
	}
	return &assignments{
		count:   shardCount,
		pending: pending,
		held:    make(map[int]string),
		results: make(map[int]ShardResult),
	}
}

// Take hands the next pending shard to a worker. The second return is
// false when no shard is available.
func (a *assignments) Take(workerID string) (int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.pending) == 0 {
		return 0, false
	}
	idx := a.pending[0]
	a.pending = a.pending[1:]
	a.held[idx] = workerID
	return idx, true
}

// Complete records a worker's result for a shard it holds
func (a *assignments) Complete(res ShardResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.held[res.ShardIndex] != res.WorkerID {
		return
	}
	delete(a.held, res.ShardIndex)
	a.results[res.ShardIndex] = res
}

// Release returns all shards held by a worker to the pending pool.
// Used when a worker disconnects mid-build.
func (a *assignments) Release(workerID string) []int {
	a.mu.Lock()
	defer a.mu.Unlock()

	var released []int
	for idx, holder := range a.held {
		if holder == workerID {
			delete(a.held, idx)
			a.pending = append(a.pending, idx)
			released = append(released, idx)
		}
	}
	return released
}

// Finished reports whether every shard has a result
func (a *assignments) Finished() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.results) == a.count
}

// Results returns all recorded shard results keyed by index
func (a *assignments) Results() map[int]ShardResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[int]ShardResult, len(a.results))
	for k, v := range a.results {
		out[k] = v
	}
	return out
}

// Counts returns pending, held and completed shard counts
func (a *assignments) Counts() (pending, held, done int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending), len(a.held), len(a.results)
}
