package depgraph

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCyclicDependency marks a cyclic dependency graph, which is an
// unrecoverable configuration error: the run aborts before any build.
var ErrCyclicDependency = errors.New("cyclic dependency")

// CycleError reports the nodes involved in a dependency cycle
type CycleError struct {
	Nodes []string
}

func (e *CycleError) Error() string {
	if len(e.Nodes) == 0 {
		return ErrCyclicDependency.Error()
	}
	return fmt.Sprintf("%s among: %s", ErrCyclicDependency.Error(), strings.Join(e.Nodes, ", "))
}

func (e *CycleError) Unwrap() error { return ErrCyclicDependency }
