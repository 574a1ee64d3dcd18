package execution

import (
	"fmt"
	"strings"
)

// Scheduling error codes, in the same family as evaluation's codes.
const (
	// CodeCircularDependency: the target graph contains a cycle.
	CodeCircularDependency = "MSB4006"

	// CodeTargetNotFound: a named target does not exist in the project.
	CodeTargetNotFound = "MSB4057"
)

// CircularDependencyError reports a cycle in the target dependency graph.
// The stack lists the chain of target names, ending with the re-entered
// target.
type CircularDependencyError struct {
	Stack []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("error %s: there is a circular dependency in the target graph: %s",
		CodeCircularDependency, strings.Join(e.Stack, " -> "))
}

// TargetNotFoundError reports a reference to a target the project does not
// define.
type TargetNotFoundError struct {
	Target       string
	ReferencedBy string
}

func (e *TargetNotFoundError) Error() string {
	if e.ReferencedBy != "" {
		return fmt.Sprintf("error %s: the target %q referenced by %q does not exist in the project",
			CodeTargetNotFound, e.Target, e.ReferencedBy)
	}
	return fmt.Sprintf("error %s: the target %q does not exist in the project", CodeTargetNotFound, e.Target)
}
