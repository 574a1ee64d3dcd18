// Package execution turns an evaluated project into an ordered target
// schedule.
//
// Scheduling is purely structural: it resolves DependsOnTargets,
// BeforeTargets and AfterTargets edges into a deterministic run order and
// rejects cycles. Target and task conditions are not evaluated here; they
// depend on build-time state and belong to whatever runs the plan.
package execution

import (
	"context"
	"strings"

	"github.com/willibrandon/gomsbuild/construction"
	"github.com/willibrandon/gomsbuild/evaluation"
)

// TaskRunner executes one task invocation of a scheduled target. The
// scheduler itself never invokes tasks; callers supply an implementation
// when they walk a plan.
type TaskRunner interface {
	// RunTask executes the task element for the named target. Returning an
	// error aborts the walk unless the task's ContinueOnError says
	// otherwise at the caller's discretion.
	RunTask(ctx context.Context, target *evaluation.Target, task *construction.TaskElement) error
}

// Plan is a deterministic target schedule. Order respects DependsOn,
// Before and After edges; each target appears at most once.
type Plan struct {
	order []*evaluation.Target
}

// Targets returns the scheduled targets in run order.
func (p *Plan) Targets() []*evaluation.Target {
	return append([]*evaluation.Target(nil), p.order...)
}

// TargetNames returns the scheduled target names in run order.
func (p *Plan) TargetNames() []string {
	names := make([]string, 0, len(p.order))
	for _, t := range p.order {
		names = append(names, t.Name())
	}
	return names
}

// Walk invokes runner over every task of every scheduled target, in order.
func (p *Plan) Walk(ctx context.Context, runner TaskRunner) error {
	for _, target := range p.order {
		for _, task := range target.Source.Tasks() {
			if err := runner.RunTask(ctx, target, task); err != nil {
				return err
			}
		}
	}
	return nil
}

// visit states for cycle detection.
const (
	stateUnvisited = iota
	stateInProgress
	stateDone
)

type scheduler struct {
	view *evaluation.DataView

	// beforeEdges and afterEdges map a lower-cased target name to the
	// targets that declared BeforeTargets/AfterTargets naming it, in
	// registration order.
	beforeEdges map[string][]*evaluation.Target
	afterEdges  map[string][]*evaluation.Target

	state map[string]int
	stack []string
	order []*evaluation.Target
}

// BuildPlan schedules the given entry targets against an evaluated view.
// With no entry targets, the project's defaults apply; a project with no
// defaults falls back to its first declared target. Initial targets always
// run first.
func BuildPlan(view *evaluation.DataView, entry []string) (*Plan, error) {
	s := &scheduler{
		view:        view,
		beforeEdges: make(map[string][]*evaluation.Target),
		afterEdges:  make(map[string][]*evaluation.Target),
		state:       make(map[string]int),
	}
	for _, t := range view.Targets() {
		for _, name := range t.Before {
			key := strings.ToLower(name)
			s.beforeEdges[key] = append(s.beforeEdges[key], t)
		}
		for _, name := range t.After {
			key := strings.ToLower(name)
			s.afterEdges[key] = append(s.afterEdges[key], t)
		}
	}

	roots, err := s.entryTargets(entry)
	if err != nil {
		return nil, err
	}
	for _, name := range roots {
		if err := s.visit(name, ""); err != nil {
			return nil, err
		}
	}
	return &Plan{order: s.order}, nil
}

func (s *scheduler) entryTargets(entry []string) ([]string, error) {
	roots := append([]string(nil), s.view.InitialTargets()...)
	if len(entry) == 0 {
		entry = s.view.DefaultTargets()
	}
	if len(entry) == 0 {
		if all := s.view.Targets(); len(all) > 0 {
			entry = []string{all[0].Name()}
		}
	}
	for _, name := range entry {
		if s.view.Target(name) == nil {
			return nil, &TargetNotFoundError{Target: name}
		}
	}
	return append(roots, entry...), nil
}

func (s *scheduler) visit(name, referencedBy string) error {
	target := s.view.Target(name)
	if target == nil {
		return &TargetNotFoundError{Target: name, ReferencedBy: referencedBy}
	}
	key := strings.ToLower(target.Name())

	switch s.state[key] {
	case stateDone:
		return nil
	case stateInProgress:
		return &CircularDependencyError{Stack: append(append([]string(nil), s.stack...), target.Name())}
	}

	s.state[key] = stateInProgress
	s.stack = append(s.stack, target.Name())

	for _, dep := range target.DependsOn {
		if err := s.visit(dep, target.Name()); err != nil {
			return err
		}
	}
	for _, hooked := range s.beforeEdges[key] {
		if err := s.visit(hooked.Name(), target.Name()); err != nil {
			return err
		}
	}

	s.order = append(s.order, target)
	s.state[key] = stateDone
	s.stack = s.stack[:len(s.stack)-1]

	// After-hooks run once their anchor is placed; the anchor is done, so
	// an after-target depending on it is not a cycle.
	for _, hooked := range s.afterEdges[key] {
		if err := s.visit(hooked.Name(), target.Name()); err != nil {
			return err
		}
	}
	return nil
}
