package execution

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willibrandon/gomsbuild/construction"
	"github.com/willibrandon/gomsbuild/evaluation"
)

func evaluateMarkup(t *testing.T, markup string) *evaluation.DataView {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "p.proj")
	require.NoError(t, os.WriteFile(path, []byte(markup), 0o644))
	c := evaluation.NewProjectCollection()
	p, err := c.LoadProject(path, nil, "")
	require.NoError(t, err)
	return p.View()
}

func TestBuildPlanDependsOnOrder(t *testing.T) {
	view := evaluateMarkup(t, `<Project DefaultTargets="Build">
  <Target Name="Build" DependsOnTargets="Compile;Link" />
  <Target Name="Compile" DependsOnTargets="Restore" />
  <Target Name="Link" DependsOnTargets="Compile" />
  <Target Name="Restore" />
</Project>`)

	plan, err := BuildPlan(view, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Restore", "Compile", "Link", "Build"}, plan.TargetNames())
}

func TestBuildPlanExplicitEntry(t *testing.T) {
	view := evaluateMarkup(t, `<Project DefaultTargets="Build">
  <Target Name="Build" DependsOnTargets="Compile" />
  <Target Name="Compile" />
  <Target Name="Clean" />
</Project>`)

	plan, err := BuildPlan(view, []string{"Clean"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Clean"}, plan.TargetNames())
}

func TestBuildPlanFallsBackToFirstTarget(t *testing.T) {
	view := evaluateMarkup(t, `<Project>
  <Target Name="First" />
  <Target Name="Second" />
</Project>`)

	plan, err := BuildPlan(view, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"First"}, plan.TargetNames())
}

func TestBuildPlanInitialTargetsRunFirst(t *testing.T) {
	view := evaluateMarkup(t, `<Project DefaultTargets="Build" InitialTargets="Validate">
  <Target Name="Validate" />
  <Target Name="Build" />
</Project>`)

	plan, err := BuildPlan(view, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Validate", "Build"}, plan.TargetNames())
}

func TestBuildPlanBeforeAfterHooks(t *testing.T) {
	view := evaluateMarkup(t, `<Project DefaultTargets="Build">
  <Target Name="Build" />
  <Target Name="Prepare" BeforeTargets="Build" />
  <Target Name="Publish" AfterTargets="Build" />
</Project>`)

	plan, err := BuildPlan(view, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Prepare", "Build", "Publish"}, plan.TargetNames())
}

func TestBuildPlanAfterTargetMayDependOnAnchor(t *testing.T) {
	view := evaluateMarkup(t, `<Project DefaultTargets="Build">
  <Target Name="Build" />
  <Target Name="Sign" AfterTargets="Build" DependsOnTargets="Build" />
</Project>`)

	plan, err := BuildPlan(view, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Build", "Sign"}, plan.TargetNames())
}

func TestBuildPlanSharedDependencyRunsOnce(t *testing.T) {
	view := evaluateMarkup(t, `<Project DefaultTargets="All">
  <Target Name="All" DependsOnTargets="A;B" />
  <Target Name="A" DependsOnTargets="Common" />
  <Target Name="B" DependsOnTargets="Common" />
  <Target Name="Common" />
</Project>`)

	plan, err := BuildPlan(view, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Common", "A", "B", "All"}, plan.TargetNames())
}

func TestBuildPlanCycleDetection(t *testing.T) {
	view := evaluateMarkup(t, `<Project DefaultTargets="A">
  <Target Name="A" DependsOnTargets="B" />
  <Target Name="B" DependsOnTargets="C" />
  <Target Name="C" DependsOnTargets="A" />
</Project>`)

	_, err := BuildPlan(view, nil)
	var cycle *CircularDependencyError
	require.ErrorAs(t, err, &cycle)
	require.Len(t, cycle.Stack, 4)
	assert.Equal(t, cycle.Stack[0], cycle.Stack[3])
}

func TestBuildPlanUnknownTargets(t *testing.T) {
	view := evaluateMarkup(t, `<Project DefaultTargets="Build">
  <Target Name="Build" DependsOnTargets="Ghost" />
</Project>`)

	_, err := BuildPlan(view, nil)
	var notFound *TargetNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "Ghost", notFound.Target)
	assert.Equal(t, "Build", notFound.ReferencedBy)

	_, err = BuildPlan(view, []string{"Missing"})
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "Missing", notFound.Target)
}

type recordingRunner struct {
	calls []string
}

func (r *recordingRunner) RunTask(_ context.Context, target *evaluation.Target, task *construction.TaskElement) error {
	r.calls = append(r.calls, target.Name()+"/"+task.TaskName())
	return nil
}

func TestPlanWalkVisitsTasksInOrder(t *testing.T) {
	view := evaluateMarkup(t, `<Project DefaultTargets="Build">
  <Target Name="Build" DependsOnTargets="Compile">
    <Link Sources="@(Obj)" />
  </Target>
  <Target Name="Compile">
    <Csc Sources="@(Compile)" />
    <Touch Files="stamp" />
  </Target>
</Project>`)

	plan, err := BuildPlan(view, nil)
	require.NoError(t, err)

	runner := &recordingRunner{}
	require.NoError(t, plan.Walk(context.Background(), runner))
	assert.Equal(t, []string{"Compile/Csc", "Compile/Touch", "Build/Link"}, runner.calls)
}
