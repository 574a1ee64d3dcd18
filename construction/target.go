package construction

// TargetElement represents a <Target> element. Its children are retained
// structurally; their conditions and expressions stay unevaluated until
// build-execution time because they may depend on state produced by
// previously executed targets.
type TargetElement struct {
	elementBase
	container
	targetName       string
	dependsOnTargets string
	beforeTargets    string
	afterTargets     string
	inputs           string
	outputs          string
	returns          string
}

// Name returns the target name.
func (t *TargetElement) Name() string { return t.targetName }

// DependsOnTargets returns the raw DependsOnTargets attribute text.
func (t *TargetElement) DependsOnTargets() string { return t.dependsOnTargets }

// BeforeTargets returns the raw BeforeTargets attribute text.
func (t *TargetElement) BeforeTargets() string { return t.beforeTargets }

// AfterTargets returns the raw AfterTargets attribute text.
func (t *TargetElement) AfterTargets() string { return t.afterTargets }

// Inputs returns the raw Inputs attribute text.
func (t *TargetElement) Inputs() string { return t.inputs }

// Outputs returns the raw Outputs attribute text.
func (t *TargetElement) Outputs() string { return t.outputs }

// Returns returns the raw Returns attribute text.
func (t *TargetElement) Returns() string { return t.returns }

// Tasks returns the task children in document order.
func (t *TargetElement) Tasks() []*TaskElement {
	tasks := make([]*TaskElement, 0, len(t.children))
	for _, child := range t.children {
		if task, ok := child.(*TaskElement); ok {
			tasks = append(tasks, task)
		}
	}
	return tasks
}

// OnError returns the target's OnError child, or nil if absent.
// Construction guarantees at most one, positioned last.
func (t *TargetElement) OnError() *OnErrorElement {
	for _, child := range t.children {
		if oe, ok := child.(*OnErrorElement); ok {
			return oe
		}
	}
	return nil
}

// TaskParameter is one raw attribute on a task invocation.
type TaskParameter struct {
	Name  string
	Value string
	Loc   Location
}

// TaskElement represents a task invocation inside a target. The tag name is
// the task name; all attributes other than Condition/ContinueOnError are
// retained as ordered raw parameters.
type TaskElement struct {
	elementBase
	container
	continueOnError string
	parameters      []TaskParameter
}

// TaskName returns the task name (the tag name).
func (t *TaskElement) TaskName() string { return t.name }

// ContinueOnError returns the raw ContinueOnError attribute text.
func (t *TaskElement) ContinueOnError() string { return t.continueOnError }

// Parameters returns the task's raw parameters in attribute order.
func (t *TaskElement) Parameters() []TaskParameter { return t.parameters }

// Outputs returns the task's output declarations in document order.
func (t *TaskElement) Outputs() []*OutputElement {
	outs := make([]*OutputElement, 0, len(t.children))
	for _, child := range t.children {
		if o, ok := child.(*OutputElement); ok {
			outs = append(outs, o)
		}
	}
	return outs
}

// OutputElement represents an <Output> element under a task. Exactly one of
// ItemName and PropertyName is set; construction enforces the exclusivity.
type OutputElement struct {
	elementBase
	taskParameter string
	itemName      string
	propertyName  string
}

// TaskParameter returns the name of the task parameter being captured.
func (o *OutputElement) TaskParameter() string { return o.taskParameter }

// ItemName returns the item type receiving the output, or "".
func (o *OutputElement) ItemName() string { return o.itemName }

// PropertyName returns the property receiving the output, or "".
func (o *OutputElement) PropertyName() string { return o.propertyName }

// OnErrorElement represents an <OnError> element, the error-recovery hook of
// a target. At most one may appear per target and it must be the last child.
type OnErrorElement struct {
	elementBase
	executeTargets string
}

// ExecuteTargets returns the raw ExecuteTargets attribute text.
func (o *OnErrorElement) ExecuteTargets() string { return o.executeTargets }
