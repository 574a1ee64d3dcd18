package evaluation

import (
	"fmt"
	"strings"

	"github.com/willibrandon/gomsbuild/construction"
)

// Evaluation error codes, in the same family as construction's codes.
const (
	// CodeCircularImport: an import re-entered a document on the import stack.
	CodeCircularImport = "MSB4210"

	// CodeImportNotFound: an imported project file does not exist.
	CodeImportNotFound = "MSB4019"

	// CodeConditionSyntax: a condition failed to parse.
	CodeConditionSyntax = "MSB4092"

	// CodeConditionType: a condition sub-expression has the wrong type.
	CodeConditionType = "MSB4113"

	// CodeNumericComparison: a relational operator was applied to a
	// non-numeric, non-version operand.
	CodeNumericComparison = "MSB4086"

	// CodeInvalidMetadata: item definition metadata referenced an item list.
	CodeInvalidMetadata = "MSB4096"

	// CodeChooseNesting: Choose elements nested beyond the allowed depth.
	CodeChooseNesting = "MSB4106"

	// CodeToolsVersionNotFound: no toolset exists for the requested version.
	CodeToolsVersionNotFound = "MSB4132"
)

// CircularImportError reports an import cycle when circular-import
// rejection is configured. The stack lists the chain of importing files,
// outermost first, ending with the re-entered file.
type CircularImportError struct {
	Stack []string
	Loc   construction.Location
}

func (e *CircularImportError) Error() string {
	return fmt.Sprintf("%s(%d,%d): error %s: circular import detected: %s",
		e.Loc.File, e.Loc.Line, e.Loc.Column, CodeCircularImport, strings.Join(e.Stack, " -> "))
}

// ImportNotFoundError reports an import whose resolved path does not exist
// when missing imports are not being ignored.
type ImportNotFoundError struct {
	ResolvedPath string
	Expression   string
	Loc          construction.Location
}

func (e *ImportNotFoundError) Error() string {
	return fmt.Sprintf("%s(%d,%d): error %s: the imported project %q was not found (import expression %q)",
		e.Loc.File, e.Loc.Line, e.Loc.Column, CodeImportNotFound, e.ResolvedPath, e.Expression)
}

// ChooseNestingError reports Choose elements nested beyond the supported
// depth.
type ChooseNestingError struct {
	Depth int
	Loc   construction.Location
}

func (e *ChooseNestingError) Error() string {
	return fmt.Sprintf("%s(%d,%d): error %s: Choose elements are nested %d deep, beyond the supported maximum",
		e.Loc.File, e.Loc.Line, e.Loc.Column, CodeChooseNesting, e.Depth)
}

// ConditionSyntaxError reports a condition that could not be parsed.
// Malformed conditions abort the whole evaluation; they are never treated
// as false.
type ConditionSyntaxError struct {
	Condition string
	Detail    string
	Loc       construction.Location
}

func (e *ConditionSyntaxError) Error() string {
	return fmt.Sprintf("%s(%d,%d): error %s: condition %q could not be parsed: %s",
		e.Loc.File, e.Loc.Line, e.Loc.Column, CodeConditionSyntax, e.Condition, e.Detail)
}

// ConditionTypeError reports a condition sub-expression whose value has the
// wrong type for its position (e.g. a non-boolean operand of "and"). It
// names both the raw and the expanded text of the offending sub-expression
// for diagnostics.
type ConditionTypeError struct {
	Code       string // CodeConditionType or CodeNumericComparison
	Condition  string // full condition text
	Expression string // offending sub-expression, unexpanded
	Expanded   string // offending sub-expression after expansion
	Expected   string // "a boolean", "a number or version"
	Loc        construction.Location
}

func (e *ConditionTypeError) Error() string {
	return fmt.Sprintf("%s(%d,%d): error %s: in condition %q, %q (which expands to %q) does not evaluate to %s",
		e.Loc.File, e.Loc.Line, e.Loc.Column, e.Code, e.Condition, e.Expression, e.Expanded, e.Expected)
}

// InvalidMetadataError reports item-list references inside item-definition
// metadata, which are illegal because no items exist at definition time.
type InvalidMetadataError struct {
	ItemType     string
	MetadataName string
	Value        string
	Loc          construction.Location
}

func (e *InvalidMetadataError) Error() string {
	return fmt.Sprintf("%s(%d,%d): error %s: default metadata %q of item type %q may not reference an item list (value %q)",
		e.Loc.File, e.Loc.Line, e.Loc.Column, CodeInvalidMetadata, e.MetadataName, e.ItemType, e.Value)
}

// ToolsVersionNotFoundError reports that the toolset provider has no
// toolset for the effective tools version. Raised at setup, before any
// pass runs.
type ToolsVersionNotFoundError struct {
	ToolsVersion string
	Known        []string
}

func (e *ToolsVersionNotFoundError) Error() string {
	return fmt.Sprintf("error %s: tools version %q is not recognized (available: %s)",
		CodeToolsVersionNotFound, e.ToolsVersion, strings.Join(e.Known, ", "))
}

// NotSupportedError is returned by read-only store adapters when a write
// operation is attempted.
type NotSupportedError struct {
	Operation string
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("operation %s is not supported on a read-only view", e.Operation)
}

// DuplicateProjectError reports an attempt to register a second equivalent
// project (same path, global properties and tools version) in a collection.
// Equivalent duplicates are a programming error, never a silent merge.
type DuplicateProjectError struct {
	Path         string
	ToolsVersion string
}

func (e *DuplicateProjectError) Error() string {
	return fmt.Sprintf("a project for %q with the same global properties and tools version %q is already loaded",
		e.Path, e.ToolsVersion)
}

// ProjectInUseError reports a document unload denied because a loaded
// project still references the root.
type ProjectInUseError struct {
	Path         string
	ReferencedBy string
}

func (e *ProjectInUseError) Error() string {
	return fmt.Sprintf("document %q cannot be unloaded: still referenced by project %q", e.Path, e.ReferencedBy)
}
