package evaluation

import (
	"github.com/willibrandon/gomsbuild/construction"
)

// Target is a registered target. Its body (tasks, nested groups) stays
// structural and unevaluated: task conditions and expressions depend on
// state as it exists during a build, including items modified by targets
// that already ran, so they expand at execution time.
type Target struct {
	name string

	// Source is the winning target element for this name.
	Source *construction.TargetElement

	// DependsOn, Before and After hold the dependency edges with properties
	// expanded and the lists split, in declaration order.
	DependsOn []string
	Before    []string
	After     []string
}

// Name returns the target name.
func (t *Target) Name() string { return t.name }

// Condition returns the raw, unevaluated target condition.
func (t *Target) Condition() string { return t.Source.Condition() }

// Location returns where the winning definition appears.
func (t *Target) Location() construction.Location { return t.Source.Location() }

// ImportEntry records one considered import. The closure keeps every
// occurrence, including duplicates and imports skipped per load settings,
// so tooling can show the full contributing file set and dirty checks can
// compare versions cheaply.
type ImportEntry struct {
	// ImportingElement is the import element that pulled the file in, or
	// nil for the root document's own entry.
	ImportingElement *construction.ImportElement

	// ImportedRoot is the loaded document, or nil when the import was
	// missing and skipped per load settings.
	ImportedRoot *construction.ProjectRootElement

	// ResolvedPath is the full path the import resolved to.
	ResolvedPath string

	// VersionAtImport is the root's version counter when it was imported.
	VersionAtImport int64

	// Duplicate marks a non-circular repeat occurrence whose side effects
	// were not reprocessed.
	Duplicate bool

	// Missing marks an import that did not resolve to an existing file.
	Missing bool
}
