package construction

import "fmt"

// Error codes raised while loading or validating a project document.
const (
	// CodeInvalidMarkup: the underlying XML could not be parsed.
	CodeInvalidMarkup = "MSB4025"

	// CodeUnrecognizedAttribute: an element carries an attribute it does not allow.
	CodeUnrecognizedAttribute = "MSB4066"

	// CodeUnrecognizedElement: an element appears under a parent that does not allow it.
	CodeUnrecognizedElement = "MSB4067"

	// CodeMissingRequiredAttribute: a required attribute is absent or empty.
	CodeMissingRequiredAttribute = "MSB4064"

	// CodeInvalidChildPlacement: a child is structurally misplaced (e.g. OnError not last).
	CodeInvalidChildPlacement = "MSB4076"

	// CodeReservedName: a property or item type uses a reserved name.
	CodeReservedName = "MSB4004"

	// CodeDuplicateSingleton: a second instance of a one-per-parent element was found.
	CodeDuplicateSingleton = "MSB4065"
)

// InvalidProjectFileError reports a structural or schema violation in a
// project document. It always carries the source location of the offending
// element so callers can surface file(line,col) diagnostics.
type InvalidProjectFileError struct {
	Code    string   // Error code (e.g. "MSB4067")
	Message string   // Human-readable message
	Loc     Location // Where the violation was found
}

// Error implements the error interface using the canonical
// "file(line,col): error CODE: message" shape.
func (e *InvalidProjectFileError) Error() string {
	if e.Loc.File == "" {
		return fmt.Sprintf("error %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s(%d,%d): error %s: %s", e.Loc.File, e.Loc.Line, e.Loc.Column, e.Code, e.Message)
}

// NewInvalidProjectFileError creates an InvalidProjectFileError at loc.
func NewInvalidProjectFileError(code string, loc Location, format string, args ...any) *InvalidProjectFileError {
	return &InvalidProjectFileError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Loc:     loc,
	}
}
