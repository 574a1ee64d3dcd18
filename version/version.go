// Package version provides dotted-version parsing and comparison.
//
// It implements the two-to-four part numeric version format used by
// build-definition conditions (e.g. "4.0", "14.0.25420.1"). Unlike SemVer
// there are no prerelease labels or build metadata; components are plain
// non-negative integers.
//
// Example:
//
//	v, err := version.Parse("4.0.30319")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(v.Major, v.Minor, v.Build) // 4 0 30319
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Version represents a dotted version with two to four numeric parts.
//
// Unset components are -1 and compare lower than 0, so "1.0" < "1.0.0".
// This matches the reference runtime's version comparison, which the
// condition evaluator depends on for operators like '$(V)' >= '4.0'.
type Version struct {
	// Major version number
	Major int

	// Minor version number
	Minor int

	// Build is the third component, or -1 if absent
	Build int

	// Revision is the fourth component, or -1 if absent
	Revision int

	// originalString preserves the original version string
	originalString string
}

// Parse parses a dotted version string with 2-4 numeric components.
// A single leading "v" or "V" is tolerated ("v4.0" parses as "4.0").
// Returns an error for anything else, including negative or non-numeric
// components and SemVer-style suffixes.
func Parse(s string) (*Version, error) {
	original := s
	trimmed := strings.TrimSpace(s)
	if len(trimmed) > 0 && (trimmed[0] == 'v' || trimmed[0] == 'V') {
		trimmed = trimmed[1:]
	}
	if trimmed == "" {
		return nil, fmt.Errorf("invalid version %q: empty", original)
	}

	parts := strings.Split(trimmed, ".")
	if len(parts) < 2 || len(parts) > 4 {
		return nil, fmt.Errorf("invalid version %q: expected 2-4 components, got %d", original, len(parts))
	}

	nums := [4]int{0, 0, -1, -1}
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || strings.TrimSpace(part) != part || part == "" {
			return nil, fmt.Errorf("invalid version %q: component %q is not a non-negative integer", original, part)
		}
		nums[i] = n
	}

	return &Version{
		Major:          nums[0],
		Minor:          nums[1],
		Build:          nums[2],
		Revision:       nums[3],
		originalString: original,
	}, nil
}

// CanParse reports whether s parses as a dotted version.
func CanParse(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// String returns the string representation of the version.
func (v *Version) String() string {
	if v.originalString != "" {
		return v.originalString
	}
	switch {
	case v.Revision >= 0:
		return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Build, v.Revision)
	case v.Build >= 0:
		return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Build)
	default:
		return fmt.Sprintf("%d.%d", v.Major, v.Minor)
	}
}

// Compare compares two versions component-wise.
// Returns -1 if v < other, 0 if v == other, 1 if v > other.
// An unset component (-1) compares lower than an explicit zero.
func (v *Version) Compare(other *Version) int {
	if c := cmpInt(v.Major, other.Major); c != 0 {
		return c
	}
	if c := cmpInt(v.Minor, other.Minor); c != 0 {
		return c
	}
	if c := cmpInt(v.Build, other.Build); c != 0 {
		return c
	}
	return cmpInt(v.Revision, other.Revision)
}

// Equals reports whether v and other have identical components.
func (v *Version) Equals(other *Version) bool {
	return v.Compare(other) == 0
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
