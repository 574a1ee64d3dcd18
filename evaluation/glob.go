package evaluation

import (
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DirEntry is the minimal directory listing record the evaluator needs.
type DirEntry struct {
	Name  string
	IsDir bool
}

// FileSystem is the read-only filesystem collaborator used to resolve
// import path expressions and item include/exclude globs. The evaluator
// never writes through it.
type FileSystem interface {
	// FileExists reports whether path exists and is a regular file.
	FileExists(path string) bool

	// DirExists reports whether path exists and is a directory.
	DirExists(path string) bool

	// ReadDir lists a directory in enumeration order.
	ReadDir(path string) ([]DirEntry, error)
}

// OSFileSystem implements FileSystem over the real filesystem.
type OSFileSystem struct{}

// FileExists implements FileSystem.FileExists.
func (OSFileSystem) FileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

// DirExists implements FileSystem.DirExists.
func (OSFileSystem) DirExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

// ReadDir implements FileSystem.ReadDir. Entries come back in the sorted
// order os.ReadDir defines, which fixes item enumeration order.
func (OSFileSystem) ReadDir(p string) ([]DirEntry, error) {
	entries, err := os.ReadDir(p)
	if err != nil {
		return nil, err
	}
	out := make([]DirEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, DirEntry{Name: e.Name(), IsDir: e.IsDir()})
	}
	return out, nil
}

// hasWildcards reports whether an unescaped value contains glob characters.
func hasWildcards(s string) bool {
	return strings.ContainsAny(s, "*?")
}

// globMatch is one file matched by a wildcard expansion.
type globMatch struct {
	// path is the match spelled the way the pattern was: the pattern's
	// fixed prefix plus the matched remainder, using forward slashes.
	path string

	// recursiveDir is the directory span matched by "**", with a trailing
	// slash, or "".
	recursiveDir string
}

// expandGlob resolves a wildcard pattern against baseDir. Relative patterns
// produce relative matches; absolute patterns produce absolute matches.
// A pattern whose fixed directory does not exist yields no matches - a
// wildcard that matches nothing is not an error.
func expandGlob(fsys FileSystem, baseDir, pattern string) []globMatch {
	normalized := strings.ReplaceAll(pattern, `\`, "/")
	segments := strings.Split(normalized, "/")

	// Peel off the fixed leading directories so the walk starts as deep as
	// possible.
	var fixed []string
	i := 0
	for ; i < len(segments)-1; i++ {
		if hasWildcards(segments[i]) || segments[i] == "**" {
			break
		}
		fixed = append(fixed, segments[i])
	}
	rest := segments[i:]

	prefix := strings.Join(fixed, "/")
	startDir := baseDir
	if prefix != "" {
		if path.IsAbs(normalized) || filepath.IsAbs(pattern) {
			startDir = prefix
		} else {
			startDir = filepath.Join(baseDir, filepath.FromSlash(prefix))
		}
	}
	if !fsys.DirExists(startDir) {
		return nil
	}

	var matches []globMatch
	globWalk(fsys, startDir, prefix, "", rest, &matches)
	return matches
}

// globWalk matches the remaining pattern segments against dir.
// prefix is the already-matched pattern spelling; recursive is the
// directory span consumed by "**" so far.
func globWalk(fsys FileSystem, dir, prefix, recursive string, rest []string, matches *[]globMatch) {
	if len(rest) == 0 {
		return
	}
	seg := rest[0]
	last := len(rest) == 1

	join := func(a, b string) string {
		if a == "" {
			return b
		}
		return a + "/" + b
	}

	if seg == "**" {
		if last {
			// "**" alone matches every file recursively.
			globWalk(fsys, dir, prefix, recursive, []string{"*"}, matches)
		} else {
			// Zero directories consumed.
			globWalk(fsys, dir, prefix, recursive, rest[1:], matches)
		}
		entries, err := fsys.ReadDir(dir)
		if err != nil {
			return
		}
		for _, e := range entries {
			if !e.IsDir {
				continue
			}
			globWalk(fsys,
				filepath.Join(dir, e.Name),
				join(prefix, e.Name),
				recursive+e.Name+"/",
				rest, matches)
		}
		return
	}

	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		ok, err := path.Match(seg, e.Name)
		if err != nil || !ok {
			continue
		}
		if last {
			if !e.IsDir {
				*matches = append(*matches, globMatch{
					path:         join(prefix, e.Name),
					recursiveDir: recursive,
				})
			}
		} else if e.IsDir {
			globWalk(fsys, filepath.Join(dir, e.Name), join(prefix, e.Name), recursive, rest[1:], matches)
		}
	}
}

// itemSpecMatcher decides whether an evaluated include value matches one of
// a set of evaluated spec fragments (an Exclude or Remove list). A value
// matches a fragment if the strings are literally equal, or failing that,
// if both normalize to the same path relative to the project directory.
// The literal comparison wins when the two notions disagree.
type itemSpecMatcher struct {
	literals   map[string]bool
	normalized map[string]bool
	projectDir string
}

func newItemSpecMatcher(projectDir string, fragments []string) *itemSpecMatcher {
	m := &itemSpecMatcher{
		literals:   make(map[string]bool, len(fragments)),
		normalized: make(map[string]bool, len(fragments)),
		projectDir: projectDir,
	}
	for _, f := range fragments {
		m.literals[f] = true
		m.normalized[m.normalize(f)] = true
	}
	return m
}

func (m *itemSpecMatcher) normalize(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	if !path.IsAbs(p) && !filepath.IsAbs(p) {
		p = path.Join(strings.ReplaceAll(m.projectDir, `\`, "/"), p)
	}
	return path.Clean(p)
}

func (m *itemSpecMatcher) matches(include string) bool {
	if m.literals[include] {
		return true
	}
	return m.normalized[m.normalize(include)]
}
