package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/willibrandon/gomsbuild/cmd/gomsbuild/output"
)

func TestImportsCommand(t *testing.T) {
	dir := t.TempDir()
	writeTestProject(t, dir, "common.props", `<Project>
  <Import Project="inner.props" />
</Project>`)
	writeTestProject(t, dir, "inner.props", `<Project></Project>`)
	path := writeTestProject(t, dir, "app.proj", `<Project>
  <Import Project="common.props" />
</Project>`)

	var out bytes.Buffer
	console := output.NewConsole(&out, &out, output.VerbosityNormal)

	cmd := NewImportsCommand(console)
	cmd.SetArgs([]string{path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	result := out.String()
	if !strings.Contains(result, "app.proj") {
		t.Errorf("tree missing root project, got: %s", result)
	}
	if !strings.Contains(result, "common.props") {
		t.Errorf("tree missing first-level import, got: %s", result)
	}
	if !strings.Contains(result, "inner.props") {
		t.Errorf("tree missing nested import, got: %s", result)
	}

	// The nested import is indented deeper than its parent.
	lines := strings.Split(result, "\n")
	var commonIndent, innerIndent int
	for _, line := range lines {
		if strings.Contains(line, "common.props") {
			commonIndent = strings.Index(line, dir)
		}
		if strings.Contains(line, "inner.props") {
			innerIndent = strings.Index(line, dir)
		}
	}
	if innerIndent <= commonIndent {
		t.Errorf("nested import not indented under its parent:\n%s", result)
	}
}

func TestImportsCommand_DuplicateMarked(t *testing.T) {
	dir := t.TempDir()
	writeTestProject(t, dir, "shared.props", `<Project></Project>`)
	path := writeTestProject(t, dir, "app.proj", `<Project>
  <Import Project="shared.props" />
  <Import Project="shared.props" />
</Project>`)

	var out bytes.Buffer
	console := output.NewConsole(&out, &out, output.VerbosityNormal)

	cmd := NewImportsCommand(console)
	cmd.SetArgs([]string{path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if !strings.Contains(out.String(), "(duplicate)") {
		t.Errorf("duplicate import not marked, got: %s", out.String())
	}
}

func TestImportsCommand_MissingMarked(t *testing.T) {
	dir := t.TempDir()
	path := writeTestProject(t, dir, "app.proj", `<Project>
  <Import Project="nope.props" />
</Project>`)

	var out bytes.Buffer
	console := output.NewConsole(&out, &out, output.VerbosityNormal)

	cmd := NewImportsCommand(console)
	cmd.SetArgs([]string{path, "--ignore-missing-imports"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if !strings.Contains(out.String(), "(missing)") {
		t.Errorf("missing import not marked, got: %s", out.String())
	}
}
