// cmd/gomsbuild/commands/version_test.go
package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/willibrandon/gomsbuild/cmd/gomsbuild/output"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	console := output.NewConsole(&out, &out, output.VerbosityNormal)

	cmd := NewVersionCommand(console)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	result := out.String()
	if result == "" {
		t.Error("version command produced no output")
	}
	if !strings.Contains(result, "gomsbuild version") {
		t.Errorf("output doesn't contain 'gomsbuild version', got: %s", result)
	}
}

func TestVersionCommand_NoArgs(t *testing.T) {
	var out bytes.Buffer
	console := output.NewConsole(&out, &out, output.VerbosityNormal)

	cmd := NewVersionCommand(console)
	cmd.SetArgs([]string{"extraarg"})

	if err := cmd.Execute(); err == nil {
		t.Error("Execute() should return error for extra arguments")
	}
}
