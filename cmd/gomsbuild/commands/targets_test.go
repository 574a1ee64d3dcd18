package commands

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/willibrandon/gomsbuild/cmd/gomsbuild/output"
)

const targetsMarkup = `<Project DefaultTargets="Build" InitialTargets="Validate">
  <Target Name="Validate" />
  <Target Name="Build" DependsOnTargets="Compile" Condition="'$(Skip)'!='true'" />
  <Target Name="Compile" />
  <Target Name="Pack" AfterTargets="Build" />
</Project>`

func TestTargetsCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeTestProject(t, dir, "app.proj", targetsMarkup)

	var out bytes.Buffer
	console := output.NewConsole(&out, &out, output.VerbosityNormal)

	cmd := NewTargetsCommand(console)
	cmd.SetArgs([]string{path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	result := out.String()
	if !strings.Contains(result, "InitialTargets: Validate") {
		t.Errorf("output missing initial targets, got: %s", result)
	}
	if !strings.Contains(result, "DefaultTargets: Build") {
		t.Errorf("output missing default targets, got: %s", result)
	}
	if !strings.Contains(result, "DependsOnTargets: Compile") {
		t.Errorf("output missing dependency edge, got: %s", result)
	}
	if !strings.Contains(result, "AfterTargets: Build") {
		t.Errorf("output missing after edge, got: %s", result)
	}
}

func TestTargetsCommand_Plan(t *testing.T) {
	dir := t.TempDir()
	path := writeTestProject(t, dir, "app.proj", targetsMarkup)

	var out bytes.Buffer
	console := output.NewConsole(&out, &out, output.VerbosityNormal)

	cmd := NewTargetsCommand(console)
	cmd.SetArgs([]string{path, "--plan"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if !strings.Contains(out.String(), "Plan: Validate -> Compile -> Build -> Pack") {
		t.Errorf("output missing schedule, got: %s", out.String())
	}
}

func TestTargetsCommand_PlanEntry(t *testing.T) {
	dir := t.TempDir()
	path := writeTestProject(t, dir, "app.proj", targetsMarkup)

	var out bytes.Buffer
	console := output.NewConsole(&out, &out, output.VerbosityNormal)

	cmd := NewTargetsCommand(console)
	cmd.SetArgs([]string{path, "--plan", "--entry", "Compile"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if !strings.Contains(out.String(), "Plan: Validate -> Compile") {
		t.Errorf("output missing entry schedule, got: %s", out.String())
	}
}

func TestTargetsCommand_JSON(t *testing.T) {
	dir := t.TempDir()
	path := writeTestProject(t, dir, "app.proj", targetsMarkup)

	var out bytes.Buffer
	console := output.NewConsole(&out, &out, output.VerbosityNormal)

	cmd := NewTargetsCommand(console)
	cmd.SetArgs([]string{path, "--format", "json", "--plan"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var result output.TargetsOutput
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out.String())
	}
	if len(result.Targets) != 4 {
		t.Fatalf("len(Targets) = %d, want 4", len(result.Targets))
	}
	if result.Targets[1].Name != "Build" || result.Targets[1].Condition == "" {
		t.Errorf("Build target not serialized with condition: %+v", result.Targets[1])
	}
	want := []string{"Validate", "Compile", "Build", "Pack"}
	if len(result.Plan) != len(want) {
		t.Fatalf("Plan = %v, want %v", result.Plan, want)
	}
	for i, name := range want {
		if result.Plan[i] != name {
			t.Errorf("Plan[%d] = %q, want %q", i, result.Plan[i], name)
		}
	}
}

func TestTargetsCommand_UnknownEntry(t *testing.T) {
	dir := t.TempDir()
	path := writeTestProject(t, dir, "app.proj", targetsMarkup)

	var out bytes.Buffer
	console := output.NewConsole(&out, &out, output.VerbosityQuiet)

	cmd := NewTargetsCommand(console)
	cmd.SetArgs([]string{path, "--plan", "--entry", "Ghost"})
	if err := cmd.Execute(); err == nil {
		t.Error("Execute() should fail for an unknown entry target")
	}
}
