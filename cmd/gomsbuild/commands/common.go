// Package commands implements the gomsbuild subcommands.
package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/willibrandon/gomsbuild/evaluation"
)

// projectOptions are the flags shared by every command that evaluates a
// project file.
type projectOptions struct {
	properties            []string // Name=Value global properties
	toolsVersion          string
	ignoreMissingImports  bool
	ignoreCircularImports bool
}

// addProjectFlags registers the shared evaluation flags on cmd.
func addProjectFlags(cmd *cobra.Command, opts *projectOptions) {
	cmd.Flags().StringArrayVarP(&opts.properties, "property", "p", nil, "Set a global property as Name=Value (repeatable)")
	cmd.Flags().StringVar(&opts.toolsVersion, "toolsversion", "", "Tools version to evaluate with (default: project attribute or collection default)")
	cmd.Flags().BoolVar(&opts.ignoreMissingImports, "ignore-missing-imports", false, "Record imports of nonexistent files instead of failing")
	cmd.Flags().BoolVar(&opts.ignoreCircularImports, "ignore-circular-imports", false, "Skip circular imports instead of failing")
}

func (o *projectOptions) globalProperties() (map[string]string, error) {
	globals := make(map[string]string, len(o.properties))
	for _, p := range o.properties {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid property %q: expected Name=Value", p)
		}
		globals[name] = value
	}
	return globals, nil
}

func (o *projectOptions) loadSettings() evaluation.LoadSettings {
	return evaluation.LoadSettings{
		IgnoreMissingImports:  o.ignoreMissingImports,
		IgnoreCircularImports: o.ignoreCircularImports,
	}
}

// environMap parses the process environment into a property map.
func environMap() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if name, value, ok := strings.Cut(kv, "="); ok && name != "" {
			env[name] = value
		}
	}
	return env
}

// loadProject evaluates the project at path with the shared flag set.
func loadProject(path string, opts *projectOptions) (*evaluation.Project, error) {
	globals, err := opts.globalProperties()
	if err != nil {
		return nil, err
	}
	collection := evaluation.NewProjectCollection(
		evaluation.WithEnvironment(environMap()),
	)
	return collection.LoadProjectWithSettings(path, globals, opts.toolsVersion, opts.loadSettings())
}
