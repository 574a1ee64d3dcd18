package commands

import (
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/willibrandon/gomsbuild/cmd/gomsbuild/output"
	"github.com/willibrandon/gomsbuild/evaluation"
)

type evaluateOptions struct {
	projectOptions
	format   string
	itemType string
}

// NewEvaluateCommand creates the "evaluate" command
func NewEvaluateCommand(console *output.Console) *cobra.Command {
	opts := &evaluateOptions{format: "console"}

	cmd := &cobra.Command{
		Use:   "evaluate <project>",
		Short: "Evaluate a project and print its properties and items",
		Long: `Evaluate a project file through every evaluation pass and print the
resulting properties and items.

Examples:
  gomsbuild evaluate app.proj
  gomsbuild evaluate app.proj -p Configuration=Release
  gomsbuild evaluate app.proj --items Compile
  gomsbuild evaluate app.proj --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluate(console, args[0], opts)
		},
	}

	addProjectFlags(cmd, &opts.projectOptions)
	cmd.Flags().StringVar(&opts.format, "format", "console", "Output format: console or json")
	cmd.Flags().StringVar(&opts.itemType, "items", "", "Restrict item output to one item type")

	return cmd
}

func runEvaluate(console *output.Console, path string, opts *evaluateOptions) error {
	start := time.Now()
	project, err := loadProject(path, &opts.projectOptions)
	if err != nil {
		return err
	}
	view := project.View()

	if opts.format == "json" {
		return output.WriteJSON(console.Out(), evaluateJSON(project, view, opts, start))
	}

	console.Info("Project %s (ToolsVersion %s)", project.FullPath(), view.ToolsVersion())
	console.Println()
	console.Info("Properties:")
	for _, p := range view.Properties() {
		marker := ""
		if p.IsGlobal() {
			marker = " (global)"
		}
		console.Printf("  %s = %s%s\n", p.Name(), p.EvaluatedValue(), marker)
	}

	console.Println()
	console.Info("Items:")
	for _, it := range evaluateItems(view, opts.itemType) {
		console.Printf("  %s: %s\n", it.ItemType(), it.EvaluatedInclude())
		for _, name := range it.MetadataNames() {
			console.Detail("    %s = %s", name, it.MetadataValue(name))
		}
	}

	console.Debug("evaluated in %dms", output.MeasureElapsed(start))
	return nil
}

func evaluateItems(view *evaluation.DataView, itemType string) []*evaluation.Item {
	if itemType != "" {
		return view.ItemsOf(itemType)
	}
	return view.Items()
}

func evaluateJSON(project *evaluation.Project, view *evaluation.DataView, opts *evaluateOptions, start time.Time) *output.EvaluateOutput {
	out := &output.EvaluateOutput{
		SchemaVersion: output.CurrentSchemaVersion,
		Project:       project.FullPath(),
		ToolsVersion:  view.ToolsVersion(),
		Properties:    []output.EvaluatedProp{},
		Items:         []output.EvaluatedItem{},
	}
	for _, p := range view.Properties() {
		out.Properties = append(out.Properties, output.EvaluatedProp{
			Name:   p.Name(),
			Value:  p.EvaluatedValue(),
			Global: p.IsGlobal(),
		})
	}
	for _, it := range evaluateItems(view, opts.itemType) {
		item := output.EvaluatedItem{
			ItemType: it.ItemType(),
			Include:  it.EvaluatedInclude(),
		}
		names := it.MetadataNames()
		if len(names) > 0 {
			item.Metadata = make(map[string]string, len(names))
			sort.Strings(names)
			for _, name := range names {
				item.Metadata[name] = it.MetadataValue(name)
			}
		}
		out.Items = append(out.Items, item)
	}
	out.ElapsedMs = output.MeasureElapsed(start)
	return out
}
