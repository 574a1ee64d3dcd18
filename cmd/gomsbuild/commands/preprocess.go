package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/willibrandon/gomsbuild/cmd/gomsbuild/output"
	"github.com/willibrandon/gomsbuild/evaluation"
)

// NewPreprocessCommand creates the "preprocess" command
func NewPreprocessCommand(console *output.Console) *cobra.Command {
	opts := &projectOptions{}

	cmd := &cobra.Command{
		Use:   "preprocess <project>",
		Short: "Print a single-file view of the project with imports inlined",
		Long: `Evaluate a project's import closure and print the root document
followed by every imported document, in evaluation order, separated by
banners naming the imported file and the import site.

Examples:
  gomsbuild preprocess app.proj
  gomsbuild preprocess app.proj -p Configuration=Release`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreprocess(console, args[0], opts)
		},
	}

	addProjectFlags(cmd, opts)

	return cmd
}

func runPreprocess(console *output.Console, path string, opts *projectOptions) error {
	project, err := loadProject(path, opts)
	if err != nil {
		return err
	}

	var sb strings.Builder
	if err := project.Xml().Write(&sb); err != nil {
		return err
	}

	for _, entry := range project.Imports() {
		if entry.ImportingElement == nil || entry.ImportedRoot == nil || entry.Duplicate {
			continue
		}
		sb.WriteString(preprocessBanner(entry))
		if err := entry.ImportedRoot.Write(&sb); err != nil {
			return err
		}
	}

	console.Print(sb.String())
	return nil
}

func preprocessBanner(entry *evaluation.ImportEntry) string {
	loc := entry.ImportingElement.Location()
	rule := strings.Repeat("=", 75)
	return fmt.Sprintf("<!--\n%s\n  %s\n  imported at %s(%d,%d)\n%s\n-->\n",
		rule, entry.ResolvedPath, loc.File, loc.Line, loc.Column, rule)
}
