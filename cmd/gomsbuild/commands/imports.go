package commands

import (
	"path/filepath"
	"strings"

	gotree "github.com/disiqueira/gotree/v3"
	"github.com/spf13/cobra"

	"github.com/willibrandon/gomsbuild/cmd/gomsbuild/output"
)

// NewImportsCommand creates the "imports" command
func NewImportsCommand(console *output.Console) *cobra.Command {
	opts := &projectOptions{}

	cmd := &cobra.Command{
		Use:   "imports <project>",
		Short: "Render the import closure as a tree",
		Long: `Evaluate a project and render every import occurrence, in evaluation
order, as a tree rooted at the project file. Duplicate and missing imports
are marked.

Examples:
  gomsbuild imports app.proj
  gomsbuild imports app.proj --ignore-missing-imports`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImports(console, args[0], opts)
		},
	}

	addProjectFlags(cmd, opts)

	return cmd
}

func runImports(console *output.Console, path string, opts *projectOptions) error {
	project, err := loadProject(path, opts)
	if err != nil {
		return err
	}

	root := gotree.New(project.FullPath())
	nodes := map[string]gotree.Tree{
		fileKey(project.FullPath()): root,
	}

	for _, entry := range project.Imports() {
		if entry.ImportingElement == nil {
			// The root document's own entry.
			continue
		}
		label := entry.ResolvedPath
		switch {
		case entry.Duplicate:
			label += " (duplicate)"
		case entry.Missing:
			label += " (missing)"
		}

		parent := root
		if p, ok := nodes[fileKey(entry.ImportingElement.Location().File)]; ok {
			parent = p
		}
		child := parent.Add(label)

		// Only the first loaded occurrence processes nested imports, so
		// only it can become a parent.
		if !entry.Duplicate && !entry.Missing {
			nodes[fileKey(entry.ResolvedPath)] = child
		}
	}

	console.Print(root.Print())
	return nil
}

func fileKey(path string) string {
	return strings.ToLower(filepath.Clean(path))
}
