// cmd/gomsbuild/cli/app.go
package cli

import (
	"github.com/spf13/cobra"
	"github.com/willibrandon/gomsbuild/cmd/gomsbuild/output"
)

var rootCmd = &cobra.Command{
	Use:   "gomsbuild",
	Short: "MSBuild project evaluator",
	Long: `gomsbuild evaluates MSBuild-style project files: properties, items,
item definitions, targets, and the import closure.

Complete documentation is available at https://github.com/willibrandon/gomsbuild`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if v, err := cmd.Flags().GetString("verbosity"); err == nil {
			Console.SetVerbosity(output.ParseVerbosity(v))
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		// Show help when no command is provided
		_ = cmd.Help()
	},
}

// Console is the global console for CLI commands
var Console *output.Console

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Initialize console
	Console = output.DefaultConsole()

	rootCmd.PersistentFlags().StringP("verbosity", "", "normal", "Display verbosity (quiet, normal, detailed, diagnostic)")
}

// SetupVersion configures version information after variables are set
func SetupVersion() {
	rootCmd.SetVersionTemplate(GetFullVersion() + "\n")
	rootCmd.Version = GetVersion()
}

// AddCommand adds a command to the root command
func AddCommand(cmd *cobra.Command) {
	rootCmd.AddCommand(cmd)
}
