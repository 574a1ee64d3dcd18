package commands

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/willibrandon/gomsbuild/cmd/gomsbuild/output"
	"github.com/willibrandon/gomsbuild/execution"
	"github.com/willibrandon/gomsbuild/observability"
)

type targetsOptions struct {
	projectOptions
	format string
	plan   []string
	doPlan bool
}

// NewTargetsCommand creates the "targets" command
func NewTargetsCommand(console *output.Console) *cobra.Command {
	opts := &targetsOptions{format: "console"}

	cmd := &cobra.Command{
		Use:   "targets <project>",
		Short: "List registered targets and their dependency edges",
		Long: `Evaluate a project and list its surviving targets in registration
order, with DependsOnTargets, BeforeTargets and AfterTargets edges. With
--plan, additionally compute the deterministic run order for the given
entry targets (or the project defaults).

Examples:
  gomsbuild targets app.proj
  gomsbuild targets app.proj --plan
  gomsbuild targets app.proj --plan --entry Build --entry Pack
  gomsbuild targets app.proj --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTargets(console, args[0], opts)
		},
	}

	addProjectFlags(cmd, &opts.projectOptions)
	cmd.Flags().StringVar(&opts.format, "format", "console", "Output format: console or json")
	cmd.Flags().BoolVar(&opts.doPlan, "plan", false, "Compute the scheduled run order")
	cmd.Flags().StringArrayVar(&opts.plan, "entry", nil, "Entry target for --plan (repeatable; default: project defaults)")

	return cmd
}

func runTargets(console *output.Console, path string, opts *targetsOptions) error {
	start := time.Now()
	project, err := loadProject(path, &opts.projectOptions)
	if err != nil {
		return err
	}
	view := project.View()

	var planNames []string
	if opts.doPlan {
		_, span := observability.StartPlanSpan(context.Background(), project.FullPath(), opts.plan)
		plan, err := execution.BuildPlan(view, opts.plan)
		observability.EndSpanWithError(span, err)
		if err != nil {
			return err
		}
		planNames = plan.TargetNames()
	}

	if opts.format == "json" {
		out := &output.TargetsOutput{
			SchemaVersion:  output.CurrentSchemaVersion,
			Project:        project.FullPath(),
			DefaultTargets: view.DefaultTargets(),
			InitialTargets: view.InitialTargets(),
			Targets:        []output.TargetInfo{},
			Plan:           planNames,
		}
		for _, t := range view.Targets() {
			out.Targets = append(out.Targets, output.TargetInfo{
				Name:      t.Name(),
				DependsOn: t.DependsOn,
				Before:    t.Before,
				After:     t.After,
				Condition: t.Condition(),
			})
		}
		out.ElapsedMs = output.MeasureElapsed(start)
		return output.WriteJSON(console.Out(), out)
	}

	console.Info("Project %s", project.FullPath())
	if len(view.InitialTargets()) > 0 {
		console.Info("InitialTargets: %s", strings.Join(view.InitialTargets(), ";"))
	}
	if len(view.DefaultTargets()) > 0 {
		console.Info("DefaultTargets: %s", strings.Join(view.DefaultTargets(), ";"))
	}
	console.Println()

	for _, t := range view.Targets() {
		console.Printf("%s\n", t.Name())
		if len(t.DependsOn) > 0 {
			console.Printf("  DependsOnTargets: %s\n", strings.Join(t.DependsOn, ";"))
		}
		if len(t.Before) > 0 {
			console.Printf("  BeforeTargets: %s\n", strings.Join(t.Before, ";"))
		}
		if len(t.After) > 0 {
			console.Printf("  AfterTargets: %s\n", strings.Join(t.After, ";"))
		}
		if t.Condition() != "" {
			console.Detail("  Condition: %s", t.Condition())
		}
	}

	if opts.doPlan {
		console.Println()
		console.Info("Plan: %s", strings.Join(planNames, " -> "))
	}
	return nil
}
