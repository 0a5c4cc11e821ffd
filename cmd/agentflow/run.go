package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/agentflow/bootstrap"
	"github.com/kbukum/agentflow/workflow"
)

type runFlags struct {
	file           string
	task           string
	image          string
	policy         string
	maxConcurrency int
	timeout        time.Duration
	output         string
}

func (c *cli) newRunCmd() *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run [workflow]",
		Short: "Run a workflow definition once and print its output",
		Example: `  agentflow run -f workflows/report.yaml -t "Assess the solar market"
  agentflow run report -t "Assess the solar market" --policy degrade -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.file == "" && len(args) == 0 {
				return fmt.Errorf("a workflow name or --file is required")
			}
			if f.output != "text" && f.output != "json" {
				return fmt.Errorf("--output must be text or json (got: %s)", f.output)
			}
			switch workflow.FailurePolicy(f.policy) {
			case "", workflow.FailAbort, workflow.FailDegrade:
			default:
				return fmt.Errorf("--policy must be abort or degrade (got: %s)", f.policy)
			}
			name := ""
			if len(args) == 1 {
				name = args[0]
			}

			app, err := c.newApp()
			if err != nil {
				return err
			}
			return app.RunTask(cmd.Context(), func(ctx context.Context) error {
				return c.runWorkflow(ctx, app, name, f)
			})
		},
	}

	cmd.Flags().StringVarP(&f.file, "file", "f", "", "workflow definition file")
	cmd.Flags().StringVarP(&f.task, "task", "t", "", "task handed to the root nodes")
	cmd.Flags().StringVar(&f.image, "image", "", "optional image locator for the root nodes")
	cmd.Flags().StringVar(&f.policy, "policy", "", "failure policy: abort or degrade (default from config)")
	cmd.Flags().IntVar(&f.maxConcurrency, "max-concurrency", 0, "cap on concurrently executing nodes (default from config)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "run deadline, e.g. 2m (default from config)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "text", "output format: text or json")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}

func (c *cli) runWorkflow(ctx context.Context, app *bootstrap.App[*AppConfig], name string, f *runFlags) error {
	eng, err := newEngine(app)
	if err != nil {
		return err
	}
	def, err := eng.loadDefinition(f.file, name)
	if err != nil {
		return err
	}

	var opts []workflow.RunOption
	if f.policy != "" {
		opts = append(opts, workflow.WithFailurePolicy(workflow.FailurePolicy(f.policy)))
	}
	if f.maxConcurrency > 0 {
		opts = append(opts, workflow.WithMaxConcurrency(f.maxConcurrency))
	}
	if f.timeout > 0 {
		opts = append(opts, workflow.WithTimeout(f.timeout))
	}

	result, runErr := eng.orchestrator.RunDefinition(ctx, def, eng.registry, f.task, f.image, opts...)
	if result != nil {
		if err := printResult(c.out, result, f.output); err != nil {
			return err
		}
	}
	return runErr
}

// runSummary is the JSON form of a run printed by `run -o json`.
type runSummary struct {
	RunID      string            `json:"run_id"`
	Pattern    workflow.Pattern  `json:"pattern"`
	Output     string            `json:"output"`
	Outputs    map[string]string `json:"outputs"`
	Layers     [][]string        `json:"layers"`
	Failed     []string          `json:"failed,omitempty"`
	Skipped    []string          `json:"skipped,omitempty"`
	DurationMS int64             `json:"duration_ms"`
	Error      string            `json:"error,omitempty"`
}

func printResult(w io.Writer, r *workflow.Result, format string) error {
	if format == "json" {
		s := runSummary{
			RunID:      r.RunID,
			Pattern:    r.Pattern,
			Output:     r.Output(),
			Outputs:    make(map[string]string, len(r.Outputs)),
			Layers:     r.Layers,
			Failed:     r.Failed,
			Skipped:    r.Skipped,
			DurationMS: r.Duration.Milliseconds(),
		}
		for _, o := range r.Outputs {
			s.Outputs[o.Node] = o.Output
		}
		if r.Err != nil {
			s.Error = r.Err.Error()
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	if out := r.Output(); out != "" {
		fmt.Fprintln(w, out)
	}
	if len(r.Failed) > 0 {
		fmt.Fprintf(w, "\nfailed: %s\n", strings.Join(r.Failed, ", "))
	}
	if len(r.Skipped) > 0 {
		fmt.Fprintf(w, "skipped: %s\n", strings.Join(r.Skipped, ", "))
	}
	return nil
}
