package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kbukum/agentflow/executor"
)

func (c *cli) newExecutorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "executors",
		Short: "List the configured executors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(c.configPath)
			if err != nil {
				return err
			}
			cfg.ApplyDefaults()
			if err := cfg.Validate(); err != nil {
				return err
			}
			if len(cfg.Executors) == 0 {
				fmt.Fprintln(c.out, "no executors configured")
				return nil
			}

			tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tTYPE\tTARGET")
			for _, e := range cfg.Executors {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Name, e.Type, executorTarget(e))
			}
			return tw.Flush()
		},
	}
}

// executorTarget is the command line, URL or a template marker.
func executorTarget(cfg executor.Config) string {
	switch {
	case cfg.Command != nil:
		return strings.TrimSpace(cfg.Command.Binary + " " + strings.Join(cfg.Command.Args, " "))
	case cfg.HTTP != nil:
		return cfg.HTTP.URL
	case cfg.Template != nil:
		return "(template)"
	}
	return "-"
}
