package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kbukum/agentflow/workflow"
)

func (c *cli) newValidateCmd() *cobra.Command {
	var (
		file string
		dsl  string
	)
	cmd := &cobra.Command{
		Use:   "validate [workflow]",
		Short: "Check a workflow or dependency expression and print its execution layers",
		Example: `  agentflow validate -f workflows/report.yaml
  agentflow validate --dsl "research->analyse, research->critique, analyse&critique->report"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dsl != "" {
				layers, err := dslLayers(dsl)
				if err != nil {
					return err
				}
				printLayers(c.out, layers)
				return nil
			}
			if file == "" && len(args) == 0 {
				return fmt.Errorf("a workflow name, --file or --dsl is required")
			}

			var def *workflow.Definition
			var err error
			if file != "" {
				def, err = workflow.LoadDefinition(file)
			} else {
				def, err = c.loadNamed(args[0])
			}
			if err != nil {
				return err
			}
			if err := def.Validate(); err != nil {
				return err
			}
			layers, err := def.Layers()
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "%s: valid %s workflow\n", def.Name, def.EffectivePattern())
			printLayers(c.out, layers)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "workflow definition file")
	cmd.Flags().StringVar(&dsl, "dsl", "", "dependency expression to check instead of a definition")
	cmd.MarkFlagsMutuallyExclusive("file", "dsl")
	return cmd
}

// dslLayers plans a bare dependency expression. Nodes are the identifiers
// in order of first appearance.
func dslLayers(dsl string) ([][]string, error) {
	edges, err := workflow.ParseEdges(dsl)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var ids []string
	for _, e := range edges {
		for _, id := range []string{e.From, e.To} {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	g, err := workflow.Build(ids, workflow.FromEdges(edges))
	if err != nil {
		return nil, err
	}
	return g.Layers(), nil
}

func printLayers(w io.Writer, layers [][]string) {
	for i, layer := range layers {
		fmt.Fprintf(w, "layer %d: %s\n", i, strings.Join(layer, ", "))
	}
}

// loadNamed looks name up in the configured workflow directories without
// starting the application.
func (c *cli) loadNamed(name string) (*workflow.Definition, error) {
	cfg, err := loadConfig(c.configPath)
	if err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return workflow.NewFileDefinitionLoader(cfg.Workflows.Dirs...).Load(name)
}
