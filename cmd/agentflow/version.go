package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/agentflow/version"
)

func (c *cli) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(c.out, "agentflow "+version.Get().String())
		},
	}
}
