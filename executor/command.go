package executor

import (
	"context"
	"slices"
	"strings"

	"github.com/kbukum/agentflow/process"
	"github.com/kbukum/agentflow/workflow"
)

// Environment variables set for command executors.
const (
	EnvNode  = "AGENTFLOW_NODE"
	EnvImage = "AGENTFLOW_IMAGE"
)

// Command runs a subprocess per node. The input is written to stdin and the
// trimmed stdout is the output.
type Command struct {
	cfg CommandConfig
}

// NewCommand creates a subprocess executor.
func NewCommand(cfg CommandConfig) *Command {
	return &Command{cfg: cfg}
}

// Kind implements workflow.Kinded.
func (c *Command) Kind() string { return string(TypeCommand) }

// Execute implements workflow.Executor. A non-zero exit fails with a
// *process.ExitError carrying stderr.
func (c *Command) Execute(ctx context.Context, req workflow.Request) (string, error) {
	env := append(slices.Clone(c.cfg.Env), EnvNode+"="+req.Node, EnvImage+"="+req.Image)

	result, err := process.Run(ctx, process.Command{
		Binary:  c.cfg.Binary,
		Args:    c.cfg.Args,
		Dir:     c.cfg.Dir,
		Env:     env,
		Stdin:   strings.NewReader(req.Input),
		Timeout: c.cfg.Timeout,
	})
	if err != nil {
		return "", err
	}
	return result.Output(), nil
}
