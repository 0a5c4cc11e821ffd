package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/agentflow/errors"
	"github.com/kbukum/agentflow/observability"
	"github.com/kbukum/agentflow/validation"
	"github.com/kbukum/agentflow/version"
	"github.com/kbukum/agentflow/workflow"
)

// RunRequest starts a run of a stored workflow.
type RunRequest struct {
	Task           string                 `json:"task" validate:"required"`
	Image          string                 `json:"image"`
	MaxConcurrency int                    `json:"max_concurrency" validate:"gte=0"`
	FailurePolicy  workflow.FailurePolicy `json:"failure_policy" validate:"omitempty,oneof=abort degrade"`
}

// InlineRunRequest starts a run of a definition carried in the request.
type InlineRunRequest struct {
	RunRequest
	Definition *workflow.Definition `json:"definition" validate:"required"`
}

// WorkflowView describes a stored workflow and its execution plan.
type WorkflowView struct {
	Definition *workflow.Definition `json:"definition"`
	Pattern    workflow.Pattern     `json:"pattern"`
	Layers     [][]string           `json:"layers"`
}

func (s *Server) health(c *gin.Context) {
	checkers := append([]observability.HealthChecker{s.deps.Registry}, s.deps.Checkers...)
	h := observability.CheckAll(c.Request.Context(), s.deps.Service, s.deps.Version, s.deps.Started, checkers...)
	status := http.StatusOK
	if h.Status == observability.HealthStatusDown {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, h)
}

// InfoView is the body of GET /info.
type InfoView struct {
	Service string       `json:"service"`
	Build   version.Info `json:"build"`
	Uptime  string       `json:"uptime"`
}

func (s *Server) info(c *gin.Context) {
	c.JSON(http.StatusOK, InfoView{
		Service: s.deps.Service,
		Build:   version.Get(),
		Uptime:  time.Since(s.deps.Started).Truncate(time.Second).String(),
	})
}

func (s *Server) listExecutors(c *gin.Context) {
	respondOK(c, s.deps.Registry.Describe())
}

func (s *Server) listWorkflows(c *gin.Context) {
	names, err := s.deps.Loader.List()
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, names)
}

func (s *Server) getWorkflow(c *gin.Context) {
	def, err := s.deps.Loader.Load(c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	layers, err := def.Layers()
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, WorkflowView{Definition: def, Pattern: def.EffectivePattern(), Layers: layers})
}

func (s *Server) runNamed(c *gin.Context) {
	var req RunRequest
	if !bindRequest(c, &req) {
		return
	}
	def, err := s.deps.Loader.Load(c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	result, err := s.run(c.Request.Context(), def, req)
	respondRun(c, result, err)
}

func (s *Server) runInline(c *gin.Context) {
	var req InlineRunRequest
	if !bindRequest(c, &req) {
		return
	}
	result, err := s.run(c.Request.Context(), req.Definition, req.RunRequest)
	respondRun(c, result, err)
}

func (s *Server) run(ctx context.Context, def *workflow.Definition, req RunRequest) (*workflow.Result, error) {
	var opts []workflow.RunOption
	if req.MaxConcurrency > 0 {
		opts = append(opts, workflow.WithMaxConcurrency(req.MaxConcurrency))
	}
	if req.FailurePolicy != "" {
		opts = append(opts, workflow.WithFailurePolicy(req.FailurePolicy))
	}
	if s.config.RunTimeout > 0 {
		opts = append(opts, workflow.WithTimeout(s.config.RunTimeout))
	}
	return s.deps.Orchestrator.RunDefinition(ctx, def, s.deps.Registry, req.Task, req.Image, opts...)
}

// bindRequest decodes and validates a JSON body, writing the error response
// on failure.
func bindRequest(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		respondError(c, errors.InvalidInput("body", err.Error()))
		return false
	}
	if err := validation.Validate(req); err != nil {
		respondError(c, err)
		return false
	}
	return true
}
