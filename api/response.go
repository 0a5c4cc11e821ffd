package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/agentflow/errors"
	"github.com/kbukum/agentflow/workflow"
)

// DataResponse is the standard success envelope.
type DataResponse struct {
	Data any `json:"data"`
}

// RunResponse carries a run result. Error is set when the run stopped
// early; Data then holds the partial result.
type RunResponse struct {
	Data  *RunView          `json:"data"`
	Error *errors.ErrorBody `json:"error,omitempty"`
}

// RunView is the JSON form of a workflow.Result.
type RunView struct {
	RunID      string              `json:"run_id"`
	Pattern    workflow.Pattern    `json:"pattern"`
	Status     string              `json:"status"`
	Output     string              `json:"output"`
	Outputs    []OutputView        `json:"outputs"`
	Nodes      map[string]NodeView `json:"nodes"`
	Layers     [][]string          `json:"layers"`
	Failed     []string            `json:"failed,omitempty"`
	Skipped    []string            `json:"skipped,omitempty"`
	Stages     []StageView         `json:"stages,omitempty"`
	DurationMS int64               `json:"duration_ms"`
	Metadata   map[string]any      `json:"metadata,omitempty"`
}

// OutputView is one terminal output.
type OutputView struct {
	Node   string `json:"node"`
	Output string `json:"output"`
}

// NodeView is the JSON form of a workflow.NodeResult.
type NodeView struct {
	Status     workflow.Status `json:"status"`
	Output     string          `json:"output,omitempty"`
	Error      string          `json:"error,omitempty"`
	Layer      int             `json:"layer"`
	StartedAt  time.Time       `json:"started_at"`
	DurationMS int64           `json:"duration_ms"`
}

// StageView summarizes one hybrid stage.
type StageView struct {
	Name    string           `json:"name"`
	Pattern workflow.Pattern `json:"pattern"`
	Task    string           `json:"task"`
	Output  string           `json:"output"`
}

func newRunView(r *workflow.Result) *RunView {
	v := &RunView{
		RunID:      r.RunID,
		Pattern:    r.Pattern,
		Status:     runStatus(r),
		Output:     r.Output(),
		Outputs:    make([]OutputView, len(r.Outputs)),
		Nodes:      make(map[string]NodeView, len(r.Nodes)),
		Layers:     r.Layers,
		Failed:     r.Failed,
		Skipped:    r.Skipped,
		DurationMS: r.Duration.Milliseconds(),
		Metadata:   r.Metadata,
	}
	for i, o := range r.Outputs {
		v.Outputs[i] = OutputView{Node: o.Node, Output: o.Output}
	}
	for id, nr := range r.Nodes {
		nv := NodeView{
			Status:     nr.Status,
			Output:     nr.Output,
			Layer:      nr.Layer,
			StartedAt:  nr.StartedAt,
			DurationMS: nr.Duration.Milliseconds(),
		}
		if nr.Err != nil {
			nv.Error = nr.Cause().Error()
		}
		v.Nodes[id] = nv
	}
	for _, st := range r.Stages {
		sv := StageView{Name: st.Name, Pattern: st.Pattern, Task: st.Task}
		if st.Result != nil {
			sv.Output = st.Result.Output()
		}
		v.Stages = append(v.Stages, sv)
	}
	return v
}

func runStatus(r *workflow.Result) string {
	switch {
	case r.Succeeded():
		return "completed"
	case r.Err == nil:
		return "degraded"
	default:
		return "failed"
	}
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, DataResponse{Data: data})
}

// respondError renders err through the AppError model.
func respondError(c *gin.Context, err error) {
	appErr := errors.Wrap(err)
	c.JSON(appErr.HTTPStatus, appErr.ToResponse())
}

// respondRun renders a run outcome. A run error with a partial result keeps
// the partial result in the body.
func respondRun(c *gin.Context, result *workflow.Result, err error) {
	if result == nil {
		respondError(c, err)
		return
	}
	resp := RunResponse{Data: newRunView(result)}
	if err == nil {
		c.JSON(http.StatusOK, resp)
		return
	}
	appErr := errors.Wrap(err)
	body := appErr.ToResponse().Error
	resp.Error = &body
	c.JSON(appErr.HTTPStatus, resp)
}
