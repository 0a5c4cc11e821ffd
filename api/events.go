package api

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/agentflow/errors"
	"github.com/kbukum/agentflow/logger"
	"github.com/kbukum/agentflow/sse"
	"github.com/kbukum/agentflow/workflow"
)

// runTopicPrefix prefixes the topic of every run event: "run:<run id>".
const runTopicPrefix = "run:"

// RunEvents publishes workflow events to an event stream.
type RunEvents struct {
	pub sse.Publisher
}

var _ workflow.Observer = (*RunEvents)(nil)

// NewRunEvents creates an observer publishing to pub.
func NewRunEvents(pub sse.Publisher) *RunEvents {
	return &RunEvents{pub: pub}
}

// OnEvent implements workflow.Observer.
func (r *RunEvents) OnEvent(e workflow.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		logger.Warn("could not encode run event", logger.MergeWithError(logger.Fields("run_id", e.RunID), err))
		return
	}
	r.pub.Publish(runTopicPrefix+e.RunID, string(e.Type), data)
}

// streamEvents serves GET /v1/events. The run query parameter is a glob over
// run IDs and defaults to every run.
func (s *Server) streamEvents(c *gin.Context) {
	pattern := runTopicPrefix + c.DefaultQuery("run", "*")
	if !sse.ValidPattern(pattern) {
		respondError(c, errors.InvalidInput("run", "is not a valid pattern"))
		return
	}
	sse.ServeSSE(s.deps.Events, c.Writer, c.Request, uuid.NewString(), pattern)
}
