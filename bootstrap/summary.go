package bootstrap

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/kbukum/agentflow/component"
	"github.com/kbukum/agentflow/observability"
)

// Summary tracks what the application started and prints it once ready.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
	executors       []string
	workflows       []string
}

// NewSummary creates a new startup summary tracker.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{serviceName: serviceName, version: version}
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// TrackExecutors records the registered executor names.
func (s *Summary) TrackExecutors(names ...string) {
	s.executors = append(s.executors, names...)
}

// TrackWorkflows records the workflow definitions available by name.
func (s *Summary) TrackWorkflows(names ...string) {
	s.workflows = append(s.workflows, names...)
}

// Display writes the summary with live health from the registry.
func (s *Summary) Display(w io.Writer, registry *component.Registry) {
	fmt.Fprintf(w, "\n%s %s started in %.2fs\n\n", s.serviceName, s.version, s.startupDuration.Seconds())

	components := registry.All()
	fmt.Fprintf(w, "Components\n")
	if len(components) == 0 {
		fmt.Fprintf(w, "   └── none\n")
	}
	healthy := 0
	for i, c := range components {
		h := c.Health(context.Background())
		if h.Status == observability.HealthStatusUp {
			healthy++
		}
		name, details := c.Name(), ""
		if d, ok := c.(component.Describable); ok {
			desc := d.Describe()
			if desc.Name != "" {
				name = desc.Name
			}
			details = desc.Details
		}
		line := fmt.Sprintf("%s %s (%s)", statusIcon(h.Status), name, h.Status)
		if details != "" {
			line += ": " + details
		}
		fmt.Fprintf(w, "   %s %s\n", treePrefix(i, len(components)), line)
	}

	s.list(w, "Executors", s.executors)
	s.list(w, "Workflows", s.workflows)

	fmt.Fprintln(w)
	if healthy == len(components) {
		fmt.Fprintf(w, "All components healthy (%d/%d)\n", healthy, len(components))
	} else {
		fmt.Fprintf(w, "Some components have issues (%d/%d healthy)\n", healthy, len(components))
	}
}

func (s *Summary) list(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", title)
	for i, item := range items {
		fmt.Fprintf(w, "   %s %s\n", treePrefix(i, len(items)), item)
	}
}

func treePrefix(i, n int) string {
	if i == n-1 {
		return "└──"
	}
	return "├──"
}

func statusIcon(status observability.HealthStatus) string {
	switch status {
	case observability.HealthStatusUp:
		return "✓"
	case observability.HealthStatusDegraded:
		return "!"
	default:
		return "✗"
	}
}
