package workflow

import (
	"fmt"
	"strings"
	"unicode"
)

// UpstreamFailure is the text a dependent receives in place of a failed
// predecessor's output when the failure policy is degrade.
func UpstreamFailure(id string, err error) string {
	return fmt.Sprintf("[upstream failure: %s: %v]", id, err)
}

// BuildInput assembles the effective input of node.
//
// A root node gets its own task override, or task. A node with one
// prerequisite gets that predecessor's output verbatim. A node with several
// gets the task followed by one labelled block per prerequisite, in
// prerequisite order.
func BuildInput(node Node, prereqs []string, results map[string]NodeResult, task string) string {
	if node.Task != "" {
		task = node.Task
	}
	switch len(prereqs) {
	case 0:
		return task
	case 1:
		return results[prereqs[0]].effectiveOutput()
	}

	var b strings.Builder
	b.WriteString(task)
	b.WriteString("\n\n")
	for _, id := range prereqs {
		fmt.Fprintf(&b, "[Output from %s]\n%s\n\n", id, results[id].effectiveOutput())
	}
	return strings.TrimRightFunc(b.String(), unicode.IsSpace)
}
