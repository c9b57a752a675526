package executor

import (
	"time"

	"github.com/avi3tal/stepflow/pkg/agent"
)

// Result aggregates one workflow run. When a step fails terminally,
// FailedStep names it, Err carries the underlying error, ErrorMessage is the
// rendered failure line, and ErrorDetails holds the first stack frames of the
// failing attempt. Steps downstream of a failure never execute and have no
// entry in StepResults.
type Result struct {
	Success      bool
	StepResults  map[string]agent.Result
	FailedStep   string
	Err          error
	ErrorMessage string
	ErrorDetails string
	Duration     time.Duration

	// RunDir is the run directory this execution persisted to; empty when no
	// run store was attached.
	RunDir string
}
