package executor

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

const maxDetailFrames = 5

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// stackDetails renders the first frames of the failing attempt's stack, one
// frame per line. Errors produced with pkg/errors carry their own trace;
// anything else gets one captured here, where the scheduler records the
// failure, so its frames show the scheduler rather than the failing call.
func stackDetails(err error) string {
	var trace errors.StackTrace
	for e := err; e != nil; e = stderrors.Unwrap(e) {
		if t, ok := e.(stackTracer); ok {
			trace = t.StackTrace()
			break
		}
	}
	if trace == nil {
		if t, ok := errors.WithStack(err).(stackTracer); ok {
			trace = t.StackTrace()
		}
	}
	if len(trace) > maxDetailFrames {
		trace = trace[:maxDetailFrames]
	}

	frames := make([]string, 0, len(trace))
	for _, f := range trace {
		frames = append(frames, strings.TrimSpace(fmt.Sprintf("%+v", f)))
	}
	return strings.Join(frames, "\n")
}
