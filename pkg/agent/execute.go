package agent

import (
	"context"
	"fmt"
	"reflect"
	"time"
)

// Result is the outcome of one successful agent execution.
type Result struct {
	Output    any
	AgentType string
	Duration  time.Duration
}

// Execute runs a single agent invocation under its declared contract: the
// input must be an instance of the input schema and the produced value an
// instance of the output schema. The inner Call is timed monotonically.
// Execute never retries and never swallows errors; retry policy belongs to
// the workflow executor.
func Execute(ctx context.Context, a Agent, input any) (Result, error) {
	spec := a.Spec()
	name := fmt.Sprintf("%T", a)

	if spec.Input == nil {
		return Result{}, &InvalidInputError{AgentType: name}
	}
	if spec.Output == nil {
		return Result{}, &InvalidOutputError{AgentType: name}
	}
	if got := reflect.TypeOf(input); got != spec.Input {
		return Result{}, &InvalidInputError{AgentType: name, Expected: spec.Input, Got: got}
	}

	start := time.Now()
	output, err := a.Call(ctx, input)
	elapsed := time.Since(start)
	if err != nil {
		return Result{}, err
	}

	if got := reflect.TypeOf(output); got != spec.Output {
		return Result{}, &InvalidOutputError{AgentType: name, Expected: spec.Output, Got: got}
	}

	return Result{Output: output, AgentType: name, Duration: elapsed}, nil
}
