package agent

import (
	"fmt"
	"reflect"
)

// InvalidInputError is returned by Execute when the input does not satisfy the
// agent's declared input schema, or when no input schema is declared at all.
type InvalidInputError struct {
	AgentType string
	Expected  reflect.Type
	Got       reflect.Type
}

func (e *InvalidInputError) Error() string {
	if e.Expected == nil {
		return fmt.Sprintf("no input schema declared on %s", e.AgentType)
	}
	return fmt.Sprintf("%s: expected input %s, got %s", e.AgentType, e.Expected, typeName(e.Got))
}

// InvalidOutputError is returned by Execute when the value Call produced does
// not satisfy the agent's declared output schema, or when no output schema is
// declared.
type InvalidOutputError struct {
	AgentType string
	Expected  reflect.Type
	Got       reflect.Type
}

func (e *InvalidOutputError) Error() string {
	if e.Expected == nil {
		return fmt.Sprintf("no output schema declared on %s", e.AgentType)
	}
	return fmt.Sprintf("%s: expected output %s, got %s", e.AgentType, e.Expected, typeName(e.Got))
}

// NotImplementedError is returned by agents that declare schemas but do not
// provide a Call implementation.
type NotImplementedError struct {
	AgentType string
}

func (e *NotImplementedError) Error() string {
	if e.AgentType == "" {
		return "agent does not implement Call"
	}
	return fmt.Sprintf("%s does not implement Call", e.AgentType)
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	return t.String()
}
