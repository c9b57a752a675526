// Package agent defines the typed unit of computation a workflow step runs: a
// declared input schema, a declared output schema, and a Call that maps one to
// the other.
package agent

import (
	"context"
	"reflect"

	"github.com/avi3tal/stepflow/pkg/schema"
)

// Tool is an opaque capability handle. The core passes tools through to the
// agent untouched; only the agent interprets them.
type Tool interface {
	Name() string
	Call(ctx context.Context, input string) (string, error)
}

// Spec is the declarative surface of an agent: its input and output record
// types plus informational metadata.
type Spec struct {
	Input    reflect.Type
	Output   reflect.Type
	Tools    map[string]Tool
	Model    string
	Provider string
}

// Agent is a self-contained computation with a declared contract. Execute
// enforces the contract; Call performs the work.
type Agent interface {
	Spec() Spec
	Call(ctx context.Context, input any) (any, error)
}

// Factory produces a fresh agent instance. The executor invokes it once per
// run for every step without an instance override.
type Factory func() Agent

// SpecOption configures a Spec during Base construction.
type SpecOption func(*Spec)

// Input declares the agent's input record type.
func Input[T any]() SpecOption {
	return func(s *Spec) { s.Input = schema.TypeOf[T]() }
}

// Output declares the agent's output record type.
func Output[T any]() SpecOption {
	return func(s *Spec) { s.Output = schema.TypeOf[T]() }
}

// WithTool registers a tool under the given name.
func WithTool(name string, tool Tool) SpecOption {
	return func(s *Spec) {
		if s.Tools == nil {
			s.Tools = make(map[string]Tool)
		}
		s.Tools[name] = tool
	}
}

// Model records the model name the agent intends to use.
func Model(name string) SpecOption {
	return func(s *Spec) { s.Model = name }
}

// Provider records the provider name the agent intends to use.
func Provider(name string) SpecOption {
	return func(s *Spec) { s.Provider = name }
}

// Base is an embeddable agent carrying a declared Spec. Its Call returns
// NotImplementedError, so embedding types must shadow it.
type Base struct {
	spec Spec
}

// NewBase builds a Base from the given declarations.
func NewBase(opts ...SpecOption) Base {
	var s Spec
	for _, o := range opts {
		o(&s)
	}
	return Base{spec: s}
}

func (b Base) Spec() Spec {
	return b.spec
}

func (b Base) Call(context.Context, any) (any, error) {
	return nil, &NotImplementedError{}
}
