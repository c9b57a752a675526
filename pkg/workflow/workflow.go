// Package workflow defines multi-agent workflows as directed acyclic graphs
// of named steps and validates them at definition time.
package workflow

import (
	"github.com/pkg/errors"

	"github.com/avi3tal/stepflow/internal/dag"
	"github.com/avi3tal/stepflow/pkg/agent"
)

// Step is one named position in a workflow: an agent factory plus the set of
// upstream steps whose outputs it consumes. Steps are immutable once their
// workflow passes validation.
type Step struct {
	name    string
	factory agent.Factory
	after   []string
	retries *int
}

func (s *Step) Name() string { return s.name }

func (s *Step) Factory() agent.Factory { return s.factory }

// After returns the upstream step names, deduplicated, in declaration order.
func (s *Step) After() []string {
	out := make([]string, len(s.after))
	copy(out, s.after)
	return out
}

// Retries returns the per-step retry override, if one was declared.
func (s *Step) Retries() (int, bool) {
	if s.retries == nil {
		return 0, false
	}
	return *s.retries, true
}

// Definition is a validated, frozen workflow. Multiple executors may share a
// single definition.
type Definition struct {
	name   string
	steps  map[string]*Step
	order  []string
	sorted []string
}

func (d *Definition) Name() string { return d.name }

// Step looks up a step by name.
func (d *Definition) Step(name string) (*Step, bool) {
	s, ok := d.steps[name]
	return s, ok
}

// StepNames returns every step name in definition order.
func (d *Definition) StepNames() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Sorted returns a topologically valid order computed at validation time.
// Execution does not consume this order; it schedules by readiness.
func (d *Definition) Sorted() []string {
	out := make([]string, len(d.sorted))
	copy(out, d.sorted)
	return out
}

// Builder accumulates steps inside a Define block. The first error sticks and
// surfaces from Define, so call sites can chain without per-call checks.
type Builder struct {
	name  string
	steps map[string]*Step
	order []string
	err   error
}

type stepConfig struct {
	after   []string
	retries *int
}

// StepOption configures a single step declaration.
type StepOption func(*stepConfig)

// After declares the upstream steps this step depends on.
func After(deps ...string) StepOption {
	return func(c *stepConfig) { c.after = append(c.after, deps...) }
}

// Retries overrides the executor's global retry count for this step.
func Retries(n int) StepOption {
	return func(c *stepConfig) { c.retries = &n }
}

// Step appends a step to the workflow under construction.
func (b *Builder) Step(name string, factory agent.Factory, opts ...StepOption) *Builder {
	if b.err != nil {
		return b
	}
	if name == "" {
		b.err = errors.Errorf("workflow %q: step with empty name", b.name)
		return b
	}
	if factory == nil {
		b.err = errors.Errorf("workflow %q: step %q has no agent factory", b.name, name)
		return b
	}
	if _, exists := b.steps[name]; exists {
		b.err = &DuplicateStepError{Workflow: b.name, Step: name}
		return b
	}

	var cfg stepConfig
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.retries != nil && *cfg.retries < 0 {
		b.err = errors.Errorf("workflow %q: step %q has negative retries", b.name, name)
		return b
	}

	b.steps[name] = &Step{
		name:    name,
		factory: factory,
		after:   dedupe(cfg.after),
		retries: cfg.retries,
	}
	b.order = append(b.order, name)
	return b
}

// Define builds and validates a workflow. The build function declares steps on
// the builder; validation runs once it returns. The resulting definition is
// frozen.
func Define(name string, build func(*Builder)) (*Definition, error) {
	b := &Builder{
		name:  name,
		steps: make(map[string]*Step),
	}
	build(b)
	if b.err != nil {
		return nil, b.err
	}
	return b.validate()
}

func (b *Builder) validate() (*Definition, error) {
	deps := make(map[string][]string, len(b.steps))
	for _, name := range b.order {
		step := b.steps[name]
		for _, dep := range step.after {
			if _, ok := b.steps[dep]; !ok {
				return nil, &MissingDependencyError{Workflow: b.name, Step: name, Dependency: dep}
			}
		}
		deps[name] = step.after
	}

	if closer, found := dag.FindCycle(b.order, deps); found {
		return nil, &CircularDependencyError{Workflow: b.name, Step: closer}
	}

	return &Definition{
		name:   b.name,
		steps:  b.steps,
		order:  b.order,
		sorted: dag.TopologicalOrder(b.order, deps),
	}, nil
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
