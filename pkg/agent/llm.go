package agent

import (
	"context"
	"fmt"
	"reflect"

	"github.com/pkg/errors"
	"github.com/tmc/langchaingo/llms"
)

// Prompt is the input record of an LLM-backed agent.
type Prompt struct {
	Text string `json:"text"`
}

// Completion is the output record of an LLM-backed agent.
type Completion struct {
	Text string `json:"text"`
}

// LLMAgent is a text-in, text-out agent backed by a langchaingo model. The
// core does not interpret the model's behavior; a failed generation is an
// ordinary step failure subject to the executor's retry policy.
type LLMAgent struct {
	Base
	model  llms.Model
	system string
}

// LLMOption configures an LLMAgent.
type LLMOption func(*llmConfig)

type llmConfig struct {
	system   string
	chained  bool
	specOpts []SpecOption
}

// WithSystemPrompt prefixes every prompt with the given instruction block.
func WithSystemPrompt(system string) LLMOption {
	return func(c *llmConfig) { c.system = system }
}

// Chained declares Completion as the input schema so the agent can sit
// directly downstream of another LLM agent.
func Chained() LLMOption {
	return func(c *llmConfig) { c.chained = true }
}

// WithSpec adds spec declarations such as Model, Provider or WithTool.
func WithSpec(opts ...SpecOption) LLMOption {
	return func(c *llmConfig) { c.specOpts = append(c.specOpts, opts...) }
}

// NewLLMAgent builds an agent around model. The input schema is Prompt
// (Completion when chained); the output schema is Completion.
func NewLLMAgent(model llms.Model, opts ...LLMOption) *LLMAgent {
	var cfg llmConfig
	for _, o := range opts {
		o(&cfg)
	}

	specOpts := []SpecOption{Input[Prompt](), Output[Completion]()}
	if cfg.chained {
		specOpts[0] = Input[Completion]()
	}
	specOpts = append(specOpts, cfg.specOpts...)

	return &LLMAgent{
		Base:   NewBase(specOpts...),
		model:  model,
		system: cfg.system,
	}
}

func (a *LLMAgent) Call(ctx context.Context, input any) (any, error) {
	var text string
	switch v := input.(type) {
	case Prompt:
		text = v.Text
	case Completion:
		text = v.Text
	default:
		return nil, &InvalidInputError{
			AgentType: fmt.Sprintf("%T", a),
			Expected:  a.Spec().Input,
			Got:       reflect.TypeOf(input),
		}
	}

	if a.system != "" {
		text = a.system + "\n\n" + text
	}

	out, err := llms.GenerateFromSinglePrompt(ctx, a.model, text)
	if err != nil {
		return nil, errors.Wrap(err, "llm generation failed")
	}
	return Completion{Text: out}, nil
}
