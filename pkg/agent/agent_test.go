package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type greeting struct {
	Text string `json:"text"`
}

type farewell struct {
	Text string `json:"text"`
}

type echo struct{ Base }

func newEcho() *echo {
	return &echo{Base: NewBase(Input[greeting](), Output[greeting]())}
}

func (a *echo) Call(_ context.Context, input any) (any, error) {
	return input, nil
}

type mismatched struct{ Base }

func newMismatched() *mismatched {
	return &mismatched{Base: NewBase(Input[greeting](), Output[farewell]())}
}

func (a *mismatched) Call(_ context.Context, input any) (any, error) {
	// Returns the wrong record type on purpose.
	return input, nil
}

type failing struct{ Base }

func (a *failing) Call(context.Context, any) (any, error) {
	return nil, errors.New("call exploded")
}

type merger struct{ Base }

func newMerger() *merger {
	return &merger{Base: NewBase(Input[MergedInput](), Output[greeting]())}
}

func (a *merger) Call(_ context.Context, input any) (any, error) {
	merged := input.(MergedInput)
	parts := make([]string, 0, len(merged.Outputs))
	for name := range merged.Outputs {
		parts = append(parts, name)
	}
	return greeting{Text: strings.Join(parts, ",")}, nil
}

func TestExecute(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		t.Parallel()
		res, err := Execute(ctx, newEcho(), greeting{Text: "hi"})
		require.NoError(t, err)
		require.Equal(t, greeting{Text: "hi"}, res.Output)
		require.Contains(t, res.AgentType, "echo")
		require.GreaterOrEqual(t, res.Duration.Nanoseconds(), int64(0))
	})

	t.Run("NoInputSchema", func(t *testing.T) {
		t.Parallel()
		a := &echo{Base: NewBase(Output[greeting]())}
		_, err := Execute(ctx, a, greeting{})

		var invalid *InvalidInputError
		require.ErrorAs(t, err, &invalid)
		require.Contains(t, err.Error(), "no input schema declared")
	})

	t.Run("NoOutputSchema", func(t *testing.T) {
		t.Parallel()
		a := &echo{Base: NewBase(Input[greeting]())}
		_, err := Execute(ctx, a, greeting{})

		var invalid *InvalidOutputError
		require.ErrorAs(t, err, &invalid)
		require.Contains(t, err.Error(), "no output schema declared")
	})

	t.Run("WrongInputType", func(t *testing.T) {
		t.Parallel()
		_, err := Execute(ctx, newEcho(), farewell{Text: "bye"})

		var invalid *InvalidInputError
		require.ErrorAs(t, err, &invalid)
		require.Contains(t, err.Error(), "expected input")
		require.Contains(t, err.Error(), "greeting")
		require.Contains(t, err.Error(), "farewell")
	})

	t.Run("NilInput", func(t *testing.T) {
		t.Parallel()
		_, err := Execute(ctx, newEcho(), nil)

		var invalid *InvalidInputError
		require.ErrorAs(t, err, &invalid)
		require.Contains(t, err.Error(), "nil")
	})

	t.Run("WrongOutputType", func(t *testing.T) {
		t.Parallel()
		_, err := Execute(ctx, newMismatched(), greeting{Text: "hi"})

		var invalid *InvalidOutputError
		require.ErrorAs(t, err, &invalid)
		require.Contains(t, err.Error(), "expected output")
	})

	t.Run("CallErrorPropagatesWhole", func(t *testing.T) {
		t.Parallel()
		a := &failing{Base: NewBase(Input[greeting](), Output[greeting]())}
		_, err := Execute(ctx, a, greeting{})
		require.EqualError(t, errors.Cause(err), "call exploded")
	})

	t.Run("NotImplemented", func(t *testing.T) {
		t.Parallel()
		type bare struct{ Base }
		a := &bare{Base: NewBase(Input[greeting](), Output[greeting]())}
		_, err := Execute(ctx, a, greeting{})

		var notImpl *NotImplementedError
		require.ErrorAs(t, err, &notImpl)
	})

	t.Run("MergedInputSchema", func(t *testing.T) {
		t.Parallel()
		res, err := Execute(ctx, newMerger(), MergedInput{Outputs: map[string]any{"a": greeting{}}})
		require.NoError(t, err)
		require.Equal(t, greeting{Text: "a"}, res.Output)
	})
}

func TestSpecDeclarations(t *testing.T) {
	t.Parallel()

	tool := stubTool{}
	b := NewBase(
		Input[greeting](),
		Output[farewell](),
		WithTool("search", tool),
		Model("gpt-4o"),
		Provider("openai"),
	)

	spec := b.Spec()
	require.Equal(t, "greeting", spec.Input.Name())
	require.Equal(t, "farewell", spec.Output.Name())
	require.Equal(t, "gpt-4o", spec.Model)
	require.Equal(t, "openai", spec.Provider)
	require.Contains(t, spec.Tools, "search")
}

type stubTool struct{}

func (stubTool) Name() string { return "stub" }

func (stubTool) Call(context.Context, string) (string, error) { return "", nil }
