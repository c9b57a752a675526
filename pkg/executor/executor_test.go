package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/avi3tal/stepflow/pkg/agent"
	"github.com/avi3tal/stepflow/pkg/runstore"
	"github.com/avi3tal/stepflow/pkg/schema"
	"github.com/avi3tal/stepflow/pkg/workflow"
)

type Text struct {
	Text string `json:"text"`
}

//---------------------------//
// Scenario agents           //
//---------------------------//

type passThrough struct{ agent.Base }

func newPassThrough() agent.Agent {
	return &passThrough{Base: textBase()}
}

func (a *passThrough) Call(_ context.Context, input any) (any, error) {
	return input, nil
}

type appender struct{ agent.Base }

func newAppender() agent.Agent {
	return &appender{Base: textBase()}
}

func (a *appender) Call(_ context.Context, input any) (any, error) {
	return Text{Text: input.(Text).Text + ":appended"}, nil
}

type upper struct{ agent.Base }

func newUpper() agent.Agent {
	return &upper{Base: textBase()}
}

func (a *upper) Call(_ context.Context, input any) (any, error) {
	return Text{Text: strings.ToUpper(input.(Text).Text)}, nil
}

// merger renders its upstream outputs as "name=text" pairs, sorted by name.
type merger struct{ agent.Base }

func newMerger() agent.Agent {
	return &merger{Base: agent.NewBase(agent.Input[agent.MergedInput](), agent.Output[Text]())}
}

func (a *merger) Call(_ context.Context, input any) (any, error) {
	merged := input.(agent.MergedInput)
	names := make([]string, 0, len(merged.Outputs))
	for name := range merged.Outputs {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, fmt.Sprintf("%s=%s", name, merged.Outputs[name].(Text).Text))
	}
	return Text{Text: strings.Join(pairs, ",")}, nil
}

// flaky fails the first n calls, then succeeds. Callers may share one
// instance across goroutines; the counter is mutex-guarded.
type flaky struct {
	agent.Base
	mu       sync.Mutex
	failures int
	calls    int
	inputs   []string
}

func newFlaky(failures int) *flaky {
	return &flaky{Base: textBase(), failures: failures}
}

func (a *flaky) Call(_ context.Context, input any) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.calls++
	a.inputs = append(a.inputs, input.(Text).Text)
	if a.calls <= a.failures {
		return nil, errors.Errorf("transient failure %d", a.calls)
	}
	return Text{Text: input.(Text).Text + ":recovered"}, nil
}

func (a *flaky) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type alwaysFail struct{ agent.Base }

func newAlwaysFail() agent.Agent {
	return &alwaysFail{Base: textBase()}
}

func (a *alwaysFail) Call(context.Context, any) (any, error) {
	return nil, errors.New("kaboom")
}

// barrier blocks inside Call until enough concurrent entries arrive.
type barrier struct {
	agent.Base
	wg *sync.WaitGroup
}

func (a *barrier) Call(_ context.Context, input any) (any, error) {
	a.wg.Done()
	a.wg.Wait()
	return input, nil
}

func textBase() agent.Base {
	return agent.NewBase(agent.Input[Text](), agent.Output[Text]())
}

// sleepRecorder captures backoff delays without sleeping.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) Sleep(_ context.Context, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
}

func (r *sleepRecorder) Delays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

//---------------------------//
// Scenarios                 //
//---------------------------//

func TestLinearChain(t *testing.T) {
	t.Parallel()

	def, err := workflow.Define("linear", func(b *workflow.Builder) {
		b.Step("a", newPassThrough).
			Step("b", newAppender, workflow.After("a")).
			Step("c", newAppender, workflow.After("b"))
	})
	require.NoError(t, err)

	result, err := New(def).Run(context.Background(), Text{Text: "start"})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Empty(t, result.FailedStep)
	require.Len(t, result.StepResults, 3)
	require.Equal(t, "start:appended:appended", result.StepResults["c"].Output.(Text).Text)
	require.Greater(t, result.Duration, time.Duration(0))
}

func TestDiamond(t *testing.T) {
	t.Parallel()

	def, err := workflow.Define("diamond", func(b *workflow.Builder) {
		b.Step("root", newPassThrough).
			Step("left", newAppender, workflow.After("root")).
			Step("right", newUpper, workflow.After("root")).
			Step("join", newMerger, workflow.After("left", "right"))
	})
	require.NoError(t, err)

	result, err := New(def).Run(context.Background(), Text{Text: "hello"})
	require.NoError(t, err)
	require.True(t, result.Success)

	joined := result.StepResults["join"].Output.(Text).Text
	require.Contains(t, joined, "left=hello:appended")
	require.Contains(t, joined, "right=HELLO")
}

func TestExponentialBackoff(t *testing.T) {
	t.Parallel()

	def, err := workflow.Define("retrying", func(b *workflow.Builder) {
		b.Step("shaky", func() agent.Agent { return newFlaky(3) })
	})
	require.NoError(t, err)

	recorder := &sleepRecorder{}
	shaky := newFlaky(3)
	exec := New(def,
		WithRetries(3),
		WithAgent("shaky", shaky),
		WithSleep(recorder.Sleep),
	)

	result, err := exec.Run(context.Background(), Text{Text: "x"})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, 4, shaky.Calls())
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, recorder.Delays())
	require.Equal(t, []string{"x", "x", "x", "x"}, shaky.inputs, "same input on every attempt")
}

func TestPerStepRetryOverride(t *testing.T) {
	t.Parallel()

	def, err := workflow.Define("override", func(b *workflow.Builder) {
		b.Step("shaky", func() agent.Agent { return newFlaky(1) }, workflow.Retries(1))
	})
	require.NoError(t, err)

	recorder := &sleepRecorder{}
	shaky := newFlaky(1)
	exec := New(def,
		WithRetries(0),
		WithAgent("shaky", shaky),
		WithSleep(recorder.Sleep),
	)

	result, err := exec.Run(context.Background(), Text{Text: "x"})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, 2, shaky.Calls())
	require.Equal(t, []time.Duration{time.Second}, recorder.Delays())
}

func TestFailureShortCircuits(t *testing.T) {
	t.Parallel()

	def, err := workflow.Define("failing", func(b *workflow.Builder) {
		b.Step("bad", newAlwaysFail).
			Step("after_bad", newPassThrough, workflow.After("bad"))
	})
	require.NoError(t, err)

	store := runstore.NewMemoryStore()
	result, err := New(def, WithStore(store)).Run(context.Background(), Text{Text: "x"})
	require.NoError(t, err)

	require.False(t, result.Success)
	require.Equal(t, "bad", result.FailedStep)
	require.NotContains(t, result.StepResults, "after_bad")
	require.Contains(t, result.ErrorMessage, "kaboom")
	require.Contains(t, result.ErrorMessage, `step "bad" failed`)
	require.NotEmpty(t, result.ErrorDetails)
	require.Error(t, result.Err)

	runDir := result.RunDir
	require.NotEmpty(t, runDir)
	meta, err := store.ReadMetadata(runDir)
	require.NoError(t, err)
	require.Equal(t, runstore.StatusFailed, meta.Status)

	statuses, err := store.LoadStepStatuses(runDir)
	require.NoError(t, err)
	require.Equal(t, runstore.StatusFailed, statuses["bad"].Status)
	require.Equal(t, runstore.StatusPending, statuses["after_bad"].Status, "downstream steps are never attempted")
}

func TestIndependentStepsRunConcurrently(t *testing.T) {
	t.Parallel()

	def, err := workflow.Define("parallel", func(b *workflow.Builder) {
		b.Step("a", newPassThrough).
			Step("b", newPassThrough)
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	exec := New(def,
		WithAgent("a", &barrier{Base: textBase(), wg: &wg}),
		WithAgent("b", &barrier{Base: textBase(), wg: &wg}),
	)

	// Both agents block until the other enters Call; completion proves the
	// wave ran them concurrently.
	result, err := exec.Run(context.Background(), Text{Text: "x"})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Len(t, result.StepResults, 2)
}

func TestDoubleFailureRecordsFirstObserved(t *testing.T) {
	t.Parallel()

	def, err := workflow.Define("double", func(b *workflow.Builder) {
		b.Step("f1", newAlwaysFail).
			Step("f2", newAlwaysFail)
	})
	require.NoError(t, err)

	result, err := New(def).Run(context.Background(), Text{Text: "x"})
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Contains(t, []string{"f1", "f2"}, result.FailedStep)
	require.Empty(t, result.StepResults)
}

func TestFileStorePersistence(t *testing.T) {
	t.Parallel()

	def, err := workflow.Define("persisted", func(b *workflow.Builder) {
		b.Step("a", newPassThrough).
			Step("b", newAppender, workflow.After("a"))
	})
	require.NoError(t, err)

	baseDir := t.TempDir()
	store := runstore.NewFileStore(baseDir)
	result, err := New(def, WithStore(store)).Run(context.Background(), Text{Text: "hi"})
	require.NoError(t, err)
	require.True(t, result.Success)

	entries, err := os.ReadDir(baseDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	runDir := filepath.Join(baseDir, entries[0].Name())
	require.Equal(t, runDir, result.RunDir)

	meta, err := store.ReadMetadata(runDir)
	require.NoError(t, err)
	require.Equal(t, runstore.StatusCompleted, meta.Status)
	require.NotEmpty(t, meta.Config["run_id"])

	for _, step := range []string{"a", "b"} {
		require.FileExists(t, filepath.Join(runDir, "steps", step, "input.json"))
		require.FileExists(t, filepath.Join(runDir, "steps", step, "output.json"))
	}

	out, err := store.LoadStepOutput(runDir, "b", schema.TypeOf[Text]())
	require.NoError(t, err)
	require.Equal(t, Text{Text: "hi:appended"}, out)
}

func TestResumeSkipsCompletedSteps(t *testing.T) {
	t.Parallel()

	counting := newFlaky(0)
	def, err := workflow.Define("resumable", func(b *workflow.Builder) {
		b.Step("a", func() agent.Agent { return counting }).
			Step("b", newAppender, workflow.After("a"))
	})
	require.NoError(t, err)

	store := runstore.NewFileStore(t.TempDir())

	// First run: b fails terminally.
	first := New(def,
		WithStore(store),
		WithAgent("b", newAlwaysFail()),
	)
	result, err := first.Run(context.Background(), Text{Text: "go"})
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, "b", result.FailedStep)
	require.Equal(t, 1, counting.Calls())

	runDir := result.RunDir
	plan, err := store.ResumePlan(runDir)
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, plan.Completed)
	require.Equal(t, "b", plan.ResumeStep)

	// Second run against the same directory: a is preloaded, only b runs.
	second := New(def,
		WithStore(store),
		WithRun(runDir),
	)
	result, err = second.Run(context.Background(), Text{Text: "go"})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, 1, counting.Calls(), "completed step must not re-run")
	require.Equal(t, "go:recovered:appended", result.StepResults["b"].Output.(Text).Text)

	meta, err := store.ReadMetadata(runDir)
	require.NoError(t, err)
	require.Equal(t, runstore.StatusCompleted, meta.Status)

	statuses, err := store.LoadStepStatuses(runDir)
	require.NoError(t, err)
	require.Equal(t, runstore.StatusCompleted, statuses["b"].Status)
	require.Equal(t, 1, statuses["b"].RetryCount, "failure history survives the resume")
}

func TestFreshAgentInstancePerRun(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	built := 0
	factory := func() agent.Agent {
		mu.Lock()
		built++
		mu.Unlock()
		return newPassThrough()
	}

	def, err := workflow.Define("fresh", func(b *workflow.Builder) {
		b.Step("a", factory)
	})
	require.NoError(t, err)

	exec := New(def)
	for i := 0; i < 2; i++ {
		result, err := exec.Run(context.Background(), Text{Text: "x"})
		require.NoError(t, err)
		require.True(t, result.Success)
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 2, built)
}

func TestSchemaViolationIsStepFailure(t *testing.T) {
	t.Parallel()

	// join declares Text instead of MergedInput, so input assembly produces a
	// schema violation surfaced as an ordinary step failure.
	def, err := workflow.Define("badschema", func(b *workflow.Builder) {
		b.Step("left", newPassThrough).
			Step("right", newPassThrough).
			Step("join", newPassThrough, workflow.After("left", "right"))
	})
	require.NoError(t, err)

	result, err := New(def).Run(context.Background(), Text{Text: "x"})
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, "join", result.FailedStep)
	require.Contains(t, result.ErrorMessage, "expected input")
}

