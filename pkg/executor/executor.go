// Package executor schedules a validated workflow over waves of ready steps:
// every step whose dependencies are satisfied runs concurrently, failures
// short-circuit scheduling, and transitions persist through an optional run
// store.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/avi3tal/stepflow/pkg/agent"
	"github.com/avi3tal/stepflow/pkg/runstore"
	"github.com/avi3tal/stepflow/pkg/workflow"
)

// Executor runs a workflow definition. It borrows the definition (several
// executors may share one) and owns only its transient scheduling state.
type Executor struct {
	def     *workflow.Definition
	retries int
	agents  map[string]agent.Agent
	store   runstore.Store
	sleep   SleepFunc
	logger  *zap.Logger
	resume  string
}

// Option configures an Executor.
type Option func(*Executor)

// WithRetries sets the global retry count applied to steps without their own
// override. Retries count attempts beyond the first.
func WithRetries(n int) Option {
	return func(e *Executor) { e.retries = n }
}

// WithAgent overrides the agent instance for one step. Without an override
// the executor builds a fresh instance from the step's factory each run.
func WithAgent(stepName string, a agent.Agent) Option {
	return func(e *Executor) { e.agents[stepName] = a }
}

// WithStore attaches a run store; every state transition is persisted.
func WithStore(store runstore.Store) Option {
	return func(e *Executor) { e.store = store }
}

// WithSleep substitutes the backoff sleep. Tests pass a recording no-op.
func WithSleep(sleep SleepFunc) Option {
	return func(e *Executor) { e.sleep = sleep }
}

// WithLogger attaches a structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// WithRun resumes an existing run directory instead of creating a new one:
// completed steps are skipped, their outputs preloaded from the store, and
// scheduling starts from the resume step. Requires WithStore.
func WithRun(runDir string) Option {
	return func(e *Executor) { e.resume = runDir }
}

// New builds an executor bound to a validated definition.
func New(def *workflow.Definition, opts ...Option) *Executor {
	e := &Executor{
		def:    def,
		agents: make(map[string]agent.Agent),
		sleep:  defaultSleep,
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

type outcome struct {
	name string
	res  agent.Result
	err  error
}

// Run executes the workflow against initialInput. Step failures are reported
// through the Result; the error return is reserved for run bookkeeping the
// executor itself could not perform (creating or resuming the run, final
// status update).
func (e *Executor) Run(ctx context.Context, initialInput any) (Result, error) {
	start := time.Now()
	runID := uuid.New().String()
	logger := e.logger.With(
		zap.String("workflow", e.def.Name()),
		zap.String("run_id", runID))

	remaining := make(map[string]bool, len(e.def.StepNames()))
	for _, name := range e.def.StepNames() {
		remaining[name] = true
	}
	completed := make(map[string]bool)
	stepResults := make(map[string]agent.Result)

	runDir, err := e.prepareRun(runID, remaining, completed, stepResults)
	if err != nil {
		return Result{}, err
	}
	if runDir != "" {
		logger = logger.With(zap.String("run_dir", runDir))
	}

	var (
		failedStep   string
		failErr      error
		errorDetails string
	)

	for len(remaining) > 0 && failedStep == "" {
		ready := e.readySteps(remaining, completed)
		if len(ready) == 0 {
			break
		}
		logger.Debug("scheduling wave", zap.Strings("steps", ready))

		// Inputs are assembled before the wave spawns so workers never touch
		// the shared results map.
		inputs := make(map[string]any, len(ready))
		for _, name := range ready {
			inputs[name] = e.stepInput(name, initialInput, stepResults)
		}

		outcomes := make(chan outcome, len(ready))
		var g errgroup.Group
		for _, name := range ready {
			g.Go(func() error {
				res, stepErr := e.runStep(ctx, runDir, name, inputs[name], logger)
				outcomes <- outcome{name: name, res: res, err: stepErr}
				return nil
			})
		}

		for range ready {
			o := <-outcomes
			if o.err != nil {
				failedStep = o.name
				failErr = o.err
				errorDetails = stackDetails(o.err)
				break
			}
			stepResults[o.name] = o.res
			completed[o.name] = true
			delete(remaining, o.name)
		}

		// Workers from a failing wave are awaited, not cancelled; outcomes
		// past the first failure are drained and discarded.
		_ = g.Wait()
	}

	duration := time.Since(start)
	result := Result{
		Success:     failedStep == "",
		StepResults: stepResults,
		FailedStep:  failedStep,
		Duration:    duration,
		RunDir:      runDir,
	}
	if failedStep != "" {
		result.Err = failErr
		result.ErrorMessage = fmt.Sprintf("step %q failed: %s", failedStep, failErr)
		result.ErrorDetails = errorDetails
		logger.Error("workflow failed",
			zap.String("failed_step", failedStep),
			zap.Duration("duration", duration),
			zap.Error(failErr))
	} else {
		logger.Info("workflow completed", zap.Duration("duration", duration))
	}

	if e.store != nil {
		final := runstore.StatusCompleted
		if failedStep != "" {
			final = runstore.StatusFailed
		}
		if err := e.store.UpdateRunStatus(runDir, final); err != nil {
			return result, err
		}
	}
	return result, nil
}

// prepareRun creates the run directory, or loads the resume plan when an
// existing run was supplied, preloading completed step outputs into the
// result set. It returns the run directory path, empty when no store is
// attached.
func (e *Executor) prepareRun(
	runID string,
	remaining, completed map[string]bool,
	stepResults map[string]agent.Result,
) (string, error) {
	if e.store == nil {
		return "", nil
	}

	runDir := e.resume
	if runDir == "" {
		var err error
		runDir, err = e.store.CreateRun(e.def.Name(), e.def.StepNames(), map[string]any{"run_id": runID})
		if err != nil {
			return "", err
		}
	} else {
		plan, err := e.store.ResumePlan(runDir)
		if err != nil {
			return "", err
		}
		for _, name := range plan.Completed {
			a, err := e.agentFor(name)
			if err != nil {
				return "", err
			}
			output, err := e.store.LoadStepOutput(runDir, name, a.Spec().Output)
			if err != nil {
				return "", err
			}
			stepResults[name] = agent.Result{Output: output, AgentType: fmt.Sprintf("%T", a)}
			completed[name] = true
			delete(remaining, name)
		}
	}

	if err := e.store.UpdateRunStatus(runDir, runstore.StatusInProgress); err != nil {
		return "", err
	}
	return runDir, nil
}

// readySteps returns, in definition order, every remaining step whose
// dependencies have all completed.
func (e *Executor) readySteps(remaining, completed map[string]bool) []string {
	var ready []string
	for _, name := range e.def.StepNames() {
		if !remaining[name] {
			continue
		}
		step, _ := e.def.Step(name)
		satisfied := true
		for _, dep := range step.After() {
			if !completed[dep] {
				satisfied = false
				break
			}
		}
		if satisfied {
			ready = append(ready, name)
		}
	}
	return ready
}

// stepInput assembles a step's input: source steps receive the initial input,
// single-upstream steps receive the upstream output directly, and
// multi-upstream steps receive a MergedInput keyed by upstream name.
func (e *Executor) stepInput(name string, initialInput any, stepResults map[string]agent.Result) any {
	step, _ := e.def.Step(name)
	after := step.After()
	switch len(after) {
	case 0:
		return initialInput
	case 1:
		return stepResults[after[0]].Output
	default:
		outputs := make(map[string]any, len(after))
		for _, dep := range after {
			outputs[dep] = stepResults[dep].Output
		}
		return agent.MergedInput{Outputs: outputs}
	}
}

func (e *Executor) agentFor(name string) (agent.Agent, error) {
	if a, ok := e.agents[name]; ok {
		return a, nil
	}
	step, ok := e.def.Step(name)
	if !ok {
		return nil, fmt.Errorf("step %q not in definition", name)
	}
	return step.Factory()(), nil
}

func (e *Executor) runStep(
	ctx context.Context,
	runDir string,
	name string,
	input any,
	logger *zap.Logger,
) (agent.Result, error) {
	stepLogger := logger.With(zap.String("step", name))

	a, err := e.agentFor(name)
	if err != nil {
		return agent.Result{}, err
	}

	if e.store != nil {
		if err := e.store.MarkStepInProgress(runDir, name); err != nil {
			return agent.Result{}, err
		}
		if err := e.store.WriteStepInput(runDir, name, input); err != nil {
			return agent.Result{}, err
		}
	}

	retries := e.retries
	step, _ := e.def.Step(name)
	if override, ok := step.Retries(); ok {
		retries = override
	}

	res, err := e.executeWithRetry(ctx, a, input, retries, stepLogger)
	if err != nil {
		if e.store != nil {
			if markErr := e.store.MarkStepFailed(runDir, name, err); markErr != nil {
				stepLogger.Warn("failed to persist step failure", zap.Error(markErr))
			}
		}
		return agent.Result{}, err
	}

	if e.store != nil {
		if err := e.store.WriteStepOutput(runDir, name, res.Output); err != nil {
			return agent.Result{}, err
		}
		if err := e.store.MarkStepCompleted(runDir, name, res.Duration); err != nil {
			return agent.Result{}, err
		}
	}

	stepLogger.Debug("step completed", zap.Duration("duration", res.Duration))
	return res, nil
}
