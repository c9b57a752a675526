package runstore

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/avi3tal/stepflow/pkg/schema"
)

// MemoryStore mirrors FileStore semantics in process memory. It exists for
// tests and short-lived runs that need transition tracking without a
// filesystem. Records are kept serialized so reads exercise the same codec
// path as the file layout.
type MemoryStore struct {
	runs map[string]*memoryRun
	now  func() time.Time
	seq  int
	mu   sync.RWMutex
}

type memoryRun struct {
	meta  RunMetadata
	steps map[string]*memoryStep
}

type memoryStep struct {
	status StepStatus
	input  []byte
	output []byte
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryClock substitutes the time source.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		runs: make(map[string]*memoryRun),
		now:  time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *MemoryStore) CreateRun(workflowName string, stepNames []string, config map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	runDir := fmt.Sprintf("%s_%s#%d", workflowName, s.now().Format(runDirTimeLayout), s.seq)

	if config == nil {
		config = map[string]any{}
	}
	now := timestamp(s.now)
	run := &memoryRun{
		meta: RunMetadata{
			WorkflowName: workflowName,
			Status:       StatusPending,
			Steps:        append([]string(nil), stepNames...),
			CreatedAt:    now,
			UpdatedAt:    now,
			Config:       config,
		},
		steps: make(map[string]*memoryStep, len(stepNames)),
	}
	for _, name := range stepNames {
		run.steps[name] = &memoryStep{
			status: StepStatus{Status: StatusPending, Retries: []RetryRecord{}},
		}
	}
	s.runs[runDir] = run
	return runDir, nil
}

func (s *MemoryStore) UpdateRunStatus(runDir string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runDir]
	if !ok {
		return &RunNotFoundError{Path: runDir}
	}
	run.meta.Status = status
	run.meta.UpdatedAt = timestamp(s.now)
	return nil
}

func (s *MemoryStore) ReadMetadata(runDir string) (RunMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runDir]
	if !ok {
		return RunMetadata{}, &RunNotFoundError{Path: runDir}
	}
	return run.meta, nil
}

func (s *MemoryStore) WriteStepInput(runDir, stepName string, input any) error {
	data, err := schema.Marshal(input)
	if err != nil {
		return err
	}
	return s.withStep(runDir, stepName, func(step *memoryStep) {
		step.input = data
	})
}

func (s *MemoryStore) WriteStepOutput(runDir, stepName string, output any) error {
	data, err := schema.Marshal(output)
	if err != nil {
		return err
	}
	return s.withStep(runDir, stepName, func(step *memoryStep) {
		step.output = data
	})
}

func (s *MemoryStore) LoadStepOutput(runDir, stepName string, typ reflect.Type) (any, error) {
	s.mu.RLock()
	step, err := s.step(runDir, stepName)
	if err != nil {
		s.mu.RUnlock()
		return nil, err
	}
	data := step.output
	s.mu.RUnlock()

	if data == nil {
		return nil, &RunNotFoundError{Path: runDir + "/" + stepName + "/" + outputFile}
	}
	return schema.Unmarshal(data, typ)
}

func (s *MemoryStore) MarkStepInProgress(runDir, stepName string) error {
	started := timestamp(s.now)
	return s.withStep(runDir, stepName, func(step *memoryStep) {
		step.status = StepStatus{
			Status:     StatusInProgress,
			RetryCount: step.status.RetryCount,
			StartedAt:  &started,
			Retries:    step.status.Retries,
		}
	})
}

func (s *MemoryStore) MarkStepCompleted(runDir, stepName string, duration time.Duration) error {
	completed := timestamp(s.now)
	seconds := duration.Seconds()
	return s.withStep(runDir, stepName, func(step *memoryStep) {
		step.status.Status = StatusCompleted
		step.status.Error = nil
		step.status.ErrorClass = nil
		step.status.CompletedAt = &completed
		step.status.Duration = &seconds
	})
}

func (s *MemoryStore) MarkStepFailed(runDir, stepName string, stepErr error) error {
	msg := stepErr.Error()
	class := errorClass(stepErr)
	ts := timestamp(s.now)
	return s.withStep(runDir, stepName, func(step *memoryStep) {
		step.status.Status = StatusFailed
		step.status.RetryCount++
		step.status.Error = &msg
		step.status.ErrorClass = &class
		step.status.Retries = append(step.status.Retries, RetryRecord{
			Error:      msg,
			ErrorClass: class,
			Timestamp:  ts,
		})
	})
}

func (s *MemoryStore) LoadStepStatuses(runDir string) (map[string]StepStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runDir]
	if !ok {
		return nil, &RunNotFoundError{Path: runDir}
	}
	statuses := make(map[string]StepStatus, len(run.steps))
	for name, step := range run.steps {
		statuses[name] = step.status
	}
	return statuses, nil
}

func (s *MemoryStore) ResumePlan(runDir string) (ResumePlan, error) {
	meta, err := s.ReadMetadata(runDir)
	if err != nil {
		return ResumePlan{}, err
	}
	statuses, err := s.LoadStepStatuses(runDir)
	if err != nil {
		return ResumePlan{}, err
	}
	return planResume(meta.Steps, statuses), nil
}

func (s *MemoryStore) step(runDir, stepName string) (*memoryStep, error) {
	run, ok := s.runs[runDir]
	if !ok {
		return nil, &RunNotFoundError{Path: runDir}
	}
	step, ok := run.steps[stepName]
	if !ok {
		return nil, &RunNotFoundError{Path: runDir + "/" + stepName}
	}
	return step, nil
}

func (s *MemoryStore) withStep(runDir, stepName string, update func(*memoryStep)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	step, err := s.step(runDir, stepName)
	if err != nil {
		return err
	}
	update(step)
	return nil
}
