package runstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/avi3tal/stepflow/pkg/schema"
)

const (
	metadataFile = "metadata.json"
	statusFile   = "status.json"
	inputFile    = "input.json"
	outputFile   = "output.json"
	stepsDir     = "steps"

	runDirTimeLayout = "20060102_150405"
)

// FileStore is the authoritative Store: one directory per run under baseDir,
// named <workflow>_<YYYYMMDD>_<HHMMSS>, holding metadata.json and one
// subdirectory per step. Every file is pretty-printed JSON, so runs are
// diffable and inspectable with ordinary tools.
type FileStore struct {
	baseDir string
	now     func() time.Time
	logger  *zap.Logger

	mu sync.Mutex // serializes run-level metadata writes
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithClock substitutes the time source. Tests use this to pin timestamps.
func WithClock(now func() time.Time) FileOption {
	return func(s *FileStore) { s.now = now }
}

// WithLogger attaches a structured logger.
func WithLogger(logger *zap.Logger) FileOption {
	return func(s *FileStore) { s.logger = logger }
}

// NewFileStore creates a store rooted at baseDir. The directory is created on
// first run creation.
func NewFileStore(baseDir string, opts ...FileOption) *FileStore {
	s := &FileStore{
		baseDir: baseDir,
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *FileStore) CreateRun(workflowName string, stepNames []string, config map[string]any) (string, error) {
	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return "", errors.Wrap(err, "create base directory")
	}

	// The directory name has second resolution; on collision, bump the
	// second until a free slot is found.
	ts := s.now()
	var runDir string
	for {
		runDir = filepath.Join(s.baseDir, workflowName+"_"+ts.Format(runDirTimeLayout))
		err := os.Mkdir(runDir, 0o755)
		if err == nil {
			break
		}
		if !os.IsExist(err) {
			return "", errors.Wrap(err, "create run directory")
		}
		ts = ts.Add(time.Second)
	}

	if config == nil {
		config = map[string]any{}
	}
	now := timestamp(s.now)
	meta := RunMetadata{
		WorkflowName: workflowName,
		Status:       StatusPending,
		Steps:        stepNames,
		CreatedAt:    now,
		UpdatedAt:    now,
		Config:       config,
	}
	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}

	for _, name := range stepNames {
		dir := filepath.Join(runDir, stepsDir, name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", errors.Wrapf(err, "create step directory %q", name)
		}
		status := StepStatus{
			Status:  StatusPending,
			Retries: []RetryRecord{},
		}
		if err := writeJSON(filepath.Join(dir, statusFile), status); err != nil {
			return "", err
		}
	}

	s.logger.Debug("run created",
		zap.String("workflow", workflowName),
		zap.String("run_dir", runDir),
		zap.Int("steps", len(stepNames)))
	return runDir, nil
}

func (s *FileStore) UpdateRunStatus(runDir string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.ReadMetadata(runDir)
	if err != nil {
		return err
	}
	meta.Status = status
	meta.UpdatedAt = timestamp(s.now)
	return writeJSON(filepath.Join(runDir, metadataFile), meta)
}

func (s *FileStore) ReadMetadata(runDir string) (RunMetadata, error) {
	var meta RunMetadata
	if err := readJSON(filepath.Join(runDir, metadataFile), &meta); err != nil {
		return RunMetadata{}, err
	}
	return meta, nil
}

// StepStore returns a handle on one step's slice of the run directory. It
// fails with RunNotFoundError if the step directory does not exist.
func (s *FileStore) StepStore(runDir, stepName string) (*StepStore, error) {
	dir := filepath.Join(runDir, stepsDir, stepName)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, &RunNotFoundError{Path: dir}
	}
	return &StepStore{store: s, dir: dir}, nil
}

func (s *FileStore) WriteStepInput(runDir, stepName string, input any) error {
	ss, err := s.StepStore(runDir, stepName)
	if err != nil {
		return err
	}
	return ss.WriteInput(input)
}

func (s *FileStore) WriteStepOutput(runDir, stepName string, output any) error {
	ss, err := s.StepStore(runDir, stepName)
	if err != nil {
		return err
	}
	return ss.WriteOutput(output)
}

func (s *FileStore) LoadStepOutput(runDir, stepName string, typ reflect.Type) (any, error) {
	ss, err := s.StepStore(runDir, stepName)
	if err != nil {
		return nil, err
	}
	return ss.ReadOutput(typ)
}

func (s *FileStore) MarkStepInProgress(runDir, stepName string) error {
	ss, err := s.StepStore(runDir, stepName)
	if err != nil {
		return err
	}
	current, err := ss.ReadStatus()
	if err != nil {
		return err
	}

	started := timestamp(s.now)
	return ss.WriteStatus(StepStatus{
		Status:     StatusInProgress,
		RetryCount: current.RetryCount,
		StartedAt:  &started,
		Retries:    current.Retries,
	})
}

func (s *FileStore) MarkStepCompleted(runDir, stepName string, duration time.Duration) error {
	ss, err := s.StepStore(runDir, stepName)
	if err != nil {
		return err
	}
	current, err := ss.ReadStatus()
	if err != nil {
		return err
	}

	completed := timestamp(s.now)
	seconds := duration.Seconds()
	current.Status = StatusCompleted
	current.Error = nil
	current.ErrorClass = nil
	current.CompletedAt = &completed
	current.Duration = &seconds
	return ss.WriteStatus(current)
}

func (s *FileStore) MarkStepFailed(runDir, stepName string, stepErr error) error {
	ss, err := s.StepStore(runDir, stepName)
	if err != nil {
		return err
	}
	current, err := ss.ReadStatus()
	if err != nil {
		return err
	}

	msg := stepErr.Error()
	class := errorClass(stepErr)
	current.Status = StatusFailed
	current.RetryCount++
	current.Error = &msg
	current.ErrorClass = &class
	current.Retries = append(current.Retries, RetryRecord{
		Error:      msg,
		ErrorClass: class,
		Timestamp:  timestamp(s.now),
	})
	return ss.WriteStatus(current)
}

func (s *FileStore) LoadStepStatuses(runDir string) (map[string]StepStatus, error) {
	meta, err := s.ReadMetadata(runDir)
	if err != nil {
		return nil, err
	}

	statuses := make(map[string]StepStatus, len(meta.Steps))
	for _, name := range meta.Steps {
		ss, err := s.StepStore(runDir, name)
		if err != nil {
			return nil, err
		}
		status, err := ss.ReadStatus()
		if err != nil {
			return nil, err
		}
		statuses[name] = status
	}
	return statuses, nil
}

func (s *FileStore) ResumePlan(runDir string) (ResumePlan, error) {
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

// planResume partitions steps for resumption. The first non-completed step in
// definition order whose status is in_progress or failed is the resume step;
// every other non-completed step is pending.
func planResume(stepOrder []string, statuses map[string]StepStatus) ResumePlan {
	var plan ResumePlan
	for _, name := range stepOrder {
		status := statuses[name].Status
		switch {
		case status == StatusCompleted:
			plan.Completed = append(plan.Completed, name)
		case plan.ResumeStep == "" && (status == StatusInProgress || status == StatusFailed):
			plan.ResumeStep = name
		default:
			plan.Pending = append(plan.Pending, name)
		}
	}
	return plan
}

// StepStore reads and writes one step's input.json, output.json and
// status.json.
type StepStore struct {
	store *FileStore
	dir   string
}

func (ss *StepStore) WriteInput(input any) error {
	return writeJSON(filepath.Join(ss.dir, inputFile), input)
}

func (ss *StepStore) ReadInput(typ reflect.Type) (any, error) {
	return readRecord(filepath.Join(ss.dir, inputFile), typ)
}

func (ss *StepStore) WriteOutput(output any) error {
	return writeJSON(filepath.Join(ss.dir, outputFile), output)
}

func (ss *StepStore) ReadOutput(typ reflect.Type) (any, error) {
	return readRecord(filepath.Join(ss.dir, outputFile), typ)
}

func (ss *StepStore) ReadStatus() (StepStatus, error) {
	var status StepStatus
	if err := readJSON(filepath.Join(ss.dir, statusFile), &status); err != nil {
		return StepStatus{}, err
	}
	return status, nil
}

func (ss *StepStore) WriteStatus(status StepStatus) error {
	if status.Retries == nil {
		status.Retries = []RetryRecord{}
	}
	return writeJSON(filepath.Join(ss.dir, statusFile), status)
}

func writeJSON(path string, v any) error {
	data, err := schema.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode %s", filepath.Base(path))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", filepath.Base(path))
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &RunNotFoundError{Path: path}
	}
	if err != nil {
		return errors.Wrapf(err, "read %s", filepath.Base(path))
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "decode %s", filepath.Base(path))
	}
	return nil
}

func readRecord(path string, typ reflect.Type) (any, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &RunNotFoundError{Path: path}
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", filepath.Base(path))
	}
	return schema.Unmarshal(data, typ)
}
