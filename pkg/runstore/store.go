// Package runstore persists workflow run state so crashed runs can be
// inspected and resumed. The authoritative backend is a filesystem layout of
// one self-contained directory per run; a memory-backed mirror exists for
// tests.
package runstore

import (
	"reflect"
	"time"
)

// Store records run and step state transitions. Distinct steps own distinct
// state, so implementations only need to serialize run-level writes.
type Store interface {
	// CreateRun allocates a run directory for the given workflow, seeds
	// metadata.json with status pending, and writes a pending status.json for
	// every step. It returns the run directory path.
	CreateRun(workflowName string, stepNames []string, config map[string]any) (string, error)

	// UpdateRunStatus rewrites run metadata with the new status and a fresh
	// updated_at, preserving every other field.
	UpdateRunStatus(runDir string, status Status) error

	ReadMetadata(runDir string) (RunMetadata, error)

	// WriteStepInput records the input a step was invoked with.
	WriteStepInput(runDir, stepName string, input any) error

	// WriteStepOutput records the output of a successfully completed step.
	WriteStepOutput(runDir, stepName string, output any) error

	// LoadStepOutput reads a step's output back as a record of the given type.
	LoadStepOutput(runDir, stepName string, typ reflect.Type) (any, error)

	// MarkStepInProgress transitions a step to in_progress, stamping
	// started_at and preserving retry_count and retries.
	MarkStepInProgress(runDir, stepName string) error

	// MarkStepCompleted transitions a step to completed, stamping completed_at
	// and recording the measured duration. started_at, retry_count and
	// retries are preserved.
	MarkStepCompleted(runDir, stepName string, duration time.Duration) error

	// MarkStepFailed transitions a step to failed: appends a retry record,
	// increments retry_count, and records the error and its class.
	// started_at is preserved.
	MarkStepFailed(runDir, stepName string, stepErr error) error

	LoadStepStatuses(runDir string) (map[string]StepStatus, error)

	// ResumePlan inspects step statuses and partitions them for resumption.
	// The first step in definition order whose status is in_progress or
	// failed becomes the resume step; every other non-completed step, before or
	// after it, is pending.
	ResumePlan(runDir string) (ResumePlan, error)
}

func errorClass(err error) string {
	return reflect.TypeOf(err).String()
}

func timestamp(now func() time.Time) string {
	return now().Format(time.RFC3339)
}
