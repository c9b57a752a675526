package runstore

// Status is the lifecycle state of a run or of a single step.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// RunMetadata mirrors metadata.json at the root of a run directory.
// Timestamps are ISO-8601 strings carrying the local timezone offset.
type RunMetadata struct {
	WorkflowName string         `json:"workflow_name"`
	Status       Status         `json:"status"`
	Steps        []string       `json:"steps"`
	CreatedAt    string         `json:"created_at"`
	UpdatedAt    string         `json:"updated_at"`
	Config       map[string]any `json:"config"`
}

// RetryRecord is one entry in a step's retry history.
type RetryRecord struct {
	Error      string `json:"error"`
	ErrorClass string `json:"error_class"`
	Timestamp  string `json:"timestamp"`
}

// StepStatus mirrors steps/<name>/status.json. Nullable fields are pointers so
// the JSON distinguishes "absent" (null) from zero values.
type StepStatus struct {
	Status      Status        `json:"status"`
	RetryCount  int           `json:"retry_count"`
	Error       *string       `json:"error"`
	ErrorClass  *string       `json:"error_class"`
	StartedAt   *string       `json:"started_at"`
	CompletedAt *string       `json:"completed_at"`
	Duration    *float64      `json:"duration"`
	Retries     []RetryRecord `json:"retries"`
}

// ResumePlan partitions a run's steps for resumption: steps already done, the
// first step to re-run, and every other step not yet completed.
type ResumePlan struct {
	Completed  []string
	ResumeStep string
	Pending    []string
}
