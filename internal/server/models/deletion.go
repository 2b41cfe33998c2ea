package models

// Deletion step names, in execution order.
const (
	StepCredentialStore = "credential_store"
	StepObjectStore     = "object_store"
	StepNotification    = "notification"
)

// Step and report statuses.
const (
	StatusSuccess  = "success"
	StatusFailed   = "failed"
	StatusDegraded = "degraded"
)

// DeletionStep records the outcome of one cascade step.
type DeletionStep struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// DeletionReport is the ordered step log of an account deletion. Status is
// "degraded" when the authoritative record is gone but a later step failed.
type DeletionReport struct {
	Username       string         `json:"username"`
	Status         string         `json:"status"`
	Steps          []DeletionStep `json:"steps"`
	DeletedObjects int            `json:"deleted_objects"`
}

// Record appends a step outcome and downgrades the report on failure.
func (r *DeletionReport) Record(name string, err error) {
	step := DeletionStep{Name: name, Status: StatusSuccess}
	if err != nil {
		step.Status = StatusFailed
		step.Error = err.Error()
		r.Status = StatusDegraded
	}
	r.Steps = append(r.Steps, step)
}
