package model

import "time"

// RunStatus is the lifecycle state of a JobRun. RUNNING is the only non-terminal state.
type RunStatus string

const (
	RunRunning   RunStatus = "RUNNING"
	RunCompleted RunStatus = "COMPLETED"
	RunFailed    RunStatus = "FAILED"
)

// Terminal reports whether the status can no longer change.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed
}

// JobRun is the audit record of one pipeline execution.
type JobRun struct {
	ID            string     `json:"id"`
	CriteriaID    string     `json:"criteria_id"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	JobsFound     int        `json:"jobs_found"`
	JobsProcessed int        `json:"jobs_processed"`
	JobsScored    int        `json:"jobs_scored"`
	Errors        []string   `json:"errors"`
	Status        RunStatus  `json:"status"`
}

// NewJobRun returns a RUNNING run with zero counts.
func NewJobRun(id, criteriaID string, now time.Time) JobRun {
	return JobRun{
		ID:         id,
		CriteriaID: criteriaID,
		StartedAt:  now,
		Errors:     []string{},
		Status:     RunRunning,
	}
}

// Complete moves a running run to COMPLETED. It reports false if the run was already terminal.
func (r *JobRun) Complete(now time.Time) bool {
	if r.Status.Terminal() {
		return false
	}
	r.Status = RunCompleted
	r.CompletedAt = &now
	return true
}

// Fail moves a running run to FAILED and records err. Counts are left untouched.
func (r *JobRun) Fail(now time.Time, err error) bool {
	if r.Status.Terminal() {
		return false
	}
	if err != nil {
		r.Errors = append(r.Errors, err.Error())
	}
	r.Status = RunFailed
	r.CompletedAt = &now
	return true
}

// Duration is the wall time of the run so far (or in total, once terminal).
func (r JobRun) Duration(now time.Time) time.Duration {
	if r.CompletedAt != nil {
		return r.CompletedAt.Sub(r.StartedAt)
	}
	return now.Sub(r.StartedAt)
}

// JobScore is an immutable scoring event. Several may exist per job.
type JobScore struct {
	JobID          string    `json:"job_id"`
	Score          int       `json:"score"`
	Rationale      string    `json:"rationale"`
	Gaps           []string  `json:"gaps"`
	ProfileVersion string    `json:"profile_version"`
	ScoredAt       time.Time `json:"scored_at"`
}

// FreshFor reports whether the record can be reused for profileVersion at now.
func (s JobScore) FreshFor(profileVersion string, now time.Time, ttl time.Duration) bool {
	return s.ProfileVersion == profileVersion && now.Sub(s.ScoredAt) < ttl
}

// Result drops the bookkeeping fields.
func (s JobScore) Result() ScoreResult {
	return ScoreResult{Score: s.Score, Rationale: s.Rationale, Gaps: s.Gaps}
}

// ScoreResult is what the LLM returns for a full scoring call.
type ScoreResult struct {
	Score     int      `json:"score"`
	Rationale string   `json:"rationale"`
	Gaps      []string `json:"gaps"`
}

// AuthSession is one authenticated browsing context.
type AuthSession struct {
	ID        string    `json:"id"`
	Cookies   []string  `json:"cookies"` // "name=value"
	UserAgent string    `json:"user_agent"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Usable reports whether the session has not yet expired.
func (s AuthSession) Usable(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// Digest is the summary sent once per run.
type Digest struct {
	RunID         string
	CriteriaLabel string
	Total         int
	HighScore     int
	Average       float64
	Top           []Job
}
