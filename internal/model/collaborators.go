package model

import (
	"context"
	"time"
)

// Scraper drives the networking site. Implementations return *Error with StageScrape.
type Scraper interface {
	// CheckAuth reports whether the scraper's own browsing context is logged in.
	CheckAuth(ctx context.Context) (bool, error)
	// Login blocks until the operator completes an interactive login or it times out.
	Login(ctx context.Context) (AuthSession, error)
	// IsLoggedIn asks the remote site whether session is still accepted.
	IsLoggedIn(ctx context.Context, session AuthSession) (bool, error)
	ScrapeJobs(ctx context.Context, criteria JobCriteria, session AuthSession) ([]Job, error)
}

// LLM turns text into structured jobs and scores jobs against a profile.
type LLM interface {
	ExtractJobData(ctx context.Context, rawText string) (Job, error)
	ScoreJob(ctx context.Context, job Job, profileText string) (ScoreResult, error)
	PrefilterJob(ctx context.Context, job Job, profileText string) (bool, error)
}

// Notifier delivers messages to the operator.
type Notifier interface {
	SendJobDigest(ctx context.Context, digest Digest) error
	SendJobAlert(ctx context.Context, job Job, score int) error
	SendStatusUpdate(ctx context.Context, text string) error
	SendErrorAlert(ctx context.Context, text string, fields map[string]string) error
}

// JobStore persists postings under job:<id>.
type JobStore interface {
	SaveJob(ctx context.Context, job Job) error
	GetJob(ctx context.Context, id string) (Job, bool, error)
	// ListJobs returns stored jobs for criteriaID, or all jobs when it is empty.
	ListJobs(ctx context.Context, criteriaID string) ([]Job, error)
}

// SessionStore holds the single auth:session slot.
type SessionStore interface {
	LoadSession(ctx context.Context) (*AuthSession, error)
	SaveSession(ctx context.Context, session AuthSession) error
	DeleteSession(ctx context.Context) error
}

// RunStore persists JobRun records, overwriting by id.
type RunStore interface {
	SaveRun(ctx context.Context, run JobRun) error
	GetRun(ctx context.Context, id string) (JobRun, bool, error)
	ListRuns(ctx context.Context) ([]JobRun, error)
}

// ScoreStore keeps the append-only score history.
type ScoreStore interface {
	AppendScore(ctx context.Context, score JobScore) error
	ListScores(ctx context.Context, jobID string) ([]JobScore, error)
}

// SeenStore is the durable de-duplication set.
type SeenStore interface {
	SeenIDs(ctx context.Context) (map[string]struct{}, error)
	MarkSeen(ctx context.Context, jobID string) error
}

// PurgeScope selects which namespaces Purge clears.
type PurgeScope string

const (
	PurgeCache PurgeScope = "cache" // score history and seen-set
	PurgeAll   PurgeScope = "all"
)

// StoreStats counts entries per namespace.
type StoreStats struct {
	Jobs   int
	Runs   int
	Scores int
	Seen   int
}

// Storage is the full persistence surface.
type Storage interface {
	JobStore
	SessionStore
	RunStore
	ScoreStore
	SeenStore
	Purge(ctx context.Context, scope PurgeScope) error
	Stats(ctx context.Context) (StoreStats, error)
	Close() error
}

// Clock returns the current time. Components take one so tests can pin time.
type Clock func() time.Time
