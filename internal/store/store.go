package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/PaterSantyago/agent-null-null-job/internal/model"
)

// Namespaces of the persisted state.
const (
	prefixJob   = "job:"
	prefixRun   = "run:"
	prefixScore = "score:"
	prefixSeen  = "seen:"
	keySession  = "auth:session"
)

var _ model.Storage = (*Store)(nil)

// Store maps the domain records onto a KV. Every error it returns is a
// *model.Error with StageStorage.
type Store struct {
	kv  KV
	now func() time.Time
}

// New wraps kv. It takes ownership: Close closes kv.
func New(kv KV) *Store {
	return &Store{kv: kv, now: time.Now}
}

func (s *Store) Close() error {
	if err := s.kv.Close(); err != nil {
		return storageErr("closing store", err)
	}
	return nil
}

func (s *Store) put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return model.NewError(model.StageStorage, model.KindDatabase, "encoding "+key, err)
	}
	if err := s.kv.Put(ctx, key, data); err != nil {
		return storageErr("writing "+key, err)
	}
	return nil
}

// get decodes key into v and reports whether it existed.
func (s *Store) get(ctx context.Context, key string, v any) (bool, error) {
	data, err := s.kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storageErr("reading "+key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, model.NewError(model.StageStorage, model.KindDatabase, "decoding "+key, err)
	}
	return true, nil
}

func scanJSON[T any](ctx context.Context, kv KV, prefix string) ([]T, error) {
	var out []T
	err := kv.Scan(ctx, prefix, func(key string, value []byte) error {
		var v T
		if err := json.Unmarshal(value, &v); err != nil {
			return model.NewError(model.StageStorage, model.KindDatabase, "decoding "+key, err)
		}
		out = append(out, v)
		return nil
	})
	if err != nil {
		return nil, storageErr("scanning "+prefix, err)
	}
	return out, nil
}

// SaveJob writes job under job:<id>. CreatedAt is kept from the stored
// record when there is one, stamped on first write otherwise; UpdatedAt is
// always stamped.
func (s *Store) SaveJob(ctx context.Context, job model.Job) error {
	if job.ID == "" {
		return model.NewError(model.StageStorage, model.KindDatabase, "saving job without id", nil)
	}
	var existing model.Job
	found, err := s.get(ctx, prefixJob+job.ID, &existing)
	if err != nil {
		return err
	}
	now := s.now()
	switch {
	case found && !existing.CreatedAt.IsZero():
		job.CreatedAt = existing.CreatedAt
	case job.CreatedAt.IsZero():
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	job.Normalize()
	return s.put(ctx, prefixJob+job.ID, job)
}

func (s *Store) GetJob(ctx context.Context, id string) (model.Job, bool, error) {
	var job model.Job
	ok, err := s.get(ctx, prefixJob+id, &job)
	return job, ok, err
}

func (s *Store) ListJobs(ctx context.Context, criteriaID string) ([]model.Job, error) {
	jobs, err := scanJSON[model.Job](ctx, s.kv, prefixJob)
	if err != nil {
		return nil, err
	}
	if criteriaID == "" {
		return jobs, nil
	}
	out := jobs[:0]
	for _, j := range jobs {
		if j.CriteriaID == criteriaID {
			out = append(out, j)
		}
	}
	return out, nil
}

// LoadSession returns the persisted session, or nil if there is none.
func (s *Store) LoadSession(ctx context.Context) (*model.AuthSession, error) {
	var session model.AuthSession
	ok, err := s.get(ctx, keySession, &session)
	if err != nil || !ok {
		return nil, err
	}
	return &session, nil
}

// SaveSession overwrites the single session slot.
func (s *Store) SaveSession(ctx context.Context, session model.AuthSession) error {
	return s.put(ctx, keySession, session)
}

func (s *Store) DeleteSession(ctx context.Context) error {
	if err := s.kv.Delete(ctx, keySession); err != nil {
		return storageErr("deleting session", err)
	}
	return nil
}

// SaveRun overwrites the run record keyed by its id.
func (s *Store) SaveRun(ctx context.Context, run model.JobRun) error {
	return s.put(ctx, prefixRun+run.ID, run)
}

func (s *Store) GetRun(ctx context.Context, id string) (model.JobRun, bool, error) {
	var run model.JobRun
	ok, err := s.get(ctx, prefixRun+id, &run)
	return run, ok, err
}

// ListRuns returns runs newest first.
func (s *Store) ListRuns(ctx context.Context) ([]model.JobRun, error) {
	runs, err := scanJSON[model.JobRun](ctx, s.kv, prefixRun)
	if err != nil {
		return nil, err
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	return runs, nil
}

func scoreKey(jobID string, at time.Time) string {
	return fmt.Sprintf("%s%s:%020d", prefixScore, jobID, at.UnixNano())
}

// AppendScore adds a record to the job's score history. Existing records are never rewritten.
func (s *Store) AppendScore(ctx context.Context, score model.JobScore) error {
	return s.put(ctx, scoreKey(score.JobID, score.ScoredAt), score)
}

// ListScores returns the job's score history, oldest first.
func (s *Store) ListScores(ctx context.Context, jobID string) ([]model.JobScore, error) {
	all, err := scanJSON[model.JobScore](ctx, s.kv, prefixScore+jobID+":")
	if err != nil {
		return nil, err
	}
	// Ids containing ':' can share a prefix with another id.
	out := all[:0]
	for _, sc := range all {
		if sc.JobID == jobID {
			out = append(out, sc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScoredAt.Before(out[j].ScoredAt) })
	return out, nil
}

func (s *Store) SeenIDs(ctx context.Context) (map[string]struct{}, error) {
	seen := make(map[string]struct{})
	err := s.kv.Scan(ctx, prefixSeen, func(key string, _ []byte) error {
		seen[strings.TrimPrefix(key, prefixSeen)] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, storageErr("loading seen set", err)
	}
	return seen, nil
}

// MarkSeen records jobID as ingested. Marking twice keeps the first timestamp.
func (s *Store) MarkSeen(ctx context.Context, jobID string) error {
	key := prefixSeen + jobID
	_, err := s.kv.Get(ctx, key)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return storageErr("checking seen "+jobID, err)
	}
	stamp, _ := s.now().UTC().MarshalText()
	if err := s.kv.Put(ctx, key, stamp); err != nil {
		return storageErr("marking seen "+jobID, err)
	}
	return nil
}

func (s *Store) Purge(ctx context.Context, scope model.PurgeScope) error {
	var prefixes []string
	switch scope {
	case model.PurgeCache:
		prefixes = []string{prefixScore, prefixSeen}
	case model.PurgeAll:
		prefixes = []string{prefixScore, prefixSeen, prefixJob, prefixRun, keySession}
	default:
		return model.NewError(model.StageStorage, model.KindDatabase, fmt.Sprintf("unknown purge scope %q", scope), nil)
	}
	for _, p := range prefixes {
		if _, err := s.kv.DeletePrefix(ctx, p); err != nil {
			return storageErr("purging "+p, err)
		}
	}
	return nil
}

func (s *Store) Stats(ctx context.Context) (model.StoreStats, error) {
	var st model.StoreStats
	counts := []struct {
		prefix string
		n      *int
	}{
		{prefixJob, &st.Jobs},
		{prefixRun, &st.Runs},
		{prefixScore, &st.Scores},
		{prefixSeen, &st.Seen},
	}
	for _, c := range counts {
		err := s.kv.Scan(ctx, c.prefix, func(string, []byte) error {
			*c.n++
			return nil
		})
		if err != nil {
			return st, storageErr("counting "+c.prefix, err)
		}
	}
	return st, nil
}

// storageErr classifies a backend failure into a storage error kind.
func storageErr(msg string, err error) error {
	var typed *model.Error
	if errors.As(err, &typed) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	kind := model.KindDatabase
	var pathErr *fs.PathError
	switch {
	case errors.Is(err, ErrDecrypt):
		kind = model.KindEncryption
	case errors.Is(err, os.ErrPermission):
		kind = model.KindPermission
	case errors.As(err, &pathErr):
		kind = model.KindFilesystem
	}
	return model.NewError(model.StageStorage, kind, msg, err)
}
