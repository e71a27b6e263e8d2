package model

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobRun_TransitionsAreMonotonic(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	run := NewJobRun("r1", "c1", now)
	require.Equal(t, RunRunning, run.Status)

	assert.True(t, run.Fail(now.Add(time.Minute), errors.New("boom")))
	assert.Equal(t, RunFailed, run.Status)
	assert.Equal(t, []string{"boom"}, run.Errors)

	assert.False(t, run.Complete(now.Add(2*time.Minute)), "terminal run must not transition")
	assert.Equal(t, RunFailed, run.Status)
	assert.Equal(t, now.Add(time.Minute), *run.CompletedAt)
}

func TestJobScore_FreshFor(t *testing.T) {
	now := time.Now()
	s := JobScore{ProfileVersion: "v2", ScoredAt: now.Add(-23 * time.Hour)}

	assert.True(t, s.FreshFor("v2", now, 24*time.Hour))
	assert.False(t, s.FreshFor("v1", now, 24*time.Hour))
	assert.False(t, s.FreshFor("v2", now.Add(2*time.Hour), 24*time.Hour))
}

func TestParseEnums(t *testing.T) {
	tests := []struct {
		in   string
		want RemotePolicy
	}{
		{"remote", RemoteRemote},
		{"On-site", RemoteOnsite},
		{"Hybrid", RemoteHybrid},
		{"", RemoteUnknown},
		{"moon base", RemoteUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseRemotePolicy(tt.in), tt.in)
	}
	assert.Equal(t, SenioritySenior, ParseSeniority("senior"))
	assert.Equal(t, SeniorityJunior, ParseSeniority("Entry level"))
	assert.Equal(t, EmploymentFullTime, ParseEmploymentType("full-time"))
	assert.Equal(t, EmploymentContract, ParseEmploymentType("freelance"))
}

func TestJob_NormalizeFillsEmptyLists(t *testing.T) {
	j := Job{ID: "1", Remote: "remote"}
	j.Normalize()

	assert.NotNil(t, j.Languages)
	assert.NotNil(t, j.TechStack)
	assert.Equal(t, RemoteRemote, j.Remote)
	assert.Equal(t, SeniorityUnknown, j.Seniority)
	assert.Equal(t, -1, j.ScoreValue())
}

func TestWrap_PreservesTypedKind(t *testing.T) {
	base := NewError(StageStorage, KindDatabase, "write failed", errors.New("disk full"))
	wrapped := Wrap(StageAuth, KindAuthFailed, "persisting session", base)

	assert.Equal(t, KindDatabase, KindOf(wrapped))
	assert.Equal(t, StageStorage, StageOf(wrapped))
	assert.True(t, errors.Is(wrapped, base))

	plain := Wrap(StageScrape, KindNetwork, "fetch", fmt.Errorf("dial tcp"))
	assert.Equal(t, KindNetwork, KindOf(plain))
	assert.NotEmpty(t, plain.(*Error).StackTrace())

	assert.Nil(t, Wrap(StageScrape, KindNetwork, "fetch", nil))
	assert.Equal(t, KindUnknown, KindOf(errors.New("untyped")))
}
