package filter

import (
	"strings"

	"github.com/PaterSantyago/agent-null-null-job/internal/model"
)

// CriteriaFilter applies the optional remote, seniority and employment filters
// of a JobCriteria. The site search does not honour all of them, so postings
// are re-checked locally. A job whose attribute is UNKNOWN always passes:
// scraped listings rarely carry these fields before extraction.
type CriteriaFilter struct {
	remote     model.RemotePolicy
	seniority  model.Seniority
	employment model.EmploymentType
	excluded   []string
}

// NewCriteriaFilter builds a filter from criteria. excludeTitles drops postings
// whose title contains any of the given words (case-insensitive).
func NewCriteriaFilter(criteria model.JobCriteria, excludeTitles []string) *CriteriaFilter {
	f := &CriteriaFilter{excluded: excludeTitles}
	if criteria.Remote != "" {
		f.remote = model.ParseRemotePolicy(string(criteria.Remote))
	}
	if criteria.Seniority != "" {
		f.seniority = model.ParseSeniority(string(criteria.Seniority))
	}
	if criteria.Employment != "" {
		f.employment = model.ParseEmploymentType(string(criteria.Employment))
	}
	return f
}

// Match returns true if the job is compatible with every configured filter.
func (f *CriteriaFilter) Match(job model.Job) bool {
	titleLower := strings.ToLower(job.Title)
	for _, kw := range f.excluded {
		if kw != "" && strings.Contains(titleLower, strings.ToLower(kw)) {
			return false
		}
	}

	if f.remote != "" && f.remote != model.RemoteUnknown {
		got := model.ParseRemotePolicy(string(job.Remote))
		if got != model.RemoteUnknown && got != f.remote {
			return false
		}
	}
	if f.seniority != "" && f.seniority != model.SeniorityUnknown {
		got := model.ParseSeniority(string(job.Seniority))
		if got != model.SeniorityUnknown && got != f.seniority {
			return false
		}
	}
	if f.employment != "" && f.employment != model.EmploymentUnknown {
		got := model.ParseEmploymentType(string(job.Employment))
		if got != model.EmploymentUnknown && got != f.employment {
			return false
		}
	}
	return true
}
