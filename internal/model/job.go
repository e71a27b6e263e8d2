package model

import (
	"strings"
	"time"
)

// RemotePolicy describes where the work happens.
type RemotePolicy string

const (
	RemoteRemote  RemotePolicy = "REMOTE"
	RemoteHybrid  RemotePolicy = "HYBRID"
	RemoteOnsite  RemotePolicy = "ONSITE"
	RemoteUnknown RemotePolicy = "UNKNOWN"
)

// Seniority is the experience level a posting targets.
type Seniority string

const (
	SeniorityIntern    Seniority = "INTERN"
	SeniorityJunior    Seniority = "JUNIOR"
	SeniorityMid       Seniority = "MID"
	SenioritySenior    Seniority = "SENIOR"
	SeniorityLead      Seniority = "LEAD"
	SeniorityPrincipal Seniority = "PRINCIPAL"
	SeniorityUnknown   Seniority = "UNKNOWN"
)

// EmploymentType is the contract form of a posting.
type EmploymentType string

const (
	EmploymentFullTime   EmploymentType = "FULL_TIME"
	EmploymentPartTime   EmploymentType = "PART_TIME"
	EmploymentContract   EmploymentType = "CONTRACT"
	EmploymentInternship EmploymentType = "INTERNSHIP"
	EmploymentTemporary  EmploymentType = "TEMPORARY"
	EmploymentUnknown    EmploymentType = "UNKNOWN"
)

var remotePolicies = []RemotePolicy{RemoteRemote, RemoteHybrid, RemoteOnsite, RemoteUnknown}

var seniorities = []Seniority{
	SeniorityIntern, SeniorityJunior, SeniorityMid, SenioritySenior,
	SeniorityLead, SeniorityPrincipal, SeniorityUnknown,
}

var employmentTypes = []EmploymentType{
	EmploymentFullTime, EmploymentPartTime, EmploymentContract,
	EmploymentInternship, EmploymentTemporary, EmploymentUnknown,
}

// ParseRemotePolicy maps free text ("remote", "On-site") onto a RemotePolicy.
// Anything unrecognised becomes RemoteUnknown.
func ParseRemotePolicy(s string) RemotePolicy {
	switch normalizeEnum(s) {
	case "ONSITE", "ON_SITE", "OFFICE":
		return RemoteOnsite
	}
	for _, p := range remotePolicies {
		if string(p) == normalizeEnum(s) {
			return p
		}
	}
	return RemoteUnknown
}

// ParseSeniority maps free text onto a Seniority, defaulting to SeniorityUnknown.
func ParseSeniority(s string) Seniority {
	switch normalizeEnum(s) {
	case "ENTRY", "ENTRY_LEVEL", "JUNIOR_LEVEL":
		return SeniorityJunior
	case "MID_LEVEL", "MIDDLE", "INTERMEDIATE":
		return SeniorityMid
	case "STAFF":
		return SeniorityPrincipal
	}
	for _, v := range seniorities {
		if string(v) == normalizeEnum(s) {
			return v
		}
	}
	return SeniorityUnknown
}

// ParseEmploymentType maps free text onto an EmploymentType, defaulting to EmploymentUnknown.
func ParseEmploymentType(s string) EmploymentType {
	switch normalizeEnum(s) {
	case "FULLTIME", "PERMANENT":
		return EmploymentFullTime
	case "PARTTIME":
		return EmploymentPartTime
	case "CONTRACTOR", "FREELANCE":
		return EmploymentContract
	}
	for _, v := range employmentTypes {
		if string(v) == normalizeEnum(s) {
			return v
		}
	}
	return EmploymentUnknown
}

func normalizeEnum(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	return s
}

// Job is a discovered posting. Scoring fields are attached after the scoring stage.
type Job struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Company     string         `json:"company"`
	Location    string         `json:"location"`
	Remote      RemotePolicy   `json:"remote"`
	Seniority   Seniority      `json:"seniority"`
	Employment  EmploymentType `json:"employment"`
	PostedAt    *time.Time     `json:"posted_at,omitempty"`
	Salary      string         `json:"salary,omitempty"`
	Languages   []string       `json:"languages"`
	TechStack   []string       `json:"tech_stack"`
	Description string         `json:"description"`
	ApplyURL    string         `json:"apply_url"`
	Source      string         `json:"source"`
	CriteriaID  string         `json:"criteria_id,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`

	Score     *int     `json:"score,omitempty"`
	Rationale string   `json:"rationale,omitempty"`
	Gaps      []string `json:"gaps,omitempty"`
}

// Normalize fills list fields with empty slices and unknown enum values with UNKNOWN.
func (j *Job) Normalize() {
	if j.Languages == nil {
		j.Languages = []string{}
	}
	if j.TechStack == nil {
		j.TechStack = []string{}
	}
	j.Remote = ParseRemotePolicy(string(j.Remote))
	j.Seniority = ParseSeniority(string(j.Seniority))
	j.Employment = ParseEmploymentType(string(j.Employment))
}

// WithScore returns a copy of j annotated with the given score result.
func (j Job) WithScore(r ScoreResult) Job {
	s := r.Score
	j.Score = &s
	j.Rationale = r.Rationale
	j.Gaps = append([]string{}, r.Gaps...)
	return j
}

// ScoreValue returns the attached score or -1 when the job is unscored.
func (j Job) ScoreValue() int {
	if j.Score == nil {
		return -1
	}
	return *j.Score
}

// JobCriteria is a named search configuration. Empty filters match anything.
type JobCriteria struct {
	ID         string         `json:"id" yaml:"id"`
	Label      string         `json:"label" yaml:"label"`
	Keywords   []string       `json:"keywords" yaml:"keywords"`
	Location   string         `json:"location" yaml:"location"`
	Remote     RemotePolicy   `json:"remote,omitempty" yaml:"remote"`
	Seniority  Seniority      `json:"seniority,omitempty" yaml:"seniority"`
	Employment EmploymentType `json:"employment,omitempty" yaml:"employment"`
	Enabled    bool           `json:"enabled" yaml:"enabled"`
}

// DisplayName returns the label, falling back to the id.
func (c JobCriteria) DisplayName() string {
	if c.Label != "" {
		return c.Label
	}
	return c.ID
}

// RawItem is unstructured scraped content handed to the extraction stage.
type RawItem struct {
	ID         string
	Content    string
	URL        string
	Timestamp  time.Time
	Source     string
	CriteriaID string

	// Description is the scraped description on its own, when known.
	Description string
}

// RawItemFromJob converts a scraped posting into extraction input.
func RawItemFromJob(j Job) RawItem {
	item := RawItem{
		ID:          j.ID,
		Content:     j.rawText(),
		URL:         j.ApplyURL,
		Source:      j.Source,
		CriteriaID:  j.CriteriaID,
		Timestamp:   j.CreatedAt,
		Description: j.Description,
	}
	if j.PostedAt != nil {
		item.Timestamp = *j.PostedAt
	}
	return item
}

func (j Job) rawText() string {
	var b strings.Builder
	for _, line := range [][2]string{
		{"Title", j.Title},
		{"Company", j.Company},
		{"Location", j.Location},
		{"Salary", j.Salary},
	} {
		if line[1] != "" {
			b.WriteString(line[0] + ": " + line[1] + "\n")
		}
	}
	if j.Description != "" {
		b.WriteString("\n" + j.Description)
	}
	return b.String()
}
