// Package ai turns posting text into structured jobs and rates jobs against
// the candidate profile through an OpenAI-compatible model.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"github.com/PaterSantyago/agent-null-null-job/internal/model"
)

// Ensure Service implements model.LLM.
var _ model.LLM = (*Service)(nil)

const (
	maxInputChars   = 12000
	maxTechStack    = 12
	maxDescription  = 1200
	systemExtractor = "You are a precise structured data extractor for job postings."
	systemRecruiter = "You are an experienced technical recruiter matching jobs to one candidate."
)

// Service implements model.LLM on top of an LLMProvider.
type Service struct {
	provider LLMProvider
	logger   *slog.Logger
}

// NewService creates the LLM service.
func NewService(provider LLMProvider, logger *slog.Logger) *Service {
	return &Service{provider: provider, logger: logger}
}

var extractionSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"properties": map[string]any{
		"title":       map[string]any{"type": "string"},
		"company":     map[string]any{"type": "string"},
		"location":    map[string]any{"type": "string"},
		"remote":      enumSchema("REMOTE", "HYBRID", "ONSITE", "UNKNOWN"),
		"seniority":   enumSchema("INTERN", "JUNIOR", "MID", "SENIOR", "LEAD", "PRINCIPAL", "UNKNOWN"),
		"employment":  enumSchema("FULL_TIME", "PART_TIME", "CONTRACT", "INTERNSHIP", "TEMPORARY", "UNKNOWN"),
		"posted_at":   map[string]any{"type": "string"},
		"salary":      map[string]any{"type": "string"},
		"languages":   stringArraySchema(),
		"tech_stack":  stringArraySchema(),
		"description": map[string]any{"type": "string"},
		"apply_url":   map[string]any{"type": "string"},
	},
	"required": []string{
		"title", "company", "location", "remote", "seniority", "employment",
		"posted_at", "salary", "languages", "tech_stack", "description", "apply_url",
	},
}

var scoreSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"properties": map[string]any{
		"score":     map[string]any{"type": "integer"},
		"rationale": map[string]any{"type": "string"},
		"gaps":      stringArraySchema(),
	},
	"required": []string{"score", "rationale", "gaps"},
}

var prefilterSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"properties": map[string]any{
		"relevant": map[string]any{"type": "boolean"},
		"reason":   map[string]any{"type": "string"},
	},
	"required": []string{"relevant", "reason"},
}

func enumSchema(values ...string) map[string]any {
	return map[string]any{"type": "string", "enum": values}
}

func stringArraySchema() map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
}

// rawJob is the JSON shape returned for extraction (matches extractionSchema).
type rawJob struct {
	Title       string   `json:"title"`
	Company     string   `json:"company"`
	Location    string   `json:"location"`
	Remote      string   `json:"remote"`
	Seniority   string   `json:"seniority"`
	Employment  string   `json:"employment"`
	PostedAt    string   `json:"posted_at"`
	Salary      string   `json:"salary"`
	Languages   []string `json:"languages"`
	TechStack   []string `json:"tech_stack"`
	Description string   `json:"description"`
	ApplyURL    string   `json:"apply_url"`
}

type rawScore struct {
	Score     *int     `json:"score"`
	Rationale string   `json:"rationale"`
	Gaps      []string `json:"gaps"`
}

type rawPrefilter struct {
	Relevant *bool  `json:"relevant"`
	Reason   string `json:"reason"`
}

// ExtractJobData asks the model for a structured job. The result carries no
// id, source or criteria; the extraction stage fills those from the raw item.
func (s *Service) ExtractJobData(ctx context.Context, rawText string) (model.Job, error) {
	prompt, err := render(model.StageExtract, ExtractTemplate, struct{ Text string }{Text: truncate(rawText, maxInputChars)})
	if err != nil {
		return model.Job{}, err
	}

	raw, err := s.provider.Complete(ctx, Completion{
		Stage:  model.StageExtract,
		Name:   "job_extraction",
		System: systemExtractor,
		Prompt: prompt,
		Schema: extractionSchema,
	})
	if err != nil {
		return model.Job{}, err
	}
	return parseJob(raw)
}

// ScoreJob rates job against profileText. Range checking is left to the caller.
func (s *Service) ScoreJob(ctx context.Context, job model.Job, profileText string) (model.ScoreResult, error) {
	prompt, err := render(model.StageScore, ScoreTemplate, jobPrompt{Profile: profileText, Job: job})
	if err != nil {
		return model.ScoreResult{}, err
	}

	raw, err := s.provider.Complete(ctx, Completion{
		Stage:  model.StageScore,
		Name:   "job_score",
		System: systemRecruiter,
		Prompt: prompt,
		Schema: scoreSchema,
	})
	if err != nil {
		return model.ScoreResult{}, err
	}

	var rs rawScore
	if err := json.Unmarshal([]byte(raw), &rs); err != nil {
		return model.ScoreResult{}, model.NewError(model.StageScore, model.KindSchemaValidation, "unmarshal score JSON", err)
	}
	if rs.Score == nil {
		return model.ScoreResult{}, model.NewError(model.StageScore, model.KindSchemaValidation, "score missing from response", nil)
	}
	gaps := rs.Gaps
	if gaps == nil {
		gaps = []string{}
	}
	return model.ScoreResult{Score: *rs.Score, Rationale: strings.TrimSpace(rs.Rationale), Gaps: gaps}, nil
}

// PrefilterJob is a cheap relevance check run before full scoring.
func (s *Service) PrefilterJob(ctx context.Context, job model.Job, profileText string) (bool, error) {
	job.Description = truncate(job.Description, 600)
	prompt, err := render(model.StageScore, PrefilterTemplate, jobPrompt{Profile: profileText, Job: job})
	if err != nil {
		return false, err
	}

	raw, err := s.provider.Complete(ctx, Completion{
		Stage:  model.StageScore,
		Name:   "job_prefilter",
		System: systemRecruiter,
		Prompt: prompt,
		Schema: prefilterSchema,
	})
	if err != nil {
		return false, err
	}

	var rp rawPrefilter
	if err := json.Unmarshal([]byte(raw), &rp); err != nil {
		return false, model.NewError(model.StageScore, model.KindSchemaValidation, "unmarshal prefilter JSON", err)
	}
	if rp.Relevant == nil {
		return false, model.NewError(model.StageScore, model.KindSchemaValidation, "relevant missing from response", nil)
	}
	if !*rp.Relevant {
		s.logger.Debug("prefilter verdict", "job_id", job.ID, "relevant", false, "reason", rp.Reason)
	}
	return *rp.Relevant, nil
}

type jobPrompt struct {
	Profile string
	Job     model.Job
}

func render(stage model.Stage, tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", model.NewError(stage, model.KindAPIError, "render prompt", err)
	}
	return buf.String(), nil
}

// parseJob deserializes the extraction response. Title and company are the
// only fields a usable job cannot do without.
func parseJob(raw string) (model.Job, error) {
	var rj rawJob
	if err := json.Unmarshal([]byte(raw), &rj); err != nil {
		return model.Job{}, model.NewError(model.StageExtract, model.KindSchemaValidation, "unmarshal job JSON", err)
	}
	if strings.TrimSpace(rj.Title) == "" || strings.TrimSpace(rj.Company) == "" {
		return model.Job{}, model.NewError(model.StageExtract, model.KindSchemaValidation, "title and company are required", nil)
	}

	job := model.Job{
		Title:       strings.TrimSpace(rj.Title),
		Company:     strings.TrimSpace(rj.Company),
		Location:    strings.TrimSpace(rj.Location),
		Remote:      model.ParseRemotePolicy(rj.Remote),
		Seniority:   model.ParseSeniority(rj.Seniority),
		Employment:  model.ParseEmploymentType(rj.Employment),
		PostedAt:    parsePostedAt(rj.PostedAt),
		Salary:      strings.TrimSpace(rj.Salary),
		Languages:   rj.Languages,
		TechStack:   rj.TechStack,
		Description: truncate(strings.TrimSpace(rj.Description), maxDescription),
		ApplyURL:    strings.TrimSpace(rj.ApplyURL),
	}
	if len(job.TechStack) > maxTechStack {
		job.TechStack = job.TechStack[:maxTechStack]
	}
	job.Normalize()
	return job, nil
}

func parsePostedAt(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
