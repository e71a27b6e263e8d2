// Package adapter talks to the professional networking site over HTTP.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/PaterSantyago/agent-null-null-job/internal/model"
)

// Ensure LinkedInScraper implements model.Scraper.
var _ model.Scraper = (*LinkedInScraper)(nil)

const (
	defaultBaseURL   = "https://www.linkedin.com"
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"
	searchPath       = "/jobs-guest/jobs/api/seeMoreJobPostings/search"
	postingPath      = "/jobs-guest/jobs/api/jobPosting/"
	feedPath         = "/feed/"
	pageSize         = 25
	defaultMaxPages  = 4
	loginPath        = "/login"
)

const (
	// SessionCookieName is the cookie that carries a logged-in session.
	SessionCookieName = "li_at"

	// SourceName tags every job this adapter produces.
	SourceName = "linkedin"
)

// LoginURL is where the operator signs in before pasting the session cookie.
func LoginURL(baseURL string) string {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return strings.TrimRight(baseURL, "/") + loginPath
}

// CookiePrompt asks the operator for the session cookie of a logged-in
// browser. It must honor ctx cancellation.
type CookiePrompt func(ctx context.Context) (string, error)

// Options configures a LinkedInScraper. Zero values take defaults.
type Options struct {
	BaseURL      string
	UserAgent    string
	SessionTTL   time.Duration
	LoginTimeout time.Duration
	MinDelay     time.Duration
	MaxPages     int
}

// LinkedInScraper searches the public job board and fetches posting
// details, sending the operator's session cookie with every request.
type LinkedInScraper struct {
	opts   Options
	client *http.Client
	// probe does not follow redirects, so a bounce to the login wall is visible.
	probe  *http.Client
	prompt CookiePrompt
	now    model.Clock
	logger *slog.Logger

	mu      sync.Mutex
	current *model.AuthSession
	lastReq time.Time
}

// NewLinkedInScraper creates the scraper. prompt is only used by Login.
func NewLinkedInScraper(opts Options, client *http.Client, prompt CookiePrompt, now model.Clock, logger *slog.Logger) *LinkedInScraper {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 7 * 24 * time.Hour
	}
	if opts.LoginTimeout <= 0 {
		opts.LoginTimeout = 5 * time.Minute
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = defaultMaxPages
	}
	if now == nil {
		now = time.Now
	}
	probe := *client
	probe.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	return &LinkedInScraper{opts: opts, client: client, probe: &probe, prompt: prompt, now: now, logger: logger}
}

// CheckAuth reports whether the session from the last Login is still accepted.
func (s *LinkedInScraper) CheckAuth(ctx context.Context) (bool, error) {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()
	if current == nil {
		return false, nil
	}
	return s.IsLoggedIn(ctx, *current)
}

// Login waits up to the login timeout for the operator to paste the
// session cookie, then verifies it against the site.
func (s *LinkedInScraper) Login(ctx context.Context) (model.AuthSession, error) {
	if s.prompt == nil {
		return model.AuthSession{}, model.NewError(model.StageAuth, model.KindAuthFailed, "interactive login unavailable", nil)
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.LoginTimeout)
	defer cancel()

	raw, err := s.prompt(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return model.AuthSession{}, model.NewError(model.StageAuth, model.KindAuthFailed,
				fmt.Sprintf("login timed out after %s", s.opts.LoginTimeout), err)
		}
		return model.AuthSession{}, model.Wrap(model.StageAuth, model.KindUserCancelled, "login prompt", err)
	}
	value := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), SessionCookieName+"="))
	if value == "" {
		return model.AuthSession{}, model.NewError(model.StageAuth, model.KindUserCancelled, "no session cookie entered", nil)
	}

	now := s.now()
	session := model.AuthSession{
		ID:        uuid.NewString(),
		Cookies:   []string{SessionCookieName + "=" + value},
		UserAgent: s.opts.UserAgent,
		CreatedAt: now,
		ExpiresAt: now.Add(s.opts.SessionTTL),
	}
	ok, err := s.IsLoggedIn(ctx, session)
	if err != nil {
		return model.AuthSession{}, err
	}
	if !ok {
		return model.AuthSession{}, model.NewError(model.StageAuth, model.KindAuthFailed, "session cookie rejected by site", nil)
	}

	s.mu.Lock()
	s.current = &session
	s.mu.Unlock()
	return session, nil
}

// IsLoggedIn loads the feed without following redirects: 200 means the
// cookie is accepted, a redirect to the login or auth wall means it is not.
func (s *LinkedInScraper) IsLoggedIn(ctx context.Context, session model.AuthSession) (bool, error) {
	resp, err := s.do(ctx, s.probe, s.opts.BaseURL+feedPath, session)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		loc := resp.Header.Get("Location")
		if strings.Contains(loc, "checkpoint") {
			return false, model.NewError(model.StageScrape, model.KindCaptcha, "security checkpoint on session check", nil)
		}
		return false, nil
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return false, nil
	default:
		return false, statusError(resp, "session check")
	}
}

// ScrapeJobs pages through search results for criteria and fetches each
// posting's details. Postings whose details cannot be fetched are returned
// without a description unless the site is throttling or blocking us.
func (s *LinkedInScraper) ScrapeJobs(ctx context.Context, criteria model.JobCriteria, session model.AuthSession) ([]model.Job, error) {
	var jobs []model.Job
	seen := make(map[string]bool)

	for page := 0; page < s.opts.MaxPages; page++ {
		cards, err := s.searchPage(ctx, criteria, session, page*pageSize)
		if err != nil {
			return jobs, err
		}
		if len(cards) == 0 {
			break
		}

		for _, c := range cards {
			if seen[c.postingID] {
				continue
			}
			seen[c.postingID] = true

			job := c.toJob(criteria)
			if err := s.fillDetails(ctx, &job, c.postingID, session); err != nil {
				if k := model.KindOf(err); k == model.KindRateLimited || k == model.KindCaptcha || k == model.KindAuthRequired {
					return jobs, err
				}
				s.logger.Warn("posting details unavailable", "posting_id", c.postingID, "error", err)
			}
			jobs = append(jobs, job)
		}
		if len(cards) < pageSize {
			break
		}
	}

	s.logger.Info("scrape complete", "criteria", criteria.ID, "jobs", len(jobs))
	return jobs, nil
}

func (s *LinkedInScraper) searchPage(ctx context.Context, criteria model.JobCriteria, session model.AuthSession, start int) ([]card, error) {
	q := searchQuery(criteria)
	q.Set("start", strconv.Itoa(start))

	resp, err := s.do(ctx, s.client, s.opts.BaseURL+searchPath+"?"+q.Encode(), session)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkLanding(resp); err != nil {
		return nil, err
	}
	// The board answers 400 once start runs past the last result.
	if resp.StatusCode == http.StatusBadRequest && start > 0 {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp, "job search")
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, model.NewError(model.StageScrape, model.KindLayoutDrift, "parse search results", err)
	}
	return parseCards(doc)
}

func (s *LinkedInScraper) fillDetails(ctx context.Context, job *model.Job, postingID string, session model.AuthSession) error {
	resp, err := s.do(ctx, s.client, s.opts.BaseURL+postingPath+postingID, session)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkLanding(resp); err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return statusError(resp, "posting "+postingID)
	}
	doc, err := html.Parse(resp.Body)
	if err != nil {
		return model.NewError(model.StageScrape, model.KindLayoutDrift, "parse posting "+postingID, err)
	}
	applyDetails(job, doc)
	return nil
}

// do sends a GET carrying the session, spacing requests by MinDelay.
func (s *LinkedInScraper) do(ctx context.Context, client *http.Client, rawURL string, session model.AuthSession) (*http.Response, error) {
	if err := s.pace(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, model.NewError(model.StageScrape, model.KindUnknown, "create request", err)
	}
	ua := session.UserAgent
	if ua == "" {
		ua = s.opts.UserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if len(session.Cookies) > 0 {
		req.Header.Set("Cookie", strings.Join(session.Cookies, "; "))
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, model.NewError(model.StageScrape, model.KindTimeout, "request timed out", err)
		}
		return nil, model.NewError(model.StageScrape, model.KindNetwork, "request failed", err)
	}
	return resp, nil
}

func (s *LinkedInScraper) pace(ctx context.Context) error {
	if s.opts.MinDelay <= 0 {
		return nil
	}
	s.mu.Lock()
	wait := s.opts.MinDelay - time.Since(s.lastReq)
	s.lastReq = time.Now().Add(max(wait, 0))
	s.mu.Unlock()
	if wait <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return model.NewError(model.StageScrape, model.KindTimeout, "waiting between requests", ctx.Err())
	case <-time.After(wait):
		return nil
	}
}

// checkLanding detects a followed redirect onto the login wall or a security checkpoint.
func checkLanding(resp *http.Response) error {
	if resp.Request == nil || resp.Request.URL == nil {
		return nil
	}
	p := resp.Request.URL.Path
	switch {
	case strings.Contains(p, "/checkpoint"):
		return model.NewError(model.StageScrape, model.KindCaptcha, "redirected to security checkpoint", nil)
	case strings.Contains(p, "/authwall"), strings.HasPrefix(p, "/login"), strings.HasPrefix(p, "/uas/login"):
		return model.NewError(model.StageScrape, model.KindAuthRequired, "redirected to login", nil)
	}
	return nil
}

var (
	remoteFilter     = map[model.RemotePolicy]string{model.RemoteOnsite: "1", model.RemoteRemote: "2", model.RemoteHybrid: "3"}
	seniorityFilter  = map[model.Seniority]string{model.SeniorityIntern: "1", model.SeniorityJunior: "2", model.SeniorityMid: "3", model.SenioritySenior: "4", model.SeniorityLead: "5", model.SeniorityPrincipal: "6"}
	employmentFilter = map[model.EmploymentType]string{model.EmploymentFullTime: "F", model.EmploymentPartTime: "P", model.EmploymentContract: "C", model.EmploymentTemporary: "T", model.EmploymentInternship: "I"}
)

func searchQuery(c model.JobCriteria) url.Values {
	q := url.Values{}
	q.Set("keywords", strings.Join(c.Keywords, " "))
	if c.Location != "" {
		q.Set("location", c.Location)
	}
	if v, ok := remoteFilter[c.Remote]; ok {
		q.Set("f_WT", v)
	}
	if v, ok := seniorityFilter[c.Seniority]; ok {
		q.Set("f_E", v)
	}
	if v, ok := employmentFilter[c.Employment]; ok {
		q.Set("f_JT", v)
	}
	q.Set("sortBy", "DD")
	return q
}

// card is one search result before details are fetched.
type card struct {
	postingID string
	title     string
	company   string
	location  string
	link      string
	postedAt  *time.Time
}

func (c card) toJob(criteria model.JobCriteria) model.Job {
	remote := remoteFromLocation(c.location)
	if remote == model.RemoteUnknown && criteria.Remote != "" {
		remote = criteria.Remote
	}
	job := model.Job{
		ID:         "li-" + c.postingID,
		Title:      c.title,
		Company:    c.company,
		Location:   c.location,
		Remote:     remote,
		PostedAt:   c.postedAt,
		ApplyURL:   c.link,
		Source:     SourceName,
		CriteriaID: criteria.ID,
	}
	job.Normalize()
	return job
}

func parseCards(doc *html.Node) ([]card, error) {
	nodes := findAll(doc, func(n *html.Node) bool {
		return strings.HasPrefix(attr(n, "data-entity-urn"), "urn:li:jobPosting:")
	})
	items := findAll(doc, byTag("li"))
	if len(nodes) == 0 && len(items) > 0 {
		return nil, model.NewError(model.StageScrape, model.KindLayoutDrift,
			fmt.Sprintf("found %d result items but no job cards", len(items)), nil)
	}

	cards := make([]card, 0, len(nodes))
	for _, n := range nodes {
		c := card{
			postingID: strings.TrimPrefix(attr(n, "data-entity-urn"), "urn:li:jobPosting:"),
			title:     textOf(findFirst(n, byClass("base-search-card__title"))),
			company:   textOf(findFirst(n, byClass("base-search-card__subtitle"))),
			location:  textOf(findFirst(n, byClass("job-search-card__location"))),
		}
		if a := findFirst(n, byClass("base-card__full-link")); a != nil {
			c.link = cleanLink(attr(a, "href"))
		}
		if t := findFirst(n, byTag("time")); t != nil {
			c.postedAt = parseDate(attr(t, "datetime"))
		}
		if c.title == "" {
			return nil, model.NewError(model.StageScrape, model.KindLayoutDrift, "job card without title: "+c.postingID, nil)
		}
		cards = append(cards, c)
	}
	return cards, nil
}

func applyDetails(job *model.Job, doc *html.Node) {
	if d := findFirst(doc, byClass("show-more-less-html__markup")); d != nil {
		job.Description = textOf(d)
	}
	for _, item := range findAll(doc, byClass("description__job-criteria-item")) {
		label := strings.ToLower(textOf(findFirst(item, byClass("description__job-criteria-subheader"))))
		value := textOf(findFirst(item, byClass("description__job-criteria-text")))
		switch label {
		case "seniority level":
			job.Seniority = parseSeniorityLabel(value)
		case "employment type":
			job.Employment = model.ParseEmploymentType(value)
		}
	}
	if s := findFirst(doc, byClass("salary")); s != nil {
		job.Salary = textOf(s)
	}
}

func parseSeniorityLabel(label string) model.Seniority {
	switch strings.ToLower(label) {
	case "internship":
		return model.SeniorityIntern
	case "entry level":
		return model.SeniorityJunior
	case "associate":
		return model.SeniorityMid
	case "mid-senior level":
		return model.SenioritySenior
	case "director":
		return model.SeniorityLead
	case "executive":
		return model.SeniorityPrincipal
	}
	return model.ParseSeniority(label)
}

func remoteFromLocation(loc string) model.RemotePolicy {
	l := strings.ToLower(loc)
	switch {
	case strings.Contains(l, "(remote)"), l == "remote":
		return model.RemoteRemote
	case strings.Contains(l, "(hybrid)"):
		return model.RemoteHybrid
	case strings.Contains(l, "(on-site)"):
		return model.RemoteOnsite
	}
	return model.RemoteUnknown
}

// cleanLink drops tracking parameters from a posting link.
func cleanLink(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

func parseDate(s string) *time.Time {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &t
}
