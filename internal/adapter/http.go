package adapter

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/PaterSantyago/agent-null-null-job/internal/model"
)

// statusBotDetected is LinkedIn's non-standard answer to suspected automation.
const statusBotDetected = 999

// parseRetryAfter parses the Retry-After header value into a duration.
// Supports seconds format (e.g. "120"). Returns zero if absent or unparseable.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// statusError maps a non-200 response onto a typed scrape error. The
// *model.HTTPError in the chain lets the retry decorator inspect the status.
func statusError(resp *http.Response, what string) error {
	httpErr := &model.HTTPError{
		StatusCode: resp.StatusCode,
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}
	kind := model.KindNetwork
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		kind = model.KindRateLimited
	case resp.StatusCode == statusBotDetected:
		kind = model.KindCaptcha
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		kind = model.KindAuthRequired
	case resp.StatusCode < 500:
		kind = model.KindUnknown
	}
	return model.NewError(model.StageScrape, kind, fmt.Sprintf("%s: unexpected status %d", what, resp.StatusCode), httpErr)
}
