package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PaterSantyago/agent-null-null-job/internal/model"
)

// Ensure TelegramNotifier implements model.Notifier.
var _ model.Notifier = (*TelegramNotifier)(nil)

const defaultTelegramBaseURL = "https://api.telegram.org"

// TelegramNotifier posts messages to one chat through the Telegram Bot API.
type TelegramNotifier struct {
	baseURL    string
	token      string
	chatID     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewTelegramNotifier returns a notifier for chatID. An empty baseURL uses the public API.
func NewTelegramNotifier(baseURL, token, chatID string, httpClient *http.Client, logger *slog.Logger) *TelegramNotifier {
	if baseURL == "" {
		baseURL = defaultTelegramBaseURL
	}
	return &TelegramNotifier{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		chatID:     chatID,
		httpClient: httpClient,
		logger:     logger,
	}
}

func (t *TelegramNotifier) SendJobDigest(ctx context.Context, d model.Digest) error {
	return t.send(ctx, formatDigestHTML(d))
}

func (t *TelegramNotifier) SendJobAlert(ctx context.Context, job model.Job, score int) error {
	return t.send(ctx, formatAlertHTML(job, score))
}

func (t *TelegramNotifier) SendStatusUpdate(ctx context.Context, text string) error {
	return t.send(ctx, formatStatusHTML(text))
}

func (t *TelegramNotifier) SendErrorAlert(ctx context.Context, text string, fields map[string]string) error {
	return t.send(ctx, formatErrorHTML(text, fields))
}

type telegramMessage struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters,omitempty"`
}

// send posts text once, retrying a single time when Telegram asks us to back off.
func (t *TelegramNotifier) send(ctx context.Context, text string) error {
	body, err := json.Marshal(telegramMessage{
		ChatID:                t.chatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return model.NewError(model.StageNotify, model.KindAPIError, "marshal telegram payload", err)
	}

	retryAfter, err := t.post(ctx, body)
	if err == nil || retryAfter <= 0 {
		return err
	}

	t.logger.Warn("telegram rate limited, retrying", "retry_after", retryAfter)
	select {
	case <-ctx.Done():
		return model.NewError(model.StageNotify, model.KindRateLimited, "waiting for telegram rate limit", ctx.Err())
	case <-time.After(retryAfter):
	}
	_, err = t.post(ctx, body)
	return err
}

func (t *TelegramNotifier) post(ctx context.Context, body []byte) (time.Duration, error) {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, model.NewError(model.StageNotify, model.KindAPIError, "create telegram request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		// The URL embeds the bot token; keep it out of error messages.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return 0, model.NewError(model.StageNotify, model.KindNetwork, "post to telegram", err)
	}
	defer resp.Body.Close()

	var tr telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil && resp.StatusCode == http.StatusOK {
		return 0, model.NewError(model.StageNotify, model.KindAPIError, "decode telegram response", err)
	}
	if resp.StatusCode == http.StatusOK && tr.OK {
		return 0, nil
	}
	return telegramRetryAfter(tr), telegramError(resp.StatusCode, tr)
}

func telegramRetryAfter(tr telegramResponse) time.Duration {
	if tr.Parameters == nil || tr.Parameters.RetryAfter <= 0 {
		return 0
	}
	return time.Duration(tr.Parameters.RetryAfter) * time.Second
}

func telegramError(status int, tr telegramResponse) error {
	desc := tr.Description
	if desc == "" {
		desc = http.StatusText(status)
	}
	httpErr := &model.HTTPError{StatusCode: status, RetryAfter: telegramRetryAfter(tr), Err: errors.New(desc)}

	lower := strings.ToLower(desc)
	kind := model.KindAPIError
	switch {
	case strings.Contains(lower, "chat not found"):
		kind = model.KindChatNotFound
	case status == http.StatusUnauthorized, status == http.StatusNotFound:
		// Telegram answers 404 for an unknown bot token.
		kind = model.KindInvalidToken
	case status == http.StatusTooManyRequests:
		kind = model.KindRateLimited
	}
	return model.NewError(model.StageNotify, kind, "telegram sendMessage", httpErr)
}
