package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PaterSantyago/agent-null-null-job/internal/model"
)

// Ensure OpenAIProvider implements LLMProvider.
var _ LLMProvider = (*OpenAIProvider)(nil)

const defaultMaxTokens = 1500

// OpenAIProvider calls an OpenAI-compatible /chat/completions endpoint with structured outputs.
type OpenAIProvider struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAIProvider creates a provider targeting the OpenAI API.
func NewOpenAIProvider(baseURL, apiKey, model string, httpClient *http.Client) *OpenAIProvider {
	return &OpenAIProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: httpClient,
	}
}

// chatRequest mirrors the OpenAI /v1/chat/completions request body.
type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    int            `json:"temperature"`
	MaxTokens      int            `json:"max_tokens"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type       string         `json:"type"`
	JSONSchema jsonSchemaSpec `json:"json_schema"`
}

type jsonSchemaSpec struct {
	Name   string         `json:"name"`
	Strict bool           `json:"strict"`
	Schema map[string]any `json:"schema"`
}

type chatChoice struct {
	Message struct {
		Content string `json:"content"`
		Refusal string `json:"refusal,omitempty"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

// chatResponse mirrors the relevant fields of the OpenAI response.
type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *apiError    `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// Complete sends c to the model and returns the JSON string conforming to c.Schema.
// Failures are *model.Error tagged with c.Stage.
func (p *OpenAIProvider) Complete(ctx context.Context, c Completion) (string, error) {
	fail := func(kind model.Kind, msg string, err error) (string, error) {
		return "", model.NewError(c.Stage, kind, msg, err)
	}

	reqBody := chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: c.System},
			{Role: "user", Content: c.Prompt},
		},
		Temperature: 0,
		MaxTokens:   defaultMaxTokens,
		ResponseFormat: responseFormat{
			Type: "json_schema",
			JSONSchema: jsonSchemaSpec{
				Name:   c.Name,
				Strict: true,
				Schema: c.Schema,
			},
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fail(model.KindAPIError, "marshal llm request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return fail(model.KindAPIError, "create llm request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fail(model.KindTimeout, "llm request", err)
		}
		return fail(model.KindAPIError, "llm request", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(model.KindAPIError, "read llm response", err)
	}

	var chatResp chatResponse
	parseErr := json.Unmarshal(respBytes, &chatResp)

	if resp.StatusCode != http.StatusOK {
		return "", p.statusError(c.Stage, resp, chatResp.Error)
	}
	if parseErr != nil {
		return fail(model.KindInvalidResponse, "parse llm response", parseErr)
	}
	if chatResp.Error != nil {
		return fail(model.KindAPIError, fmt.Sprintf("llm error (%s): %s", chatResp.Error.Type, chatResp.Error.Message), nil)
	}
	if len(chatResp.Choices) == 0 {
		return fail(model.KindInvalidResponse, "llm returned no choices", nil)
	}

	choice := chatResp.Choices[0]
	switch {
	case choice.FinishReason == "length":
		return fail(model.KindTokenLimit, "llm output truncated", nil)
	case choice.Message.Refusal != "":
		return fail(model.KindInvalidResponse, "llm refused: "+choice.Message.Refusal, nil)
	case strings.TrimSpace(choice.Message.Content) == "":
		return fail(model.KindInvalidResponse, "llm returned empty content", nil)
	}
	return choice.Message.Content, nil
}

func (p *OpenAIProvider) statusError(stage model.Stage, resp *http.Response, apiErr *apiError) error {
	httpErr := &model.HTTPError{StatusCode: resp.StatusCode}
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
		httpErr.RetryAfter = time.Duration(secs) * time.Second
	}
	msg := fmt.Sprintf("llm returned HTTP %d", resp.StatusCode)
	if apiErr != nil && apiErr.Message != "" {
		msg += ": " + apiErr.Message
	}

	kind := model.KindAPIError
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		kind = model.KindRateLimited
	case apiErr != nil && apiErr.Code == "context_length_exceeded":
		kind = model.KindTokenLimit
	}
	return model.NewError(stage, kind, msg, httpErr)
}
