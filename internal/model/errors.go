package model

import (
	"errors"
	"fmt"
	"time"

	goerrors "github.com/go-errors/errors"
)

// HTTPError wraps an HTTP status code so retry logic can inspect it.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// Stage names the component an error originated in.
type Stage string

const (
	StageConfig  Stage = "config"
	StageAuth    Stage = "auth"
	StageScrape  Stage = "scrape"
	StageExtract Stage = "extract"
	StageScore   Stage = "score"
	StageStorage Stage = "storage"
	StageNotify  Stage = "notify"
	StageLock    Stage = "lock"
)

// Kind classifies an error within its stage.
type Kind string

const (
	KindConfigMissing Kind = "config-missing"
	KindConfigInvalid Kind = "config-invalid"

	KindAuthFailed     Kind = "auth-failed"
	KindSessionExpired Kind = "session-expired"
	KindUserCancelled  Kind = "user-cancelled"

	KindAuthRequired Kind = "auth-required"
	KindRateLimited  Kind = "rate-limited"
	KindCaptcha      Kind = "captcha-required"
	KindLayoutDrift  Kind = "layout-drift"
	KindNetwork      Kind = "network"
	KindTimeout      Kind = "timeout"
	KindUnknown      Kind = "unknown"

	KindAPIError         Kind = "api-error"
	KindInvalidResponse  Kind = "invalid-response"
	KindSchemaValidation Kind = "schema-validation-failed"
	KindTokenLimit       Kind = "token-limit-exceeded"

	KindDatabase   Kind = "database"
	KindEncryption Kind = "encryption"
	KindFilesystem Kind = "filesystem"
	KindPermission Kind = "permission"

	KindInvalidToken Kind = "invalid-token"
	KindChatNotFound Kind = "chat-not-found"

	KindLockHeld Kind = "lock-held"
)

// Error is the typed error value every stage produces: kind + message + optional cause.
type Error struct {
	Stage   Stage
	Kind    Kind
	Message string
	Err     error
	stack   []byte
}

// NewError builds a typed error, capturing the stack of the caller (or of err if it has one).
func NewError(stage Stage, kind Kind, message string, err error) *Error {
	var stack []byte
	var ge *goerrors.Error
	switch {
	case errors.As(err, &ge):
		stack = ge.Stack()
	case err != nil:
		stack = goerrors.Wrap(err, 2).Stack()
	default:
		stack = goerrors.New(message).Stack()
	}
	return &Error{Stage: stage, Kind: kind, Message: message, Err: err, stack: stack}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s/%s: %s: %v", e.Stage, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s/%s: %s", e.Stage, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StackTrace returns the stack captured when the error was built.
func (e *Error) StackTrace() []byte {
	return e.stack
}

// Wrap adds context to err. If err already carries a typed Error its stage and kind
// are preserved; otherwise a new Error with the given stage and kind is created.
func Wrap(stage Stage, kind Kind, message string, err error) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return fmt.Errorf("%s: %w", message, err)
	}
	return NewError(stage, kind, message, err)
}

// KindOf returns the kind of the first typed Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return KindUnknown
}

// StageOf returns the stage of the first typed Error in err's chain, or "".
func StageOf(err error) Stage {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Stage
	}
	return ""
}

// IsKind reports whether err's typed Error has the given kind.
func IsKind(err error, kind Kind) bool {
	var typed *Error
	return errors.As(err, &typed) && typed.Kind == kind
}
