package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/PaterSantyago/agent-null-null-job/internal/lock"
	"github.com/PaterSantyago/agent-null-null-job/internal/model"
	"github.com/PaterSantyago/agent-null-null-job/internal/ui"
)

// Process exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitConfig  = 10
	exitLocked  = 20
)

// exitCode maps an error onto the process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	if model.IsKind(err, model.KindLockHeld) {
		return exitLocked
	}
	switch model.StageOf(err) {
	case model.StageConfig, model.StageAuth:
		return exitConfig
	}
	if errors.Is(err, ui.ErrCancelled) {
		return exitConfig
	}
	return exitFailure
}

// hint suggests what the operator should do about err.
func hint(err error) string {
	var held *lock.HeldError
	if errors.As(err, &held) {
		return fmt.Sprintf("wait for pid %d to finish, or stop it if it is stuck", held.Holder.PID)
	}
	switch model.KindOf(err) {
	case model.KindConfigMissing:
		return "add the missing setting to config.yaml or .env"
	case model.KindConfigInvalid:
		return "fix config.yaml and try again"
	case model.KindSessionExpired, model.KindAuthRequired:
		return "session expired, re-run `jobagent auth --force`"
	case model.KindAuthFailed:
		return "run `jobagent auth` from a terminal and paste a fresh session cookie"
	case model.KindUserCancelled:
		return "login was cancelled; run `jobagent auth` when ready"
	case model.KindCaptcha:
		return "the site asked for a captcha; solve it in your browser, then run `jobagent auth --force`"
	case model.KindRateLimited:
		return "rate limited; wait a while before the next run"
	case model.KindLayoutDrift:
		return "the site layout changed; the scraper needs updating"
	case model.KindTokenLimit:
		return "the posting is too long for the model; try a model with a larger context"
	case model.KindAPIError, model.KindInvalidResponse, model.KindSchemaValidation:
		return "check ai.api_key, ai.model and your quota"
	case model.KindEncryption:
		return "storage.encryption_key does not match the one the store was written with"
	case model.KindPermission, model.KindFilesystem:
		return "check permissions on the data directory"
	case model.KindInvalidToken:
		return "check notification.bot_token or notification.webhook_url"
	case model.KindChatNotFound:
		return "check notification.chat_id and that the bot was added to the chat"
	}
	return ""
}

// report prints err and its hint and returns the exit code.
func report(w io.Writer, err error) int {
	fmt.Fprintf(w, "error: %v\n", err)
	if h := hint(err); h != "" {
		fmt.Fprintf(w, "hint: %s\n", h)
	}
	return exitCode(err)
}
