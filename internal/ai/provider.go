package ai

import (
	"context"

	"github.com/PaterSantyago/agent-null-null-job/internal/model"
)

// Completion is one structured-output request to the model.
type Completion struct {
	// Stage tags errors with the pipeline stage that asked.
	Stage  model.Stage
	Name   string
	System string
	Prompt string
	Schema map[string]any
}

// LLMProvider sends a prompt to an LLM and returns the raw JSON text response.
// Used only by Service; not exported to the rest of the system.
type LLMProvider interface {
	Complete(ctx context.Context, c Completion) (string, error)
}
