// Package llm implements session.Engine on OpenAI-compatible chat APIs,
// including local servers such as llama.cpp's llama-server.
package llm

import (
	"fmt"
	"net/http"

	"voxchat/internal/session"
)

const (
	BackendOpenAI = "openai"
	BackendCompat = "compat"
)

type Config struct {
	Backend      string
	BaseURL      string // empty = api.openai.com
	APIKey       string
	Model        string
	SystemPrompt string
	HTTPClient   *http.Client
}

// New builds the engine named by cfg.Backend.
func New(cfg Config) (session.Engine, error) {
	switch cfg.Backend {
	case BackendOpenAI, "":
		return NewOpenAI(cfg), nil
	case BackendCompat:
		return NewCompat(cfg), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
