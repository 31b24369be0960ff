package enrich

import (
	"fmt"
	"text/template"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/augur/internal/llm/claude"
	"github.com/linnemanlabs/augur/internal/llm/gemini"
	"github.com/linnemanlabs/augur/internal/llm/ollama"
	"github.com/linnemanlabs/augur/internal/llm/openai"
	"github.com/linnemanlabs/augur/internal/scan"
)

// Config selects and authenticates an LLM backend.
type Config struct {
	Provider        string
	Model           string
	OllamaEndpoint  string
	AnthropicAPIKey string
	OpenAIAPIKey    string
	GeminiAPIKey    string
}

// New builds the Provider for the configured backend. Unknown provider
// names are a startup error.
func New(cfg Config, tmpl *template.Template, scanner *scan.Scanner, logger log.Logger, hooks Hooks) (*Harness, error) {
	var gen Generator
	switch cfg.Provider {
	case "ollama":
		gen = ollama.New(cfg.OllamaEndpoint)
	case "claude":
		gen = claude.New(cfg.AnthropicAPIKey)
	case "openai":
		gen = openai.New(cfg.OpenAIAPIKey, "")
	case "gemini":
		gen = gemini.New(cfg.GeminiAPIKey, "")
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	return NewHarness(gen, cfg.Model, tmpl, scanner, logger, hooks), nil
}
