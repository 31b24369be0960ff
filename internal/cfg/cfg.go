package cfg

import (
	"errors"
	"flag"
	"fmt"
)

// providers lists the accepted LLM provider names.
var providers = map[string]bool{
	"ollama": true,
	"claude": true,
	"openai": true,
	"gemini": true,
}

// Config adds service-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	APIToken              string

	Provider        string
	Model           string
	OllamaEndpoint  string
	AnthropicAPIKey string
	OpenAIAPIKey    string
	GeminiAPIKey    string

	AlertLogPath       string
	SingleShot         bool
	EnrichedOutputPath string
	DeadLetterPath     string
	PromptTemplatePath string
	ScanRulesDir       string

	IndexURL      string
	IndexUser     string
	IndexPass     string
	IndexName     string
	IndexCABundle string

	DatabaseURL string
	RedisAddr   string

	SlackWebhookURL    string
	SlackRiskThreshold int
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token for the enrichment API")

	fs.StringVar(&c.Provider, "llm-provider", "ollama", "LLM provider: ollama, claude, openai, or gemini")
	fs.StringVar(&c.Model, "llm-model", "llama3", "model name to request from the provider")
	fs.StringVar(&c.OllamaEndpoint, "ollama-endpoint", "http://localhost:11434", "Ollama server endpoint")
	fs.StringVar(&c.AnthropicAPIKey, "anthropic-api-key", "", "API key for the claude provider")
	fs.StringVar(&c.OpenAIAPIKey, "openai-api-key", "", "API key for the openai provider")
	fs.StringVar(&c.GeminiAPIKey, "gemini-api-key", "", "API key for the gemini provider")

	fs.StringVar(&c.AlertLogPath, "alert-log-path", "/var/ossec/logs/alerts/alerts.json", "alert stream to tail")
	fs.BoolVar(&c.SingleShot, "single-shot", false, "treat the alert file as one JSON document and exit after it")
	fs.StringVar(&c.EnrichedOutputPath, "enriched-output-path", "llm_enriched_alerts.json", "NDJSON journal of enriched documents")
	fs.StringVar(&c.DeadLetterPath, "dead-letter-path", "dead_letter_queue.jsonl", "NDJSON file for documents the index refused")
	fs.StringVar(&c.PromptTemplatePath, "prompt-template-path", "", "prompt template file (empty = built-in template)")
	fs.StringVar(&c.ScanRulesDir, "scan-rules-dir", "", "directory of YAML pattern-scan rules (empty = no scanning)")

	fs.StringVar(&c.IndexURL, "elasticsearch-url", "https://localhost:9200", "search index base URL")
	fs.StringVar(&c.IndexUser, "elasticsearch-user", "", "search index basic auth username")
	fs.StringVar(&c.IndexPass, "elasticsearch-pass", "", "search index basic auth password")
	fs.StringVar(&c.IndexName, "enriched-index", "wazuh-enriched-alerts", "search index name for enriched documents")
	fs.StringVar(&c.IndexCABundle, "elasticsearch-ca-bundle", "", "PEM bundle for the index TLS chain (empty = no verification)")

	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL for durable dedup (empty = in-memory)")
	fs.StringVar(&c.RedisAddr, "redis-addr", "", "Redis address for shared dedup (empty = in-memory)")

	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for high-risk notifications")
	fs.IntVar(&c.SlackRiskThreshold, "slack-risk-threshold", 80, "minimum risk score that triggers a Slack notification (0..100)")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	if c.APIToken == "" {
		errs = append(errs, errors.New("API_TOKEN is required"))
	}

	if !providers[c.Provider] {
		errs = append(errs, fmt.Errorf("invalid LLM_PROVIDER %q (must be ollama, claude, openai, or gemini)", c.Provider))
	}
	if c.Model == "" {
		errs = append(errs, errors.New("LLM_MODEL is required"))
	}

	// Each provider needs its own credentials or endpoint
	switch c.Provider {
	case "ollama":
		if c.OllamaEndpoint == "" {
			errs = append(errs, errors.New("OLLAMA_ENDPOINT is required for the ollama provider"))
		}
	case "claude":
		if c.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is required for the claude provider"))
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai provider"))
		}
	case "gemini":
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required for the gemini provider"))
		}
	}

	if c.AlertLogPath == "" {
		errs = append(errs, errors.New("ALERT_LOG_PATH is required"))
	}
	if c.EnrichedOutputPath == "" {
		errs = append(errs, errors.New("ENRICHED_OUTPUT_PATH is required"))
	}
	if c.DeadLetterPath == "" {
		errs = append(errs, errors.New("DEAD_LETTER_PATH is required"))
	}

	if c.IndexURL == "" {
		errs = append(errs, errors.New("ELASTICSEARCH_URL is required"))
	}
	if c.IndexName == "" {
		errs = append(errs, errors.New("ENRICHED_INDEX is required"))
	}

	// One dedup backend at a time
	if c.DatabaseURL != "" && c.RedisAddr != "" {
		errs = append(errs, errors.New("DATABASE_URL and REDIS_ADDR are mutually exclusive"))
	}

	if c.SlackRiskThreshold < 0 || c.SlackRiskThreshold > 100 {
		errs = append(errs, fmt.Errorf("invalid SLACK_RISK_THRESHOLD %d (must be 0..100)", c.SlackRiskThreshold))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
