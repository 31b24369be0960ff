package enrich

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/linnemanlabs/augur/internal/alert"
	"github.com/linnemanlabs/augur/internal/scan"
)

//go:embed prompt_template.txt
var defaultPromptTemplate string

// LoadTemplate parses the prompt template at path, or the built-in
// template when path is empty. A template that cannot be read or parsed
// is a startup error; the pipeline must not run without a prompt.
func LoadTemplate(path string) (*template.Template, error) {
	text := defaultPromptTemplate
	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from operator config
		if err != nil {
			return nil, fmt.Errorf("load prompt template: %w", err)
		}
		text = string(data)
	}
	tmpl, err := template.New("prompt").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}
	return tmpl, nil
}

type promptData struct {
	AlertJSON   string
	YaraMatches string
}

func renderPrompt(tmpl *template.Template, rec alert.Record, matches []scan.Match) (string, error) {
	alertJSON, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal alert: %w", err)
	}

	yara := "None"
	if len(matches) > 0 {
		data, err := json.MarshalIndent(matches, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal scan matches: %w", err)
		}
		yara = string(data)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, promptData{AlertJSON: string(alertJSON), YaraMatches: yara}); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return sb.String(), nil
}
