// Package scan matches alert records against rule files of regular
// expression patterns, producing the match context attached to enriched
// documents. A scan never fails: rule problems surface at load time, and
// a nil Scanner simply matches nothing.
package scan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/linnemanlabs/augur/internal/alert"
)

// Match is one rule hit against an alert.
type Match struct {
	Rule string         `json:"rule"`
	Tags []string       `json:"tags"`
	Meta map[string]any `json:"meta"`
}

// Scanner holds a compiled rule set.
type Scanner struct {
	rules []compiledRule
}

type compiledRule struct {
	name     string
	tags     []string
	meta     map[string]any
	patterns []*regexp.Regexp
}

type ruleFile struct {
	Rules []struct {
		Name     string         `yaml:"name"`
		Tags     []string       `yaml:"tags"`
		Meta     map[string]any `yaml:"meta"`
		Patterns []string       `yaml:"patterns"`
	} `yaml:"rules"`
}

// Load compiles every .yml/.yaml rule file in dir. A missing or empty
// directory yields an empty scanner; a malformed rule file is an error.
func Load(dir string) (*Scanner, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return &Scanner{}, nil
		}
		return nil, fmt.Errorf("read rules dir: %w", err)
	}

	s := &Scanner{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yml" && ext != ".yaml" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from operator config
		if err != nil {
			return nil, fmt.Errorf("read rule file %s: %w", e.Name(), err)
		}
		var rf ruleFile
		if err := yaml.Unmarshal(data, &rf); err != nil {
			return nil, fmt.Errorf("parse rule file %s: %w", e.Name(), err)
		}
		for _, r := range rf.Rules {
			if r.Name == "" {
				return nil, fmt.Errorf("rule file %s: rule without a name", e.Name())
			}
			cr := compiledRule{name: r.Name, tags: r.Tags, meta: r.Meta}
			for _, p := range r.Patterns {
				re, err := regexp.Compile(p)
				if err != nil {
					return nil, fmt.Errorf("rule %s: bad pattern %q: %w", r.Name, p, err)
				}
				cr.patterns = append(cr.patterns, re)
			}
			s.rules = append(s.rules, cr)
		}
	}
	return s, nil
}

// Len reports the number of loaded rules.
func (s *Scanner) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

// Matches scans the serialized record against every rule. It never returns
// nil so downstream encoding always sees a list.
func (s *Scanner) Matches(r alert.Record) []Match {
	matches := []Match{}
	if s == nil || len(s.rules) == 0 {
		return matches
	}

	data, err := json.Marshal(r)
	if err != nil {
		return matches
	}
	body := string(data)

	for _, rule := range s.rules {
		for _, re := range rule.patterns {
			if re.MatchString(body) {
				tags := rule.tags
				if tags == nil {
					tags = []string{}
				}
				meta := rule.meta
				if meta == nil {
					meta = map[string]any{}
				}
				matches = append(matches, Match{Rule: rule.name, Tags: tags, Meta: meta})
				break
			}
		}
	}
	return matches
}

// Names lists loaded rule names, mainly for startup logging.
func (s *Scanner) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.rules))
	for _, r := range s.rules {
		names = append(names, r.name)
	}
	return names
}

// String summarizes the scanner for log lines.
func (s *Scanner) String() string {
	return fmt.Sprintf("scan.Scanner(%s)", strings.Join(s.Names(), ","))
}
