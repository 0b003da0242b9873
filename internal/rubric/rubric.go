// Package rubric loads the analysis checks, the scoring criteria and the
// optional score overrides from disk.
package rubric

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ETAnderson/grader/internal/domain"
)

type checksFile struct {
	Checks []domain.CheckSpec `yaml:"checks"`
}

type criterionYAML struct {
	ID     string   `yaml:"id"`
	Name   string   `yaml:"name"`
	Weight *float64 `yaml:"weight"`
	Prompt string   `yaml:"prompt"`
}

type criteriaFile struct {
	Criteria []criterionYAML `yaml:"criteria"`
}

// LoadChecks reads the ordered check list from a YAML file with a top-level
// "checks" key.
func LoadChecks(path string) ([]domain.CheckSpec, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rubric %s: %w", path, err)
	}
	return ParseChecks(b)
}

func ParseChecks(b []byte) ([]domain.CheckSpec, error) {
	var f checksFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse rubric: %w", err)
	}
	if len(f.Checks) == 0 {
		return nil, fmt.Errorf("rubric has no checks")
	}
	return f.Checks, nil
}

// LoadCriteria reads the ordered scoring criteria from a YAML file with a
// top-level "criteria" key. Weight defaults to 1 and name to the id.
func LoadCriteria(path string) ([]domain.Criterion, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read score rubric %s: %w", path, err)
	}
	return ParseCriteria(b)
}

func ParseCriteria(b []byte) ([]domain.Criterion, error) {
	var f criteriaFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse score rubric: %w", err)
	}

	out := make([]domain.Criterion, 0, len(f.Criteria))
	seen := make(map[string]bool, len(f.Criteria))
	for i, c := range f.Criteria {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			return nil, fmt.Errorf("criterion %d: id required", i+1)
		}
		if seen[id] {
			return nil, fmt.Errorf("criterion %q: duplicate id", id)
		}
		seen[id] = true

		w := 1.0
		if c.Weight != nil {
			w = *c.Weight
		}
		if w < 0 {
			return nil, fmt.Errorf("criterion %q: weight must not be negative", id)
		}
		name := c.Name
		if name == "" {
			name = id
		}
		out = append(out, domain.Criterion{ID: id, Name: name, Weight: w, Prompt: c.Prompt})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("score rubric has no criteria")
	}
	return out, nil
}

// LoadOverrides reads a JSON object of criterion id to fixed score. A
// missing or unreadable file yields no overrides.
func LoadOverrides(path string) domain.Overrides {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var o domain.Overrides
	if err := json.Unmarshal(b, &o); err != nil {
		return nil
	}
	return o
}
