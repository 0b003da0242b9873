package scoring

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

type Source string

const (
	SourceAI       Source = "ai"
	SourceOverride Source = "override"
	SourceError    Source = "error"
)

type CriterionScore struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Score         float64 `json:"score"`
	Weight        float64 `json:"weight"`
	Justification string  `json:"justification"`
	Source        Source  `json:"source"`
	Raw           string  `json:"raw,omitempty"`
}

// Report is the persisted output of the score phase.
type Report struct {
	GeneratedAt    time.Time        `json:"generated_at"`
	OverallScore   float64          `json:"overall_score"`
	OverallPercent float64          `json:"overall_percent"`
	Criteria       []CriterionScore `json:"criteria"`
	OverallComment string           `json:"overall_comment,omitempty"`
}

func (r Report) JSON() (json.RawMessage, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal scoring report: %w", err)
	}
	return b, nil
}

func (r Report) Markdown() string {
	var b strings.Builder
	b.WriteString("# Final Scoring Report\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", r.GeneratedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	if r.OverallComment != "" {
		b.WriteString("\n### Overall Review Comment\n\n")
		b.WriteString(r.OverallComment)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "Overall Score: %.2f (weighted)\n\n", r.OverallScore)
	b.WriteString("| ID | Criterion | Score | Weight | Justification | Source |\n")
	b.WriteString("|----|-----------|-------|--------|---------------|--------|\n")
	for _, c := range r.Criteria {
		fmt.Fprintf(&b, "| %s | %s | %.1f | %.1f | %s | %s |\n",
			cell(c.ID), cell(c.Name), c.Score, c.Weight, cell(c.Justification), c.Source)
	}
	return b.String()
}

// cell keeps a value on one table row.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", "/")
	return strings.Join(strings.Fields(s), " ")
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
