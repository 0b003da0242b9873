package scoring

import (
	"fmt"
	"strings"

	"github.com/ETAnderson/grader/internal/domain"
)

func criterionPrompt(c domain.Criterion, analyzerOutput string) string {
	var b strings.Builder
	b.WriteString("You are a reviewer assigning a numeric score. Follow instructions precisely.\n")
	fmt.Fprintf(&b, "Criterion Name: %s\n", c.Name)
	fmt.Fprintf(&b, "Instructions:\n%s\n\n", c.Prompt)
	b.WriteString("Analyzer Output (possibly truncated):\n----------------\n")
	b.WriteString(analyzerOutput)
	b.WriteString("\n----------------\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Choose ONLY one allowed score: 0.0 0.1 0.2 0.3 0.4 0.5 0.6 0.7 0.8 0.9 1.0\n")
	b.WriteString("- Output EXACTLY two lines:\nSCORE: <value>\nJUSTIFICATION: <concise>\n")
	b.WriteString("If evidence is weak, choose a conservative score.\n")
	return b.String()
}

func summaryPrompt(rows []CriterionScore, overall float64) string {
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("- %s: %s => %.1f", r.ID, r.Name, r.Score))
	}

	var b strings.Builder
	b.WriteString("You are an experienced software project reviewer. Produce ONE cohesive overall review comment.\n")
	b.WriteString("Data available:\n(1) Per-criterion scores (0.0-1.0):\n")
	b.WriteString(strings.Join(lines, "\n"))
	fmt.Fprintf(&b, "\nOverall weighted score: %.2f\n", overall)
	b.WriteString("(2) The underlying analyzer output already informed those scores (not repeated here).\n")
	b.WriteString("Instructions:\n")
	b.WriteString("- Start with a single concise summary sentence capturing overall health.\n")
	b.WriteString("- Then provide a short bullet list: Strengths, Risks, Next Steps (each 1-3 bullets).\n")
	b.WriteString("- Prioritize actionable technical improvements (security, docs, robustness) over cosmetic.\n")
	b.WriteString("- Word limit: 160 words total.\n")
	b.WriteString("Format:\nSummary line\n\nStrengths:\n- ...\nRisks:\n- ...\nNext Steps:\n- ...\n")
	b.WriteString("Return only the comment. Do NOT add extra labels beyond the specified headings.\n")
	return b.String()
}
