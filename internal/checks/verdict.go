package checks

import (
	"strings"

	"github.com/ETAnderson/grader/internal/domain"
)

// ParseVerdict reads the judge's answer to an ai_check prompt.
//
// The first whitespace-delimited token of the first non-empty line is
// uppercased as is. PASS, PARTIAL and FAIL map directly; other tokens
// starting with PASS or FAIL ("PASSED", "FAIL:") are coerced to that
// status. Anything else, including markdown-wrapped or bracketed tokens
// and an empty answer, is FAIL.
func ParseVerdict(answer string) domain.CheckStatus {
	var line string
	for _, l := range strings.Split(answer, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			line = l
			break
		}
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return domain.CheckFail
	}

	tok := strings.ToUpper(fields[0])
	switch domain.CheckStatus(tok) {
	case domain.CheckPass, domain.CheckPartial, domain.CheckFail:
		return domain.CheckStatus(tok)
	}
	switch {
	case strings.HasPrefix(tok, "PASS"):
		return domain.CheckPass
	case strings.HasPrefix(tok, "FAIL"):
		return domain.CheckFail
	}
	return domain.CheckFail
}
