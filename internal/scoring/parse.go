package scoring

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ETAnderson/grader/internal/errors"
)

const maxJustificationChars = 350

var (
	scorePattern = regexp.MustCompile(`(?i)SCORE:\s*([0-9]+(?:\.[0-9]+)?)`)
	justPattern  = regexp.MustCompile(`(?is)JUSTIFICATION:\s*(.+)`)
)

// allowedScores is 0.0..1.0 in steps of 0.1; bare "0" and "1" are
// accepted as 0.0 and 1.0.
var allowedScores = func() map[string]float64 {
	m := map[string]float64{"0": 0, "1": 1}
	for i := 0; i <= 10; i++ {
		m[strconv.FormatFloat(float64(i)/10, 'f', 1, 64)] = float64(i) / 10
	}
	return m
}()

// ParseResponse reads the two-line SCORE/JUSTIFICATION contract. A missing
// SCORE line or a value outside the allowed set is E_MALFORMED_RESPONSE.
func ParseResponse(raw string) (float64, string, error) {
	m := scorePattern.FindStringSubmatch(raw)
	if m == nil {
		return 0, "", errors.Newf(errors.EMalformedResponse, "could not parse SCORE from: %s...", truncateRunes(raw, 120))
	}
	score, ok := allowedScores[m[1]]
	if !ok {
		return 0, "", errors.Newf(errors.EMalformedResponse, "score %s not allowed (must be 0.0..1.0 step 0.1)", m[1])
	}

	just := "(no justification)"
	if jm := justPattern.FindStringSubmatch(raw); jm != nil {
		if s := strings.TrimSpace(jm[1]); s != "" {
			just = s
		}
	}
	if r := []rune(just); len(r) > maxJustificationChars {
		just = string(r[:maxJustificationChars-3]) + "..."
	}
	return score, just, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
