package checks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ETAnderson/grader/internal/domain"
)

const (
	defaultLogEntries      = 25
	defaultPerFileChars    = 8000
	defaultMaxContextChars = 30000

	fileTruncatedMarker    = "\n... (file truncated due to length)"
	contextTruncatedMarker = "\n... (context truncated due to length)"
)

// AICheck asks the judge for a PASS/PARTIAL/FAIL verdict over either the
// recent git log or the contents of selected files.
type AICheck struct {
	History History
	Judge   Invoker
}

func (AICheck) Kind() domain.CheckKind { return domain.CheckAI }

func (c AICheck) Execute(ctx context.Context, spec domain.CheckSpec, snap Snapshot) domain.CheckResult {
	if strings.TrimSpace(spec.Prompt) == "" {
		return domain.NewCheckResult(spec, domain.CheckFail, "FAILED: AI check is misconfigured in rubric (needs 'prompt').")
	}
	if c.Judge == nil {
		return domain.NewCheckResult(spec, domain.CheckFail, "FAILED: No judge configured for AI checks.")
	}

	var (
		evidence string
		filePath string
		details  []string
	)

	switch {
	case spec.ContextSource == domain.ContextGitLog:
		if c.History == nil {
			return domain.NewCheckResult(spec, domain.CheckFail, "FAILED: No version control backend configured.")
		}
		n := spec.LogEntries
		if n <= 0 {
			n = defaultLogEntries
		}
		log, err := c.History.Log(ctx, snap.Dir, n)
		if err != nil {
			return domain.NewCheckResult(spec, domain.CheckFail, fmt.Sprintf("FAILED: Could not retrieve git history. Error: %v", err))
		}
		if strings.TrimSpace(log) == "" {
			return domain.NewCheckResult(spec, domain.CheckFail, "FAILED: Git log is empty or this is not a git repository.")
		}
		evidence = log

	case spec.ContextSource == domain.ContextFiles || len(spec.FilesToAnalyze) > 0:
		var ok bool
		evidence, details, ok = gatherFiles(snap.Dir, spec)
		if !ok {
			details = append(details, "FAILED: None of the target files for analysis were found.")
			return domain.NewCheckResult(spec, domain.CheckFail, details...)
		}
		filePath = "multiple files"

	default:
		return domain.NewCheckResult(spec, domain.CheckFail,
			"FAILED: AI check is misconfigured in rubric (needs 'context_source' or 'files_to_analyze').")
	}

	prompt := renderPrompt(spec.Prompt, evidence, filePath)

	answer, err := c.Judge.Invoke(ctx, prompt)
	if err != nil {
		details = append(details, fmt.Sprintf("FAILED: API call failed. Error: %v", err))
		return domain.NewCheckResult(spec, domain.CheckFail, details...)
	}

	answer = strings.TrimSpace(answer)
	status := ParseVerdict(answer)
	if answer == "" {
		answer = "FAILED: Judge returned an empty response."
	}
	details = append(details, answer)
	return domain.NewCheckResult(spec, status, details...)
}

// gatherFiles concatenates the first match of each requested file. Missing
// files become INFO lines. ok is false when nothing was found.
func gatherFiles(root string, spec domain.CheckSpec) (string, []string, bool) {
	perFile := spec.PerFileChars
	if perFile <= 0 {
		perFile = defaultPerFileChars
	}
	maxChars := spec.MaxContextChars
	if maxChars <= 0 {
		maxChars = defaultMaxContextChars
	}

	var (
		b     strings.Builder
		infos []string
	)
	for _, name := range spec.FilesToAnalyze {
		p, found := findFirst(root, filepath.Base(name))
		if !found {
			infos = append(infos, fmt.Sprintf("INFO: Could not find '%s' to analyze.", name))
			continue
		}
		raw, err := os.ReadFile(p)
		if err != nil {
			infos = append(infos, fmt.Sprintf("INFO: Could not read '%s': %v", name, err))
			continue
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			rel = p
		}
		content, _ := truncateChars(strings.ToValidUTF8(string(raw), ""), perFile, fileTruncatedMarker)
		fmt.Fprintf(&b, "\n\n--- CONTENT FROM %s ---\n\n%s", filepath.ToSlash(rel), content)
	}

	if b.Len() == 0 {
		return "", infos, false
	}
	out, _ := truncateChars(b.String(), maxChars, contextTruncatedMarker)
	return out, infos, true
}

// truncateChars cuts s to at most n runes and appends marker when it cut.
func truncateChars(s string, n int, marker string) (string, bool) {
	if len(s) <= n {
		return s, false
	}
	r := []rune(s)
	if len(r) <= n {
		return s, false
	}
	return string(r[:n]) + marker, true
}

// renderPrompt fills {context} and {file_path}; "{{" and "}}" are literal
// braces.
func renderPrompt(tmpl string, evidence string, filePath string) string {
	return strings.NewReplacer(
		"{{", "{",
		"}}", "}",
		"{context}", evidence,
		"{file_path}", filePath,
	).Replace(tmpl)
}
