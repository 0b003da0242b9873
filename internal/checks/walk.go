package checks

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SkippedDirs are never descended into when searching a repository.
var SkippedDirs = map[string]bool{
	".git":          true,
	"venv":          true,
	".venv":         true,
	"env":           true,
	".env":          true,
	"virtualenv":    true,
	"site-packages": true,
	"__pycache__":   true,
	".tox":          true,
	".mypy_cache":   true,
	"node_modules":  true,
}

type match struct {
	rel   string
	base  string
	depth int
}

// findByBasename searches breadth first for files whose basename is in
// names. Directories deeper than maxDepth below root are not entered; a
// file's depth is the depth of its directory. Among matches at the
// shallowest depth the alphabetically first basename wins, then the first
// relative path.
func findByBasename(root string, names []string, maxDepth int) (match, bool) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		if b := filepath.Base(filepath.Clean(n)); b != "." && b != string(filepath.Separator) {
			want[b] = true
		}
	}
	if len(want) == 0 {
		return match{}, false
	}

	level := []string{""}
	for depth := 0; depth <= maxDepth && len(level) > 0; depth++ {
		var (
			found []match
			next  []string
		)
		for _, rel := range level {
			entries, err := os.ReadDir(filepath.Join(root, rel))
			if err != nil {
				continue
			}
			for _, e := range entries {
				childRel := filepath.Join(rel, e.Name())
				if e.IsDir() {
					if !SkippedDirs[e.Name()] {
						next = append(next, childRel)
					}
					continue
				}
				if want[e.Name()] {
					found = append(found, match{rel: filepath.ToSlash(childRel), base: e.Name(), depth: depth})
				}
			}
		}
		if len(found) > 0 {
			sort.Slice(found, func(i, j int) bool {
				if found[i].base != found[j].base {
					return found[i].base < found[j].base
				}
				return found[i].rel < found[j].rel
			})
			return found[0], true
		}
		sort.Strings(next)
		level = next
	}
	return match{}, false
}

// findFirst returns the first file named name in lexical walk order.
func findFirst(root string, name string) (string, bool) {
	var hit string
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != root && SkippedDirs[d.Name()] {
				return fs.SkipDir
			}
			return nil
		}
		if d.Name() == name {
			hit = p
			return fs.SkipAll
		}
		return nil
	})
	return hit, hit != ""
}

// insideRoot reports whether rel stays within root once cleaned.
func insideRoot(root string, rel string) (string, bool) {
	if filepath.IsAbs(rel) {
		return "", false
	}
	full := filepath.Join(root, rel)
	r, err := filepath.Rel(root, full)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", false
	}
	return full, true
}
