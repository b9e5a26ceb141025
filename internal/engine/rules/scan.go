// Package rules implements the four heuristic detector families. Every
// rule is a single linear pass over source lines with small scan-local
// state (brace depth, loop nesting, complexity accumulators). There is
// deliberately no syntax tree: the scanner trades false positives and
// negatives for zero parser dependency, and that trade is part of the
// engine contract.
package rules

import (
	"sort"
	"strings"

	"vigil/internal/engine/analysis"
)

type line struct {
	num     int // 1-based
	text    string
	trimmed string
	lower   string
}

type source struct {
	language string
	lines    []line
}

func newSource(text, language string) *source {
	raw := strings.Split(text, "\n")
	lines := make([]line, len(raw))
	for i, t := range raw {
		trimmed := strings.TrimSpace(t)
		lines[i] = line{
			num:     i + 1,
			text:    t,
			trimmed: trimmed,
			lower:   strings.ToLower(trimmed),
		}
	}
	return &source{language: normalizeLanguage(language), lines: lines}
}

func normalizeLanguage(language string) string {
	switch strings.ToLower(strings.TrimSpace(language)) {
	case "js", "javascript", "jsx", "mjs", "cjs":
		return "javascript"
	case "ts", "typescript", "tsx":
		return "typescript"
	case "py", "python":
		return "python"
	case "golang", "go":
		return "go"
	default:
		return strings.ToLower(strings.TrimSpace(language))
	}
}

// LanguageForPath maps a file extension to the language hint the
// detectors understand. Unknown extensions fall back to the bare
// extension so the generic rules still apply.
func LanguageForPath(path string) string {
	idx := strings.LastIndex(path, ".")
	if idx < 0 || idx == len(path)-1 {
		return "plain"
	}
	return normalizeLanguage(path[idx+1:])
}

func (s *source) isScriptLike() bool {
	return s.language == "javascript" || s.language == "typescript"
}

func (s *source) isBraceLanguage() bool {
	switch s.language {
	case "javascript", "typescript", "go", "java", "c", "cpp", "csharp", "rust", "php", "kotlin", "swift":
		return true
	}
	return false
}

func (ln line) isComment(language string) bool {
	if ln.trimmed == "" {
		return false
	}
	if strings.HasPrefix(ln.trimmed, "//") || strings.HasPrefix(ln.trimmed, "/*") || strings.HasPrefix(ln.trimmed, "*") {
		return true
	}
	if language == "python" && strings.HasPrefix(ln.trimmed, "#") {
		return true
	}
	return false
}

// braceDelta counts net block opens on a line. String literals are not
// tracked; a stray brace in a string skews the depth until the block
// closes, which the heuristics tolerate.
func braceDelta(text string) int {
	return strings.Count(text, "{") - strings.Count(text, "}")
}

var loopMarkers = []string{"for (", "for(", "while (", "while(", ".foreach(", "do {", "for ", "while "}

func isLoopLine(lower string) bool {
	for _, marker := range loopMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// loopTracker maintains the loop-nesting depth across a scan. Loops are
// popped when the brace depth drops back below where they opened.
type loopTracker struct {
	braceDepth int
	loopDepths []int
}

// step advances the tracker by one line and reports whether the line
// opens a loop. Call once per line, in order.
func (t *loopTracker) step(ln line, language string) (opensLoop bool) {
	if ln.isComment(language) {
		return false
	}
	if isLoopLine(ln.lower) {
		opensLoop = true
		t.loopDepths = append(t.loopDepths, t.braceDepth)
	}
	t.braceDepth += braceDelta(ln.text)
	if t.braceDepth < 0 {
		t.braceDepth = 0
	}
	for len(t.loopDepths) > 0 && t.braceDepth <= t.loopDepths[len(t.loopDepths)-1] && !opensLoop {
		t.loopDepths = t.loopDepths[:len(t.loopDepths)-1]
	}
	return opensLoop
}

func (t *loopTracker) depth() int {
	return len(t.loopDepths)
}

// sortByLine orders findings by in-file position, keeping file-level
// findings (line 0) at the end and preserving insertion order for ties.
func sortByLine(issues []analysis.Issue) []analysis.Issue {
	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i].Line, issues[j].Line
		if a == 0 {
			return false
		}
		if b == 0 {
			return true
		}
		return a < b
	})
	return issues
}
