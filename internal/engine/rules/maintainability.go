package rules

import (
	"fmt"
	"regexp"
	"strings"

	"vigil/internal/engine/analysis"
)

// Maintainability tracks per-function cyclomatic complexity with a
// brace-depth walker plus a handful of structure smells. Complexity is
// accumulated from the detected function start and evaluated when the
// brace depth returns to the value recorded at the start.
type Maintainability struct {
	// Heuristic thresholds, preserved from the original calibration.
	ComplexityWarn     int
	ComplexityCritical int
	MaxFunctionLines   int
	MaxParameters      int

	funcRE  *regexp.Regexp
	magicRE *regexp.Regexp
}

func NewMaintainability() *Maintainability {
	return &Maintainability{
		ComplexityWarn:     10,
		ComplexityCritical: 15,
		MaxFunctionLines:   60,
		MaxParameters:      5,
		funcRE:             regexp.MustCompile(`(?i)\b(function\s+\w*|func\s+\w+|def\s+\w+)\s*\(|=>\s*\{|\w+\s*\([^)]*\)\s*\{`),
		magicRE:            regexp.MustCompile(`(?:^|[^\w.])(\d{3,})(?:[^\w.]|$)`),
	}
}

func (d *Maintainability) Family() string { return "maintainability" }

var branchMarkers = []string{"if ", "if(", "for ", "for(", "while ", "while(", "case ", "catch ", "catch(", "&&", "||", "?"}

// Control-flow keywords whose headers look like call-plus-brace lines.
// A line led by one of these is a branch, never a function start.
var controlKeywords = []string{"if", "else", "switch", "catch", "do", "while", "for", "return"}

// isControlHeader reports whether the line's first token, after any
// closing braces from the previous block, is a control keyword.
// `} else if (cond) {` and `switch (x) {` must count as branches, not
// as function starts.
func isControlHeader(lower string) bool {
	rest := strings.TrimLeft(lower, "}) \t")
	for _, kw := range controlKeywords {
		if rest == kw || strings.HasPrefix(rest, kw+" ") || strings.HasPrefix(rest, kw+"(") || strings.HasPrefix(rest, kw+"{") {
			return true
		}
	}
	return false
}

type funcFrame struct {
	startLine  int
	startDepth int
	complexity int
}

func (d *Maintainability) Detect(text, language string) []analysis.Issue {
	src := newSource(text, language)
	var issues []analysis.Issue

	issues = append(issues, d.scanFunctions(src)...)
	issues = append(issues, d.scanSmells(src)...)
	issues = append(issues, d.scanDuplicates(src)...)

	return sortByLine(issues)
}

// scanFunctions walks the file once tracking open functions on a stack.
// Non-brace languages are skipped: without block delimiters the walker
// cannot find function ends, and guessing from indentation produces
// more noise than signal.
func (d *Maintainability) scanFunctions(src *source) []analysis.Issue {
	if !src.isBraceLanguage() {
		return nil
	}

	var issues []analysis.Issue
	var stack []funcFrame
	depth := 0

	for _, ln := range src.lines {
		if ln.isComment(src.language) {
			continue
		}

		if d.funcRE.MatchString(ln.trimmed) && strings.Contains(ln.text, "(") && !isLoopLine(ln.lower) && !isControlHeader(ln.lower) {
			stack = append(stack, funcFrame{startLine: ln.num, startDepth: depth, complexity: 1})
			if params := countParameters(ln.trimmed); params > d.MaxParameters {
				issues = append(issues, analysis.Issue{
					Category:   analysis.CategorySuggestion,
					Severity:   analysis.SeverityLow,
					Line:       ln.num,
					Message:    fmt.Sprintf("Function takes %d parameters", params),
					Suggestion: "Group related parameters into a struct/options object.",
				})
			}
		} else if len(stack) > 0 {
			for _, marker := range branchMarkers {
				if strings.Contains(ln.lower, marker) {
					stack[len(stack)-1].complexity++
				}
			}
		}

		depth += braceDelta(ln.text)
		if depth < 0 {
			depth = 0
		}

		for len(stack) > 0 && depth <= stack[len(stack)-1].startDepth && ln.num > stack[len(stack)-1].startLine {
			frame := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			issues = append(issues, d.evaluateFunction(frame, ln.num)...)
		}
	}
	// Unterminated functions at EOF still get evaluated.
	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		issues = append(issues, d.evaluateFunction(frame, len(src.lines))...)
	}
	return issues
}

func (d *Maintainability) evaluateFunction(frame funcFrame, endLine int) []analysis.Issue {
	var issues []analysis.Issue

	switch {
	case frame.complexity > d.ComplexityCritical:
		issues = append(issues, analysis.Issue{
			Category:   analysis.CategorySuggestion,
			Severity:   analysis.SeverityHigh,
			Line:       frame.startLine,
			Message:    fmt.Sprintf("Very high cyclomatic complexity (%d)", frame.complexity),
			Suggestion: "Split the function into smaller units.",
		})
	case frame.complexity > d.ComplexityWarn:
		issues = append(issues, analysis.Issue{
			Category:   analysis.CategorySuggestion,
			Severity:   analysis.SeverityMedium,
			Line:       frame.startLine,
			Message:    fmt.Sprintf("High cyclomatic complexity (%d)", frame.complexity),
			Suggestion: "Reduce branching by extracting helpers or early returns.",
		})
	}

	if lines := endLine - frame.startLine; lines > d.MaxFunctionLines {
		issues = append(issues, analysis.Issue{
			Category:   analysis.CategorySuggestion,
			Severity:   analysis.SeverityLow,
			Line:       frame.startLine,
			Message:    fmt.Sprintf("Function spans %d lines", lines),
			Suggestion: "Extract cohesive blocks into named functions.",
		})
	}
	return issues
}

func (d *Maintainability) scanSmells(src *source) []analysis.Issue {
	var issues []analysis.Issue
	seenMagic := make(map[string]bool)

	for i, ln := range src.lines {
		if ln.trimmed == "" || ln.isComment(src.language) {
			continue
		}

		if strings.Contains(ln.lower, "catch") && emptyBlockFollows(src.lines, i) {
			issues = append(issues, analysis.Issue{
				Category:   analysis.CategoryBug,
				Severity:   analysis.SeverityMedium,
				Line:       ln.num,
				Message:    "Empty catch block swallows errors",
				Suggestion: "Log or rethrow the error, or document why it is ignored.",
			})
		}

		if !isConstantDeclaration(ln.lower) {
			for _, match := range d.magicRE.FindAllStringSubmatch(ln.trimmed, -1) {
				value := match[1]
				if seenMagic[value] || isCommonNumber(value) {
					continue
				}
				seenMagic[value] = true
				issues = append(issues, analysis.Issue{
					Category:   analysis.CategorySuggestion,
					Severity:   analysis.SeverityLow,
					Line:       ln.num,
					Message:    "Magic number " + value,
					Suggestion: "Name the value with a constant.",
				})
			}
		}
	}
	return issues
}

// scanDuplicates reports repeated non-trivial lines as one file-level
// finding per distinct line, in first-occurrence order.
func (d *Maintainability) scanDuplicates(src *source) []analysis.Issue {
	counts := make(map[string]int)
	var order []string
	for _, ln := range src.lines {
		if len(ln.trimmed) < 30 || ln.isComment(src.language) {
			continue
		}
		if counts[ln.trimmed] == 0 {
			order = append(order, ln.trimmed)
		}
		counts[ln.trimmed]++
	}

	var issues []analysis.Issue
	for _, text := range order {
		if count := counts[text]; count >= 3 {
			issues = append(issues, analysis.Issue{
				Category:   analysis.CategorySuggestion,
				Severity:   analysis.SeverityLow,
				Message:    fmt.Sprintf("Line duplicated %d times", count),
				Suggestion: "Extract the repeated statement into a helper.",
			})
		}
	}
	return issues
}

func countParameters(signature string) int {
	open := strings.Index(signature, "(")
	if open < 0 {
		return 0
	}
	end := strings.Index(signature[open:], ")")
	if end < 0 {
		end = len(signature) - open
	}
	inner := strings.TrimSpace(signature[open+1 : open+end])
	if inner == "" {
		return 0
	}
	return strings.Count(inner, ",") + 1
}

func emptyBlockFollows(lines []line, idx int) bool {
	rest := strings.ReplaceAll(lines[idx].trimmed, " ", "")
	if strings.Contains(rest, "{}") {
		return true
	}
	if strings.HasSuffix(rest, "{") && idx+1 < len(lines) {
		return strings.HasPrefix(lines[idx+1].trimmed, "}")
	}
	return false
}

func isConstantDeclaration(lower string) bool {
	return strings.HasPrefix(lower, "const") || strings.Contains(lower, "#define") ||
		strings.HasPrefix(lower, "enum") || strings.Contains(lower, "final ")
}

func isCommonNumber(value string) bool {
	switch value {
	case "100", "200", "404", "500", "1000", "1024":
		return true
	}
	return false
}
