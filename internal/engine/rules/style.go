package rules

import (
	"strings"

	"vigil/internal/engine/analysis"
)

// Style flags lexical issues: missing semicolons, var usage, leftover
// debug output, long lines, deep nesting and task markers.
type Style struct {
	maxLineLength int
	maxIndent     int
}

func NewStyle() *Style {
	return &Style{maxLineLength: 120, maxIndent: 5}
}

func (d *Style) Family() string { return "style" }

var statementStarters = []string{"const ", "let ", "var ", "return ", "throw ", "break", "continue", "yield ", "await "}

var noSemicolonEndings = []string{";", "{", "}", ",", ":", "=>", "(", "&&", "||", "+", "-", "*", "=", "."}

var controlStarters = []string{"if ", "if(", "else", "for ", "for(", "while ", "while(", "switch", "case ", "default:", "function", "class ", "try", "catch", "finally", "do ", "export ", "import ", "interface ", "type ", "enum "}

func (d *Style) Detect(text, language string) []analysis.Issue {
	src := newSource(text, language)
	var issues []analysis.Issue

	for _, ln := range src.lines {
		if len(ln.text) > d.maxLineLength {
			issues = append(issues, analysis.Issue{
				Category:   analysis.CategoryStyle,
				Severity:   analysis.SeverityLow,
				Line:       ln.num,
				Message:    "Line exceeds 120 characters",
				Suggestion: "Break the statement across lines.",
			})
		}
		if ln.trimmed != "" && strings.TrimRight(ln.text, " \t\r") != strings.TrimRight(ln.text, "\r") {
			issues = append(issues, analysis.Issue{
				Category: analysis.CategoryStyle,
				Severity: analysis.SeverityLow,
				Line:     ln.num,
				Message:  "Trailing whitespace",
			})
		}
		if ln.trimmed == "" {
			continue
		}

		if marker := taskMarker(ln.lower); marker != "" {
			issues = append(issues, analysis.Issue{
				Category:   analysis.CategorySuggestion,
				Severity:   analysis.SeverityLow,
				Line:       ln.num,
				Message:    "Unresolved " + marker + " marker",
				Suggestion: "Track the task in the issue tracker or resolve it.",
			})
		}
		if ln.isComment(src.language) {
			continue
		}

		if indentLevel(ln.text) >= d.maxIndent {
			issues = append(issues, analysis.Issue{
				Category:   analysis.CategoryStyle,
				Severity:   analysis.SeverityLow,
				Line:       ln.num,
				Message:    "Deeply nested code",
				Suggestion: "Extract inner blocks into helper functions or use early returns.",
			})
		}

		if strings.Contains(ln.lower, "console.log(") || strings.Contains(ln.lower, "console.debug(") ||
			(src.language == "python" && strings.HasPrefix(ln.lower, "print(")) {
			issues = append(issues, analysis.Issue{
				Category:   analysis.CategorySuggestion,
				Severity:   analysis.SeverityLow,
				Line:       ln.num,
				Message:    "Debug output left in source",
				Suggestion: "Remove the statement or route it through a logger.",
			})
		}
		if src.isScriptLike() && strings.Contains(ln.lower, "alert(") {
			issues = append(issues, analysis.Issue{
				Category:   analysis.CategorySuggestion,
				Severity:   analysis.SeverityLow,
				Line:       ln.num,
				Message:    "alert() call in source",
				Suggestion: "Use a non-blocking notification mechanism.",
			})
		}

		if !src.isScriptLike() {
			continue
		}

		if strings.HasPrefix(ln.trimmed, "var ") || strings.Contains(ln.trimmed, " var ") {
			issues = append(issues, analysis.Issue{
				Category:   analysis.CategoryStyle,
				Severity:   analysis.SeverityMedium,
				Line:       ln.num,
				Message:    "Use of var",
				Suggestion: "Use let or const for block scoping.",
			})
		}

		if missingSemicolon(ln.trimmed) {
			issues = append(issues, analysis.Issue{
				Category:   analysis.CategoryStyle,
				Severity:   analysis.SeverityLow,
				Line:       ln.num,
				Message:    "Missing semicolon",
				Suggestion: "Terminate the statement with a semicolon.",
			})
		}
	}

	return sortByLine(issues)
}

// missingSemicolon is a heuristic for javascript/typescript statement
// lines. Control-flow headers, block delimiters and obvious
// continuations are exempt.
func missingSemicolon(trimmed string) bool {
	lower := strings.ToLower(trimmed)
	for _, starter := range controlStarters {
		if strings.HasPrefix(lower, starter) {
			return false
		}
	}
	for _, ending := range noSemicolonEndings {
		if strings.HasSuffix(trimmed, ending) {
			return false
		}
	}

	isStatement := false
	for _, starter := range statementStarters {
		if strings.HasPrefix(lower, starter) {
			isStatement = true
			break
		}
	}
	if !isStatement {
		// Bare expression statements: calls and assignments.
		isStatement = strings.HasSuffix(trimmed, ")") || strings.Contains(trimmed, " = ")
	}
	return isStatement
}

func taskMarker(lower string) string {
	for _, marker := range []string{"todo", "fixme", "hack", "xxx"} {
		if strings.Contains(lower, marker+":") || strings.Contains(lower, marker+" ") ||
			strings.HasSuffix(lower, marker) {
			if strings.Contains(lower, "//") || strings.Contains(lower, "#") || strings.Contains(lower, "/*") {
				return strings.ToUpper(marker)
			}
		}
	}
	return ""
}

func indentLevel(text string) int {
	spaces := 0
	for _, r := range text {
		switch r {
		case ' ':
			spaces++
		case '\t':
			spaces += 4
		default:
			return spaces / 4
		}
	}
	return 0
}
