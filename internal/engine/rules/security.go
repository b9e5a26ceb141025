package rules

import (
	"regexp"
	"strings"

	"vigil/internal/engine/analysis"
)

// Security flags dangerous sinks, weak crypto, secret-looking literals
// and naive injection patterns. Signature lists are fixed; matching is
// per line with no data-flow analysis.
type Security struct {
	evalRE       *regexp.Regexp
	newFuncRE    *regexp.Regexp
	weakHashRE   *regexp.Regexp
	secretRE     *regexp.Regexp
	queryCallRE  *regexp.Regexp
	insecureURLE *regexp.Regexp
}

func NewSecurity() *Security {
	return &Security{
		evalRE:       regexp.MustCompile(`\beval\s*\(`),
		newFuncRE:    regexp.MustCompile(`\bnew\s+Function\s*\(`),
		weakHashRE:   regexp.MustCompile(`(?i)\b(md5|sha-?1)\b`),
		secretRE:     regexp.MustCompile(`(?i)\b(password|passwd|pwd|secret|api[_-]?key|token|auth[_-]?token|access[_-]?key|private[_-]?key)\b\s*[:=]\s*["'][^"'\r\n]{4,}["']`),
		queryCallRE:  regexp.MustCompile(`(?i)\b(query|execute|executesql|exec)\s*\(`),
		insecureURLE: regexp.MustCompile(`http://[^\s"']+`),
	}
}

func (d *Security) Family() string { return "security" }

var dangerousCalls = []struct {
	marker     string
	message    string
	suggestion string
	severity   analysis.Severity
}{
	{"child_process", "Use of child_process module", "Validate and sanitize any input passed to spawned processes.", analysis.SeverityHigh},
	{"os.system(", "Shell command execution via os.system", "Prefer subprocess.run with a list argument and shell=False.", analysis.SeverityHigh},
	{"subprocess.call(", "Shell command execution via subprocess", "Avoid shell=True and pass arguments as a list.", analysis.SeverityHigh},
	{"subprocess.popen(", "Shell command execution via subprocess", "Avoid shell=True and pass arguments as a list.", analysis.SeverityHigh},
	{"shell=true", "Subprocess invoked with shell=True", "Pass arguments as a list with shell=False.", analysis.SeverityHigh},
	{"pickle.loads(", "Deserialization of untrusted data via pickle", "Use a safe format such as JSON for untrusted input.", analysis.SeverityHigh},
	{"dangerouslysetinnerhtml", "React dangerouslySetInnerHTML usage", "Sanitize the HTML or render text nodes instead.", analysis.SeverityMedium},
}

// Placeholder values that look like secrets but are documentation noise.
var placeholderValues = []string{"example", "sample", "dummy", "placeholder", "changeme", "your-", "xxxx", "<", "test"}

func (d *Security) Detect(text, language string) []analysis.Issue {
	src := newSource(text, language)
	var issues []analysis.Issue

	for _, ln := range src.lines {
		if ln.trimmed == "" || ln.isComment(src.language) {
			continue
		}

		if d.evalRE.MatchString(ln.trimmed) {
			issues = append(issues, analysis.Issue{
				Category:   analysis.CategorySecurity,
				Severity:   analysis.SeverityCritical,
				Line:       ln.num,
				Message:    "Use of eval() allows arbitrary code execution",
				Suggestion: "Replace eval() with explicit parsing or a lookup table.",
			})
		}
		if d.newFuncRE.MatchString(ln.trimmed) {
			issues = append(issues, analysis.Issue{
				Category:   analysis.CategorySecurity,
				Severity:   analysis.SeverityHigh,
				Line:       ln.num,
				Message:    "new Function() constructs code from strings",
				Suggestion: "Use a regular function or a dispatch map.",
			})
		}

		for _, call := range dangerousCalls {
			if strings.Contains(ln.lower, call.marker) {
				issues = append(issues, analysis.Issue{
					Category:   analysis.CategorySecurity,
					Severity:   call.severity,
					Line:       ln.num,
					Message:    call.message,
					Suggestion: call.suggestion,
				})
			}
		}

		if d.weakHashRE.MatchString(ln.trimmed) && strings.Contains(ln.lower, "hash") ||
			strings.Contains(ln.lower, "md5(") || strings.Contains(ln.lower, "sha1(") ||
			strings.Contains(ln.lower, "createhash('md5')") || strings.Contains(ln.lower, "createhash(\"md5\")") {
			issues = append(issues, analysis.Issue{
				Category:   analysis.CategorySecurity,
				Severity:   analysis.SeverityMedium,
				Line:       ln.num,
				Message:    "Weak hash algorithm (MD5/SHA-1)",
				Suggestion: "Use SHA-256 or stronger; for passwords use bcrypt/argon2.",
			})
		}

		if m := d.secretRE.FindString(ln.trimmed); m != "" && !isPlaceholderSecret(m) {
			issues = append(issues, analysis.Issue{
				Category:   analysis.CategorySecurity,
				Severity:   analysis.SeverityHigh,
				Line:       ln.num,
				Message:    "Hardcoded credential in source",
				Suggestion: "Move secrets to environment variables or a secret store.",
			})
		}

		if d.queryCallRE.MatchString(ln.trimmed) && looksLikeStringBuild(ln.trimmed) {
			issues = append(issues, analysis.Issue{
				Category:   analysis.CategorySecurity,
				Severity:   analysis.SeverityHigh,
				Line:       ln.num,
				Message:    "Query built by string concatenation, possible SQL injection",
				Suggestion: "Use parameterized queries or prepared statements.",
			})
		}

		if strings.Contains(ln.lower, "innerhtml") && strings.Contains(ln.text, "=") ||
			strings.Contains(ln.lower, "document.write(") {
			issues = append(issues, analysis.Issue{
				Category:   analysis.CategorySecurity,
				Severity:   analysis.SeverityMedium,
				Line:       ln.num,
				Message:    "Direct HTML injection sink (innerHTML/document.write)",
				Suggestion: "Use textContent or sanitize the markup first.",
			})
		}

		if url := d.insecureURLE.FindString(ln.trimmed); url != "" &&
			!strings.Contains(url, "localhost") && !strings.Contains(url, "127.0.0.1") && !strings.Contains(url, "w3.org") {
			issues = append(issues, analysis.Issue{
				Category:   analysis.CategorySecurity,
				Severity:   analysis.SeverityLow,
				Line:       ln.num,
				Message:    "Plain HTTP URL",
				Suggestion: "Use HTTPS for external endpoints.",
			})
		}
	}

	return sortByLine(issues)
}

// looksLikeStringBuild reports a quoted fragment joined by +, or ${/%s
// style interpolation, adjacent to the call. This is the entire taint
// heuristic.
func looksLikeStringBuild(text string) bool {
	if strings.Contains(text, "${") || strings.Contains(text, "%s") || strings.Contains(text, ".format(") || strings.Contains(text, "f\"") {
		return true
	}
	plus := strings.Contains(text, "+")
	quoted := strings.Contains(text, "\"") || strings.Contains(text, "'") || strings.Contains(text, "`")
	return plus && quoted
}

func isPlaceholderSecret(match string) bool {
	lower := strings.ToLower(match)
	for _, blocked := range placeholderValues {
		if strings.Contains(lower, blocked) {
			return true
		}
	}
	return false
}
