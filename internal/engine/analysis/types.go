package analysis

// Category classifies a finding. The set is closed; detectors must not
// invent categories at runtime.
type Category string

const (
	CategorySecurity    Category = "security"
	CategoryPerformance Category = "performance"
	CategoryStyle       Category = "style"
	CategoryBug         Category = "bug"
	CategorySuggestion  Category = "suggestion"
)

// Severity is ordered low < medium < high < critical.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Rank returns the ordinal position of a severity, -1 for unknown values.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return -1
}

// Issue is a single immutable finding. Line is 1-based; 0 means the
// finding applies to the whole file.
type Issue struct {
	Category   Category `json:"category"`
	Severity   Severity `json:"severity"`
	Line       int      `json:"line,omitempty"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// Report is the engine output for one source text. Issues keep detector
// family order (security, performance, style, maintainability) and
// in-file order within a family. Duplicates across families are kept:
// one line legitimately triggering multiple categories is expected.
type Report struct {
	Issues []Issue `json:"issues"`
	Score  int     `json:"score"`

	// Summary is the optional natural-language enrichment; both fields
	// are best-effort and never influence Issues or Score.
	Summary         string `json:"summary,omitempty"`
	EnrichmentError string `json:"enrichmentError,omitempty"`

	// Degraded lists detector families whose rule pass failed and was
	// isolated; their findings are simply absent.
	Degraded []string `json:"degraded,omitempty"`
}
