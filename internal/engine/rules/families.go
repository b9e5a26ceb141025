package rules

import "vigil/internal/engine/analysis"

// Families returns the four detector families in report concatenation
// order: security, performance, style, maintainability. Callers must
// not reorder the slice; tests assert the resulting issue ordering.
func Families() []analysis.Detector {
	return []analysis.Detector{
		NewSecurity(),
		NewPerformance(),
		NewStyle(),
		NewMaintainability(),
	}
}
