package analysis

// Weights holds the per-severity score deduction. The defaults are kept
// for behavioral compatibility with the rule calibration the detectors
// were tuned against; they are configuration, not derived values.
type Weights struct {
	Critical int
	High     int
	Medium   int
	Low      int
}

func DefaultWeights() Weights {
	return Weights{Critical: 20, High: 10, Medium: 5, Low: 2}
}

func (w Weights) of(s Severity) int {
	switch s {
	case SeverityCritical:
		return w.Critical
	case SeverityHigh:
		return w.High
	case SeverityMedium:
		return w.Medium
	case SeverityLow:
		return w.Low
	}
	return 0
}

// Score computes 100 minus the summed severity weights, clamped at 0.
// The deduction is deliberately unbounded-subtractive: enough low
// severity findings will zero the score. Adding an issue never
// increases the result.
func Score(issues []Issue, w Weights) int {
	score := 100
	for _, issue := range issues {
		score -= w.of(issue.Severity)
	}
	if score < 0 {
		return 0
	}
	return score
}
