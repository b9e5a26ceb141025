package rules

import (
	"strings"
	"testing"

	"vigil/internal/engine/analysis"
)

func findIssue(issues []analysis.Issue, substr string) (analysis.Issue, bool) {
	for _, issue := range issues {
		if strings.Contains(issue.Message, substr) {
			return issue, true
		}
	}
	return analysis.Issue{}, false
}

func countIssues(issues []analysis.Issue, substr string) int {
	n := 0
	for _, issue := range issues {
		if strings.Contains(issue.Message, substr) {
			n++
		}
	}
	return n
}

func TestFamilies_FixedOrder(t *testing.T) {
	detectors := Families()
	want := []string{"security", "performance", "style", "maintainability"}
	if len(detectors) != len(want) {
		t.Fatalf("expected %d families, got %d", len(want), len(detectors))
	}
	for i, detector := range detectors {
		if detector.Family() != want[i] {
			t.Fatalf("family %d: expected %s, got %s", i, want[i], detector.Family())
		}
	}
}
