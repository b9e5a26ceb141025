package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vigil/internal/core/config"
	coreerrors "vigil/internal/core/errors"
	"vigil/internal/engine/analysis"
)

func newTestService(t *testing.T) *analysisService {
	t.Helper()
	application, err := New(config.Default())
	if err != nil {
		t.Fatalf("failed to build app: %v", err)
	}
	return &analysisService{app: application}
}

func TestAnalyzeSource_RepresentativeSnippet(t *testing.T) {
	svc := newTestService(t)
	code := "const x = 5\nconsole.log(x)\nvar y = eval(x)"

	report, err := svc.AnalyzeSource(context.Background(), code, "javascript", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(report.Issues) == 0 {
		t.Fatal("expected findings for the snippet")
	}
	if report.Score > 71 {
		t.Fatalf("expected score at most 71, got %d", report.Score)
	}

	var sawEval, sawVar, sawConsole bool
	semicolons := 0
	for _, issue := range report.Issues {
		switch {
		case strings.Contains(issue.Message, "eval()"):
			sawEval = true
			if issue.Severity != analysis.SeverityCritical {
				t.Fatalf("eval must be critical, got %s", issue.Severity)
			}
		case strings.Contains(issue.Message, "Use of var"):
			sawVar = true
		case strings.Contains(issue.Message, "Debug output"):
			sawConsole = true
		case strings.Contains(issue.Message, "Missing semicolon"):
			semicolons++
		}
	}
	if !sawEval || !sawVar || !sawConsole {
		t.Fatalf("expected eval/var/console findings, got %#v", report.Issues)
	}
	if semicolons != 3 {
		t.Fatalf("expected 3 missing semicolons, got %d", semicolons)
	}
}

func TestAnalyzeSource_FamilyOrder(t *testing.T) {
	svc := newTestService(t)
	// One finding per family, deliberately interleaved in the source.
	code := strings.Join([]string{
		"function run(input) {",
		"  for (const a of input) {",
		"    for (const b of input) {",
		"      if (seen.includes(a)) { continue; }",
		"    }",
		"  }",
		"  el.innerHTML = render(input);",
		"  var leftover = 31250;",
		"}",
	}, "\n")

	report, err := svc.AnalyzeSource(context.Background(), code, "javascript", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	order := map[analysis.Category]int{
		analysis.CategorySecurity:    0,
		analysis.CategoryPerformance: 1,
	}
	lastFamily := -1
	for _, issue := range report.Issues {
		rank, known := order[issue.Category]
		if !known {
			// style, bug and suggestion all come from the trailing
			// families in this snippet.
			rank = 2
		}
		if rank < lastFamily {
			t.Fatalf("family order violated: %#v", report.Issues)
		}
		lastFamily = rank
	}
}

func TestAnalyzeSource_EmptyCode(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.AnalyzeSource(context.Background(), "   \n  ", "javascript", "")
	if !coreerrors.IsCode(err, coreerrors.CodeValidationError) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAnalyzeSource_MissingLanguageWithoutPath(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.AnalyzeSource(context.Background(), "let x = 1;", "", "")
	if !coreerrors.IsCode(err, coreerrors.CodeValidationError) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAnalyzeSource_LanguageInferredFromPath(t *testing.T) {
	svc := newTestService(t)
	report, err := svc.AnalyzeSource(context.Background(), "var x = 1;", "", "widget.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var sawVar bool
	for _, issue := range report.Issues {
		if strings.Contains(issue.Message, "Use of var") {
			sawVar = true
		}
	}
	if !sawVar {
		t.Fatalf("expected javascript rules to apply via path inference, got %#v", report.Issues)
	}
}

func TestAnalyzeSource_SizeExceeded(t *testing.T) {
	svc := newTestService(t)
	svc.app.Config.Analysis.MaxFileSize = 64

	_, err := svc.AnalyzeSource(context.Background(), strings.Repeat("let x = 1;\n", 20), "javascript", "")
	if !coreerrors.IsCode(err, coreerrors.CodeSizeExceeded) {
		t.Fatalf("expected size exceeded, got %v", err)
	}
}

func TestAnalyzeFile_NotFound(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.AnalyzeFile(context.Background(), filepath.Join(t.TempDir(), "missing.js"))
	if !coreerrors.IsCode(err, coreerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAnalyzeFile_Directory(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.AnalyzeFile(context.Background(), t.TempDir())
	if !coreerrors.IsCode(err, coreerrors.CodeValidationError) {
		t.Fatalf("expected validation error for directory, got %v", err)
	}
}

func TestAnalyzeFile_EmptyFileIsPerfect(t *testing.T) {
	svc := newTestService(t)
	path := filepath.Join(t.TempDir(), "empty.js")
	if err := os.WriteFile(path, []byte("\n\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	report, err := svc.AnalyzeFile(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Score != 100 || len(report.Issues) != 0 {
		t.Fatalf("empty file must score 100 with no issues, got %#v", report)
	}
}

func TestAnalyzeFile_UsesExtensionForLanguage(t *testing.T) {
	svc := newTestService(t)
	path := filepath.Join(t.TempDir(), "script.py")
	if err := os.WriteFile(path, []byte("print(compute())\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	report, err := svc.AnalyzeFile(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var sawPrint bool
	for _, issue := range report.Issues {
		if strings.Contains(issue.Message, "Debug output") {
			sawPrint = true
		}
	}
	if !sawPrint {
		t.Fatalf("expected python print finding, got %#v", report.Issues)
	}
}
