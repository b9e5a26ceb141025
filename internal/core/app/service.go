package app

import (
	"context"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	coreerrors "vigil/internal/core/errors"
	"vigil/internal/core/ports"
	"vigil/internal/engine/analysis"
	"vigil/internal/engine/rules"
	"vigil/internal/shared/observability"
)

type analysisService struct {
	app *App
}

var _ ports.AnalysisService = (*analysisService)(nil)

func (a *App) AnalysisService() ports.AnalysisService {
	return &analysisService{app: a}
}

func (s *analysisService) AnalyzeSource(ctx context.Context, code, language, filePath string) (*analysis.Report, error) {
	ctx, span := observability.Tracer.Start(ctx, "analysisService.AnalyzeSource",
		trace.WithAttributes(attribute.String("language", language)))
	defer span.End()

	if strings.TrimSpace(code) == "" {
		return nil, coreerrors.New(coreerrors.CodeValidationError, "code must not be empty")
	}
	if int64(len(code)) > s.app.Config.Analysis.MaxFileSize {
		return nil, coreerrors.Newf(coreerrors.CodeSizeExceeded,
			"source of %d bytes exceeds the %d byte limit", len(code), s.app.Config.Analysis.MaxFileSize)
	}
	if language == "" {
		if filePath != "" {
			language = rules.LanguageForPath(filePath)
		} else {
			return nil, coreerrors.New(coreerrors.CodeValidationError, "language must not be empty")
		}
	}

	start := time.Now()
	report := s.app.Engine.Analyze(ctx, code, language)
	observability.AnalysisDuration.WithLabelValues(language).Observe(time.Since(start).Seconds())
	return report, nil
}

func (s *analysisService) AnalyzeFile(ctx context.Context, path string) (*analysis.Report, error) {
	if strings.TrimSpace(path) == "" {
		return nil, coreerrors.New(coreerrors.CodeValidationError, "filePath must not be empty")
	}

	info, err := os.Stat(path)
	if err != nil {
		notFound := coreerrors.Wrap(err, coreerrors.CodeNotFound, "file does not exist")
		return nil, coreerrors.AddContext(notFound, coreerrors.CtxPath, path)
	}
	if info.IsDir() {
		return nil, coreerrors.Newf(coreerrors.CodeValidationError, "%s is a directory", path)
	}
	// Size guard before the read keeps oversized files away from the
	// engine entirely.
	if info.Size() > s.app.Config.Analysis.MaxFileSize {
		return nil, coreerrors.Newf(coreerrors.CodeSizeExceeded,
			"file of %d bytes exceeds the %d byte limit", info.Size(), s.app.Config.Analysis.MaxFileSize)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeInternal, "failed to read file")
	}
	if len(strings.TrimSpace(string(content))) == 0 {
		return &analysis.Report{Issues: []analysis.Issue{}, Score: 100}, nil
	}

	return s.AnalyzeSource(ctx, string(content), rules.LanguageForPath(path), path)
}
