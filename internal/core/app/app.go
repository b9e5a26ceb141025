package app

import (
	"log/slog"

	"vigil/internal/core/config"
	"vigil/internal/data/history"
	"vigil/internal/engine/analysis"
	"vigil/internal/engine/enrich"
	"vigil/internal/engine/rules"
)

// App wires the analysis engine, the optional enrichment collaborator
// and the history store from configuration.
type App struct {
	Config *config.Config
	Engine *analysis.Engine
	Store  *history.Store
}

func New(cfg *config.Config) (*App, error) {
	maint := rules.NewMaintainability()
	maint.ComplexityWarn = cfg.Analysis.ComplexityWarn
	maint.ComplexityCritical = cfg.Analysis.ComplexityCritical

	detectors := []analysis.Detector{
		rules.NewSecurity(),
		rules.NewPerformance(),
		rules.NewStyle(),
		maint,
	}

	weights := analysis.Weights{
		Critical: cfg.Analysis.Weights.Critical,
		High:     cfg.Analysis.Weights.High,
		Medium:   cfg.Analysis.Weights.Medium,
		Low:      cfg.Analysis.Weights.Low,
	}
	engine := analysis.NewEngine(detectors, weights)

	if cfg.Enrichment.Enabled {
		summarizer, err := enrich.NewClient(cfg.Enrichment.Model, cfg.Enrichment.RequestsPerMinute)
		if err != nil {
			// Enrichment is an optional collaborator; run without it.
			slog.Warn("enrichment disabled", "reason", err)
		} else {
			engine.WithSummarizer(summarizer, cfg.Enrichment.Timeout)
		}
	}

	app := &App{Config: cfg, Engine: engine}

	if cfg.DB.Enabled {
		store, err := history.Open(cfg.DB.Path)
		if err != nil {
			return nil, err
		}
		app.Store = store
	}

	return app, nil
}

func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
