package ports

import (
	"context"

	"vigil/internal/data/history"
	"vigil/internal/engine/analysis"
)

// AnalysisService is the one-shot analyze surface consumed by the HTTP
// and websocket control layers.
type AnalysisService interface {
	// AnalyzeSource scores an in-memory source text. Hard failures are
	// limited to validation and size errors.
	AnalyzeSource(ctx context.Context, code, language, filePath string) (*analysis.Report, error)
	// AnalyzeFile reads and scores a file from disk, applying the
	// upstream size guard before the engine is invoked.
	AnalyzeFile(ctx context.Context, path string) (*analysis.Report, error)
}

// WatchControl is the watch lifecycle surface exposed over the control
// channel.
type WatchControl interface {
	// Watch registers a root. Returns false with nil error when the
	// root was already watched.
	Watch(path string) (bool, error)
	Unwatch(path string) error
}

// Broadcaster fans a payload out to all connected subscribers.
type Broadcaster interface {
	Broadcast(v interface{})
}

// HistoryStore records completed analysis outcomes.
type HistoryStore interface {
	Save(entry history.Entry) error
	Recent(path string, limit int) ([]history.Entry, error)
	Close() error
}
