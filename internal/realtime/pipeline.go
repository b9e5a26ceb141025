package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"vigil/internal/core/config"
	coreerrors "vigil/internal/core/errors"
	"vigil/internal/core/ports"
	"vigil/internal/core/watcher"
	"vigil/internal/data/history"
	"vigil/internal/engine/rules"
)

// Pipeline wires filesystem events through the debounce scheduler into
// the analysis engine and fans results out over the hub. Data flows one
// direction; the only shared mutable state is the watched-root set and
// the per-path job table, both owned by their components.
type Pipeline struct {
	cfg     *config.Config
	svc     ports.AnalysisService
	store   ports.HistoryStore
	hub     *Hub
	session *watcher.Session
	sched   *watcher.Scheduler

	shutdown sync.Once
}

// NewPipeline builds the pipeline. store may be nil.
func NewPipeline(cfg *config.Config, svc ports.AnalysisService, store ports.HistoryStore, hub *Hub) (*Pipeline, error) {
	p := &Pipeline{cfg: cfg, svc: svc, store: store, hub: hub}

	session, err := watcher.NewSession(cfg.Exclude.Dirs, cfg.Exclude.Files, p.handleEvent)
	if err != nil {
		return nil, err
	}
	p.session = session
	p.sched = watcher.NewScheduler(cfg.Watch.Debounce, p.runJob)
	return p, nil
}

// Start registers the configured watch roots. Roots added later over
// the control channel go through Watch.
func (p *Pipeline) Start() error {
	for _, root := range p.cfg.Watch.Roots {
		if _, err := p.Watch(root); err != nil {
			return err
		}
	}
	return nil
}

var _ ports.WatchControl = (*Pipeline)(nil)

// Watch registers a root and schedules a debounced job for every
// eligible file already under it.
func (p *Pipeline) Watch(path string) (bool, error) {
	added, err := p.session.AddRoot(path)
	if err != nil || !added {
		return added, err
	}
	go p.scanRoot(path)
	return true, nil
}

func (p *Pipeline) scanRoot(root string) {
	err := p.session.WalkEligible(root, func(path string) {
		p.sched.Schedule(watcher.Event{Path: path, Type: watcher.ChangeAdded})
	})
	if err != nil {
		slog.Warn("initial root scan incomplete", "path", root, "error", err)
	}
}

// Unwatch removes a root and cancels every pending job under it.
func (p *Pipeline) Unwatch(path string) error {
	if err := p.session.RemoveRoot(path); err != nil {
		return err
	}
	p.sched.CancelUnder(path)
	return nil
}

func (p *Pipeline) handleEvent(ev watcher.Event) {
	p.sched.Schedule(ev)
}

// runJob executes one fired debounce job. The scheduler already
// guarantees per-path exclusivity; jobs for distinct paths overlap
// freely.
func (p *Pipeline) runJob(ev watcher.Event) {
	result := FileResult{
		FilePath:   ev.Path,
		Timestamp:  time.Now().UTC(),
		ChangeType: ev.Type,
	}

	if ev.Type != watcher.ChangeDeleted {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		report, err := p.svc.AnalyzeFile(ctx, ev.Path)
		if err != nil {
			if coreerrors.IsCode(err, coreerrors.CodeNotFound) {
				// Deleted between the event and the fire; report it as such.
				result.ChangeType = watcher.ChangeDeleted
			} else {
				slog.Warn("scheduled analysis failed", "path", ev.Path, "error", err)
				return
			}
		} else {
			result.Analysis = report
		}
	}

	if p.store != nil && result.Analysis != nil {
		entry := history.Entry{
			Path:       ev.Path,
			Language:   rules.LanguageForPath(ev.Path),
			Score:      result.Analysis.Score,
			IssueCount: len(result.Analysis.Issues),
			ChangeType: string(result.ChangeType),
			Timestamp:  result.Timestamp,
		}
		if err := p.store.Save(entry); err != nil {
			slog.Warn("failed to persist analysis entry", "path", ev.Path, "error", err)
		}
	}

	p.hub.Broadcast(AnalysisEvent{Type: EventRealtimeAnalysis, Result: result})
}

// Healthy reports whether the underlying watch session is serviceable.
func (p *Pipeline) Healthy() bool {
	return p.session.Healthy()
}

// Roots returns the watched roots.
func (p *Pipeline) Roots() []string {
	return p.session.Roots()
}

// Shutdown tears the pipeline down: pending timers first, then the
// watch handle, then the subscriptions. Idempotent.
func (p *Pipeline) Shutdown() {
	p.shutdown.Do(func() {
		p.sched.Close()
		if err := p.session.Close(); err != nil {
			slog.Warn("watch session close failed", "error", err)
		}
		p.hub.Close()
	})
}
