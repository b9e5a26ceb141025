package watcher

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	coreerrors "vigil/internal/core/errors"
	"vigil/internal/shared/observability"
)

// DefaultIgnoreDirs are directory names never surfaced as events, even
// nested under a watched root.
var DefaultIgnoreDirs = []string{
	"node_modules", ".git", ".svn", "vendor", "dist", "build", "target",
	"__pycache__", ".idea", ".vscode", "coverage",
}

// DefaultIgnoreFiles are file name globs never surfaced as events.
var DefaultIgnoreFiles = []string{"*.log", ".env", ".env.*", "*.min.js", "*.lock", "*.swp"}

// Session owns the set of filesystem roots under observation and the
// single underlying fsnotify handle, created lazily on the first
// AddRoot. Events surviving the ignore set are delivered to onEvent.
type Session struct {
	mu          sync.Mutex
	fw          *fsnotify.Watcher
	roots       map[string]bool
	ignoreDirs  []glob.Glob
	ignoreFiles []glob.Glob
	onEvent     func(Event)
	healthy     atomic.Bool
	reinited    bool
	closed      bool
}

func NewSession(ignoreDirs, ignoreFiles []string, onEvent func(Event)) (*Session, error) {
	if onEvent == nil {
		return nil, coreerrors.New(coreerrors.CodeValidationError, "watch session requires an event callback")
	}
	if len(ignoreDirs) == 0 {
		ignoreDirs = DefaultIgnoreDirs
	}
	if len(ignoreFiles) == 0 {
		ignoreFiles = DefaultIgnoreFiles
	}

	compiledDirs, err := compileGlobs(ignoreDirs)
	if err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeValidationError, "invalid ignore dir pattern")
	}
	compiledFiles, err := compileGlobs(ignoreFiles)
	if err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeValidationError, "invalid ignore file pattern")
	}

	s := &Session{
		roots:       make(map[string]bool),
		ignoreDirs:  compiledDirs,
		ignoreFiles: compiledFiles,
		onEvent:     onEvent,
	}
	s.healthy.Store(true)
	return s, nil
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, g)
	}
	return compiled, nil
}

// AddRoot starts observing a directory tree. Returns false with a nil
// error when the root is already watched; a NotFound error when the
// path does not exist.
func (s *Session) AddRoot(path string) (bool, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false, coreerrors.Wrap(err, coreerrors.CodeValidationError, "invalid watch path")
	}
	if _, err := os.Stat(abs); err != nil {
		notFound := coreerrors.Wrap(err, coreerrors.CodeNotFound, "watch path does not exist")
		return false, coreerrors.AddContext(notFound, coreerrors.CtxPath, abs)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, coreerrors.New(coreerrors.CodeInternal, "watch session is closed")
	}
	if s.roots[abs] {
		return false, nil
	}
	if err := s.ensureWatcherLocked(); err != nil {
		return false, err
	}
	if err := s.watchRecursiveLocked(abs); err != nil {
		return false, coreerrors.Wrap(err, coreerrors.CodeInternal, "failed to watch root")
	}
	s.roots[abs] = true
	slog.Info("watch root added", "path", abs)
	return true, nil
}

// RemoveRoot stops observing a directory tree. Removing an unknown
// root is a NotFound error.
func (s *Session) RemoveRoot(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return coreerrors.Wrap(err, coreerrors.CodeValidationError, "invalid watch path")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.roots[abs] {
		return coreerrors.Newf(coreerrors.CodeNotFound, "path %s is not watched", abs)
	}
	delete(s.roots, abs)
	if s.fw != nil {
		for _, watched := range s.fw.WatchList() {
			if watched == abs || hasPathPrefix(watched, abs) {
				_ = s.fw.Remove(watched)
			}
		}
	}
	slog.Info("watch root removed", "path", abs)
	return nil
}

// Roots returns the currently watched roots.
func (s *Session) Roots() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	roots := make([]string, 0, len(s.roots))
	for root := range s.roots {
		roots = append(roots, root)
	}
	return roots
}

// Healthy reports whether the underlying watch handle is serviceable.
// It turns false only after a failed reinitialization.
func (s *Session) Healthy() bool {
	return s.healthy.Load()
}

// ensureWatcherLocked lazily creates the fsnotify handle and starts the
// event loop. Caller holds the mutex.
func (s *Session) ensureWatcherLocked() error {
	if s.fw != nil {
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return coreerrors.Wrap(err, coreerrors.CodeInternal, "failed to create filesystem watcher")
	}
	s.fw = fw
	go s.run(fw)
	return nil
}

func (s *Session) watchRecursiveLocked(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if s.ignoredDir(path) {
				return filepath.SkipDir
			}
			return s.fw.Add(path)
		}
		return nil
	})
}

func (s *Session) run(fw *fsnotify.Watcher) {
	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				s.handleWatcherFailure(fw)
				return
			}
			s.handleFSEvent(event)

		case err, ok := <-fw.Errors:
			if !ok {
				s.handleWatcherFailure(fw)
				return
			}
			slog.Error("watch session error", "error", err)
		}
	}
}

func (s *Session) handleFSEvent(event fsnotify.Event) {
	observability.WatcherEventsTotal.Inc()

	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if s.ignoredDir(event.Name) {
				return
			}
			s.mu.Lock()
			if s.fw != nil {
				if err := s.watchRecursiveLocked(event.Name); err != nil {
					slog.Warn("failed to watch new directory", "path", event.Name, "error", err)
				}
			}
			s.mu.Unlock()
			return
		}
	}

	if s.Ignored(event.Name) {
		observability.WatcherIgnoredTotal.Inc()
		return
	}

	var change ChangeType
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		change = ChangeAdded
	case event.Op&fsnotify.Write == fsnotify.Write:
		change = ChangeChanged
	case event.Op&fsnotify.Remove == fsnotify.Remove, event.Op&fsnotify.Rename == fsnotify.Rename:
		change = ChangeDeleted
	default:
		return
	}

	s.onEvent(Event{Path: event.Name, Type: change})
}

// handleWatcherFailure attempts a single reinitialization of the watch
// handle; a second failure marks the session unhealthy.
func (s *Session) handleWatcherFailure(failed *fsnotify.Watcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.fw != failed {
		return
	}
	s.fw = nil
	if s.reinited {
		slog.Error("watch handle failed after reinitialization, giving up")
		s.healthy.Store(false)
		return
	}
	s.reinited = true
	slog.Warn("watch handle failed, reinitializing")

	if err := s.ensureWatcherLocked(); err != nil {
		s.healthy.Store(false)
		return
	}
	for root := range s.roots {
		if err := s.watchRecursiveLocked(root); err != nil {
			slog.Error("failed to rewatch root", "path", root, "error", err)
			s.healthy.Store(false)
			return
		}
	}
}

// Ignored reports whether a file path matches the ignore set, either by
// its own name or by any ancestor directory name.
func (s *Session) Ignored(path string) bool {
	base := filepath.Base(path)
	for _, g := range s.ignoreFiles {
		if g.Match(base) {
			return true
		}
	}
	dir := filepath.Dir(path)
	for {
		for _, g := range s.ignoreDirs {
			if g.Match(filepath.Base(dir)) {
				return true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return false
		}
		dir = parent
	}
}

func (s *Session) ignoredDir(path string) bool {
	base := filepath.Base(path)
	for _, g := range s.ignoreDirs {
		if g.Match(base) {
			return true
		}
	}
	return false
}

// WalkEligible visits every non-ignored regular file under root.
func (s *Session) WalkEligible(root string, fn func(path string)) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil {
			return nil
		}
		if info.IsDir() {
			if s.ignoredDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !s.Ignored(path) {
			fn(path)
		}
		return nil
	})
}

// Close tears down the watch handle. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.roots = make(map[string]bool)
	if s.fw != nil {
		err := s.fw.Close()
		s.fw = nil
		return err
	}
	return nil
}

func hasPathPrefix(path, root string) bool {
	return strings.HasPrefix(path, root+string(filepath.Separator))
}
