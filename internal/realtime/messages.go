package realtime

import (
	"time"

	"vigil/internal/core/watcher"
	"vigil/internal/engine/analysis"
)

// ControlMessage is one inbound client request on the persistent
// connection. Exactly one of Path/FilePath is meaningful per type.
type ControlMessage struct {
	Type     string `json:"type"`
	Path     string `json:"path,omitempty"`
	FilePath string `json:"filePath,omitempty"`
}

const (
	MsgWatch       = "watch"
	MsgUnwatch     = "unwatch"
	MsgAnalyzeFile = "analyze_file"
)

// Ack is the per-message acknowledgment. Error and the success fields
// are mutually exclusive.
type Ack struct {
	Type   string           `json:"type,omitempty"`
	Path   string           `json:"path,omitempty"`
	Result *analysis.Report `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

const (
	AckWatchStarted   = "watch_started"
	AckWatchStopped   = "watch_stopped"
	AckAnalysisResult = "analysis_result"
)

// FileResult is the payload of an unsolicited broadcast. Analysis is
// nil for deleted files.
type FileResult struct {
	FilePath   string             `json:"filePath"`
	Analysis   *analysis.Report   `json:"analysis"`
	Timestamp  time.Time          `json:"timestamp"`
	ChangeType watcher.ChangeType `json:"changeType"`
}

// AnalysisEvent is the broadcast envelope sent to every subscriber.
type AnalysisEvent struct {
	Type   string     `json:"type"`
	Result FileResult `json:"result"`
}

const EventRealtimeAnalysis = "realtime_analysis"
