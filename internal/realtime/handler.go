package realtime

import (
	"context"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	coreerrors "vigil/internal/core/errors"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
}

const controlTimeout = 30 * time.Second

// HandleWS upgrades the connection, registers the subscription and
// services control messages until the client disconnects. Malformed
// messages get an error acknowledgment, never a connection drop.
func (p *Pipeline) HandleWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("failed to upgrade websocket", "error", err)
		return
	}

	client := p.hub.Register(ws)
	if client == nil {
		return
	}
	defer p.hub.Unregister(client)

	for {
		var msg ControlMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if isClientGone(err) {
				slog.Info("subscriber closed connection", "client", client.ID)
				return
			}
			client.Send(Ack{Error: "Invalid message"})
			continue
		}
		client.Send(p.handleControl(msg))
	}
}

// handleControl services one inbound request synchronously and returns
// its acknowledgment.
func (p *Pipeline) handleControl(msg ControlMessage) Ack {
	switch msg.Type {
	case MsgWatch:
		if strings.TrimSpace(msg.Path) == "" {
			return Ack{Error: "path is required"}
		}
		if _, err := p.Watch(msg.Path); err != nil {
			return Ack{Error: err.Error()}
		}
		return Ack{Type: AckWatchStarted, Path: msg.Path}

	case MsgUnwatch:
		if strings.TrimSpace(msg.Path) == "" {
			return Ack{Error: "path is required"}
		}
		if err := p.Unwatch(msg.Path); err != nil {
			return Ack{Error: err.Error()}
		}
		return Ack{Type: AckWatchStopped, Path: msg.Path}

	case MsgAnalyzeFile:
		if strings.TrimSpace(msg.FilePath) == "" {
			return Ack{Error: "filePath is required"}
		}
		ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
		defer cancel()
		report, err := p.svc.AnalyzeFile(ctx, msg.FilePath)
		if err != nil {
			return Ack{Error: err.Error()}
		}
		return Ack{Type: AckAnalysisResult, Result: report}

	default:
		return Ack{Error: "Unknown message type"}
	}
}

func isClientGone(err error) bool {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
		return true
	}
	if websocket.IsUnexpectedCloseError(err) {
		return true
	}
	// Read errors from a dead transport are terminal; JSON decode
	// errors are not.
	var syntaxGuess bool
	msg := err.Error()
	syntaxGuess = strings.Contains(msg, "json") || strings.Contains(msg, "unmarshal") || strings.Contains(msg, "unexpected")
	return !syntaxGuess && (strings.Contains(msg, "connection") || strings.Contains(msg, "EOF") || coreerrors.IsCode(err, coreerrors.CodeTransportError))
}
