package realtime

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	coreerrors "vigil/internal/core/errors"
	"vigil/internal/core/ports"
)

// AnalyzeRequest is the one-shot HTTP analyze payload. FilePath and
// Context are optional; FilePath is used for labeling only.
type AnalyzeRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
	FilePath string `json:"filePath,omitempty"`
	Context  string `json:"context,omitempty"`
}

// NewRouter mounts the control surface: the websocket endpoint, the
// one-shot analyze call, history queries and the observability
// endpoints.
func NewRouter(p *Pipeline, svc ports.AnalysisService, store ports.HistoryStore) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/ws", p.HandleWS)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/health", func(c *gin.Context) {
		status := "up"
		code := http.StatusOK
		if !p.Healthy() {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":  status,
			"roots":   p.Roots(),
			"clients": p.hub.ClientCount(),
		})
	})

	router.POST("/api/analyze", func(c *gin.Context) {
		var req AnalyzeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		report, err := svc.AnalyzeSource(c.Request.Context(), req.Code, req.Language, req.FilePath)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, report)
	})

	if store != nil {
		router.GET("/api/history", func(c *gin.Context) {
			path := c.Query("path")
			if path == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "path query parameter is required"})
				return
			}
			entries, err := store.Recent(path, 20)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"path": path, "entries": entries})
		})
	}

	return router
}

func statusFor(err error) int {
	switch coreerrors.CodeOf(err) {
	case coreerrors.CodeValidationError:
		return http.StatusBadRequest
	case coreerrors.CodeNotFound:
		return http.StatusNotFound
	case coreerrors.CodeSizeExceeded:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}
