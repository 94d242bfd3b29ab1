package httpapi

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/jkaninda/okapi"

	"github.com/zeroco/opsbox/internal/opserr"
)

// ExecuteRequest is the JSON body for POST /api/system/execute.
type ExecuteRequest struct {
	Command string `json:"command"`
}

func (g *Gateway) handleExecute(c *okapi.Context) error {
	var req ExecuteRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("command is required")
	}

	correlationID := uuid.New().String()

	g.logger.Info("http execute",
		slog.String("correlation_id", correlationID),
		slog.String("command", req.Command),
	)

	res, err := g.runner.Execute(c.Context(), req.Command)
	if err != nil {
		g.recordCommand(opserr.MetricStatus(err))
		g.logger.Error("command execution failed",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)
		return operationError(c, err)
	}

	if g.config.Metrics != nil {
		g.config.Metrics.CommandExecutionDuration.Observe(res.Duration.Seconds())
	}

	if res.ExitCode != 0 {
		g.recordCommand("error")
		return c.String(http.StatusInternalServerError,
			fmt.Sprintf("Command failed with exit code %d\n%s", res.ExitCode, res.Output))
	}

	g.recordCommand("success")
	return c.String(http.StatusOK, res.Output)
}

func (g *Gateway) handleDownload(c *okapi.Context) error {
	q := c.Request().URL.Query()
	rawURL := q.Get("url")
	destination := q.Get("destination")

	if rawURL == "" {
		return c.AbortBadRequest("url is required")
	}
	if destination == "" {
		return c.AbortBadRequest("destination is required")
	}

	correlationID := uuid.New().String()

	g.logger.Info("http download",
		slog.String("correlation_id", correlationID),
		slog.String("url", rawURL),
		slog.String("destination", destination),
	)

	path, err := g.downloader.Fetch(c.Context(), rawURL, destination)
	if err != nil {
		g.recordDownload(opserr.MetricStatus(err))
		g.logger.Error("download failed",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)
		return operationError(c, err)
	}

	g.recordDownload("success")
	if g.config.Metrics != nil {
		if info, statErr := os.Stat(path); statErr == nil {
			g.config.Metrics.DownloadedBytes.Add(float64(info.Size()))
		}
	}

	return c.String(http.StatusOK, "File downloaded successfully to: "+path)
}

func (g *Gateway) handleLogs(c *okapi.Context) error {
	q := c.Request().URL.Query()

	lines := 0
	if raw := q.Get("lines"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return c.AbortBadRequest("lines must be an integer")
		}
		lines = n
	}
	file := q.Get("file")

	correlationID := uuid.New().String()

	g.logger.Info("http logs",
		slog.String("correlation_id", correlationID),
		slog.String("file", file),
		slog.Int("lines", lines),
	)

	content, err := g.logs.Tail(file, lines)
	if err != nil {
		g.recordLogRead(opserr.MetricStatus(err))
		g.logger.Error("log retrieval failed",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)
		return operationError(c, err)
	}

	g.recordLogRead("success")
	return c.String(http.StatusOK, content)
}

// HealthResponse is the JSON response for the health probes.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleLiveness is the Kubernetes liveness probe
func (g *Gateway) handleLiveness(c *okapi.Context) error {
	return c.OK(&HealthResponse{Status: "ok"})
}

// handleReadiness checks all registered dependencies and returns 200 or 503.
func (g *Gateway) handleReadiness(c *okapi.Context) error {
	if g.config.HealthChecker == nil {
		return c.OK(&HealthResponse{Status: "ok"})
	}

	status := g.config.HealthChecker.CheckReady(c.Context())
	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}

// --- Helpers ---

// operationError maps taxonomy errors to plain-text HTTP responses.
func operationError(c *okapi.Context, err error) error {
	return c.String(opserr.HTTPStatus(err), err.Error())
}

func (g *Gateway) recordCommand(status string) {
	if g.config.Metrics != nil {
		g.config.Metrics.CommandExecutionsTotal.WithLabelValues(status).Inc()
	}
}

func (g *Gateway) recordDownload(status string) {
	if g.config.Metrics != nil {
		g.config.Metrics.DownloadsTotal.WithLabelValues(status).Inc()
	}
}

func (g *Gateway) recordLogRead(status string) {
	if g.config.Metrics != nil {
		g.config.Metrics.LogReadsTotal.WithLabelValues(status).Inc()
	}
}
