// Package httpapi implements the HTTP gateway for opsbox.
//
// Security:
//   - HTTP Basic authentication with a single in-memory credential
//     (constant-time comparison); the core operations stay
//     authorization-agnostic and the check is applied as group middleware
//   - All requests logged with correlation IDs
//   - TLS expected via reverse proxy (not handled here)
//
// All operation responses are plain text, matching the original service
// contract. Error bodies are the taxonomy error messages; status codes come
// from opserr.HTTPStatus.
package httpapi

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jkaninda/okapi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/zeroco/opsbox/internal/config"
	"github.com/zeroco/opsbox/internal/download"
	"github.com/zeroco/opsbox/internal/logreader"
	"github.com/zeroco/opsbox/internal/observability"
	"github.com/zeroco/opsbox/internal/runner"
)

const defaultMaxRequestSize = 1 << 20 // 1 MB

// ErrorBody is the standard error response used in OpenAPI documentation.
type ErrorBody struct {
	Error string `json:"error"`
}

// Config configures the HTTP gateway.
type Config struct {
	ListenAddr string // e.g., ":8080"
	EnableDocs bool
	Auth       config.AuthConfig // Empty password = auth disabled.

	// Observability
	MetricsRegistry *prometheus.Registry            // Custom Prometheus registry for /metrics.
	MetricsPath     string                          // Path for metrics endpoint. Default: "/metrics".
	HealthChecker   *observability.HealthChecker    // Readiness checker for /readyz.
	Metrics         *observability.MetricsCollector // Metrics collector for middleware and handlers.
	Tracer          trace.Tracer                    // OTel tracer for HTTP middleware.
}

// Gateway routes the three system operations over HTTP.
type Gateway struct {
	config     Config
	runner     *runner.Runner
	downloader *download.Downloader
	logs       *logreader.Reader
	logger     *slog.Logger
	server     *http.Server
	okapi      *okapi.Okapi
	group      *okapi.Group
}

// NewGateway creates the HTTP gateway over the three core components.
func NewGateway(cfg Config, r *runner.Runner, d *download.Downloader, lr *logreader.Reader, logger *slog.Logger) *Gateway {
	return &Gateway{
		config:     cfg,
		runner:     r,
		downloader: d,
		logs:       lr,
		logger:     logger,
		okapi:      okapi.New(okapi.WithMaxMultipartMemory(defaultMaxRequestSize)),
	}
}

// WithOpenAPIDocs enables the generated OpenAPI documentation endpoints.
func (g *Gateway) WithOpenAPIDocs() *Gateway {
	g.okapi.WithOpenAPIDocs(
		okapi.OpenAPI{
			Title:   "Opsbox",
			Version: "v1.0.0",
		},
	)
	return g
}

// Start launches the HTTP server and blocks until it exits or ctx is canceled.
func (g *Gateway) Start(ctx context.Context) error {
	// Metrics/tracing middleware (applied globally).
	if g.config.Metrics != nil || g.config.Tracer != nil {
		g.okapi.UseMiddleware(func(next http.Handler) http.Handler {
			return observability.HTTPMetricsMiddleware(g.config.Metrics, g.config.Tracer, next)
		})
	}

	// Authenticated /api/system group.
	var middlewares []okapi.Middleware
	if g.config.Auth.Enabled() {
		middlewares = append(middlewares, g.authenticate)
	} else {
		g.logger.Warn("basic auth disabled: no password configured")
	}
	g.group = g.okapi.Group("/api/system", middlewares...)

	g.group.Post("/execute", g.handleExecute,
		okapi.DocSummary("Execute a system command in the sandbox directory"),
		okapi.DocTags("Execute Operations"),
		okapi.DocRequestBody(ExecuteRequest{}),
		okapi.DocResponse(""),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusInternalServerError, ErrorBody{}),
		okapi.DocResponse(http.StatusGatewayTimeout, ErrorBody{}),
	)
	g.group.Get("/download", g.handleDownload,
		okapi.DocSummary("Download a file from a URL into the downloads directory"),
		okapi.DocTags("Download Operations"),
		okapi.DocQueryParam("url", "string", "URL of the file to download", true),
		okapi.DocQueryParam("destination", "string", "Destination filename or relative path within the downloads directory", true),
		okapi.DocResponse(""),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusInternalServerError, ErrorBody{}),
	)
	g.group.Get("/logs", g.handleLogs,
		okapi.DocSummary("Retrieve trailing lines from a log file"),
		okapi.DocTags("Logs Operations"),
		okapi.DocQueryParam("lines", "integer", "Number of trailing lines to retrieve (default 500)", false),
		okapi.DocQueryParam("file", "string", "Log filename (defaults to the configured default log file)", false),
		okapi.DocResponse(""),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
		okapi.DocResponse(http.StatusInternalServerError, ErrorBody{}),
	)

	// Observability endpoints (unauthenticated).
	g.okapi.Get("/healthz", g.handleLiveness)
	g.okapi.Get("/readyz", g.handleReadiness)

	if g.config.MetricsRegistry != nil {
		path := g.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		g.okapi.HandleStd("GET", path, promhttp.HandlerFor(g.config.MetricsRegistry, promhttp.HandlerOpts{}).ServeHTTP)
	}
	if g.config.EnableDocs {
		g.WithOpenAPIDocs()
	}

	g.server = &http.Server{
		Addr:              g.config.ListenAddr,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Must outlast the command timeout so 504 bodies still reach the client.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(_ net.Listener) context.Context { return ctx },
	}

	g.logger.Info("http gateway starting", slog.String("addr", g.config.ListenAddr))

	return g.okapi.StartServer(g.server)
}

// Stop gracefully shuts down the HTTP server.
func (g *Gateway) Stop(_ context.Context) error {
	if g.server == nil {
		return nil
	}
	g.logger.Info("http gateway stopping")
	return g.okapi.Shutdown(g.server)
}

// --- Authentication ---

// authenticate enforces the single in-memory HTTP Basic credential.
// Both username and password are compared in constant time.
func (g *Gateway) authenticate(next okapi.HandlerFunc) okapi.HandlerFunc {
	return func(c *okapi.Context) error {
		user, pass, ok := c.Request().BasicAuth()

		userOK := subtle.ConstantTimeCompare([]byte(user), []byte(g.config.Auth.Username)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(g.config.Auth.Password)) == 1
		if !ok || !userOK || !passOK {
			c.Response().Header().Set("WWW-Authenticate", `Basic realm="opsbox"`)
			return c.AbortUnauthorized("unauthorized")
		}
		return next(c)
	}
}
