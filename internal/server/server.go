// Package server exposes blueprint runs over HTTP.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dotcommander/agentgraph/internal/ctxlog"
	"github.com/dotcommander/agentgraph/internal/errs"
	"github.com/dotcommander/agentgraph/internal/readiness"
	"github.com/dotcommander/agentgraph/internal/session"
	"github.com/dotcommander/agentgraph/internal/translate"
)

// MaxBodyBytes bounds a run request body.
const MaxBodyBytes = 4 << 20

// UserHeader names the request header carrying the caller's user id.
const UserHeader = "X-User-ID"

// Preparer prepares runs.
type Preparer interface {
	Prepare(ctx context.Context, req session.Request) (*session.Run, error)
}

// ErrorResponse is the body of every rejected request.
type ErrorResponse struct {
	Error    string    `json:"error"`
	Reason   string    `json:"reason"`
	Details  string    `json:"details"`
	Failures []Failure `json:"failures,omitempty"`
}

// Failure is one failed readiness probe.
type Failure struct {
	Kind   string `json:"kind"`
	Name   string `json:"name"`
	Target string `json:"target"`
	Error  string `json:"error"`
}

// NewRouter builds the router serving svc.
func NewRouter(svc Preparer, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+UserHeader)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	r.GET("/health", handleHealth)
	r.POST("/api/app", handleRun(svc))
	return r
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func handleRun(svc Preparer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes))
		if err != nil {
			sendError(c, errs.Schemaf("read request body: %w", err))
			return
		}
		req, err := session.DecodeRequest(body)
		if err != nil {
			sendError(c, err)
			return
		}
		req.UserID = c.GetHeader(UserHeader)

		run, err := svc.Prepare(ctx, req)
		if err != nil {
			sendError(c, err)
			return
		}

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)
		c.Writer.Flush()

		if _, err := run.Stream(ctx, translate.NewSSEWriter(c.Writer)); err != nil && ctx.Err() == nil {
			ctxlog.FromContext(ctx).WarnContext(ctx, "stream aborted", ctxlog.Err(err))
		}
	}
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(err error) int {
	switch errs.Kind(err) {
	case "schema":
		return http.StatusBadRequest
	case "structural", "configuration", "topology", "not-implemented":
		return http.StatusUnprocessableEntity
	case "readiness":
		return http.StatusFailedDependency
	default:
		return http.StatusInternalServerError
	}
}

func sendError(c *gin.Context, err error) {
	ctx := c.Request.Context()
	status := StatusOf(err)
	resp := ErrorResponse{Error: errs.Kind(err), Reason: errs.Reason(err), Details: err.Error()}

	var rerr *readiness.ReadinessError
	if errors.As(err, &rerr) {
		for _, f := range rerr.Failures {
			resp.Failures = append(resp.Failures, Failure{
				Kind:   string(f.Kind),
				Name:   f.Name,
				Target: f.Address,
				Error:  f.Err.Error(),
			})
		}
	}

	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	ctxlog.FromContext(ctx).Log(ctx, level, "request rejected", "status", status, "kind", resp.Error, ctxlog.Err(err))
	c.AbortWithStatusJSON(status, resp)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		log := logger.With("method", c.Request.Method, "path", c.Request.URL.Path)
		c.Request = c.Request.WithContext(ctxlog.WithLogger(c.Request.Context(), log))
		c.Next()
		log.Info("request",
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"remote", c.ClientIP(),
		)
	}
}

// Serve runs srv until ctx is done, then shuts it down gracefully within
// grace.
func Serve(ctx context.Context, srv *http.Server, grace time.Duration) error {
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
