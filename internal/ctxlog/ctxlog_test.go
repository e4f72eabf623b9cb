package ctxlog

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	t.Run("falls back to default", func(t *testing.T) {
		require.Equal(t, slog.Default(), FromContext(context.Background()))
	})

	t.Run("returns embedded logger", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
		ctx := WithLogger(context.Background(), logger)
		require.Same(t, logger, FromContext(ctx))
	})
}

func TestNew(t *testing.T) {
	t.Run("json output honors level", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(&buf, "warn", "json")
		require.NoError(t, err)

		logger.Info("hidden")
		logger.Warn("probe failed", Err(errors.New("dial tcp: refused")))

		out := buf.String()
		require.NotContains(t, out, "hidden")
		require.Contains(t, out, "probe failed")
		require.Contains(t, out, "dial tcp: refused")
	})

	t.Run("bad level", func(t *testing.T) {
		_, err := New(&bytes.Buffer{}, "loud", "json")
		require.Error(t, err)
	})

	t.Run("bad format", func(t *testing.T) {
		_, err := New(&bytes.Buffer{}, "info", "xml")
		require.Error(t, err)
	})
}
