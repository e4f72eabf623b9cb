package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriteMemProfiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "profiles")
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	require.NoError(t, writeMemProfiles(dir, now))

	for _, name := range []string{"agentgraph_heap_20260301T093000.pprof", "agentgraph_allocs_20260301T093000.pprof"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
		require.NotZero(t, info.Size())
	}
}
