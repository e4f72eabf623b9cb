package blueprint

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/agentgraph/internal/errs"
)

func TestLoad(t *testing.T) {
	fromJSON, err := Load(filepath.Join("testdata", "weather.json"))
	require.NoError(t, err)
	fromYAML, err := Load(filepath.Join("testdata", "weather.yaml"))
	require.NoError(t, err)
	require.Equal(t, fromJSON, fromYAML)

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
		var uerr errs.Error
		require.ErrorAs(t, err, &uerr)
	})
}
