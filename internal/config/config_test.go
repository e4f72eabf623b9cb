package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultTemplateRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentgraph.yml")
	require.NoError(t, WriteConfigFile(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, Default().Settings, cfg.Settings)
	require.Equal(t, path, cfg.SettingsPath)
}

func TestLoad(t *testing.T) {
	t.Run("file values", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "agentgraph.yml")
		require.NoError(t, os.WriteFile(path, []byte("listen: \":9000\"\nprobe-timeout: 3s\nrecord-transcripts: true\n"), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		require.Equal(t, ":9000", cfg.Listen)
		require.Equal(t, 3*time.Second, cfg.ProbeTimeout)
		require.True(t, cfg.RecordTranscripts)
		require.Equal(t, 8, cfg.ProbeConcurrency)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "agentgraph.yml")
		require.NoError(t, os.WriteFile(path, []byte("probe-concurrency: 2\n"), 0o600))
		t.Setenv("AGENTGRAPH_PROBE_CONCURRENCY", "4")
		t.Setenv("AGENTGRAPH_DEFAULT_USER", "alice")

		cfg, err := Load(path)
		require.NoError(t, err)
		require.Equal(t, 4, cfg.ProbeConcurrency)
		require.Equal(t, "alice", cfg.DefaultUser)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "agentgraph.yml")
		require.NoError(t, os.WriteFile(path, []byte("listen: [oops\n"), 0o600))

		_, err := Load(path)
		require.ErrorContains(t, err, "yaml")
	})

	t.Run("runtime fields are not read from yaml", func(t *testing.T) {
		var cfg Config
		require.NoError(t, yaml.Unmarshal([]byte("query: what\npretty: true\n"), &cfg))
		require.Empty(t, cfg.Query)
		require.False(t, cfg.Pretty)
	})
}

func TestLoadEnvFile(t *testing.T) {
	t.Run("missing file is fine", func(t *testing.T) {
		require.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), ".env")))
	})

	t.Run("does not override the environment", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte("AGENTGRAPH_TEST_KEY=from-file\nAGENTGRAPH_TEST_OTHER=other\n"), 0o600))
		t.Setenv("AGENTGRAPH_TEST_KEY", "from-env")
		t.Setenv("AGENTGRAPH_TEST_OTHER", "")
		require.NoError(t, os.Unsetenv("AGENTGRAPH_TEST_OTHER"))

		require.NoError(t, LoadEnvFile(path))
		require.Equal(t, "from-env", os.Getenv("AGENTGRAPH_TEST_KEY"))
		require.Equal(t, "other", os.Getenv("AGENTGRAPH_TEST_OTHER"))
	})
}

func TestCredentials(t *testing.T) {
	t.Run("env", func(t *testing.T) {
		t.Setenv("AGENTGRAPH_TEST_SECRET", "s3cret")
		t.Setenv("AGENTGRAPH_TEST_EMPTY", "")

		v, ok := EnvCredentials{}.Lookup("AGENTGRAPH_TEST_SECRET")
		require.True(t, ok)
		require.Equal(t, "s3cret", v)

		_, ok = EnvCredentials{}.Lookup("AGENTGRAPH_TEST_EMPTY")
		require.False(t, ok)
	})

	t.Run("static", func(t *testing.T) {
		creds := StaticCredentials{"OPENAI_API_KEY": "sk-1"}
		v, ok := creds.Lookup("OPENAI_API_KEY")
		require.True(t, ok)
		require.Equal(t, "sk-1", v)
		_, ok = creds.Lookup("GOOGLE_API_KEY")
		require.False(t, ok)
	})
}

func TestEnvVars(t *testing.T) {
	vars := EnvVars()
	require.Equal(t, EnvVar{Name: "AGENTGRAPH_LISTEN", Setting: "listen"}, vars[0])
	require.Contains(t, vars, EnvVar{Name: "AGENTGRAPH_RECORD_TRANSCRIPTS", Setting: "record-transcripts"})
	for _, v := range vars {
		require.NotEmpty(t, v.Setting, v.Name)
	}
}
