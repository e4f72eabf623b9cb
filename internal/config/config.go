package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"text/template"
	"time"

	_ "embed"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dotcommander/agentgraph/internal/errs"
)

//go:embed config_template.yml
var configTemplate string

// EnvPrefix prefixes every environment variable that overrides a setting.
const EnvPrefix = "AGENTGRAPH_"

// ConfigEnv names the settings file instead of the default location.
const ConfigEnv = EnvPrefix + "CONFIG"

// EnvVar is an environment variable that overrides one setting.
type EnvVar struct {
	Name    string
	Setting string
}

// EnvVars lists the overriding variables in settings file order.
func EnvVars() []EnvVar {
	t := reflect.TypeFor[Settings]()
	out := make([]EnvVar, 0, t.NumField())
	for i := range t.NumField() {
		f := t.Field(i)
		name := f.Tag.Get("env")
		if name == "" || name == "-" {
			continue
		}
		out = append(out, EnvVar{Name: EnvPrefix + name, Setting: f.Tag.Get("yaml")})
	}
	return out
}

// Settings holds persisted configuration loaded from the YAML settings file
// and environment variables.
type Settings struct {
	Listen            string        `yaml:"listen" env:"LISTEN"`
	LogLevel          string        `yaml:"log-level" env:"LOG_LEVEL"`
	LogFormat         string        `yaml:"log-format" env:"LOG_FORMAT"`
	ProbeTimeout      time.Duration `yaml:"probe-timeout" env:"PROBE_TIMEOUT"`
	ProbeConcurrency  int           `yaml:"probe-concurrency" env:"PROBE_CONCURRENCY"`
	MCPTimeout        time.Duration `yaml:"mcp-timeout" env:"MCP_TIMEOUT"`
	A2APollInterval   time.Duration `yaml:"a2a-poll-interval" env:"A2A_POLL_INTERVAL"`
	A2ATimeout        time.Duration `yaml:"a2a-timeout" env:"A2A_TIMEOUT"`
	RecursionLimit    int           `yaml:"recursion-limit" env:"RECURSION_LIMIT"`
	MaxAgentSteps     int           `yaml:"max-agent-steps" env:"MAX_AGENT_STEPS"`
	HTTPProxy         string        `yaml:"http-proxy" env:"HTTP_PROXY"`
	DataDir           string        `yaml:"data-dir" env:"DATA_DIR"`
	RecordTranscripts bool          `yaml:"record-transcripts" env:"RECORD_TRANSCRIPTS"`
	DefaultUser       string        `yaml:"default-user" env:"DEFAULT_USER"`
	EnvFile           string        `yaml:"env-file" env:"ENV_FILE"`
}

// Runtime holds CLI/runtime-only options that should not be loaded from the
// settings file.
type Runtime struct {
	SettingsPath  string
	BlueprintPath string
	Query         string
	User          string
	Raw           bool
	Pretty        bool
}

// Config is the application configuration (settings + runtime-only options).
//
// Settings fields are promoted for ergonomic access, but runtime fields are
// explicitly excluded from YAML/env parsing.
type Config struct {
	Settings `yaml:",inline"`
	Runtime  `yaml:"-" env:"-"`
}

// Ensure loads settings from the default location, creating the settings file
// on first use, then loads the .env file it names.
func Ensure() (Config, error) {
	path := os.Getenv(ConfigEnv)
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return Default(), errs.Error{Err: err, Reason: "Could not determine config directory."}
		}
		path = filepath.Join(dir, "agentgraph", "agentgraph.yml")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return Default(), errs.Error{Err: err, Reason: "Could not create config directory."}
	}
	if err := WriteConfigFile(path); err != nil {
		return Default(), err
	}

	c, err := Load(path)
	if err != nil {
		return c, err
	}
	if err := LoadEnvFile(c.EnvFile); err != nil {
		return c, err
	}
	return c, nil
}

// Load reads the settings file at path, overlays the environment and fills
// in defaults for anything left unset.
func Load(path string) (Config, error) {
	c := Config{Runtime: Runtime{SettingsPath: path}}

	content, err := os.ReadFile(path)
	if err != nil {
		return c, errs.Error{Err: err, Reason: "Could not read settings file."}
	}
	if err := yaml.Unmarshal(content, &c); err != nil {
		return c, errs.Error{Err: err, Reason: "Could not parse settings file."}
	}
	if err := env.ParseWithOptions(&c, env.Options{Prefix: EnvPrefix}); err != nil {
		return c, errs.Error{Err: err, Reason: "Could not parse environment into settings file."}
	}

	c.applyDefaults()
	return c, nil
}

// LoadEnvFile loads credentials from a dotenv file without overriding
// variables already present in the environment. A missing file is not an
// error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errs.Error{Err: err, Reason: "Could not load env file."}
	}
	return nil
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = d.LogFormat
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = d.ProbeTimeout
	}
	if c.ProbeConcurrency <= 0 {
		c.ProbeConcurrency = d.ProbeConcurrency
	}
	if c.MCPTimeout <= 0 {
		c.MCPTimeout = d.MCPTimeout
	}
	if c.A2APollInterval <= 0 {
		c.A2APollInterval = d.A2APollInterval
	}
	if c.A2ATimeout <= 0 {
		c.A2ATimeout = d.A2ATimeout
	}
	if c.RecursionLimit <= 0 {
		c.RecursionLimit = d.RecursionLimit
	}
	if c.MaxAgentSteps <= 0 {
		c.MaxAgentSteps = d.MaxAgentSteps
	}
	if c.DataDir == "" {
		c.DataDir = d.DataDir
	}
	if c.DefaultUser == "" {
		c.DefaultUser = d.DefaultUser
	}
}

// WriteConfigFile creates the config file at path if it does not exist.
func WriteConfigFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return createConfigFile(path)
	} else if err != nil {
		return errs.Error{Err: err, Reason: "Could not stat path."}
	}
	return nil
}

func createConfigFile(path string) error {
	tmpl := template.Must(template.New("config").Parse(configTemplate))

	f, err := os.Create(path)
	if err != nil {
		return errs.Error{Err: err, Reason: "Could not create configuration file."}
	}
	defer func() { _ = f.Close() }()

	m := struct{ Config Config }{Config: Default()}
	if err := tmpl.Execute(f, m); err != nil {
		return errs.Error{Err: err, Reason: "Could not render template."}
	}
	return nil
}

// Default returns the default configuration values.
func Default() Config {
	dataDir := filepath.Join(os.TempDir(), "agentgraph")
	if dir, err := os.UserCacheDir(); err == nil {
		dataDir = filepath.Join(dir, "agentgraph")
	}
	return Config{
		Settings: Settings{
			Listen:           ":8000",
			LogLevel:         "info",
			LogFormat:        "console",
			ProbeTimeout:     15 * time.Second,
			ProbeConcurrency: 8,
			MCPTimeout:       15 * time.Second,
			A2APollInterval:  time.Second,
			A2ATimeout:       5 * time.Minute,
			RecursionLimit:   25,
			MaxAgentSteps:    10,
			DataDir:          dataDir,
			DefaultUser:      "default_user",
			EnvFile:          ".env",
		},
	}
}
