// Package config loads the bundler configuration from YAML, with environment
// variable expansion and optional .env files.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/bundler/internal/compiler"
	"git.home.luguber.info/inful/bundler/internal/errors"
)

// Config is the application configuration.
type Config struct {
	Name    string        `yaml:"name"`
	Context string        `yaml:"context"`
	Entries []string      `yaml:"entries"`
	Output  OutputConfig  `yaml:"output"`
	Records RecordsConfig `yaml:"records"`
	Watch   WatchConfig   `yaml:"watch"`
	Build   BuildConfig   `yaml:"build"`
	Logging LogConfig     `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Report  ReportConfig  `yaml:"report"`
	History HistoryConfig `yaml:"history"`
	Plugins PluginsConfig `yaml:"plugins"`
}

// OutputConfig controls asset emission.
type OutputConfig struct {
	Directory string `yaml:"directory"`
}

// RecordsConfig controls records persistence.
type RecordsConfig struct {
	InputPath  string `yaml:"input_path,omitempty"`
	OutputPath string `yaml:"output_path,omitempty"`
}

// WatchConfig controls the watch loop.
type WatchConfig struct {
	AggregateTimeout Duration `yaml:"aggregate_timeout,omitempty"`
	RebuildInterval  Duration `yaml:"rebuild_interval,omitempty"`
}

// Duration decodes Go duration strings ("200ms", "5s") from YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// BuildConfig controls the build cycle.
type BuildConfig struct {
	MaxAdditionalPasses int `yaml:"max_additional_passes,omitempty"`
}

// LogConfig mirrors observability.LogConfig.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// MetricsConfig controls the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Addr    string `yaml:"addr,omitempty"`
}

// ReportConfig controls the NATS build report sink.
type ReportConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// HistoryConfig controls the SQLite build history.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

// PluginsConfig toggles the built-in plugins.
type PluginsConfig struct {
	Markdown bool `yaml:"markdown,omitempty"`
}

// Load reads and validates the configuration file. Environment variables in
// the YAML content are expanded after optional .env files are loaded.
func Load(configPath string) (*Config, error) {
	// Best effort; a missing .env is not an error.
	for _, envPath := range []string{".env", ".env.local"} {
		_ = godotenv.Load(envPath)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, errors.ConfigNotFound(configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "bundler"
	}
	if c.Context == "" {
		c.Context = "."
	}
	if c.Output.Directory == "" {
		c.Output.Directory = "./dist"
	}
	if c.Watch.AggregateTimeout == 0 {
		c.Watch.AggregateTimeout = Duration(200 * time.Millisecond)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9090"
	}
	if c.Report.Subject == "" {
		c.Report.Subject = "bundler.builds"
	}
	if c.History.Path == "" {
		c.History.Path = ".bundler-history.db"
	}
}

// Validate rejects configurations the build cannot run with.
func (c *Config) Validate() error {
	if len(c.Entries) == 0 {
		return errors.ValidationFailed("entries", "at least one entry is required")
	}
	if c.Build.MaxAdditionalPasses < 0 {
		return errors.ValidationFailed("build.max_additional_passes", "must not be negative")
	}
	if c.Report.Enabled && c.Report.NATSURL == "" {
		return errors.ValidationFailed("report.nats_url", "required when report is enabled")
	}
	return nil
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := Config{
		Name:    "app",
		Context: ".",
		Entries: []string{"src/index.js", "docs/readme.md"},
		Output:  OutputConfig{Directory: "./dist"},
		Records: RecordsConfig{
			InputPath:  ".bundler-records.json",
			OutputPath: ".bundler-records.json",
		},
		Logging: LogConfig{Level: "info", Format: "text"},
		Plugins: PluginsConfig{Markdown: true},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// CompilerOptions maps the configuration onto compiler options.
func (c *Config) CompilerOptions() compiler.Options {
	return compiler.Options{
		Name:                c.Name,
		Context:             c.Context,
		Entries:             c.Entries,
		Output:              compiler.OutputOptions{Dir: c.Output.Directory},
		RecordsInputPath:    c.Records.InputPath,
		RecordsOutputPath:   c.Records.OutputPath,
		MaxAdditionalPasses: c.Build.MaxAdditionalPasses,
	}
}
