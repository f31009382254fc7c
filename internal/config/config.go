// Package config loads and validates the orbit configuration file.
// Both JSON and YAML are accepted, selected by file extension.
package config

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full orbit configuration.
type Config struct {
	Port        int    `json:"port" yaml:"port"`
	DataDir     string `json:"data_dir,omitempty" yaml:"data_dir,omitempty"`
	SecretsFile string `json:"secrets_file,omitempty" yaml:"secrets_file,omitempty"`

	Index       IndexConfig       `json:"index" yaml:"index"`
	Embedding   EmbeddingConfig   `json:"embedding" yaml:"embedding"`
	Maintenance MaintenanceConfig `json:"maintenance,omitempty" yaml:"maintenance,omitempty"`
	Channels    []ChannelConfig   `json:"channels,omitempty" yaml:"channels,omitempty"`
	Debug       DebugConfig       `json:"debug,omitempty" yaml:"debug,omitempty"`
}

// IndexConfig locates the vector index database.
type IndexConfig struct {
	// Path to the index database file. Resolved relative to the data
	// directory when not absolute.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// EmbeddingConfig selects and tunes the embedding provider. The top-level
// section is the shared default; Text/Image/Audio override it per modality,
// so a deployment can pair e.g. a CLIP sidecar for images with a CLAP
// sidecar for audio.
type EmbeddingConfig struct {
	// Provider is "hashing" (default, fully local), "openai", or "remote".
	Provider string `json:"provider,omitempty" yaml:"provider,omitempty"`
	// Dims is the embedding dimensionality. Defaults per provider.
	Dims int `json:"dims,omitempty" yaml:"dims,omitempty"`
	// TimeoutSeconds bounds a single embedding call. Default 30.
	TimeoutSeconds int `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`

	OpenAI *OpenAIEmbedConfig `json:"openai,omitempty" yaml:"openai,omitempty"`
	Remote *RemoteEmbedConfig `json:"remote,omitempty" yaml:"remote,omitempty"`

	Text  *EmbeddingConfig `json:"text,omitempty" yaml:"text,omitempty"`
	Image *EmbeddingConfig `json:"image,omitempty" yaml:"image,omitempty"`
	Audio *EmbeddingConfig `json:"audio,omitempty" yaml:"audio,omitempty"`
}

// ForModality resolves the effective embedding settings for one modality:
// the override section when present (inheriting the shared timeout if it
// sets none), the shared section otherwise. Nested overrides inside an
// override are ignored.
func (e *EmbeddingConfig) ForModality(modality string) EmbeddingConfig {
	var override *EmbeddingConfig
	switch modality {
	case "text":
		override = e.Text
	case "image":
		override = e.Image
	case "audio":
		override = e.Audio
	}
	if override == nil {
		resolved := *e
		resolved.Text, resolved.Image, resolved.Audio = nil, nil, nil
		return resolved
	}
	resolved := *override
	resolved.Text, resolved.Image, resolved.Audio = nil, nil, nil
	if resolved.TimeoutSeconds == 0 {
		resolved.TimeoutSeconds = e.TimeoutSeconds
	}
	return resolved
}

// Timeout returns the per-call embedding budget for this section.
func (e *EmbeddingConfig) Timeout() time.Duration {
	if e.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// sections lists the shared section and any per-modality overrides.
func (e *EmbeddingConfig) sections() []*EmbeddingConfig {
	out := []*EmbeddingConfig{e}
	for _, override := range []*EmbeddingConfig{e.Text, e.Image, e.Audio} {
		if override != nil {
			out = append(out, override)
		}
	}
	return out
}

func (e *EmbeddingConfig) validate() error {
	switch e.Provider {
	case "", "hashing":
	case "openai":
		if e.OpenAI == nil || e.OpenAI.APIKey == "" {
			return fmt.Errorf("embedding provider 'openai' requires an api_key")
		}
	case "remote":
		if e.Remote == nil || e.Remote.BaseURL == "" {
			return fmt.Errorf("embedding provider 'remote' requires a base_url")
		}
	default:
		return fmt.Errorf("unknown embedding provider %q", e.Provider)
	}
	if e.Dims < 0 {
		return fmt.Errorf("embedding dims must not be negative")
	}
	return nil
}

// OpenAIEmbedConfig configures the OpenAI embedding provider.
type OpenAIEmbedConfig struct {
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"` // supports ${ENV_VAR} expansion
	Model  string `json:"model,omitempty" yaml:"model,omitempty"`     // default: text-embedding-3-small
}

// RemoteEmbedConfig configures an HTTP embedding sidecar.
type RemoteEmbedConfig struct {
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model   string `json:"model,omitempty" yaml:"model,omitempty"`
}

// MaintenanceConfig controls the scheduled background sweep.
type MaintenanceConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Schedule is a cron expression. Default: hourly.
	Schedule string `json:"schedule,omitempty" yaml:"schedule,omitempty"`
}

// ChannelConfig configures one capture channel adapter.
type ChannelConfig struct {
	Name    string            `json:"name" yaml:"name"`
	Type    string            `json:"type" yaml:"type"`
	Enabled bool              `json:"enabled" yaml:"enabled"`
	Config  map[string]string `json:"config,omitempty" yaml:"config,omitempty"`
}

// DebugConfig contains logging settings.
type DebugConfig struct {
	VerboseLogging bool `json:"verbose_logging,omitempty" yaml:"verbose_logging,omitempty"`
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Port: 18790,
		Index: IndexConfig{
			Path: "index.db",
		},
		Embedding: EmbeddingConfig{
			Provider:       "hashing",
			TimeoutSeconds: 30,
		},
		Maintenance: MaintenanceConfig{
			Enabled:  true,
			Schedule: "@hourly",
		},
		Channels: []ChannelConfig{
			{
				Name:    "telegram",
				Type:    "telegram",
				Enabled: false,
				Config: map[string]string{
					"bot_token": "${TELEGRAM_BOT_TOKEN}",
				},
			},
		},
	}
}

// Load loads configuration from a file, creating a default one when the
// file does not exist yet.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := cfg.Save(path); err != nil {
			return nil, fmt.Errorf("failed to save default config: %w", err)
		}
		fmt.Printf("Created default configuration at %s\n", path)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if isYAML(path) {
		err = yaml.Unmarshal(data, &cfg)
	} else {
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Expand tilde in path fields first so that secrets_file can
	// reference ~/... paths.
	cfg.expandTilde()

	// Load secrets file (KEY=VALUE) into the environment before
	// expanding ${ENV_VAR} placeholders in the config.
	if err := cfg.loadSecretsFile(); err != nil {
		return nil, fmt.Errorf("failed to load secrets file: %w", err)
	}

	if err := cfg.expandEnvVars(); err != nil {
		return nil, fmt.Errorf("failed to expand environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Save writes the configuration to a file, in the format its extension
// implies.
func (c *Config) Save(path string) error {
	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// expandEnvVars expands ${ENV_VAR} placeholders in configuration values.
func (c *Config) expandEnvVars() error {
	c.DataDir = os.ExpandEnv(c.DataDir)
	c.SecretsFile = os.ExpandEnv(c.SecretsFile)
	c.Index.Path = os.ExpandEnv(c.Index.Path)

	for _, e := range c.Embedding.sections() {
		if e.OpenAI != nil {
			e.OpenAI.APIKey = os.ExpandEnv(e.OpenAI.APIKey)
		}
		if e.Remote != nil {
			e.Remote.BaseURL = os.ExpandEnv(e.Remote.BaseURL)
		}
	}

	for i := range c.Channels {
		for key, value := range c.Channels[i].Config {
			c.Channels[i].Config[key] = os.ExpandEnv(value)
		}
	}

	return nil
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}

	for _, e := range c.Embedding.sections() {
		if err := e.validate(); err != nil {
			return err
		}
	}

	if c.Maintenance.Enabled && c.Maintenance.Schedule == "" {
		return fmt.Errorf("maintenance is enabled but has no schedule")
	}

	for _, ch := range c.Channels {
		if ch.Type == "" {
			return fmt.Errorf("channel %q has no type", ch.Name)
		}
	}

	return nil
}

// EmbedTimeout returns the shared per-call embedding budget.
func (c *Config) EmbedTimeout() time.Duration {
	return c.Embedding.Timeout()
}

// expandTilde replaces a leading "~/" with the user's home directory in
// path-valued config fields. Called before env-var expansion so that
// both "~/foo" and "${SOME_PATH}" work.
func (c *Config) expandTilde() {
	home, err := os.UserHomeDir()
	if err != nil {
		return // can't expand, leave as-is
	}
	expand := func(p string) string {
		if p == "~" {
			return home
		}
		if strings.HasPrefix(p, "~/") {
			return filepath.Join(home, p[2:])
		}
		return p
	}

	c.DataDir = expand(c.DataDir)
	c.SecretsFile = expand(c.SecretsFile)
	c.Index.Path = expand(c.Index.Path)
}

// loadSecretsFile reads a KEY=VALUE file into the process environment.
// Blank lines and lines starting with '#' are ignored.
// Existing environment variables are NOT overridden (shell/systemd wins).
// If SecretsFile is empty or the file doesn't exist, this is a no-op.
func (c *Config) loadSecretsFile() error {
	if c.SecretsFile == "" {
		return nil
	}

	f, err := os.Open(c.SecretsFile)
	if os.IsNotExist(err) {
		return nil // missing file is fine
	}
	if err != nil {
		return fmt.Errorf("cannot open secrets file %s: %w", c.SecretsFile, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		// Strip optional surrounding quotes from value
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		// Don't override existing env vars
		if _, exists := os.LookupEnv(key); !exists {
			os.Setenv(key, value)
		}
	}
	return scanner.Err()
}
