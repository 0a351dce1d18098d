// Package config loads ollachat's optional TOML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/ollachat/pkg/llm"
	"github.com/papercomputeco/ollachat/pkg/ollama"
	"github.com/papercomputeco/ollachat/pkg/session"
)

const (
	dirName         = ".ollachat"
	configFileName  = "config.toml"
	secretsFileName = "secrets.toml"
	archiveFileName = "archive.db"
)

// Config is the on-disk configuration. Every field is optional.
type Config struct {
	Generation Generation `toml:"generation"`
	Gateway    Gateway    `toml:"gateway"`
	Archive    Archive    `toml:"archive"`
}

// Generation holds the defaults of a new conversation.
type Generation struct {
	Model       string         `toml:"model"`
	System      string         `toml:"system"`
	Temperature float64        `toml:"temperature"`
	Stream      bool           `toml:"stream"`
	Options     map[string]any `toml:"options"`
}

// Gateway configures `ollachat serve`.
type Gateway struct {
	Listen string `toml:"listen"`
}

// Archive configures the transcript archive.
type Archive struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Generation: Generation{
			Model:       ollama.DefaultModel,
			System:      session.DefaultSystemPrompt,
			Temperature: session.DefaultTemperature,
			Stream:      true,
		},
		Gateway: Gateway{
			Listen: ":8080",
		},
	}
}

// Load reads the file at path over the defaults. An empty path means the
// default location; a missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		p, err := DefaultPath(configFileName)
		if err != nil {
			return cfg, nil
		}
		path = p
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("could not read config %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

// Validate checks the values a UI would otherwise have to constrain.
func (c Config) Validate() error {
	if c.Generation.Model == "" {
		return errors.New("generation.model must not be empty")
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 1 {
		return fmt.Errorf("generation.temperature must be between 0 and 1, got %g", c.Generation.Temperature)
	}
	if c.Gateway.Listen == "" {
		return errors.New("gateway.listen must not be empty")
	}
	return nil
}

// Settings converts the generation defaults into session settings.
func (c Config) Settings() session.Settings {
	return session.Settings{
		Model:       c.Generation.Model,
		System:      c.Generation.System,
		Temperature: c.Generation.Temperature,
		Stream:      c.Generation.Stream,
		Options:     llm.Options(c.Generation.Options).Clone(),
	}
}

// ArchivePath returns flagValue when set, then the configured path, then the
// default location under the home directory.
func (c Config) ArchivePath(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if c.Archive.Path != "" {
		return c.Archive.Path, nil
	}
	return DefaultPath(archiveFileName)
}

// DefaultSecretsPath returns the default secret store location.
func DefaultSecretsPath() string {
	p, err := DefaultPath(secretsFileName)
	if err != nil {
		return ""
	}
	return p
}

// DefaultPath returns name inside ~/.ollachat.
func DefaultPath(name string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find home directory: %w", err)
	}
	return filepath.Join(home, dirName, name), nil
}

// EnsureDir creates the parent directory of path.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
