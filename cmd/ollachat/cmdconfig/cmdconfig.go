// Package cmdconfig holds the flags shared by every ollachat subcommand and
// turns them into a configured client, logger and settings.
package cmdconfig

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/ollachat/pkg/config"
	"github.com/papercomputeco/ollachat/pkg/endpoint"
	"github.com/papercomputeco/ollachat/pkg/logger"
	"github.com/papercomputeco/ollachat/pkg/merkle"
	"github.com/papercomputeco/ollachat/pkg/ollama"
)

// Persistent flag names.
const (
	FlagURL      = "url"
	FlagUsername = "username"
	FlagPassword = "password"
	FlagConfig   = "config"
	FlagSecrets  = "secrets"
	FlagEnvFile  = "env-file"
	FlagDebug    = "debug"
	FlagLogFile  = "log-file"
)

// AddPersistentFlags registers the shared flags on the root command.
func AddPersistentFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String(FlagURL, "", "Inference server base URL (default: secrets, then $OLLAMA_BASE_URL, then http://localhost:11434)")
	flags.String(FlagUsername, "", "Basic-auth username (default: secrets, then $OLLAMA_USERNAME)")
	flags.String(FlagPassword, "", "Basic-auth password (default: secrets, then $OLLAMA_PASSWORD)")
	flags.String(FlagConfig, "", "Path to config.toml (default: ~/.ollachat/config.toml)")
	flags.String(FlagSecrets, "", "Path to the secrets.toml store (default: ~/.ollachat/secrets.toml)")
	flags.String(FlagEnvFile, ".env", "Path to a dotenv file consulted after the process environment")
	flags.Bool(FlagDebug, false, "Enable debug logging")
	flags.String(FlagLogFile, "", "Write logs to this file instead of stderr")
}

// Env is everything a subcommand needs to talk to the server.
type Env struct {
	Config   config.Config
	Endpoint endpoint.Endpoint
	Logger   *zap.Logger

	closer io.Closer
}

// Load reads the shared flags of cmd, the config file, the secret store and
// the environment. Logs go to --log-file when set, else to logTo.
func Load(cmd *cobra.Command, logTo io.Writer) (*Env, error) {
	return load(cmd, logTo, "")
}

// LoadForScreen is Load for commands that take over the terminal. Without
// --log-file, logs go to ~/.ollachat/<logName>, or nowhere when that file
// cannot be opened.
func LoadForScreen(cmd *cobra.Command, logName string) (*Env, error) {
	return load(cmd, nil, logName)
}

func load(cmd *cobra.Command, logTo io.Writer, defaultLogName string) (*Env, error) {
	env := &Env{}

	debug := boolFlag(cmd, FlagDebug)
	path := stringFlag(cmd, FlagLogFile)
	switch {
	case path != "":
		log, closer, err := logger.NewFileLogger(debug, path)
		if err != nil {
			return nil, fmt.Errorf("could not open log file %s: %w", path, err)
		}
		env.Logger = log
		env.closer = closer
	case defaultLogName != "":
		env.Logger = zap.NewNop()
		if p, err := config.DefaultPath(defaultLogName); err == nil && config.EnsureDir(p) == nil {
			if log, closer, err := logger.NewFileLogger(debug, p); err == nil {
				env.Logger = log
				env.closer = closer
			}
		}
	default:
		env.Logger = logger.NewLogger(debug, logTo)
	}

	cfg, err := config.Load(stringFlag(cmd, FlagConfig))
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Config = cfg

	secretsPath := stringFlag(cmd, FlagSecrets)
	if secretsPath == "" {
		secretsPath = config.DefaultSecretsPath()
	}
	secrets, err := endpoint.SecretsFile(secretsPath)
	if err != nil {
		env.Close()
		return nil, err
	}

	environment, err := endpoint.Environment(stringFlag(cmd, FlagEnvFile))
	if err != nil {
		env.Close()
		return nil, err
	}

	env.Endpoint = endpoint.Resolve(endpoint.Values{
		BaseURL:  stringFlag(cmd, FlagURL),
		Username: stringFlag(cmd, FlagUsername),
		Password: stringFlag(cmd, FlagPassword),
	}, secrets, environment)

	env.Logger.Debug("resolved endpoint", zap.String("endpoint", env.Endpoint.String()))

	return env, nil
}

// Client builds the inference client for the resolved endpoint.
func (e *Env) Client() *ollama.Client {
	return ollama.New(e.Endpoint, ollama.WithLogger(e.Logger))
}

// OpenArchive opens the SQLite transcript archive at flagValue, the
// configured path or the default location.
func (e *Env) OpenArchive(flagValue string) (*merkle.SQLiteStorer, error) {
	path, err := e.Config.ArchivePath(flagValue)
	if err != nil {
		return nil, err
	}
	if err := config.EnsureDir(path); err != nil {
		return nil, fmt.Errorf("could not create archive directory: %w", err)
	}

	storer, err := merkle.NewSQLiteStorer(path)
	if err != nil {
		return nil, fmt.Errorf("could not open archive %s: %w", path, err)
	}
	e.Logger.Debug("archiving transcripts", zap.String("path", path))
	return storer, nil
}

// Close flushes the logger and closes the log file, if any.
func (e *Env) Close() {
	if e.Logger != nil {
		_ = e.Logger.Sync()
	}
	if e.closer != nil {
		_ = e.closer.Close()
	}
}

// stringFlag reads a flag by name, returning "" when the command does not
// define it (e.g. a subcommand run on its own in tests).
func stringFlag(cmd *cobra.Command, name string) string {
	f := cmd.Flags().Lookup(name)
	if f == nil {
		return ""
	}
	return f.Value.String()
}

func boolFlag(cmd *cobra.Command, name string) bool {
	f := cmd.Flags().Lookup(name)
	if f == nil {
		return false
	}
	return f.Value.String() == "true"
}

// ArchivePath resolves the transcript archive location: flagValue, then the
// config file's archive.path, then ~/.ollachat/archive.db. The parent
// directory is created.
func ArchivePath(cmd *cobra.Command, flagValue string) (string, error) {
	cfg := config.Default()
	if flagValue == "" {
		var err error
		cfg, err = config.Load(stringFlag(cmd, FlagConfig))
		if err != nil {
			return "", err
		}
	}

	path, err := cfg.ArchivePath(flagValue)
	if err != nil {
		return "", err
	}
	if err := config.EnsureDir(path); err != nil {
		return "", fmt.Errorf("could not create archive directory: %w", err)
	}
	return path, nil
}
