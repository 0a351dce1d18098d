package endpoint

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Keys looked up in the secret store and the environment.
const (
	KeyBaseURL  = "OLLAMA_BASE_URL"
	KeyUsername = "OLLAMA_USERNAME"
	KeyPassword = "OLLAMA_PASSWORD"
)

// Lookup returns the value stored under key and whether it was found.
type Lookup func(key string) (string, bool)

// Values are explicitly supplied settings (e.g. from command-line flags).
// Empty fields count as not supplied.
type Values struct {
	BaseURL  string
	Username string
	Password string
}

// Resolve builds an Endpoint by taking, independently for the base URL, the
// username and the password, the first non-empty value from: the explicit
// values, then each lookup in order (secret store, then environment), then the
// default. Only the base URL has a default.
func Resolve(explicit Values, lookups ...Lookup) Endpoint {
	return New(
		First(explicit.BaseURL, KeyBaseURL, DefaultBaseURL, lookups...),
		First(explicit.Username, KeyUsername, "", lookups...),
		First(explicit.Password, KeyPassword, "", lookups...),
	)
}

// First returns explicit if non-empty, else the first non-empty value found
// under key in lookups, else def.
func First(explicit, key, def string, lookups ...Lookup) string {
	if explicit != "" {
		return explicit
	}

	for _, lookup := range lookups {
		if lookup == nil {
			continue
		}
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
	}

	return def
}

// MapLookup serves values from a map.
func MapLookup(m map[string]string) Lookup {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// SecretsFile loads a flat TOML secret store (e.g. `OLLAMA_BASE_URL = "..."`).
// A missing file is an empty store. Non-string values are ignored.
func SecretsFile(path string) (Lookup, error) {
	secrets := map[string]string{}
	if path == "" {
		return MapLookup(secrets), nil
	}

	var raw map[string]any
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return MapLookup(secrets), nil
		}
		return nil, fmt.Errorf("reading secrets file %s: %w", path, err)
	}

	for k, v := range raw {
		if s, ok := v.(string); ok {
			secrets[k] = s
		}
	}

	return MapLookup(secrets), nil
}

// Environment looks keys up in the process environment, falling back to the
// values of a dotenv file. The process environment always wins and is never
// modified. A missing dotenv file is ignored.
func Environment(dotenvPath string) (Lookup, error) {
	fileValues := map[string]string{}
	if dotenvPath != "" {
		values, err := godotenv.Read(dotenvPath)
		switch {
		case err == nil:
			fileValues = values
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("reading env file %s: %w", dotenvPath, err)
		}
	}

	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v, true
		}
		v, ok := fileValues[key]
		return v, ok
	}, nil
}
