// Package endpoint resolves and holds the address and optional basic-auth
// credentials of the inference server.
package endpoint

import (
	"net/http"
	"strings"
)

// DefaultBaseURL is the loopback address a local Ollama server listens on.
const DefaultBaseURL = "http://localhost:11434"

// Endpoint is the network address and optional credentials of the inference
// server. It is immutable once built.
type Endpoint struct {
	baseURL string
	auth    *BasicAuth
}

// BasicAuth is an HTTP basic-auth credential pair.
type BasicAuth struct {
	Username string
	Password string
}

// New builds an Endpoint. Credentials are only kept when both the username and
// the password are non-empty; a partial pair is treated as no auth.
func New(baseURL, username, password string) Endpoint {
	ep := Endpoint{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
	}
	if ep.baseURL == "" {
		ep.baseURL = DefaultBaseURL
	}

	if username != "" && password != "" {
		ep.auth = &BasicAuth{Username: username, Password: password}
	}

	return ep
}

// BaseURL returns the server base URL without a trailing slash.
func (e Endpoint) BaseURL() string {
	if e.baseURL == "" {
		return DefaultBaseURL
	}
	return e.baseURL
}

// Auth returns the credential pair and whether one is configured.
func (e Endpoint) Auth() (BasicAuth, bool) {
	if e.auth == nil {
		return BasicAuth{}, false
	}
	return *e.auth, true
}

// URL joins path onto the base URL.
func (e Endpoint) URL(path string) string {
	return e.BaseURL() + "/" + strings.TrimLeft(path, "/")
}

// Apply attaches the credentials, if any, to an outgoing request.
func (e Endpoint) Apply(req *http.Request) {
	if e.auth != nil {
		req.SetBasicAuth(e.auth.Username, e.auth.Password)
	}
}

// String returns the base URL, noting whether credentials are set but never
// printing them.
func (e Endpoint) String() string {
	if e.auth != nil {
		return e.BaseURL() + " (basic auth)"
	}
	return e.BaseURL()
}
