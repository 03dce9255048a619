package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ErrNoToken is returned when the credentials file carries no usable token.
var ErrNoToken = errors.New("no token in credentials")

// Credentials is the parsed form of credentials.json.
type Credentials struct {
	Token string
	// Envs holds the namespaced runtime overrides from the "envs" object.
	// Only keys with the CYBERWAVE_ prefix and non-empty values survive.
	Envs map[string]string
	// Legacy holds allow-listed top-level keys written by older logins.
	Legacy map[string]string
}

// Store reads and writes credentials.json.
type Store struct {
	path string
	log  *slog.Logger
}

func NewStore(path string) *Store {
	return &Store{path: path, log: slog.With("component", "credentials")}
}

func (s *Store) Path() string { return s.path }

// Load reads and parses the credentials file.
func (s *Store) Load() (Credentials, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Credentials{}, fmt.Errorf("read credentials: %w", err)
	}
	creds, err := ParseCredentials(data)
	if err != nil {
		return Credentials{}, fmt.Errorf("parse credentials %s: %w", s.path, err)
	}
	return creds, nil
}

// LoadToken returns the token, or false if the file is missing, malformed
// or has no token. Failures are logged, never returned.
func (s *Store) LoadToken() (string, bool) {
	creds, err := s.Load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.log.Warn("Credentials file not found.", "path", s.path)
		} else {
			s.log.Warn("Failed to read credentials file.", "path", s.path, "err", err)
		}
		return "", false
	}
	if creds.Token == "" {
		s.log.Warn("Credentials file has no token field.", "path", s.path)
		return "", false
	}
	s.log.Info("Loaded token.", "path", s.path, "token", MaskToken(creds.Token))
	return creds.Token, true
}

// LoadEnvOverrides returns the namespaced overrides persisted under "envs".
// A missing or malformed file yields an empty map.
func (s *Store) LoadEnvOverrides() map[string]string {
	creds, err := s.Load()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("Failed to read persisted env overrides.", "path", s.path, "err", err)
		}
		return map[string]string{}
	}
	return creds.Envs
}

// Save writes creds to the store path with owner-only permissions.
func (s *Store) Save(creds Credentials) error {
	doc := make(map[string]any, len(creds.Legacy)+2)
	for k, v := range creds.Legacy {
		doc[k] = v
	}
	doc["token"] = creds.Token
	if len(creds.Envs) > 0 {
		doc["envs"] = creds.Envs
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(s.path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

// ParseCredentials converts the loosely-typed credentials document into
// Credentials, keeping only fields of the expected shape.
func ParseCredentials(data []byte) (Credentials, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return Credentials{}, err
	}
	if doc == nil {
		return Credentials{}, errors.New("credentials must be a JSON object")
	}

	creds := Credentials{
		Envs:   map[string]string{},
		Legacy: map[string]string{},
	}
	if tok, ok := doc["token"].(string); ok {
		creds.Token = strings.TrimSpace(tok)
	}
	if envs, ok := doc["envs"].(map[string]any); ok {
		for k, raw := range envs {
			v, ok := raw.(string)
			if !ok || !strings.HasPrefix(k, EnvPrefix) {
				continue
			}
			if v = strings.TrimSpace(v); v != "" {
				creds.Envs[k] = v
			}
		}
	}
	for _, name := range legacyKeys {
		if v, ok := doc[name].(string); ok && strings.TrimSpace(v) != "" {
			creds.Legacy[name] = strings.TrimSpace(v)
		}
	}
	return creds, nil
}

// MaskToken renders a token safe for logs and terminal output.
func MaskToken(token string) string {
	if len(token) <= 12 {
		return "***"
	}
	return token[:6] + "…" + token[len(token)-4:]
}

func isLegacyKey(name string) bool {
	return slices.Contains(legacyKeys, name)
}
