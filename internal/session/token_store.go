package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// TokenData is the persisted session.
type TokenData struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
	StoredAt    time.Time `json:"stored_at"`
}

// IsExpired reports whether the token expires within a minute. Tokens
// without an expiry never expire client-side.
func (t *TokenData) IsExpired() bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(time.Minute).After(t.ExpiresAt)
}

// FileSession keeps the token in a JSON file readable only by the user.
type FileSession struct {
	path   string
	logger *slog.Logger
}

func NewFileSession(path string, logger *slog.Logger) *FileSession {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &FileSession{path: path, logger: logger}
}

func (s *FileSession) Path() string {
	return s.path
}

func (s *FileSession) Token(ctx context.Context) (string, error) {
	tokens, err := s.Load()
	if err != nil {
		return "", fmt.Errorf("loading session: %w", err)
	}
	if tokens == nil || tokens.AccessToken == "" {
		return "", ErrNotLoggedIn
	}
	if tokens.IsExpired() {
		s.logger.Debug("stored token expired", "expires_at", tokens.ExpiresAt)
		return "", fmt.Errorf("session expired at %s: %w", tokens.ExpiresAt.Local().Format(time.RFC3339), ErrNotLoggedIn)
	}
	return tokens.AccessToken, nil
}

// OnUnauthorized drops the stored token so the next call asks for a login.
func (s *FileSession) OnUnauthorized() {
	s.logger.Warn("server rejected session token, clearing it", "path", s.path)
	if err := s.Clear(); err != nil {
		s.logger.Warn("failed to clear session", "error", err)
	}
}

// Load returns nil, nil if no session file exists.
func (s *FileSession) Load() (*TokenData, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading session file: %w", err)
	}

	var tokens TokenData
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("parsing session file: %w", err)
	}
	return &tokens, nil
}

// Save writes the session with 0600 permissions via tmp + rename.
func (s *FileSession) Save(tokens *TokenData) error {
	if tokens.StoredAt.IsZero() {
		tokens.StoredAt = time.Now().UTC()
	}
	data, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing temp session file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming session file: %w", err)
	}
	return nil
}

func (s *FileSession) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing session file: %w", err)
	}
	return nil
}
