package client

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ldomjan/sharedcal/internal/storage"
)

// Session holds the client's identity: the bearer token and a cached
// profile snapshot. It is passed explicitly into every component that
// needs identity; there is no ambient session state.
type Session struct {
	Token string       `json:"token"`
	User  storage.User `json:"user"`
}

// LoadSession restores a session snapshot from disk. A missing file
// is not an error; it yields an unauthenticated session.
func LoadSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Session{}, nil
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	return &s, nil
}

func (s *Session) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

func (s *Session) Authenticated() bool {
	return s.Token != ""
}

// Clear drops the credential, e.g. after the server rejects it.
func (s *Session) Clear() {
	s.Token = ""
	s.User = storage.User{}
}
