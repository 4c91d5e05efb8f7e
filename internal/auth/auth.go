package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/ldomjan/sharedcal/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

const tokenBytesLen = 32

// Service issues and checks opaque bearer tokens. Tokens live in
// memory only; a restart forces clients back through login.
type Service struct {
	storage storage.Storage

	mu     sync.RWMutex
	tokens map[string]string // token -> user id
}

func New(s storage.Storage) *Service {
	return &Service{storage: s, tokens: make(map[string]string)}
}

func (s *Service) Register(ctx context.Context, username string, password string) (storage.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return storage.User{}, fmt.Errorf("failed to hash password: %w", err)
	}
	u := storage.User{Username: username, PasswordHash: string(hash)}
	if err := s.storage.AddUser(ctx, &u); err != nil {
		return storage.User{}, err
	}
	return u, nil
}

func (s *Service) Login(ctx context.Context, username string, password string) (string, storage.User, error) {
	u, err := s.storage.GetUserByName(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFoundUser) {
			return "", storage.User{}, ErrInvalidCredentials
		}
		return "", storage.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", storage.User{}, ErrInvalidCredentials
	}

	token, err := newToken()
	if err != nil {
		return "", storage.User{}, err
	}
	s.mu.Lock()
	s.tokens[token] = u.ID
	s.mu.Unlock()
	return token, u, nil
}

// Authenticate resolves a bearer token to its user.
func (s *Service) Authenticate(ctx context.Context, token string) (storage.User, error) {
	s.mu.RLock()
	userID, ok := s.tokens[token]
	s.mu.RUnlock()
	if !ok {
		return storage.User{}, ErrInvalidToken
	}
	u, err := s.storage.GetUser(ctx, userID)
	if err != nil {
		return storage.User{}, ErrInvalidToken
	}
	return u, nil
}

func (s *Service) Revoke(token string) {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
}

func newToken() (string, error) {
	b := make([]byte, tokenBytesLen)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
