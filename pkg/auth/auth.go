package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nacoslite/nacoslite/pkg/log"
	"github.com/nacoslite/nacoslite/pkg/storage"
	"github.com/nacoslite/nacoslite/pkg/types"
	"golang.org/x/crypto/bcrypt"
)

// TokenTTL matches the Nacos default of five hours
const TokenTTL = 18000 * time.Second

const (
	// DefaultUsername is the console account seeded on first start
	DefaultUsername = "nacos"
	defaultPassword = "nacos"
)

var (
	// ErrInvalidCredentials is returned on a failed login
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned for missing, unknown or expired tokens
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Manager validates bearer tokens and handles console login
type Manager struct {
	store storage.Store
}

// NewManager creates an auth manager and lazily sweeps tokens that
// expired while the process was down.
func NewManager(store storage.Store) *Manager {
	m := &Manager{store: store}
	logger := log.WithComponent("auth")
	if n, err := store.PruneExpiredTokens(context.Background(), time.Now().Unix()); err != nil {
		logger.Warn().Err(err).Msg("failed to prune expired tokens")
	} else if n > 0 {
		logger.Debug().Int64("pruned", n).Msg("pruned expired tokens")
	}
	return m
}

// EnsureDefaultUser seeds the nacos/nacos console account if no row
// exists yet
func (m *Manager) EnsureDefaultUser(ctx context.Context) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(defaultPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return m.store.CreateUser(ctx, &types.User{
		Username:     DefaultUsername,
		PasswordHash: string(hash),
		Created:      time.Now().Unix(),
	})
}

// Login verifies the password and issues a fresh token
func (m *Manager) Login(ctx context.Context, username, password string) (*types.Token, error) {
	user, err := m.store.GetUser(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	token := &types.Token{
		Token:     strings.ReplaceAll(uuid.New().String()+uuid.New().String(), "-", ""),
		Username:  username,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(TokenTTL).Unix(),
	}
	if err := m.store.CreateToken(ctx, token); err != nil {
		return nil, err
	}
	return token, nil
}

// Validate checks a bearer token and returns the username it belongs to
func (m *Manager) Validate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	t, err := m.store.GetToken(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrInvalidToken
		}
		return "", err
	}
	if time.Now().Unix() >= t.ExpiresAt {
		// Lazy cleanup; the row can never validate again.
		if derr := m.store.DeleteToken(ctx, token); derr != nil {
			logger := log.WithComponent("auth")
			logger.Warn().Err(derr).Msg("failed to drop expired token")
		}
		return "", ErrInvalidToken
	}
	return t.Username, nil
}

// Refresh exchanges an unexpired token for a fresh one; the old token
// stops working in the same transaction.
func (m *Manager) Refresh(ctx context.Context, token string) (*types.Token, error) {
	username, err := m.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	fresh := &types.Token{
		Token:     strings.ReplaceAll(uuid.New().String()+uuid.New().String(), "-", ""),
		Username:  username,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(TokenTTL).Unix(),
	}
	if err := m.store.ReplaceToken(ctx, token, fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}
