// Package account signs the storefront in against the account API and holds
// the bearer token the agent attaches to later calls.
package account

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/utafrali/storefront/internal/client/agent"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// User is the signed-in account as returned by the account API.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// Session pairs a user with the access token issued for it.
type Session struct {
	Account   User      `json:"account"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Gateway is the account API.
type Gateway interface {
	Register(ctx context.Context, email, password, displayName string) (*Session, error)
	Login(ctx context.Context, email, password string) (*Session, error)
	Current(ctx context.Context) (*Session, error)
}

// HTTPGateway implements Gateway over /api/account.
type HTTPGateway struct {
	agent *agent.Agent
}

// NewHTTPGateway creates a gateway using a.
func NewHTTPGateway(a *agent.Agent) *HTTPGateway {
	return &HTTPGateway{agent: a}
}

type credentials struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName,omitempty"`
}

// Register creates an account and returns its first session.
func (g *HTTPGateway) Register(ctx context.Context, email, password, displayName string) (*Session, error) {
	var s Session
	body := credentials{Email: email, Password: password, DisplayName: displayName}
	if err := g.agent.PostJSON(ctx, "account/register", body, &s); err != nil {
		return nil, fmt.Errorf("register %s: %w", email, err)
	}
	return &s, nil
}

// Login exchanges credentials for a session.
func (g *HTTPGateway) Login(ctx context.Context, email, password string) (*Session, error) {
	var s Session
	if err := g.agent.PostJSON(ctx, "account/login", credentials{Email: email, Password: password}, &s); err != nil {
		return nil, fmt.Errorf("login %s: %w", email, err)
	}
	return &s, nil
}

// Current returns the account behind the agent's token with a refreshed one.
func (g *HTTPGateway) Current(ctx context.Context) (*Session, error) {
	var s Session
	if _, err := g.agent.Get(ctx, "account/currentUser", nil, &s); err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}
	return &s, nil
}

// Holder keeps the active session. Its Token method is an agent.TokenSource.
type Holder struct {
	mu      sync.RWMutex
	token   string
	user    *User
	gateway Gateway
}

// NewHolder creates a holder seeded with token, which may be empty. The
// gateway is attached with SetGateway once the agent using h exists.
func NewHolder(token string) *Holder {
	return &Holder{token: token}
}

// Token returns the bearer token to send, or "" when signed out.
func (h *Holder) Token() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

// User returns the signed-in user, or nil.
func (h *Holder) User() *User {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.user == nil {
		return nil
	}
	u := *h.user
	return &u
}

// SetGateway attaches the gateway once the agent using h exists.
func (h *Holder) SetGateway(g Gateway) {
	h.mu.Lock()
	h.gateway = g
	h.mu.Unlock()
}

func (h *Holder) api() Gateway {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.gateway
}

// Login signs in and replaces the active session.
func (h *Holder) Login(ctx context.Context, email, password string) (*User, error) {
	s, err := h.api().Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return h.adopt(s), nil
}

// Register creates an account and signs in as it.
func (h *Holder) Register(ctx context.Context, email, password, displayName string) (*User, error) {
	s, err := h.api().Register(ctx, email, password, displayName)
	if err != nil {
		return nil, err
	}
	return h.adopt(s), nil
}

// Resume validates a seeded token. A rejected token is dropped and the
// holder falls back to anonymous; other failures are returned as is.
func (h *Holder) Resume(ctx context.Context) (*User, error) {
	if h.Token() == "" {
		return nil, nil
	}
	s, err := h.api().Current(ctx)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnauthorized) {
			h.Logout()
			return nil, nil
		}
		return nil, err
	}
	return h.adopt(s), nil
}

// Logout forgets the session.
func (h *Holder) Logout() {
	h.mu.Lock()
	h.token = ""
	h.user = nil
	h.mu.Unlock()
}

func (h *Holder) adopt(s *Session) *User {
	u := s.Account
	h.mu.Lock()
	h.token = s.Token
	h.user = &u
	h.mu.Unlock()
	return &u
}
