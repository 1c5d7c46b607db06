// Package session owns the authentication state machine and is the only
// place allowed to read or write the persisted credential. Everything else
// receives the token explicitly.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ksutools/portalgate/internal/kvstore"
	"github.com/ksutools/portalgate/internal/logging"
	"github.com/ksutools/portalgate/internal/upstream"
)

// State is the facade's position in the login lifecycle.
type State string

const (
	StateAnonymous      State = "anonymous"
	StateAuthenticating State = "authenticating"
	StateAuthenticated  State = "authenticated"
)

// Storage keys. The remembered username survives logout on purpose.
const (
	tokenKey      = "auth:token"
	userKey       = "auth:user"
	rememberedKey = "auth:remembered-username"
)

var (
	// ErrNoSavedSession means AutoLogin found no persisted credential.
	ErrNoSavedSession = errors.New("no saved session")
	// ErrNotAuthenticated means an operation needed a live session.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// TokenIssuer exchanges credentials for a portal token.
type TokenIssuer interface {
	Login(ctx context.Context, username, password string) (string, error)
}

// IdentityFetcher resolves who a token belongs to.
type IdentityFetcher interface {
	Identity(ctx context.Context, token string) (*upstream.Identity, error)
}

// Facade composes the token issuer, the identity fetcher and persistent
// storage into login, automatic re-login and logout.
type Facade struct {
	issuer   TokenIssuer
	identity IdentityFetcher
	kv       kvstore.Store
	logger   logging.Logger

	mu    sync.Mutex
	state State
	token string
	user  *upstream.Identity
}

// New creates a Facade in the anonymous state.
func New(issuer TokenIssuer, identity IdentityFetcher, kv kvstore.Store, logger logging.Logger) *Facade {
	return &Facade{
		issuer:   issuer,
		identity: identity,
		kv:       kv,
		logger:   logger.With(logging.Field{Key: "component", Value: "session"}),
		state:    StateAnonymous,
	}
}

// Login authenticates, resolves the identity for the new token, persists
// both, and enters the authenticated state. Any failure drops back to
// anonymous and surfaces the cause.
func (f *Facade) Login(ctx context.Context, username, password string, remember bool) (*upstream.Identity, error) {
	f.setState(StateAuthenticating)

	token, err := f.issuer.Login(ctx, username, password)
	if err != nil {
		f.setState(StateAnonymous)
		return nil, err
	}

	user, err := f.identity.Identity(ctx, token)
	if err != nil {
		f.setState(StateAnonymous)
		return nil, fmt.Errorf("resolving identity for new session: %w", err)
	}

	if err := f.saveAuth(token, user); err != nil {
		f.setState(StateAnonymous)
		return nil, err
	}

	if remember {
		if err := f.kv.Set(rememberedKey, username); err != nil {
			f.logger.Warn("saving remembered username failed",
				logging.Field{Key: "error", Value: err.Error()})
		}
	} else {
		_ = f.kv.Delete(rememberedKey)
	}

	f.mu.Lock()
	f.state = StateAuthenticated
	f.token = token
	f.user = user
	f.mu.Unlock()

	f.logger.Info("session established",
		logging.Field{Key: "username", Value: user.Username})
	return user, nil
}

// AutoLogin re-validates a persisted credential on process start. Success
// refreshes the identity snapshot and enters the authenticated state; failure
// reports without clearing anything, the caller decides where to route.
func (f *Facade) AutoLogin(ctx context.Context) (*upstream.Identity, error) {
	token, ok, err := f.kv.Get(tokenKey)
	if err != nil {
		return nil, fmt.Errorf("reading saved session: %w", err)
	}
	if !ok || token == "" {
		return nil, ErrNoSavedSession
	}

	user, err := f.identity.Identity(ctx, token)
	if err != nil {
		f.logger.Warn("saved session failed validation",
			logging.Field{Key: "error", Value: err.Error()})
		return nil, err
	}

	if err := f.saveAuth(token, user); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.state = StateAuthenticated
	f.token = token
	f.user = user
	f.mu.Unlock()

	f.logger.Info("session restored",
		logging.Field{Key: "username", Value: user.Username})
	return user, nil
}

// Logout clears the persisted credential and identity and returns to
// anonymous. The remembered username and the domain caches stay; they are
// keyed by user and simply go unused.
func (f *Facade) Logout() {
	_ = f.kv.Delete(tokenKey)
	_ = f.kv.Delete(userKey)

	f.mu.Lock()
	f.state = StateAnonymous
	f.token = ""
	f.user = nil
	f.mu.Unlock()

	f.logger.Info("session cleared")
}

// State returns the current lifecycle state.
func (f *Facade) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Current returns the live token and identity, or ErrNotAuthenticated.
func (f *Facade) Current() (string, *upstream.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateAuthenticated || f.token == "" || f.user == nil {
		return "", nil, ErrNotAuthenticated
	}
	return f.token, f.user, nil
}

// RememberedUsername returns the convenience value saved by a remembered
// login, or the empty string.
func (f *Facade) RememberedUsername() string {
	v, _, err := f.kv.Get(rememberedKey)
	if err != nil {
		return ""
	}
	return v
}

// saveAuth persists identity before token so a stored token never exists
// without its identity snapshot.
func (f *Facade) saveAuth(token string, user *upstream.Identity) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encoding identity snapshot: %w", err)
	}
	if err := f.kv.Set(userKey, string(raw)); err != nil {
		return fmt.Errorf("persisting identity snapshot: %w", err)
	}
	if err := f.kv.Set(tokenKey, token); err != nil {
		return fmt.Errorf("persisting credential: %w", err)
	}
	return nil
}

func (f *Facade) setState(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}
