// Package auth implements admin login on top of gorilla/sessions. A session
// is either anonymous or bound to one user; there are no other states.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/alextreichler/mayajewelry/internal/models"
	"github.com/alextreichler/mayajewelry/internal/store"
	"github.com/gorilla/sessions"
)

const (
	// SessionName is the cookie carrying the session id.
	SessionName = "maya.sid"
	// SessionMaxAge is 24 hours, in seconds.
	SessionMaxAge = 24 * 60 * 60

	keyUserID   = "user_id"
	keyUsername = "username"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotAuthenticated   = errors.New("not authenticated")
)

// UserLookup is the slice of store.Storage the authenticator needs.
type UserLookup interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// Identity is what a session is bound to.
type Identity struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type Authenticator struct {
	Users    UserLookup
	Verifier Verifier
	Sessions sessions.Store

	// dummy is verified against when the username is unknown so both failure
	// paths cost the same.
	dummy string
}

func NewAuthenticator(users UserLookup, verifier Verifier, sessionStore sessions.Store) *Authenticator {
	dummy, err := verifier.Hash("not-a-real-password")
	if err != nil {
		dummy = ""
	}
	return &Authenticator{Users: users, Verifier: verifier, Sessions: sessionStore, dummy: dummy}
}

// DefaultSessionOptions returns the cookie settings for admin sessions.
// Secure should be true behind HTTPS in production.
func DefaultSessionOptions(secure bool, domain string) sessions.Options {
	return sessions.Options{
		Path:     "/",
		Domain:   domain,
		MaxAge:   SessionMaxAge,
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// Login checks the credentials. Unknown users and wrong passwords both
// yield ErrInvalidCredentials; any other error comes from the store.
func (a *Authenticator) Login(ctx context.Context, username, password string) (*models.User, error) {
	user, err := a.Users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		a.Verifier.Verify(a.dummy, password)
		return nil, ErrInvalidCredentials
	}
	if !a.Verifier.Verify(user.Password, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Begin binds the request's session to user and writes the cookie. A fresh
// session id is issued on every login and the previous one is destroyed.
func (a *Authenticator) Begin(w http.ResponseWriter, r *http.Request, user *models.User) error {
	session, err := a.Sessions.Get(r, SessionName)
	if err != nil {
		slog.Debug("Discarding unreadable session cookie", "error", err)
	}
	if !session.IsNew && session.ID != "" {
		// The pre-login id must stop working, not just be replaced in the
		// browser.
		if d, ok := a.Sessions.(sessionDestroyer); ok {
			if err := d.Destroy(r.Context(), session.ID); err != nil {
				return fmt.Errorf("failed to destroy previous session: %w", err)
			}
		}
	}
	session.ID = ""
	session.Values = map[interface{}]interface{}{
		keyUserID:   user.ID,
		keyUsername: user.Username,
	}
	return session.Save(r, w)
}

// End destroys the session. Ending an anonymous session is not an error.
func (a *Authenticator) End(w http.ResponseWriter, r *http.Request) error {
	session, err := a.Sessions.Get(r, SessionName)
	if err != nil {
		slog.Debug("Discarding unreadable session cookie", "error", err)
	}
	session.Options.MaxAge = -1
	session.Values = map[interface{}]interface{}{}
	return session.Save(r, w)
}

// Current returns the identity bound to the request's session.
func (a *Authenticator) Current(r *http.Request) (Identity, error) {
	session, err := a.Sessions.Get(r, SessionName)
	if err != nil {
		return Identity{}, ErrNotAuthenticated
	}
	id, ok := session.Values[keyUserID].(int64)
	if !ok || id == 0 {
		return Identity{}, ErrNotAuthenticated
	}
	username, _ := session.Values[keyUsername].(string)
	return Identity{ID: id, Username: username}, nil
}

// sessionDestroyer is implemented by the server-side stores so a login can
// revoke the session it replaces.
type sessionDestroyer interface {
	Destroy(ctx context.Context, id string) error
}

type identityKey struct{}

// IdentityFrom returns the identity RequireAuth stored in ctx.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// RequireAuth stops the request with 401 unless it carries a bound session.
func (a *Authenticator) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := a.Current(r)
		if err != nil {
			slog.Info("Rejected unauthenticated request", "path", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"Unauthorized"}` + "\n"))
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
	}
}

// SeedAdmin creates the admin account unless a user with that name exists.
func SeedAdmin(ctx context.Context, st store.Storage, verifier Verifier, username, password string) error {
	existing, err := st.GetUserByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("failed to look up admin user: %w", err)
	}
	if existing != nil {
		return nil
	}
	credential, err := verifier.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}
	if _, err := st.CreateUser(ctx, username, credential); err != nil {
		if errors.Is(err, store.ErrDuplicateUsername) {
			// another instance seeded it first
			return nil
		}
		return fmt.Errorf("failed to create admin user: %w", err)
	}
	slog.Info("Admin user created", "username", username)
	return nil
}
