package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/alextreichler/mayajewelry/internal/models"
	"github.com/alextreichler/mayajewelry/internal/store"
	"github.com/gorilla/securecookie"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestStore(t *testing.T) *store.MemStore {
	t.Helper()
	images, err := store.NewDiskImages(filepath.Join(t.TempDir(), "uploads"), 0)
	require.NoError(t, err)
	return store.NewMemStore(images)
}

func newTestAuthenticator(t *testing.T) (*Authenticator, *MemorySessionStore) {
	t.Helper()
	st := newTestStore(t)
	verifier := BcryptVerifier{Cost: bcrypt.MinCost}
	require.NoError(t, SeedAdmin(context.Background(), st, verifier, "admin", "admin123"))

	sessions := NewMemorySessionStore(DefaultSessionOptions(false, ""), 0, securecookie.GenerateRandomKey(32))
	t.Cleanup(func() { sessions.Close() })
	return NewAuthenticator(st, verifier, sessions), sessions
}

func TestLogin(t *testing.T) {
	a, _ := newTestAuthenticator(t)
	ctx := context.Background()

	u, err := a.Login(ctx, "admin", "admin123")
	require.NoError(t, err)
	assert.Equal(t, "admin", u.Username)

	_, errWrong := a.Login(ctx, "admin", "admin124")
	_, errUnknown := a.Login(ctx, "root", "admin123")
	assert.ErrorIs(t, errWrong, ErrInvalidCredentials)
	assert.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	assert.Equal(t, errWrong.Error(), errUnknown.Error())
}

type failingUsers struct{}

func (failingUsers) GetUserByUsername(context.Context, string) (*models.User, error) {
	return nil, errors.New("db down")
}

func TestLoginStoreFailureIsNotInvalidCredentials(t *testing.T) {
	a := NewAuthenticator(failingUsers{}, PlainVerifier{}, nil)
	_, err := a.Login(context.Background(), "admin", "admin123")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestSeedAdminIsIdempotentAndHashes(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	verifier := BcryptVerifier{Cost: bcrypt.MinCost}

	require.NoError(t, SeedAdmin(ctx, st, verifier, "admin", "admin123"))
	require.NoError(t, SeedAdmin(ctx, st, verifier, "admin", "something-else"))

	u, err := st.GetUserByUsername(ctx, "admin")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.NotEqual(t, "admin123", u.Password)
	assert.True(t, verifier.Verify(u.Password, "admin123"))
}

// roundTrip runs h and returns the response, forwarding cookies from prior
// responses.
func roundTrip(h http.HandlerFunc, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestSessionLifecycle(t *testing.T) {
	a, sessions := newTestAuthenticator(t)
	user, err := a.Login(context.Background(), "admin", "admin123")
	require.NoError(t, err)

	// anonymous
	rec := roundTrip(func(w http.ResponseWriter, r *http.Request) {
		_, err := a.Current(r)
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	}, nil)
	assert.Empty(t, rec.Result().Cookies())

	// login
	rec = roundTrip(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, a.Begin(w, r, user))
	}, nil)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, SessionMaxAge, cookies[0].MaxAge)
	assert.Equal(t, 1, sessions.Len())

	// authenticated
	roundTrip(func(w http.ResponseWriter, r *http.Request) {
		id, err := a.Current(r)
		require.NoError(t, err)
		assert.Equal(t, Identity{ID: user.ID, Username: "admin"}, id)
	}, cookies)

	// logout
	rec = roundTrip(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, a.End(w, r))
	}, cookies)
	assert.Equal(t, 0, sessions.Len())
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Less(t, cleared[0].MaxAge, 0)

	// the old cookie no longer works
	roundTrip(func(w http.ResponseWriter, r *http.Request) {
		_, err := a.Current(r)
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	}, cookies)

	// logging out again is harmless
	roundTrip(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, a.End(w, r))
	}, cookies)
}

func TestReloginRevokesPreviousSession(t *testing.T) {
	a, sessions := newTestAuthenticator(t)
	user, err := a.Login(context.Background(), "admin", "admin123")
	require.NoError(t, err)
	begin := func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, a.Begin(w, r, user))
	}

	first := roundTrip(begin, nil).Result().Cookies()
	require.Len(t, first, 1)

	second := roundTrip(begin, first).Result().Cookies()
	require.Len(t, second, 1)
	assert.NotEqual(t, first[0].Value, second[0].Value)
	assert.Equal(t, 1, sessions.Len(), "the first session is gone after logging in again")

	roundTrip(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, a.End(w, r))
	}, second)
	assert.Equal(t, 0, sessions.Len())

	for name, cookies := range map[string][]*http.Cookie{"first": first, "second": second} {
		roundTrip(func(w http.ResponseWriter, r *http.Request) {
			_, err := a.Current(r)
			assert.ErrorIs(t, err, ErrNotAuthenticated, name)
		}, cookies)
	}
}

func TestTamperedCookieIsAnonymous(t *testing.T) {
	a, _ := newTestAuthenticator(t)
	forged := &http.Cookie{Name: SessionName, Value: "forged-session-id"}
	roundTrip(func(w http.ResponseWriter, r *http.Request) {
		_, err := a.Current(r)
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	}, []*http.Cookie{forged})
}

func TestRequireAuth(t *testing.T) {
	a, _ := newTestAuthenticator(t)
	user, err := a.Login(context.Background(), "admin", "admin123")
	require.NoError(t, err)

	called := false
	guarded := a.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		called = true
		id, ok := IdentityFrom(r.Context())
		assert.True(t, ok)
		assert.Equal(t, "admin", id.Username)
	})

	rec := roundTrip(guarded, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"message":"Unauthorized"}`, rec.Body.String())
	assert.False(t, called)

	login := roundTrip(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, a.Begin(w, r, user))
	}, nil)
	rec = roundTrip(guarded, login.Result().Cookies())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}

func TestNewVerifier(t *testing.T) {
	v, err := NewVerifier("")
	require.NoError(t, err)
	assert.IsType(t, BcryptVerifier{}, v)

	v, err = NewVerifier(SchemePlain)
	require.NoError(t, err)
	assert.True(t, v.Verify("admin123", "admin123"))
	assert.False(t, v.Verify("admin123", "admin12"))

	_, err = NewVerifier("md5")
	assert.Error(t, err)
}

func TestBcryptVerifier(t *testing.T) {
	v := BcryptVerifier{Cost: bcrypt.MinCost}
	hashed, err := v.Hash("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hashed)
	assert.True(t, v.Verify(hashed, "s3cret"))
	assert.False(t, v.Verify(hashed, "S3cret"))
	assert.False(t, v.Verify("s3cret", "s3cret"), "cleartext rows never match under bcrypt")
}
