package auth

import (
	"context"
	"encoding/base32"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

type memEntry struct {
	values  map[interface{}]interface{}
	expires time.Time
}

// MemorySessionStore keeps session values in process memory. The cookie only
// carries a signed session id. Expired entries are dropped on read and by a
// background pruner.
type MemorySessionStore struct {
	Codecs  []securecookie.Codec
	Options *sessions.Options

	mu      sync.Mutex
	entries map[string]memEntry
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

var _ sessions.Store = (*MemorySessionStore)(nil)

// NewMemorySessionStore starts a pruner that runs every pruneEvery. keyPairs
// are passed to securecookie as in sessions.NewCookieStore.
func NewMemorySessionStore(opts sessions.Options, pruneEvery time.Duration, keyPairs ...[]byte) *MemorySessionStore {
	s := &MemorySessionStore{
		Codecs:  securecookie.CodecsFromPairs(keyPairs...),
		Options: &opts,
		entries: make(map[string]memEntry),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	setCodecMaxAge(s.Codecs, opts.MaxAge)
	if pruneEvery > 0 {
		go s.pruneLoop(pruneEvery)
	}
	return s
}

func (s *MemorySessionStore) Get(r *http.Request, name string) (*sessions.Session, error) {
	return sessions.GetRegistry(r).Get(s, name)
}

func (s *MemorySessionStore) New(r *http.Request, name string) (*sessions.Session, error) {
	session := sessions.NewSession(s, name)
	opts := *s.Options
	session.Options = &opts
	session.IsNew = true

	c, err := r.Cookie(name)
	if err != nil {
		return session, nil
	}
	var id string
	if err := securecookie.DecodeMulti(name, c.Value, &id, s.Codecs...); err != nil {
		return session, err
	}
	if values, ok := s.load(id); ok {
		session.ID = id
		session.Values = values
		session.IsNew = false
	}
	return session, nil
}

// Save persists the session, or deletes it when Options.MaxAge < 0.
func (s *MemorySessionStore) Save(_ *http.Request, w http.ResponseWriter, session *sessions.Session) error {
	if session.Options.MaxAge < 0 {
		s.mu.Lock()
		delete(s.entries, session.ID)
		s.mu.Unlock()
		http.SetCookie(w, sessions.NewCookie(session.Name(), "", session.Options))
		return nil
	}

	if session.ID == "" {
		session.ID = newSessionID()
	}
	encoded, err := securecookie.EncodeMulti(session.Name(), session.ID, s.Codecs...)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.entries[session.ID] = memEntry{
		values:  copyValues(session.Values),
		expires: s.now().Add(time.Duration(session.Options.MaxAge) * time.Second),
	}
	s.mu.Unlock()

	http.SetCookie(w, sessions.NewCookie(session.Name(), encoded, session.Options))
	return nil
}

// Destroy removes the session with the given id.
func (s *MemorySessionStore) Destroy(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}

func (s *MemorySessionStore) load(id string) (map[interface{}]interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	if !s.now().Before(e.expires) {
		delete(s.entries, id)
		return nil, false
	}
	return copyValues(e.values), true
}

// Len reports how many sessions are held, expired or not.
func (s *MemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Prune drops expired sessions.
func (s *MemorySessionStore) Prune() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		if !now.Before(e.expires) {
			delete(s.entries, id)
		}
	}
}

func (s *MemorySessionStore) pruneLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Prune()
		case <-s.stop:
			return
		}
	}
}

// Close stops the pruner.
func (s *MemorySessionStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}

func newSessionID() string {
	return strings.TrimRight(base32.StdEncoding.EncodeToString(securecookie.GenerateRandomKey(32)), "=")
}

func copyValues(src map[interface{}]interface{}) map[interface{}]interface{} {
	dst := make(map[interface{}]interface{}, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func setCodecMaxAge(codecs []securecookie.Codec, age int) {
	for _, c := range codecs {
		if sc, ok := c.(*securecookie.SecureCookie); ok {
			sc.MaxAge(age)
		}
	}
}
