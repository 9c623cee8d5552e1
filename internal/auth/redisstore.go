package auth

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/redis/go-redis/v9"
)

// RedisSessionStore keeps gob-encoded session values in Redis under
// KeyPrefix+id. Redis key expiry replaces the in-process pruner, and several
// server instances can share sessions.
type RedisSessionStore struct {
	Client    redis.UniversalClient
	Codecs    []securecookie.Codec
	Options   *sessions.Options
	KeyPrefix string
}

var _ sessions.Store = (*RedisSessionStore)(nil)

func NewRedisSessionStore(client redis.UniversalClient, opts sessions.Options, keyPairs ...[]byte) *RedisSessionStore {
	s := &RedisSessionStore{
		Client:    client,
		Codecs:    securecookie.CodecsFromPairs(keyPairs...),
		Options:   &opts,
		KeyPrefix: "session:",
	}
	setCodecMaxAge(s.Codecs, opts.MaxAge)
	return s
}

func (s *RedisSessionStore) Get(r *http.Request, name string) (*sessions.Session, error) {
	return sessions.GetRegistry(r).Get(s, name)
}

func (s *RedisSessionStore) New(r *http.Request, name string) (*sessions.Session, error) {
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

	raw, err := s.Client.Get(r.Context(), s.KeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return session, nil
	}
	if err != nil {
		return session, err
	}
	values := make(map[interface{}]interface{})
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&values); err != nil {
		return session, err
	}
	session.ID = id
	session.Values = values
	session.IsNew = false
	return session, nil
}

func (s *RedisSessionStore) Save(r *http.Request, w http.ResponseWriter, session *sessions.Session) error {
	ctx := r.Context()
	if session.Options.MaxAge < 0 {
		if session.ID != "" {
			if err := s.Client.Del(ctx, s.KeyPrefix+session.ID).Err(); err != nil {
				return err
			}
		}
		http.SetCookie(w, sessions.NewCookie(session.Name(), "", session.Options))
		return nil
	}

	if session.ID == "" {
		session.ID = newSessionID()
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(session.Values); err != nil {
		return err
	}
	ttl := time.Duration(session.Options.MaxAge) * time.Second
	if err := s.Client.Set(ctx, s.KeyPrefix+session.ID, buf.Bytes(), ttl).Err(); err != nil {
		return err
	}

	encoded, err := securecookie.EncodeMulti(session.Name(), session.ID, s.Codecs...)
	if err != nil {
		return err
	}
	http.SetCookie(w, sessions.NewCookie(session.Name(), encoded, session.Options))
	return nil
}

// Destroy deletes the session with the given id.
func (s *RedisSessionStore) Destroy(ctx context.Context, id string) error {
	return s.Client.Del(ctx, s.KeyPrefix+id).Err()
}

func (s *RedisSessionStore) Close() error {
	return s.Client.Close()
}

// Ping checks the Redis connection; used at startup to fail fast.
func (s *RedisSessionStore) Ping(ctx context.Context) error {
	return s.Client.Ping(ctx).Err()
}
