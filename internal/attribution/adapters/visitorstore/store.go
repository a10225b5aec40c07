package visitorstore

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/railzwaylabs/atelier/internal/attribution/domain"
	"github.com/railzwaylabs/atelier/internal/clock"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "attribution:visitor:"

// Store keeps tokens for API and mobile clients that identify themselves with a
// visitor id header instead of carrying cookies.
type Store struct {
	client *redis.Client
	header string
	clock  clock.Clock
}

func New(client *redis.Client, header string, clk clock.Clock) *Store {
	if header == "" {
		header = "X-Visitor-Id"
	}
	return &Store{client: client, header: header, clock: clk}
}

func (s *Store) Name() string { return "visitor_store" }

func (s *Store) visitorKey(r *http.Request) (string, error) {
	if s.client == nil || r == nil {
		return "", domain.ErrUnsupported
	}
	id := strings.TrimSpace(r.Header.Get(s.header))
	if id == "" || len(id) > 128 {
		return "", domain.ErrUnsupported
	}
	return keyPrefix + id, nil
}

func (s *Store) Load(r *http.Request) (*domain.Token, error) {
	key, err := s.visitorKey(r)
	if err != nil {
		return nil, err
	}
	raw, err := s.client.Get(r.Context(), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var token domain.Token
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, nil
	}
	token.Code = domain.Canonicalize(token.Code)
	if token.Code == "" {
		return nil, nil
	}
	return &token, nil
}

func (s *Store) Save(w http.ResponseWriter, r *http.Request, token domain.Token) error {
	key, err := s.visitorKey(r)
	if err != nil {
		return err
	}
	ttl := token.ExpiresAt().Sub(s.clock.Now(r.Context()))
	if ttl <= 0 {
		return s.client.Del(r.Context(), key).Err()
	}
	raw, err := json.Marshal(token)
	if err != nil {
		return err
	}
	return s.client.Set(r.Context(), key, raw, ttl).Err()
}

func (s *Store) Delete(w http.ResponseWriter, r *http.Request) error {
	key, err := s.visitorKey(r)
	if err != nil {
		return err
	}
	return s.client.Del(r.Context(), key).Err()
}
