package cookie

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/railzwaylabs/atelier/internal/attribution/domain"
)

// Store keeps the attribution token in a first-party cookie the server can read
// on every request.
type Store struct {
	name   string
	domain string
	secure bool
}

func New(name, cookieDomain string, secure bool) *Store {
	if name == "" {
		name = "atelier_ref"
	}
	return &Store{name: name, domain: cookieDomain, secure: secure}
}

func (s *Store) Name() string { return "cookie" }

func (s *Store) Load(r *http.Request) (*domain.Token, error) {
	c, err := r.Cookie(s.name)
	if errors.Is(err, http.ErrNoCookie) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil, nil
	}
	var token domain.Token
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, nil
	}
	if domain.Canonicalize(token.Code) == "" || token.IssuedAt.IsZero() {
		return nil, nil
	}
	token.Code = domain.Canonicalize(token.Code)
	return &token, nil
}

func (s *Store) Save(w http.ResponseWriter, r *http.Request, token domain.Token) error {
	if w == nil {
		return domain.ErrUnsupported
	}
	raw, err := json.Marshal(token)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.name,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		Domain:   s.domain,
		Expires:  token.ExpiresAt(),
		MaxAge:   int(domain.TokenTTL.Seconds()),
		Secure:   s.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *Store) Delete(w http.ResponseWriter, r *http.Request) error {
	if w == nil {
		return domain.ErrUnsupported
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.name,
		Value:    "",
		Path:     "/",
		Domain:   s.domain,
		MaxAge:   -1,
		Secure:   s.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
