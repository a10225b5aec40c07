package service

import (
	"errors"
	"net/http"

	"github.com/railzwaylabs/atelier/internal/attribution/adapters/cookie"
	"github.com/railzwaylabs/atelier/internal/attribution/adapters/visitorstore"
	"github.com/railzwaylabs/atelier/internal/attribution/domain"
	"github.com/railzwaylabs/atelier/internal/clock"
	"github.com/railzwaylabs/atelier/internal/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Cfg   config.Config
	Log   *zap.Logger
	Clock clock.Clock
	Redis *redis.Client `optional:"true"`
}

// Tracker reads and writes the attribution token across every configured surface.
// Each surface applies the same TTL and canonicalization; a failing surface is skipped.
type Tracker struct {
	log   *zap.Logger
	clock clock.Clock
	ports []domain.Port
}

func New(p Params) domain.Service {
	return NewTracker(p.Log, p.Clock,
		cookie.New(p.Cfg.Attribution.CookieName, p.Cfg.Attribution.CookieDomain, p.Cfg.Attribution.CookieSecure),
		visitorstore.New(p.Redis, p.Cfg.Attribution.VisitorHeader, p.Clock),
	)
}

func NewTracker(log *zap.Logger, clk clock.Clock, ports ...domain.Port) *Tracker {
	return &Tracker{
		log:   log.Named("attribution.tracker"),
		clock: clk,
		ports: ports,
	}
}

// Persist overwrites the stored token with a fresh one for code.
func (t *Tracker) Persist(w http.ResponseWriter, r *http.Request, code, source string) (*domain.Token, error) {
	canonical := domain.Canonicalize(code)
	if canonical == "" {
		return nil, domain.ErrInvalidCode
	}

	token := domain.Token{
		Code:     canonical,
		IssuedAt: t.clock.Now(r.Context()),
		Source:   source,
	}
	for _, port := range t.ports {
		if err := port.Save(w, r, token); err != nil && !errors.Is(err, domain.ErrUnsupported) {
			t.log.Warn("failed to persist attribution token",
				zap.String("surface", port.Name()),
				zap.Error(err))
		}
	}
	return &token, nil
}

// Read returns the newest unexpired token across surfaces. Expired tokens are
// removed from the surface they were found on.
func (t *Tracker) Read(w http.ResponseWriter, r *http.Request) *domain.Token {
	now := t.clock.Now(r.Context())

	var newest *domain.Token
	for _, port := range t.ports {
		token, err := port.Load(r)
		if err != nil {
			if !errors.Is(err, domain.ErrUnsupported) {
				t.log.Warn("failed to load attribution token",
					zap.String("surface", port.Name()),
					zap.Error(err))
			}
			continue
		}
		if token == nil {
			continue
		}
		if token.Expired(now) {
			if err := port.Delete(w, r); err != nil && !errors.Is(err, domain.ErrUnsupported) {
				t.log.Warn("failed to clear expired attribution token",
					zap.String("surface", port.Name()),
					zap.Error(err))
			}
			continue
		}
		if newest == nil || token.IssuedAt.After(newest.IssuedAt) {
			newest = token
		}
	}
	return newest
}

func (t *Tracker) Clear(w http.ResponseWriter, r *http.Request) {
	for _, port := range t.ports {
		if err := port.Delete(w, r); err != nil && !errors.Is(err, domain.ErrUnsupported) {
			t.log.Warn("failed to clear attribution token",
				zap.String("surface", port.Name()),
				zap.Error(err))
		}
	}
}

// CaptureFromRequest persists the referral code carried by the request URL, if any.
func (t *Tracker) CaptureFromRequest(w http.ResponseWriter, r *http.Request) *domain.Token {
	code := domain.ExtractCodeFromURL(r.URL)
	if code == "" {
		return nil
	}
	token, err := t.Persist(w, r, code, domain.SourceURL)
	if err != nil {
		return nil
	}
	return token
}
