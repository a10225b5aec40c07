package domain

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// TokenTTL is how long a referral stays valid after it was last observed.
const TokenTTL = 30 * 24 * time.Hour

const (
	SourceURL    = "url"
	SourceManual = "manual"
)

// ReferralQueryKeys are checked in order when extracting a code from a landing URL.
var ReferralQueryKeys = []string{"ref", "consultant"}

var codePattern = regexp.MustCompile(`^[A-Z0-9_-]{1,32}$`)

var (
	// ErrUnsupported means the storage surface is unavailable for this request.
	// Callers treat it the same as an absent token.
	ErrUnsupported = errors.New("attribution_surface_unsupported")
	ErrInvalidCode = errors.New("invalid_referral_code")
)

// Token is the client-held record of the last referring consultant.
type Token struct {
	Code     string    `json:"code"`
	IssuedAt time.Time `json:"issued_at"`
	Source   string    `json:"source,omitempty"`
}

// Expired reports whether more than TokenTTL has elapsed since the token was issued.
func (t Token) Expired(now time.Time) bool {
	return now.Sub(t.IssuedAt) > TokenTTL
}

// ExpiresAt is the last instant the token is still valid.
func (t Token) ExpiresAt() time.Time {
	return t.IssuedAt.Add(TokenTTL)
}

// Canonicalize trims and upper-cases a referral code. Codes outside the allowed
// alphabet return "".
func Canonicalize(code string) string {
	c := strings.ToUpper(strings.TrimSpace(code))
	if !codePattern.MatchString(c) {
		return ""
	}
	return c
}

// ExtractCodeFromURL returns the canonical referral code carried by u, or "".
func ExtractCodeFromURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	q := u.Query()
	for _, key := range ReferralQueryKeys {
		if code := Canonicalize(q.Get(key)); code != "" {
			return code
		}
	}
	return ""
}
