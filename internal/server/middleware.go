package server

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	attributiondomain "github.com/railzwaylabs/atelier/internal/attribution/domain"
)

const (
	requestIDHeader  = "X-Request-Id"
	capturedTokenKey = "attribution_token"
)

// RequestID echoes the caller's request id or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// BearerRequired accepts requests carrying "Authorization: Bearer <secret>".
// An empty secret locks the route group.
func BearerRequired(secret string) gin.HandlerFunc {
	want := []byte(strings.TrimSpace(secret))
	return func(c *gin.Context) {
		if len(want) == 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		parts := strings.Fields(strings.TrimSpace(c.GetHeader("Authorization")))
		if len(parts) != 2 || parts[0] != "Bearer" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if subtle.ConstantTimeCompare([]byte(parts[1]), want) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}

// currentToken is the token captured on this request, or the one the visitor already holds.
func (s *Server) currentToken(c *gin.Context) *attributiondomain.Token {
	if v, ok := c.Get(capturedTokenKey); ok {
		if token, ok := v.(*attributiondomain.Token); ok {
			return token
		}
	}
	return s.attribution.Read(c.Writer, c.Request)
}

// CaptureReferral stores the referral code carried by ?ref= or ?consultant= on storefront requests.
func (s *Server) CaptureReferral() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == "GET" {
			if token := s.attribution.CaptureFromRequest(c.Writer, c.Request); token != nil {
				c.Set(capturedTokenKey, token)
			}
		}
		c.Next()
	}
}
