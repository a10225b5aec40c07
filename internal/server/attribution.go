package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	attributiondomain "github.com/railzwaylabs/atelier/internal/attribution/domain"
)

type attributionResponse struct {
	Code      string    `json:"code"`
	Source    string    `json:"source,omitempty"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type putAttributionRequest struct {
	Code string `json:"code" binding:"required,referral_code"`
}

func toAttributionResponse(token *attributiondomain.Token) *attributionResponse {
	if token == nil {
		return nil
	}
	return &attributionResponse{
		Code:      token.Code,
		Source:    token.Source,
		IssuedAt:  token.IssuedAt,
		ExpiresAt: token.ExpiresAt(),
	}
}

// GetAttribution
// GET /api/attribution
func (s *Server) GetAttribution(c *gin.Context) {
	respondData(c, toAttributionResponse(s.currentToken(c)))
}

// PutAttribution stores a code the visitor typed in.
// PUT /api/attribution
func (s *Server) PutAttribution(c *gin.Context) {
	var req putAttributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, attributiondomain.ErrInvalidCode)
		return
	}

	token, err := s.attribution.Persist(c.Writer, c.Request, req.Code, attributiondomain.SourceManual)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, toAttributionResponse(token))
}

// DeleteAttribution
// DELETE /api/attribution
func (s *Server) DeleteAttribution(c *gin.Context) {
	s.attribution.Clear(c.Writer, c.Request)
	c.Status(http.StatusNoContent)
}
