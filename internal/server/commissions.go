package server

import (
	"context"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	commissiondomain "github.com/railzwaylabs/atelier/internal/commission/domain"
)

// CommissionSummary
// GET /admin/commissions/summary?consultant_id=&month=&year=&status=
func (s *Server) CommissionSummary(c *gin.Context) {
	var query struct {
		ConsultantID string `form:"consultant_id"`
		Month        string `form:"month"`
		Year         string `form:"year"`
		Status       string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	req := commissiondomain.SummaryRequest{
		Status: commissiondomain.Status(strings.ToLower(strings.TrimSpace(query.Status))),
	}
	if raw := strings.TrimSpace(query.ConsultantID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		req.ConsultantID = &id
	}
	var err error
	if req.Month, err = optionalInt(query.Month); err != nil {
		AbortWithError(c, commissiondomain.ErrInvalidPeriod)
		return
	}
	if req.Year, err = optionalInt(query.Year); err != nil {
		AbortWithError(c, commissiondomain.ErrInvalidPeriod)
		return
	}

	resp, err := s.commissions.Summary(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, resp)
}

// ApproveCommission
// POST /admin/commissions/:id/approve
func (s *Server) ApproveCommission(c *gin.Context) {
	s.transitionCommission(c, s.commissions.Approve)
}

// PayCommission
// POST /admin/commissions/:id/pay
func (s *Server) PayCommission(c *gin.Context) {
	s.transitionCommission(c, s.commissions.Pay)
}

// CancelCommission
// POST /admin/commissions/:id/cancel
func (s *Server) CancelCommission(c *gin.Context) {
	s.transitionCommission(c, s.commissions.Cancel)
}

func (s *Server) transitionCommission(c *gin.Context, fn func(context.Context, snowflake.ID) (*commissiondomain.Commission, error)) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, commissiondomain.ErrNotFound)
		return
	}

	commission, err := fn(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, commission)
}

func optionalInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
