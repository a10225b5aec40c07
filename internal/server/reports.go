package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	reportingdomain "github.com/railzwaylabs/atelier/internal/reporting/domain"
	"go.uber.org/zap"
)

// RunMonthlyReports runs the report batch for ?period=YYYY-MM, defaulting to the previous month.
// POST /internal/reports/monthly
func (s *Server) RunMonthlyReports(c *gin.Context) {
	ctx := c.Request.Context()

	period := reportingdomain.PriorMonth(s.clock.Now(ctx))
	if raw := strings.TrimSpace(c.Query("period")); raw != "" {
		parsed, err := reportingdomain.ParsePeriod(raw)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		period = parsed
	}

	result, err := s.reports.Run(ctx, period, nil)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.log.Info("monthly reports triggered",
		zap.String("run_id", result.RunID),
		zap.String("period", period.String()),
		zap.Int("sent", result.Sent),
		zap.Int("failed", len(result.Failures)))
	respondData(c, result)
}
