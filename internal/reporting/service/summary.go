package service

import (
	"sort"

	"github.com/bwmarrin/snowflake"
	clientdomain "github.com/railzwaylabs/atelier/internal/client/domain"
	commissiondomain "github.com/railzwaylabs/atelier/internal/commission/domain"
	consultantdomain "github.com/railzwaylabs/atelier/internal/consultant/domain"
	"github.com/railzwaylabs/atelier/internal/reporting/domain"
	"github.com/shopspring/decimal"
)

// BuildSummary folds one consultant's commissions for a period into a report.
// commissions must be in insertion order; it decides ties among top clients.
func BuildSummary(
	consultant *consultantdomain.Consultant,
	period domain.Period,
	currency string,
	commissions []commissiondomain.Commission,
	newClients int,
	clients []clientdomain.Client,
	topN int,
) domain.Summary {
	summary := domain.Summary{
		ConsultantID:     consultant.ID,
		ConsultantCode:   consultant.Code,
		ConsultantName:   consultant.Name,
		Period:           period,
		PeriodStart:      period.Start(),
		PeriodEnd:        period.End(),
		Currency:         currency,
		TotalCommissions: len(commissions),
		TotalEarnings:    decimal.Zero,
		NewClients:       newClients,
		TopClients:       []domain.TopClient{},
	}

	var (
		order  []snowflake.ID
		totals = map[snowflake.ID]*domain.TopClient{}
	)
	for _, c := range commissions {
		if c.Status == commissiondomain.StatusCancelled {
			continue
		}
		summary.TotalEarnings = summary.TotalEarnings.Add(c.CommissionAmount)

		tc, ok := totals[c.ClientID]
		if !ok {
			tc = &domain.TopClient{ClientID: c.ClientID, Total: decimal.Zero}
			totals[c.ClientID] = tc
			order = append(order, c.ClientID)
		}
		tc.Total = tc.Total.Add(c.OrderAmount)
		tc.Orders++
	}
	summary.TotalEarnings = summary.TotalEarnings.Round(2)

	byID := make(map[snowflake.ID]clientdomain.Client, len(clients))
	for _, c := range clients {
		byID[c.ID] = c
	}

	ranked := make([]domain.TopClient, 0, len(order))
	for _, id := range order {
		tc := *totals[id]
		if c, ok := byID[id]; ok {
			tc.Name = c.Name
			tc.Email = c.Email
		}
		ranked = append(ranked, tc)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Total.GreaterThan(ranked[j].Total)
	})
	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}
	summary.TopClients = ranked
	return summary
}

// clientIDs lists the distinct clients behind non-cancelled commissions.
func clientIDs(commissions []commissiondomain.Commission) []snowflake.ID {
	seen := map[snowflake.ID]struct{}{}
	var ids []snowflake.ID
	for _, c := range commissions {
		if c.Status == commissiondomain.StatusCancelled {
			continue
		}
		if _, ok := seen[c.ClientID]; ok {
			continue
		}
		seen[c.ClientID] = struct{}{}
		ids = append(ids, c.ClientID)
	}
	return ids
}
