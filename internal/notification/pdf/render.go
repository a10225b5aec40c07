// Package pdf renders monthly consultant summaries as PDF attachments.
package pdf

import (
	"fmt"
	"strconv"

	"github.com/gosimple/slug"
	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/railzwaylabs/atelier/internal/reporting/domain"
)

var (
	titleStyle  = props.Text{Size: 16, Style: fontstyle.Bold, Align: align.Center}
	headerStyle = props.Text{Size: 10, Style: fontstyle.Bold}
	bodyStyle   = props.Text{Size: 10}
	amountStyle = props.Text{Size: 10, Align: align.Right}
)

// FileName is the attachment name for summary, e.g. anna10-2024-01.pdf.
func FileName(summary domain.Summary) string {
	return slug.Make(summary.ConsultantCode+" "+summary.Period.String()) + ".pdf"
}

func RenderSummary(summary domain.Summary) ([]byte, error) {
	cfg := config.NewBuilder().
		WithLeftMargin(15).
		WithTopMargin(15).
		WithRightMargin(15).
		Build()
	m := maroto.New(cfg)

	m.AddRow(14, text.NewCol(12, "Monthly commission report", titleStyle))
	m.AddRow(8, text.NewCol(12, fmt.Sprintf("%s (%s)", summary.ConsultantName, summary.ConsultantCode), props.Text{Size: 11, Align: align.Center}))
	m.AddRow(8, text.NewCol(12, fmt.Sprintf("%s to %s",
		summary.PeriodStart.Format("2006-01-02"),
		summary.PeriodEnd.Format("2006-01-02")), props.Text{Size: 10, Align: align.Center}))
	m.AddRow(6)

	m.AddRows(
		row.New(7).Add(
			text.NewCol(8, "Commissions", bodyStyle),
			text.NewCol(4, strconv.Itoa(summary.TotalCommissions), amountStyle),
		),
		row.New(7).Add(
			text.NewCol(8, "Earnings", bodyStyle),
			text.NewCol(4, money(summary, summary.TotalEarnings.StringFixed(2)), amountStyle),
		),
		row.New(7).Add(
			text.NewCol(8, "New clients", bodyStyle),
			text.NewCol(4, strconv.Itoa(summary.NewClients), amountStyle),
		),
	)
	m.AddRow(6)

	m.AddRow(8, text.NewCol(12, "Top clients", headerStyle))
	if len(summary.TopClients) == 0 {
		m.AddRow(7, text.NewCol(12, "No sales this month.", bodyStyle))
	}
	for i, c := range summary.TopClients {
		m.AddRow(7,
			text.NewCol(1, strconv.Itoa(i+1), bodyStyle),
			text.NewCol(5, c.Name, bodyStyle),
			text.NewCol(3, c.Email, bodyStyle),
			text.NewCol(3, money(summary, c.Total.StringFixed(2)), amountStyle),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("render report pdf: %w", err)
	}
	return doc.GetBytes(), nil
}

func money(summary domain.Summary, amount string) string {
	if summary.Currency == "" {
		return amount
	}
	return amount + " " + summary.Currency
}
