// Package report renders forecast data as tables for terminals, spreadsheets
// and documents.
package report

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/dealflow/internal/forecast"
)

var ErrUnknownFormat = errors.New("unknown report format")

type Format string

const (
	FormatText     Format = "text"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// ParseFormat accepts a format name; the empty string means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatCSV, FormatMarkdown, FormatHTML:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatHTML:
		return "text/html; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Money formats an amount for display, rounded to cents.
func Money(d decimal.Decimal) string {
	return forecast.RoundCurrency(d).StringFixed(2)
}

// Forecast writes the forecast table with a totals footer.
func Forecast(w io.Writer, r *forecast.Report, f Format) error {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Title", "Company", "Stage", "Owner", "Value", "Prob %", "Weighted", "Close Date", "Days"})

	for _, row := range r.Rows {
		o := row.Opportunity
		t.AppendRow(table.Row{
			o.Title,
			o.Company,
			o.Stage.Label(),
			o.Owner,
			Money(o.Value) + " " + o.Currency,
			o.Probability,
			Money(row.Weighted),
			o.ExpectedCloseDate.Format("2006-01-02"),
			row.DaysUntilClose,
		})
	}

	s := r.Summary
	t.AppendFooter(table.Row{
		fmt.Sprintf("%d deals", s.Count),
		fmt.Sprintf("%d open", s.Open),
		"",
		"",
		Money(s.OpenValue),
		"",
		Money(s.WeightedValue),
		"win rate",
		s.WinRate.StringFixed(1) + "%",
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, Align: text.AlignRight, AlignFooter: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight, AlignFooter: text.AlignRight},
		{Number: 9, Align: text.AlignRight},
	})

	return render(w, t, f)
}

// Board writes one line per board column with its count, total and weighted total.
func Board(w io.Writer, cols []forecast.Column, f Format) error {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Stage", "Deals", "Total", "Weighted"})

	total, weighted := decimal.Zero, decimal.Zero
	count := 0

	for _, c := range cols {
		t.AppendRow(table.Row{c.Stage.Label(), len(c.Members), Money(c.Total), Money(c.Weighted)})

		count += len(c.Members)
		total = total.Add(c.Total)
		weighted = weighted.Add(c.Weighted)
	}

	t.AppendFooter(table.Row{"Pipeline", count, Money(total), Money(weighted)})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight, AlignFooter: text.AlignRight},
		{Number: 4, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})

	return render(w, t, f)
}

func render(w io.Writer, t table.Writer, f Format) error {
	var out string

	switch f {
	case FormatText, "":
		t.SetStyle(table.StyleLight)
		out = t.Render()
	case FormatCSV:
		out = t.RenderCSV()
	case FormatMarkdown:
		out = t.RenderMarkdown()
	case FormatHTML:
		out = t.RenderHTML()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}

	if _, err := io.WriteString(w, out+"\n"); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	return nil
}
