// Package forecast derives read-only pipeline figures from a snapshot of opportunities.
// Nothing here mutates its input, so results can be recomputed on every read.
package forecast

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/dealflow/internal/opportunity"
)

var hundred = decimal.NewFromInt(100)

// WeightedValue is value * probability / 100, kept exact.
func WeightedValue(o *opportunity.Opportunity) decimal.Decimal {
	return o.Value.Mul(decimal.NewFromInt(int64(o.Probability))).Div(hundred)
}

// RoundCurrency rounds for display to two decimal places, halves away from zero.
// Values are never negative, so this is round-half-up.
func RoundCurrency(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// StageMembers returns the opportunities in stage s, in snapshot order.
func StageMembers(opps []*opportunity.Opportunity, s opportunity.Stage) []*opportunity.Opportunity {
	var out []*opportunity.Opportunity

	for _, o := range opps {
		if o.Stage == s {
			out = append(out, o)
		}
	}

	return out
}

// StageTotal sums the value of every opportunity in stage s. An empty stage totals zero.
func StageTotal(opps []*opportunity.Opportunity, s opportunity.Stage) decimal.Decimal {
	total := decimal.Zero

	for _, o := range opps {
		if o.Stage == s {
			total = total.Add(o.Value)
		}
	}

	return total
}

// Column is one board column.
type Column struct {
	Stage    opportunity.Stage
	Members  []*opportunity.Opportunity
	Total    decimal.Decimal
	Weighted decimal.Decimal
}

// Board groups the snapshot into one column per open stage. Won and lost
// opportunities do not appear on the board.
func Board(opps []*opportunity.Opportunity) []Column {
	cols := make([]Column, len(opportunity.BoardStages))

	for i, s := range opportunity.BoardStages {
		members := StageMembers(opps, s)

		weighted := decimal.Zero
		for _, o := range members {
			weighted = weighted.Add(WeightedValue(o))
		}

		cols[i] = Column{
			Stage:    s,
			Members:  members,
			Total:    StageTotal(opps, s),
			Weighted: weighted,
		}
	}

	return cols
}

// Row is one forecast table line.
type Row struct {
	Opportunity    *opportunity.Opportunity
	Weighted       decimal.Decimal
	DaysUntilClose int
}

// Table lists every opportunity, terminal ones included, with its weighted value.
func Table(opps []*opportunity.Opportunity, now time.Time) []Row {
	rows := make([]Row, len(opps))

	for i, o := range opps {
		rows[i] = Row{
			Opportunity:    o,
			Weighted:       WeightedValue(o),
			DaysUntilClose: DaysUntilClose(o, now),
		}
	}

	return rows
}

// DaysUntilClose counts calendar days from now to the expected close date.
// Overdue deals give a negative number.
func DaysUntilClose(o *opportunity.Opportunity, now time.Time) int {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	cy, cm, cd := o.ExpectedCloseDate.Date()
	closeDay := time.Date(cy, cm, cd, 0, 0, 0, 0, time.UTC)

	return int(closeDay.Sub(today).Hours() / 24)
}

type Summary struct {
	Count         int
	Open          int
	OpenValue     decimal.Decimal
	WeightedValue decimal.Decimal
	WonValue      decimal.Decimal
	LostValue     decimal.Decimal
	// WinRate is the percentage of closed deals that were won, zero when none closed.
	WinRate decimal.Decimal
}

func Summarize(opps []*opportunity.Opportunity) Summary {
	s := Summary{
		Count:         len(opps),
		OpenValue:     decimal.Zero,
		WeightedValue: decimal.Zero,
		WonValue:      decimal.Zero,
		LostValue:     decimal.Zero,
		WinRate:       decimal.Zero,
	}

	var won, lost int64

	for _, o := range opps {
		switch o.Stage {
		case opportunity.StageWon:
			won++
			s.WonValue = s.WonValue.Add(o.Value)
		case opportunity.StageLost:
			lost++
			s.LostValue = s.LostValue.Add(o.Value)
		default:
			s.Open++
			s.OpenValue = s.OpenValue.Add(o.Value)
			s.WeightedValue = s.WeightedValue.Add(WeightedValue(o))
		}
	}

	if closed := won + lost; closed > 0 {
		s.WinRate = decimal.NewFromInt(won).Mul(hundred).Div(decimal.NewFromInt(closed)).Round(1)
	}

	return s
}
