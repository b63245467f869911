package importer

import (
	"strings"

	"github.com/MrJamesThe3rd/dealflow/internal/opportunity"
)

// columnAliases maps each form field to the header spellings seen in CRM and
// spreadsheet exports. Matching is case-insensitive and ignores spaces, dashes,
// underscores and parentheses.
var columnAliases = map[string][]string{
	opportunity.FieldTitle:             {"title", "opportunity", "opportunityname", "name", "deal", "dealname"},
	opportunity.FieldCompany:           {"company", "account", "accountname", "client", "customer"},
	opportunity.FieldContact:           {"contact", "contactname"},
	opportunity.FieldValue:             {"value", "amount", "dealvalue", "dealsize"},
	opportunity.FieldCurrency:          {"currency", "currencycode"},
	opportunity.FieldProbability:       {"probability", "probability%", "winprobability"},
	opportunity.FieldExpectedCloseDate: {"expectedclosedate", "closedate", "expectedclose", "closingdate"},
	opportunity.FieldOwner:             {"owner", "opportunityowner", "assignedto", "salesrep"},
	opportunity.FieldDescription:       {"description", "notes"},
	opportunity.FieldDecisionMaker:     {"decisionmaker"},
	opportunity.FieldProposalPDF:       {"proposal", "proposalpdf"},
}

// requiredColumns must all be present for a row to be taken as the header.
var requiredColumns = []string{opportunity.FieldTitle, opportunity.FieldValue}

func normalizeHeader(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_', '.', '\t', '(', ')':
			return -1
		}

		return r
	}, strings.ToLower(strings.TrimSpace(s)))
}

var aliasLookup = func() map[string]string {
	m := make(map[string]string)

	for field, aliases := range columnAliases {
		for _, a := range aliases {
			m[a] = field
		}
	}

	return m
}()

// colIndex maps a form field to its column position.
type colIndex map[string]int

// matchHeader returns the column map if row looks like a header.
func matchHeader(row []string) (colIndex, bool) {
	cols := make(colIndex)

	for i, cell := range row {
		field, ok := aliasLookup[normalizeHeader(cell)]
		if !ok {
			continue
		}

		if _, taken := cols[field]; !taken {
			cols[field] = i
		}
	}

	for _, f := range requiredColumns {
		if _, ok := cols[f]; !ok {
			return nil, false
		}
	}

	return cols, true
}
