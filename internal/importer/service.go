package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/MrJamesThe3rd/dealflow/internal/opportunity"
	"github.com/MrJamesThe3rd/dealflow/internal/validation"
)

// RowError reports why a line of the import file was not created.
type RowError struct {
	Line   int               `json:"line"`
	Title  string            `json:"title,omitempty"`
	Errors validation.Errors `json:"errors"`
}

// Result lists what an import created and what it rejected. Rejected rows do
// not stop the rest of the file.
type Result struct {
	Created  []*opportunity.Opportunity
	Rejected []RowError
}

type Service struct {
	parser Importer
	opps   *opportunity.Service
}

func NewService(opps *opportunity.Service) *Service {
	return &Service{
		parser: NewParser(),
		opps:   opps,
	}
}

// Import parses r and creates one opportunity per data row through the same
// validation as the creation form.
func (s *Service) Import(ctx context.Context, r io.Reader) (*Result, error) {
	rows, err := s.parser.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing import file: %w", err)
	}

	res := &Result{}

	for _, row := range rows {
		o, err := s.opps.Create(ctx, row.Input)

		var verrs validation.Errors
		if errors.As(err, &verrs) {
			res.Rejected = append(res.Rejected, RowError{Line: row.Line, Title: row.Input.Title, Errors: verrs})
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("importing line %d: %w", row.Line, err)
		}

		res.Created = append(res.Created, o)
	}

	slog.Info("import finished", "created", len(res.Created), "rejected", len(res.Rejected))

	return res, nil
}
