package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/MrJamesThe3rd/dealflow/internal/opportunity"
)

// Service computes forecasts over a fresh snapshot of the opportunity store on every call.
type Service struct {
	opportunities *opportunity.Service
	now           func() time.Time
}

type Option func(*Service)

// WithClock pins the time used for days-until-close and the report timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(oppService *opportunity.Service, opts ...Option) *Service {
	s := &Service{
		opportunities: oppService,
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Service) snapshot(ctx context.Context) ([]*opportunity.Opportunity, error) {
	opps, err := s.opportunities.List(ctx, opportunity.ListFilter{})
	if err != nil {
		return nil, fmt.Errorf("listing opportunities: %w", err)
	}

	return opps, nil
}

func (s *Service) Board(ctx context.Context) ([]Column, error) {
	opps, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	return Board(opps), nil
}

// Report is the forecast table together with its roll-up.
type Report struct {
	Rows        []Row
	Summary     Summary
	GeneratedAt time.Time
}

func (s *Service) Report(ctx context.Context) (*Report, error) {
	opps, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()

	return &Report{
		Rows:        Table(opps, now),
		Summary:     Summarize(opps),
		GeneratedAt: now,
	}, nil
}
