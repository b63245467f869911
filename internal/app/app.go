// Package app wires the services shared by the API server and the dashboard.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MrJamesThe3rd/dealflow/internal/config"
	"github.com/MrJamesThe3rd/dealflow/internal/export"
	"github.com/MrJamesThe3rd/dealflow/internal/forecast"
	"github.com/MrJamesThe3rd/dealflow/internal/importer"
	"github.com/MrJamesThe3rd/dealflow/internal/opportunity"
	"github.com/MrJamesThe3rd/dealflow/internal/opportunity/store"
	"github.com/MrJamesThe3rd/dealflow/internal/seed"
)

type Services struct {
	Opportunities *opportunity.Service
	Forecast      *forecast.Service
	Import        *importer.Service
	Export        *export.Service
}

// New builds the service graph over a fresh in-memory store and loads the
// demo dataset when seeding is enabled. Extra options are applied after the
// ones derived from cfg.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger, extra ...opportunity.Option) (*Services, error) {
	if log == nil {
		log = slog.Default()
	}

	opts := []opportunity.Option{
		opportunity.WithDefaultCurrency(cfg.Pipeline.Currency),
		opportunity.WithLogger(log),
	}

	if cfg.Pipeline.StrictTransitions {
		opts = append(opts, opportunity.WithTransitionPolicy(opportunity.Strict))
	}

	opps := opportunity.NewService(store.New(), append(opts, extra...)...)

	if cfg.Pipeline.Seed {
		if err := loadSeed(ctx, opps, cfg.Pipeline.SeedFile); err != nil {
			return nil, err
		}
	}

	return &Services{
		Opportunities: opps,
		Forecast:      forecast.NewService(opps),
		Import:        importer.NewService(opps),
		Export:        export.NewService(opps, cfg.Proposals.Token),
	}, nil
}

func loadSeed(ctx context.Context, opps *opportunity.Service, path string) error {
	var (
		records []*opportunity.Opportunity
		err     error
	)

	if path != "" {
		records, err = seed.LoadFile(path)
	} else {
		records, err = seed.Default()
	}

	if err != nil {
		return fmt.Errorf("loading seed data: %w", err)
	}

	if err := opps.Seed(ctx, records); err != nil {
		return fmt.Errorf("seeding opportunities: %w", err)
	}

	slog.Info("seeded opportunities", "count", len(records), "file", path)

	return nil
}
