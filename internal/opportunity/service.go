package opportunity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/dealflow/internal/validation"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=opportunity
type Repository interface {
	Insert(ctx context.Context, o *Opportunity) error
	Get(ctx context.Context, id uuid.UUID) (*Opportunity, error)
	List(ctx context.Context, filter ListFilter) ([]*Opportunity, error)
	// UpdateStage runs guard against the current stage and writes the new stage
	// without letting another writer in between.
	UpdateStage(ctx context.Context, id uuid.UUID, to Stage, guard func(from Stage) error) error
	Len(ctx context.Context) (int, error)
}

type ListFilter struct {
	Stage *Stage
	Owner *string
	// CloseFrom and CloseTo bound the expected close date, both inclusive.
	CloseFrom *time.Time
	CloseTo   *time.Time
}

// Match reports whether o passes the filter.
func (f ListFilter) Match(o *Opportunity) bool {
	if f.Stage != nil && o.Stage != *f.Stage {
		return false
	}

	if f.Owner != nil && !strings.EqualFold(o.Owner, *f.Owner) {
		return false
	}

	if f.CloseFrom != nil && o.ExpectedCloseDate.Before(*f.CloseFrom) {
		return false
	}

	if f.CloseTo != nil && o.ExpectedCloseDate.After(*f.CloseTo) {
		return false
	}

	return true
}

// Form field names, shared by every creation surface.
const (
	FieldTitle             = "title"
	FieldCompany           = "company"
	FieldContact           = "contact"
	FieldValue             = "value"
	FieldCurrency          = "currency"
	FieldProbability       = "probability"
	FieldExpectedCloseDate = "expected_close_date"
	FieldOwner             = "owner"
	FieldDescription       = "description"
	FieldDecisionMaker     = "decision_maker"
	FieldProposalPDF       = "proposal_pdf"
)

// CreateRules is the validation table applied to every new opportunity.
var CreateRules = validation.Rules{
	FieldTitle:             {validation.Required(), validation.MaxLength(200)},
	FieldCompany:           {validation.Required(), validation.MaxLength(200)},
	FieldValue:             {validation.Required(), validation.Number(0)},
	FieldExpectedCloseDate: {validation.Required(), validation.Date(time.DateOnly)},
	FieldProbability:       {validation.IntRange(0, 100)},
	FieldCurrency:          {validation.MaxLength(3)},
}

// CreateInput is the raw form payload. Values are kept as entered so that
// validation can report unparseable input per field.
type CreateInput struct {
	Title             string
	Company           string
	Contact           string
	Value             string
	Currency          string
	Probability       string
	ExpectedCloseDate string // YYYY-MM-DD
	Owner             string
	Description       string
	DecisionMaker     string
	ProposalPDF       string
	// Stage is accepted for form compatibility but ignored: new opportunities start qualified.
	Stage string
}

func (in CreateInput) Fields() map[string]string {
	return map[string]string{
		FieldTitle:             in.Title,
		FieldCompany:           in.Company,
		FieldContact:           in.Contact,
		FieldValue:             in.Value,
		FieldCurrency:          in.Currency,
		FieldProbability:       in.Probability,
		FieldExpectedCloseDate: in.ExpectedCloseDate,
		FieldOwner:             in.Owner,
		FieldDescription:       in.Description,
		FieldDecisionMaker:     in.DecisionMaker,
		FieldProposalPDF:       in.ProposalPDF,
	}
}

type Service struct {
	repo     Repository
	policy   TransitionPolicy
	now      func() time.Time
	currency string
	log      *slog.Logger
	onMove   func(id uuid.UUID, from, to Stage)
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithTransitionPolicy(p TransitionPolicy) Option {
	return func(s *Service) { s.policy = p }
}

func WithDefaultCurrency(c string) Option {
	return func(s *Service) { s.currency = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithStageObserver registers fn to be called after every successful stage move.
func WithStageObserver(fn func(id uuid.UUID, from, to Stage)) Option {
	return func(s *Service) { s.onMove = fn }
}

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		policy:   Unrestricted,
		now:      time.Now,
		currency: "USD",
		log:      slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Create validates the form payload and inserts a new opportunity at the head of
// the pipeline. On validation failure it returns validation.Errors and stores nothing.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Opportunity, error) {
	if errs := validation.Validate(in.Fields(), CreateRules); errs != nil {
		return nil, errs
	}

	value, err := decimal.NewFromString(strings.TrimSpace(in.Value))
	if err != nil {
		return nil, validation.Errors{FieldValue: "must be a number"}
	}

	closeDate, err := time.Parse(time.DateOnly, strings.TrimSpace(in.ExpectedCloseDate))
	if err != nil {
		return nil, validation.Errors{FieldExpectedCloseDate: "must be a date (2006-01-02)"}
	}

	probability := StageQualified.DefaultProbability()
	if p := strings.TrimSpace(in.Probability); p != "" {
		probability, err = strconv.Atoi(p)
		if err != nil {
			return nil, validation.Errors{FieldProbability: "must be a whole number"}
		}
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = s.currency
	}

	now := s.now()
	o := &Opportunity{
		ID:                uuid.New(),
		Title:             strings.TrimSpace(in.Title),
		Company:           strings.TrimSpace(in.Company),
		Contact:           strings.TrimSpace(in.Contact),
		Value:             value,
		Currency:          currency,
		Stage:             StageQualified,
		Probability:       probability,
		ExpectedCloseDate: closeDate,
		Owner:             strings.TrimSpace(in.Owner),
		KeyDates:          []KeyDate{{Label: KeyDateCreated, Date: now}},
		Description:       in.Description,
		DecisionMaker:     strings.TrimSpace(in.DecisionMaker),
		ProposalPDF:       strings.TrimSpace(in.ProposalPDF),
		CreatedAt:         now,
	}

	if err := s.repo.Insert(ctx, o); err != nil {
		return nil, fmt.Errorf("inserting opportunity: %w", err)
	}

	s.log.Debug("opportunity created", "id", o.ID, "title", o.Title, "value", o.Value.String())

	return o.Clone(), nil
}

// MoveStage reassigns the stage of an opportunity. Probability and key dates are
// left untouched. An unknown id returns ErrNotFound and changes nothing.
func (s *Service) MoveStage(ctx context.Context, id uuid.UUID, to Stage) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStage, to)
	}

	var from Stage

	err := s.repo.UpdateStage(ctx, id, to, func(current Stage) error {
		from = current
		return s.policy.Allow(current, to)
	})
	if err != nil {
		return err
	}

	s.log.Debug("opportunity stage moved", "id", id, "from", from, "to", to)

	if s.onMove != nil {
		s.onMove(id, from, to)
	}

	return nil
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Opportunity, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Opportunity, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Len(ctx)
}

// Seed loads pre-built records, such as a demo dataset, keeping the given order
// at the head of the store. Records are checked before anything is inserted.
func (s *Service) Seed(ctx context.Context, records []*Opportunity) error {
	seen := make(map[uuid.UUID]struct{}, len(records))

	for i, o := range records {
		if o.ID == uuid.Nil {
			o.ID = uuid.New()
		}

		if _, dup := seen[o.ID]; dup {
			return fmt.Errorf("record %d: %w: %s", i, ErrDuplicateID, o.ID)
		}

		seen[o.ID] = struct{}{}

		if !o.Stage.Valid() {
			return fmt.Errorf("record %d: %w: %q", i, ErrInvalidStage, o.Stage)
		}

		if o.Probability < 0 || o.Probability > 100 {
			return fmt.Errorf("record %d: probability %d out of range", i, o.Probability)
		}

		if o.Value.IsNegative() {
			return fmt.Errorf("record %d: negative value", i)
		}

		if o.Currency == "" {
			o.Currency = s.currency
		}

		if o.CreatedAt.IsZero() {
			o.CreatedAt = s.now()
		}

		if !slices.ContainsFunc(o.KeyDates, func(kd KeyDate) bool { return kd.Label == KeyDateCreated }) {
			o.KeyDates = append([]KeyDate{{Label: KeyDateCreated, Date: o.CreatedAt}}, o.KeyDates...)
		}
	}

	for i, o := range records {
		_, err := s.repo.Get(ctx, o.ID)

		switch {
		case err == nil:
			return fmt.Errorf("record %d: %w: %s", i, ErrDuplicateID, o.ID)
		case !errors.Is(err, ErrNotFound):
			return fmt.Errorf("checking record %d: %w", i, err)
		}
	}

	// Insert places each record at the head, so walk backwards to keep file order.
	for i := len(records) - 1; i >= 0; i-- {
		if err := s.repo.Insert(ctx, records[i]); err != nil {
			return fmt.Errorf("seeding record %d: %w", i, err)
		}
	}

	return nil
}
