package seed

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/MrJamesThe3rd/dealflow/internal/opportunity"
)

//go:embed opportunities.yaml
var defaultDataset []byte

// Dataset is the on-disk shape of a demo pipeline.
type Dataset struct {
	Opportunities []Record `yaml:"opportunities"`
}

type KeyDate struct {
	Label string `yaml:"label"`
	Date  string `yaml:"date"`
}

type Record struct {
	ID                string    `yaml:"id,omitempty"`
	Title             string    `yaml:"title"`
	Company           string    `yaml:"company"`
	Contact           string    `yaml:"contact,omitempty"`
	Value             string    `yaml:"value"`
	Currency          string    `yaml:"currency,omitempty"`
	Stage             string    `yaml:"stage"`
	Probability       *int      `yaml:"probability,omitempty"` // Defaults to the stage's suggestion
	ExpectedCloseDate string    `yaml:"expected_close_date"`
	Owner             string    `yaml:"owner,omitempty"`
	Description       string    `yaml:"description,omitempty"`
	DecisionMaker     string    `yaml:"decision_maker,omitempty"`
	ProposalPDF       string    `yaml:"proposal_pdf,omitempty"`
	KeyDates          []KeyDate `yaml:"key_dates,omitempty"`
}

// Default returns the embedded demo pipeline.
func Default() ([]*opportunity.Opportunity, error) {
	return Load(bytes.NewReader(defaultDataset))
}

func LoadFile(path string) ([]*opportunity.Opportunity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening seed file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

func Load(r io.Reader) ([]*opportunity.Opportunity, error) {
	var ds Dataset
	if err := yaml.NewDecoder(r).Decode(&ds); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}

		return nil, fmt.Errorf("decoding seed dataset: %w", err)
	}

	out := make([]*opportunity.Opportunity, 0, len(ds.Opportunities))

	for i, rec := range ds.Opportunities {
		o, err := rec.toOpportunity()
		if err != nil {
			return nil, fmt.Errorf("opportunity %d (%q): %w", i, rec.Title, err)
		}

		out = append(out, o)
	}

	return out, nil
}

func (r Record) toOpportunity() (*opportunity.Opportunity, error) {
	stage, err := opportunity.ParseStage(r.Stage)
	if err != nil {
		return nil, fmt.Errorf("stage %q: %w", r.Stage, err)
	}

	value, err := decimal.NewFromString(r.Value)
	if err != nil {
		return nil, fmt.Errorf("value %q: %w", r.Value, err)
	}

	closeDate, err := time.Parse(time.DateOnly, r.ExpectedCloseDate)
	if err != nil {
		return nil, fmt.Errorf("expected_close_date: %w", err)
	}

	o := &opportunity.Opportunity{
		Title:             r.Title,
		Company:           r.Company,
		Contact:           r.Contact,
		Value:             value,
		Currency:          r.Currency,
		Stage:             stage,
		Probability:       stage.DefaultProbability(),
		ExpectedCloseDate: closeDate,
		Owner:             r.Owner,
		Description:       r.Description,
		DecisionMaker:     r.DecisionMaker,
		ProposalPDF:       r.ProposalPDF,
	}

	if r.Probability != nil {
		o.Probability = *r.Probability
	}

	if r.ID != "" {
		if o.ID, err = uuid.Parse(r.ID); err != nil {
			return nil, fmt.Errorf("id %q: %w", r.ID, err)
		}
	}

	for _, kd := range r.KeyDates {
		d, err := time.Parse(time.DateOnly, kd.Date)
		if err != nil {
			return nil, fmt.Errorf("key date %q: %w", kd.Label, err)
		}

		o.KeyDates = append(o.KeyDates, opportunity.KeyDate{Label: kd.Label, Date: d})
	}

	if len(o.KeyDates) == 0 {
		return o, nil
	}

	if i := slices.IndexFunc(o.KeyDates, isCreated); i >= 0 {
		o.CreatedAt = o.KeyDates[i].Date
		return o, nil
	}

	// Without an explicit Created entry the earliest key date stands in for it.
	earliest := slices.MinFunc(o.KeyDates, func(a, b opportunity.KeyDate) int { return a.Date.Compare(b.Date) })
	o.CreatedAt = earliest.Date
	o.KeyDates = append([]opportunity.KeyDate{{Label: opportunity.KeyDateCreated, Date: earliest.Date}}, o.KeyDates...)

	return o, nil
}

func isCreated(kd opportunity.KeyDate) bool {
	return kd.Label == opportunity.KeyDateCreated
}
