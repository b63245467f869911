package opportunity

import (
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound             = errors.New("opportunity not found")
	ErrInvalidStage         = errors.New("invalid stage")
	ErrTransitionNotAllowed = errors.New("stage transition not allowed")
	ErrDuplicateID          = errors.New("duplicate opportunity id")
)

// Stage represents the pipeline position of an opportunity.
type Stage string

const (
	StageQualified   Stage = "qualified"
	StageProposal    Stage = "proposal"
	StageNegotiation Stage = "negotiation"
	StageClosing     Stage = "closing"
	StageWon         Stage = "won"
	StageLost        Stage = "lost"
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{StageQualified, StageProposal, StageNegotiation, StageClosing, StageWon, StageLost}

// BoardStages are the stages shown as board columns. Won and lost are terminal and left off.
var BoardStages = []Stage{StageQualified, StageProposal, StageNegotiation, StageClosing}

func ParseStage(s string) (Stage, error) {
	st := Stage(s)
	if !st.Valid() {
		return "", ErrInvalidStage
	}

	return st, nil
}

func (s Stage) Valid() bool {
	return slices.Contains(Stages, s)
}

func (s Stage) Terminal() bool {
	return s == StageWon || s == StageLost
}

// DefaultProbability is the win probability suggested for a stage.
func (s Stage) DefaultProbability() int {
	switch s {
	case StageQualified:
		return 25
	case StageProposal:
		return 50
	case StageNegotiation:
		return 75
	case StageClosing:
		return 90
	case StageWon:
		return 100
	}

	return 0
}

func (s Stage) Label() string {
	switch s {
	case StageQualified:
		return "Qualified"
	case StageProposal:
		return "Proposal"
	case StageNegotiation:
		return "Negotiation"
	case StageClosing:
		return "Closing"
	case StageWon:
		return "Won"
	case StageLost:
		return "Lost"
	}

	return "Unknown"
}

// KeyDate is a labelled milestone on an opportunity's timeline.
type KeyDate struct {
	Label string
	Date  time.Time
}

const KeyDateCreated = "Created"

// Opportunity represents a sales deal in progress.
type Opportunity struct {
	ID                uuid.UUID
	Title             string
	Company           string
	Contact           string
	Value             decimal.Decimal
	Currency          string // Display only
	Stage             Stage
	Probability       int // Percentage, 0-100
	ExpectedCloseDate time.Time
	Owner             string
	KeyDates          []KeyDate
	Description       string
	DecisionMaker     string
	ProposalPDF       string
	CreatedAt         time.Time
	UpdatedAt         *time.Time
}

// Clone returns a deep copy so callers never share mutable state with the store.
func (o *Opportunity) Clone() *Opportunity {
	c := *o
	c.KeyDates = slices.Clone(o.KeyDates)

	if o.UpdatedAt != nil {
		c.UpdatedAt = new(*o.UpdatedAt)
	}

	return &c
}
