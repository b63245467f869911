package opportunity

import (
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/dealflow/internal/forecast"
	"github.com/MrJamesThe3rd/dealflow/internal/opportunity"
)

type keyDateResponse struct {
	Label string    `json:"label"`
	Date  time.Time `json:"date"`
}

// Response is the JSON shape of an opportunity.
type Response struct {
	ID                uuid.UUID         `json:"id"`
	Title             string            `json:"title"`
	Company           string            `json:"company"`
	Contact           string            `json:"contact,omitempty"`
	Value             string            `json:"value"`
	WeightedValue     string            `json:"weighted_value"`
	Currency          string            `json:"currency"`
	Stage             opportunity.Stage `json:"stage"`
	Probability       int               `json:"probability"`
	ExpectedCloseDate string            `json:"expected_close_date"`
	Owner             string            `json:"owner,omitempty"`
	KeyDates          []keyDateResponse `json:"key_dates"`
	Description       string            `json:"description,omitempty"`
	DecisionMaker     string            `json:"decision_maker,omitempty"`
	ProposalPDF       string            `json:"proposal_pdf,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         *time.Time        `json:"updated_at,omitempty"`
}

func ToResponse(o *opportunity.Opportunity) Response {
	resp := Response{
		ID:                o.ID,
		Title:             o.Title,
		Company:           o.Company,
		Contact:           o.Contact,
		Value:             o.Value.String(),
		WeightedValue:     forecast.RoundCurrency(forecast.WeightedValue(o)).StringFixed(2),
		Currency:          o.Currency,
		Stage:             o.Stage,
		Probability:       o.Probability,
		ExpectedCloseDate: o.ExpectedCloseDate.Format(time.DateOnly),
		Owner:             o.Owner,
		KeyDates:          make([]keyDateResponse, len(o.KeyDates)),
		Description:       o.Description,
		DecisionMaker:     o.DecisionMaker,
		ProposalPDF:       o.ProposalPDF,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}

	for i, kd := range o.KeyDates {
		resp.KeyDates[i] = keyDateResponse{Label: kd.Label, Date: kd.Date}
	}

	return resp
}

func ToResponseList(opps []*opportunity.Opportunity) []Response {
	resp := make([]Response, len(opps))
	for i, o := range opps {
		resp[i] = ToResponse(o)
	}

	return resp
}
