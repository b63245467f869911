package opportunity

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/dealflow/internal/http/middleware"
	"github.com/MrJamesThe3rd/dealflow/internal/opportunity"
	"github.com/MrJamesThe3rd/dealflow/internal/validation"
)

type Handler struct {
	svc *opportunity.Service
}

func NewHandler(svc *opportunity.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Patch("/{id}/stage", h.moveStage)
}

// formValue accepts a JSON string or number and keeps it as entered text.
type formValue string

func (v *formValue) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*v = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*v = formValue(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("must be a string or a number")
	}

	*v = formValue(n.String())

	return nil
}

type createOpportunityRequest struct {
	Title             string    `json:"title"`
	Company           string    `json:"company"`
	Contact           string    `json:"contact"`
	Value             formValue `json:"value"`
	Currency          string    `json:"currency"`
	Probability       formValue `json:"probability"`
	ExpectedCloseDate string    `json:"expected_close_date"`
	Owner             string    `json:"owner"`
	Description       string    `json:"description"`
	DecisionMaker     string    `json:"decision_maker"`
	ProposalPDF       string    `json:"proposal_pdf"`
	Stage             string    `json:"stage"`
}

type errorsResponse struct {
	Errors validation.Errors `json:"errors"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// WriteValidationErrors renders field errors as 422 and counts them.
func WriteValidationErrors(w http.ResponseWriter, errs validation.Errors) {
	fields := make([]string, 0, len(errs))
	for f := range errs {
		fields = append(fields, f)
	}

	slices.Sort(fields)
	middleware.RecordValidationFailure(fields...)

	writeJSON(w, http.StatusUnprocessableEntity, errorsResponse{Errors: errs})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createOpportunityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	o, err := h.svc.Create(r.Context(), opportunity.CreateInput{
		Title:             req.Title,
		Company:           req.Company,
		Contact:           req.Contact,
		Value:             string(req.Value),
		Currency:          req.Currency,
		Probability:       string(req.Probability),
		ExpectedCloseDate: req.ExpectedCloseDate,
		Owner:             req.Owner,
		Description:       req.Description,
		DecisionMaker:     req.DecisionMaker,
		ProposalPDF:       req.ProposalPDF,
		Stage:             req.Stage,
	})

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		WriteValidationErrors(w, verrs)
		return
	}

	if err != nil {
		slog.Error("failed to create opportunity", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	middleware.RecordCreated("api", 1)
	writeJSON(w, http.StatusCreated, ToResponse(o))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := opportunity.ListFilter{}

	if s := r.URL.Query().Get("stage"); s != "" {
		stage, err := opportunity.ParseStage(s)
		if err != nil {
			http.Error(w, "unknown stage "+s, http.StatusBadRequest)
			return
		}

		filter.Stage = new(stage)
	}

	if s := r.URL.Query().Get("owner"); s != "" {
		filter.Owner = new(s)
	}

	bounds := []struct {
		param string
		dst   **time.Time
	}{
		{"close_from", &filter.CloseFrom},
		{"close_to", &filter.CloseTo},
	}

	for _, b := range bounds {
		s := r.URL.Query().Get(b.param)
		if s == "" {
			continue
		}

		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid %s %q: expected YYYY-MM-DD", b.param, s), http.StatusBadRequest)
			return
		}

		*b.dst = &t
	}

	opps, err := h.svc.List(r.Context(), filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, ToResponseList(opps))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	o, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, opportunity.ErrNotFound) {
			http.Error(w, "opportunity not found", http.StatusNotFound)
			return
		}

		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	writeJSON(w, http.StatusOK, ToResponse(o))
}

type moveStageRequest struct {
	Stage string `json:"stage"`
}

func (h *Handler) moveStage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var req moveStageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = h.svc.MoveStage(r.Context(), id, opportunity.Stage(req.Stage))

	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, opportunity.ErrInvalidStage):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, opportunity.ErrNotFound):
		http.Error(w, "opportunity not found", http.StatusNotFound)
	case errors.Is(err, opportunity.ErrTransitionNotAllowed):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		slog.Error("failed to move opportunity", "id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
