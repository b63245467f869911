package forecast

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/dealflow/internal/forecast"
	httpopp "github.com/MrJamesThe3rd/dealflow/internal/http/opportunity"
	"github.com/MrJamesThe3rd/dealflow/internal/opportunity"
	"github.com/MrJamesThe3rd/dealflow/internal/report"
)

type Handler struct {
	svc *forecast.Service
}

func NewHandler(svc *forecast.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.table)
	r.Get("/board", h.board)
}

type columnResponse struct {
	Stage    opportunity.Stage  `json:"stage"`
	Label    string             `json:"label"`
	Count    int                `json:"count"`
	Total    string             `json:"total"`
	Weighted string             `json:"weighted"`
	Members  []httpopp.Response `json:"opportunities"`
}

type rowResponse struct {
	httpopp.Response
	DaysUntilClose int `json:"days_until_close"`
}

type summaryResponse struct {
	Count         int    `json:"count"`
	Open          int    `json:"open"`
	OpenValue     string `json:"open_value"`
	WeightedValue string `json:"weighted_value"`
	WonValue      string `json:"won_value"`
	LostValue     string `json:"lost_value"`
	WinRate       string `json:"win_rate"`
}

type tableResponse struct {
	Rows        []rowResponse   `json:"rows"`
	Summary     summaryResponse `json:"summary"`
	GeneratedAt time.Time       `json:"generated_at"`
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) board(w http.ResponseWriter, r *http.Request) {
	cols, err := h.svc.Board(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := make([]columnResponse, len(cols))
	for i, c := range cols {
		resp[i] = columnResponse{
			Stage:    c.Stage,
			Label:    c.Stage.Label(),
			Count:    len(c.Members),
			Total:    report.Money(c.Total),
			Weighted: report.Money(c.Weighted),
			Members:  httpopp.ToResponseList(c.Members),
		}
	}

	writeJSON(w, resp)
}

// table serves the forecast as JSON, or as a rendered table when ?format= is set.
func (h *Handler) table(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.Report(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if f := r.URL.Query().Get("format"); f != "" && f != "json" {
		format, err := report.ParseFormat(f)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", format.ContentType())

		if err := report.Forecast(w, rep, format); err != nil {
			slog.Error("failed to render forecast", "format", format, "error", err)
		}

		return
	}

	resp := tableResponse{
		Rows: make([]rowResponse, len(rep.Rows)),
		Summary: summaryResponse{
			Count:         rep.Summary.Count,
			Open:          rep.Summary.Open,
			OpenValue:     report.Money(rep.Summary.OpenValue),
			WeightedValue: report.Money(rep.Summary.WeightedValue),
			WonValue:      report.Money(rep.Summary.WonValue),
			LostValue:     report.Money(rep.Summary.LostValue),
			WinRate:       rep.Summary.WinRate.StringFixed(1),
		},
		GeneratedAt: rep.GeneratedAt,
	}

	for i, row := range rep.Rows {
		resp.Rows[i] = rowResponse{
			Response:       httpopp.ToResponse(row.Opportunity),
			DaysUntilClose: row.DaysUntilClose,
		}
	}

	writeJSON(w, resp)
}
