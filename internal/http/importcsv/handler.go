package importcsv

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/dealflow/internal/http/middleware"
	httpopp "github.com/MrJamesThe3rd/dealflow/internal/http/opportunity"
	"github.com/MrJamesThe3rd/dealflow/internal/importer"
	"github.com/MrJamesThe3rd/dealflow/internal/validation"
)

const defaultMaxUpload = 10 << 20

type Handler struct {
	importSvc *importer.Service
	maxUpload int64
}

func NewHandler(importSvc *importer.Service, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}

	return &Handler{
		importSvc: importSvc,
		maxUpload: maxUpload,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.importCSV)
}

type rejectedRow struct {
	Line   int               `json:"line"`
	Title  string            `json:"title,omitempty"`
	Errors validation.Errors `json:"errors"`
}

type importResponse struct {
	Imported      int                `json:"imported"`
	Opportunities []httpopp.Response `json:"opportunities"`
	Rejected      []rejectedRow      `json:"rejected"`
}

func (h *Handler) importCSV(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		http.Error(w, "failed to parse form: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	result, err := h.importSvc.Import(r.Context(), file)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, importer.ErrNoHeader) {
			status = http.StatusBadRequest
		}

		http.Error(w, err.Error(), status)

		return
	}

	resp := importResponse{
		Imported:      len(result.Created),
		Opportunities: httpopp.ToResponseList(result.Created),
		Rejected:      make([]rejectedRow, 0, len(result.Rejected)),
	}

	for _, rej := range result.Rejected {
		resp.Rejected = append(resp.Rejected, rejectedRow{Line: rej.Line, Title: rej.Title, Errors: rej.Errors})

		for field := range rej.Errors {
			middleware.RecordValidationFailure(field)
		}
	}

	middleware.RecordCreated("import", len(result.Created))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
