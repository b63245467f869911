package export

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/dealflow/internal/export"
	httpopp "github.com/MrJamesThe3rd/dealflow/internal/http/opportunity"
	"github.com/MrJamesThe3rd/dealflow/internal/opportunity"
)

type Handler struct {
	svc *export.Service
}

func NewHandler(svc *export.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.metadata)
	r.Post("/download", h.download)
}

type exportRequest struct {
	Stage *string `json:"stage,omitempty"`
	Owner *string `json:"owner,omitempty"`
}

type itemResponse struct {
	httpopp.Response
	File string `json:"file,omitempty"`
}

type exportMetadataResponse struct {
	Opportunities []itemResponse `json:"opportunities"`
	Summary       string         `json:"summary"`
}

func decodeFilter(r *http.Request) (opportunity.ListFilter, error) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return opportunity.ListFilter{}, err
	}

	filter := opportunity.ListFilter{Owner: req.Owner}

	if req.Stage != nil {
		stage, err := opportunity.ParseStage(*req.Stage)
		if err != nil {
			return opportunity.ListFilter{}, fmt.Errorf("%w: %q", err, *req.Stage)
		}

		filter.Stage = new(stage)
	}

	return filter, nil
}

func (h *Handler) metadata(w http.ResponseWriter, r *http.Request) {
	filter, err := decodeFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tmpDir, err := os.MkdirTemp("", "dealflow-export-*")
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer os.RemoveAll(tmpDir)

	items, err := h.svc.Export(r.Context(), filter, tmpDir)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	resp := exportMetadataResponse{
		Opportunities: make([]itemResponse, 0, len(items)),
		Summary:       h.svc.GenerateSummary(items),
	}

	for _, item := range items {
		ir := itemResponse{Response: httpopp.ToResponse(item.Opportunity)}
		if item.FilePath != "" {
			ir.File = filepath.Base(item.FilePath)
		}

		resp.Opportunities = append(resp.Opportunities, ir)
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// download streams a zip of the downloaded proposals plus a summary.txt.
func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	filter, err := decodeFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tmpDir, err := os.MkdirTemp("", "dealflow-export-*")
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer os.RemoveAll(tmpDir)

	items, err := h.svc.Export(r.Context(), filter, tmpDir)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	summary := h.svc.GenerateSummary(items)
	if err := os.WriteFile(filepath.Join(tmpDir, "summary.txt"), []byte(summary), 0o644); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=\"proposals_%s.zip\"", time.Now().Format("20060102")))

	zipWriter := zip.NewWriter(w)
	defer zipWriter.Close()

	err = filepath.Walk(tmpDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}

		relPath, _ := filepath.Rel(tmpDir, path)

		zf, err := zipWriter.Create(relPath)
		if err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(zf, f)

		return err
	})
	if err != nil {
		slog.Error("failed to create zip", "error", err)
	}
}
