package http_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MrJamesThe3rd/dealflow/internal/export"
	"github.com/MrJamesThe3rd/dealflow/internal/forecast"
	apphttp "github.com/MrJamesThe3rd/dealflow/internal/http"
	httpexport "github.com/MrJamesThe3rd/dealflow/internal/http/export"
	httpforecast "github.com/MrJamesThe3rd/dealflow/internal/http/forecast"
	"github.com/MrJamesThe3rd/dealflow/internal/http/importcsv"
	httpopp "github.com/MrJamesThe3rd/dealflow/internal/http/opportunity"
	"github.com/MrJamesThe3rd/dealflow/internal/importer"
	"github.com/MrJamesThe3rd/dealflow/internal/opportunity"
	"github.com/MrJamesThe3rd/dealflow/internal/opportunity/store"
)

func newRouter() http.Handler {
	opps := opportunity.NewService(store.New())

	return apphttp.New(
		[]string{"https://app.example"},
		httpopp.NewHandler(opps),
		httpforecast.NewHandler(forecast.NewService(opps)),
		importcsv.NewHandler(importer.NewService(opps), 0),
		httpexport.NewHandler(export.NewService(opps, "")),
	)
}

func TestRouter(t *testing.T) {
	router := newRouter()

	type testCase struct {
		name        string
		method      string
		path        string
		body        string
		contentType string
		wantStatus  int
		wantBody    string
	}

	tests := []testCase{
		{name: "Health", method: http.MethodGet, path: "/healthz", wantStatus: http.StatusOK, wantBody: "ok"},
		{name: "Metrics", method: http.MethodGet, path: "/metrics", wantStatus: http.StatusOK, wantBody: "http_requests_total"},
		{name: "EmptyList", method: http.MethodGet, path: "/api/v1/opportunities", wantStatus: http.StatusOK, wantBody: "[]"},
		{
			name:        "CreateRequiresJSON",
			method:      http.MethodPost,
			path:        "/api/v1/opportunities",
			body:        "title=x",
			contentType: "application/x-www-form-urlencoded",
			wantStatus:  http.StatusUnsupportedMediaType,
		},
		{
			name:        "Create",
			method:      http.MethodPost,
			path:        "/api/v1/opportunities",
			body:        `{"title":"A","company":"B","value":1,"expected_close_date":"2026-11-01"}`,
			contentType: "application/json",
			wantStatus:  http.StatusCreated,
		},
		{name: "Board", method: http.MethodGet, path: "/api/v1/forecast/board", wantStatus: http.StatusOK, wantBody: `"stage":"qualified"`},
		{name: "Unknown", method: http.MethodGet, path: "/api/v1/nope", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)

			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestRouter_CORS(t *testing.T) {
	router := newRouter()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/opportunities", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
