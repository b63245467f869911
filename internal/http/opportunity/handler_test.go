package opportunity_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpopp "github.com/MrJamesThe3rd/dealflow/internal/http/opportunity"
	"github.com/MrJamesThe3rd/dealflow/internal/opportunity"
	"github.com/MrJamesThe3rd/dealflow/internal/opportunity/store"
)

var fixedNow = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

func newServer(t *testing.T, opts ...opportunity.Option) (*httptest.Server, *opportunity.Service) {
	t.Helper()

	opts = append([]opportunity.Option{opportunity.WithClock(func() time.Time { return fixedNow })}, opts...)
	svc := opportunity.NewService(store.New(), opts...)

	router := chi.NewRouter()
	router.Route("/opportunities", httpopp.NewHandler(svc).Routes)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return srv, svc
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	return resp
}

func TestHandler_Create(t *testing.T) {
	type testCase struct {
		name       string
		body       string
		wantStatus int
		verify     func(t *testing.T, resp *http.Response)
	}

	tests := []testCase{
		{
			name:       "ValidNumericValue",
			body:       `{"title":"Website Redesign","company":"Acme Corp","value":45000,"probability":75,"expected_close_date":"2026-11-15","stage":"won"}`,
			wantStatus: http.StatusCreated,
			verify: func(t *testing.T, resp *http.Response) {
				var got httpopp.Response
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))

				assert.NotEqual(t, uuid.Nil, got.ID)
				assert.Equal(t, opportunity.StageQualified, got.Stage)
				assert.Equal(t, "45000", got.Value)
				assert.Equal(t, "33750.00", got.WeightedValue)
				assert.Equal(t, "2026-11-15", got.ExpectedCloseDate)
				assert.Equal(t, "USD", got.Currency)
				require.Len(t, got.KeyDates, 1)
				assert.Equal(t, opportunity.KeyDateCreated, got.KeyDates[0].Label)
			},
		},
		{
			name:       "StringValueDefaultsProbability",
			body:       `{"title":"Support","company":"Initech","value":"24000.50","expected_close_date":"2026-12-31"}`,
			wantStatus: http.StatusCreated,
			verify: func(t *testing.T, resp *http.Response) {
				var got httpopp.Response
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
				assert.Equal(t, 25, got.Probability)
				assert.Equal(t, "24000.5", got.Value)
			},
		},
		{
			name:       "ValidationErrors",
			body:       `{"title":"","company":"Acme","value":"abc","expected_close_date":"soon"}`,
			wantStatus: http.StatusUnprocessableEntity,
			verify: func(t *testing.T, resp *http.Response) {
				var got struct {
					Errors map[string]string `json:"errors"`
				}
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))

				assert.Contains(t, got.Errors, opportunity.FieldTitle)
				assert.Contains(t, got.Errors, opportunity.FieldValue)
				assert.Contains(t, got.Errors, opportunity.FieldExpectedCloseDate)
				assert.NotContains(t, got.Errors, opportunity.FieldCompany)
			},
		},
		{
			name:       "MalformedJSON",
			body:       `{"title":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "ValueOfWrongType",
			body:       `{"title":"x","value":{"amount":1}}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newServer(t)

			resp := do(t, http.MethodPost, srv.URL+"/opportunities", tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			if tt.verify != nil {
				tt.verify(t, resp)
			}
		})
	}
}

func TestHandler_ValidationFailureStoresNothing(t *testing.T) {
	srv, svc := newServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/opportunities", `{"title":"","company":"","value":"","expected_close_date":""}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	n, err := svc.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHandler_ListAndGet(t *testing.T) {
	srv, svc := newServer(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, opportunity.CreateInput{Title: "A", Company: "Acme", Value: "100", ExpectedCloseDate: "2026-11-01", Owner: "Sarah"})
	require.NoError(t, err)
	second, err := svc.Create(ctx, opportunity.CreateInput{Title: "B", Company: "Globex", Value: "200", ExpectedCloseDate: "2026-11-02", Owner: "Tom"})
	require.NoError(t, err)
	require.NoError(t, svc.MoveStage(ctx, second.ID, opportunity.StageProposal))

	var all []httpopp.Response
	resp := do(t, http.MethodGet, srv.URL+"/opportunities", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&all))
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)
	assert.Equal(t, first.ID, all[1].ID)

	var byStage []httpopp.Response
	resp = do(t, http.MethodGet, srv.URL+"/opportunities?stage=proposal", "")
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&byStage))
	require.Len(t, byStage, 1)
	assert.Equal(t, second.ID, byStage[0].ID)

	var byOwner []httpopp.Response
	resp = do(t, http.MethodGet, srv.URL+"/opportunities?owner=sarah", "")
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&byOwner))
	require.Len(t, byOwner, 1)
	assert.Equal(t, first.ID, byOwner[0].ID)

	var byClose []httpopp.Response
	resp = do(t, http.MethodGet, srv.URL+"/opportunities?close_from=2026-11-02&close_to=2026-11-30", "")
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&byClose))
	require.Len(t, byClose, 1)
	assert.Equal(t, second.ID, byClose[0].ID)

	resp = do(t, http.MethodGet, srv.URL+"/opportunities?stage=archived", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var one httpopp.Response
	resp = do(t, http.MethodGet, srv.URL+"/opportunities/"+first.ID.String(), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&one))
	assert.Equal(t, "A", one.Title)

	resp = do(t, http.MethodGet, srv.URL+"/opportunities/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/opportunities/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_ListFilters(t *testing.T) {
	srv, svc := newServer(t)
	ctx := context.Background()

	inputs := []opportunity.CreateInput{
		{Title: "Early", Company: "Acme", Value: "100", ExpectedCloseDate: "2026-10-15", Owner: "Sarah"},
		{Title: "Mid", Company: "Globex", Value: "200", ExpectedCloseDate: "2026-11-10", Owner: "Sarah"},
		{Title: "Late", Company: "Initech", Value: "300", ExpectedCloseDate: "2026-12-20", Owner: "Sarah"},
		{Title: "Other", Company: "Umbrella", Value: "400", ExpectedCloseDate: "2026-11-12", Owner: "Tom"},
	}

	for _, in := range inputs {
		o, err := svc.Create(ctx, in)
		require.NoError(t, err)

		if in.Title != "Early" {
			require.NoError(t, svc.MoveStage(ctx, o.ID, opportunity.StageNegotiation))
		}
	}

	type testCase struct {
		name       string
		query      string
		wantStatus int
		wantTitles []string
	}

	tests := []testCase{
		{
			name:       "StageOwnerAndWindow",
			query:      "stage=negotiation&owner=sarah&close_from=2026-11-01&close_to=2026-11-30",
			wantStatus: http.StatusOK,
			wantTitles: []string{"Mid"},
		},
		{
			name:       "InclusiveBounds",
			query:      "close_from=2026-10-15&close_to=2026-11-10",
			wantStatus: http.StatusOK,
			wantTitles: []string{"Mid", "Early"},
		},
		{
			name:       "OpenUpperBound",
			query:      "owner=sarah&close_from=2026-11-11",
			wantStatus: http.StatusOK,
			wantTitles: []string{"Late"},
		},
		{name: "MalformedCloseFrom", query: "close_from=not-a-date", wantStatus: http.StatusBadRequest},
		{name: "MalformedCloseTo", query: "close_to=31/12/2026", wantStatus: http.StatusBadRequest},
		{name: "MalformedDateWithValidStage", query: "stage=proposal&close_to=2026-13-01", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, http.MethodGet, srv.URL+"/opportunities?"+tt.query, "")
			require.Equal(t, tt.wantStatus, resp.StatusCode)

			if tt.wantStatus != http.StatusOK {
				return
			}

			var got []httpopp.Response
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))

			titles := make([]string, len(got))
			for i, o := range got {
				titles[i] = o.Title
			}

			assert.Equal(t, tt.wantTitles, titles)
		})
	}
}

func TestHandler_MoveStage(t *testing.T) {
	type testCase struct {
		name       string
		strict     bool
		id         func(existing uuid.UUID) string
		body       string
		wantStatus int
		wantStage  opportunity.Stage
	}

	existing := func(id uuid.UUID) string { return id.String() }

	tests := []testCase{
		{name: "Moved", id: existing, body: `{"stage":"won"}`, wantStatus: http.StatusNoContent, wantStage: opportunity.StageWon},
		{name: "UnknownStage", id: existing, body: `{"stage":"archived"}`, wantStatus: http.StatusBadRequest, wantStage: opportunity.StageQualified},
		{
			name:       "UnknownID",
			id:         func(uuid.UUID) string { return uuid.NewString() },
			body:       `{"stage":"won"}`,
			wantStatus: http.StatusNotFound,
			wantStage:  opportunity.StageQualified,
		},
		{name: "StrictRefusesSkip", strict: true, id: existing, body: `{"stage":"closing"}`, wantStatus: http.StatusConflict, wantStage: opportunity.StageQualified},
		{name: "StrictAllowsNext", strict: true, id: existing, body: `{"stage":"proposal"}`, wantStatus: http.StatusNoContent, wantStage: opportunity.StageProposal},
		{name: "BadBody", id: existing, body: `nope`, wantStatus: http.StatusBadRequest, wantStage: opportunity.StageQualified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []opportunity.Option
			if tt.strict {
				opts = append(opts, opportunity.WithTransitionPolicy(opportunity.Strict))
			}

			srv, svc := newServer(t, opts...)
			ctx := context.Background()

			o, err := svc.Create(ctx, opportunity.CreateInput{Title: "A", Company: "Acme", Value: "100", ExpectedCloseDate: "2026-11-01"})
			require.NoError(t, err)

			resp := do(t, http.MethodPatch, srv.URL+"/opportunities/"+tt.id(o.ID)+"/stage", tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			got, err := svc.Get(ctx, o.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStage, got.Stage)
			assert.Equal(t, 25, got.Probability)
		})
	}
}
