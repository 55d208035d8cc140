package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/caselaw-cli/internal/config"
	"github.com/sells-group/caselaw-cli/internal/resilience"
)

// fakeSource is a stub case-law API for adapter tests.
type fakeSource struct {
	mux *http.ServeMux

	fetchCalls int
}

func newFakeSource(t *testing.T) (*fakeSource, *httptest.Server) {
	t.Helper()
	fs := &fakeSource{mux: http.NewServeMux()}

	fs.mux.HandleFunc("POST /api/login", func(w http.ResponseWriter, r *http.Request) {
		var creds struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds.Username != "alice" || creds.Password != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, map[string]string{"token": "tok-123"})
	})

	fs.mux.HandleFunc("GET /api/search", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("q") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]any{
			"results": []map[string]any{
				{"id": "case_001", "title": "State v. One", "year": 2024, "court": "High Court"},
				{"id": "case_002", "title": "State v. Two", "year": 2023, "court": "High Court"},
			},
		})
	})

	fs.mux.HandleFunc("GET /api/cases/{id}", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fs.fetchCalls++
		switch r.PathValue("id") {
		case "case_001":
			writeJSON(w, map[string]any{
				"id": "case_001", "title": "State v. One",
				"citation": "2024 HC 1", "court": "High Court",
				"date": "2024-02-10", "year": 2024,
				"judges": []string{"Justice A"},
				"text":   "Plain text body.",
			})
		case "case_html":
			writeJSON(w, map[string]any{
				"id": "case_html", "title": "State v. Markup",
				"body_html": "<html><body><script>x()</script><h1>Judgment</h1><p>First para.</p><p>Second para.</p></body></html>",
			})
		case "case_flaky":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	fs.mux.HandleFunc("GET /api/cases/year/{year}", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, map[string]any{
			"cases": []map[string]string{{"id": "case_2023_001"}, {"id": "case_2023_002"}},
		})
	})

	srv := httptest.NewServer(fs.mux)
	t.Cleanup(srv.Close)
	return fs, srv
}

func authorized(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer tok-123"
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func testRESTAPI(t *testing.T, baseURL string) *RESTAPI {
	t.Helper()
	a, err := NewRESTAPI(config.AdapterConfig{
		BaseURL:        baseURL,
		Username:       "alice",
		Password:       "s3cret",
		RequestsPerSec: 1000, // keep tests fast
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestRESTAPIRequiresBaseURL(t *testing.T) {
	t.Parallel()
	_, err := NewRESTAPI(config.AdapterConfig{})
	require.Error(t, err)
}

func TestRESTAPIAuthenticate(t *testing.T) {
	t.Parallel()
	_, srv := newFakeSource(t)
	a := testRESTAPI(t, srv.URL)

	sess, err := a.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "restapi", sess.Adapter())
}

func TestRESTAPIAuthenticateBadCredentials(t *testing.T) {
	t.Parallel()
	_, srv := newFakeSource(t)
	a, err := NewRESTAPI(config.AdapterConfig{
		BaseURL:        srv.URL,
		Username:       "alice",
		Password:       "wrong",
		RequestsPerSec: 1000,
	})
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Authenticate(context.Background())
	require.Error(t, err)
	assert.True(t, resilience.IsAuth(err))
}

func TestRESTAPISearch(t *testing.T) {
	t.Parallel()
	_, srv := newFakeSource(t)
	a := testRESTAPI(t, srv.URL)
	sess, err := a.Authenticate(context.Background())
	require.NoError(t, err)

	results, err := a.Search(context.Background(), sess, "appeal", SearchOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "case_001", results[0].ID)
	assert.Equal(t, "State v. One", results[0].Title)
}

func TestRESTAPISearchWithoutSession(t *testing.T) {
	t.Parallel()
	_, srv := newFakeSource(t)
	a := testRESTAPI(t, srv.URL)

	_, err := a.Search(context.Background(), nil, "appeal", SearchOptions{})
	require.Error(t, err)
}

func TestRESTAPIFetchCase(t *testing.T) {
	t.Parallel()
	_, srv := newFakeSource(t)
	a := testRESTAPI(t, srv.URL)
	sess, err := a.Authenticate(context.Background())
	require.NoError(t, err)

	rec, err := a.FetchCase(context.Background(), sess, "case_001")
	require.NoError(t, err)
	assert.Equal(t, "case_001", rec.ID)
	assert.Equal(t, "2024 HC 1", rec.Citation)
	assert.Equal(t, "Plain text body.", rec.Text)
	assert.Equal(t, "restapi", rec.Source)
}

func TestRESTAPIFetchCaseExtractsHTML(t *testing.T) {
	t.Parallel()
	_, srv := newFakeSource(t)
	a := testRESTAPI(t, srv.URL)
	sess, err := a.Authenticate(context.Background())
	require.NoError(t, err)

	rec, err := a.FetchCase(context.Background(), sess, "case_html")
	require.NoError(t, err)
	assert.Equal(t, "Judgment\n\nFirst para.\n\nSecond para.", rec.Text)
	assert.NotContains(t, rec.Text, "x()")
}

func TestRESTAPIFetchCaseNotFound(t *testing.T) {
	t.Parallel()
	_, srv := newFakeSource(t)
	a := testRESTAPI(t, srv.URL)
	sess, err := a.Authenticate(context.Background())
	require.NoError(t, err)

	_, err = a.FetchCase(context.Background(), sess, "case_nope")
	require.Error(t, err)
	assert.True(t, resilience.IsNotFound(err))
}

func TestRESTAPIFetchCaseTransientStatus(t *testing.T) {
	t.Parallel()
	_, srv := newFakeSource(t)
	a := testRESTAPI(t, srv.URL)
	sess, err := a.Authenticate(context.Background())
	require.NoError(t, err)

	_, err = a.FetchCase(context.Background(), sess, "case_flaky")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestRESTAPIExpiredSession(t *testing.T) {
	t.Parallel()
	_, srv := newFakeSource(t)
	a := testRESTAPI(t, srv.URL)
	stale := restSession{token: "expired"}
	_, err := a.Search(context.Background(), stale, "appeal", SearchOptions{})
	require.ErrorIs(t, err, resilience.ErrSessionExpired)
}

func TestRESTAPIEnumerateByYear(t *testing.T) {
	t.Parallel()
	_, srv := newFakeSource(t)
	a := testRESTAPI(t, srv.URL)
	sess, err := a.Authenticate(context.Background())
	require.NoError(t, err)

	ids, err := a.EnumerateByYear(context.Background(), sess, 2023)
	require.NoError(t, err)
	assert.Equal(t, []string{"case_2023_001", "case_2023_002"}, ids)
}

func TestRESTAPICircuitOpensOnRepeatedOutage(t *testing.T) {
	t.Parallel()
	fs, srv := newFakeSource(t)
	a := testRESTAPI(t, srv.URL)
	sess, err := a.Authenticate(context.Background())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := a.FetchCase(context.Background(), sess, "case_flaky")
		require.Error(t, err)
	}

	// The breaker now rejects without touching the source.
	assert.Equal(t, resilience.CircuitOpen, a.breaker.State())

	_, err = a.FetchCase(context.Background(), sess, "case_001")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
	assert.Equal(t, 5, fs.fetchCalls, "rejected call must not reach the source")
}

func TestHTMLToTextFallback(t *testing.T) {
	t.Parallel()
	text, err := htmlToText("<html><body>bare text only</body></html>")
	require.NoError(t, err)
	assert.Equal(t, "bare text only", text)
}
