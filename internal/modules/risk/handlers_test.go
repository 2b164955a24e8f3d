package risk

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfolio/riskapi/internal/dataload"
)

func newTestRouter(t *testing.T, svc *Service) http.Handler {
	t.Helper()
	r := chi.NewRouter()
	NewHandler(svc, zerolog.Nop()).RegisterRoutes(r)
	return r
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func TestHandleContributions(t *testing.T) {
	router := newTestRouter(t, newTestService(t))

	rec := postJSON(t, router, "/risk/contributions", map[string]interface{}{
		"portfolio": testPortfolio(),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, true, envelope["success"])
	assert.NotEmpty(t, envelope["analysis_id"])

	data, ok := envelope["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, data, "pctr")
	assert.Contains(t, data, "portfolio_vol_annualized")
}

func TestHandleContributionsRequiresPortfolio(t *testing.T) {
	router := newTestRouter(t, newTestService(t))

	rec := postJSON(t, router, "/risk/contributions", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, false, envelope["success"])
	assert.NotEmpty(t, envelope["error"])
}

func TestHandlersReturn503BeforeFirstLoad(t *testing.T) {
	loader := dataload.NewLoader(t.TempDir(), nil, zerolog.Nop())
	provider := dataload.NewProvider(loader, zerolog.Nop())
	svc := NewService(provider, ServiceOptions{}, zerolog.Nop())
	router := newTestRouter(t, svc)

	rec := postJSON(t, router, "/risk/contributions", map[string]interface{}{
		"portfolio": testPortfolio(),
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleTrackingErrorRequiresBenchmark(t *testing.T) {
	router := newTestRouter(t, newTestService(t))

	rec := postJSON(t, router, "/risk/tracking-error", map[string]interface{}{
		"portfolio": testPortfolio(),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleVaRCVaRRejectsBadConfidence(t *testing.T) {
	router := newTestRouter(t, newTestService(t))

	rec := postJSON(t, router, "/risk/var-cvar", map[string]interface{}{
		"portfolio":        testPortfolio(),
		"confidence_level": 1.5,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleVaRCVaRDefaultsConfidence(t *testing.T) {
	router := newTestRouter(t, newTestService(t))

	rec := postJSON(t, router, "/risk/var-cvar", map[string]interface{}{
		"portfolio": testPortfolio(),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeEnvelope(t, rec)["data"].(map[string]interface{})
	assert.EqualValues(t, 60, data["observations"])
}

func TestHandleUnknownAssetsMapTo400(t *testing.T) {
	router := newTestRouter(t, newTestService(t))

	rec := postJSON(t, router, "/risk/performance", map[string]interface{}{
		"portfolio": map[string]float64{"NOT AN ASSET": 1},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleFullAnalysis(t *testing.T) {
	router := newTestRouter(t, newTestService(t))

	rec := postJSON(t, router, "/risk/full-analysis", map[string]interface{}{
		"portfolio": testPortfolio(),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeEnvelope(t, rec)["data"].(map[string]interface{})
	assert.Contains(t, data, "contributions")
	assert.Contains(t, data, "diversification")
	assert.Contains(t, data, "performance")
}
