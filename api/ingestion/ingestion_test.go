package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mujarchiv/rozhlasd/api/types"
	"github.com/mujarchiv/rozhlasd/internal/ingest"
)

type fakeIngester struct {
	ingested  []string
	previewed []string
	outcome   *ingest.Outcome
	err       error
}

func (f *fakeIngester) IngestURL(ctx context.Context, rawURL string) (*ingest.Outcome, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.ingested = append(f.ingested, rawURL)
	return f.outcome, nil
}

func (f *fakeIngester) Preview(ctx context.Context, rawURL string) (*ingest.Outcome, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.previewed = append(f.previewed, rawURL)
	return f.outcome, nil
}

func newEngine(ingester *fakeIngester) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	RegisterRoutes(engine.Group("/api/v1/ingest"), &types.Dependencies{Ingester: ingester})
	return engine
}

func postJSON(engine *gin.Engine, path, body string) *httptest.ResponseRecorder {
	request := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, request)
	return recorder
}

func TestPostURL_RunsIngest(t *testing.T) {
	ingester := &fakeIngester{outcome: &ingest.Outcome{
		TargetURL:  "https://www.mujrozhlas.cz/cetba/svejk",
		Discovered: 12,
		Unique:     10,
		Created:    10,
		JobsQueued: 30,
	}}
	engine := newEngine(ingester)

	recorder := postJSON(engine, "/api/v1/ingest/url", `{"url": "https://www.mujrozhlas.cz/cetba/svejk"}`)

	require.Equal(t, http.StatusOK, recorder.Code)
	var outcome ingest.Outcome
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &outcome))
	assert.Equal(t, 10, outcome.Created)
	assert.Equal(t, 30, outcome.JobsQueued)

	require.Len(t, ingester.ingested, 1)
	assert.Empty(t, ingester.previewed)
}

func TestPostURL_DryRunPreviews(t *testing.T) {
	ingester := &fakeIngester{outcome: &ingest.Outcome{Discovered: 5, Unique: 4, DryRun: true}}
	engine := newEngine(ingester)

	recorder := postJSON(engine, "/api/v1/ingest/url", `{"url": "https://www.mujrozhlas.cz/cetba/svejk", "dry_run": true}`)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Empty(t, ingester.ingested)
	require.Len(t, ingester.previewed, 1)
}

func TestPostProgram_RunsIngest(t *testing.T) {
	ingester := &fakeIngester{outcome: &ingest.Outcome{Discovered: 40, Unique: 38, Created: 38}}
	engine := newEngine(ingester)

	recorder := postJSON(engine, "/api/v1/ingest/program", `{"url": "https://www.mujrozhlas.cz/cetba-na-pokracovani"}`)

	require.Equal(t, http.StatusOK, recorder.Code)
	require.Len(t, ingester.ingested, 1)
	assert.Equal(t, "https://www.mujrozhlas.cz/cetba-na-pokracovani", ingester.ingested[0])
}

func TestPostPreview_NeverWrites(t *testing.T) {
	ingester := &fakeIngester{outcome: &ingest.Outcome{Discovered: 5, Unique: 4, DryRun: true}}
	engine := newEngine(ingester)

	recorder := postJSON(engine, "/api/v1/ingest/preview", `{"url": "https://www.mujrozhlas.cz/cetba/svejk", "dry_run": false}`)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Empty(t, ingester.ingested)
	require.Len(t, ingester.previewed, 1)

	var outcome ingest.Outcome
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &outcome))
	assert.True(t, outcome.DryRun)
}

func TestPost_RejectsMissingURL(t *testing.T) {
	engine := newEngine(&fakeIngester{})

	recorder := postJSON(engine, "/api/v1/ingest/url", `{"dry_run": true}`)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestPost_RejectsRelativeURL(t *testing.T) {
	engine := newEngine(&fakeIngester{})

	recorder := postJSON(engine, "/api/v1/ingest/url", `{"url": "cetba/svejk"}`)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestPost_UpstreamFailure(t *testing.T) {
	ingester := &fakeIngester{err: errors.New("every source failed")}
	engine := newEngine(ingester)

	recorder := postJSON(engine, "/api/v1/ingest/url", `{"url": "https://www.mujrozhlas.cz/cetba/svejk"}`)

	require.Equal(t, http.StatusBadGateway, recorder.Code)
	var body types.ErrorResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Contains(t, body.Message, "every source failed")
}
