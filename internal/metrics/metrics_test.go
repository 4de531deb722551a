package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanCounters(t *testing.T) {
	m := New()

	m.ScanStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inFlight))
	m.ScanFinished("succeeded", 4*time.Second)
	m.ScanStarted()
	m.ScanFinished("timed_out", 150*time.Second)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.inFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scans.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scans.WithLabelValues("timed_out")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.scanDuration))
}

func TestLabelledCounters(t *testing.T) {
	m := New()
	m.UploadRejected("too_large")
	m.UploadRejected("too_large")
	m.ResultRendered("TREATMENT", "visual")
	m.SurveySubmitted("acknowledged")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.rejections.WithLabelValues("too_large")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.policies.WithLabelValues("TREATMENT", "visual")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.surveys.WithLabelValues("acknowledged")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.SurveySubmitted("failed")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `foodiepass_survey_submissions_total{outcome="failed"} 1`))
	assert.Contains(t, string(body), "go_goroutines")
}
