package apiclient

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/foodiepass/internal/apperr"
	"github.com/vbonduro/foodiepass/internal/domain"
)

const scanJSON = `{
  "scanId": "scan-123",
  "abGroup": "TREATMENT",
  "processingTime": 4.2,
  "items": [
    {
      "id": "1",
      "originalName": "김치찌개",
      "translatedName": "Kimchi stew",
      "description": "Spicy stew",
      "imageUrl": "https://img.example/kimchi.jpg",
      "matchConfidence": 0.93,
      "priceInfo": {
        "originalAmount": 9000,
        "originalCurrency": "KRW",
        "originalFormatted": "₩9,000",
        "convertedAmount": 6.5,
        "convertedCurrency": "USD",
        "convertedFormatted": "$6.50"
      }
    },
    {
      "id": "2",
      "originalName": "공기밥",
      "translatedName": "Rice",
      "description": null,
      "priceInfo": {
        "originalAmount": 1000,
        "originalCurrency": "KRW",
        "originalFormatted": "₩1,000"
      }
    }
  ]
}`

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	c, err := NewClient(server.URL+"/", slog.Default())
	require.NoError(t, err)
	return c, server
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestScan(t *testing.T) {
	var got domain.ScanRequest
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, scanPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, scanJSON)
	})

	result, err := c.Scan(context.Background(), domain.ScanRequest{
		Base64EncodedImage: "aGVsbG8=",
		UserLanguageName:   "Korean",
		UserCurrencyName:   "South Korean won",
	})
	require.NoError(t, err)

	assert.Equal(t, "aGVsbG8=", got.Base64EncodedImage)
	assert.Equal(t, "Korean", got.UserLanguageName)
	assert.Empty(t, got.OriginLanguageName)

	assert.Equal(t, "scan-123", result.ScanID)
	assert.Equal(t, domain.GroupTreatment, result.ABGroup)
	assert.Equal(t, 4200*time.Millisecond, result.ProcessingTime)
	require.Len(t, result.Items, 2)

	first := result.Items[0]
	assert.Equal(t, "Kimchi stew", first.TranslatedName)
	assert.Equal(t, "https://img.example/kimchi.jpg", first.ImageURL)
	assert.Equal(t, "$6.50", first.Price.ConvertedFormatted)
	require.NotNil(t, first.MatchConfidence)
	assert.InDelta(t, 0.93, *first.MatchConfidence, 1e-9)

	second := result.Items[1]
	assert.Empty(t, second.Description)
	assert.Empty(t, second.ImageURL)
	assert.False(t, second.Price.HasConversion())
	assert.Equal(t, "₩1,000", second.Price.OriginalFormatted)
}

func TestScanOmitsEmptyOriginFields(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		assert.NotContains(t, raw, "originLanguageName")
		assert.NotContains(t, raw, "originCurrencyName")
		writeJSON(w, http.StatusOK, `{"scanId":"s","abGroup":"CONTROL","items":[],"processingTime":1}`)
	})

	result, err := c.Scan(context.Background(), domain.ScanRequest{Base64EncodedImage: "x", UserLanguageName: "Korean", UserCurrencyName: "KRW"})
	require.NoError(t, err)
	assert.Empty(t, result.Items)
}

func TestScanUnknownGroupIsNotAProtocolError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"scanId":"s","abGroup":"EXPERIMENTAL","items":[],"processingTime":1}`)
	})

	result, err := c.Scan(context.Background(), domain.ScanRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.ABGroup("EXPERIMENTAL"), result.ABGroup)
}

func TestScanFailureClassification(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantKind   apperr.Kind
		wantStatus int
	}{
		{name: "server error", status: 500, body: `{"error":"Internal Server Error","message":"NullPointerException at Foo"}`, wantKind: apperr.KindServer, wantStatus: 500},
		{name: "bad request", status: 400, body: `{"message":"bad image"}`, wantKind: apperr.KindServer, wantStatus: 400},
		{name: "not json", status: 200, body: `<html>gateway</html>`, wantKind: apperr.KindProtocol},
		{name: "missing scanId", status: 200, body: `{"abGroup":"CONTROL","items":[],"processingTime":1}`, wantKind: apperr.KindProtocol},
		{name: "items not array", status: 200, body: `{"scanId":"s","abGroup":"CONTROL","items":{},"processingTime":1}`, wantKind: apperr.KindProtocol},
		{name: "item without price", status: 200, body: `{"scanId":"s","abGroup":"CONTROL","items":[{"id":"1","originalName":"a","translatedName":"b"}],"processingTime":1}`, wantKind: apperr.KindProtocol},
		{name: "empty body", status: 200, body: ``, wantKind: apperr.KindProtocol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})

			result, err := c.Scan(context.Background(), domain.ScanRequest{})
			require.Error(t, err)
			assert.Nil(t, result)
			assert.Equal(t, tt.wantKind, apperr.KindOf(err))
			assert.Equal(t, tt.wantStatus, apperr.StatusOf(err))
		})
	}
}

func TestScanNetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c, err := NewClient(url, slog.Default())
	require.NoError(t, err)

	_, err = c.Scan(context.Background(), domain.ScanRequest{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindNetwork, apperr.KindOf(err))
}

func TestScanDeadlineIsTimeout(t *testing.T) {
	release := make(chan struct{})
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Scan(ctx, domain.ScanRequest{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindTimeout, apperr.KindOf(err))
}

func TestScanCancelledIsNotClassified(t *testing.T) {
	release := make(chan struct{})
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.Scan(ctx, domain.ScanRequest{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, apperr.KindUnknown, apperr.KindOf(err))
}

func TestSessionCookieIsReplayed(t *testing.T) {
	calls := 0
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "abc", Path: "/"})
		} else {
			cookie, err := r.Cookie("JSESSIONID")
			require.NoError(t, err)
			assert.Equal(t, "abc", cookie.Value)
		}
		writeJSON(w, http.StatusOK, `[{"languageName":"Korean"}]`)
	})

	_, err := c.Languages(context.Background())
	require.NoError(t, err)
	_, err = c.Languages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestSubmitSurvey(t *testing.T) {
	var got domain.SurveySubmission
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, surveyPath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, `{"success":true,"message":"Survey response recorded successfully"}`)
	})

	err := c.SubmitSurvey(context.Background(), domain.SurveySubmission{ScanID: "scan-123", HasConfidence: false})
	require.NoError(t, err)
	assert.Equal(t, domain.SurveySubmission{ScanID: "scan-123", HasConfidence: false}, got)
}

func TestSubmitSurveyFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
	}{
		{name: "success false", status: 200, body: `{"success":false,"message":"nope"}`, wantErr: true},
		{name: "scan not found", status: 404, body: `{"success":false,"message":"Scan not found"}`, wantErr: true},
		{name: "server error", status: 500, body: `oops`, wantErr: true},
		{name: "malformed", status: 200, body: `{"message":"missing success"}`, wantErr: true},
		{name: "duplicate counts as recorded", status: 409, body: `{"success":false,"message":"Duplicate"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})

			err := c.SubmitSurvey(context.Background(), domain.SurveySubmission{ScanID: "s"})
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, apperr.KindSurveySubmit, apperr.KindOf(err))
		})
	}
}

func TestCatalogs(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case languagePath:
			writeJSON(w, http.StatusOK, `[{"languageName":"Korean"},{"languageName":"English"}]`)
		case currencyPath:
			writeJSON(w, http.StatusOK, `[{"currencyName":"South Korean won","currencyCode":"KRW"},{"currencyName":"Euro"}]`)
		default:
			http.NotFound(w, r)
		}
	})

	langs, err := c.Languages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.Language{{Name: "Korean"}, {Name: "English"}}, langs)

	curs, err := c.Currencies(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.Currency{{Name: "South Korean won", Code: "KRW"}, {Name: "Euro"}}, curs)
}

func TestCatalogSchemaViolation(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"languages":["Korean"]}`)
	})

	_, err := c.Languages(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperr.KindProtocol, apperr.KindOf(err))
}
