// Package apiclient talks to the FoodiePass backend: menu scan, survey
// submission and the language and currency catalogs.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/net/publicsuffix"

	"github.com/vbonduro/foodiepass/internal/apperr"
	"github.com/vbonduro/foodiepass/internal/domain"
)

const (
	scanPath     = "/api/menus/scan"
	surveyPath   = "/api/surveys"
	languagePath = "/api/language"
	currencyPath = "/api/currency"
)

// maxResponseBytes caps how much of a response body is read. A scan with
// dozens of items and image URLs stays far below this.
const maxResponseBytes = 8 << 20

// maxErrorBodyBytes caps the error body kept for logs.
const maxErrorBodyBytes = 512

// wire types mirror the backend JSON.
type scanResponse struct {
	ScanID         string     `json:"scanId"`
	ABGroup        string     `json:"abGroup"`
	Items          []menuItem `json:"items"`
	ProcessingTime float64    `json:"processingTime"`
}

type menuItem struct {
	ID              string    `json:"id"`
	OriginalName    string    `json:"originalName"`
	TranslatedName  string    `json:"translatedName"`
	Description     *string   `json:"description"`
	ImageURL        *string   `json:"imageUrl"`
	PriceInfo       priceInfo `json:"priceInfo"`
	MatchConfidence *float64  `json:"matchConfidence"`
}

type priceInfo struct {
	OriginalAmount     float64  `json:"originalAmount"`
	OriginalCurrency   string   `json:"originalCurrency"`
	OriginalFormatted  string   `json:"originalFormatted"`
	ConvertedAmount    *float64 `json:"convertedAmount"`
	ConvertedCurrency  *string  `json:"convertedCurrency"`
	ConvertedFormatted *string  `json:"convertedFormatted"`
}

type surveyResponse struct {
	Success bool    `json:"success"`
	Message *string `json:"message"`
}

type languageResponse struct {
	LanguageName string `json:"languageName"`
}

type currencyResponse struct {
	CurrencyName string  `json:"currencyName"`
	CurrencyCode *string `json:"currencyCode"`
}

type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewClient returns a client for the backend at baseURL. Session cookies set
// by the backend are kept for the life of the client.
func NewClient(baseURL string, logger *slog.Logger) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Jar: jar},
		logger:  logger,
	}, nil
}

// Scan submits a menu photo. Deadlines come from ctx.
func (c *Client) Scan(ctx context.Context, req domain.ScanRequest) (*domain.ScanResult, error) {
	var resp scanResponse
	if _, err := c.do(ctx, http.MethodPost, scanPath, req, scanResponseSchema, &resp, nil); err != nil {
		return nil, err
	}

	result := &domain.ScanResult{
		ScanID:         resp.ScanID,
		ABGroup:        domain.ABGroup(resp.ABGroup),
		Items:          make([]domain.MenuItem, 0, len(resp.Items)),
		ProcessingTime: time.Duration(resp.ProcessingTime * float64(time.Second)),
	}
	for _, it := range resp.Items {
		result.Items = append(result.Items, domain.MenuItem{
			ID:              it.ID,
			OriginalName:    it.OriginalName,
			TranslatedName:  it.TranslatedName,
			Description:     deref(it.Description),
			ImageURL:        deref(it.ImageURL),
			MatchConfidence: it.MatchConfidence,
			Price: domain.PriceInfo{
				OriginalAmount:     it.PriceInfo.OriginalAmount,
				OriginalCurrency:   it.PriceInfo.OriginalCurrency,
				OriginalFormatted:  it.PriceInfo.OriginalFormatted,
				ConvertedAmount:    derefFloat(it.PriceInfo.ConvertedAmount),
				ConvertedCurrency:  deref(it.PriceInfo.ConvertedCurrency),
				ConvertedFormatted: deref(it.PriceInfo.ConvertedFormatted),
			},
		})
	}
	return result, nil
}

// SubmitSurvey records a confidence answer. A 409 means the backend already
// holds an answer for this scan, which counts as acknowledged.
func (c *Client) SubmitSurvey(ctx context.Context, sub domain.SurveySubmission) error {
	var resp surveyResponse
	acked, err := c.do(ctx, http.MethodPost, surveyPath, sub, surveyResponseSchema, &resp, map[int]bool{http.StatusConflict: true})
	if err != nil {
		if apperr.Is(err, apperr.KindServer) || apperr.Is(err, apperr.KindProtocol) {
			return apperr.New(apperr.KindSurveySubmit, err)
		}
		return err
	}
	if acked {
		c.logger.Info("survey already recorded by backend", "scan_id", sub.ScanID)
		return nil
	}
	if !resp.Success {
		return apperr.Newf(apperr.KindSurveySubmit, "survey rejected: %s", deref(resp.Message))
	}
	return nil
}

func (c *Client) Languages(ctx context.Context) ([]domain.Language, error) {
	var resp []languageResponse
	if _, err := c.do(ctx, http.MethodGet, languagePath, nil, languagesSchema, &resp, nil); err != nil {
		return nil, err
	}
	out := make([]domain.Language, 0, len(resp))
	for _, l := range resp {
		out = append(out, domain.Language{Name: l.LanguageName})
	}
	return out, nil
}

func (c *Client) Currencies(ctx context.Context) ([]domain.Currency, error) {
	var resp []currencyResponse
	if _, err := c.do(ctx, http.MethodGet, currencyPath, nil, currenciesSchema, &resp, nil); err != nil {
		return nil, err
	}
	out := make([]domain.Currency, 0, len(resp))
	for _, cur := range resp {
		out = append(out, domain.Currency{Name: cur.CurrencyName, Code: deref(cur.CurrencyCode)})
	}
	return out, nil
}

// newHTTPRequest creates a JSON request against the backend.
func (c *Client) newHTTPRequest(ctx context.Context, method, path string, payload []byte) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	return req, nil
}

// do performs one call and classifies every failure. A status listed in
// ackStatus reports acked=true and leaves out untouched.
func (c *Client) do(ctx context.Context, method, path string, in any, schema *jsonschema.Schema, out any, ackStatus map[int]bool) (acked bool, err error) {
	var payload []byte
	if in != nil {
		payload, err = json.Marshal(in)
		if err != nil {
			return false, fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	req, err := c.newHTTPRequest(ctx, method, path, payload)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return false, classifyTransport(ctx, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Error("failed to close response body", "path", path, "error", err)
		}
	}()

	c.logger.Debug("backend call complete",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", req.Header.Get("X-Request-ID"),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if ackStatus[resp.StatusCode] {
		return true, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return false, apperr.Server(resp.StatusCode, fmt.Errorf("backend returned status %d: %s", resp.StatusCode, errBody))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return false, classifyTransport(ctx, fmt.Errorf("failed to read response: %w", err))
	}
	return false, decodeValidated(body, schema, out)
}

// classifyTransport maps a failure with no usable response onto the taxonomy.
// Caller cancellation is returned as-is: it is not a user-facing failure.
func classifyTransport(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return apperr.New(apperr.KindTimeout, err)
	case errors.Is(ctx.Err(), context.Canceled):
		return ctx.Err()
	default:
		return apperr.New(apperr.KindNetwork, err)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefFloat(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
