package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Provider fetches daily closing prices for a symbol over a date range.
// Implementations must be safe for concurrent use.
type Provider interface {
	FetchDaily(ctx context.Context, symbol string, start, end time.Time) ([]DailyBar, error)
}

type DailyBar struct {
	Date     time.Time
	Close    decimal.Decimal
	Sector   string
	Industry string
}

// HTTPProvider talks to a JSON quote API exposing
// GET /daily?symbol=...&start=YYYY-MM-DD&end=YYYY-MM-DD.
type HTTPProvider struct {
	host       string
	httpClient *http.Client
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Body)
}

func NewHTTPProvider(httpClient *http.Client, host string) *HTTPProvider {
	host = strings.TrimRight(host, "/")
	return &HTTPProvider{
		host:       host,
		httpClient: httpClient,
	}
}

type dailyBarPayload struct {
	Date     string  `json:"date"`
	Close    float64 `json:"close"`
	Sector   string  `json:"sector,omitempty"`
	Industry string  `json:"industry,omitempty"`
}

func (p *HTTPProvider) FetchDaily(ctx context.Context, symbol string, start, end time.Time) ([]DailyBar, error) {
	if strings.TrimSpace(symbol) == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	query := url.Values{}
	query.Set("symbol", strings.TrimSpace(symbol))
	query.Set("start", start.Format("2006-01-02"))
	query.Set("end", end.Format("2006-01-02"))
	body, err := p.doRequest(ctx, "/daily", query)
	if err != nil {
		return nil, err
	}
	var payload []dailyBarPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode daily bars: %w", err)
	}
	out := make([]DailyBar, 0, len(payload))
	for _, row := range payload {
		day, err := time.Parse("2006-01-02", row.Date)
		if err != nil {
			continue
		}
		out = append(out, DailyBar{
			Date:     day,
			Close:    decimal.NewFromFloat(row.Close),
			Sector:   row.Sector,
			Industry: row.Industry,
		})
	}
	return out, nil
}

func (p *HTTPProvider) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	fullURL := p.host + path
	if len(query) > 0 {
		fullURL = fullURL + "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
