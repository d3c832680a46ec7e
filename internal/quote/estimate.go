package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fundwatch/internal/models"
)

// SourceEstimate labels quotes answered by the off-exchange NAV estimate feed.
const SourceEstimate = "fundgz"

// EstimateClient fetches intraday NAV estimates for off-exchange funds from
// the JSONP estimate feed. A single failed attempt yields the error sentinel
// quote for the cycle; the background scheduler's next tick is the retry.
type EstimateClient struct {
	HTTP    *http.Client
	BaseURL string
	Logger  *zap.Logger
}

type estimatePayload struct {
	FundCode string `json:"fundcode"`
	Name     string `json:"name"`
	Gsz      string `json:"gsz"`
	Dwjz     string `json:"dwjz"`
	Gszzl    string `json:"gszzl"`
	Gztime   string `json:"gztime"`
}

// Fetch returns the current estimate for code, or the error sentinel on any
// network, status, or parse failure. It never returns an error.
func (c *EstimateClient) Fetch(ctx context.Context, code string) models.Quote {
	url := fmt.Sprintf("%s/%s.js?rt=%d", strings.TrimRight(c.BaseURL, "/"), code, time.Now().UnixMilli())
	body, err := c.get(ctx, url)
	if err != nil {
		c.warn(code, err)
		return models.ErrorQuote()
	}
	payload, err := parseJSONP(body)
	if err != nil {
		c.warn(code, err)
		return models.ErrorQuote()
	}
	q, err := payload.toQuote()
	if err != nil {
		c.warn(code, err)
		return models.ErrorQuote()
	}
	return q
}

// Name looks up the display name of a fund for the add-fund flow. Returns ""
// when the feed cannot answer.
func (c *EstimateClient) Name(ctx context.Context, code string) string {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	url := fmt.Sprintf("%s/%s.js", strings.TrimRight(c.BaseURL, "/"), code)
	body, err := c.get(ctx, url)
	if err != nil {
		c.warn(code, err)
		return ""
	}
	payload, err := parseJSONP(body)
	if err != nil {
		c.warn(code, err)
		return ""
	}
	return payload.Name
}

func (c *EstimateClient) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	browserHeaders(req)
	client := c.HTTP
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *EstimateClient) warn(code string, err error) {
	if c.Logger != nil {
		c.Logger.Warn("estimate fetch failed", zap.String("code", code), zap.Error(err))
	}
}

// parseJSONP extracts the JSON object embedded in a `jsonpgz({...});` body.
func parseJSONP(body []byte) (estimatePayload, error) {
	const prefix = "jsonpgz("
	const suffix = ");"
	text := strings.TrimSpace(string(body))
	start := strings.Index(text, prefix)
	if start < 0 {
		return estimatePayload{}, fmt.Errorf("no jsonpgz wrapper")
	}
	text = text[start+len(prefix):]
	end := strings.LastIndex(text, suffix)
	if end < 0 {
		return estimatePayload{}, fmt.Errorf("unterminated jsonpgz wrapper")
	}
	var payload estimatePayload
	if err := json.Unmarshal([]byte(text[:end]), &payload); err != nil {
		return estimatePayload{}, err
	}
	return payload, nil
}

func (p estimatePayload) toQuote() (models.Quote, error) {
	live, err := decimal.NewFromString(p.Gsz)
	if err != nil {
		return models.Quote{}, fmt.Errorf("bad gsz %q: %w", p.Gsz, err)
	}
	base, err := decimal.NewFromString(p.Dwjz)
	if err != nil {
		return models.Quote{}, fmt.Errorf("bad dwjz %q: %w", p.Dwjz, err)
	}
	pct, err := decimal.NewFromString(p.Gszzl)
	if err != nil {
		return models.Quote{}, fmt.Errorf("bad gszzl %q: %w", p.Gszzl, err)
	}
	navDate := models.NavDateUnknown
	if fields := strings.Fields(p.Gztime); len(fields) > 0 {
		navDate = fields[0]
	}
	return models.Quote{
		LivePrice: live,
		BaseNav:   base,
		EstRate:   pct.Div(decimal.NewFromInt(100)),
		NavDate:   navDate,
		Source:    SourceEstimate,
	}, nil
}
