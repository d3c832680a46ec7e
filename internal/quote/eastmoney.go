package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fundwatch/internal/models"
)

const SourceEastmoney = "eastmoney"

// EastmoneySource reads the push2 secid-style JSON endpoint. It only yields a
// percent change (field f3), so quotes from this feed are rate-only; price
// fields are derived elsewhere from the instrument's previous NAV.
type EastmoneySource struct {
	HTTP    *http.Client
	BaseURL string
}

func (s *EastmoneySource) Name() string { return SourceEastmoney }

func (s *EastmoneySource) FetchRate(ctx context.Context, code string) (models.Quote, error) {
	market := "0"
	if shanghaiListed(code) {
		market = "1"
	}
	url := fmt.Sprintf("%s?fields=f3,f43,f60&secid=%s.%s", s.BaseURL, market, code)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.Quote{}, err
	}
	client := s.HTTP
	if client == nil {
		client = &http.Client{Timeout: 1500 * time.Millisecond}
	}
	resp, err := client.Do(req)
	if err != nil {
		return models.Quote{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.Quote{}, fmt.Errorf("http %d", resp.StatusCode)
	}
	var parsed struct {
		Data struct {
			F3 json.RawMessage `json:"f3"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return models.Quote{}, err
	}
	return parseEastmoneyChange(parsed.Data.F3)
}

// parseEastmoneyChange turns the raw f3 field into a rate-only quote. The
// feed sends a number in hundredths of a percent, or the placeholder "-"
// when the instrument has not traded.
func parseEastmoneyChange(raw json.RawMessage) (models.Quote, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == `"-"` || text == "null" {
		return models.Quote{}, fmt.Errorf("no change data")
	}
	text = strings.Trim(text, `"`)
	pct, err := decimal.NewFromString(text)
	if err != nil {
		return models.Quote{}, fmt.Errorf("bad change %q: %w", text, err)
	}
	return models.Quote{
		EstRate: pct.Div(decimal.NewFromInt(100)),
		NavDate: models.NavDateUnknown,
		Source:  SourceEastmoney,
	}, nil
}
