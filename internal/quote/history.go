package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// HistoryClient reads the paged NAV history endpoint. It is used to find the
// most recent confirmed NAV that is not dated today, the reference price for
// holdings valued through a borrowed or rate-only feed.
type HistoryClient struct {
	HTTP    *http.Client
	BaseURL string
}

type historyResponse struct {
	Data struct {
		LSJZList []struct {
			FSRQ string `json:"FSRQ"`
			DWJZ string `json:"DWJZ"`
		} `json:"LSJZList"`
	} `json:"Data"`
}

// PreviousNav returns the newest NAV whose date differs from excludeDate.
func (c *HistoryClient) PreviousNav(ctx context.Context, code, excludeDate string) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s?fundCode=%s&pageIndex=1&pageSize=5", c.BaseURL, code)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, err
	}
	req.Header.Set("Referer", "http://fundf10.eastmoney.com/")
	req.Header.Set("User-Agent", "Mozilla/5.0")
	client := c.HTTP
	if client == nil {
		client = &http.Client{Timeout: 3 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("http %d", resp.StatusCode)
	}
	var parsed historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return decimal.Zero, err
	}
	for _, item := range parsed.Data.LSJZList {
		if item.FSRQ == excludeDate {
			continue
		}
		nav, err := decimal.NewFromString(item.DWJZ)
		if err != nil {
			return decimal.Zero, fmt.Errorf("bad nav %q: %w", item.DWJZ, err)
		}
		return nav, nil
	}
	return decimal.Zero, fmt.Errorf("no prior nav for %s", code)
}
