package quote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fundwatch/internal/models"
)

const SourceSina = "sina"

// SinaSource reads the hq.sinajs.cn ticker feed. The exchange prefix is
// chosen by the first digit of the code; the feed requires a finance-site
// referer or it answers with an empty body.
type SinaSource struct {
	HTTP    *http.Client
	BaseURL string
}

func (s *SinaSource) Name() string { return SourceSina }

func (s *SinaSource) FetchRate(ctx context.Context, code string) (models.Quote, error) {
	prefix := "sz"
	if shanghaiListed(code) {
		prefix = "sh"
	}
	url := fmt.Sprintf("%s/list=%s%s", strings.TrimRight(s.BaseURL, "/"), prefix, code)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.Quote{}, err
	}
	req.Header.Set("Referer", "https://finance.sina.com.cn/")
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
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Quote{}, err
	}
	return parseSina(string(body))
}

func parseSina(body string) (models.Quote, error) {
	if !strings.Contains(body, `="`) {
		return models.Quote{}, fmt.Errorf("unexpected body shape")
	}
	fields := strings.Split(strings.SplitN(body, `="`, 2)[1], ",")
	if len(fields) <= 3 {
		return models.Quote{}, fmt.Errorf("short line: %d fields", len(fields))
	}
	curr, err := decimal.NewFromString(fields[3])
	if err != nil {
		return models.Quote{}, fmt.Errorf("bad price %q: %w", fields[3], err)
	}
	close_, err := decimal.NewFromString(fields[2])
	if err != nil {
		return models.Quote{}, fmt.Errorf("bad close %q: %w", fields[2], err)
	}
	if !close_.IsPositive() {
		return models.Quote{}, fmt.Errorf("non-positive close")
	}
	return models.Quote{
		LivePrice: curr,
		BaseNav:   close_,
		EstRate:   curr.Sub(close_).Div(close_),
		NavDate:   models.NavDateUnknown,
		Source:    SourceSina,
	}, nil
}
