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

const SourceTencent = "tencent"

// TencentSource reads the qt.gtimg.cn plain-text ticker feed. One GET covers
// both the Shanghai- and Shenzhen-prefixed symbol variants; whichever line
// answers wins.
type TencentSource struct {
	HTTP    *http.Client
	BaseURL string
}

func (s *TencentSource) Name() string { return SourceTencent }

func (s *TencentSource) FetchRate(ctx context.Context, code string) (models.Quote, error) {
	url := fmt.Sprintf("%s/q=sh%s,sz%s", strings.TrimRight(s.BaseURL, "/"), code, code)
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
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Quote{}, err
	}
	return parseTencent(string(body), code)
}

func parseTencent(body, code string) (models.Quote, error) {
	for _, line := range strings.Split(body, ";") {
		if !strings.Contains(line, "sh"+code) && !strings.Contains(line, "sz"+code) {
			continue
		}
		if !strings.Contains(line, `="`) {
			continue
		}
		fields := strings.Split(strings.SplitN(line, `="`, 2)[1], "~")
		if len(fields) <= 30 {
			continue
		}
		curr, err := decimal.NewFromString(fields[3])
		if err != nil {
			return models.Quote{}, fmt.Errorf("bad price %q: %w", fields[3], err)
		}
		close_, err := decimal.NewFromString(fields[4])
		if err != nil {
			return models.Quote{}, fmt.Errorf("bad close %q: %w", fields[4], err)
		}
		if !close_.IsPositive() {
			continue
		}
		return models.Quote{
			LivePrice: curr,
			BaseNav:   close_,
			EstRate:   curr.Sub(close_).Div(close_),
			NavDate:   models.NavDateUnknown,
			Source:    SourceTencent,
		}, nil
	}
	return models.Quote{}, fmt.Errorf("no usable line for %s", code)
}
