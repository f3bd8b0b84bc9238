package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pricealert/internal/application/port"
	"pricealert/internal/domain"
)

const DefaultRestURL = "https://fapi.binance.com"

// MarkPriceClient Binance 标记价格 REST 客户端，作为参考报价
type MarkPriceClient struct {
	baseURL string
	client  *http.Client
}

// PremiumIndexResp /fapi/v1/premiumIndex 响应
type PremiumIndexResp struct {
	Symbol    string `json:"symbol"`
	MarkPrice string `json:"markPrice"`
	Time      int64  `json:"time"`
}

func NewMarkPriceClient(baseURL string, timeout time.Duration) *MarkPriceClient {
	if baseURL == "" {
		baseURL = DefaultRestURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MarkPriceClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// GetPremiumIndex 获取单个合约的标记价格
func (c *MarkPriceClient) GetPremiumIndex(ctx context.Context, symbol string) (*PremiumIndexResp, error) {
	url := fmt.Sprintf("%s/fapi/v1/premiumIndex?symbol=%s", c.baseURL, symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("binance api error: %d %s", resp.StatusCode, string(body))
	}

	var result PremiumIndexResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *MarkPriceClient) CurrentPrice(ctx context.Context, inst domain.Instrument) (float64, error) {
	res, err := c.GetPremiumIndex(ctx, strings.ToUpper(symbolConverter.InstrumentSymbol(inst)))
	if err != nil {
		return 0, err
	}
	price, err := strconv.ParseFloat(res.MarkPrice, 64)
	if err != nil {
		return 0, fmt.Errorf("parse mark price %q: %w", res.MarkPrice, err)
	}
	return price, nil
}

var _ port.QuoteProvider = (*MarkPriceClient)(nil)
