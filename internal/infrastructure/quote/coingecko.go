package quote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"pricealert/internal/application/port"
	"pricealert/internal/domain"
)

const DefaultCoinGeckoURL = "https://api.coingecko.com"

// CoinGecko simple price 客户端
type CoinGecko struct {
	baseURL string
	client  *http.Client
}

func NewCoinGecko(baseURL string, timeout time.Duration) *CoinGecko {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultCoinGeckoURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CoinGecko{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// CurrentPrice GET /api/v3/simple/price?ids=bitcoin&vs_currencies=usd
func (c *CoinGecko) CurrentPrice(ctx context.Context, inst domain.Instrument) (float64, error) {
	id := inst.QuoteID()
	if id == "" {
		return 0, fmt.Errorf("%w: %q", domain.ErrUnsupportedInstrument, inst)
	}
	q := url.Values{}
	q.Set("ids", id)
	q.Set("vs_currencies", "usd")
	endpoint := c.baseURL + "/api/v3/simple/price?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("coingecko api error: %d %s", resp.StatusCode, string(body))
	}

	v := gjson.GetBytes(body, id+".usd")
	if !v.Exists() || v.Float() <= 0 {
		return 0, fmt.Errorf("coingecko: no usd price for %s", id)
	}
	return v.Float(), nil
}

var _ port.QuoteProvider = (*CoinGecko)(nil)
