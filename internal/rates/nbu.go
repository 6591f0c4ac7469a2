// Package rates looks up official hryvnia exchange rates.
package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DefaultEndpoint is the National Bank of Ukraine exchange rate service.
	DefaultEndpoint = "https://bank.gov.ua/NBUStatService/v1/statdirectory/exchange"

	// Currency is the only currency rates are requested for.
	Currency = "USD"

	nbuDateFormat = "20060102"
	maxErrorBody  = 512
)

var (
	ErrNoRate      = errors.New("no exchange rate published")
	ErrInvalidRate = errors.New("invalid exchange rate")
)

// Provider returns the rate of one USD in hryvnias on a date.
type Provider interface {
	Rate(ctx context.Context, date time.Time) (decimal.Decimal, error)
}

// StatusError is returned when the rate service answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("rate service returned status %d: %s", e.StatusCode, e.Body)
}

// nbuRate is one element of the service's JSON array.
type nbuRate struct {
	R030         int             `json:"r030"`
	Txt          string          `json:"txt"`
	Rate         decimal.Decimal `json:"rate"`
	CC           string          `json:"cc"`
	ExchangeDate string          `json:"exchangedate"`
}

// NBUClient fetches rates from the NBU statistics service.
type NBUClient struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewNBUClient creates a client for endpoint. An empty endpoint selects
// DefaultEndpoint, a nil httpClient selects one without a timeout.
func NewNBUClient(endpoint string, httpClient *http.Client, logger *slog.Logger) *NBUClient {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NBUClient{endpoint: endpoint, httpClient: httpClient, logger: logger}
}

// Rate returns the USD rate published for date.
func (c *NBUClient) Rate(ctx context.Context, date time.Time) (decimal.Decimal, error) {
	reqURL, err := c.url(date)
	if err != nil {
		return decimal.Decimal{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("requesting exchange rate", slog.String("url", reqURL))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("requesting rate for %s: %w", date.Format(time.DateOnly), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("reading rate response: %w", err)
	}

	c.logger.Debug("rate service responded",
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(body)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return decimal.Decimal{}, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var published []nbuRate
	if err := json.Unmarshal(body, &published); err != nil {
		return decimal.Decimal{}, fmt.Errorf("decoding rate response for %s: %w", date.Format(time.DateOnly), err)
	}
	if len(published) == 0 {
		return decimal.Decimal{}, fmt.Errorf("%w for %s on %s", ErrNoRate, Currency, date.Format(time.DateOnly))
	}

	rate := published[0].Rate
	if !rate.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w for %s on %s: %s", ErrInvalidRate, Currency, date.Format(time.DateOnly), rate)
	}
	return rate, nil
}

func (c *NBUClient) url(date time.Time) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("parsing endpoint %q: %w", c.endpoint, err)
	}
	// The service wants a bare "json" flag, which url.Values cannot express.
	q := url.Values{}
	q.Set("valcode", Currency)
	q.Set("date", date.Format(nbuDateFormat))
	u.RawQuery = q.Encode() + "&json"
	return u.String(), nil
}
