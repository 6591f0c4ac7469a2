package rates

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shopspring/decimal"
)

// Cache memoizes a Provider by calendar date for the lifetime of one run.
// Failed lookups are not cached.
type Cache struct {
	next  Provider
	rates *lru.Cache[string, decimal.Decimal]
}

// NewCache wraps next with a memo holding up to size dates.
func NewCache(next Provider, size int) (*Cache, error) {
	rates, err := lru.New[string, decimal.Decimal](size)
	if err != nil {
		return nil, fmt.Errorf("creating rate cache: %w", err)
	}
	return &Cache{next: next, rates: rates}, nil
}

// Rate returns the memoized rate for date, fetching it on a miss.
func (c *Cache) Rate(ctx context.Context, date time.Time) (decimal.Decimal, error) {
	key := date.Format(time.DateOnly)
	if rate, ok := c.rates.Get(key); ok {
		return rate, nil
	}

	rate, err := c.next.Rate(ctx, date)
	if err != nil {
		return decimal.Decimal{}, err
	}
	c.rates.Add(key, rate)
	return rate, nil
}

// Len returns the number of memoized dates.
func (c *Cache) Len() int {
	return c.rates.Len()
}
