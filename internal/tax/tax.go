// Package tax computes the flat tax due on converted statement payments.
package tax

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/uatax/internal/model"
	"github.com/cleared-dev/uatax/internal/rates"
)

// Places is the number of decimal places in a tax amount.
const Places = 2

var ErrInvalidPercent = errors.New("invalid tax percent")

// Fraction builds the tax fraction by appending percent to "0.0".
// 5 gives 0.05, but 12 gives 0.012 rather than 0.12. Callers relying on
// two-digit percents get the literal result.
func Fraction(percent int) (decimal.Decimal, error) {
	if percent < 0 {
		return decimal.Decimal{}, fmt.Errorf("%w: %d is negative", ErrInvalidPercent, percent)
	}
	literal := "0.0" + strconv.Itoa(percent)
	f, err := decimal.NewFromString(literal)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: parsing %q: %w", ErrInvalidPercent, literal, err)
	}
	return f, nil
}

// Calculator converts payments to hryvnias and applies the tax fraction.
type Calculator struct {
	rates  rates.Provider
	logger *slog.Logger
}

// NewCalculator creates a Calculator looking rates up in p.
func NewCalculator(p rates.Provider, logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{rates: p, logger: logger}
}

// Total returns the sum of payments converted at the rate of their date.
// It stops at the first error from the sequence or the rate provider.
func (c *Calculator) Total(ctx context.Context, payments iter.Seq2[model.Payment, error]) (decimal.Decimal, error) {
	total := decimal.Zero
	n := 0
	for p, err := range payments {
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("reading payments: %w", err)
		}

		// The statement currency is not validated; every payment is converted at the USD rate.
		if p.Currency != "" && p.Currency != rates.Currency {
			c.logger.Warn("payment currency differs from rate currency",
				slog.String("date", p.Date.Format(time.DateOnly)),
				slog.String("currency", p.Currency),
				slog.String("rate_currency", rates.Currency),
			)
		}

		rate, err := c.rates.Rate(ctx, p.Date)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("rate for payment on %s: %w", p.Date.Format(time.DateOnly), err)
		}

		converted := p.Amount.Mul(rate)
		total = total.Add(converted)
		n++

		c.logger.Debug("converted payment",
			slog.String("date", p.Date.Format(time.DateOnly)),
			slog.String("amount", p.Amount.String()),
			slog.String("currency", p.Currency),
			slog.String("rate", rate.String()),
			slog.String("converted", converted.String()),
		)
	}

	c.logger.Debug("payments converted", slog.Int("count", n), slog.String("total", total.String()))
	return total, nil
}

// Amount returns the tax due on payments at percent, rounded half away
// from zero to Places.
func (c *Calculator) Amount(ctx context.Context, payments iter.Seq2[model.Payment, error], percent int) (decimal.Decimal, error) {
	fraction, err := Fraction(percent)
	if err != nil {
		return decimal.Decimal{}, err
	}

	total, err := c.Total(ctx, payments)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return total.Mul(fraction).Round(Places), nil
}
