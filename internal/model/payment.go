package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is one incoming payment extracted from a bank statement.
type Payment struct {
	Date      time.Time       // day precision, time of day dropped
	Amount    decimal.Decimal // always positive
	Currency  string          // statement currency column, informational only
	Reference string
}

