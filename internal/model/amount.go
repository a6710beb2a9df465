package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Token metadata. Amounts throughout the ledger are integers in base units;
// one whole token is 10^TokenDecimals base units.
const (
	TokenName     = "VestingToken"
	TokenSymbol   = "VTK"
	TokenDecimals = 18
)

// TokenInfo describes the token held in escrow.
type TokenInfo struct {
	Name        string          `json:"name"`
	Symbol      string          `json:"symbol"`
	Decimals    int32           `json:"decimals"`
	TotalSupply decimal.Decimal `json:"total_supply"`
}

// IsWholeAmount reports whether d is a non-negative integer, the only shape a
// base-unit quantity may take.
func IsWholeAmount(d decimal.Decimal) bool {
	return !d.IsNegative() && d.Equal(d.Truncate(0))
}

// ParseAmount parses a base-unit quantity. Fractions and negatives are rejected.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if !IsWholeAmount(d) {
		return decimal.Zero, fmt.Errorf("invalid amount %q: must be a non-negative integer", s)
	}
	return d, nil
}

// ParseUnits converts a human-readable token amount such as "1000" or "0.5"
// into base units using the given number of decimals. Precision finer than
// one base unit is rejected rather than rounded.
func ParseUnits(s string, decimals int32) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	base := d.Shift(decimals)
	if !IsWholeAmount(base) {
		return decimal.Zero, fmt.Errorf("invalid amount %q: negative or more than %d decimal places", s, decimals)
	}
	return base, nil
}

// FormatUnits renders a base-unit quantity as a human-readable token amount.
func FormatUnits(d decimal.Decimal, decimals int32) string {
	return d.Shift(-decimals).String()
}
