package utils

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultDecimals is the fixed-point scale of every registered token.
const DefaultDecimals uint8 = 18

// FormatBigInt converts a fixed-point amount to a human-readable string.
// Example: amount=1234500000000000000, decimals=18 => "1.2345"
func FormatBigInt(amount *big.Int, decimals uint8) (string, error) {
	if amount == nil {
		return "0", nil
	}
	if decimals == 0 {
		return amount.String(), nil
	}
	if decimals > 77 {
		return "", fmt.Errorf("unsupported decimals: %d", decimals)
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String(), nil
}

// FormatUnits is FormatBigInt for callers that cannot fail on valid decimals.
func FormatUnits(amount *big.Int, decimals uint8) string {
	s, err := FormatBigInt(amount, decimals)
	if err != nil {
		return "0"
	}
	return s
}

// ParseUnits converts a decimal string to its fixed-point representation.
// Digits beyond the token's precision are truncated.
func ParseUnits(amount string, decimals uint8) (*big.Int, error) {
	d, err := ParseDecimal(amount)
	if err != nil {
		return nil, err
	}
	return d.Shift(int32(decimals)).BigInt(), nil
}

// ParseDecimal parses a user supplied amount.
func ParseDecimal(amount string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(amount)
	if trimmed == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse amount %q: %w", amount, err)
	}
	return d, nil
}

// IsPositive reports whether amount parses to a value strictly above zero.
func IsPositive(amount string) bool {
	d, err := ParseDecimal(amount)
	return err == nil && d.IsPositive()
}

// IsPositiveUnits reports whether amount is still above zero once scaled
// to decimals, so dust below one base unit counts as zero.
func IsPositiveUnits(amount string, decimals uint8) bool {
	v, err := ParseUnits(amount, decimals)
	return err == nil && v.Sign() > 0
}

// GreaterThan reports a > b. Unparseable values count as zero.
func GreaterThan(a, b string) bool {
	return decimalOrZero(a).GreaterThan(decimalOrZero(b))
}

// FixedString renders amount with exactly places fractional digits.
func FixedString(amount string, places int32) string {
	return decimalOrZero(amount).StringFixed(places)
}

// ToFloat converts a decimal string for display-only arithmetic.
func ToFloat(amount string) float64 {
	return decimalOrZero(amount).InexactFloat64()
}

func decimalOrZero(amount string) decimal.Decimal {
	d, err := ParseDecimal(amount)
	if err != nil {
		return decimal.Zero
	}
	return d
}
