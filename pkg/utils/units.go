package utils

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sigweihq/beatmarket/pkg/types"
)

// ValidateAmount checks if an amount string is a valid non-negative decimal
func ValidateAmount(amount string) (decimal.Decimal, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return decimal.Zero, types.NewError(types.KindInvalidAmount, "amount cannot be empty", nil)
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, types.NewError(types.KindInvalidAmount, fmt.Sprintf("invalid amount format %q", amount), err)
	}

	if dec.IsNegative() {
		return decimal.Zero, types.NewError(types.KindInvalidAmount, fmt.Sprintf("amount %s cannot be negative", amount), nil)
	}

	return dec, nil
}

// ParseUnits converts a decimal amount into the chain's smallest integer unit.
// Amounts carrying more fractional digits than decimals are rejected rather
// than rounded, so the value sent always equals the displayed price.
func ParseUnits(amount string, decimals int32) (*big.Int, error) {
	if decimals < 0 {
		return nil, fmt.Errorf("invalid decimals %d", decimals)
	}

	dec, err := ValidateAmount(amount)
	if err != nil {
		return nil, err
	}

	if !dec.Equal(dec.Truncate(decimals)) {
		return nil, types.NewError(types.KindInvalidAmount,
			fmt.Sprintf("amount %s has more than %d decimal places", amount, decimals), nil)
	}

	return dec.Shift(decimals).BigInt(), nil
}

// FormatUnits formats an integer amount in smallest units as a decimal string
func FormatUnits(amount *big.Int, decimals int32) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -decimals).String()
}
