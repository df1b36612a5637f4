package utils

import (
	"errors"
	"math/big"
	"testing"

	"github.com/sigweihq/beatmarket/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUnits(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		decimals int32
		want     string
		wantErr  bool
	}{
		{name: "half ether", amount: "0.5", decimals: 18, want: "500000000000000000"},
		{name: "whole", amount: "2", decimals: 18, want: "2000000000000000000"},
		{name: "smallest unit", amount: "0.000000000000000001", decimals: 18, want: "1"},
		{name: "trailing zeros beyond precision", amount: "1.50000000000000000000", decimals: 18, want: "1500000000000000000"},
		{name: "solana lamports", amount: "1.123456789", decimals: 9, want: "1123456789"},
		{name: "zero", amount: "0", decimals: 18, want: "0"},
		{name: "too precise for ether", amount: "0.0000000000000000001", decimals: 18, wantErr: true},
		{name: "too precise for solana", amount: "1.1234567891", decimals: 9, wantErr: true},
		{name: "negative", amount: "-1", decimals: 18, wantErr: true},
		{name: "empty", amount: "", decimals: 18, wantErr: true},
		{name: "garbage", amount: "abc", decimals: 18, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseUnits(tt.amount, tt.decimals)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, types.ErrInvalidAmount))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParseUnitsInvalidDecimals(t *testing.T) {
	_, err := ParseUnits("1", -1)
	assert.Error(t, err)
}

func TestFormatUnits(t *testing.T) {
	wei, ok := new(big.Int).SetString("500000000000000000", 10)
	require.True(t, ok)

	assert.Equal(t, "0.5", FormatUnits(wei, 18))
	assert.Equal(t, "1.123456789", FormatUnits(big.NewInt(1123456789), 9))
	assert.Equal(t, "0", FormatUnits(nil, 18))
}

func TestParseFormatRoundTrip(t *testing.T) {
	for _, amount := range []string{"0.5", "12.345", "0.000000000000000001"} {
		units, err := ParseUnits(amount, 18)
		require.NoError(t, err)
		assert.Equal(t, amount, FormatUnits(units, 18))
	}
}
