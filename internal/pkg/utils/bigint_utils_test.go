package utils

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatBigInt(t *testing.T) {
	cases := []struct {
		name     string
		amount   *big.Int
		decimals uint8
		want     string
	}{
		{"nil", nil, 18, "0"},
		{"zero", big.NewInt(0), 18, "0"},
		{"fraction", big.NewInt(1234500000000000000), 18, "1.2345"},
		{"whole", new(big.Int).Mul(big.NewInt(10), big.NewInt(1e18)), 18, "10"},
		{"no decimals", big.NewInt(42), 0, "42"},
		{"six decimals", big.NewInt(1500000), 6, "1.5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FormatBigInt(tc.amount, tc.decimals)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseUnits(t *testing.T) {
	v, err := ParseUnits("1.5", 18)
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000000", v.String())

	v, err = ParseUnits("0.0000000000000000019", 18)
	require.NoError(t, err)
	assert.Equal(t, "1", v.String(), "digits beyond precision are truncated")

	_, err = ParseUnits("abc", 18)
	assert.Error(t, err)

	_, err = ParseUnits("  ", 18)
	assert.Error(t, err)
}

func TestParseFormatRoundTrip(t *testing.T) {
	for _, s := range []string{"0.5", "1000", "3.141592653589793238"} {
		v, err := ParseUnits(s, 18)
		require.NoError(t, err)
		assert.Equal(t, s, FormatUnits(v, 18))
	}
}

func TestComparisons(t *testing.T) {
	assert.True(t, IsPositive("0.0001"))
	assert.False(t, IsPositive("0"))
	assert.False(t, IsPositive("-1"))
	assert.False(t, IsPositive(""))
	assert.True(t, IsPositiveUnits("0.000000000000000001", 18))
	assert.False(t, IsPositiveUnits("0.0000000000000000001", 18))
	assert.False(t, IsPositiveUnits("0.0000001", 6))
	assert.False(t, IsPositiveUnits("abc", 18))

	assert.True(t, GreaterThan("5", "3"))
	assert.False(t, GreaterThan("3", "3"))
	assert.True(t, GreaterThan("1", "garbage"))

	assert.Equal(t, "9.950000", FixedString("9.95", 6))
	assert.InDelta(t, 0.85, ToFloat("0.85"), 1e-9)
}

func TestBatchStrings(t *testing.T) {
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, BatchStrings([]string{"a", "b", "c"}, 2))
	assert.Equal(t, [][]string{}, BatchStrings(nil, 2))
	assert.Equal(t, [][]string{{"a", "b"}}, BatchStrings([]string{"a", "b"}, 0))
}
