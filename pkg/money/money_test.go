package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := map[string]int64{
		"0":       0,
		"12":      1200,
		"12.5":    1250,
		"12.345":  1235,
		"0.005":   1,
		" 99.99 ": 9999,
	}
	for input, want := range cases {
		got, err := Parse(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}
}

func TestParseRejects(t *testing.T) {
	_, err := Parse("")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = Parse("abc")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = Parse("-1")
	assert.ErrorIs(t, err, ErrNegativeAmount)

	_, err = FromDecimal(decimal.RequireFromString("1e30"))
	assert.ErrorIs(t, err, ErrAmountOverflow)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "0.00", Format(0))
	assert.Equal(t, "12.50", Format(1250))
	assert.Equal(t, "1234.05", Format(123405))
}

func TestSummingCentsAvoidsFloatDrift(t *testing.T) {
	var total int64
	for i := 0; i < 10; i++ {
		cents, err := Parse("0.10")
		require.NoError(t, err)
		total += cents
	}
	assert.Equal(t, "1.00", Format(total))
}
