package valueobject

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	t.Run("creates money with valid currency", func(t *testing.T) {
		m, err := NewMoney(decimal.NewFromFloat(100.50), EUR)
		require.NoError(t, err)
		assert.Equal(t, EUR, m.Currency())
		assert.True(t, m.Amount().Equal(decimal.NewFromFloat(100.50)))
	})

	t.Run("rejects empty currency", func(t *testing.T) {
		_, err := NewMoney(decimal.NewFromInt(100), "")
		assert.Error(t, err)
	})
}

func TestNewMoneyFromString(t *testing.T) {
	t.Run("parses decimal string", func(t *testing.T) {
		m, err := NewMoneyFromString("1234.5678", EUR)
		require.NoError(t, err)
		assert.Equal(t, "1234.5678", m.StringFixed())
	})

	t.Run("rejects malformed string", func(t *testing.T) {
		_, err := NewMoneyFromString("not-a-number", EUR)
		assert.Error(t, err)
	})

	t.Run("rejects more than four fractional digits", func(t *testing.T) {
		_, err := NewMoneyFromString("10.00001", EUR)
		assert.Error(t, err)
	})
}

func TestMoneyArithmetic(t *testing.T) {
	t.Run("adds amounts with same currency", func(t *testing.T) {
		a := NewMoneyEUR(decimal.NewFromFloat(100.25))
		b := NewMoneyEUR(decimal.NewFromFloat(50.75))

		sum, err := a.Add(b)
		require.NoError(t, err)
		assert.Equal(t, "151.0000", sum.StringFixed())
	})

	t.Run("rejects adding different currencies", func(t *testing.T) {
		a := NewMoneyEUR(decimal.NewFromInt(100))
		b, _ := NewMoney(decimal.NewFromInt(50), USD)

		_, err := a.Add(b)
		assert.Error(t, err)
	})

	t.Run("subtracts amounts", func(t *testing.T) {
		a := NewMoneyEUR(decimal.NewFromFloat(100.00))
		b := NewMoneyEUR(decimal.NewFromFloat(30.5))

		diff, err := a.Subtract(b)
		require.NoError(t, err)
		assert.Equal(t, "69.5000", diff.StringFixed())
	})

	t.Run("negates amount", func(t *testing.T) {
		m := NewMoneyEUR(decimal.NewFromInt(42))
		assert.Equal(t, "-42.0000", m.Negate().StringFixed())
	})
}

func TestMoneyComparison(t *testing.T) {
	a := NewMoneyEUR(decimal.NewFromInt(100))
	b := NewMoneyEUR(decimal.NewFromInt(200))

	t.Run("less than", func(t *testing.T) {
		less, err := a.LessThan(b)
		require.NoError(t, err)
		assert.True(t, less)
	})

	t.Run("greater than", func(t *testing.T) {
		greater, err := b.GreaterThan(a)
		require.NoError(t, err)
		assert.True(t, greater)
	})

	t.Run("equals ignores representation differences", func(t *testing.T) {
		c := NewMoneyEUR(decimal.RequireFromString("100.0000"))
		assert.True(t, a.Equals(c))
	})

	t.Run("comparison across currencies fails", func(t *testing.T) {
		usd, _ := NewMoney(decimal.NewFromInt(100), USD)
		_, err := a.LessThan(usd)
		assert.Error(t, err)
	})
}

func TestMoneyPredicates(t *testing.T) {
	assert.True(t, Zero(EUR).IsZero())
	assert.True(t, NewMoneyEUR(decimal.NewFromInt(1)).IsPositive())
	assert.True(t, NewMoneyEUR(decimal.NewFromInt(-1)).IsNegative())
}

func TestMoneyRound(t *testing.T) {
	m := NewMoneyEUR(decimal.RequireFromString("10.12345"))
	assert.Equal(t, "10.1234", m.Round().StringFixed())

	m = NewMoneyEUR(decimal.RequireFromString("10.12355"))
	assert.Equal(t, "10.1236", m.Round().StringFixed())
}

func TestMoneyJSON(t *testing.T) {
	t.Run("marshals as amount string plus currency", func(t *testing.T) {
		m := NewMoneyEUR(decimal.NewFromFloat(99.9))
		data, err := json.Marshal(m)
		require.NoError(t, err)
		assert.JSONEq(t, `{"amount":"99.9000","currency":"EUR"}`, string(data))
	})

	t.Run("unmarshals round trip", func(t *testing.T) {
		var m Money
		err := json.Unmarshal([]byte(`{"amount":"12.3400","currency":"CHF"}`), &m)
		require.NoError(t, err)
		assert.Equal(t, CHF, m.Currency())
		assert.Equal(t, "12.3400", m.StringFixed())
	})

	t.Run("unmarshal rejects oversized scale", func(t *testing.T) {
		var m Money
		err := json.Unmarshal([]byte(`{"amount":"1.00001","currency":"EUR"}`), &m)
		assert.Error(t, err)
	})
}

func TestMoneyScan(t *testing.T) {
	t.Run("scans string value with default currency", func(t *testing.T) {
		var m Money
		require.NoError(t, m.Scan("250.5000"))
		assert.Equal(t, EUR, m.Currency())
		assert.Equal(t, "250.5000", m.StringFixed())
	})

	t.Run("scans nil as zero", func(t *testing.T) {
		var m Money
		require.NoError(t, m.Scan(nil))
		assert.True(t, m.IsZero())
	})

	t.Run("rejects unsupported type", func(t *testing.T) {
		var m Money
		assert.Error(t, m.Scan(3.14))
	})
}
