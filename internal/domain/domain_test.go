package domain

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint(t *testing.T) {
	a := Fingerprint("Rs.450 debited at Swiggy on 12-03")
	b := Fingerprint("Rs.450 debited at Swiggy on 12-03")
	c := Fingerprint("Rs.450 debited at Swiggy on 12-03 ")

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c, "trailing whitespace must change the fingerprint")
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Fingerprint(""))
}

func TestParseDirection(t *testing.T) {
	tests := []struct {
		in      string
		want    Direction
		wantErr bool
	}{
		{"Credit", DirectionCredit, false},
		{"debit", DirectionDebit, false},
		{"  DEBIT ", DirectionDebit, false},
		{"Refund", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDirection(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoerceCategory(t *testing.T) {
	assert.Equal(t, CategoryFood, CoerceCategory("food"))
	assert.Equal(t, CategoryHealth, CoerceCategory(" Health "))
	assert.Equal(t, FallbackCategory, CoerceCategory("Groceries"))
	assert.Equal(t, FallbackCategory, CoerceCategory(""))

	_, ok := LookupCategory("Groceries")
	assert.False(t, ok)
}

func TestNewAutoEntry(t *testing.T) {
	now := time.Date(2024, 3, 12, 18, 30, 0, 0, time.UTC)

	debit := NewAutoEntry("e1", "u1", "fp", &ParsedTransaction{
		Direction:        DirectionDebit,
		Amount:           decimal.RequireFromString("450"),
		MerchantOrSource: "Swiggy",
		Category:         CategoryFood,
	}, now)
	assert.Equal(t, KindExpense, debit.Kind)
	assert.Equal(t, CategoryFood, debit.Category)
	assert.Equal(t, "Auto: Swiggy", debit.Description)
	assert.True(t, debit.IsAutoDetected)
	assert.Equal(t, time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC), debit.OccurredOn)

	credit := NewAutoEntry("e2", "u1", "fp2", &ParsedTransaction{
		Direction:        DirectionCredit,
		Amount:           decimal.RequireFromString("50000"),
		MerchantOrSource: "ACME Payroll",
		Category:         CategoryOther,
	}, now)
	assert.Equal(t, KindIncome, credit.Kind)
	assert.Empty(t, credit.Category)
}

func TestBalanceSnapshot_ApplyReverse(t *testing.T) {
	now := time.Now()
	b := NewBalanceSnapshot("u1", now)

	b.Apply(decimal.RequireFromString("1000"), DirectionCredit, now)
	b.Apply(decimal.RequireFromString("250.50"), DirectionDebit, now)

	assert.True(t, b.CurrentBalance.Equal(decimal.RequireFromString("749.50")))
	assert.True(t, b.TotalCredits.Equal(decimal.RequireFromString("1000")))
	assert.True(t, b.TotalDebits.Equal(decimal.RequireFromString("250.50")))
	assert.True(t, b.Consistent())

	b.Reverse(decimal.RequireFromString("250.50"), DirectionDebit, now)
	assert.True(t, b.CurrentBalance.Equal(decimal.RequireFromString("1000")))
	assert.True(t, b.TotalDebits.IsZero())
}

func TestBalanceSnapshot_Adjust(t *testing.T) {
	now := time.Now()

	t.Run("debit increase lowers balance", func(t *testing.T) {
		b := NewBalanceSnapshot("u1", now)
		b.Apply(decimal.NewFromInt(100), DirectionDebit, now)
		b.Adjust(DirectionDebit, decimal.NewFromInt(100), decimal.NewFromInt(150), now)

		assert.True(t, b.CurrentBalance.Equal(decimal.NewFromInt(-150)))
		assert.True(t, b.TotalDebits.Equal(decimal.NewFromInt(150)))
		assert.True(t, b.Consistent())
	})

	t.Run("credit decrease lowers balance", func(t *testing.T) {
		b := NewBalanceSnapshot("u1", now)
		b.Apply(decimal.NewFromInt(500), DirectionCredit, now)
		b.Adjust(DirectionCredit, decimal.NewFromInt(500), decimal.NewFromInt(300), now)

		assert.True(t, b.CurrentBalance.Equal(decimal.NewFromInt(300)))
		assert.True(t, b.TotalCredits.Equal(decimal.NewFromInt(300)))
		assert.True(t, b.Consistent())
	})
}

func TestBalanceSnapshot_RandomSequencesStayConsistent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	now := time.Now()
	b := NewBalanceSnapshot("u1", now)

	type applied struct {
		amount decimal.Decimal
		dir    Direction
	}
	var history []applied

	for i := 0; i < 500; i++ {
		amount := decimal.New(rng.Int63n(1_000_000)+1, -2)
		dir := DirectionDebit
		if rng.Intn(2) == 0 {
			dir = DirectionCredit
		}
		b.Apply(amount, dir, now)
		history = append(history, applied{amount, dir})
		require.True(t, b.Consistent())
	}

	for i := len(history) - 1; i >= 0; i-- {
		b.Reverse(history[i].amount, history[i].dir, now)
	}
	assert.True(t, b.CurrentBalance.IsZero())
	assert.True(t, b.TotalCredits.IsZero())
	assert.True(t, b.TotalDebits.IsZero())
}

func TestEntryFilter_Normalize(t *testing.T) {
	assert.Equal(t, DefaultListLimit, EntryFilter{}.Normalize().Limit)
	assert.Equal(t, MaxListLimit, EntryFilter{Limit: 1000}.Normalize().Limit)
	assert.Equal(t, 0, EntryFilter{Offset: -5}.Normalize().Offset)
	assert.Equal(t, 20, EntryFilter{Limit: 20, Offset: 40}.Normalize().Limit)
}

func TestErrors(t *testing.T) {
	cause := errors.New("deadline exceeded")
	pf := NewParseFailure(ParseTimeout, "model did not answer", cause)
	assert.ErrorIs(t, pf, cause)
	assert.True(t, pf.Retryable())
	assert.False(t, NewParseFailure(ParseMalformed, "bad json", nil).Retryable())

	pe := NewPersistenceError("insert record", cause)
	var target *PersistenceError
	require.ErrorAs(t, pe, &target)
	assert.Equal(t, "insert record", target.Op)
	assert.Same(t, pe, NewPersistenceError("outer", pe))

	ve := NewValidationError("message", "too short")
	assert.Contains(t, ve.Error(), "message")
}
