package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlisonTamayo/BancoArcbank/internal/models"
)

type fakeStore struct {
	balances map[int64]decimal.Decimal

	failReadFor  map[int64]error
	failWriteFor map[int64]error
	writes       int

	// failAfterWrites, when positive, fails every write after that many
	// successful ones. Used to break the compensation leg specifically.
	failAfterWrites int
}

func newFakeStore(balances map[int64]decimal.Decimal) *fakeStore {
	return &fakeStore{
		balances:     balances,
		failReadFor:  map[int64]error{},
		failWriteFor: map[int64]error{},
	}
}

func (f *fakeStore) Balance(_ context.Context, id int64) (decimal.Decimal, error) {
	if err := f.failReadFor[id]; err != nil {
		return decimal.Zero, err
	}
	b, ok := f.balances[id]
	if !ok {
		return decimal.Zero, models.ErrAccountNotFound
	}
	return b, nil
}

func (f *fakeStore) SetBalance(_ context.Context, id int64, balance decimal.Decimal) error {
	if err := f.failWriteFor[id]; err != nil {
		return err
	}
	if f.failAfterWrites > 0 && f.writes >= f.failAfterWrites {
		return errors.New("write timeout")
	}
	f.balances[id] = balance
	f.writes++
	return nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestAdjustCreditAndDebit(t *testing.T) {
	store := newFakeStore(map[int64]decimal.Decimal{1: dec("100")})
	adj := NewAdjuster(store)

	got, err := adj.Adjust(context.Background(), 1, dec("25"))
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("125")))

	got, err = adj.Adjust(context.Background(), 1, dec("-125"))
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestAdjustRejectsNegativeResult(t *testing.T) {
	store := newFakeStore(map[int64]decimal.Decimal{1: dec("10")})
	adj := NewAdjuster(store)

	_, err := adj.Adjust(context.Background(), 1, dec("-10.01"))
	require.ErrorIs(t, err, models.ErrInsufficientFunds)
	assert.True(t, store.balances[1].Equal(dec("10")), "failed adjustment must not touch the balance")
	assert.Zero(t, store.writes)
}

func TestAdjustUnknownAccount(t *testing.T) {
	adj := NewAdjuster(newFakeStore(map[int64]decimal.Decimal{}))

	_, err := adj.Adjust(context.Background(), 9, dec("5"))
	require.Error(t, err)
	assert.True(t, models.IsBusiness(err))
}

func TestAdjustReadFailureBecomesBusinessRejection(t *testing.T) {
	store := newFakeStore(map[int64]decimal.Decimal{1: dec("10")})
	store.failReadFor[1] = errors.New("connection refused")
	adj := NewAdjuster(store)

	_, err := adj.Adjust(context.Background(), 1, dec("5"))
	require.Error(t, err)
	assert.True(t, models.IsBusiness(err))
}

func TestAdjustWriteFailureIsTechnical(t *testing.T) {
	store := newFakeStore(map[int64]decimal.Decimal{1: dec("10")})
	store.failWriteFor[1] = errors.New("write timeout")
	adj := NewAdjuster(store)

	_, err := adj.Adjust(context.Background(), 1, dec("5"))
	require.Error(t, err)
	assert.False(t, models.IsBusiness(err))
}

func TestAdjustPairMovesBothLegs(t *testing.T) {
	store := newFakeStore(map[int64]decimal.Decimal{1: dec("100"), 2: dec("5")})
	adj := NewAdjuster(store)

	res, err := adj.AdjustPair(context.Background(), 1, 2, dec("40"))
	require.NoError(t, err)
	assert.True(t, res.SourceBalance.Equal(dec("60")))
	assert.True(t, res.DestBalance.Equal(dec("45")))
}

func TestAdjustPairCompensatesFailedCredit(t *testing.T) {
	store := newFakeStore(map[int64]decimal.Decimal{1: dec("100")})
	adj := NewAdjuster(store)

	_, err := adj.AdjustPair(context.Background(), 1, 2, dec("40"))
	require.Error(t, err)
	assert.True(t, store.balances[1].Equal(dec("100")), "source must be restored after credit failure")
}

func TestAdjustPairSurfacesFailedCompensation(t *testing.T) {
	// The debit write succeeds, then the credit fails (missing account) and the
	// compensating credit-back hits a write failure.
	store := newFakeStore(map[int64]decimal.Decimal{1: dec("100")})
	store.failAfterWrites = 1
	adj := NewAdjuster(store)

	_, err := adj.AdjustPair(context.Background(), 1, 2, dec("40"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ledger inconsistency")
}
