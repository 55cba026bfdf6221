package idempotency

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlisonTamayo/BancoArcbank/internal/models"
)

type fakeLookup struct {
	byRef map[string]*models.Transaction
	err   error
}

func (f *fakeLookup) GetTransactionByReference(_ context.Context, ref string) (*models.Transaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	if txn, ok := f.byRef[ref]; ok {
		return txn, nil
	}
	return nil, models.ErrTransactionNotFound
}

func TestGuardSeenKnownReference(t *testing.T) {
	txn := &models.Transaction{Reference: "ref-1"}
	g := NewGuard(nil, &fakeLookup{byRef: map[string]*models.Transaction{"ref-1": txn}}, 0)

	got, seen, err := g.Seen(context.Background(), "ref-1")
	require.NoError(t, err)
	assert.True(t, seen)
	assert.Same(t, txn, got)
}

func TestGuardSeenUnknownReference(t *testing.T) {
	g := NewGuard(nil, &fakeLookup{}, 0)

	got, seen, err := g.Seen(context.Background(), "ref-2")
	require.NoError(t, err)
	assert.False(t, seen)
	assert.Nil(t, got)
}

func TestGuardSeenStoreFailure(t *testing.T) {
	g := NewGuard(nil, &fakeLookup{err: errors.New("connection reset")}, 0)

	_, _, err := g.Seen(context.Background(), "ref-3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ref-3")
}
