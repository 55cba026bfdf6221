package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlisonTamayo/BancoArcbank/internal/domain"
	"github.com/AlisonTamayo/BancoArcbank/internal/gateway"
	"github.com/AlisonTamayo/BancoArcbank/internal/models"
)

func TestStatusByReference(t *testing.T) {
	env := newTestEnv()

	completed := seedCompleted(env, &models.Transaction{
		Type:          domain.OpDeposit,
		Amount:        dec("10"),
		DestAccountID: ptr(int64(1)),
	})
	returned := env.store.seed(&models.Transaction{
		Type:          domain.OpInboundInterbank,
		State:         domain.StateReturned,
		Amount:        dec("25"),
		Reference:     domain.NewReference(),
		DestAccountID: ptr(int64(2)),
	})

	status, err := env.co.StatusByReference(context.Background(), completed.Reference)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", status)

	// RETURNED is internal bookkeeping; externally it reads as REVERSED.
	status, err = env.co.StatusByReference(context.Background(), returned.Reference)
	require.NoError(t, err)
	assert.Equal(t, "REVERSED", status)

	status, err = env.co.StatusByReference(context.Background(), domain.NewReference())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNotFound, status)
}

func TestListByAccountViewerRelativeBalance(t *testing.T) {
	env := newTestEnv()
	env.balances.balances[1] = dec("100")
	env.balances.balances[2] = dec("10")

	_, err := env.co.Create(context.Background(), CreateTransactionRequest{
		Type:            string(domain.OpInternalTransfer),
		Reference:       domain.NewReference(),
		Amount:          dec("25"),
		SourceAccountID: ptr(int64(1)),
		DestAccountID:   ptr(int64(2)),
	})
	require.NoError(t, err)

	sourceView, err := env.co.ListByAccount(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, sourceView, 1)
	assert.True(t, sourceView[0].Balance.Equal(dec("75")))

	destView, err := env.co.ListByAccount(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, destView, 1)
	assert.True(t, destView[0].Balance.Equal(dec("35")))
}

func TestReturnReasonsPassthrough(t *testing.T) {
	env := newTestEnv()
	env.gateway.Reasons = []gateway.ReturnReason{{Code: "AC03", Description: "account invalid"}}

	reasons := env.co.ReturnReasons(context.Background())
	require.Len(t, reasons, 1)
	assert.Equal(t, "AC03", reasons[0].Code)
}

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := newKeyedMutex()

	var mu sync.Mutex
	active := 0
	maxActive := 0

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("same")
			defer unlock()

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive)
}
