package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/AlisonTamayo/BancoArcbank/internal/domain"
	"github.com/AlisonTamayo/BancoArcbank/internal/gateway"
	"github.com/AlisonTamayo/BancoArcbank/internal/idempotency"
	"github.com/AlisonTamayo/BancoArcbank/internal/ledger"
	"github.com/AlisonTamayo/BancoArcbank/internal/models"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// fakeStore is an in-memory Store with the same uniqueness semantics as the
// transactions table.
type fakeStore struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*models.Transaction

	createErr   error
	completeErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{byID: map[uuid.UUID]*models.Transaction{}}
}

func (s *fakeStore) CreateTransaction(_ context.Context, t *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	for _, existing := range s.byID {
		if existing.Reference == t.Reference {
			return models.ErrDuplicateReference
		}
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	cp := *t
	s.byID[t.ID] = &cp
	return nil
}

func (s *fakeStore) GetTransaction(_ context.Context, id uuid.UUID) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.byID[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, models.ErrTransactionNotFound
}

func (s *fakeStore) GetTransactionByReference(_ context.Context, reference string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.byID {
		if t.Reference == reference {
			cp := *t
			return &cp, nil
		}
	}
	return nil, models.ErrTransactionNotFound
}

func (s *fakeStore) CompleteTransaction(_ context.Context, id uuid.UUID, state domain.TransactionState, resultingBalance, resultingBalanceDest *decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completeErr != nil {
		return s.completeErr
	}
	t, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("complete transaction affected 0 rows")
	}
	t.State = state
	t.ResultingBalance = resultingBalance
	t.ResultingBalanceDest = resultingBalanceDest
	return nil
}

func (s *fakeStore) DeleteTransaction(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.byID[id]; ok && t.State == domain.StatePending {
		delete(s.byID, id)
	}
	return nil
}

func (s *fakeStore) CreateReversalAndMarkOriginal(ctx context.Context, reversal *models.Transaction, originalID uuid.UUID, originalState domain.TransactionState, originalDescription string) error {
	if err := s.CreateTransaction(ctx, reversal); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	original, ok := s.byID[originalID]
	if !ok {
		return fmt.Errorf("update transaction state affected 0 rows")
	}
	original.State = originalState
	original.Description = originalDescription
	return nil
}

func (s *fakeStore) ListTransactionsByAccount(_ context.Context, accountID int64) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Transaction
	for _, t := range s.byID {
		if (t.SourceAccountID != nil && *t.SourceAccountID == accountID) ||
			(t.DestAccountID != nil && *t.DestAccountID == accountID) {
			out = append(out, *t)
		}
	}
	return out, nil
}

// seed plants a pre-existing record, bypassing the saga.
func (s *fakeStore) seed(t *models.Transaction) *models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	s.byID[t.ID] = t
	return t
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// fakeBalances backs the real Adjuster in tests.
type fakeBalances struct {
	mu       sync.Mutex
	balances map[int64]decimal.Decimal
	writes   int

	failWriteFor map[int64]bool
}

func newFakeBalances() *fakeBalances {
	return &fakeBalances{
		balances:     map[int64]decimal.Decimal{},
		failWriteFor: map[int64]bool{},
	}
}

func (f *fakeBalances) Balance(_ context.Context, accountID int64) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.balances[accountID]
	if !ok {
		return decimal.Zero, models.ErrAccountNotFound
	}
	return b, nil
}

func (f *fakeBalances) SetBalance(_ context.Context, accountID int64, balance decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWriteFor[accountID] {
		return fmt.Errorf("write rejected for account %d", accountID)
	}
	f.writes++
	f.balances[accountID] = balance
	return nil
}

func (f *fakeBalances) get(accountID int64) decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[accountID]
}

// fakeDirectory resolves accounts from a static map.
type fakeDirectory struct {
	accounts map[int64]*models.Account
}

func (d *fakeDirectory) Account(_ context.Context, accountID int64) (*models.Account, error) {
	if a, ok := d.accounts[accountID]; ok {
		return a, nil
	}
	return nil, models.ErrAccountNotFound
}

func (d *fakeDirectory) FindByNumber(_ context.Context, number string) (*models.Account, error) {
	for _, a := range d.accounts {
		if a.Number == number {
			return a, nil
		}
	}
	return nil, models.ErrAccountNotFound
}

type testEnv struct {
	co       *Coordinator
	store    *fakeStore
	balances *fakeBalances
	gateway  *gateway.MockGateway
	dir      *fakeDirectory
}

func newTestEnv() *testEnv {
	store := newFakeStore()
	balances := newFakeBalances()
	gw := gateway.NewMockGateway()
	dir := &fakeDirectory{accounts: map[int64]*models.Account{
		1: {ID: 1, Number: "100200300", HolderName: "Ana Diaz", AccountType: "SAVINGS"},
		2: {ID: 2, Number: "900800700", HolderName: "Luis Vega", AccountType: "SAVINGS"},
	}}

	guard := idempotency.NewGuard(nil, store, 0)
	co := NewCoordinator(store, dir, ledger.NewAdjuster(balances), gw, guard, "ARCBANK", 24*time.Hour)
	return &testEnv{co: co, store: store, balances: balances, gateway: gw, dir: dir}
}
