package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"vending-kernel/internal/core/domain"
	"vending-kernel/internal/core/ports"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletRepo_CreditDebit(t *testing.T) {
	repo := NewWalletRepo()
	ctx := context.Background()

	w, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, w)

	_, err = repo.Debit(ctx, "u1", 10)
	assert.ErrorIs(t, err, domain.ErrWalletNotFound)

	bal, err := repo.Credit(ctx, "u1", 500)
	require.NoError(t, err)
	assert.Equal(t, int64(500), bal)

	bal, err = repo.Debit(ctx, "u1", 200)
	require.NoError(t, err)
	assert.Equal(t, int64(300), bal)

	bal, err = repo.Debit(ctx, "u1", 301)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, int64(300), bal)
}

func TestWalletRepo_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	repo := NewWalletRepo()
	ctx := context.Background()
	_, _ = repo.Credit(ctx, "u1", 1000)

	var ok int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Debit(ctx, "u1", 100); err == nil {
				atomic.AddInt32(&ok, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), ok)
	w, _ := repo.Get(ctx, "u1")
	assert.Equal(t, int64(0), w.Balance)
}

func TestWalletRepo_AdminsAndCount(t *testing.T) {
	repo := NewWalletRepo()
	ctx := context.Background()

	_, err := repo.SetAdmin(ctx, "ghost", true)
	assert.ErrorIs(t, err, domain.ErrWalletNotFound)

	_, _ = repo.GetOrCreate(ctx, "a")
	_, _ = repo.GetOrCreate(ctx, "b")
	w, err := repo.SetAdmin(ctx, "b", true)
	require.NoError(t, err)
	assert.True(t, w.IsAdmin)

	ids, err := repo.ListAdminIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)

	n, _ := repo.Count(ctx)
	assert.Equal(t, int64(2), n)
}

func TestProductRepo_QueueIsFIFO(t *testing.T) {
	repo := NewProductRepo()
	ctx := context.Background()
	p := domain.NewProduct("Netflix", "1 month", 19900, time.Now())
	require.NoError(t, repo.Create(ctx, p))

	n, err := repo.AppendCredentials(ctx, p.ID, []domain.Credential{
		{Account: "a1", Secret: "s1"},
		{Account: "a2", Secret: "s2"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	c, err := repo.PopCredential(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "a1", c.Account)

	require.NoError(t, repo.RestoreCredential(ctx, p.ID, c))
	got, _ := repo.Get(ctx, p.ID)
	assert.Equal(t, 2, got.StockCount)

	c, _ = repo.PopCredential(ctx, p.ID)
	assert.Equal(t, "a1", c.Account)
	c, _ = repo.PopCredential(ctx, p.ID)
	assert.Equal(t, "a2", c.Account)

	_, err = repo.PopCredential(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrOutOfStock)

	_, err = repo.PopCredential(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestProductRepo_ConcurrentPopsIssueEachCredentialOnce(t *testing.T) {
	repo := NewProductRepo()
	ctx := context.Background()
	p := domain.NewProduct("VPN", "", 100, time.Now())
	require.NoError(t, repo.Create(ctx, p))

	var creds []domain.Credential
	for i := 0; i < 20; i++ {
		creds = append(creds, domain.Credential{Account: uuid.NewString(), Secret: "x"})
	}
	_, err := repo.AppendCredentials(ctx, p.ID, creds)
	require.NoError(t, err)

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := repo.PopCredential(ctx, p.ID)
			if err != nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			assert.False(t, seen[c.Account], "credential issued twice")
			seen[c.Account] = true
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 20)
	got, _ := repo.Get(ctx, p.ID)
	assert.Equal(t, 0, got.StockCount)
}

func TestOrderRepo_ListsNewestFirst(t *testing.T) {
	repo := NewOrderRepo()
	ctx := context.Background()
	for i, actor := range []string{"u1", "u2", "u1"} {
		require.NoError(t, repo.Create(ctx, &domain.Order{ID: uuid.New(), ActorID: actor, Price: int64(100 * (i + 1))}))
	}

	mine, err := repo.ListByActor(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, int64(300), mine[0].Price)

	all, _ := repo.ListAll(ctx, 2)
	assert.Len(t, all, 2)

	totals, _ := repo.Totals(ctx)
	assert.Equal(t, int64(3), totals.Count)
	assert.Equal(t, int64(600), totals.Revenue)
}

func TestOrderRepo_Get(t *testing.T) {
	repo := NewOrderRepo()
	ctx := context.Background()
	o := &domain.Order{ID: uuid.New(), ActorID: "u1", Credential: domain.Credential{Account: "a", Secret: "s"}}
	require.NoError(t, repo.Create(ctx, o))

	got, err := repo.Get(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "s", got.Credential.Secret)

	missing, err := repo.Get(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestPaymentRepo_ApproveCreditsOnce(t *testing.T) {
	wallets := NewWalletRepo()
	repo := NewPaymentRepo(wallets)
	ctx := context.Background()

	req, err := domain.NewPaymentRequest("u1", 5000, "UTR123", nil, time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, req))

	params := ports.PaymentDecisionParams{
		RequestID: req.ID,
		Decision:  domain.DecisionApprove,
		AdminID:   "admin",
		DecidedAt: time.Now(),
	}

	var ok int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.ApplyDecision(ctx, params); err == nil {
				atomic.AddInt32(&ok, 1)
			} else {
				assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok)
	w, _ := wallets.Get(ctx, "u1")
	assert.Equal(t, int64(5000), w.Balance)

	got, _ := repo.Get(ctx, req.ID)
	assert.Equal(t, domain.PaymentStatusApproved, got.Status)
	require.NotNil(t, got.VerifiedBy)
	assert.Equal(t, "admin", *got.VerifiedBy)

	pending, _ := repo.ListByStatus(ctx, domain.PaymentStatusPending, 0)
	assert.Empty(t, pending)
}

func TestPaymentRepo_RejectLeavesWallet(t *testing.T) {
	wallets := NewWalletRepo()
	repo := NewPaymentRepo(wallets)
	ctx := context.Background()

	req, _ := domain.NewPaymentRequest("u1", 100, "ref", nil, time.Now())
	require.NoError(t, repo.Create(ctx, req))

	res, err := repo.ApplyDecision(ctx, ports.PaymentDecisionParams{RequestID: req.ID, Decision: domain.DecisionReject, AdminID: "a"})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusRejected, res.Request.Status)
	assert.Equal(t, int64(0), res.NewBalance)

	w, _ := wallets.Get(ctx, "u1")
	assert.Nil(t, w)

	_, err = repo.ApplyDecision(ctx, ports.PaymentDecisionParams{RequestID: uuid.New(), Decision: domain.DecisionReject})
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
}

func TestConversationStore_CompareAndSwap(t *testing.T) {
	store := NewConversationStore(time.Minute)
	ctx := context.Background()

	st := domain.NewConversationState("u1", domain.FlowSubmitPayment, time.Now())
	require.NoError(t, store.Put(ctx, st))
	first := st.Revision
	require.NotEmpty(t, first)

	next := st.Clone()
	next.Step = domain.StepAwaitingTransactionRef
	swapped, err := store.CompareAndSwap(ctx, next, first)
	require.NoError(t, err)
	assert.True(t, swapped)
	assert.NotEqual(t, first, next.Revision)

	stale := st.Clone()
	swapped, _ = store.CompareAndSwap(ctx, stale, first)
	assert.False(t, swapped, "stale revision must lose")

	deleted, _ := store.CompareAndDelete(ctx, "u1", first)
	assert.False(t, deleted)
	deleted, _ = store.CompareAndDelete(ctx, "u1", next.Revision)
	assert.True(t, deleted)

	got, _ := store.Get(ctx, "u1")
	assert.Nil(t, got)
}

func TestConversationStore_Expiry(t *testing.T) {
	store := NewConversationStore(time.Minute)
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, domain.NewConversationState("u1", domain.FlowBroadcast, now)))
	now = now.Add(2 * time.Minute)

	got, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAttemptGuard_ClaimCompleteLookup(t *testing.T) {
	g := NewAttemptGuard()
	ctx := context.Background()
	key := domain.BuildPurchaseAttemptKey("u1", "att-1")

	ok, err := g.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = g.Claim(ctx, key, time.Minute)
	assert.False(t, ok)

	rec, _ := g.Lookup(ctx, key)
	require.NotNil(t, rec)
	assert.Equal(t, domain.AttemptInFlight, rec.Status)

	require.NoError(t, g.Complete(ctx, key, &domain.AttemptRecord{Status: domain.AttemptCompleted, ErrorCode: "SHOP_002"}, time.Minute))
	rec, _ = g.Lookup(ctx, key)
	assert.Equal(t, "SHOP_002", rec.ErrorCode)
}

func TestAttemptGuard_ExpiredClaimCanBeRetaken(t *testing.T) {
	g := NewAttemptGuard()
	now := time.Now()
	g.now = func() time.Time { return now }
	ctx := context.Background()

	ok, _ := g.Claim(ctx, "k", time.Second)
	assert.True(t, ok)
	now = now.Add(2 * time.Second)
	ok, _ = g.Claim(ctx, "k", time.Second)
	assert.True(t, ok)
}

func TestNonceStore_Replay(t *testing.T) {
	s := NewNonceStore()
	now := time.Now()
	s.now = func() time.Time { return now }
	ctx := context.Background()

	ok, _ := s.CheckAndSet(ctx, "gw", "n1", time.Minute)
	assert.True(t, ok)
	ok, _ = s.CheckAndSet(ctx, "gw", "n1", time.Minute)
	assert.False(t, ok)
	ok, _ = s.CheckAndSet(ctx, "other", "n1", time.Minute)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = s.CheckAndSet(ctx, "gw", "n1", time.Minute)
	assert.True(t, ok)
}

func TestSettingRepo(t *testing.T) {
	repo := NewSettingRepo()
	ctx := context.Background()

	s, err := repo.Get(ctx, "help_text")
	require.NoError(t, err)
	assert.Nil(t, s)

	_, err = repo.Set(ctx, "help_text", "Ask us")
	require.NoError(t, err)
	s, _ = repo.Get(ctx, "help_text")
	assert.Equal(t, "Ask us", s.Value)
}

var (
	_ ports.WalletRepository  = (*WalletRepo)(nil)
	_ ports.ProductRepository = (*ProductRepo)(nil)
	_ ports.OrderRepository   = (*OrderRepo)(nil)
	_ ports.PaymentRepository = (*PaymentRepo)(nil)
	_ ports.SettingRepository = (*SettingRepo)(nil)
	_ ports.ConversationStore = (*ConversationStore)(nil)
	_ ports.AttemptGuard      = (*AttemptGuard)(nil)
	_ ports.NonceStore        = (*NonceStore)(nil)
)
