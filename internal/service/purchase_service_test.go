package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"vending-kernel/internal/adapter/storage/memory"
	"vending-kernel/internal/core/domain"
	"vending-kernel/internal/core/ports"
	"vending-kernel/internal/core/ports/mocks"
	"vending-kernel/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type purchaseMocks struct {
	ledger   *mocks.MockLedgerService
	stock    *mocks.MockStockService
	products *mocks.MockProductRepository
	orders   *mocks.MockOrderRepository
	guard    *mocks.MockAttemptGuard
	notifier *mocks.MockNotifier
}

func setupPurchaseService(t *testing.T) (*PurchaseServiceImpl, purchaseMocks) {
	ctrl := gomock.NewController(t)
	m := purchaseMocks{
		ledger:   mocks.NewMockLedgerService(ctrl),
		stock:    mocks.NewMockStockService(ctrl),
		products: mocks.NewMockProductRepository(ctrl),
		orders:   mocks.NewMockOrderRepository(ctrl),
		guard:    mocks.NewMockAttemptGuard(ctrl),
		notifier: mocks.NewMockNotifier(ctrl),
	}
	svc := NewPurchaseService(m.ledger, m.stock, m.products, m.orders, m.guard, m.notifier, nil,
		PurchaseConfig{AttemptTTL: time.Hour, CurrencySymbol: "₹"}, zerolog.Nop())
	return svc, m
}

func testProduct(price int64, stock int) *domain.Product {
	p := domain.NewProduct("Netflix Premium", "1 screen", price, time.Now())
	p.StockCount = stock
	return p
}

var testCred = domain.Credential{Account: "user@mail.com", Secret: "pass123", Validity: "1 Month"}

func TestPurchaseService_Purchase_Success(t *testing.T) {
	svc, m := setupPurchaseService(t)
	ctx := context.Background()
	p := testProduct(19900, 2)

	m.ledger.EXPECT().GetOrCreate(ctx, "42").Return(&domain.Wallet{ActorID: "42", Balance: 50000}, nil)
	m.products.EXPECT().Get(ctx, p.ID).Return(p, nil)
	m.ledger.EXPECT().Debit(gomock.Any(), "42", int64(19900)).Return(int64(30100), nil)
	m.stock.EXPECT().WithdrawOne(gomock.Any(), p.ID).Return(testCred, nil)
	m.orders.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, o *domain.Order) error {
		assert.Equal(t, "42", o.ActorID)
		assert.Equal(t, p.ID, o.ProductID)
		assert.Equal(t, "Netflix Premium", o.ProductName)
		assert.Equal(t, int64(19900), o.Price)
		assert.Equal(t, testCred, o.Credential)
		return nil
	})
	m.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, n domain.Notification) error {
		assert.Equal(t, "42", n.Recipient)
		assert.Equal(t, domain.EventCredentialDelivered, n.Event)
		assert.Equal(t, "pass123", n.Data["secret"])
		assert.Equal(t, "₹199.00", n.Data["price"])
		assert.Equal(t, "₹301.00", n.Data["balance"])
		return nil
	})

	res, err := svc.Purchase(ctx, ports.PurchaseRequest{ActorID: "42", ProductID: p.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(30100), res.Balance)
	assert.Equal(t, testCred, res.Order.Credential)
	assert.False(t, res.Replayed)
}

func TestPurchaseService_Purchase_DeliveryFailureKeepsOrder(t *testing.T) {
	svc, m := setupPurchaseService(t)
	ctx := context.Background()
	p := testProduct(100, 1)

	m.ledger.EXPECT().GetOrCreate(ctx, "42").Return(&domain.Wallet{ActorID: "42", Balance: 100}, nil)
	m.products.EXPECT().Get(ctx, p.ID).Return(p, nil)
	m.ledger.EXPECT().Debit(gomock.Any(), "42", int64(100)).Return(int64(0), nil)
	m.stock.EXPECT().WithdrawOne(gomock.Any(), p.ID).Return(testCred, nil)
	m.orders.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	m.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(errors.New("gateway down"))

	res, err := svc.Purchase(ctx, ports.PurchaseRequest{ActorID: "42", ProductID: p.ID})
	require.NoError(t, err)
	assert.NotNil(t, res.Order)
}

func TestPurchaseService_Purchase_RejectsBeforeDebit(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown product", func(t *testing.T) {
		svc, m := setupPurchaseService(t)
		id := uuid.New()
		m.ledger.EXPECT().GetOrCreate(ctx, "42").Return(&domain.Wallet{ActorID: "42", Balance: 1000}, nil)
		m.products.EXPECT().Get(ctx, id).Return(nil, nil)

		_, err := svc.Purchase(ctx, ports.PurchaseRequest{ActorID: "42", ProductID: id})
		assert.True(t, apperror.HasCode(err, apperror.CodeProductUnavailable))
	})

	t.Run("no stock", func(t *testing.T) {
		svc, m := setupPurchaseService(t)
		p := testProduct(100, 0)
		m.ledger.EXPECT().GetOrCreate(ctx, "42").Return(&domain.Wallet{ActorID: "42", Balance: 1000}, nil)
		m.products.EXPECT().Get(ctx, p.ID).Return(p, nil)

		_, err := svc.Purchase(ctx, ports.PurchaseRequest{ActorID: "42", ProductID: p.ID})
		assert.True(t, apperror.HasCode(err, apperror.CodeOutOfStock))
		assert.NotContains(t, err.Error(), "refunded")
	})

	t.Run("insufficient funds", func(t *testing.T) {
		svc, m := setupPurchaseService(t)
		p := testProduct(1000, 3)
		m.ledger.EXPECT().GetOrCreate(ctx, "42").Return(&domain.Wallet{ActorID: "42", Balance: 999}, nil)
		m.products.EXPECT().Get(ctx, p.ID).Return(p, nil)

		_, err := svc.Purchase(ctx, ports.PurchaseRequest{ActorID: "42", ProductID: p.ID})
		assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientFunds))
	})

	t.Run("missing actor", func(t *testing.T) {
		svc, _ := setupPurchaseService(t)
		_, err := svc.Purchase(ctx, ports.PurchaseRequest{ProductID: uuid.New()})
		assert.Error(t, err)
	})
}

func TestPurchaseService_Purchase_OutOfStockAfterDebitRefunds(t *testing.T) {
	svc, m := setupPurchaseService(t)
	ctx := context.Background()
	p := testProduct(500, 1)

	m.ledger.EXPECT().GetOrCreate(ctx, "42").Return(&domain.Wallet{ActorID: "42", Balance: 500}, nil)
	m.products.EXPECT().Get(ctx, p.ID).Return(p, nil)
	m.ledger.EXPECT().Debit(gomock.Any(), "42", int64(500)).Return(int64(0), nil)
	m.stock.EXPECT().WithdrawOne(gomock.Any(), p.ID).Return(domain.Credential{}, apperror.ErrOutOfStock())
	m.ledger.EXPECT().Credit(gomock.Any(), "42", int64(500)).Return(int64(500), nil)

	_, err := svc.Purchase(ctx, ports.PurchaseRequest{ActorID: "42", ProductID: p.ID})
	assert.True(t, apperror.HasCode(err, apperror.CodeOutOfStock))
	assert.Contains(t, err.Error(), "refunded")
}

func TestPurchaseService_Purchase_OrderFailureRestoresAndRefunds(t *testing.T) {
	svc, m := setupPurchaseService(t)
	ctx := context.Background()
	p := testProduct(500, 1)

	m.ledger.EXPECT().GetOrCreate(ctx, "42").Return(&domain.Wallet{ActorID: "42", Balance: 500}, nil)
	m.products.EXPECT().Get(ctx, p.ID).Return(p, nil)
	m.ledger.EXPECT().Debit(gomock.Any(), "42", int64(500)).Return(int64(0), nil)
	m.stock.EXPECT().WithdrawOne(gomock.Any(), p.ID).Return(testCred, nil)
	m.orders.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))
	m.stock.EXPECT().Restore(gomock.Any(), p.ID, testCred).Return(nil)
	m.ledger.EXPECT().Credit(gomock.Any(), "42", int64(500)).Return(int64(500), nil)

	_, err := svc.Purchase(ctx, ports.PurchaseRequest{ActorID: "42", ProductID: p.ID})
	assert.True(t, apperror.HasCode(err, apperror.CodePurchaseFailed))
}

func TestPurchaseService_Purchase_WithdrawErrorRefunds(t *testing.T) {
	svc, m := setupPurchaseService(t)
	ctx := context.Background()
	p := testProduct(500, 1)

	m.ledger.EXPECT().GetOrCreate(ctx, "42").Return(&domain.Wallet{ActorID: "42", Balance: 500}, nil)
	m.products.EXPECT().Get(ctx, p.ID).Return(p, nil)
	m.ledger.EXPECT().Debit(gomock.Any(), "42", int64(500)).Return(int64(0), nil)
	m.stock.EXPECT().WithdrawOne(gomock.Any(), p.ID).Return(domain.Credential{}, apperror.InternalError(errors.New("conn reset")))
	m.ledger.EXPECT().Credit(gomock.Any(), "42", int64(500)).Return(int64(500), nil)

	_, err := svc.Purchase(ctx, ports.PurchaseRequest{ActorID: "42", ProductID: p.ID})
	assert.True(t, apperror.HasCode(err, apperror.CodePurchaseFailed))
}

func TestPurchaseService_Purchase_CompensationFailure(t *testing.T) {
	svc, m := setupPurchaseService(t)
	ctx := context.Background()
	p := testProduct(500, 1)

	m.ledger.EXPECT().GetOrCreate(ctx, "42").Return(&domain.Wallet{ActorID: "42", Balance: 500}, nil)
	m.products.EXPECT().Get(ctx, p.ID).Return(p, nil)
	m.ledger.EXPECT().Debit(gomock.Any(), "42", int64(500)).Return(int64(0), nil)
	m.stock.EXPECT().WithdrawOne(gomock.Any(), p.ID).Return(domain.Credential{}, apperror.ErrOutOfStock())
	m.ledger.EXPECT().Credit(gomock.Any(), "42", int64(500)).Return(int64(0), apperror.InternalError(errors.New("db gone")))

	_, err := svc.Purchase(ctx, ports.PurchaseRequest{ActorID: "42", ProductID: p.ID})
	assert.True(t, apperror.HasCode(err, apperror.CodeCompensationFailure))
}

func TestPurchaseService_Purchase_CancelledCallerStillCompensates(t *testing.T) {
	svc, m := setupPurchaseService(t)
	ctx, cancel := context.WithCancel(context.Background())
	p := testProduct(500, 1)

	m.ledger.EXPECT().GetOrCreate(ctx, "42").Return(&domain.Wallet{ActorID: "42", Balance: 500}, nil)
	m.products.EXPECT().Get(ctx, p.ID).Return(p, nil)
	m.ledger.EXPECT().Debit(gomock.Any(), "42", int64(500)).DoAndReturn(func(context.Context, string, int64) (int64, error) {
		cancel()
		return 0, nil
	})
	m.stock.EXPECT().WithdrawOne(gomock.Any(), p.ID).Return(domain.Credential{}, apperror.ErrOutOfStock())
	m.ledger.EXPECT().Credit(gomock.Any(), "42", int64(500)).DoAndReturn(func(c context.Context, _ string, _ int64) (int64, error) {
		assert.NoError(t, c.Err(), "compensation must not see the caller's cancellation")
		return 500, nil
	})

	_, err := svc.Purchase(ctx, ports.PurchaseRequest{ActorID: "42", ProductID: p.ID})
	assert.True(t, apperror.HasCode(err, apperror.CodeOutOfStock))
}

func TestPurchaseService_Purchase_AttemptGuard(t *testing.T) {
	ctx := context.Background()
	key := domain.BuildPurchaseAttemptKey("42", "a-1")

	t.Run("in flight", func(t *testing.T) {
		svc, m := setupPurchaseService(t)
		m.guard.EXPECT().Claim(ctx, key, time.Hour).Return(false, nil)
		m.guard.EXPECT().Lookup(ctx, key).Return(&domain.AttemptRecord{Status: domain.AttemptInFlight}, nil)

		_, err := svc.Purchase(ctx, ports.PurchaseRequest{ActorID: "42", ProductID: uuid.New(), AttemptID: "a-1"})
		assert.True(t, apperror.HasCode(err, apperror.CodeDuplicateAttempt))
	})

	t.Run("replays committed order", func(t *testing.T) {
		svc, m := setupPurchaseService(t)
		order := &domain.Order{ID: uuid.New(), ActorID: "42", Credential: testCred, Price: 500}
		m.guard.EXPECT().Claim(ctx, key, time.Hour).Return(false, nil)
		m.guard.EXPECT().Lookup(ctx, key).Return(&domain.AttemptRecord{Status: domain.AttemptCompleted, OrderID: order.ID}, nil)
		m.orders.EXPECT().Get(ctx, order.ID).Return(order, nil)
		m.ledger.EXPECT().Balance(ctx, "42").Return(int64(700), nil)

		res, err := svc.Purchase(ctx, ports.PurchaseRequest{ActorID: "42", ProductID: uuid.New(), AttemptID: "a-1"})
		require.NoError(t, err)
		assert.True(t, res.Replayed)
		assert.Equal(t, order.ID, res.Order.ID)
		assert.Equal(t, testCred, res.Order.Credential)
		assert.Equal(t, int64(700), res.Balance)
	})

	t.Run("cached order missing", func(t *testing.T) {
		svc, m := setupPurchaseService(t)
		id := uuid.New()
		m.guard.EXPECT().Claim(ctx, key, time.Hour).Return(false, nil)
		m.guard.EXPECT().Lookup(ctx, key).Return(&domain.AttemptRecord{Status: domain.AttemptCompleted, OrderID: id}, nil)
		m.orders.EXPECT().Get(ctx, id).Return(nil, nil)

		_, err := svc.Purchase(ctx, ports.PurchaseRequest{ActorID: "42", ProductID: uuid.New(), AttemptID: "a-1"})
		assert.True(t, apperror.HasCode(err, apperror.CodeNotFound))
	})

	t.Run("cached record holds no credential", func(t *testing.T) {
		svc, m := setupPurchaseService(t)
		p := testProduct(500, 1)
		m.guard.EXPECT().Claim(ctx, key, time.Hour).Return(true, nil)
		m.ledger.EXPECT().GetOrCreate(ctx, "42").Return(&domain.Wallet{ActorID: "42", Balance: 500}, nil)
		m.products.EXPECT().Get(ctx, p.ID).Return(p, nil)
		m.ledger.EXPECT().Debit(gomock.Any(), "42", int64(500)).Return(int64(0), nil)
		m.stock.EXPECT().WithdrawOne(gomock.Any(), p.ID).Return(testCred, nil)
		m.orders.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
		m.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil)

		var cached *domain.AttemptRecord
		m.guard.EXPECT().Complete(gomock.Any(), key, gomock.Any(), time.Hour).DoAndReturn(
			func(_ context.Context, _ string, rec *domain.AttemptRecord, _ time.Duration) error {
				cached = rec
				return nil
			})

		res, err := svc.Purchase(ctx, ports.PurchaseRequest{ActorID: "42", ProductID: p.ID, AttemptID: "a-1"})
		require.NoError(t, err)
		require.NotNil(t, cached)
		assert.Equal(t, res.Order.ID, cached.OrderID)

		raw, err := json.Marshal(cached)
		require.NoError(t, err)
		assert.NotContains(t, string(raw), testCred.Secret)
		assert.NotContains(t, string(raw), testCred.Account)
	})

	t.Run("replays cached rejection", func(t *testing.T) {
		svc, m := setupPurchaseService(t)
		m.guard.EXPECT().Claim(ctx, key, time.Hour).Return(false, nil)
		m.guard.EXPECT().Lookup(ctx, key).Return(&domain.AttemptRecord{
			Status:       domain.AttemptCompleted,
			ErrorCode:    apperror.CodeInsufficientFunds,
			ErrorMessage: "Insufficient balance in wallet",
			HTTPStatus:   402,
		}, nil)

		_, err := svc.Purchase(ctx, ports.PurchaseRequest{ActorID: "42", ProductID: uuid.New(), AttemptID: "a-1"})
		assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientFunds))
	})

	t.Run("claimed attempt caches outcome", func(t *testing.T) {
		svc, m := setupPurchaseService(t)
		p := testProduct(500, 0)
		m.guard.EXPECT().Claim(ctx, key, time.Hour).Return(true, nil)
		m.ledger.EXPECT().GetOrCreate(ctx, "42").Return(&domain.Wallet{ActorID: "42"}, nil)
		m.products.EXPECT().Get(ctx, p.ID).Return(p, nil)
		m.guard.EXPECT().Complete(gomock.Any(), key, gomock.Any(), time.Hour).DoAndReturn(
			func(_ context.Context, _ string, rec *domain.AttemptRecord, _ time.Duration) error {
				assert.Equal(t, domain.AttemptCompleted, rec.Status)
				assert.Equal(t, apperror.CodeOutOfStock, rec.ErrorCode)
				assert.Equal(t, uuid.Nil, rec.OrderID)
				return nil
			})

		_, err := svc.Purchase(ctx, ports.PurchaseRequest{ActorID: "42", ProductID: p.ID, AttemptID: "a-1"})
		assert.True(t, apperror.HasCode(err, apperror.CodeOutOfStock))
	})
}

// newMemoryPurchase wires the saga over the in-memory backend.
func newMemoryPurchase(t *testing.T) (*PurchaseServiceImpl, *memory.WalletRepo, *memory.ProductRepo) {
	t.Helper()
	ctrl := gomock.NewController(t)
	notifier := mocks.NewMockNotifier(ctrl)
	notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	wallets := memory.NewWalletRepo()
	products := memory.NewProductRepo()
	log := zerolog.Nop()
	svc := NewPurchaseService(
		NewLedgerService(wallets, log),
		NewStockService(products, log),
		products,
		memory.NewOrderRepo(),
		memory.NewAttemptGuard(),
		notifier,
		nil,
		PurchaseConfig{AttemptTTL: time.Hour, CurrencySymbol: "₹"},
		log,
	)
	return svc, wallets, products
}

func TestPurchaseService_ConcurrentBuyersNeverShareACredential(t *testing.T) {
	svc, wallets, products := newMemoryPurchase(t)
	ctx := context.Background()

	p := domain.NewProduct("Spotify", "", 100, time.Now())
	require.NoError(t, products.Create(ctx, p))
	_, err := products.AppendCredentials(ctx, p.ID, []domain.Credential{
		{Account: "a1", Secret: "s1"}, {Account: "a2", Secret: "s2"}, {Account: "a3", Secret: "s3"},
	})
	require.NoError(t, err)

	const buyers = 20
	for i := 0; i < buyers; i++ {
		_, err := wallets.Credit(ctx, fmt.Sprintf("buyer-%d", i), 100)
		require.NoError(t, err)
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		issued = map[string]int{}
		codes  = map[string]int{}
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.Purchase(ctx, ports.PurchaseRequest{ActorID: fmt.Sprintf("buyer-%d", i), ProductID: p.ID})
			if err != nil {
				mu.Lock()
				codes[apperror.CodeOf(err)]++
				mu.Unlock()
				return
			}
			mu.Lock()
			issued[res.Order.Credential.Account]++
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	assert.Len(t, issued, 3)
	assert.Equal(t, map[string]int{apperror.CodeOutOfStock: buyers - 3}, codes)
	for account, n := range issued {
		assert.Equal(t, 1, n, "credential %s issued more than once", account)
	}

	var total int64
	all, err := wallets.List(ctx)
	require.NoError(t, err)
	for _, w := range all {
		assert.GreaterOrEqual(t, w.Balance, int64(0))
		total += w.Balance
	}
	assert.Equal(t, int64(buyers*100-300), total, "losers must be refunded in full")

	got, err := products.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.StockCount)
}

func TestPurchaseService_ReplayedAttemptNeverDebitsTwice(t *testing.T) {
	svc, wallets, products := newMemoryPurchase(t)
	ctx := context.Background()

	p := domain.NewProduct("Prime", "", 250, time.Now())
	require.NoError(t, products.Create(ctx, p))
	_, err := products.AppendCredentials(ctx, p.ID, []domain.Credential{{Account: "a1", Secret: "s1"}, {Account: "a2", Secret: "s2"}})
	require.NoError(t, err)
	_, err = wallets.Credit(ctx, "42", 1000)
	require.NoError(t, err)

	req := ports.PurchaseRequest{ActorID: "42", ProductID: p.ID, AttemptID: "tap-1"}
	first, err := svc.Purchase(ctx, req)
	require.NoError(t, err)
	second, err := svc.Purchase(ctx, req)
	require.NoError(t, err)

	assert.False(t, first.Replayed)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Order.ID, second.Order.ID)

	w, err := wallets.Get(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, int64(750), w.Balance)

	got, err := products.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.StockCount)
}
