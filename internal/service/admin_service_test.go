package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"vending-kernel/internal/adapter/storage/memory"
	"vending-kernel/internal/core/domain"
	"vending-kernel/internal/core/ports/mocks"
	"vending-kernel/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type adminFixture struct {
	svc      *AdminServiceImpl
	wallets  *memory.WalletRepo
	orders   *memory.OrderRepo
	payments *memory.PaymentRepo
	notifier *mocks.MockNotifier
}

func setupAdminService(t *testing.T) adminFixture {
	ctrl := gomock.NewController(t)
	log := zerolog.Nop()
	wallets := memory.NewWalletRepo()
	f := adminFixture{
		wallets:  wallets,
		orders:   memory.NewOrderRepo(),
		payments: memory.NewPaymentRepo(wallets),
		notifier: mocks.NewMockNotifier(ctrl),
	}
	f.svc = NewAdminService(f.wallets, f.orders, f.payments, NewLedgerService(wallets, log), f.notifier, log)
	return f
}

func TestAdminService_Overview(t *testing.T) {
	f := setupAdminService(t)
	ctx := context.Background()

	_, err := f.wallets.GetOrCreate(ctx, "1")
	require.NoError(t, err)
	_, err = f.wallets.GetOrCreate(ctx, "2")
	require.NoError(t, err)
	for _, price := range []int64{19900, 4900} {
		require.NoError(t, f.orders.Create(ctx, &domain.Order{ID: uuid.New(), ActorID: "1", Price: price, CreatedAt: time.Now()}))
	}
	pr, err := domain.NewPaymentRequest("2", 100, "UTR", nil, time.Now())
	require.NoError(t, err)
	require.NoError(t, f.payments.Create(ctx, pr))

	ov, err := f.svc.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), ov.Users)
	assert.Equal(t, int64(2), ov.Orders)
	assert.Equal(t, int64(24800), ov.Revenue)
	assert.Equal(t, 1, ov.PendingPayments)
}

func TestAdminService_AddBalance(t *testing.T) {
	f := setupAdminService(t)
	ctx := context.Background()

	_, err := f.svc.AddBalance(ctx, "ghost", 100)
	assert.True(t, apperror.HasCode(err, apperror.CodeNotFound), "unknown actors never get a wallet")

	count, err := f.wallets.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = f.wallets.GetOrCreate(ctx, "42")
	require.NoError(t, err)
	balance, err := f.svc.AddBalance(ctx, "42", 2500)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), balance)

	_, err = f.svc.AddBalance(ctx, "42", 0)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidAmount))
}

func TestAdminService_SetAdminAndListUsers(t *testing.T) {
	f := setupAdminService(t)
	ctx := context.Background()

	_, err := f.svc.SetAdmin(ctx, "nobody", true)
	assert.True(t, apperror.HasCode(err, apperror.CodeNotFound))

	_, err = f.wallets.GetOrCreate(ctx, "42")
	require.NoError(t, err)
	w, err := f.svc.SetAdmin(ctx, "42", true)
	require.NoError(t, err)
	assert.True(t, w.IsAdmin)

	users, err := f.svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.True(t, users[0].IsAdmin)
}

func TestAdminService_Broadcast(t *testing.T) {
	f := setupAdminService(t)
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		_, err := f.wallets.GetOrCreate(ctx, id)
		require.NoError(t, err)
	}
	f.notifier.EXPECT().Notify(ctx, gomock.Any()).Times(3).DoAndReturn(func(_ context.Context, n domain.Notification) error {
		assert.Equal(t, domain.EventBroadcast, n.Event)
		assert.Equal(t, "Sale today", n.Text)
		if n.Recipient == "2" {
			return errors.New("blocked")
		}
		return nil
	})

	res, err := f.svc.Broadcast(ctx, "  Sale today ")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Recipients)
	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, 1, res.Failed)

	_, err = f.svc.Broadcast(ctx, " ")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput))
}

func TestAdminService_ListOrders(t *testing.T) {
	f := setupAdminService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, f.orders.Create(ctx, &domain.Order{ID: uuid.New(), ActorID: "1", Price: 100, CreatedAt: time.Now()}))
	}
	orders, err := f.svc.ListOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 3)
}
