package service

import (
	"context"
	"testing"

	"vending-kernel/internal/adapter/storage/memory"
	"vending-kernel/internal/core/domain"
	"vending-kernel/internal/core/ports"
	"vending-kernel/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogService_CreateUpdateGet(t *testing.T) {
	ctx := context.Background()
	svc := NewCatalogService(memory.NewProductRepo(), zerolog.Nop())

	p, err := svc.CreateProduct(ctx, ports.CreateProductRequest{Name: "  YouTube Premium ", Description: "family", Price: 9900})
	require.NoError(t, err)
	assert.Equal(t, "YouTube Premium", p.Name)
	assert.Equal(t, domain.ProductTypeSubscription, p.Type)

	updated, err := svc.UpdatePrice(ctx, p.ID, 12900)
	require.NoError(t, err)
	assert.Equal(t, int64(12900), updated.Price)

	got, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(12900), got.Price)

	list, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCatalogService_Validation(t *testing.T) {
	ctx := context.Background()
	svc := NewCatalogService(memory.NewProductRepo(), zerolog.Nop())

	_, err := svc.CreateProduct(ctx, ports.CreateProductRequest{Name: " ", Price: 100})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput))

	_, err = svc.CreateProduct(ctx, ports.CreateProductRequest{Name: "x", Price: 0})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidAmount))

	_, err = svc.UpdatePrice(ctx, uuid.New(), 100)
	assert.True(t, apperror.HasCode(err, apperror.CodeNotFound))

	_, err = svc.GetProduct(ctx, uuid.New())
	assert.True(t, apperror.HasCode(err, apperror.CodeNotFound))
}

func TestStockService_AddWithdrawRestore(t *testing.T) {
	ctx := context.Background()
	products := memory.NewProductRepo()
	catalog := NewCatalogService(products, zerolog.Nop())
	stock := NewStockService(products, zerolog.Nop())

	p, err := catalog.CreateProduct(ctx, ports.CreateProductRequest{Name: "Canva Pro", Price: 4900})
	require.NoError(t, err)

	count, err := stock.AddCredentials(ctx, p.ID, []domain.Credential{
		{Account: "a1", Secret: "s1"},
		{Account: "a2", Secret: "s2"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	first, err := stock.WithdrawOne(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "a1", first.Account)

	require.NoError(t, stock.Restore(ctx, p.ID, first))
	again, err := stock.WithdrawOne(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "a1", again.Account, "restored credential goes back to the head")

	_, err = stock.WithdrawOne(ctx, p.ID)
	require.NoError(t, err)
	_, err = stock.WithdrawOne(ctx, p.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeOutOfStock))
}

func TestStockService_Validation(t *testing.T) {
	ctx := context.Background()
	stock := NewStockService(memory.NewProductRepo(), zerolog.Nop())

	_, err := stock.AddCredentials(ctx, uuid.New(), nil)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput))

	_, err = stock.AddCredentials(ctx, uuid.New(), []domain.Credential{{Account: "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credential 1")

	_, err = stock.AddCredentials(ctx, uuid.New(), []domain.Credential{{Account: "a", Secret: "s"}})
	assert.True(t, apperror.HasCode(err, apperror.CodeNotFound))

	_, err = stock.WithdrawOne(ctx, uuid.New())
	assert.True(t, apperror.HasCode(err, apperror.CodeNotFound))
}

func TestSettingsService(t *testing.T) {
	ctx := context.Background()
	svc := NewSettingsService(memory.NewSettingRepo(), zerolog.Nop())

	def, err := svc.GetText(ctx, "home_text")
	require.NoError(t, err)
	assert.NotEmpty(t, def.Value)

	set, err := svc.SetText(ctx, "home_text", "  Hello shoppers  ")
	require.NoError(t, err)
	assert.Equal(t, "Hello shoppers", set.Value)

	got, err := svc.GetText(ctx, "home_text")
	require.NoError(t, err)
	assert.Equal(t, "Hello shoppers", got.Value)

	_, err = svc.SetText(ctx, "home_text", "   ")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput))

	_, err = svc.SetText(ctx, "db_password", "x")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput))

	_, err = svc.GetText(ctx, "db_password")
	assert.True(t, apperror.HasCode(err, apperror.CodeNotFound))
}
