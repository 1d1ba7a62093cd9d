package service

import (
	"context"
	"fmt"

	"vending-kernel/internal/core/domain"
	"vending-kernel/internal/core/ports"
	"vending-kernel/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// StockServiceImpl implements ports.StockService.
type StockServiceImpl struct {
	products ports.ProductRepository
	log      zerolog.Logger
}

func NewStockService(products ports.ProductRepository, log zerolog.Logger) *StockServiceImpl {
	return &StockServiceImpl{products: products, log: log}
}

// AddCredentials appends creds to the product queue and returns the stock count.
func (s *StockServiceImpl) AddCredentials(ctx context.Context, productID uuid.UUID, creds []domain.Credential) (int, error) {
	if len(creds) == 0 {
		return 0, apperror.InvalidInput("at least one credential is required")
	}
	for i, c := range creds {
		if err := c.Validate(); err != nil {
			return 0, apperror.InvalidInput(fmt.Sprintf("credential %d: account and secret are required", i+1))
		}
	}

	count, err := s.products.AppendCredentials(ctx, productID, creds)
	if err != nil {
		s.log.Warn().Err(err).Str("product_id", productID.String()).Msg("stock: append failed")
		return 0, translate(err)
	}

	s.log.Info().Str("product_id", productID.String()).Int("added", len(creds)).Int("stock_count", count).Msg("stock: credentials added")
	return count, nil
}

// WithdrawOne pops the oldest credential.
func (s *StockServiceImpl) WithdrawOne(ctx context.Context, productID uuid.UUID) (domain.Credential, error) {
	cred, err := s.products.PopCredential(ctx, productID)
	if err != nil {
		return domain.Credential{}, translate(err)
	}
	return cred, nil
}

// Restore returns a credential that could not be delivered to the queue head.
func (s *StockServiceImpl) Restore(ctx context.Context, productID uuid.UUID, cred domain.Credential) error {
	if err := s.products.RestoreCredential(ctx, productID, cred); err != nil {
		return translate(err)
	}
	s.log.Info().Str("product_id", productID.String()).Msg("stock: credential restored")
	return nil
}
