package service

import (
	"context"
	"strings"
	"time"

	"vending-kernel/internal/core/domain"
	"vending-kernel/internal/core/ports"
	"vending-kernel/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CatalogServiceImpl implements ports.CatalogService.
type CatalogServiceImpl struct {
	products ports.ProductRepository
	log      zerolog.Logger
}

func NewCatalogService(products ports.ProductRepository, log zerolog.Logger) *CatalogServiceImpl {
	return &CatalogServiceImpl{products: products, log: log}
}

func (s *CatalogServiceImpl) CreateProduct(ctx context.Context, req ports.CreateProductRequest) (*domain.Product, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperror.InvalidInput("product name is required")
	}
	if req.Price <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	p := domain.NewProduct(req.Name, req.Description, req.Price, time.Now().UTC())
	if err := s.products.Create(ctx, p); err != nil {
		s.log.Error().Err(err).Str("name", p.Name).Msg("catalog: create product failed")
		return nil, translate(err)
	}

	s.log.Info().Str("product_id", p.ID.String()).Str("name", p.Name).Int64("price", p.Price).Msg("catalog: product created")
	return p, nil
}

func (s *CatalogServiceImpl) UpdatePrice(ctx context.Context, productID uuid.UUID, price int64) (*domain.Product, error) {
	if price <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	p, err := s.products.UpdatePrice(ctx, productID, price)
	if err != nil {
		return nil, translate(err)
	}
	s.log.Info().Str("product_id", productID.String()).Int64("price", price).Msg("catalog: price updated")
	return p, nil
}

func (s *CatalogServiceImpl) GetProduct(ctx context.Context, productID uuid.UUID) (*domain.Product, error) {
	p, err := s.products.Get(ctx, productID)
	if err != nil {
		return nil, translate(err)
	}
	if p == nil {
		return nil, apperror.ErrNotFound("product")
	}
	return p, nil
}

func (s *CatalogServiceImpl) ListProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := s.products.List(ctx)
	if err != nil {
		return nil, translate(err)
	}
	return products, nil
}
