package postgres

import (
	"context"
	"fmt"

	"vending-kernel/internal/core/domain"
	"vending-kernel/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const orderColumns = `id, actor_id, product_id, product_name, credential, price, created_at`

// OrderRepo implements ports.OrderRepository. The delivered credential is
// stored sealed.
type OrderRepo struct {
	pool   Pool
	sealer ports.CredentialSealer
}

func NewOrderRepo(pool Pool, sealer ports.CredentialSealer) *OrderRepo {
	return &OrderRepo{pool: pool, sealer: sealer}
}

func (r *OrderRepo) Create(ctx context.Context, o *domain.Order) error {
	sealed, err := r.sealer.Seal(o.Credential)
	if err != nil {
		return fmt.Errorf("seal credential: %w", err)
	}

	query := `INSERT INTO orders (` + orderColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.pool.Exec(ctx, query,
		o.ID, o.ActorID, o.ProductID, o.ProductName, sealed, o.Price, o.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *OrderRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	orders, err := r.collect(rows)
	if err != nil || len(orders) == 0 {
		return nil, err
	}
	return &orders[0], nil
}

// ListByActor returns the actor's orders, newest first.
func (r *OrderRepo) ListByActor(ctx context.Context, actorID string, limit int) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE actor_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, actorID, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("list orders by actor: %w", err)
	}
	return r.collect(rows)
}

// ListAll returns all orders, newest first.
func (r *OrderRepo) ListAll(ctx context.Context, limit int) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return r.collect(rows)
}

func (r *OrderRepo) collect(rows pgx.Rows) ([]domain.Order, error) {
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var (
			o      domain.Order
			sealed string
		)
		if err := rows.Scan(&o.ID, &o.ActorID, &o.ProductID, &o.ProductName, &sealed, &o.Price, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		cred, err := r.sealer.Open(sealed)
		if err != nil {
			return nil, fmt.Errorf("open credential: %w", err)
		}
		o.Credential = cred
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (r *OrderRepo) Totals(ctx context.Context) (*ports.OrderTotals, error) {
	t := &ports.OrderTotals{}
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(price), 0) FROM orders`).Scan(&t.Count, &t.Revenue)
	if err != nil {
		return nil, fmt.Errorf("order totals: %w", err)
	}
	return t, nil
}

// limitOrAll maps a non-positive limit to NULL, which LIMIT treats as no limit.
func limitOrAll(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}
