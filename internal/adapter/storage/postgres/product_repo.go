package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vending-kernel/internal/core/domain"
	"vending-kernel/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const productColumns = `id, name, description, price, type, stock_count, created_at, updated_at`

// ProductRepo implements ports.ProductRepository. Credentials live in
// product_credentials ordered by position and are sealed at rest.
type ProductRepo struct {
	pool   Pool
	tx     *Transactor
	sealer ports.CredentialSealer
}

// NewProductRepo creates a new ProductRepo.
func NewProductRepo(pool Pool, tx *Transactor, sealer ports.CredentialSealer) *ProductRepo {
	return &ProductRepo{pool: pool, tx: tx, sealer: sealer}
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	p := &domain.Product{}
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Type, &p.StockCount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create inserts a product with zero stock.
func (r *ProductRepo) Create(ctx context.Context, p *domain.Product) error {
	query := `INSERT INTO products (` + productColumns + `) VALUES ($1, $2, $3, $4, $5, 0, $6, $7)`

	_, err := r.pool.Exec(ctx, query, p.ID, p.Name, p.Description, p.Price, p.Type, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// Get fetches a product by id.
func (r *ProductRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// List returns all products, oldest first.
func (r *ProductRepo) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// UpdatePrice changes the price of an existing product.
func (r *ProductRepo) UpdatePrice(ctx context.Context, id uuid.UUID, price int64) (*domain.Product, error) {
	query := `UPDATE products SET price = $2, updated_at = $3 WHERE id = $1 RETURNING ` + productColumns

	p, err := scanProduct(r.pool.QueryRow(ctx, query, id, price, time.Now().UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, fmt.Errorf("update price: %w", err)
	}
	return p, nil
}

func lockProduct(ctx context.Context, tx pgx.Tx, id uuid.UUID) (int, error) {
	var stock int
	err := tx.QueryRow(ctx, `SELECT stock_count FROM products WHERE id = $1 FOR UPDATE`, id).Scan(&stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrProductNotFound
		}
		return 0, fmt.Errorf("lock product: %w", err)
	}
	return stock, nil
}

// AppendCredentials enqueues creds behind the current tail.
func (r *ProductRepo) AppendCredentials(ctx context.Context, id uuid.UUID, creds []domain.Credential) (int, error) {
	sealed := make([]string, 0, len(creds))
	for _, c := range creds {
		s, err := r.sealer.Seal(c)
		if err != nil {
			return 0, fmt.Errorf("seal credential: %w", err)
		}
		sealed = append(sealed, s)
	}

	return withRetry(ctx, r.tx, func(tx pgx.Tx) (int, error) {
		if _, err := lockProduct(ctx, tx, id); err != nil {
			return 0, err
		}

		var tail int64
		err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(position), 0) FROM product_credentials WHERE product_id = $1`, id,
		).Scan(&tail)
		if err != nil {
			return 0, fmt.Errorf("read queue tail: %w", err)
		}

		for i, payload := range sealed {
			_, err := tx.Exec(ctx,
				`INSERT INTO product_credentials (product_id, position, payload) VALUES ($1, $2, $3)`,
				id, tail+int64(i)+1, payload,
			)
			if err != nil {
				return 0, fmt.Errorf("insert credential: %w", err)
			}
		}

		var stock int
		err = tx.QueryRow(ctx,
			`UPDATE products SET stock_count = stock_count + $2, updated_at = $3 WHERE id = $1 RETURNING stock_count`,
			id, len(sealed), time.Now().UTC(),
		).Scan(&stock)
		if err != nil {
			return 0, fmt.Errorf("update stock count: %w", err)
		}
		return stock, nil
	})
}

// PopCredential removes the credential with the lowest position.
func (r *ProductRepo) PopCredential(ctx context.Context, id uuid.UUID) (domain.Credential, error) {
	payload, err := withRetry(ctx, r.tx, func(tx pgx.Tx) (string, error) {
		if _, err := lockProduct(ctx, tx, id); err != nil {
			return "", err
		}

		var payload string
		err := tx.QueryRow(ctx,
			`DELETE FROM product_credentials
			WHERE id = (SELECT id FROM product_credentials WHERE product_id = $1 ORDER BY position ASC LIMIT 1)
			RETURNING payload`, id,
		).Scan(&payload)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return "", domain.ErrOutOfStock
			}
			return "", fmt.Errorf("pop credential: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE products SET stock_count = stock_count - 1 WHERE id = $1`, id,
		); err != nil {
			return "", fmt.Errorf("update stock count: %w", err)
		}
		return payload, nil
	})
	if err != nil {
		return domain.Credential{}, err
	}
	return r.sealer.Open(payload)
}

// RestoreCredential puts cred in front of the current head.
func (r *ProductRepo) RestoreCredential(ctx context.Context, id uuid.UUID, cred domain.Credential) error {
	payload, err := r.sealer.Seal(cred)
	if err != nil {
		return fmt.Errorf("seal credential: %w", err)
	}

	_, err = withRetry(ctx, r.tx, func(tx pgx.Tx) (struct{}, error) {
		if _, err := lockProduct(ctx, tx, id); err != nil {
			return struct{}{}, err
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO product_credentials (product_id, position, payload)
			SELECT $1, COALESCE(MIN(position), 1) - 1, $2 FROM product_credentials WHERE product_id = $1`,
			id, payload,
		); err != nil {
			return struct{}{}, fmt.Errorf("restore credential: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE products SET stock_count = stock_count + 1 WHERE id = $1`, id,
		); err != nil {
			return struct{}{}, fmt.Errorf("update stock count: %w", err)
		}
		return struct{}{}, nil
	})
	return err
}
