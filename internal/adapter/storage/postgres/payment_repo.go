package postgres

import (
	"context"
	"errors"
	"fmt"

	"vending-kernel/internal/core/domain"
	"vending-kernel/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const paymentColumns = `id, actor_id, amount, transaction_ref, evidence_id, notes, status, verified_by, verified_at, created_at`

// PaymentRepo implements ports.PaymentRepository.
type PaymentRepo struct {
	pool Pool
	tx   *Transactor
}

func NewPaymentRepo(pool Pool, tx *Transactor) *PaymentRepo {
	return &PaymentRepo{pool: pool, tx: tx}
}

func scanPayment(row pgx.Row) (*domain.PaymentRequest, error) {
	p := &domain.PaymentRequest{}
	err := row.Scan(
		&p.ID, &p.ActorID, &p.Amount, &p.TransactionRef, &p.EvidenceID, &p.Notes,
		&p.Status, &p.VerifiedBy, &p.VerifiedAt, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PaymentRepo) Create(ctx context.Context, p *domain.PaymentRequest) error {
	query := `INSERT INTO payment_requests (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.ActorID, p.Amount, p.TransactionRef, p.EvidenceID, p.Notes,
		p.Status, p.VerifiedBy, p.VerifiedAt, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment request: %w", err)
	}
	return nil
}

func (r *PaymentRepo) Get(ctx context.Context, id uuid.UUID) (*domain.PaymentRequest, error) {
	p, err := scanPayment(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payment_requests WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment request: %w", err)
	}
	return p, nil
}

// ListByStatus returns requests with status, oldest first.
func (r *PaymentRepo) ListByStatus(ctx context.Context, status domain.PaymentStatus, limit int) ([]domain.PaymentRequest, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_requests WHERE status = $1 ORDER BY created_at ASC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, status, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("list payment requests by status: %w", err)
	}
	return collectPayments(rows)
}

// ListByActor returns the actor's requests, newest first.
func (r *PaymentRepo) ListByActor(ctx context.Context, actorID string, limit int) ([]domain.PaymentRequest, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_requests WHERE actor_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, actorID, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("list payment requests by actor: %w", err)
	}
	return collectPayments(rows)
}

func collectPayments(rows pgx.Rows) ([]domain.PaymentRequest, error) {
	defer rows.Close()

	var out []domain.PaymentRequest
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment request: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// ApplyDecision locks the request, records the decision and, for an
// approval, credits the wallet before committing.
func (r *PaymentRepo) ApplyDecision(ctx context.Context, params ports.PaymentDecisionParams) (*ports.PaymentDecisionResult, error) {
	return withRetry(ctx, r.tx, func(tx pgx.Tx) (*ports.PaymentDecisionResult, error) {
		req, err := scanPayment(tx.QueryRow(ctx,
			`SELECT `+paymentColumns+` FROM payment_requests WHERE id = $1 FOR UPDATE`, params.RequestID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, domain.ErrPaymentNotFound
			}
			return nil, fmt.Errorf("lock payment request: %w", err)
		}

		if err := req.Decide(params.Decision, params.AdminID, params.DecidedAt); err != nil {
			return nil, err
		}

		if _, err := tx.Exec(ctx,
			`UPDATE payment_requests SET status = $2, verified_by = $3, verified_at = $4 WHERE id = $1`,
			req.ID, req.Status, req.VerifiedBy, req.VerifiedAt,
		); err != nil {
			return nil, fmt.Errorf("update payment request: %w", err)
		}

		result := &ports.PaymentDecisionResult{Request: req}
		if params.Decision == domain.DecisionApprove {
			balance, err := creditWallet(ctx, tx, req.ActorID, req.Amount)
			if err != nil {
				return nil, fmt.Errorf("credit wallet: %w", err)
			}
			result.NewBalance = balance
		}
		return result, nil
	})
}
