package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vending-kernel/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// SettingRepo implements ports.SettingRepository.
type SettingRepo struct {
	pool Pool
}

func NewSettingRepo(pool Pool) *SettingRepo {
	return &SettingRepo{pool: pool}
}

func (r *SettingRepo) Get(ctx context.Context, key string) (*domain.Setting, error) {
	s := &domain.Setting{}
	err := r.pool.QueryRow(ctx, `SELECT key, value, updated_at FROM settings WHERE key = $1`, key).
		Scan(&s.Key, &s.Value, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get setting: %w", err)
	}
	return s, nil
}

func (r *SettingRepo) Set(ctx context.Context, key, value string) (*domain.Setting, error) {
	query := `INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
		RETURNING key, value, updated_at`

	s := &domain.Setting{}
	err := r.pool.QueryRow(ctx, query, key, value, time.Now().UTC()).Scan(&s.Key, &s.Value, &s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("set setting: %w", err)
	}
	return s, nil
}
