package service

import (
	"context"
	"errors"

	"vending-kernel/internal/core/domain"
	"vending-kernel/internal/core/ports"
	"vending-kernel/pkg/apperror"

	"github.com/rs/zerolog"
)

// LedgerServiceImpl implements ports.LedgerService.
type LedgerServiceImpl struct {
	wallets ports.WalletRepository
	log     zerolog.Logger
}

func NewLedgerService(wallets ports.WalletRepository, log zerolog.Logger) *LedgerServiceImpl {
	return &LedgerServiceImpl{wallets: wallets, log: log}
}

func (s *LedgerServiceImpl) GetOrCreate(ctx context.Context, actorID string) (*domain.Wallet, error) {
	if actorID == "" {
		return nil, apperror.ErrMissingActor()
	}
	w, err := s.wallets.GetOrCreate(ctx, actorID)
	if err != nil {
		s.log.Error().Err(err).Str("actor_id", actorID).Msg("ledger: get or create wallet failed")
		return nil, translate(err)
	}
	return w, nil
}

func (s *LedgerServiceImpl) Balance(ctx context.Context, actorID string) (int64, error) {
	w, err := s.GetOrCreate(ctx, actorID)
	if err != nil {
		return 0, err
	}
	return w.Balance, nil
}

// Credit adds amount and returns the new balance.
func (s *LedgerServiceImpl) Credit(ctx context.Context, actorID string, amount int64) (int64, error) {
	if actorID == "" {
		return 0, apperror.ErrMissingActor()
	}
	if amount <= 0 {
		return 0, apperror.ErrInvalidAmount()
	}

	balance, err := s.wallets.Credit(ctx, actorID, amount)
	if err != nil {
		s.log.Error().Err(err).Str("actor_id", actorID).Int64("amount", amount).Msg("ledger: credit failed")
		return 0, translate(err)
	}

	s.log.Info().Str("actor_id", actorID).Int64("amount", amount).Int64("balance", balance).Msg("ledger: credited")
	return balance, nil
}

// Debit subtracts amount if the balance covers it.
func (s *LedgerServiceImpl) Debit(ctx context.Context, actorID string, amount int64) (int64, error) {
	if actorID == "" {
		return 0, apperror.ErrMissingActor()
	}
	if amount <= 0 {
		return 0, apperror.ErrInvalidAmount()
	}

	balance, err := s.wallets.Debit(ctx, actorID, amount)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) || errors.Is(err, domain.ErrWalletNotFound) {
			s.log.Debug().Str("actor_id", actorID).Int64("amount", amount).Msg("ledger: debit rejected")
			return 0, apperror.ErrInsufficientFunds()
		}
		s.log.Error().Err(err).Str("actor_id", actorID).Int64("amount", amount).Msg("ledger: debit failed")
		return 0, translate(err)
	}

	s.log.Info().Str("actor_id", actorID).Int64("amount", amount).Int64("balance", balance).Msg("ledger: debited")
	return balance, nil
}
