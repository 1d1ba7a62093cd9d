package service

import (
	"context"
	"strings"

	"vending-kernel/internal/core/domain"
	"vending-kernel/internal/core/ports"
	"vending-kernel/pkg/apperror"

	"github.com/rs/zerolog"
)

const adminOrderLimit = 50

// AdminServiceImpl implements ports.AdminService.
type AdminServiceImpl struct {
	wallets  ports.WalletRepository
	orders   ports.OrderRepository
	payments ports.PaymentRepository
	ledger   ports.LedgerService
	notifier ports.Notifier
	log      zerolog.Logger
}

func NewAdminService(
	wallets ports.WalletRepository,
	orders ports.OrderRepository,
	payments ports.PaymentRepository,
	ledger ports.LedgerService,
	notifier ports.Notifier,
	log zerolog.Logger,
) *AdminServiceImpl {
	return &AdminServiceImpl{
		wallets:  wallets,
		orders:   orders,
		payments: payments,
		ledger:   ledger,
		notifier: notifier,
		log:      log,
	}
}

func (s *AdminServiceImpl) Overview(ctx context.Context) (*ports.Overview, error) {
	users, err := s.wallets.Count(ctx)
	if err != nil {
		return nil, translate(err)
	}
	totals, err := s.orders.Totals(ctx)
	if err != nil {
		return nil, translate(err)
	}
	pending, err := s.payments.ListByStatus(ctx, domain.PaymentStatusPending, 0)
	if err != nil {
		return nil, translate(err)
	}

	return &ports.Overview{
		Users:           users,
		Orders:          totals.Count,
		Revenue:         totals.Revenue,
		PendingPayments: len(pending),
	}, nil
}

func (s *AdminServiceImpl) ListUsers(ctx context.Context) ([]domain.Wallet, error) {
	wallets, err := s.wallets.List(ctx)
	if err != nil {
		return nil, translate(err)
	}
	return wallets, nil
}

func (s *AdminServiceImpl) SetAdmin(ctx context.Context, actorID string, isAdmin bool) (*domain.Wallet, error) {
	w, err := s.wallets.SetAdmin(ctx, actorID, isAdmin)
	if err != nil {
		return nil, translate(err)
	}
	s.log.Info().Str("actor_id", actorID).Bool("is_admin", isAdmin).Msg("admin: privilege changed")
	return w, nil
}

// AddBalance credits an existing wallet. Unknown actors are NotFound so a
// mistyped id never creates a funded wallet.
func (s *AdminServiceImpl) AddBalance(ctx context.Context, actorID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, apperror.ErrInvalidAmount()
	}
	w, err := s.wallets.Get(ctx, actorID)
	if err != nil {
		return 0, translate(err)
	}
	if w == nil {
		return 0, apperror.ErrNotFound("wallet")
	}
	return s.ledger.Credit(ctx, actorID, amount)
}

// Broadcast sends message to every wallet holder and counts deliveries.
func (s *AdminServiceImpl) Broadcast(ctx context.Context, message string) (*ports.BroadcastResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperror.InvalidInput("message must not be empty")
	}

	wallets, err := s.wallets.List(ctx)
	if err != nil {
		return nil, translate(err)
	}

	result := &ports.BroadcastResult{Recipients: len(wallets)}
	for _, w := range wallets {
		err := s.notifier.Notify(ctx, domain.Notification{
			Recipient: w.ActorID,
			Event:     domain.EventBroadcast,
			Text:      message,
		})
		if err != nil {
			result.Failed++
			s.log.Warn().Err(err).Str("actor_id", w.ActorID).Msg("admin: broadcast delivery failed")
			continue
		}
		result.Sent++
	}

	s.log.Info().Int("recipients", result.Recipients).Int("sent", result.Sent).Int("failed", result.Failed).Msg("admin: broadcast finished")
	return result, nil
}

func (s *AdminServiceImpl) ListOrders(ctx context.Context) ([]domain.Order, error) {
	orders, err := s.orders.ListAll(ctx, adminOrderLimit)
	if err != nil {
		return nil, translate(err)
	}
	return orders, nil
}
