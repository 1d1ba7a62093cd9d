package service

import (
	"context"
	"errors"
	"time"

	"vending-kernel/internal/core/domain"
	"vending-kernel/internal/core/ports"
	"vending-kernel/pkg/apperror"
	"vending-kernel/pkg/metrics"
	"vending-kernel/pkg/money"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Purchase outcomes recorded in metrics.
const (
	outcomeCommitted          = "committed"
	outcomeOutOfStock         = "out_of_stock"
	outcomeInsufficientFunds  = "insufficient_funds"
	outcomeUnavailable        = "unavailable"
	outcomeFailed             = "failed"
	outcomeCompensationFailed = "compensation_failed"
)

const historyLimit = 10

// PurchaseConfig holds tunables of the purchase saga.
type PurchaseConfig struct {
	AttemptTTL     time.Duration
	CurrencySymbol string
}

// PurchaseServiceImpl implements ports.PurchaseService.
type PurchaseServiceImpl struct {
	ledger   ports.LedgerService
	stock    ports.StockService
	products ports.ProductRepository
	orders   ports.OrderRepository
	guard    ports.AttemptGuard
	notifier ports.Notifier
	metrics  *metrics.KernelMetrics
	cfg      PurchaseConfig
	log      zerolog.Logger
}

// NewPurchaseService creates the purchase saga. guard may be nil, in which
// case attempt ids are ignored.
func NewPurchaseService(
	ledger ports.LedgerService,
	stock ports.StockService,
	products ports.ProductRepository,
	orders ports.OrderRepository,
	guard ports.AttemptGuard,
	notifier ports.Notifier,
	m *metrics.KernelMetrics,
	cfg PurchaseConfig,
	log zerolog.Logger,
) *PurchaseServiceImpl {
	return &PurchaseServiceImpl{
		ledger:   ledger,
		stock:    stock,
		products: products,
		orders:   orders,
		guard:    guard,
		notifier: notifier,
		metrics:  m,
		cfg:      cfg,
		log:      log,
	}
}

// purchaseSaga tracks one attempt through its states.
type purchaseSaga struct {
	req     ports.PurchaseRequest
	product *domain.Product
	state   domain.SagaState
	started time.Time
	log     zerolog.Logger
}

func (sg *purchaseSaga) advance(next domain.SagaState) {
	if !sg.state.CanTransition(next) {
		sg.log.Error().Str("saga_state", string(sg.state)).Str("next", string(next)).Msg("purchase: invalid saga transition")
	}
	sg.state = next
}

// Purchase debits the wallet, withdraws one credential and records the
// order. Failures after the debit are compensated with a refund.
func (s *PurchaseServiceImpl) Purchase(ctx context.Context, req ports.PurchaseRequest) (*ports.PurchaseResult, error) {
	if req.ActorID == "" {
		return nil, apperror.ErrMissingActor()
	}
	if req.AttemptID == "" || s.guard == nil {
		return s.run(ctx, req)
	}

	key := domain.BuildPurchaseAttemptKey(req.ActorID, req.AttemptID)
	claimed, err := s.guard.Claim(ctx, key, s.cfg.AttemptTTL)
	if err != nil {
		s.log.Error().Err(err).Str("attempt_id", req.AttemptID).Msg("purchase: attempt claim failed")
		return nil, apperror.InternalError(err)
	}
	if !claimed {
		return s.replay(ctx, req, key)
	}

	result, runErr := s.run(ctx, req)
	s.remember(ctx, key, result, runErr)
	return result, runErr
}

func (s *PurchaseServiceImpl) replay(ctx context.Context, req ports.PurchaseRequest, key string) (*ports.PurchaseResult, error) {
	rec, err := s.guard.Lookup(ctx, key)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if rec == nil || rec.Status != domain.AttemptCompleted {
		s.log.Info().Str("actor_id", req.ActorID).Str("attempt_id", req.AttemptID).Msg("purchase: attempt already in flight")
		return nil, apperror.ErrDuplicateAttempt()
	}
	if rec.OrderID == uuid.Nil {
		return nil, apperror.New(rec.ErrorCode, rec.ErrorMessage, rec.HTTPStatus)
	}

	order, err := s.orders.Get(ctx, rec.OrderID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if order == nil {
		s.log.Error().Str("order_id", rec.OrderID.String()).Str("attempt_id", req.AttemptID).Msg("purchase: cached attempt points at a missing order")
		return nil, apperror.ErrNotFound("order")
	}

	balance, err := s.ledger.Balance(ctx, req.ActorID)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("actor_id", req.ActorID).Str("attempt_id", req.AttemptID).Msg("purchase: replayed completed attempt")
	return &ports.PurchaseResult{Order: order, Balance: balance, Replayed: true}, nil
}

// remember caches the terminal outcome of a claimed attempt.
func (s *PurchaseServiceImpl) remember(ctx context.Context, key string, result *ports.PurchaseResult, runErr error) {
	rec := &domain.AttemptRecord{Status: domain.AttemptCompleted}
	if runErr != nil {
		var appErr *apperror.AppError
		if !errors.As(runErr, &appErr) {
			appErr = apperror.InternalError(runErr)
		}
		rec.ErrorCode = appErr.Code
		rec.ErrorMessage = appErr.Message
		rec.HTTPStatus = appErr.HTTPStatus
	} else {
		rec.OrderID = result.Order.ID
	}

	if err := s.guard.Complete(context.WithoutCancel(ctx), key, rec, s.cfg.AttemptTTL); err != nil {
		s.log.Warn().Err(err).Str("attempt_key", key).Msg("purchase: failed to cache attempt outcome")
	}
}

func (s *PurchaseServiceImpl) run(ctx context.Context, req ports.PurchaseRequest) (*ports.PurchaseResult, error) {
	sg := &purchaseSaga{
		req:     req,
		state:   domain.SagaStarted,
		started: time.Now(),
		log: s.log.With().
			Str("actor_id", req.ActorID).
			Str("product_id", req.ProductID.String()).
			Str("attempt_id", req.AttemptID).
			Logger(),
	}

	wallet, err := s.ledger.GetOrCreate(ctx, req.ActorID)
	if err != nil {
		return nil, err
	}

	product, err := s.products.Get(ctx, req.ProductID)
	if err != nil {
		sg.log.Error().Err(err).Msg("purchase: product lookup failed")
		s.finish(sg, outcomeFailed)
		return nil, translate(err)
	}
	if product == nil {
		return nil, s.reject(sg, outcomeUnavailable, apperror.ErrProductUnavailable())
	}
	if !product.InStock() {
		return nil, s.reject(sg, outcomeOutOfStock, apperror.ErrOutOfStock())
	}
	sg.product = product

	if !wallet.CanAfford(product.Price) {
		return nil, s.reject(sg, outcomeInsufficientFunds, apperror.ErrInsufficientFunds())
	}

	// From here on the actor's money is held; finish the saga even if the
	// caller goes away.
	ctx = context.WithoutCancel(ctx)

	balance, err := s.ledger.Debit(ctx, req.ActorID, product.Price)
	if err != nil {
		if apperror.HasCode(err, apperror.CodeInsufficientFunds) {
			return nil, s.reject(sg, outcomeInsufficientFunds, err)
		}
		sg.log.Error().Err(err).Msg("purchase: debit failed")
		sg.advance(domain.SagaRejected)
		s.finish(sg, outcomeFailed)
		return nil, err
	}
	sg.advance(domain.SagaDebited)

	cred, err := s.stock.WithdrawOne(ctx, req.ProductID)
	if err != nil {
		if apperror.HasCode(err, apperror.CodeOutOfStock) || apperror.HasCode(err, apperror.CodeNotFound) {
			sg.log.Info().Msg("purchase: stock ran out after debit, refunding")
			return nil, s.compensate(ctx, sg, nil, outcomeOutOfStock, apperror.ErrOutOfStockRefunded())
		}
		sg.log.Error().Err(err).Msg("purchase: withdraw failed, refunding")
		return nil, s.compensate(ctx, sg, nil, outcomeFailed, apperror.ErrPurchaseFailed(err))
	}
	sg.advance(domain.SagaWithdrawn)

	order := &domain.Order{
		ID:          uuid.New(),
		ActorID:     req.ActorID,
		ProductID:   product.ID,
		ProductName: product.Name,
		Credential:  cred,
		Price:       product.Price,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.orders.Create(ctx, order); err != nil {
		sg.log.Error().Err(err).Msg("purchase: order create failed, refunding")
		return nil, s.compensate(ctx, sg, &cred, outcomeFailed, apperror.ErrPurchaseFailed(err))
	}
	sg.advance(domain.SagaCommitted)
	s.finish(sg, outcomeCommitted)

	sg.log.Info().Str("order_id", order.ID.String()).Int64("price", order.Price).Int64("balance", balance).Msg("purchase: committed")
	s.deliver(ctx, sg, order, balance)

	return &ports.PurchaseResult{Order: order, Balance: balance}, nil
}

func (s *PurchaseServiceImpl) reject(sg *purchaseSaga, outcome string, err error) error {
	sg.advance(domain.SagaRejected)
	sg.log.Debug().Str("outcome", outcome).Msg("purchase: rejected")
	s.finish(sg, outcome)
	return err
}

// compensate refunds the debit and, when cred was withdrawn, puts it back.
func (s *PurchaseServiceImpl) compensate(ctx context.Context, sg *purchaseSaga, cred *domain.Credential, outcome string, result error) error {
	if cred != nil {
		if err := s.stock.Restore(ctx, sg.req.ProductID, *cred); err != nil {
			sg.log.Error().Err(err).Str("saga_state", string(sg.state)).Msg("purchase: credential restore failed")
		}
	}

	if _, err := s.ledger.Credit(ctx, sg.req.ActorID, sg.product.Price); err != nil {
		prior := sg.state
		sg.advance(domain.SagaCompensationFailed)
		sg.log.WithLevel(zerolog.FatalLevel).Err(err).
			Str("saga_state", string(prior)).
			Int64("amount", sg.product.Price).
			Msg("purchase: compensating credit failed, manual refund required")
		s.metrics.IncCompensation("failed")
		s.finish(sg, outcomeCompensationFailed)
		return apperror.ErrCompensationFailure(err)
	}

	sg.advance(domain.SagaCompensated)
	s.metrics.IncCompensation("applied")
	s.finish(sg, outcome)
	return result
}

func (s *PurchaseServiceImpl) finish(sg *purchaseSaga, outcome string) {
	s.metrics.ObservePurchase(outcome, time.Since(sg.started))
}

// deliver hands the credential to the actor. The order stands regardless.
func (s *PurchaseServiceImpl) deliver(ctx context.Context, sg *purchaseSaga, order *domain.Order, balance int64) {
	err := s.notifier.Notify(ctx, domain.Notification{
		Recipient: order.ActorID,
		Event:     domain.EventCredentialDelivered,
		Data: map[string]string{
			"order_id":     order.ID.String(),
			"product_id":   order.ProductID.String(),
			"product_name": order.ProductName,
			"account":      order.Credential.Account,
			"secret":       order.Credential.Secret,
			"validity":     order.Credential.Validity,
			"note":         order.Credential.Note,
			"price":        money.Format(order.Price, s.cfg.CurrencySymbol),
			"balance":      money.Format(balance, s.cfg.CurrencySymbol),
		},
	})
	if err != nil {
		sg.log.Warn().Err(err).Str("order_id", order.ID.String()).Msg("purchase: credential delivery failed, order remains retrievable")
	}
}

// ListOrders returns the actor's most recent orders.
func (s *PurchaseServiceImpl) ListOrders(ctx context.Context, actorID string) ([]domain.Order, error) {
	if actorID == "" {
		return nil, apperror.ErrMissingActor()
	}
	orders, err := s.orders.ListByActor(ctx, actorID, historyLimit)
	if err != nil {
		return nil, translate(err)
	}
	return orders, nil
}

