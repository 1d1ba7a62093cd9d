package service

import (
	"context"
	"strings"
	"time"

	"vending-kernel/internal/core/domain"
	"vending-kernel/internal/core/ports"
	"vending-kernel/pkg/apperror"
	"vending-kernel/pkg/metrics"
	"vending-kernel/pkg/money"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PaymentServiceImpl implements ports.PaymentService.
type PaymentServiceImpl struct {
	payments  ports.PaymentRepository
	ledger    ports.LedgerService
	privilege ports.PrivilegeChecker
	tokens    ports.ActionTokenService
	notifier  ports.Notifier
	metrics   *metrics.KernelMetrics
	symbol    string
	log       zerolog.Logger
}

func NewPaymentService(
	payments ports.PaymentRepository,
	ledger ports.LedgerService,
	privilege ports.PrivilegeChecker,
	tokens ports.ActionTokenService,
	notifier ports.Notifier,
	m *metrics.KernelMetrics,
	currencySymbol string,
	log zerolog.Logger,
) *PaymentServiceImpl {
	return &PaymentServiceImpl{
		payments:  payments,
		ledger:    ledger,
		privilege: privilege,
		tokens:    tokens,
		notifier:  notifier,
		metrics:   m,
		symbol:    currencySymbol,
		log:       log,
	}
}

// Submit records a pending payment request and tells every administrator
// about it.
func (s *PaymentServiceImpl) Submit(ctx context.Context, req ports.SubmitPaymentRequest) (*domain.PaymentRequest, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if strings.TrimSpace(req.TransactionRef) == "" {
		return nil, apperror.InvalidInput("transaction reference is required")
	}
	if _, err := s.ledger.GetOrCreate(ctx, req.ActorID); err != nil {
		return nil, err
	}

	pr, err := domain.NewPaymentRequest(req.ActorID, req.Amount, req.TransactionRef, req.EvidenceID, time.Now().UTC())
	if err != nil {
		return nil, translate(err)
	}
	if req.Notes != nil && strings.TrimSpace(*req.Notes) != "" {
		pr.Notes = req.Notes
	}

	if err := s.payments.Create(ctx, pr); err != nil {
		s.log.Error().Err(err).Str("actor_id", req.ActorID).Msg("payment: create request failed")
		return nil, translate(err)
	}

	s.log.Info().
		Str("payment_id", pr.ID.String()).
		Str("actor_id", pr.ActorID).
		Int64("amount", pr.Amount).
		Msg("payment: request submitted")

	s.fanOut(ctx, pr)
	return pr, nil
}

// fanOut notifies each privileged actor. Failures are per admin and never
// fail the submission.
func (s *PaymentServiceImpl) fanOut(ctx context.Context, pr *domain.PaymentRequest) {
	admins, err := s.privilege.PrivilegedActors(ctx)
	if err != nil {
		s.log.Error().Err(err).Str("payment_id", pr.ID.String()).Msg("payment: listing administrators failed")
		return
	}
	if len(admins) == 0 {
		s.log.Warn().Str("payment_id", pr.ID.String()).Msg("payment: no administrators to notify")
		return
	}

	approve, expiresAt, err := s.tokens.Issue(pr.ID, domain.DecisionApprove)
	if err != nil {
		s.log.Error().Err(err).Str("payment_id", pr.ID.String()).Msg("payment: issuing approve token failed")
		return
	}
	reject, _, err := s.tokens.Issue(pr.ID, domain.DecisionReject)
	if err != nil {
		s.log.Error().Err(err).Str("payment_id", pr.ID.String()).Msg("payment: issuing reject token failed")
		return
	}

	data := map[string]string{
		"payment_id":       pr.ID.String(),
		"actor_id":         pr.ActorID,
		"amount":           money.Format(pr.Amount, s.symbol),
		"transaction_ref":  pr.TransactionRef,
		"approve_token":    approve,
		"reject_token":     reject,
		"token_expires_at": expiresAt.UTC().Format(time.RFC3339),
	}
	if pr.Notes != nil {
		data["notes"] = *pr.Notes
	}

	n := domain.Notification{Event: domain.EventPaymentPending, Data: data}
	if pr.EvidenceID != nil {
		n.AttachmentID = *pr.EvidenceID
	}

	for _, admin := range admins {
		n.Recipient = admin
		if err := s.notifier.Notify(ctx, n); err != nil {
			s.log.Warn().Err(err).Str("payment_id", pr.ID.String()).Str("admin_id", admin).Msg("payment: admin notification failed")
		}
	}
}

// Decide applies an administrator's verdict exactly once.
func (s *PaymentServiceImpl) Decide(ctx context.Context, req ports.DecidePaymentRequest) (*domain.PaymentRequest, error) {
	if !req.Decision.Valid() {
		return nil, apperror.Validation("decision must be approve or reject")
	}
	ok, err := s.privilege.IsPrivileged(ctx, req.AdminID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if !ok {
		s.log.Warn().Str("admin_id", req.AdminID).Str("payment_id", req.RequestID.String()).Msg("payment: decision by unprivileged actor")
		return nil, apperror.ErrForbidden()
	}

	res, err := s.payments.ApplyDecision(ctx, ports.PaymentDecisionParams{
		RequestID: req.RequestID,
		Decision:  req.Decision,
		AdminID:   req.AdminID,
		DecidedAt: time.Now().UTC(),
	})
	if err != nil {
		appErr := translate(err)
		if code := apperror.CodeOf(appErr); code == apperror.CodeAlreadyProcessed || code == apperror.CodeNotFound {
			s.log.Info().Err(err).Str("payment_id", req.RequestID.String()).Msg("payment: decision rejected")
			s.metrics.IncDecision(string(req.Decision), "rejected")
		} else {
			s.log.Error().Err(err).Str("payment_id", req.RequestID.String()).Msg("payment: decision failed")
			s.metrics.IncDecision(string(req.Decision), "error")
		}
		return nil, appErr
	}
	s.metrics.IncDecision(string(req.Decision), "applied")

	pr := res.Request
	s.log.Info().
		Str("payment_id", pr.ID.String()).
		Str("actor_id", pr.ActorID).
		Str("admin_id", req.AdminID).
		Str("status", string(pr.Status)).
		Msg("payment: decision applied")

	s.notifyOutcome(ctx, pr, res.NewBalance)
	return pr, nil
}

func (s *PaymentServiceImpl) notifyOutcome(ctx context.Context, pr *domain.PaymentRequest, balance int64) {
	n := domain.Notification{
		Recipient: pr.ActorID,
		Event:     domain.EventPaymentRejected,
		Data: map[string]string{
			"payment_id":      pr.ID.String(),
			"amount":          money.Format(pr.Amount, s.symbol),
			"transaction_ref": pr.TransactionRef,
		},
	}
	if pr.Status == domain.PaymentStatusApproved {
		n.Event = domain.EventPaymentApproved
		n.Data["balance"] = money.Format(balance, s.symbol)
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.log.Warn().Err(err).Str("payment_id", pr.ID.String()).Msg("payment: outcome notification failed")
	}
}

// DecideWithToken applies the decision bound into a signed action token.
func (s *PaymentServiceImpl) DecideWithToken(ctx context.Context, token string, adminID string) (*domain.PaymentRequest, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		s.log.Debug().Err(err).Str("admin_id", adminID).Msg("payment: action token rejected")
		return nil, apperror.ErrInvalidToken()
	}
	return s.Decide(ctx, ports.DecidePaymentRequest{
		RequestID: claims.RequestID,
		Decision:  claims.Decision,
		AdminID:   adminID,
	})
}

func (s *PaymentServiceImpl) Get(ctx context.Context, id uuid.UUID) (*domain.PaymentRequest, error) {
	pr, err := s.payments.Get(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if pr == nil {
		return nil, apperror.ErrNotFound("payment request")
	}
	return pr, nil
}

// ListPending returns every pending request, oldest first.
func (s *PaymentServiceImpl) ListPending(ctx context.Context) ([]domain.PaymentRequest, error) {
	list, err := s.payments.ListByStatus(ctx, domain.PaymentStatusPending, 0)
	if err != nil {
		return nil, translate(err)
	}
	return list, nil
}

// ListByActor returns the actor's latest requests, newest first.
func (s *PaymentServiceImpl) ListByActor(ctx context.Context, actorID string) ([]domain.PaymentRequest, error) {
	if actorID == "" {
		return nil, apperror.ErrMissingActor()
	}
	list, err := s.payments.ListByActor(ctx, actorID, historyLimit)
	if err != nil {
		return nil, translate(err)
	}
	return list, nil
}
