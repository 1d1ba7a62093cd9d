package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"vending-kernel/internal/core/domain"
	"vending-kernel/internal/core/ports"
	"vending-kernel/pkg/apperror"
	"vending-kernel/pkg/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// StockAdded is the result of a completed add-stock flow.
type StockAdded struct {
	ProductID  uuid.UUID `json:"product_id"`
	Added      int       `json:"added"`
	StockCount int       `json:"stock_count"`
}

// BalanceGranted is the result of a completed add-balance flow.
type BalanceGranted struct {
	ActorID string `json:"actor_id"`
	Amount  int64  `json:"amount"`
	Balance int64  `json:"balance"`
}

// terminalCall is the kernel call a flow makes once its last step is accepted.
type terminalCall func(ctx context.Context) (interface{}, error)

// stepResult is what parsing one input produced. Exactly one of reprompt,
// terminal, or an advance with fields applies.
type stepResult struct {
	reprompt string
	fields   domain.FlowFields
	terminal terminalCall
}

func reprompt(reason string) (*stepResult, error) {
	return &stepResult{reprompt: reason}, nil
}

// ConversationServiceImpl implements ports.ConversationService.
type ConversationServiceImpl struct {
	store     ports.ConversationStore
	privilege ports.PrivilegeChecker
	catalog   ports.CatalogService
	stock     ports.StockService
	admin     ports.AdminService
	settings  ports.SettingsService
	payments  ports.PaymentService
	metrics   *metrics.KernelMetrics
	log       zerolog.Logger
	now       func() time.Time
}

func NewConversationService(
	store ports.ConversationStore,
	privilege ports.PrivilegeChecker,
	catalog ports.CatalogService,
	stock ports.StockService,
	admin ports.AdminService,
	settings ports.SettingsService,
	payments ports.PaymentService,
	m *metrics.KernelMetrics,
	log zerolog.Logger,
) *ConversationServiceImpl {
	return &ConversationServiceImpl{
		store:     store,
		privilege: privilege,
		catalog:   catalog,
		stock:     stock,
		admin:     admin,
		settings:  settings,
		payments:  payments,
		metrics:   m,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start begins kind for actorID, replacing any unfinished flow.
func (s *ConversationServiceImpl) Start(ctx context.Context, actorID string, req ports.StartFlowRequest) (*ports.FlowOutcome, error) {
	if actorID == "" {
		return nil, apperror.ErrMissingActor()
	}
	if !req.Kind.Valid() {
		return nil, apperror.Validation("unknown flow: " + string(req.Kind))
	}
	if req.Kind.RequiresPrivilege() {
		if err := s.requirePrivilege(ctx, actorID); err != nil {
			return nil, err
		}
	}

	state := domain.NewConversationState(actorID, req.Kind, s.now())
	if req.Kind == domain.FlowEditText {
		if !domain.IsEditableSetting(req.SettingKey) {
			return nil, apperror.InvalidInput("unknown setting: " + req.SettingKey)
		}
		state.Fields.SettingKey = req.SettingKey
	}

	if err := s.store.Put(ctx, state); err != nil {
		s.log.Error().Err(err).Str("actor_id", actorID).Str("flow", string(req.Kind)).Msg("conversation: storing new flow failed")
		return nil, apperror.InternalError(err)
	}

	s.log.Debug().Str("actor_id", actorID).Str("flow", string(state.Flow)).Str("step", string(state.Step)).Msg("conversation: flow started")
	return &ports.FlowOutcome{Kind: ports.OutcomePrompt, Flow: state.Flow, Step: state.Step}, nil
}

// Advance feeds one input to the actor's active flow.
func (s *ConversationServiceImpl) Advance(ctx context.Context, actorID string, input domain.ConversationInput) (*ports.FlowOutcome, error) {
	if actorID == "" {
		return nil, apperror.ErrMissingActor()
	}
	if input.Kind == domain.InputCancel {
		return s.Cancel(ctx, actorID)
	}

	state, err := s.store.Get(ctx, actorID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if state == nil {
		return &ports.FlowOutcome{Kind: ports.OutcomeIdle}, nil
	}

	log := s.log.With().Str("actor_id", actorID).Str("flow", string(state.Flow)).Str("step", string(state.Step)).Logger()

	res, err := s.parse(ctx, state, input)
	if err != nil {
		log.Error().Err(err).Msg("conversation: parsing input failed")
		return nil, err
	}
	if res.reprompt != "" {
		log.Debug().Str("reason", res.reprompt).Msg("conversation: input rejected")
		return &ports.FlowOutcome{Kind: ports.OutcomeReprompt, Flow: state.Flow, Step: state.Step, Reason: res.reprompt}, nil
	}

	if res.terminal == nil {
		next, ok := state.Flow.NextStep(state.Step)
		if !ok {
			log.Error().Msg("conversation: non-terminal result on last step")
			return nil, apperror.InternalError(errors.New("flow has no next step"))
		}
		advanced := state.Clone()
		advanced.Step = next
		advanced.Fields = res.fields

		swapped, err := s.store.CompareAndSwap(ctx, advanced, state.Revision)
		if err != nil {
			return nil, apperror.InternalError(err)
		}
		if !swapped {
			log.Info().Msg("conversation: lost race advancing step")
			return nil, apperror.ErrConcurrentInput()
		}
		return &ports.FlowOutcome{Kind: ports.OutcomePrompt, Flow: advanced.Flow, Step: advanced.Step}, nil
	}

	return s.complete(ctx, state, res.terminal, log)
}

// complete clears the state and, if this caller won the clear, runs the
// terminal kernel call.
func (s *ConversationServiceImpl) complete(ctx context.Context, state *domain.ConversationState, call terminalCall, log zerolog.Logger) (*ports.FlowOutcome, error) {
	won, err := s.store.CompareAndDelete(ctx, state.ActorID, state.Revision)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if !won {
		log.Info().Msg("conversation: lost race on terminal input")
		return nil, apperror.ErrConcurrentInput()
	}

	// The state is gone; the kernel call must finish even if the caller leaves.
	ctx = context.WithoutCancel(ctx)

	var result interface{}
	if state.Flow.RequiresPrivilege() {
		err = s.requirePrivilege(ctx, state.ActorID)
	}
	if err == nil {
		result, err = call(ctx)
	}

	if err != nil {
		var appErr *apperror.AppError
		if !errors.As(err, &appErr) {
			appErr = apperror.InternalError(err)
		}
		log.Info().Err(err).Str("error_code", appErr.Code).Msg("conversation: flow failed")
		s.metrics.IncFlowTerminal(string(state.Flow), "failed")
		return &ports.FlowOutcome{
			Kind:         ports.OutcomeFailed,
			Flow:         state.Flow,
			ErrorCode:    appErr.Code,
			ErrorMessage: appErr.Message,
		}, nil
	}

	log.Info().Msg("conversation: flow committed")
	s.metrics.IncFlowTerminal(string(state.Flow), "committed")
	return &ports.FlowOutcome{Kind: ports.OutcomeCommitted, Flow: state.Flow, Result: result}, nil
}

// Cancel drops the active flow without touching the kernel.
func (s *ConversationServiceImpl) Cancel(ctx context.Context, actorID string) (*ports.FlowOutcome, error) {
	if actorID == "" {
		return nil, apperror.ErrMissingActor()
	}
	state, err := s.store.Get(ctx, actorID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if state == nil {
		return &ports.FlowOutcome{Kind: ports.OutcomeIdle}, nil
	}
	if err := s.store.Delete(ctx, actorID); err != nil {
		return nil, apperror.InternalError(err)
	}
	s.metrics.IncFlowTerminal(string(state.Flow), "cancelled")
	return &ports.FlowOutcome{Kind: ports.OutcomeCancelled, Flow: state.Flow}, nil
}

// Current returns the active state or NoActiveFlow.
func (s *ConversationServiceImpl) Current(ctx context.Context, actorID string) (*domain.ConversationState, error) {
	if actorID == "" {
		return nil, apperror.ErrMissingActor()
	}
	state, err := s.store.Get(ctx, actorID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if state == nil {
		return nil, apperror.ErrNoActiveFlow()
	}
	return state, nil
}

func (s *ConversationServiceImpl) requirePrivilege(ctx context.Context, actorID string) error {
	ok, err := s.privilege.IsPrivileged(ctx, actorID)
	if err != nil {
		return apperror.InternalError(err)
	}
	if !ok {
		return apperror.ErrForbidden()
	}
	return nil
}

// parse validates input against the current step. It never writes state.
func (s *ConversationServiceImpl) parse(ctx context.Context, state *domain.ConversationState, in domain.ConversationInput) (*stepResult, error) {
	if state.Step == domain.StepAwaitingEvidence {
		return s.parseEvidence(state, in)
	}

	switch in.Kind {
	case domain.InputText:
	case domain.InputSkip:
		return reprompt("this step cannot be skipped")
	default:
		return reprompt("a text reply is expected")
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return reprompt("reply must not be empty")
	}
	fields := state.Fields

	switch state.Step {
	case domain.StepAwaitingProductDetails:
		d, reason := parseProductDetails(text)
		if reason != "" {
			return reprompt(reason)
		}
		return &stepResult{terminal: func(ctx context.Context) (interface{}, error) {
			return s.catalog.CreateProduct(ctx, ports.CreateProductRequest{Name: d.name, Description: d.description, Price: d.price})
		}}, nil

	case domain.StepAwaitingProductID:
		id, reason := parseProductID(text)
		if reason != "" {
			return reprompt(reason)
		}
		if _, err := s.catalog.GetProduct(ctx, id); err != nil {
			if apperror.HasCode(err, apperror.CodeNotFound) {
				return reprompt("no product with that id")
			}
			return nil, err
		}
		fields.ProductID = id.String()
		return &stepResult{fields: fields}, nil

	case domain.StepAwaitingCredentials:
		creds, reason := parseCredentials(in.Text)
		if reason != "" {
			return reprompt(reason)
		}
		id, err := uuid.Parse(fields.ProductID)
		if err != nil {
			return nil, apperror.InternalError(err)
		}
		return &stepResult{terminal: func(ctx context.Context) (interface{}, error) {
			count, err := s.stock.AddCredentials(ctx, id, creds)
			if err != nil {
				return nil, err
			}
			return &StockAdded{ProductID: id, Added: len(creds), StockCount: count}, nil
		}}, nil

	case domain.StepAwaitingPriceUpdate:
		id, price, reason := parsePriceUpdate(text)
		if reason != "" {
			return reprompt(reason)
		}
		return &stepResult{terminal: func(ctx context.Context) (interface{}, error) {
			return s.catalog.UpdatePrice(ctx, id, price)
		}}, nil

	case domain.StepAwaitingBalanceGrant:
		target, amount, reason := parseBalanceGrant(text)
		if reason != "" {
			return reprompt(reason)
		}
		return &stepResult{terminal: func(ctx context.Context) (interface{}, error) {
			balance, err := s.admin.AddBalance(ctx, target, amount)
			if err != nil {
				return nil, err
			}
			return &BalanceGranted{ActorID: target, Amount: amount, Balance: balance}, nil
		}}, nil

	case domain.StepAwaitingBroadcast:
		return &stepResult{terminal: func(ctx context.Context) (interface{}, error) {
			return s.admin.Broadcast(ctx, text)
		}}, nil

	case domain.StepAwaitingSettingText:
		key := fields.SettingKey
		return &stepResult{terminal: func(ctx context.Context) (interface{}, error) {
			return s.settings.SetText(ctx, key, text)
		}}, nil

	case domain.StepAwaitingAmount:
		amount, reason := parseAmountStep(text)
		if reason != "" {
			return reprompt(reason)
		}
		fields.Amount = amount
		return &stepResult{fields: fields}, nil

	case domain.StepAwaitingTransactionRef:
		fields.TransactionRef = text
		return &stepResult{fields: fields}, nil
	}

	return nil, apperror.InternalError(errors.New("unknown step " + string(state.Step)))
}

// parseEvidence accepts an attachment or an explicit skip.
func (s *ConversationServiceImpl) parseEvidence(state *domain.ConversationState, in domain.ConversationInput) (*stepResult, error) {
	var evidence *string
	switch {
	case in.Kind == domain.InputAttachment && strings.TrimSpace(in.AttachmentID) != "":
		id := strings.TrimSpace(in.AttachmentID)
		evidence = &id
	case isSkip(in):
	default:
		return reprompt("send a screenshot or skip")
	}

	req := ports.SubmitPaymentRequest{
		ActorID:        state.ActorID,
		Amount:         state.Fields.Amount,
		TransactionRef: state.Fields.TransactionRef,
		EvidenceID:     evidence,
	}
	return &stepResult{terminal: func(ctx context.Context) (interface{}, error) {
		return s.payments.Submit(ctx, req)
	}}, nil
}
