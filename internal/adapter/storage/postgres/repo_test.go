package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"vending-kernel/internal/core/domain"
	"vending-kernel/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// plainSealer stores credentials as JSON so tests can build rows by hand.
type plainSealer struct{}

func (plainSealer) Seal(c domain.Credential) (string, error) {
	b, err := json.Marshal(c)
	return string(b), err
}

func (plainSealer) Open(s string) (domain.Credential, error) {
	var c domain.Credential
	err := json.Unmarshal([]byte(s), &c)
	return c, err
}

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *Transactor) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	tx := NewTransactor(mock, 2, zerolog.Nop())
	tx.backoff = time.Millisecond
	return mock, tx
}

func TestWalletRepo_Get_NotFound(t *testing.T) {
	mock, tx := newMock(t)
	repo := NewWalletRepo(mock, tx)

	mock.ExpectQuery("SELECT .+ FROM wallets WHERE actor_id").
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"actor_id", "balance", "is_admin", "created_at", "updated_at"}))

	w, err := repo.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, w)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_Credit(t *testing.T) {
	mock, tx := newMock(t)
	repo := NewWalletRepo(mock, tx)

	mock.ExpectQuery("INSERT INTO wallets").
		WithArgs("u1", int64(500), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"balance"}).AddRow(int64(700)))

	bal, err := repo.Credit(context.Background(), "u1", 500)
	require.NoError(t, err)
	assert.Equal(t, int64(700), bal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_Debit(t *testing.T) {
	mock, tx := newMock(t)
	repo := NewWalletRepo(mock, tx)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT balance FROM wallets").
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"balance"}).AddRow(int64(500)))
	mock.ExpectQuery("UPDATE wallets SET balance").
		WithArgs("u1", int64(200), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"balance"}).AddRow(int64(300)))
	mock.ExpectCommit()

	bal, err := repo.Debit(context.Background(), "u1", 200)
	require.NoError(t, err)
	assert.Equal(t, int64(300), bal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_Debit_InsufficientFunds(t *testing.T) {
	mock, tx := newMock(t)
	repo := NewWalletRepo(mock, tx)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT balance FROM wallets").
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"balance"}).AddRow(int64(100)))
	mock.ExpectRollback()

	_, err := repo.Debit(context.Background(), "u1", 200)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_Debit_RetriesSerializationFailure(t *testing.T) {
	mock, tx := newMock(t)
	repo := NewWalletRepo(mock, tx)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT balance FROM wallets").
		WithArgs("u1").
		WillReturnError(&pgconn.PgError{Code: "40001"})
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT balance FROM wallets").
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"balance"}).AddRow(int64(500)))
	mock.ExpectQuery("UPDATE wallets SET balance").
		WithArgs("u1", int64(100), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"balance"}).AddRow(int64(400)))
	mock.ExpectCommit()

	bal, err := repo.Debit(context.Background(), "u1", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(400), bal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_GivesUpAfterMaxRetries(t *testing.T) {
	mock, tx := newMock(t)
	repo := NewWalletRepo(mock, tx)

	for i := 0; i < 3; i++ {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT balance FROM wallets").
			WithArgs("u1").
			WillReturnError(&pgconn.PgError{Code: "40P01"})
		mock.ExpectRollback()
	}

	_, err := repo.Debit(context.Background(), "u1", 100)
	assert.True(t, errors.Is(err, ErrMaxRetriesExceeded))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepo_PopCredential(t *testing.T) {
	mock, tx := newMock(t)
	repo := NewProductRepo(mock, tx, plainSealer{})
	id := uuid.New()
	payload, _ := plainSealer{}.Seal(domain.Credential{Account: "a1", Secret: "s1"})

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT stock_count FROM products").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"stock_count"}).AddRow(2))
	mock.ExpectQuery("DELETE FROM product_credentials").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"payload"}).AddRow(payload))
	mock.ExpectExec("UPDATE products SET stock_count = stock_count - 1").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	cred, err := repo.PopCredential(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "a1", cred.Account)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepo_PopCredential_OutOfStock(t *testing.T) {
	mock, tx := newMock(t)
	repo := NewProductRepo(mock, tx, plainSealer{})
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT stock_count FROM products").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"stock_count"}).AddRow(0))
	mock.ExpectQuery("DELETE FROM product_credentials").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"payload"}))
	mock.ExpectRollback()

	_, err := repo.PopCredential(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrOutOfStock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepo_PopCredential_UnknownProduct(t *testing.T) {
	mock, tx := newMock(t)
	repo := NewProductRepo(mock, tx, plainSealer{})
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT stock_count FROM products").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"stock_count"}))
	mock.ExpectRollback()

	_, err := repo.PopCredential(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepo_AppendCredentials(t *testing.T) {
	mock, tx := newMock(t)
	repo := NewProductRepo(mock, tx, plainSealer{})
	id := uuid.New()
	creds := []domain.Credential{{Account: "a1", Secret: "s1"}, {Account: "a2", Secret: "s2"}}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT stock_count FROM products").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"stock_count"}).AddRow(1))
	mock.ExpectQuery("SELECT COALESCE\\(MAX\\(position\\)").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"max"}).AddRow(int64(4)))
	mock.ExpectExec("INSERT INTO product_credentials").
		WithArgs(id, int64(5), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO product_credentials").
		WithArgs(id, int64(6), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("UPDATE products SET stock_count = stock_count \\+").
		WithArgs(id, 2, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"stock_count"}).AddRow(3))
	mock.ExpectCommit()

	n, err := repo.AppendCredentials(context.Background(), id, creds)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func paymentRow(p *domain.PaymentRequest) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "actor_id", "amount", "transaction_ref", "evidence_id", "notes",
		"status", "verified_by", "verified_at", "created_at",
	}).AddRow(
		p.ID, p.ActorID, p.Amount, p.TransactionRef, p.EvidenceID, p.Notes,
		p.Status, p.VerifiedBy, p.VerifiedAt, p.CreatedAt,
	)
}

func TestPaymentRepo_ApplyDecision_ApproveCredits(t *testing.T) {
	mock, tx := newMock(t)
	repo := NewPaymentRepo(mock, tx)
	req, err := domain.NewPaymentRequest("u1", 5000, "UTR1", nil, time.Now().UTC())
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM payment_requests WHERE id = .+ FOR UPDATE").
		WithArgs(req.ID).
		WillReturnRows(paymentRow(req))
	mock.ExpectExec("UPDATE payment_requests SET status").
		WithArgs(req.ID, domain.PaymentStatusApproved, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery("INSERT INTO wallets").
		WithArgs("u1", int64(5000), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"balance"}).AddRow(int64(5000)))
	mock.ExpectCommit()

	res, err := repo.ApplyDecision(context.Background(), ports.PaymentDecisionParams{
		RequestID: req.ID, Decision: domain.DecisionApprove, AdminID: "admin", DecidedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusApproved, res.Request.Status)
	assert.Equal(t, int64(5000), res.NewBalance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_ApplyDecision_AlreadyProcessed(t *testing.T) {
	mock, tx := newMock(t)
	repo := NewPaymentRepo(mock, tx)
	req, _ := domain.NewPaymentRequest("u1", 5000, "UTR1", nil, time.Now().UTC())
	require.NoError(t, req.Decide(domain.DecisionReject, "admin", time.Now().UTC()))

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM payment_requests").
		WithArgs(req.ID).
		WillReturnRows(paymentRow(req))
	mock.ExpectRollback()

	_, err := repo.ApplyDecision(context.Background(), ports.PaymentDecisionParams{
		RequestID: req.ID, Decision: domain.DecisionApprove, AdminID: "admin", DecidedAt: time.Now(),
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_Totals(t *testing.T) {
	mock, _ := newMock(t)
	repo := NewOrderRepo(mock, plainSealer{})

	mock.ExpectQuery("SELECT COUNT\\(\\*\\), COALESCE\\(SUM\\(price\\), 0\\) FROM orders").
		WillReturnRows(pgxmock.NewRows([]string{"count", "sum"}).AddRow(int64(4), int64(79600)))

	totals, err := repo.Totals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), totals.Count)
	assert.Equal(t, int64(79600), totals.Revenue)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_CreateSealsCredential(t *testing.T) {
	mock, _ := newMock(t)
	repo := NewOrderRepo(mock, plainSealer{})
	o := &domain.Order{
		ID: uuid.New(), ActorID: "u1", ProductID: uuid.New(), ProductName: "VPN",
		Credential: domain.Credential{Account: "a", Secret: "s"}, Price: 100, CreatedAt: time.Now(),
	}
	sealed, _ := plainSealer{}.Seal(o.Credential)

	mock.ExpectExec("INSERT INTO orders").
		WithArgs(o.ID, o.ActorID, o.ProductID, o.ProductName, sealed, o.Price, o.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), o))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_GetOpensCredential(t *testing.T) {
	mock, _ := newMock(t)
	repo := NewOrderRepo(mock, plainSealer{})
	id, productID := uuid.New(), uuid.New()
	now := time.Now().UTC()
	sealed, _ := plainSealer{}.Seal(domain.Credential{Account: "a", Secret: "s"})

	mock.ExpectQuery("SELECT (.+) FROM orders WHERE id = \\$1").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "actor_id", "product_id", "product_name", "credential", "price", "created_at"}).
			AddRow(id, "u1", productID, "VPN", sealed, int64(100), now))

	o, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.Equal(t, "s", o.Credential.Secret)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_Get_NotFound(t *testing.T) {
	mock, _ := newMock(t)
	repo := NewOrderRepo(mock, plainSealer{})
	id := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM orders WHERE id = \\$1").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "actor_id", "product_id", "product_name", "credential", "price", "created_at"}))

	o, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, o)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingRepo_Set(t *testing.T) {
	mock, _ := newMock(t)
	repo := NewSettingRepo(mock)
	now := time.Now().UTC()

	mock.ExpectQuery("INSERT INTO settings").
		WithArgs("help_text", "hi", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"key", "value", "updated_at"}).AddRow("help_text", "hi", now))

	s, err := repo.Set(context.Background(), "help_text", "hi")
	require.NoError(t, err)
	assert.Equal(t, "hi", s.Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthCheck(t *testing.T) {
	mock, _ := newMock(t)
	h := NewHealthCheck(mock)

	mock.ExpectQuery("SELECT to_regclass").WillReturnRows(pgxmock.NewRows([]string{"migrated"}).AddRow(true))

	assert.NoError(t, h.Ping(context.Background()))
	assert.Equal(t, "postgres", h.Name())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthCheck_UnmigratedSchema(t *testing.T) {
	mock, _ := newMock(t)
	h := NewHealthCheck(mock)

	mock.ExpectQuery("SELECT to_regclass").WillReturnRows(pgxmock.NewRows([]string{"migrated"}).AddRow(false))

	assert.ErrorIs(t, h.Ping(context.Background()), errSchemaMissing)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthCheck_Unreachable(t *testing.T) {
	mock, _ := newMock(t)
	h := NewHealthCheck(mock)

	mock.ExpectQuery("SELECT to_regclass").WillReturnError(errors.New("connection refused"))

	assert.Error(t, h.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

var (
	_ ports.WalletRepository  = (*WalletRepo)(nil)
	_ ports.ProductRepository = (*ProductRepo)(nil)
	_ ports.OrderRepository   = (*OrderRepo)(nil)
	_ ports.PaymentRepository = (*PaymentRepo)(nil)
	_ ports.SettingRepository = (*SettingRepo)(nil)
	_ ports.HealthChecker     = (*HealthCheck)(nil)
)
