package db

import (
	"context"

	"payment-gateway/internal/ledger"
	"payment-gateway/internal/model"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"

	orderColumns    = "id, merchant_id, amount, currency, receipt, notes, status, created_at, updated_at"
	paymentColumns  = "id, order_id, merchant_id, amount, currency, method, status, vpa, card_network, card_last4, error_code, error_description, created_at, updated_at"
	merchantColumns = "id, name, email, api_key, api_secret, is_active, created_at, updated_at"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// LedgerRepository is the Postgres ledger.Store.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

var _ ledger.Store = (*LedgerRepository)(nil)

func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

func (r *LedgerRepository) CreateOrder(ctx context.Context, order *model.Order) error {
	const op = "db.CreateOrder"

	query := `INSERT INTO orders (` + orderColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.pool.Exec(ctx, query, order.ID, order.MerchantID, order.Amount, order.Currency,
		order.Receipt, notesArg(order.Notes), string(order.Status), order.CreatedAt, order.UpdatedAt)
	return classify(op, err)
}

func (r *LedgerRepository) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	const op = "db.GetOrder"

	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)

	var e OrderEntity
	err := row.Scan(&e.ID, &e.MerchantID, &e.Amount, &e.Currency, &e.Receipt, &e.Notes, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, classify(op, err)
	}
	return e.toModel(), nil
}

func (r *LedgerRepository) CreatePayment(ctx context.Context, payment *model.Payment) error {
	const op = "db.CreatePayment"

	e := paymentEntity(payment)
	query := `INSERT INTO payments (` + paymentColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := r.pool.Exec(ctx, query, e.ID, e.OrderID, e.MerchantID, e.Amount, e.Currency, e.Method, e.Status,
		e.VPA, e.CardNetwork, e.CardLast4, e.ErrorCode, e.ErrorDescription, e.CreatedAt, e.UpdatedAt)
	return classify(op, err)
}

func (r *LedgerRepository) GetPayment(ctx context.Context, id string) (*model.Payment, error) {
	const op = "db.GetPayment"

	p, err := getPayment(ctx, r.pool, id)
	if err != nil {
		return nil, classify(op, err)
	}
	return p, nil
}

func (r *LedgerRepository) ListPayments(ctx context.Context, merchantID uuid.UUID, filter model.PaymentFilter) ([]*model.Payment, error) {
	const op = "db.ListPayments"

	filter = ledger.NormalizeFilter(filter)
	builder := psql.Select(paymentColumns).
		From("payments").
		Where(sq.Eq{"merchant_id": merchantID.String()}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(filter.Limit)).
		Offset(uint64(filter.Offset))
	if filter.OrderID != "" {
		builder = builder.Where(sq.Eq{"order_id": filter.OrderID})
	}
	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": string(filter.Status)})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, op)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	defer rows.Close()

	payments := make([]*model.Payment, 0, filter.Limit)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, errors.Wrap(err, op)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, op)
	}
	return payments, nil
}

func (r *LedgerRepository) PaymentStats(ctx context.Context, merchantID uuid.UUID) (*model.PaymentStats, error) {
	const op = "db.PaymentStats"

	query, args, err := psql.Select(
		"COUNT(*)",
		"COUNT(*) FILTER (WHERE status = 'success')",
		"COALESCE(SUM(amount) FILTER (WHERE status = 'success'), 0)",
	).From("payments").Where(sq.Eq{"merchant_id": merchantID.String()}).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, op)
	}

	var total, successful, amount int64
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&total, &successful, &amount); err != nil {
		return nil, errors.Wrap(err, op)
	}
	return ledger.NewStats(total, successful, amount), nil
}

// Settle moves the payment out of processing with a conditional update and,
// on success, flips the order to paid in the same transaction.
func (r *LedgerRepository) Settle(ctx context.Context, outcome model.Outcome) (*model.Payment, bool, error) {
	const op = "db.Settle"

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, false, errors.Wrap(err, op)
	}
	defer tx.Rollback(ctx)

	var errorCode, errorDescription *string
	if !outcome.Success {
		errorCode, errorDescription = &outcome.ErrorCode, &outcome.ErrorDescription
	}

	row := tx.QueryRow(ctx, `UPDATE payments
	          SET status = $2, error_code = $3, error_description = $4, updated_at = NOW()
	          WHERE id = $1 AND status = 'processing'
	          RETURNING `+paymentColumns,
		outcome.PaymentID, string(outcome.Status()), errorCode, errorDescription)

	payment, err := scanPayment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		current, err := getPayment(ctx, tx, outcome.PaymentID)
		if err != nil {
			return nil, false, classify(op, err)
		}
		return current, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, op)
	}

	if outcome.Success {
		_, err = tx.Exec(ctx, `UPDATE orders SET status = 'paid', updated_at = NOW()
		          WHERE id = $1 AND status = 'created'`, payment.OrderID)
		if err != nil {
			return nil, false, errors.Wrap(err, op)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, errors.Wrap(err, op)
	}
	return payment, true, nil
}

func (r *LedgerRepository) GetMerchantByAPIKey(ctx context.Context, apiKey string) (*model.Merchant, error) {
	return r.getMerchant(ctx, "db.GetMerchantByAPIKey", "api_key", apiKey)
}

func (r *LedgerRepository) GetMerchantByEmail(ctx context.Context, email string) (*model.Merchant, error) {
	return r.getMerchant(ctx, "db.GetMerchantByEmail", "email", email)
}

func (r *LedgerRepository) getMerchant(ctx context.Context, op, column, value string) (*model.Merchant, error) {
	query, args, err := psql.Select(merchantColumns).From("merchants").Where(sq.Eq{column: value}).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, op)
	}

	var e MerchantEntity
	err = r.pool.QueryRow(ctx, query, args...).
		Scan(&e.ID, &e.Name, &e.Email, &e.APIKey, &e.APISecret, &e.IsActive, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, classify(op, err)
	}
	return e.toModel(), nil
}

func (r *LedgerRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func getPayment(ctx context.Context, q querier, id string) (*model.Payment, error) {
	return scanPayment(q.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
}

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var e PaymentEntity
	err := row.Scan(&e.ID, &e.OrderID, &e.MerchantID, &e.Amount, &e.Currency, &e.Method, &e.Status,
		&e.VPA, &e.CardNetwork, &e.CardLast4, &e.ErrorCode, &e.ErrorDescription, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e.toModel(), nil
}

func notesArg(notes map[string]any) any {
	if len(notes) == 0 {
		return nil
	}
	return notes
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return ledger.ErrDuplicate
		case pgForeignKeyViolation:
			return ledger.ErrNotFound
		}
	}
	return errors.Wrap(err, op)
}
