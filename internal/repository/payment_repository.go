package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ndertimnet/leadengine/internal/models"
	"github.com/ndertimnet/leadengine/internal/repository/common"
)

var (
	ErrPaymentExists     = errors.New("payment already exists")
	ErrPaymentNotPending = errors.New("payment is not pending")
)

type PaymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// CreatePending создаёт ожидающий платёж. Повторный платёж того же типа за
// тот же лид или чат отсекается частичным уникальным индексом.
func (r *PaymentRepository) CreatePending(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	var created models.Payment
	err := r.db.GetContext(ctx, &created, `
		INSERT INTO payments (company_id, job_request_id, offer_id, type, amount, currency, status, provider, provider_reference)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING *
	`, payment.CompanyID, payment.JobRequestID, payment.OfferID, payment.Type,
		payment.Amount, payment.Currency, models.PaymentStatusPending, payment.Provider, payment.ProviderReference)
	if err != nil {
		if common.IsUniqueViolation(err, "") {
			return nil, ErrPaymentExists
		}
		return nil, fmt.Errorf("payment repository: create pending %w", err)
	}
	return &created, nil
}

// GetByID возвращает платёж по ID.
func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return common.GetByID[models.Payment](ctx, r.db, "payments", id, common.ErrNotFound)
}

// GetByProviderReference возвращает платёж по внешнему идентификатору
// провайдера. Так вебхуки находят свой платёж.
func (r *PaymentRepository) GetByProviderReference(ctx context.Context, ref string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.GetContext(ctx, &payment, `
		SELECT * FROM payments WHERE provider_reference = $1
	`, ref)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("payment repository: get by provider reference %w", err)
	}
	return &payment, nil
}

// MarkPaid переводит ожидающий платёж в paid. Переход разрешён только из
// pending, повторный вебхук получает ErrPaymentNotPending и не дублирует
// побочные эффекты.
func (r *PaymentRepository) MarkPaid(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.GetContext(ctx, &payment, `
		UPDATE payments SET status = $2, paid_at = NOW()
		WHERE id = $1 AND status = $3
		RETURNING *
	`, id, models.PaymentStatusPaid, models.PaymentStatusPending)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotPending
		}
		return nil, fmt.Errorf("payment repository: mark paid %w", err)
	}
	return &payment, nil
}

// MarkFailed переводит ожидающий платёж в failed.
func (r *PaymentRepository) MarkFailed(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.GetContext(ctx, &payment, `
		UPDATE payments SET status = $2
		WHERE id = $1 AND status = $3
		RETURNING *
	`, id, models.PaymentStatusFailed, models.PaymentStatusPending)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotPending
		}
		return nil, fmt.Errorf("payment repository: mark failed %w", err)
	}
	return &payment, nil
}

// HasPaidLeadPayment проверяет подтверждённую оплату лида по заявке.
func (r *PaymentRepository) HasPaidLeadPayment(ctx context.Context, companyID, jobID uuid.UUID) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM payments
		WHERE company_id = $1 AND job_request_id = $2 AND type = $3 AND status = $4
	`, companyID, jobID, models.PaymentTypeUnlockLead, models.PaymentStatusPaid)
	if err != nil {
		return false, fmt.Errorf("payment repository: has paid lead payment %w", err)
	}
	return count > 0, nil
}

// HasPaidChatPayment проверяет подтверждённую оплату раннего чата по оферте.
func (r *PaymentRepository) HasPaidChatPayment(ctx context.Context, offerID uuid.UUID) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM payments
		WHERE offer_id = $1 AND type = $2 AND status = $3
	`, offerID, models.PaymentTypeUnlockChat, models.PaymentStatusPaid)
	if err != nil {
		return false, fmt.Errorf("payment repository: has paid chat payment %w", err)
	}
	return count > 0, nil
}

// ListForCompany возвращает платежи компании, новые первыми.
func (r *PaymentRepository) ListForCompany(ctx context.Context, companyID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.SelectContext(ctx, &payments, `
		SELECT * FROM payments WHERE company_id = $1 ORDER BY created_at DESC
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("payment repository: list for company %w", err)
	}
	return payments, nil
}
