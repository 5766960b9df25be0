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
	ErrLeadAlreadyUnlocked = errors.New("lead already unlocked")
	ErrQuotaExhausted      = errors.New("free lead quota exhausted")
)

type LeadAccessRepository struct {
	db *sqlx.DB
}

func NewLeadAccessRepository(db *sqlx.DB) *LeadAccessRepository {
	return &LeadAccessRepository{db: db}
}

// Exists проверяет наличие доступа компании к лиду. Само существование
// записи и есть проверка — никакие флаги дополнительно не читаются.
func (r *LeadAccessRepository) Exists(ctx context.Context, companyID, jobID uuid.UUID) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM lead_access WHERE company_id = $1 AND job_request_id = $2
	`, companyID, jobID)
	if err != nil {
		return false, fmt.Errorf("lead access repository: exists %w", err)
	}
	return count > 0, nil
}

// GrantFromQuota списывает одну единицу бесплатной квоты компании и создаёт
// запись доступа. Оба изменения происходят в одной транзакции: либо оба,
// либо ни одного. Строка компании блокируется, поэтому конкурентные
// разблокировки не уводят квоту в минус.
func (r *LeadAccessRepository) GrantFromQuota(ctx context.Context, companyID, jobID uuid.UUID) (*models.LeadAccess, int, error) {
	var access models.LeadAccess
	var remaining int

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var free int
		err := tx.GetContext(ctx, &free, `
			SELECT free_leads_remaining FROM companies WHERE id = $1 FOR UPDATE
		`, companyID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return common.ErrNotFound
			}
			return err
		}

		if free <= 0 {
			return ErrQuotaExhausted
		}

		if err := tx.GetContext(ctx, &remaining, `
			UPDATE companies SET free_leads_remaining = free_leads_remaining - 1, updated_at = NOW()
			WHERE id = $1
			RETURNING free_leads_remaining
		`, companyID); err != nil {
			return err
		}

		if err := tx.GetContext(ctx, &access, `
			INSERT INTO lead_access (company_id, job_request_id)
			VALUES ($1, $2)
			RETURNING id, company_id, job_request_id, unlocked_at
		`, companyID, jobID); err != nil {
			if common.IsUniqueViolation(err, "unique_lead_access") {
				return ErrLeadAlreadyUnlocked
			}
			return err
		}

		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	return &access, remaining, nil
}

// GrantPaid создаёт запись доступа без списания квоты. Вызывается только
// когда подтверждён платёж unlock_lead.
func (r *LeadAccessRepository) GrantPaid(ctx context.Context, companyID, jobID uuid.UUID) (*models.LeadAccess, error) {
	var access models.LeadAccess
	err := r.db.GetContext(ctx, &access, `
		INSERT INTO lead_access (company_id, job_request_id)
		VALUES ($1, $2)
		RETURNING id, company_id, job_request_id, unlocked_at
	`, companyID, jobID)
	if err != nil {
		if common.IsUniqueViolation(err, "unique_lead_access") {
			return nil, ErrLeadAlreadyUnlocked
		}
		return nil, fmt.Errorf("lead access repository: grant paid %w", err)
	}
	return &access, nil
}

// ListForCompany возвращает разблокированные компанией лиды.
func (r *LeadAccessRepository) ListForCompany(ctx context.Context, companyID uuid.UUID) ([]models.LeadAccess, error) {
	var accesses []models.LeadAccess
	err := r.db.SelectContext(ctx, &accesses, `
		SELECT * FROM lead_access WHERE company_id = $1 ORDER BY unlocked_at DESC
	`, companyID)
	return accesses, err
}
