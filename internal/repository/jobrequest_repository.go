package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ndertimnet/leadengine/internal/models"
	"github.com/ndertimnet/leadengine/internal/pkg/apperror"
	"github.com/ndertimnet/leadengine/internal/repository/common"
)

var (
	ErrJobAlreadyCompleted   = errors.New("job request already completed")
	ErrJobAlreadyReopened    = errors.New("job request already reopened")
	ErrWinnerAlreadySelected = errors.New("winner already selected")
	ErrOfferNotSigned        = errors.New("offer is not signed")
	ErrOfferAlreadyRejected  = errors.New("offer already rejected")
	ErrRoundNotFull          = errors.New("offer round is not full")
	ErrSignedOffersPending   = errors.New("signed offers are pending decision")
	ErrNoOffers              = errors.New("job request has no offers")
	ErrDraftAlreadySubmitted = errors.New("draft already submitted")
)

const jobWithOffersCount = `
	SELECT j.*,
	       (SELECT COUNT(*) FROM offers o
	        WHERE o.job_request_id = j.id AND o.status <> 'draft') AS offers_count
	FROM job_requests j
`

type JobRequestRepository struct {
	db *sqlx.DB
}

func NewJobRequestRepository(db *sqlx.DB) *JobRequestRepository {
	return &JobRequestRepository{db: db}
}

// Create создаёт заявку. Срок жизни и лимит оферт заданы вызывающим.
func (r *JobRequestRepository) Create(ctx context.Context, job *models.JobRequest) (*models.JobRequest, error) {
	var created models.JobRequest
	err := r.db.GetContext(ctx, &created, `
		INSERT INTO job_requests (customer_id, title, description, budget, city_id, profession_id, max_offers, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING *
	`, job.CustomerID, job.Title, job.Description, job.Budget, job.CityID, job.ProfessionID, job.MaxOffers, job.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("job request repository: create %w", err)
	}
	return &created, nil
}

// GetByID возвращает заявку вместе со счётчиком оферт не в статусе draft.
// Удалённые заявки тоже возвращаются — видимость решает сервисный слой.
func (r *JobRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.JobRequest, error) {
	var job models.JobRequest
	err := r.db.GetContext(ctx, &job, jobWithOffersCount+` WHERE j.id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrJobNotFound
		}
		return nil, fmt.Errorf("job request repository: get by id %w", err)
	}
	return &job, nil
}

// ListForCustomer возвращает заявки клиента, кроме удалённых.
func (r *JobRequestRepository) ListForCustomer(ctx context.Context, customerID uuid.UUID) ([]models.JobRequest, error) {
	var jobs []models.JobRequest
	err := r.db.SelectContext(ctx, &jobs, jobWithOffersCount+`
		WHERE j.customer_id = $1 AND j.is_deleted = FALSE
		ORDER BY j.created_at DESC
	`, customerID)
	return jobs, err
}

// ListActive возвращает открытые заявки для ленты компаний с необязательными
// фильтрами по городу и профессии.
func (r *JobRequestRepository) ListActive(ctx context.Context, cityID, professionID *uuid.UUID, limit, offset int) ([]models.JobRequest, error) {
	var jobs []models.JobRequest
	err := r.db.SelectContext(ctx, &jobs, jobWithOffersCount+`
		WHERE j.is_active = TRUE AND j.is_completed = FALSE AND j.is_deleted = FALSE
		  AND ($1::uuid IS NULL OR j.city_id = $1)
		  AND ($2::uuid IS NULL OR j.profession_id = $2)
		ORDER BY j.created_at DESC
		LIMIT $3 OFFSET $4
	`, cityID, professionID, limit, offset)
	return jobs, err
}

// UpdateInput частичное обновление полей заявки. nil — поле не трогаем.
type UpdateInput struct {
	Title        *string
	Description  *string
	Budget       *float64
	CityID       *uuid.UUID
	ProfessionID *uuid.UUID
}

// Update изменяет заявку и пишет запись аудита job_updated. Проверка окна
// редактирования — задача сервисного слоя, здесь только атомарность.
func (r *JobRequestRepository) Update(ctx context.Context, jobID uuid.UUID, in UpdateInput) (*models.JobRequest, error) {
	var updated models.JobRequest
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &updated, `
			UPDATE job_requests SET
				title = COALESCE($2, title),
				description = COALESCE($3, description),
				budget = COALESCE($4, budget),
				city_id = COALESCE($5, city_id),
				profession_id = COALESCE($6, profession_id),
				updated_at = NOW()
			WHERE id = $1
			RETURNING *
		`, jobID, in.Title, in.Description, in.Budget, in.CityID, in.ProfessionID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.ErrJobNotFound
			}
			return err
		}
		return appendAudit(ctx, tx, jobID, nil, models.AuditActionJobUpdated, "Клиент изменил заявку.")
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// SoftDelete помечает заявку удалённой и пишет запись аудита job_closed.
// Строка и связанный журнал остаются.
func (r *JobRequestRepository) SoftDelete(ctx context.Context, jobID uuid.UUID) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE job_requests
			SET is_deleted = TRUE, is_active = FALSE, deleted_at = NOW(), updated_at = NOW()
			WHERE id = $1 AND is_deleted = FALSE
		`, jobID)
		if err != nil {
			return fmt.Errorf("job request repository: soft delete %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperror.ErrJobNotFound
		}
		return appendAudit(ctx, tx, jobID, nil, models.AuditActionJobClosed, "Клиент удалил заявку.")
	})
}

// AcceptOffer принимает оферту и закрывает заявку одной транзакцией:
// победитель переходит в accepted, все остальные оферты не в статусе
// draft/rejected/locked каскадно отклоняются, заявка получает поля
// победителя и снимок в archived_jobs, журнал аудита пополняется тремя
// записями. Строки оферты и заявки блокируются в этом порядке — тот же
// порядок, что и при подписании, чтобы не ловить взаимные блокировки.
func (r *JobRequestRepository) AcceptOffer(ctx context.Context, offerID uuid.UUID) (*models.JobRequest, *models.Offer, error) {
	var job models.JobRequest
	var winner models.Offer

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &winner, `SELECT * FROM offers WHERE id = $1 FOR UPDATE`, offerID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.ErrOfferNotFound
			}
			return err
		}

		if err := tx.GetContext(ctx, &job, `SELECT * FROM job_requests WHERE id = $1 FOR UPDATE`, winner.JobRequestID); err != nil {
			return err
		}

		if job.IsCompleted || job.WinnerOfferID != nil {
			return ErrWinnerAlreadySelected
		}
		if winner.Status != models.OfferStatusSigned {
			return ErrOfferNotSigned
		}

		now := time.Now()

		if err := tx.GetContext(ctx, &winner, `
			UPDATE offers
			SET status = $2, accepted_at = $3, lead_unlocked = TRUE, updated_at = NOW()
			WHERE id = $1
			RETURNING *
		`, winner.ID, models.OfferStatusAccepted, now); err != nil {
			return err
		}

		// Чат с победителем открывается бесплатно в той же транзакции.
		// Ранняя платная разблокировка могла уже создать запись early —
		// ограничение (offer_id, unlock_type) это допускает.
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO offer_chat_unlocks (offer_id, unlock_type, amount)
			VALUES ($1, $2, 0)
			ON CONFLICT (offer_id, unlock_type) DO NOTHING
		`, winner.ID, models.UnlockTypeAfterAccept); err != nil {
			return err
		}

		// Каскадное отклонение конкурентов. Черновики не участвуют в
		// раунде, rejected и locked — терминальные.
		if _, err := tx.ExecContext(ctx, `
			UPDATE offers
			SET status = $3, rejected_at = $4, updated_at = NOW()
			WHERE job_request_id = $1 AND id <> $2
			  AND status NOT IN ('draft', 'rejected', 'locked')
		`, job.ID, winner.ID, models.OfferStatusRejected, now); err != nil {
			return err
		}

		var price float64
		if winner.CurrentVersionID != nil {
			if err := tx.GetContext(ctx, &price, `
				SELECT COALESCE(price_amount, 0) FROM offer_versions WHERE id = $1
			`, *winner.CurrentVersionID); err != nil {
				return err
			}
		}

		if err := tx.GetContext(ctx, &job, `
			UPDATE job_requests
			SET is_completed = TRUE, is_active = FALSE,
				winner_company_id = $2, winner_price = $3, winner_offer_id = $4,
				accepted_company_id = $2, accepted_price = $3,
				updated_at = NOW()
			WHERE id = $1
			RETURNING *
		`, job.ID, winner.CompanyID, price, winner.ID); err != nil {
			return err
		}

		// Снимок для отчётности. Названия города и профессии
		// денормализуются намеренно: снимок должен пережить справочники.
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO archived_jobs (title, description, category, location, date_accepted, price, company_id)
			SELECT j.title, j.description,
			       COALESCE(p.name, ''), COALESCE(c.name, ''),
			       $2, $3, $4
			FROM job_requests j
			LEFT JOIN professions p ON p.id = j.profession_id
			LEFT JOIN cities c ON c.id = j.city_id
			WHERE j.id = $1
		`, job.ID, now, price, winner.CompanyID); err != nil {
			return err
		}

		if err := appendAudit(ctx, tx, job.ID, &winner.CompanyID, models.AuditActionOfferAccepted, "Клиент принял оферту."); err != nil {
			return err
		}
		if err := appendAudit(ctx, tx, job.ID, &winner.CompanyID, models.AuditActionWinnerSelected, "Выбран исполнитель по заявке."); err != nil {
			return err
		}
		return appendAudit(ctx, tx, job.ID, nil, models.AuditActionJobClosed, "Заявка закрыта после выбора исполнителя.")
	})
	if err != nil {
		return nil, nil, err
	}

	return &job, &winner, nil
}

// DeclineOffer отклоняет отдельную оферту без закрытия заявки.
func (r *JobRequestRepository) DeclineOffer(ctx context.Context, offerID uuid.UUID) (*models.Offer, error) {
	var offer models.Offer
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &offer, `SELECT * FROM offers WHERE id = $1 FOR UPDATE`, offerID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.ErrOfferNotFound
			}
			return err
		}

		switch offer.Status {
		case models.OfferStatusAccepted:
			return ErrWinnerAlreadySelected
		case models.OfferStatusRejected:
			return ErrOfferAlreadyRejected
		case models.OfferStatusLocked:
			return ErrOfferLockedForEdit
		}

		if err := tx.GetContext(ctx, &offer, `
			UPDATE offers SET status = $2, rejected_at = NOW(), updated_at = NOW()
			WHERE id = $1
			RETURNING *
		`, offer.ID, models.OfferStatusRejected); err != nil {
			return err
		}

		return appendAudit(ctx, tx, offer.JobRequestID, &offer.CompanyID, models.AuditActionOfferDeclined, "Клиент отклонил оферту.")
	})
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

// Reopen открывает второй раунд: лимит оферт увеличивается, заявка
// помечается повторно открытой. Допускается только один раз и только когда
// первый раунд заполнен, а решений по офертам нет.
func (r *JobRequestRepository) Reopen(ctx context.Context, jobID uuid.UUID, extraOffers int) (*models.JobRequest, error) {
	var job models.JobRequest
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &job, `SELECT * FROM job_requests WHERE id = $1 FOR UPDATE`, jobID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.ErrJobNotFound
			}
			return err
		}

		if job.IsCompleted {
			return ErrJobAlreadyCompleted
		}
		if job.IsReopened {
			return ErrJobAlreadyReopened
		}

		var counts struct {
			Total    int `db:"total"`
			NonDraft int `db:"non_draft"`
			Accepted int `db:"accepted"`
			Signed   int `db:"signed"`
		}
		if err := tx.GetContext(ctx, &counts, `
			SELECT COUNT(*) AS total,
			       COUNT(*) FILTER (WHERE status <> 'draft') AS non_draft,
			       COUNT(*) FILTER (WHERE status = 'accepted') AS accepted,
			       COUNT(*) FILTER (WHERE status = 'signed') AS signed
			FROM offers WHERE job_request_id = $1
		`, jobID); err != nil {
			return err
		}

		if counts.Total == 0 {
			return ErrNoOffers
		}
		if counts.Accepted > 0 {
			return ErrWinnerAlreadySelected
		}
		if counts.Signed > 0 {
			return ErrSignedOffersPending
		}
		if counts.NonDraft < job.MaxOffers {
			return ErrRoundNotFull
		}

		if err := tx.GetContext(ctx, &job, `
			UPDATE job_requests
			SET max_offers = max_offers + $2, is_reopened = TRUE, reopened_at = NOW(),
				is_active = TRUE, updated_at = NOW()
			WHERE id = $1
			RETURNING *
		`, jobID, extraOffers); err != nil {
			return err
		}

		return appendAudit(ctx, tx, jobID, nil, models.AuditActionReopenedRoundTwo, "Открыт второй раунд сбора оферт.")
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// AppendAudit добавляет запись журнала вне транзакций предметных операций.
func (r *JobRequestRepository) AppendAudit(ctx context.Context, jobID uuid.UUID, companyID *uuid.UUID, action, message string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO job_request_audits (job_request_id, company_id, action, message)
		VALUES ($1, $2, $3, $4)
	`, jobID, companyID, action, message)
	if err != nil {
		return fmt.Errorf("job request repository: append audit %w", err)
	}
	return nil
}

// ListAudit возвращает журнал заявки, новые записи первыми.
func (r *JobRequestRepository) ListAudit(ctx context.Context, jobID uuid.UUID) ([]models.JobRequestAudit, error) {
	var entries []models.JobRequestAudit
	err := r.db.SelectContext(ctx, &entries, `
		SELECT * FROM job_request_audits WHERE job_request_id = $1 ORDER BY created_at DESC
	`, jobID)
	return entries, err
}

func appendAudit(ctx context.Context, tx *sqlx.Tx, jobID uuid.UUID, companyID *uuid.UUID, action, message string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO job_request_audits (job_request_id, company_id, action, message)
		VALUES ($1, $2, $3, $4)
	`, jobID, companyID, action, message)
	if err != nil {
		return fmt.Errorf("append audit %s: %w", action, err)
	}
	return nil
}

// CreateDraft создаёт черновик многошаговой формы заявки.
func (r *JobRequestRepository) CreateDraft(ctx context.Context, draft *models.JobRequestDraft) (*models.JobRequestDraft, error) {
	var created models.JobRequestDraft
	err := r.db.GetContext(ctx, &created, `
		INSERT INTO job_request_drafts (customer_id, title, description, budget, city_id, profession_id, current_step)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING *
	`, draft.CustomerID, draft.Title, draft.Description, draft.Budget, draft.CityID, draft.ProfessionID, draft.CurrentStep)
	if err != nil {
		return nil, fmt.Errorf("job request repository: create draft %w", err)
	}
	return &created, nil
}

// GetDraftByID возвращает черновик по ID.
func (r *JobRequestRepository) GetDraftByID(ctx context.Context, id uuid.UUID) (*models.JobRequestDraft, error) {
	return common.GetByID[models.JobRequestDraft](ctx, r.db, "job_request_drafts", id, apperror.ErrDraftNotFound)
}

// DraftInput частичное обновление черновика.
type DraftInput struct {
	Title        *string
	Description  *string
	Budget       *float64
	CityID       *uuid.UUID
	ProfessionID *uuid.UUID
	CurrentStep  *int
}

// UpdateDraft дозаполняет черновик. Отправленный черновик менять нельзя.
func (r *JobRequestRepository) UpdateDraft(ctx context.Context, id uuid.UUID, in DraftInput) (*models.JobRequestDraft, error) {
	var updated models.JobRequestDraft
	err := r.db.GetContext(ctx, &updated, `
		UPDATE job_request_drafts SET
			title = COALESCE($2, title),
			description = COALESCE($3, description),
			budget = COALESCE($4, budget),
			city_id = COALESCE($5, city_id),
			profession_id = COALESCE($6, profession_id),
			current_step = COALESCE($7, current_step),
			updated_at = NOW()
		WHERE id = $1 AND is_submitted = FALSE
		RETURNING *
	`, id, in.Title, in.Description, in.Budget, in.CityID, in.ProfessionID, in.CurrentStep)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDraftAlreadySubmitted
		}
		return nil, fmt.Errorf("job request repository: update draft %w", err)
	}
	return &updated, nil
}

// SubmitDraft превращает черновик в заявку. Черновик блокируется, заявка
// создаётся и черновик помечается отправленным в одной транзакции — двойная
// отправка даст ErrDraftAlreadySubmitted, а не вторую заявку.
func (r *JobRequestRepository) SubmitDraft(ctx context.Context, draftID uuid.UUID, maxOffers int, expiresAt time.Time) (*models.JobRequest, error) {
	var job models.JobRequest
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var draft models.JobRequestDraft
		err := tx.GetContext(ctx, &draft, `SELECT * FROM job_request_drafts WHERE id = $1 FOR UPDATE`, draftID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.ErrDraftNotFound
			}
			return err
		}

		if draft.IsSubmitted {
			return ErrDraftAlreadySubmitted
		}
		if draft.Title == "" || draft.CityID == nil || draft.ProfessionID == nil {
			return common.ErrInvalidInput
		}

		if err := tx.GetContext(ctx, &job, `
			INSERT INTO job_requests (customer_id, title, description, budget, city_id, profession_id, max_offers, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING *
		`, draft.CustomerID, draft.Title, draft.Description, draft.Budget, *draft.CityID, *draft.ProfessionID, maxOffers, expiresAt); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE job_request_drafts SET is_submitted = TRUE, updated_at = NOW() WHERE id = $1
		`, draftID); err != nil {
			return err
		}

		return appendAudit(ctx, tx, job.ID, nil, models.AuditActionCreatedFromDraft, "Заявка создана из черновика.")
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// CloseExpired деактивирует заявки с истёкшим сроком. Строки остаются:
// журнал и снимки живут дольше самой заявки. Возвращает ID закрытых заявок.
func (r *JobRequestRepository) CloseExpired(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.SelectContext(ctx, &ids, `
			UPDATE job_requests
			SET is_active = FALSE, updated_at = NOW()
			WHERE is_active = TRUE AND is_completed = FALSE AND is_deleted = FALSE
			  AND expires_at IS NOT NULL AND expires_at < $1
			RETURNING id
		`, now); err != nil {
			return err
		}
		for _, id := range ids {
			if err := appendAudit(ctx, tx, id, nil, models.AuditActionJobClosed, "Срок сбора оферт истёк."); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("job request repository: close expired %w", err)
	}
	return ids, nil
}

// ListStaleReopenCandidates возвращает заявки с заполненным первым раундом,
// по которым давно нет движения и нет ни принятых, ни подписанных оферт.
// Кандидаты открываются повторно через Reopen — его проверки финальные.
func (r *JobRequestRepository) ListStaleReopenCandidates(ctx context.Context, quietSince time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids, `
		SELECT j.id FROM job_requests j
		WHERE j.is_active = TRUE AND j.is_completed = FALSE AND j.is_deleted = FALSE
		  AND j.is_reopened = FALSE
		  AND j.last_offer_at IS NOT NULL AND j.last_offer_at < $1
		  AND (SELECT COUNT(*) FROM offers o
		       WHERE o.job_request_id = j.id AND o.status <> 'draft') >= j.max_offers
		  AND NOT EXISTS (SELECT 1 FROM offers o
		       WHERE o.job_request_id = j.id AND o.status IN ('accepted', 'signed'))
	`, quietSince)
	if err != nil {
		return nil, fmt.Errorf("job request repository: stale reopen candidates %w", err)
	}
	return ids, nil
}
