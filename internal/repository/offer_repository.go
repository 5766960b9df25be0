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
	ErrOfferExists          = errors.New("offer already exists for this job request")
	ErrOfferLockedForEdit   = errors.New("offer is locked for editing")
	ErrVersionAlreadySigned = errors.New("current version is already signed")
	ErrOfferLimitReached    = errors.New("job request offer limit reached")
	ErrChatUnlockExists     = errors.New("chat unlock already exists")
)

type OfferRepository struct {
	db *sqlx.DB
}

func NewOfferRepository(db *sqlx.DB) *OfferRepository {
	return &OfferRepository{db: db}
}

// VersionInput поля новой версии. nil означает "взять из предыдущей версии" —
// так поддерживаются частичные правки.
type VersionInput struct {
	PresentationText *string
	CanStartFrom     *time.Time
	DurationText     *string
	PriceType        *string
	PriceAmount      *float64
	Currency         *string
	IncludesText     *string
	ExcludesText     *string
	PaymentTerms     *string
	CreatedBy        uuid.UUID
}

// Create создаёт оферту в статусе draft вместе с первой версией. Дубликат
// по (company, job_request) отсекается уникальным ограничением, а не
// проверкой в коде — гонка двух одновременных созданий безопасна.
func (r *OfferRepository) Create(ctx context.Context, offer *models.Offer, in VersionInput) (*models.Offer, error) {
	var created models.Offer

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &created, `
			INSERT INTO offers (company_id, job_request_id, status, round_number, lead_unlocked)
			VALUES ($1, $2, $3, $4, TRUE)
			RETURNING *
		`, offer.CompanyID, offer.JobRequestID, models.OfferStatusDraft, offer.RoundNumber)
		if err != nil {
			if common.IsUniqueViolation(err, "unique_offer_per_company_job") {
				return ErrOfferExists
			}
			return err
		}

		version, err := insertVersion(ctx, tx, created.ID, 1, nil, in)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE offers SET current_version_id = $2, updated_at = NOW() WHERE id = $1
		`, created.ID, version.ID); err != nil {
			return err
		}

		created.CurrentVersionID = &version.ID
		created.CurrentVersion = version

		// Префил презентации для следующих оферт компании.
		if version.PresentationText != "" {
			if _, err := tx.ExecContext(ctx, `
				UPDATE companies SET default_offer_presentation = $2, updated_at = NOW() WHERE id = $1
			`, created.CompanyID, version.PresentationText); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &created, nil
}

// CreateVersion добавляет новую версию и делает её текущей. Номер версии
// вычисляется под блокировкой строки оферты, поэтому два одновременных
// редактирования не получат одинаковый номер. Любая правка сбрасывает
// статус оферты в draft — прежняя подпись теряет силу.
func (r *OfferRepository) CreateVersion(ctx context.Context, offerID uuid.UUID, in VersionInput) (*models.Offer, error) {
	var result models.Offer

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var offer models.Offer
		err := tx.GetContext(ctx, &offer, `SELECT * FROM offers WHERE id = $1 FOR UPDATE`, offerID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.ErrOfferNotFound
			}
			return err
		}

		if offer.IsLocked() {
			return ErrOfferLockedForEdit
		}

		var prev *models.OfferVersion
		if offer.CurrentVersionID != nil {
			var v models.OfferVersion
			if err := tx.GetContext(ctx, &v, `SELECT * FROM offer_versions WHERE id = $1`, *offer.CurrentVersionID); err != nil {
				return err
			}
			prev = &v
		}

		var nextNumber int
		if err := tx.GetContext(ctx, &nextNumber, `
			SELECT COALESCE(MAX(version_number), 0) + 1 FROM offer_versions WHERE offer_id = $1
		`, offerID); err != nil {
			return err
		}

		version, err := insertVersion(ctx, tx, offerID, nextNumber, prev, in)
		if err != nil {
			return err
		}

		if err := tx.GetContext(ctx, &result, `
			UPDATE offers SET current_version_id = $2, status = $3, updated_at = NOW()
			WHERE id = $1
			RETURNING *
		`, offerID, version.ID, models.OfferStatusDraft); err != nil {
			return err
		}
		result.CurrentVersion = version

		if version.PresentationText != "" {
			if _, err := tx.ExecContext(ctx, `
				UPDATE companies SET default_offer_presentation = $2, updated_at = NOW() WHERE id = $1
			`, offer.CompanyID, version.PresentationText); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// insertVersion вставляет версию, перенося из prev все поля, которые не
// заданы во входе явно.
func insertVersion(ctx context.Context, tx *sqlx.Tx, offerID uuid.UUID, number int, prev *models.OfferVersion, in VersionInput) (*models.OfferVersion, error) {
	merged := models.OfferVersion{
		OfferID:       offerID,
		VersionNumber: number,
		PriceType:     models.PriceTypeFixed,
		Currency:      "EUR",
	}
	if prev != nil {
		merged.PresentationText = prev.PresentationText
		merged.CanStartFrom = prev.CanStartFrom
		merged.DurationText = prev.DurationText
		merged.PriceType = prev.PriceType
		merged.PriceAmount = prev.PriceAmount
		merged.Currency = prev.Currency
		merged.IncludesText = prev.IncludesText
		merged.ExcludesText = prev.ExcludesText
		merged.PaymentTerms = prev.PaymentTerms
	}

	if in.PresentationText != nil {
		merged.PresentationText = *in.PresentationText
	}
	if in.CanStartFrom != nil {
		merged.CanStartFrom = in.CanStartFrom
	}
	if in.DurationText != nil {
		merged.DurationText = *in.DurationText
	}
	if in.PriceType != nil {
		merged.PriceType = *in.PriceType
	}
	if in.PriceAmount != nil {
		merged.PriceAmount = in.PriceAmount
	}
	if in.Currency != nil {
		merged.Currency = *in.Currency
	}
	if in.IncludesText != nil {
		merged.IncludesText = *in.IncludesText
	}
	if in.ExcludesText != nil {
		merged.ExcludesText = *in.ExcludesText
	}
	if in.PaymentTerms != nil {
		merged.PaymentTerms = *in.PaymentTerms
	}

	var version models.OfferVersion
	err := tx.GetContext(ctx, &version, `
		INSERT INTO offer_versions (
			offer_id, version_number, presentation_text, can_start_from, duration_text,
			price_type, price_amount, currency, includes_text, excludes_text, payment_terms,
			created_by, is_signed
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, FALSE)
		RETURNING *
	`, merged.OfferID, merged.VersionNumber, merged.PresentationText, merged.CanStartFrom,
		merged.DurationText, merged.PriceType, merged.PriceAmount, merged.Currency,
		merged.IncludesText, merged.ExcludesText, merged.PaymentTerms, in.CreatedBy)
	if err != nil {
		return nil, fmt.Errorf("offer repository: insert version %w", err)
	}

	return &version, nil
}

// SignInput данные подписи текущей версии.
type SignInput struct {
	SignedBy       uuid.UUID
	IdentityHash   string
	IdentityMasked string
	IPAddress      *string
}

// Sign подписывает текущую версию и переводит оферту в статус signed.
// В той же транзакции проверяется лимит слотов раунда (подпись делает
// оферту видимой клиенту), обновляется last_offer_at заявки и при первом
// подписании пишется запись аудита offer_sent.
func (r *OfferRepository) Sign(ctx context.Context, offerID uuid.UUID, in SignInput) (*models.OfferSignature, error) {
	var signature models.OfferSignature

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var offer models.Offer
		err := tx.GetContext(ctx, &offer, `SELECT * FROM offers WHERE id = $1 FOR UPDATE`, offerID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.ErrOfferNotFound
			}
			return err
		}

		if offer.IsLocked() {
			return ErrOfferLockedForEdit
		}
		if offer.CurrentVersionID == nil {
			return apperror.ErrVersionNotFound
		}

		var version models.OfferVersion
		if err := tx.GetContext(ctx, &version, `SELECT * FROM offer_versions WHERE id = $1`, *offer.CurrentVersionID); err != nil {
			return err
		}
		if version.IsSigned {
			return ErrVersionAlreadySigned
		}

		var job models.JobRequest
		if err := tx.GetContext(ctx, &job, `SELECT * FROM job_requests WHERE id = $1 FOR UPDATE`, offer.JobRequestID); err != nil {
			return err
		}
		if job.IsCompleted {
			return ErrJobAlreadyCompleted
		}

		// Подписанная оферта занимает слот раунда.
		var nonDraft int
		if err := tx.GetContext(ctx, &nonDraft, `
			SELECT COUNT(*) FROM offers
			WHERE job_request_id = $1 AND status <> $2 AND id <> $3
		`, job.ID, models.OfferStatusDraft, offer.ID); err != nil {
			return err
		}
		if nonDraft >= job.MaxOffers {
			return ErrOfferLimitReached
		}

		now := time.Now()

		if err := tx.GetContext(ctx, &signature, `
			INSERT INTO offer_signatures (offer_version_id, signed_by, identity_hash, identity_masked, ip_address, signed_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING *
		`, version.ID, in.SignedBy, in.IdentityHash, in.IdentityMasked, in.IPAddress, now); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE offer_versions SET is_signed = TRUE, signed_at = $2 WHERE id = $1
		`, version.ID, now); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE offers SET status = $2, updated_at = NOW() WHERE id = $1
		`, offer.ID, models.OfferStatusSigned); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE job_requests SET last_offer_at = $2, updated_at = NOW() WHERE id = $1
		`, job.ID, now); err != nil {
			return err
		}

		// offer_sent пишется один раз — при первом входе оферты в раунд.
		var sentBefore int
		if err := tx.GetContext(ctx, &sentBefore, `
			SELECT COUNT(*) FROM job_request_audits
			WHERE job_request_id = $1 AND company_id = $2 AND action = $3
		`, job.ID, offer.CompanyID, models.AuditActionOfferSent); err != nil {
			return err
		}
		if sentBefore == 0 {
			if err := appendAudit(ctx, tx, job.ID, &offer.CompanyID, models.AuditActionOfferSent, "Компания отправила оферту."); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &signature, nil
}

// GetByID возвращает оферту вместе с текущей версией.
func (r *OfferRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	offer, err := common.GetByID[models.Offer](ctx, r.db, "offers", id, apperror.ErrOfferNotFound)
	if err != nil {
		return nil, err
	}
	if err := r.attachCurrentVersion(ctx, offer); err != nil {
		return nil, err
	}
	return offer, nil
}

// GetByCompanyAndJob возвращает оферту компании по заявке, если есть.
func (r *OfferRepository) GetByCompanyAndJob(ctx context.Context, companyID, jobID uuid.UUID) (*models.Offer, error) {
	var offer models.Offer
	err := r.db.GetContext(ctx, &offer, `
		SELECT * FROM offers WHERE company_id = $1 AND job_request_id = $2
	`, companyID, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrOfferNotFound
		}
		return nil, fmt.Errorf("offer repository: get by company and job %w", err)
	}
	if err := r.attachCurrentVersion(ctx, &offer); err != nil {
		return nil, err
	}
	return &offer, nil
}

// ListByCompany возвращает все оферты компании, свежие первыми.
func (r *OfferRepository) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]models.Offer, error) {
	var offers []models.Offer
	err := r.db.SelectContext(ctx, &offers, `
		SELECT * FROM offers WHERE company_id = $1 ORDER BY created_at DESC
	`, companyID)
	if err != nil {
		return nil, err
	}
	for i := range offers {
		if err := r.attachCurrentVersion(ctx, &offers[i]); err != nil {
			return nil, err
		}
	}
	return offers, nil
}

// ListByJob возвращает оферты по заявке.
func (r *OfferRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.Offer, error) {
	var offers []models.Offer
	err := r.db.SelectContext(ctx, &offers, `
		SELECT * FROM offers WHERE job_request_id = $1 ORDER BY created_at
	`, jobID)
	if err != nil {
		return nil, err
	}
	for i := range offers {
		if err := r.attachCurrentVersion(ctx, &offers[i]); err != nil {
			return nil, err
		}
	}
	return offers, nil
}

// ListVersions возвращает историю версий оферты, новые первыми.
func (r *OfferRepository) ListVersions(ctx context.Context, offerID uuid.UUID) ([]models.OfferVersion, error) {
	var versions []models.OfferVersion
	err := r.db.SelectContext(ctx, &versions, `
		SELECT * FROM offer_versions WHERE offer_id = $1 ORDER BY version_number DESC
	`, offerID)
	return versions, err
}

// GetSignature возвращает подпись версии, если есть.
func (r *OfferRepository) GetSignature(ctx context.Context, versionID uuid.UUID) (*models.OfferSignature, error) {
	return common.GetByField[models.OfferSignature](ctx, r.db, "offer_signatures", "offer_version_id", versionID, common.ErrNotFound)
}

// Lock переводит оферту в административный терминальный статус locked.
func (r *OfferRepository) Lock(ctx context.Context, offerID uuid.UUID) (*models.Offer, error) {
	var offer models.Offer
	err := r.db.GetContext(ctx, &offer, `
		UPDATE offers SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status <> $3
		RETURNING *
	`, offerID, models.OfferStatusLocked, models.OfferStatusAccepted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOfferLockedForEdit
		}
		return nil, err
	}
	return &offer, nil
}

// GetChatUnlock возвращает запись разблокировки чата указанного типа.
func (r *OfferRepository) GetChatUnlock(ctx context.Context, offerID uuid.UUID, unlockType string) (*models.OfferChatUnlock, error) {
	var unlock models.OfferChatUnlock
	err := r.db.GetContext(ctx, &unlock, `
		SELECT * FROM offer_chat_unlocks WHERE offer_id = $1 AND unlock_type = $2
	`, offerID, unlockType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("offer repository: get chat unlock %w", err)
	}
	return &unlock, nil
}

// HasChatUnlock проверяет, разблокирован ли чат по оферте (любым способом).
func (r *OfferRepository) HasChatUnlock(ctx context.Context, offerID uuid.UUID) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM offer_chat_unlocks WHERE offer_id = $1
	`, offerID)
	return count > 0, err
}

// CreateChatUnlock создаёт запись разблокировки чата. Повтор по
// (offer, unlock_type) отсекается уникальным ограничением.
func (r *OfferRepository) CreateChatUnlock(ctx context.Context, unlock *models.OfferChatUnlock) (*models.OfferChatUnlock, error) {
	var created models.OfferChatUnlock
	err := r.db.GetContext(ctx, &created, `
		INSERT INTO offer_chat_unlocks (offer_id, unlock_type, amount, currency, created_by, payment_reference)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`, unlock.OfferID, unlock.UnlockType, unlock.Amount, unlock.Currency, unlock.CreatedBy, unlock.PaymentReference)
	if err != nil {
		if common.IsUniqueViolation(err, "unique_unlock_per_offer_type") {
			return nil, ErrChatUnlockExists
		}
		return nil, fmt.Errorf("offer repository: create chat unlock %w", err)
	}
	return &created, nil
}

// CreateMessage добавляет сообщение чата по оферте.
func (r *OfferRepository) CreateMessage(ctx context.Context, msg *models.OfferMessage) (*models.OfferMessage, error) {
	var created models.OfferMessage
	err := r.db.GetContext(ctx, &created, `
		INSERT INTO offer_messages (offer_id, sender_company_id, sender_customer_id, sender_type, message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, msg.OfferID, msg.SenderCompanyID, msg.SenderCustomerID, msg.SenderType, msg.Message)
	if err != nil {
		return nil, fmt.Errorf("offer repository: create message %w", err)
	}
	return &created, nil
}

// ListMessages возвращает сообщения чата по оферте в хронологическом порядке.
func (r *OfferRepository) ListMessages(ctx context.Context, offerID uuid.UUID, limit, offset int) ([]models.OfferMessage, error) {
	var messages []models.OfferMessage
	err := r.db.SelectContext(ctx, &messages, `
		SELECT * FROM offer_messages WHERE offer_id = $1 ORDER BY created_at LIMIT $2 OFFSET $3
	`, offerID, limit, offset)
	return messages, err
}

func (r *OfferRepository) attachCurrentVersion(ctx context.Context, offer *models.Offer) error {
	if offer.CurrentVersionID == nil {
		return nil
	}
	var version models.OfferVersion
	if err := r.db.GetContext(ctx, &version, `SELECT * FROM offer_versions WHERE id = $1`, *offer.CurrentVersionID); err != nil {
		return fmt.Errorf("offer repository: attach current version %w", err)
	}
	offer.CurrentVersion = &version
	return nil
}
