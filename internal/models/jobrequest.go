package models

import (
	"time"

	"github.com/google/uuid"
)

// JobRequest описывает заявку клиента на строительные работы.
type JobRequest struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	CustomerID   uuid.UUID  `db:"customer_id" json:"customer_id"`
	Title        string     `db:"title" json:"title"`
	Description  string     `db:"description" json:"description"`
	Budget       *float64   `db:"budget" json:"budget,omitempty"`
	CityID       uuid.UUID  `db:"city_id" json:"city_id"`
	ProfessionID uuid.UUID  `db:"profession_id" json:"profession_id"`

	IsActive    bool `db:"is_active" json:"is_active"`
	IsCompleted bool `db:"is_completed" json:"is_completed"`
	IsDeleted   bool `db:"is_deleted" json:"is_deleted"`

	MaxOffers   int        `db:"max_offers" json:"max_offers"`
	LastOfferAt *time.Time `db:"last_offer_at" json:"last_offer_at,omitempty"`

	IsReopened bool       `db:"is_reopened" json:"is_reopened"`
	ReopenedAt *time.Time `db:"reopened_at" json:"reopened_at,omitempty"`

	ExpiresAt *time.Time `db:"expires_at" json:"expires_at,omitempty"`

	// Победитель выбирается один раз при принятии оферты.
	WinnerCompanyID *uuid.UUID `db:"winner_company_id" json:"winner_company_id,omitempty"`
	WinnerPrice     *float64   `db:"winner_price" json:"winner_price,omitempty"`
	WinnerOfferID   *uuid.UUID `db:"winner_offer_id" json:"winner_offer_id,omitempty"`

	// Зеркало полей победителя для совместимости со старым API.
	AcceptedCompanyID *uuid.UUID `db:"accepted_company_id" json:"accepted_company_id,omitempty"`
	AcceptedPrice     *float64   `db:"accepted_price" json:"accepted_price,omitempty"`

	DeletedAt *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`

	// OffersCount считается по офертам не в статусе draft.
	OffersCount *int `db:"offers_count" json:"offers_count,omitempty"`
}

// OffersLeft возвращает количество оставшихся слотов для оферт.
func (j *JobRequest) OffersLeft() int {
	if j.OffersCount == nil {
		return j.MaxOffers
	}
	left := j.MaxOffers - *j.OffersCount
	if left < 0 {
		return 0
	}
	return left
}

// JobRequestDraft хранит черновик многошаговой формы заявки.
type JobRequestDraft struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	CustomerID   uuid.UUID  `db:"customer_id" json:"customer_id"`
	Title        string     `db:"title" json:"title"`
	Description  string     `db:"description" json:"description"`
	Budget       *float64   `db:"budget" json:"budget,omitempty"`
	CityID       *uuid.UUID `db:"city_id" json:"city_id,omitempty"`
	ProfessionID *uuid.UUID `db:"profession_id" json:"profession_id,omitempty"`
	CurrentStep  int        `db:"current_step" json:"current_step"`
	IsSubmitted  bool       `db:"is_submitted" json:"is_submitted"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// JobRequestAudit запись журнала аудита. Записи только добавляются,
// никогда не изменяются и не удаляются.
type JobRequestAudit struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	JobRequestID uuid.UUID  `db:"job_request_id" json:"job_request_id"`
	CompanyID    *uuid.UUID `db:"company_id" json:"company_id,omitempty"`
	Action       string     `db:"action" json:"action"`
	Message      *string    `db:"message" json:"message,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// ArchivedJob денормализованный снимок заявки на момент принятия оферты.
// Живёт независимо от JobRequest и используется только для отчётности.
type ArchivedJob struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Title        string     `db:"title" json:"title"`
	Description  string     `db:"description" json:"description"`
	Category     string     `db:"category" json:"category"`
	Location     string     `db:"location" json:"location"`
	DateAccepted time.Time  `db:"date_accepted" json:"date_accepted"`
	Price        float64    `db:"price" json:"price"`
	CompanyID    *uuid.UUID `db:"company_id" json:"company_id,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}
