package models

import (
	"time"

	"github.com/google/uuid"
)

// LeadAccess факт разблокировки лида компанией. Само существование записи
// и есть проверка доступа; записи не отзываются.
type LeadAccess struct {
	ID           uuid.UUID `db:"id" json:"id"`
	CompanyID    uuid.UUID `db:"company_id" json:"company_id"`
	JobRequestID uuid.UUID `db:"job_request_id" json:"job_request_id"`
	UnlockedAt   time.Time `db:"unlocked_at" json:"unlocked_at"`
}

// Payment одна платёжная операция: разблокировка лида (привязана к заявке)
// или чата (привязана к оферте). Шлюзовые детали живут у платёжного
// провайдера, здесь хранится только статус и ссылка на операцию.
type Payment struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	CompanyID         uuid.UUID  `db:"company_id" json:"company_id"`
	JobRequestID      *uuid.UUID `db:"job_request_id" json:"job_request_id,omitempty"`
	OfferID           *uuid.UUID `db:"offer_id" json:"offer_id,omitempty"`
	Type              string     `db:"type" json:"type"`
	Amount            float64    `db:"amount" json:"amount"`
	Currency          string     `db:"currency" json:"currency"`
	Status            string     `db:"status" json:"status"`
	Provider          string     `db:"provider" json:"provider"`
	ProviderReference string     `db:"provider_reference" json:"provider_reference"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	PaidAt            *time.Time `db:"paid_at" json:"paid_at,omitempty"`
}

// IsPaid сообщает, подтверждён ли платёж.
func (p *Payment) IsPaid() bool {
	return p.Status == PaymentStatusPaid
}
