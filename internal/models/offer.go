package models

import (
	"time"

	"github.com/google/uuid"
)

// Offer связывает одну компанию с одной заявкой. На пару (company, job_request)
// допускается не более одной оферты — гарантируется уникальным индексом.
type Offer struct {
	ID           uuid.UUID `db:"id" json:"id"`
	CompanyID    uuid.UUID `db:"company_id" json:"company_id"`
	JobRequestID uuid.UUID `db:"job_request_id" json:"job_request_id"`
	Status       string    `db:"status" json:"status"`
	RoundNumber  int       `db:"round_number" json:"round_number"`

	// LeadUnlocked — единственный источник истины о доступе компании к лиду.
	LeadUnlocked bool `db:"lead_unlocked" json:"lead_unlocked"`

	CurrentVersionID *uuid.UUID `db:"current_version_id" json:"current_version_id,omitempty"`

	AcceptedAt *time.Time `db:"accepted_at" json:"accepted_at,omitempty"`
	RejectedAt *time.Time `db:"rejected_at" json:"rejected_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	CurrentVersion *OfferVersion `json:"current_version,omitempty"`
}

// IsLocked сообщает, закрыта ли оферта для редактирования.
func (o *Offer) IsLocked() bool {
	return o.Status == OfferStatusAccepted || o.Status == OfferStatusLocked
}

// OfferVersion неизменяемый снимок условий предложения. Версии нумеруются
// последовательно с единицы; подпись относится к конкретной версии.
type OfferVersion struct {
	ID            uuid.UUID `db:"id" json:"id"`
	OfferID       uuid.UUID `db:"offer_id" json:"offer_id"`
	VersionNumber int       `db:"version_number" json:"version_number"`

	PresentationText string     `db:"presentation_text" json:"presentation_text"`
	CanStartFrom     *time.Time `db:"can_start_from" json:"can_start_from,omitempty"`
	DurationText     string     `db:"duration_text" json:"duration_text"`

	PriceType   string   `db:"price_type" json:"price_type"`
	PriceAmount *float64 `db:"price_amount" json:"price_amount,omitempty"`
	Currency    string   `db:"currency" json:"currency"`

	IncludesText string `db:"includes_text" json:"includes_text"`
	ExcludesText string `db:"excludes_text" json:"excludes_text"`
	PaymentTerms string `db:"payment_terms" json:"payment_terms"`

	CreatedBy *uuid.UUID `db:"created_by" json:"created_by,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`

	IsSigned bool       `db:"is_signed" json:"is_signed"`
	SignedAt *time.Time `db:"signed_at" json:"signed_at,omitempty"`
}

// OfferSignature подпись конкретной версии оферты. Хранит только хэш и
// маскированную форму персонального идентификатора, не само значение.
type OfferSignature struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	OfferVersionID uuid.UUID  `db:"offer_version_id" json:"offer_version_id"`
	SignedBy       *uuid.UUID `db:"signed_by" json:"signed_by,omitempty"`
	IdentityHash   string     `db:"identity_hash" json:"-"`
	IdentityMasked string     `db:"identity_masked" json:"identity_masked"`
	IPAddress      *string    `db:"ip_address" json:"ip_address,omitempty"`
	SignedAt       time.Time  `db:"signed_at" json:"signed_at"`
}

// OfferChatUnlock разблокировка чата по оферте. Уникальна по (offer, unlock_type):
// early — платная до принятия, after_accept — бесплатная после принятия.
type OfferChatUnlock struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	OfferID          uuid.UUID  `db:"offer_id" json:"offer_id"`
	UnlockType       string     `db:"unlock_type" json:"unlock_type"`
	Amount           float64    `db:"amount" json:"amount"`
	Currency         string     `db:"currency" json:"currency"`
	CreatedBy        *uuid.UUID `db:"created_by" json:"created_by,omitempty"`
	PaymentReference string     `db:"payment_reference" json:"payment_reference"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}

// OfferMessage сообщение в чате между компанией и клиентом по оферте.
type OfferMessage struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	OfferID          uuid.UUID  `db:"offer_id" json:"offer_id"`
	SenderCompanyID  *uuid.UUID `db:"sender_company_id" json:"sender_company_id,omitempty"`
	SenderCustomerID *uuid.UUID `db:"sender_customer_id" json:"sender_customer_id,omitempty"`
	SenderType       string     `db:"sender_type" json:"sender_type"`
	Message          string     `db:"message" json:"message"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}
