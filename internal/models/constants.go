package models

// OfferStatus константы статусов оферт
const (
	OfferStatusDraft    = "draft"
	OfferStatusSigned   = "signed"
	OfferStatusAccepted = "accepted"
	OfferStatusRejected = "rejected"
	OfferStatusLocked   = "locked"
)

// PriceType константы типов цены в версии оферты
const (
	PriceTypeFixed  = "fixed"
	PriceTypeHourly = "hourly"
)

// UnlockType константы типов разблокировки чата
const (
	UnlockTypeEarly       = "early"
	UnlockTypeAfterAccept = "after_accept"
)

// PaymentType константы типов платежей
const (
	PaymentTypeUnlockLead = "unlock_lead"
	PaymentTypeUnlockChat = "unlock_chat"
)

// PaymentStatus константы статусов платежей
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

// PaymentProvider константы провайдеров платежей
const (
	PaymentProviderInternal = "internal"
	PaymentProviderStripe   = "stripe"
	PaymentProviderManual   = "manual"
)

// AuditAction константы действий в журнале аудита заявки
const (
	AuditActionOfferSent        = "offer_sent"
	AuditActionOfferAccepted    = "offer_accepted"
	AuditActionOfferDeclined    = "offer_declined"
	AuditActionJobClosed        = "job_closed"
	AuditActionReopenedRoundTwo = "reopened_round_two"
	AuditActionWinnerSelected   = "winner_selected"
	AuditActionJobUpdated       = "job_updated"
	AuditActionCreatedFromDraft = "created_from_draft"
)

// Роли пользователей
const (
	RoleCustomer = "customer"
	RoleCompany  = "company"
	RoleAdmin    = "admin"
)

// SenderType константы отправителей сообщений по оферте
const (
	SenderTypeCompany  = "company"
	SenderTypeCustomer = "customer"
)

// ValidOfferStatuses список валидных статусов оферт
var ValidOfferStatuses = map[string]struct{}{
	OfferStatusDraft:    {},
	OfferStatusSigned:   {},
	OfferStatusAccepted: {},
	OfferStatusRejected: {},
	OfferStatusLocked:   {},
}

// ValidPriceTypes список валидных типов цены
var ValidPriceTypes = map[string]struct{}{
	PriceTypeFixed:  {},
	PriceTypeHourly: {},
}

// ValidAuditActions список валидных действий аудита
var ValidAuditActions = map[string]struct{}{
	AuditActionOfferSent:        {},
	AuditActionOfferAccepted:    {},
	AuditActionOfferDeclined:    {},
	AuditActionJobClosed:        {},
	AuditActionReopenedRoundTwo: {},
	AuditActionWinnerSelected:   {},
	AuditActionJobUpdated:       {},
	AuditActionCreatedFromDraft: {},
}
