package dto

import (
	"time"

	"github.com/google/uuid"
)

// ErrorResponse стандартный ответ с ошибкой.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse стандартный успешный ответ.
type SuccessResponse struct {
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// CreateJobRequest запрос на создание заявки.
type CreateJobRequest struct {
	Title        string    `json:"title" binding:"required"`
	Description  string    `json:"description"`
	Budget       *float64  `json:"budget"`
	CityID       uuid.UUID `json:"city_id" binding:"required"`
	ProfessionID uuid.UUID `json:"profession_id" binding:"required"`
}

// UpdateJobRequest частичное обновление заявки.
type UpdateJobRequest struct {
	Title        *string    `json:"title"`
	Description  *string    `json:"description"`
	Budget       *float64   `json:"budget"`
	CityID       *uuid.UUID `json:"city_id"`
	ProfessionID *uuid.UUID `json:"profession_id"`
}

// DraftRequest создание или дозаполнение черновика заявки.
type DraftRequest struct {
	Title        *string    `json:"title"`
	Description  *string    `json:"description"`
	Budget       *float64   `json:"budget"`
	CityID       *uuid.UUID `json:"city_id"`
	ProfessionID *uuid.UUID `json:"profession_id"`
	CurrentStep  *int       `json:"current_step"`
}

// OfferVersionRequest поля версии оферты. Все поля необязательны: при
// редактировании незаданные берутся из предыдущей версии.
type OfferVersionRequest struct {
	PresentationText *string    `json:"presentation_text"`
	CanStartFrom     *time.Time `json:"can_start_from"`
	DurationText     *string    `json:"duration_text"`
	PriceType        *string    `json:"price_type" binding:"omitempty,oneof=fixed hourly"`
	PriceAmount      *float64   `json:"price_amount"`
	Currency         *string    `json:"currency"`
	IncludesText     *string    `json:"includes_text"`
	ExcludesText     *string    `json:"excludes_text"`
	PaymentTerms     *string    `json:"payment_terms"`
}

// CreateOfferRequest запрос на создание оферты.
type CreateOfferRequest struct {
	JobRequestID uuid.UUID `json:"job_request_id" binding:"required"`
	OfferVersionRequest
}

// SignOfferRequest запрос на подпись текущей версии оферты.
type SignOfferRequest struct {
	Identity string `json:"identity" binding:"required"`
}

// DecisionRequest решение клиента по оферте.
type DecisionRequest struct {
	Decision string `json:"decision" binding:"required,oneof=accept decline"`
}

// JobDecisionRequest решение клиента по оферте, адресованное через заявку.
type JobDecisionRequest struct {
	OfferID uuid.UUID `json:"offer_id" binding:"required"`
}

// MessageRequest сообщение в чат по оферте.
type MessageRequest struct {
	Message string `json:"message" binding:"required"`
}

// CreatePaymentRequest запрос на создание ожидающего платежа.
type CreatePaymentRequest struct {
	Provider          string `json:"provider"`
	ProviderReference string `json:"provider_reference" binding:"required"`
}

// UnlockLeadPaymentRequest платёж за разблокировку лида с заявкой в теле.
type UnlockLeadPaymentRequest struct {
	JobRequestID      uuid.UUID `json:"job_request_id" binding:"required"`
	Provider          string    `json:"provider"`
	ProviderReference string    `json:"provider_reference" binding:"required"`
}

// PaymentWebhookRequest уведомление платёжного провайдера.
type PaymentWebhookRequest struct {
	ProviderReference string `json:"provider_reference" binding:"required"`
	Status            string `json:"status" binding:"required,oneof=paid failed"`
}
