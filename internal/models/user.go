package models

import (
	"time"

	"github.com/google/uuid"
)

// User аутентифицированный пользователь. Регистрация и выдача токенов
// выполняются внешним сервисом идентификации; здесь таблица читается
// для проверки роли, активности и подтверждения email.
type User struct {
	ID            uuid.UUID `db:"id" json:"id"`
	Email         string    `db:"email" json:"email"`
	FirstName     string    `db:"first_name" json:"first_name"`
	LastName      string    `db:"last_name" json:"last_name"`
	Role          string    `db:"role" json:"role"`
	IsActive      bool      `db:"is_active" json:"is_active"`
	EmailVerified bool      `db:"email_verified" json:"email_verified"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Customer профиль клиента.
type Customer struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Phone     string    `db:"phone" json:"phone"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Company профиль компании. ProfileStep — шаг онбординга (0..4),
// FreeLeadsRemaining — остаток бесплатных разблокировок лидов.
type Company struct {
	ID                       uuid.UUID `db:"id" json:"id"`
	UserID                   uuid.UUID `db:"user_id" json:"user_id"`
	CompanyName              string    `db:"company_name" json:"company_name"`
	OrgNumber                string    `db:"org_number" json:"org_number"`
	Phone                    string    `db:"phone" json:"phone"`
	ProfileStep              int       `db:"profile_step" json:"profile_step"`
	FreeLeadsRemaining       int       `db:"free_leads_remaining" json:"free_leads_remaining"`
	IsActive                 bool      `db:"is_active" json:"is_active"`
	DefaultOfferPresentation string    `db:"default_offer_presentation" json:"default_offer_presentation"`
	CreatedAt                time.Time `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time `db:"updated_at" json:"updated_at"`
}

// CanUnlockFreeLead сообщает, остались ли у компании бесплатные лиды.
func (c *Company) CanUnlockFreeLead() bool {
	return c.FreeLeadsRemaining > 0
}

// City справочник городов (read-only, наполняется сервисом таксономии).
type City struct {
	ID   uuid.UUID `db:"id" json:"id"`
	Name string    `db:"name" json:"name"`
}

// Profession справочник профессий (read-only).
type Profession struct {
	ID   uuid.UUID `db:"id" json:"id"`
	Name string    `db:"name" json:"name"`
}
