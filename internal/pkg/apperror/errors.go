package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized  ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden     ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest    ErrorCode = "BAD_REQUEST"
	ErrCodeConflict      ErrorCode = "CONFLICT"
	ErrCodeInternal      ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation    ErrorCode = "VALIDATION_ERROR"
	ErrCodeDatabaseError ErrorCode = "DATABASE_ERROR"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func IsNotFound(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeNotFound
}

func IsForbidden(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeForbidden
}

func IsConflict(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeConflict
}

func IsValidation(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeValidation
}

var (
	ErrJobNotFound     = New(ErrCodeNotFound, "заявка не найдена")
	ErrOfferNotFound   = New(ErrCodeNotFound, "оферта не найдена")
	ErrVersionNotFound = New(ErrCodeNotFound, "версия оферты не найдена")
	ErrDraftNotFound   = New(ErrCodeNotFound, "черновик не найден")
	ErrUserNotFound    = New(ErrCodeNotFound, "пользователь не найден")
	ErrCompanyNotFound = New(ErrCodeNotFound, "профиль компании не найден")
	ErrUnauthorized    = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden       = New(ErrCodeForbidden, "недостаточно прав")

	// Конфликты состояния: повтор того же запроса не поможет.
	ErrDuplicateOffer      = New(ErrCodeConflict, "оферта для этой заявки уже существует")
	ErrNoLeadAccess        = New(ErrCodeForbidden, "лид должен быть разблокирован до создания оферты")
	ErrAlreadyUnlocked     = New(ErrCodeConflict, "лид уже разблокирован")
	ErrChatAlreadyUnlocked = New(ErrCodeConflict, "чат уже разблокирован")
	ErrChatFreeAfterAccept = New(ErrCodeConflict, "чат уже бесплатен после принятия оферты")
	ErrChatLocked          = New(ErrCodeForbidden, "чат не разблокирован")
	ErrAlreadySigned       = New(ErrCodeConflict, "эта версия уже подписана")
	ErrOfferLocked         = New(ErrCodeConflict, "принятую оферту нельзя изменить")
	ErrNotSigned           = New(ErrCodeConflict, "оферта должна быть подписана")
	ErrAlreadyRejected     = New(ErrCodeConflict, "нельзя принять отклонённую оферту")
	ErrAlreadyAccepted     = New(ErrCodeConflict, "нельзя отклонить принятую оферту")
	ErrJobCompleted        = New(ErrCodeConflict, "заявка уже закрыта")
	ErrJobNotActive        = New(ErrCodeConflict, "заявка не активна")
	ErrAlreadyReopened     = New(ErrCodeConflict, "заявка уже была открыта повторно")
	ErrOfferLimitReached   = New(ErrCodeConflict, "лимит оферт по заявке исчерпан")
	ErrProfileIncomplete   = New(ErrCodeForbidden, "заполните профиль компании перед этим действием")
	ErrPaymentRequired     = New(ErrCodeConflict, "бесплатные лиды закончились, требуется подтверждённый платёж")

	ErrEditWindowClosed     = New(ErrCodeConflict, "окно редактирования заявки истекло")
	ErrOffersReceived       = New(ErrCodeConflict, "по заявке уже есть оферты, редактирование недоступно")
	ErrOfferAlreadyDeclined = New(ErrCodeConflict, "оферта уже отклонена")
	ErrRoundNotFull         = New(ErrCodeConflict, "первый раунд сбора оферт ещё не заполнен")
	ErrSignedPending        = New(ErrCodeConflict, "по заявке есть подписанные оферты, ожидающие решения")
	ErrDraftSubmitted       = New(ErrCodeConflict, "черновик уже отправлен")
)
