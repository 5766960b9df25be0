package common

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ndertimnet/leadengine/internal/auth"
	"github.com/ndertimnet/leadengine/internal/http/dto"
	"github.com/ndertimnet/leadengine/internal/http/middleware"
)

var (
	// ErrNoPrincipal возвращается, когда principal отсутствует в контексте.
	ErrNoPrincipal = errors.New("principal не найден в контексте")

	// ErrInvalidUUID возвращается при неверном формате UUID.
	ErrInvalidUUID = errors.New("неверный формат UUID")
)

// CurrentPrincipal извлекает principal из gin.Context.
func CurrentPrincipal(c *gin.Context) (auth.Principal, error) {
	raw, exists := c.Get(middleware.ContextPrincipalKey)
	if !exists {
		return nil, ErrNoPrincipal
	}

	principal, ok := raw.(auth.Principal)
	if !ok {
		return nil, ErrNoPrincipal
	}

	return principal, nil
}

// CurrentCustomer извлекает principal клиента или отвечает 403.
func CurrentCustomer(c *gin.Context) (auth.CustomerPrincipal, bool) {
	principal, err := CurrentPrincipal(c)
	if err != nil {
		RespondUnauthorized(c, "")
		return auth.CustomerPrincipal{}, false
	}
	customer, ok := auth.AsCustomer(principal)
	if !ok {
		RespondForbidden(c, "доступно только клиентам")
		return auth.CustomerPrincipal{}, false
	}
	return customer, true
}

// CurrentCompany извлекает principal компании или отвечает 403.
func CurrentCompany(c *gin.Context) (auth.CompanyPrincipal, bool) {
	principal, err := CurrentPrincipal(c)
	if err != nil {
		RespondUnauthorized(c, "")
		return auth.CompanyPrincipal{}, false
	}
	company, ok := auth.AsCompany(principal)
	if !ok {
		RespondForbidden(c, "доступно только компаниям")
		return auth.CompanyPrincipal{}, false
	}
	return company, true
}

// ParseUUIDParam разбирает UUID из параметра URL.
func ParseUUIDParam(c *gin.Context, paramName string) (uuid.UUID, error) {
	param := c.Param(paramName)
	if param == "" {
		return uuid.Nil, fmt.Errorf("параметр %s отсутствует", paramName)
	}

	parsed, err := uuid.Parse(param)
	if err != nil {
		return uuid.Nil, ErrInvalidUUID
	}

	return parsed, nil
}

// ParseUUIDQuery разбирает необязательный UUID из query-параметра.
func ParseUUIDQuery(c *gin.Context, key string) (*uuid.UUID, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	parsed, err := uuid.Parse(v)
	if err != nil {
		return nil, ErrInvalidUUID
	}
	return &parsed, nil
}

// BindAndValidate разбирает JSON тело запроса.
func BindAndValidate(c *gin.Context, req interface{}) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return fmt.Errorf("ошибка валидации запроса: %w", err)
	}
	return nil
}

// RespondError отправляет стандартный ответ с ошибкой.
func RespondError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, dto.ErrorResponse{Error: message})
}

// RespondSuccess отправляет стандартный успешный ответ.
func RespondSuccess(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, dto.SuccessResponse{
		Message: message,
		Data:    data,
	})
}

// RespondJSON отправляет JSON с указанным статусом.
func RespondJSON(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

// RespondUnauthorized отправляет 401.
func RespondUnauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "требуется авторизация"
	}
	RespondError(c, http.StatusUnauthorized, message)
}

// RespondForbidden отправляет 403.
func RespondForbidden(c *gin.Context, message string) {
	if message == "" {
		message = "доступ запрещён"
	}
	RespondError(c, http.StatusForbidden, message)
}

// RespondNotFound отправляет 404.
func RespondNotFound(c *gin.Context, message string) {
	if message == "" {
		message = "ресурс не найден"
	}
	RespondError(c, http.StatusNotFound, message)
}

// RespondBadRequest отправляет 400.
func RespondBadRequest(c *gin.Context, message string) {
	if message == "" {
		message = "некорректный запрос"
	}
	RespondError(c, http.StatusBadRequest, message)
}

// ParseIntQuery читает целочисленный query-параметр с дефолтом.
func ParseIntQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

// GetPagination извлекает limit и offset из query-параметров.
func GetPagination(c *gin.Context) (limit, offset int) {
	limit = ParseIntQuery(c, "limit", 20)
	offset = ParseIntQuery(c, "offset", 0)
	if limit > 100 {
		limit = 100
	}
	if limit < 1 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return
}
