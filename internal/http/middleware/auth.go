package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ndertimnet/leadengine/internal/auth"
	"github.com/ndertimnet/leadengine/internal/models"
	"github.com/ndertimnet/leadengine/internal/service"
)

// ContextPrincipalKey ключ principal в gin.Context.
const ContextPrincipalKey = "principal"

// ErrEmailNotVerified аккаунт существует, но email не подтверждён.
var ErrEmailNotVerified = errors.New("email не подтверждён")

// PrincipalResolver загружает пользователя и его профиль для сборки principal.
type PrincipalResolver interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetCustomerByUserID(ctx context.Context, userID uuid.UUID) (*models.Customer, error)
	GetCompanyByUserID(ctx context.Context, userID uuid.UUID) (*models.Company, error)
}

// AuthMiddleware проверяет JWT access токен и кладёт в контекст собранный
// principal: клиент, компания или админ. Деактивированные аккаунты и
// аккаунты без подтверждённого email отсекаются здесь, до хэндлеров.
func AuthMiddleware(tokens *service.TokenManager, resolver PrincipalResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "требуется авторизация"})
			return
		}

		raw := strings.TrimPrefix(header, "Bearer ")
		userID, _, err := tokens.ParseAccess(raw)
		if err != nil || userID == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "токен невалиден"})
			return
		}

		principal, err := ResolvePrincipal(c.Request.Context(), resolver, userID)
		if errors.Is(err, ErrEmailNotVerified) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "email не подтверждён"})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "токен невалиден"})
			return
		}
		if principal == nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "аккаунт деактивирован"})
			return
		}

		c.Set(ContextPrincipalKey, principal)
		c.Next()
	}
}

// ResolvePrincipal собирает principal по userID. Возвращает nil без ошибки,
// когда аккаунт деактивирован, и ErrEmailNotVerified, когда email
// не подтверждён.
func ResolvePrincipal(ctx context.Context, resolver PrincipalResolver, userID uuid.UUID) (auth.Principal, error) {
	user, err := resolver.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, nil
	}
	if !user.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	switch user.Role {
	case models.RoleAdmin:
		return auth.AdminPrincipal{User: user}, nil
	case models.RoleCompany:
		company, err := resolver.GetCompanyByUserID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !company.IsActive {
			return nil, nil
		}
		return auth.CompanyPrincipal{User: user, Company: company}, nil
	default:
		customer, err := resolver.GetCustomerByUserID(ctx, userID)
		if err != nil {
			return nil, err
		}
		return auth.CustomerPrincipal{User: user, Customer: customer}, nil
	}
}
