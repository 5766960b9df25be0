package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ndertimnet/leadengine/internal/auth"
	"github.com/ndertimnet/leadengine/internal/models"
	"github.com/ndertimnet/leadengine/internal/pkg/apperror"
	"github.com/ndertimnet/leadengine/internal/service"
)

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockResolver) GetCustomerByUserID(ctx context.Context, userID uuid.UUID) (*models.Customer, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Customer), args.Error(1)
}

func (m *mockResolver) GetCompanyByUserID(ctx context.Context, userID uuid.UUID) (*models.Company, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Company), args.Error(1)
}

func authTestRouter(tokens *service.TokenManager, resolver PrincipalResolver) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", AuthMiddleware(tokens, resolver), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	tokens := service.NewTokenManager("test-secret", 15*time.Minute)
	r := authTestRouter(tokens, new(mockResolver))

	req, _ := http.NewRequest("GET", "/protected", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	tokens := service.NewTokenManager("test-secret", 15*time.Minute)
	r := authTestRouter(tokens, new(mockResolver))

	req, _ := http.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_DeactivatedAccount(t *testing.T) {
	tokens := service.NewTokenManager("test-secret", 15*time.Minute)
	resolver := new(mockResolver)
	r := authTestRouter(tokens, resolver)

	user := &models.User{ID: uuid.New(), Role: models.RoleCustomer, IsActive: false}
	token, err := tokens.GenerateAccess(user)
	assert.NoError(t, err)

	resolver.On("GetUserByID", mock.Anything, user.ID).Return(user, nil)

	req, _ := http.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAuthMiddleware_UnverifiedEmail(t *testing.T) {
	tokens := service.NewTokenManager("test-secret", 15*time.Minute)
	resolver := new(mockResolver)
	r := authTestRouter(tokens, resolver)

	user := &models.User{ID: uuid.New(), Role: models.RoleCustomer, IsActive: true, EmailVerified: false}
	token, err := tokens.GenerateAccess(user)
	assert.NoError(t, err)

	resolver.On("GetUserByID", mock.Anything, user.ID).Return(user, nil)

	req, _ := http.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "email")
	resolver.AssertNotCalled(t, "GetCustomerByUserID", mock.Anything, mock.Anything)
}

func TestAuthMiddleware_CompanyPrincipal(t *testing.T) {
	tokens := service.NewTokenManager("test-secret", 15*time.Minute)
	resolver := new(mockResolver)

	user := &models.User{ID: uuid.New(), Role: models.RoleCompany, IsActive: true, EmailVerified: true}
	company := &models.Company{ID: uuid.New(), UserID: user.ID, IsActive: true, ProfileStep: 4}
	resolver.On("GetUserByID", mock.Anything, user.ID).Return(user, nil)
	resolver.On("GetCompanyByUserID", mock.Anything, user.ID).Return(company, nil)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", AuthMiddleware(tokens, resolver), func(c *gin.Context) {
		raw, _ := c.Get(ContextPrincipalKey)
		p, ok := raw.(auth.CompanyPrincipal)
		assert.True(t, ok)
		assert.Equal(t, company.ID, p.Company.ID)
		c.Status(http.StatusOK)
	})

	token, err := tokens.GenerateAccess(user)
	assert.NoError(t, err)

	req, _ := http.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestErrorHandler_AppError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/conflict", func(c *gin.Context) {
		_ = c.Error(apperror.ErrDuplicateOffer)
	})

	req, _ := http.NewRequest("GET", "/conflict", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "CONFLICT")
}

func TestErrorHandler_MasksInternalErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/boom", func(c *gin.Context) {
		_ = c.Error(errors.New("sql: connection refused"))
	})

	req, _ := http.NewRequest("GET", "/boom", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "sql")
	assert.Contains(t, w.Body.String(), "внутренняя ошибка сервера")
}
