package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ndertimnet/leadengine/internal/auth"
	"github.com/ndertimnet/leadengine/internal/http/middleware"
	"github.com/ndertimnet/leadengine/internal/models"
)

func withCompany(r *gin.Engine) {
	userID := uuid.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextPrincipalKey, auth.CompanyPrincipal{
			User:    &models.User{ID: userID, Role: models.RoleCompany, IsActive: true},
			Company: &models.Company{ID: uuid.New(), UserID: userID, ProfileStep: 4, IsActive: true},
		})
	})
}

func TestOfferHandler_Create_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &OfferHandler{}
	r.POST("/offers", handler.Create)

	req, _ := http.NewRequest("POST", "/offers", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOfferHandler_Create_CustomerForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	withCustomer(r)
	handler := &OfferHandler{}
	r.POST("/offers", handler.Create)

	req, _ := http.NewRequest("POST", "/offers", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestOfferHandler_Sign_InvalidUUID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	withCompany(r)
	handler := &OfferHandler{}
	r.POST("/offers/:id/sign", handler.Sign)

	req, _ := http.NewRequest("POST", "/offers/bad-id/sign", strings.NewReader(`{"identity":"19850412-5678"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOfferHandler_Decision_InvalidDecision(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	withCustomer(r)
	handler := &OfferHandler{}
	r.POST("/offers/:id/decision", handler.Decision)

	req, _ := http.NewRequest("POST", "/offers/"+uuid.New().String()+"/decision", strings.NewReader(`{"decision":"maybe"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOfferHandler_UnlockChat_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &OfferHandler{}
	r.POST("/offers/:id/unlock-chat", handler.UnlockChat)

	req, _ := http.NewRequest("POST", "/offers/"+uuid.New().String()+"/unlock-chat", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
