package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ndertimnet/leadengine/internal/models"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	manager := NewTokenManager("test-secret", 15*time.Minute)
	user := &models.User{ID: uuid.New(), Role: models.RoleCompany}

	token, err := manager.GenerateAccess(user)
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	userID, role, err := manager.ParseAccess(token)
	assert.NoError(t, err)
	assert.Equal(t, user.ID, userID)
	assert.Equal(t, models.RoleCompany, role)
}

func TestTokenManager_Expired(t *testing.T) {
	manager := NewTokenManager("test-secret", -time.Minute)
	user := &models.User{ID: uuid.New(), Role: models.RoleCustomer}

	token, err := manager.GenerateAccess(user)
	assert.NoError(t, err)

	_, _, err = manager.ParseAccess(token)
	assert.Error(t, err)
}

func TestTokenManager_WrongSecret(t *testing.T) {
	manager := NewTokenManager("test-secret", 15*time.Minute)
	other := NewTokenManager("another-secret", 15*time.Minute)
	user := &models.User{ID: uuid.New(), Role: models.RoleAdmin}

	token, err := manager.GenerateAccess(user)
	assert.NoError(t, err)

	_, _, err = other.ParseAccess(token)
	assert.Error(t, err)
}

func TestTokenManager_Garbage(t *testing.T) {
	manager := NewTokenManager("test-secret", 15*time.Minute)

	_, _, err := manager.ParseAccess("not-a-token")
	assert.Error(t, err)
}
