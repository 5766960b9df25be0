package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ndertimnet/leadengine/internal/models"
	"github.com/ndertimnet/leadengine/internal/pkg/apperror"
	"github.com/ndertimnet/leadengine/internal/repository/common"
)

// IdentityRepository читает пользователей и профили, которыми владеет внешний
// сервис идентификации. Движок их не создаёт, только проверяет и использует.
type IdentityRepository struct {
	db *sqlx.DB
}

func NewIdentityRepository(db *sqlx.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

// GetUserByID возвращает пользователя по ID.
func (r *IdentityRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return common.GetByID[models.User](ctx, r.db, "users", id, apperror.ErrUserNotFound)
}

// GetCustomerByUserID возвращает профиль клиента по ID пользователя.
func (r *IdentityRepository) GetCustomerByUserID(ctx context.Context, userID uuid.UUID) (*models.Customer, error) {
	return common.GetByField[models.Customer](ctx, r.db, "customers", "user_id", userID, apperror.ErrUserNotFound)
}

// GetCompanyByUserID возвращает профиль компании по ID пользователя.
func (r *IdentityRepository) GetCompanyByUserID(ctx context.Context, userID uuid.UUID) (*models.Company, error) {
	return common.GetByField[models.Company](ctx, r.db, "companies", "user_id", userID, apperror.ErrCompanyNotFound)
}

// GetCustomerByID возвращает профиль клиента по ID.
func (r *IdentityRepository) GetCustomerByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	return common.GetByID[models.Customer](ctx, r.db, "customers", id, apperror.ErrUserNotFound)
}

// GetCompanyByID возвращает профиль компании по ID.
func (r *IdentityRepository) GetCompanyByID(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	return common.GetByID[models.Company](ctx, r.db, "companies", id, apperror.ErrCompanyNotFound)
}

// UpdateDefaultPresentation сохраняет текст презентации компании для префила
// следующих оферт. Некритичный побочный эффект создания версии.
func (r *IdentityRepository) UpdateDefaultPresentation(ctx context.Context, companyID uuid.UUID, text string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE companies SET default_offer_presentation = $2, updated_at = NOW()
		WHERE id = $1
	`, companyID, text)
	if err != nil {
		return fmt.Errorf("identity repository: update default presentation %w", err)
	}
	return nil
}

// GetCityName возвращает название города из справочника таксономии.
func (r *IdentityRepository) GetCityName(ctx context.Context, id uuid.UUID) (string, error) {
	var name string
	err := r.db.GetContext(ctx, &name, `SELECT name FROM cities WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", common.ErrNotFound
	}
	return name, err
}

// GetProfessionName возвращает название профессии из справочника таксономии.
func (r *IdentityRepository) GetProfessionName(ctx context.Context, id uuid.UUID) (string, error) {
	var name string
	err := r.db.GetContext(ctx, &name, `SELECT name FROM professions WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", common.ErrNotFound
	}
	return name, err
}
