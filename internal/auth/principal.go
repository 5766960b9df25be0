package auth

import (
	"github.com/google/uuid"

	"github.com/ndertimnet/leadengine/internal/models"
)

// Principal закрытое множество ролей вызывающего. Вместо строковых проверок
// роли хэндлеры и сервисы получают конкретный вариант и передают его явно —
// никакого глобального "текущего пользователя".
type Principal interface {
	UserID() uuid.UUID
	sealed()
}

// CustomerPrincipal аутентифицированный клиент.
type CustomerPrincipal struct {
	User     *models.User
	Customer *models.Customer
}

func (p CustomerPrincipal) UserID() uuid.UUID { return p.User.ID }
func (p CustomerPrincipal) sealed()           {}

// CompanyPrincipal аутентифицированный пользователь компании.
type CompanyPrincipal struct {
	User    *models.User
	Company *models.Company
}

func (p CompanyPrincipal) UserID() uuid.UUID { return p.User.ID }
func (p CompanyPrincipal) sealed()           {}

// AdminPrincipal администратор платформы.
type AdminPrincipal struct {
	User *models.User
}

func (p AdminPrincipal) UserID() uuid.UUID { return p.User.ID }
func (p AdminPrincipal) sealed()           {}

// AsCustomer возвращает вариант клиента, если principal — клиент.
func AsCustomer(p Principal) (CustomerPrincipal, bool) {
	c, ok := p.(CustomerPrincipal)
	return c, ok
}

// AsCompany возвращает вариант компании, если principal — компания.
func AsCompany(p Principal) (CompanyPrincipal, bool) {
	c, ok := p.(CompanyPrincipal)
	return c, ok
}
