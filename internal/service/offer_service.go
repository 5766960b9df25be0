package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/ndertimnet/leadengine/internal/auth"
	"github.com/ndertimnet/leadengine/internal/contract"
	"github.com/ndertimnet/leadengine/internal/models"
	"github.com/ndertimnet/leadengine/internal/pkg/apperror"
	"github.com/ndertimnet/leadengine/internal/repository"
)

type OfferRepository interface {
	Create(ctx context.Context, offer *models.Offer, in repository.VersionInput) (*models.Offer, error)
	CreateVersion(ctx context.Context, offerID uuid.UUID, in repository.VersionInput) (*models.Offer, error)
	Sign(ctx context.Context, offerID uuid.UUID, in repository.SignInput) (*models.OfferSignature, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Offer, error)
	GetByCompanyAndJob(ctx context.Context, companyID, jobID uuid.UUID) (*models.Offer, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID) ([]models.Offer, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.Offer, error)
	ListVersions(ctx context.Context, offerID uuid.UUID) ([]models.OfferVersion, error)
	GetSignature(ctx context.Context, versionID uuid.UUID) (*models.OfferSignature, error)
	Lock(ctx context.Context, offerID uuid.UUID) (*models.Offer, error)
	HasChatUnlock(ctx context.Context, offerID uuid.UUID) (bool, error)
	GetChatUnlock(ctx context.Context, offerID uuid.UUID, unlockType string) (*models.OfferChatUnlock, error)
	CreateChatUnlock(ctx context.Context, unlock *models.OfferChatUnlock) (*models.OfferChatUnlock, error)
	CreateMessage(ctx context.Context, msg *models.OfferMessage) (*models.OfferMessage, error)
	ListMessages(ctx context.Context, offerID uuid.UUID, limit, offset int) ([]models.OfferMessage, error)
}

type LeadAccessChecker interface {
	Exists(ctx context.Context, companyID, jobID uuid.UUID) (bool, error)
}

type ChatPaymentChecker interface {
	HasPaidChatPayment(ctx context.Context, offerID uuid.UUID) (bool, error)
}

// IdentityReader читает профили для рендеринга договора.
type IdentityReader interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetCustomerByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	GetCompanyByID(ctx context.Context, id uuid.UUID) (*models.Company, error)
}

// OfferEvent уведомление об изменении оферты для подписчиков реального времени.
type OfferEvent struct {
	Type         string    `json:"type"`
	OfferID      uuid.UUID `json:"offer_id"`
	JobRequestID uuid.UUID `json:"job_request_id"`
	Status       string    `json:"status"`
}

// OfferNotifier рассылает события об офертах. Реализация не должна блокировать
// вызывающего.
type OfferNotifier interface {
	NotifyOffer(event OfferEvent)
}

type OfferService struct {
	offers     OfferRepository
	jobs       JobReader
	leads      LeadAccessChecker
	payments   ChatPaymentChecker
	identities IdentityReader
	notifier   OfferNotifier

	chatAmount   float64
	chatCurrency string
}

func NewOfferService(offers OfferRepository, jobs JobReader, leads LeadAccessChecker, payments ChatPaymentChecker, identities IdentityReader, notifier OfferNotifier, chatAmount float64, chatCurrency string) *OfferService {
	return &OfferService{
		offers:       offers,
		jobs:         jobs,
		leads:        leads,
		payments:     payments,
		identities:   identities,
		notifier:     notifier,
		chatAmount:   chatAmount,
		chatCurrency: chatCurrency,
	}
}

// Create создаёт черновик оферты с первой версией. Требует разблокированного
// лида и открытой заявки. Черновик не занимает слот раунда и не виден клиенту.
func (s *OfferService) Create(ctx context.Context, p auth.CompanyPrincipal, jobID uuid.UUID, in repository.VersionInput) (*models.Offer, error) {
	if p.Company.ProfileStep < profileStepComplete {
		return nil, apperror.ErrProfileIncomplete
	}

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.IsDeleted {
		return nil, apperror.ErrJobNotFound
	}
	if !job.IsActive || job.IsCompleted {
		return nil, apperror.ErrJobNotActive
	}

	unlocked, err := s.leads.Exists(ctx, p.Company.ID, jobID)
	if err != nil {
		return nil, err
	}
	if !unlocked {
		return nil, apperror.ErrNoLeadAccess
	}

	round := 1
	if job.IsReopened {
		round = 2
	}

	in.CreatedBy = p.User.ID
	offer, err := s.offers.Create(ctx, &models.Offer{
		CompanyID:    p.Company.ID,
		JobRequestID: jobID,
		RoundNumber:  round,
	}, in)
	if err != nil {
		if errors.Is(err, repository.ErrOfferExists) {
			return nil, apperror.ErrDuplicateOffer
		}
		return nil, err
	}

	return offer, nil
}

// Edit добавляет новую версию оферты. Любая правка делает оферту черновиком:
// прежняя подпись относится к прежней версии и силы не имеет.
func (s *OfferService) Edit(ctx context.Context, p auth.CompanyPrincipal, offerID uuid.UUID, in repository.VersionInput) (*models.Offer, error) {
	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.CompanyID != p.Company.ID {
		return nil, apperror.ErrForbidden
	}

	in.CreatedBy = p.User.ID
	updated, err := s.offers.CreateVersion(ctx, offerID, in)
	if err != nil {
		if errors.Is(err, repository.ErrOfferLockedForEdit) {
			return nil, apperror.ErrOfferLocked
		}
		return nil, err
	}

	return updated, nil
}

// Sign подписывает текущую версию оферты. Персональный идентификатор
// подписанта не сохраняется: в базу попадают только sha256-хэш и
// маскированная форма. Подписанная оферта становится видимой клиенту
// и занимает слот раунда.
func (s *OfferService) Sign(ctx context.Context, p auth.CompanyPrincipal, offerID uuid.UUID, identity, ipAddress string) (*models.OfferSignature, error) {
	identity = strings.TrimSpace(identity)
	if len(identity) < 4 {
		return nil, apperror.New(apperror.ErrCodeValidation, "идентификатор подписанта слишком короткий")
	}

	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.CompanyID != p.Company.ID {
		return nil, apperror.ErrForbidden
	}

	in := repository.SignInput{
		SignedBy:       p.User.ID,
		IdentityHash:   HashIdentity(identity),
		IdentityMasked: MaskIdentity(identity),
	}
	if ipAddress != "" {
		in.IPAddress = &ipAddress
	}

	signature, err := s.offers.Sign(ctx, offerID, in)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrVersionAlreadySigned):
			return nil, apperror.ErrAlreadySigned
		case errors.Is(err, repository.ErrOfferLockedForEdit):
			return nil, apperror.ErrOfferLocked
		case errors.Is(err, repository.ErrOfferLimitReached):
			return nil, apperror.ErrOfferLimitReached
		case errors.Is(err, repository.ErrJobAlreadyCompleted):
			return nil, apperror.ErrJobCompleted
		}
		return nil, err
	}

	s.notify(OfferEvent{
		Type:         "offer_signed",
		OfferID:      offer.ID,
		JobRequestID: offer.JobRequestID,
		Status:       models.OfferStatusSigned,
	})

	return signature, nil
}

// Get возвращает оферту с проверкой видимости: компания видит свою оферту,
// клиент — оферты по своей заявке не в статусе draft, админ — любую.
func (s *OfferService) Get(ctx context.Context, p auth.Principal, offerID uuid.UUID) (*models.Offer, error) {
	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if err := s.checkOfferAccess(ctx, p, offer); err != nil {
		return nil, err
	}
	return offer, nil
}

// ListMine возвращает оферты компании.
func (s *OfferService) ListMine(ctx context.Context, p auth.CompanyPrincipal) ([]models.Offer, error) {
	return s.offers.ListByCompany(ctx, p.Company.ID)
}

// ListForJob возвращает оферты по заявке. Клиент-владелец видит только
// оферты не в статусе draft, админ — все.
func (s *OfferService) ListForJob(ctx context.Context, p auth.Principal, jobID uuid.UUID) ([]models.Offer, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	offers, err := s.offers.ListByJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	switch pr := p.(type) {
	case auth.AdminPrincipal:
		return offers, nil
	case auth.CustomerPrincipal:
		if job.CustomerID != pr.Customer.ID {
			return nil, apperror.ErrForbidden
		}
		visible := make([]models.Offer, 0, len(offers))
		for _, o := range offers {
			if o.Status != models.OfferStatusDraft {
				visible = append(visible, o)
			}
		}
		return visible, nil
	default:
		return nil, apperror.ErrForbidden
	}
}

// ListVersions возвращает историю версий оферты.
func (s *OfferService) ListVersions(ctx context.Context, p auth.Principal, offerID uuid.UUID) ([]models.OfferVersion, error) {
	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if err := s.checkOfferAccess(ctx, p, offer); err != nil {
		return nil, err
	}
	return s.offers.ListVersions(ctx, offerID)
}

// Lock переводит оферту в терминальный статус locked. Только для админов.
func (s *OfferService) Lock(ctx context.Context, p auth.Principal, offerID uuid.UUID) (*models.Offer, error) {
	if _, ok := p.(auth.AdminPrincipal); !ok {
		return nil, apperror.ErrForbidden
	}
	offer, err := s.offers.Lock(ctx, offerID)
	if err != nil {
		if errors.Is(err, repository.ErrOfferLockedForEdit) {
			return nil, apperror.ErrOfferLocked
		}
		return nil, err
	}
	return offer, nil
}

// UnlockChat открывает чат по оферте для компании. После принятия оферты
// разблокировка бесплатна и идемпотентна; до принятия требуется
// подтверждённый платёж unlock_chat.
func (s *OfferService) UnlockChat(ctx context.Context, p auth.CompanyPrincipal, offerID uuid.UUID) (*models.OfferChatUnlock, error) {
	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.CompanyID != p.Company.ID {
		return nil, apperror.ErrForbidden
	}

	if offer.Status == models.OfferStatusAccepted {
		unlock, err := s.offers.CreateChatUnlock(ctx, &models.OfferChatUnlock{
			OfferID:    offerID,
			UnlockType: models.UnlockTypeAfterAccept,
			Amount:     0,
			Currency:   s.chatCurrency,
			CreatedBy:  &p.User.ID,
		})
		if errors.Is(err, repository.ErrChatUnlockExists) {
			// Идемпотентно: возвращаем существующую запись.
			return s.offers.GetChatUnlock(ctx, offerID, models.UnlockTypeAfterAccept)
		}
		return unlock, err
	}

	paid, err := s.payments.HasPaidChatPayment(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if !paid {
		return nil, apperror.ErrPaymentRequired
	}

	unlock, err := s.offers.CreateChatUnlock(ctx, &models.OfferChatUnlock{
		OfferID:    offerID,
		UnlockType: models.UnlockTypeEarly,
		Amount:     s.chatAmount,
		Currency:   s.chatCurrency,
		CreatedBy:  &p.User.ID,
	})
	if err != nil {
		if errors.Is(err, repository.ErrChatUnlockExists) {
			return nil, apperror.ErrChatAlreadyUnlocked
		}
		return nil, err
	}
	return unlock, nil
}

// SendMessage отправляет сообщение в чат по оферте. Чат доступен компании
// и клиенту-владельцу заявки только после разблокировки.
func (s *OfferService) SendMessage(ctx context.Context, p auth.Principal, offerID uuid.UUID, text string) (*models.OfferMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "сообщение не может быть пустым")
	}

	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}

	msg := &models.OfferMessage{OfferID: offerID, Message: text}

	switch pr := p.(type) {
	case auth.CompanyPrincipal:
		if offer.CompanyID != pr.Company.ID {
			return nil, apperror.ErrForbidden
		}
		msg.SenderCompanyID = &pr.Company.ID
		msg.SenderType = models.SenderTypeCompany
	case auth.CustomerPrincipal:
		job, err := s.jobs.GetByID(ctx, offer.JobRequestID)
		if err != nil {
			return nil, err
		}
		if job.CustomerID != pr.Customer.ID {
			return nil, apperror.ErrForbidden
		}
		msg.SenderCustomerID = &pr.Customer.ID
		msg.SenderType = models.SenderTypeCustomer
	default:
		return nil, apperror.ErrForbidden
	}

	unlocked, err := s.chatUnlocked(ctx, offer)
	if err != nil {
		return nil, err
	}
	if !unlocked {
		return nil, apperror.ErrChatLocked
	}

	return s.offers.CreateMessage(ctx, msg)
}

// chatUnlocked сообщает, открыт ли чат по оферте. Принятая оферта всегда
// с открытым чатом: запись after_accept создаётся в транзакции принятия.
func (s *OfferService) chatUnlocked(ctx context.Context, offer *models.Offer) (bool, error) {
	if offer.Status == models.OfferStatusAccepted {
		return true, nil
	}
	return s.offers.HasChatUnlock(ctx, offer.ID)
}

// ListMessages возвращает сообщения чата по оферте.
func (s *OfferService) ListMessages(ctx context.Context, p auth.Principal, offerID uuid.UUID, limit, offset int) ([]models.OfferMessage, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if err := s.checkOfferAccess(ctx, p, offer); err != nil {
		return nil, err
	}

	unlocked, err := s.chatUnlocked(ctx, offer)
	if err != nil {
		return nil, err
	}
	if !unlocked {
		return nil, apperror.ErrChatLocked
	}

	return s.offers.ListMessages(ctx, offerID, limit, offset)
}

// ContractData собирает данные для рендеринга договора по подписанной
// оферте. Договор существует только для подписанной текущей версии.
func (s *OfferService) ContractData(ctx context.Context, p auth.Principal, offerID uuid.UUID) (contract.Document, error) {
	var doc contract.Document

	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return doc, err
	}
	if err := s.checkOfferAccess(ctx, p, offer); err != nil {
		return doc, err
	}
	if offer.CurrentVersion == nil || !offer.CurrentVersion.IsSigned {
		return doc, apperror.ErrNotSigned
	}

	signature, err := s.offers.GetSignature(ctx, offer.CurrentVersion.ID)
	if err != nil {
		return doc, err
	}

	job, err := s.jobs.GetByID(ctx, offer.JobRequestID)
	if err != nil {
		return doc, err
	}

	company, err := s.identities.GetCompanyByID(ctx, offer.CompanyID)
	if err != nil {
		return doc, err
	}

	customerName := ""
	if customer, err := s.identities.GetCustomerByID(ctx, job.CustomerID); err == nil {
		if user, err := s.identities.GetUserByID(ctx, customer.UserID); err == nil {
			customerName = strings.TrimSpace(user.FirstName + " " + user.LastName)
		}
	}

	return contract.Document{
		JobTitle:       job.Title,
		CompanyName:    company.CompanyName,
		CustomerName:   customerName,
		Version:        offer.CurrentVersion,
		IdentityMasked: signature.IdentityMasked,
		SignedAt:       signature.SignedAt,
	}, nil
}

func (s *OfferService) checkOfferAccess(ctx context.Context, p auth.Principal, offer *models.Offer) error {
	switch pr := p.(type) {
	case auth.AdminPrincipal:
		return nil
	case auth.CompanyPrincipal:
		if offer.CompanyID != pr.Company.ID {
			return apperror.ErrForbidden
		}
		return nil
	case auth.CustomerPrincipal:
		job, err := s.jobs.GetByID(ctx, offer.JobRequestID)
		if err != nil {
			return err
		}
		if job.CustomerID != pr.Customer.ID {
			return apperror.ErrForbidden
		}
		// Черновики существуют только для компании.
		if offer.Status == models.OfferStatusDraft {
			return apperror.ErrOfferNotFound
		}
		return nil
	default:
		return apperror.ErrForbidden
	}
}

func (s *OfferService) notify(event OfferEvent) {
	if s.notifier != nil {
		s.notifier.NotifyOffer(event)
	}
}

// HashIdentity возвращает sha256-хэш персонального идентификатора в hex.
func HashIdentity(identity string) string {
	sum := sha256.Sum256([]byte(identity))
	return hex.EncodeToString(sum[:])
}

// MaskIdentity возвращает маскированную форму идентификатора: только
// последние четыре символа открыты. Короткий идентификатор маскируется
// целиком.
func MaskIdentity(identity string) string {
	if len(identity) < 4 {
		return strings.Repeat("*", len(identity))
	}
	return "******-" + identity[len(identity)-4:]
}
