package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ndertimnet/leadengine/internal/auth"
	"github.com/ndertimnet/leadengine/internal/logger"
	"github.com/ndertimnet/leadengine/internal/models"
	"github.com/ndertimnet/leadengine/internal/pkg/apperror"
	"github.com/ndertimnet/leadengine/internal/repository"
)

type JobRequestRepository interface {
	Create(ctx context.Context, job *models.JobRequest) (*models.JobRequest, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.JobRequest, error)
	ListForCustomer(ctx context.Context, customerID uuid.UUID) ([]models.JobRequest, error)
	ListActive(ctx context.Context, cityID, professionID *uuid.UUID, limit, offset int) ([]models.JobRequest, error)
	Update(ctx context.Context, jobID uuid.UUID, in repository.UpdateInput) (*models.JobRequest, error)
	SoftDelete(ctx context.Context, jobID uuid.UUID) error
	AcceptOffer(ctx context.Context, offerID uuid.UUID) (*models.JobRequest, *models.Offer, error)
	DeclineOffer(ctx context.Context, offerID uuid.UUID) (*models.Offer, error)
	Reopen(ctx context.Context, jobID uuid.UUID, extraOffers int) (*models.JobRequest, error)
	ListAudit(ctx context.Context, jobID uuid.UUID) ([]models.JobRequestAudit, error)
	CreateDraft(ctx context.Context, draft *models.JobRequestDraft) (*models.JobRequestDraft, error)
	GetDraftByID(ctx context.Context, id uuid.UUID) (*models.JobRequestDraft, error)
	UpdateDraft(ctx context.Context, id uuid.UUID, in repository.DraftInput) (*models.JobRequestDraft, error)
	SubmitDraft(ctx context.Context, draftID uuid.UUID, maxOffers int, expiresAt time.Time) (*models.JobRequest, error)
	CloseExpired(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	ListStaleReopenCandidates(ctx context.Context, quietSince time.Time) ([]uuid.UUID, error)
}

type OfferReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Offer, error)
	GetByCompanyAndJob(ctx context.Context, companyID, jobID uuid.UUID) (*models.Offer, error)
}

// JobRequestService координирует жизненный цикл заявки: создание, правки,
// принятие оферты с каскадным отклонением конкурентов и повторное открытие
// раунда.
type JobRequestService struct {
	repo       JobRequestRepository
	offers     OfferReader
	identities IdentityReader
	notifier   OfferNotifier

	maxOffersDefault int
	reopenExtra      int
	expiryDays       int
	editWindow       time.Duration
	staleReopenAfter time.Duration
}

func NewJobRequestService(repo JobRequestRepository, offers OfferReader, identities IdentityReader, notifier OfferNotifier, maxOffersDefault, reopenExtra, expiryDays int, editWindow, staleReopenAfter time.Duration) *JobRequestService {
	return &JobRequestService{
		repo:             repo,
		offers:           offers,
		identities:       identities,
		notifier:         notifier,
		maxOffersDefault: maxOffersDefault,
		reopenExtra:      reopenExtra,
		expiryDays:       expiryDays,
		editWindow:       editWindow,
		staleReopenAfter: staleReopenAfter,
	}
}

// CreateJobInput поля новой заявки.
type CreateJobInput struct {
	Title        string
	Description  string
	Budget       *float64
	CityID       uuid.UUID
	ProfessionID uuid.UUID
}

// Create создаёт заявку клиента с лимитом оферт и сроком жизни по умолчанию.
func (s *JobRequestService) Create(ctx context.Context, p auth.CustomerPrincipal, in CreateJobInput) (*models.JobRequest, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "укажите название заявки")
	}
	if in.CityID == uuid.Nil || in.ProfessionID == uuid.Nil {
		return nil, apperror.New(apperror.ErrCodeValidation, "укажите город и профессию")
	}

	expires := time.Now().AddDate(0, 0, s.expiryDays)
	return s.repo.Create(ctx, &models.JobRequest{
		CustomerID:   p.Customer.ID,
		Title:        in.Title,
		Description:  in.Description,
		Budget:       in.Budget,
		CityID:       in.CityID,
		ProfessionID: in.ProfessionID,
		MaxOffers:    s.maxOffersDefault,
		ExpiresAt:    &expires,
	})
}

// CustomerContact контакты клиента, открываемые разблокировкой лида.
type CustomerContact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// JobRequestDetail заявка вместе с данными, зависящими от прав
// запрашивающего. LeadUnlocked относится к оферте запрашивающей компании;
// Customer заполняется только при разблокированном лиде.
type JobRequestDetail struct {
	models.JobRequest
	LeadUnlocked bool             `json:"lead_unlocked"`
	Customer     *CustomerContact `json:"customer,omitempty"`
}

// Get возвращает заявку с проверкой видимости. Удалённые заявки видят
// только админы, чужие — компании (для ленты) и админы. Компания получает
// контакты клиента только после разблокировки лида по своей оферте.
func (s *JobRequestService) Get(ctx context.Context, p auth.Principal, jobID uuid.UUID) (*JobRequestDetail, error) {
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	detail := &JobRequestDetail{JobRequest: *job}

	switch pr := p.(type) {
	case auth.AdminPrincipal:
		return detail, nil
	case auth.CustomerPrincipal:
		if job.CustomerID != pr.Customer.ID {
			return nil, apperror.ErrForbidden
		}
		if job.IsDeleted {
			return nil, apperror.ErrJobNotFound
		}
		return detail, nil
	case auth.CompanyPrincipal:
		if job.IsDeleted {
			return nil, apperror.ErrJobNotFound
		}
		offer, err := s.offers.GetByCompanyAndJob(ctx, pr.Company.ID, jobID)
		if err != nil {
			if errors.Is(err, apperror.ErrOfferNotFound) {
				return detail, nil
			}
			return nil, err
		}
		if !offer.LeadUnlocked {
			return detail, nil
		}
		detail.LeadUnlocked = true
		detail.Customer = s.customerContact(ctx, job.CustomerID)
		return detail, nil
	default:
		return nil, apperror.ErrForbidden
	}
}

// customerContact собирает контакты клиента. Неполный профиль отдаётся
// как есть: разблокированный лид важнее отсутствующего телефона.
func (s *JobRequestService) customerContact(ctx context.Context, customerID uuid.UUID) *CustomerContact {
	customer, err := s.identities.GetCustomerByID(ctx, customerID)
	if err != nil {
		logger.Log.WithError(err).WithField("customer_id", customerID).Warn("Контакты клиента недоступны")
		return nil
	}

	contact := &CustomerContact{Phone: customer.Phone}
	if user, err := s.identities.GetUserByID(ctx, customer.UserID); err == nil {
		contact.Name = strings.TrimSpace(user.FirstName + " " + user.LastName)
		contact.Email = user.Email
	}
	return contact
}

// ListMine возвращает заявки клиента.
func (s *JobRequestService) ListMine(ctx context.Context, p auth.CustomerPrincipal) ([]models.JobRequest, error) {
	return s.repo.ListForCustomer(ctx, p.Customer.ID)
}

// Browse возвращает ленту открытых заявок для компаний.
func (s *JobRequestService) Browse(ctx context.Context, cityID, professionID *uuid.UUID, limit, offset int) ([]models.JobRequest, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListActive(ctx, cityID, professionID, limit, offset)
}

// Update редактирует заявку. Правки разрешены только владельцу, в пределах
// окна редактирования и пока по заявке нет оферт не в статусе draft.
func (s *JobRequestService) Update(ctx context.Context, p auth.CustomerPrincipal, jobID uuid.UUID, in repository.UpdateInput) (*models.JobRequest, error) {
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.CustomerID != p.Customer.ID {
		return nil, apperror.ErrForbidden
	}
	if job.IsDeleted {
		return nil, apperror.ErrJobNotFound
	}
	if job.IsCompleted || job.WinnerOfferID != nil {
		return nil, apperror.ErrJobCompleted
	}
	if time.Since(job.CreatedAt) > s.editWindow {
		return nil, apperror.ErrEditWindowClosed
	}
	if job.OffersCount != nil && *job.OffersCount > 0 {
		return nil, apperror.ErrOffersReceived
	}

	return s.repo.Update(ctx, jobID, in)
}

// Delete мягко удаляет заявку. Завершённую заявку с выбранным победителем
// удалить нельзя. Строка, журнал и снимки остаются.
func (s *JobRequestService) Delete(ctx context.Context, p auth.CustomerPrincipal, jobID uuid.UUID) error {
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.CustomerID != p.Customer.ID {
		return apperror.ErrForbidden
	}
	if job.IsDeleted {
		return apperror.ErrJobNotFound
	}
	if job.IsCompleted || job.WinnerOfferID != nil {
		return apperror.ErrJobCompleted
	}
	return s.repo.SoftDelete(ctx, jobID)
}

// AcceptOffer принимает оферту: победитель становится accepted, остальные
// оферты раунда каскадно отклоняются, заявка закрывается.
func (s *JobRequestService) AcceptOffer(ctx context.Context, p auth.CustomerPrincipal, offerID uuid.UUID) (*models.JobRequest, *models.Offer, error) {
	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, nil, err
	}

	job, err := s.repo.GetByID(ctx, offer.JobRequestID)
	if err != nil {
		return nil, nil, err
	}
	if job.CustomerID != p.Customer.ID {
		return nil, nil, apperror.ErrForbidden
	}
	if offer.Status == models.OfferStatusRejected {
		return nil, nil, apperror.ErrAlreadyRejected
	}

	job, winner, err := s.repo.AcceptOffer(ctx, offerID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrWinnerAlreadySelected):
			return nil, nil, apperror.ErrJobCompleted
		case errors.Is(err, repository.ErrOfferNotSigned):
			return nil, nil, apperror.ErrNotSigned
		}
		return nil, nil, err
	}

	s.notify(OfferEvent{
		Type:         "offer_accepted",
		OfferID:      winner.ID,
		JobRequestID: job.ID,
		Status:       winner.Status,
	})

	return job, winner, nil
}

// AcceptOfferForJob принимает оферту, адресованную через заявку. Проверяет,
// что оферта относится именно к этой заявке.
func (s *JobRequestService) AcceptOfferForJob(ctx context.Context, p auth.CustomerPrincipal, jobID, offerID uuid.UUID) (*models.JobRequest, *models.Offer, error) {
	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, nil, err
	}
	if offer.JobRequestID != jobID {
		return nil, nil, apperror.ErrOfferNotFound
	}
	return s.AcceptOffer(ctx, p, offerID)
}

// DeclineOffer отклоняет отдельную оферту. Принятую оферту отклонить нельзя.
func (s *JobRequestService) DeclineOffer(ctx context.Context, p auth.CustomerPrincipal, offerID uuid.UUID) (*models.Offer, error) {
	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}

	job, err := s.repo.GetByID(ctx, offer.JobRequestID)
	if err != nil {
		return nil, err
	}
	if job.CustomerID != p.Customer.ID {
		return nil, apperror.ErrForbidden
	}

	declined, err := s.repo.DeclineOffer(ctx, offerID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrWinnerAlreadySelected):
			return nil, apperror.ErrAlreadyAccepted
		case errors.Is(err, repository.ErrOfferAlreadyRejected):
			return nil, apperror.ErrOfferAlreadyDeclined
		case errors.Is(err, repository.ErrOfferLockedForEdit):
			return nil, apperror.ErrOfferLocked
		}
		return nil, err
	}

	s.notify(OfferEvent{
		Type:         "offer_declined",
		OfferID:      declined.ID,
		JobRequestID: declined.JobRequestID,
		Status:       declined.Status,
	})

	return declined, nil
}

// DeclineOfferForJob отклоняет оферту, адресованную через заявку.
func (s *JobRequestService) DeclineOfferForJob(ctx context.Context, p auth.CustomerPrincipal, jobID, offerID uuid.UUID) (*models.Offer, error) {
	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.JobRequestID != jobID {
		return nil, apperror.ErrOfferNotFound
	}
	return s.DeclineOffer(ctx, p, offerID)
}

// Reopen открывает второй раунд сбора оферт. Допускается один раз и только
// когда первый раунд заполнен, а решений по офертам нет.
func (s *JobRequestService) Reopen(ctx context.Context, p auth.CustomerPrincipal, jobID uuid.UUID) (*models.JobRequest, error) {
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.CustomerID != p.Customer.ID {
		return nil, apperror.ErrForbidden
	}

	reopened, err := s.repo.Reopen(ctx, jobID, s.reopenExtra)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrJobAlreadyCompleted), errors.Is(err, repository.ErrWinnerAlreadySelected):
			return nil, apperror.ErrJobCompleted
		case errors.Is(err, repository.ErrJobAlreadyReopened):
			return nil, apperror.ErrAlreadyReopened
		case errors.Is(err, repository.ErrNoOffers), errors.Is(err, repository.ErrRoundNotFull):
			return nil, apperror.ErrRoundNotFull
		case errors.Is(err, repository.ErrSignedOffersPending):
			return nil, apperror.ErrSignedPending
		}
		return nil, err
	}

	return reopened, nil
}

// ListAudit возвращает журнал заявки. Клиент-владелец и админ видят журнал
// всегда, компания — только после разблокировки лида по своей оферте.
func (s *JobRequestService) ListAudit(ctx context.Context, p auth.Principal, jobID uuid.UUID) ([]models.JobRequestAudit, error) {
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	switch pr := p.(type) {
	case auth.AdminPrincipal:
	case auth.CustomerPrincipal:
		if job.CustomerID != pr.Customer.ID {
			return nil, apperror.ErrForbidden
		}
	case auth.CompanyPrincipal:
		offer, err := s.offers.GetByCompanyAndJob(ctx, pr.Company.ID, jobID)
		if err != nil {
			return nil, apperror.ErrForbidden
		}
		if !offer.LeadUnlocked {
			return nil, apperror.ErrForbidden
		}
	default:
		return nil, apperror.ErrForbidden
	}

	return s.repo.ListAudit(ctx, jobID)
}

// DraftInput поля черновика заявки.
type DraftInput struct {
	Title        *string
	Description  *string
	Budget       *float64
	CityID       *uuid.UUID
	ProfessionID *uuid.UUID
	CurrentStep  *int
}

// CreateDraft создаёт черновик многошаговой формы заявки.
func (s *JobRequestService) CreateDraft(ctx context.Context, p auth.CustomerPrincipal, in DraftInput) (*models.JobRequestDraft, error) {
	draft := &models.JobRequestDraft{
		CustomerID:  p.Customer.ID,
		CurrentStep: 1,
	}
	if in.Title != nil {
		draft.Title = *in.Title
	}
	if in.Description != nil {
		draft.Description = *in.Description
	}
	draft.Budget = in.Budget
	draft.CityID = in.CityID
	draft.ProfessionID = in.ProfessionID
	if in.CurrentStep != nil {
		draft.CurrentStep = *in.CurrentStep
	}
	return s.repo.CreateDraft(ctx, draft)
}

// GetDraft возвращает черновик владельцу.
func (s *JobRequestService) GetDraft(ctx context.Context, p auth.CustomerPrincipal, draftID uuid.UUID) (*models.JobRequestDraft, error) {
	draft, err := s.repo.GetDraftByID(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if draft.CustomerID != p.Customer.ID {
		return nil, apperror.ErrForbidden
	}
	return draft, nil
}

// UpdateDraft дозаполняет черновик по шагам формы.
func (s *JobRequestService) UpdateDraft(ctx context.Context, p auth.CustomerPrincipal, draftID uuid.UUID, in DraftInput) (*models.JobRequestDraft, error) {
	if _, err := s.GetDraft(ctx, p, draftID); err != nil {
		return nil, err
	}

	draft, err := s.repo.UpdateDraft(ctx, draftID, repository.DraftInput{
		Title:        in.Title,
		Description:  in.Description,
		Budget:       in.Budget,
		CityID:       in.CityID,
		ProfessionID: in.ProfessionID,
		CurrentStep:  in.CurrentStep,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDraftAlreadySubmitted) {
			return nil, apperror.ErrDraftSubmitted
		}
		return nil, err
	}
	return draft, nil
}

// SubmitDraft превращает черновик в заявку.
func (s *JobRequestService) SubmitDraft(ctx context.Context, p auth.CustomerPrincipal, draftID uuid.UUID) (*models.JobRequest, error) {
	draft, err := s.GetDraft(ctx, p, draftID)
	if err != nil {
		return nil, err
	}
	if draft.Title == "" || draft.CityID == nil || draft.ProfessionID == nil {
		return nil, apperror.New(apperror.ErrCodeValidation, "черновик заполнен не полностью")
	}

	expires := time.Now().AddDate(0, 0, s.expiryDays)
	job, err := s.repo.SubmitDraft(ctx, draftID, s.maxOffersDefault, expires)
	if err != nil {
		if errors.Is(err, repository.ErrDraftAlreadySubmitted) {
			return nil, apperror.ErrDraftSubmitted
		}
		return nil, err
	}
	return job, nil
}

// CloseExpiredJobs деактивирует заявки с истёкшим сроком. Возвращает число
// закрытых заявок. Вызывается планировщиком.
func (s *JobRequestService) CloseExpiredJobs(ctx context.Context) (int, error) {
	ids, err := s.repo.CloseExpired(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// ReopenStaleJobs повторно открывает заявки с заполненным раундом, по
// которым давно нет движения. Ошибки отдельных заявок не прерывают обход:
// кандидат мог измениться между выборкой и повторным открытием.
func (s *JobRequestService) ReopenStaleJobs(ctx context.Context) (int, error) {
	quietSince := time.Now().Add(-s.staleReopenAfter)
	ids, err := s.repo.ListStaleReopenCandidates(ctx, quietSince)
	if err != nil {
		return 0, err
	}

	reopened := 0
	for _, id := range ids {
		if _, err := s.repo.Reopen(ctx, id, s.reopenExtra); err != nil {
			logger.Log.WithError(err).WithField("job_request_id", id).Warn("Автоматическое повторное открытие пропущено")
			continue
		}
		reopened++
	}
	return reopened, nil
}

func (s *JobRequestService) notify(event OfferEvent) {
	if s.notifier != nil {
		s.notifier.NotifyOffer(event)
	}
}
