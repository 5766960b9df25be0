package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/ndertimnet/leadengine/internal/auth"
	"github.com/ndertimnet/leadengine/internal/models"
	"github.com/ndertimnet/leadengine/internal/pkg/apperror"
	"github.com/ndertimnet/leadengine/internal/repository"
)

// profileStepComplete — шаг онбординга, после которого компания может
// разблокировать лиды и отправлять оферты.
const profileStepComplete = 4

type LeadAccessRepository interface {
	Exists(ctx context.Context, companyID, jobID uuid.UUID) (bool, error)
	GrantFromQuota(ctx context.Context, companyID, jobID uuid.UUID) (*models.LeadAccess, int, error)
	GrantPaid(ctx context.Context, companyID, jobID uuid.UUID) (*models.LeadAccess, error)
	ListForCompany(ctx context.Context, companyID uuid.UUID) ([]models.LeadAccess, error)
}

type JobReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.JobRequest, error)
}

type LeadPaymentChecker interface {
	HasPaidLeadPayment(ctx context.Context, companyID, jobID uuid.UUID) (bool, error)
}

type LeadAccessService struct {
	leads    LeadAccessRepository
	jobs     JobReader
	payments LeadPaymentChecker
}

func NewLeadAccessService(leads LeadAccessRepository, jobs JobReader, payments LeadPaymentChecker) *LeadAccessService {
	return &LeadAccessService{leads: leads, jobs: jobs, payments: payments}
}

// Unlock открывает компании доступ к контактам по заявке. Сначала тратится
// бесплатная квота; когда она исчерпана, требуется подтверждённый платёж
// unlock_lead. Возвращает запись доступа и остаток квоты (-1, если доступ
// оплачен и квота не тратилась).
func (s *LeadAccessService) Unlock(ctx context.Context, p auth.CompanyPrincipal, jobID uuid.UUID) (*models.LeadAccess, int, error) {
	if p.Company.ProfileStep < profileStepComplete {
		return nil, 0, apperror.ErrProfileIncomplete
	}

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, 0, err
	}
	if job.IsDeleted {
		return nil, 0, apperror.ErrJobNotFound
	}
	if !job.IsActive || job.IsCompleted {
		return nil, 0, apperror.ErrJobNotActive
	}

	access, remaining, err := s.leads.GrantFromQuota(ctx, p.Company.ID, jobID)
	if err == nil {
		return access, remaining, nil
	}

	switch {
	case errors.Is(err, repository.ErrLeadAlreadyUnlocked):
		return nil, 0, apperror.ErrAlreadyUnlocked
	case errors.Is(err, repository.ErrQuotaExhausted):
		// Квота кончилась — доступ только через подтверждённый платёж.
		paid, perr := s.payments.HasPaidLeadPayment(ctx, p.Company.ID, jobID)
		if perr != nil {
			return nil, 0, perr
		}
		if !paid {
			return nil, 0, apperror.ErrPaymentRequired
		}
		access, gerr := s.leads.GrantPaid(ctx, p.Company.ID, jobID)
		if gerr != nil {
			if errors.Is(gerr, repository.ErrLeadAlreadyUnlocked) {
				return nil, 0, apperror.ErrAlreadyUnlocked
			}
			return nil, 0, gerr
		}
		return access, -1, nil
	default:
		return nil, 0, err
	}
}

// HasAccess проверяет, разблокирован ли лид компанией.
func (s *LeadAccessService) HasAccess(ctx context.Context, companyID, jobID uuid.UUID) (bool, error) {
	return s.leads.Exists(ctx, companyID, jobID)
}

// ListUnlocked возвращает разблокированные компанией лиды.
func (s *LeadAccessService) ListUnlocked(ctx context.Context, p auth.CompanyPrincipal) ([]models.LeadAccess, error) {
	return s.leads.ListForCompany(ctx, p.Company.ID)
}
