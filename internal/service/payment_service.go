package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/ndertimnet/leadengine/internal/auth"
	"github.com/ndertimnet/leadengine/internal/logger"
	"github.com/ndertimnet/leadengine/internal/models"
	"github.com/ndertimnet/leadengine/internal/pkg/apperror"
	"github.com/ndertimnet/leadengine/internal/repository"
	"github.com/ndertimnet/leadengine/internal/repository/common"
)

type PaymentRepository interface {
	CreatePending(ctx context.Context, payment *models.Payment) (*models.Payment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	GetByProviderReference(ctx context.Context, ref string) (*models.Payment, error)
	MarkPaid(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	MarkFailed(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	ListForCompany(ctx context.Context, companyID uuid.UUID) ([]models.Payment, error)
}

type LeadGranter interface {
	GrantPaid(ctx context.Context, companyID, jobID uuid.UUID) (*models.LeadAccess, error)
}

// PaymentService создаёт ожидающие платежи и обрабатывает подтверждения
// провайдера. Побочные эффекты оплаты (доступ к лиду, разблокировка чата)
// выполняются здесь, чтобы вебхук оставался единственной точкой входа.
type PaymentService struct {
	payments PaymentRepository
	leads    LeadGranter
	offers   OfferRepository
	jobs     JobReader

	leadAmount float64
	chatAmount float64
	currency   string
}

func NewPaymentService(payments PaymentRepository, leads LeadGranter, offers OfferRepository, jobs JobReader, leadAmount, chatAmount float64, currency string) *PaymentService {
	return &PaymentService{
		payments:   payments,
		leads:      leads,
		offers:     offers,
		jobs:       jobs,
		leadAmount: leadAmount,
		chatAmount: chatAmount,
		currency:   currency,
	}
}

// CreateLeadPayment создаёт ожидающий платёж за разблокировку лида.
func (s *PaymentService) CreateLeadPayment(ctx context.Context, p auth.CompanyPrincipal, jobID uuid.UUID, provider, providerRef string) (*models.Payment, error) {
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

	payment, err := s.payments.CreatePending(ctx, &models.Payment{
		CompanyID:         p.Company.ID,
		JobRequestID:      &jobID,
		Type:              models.PaymentTypeUnlockLead,
		Amount:            s.leadAmount,
		Currency:          s.currency,
		Provider:          normalizeProvider(provider),
		ProviderReference: providerRef,
	})
	if err != nil {
		if errors.Is(err, repository.ErrPaymentExists) {
			return nil, apperror.New(apperror.ErrCodeConflict, "платёж за этот лид уже создан")
		}
		return nil, err
	}
	return payment, nil
}

// CreateChatPayment создаёт ожидающий платёж за раннее открытие чата.
// После принятия оферты чат бесплатен и платёж не нужен.
func (s *PaymentService) CreateChatPayment(ctx context.Context, p auth.CompanyPrincipal, offerID uuid.UUID, provider, providerRef string) (*models.Payment, error) {
	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.CompanyID != p.Company.ID {
		return nil, apperror.ErrForbidden
	}
	if offer.Status == models.OfferStatusAccepted {
		return nil, apperror.ErrChatFreeAfterAccept
	}

	payment, err := s.payments.CreatePending(ctx, &models.Payment{
		CompanyID:         p.Company.ID,
		OfferID:           &offerID,
		Type:              models.PaymentTypeUnlockChat,
		Amount:            s.chatAmount,
		Currency:          s.currency,
		Provider:          normalizeProvider(provider),
		ProviderReference: providerRef,
	})
	if err != nil {
		if errors.Is(err, repository.ErrPaymentExists) {
			return nil, apperror.New(apperror.ErrCodeConflict, "платёж за этот чат уже создан")
		}
		return nil, err
	}
	return payment, nil
}

// ConfirmByReference подтверждает платёж по внешнему идентификатору
// провайдера и выполняет побочный эффект: открывает доступ к лиду или чат.
// Повторный вебхук с тем же идентификатором — no-op.
func (s *PaymentService) ConfirmByReference(ctx context.Context, providerRef string) (*models.Payment, error) {
	payment, err := s.payments.GetByProviderReference(ctx, providerRef)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, apperror.New(apperror.ErrCodeNotFound, "платёж не найден")
		}
		return nil, err
	}

	paid, err := s.payments.MarkPaid(ctx, payment.ID)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotPending) {
			// Уже обработан, повторять эффекты нельзя.
			return payment, nil
		}
		return nil, err
	}

	s.applyPaidEffects(ctx, paid)
	return paid, nil
}

// FailByReference помечает платёж неуспешным по идентификатору провайдера.
func (s *PaymentService) FailByReference(ctx context.Context, providerRef string) (*models.Payment, error) {
	payment, err := s.payments.GetByProviderReference(ctx, providerRef)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, apperror.New(apperror.ErrCodeNotFound, "платёж не найден")
		}
		return nil, err
	}

	failed, err := s.payments.MarkFailed(ctx, payment.ID)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotPending) {
			return payment, nil
		}
		return nil, err
	}
	return failed, nil
}

// ListMine возвращает платежи компании.
func (s *PaymentService) ListMine(ctx context.Context, p auth.CompanyPrincipal) ([]models.Payment, error) {
	return s.payments.ListForCompany(ctx, p.Company.ID)
}

// applyPaidEffects выполняет доменный эффект подтверждённого платежа.
// Ошибки эффекта не откатывают платёж: деньги получены, эффект можно
// повторить вручную, конфликт уникальности означает, что эффект уже был.
func (s *PaymentService) applyPaidEffects(ctx context.Context, payment *models.Payment) {
	switch payment.Type {
	case models.PaymentTypeUnlockLead:
		if payment.JobRequestID == nil {
			return
		}
		if _, err := s.leads.GrantPaid(ctx, payment.CompanyID, *payment.JobRequestID); err != nil {
			if !errors.Is(err, repository.ErrLeadAlreadyUnlocked) {
				logger.Log.WithError(err).WithField("payment_id", payment.ID).Error("Не удалось открыть лид после оплаты")
			}
		}
	case models.PaymentTypeUnlockChat:
		if payment.OfferID == nil {
			return
		}
		_, err := s.offers.CreateChatUnlock(ctx, &models.OfferChatUnlock{
			OfferID:          *payment.OfferID,
			UnlockType:       models.UnlockTypeEarly,
			Amount:           payment.Amount,
			Currency:         payment.Currency,
			PaymentReference: payment.ProviderReference,
		})
		if err != nil && !errors.Is(err, repository.ErrChatUnlockExists) {
			logger.Log.WithError(err).WithField("payment_id", payment.ID).Error("Не удалось открыть чат после оплаты")
		}
	}
}

func normalizeProvider(provider string) string {
	switch provider {
	case models.PaymentProviderStripe, models.PaymentProviderManual:
		return provider
	default:
		return models.PaymentProviderInternal
	}
}
