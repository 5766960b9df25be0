package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ndertimnet/leadengine/internal/models"
	"github.com/ndertimnet/leadengine/internal/pkg/apperror"
	"github.com/ndertimnet/leadengine/internal/repository"
)

type mockPaymentRepo struct {
	mock.Mock
}

func (m *mockPaymentRepo) CreatePending(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	args := m.Called(ctx, payment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *mockPaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *mockPaymentRepo) GetByProviderReference(ctx context.Context, ref string) (*models.Payment, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *mockPaymentRepo) MarkPaid(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *mockPaymentRepo) MarkFailed(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *mockPaymentRepo) ListForCompany(ctx context.Context, companyID uuid.UUID) ([]models.Payment, error) {
	args := m.Called(ctx, companyID)
	return args.Get(0).([]models.Payment), args.Error(1)
}

type mockLeadGranter struct {
	mock.Mock
}

func (m *mockLeadGranter) GrantPaid(ctx context.Context, companyID, jobID uuid.UUID) (*models.LeadAccess, error) {
	args := m.Called(ctx, companyID, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LeadAccess), args.Error(1)
}

func newPaymentService(payments *mockPaymentRepo, leads *mockLeadGranter, offers *mockOfferRepo, jobs *mockJobReader) *PaymentService {
	return NewPaymentService(payments, leads, offers, jobs, 15, 5, "EUR")
}

func TestPaymentService_CreateLeadPayment_Success(t *testing.T) {
	payments := new(mockPaymentRepo)
	jobs := new(mockJobReader)
	svc := newPaymentService(payments, new(mockLeadGranter), new(mockOfferRepo), jobs)
	ctx := context.Background()
	p := companyPrincipal()

	job := activeJob(uuid.New())
	jobs.On("GetByID", ctx, job.ID).Return(job, nil)

	payments.On("CreatePending", ctx, mock.MatchedBy(func(pm *models.Payment) bool {
		return pm.Type == models.PaymentTypeUnlockLead &&
			pm.Amount == 15 &&
			pm.JobRequestID != nil && *pm.JobRequestID == job.ID &&
			pm.Provider == models.PaymentProviderStripe
	})).Return(&models.Payment{ID: uuid.New(), Status: models.PaymentStatusPending}, nil)

	payment, err := svc.CreateLeadPayment(ctx, p, job.ID, "stripe", "pi_123")
	assert.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	payments.AssertExpectations(t)
}

func TestPaymentService_CreateLeadPayment_Duplicate(t *testing.T) {
	payments := new(mockPaymentRepo)
	jobs := new(mockJobReader)
	svc := newPaymentService(payments, new(mockLeadGranter), new(mockOfferRepo), jobs)
	ctx := context.Background()

	job := activeJob(uuid.New())
	jobs.On("GetByID", ctx, job.ID).Return(job, nil)
	payments.On("CreatePending", ctx, mock.Anything).Return(nil, repository.ErrPaymentExists)

	_, err := svc.CreateLeadPayment(ctx, companyPrincipal(), job.ID, "stripe", "pi_123")

	var appErr *apperror.AppError
	assert.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.ErrCodeConflict, appErr.Code)
}

func TestPaymentService_CreateChatPayment_FreeAfterAccept(t *testing.T) {
	payments := new(mockPaymentRepo)
	offers := new(mockOfferRepo)
	svc := newPaymentService(payments, new(mockLeadGranter), offers, new(mockJobReader))
	ctx := context.Background()
	p := companyPrincipal()

	offer := &models.Offer{ID: uuid.New(), CompanyID: p.Company.ID, Status: models.OfferStatusAccepted}
	offers.On("GetByID", ctx, offer.ID).Return(offer, nil)

	_, err := svc.CreateChatPayment(ctx, p, offer.ID, "stripe", "pi_456")
	assert.ErrorIs(t, err, apperror.ErrChatFreeAfterAccept)
	payments.AssertNotCalled(t, "CreatePending", mock.Anything, mock.Anything)
}

func TestPaymentService_ConfirmByReference_UnlocksLead(t *testing.T) {
	payments := new(mockPaymentRepo)
	leads := new(mockLeadGranter)
	svc := newPaymentService(payments, leads, new(mockOfferRepo), new(mockJobReader))
	ctx := context.Background()

	jobID := uuid.New()
	pending := &models.Payment{
		ID:           uuid.New(),
		CompanyID:    uuid.New(),
		JobRequestID: &jobID,
		Type:         models.PaymentTypeUnlockLead,
		Status:       models.PaymentStatusPending,
	}
	paid := *pending
	paid.Status = models.PaymentStatusPaid

	payments.On("GetByProviderReference", ctx, "pi_123").Return(pending, nil)
	payments.On("MarkPaid", ctx, pending.ID).Return(&paid, nil)
	leads.On("GrantPaid", ctx, pending.CompanyID, jobID).Return(&models.LeadAccess{ID: uuid.New()}, nil)

	got, err := svc.ConfirmByReference(ctx, "pi_123")
	assert.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, got.Status)
	leads.AssertExpectations(t)
}

func TestPaymentService_ConfirmByReference_RepeatedWebhook(t *testing.T) {
	payments := new(mockPaymentRepo)
	leads := new(mockLeadGranter)
	svc := newPaymentService(payments, leads, new(mockOfferRepo), new(mockJobReader))
	ctx := context.Background()

	jobID := uuid.New()
	already := &models.Payment{
		ID:           uuid.New(),
		JobRequestID: &jobID,
		Type:         models.PaymentTypeUnlockLead,
		Status:       models.PaymentStatusPaid,
	}
	payments.On("GetByProviderReference", ctx, "pi_123").Return(already, nil)
	payments.On("MarkPaid", ctx, already.ID).Return(nil, repository.ErrPaymentNotPending)

	got, err := svc.ConfirmByReference(ctx, "pi_123")
	assert.NoError(t, err)
	assert.Equal(t, already, got)
	// Эффекты не повторяются.
	leads.AssertNotCalled(t, "GrantPaid", mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentService_ConfirmByReference_UnlocksChat(t *testing.T) {
	payments := new(mockPaymentRepo)
	offers := new(mockOfferRepo)
	svc := newPaymentService(payments, new(mockLeadGranter), offers, new(mockJobReader))
	ctx := context.Background()

	offerID := uuid.New()
	pending := &models.Payment{
		ID:                uuid.New(),
		OfferID:           &offerID,
		Type:              models.PaymentTypeUnlockChat,
		Amount:            5,
		Currency:          "EUR",
		Status:            models.PaymentStatusPending,
		ProviderReference: "pi_456",
	}
	paid := *pending
	paid.Status = models.PaymentStatusPaid

	payments.On("GetByProviderReference", ctx, "pi_456").Return(pending, nil)
	payments.On("MarkPaid", ctx, pending.ID).Return(&paid, nil)
	offers.On("CreateChatUnlock", ctx, mock.MatchedBy(func(u *models.OfferChatUnlock) bool {
		return u.OfferID == offerID &&
			u.UnlockType == models.UnlockTypeEarly &&
			u.PaymentReference == "pi_456"
	})).Return(&models.OfferChatUnlock{ID: uuid.New()}, nil)

	_, err := svc.ConfirmByReference(ctx, "pi_456")
	assert.NoError(t, err)
	offers.AssertExpectations(t)
}

func TestPaymentService_FailByReference(t *testing.T) {
	payments := new(mockPaymentRepo)
	svc := newPaymentService(payments, new(mockLeadGranter), new(mockOfferRepo), new(mockJobReader))
	ctx := context.Background()

	pending := &models.Payment{ID: uuid.New(), Status: models.PaymentStatusPending}
	failed := *pending
	failed.Status = models.PaymentStatusFailed

	payments.On("GetByProviderReference", ctx, "pi_789").Return(pending, nil)
	payments.On("MarkFailed", ctx, pending.ID).Return(&failed, nil)

	got, err := svc.FailByReference(ctx, "pi_789")
	assert.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, got.Status)
}
