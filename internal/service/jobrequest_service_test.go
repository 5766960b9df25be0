package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ndertimnet/leadengine/internal/models"
	"github.com/ndertimnet/leadengine/internal/pkg/apperror"
	"github.com/ndertimnet/leadengine/internal/repository"
)

type mockJobRepo struct {
	mock.Mock
}

func (m *mockJobRepo) Create(ctx context.Context, job *models.JobRequest) (*models.JobRequest, error) {
	args := m.Called(ctx, job)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.JobRequest), args.Error(1)
}

func (m *mockJobRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.JobRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.JobRequest), args.Error(1)
}

func (m *mockJobRepo) ListForCustomer(ctx context.Context, customerID uuid.UUID) ([]models.JobRequest, error) {
	args := m.Called(ctx, customerID)
	return args.Get(0).([]models.JobRequest), args.Error(1)
}

func (m *mockJobRepo) ListActive(ctx context.Context, cityID, professionID *uuid.UUID, limit, offset int) ([]models.JobRequest, error) {
	args := m.Called(ctx, cityID, professionID, limit, offset)
	return args.Get(0).([]models.JobRequest), args.Error(1)
}

func (m *mockJobRepo) Update(ctx context.Context, jobID uuid.UUID, in repository.UpdateInput) (*models.JobRequest, error) {
	args := m.Called(ctx, jobID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.JobRequest), args.Error(1)
}

func (m *mockJobRepo) SoftDelete(ctx context.Context, jobID uuid.UUID) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

func (m *mockJobRepo) AcceptOffer(ctx context.Context, offerID uuid.UUID) (*models.JobRequest, *models.Offer, error) {
	args := m.Called(ctx, offerID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*models.JobRequest), args.Get(1).(*models.Offer), args.Error(2)
}

func (m *mockJobRepo) DeclineOffer(ctx context.Context, offerID uuid.UUID) (*models.Offer, error) {
	args := m.Called(ctx, offerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Offer), args.Error(1)
}

func (m *mockJobRepo) Reopen(ctx context.Context, jobID uuid.UUID, extraOffers int) (*models.JobRequest, error) {
	args := m.Called(ctx, jobID, extraOffers)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.JobRequest), args.Error(1)
}

func (m *mockJobRepo) ListAudit(ctx context.Context, jobID uuid.UUID) ([]models.JobRequestAudit, error) {
	args := m.Called(ctx, jobID)
	return args.Get(0).([]models.JobRequestAudit), args.Error(1)
}

func (m *mockJobRepo) CreateDraft(ctx context.Context, draft *models.JobRequestDraft) (*models.JobRequestDraft, error) {
	args := m.Called(ctx, draft)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.JobRequestDraft), args.Error(1)
}

func (m *mockJobRepo) GetDraftByID(ctx context.Context, id uuid.UUID) (*models.JobRequestDraft, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.JobRequestDraft), args.Error(1)
}

func (m *mockJobRepo) UpdateDraft(ctx context.Context, id uuid.UUID, in repository.DraftInput) (*models.JobRequestDraft, error) {
	args := m.Called(ctx, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.JobRequestDraft), args.Error(1)
}

func (m *mockJobRepo) SubmitDraft(ctx context.Context, draftID uuid.UUID, maxOffers int, expiresAt time.Time) (*models.JobRequest, error) {
	args := m.Called(ctx, draftID, maxOffers, expiresAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.JobRequest), args.Error(1)
}

func (m *mockJobRepo) CloseExpired(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *mockJobRepo) ListStaleReopenCandidates(ctx context.Context, quietSince time.Time) ([]uuid.UUID, error) {
	args := m.Called(ctx, quietSince)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

type mockOfferReader struct {
	mock.Mock
}

func (m *mockOfferReader) GetByID(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Offer), args.Error(1)
}

func (m *mockOfferReader) GetByCompanyAndJob(ctx context.Context, companyID, jobID uuid.UUID) (*models.Offer, error) {
	args := m.Called(ctx, companyID, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Offer), args.Error(1)
}

func newJobService(repo *mockJobRepo, offers *mockOfferReader, notifier *captureNotifier) *JobRequestService {
	return newJobServiceWithIdentities(repo, offers, new(mockIdentityReader), notifier)
}

func newJobServiceWithIdentities(repo *mockJobRepo, offers *mockOfferReader, identities *mockIdentityReader, notifier *captureNotifier) *JobRequestService {
	var n OfferNotifier
	if notifier != nil {
		n = notifier
	}
	return NewJobRequestService(repo, offers, identities, n, 7, 5, 40, 48*time.Hour, 120*time.Hour)
}

func TestJobRequestService_Create_EmptyTitle(t *testing.T) {
	repo := new(mockJobRepo)
	svc := newJobService(repo, new(mockOfferReader), nil)

	_, err := svc.Create(context.Background(), customerPrincipal(), CreateJobInput{Title: "  "})
	assert.Error(t, err)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestJobRequestService_Create_Defaults(t *testing.T) {
	repo := new(mockJobRepo)
	svc := newJobService(repo, new(mockOfferReader), nil)
	ctx := context.Background()
	p := customerPrincipal()

	repo.On("Create", ctx, mock.MatchedBy(func(j *models.JobRequest) bool {
		return j.CustomerID == p.Customer.ID &&
			j.MaxOffers == 7 &&
			j.ExpiresAt != nil &&
			time.Until(*j.ExpiresAt) > 39*24*time.Hour
	})).Return(&models.JobRequest{ID: uuid.New()}, nil)

	_, err := svc.Create(ctx, p, CreateJobInput{
		Title:        "Ремонт ванной",
		CityID:       uuid.New(),
		ProfessionID: uuid.New(),
	})
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestJobRequestService_Update_EditWindowClosed(t *testing.T) {
	repo := new(mockJobRepo)
	svc := newJobService(repo, new(mockOfferReader), nil)
	ctx := context.Background()
	p := customerPrincipal()

	job := activeJob(p.Customer.ID)
	job.CreatedAt = time.Now().Add(-72 * time.Hour)
	repo.On("GetByID", ctx, job.ID).Return(job, nil)

	_, err := svc.Update(ctx, p, job.ID, repository.UpdateInput{})
	assert.ErrorIs(t, err, apperror.ErrEditWindowClosed)
}

func TestJobRequestService_Update_OffersReceived(t *testing.T) {
	repo := new(mockJobRepo)
	svc := newJobService(repo, new(mockOfferReader), nil)
	ctx := context.Background()
	p := customerPrincipal()

	count := 2
	job := activeJob(p.Customer.ID)
	job.OffersCount = &count
	repo.On("GetByID", ctx, job.ID).Return(job, nil)

	_, err := svc.Update(ctx, p, job.ID, repository.UpdateInput{})
	assert.ErrorIs(t, err, apperror.ErrOffersReceived)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestJobRequestService_Delete_CompletedJob(t *testing.T) {
	repo := new(mockJobRepo)
	svc := newJobService(repo, new(mockOfferReader), nil)
	ctx := context.Background()
	p := customerPrincipal()

	winnerID := uuid.New()
	job := activeJob(p.Customer.ID)
	job.IsCompleted = true
	job.WinnerOfferID = &winnerID
	repo.On("GetByID", ctx, job.ID).Return(job, nil)

	err := svc.Delete(ctx, p, job.ID)
	assert.ErrorIs(t, err, apperror.ErrJobCompleted)
	repo.AssertNotCalled(t, "SoftDelete", mock.Anything, mock.Anything)
}

func TestJobRequestService_Get_CompanyLockedLeadHidesContact(t *testing.T) {
	repo := new(mockJobRepo)
	offers := new(mockOfferReader)
	identities := new(mockIdentityReader)
	svc := newJobServiceWithIdentities(repo, offers, identities, nil)
	ctx := context.Background()
	p := companyPrincipal()

	job := activeJob(uuid.New())
	repo.On("GetByID", ctx, job.ID).Return(job, nil)
	offers.On("GetByCompanyAndJob", ctx, p.Company.ID, job.ID).Return(&models.Offer{
		ID: uuid.New(), CompanyID: p.Company.ID, JobRequestID: job.ID, LeadUnlocked: false,
	}, nil)

	detail, err := svc.Get(ctx, p, job.ID)
	assert.NoError(t, err)
	assert.False(t, detail.LeadUnlocked)
	assert.Nil(t, detail.Customer)
	identities.AssertNotCalled(t, "GetCustomerByID", mock.Anything, mock.Anything)
}

func TestJobRequestService_Get_CompanyWithoutOffer(t *testing.T) {
	repo := new(mockJobRepo)
	offers := new(mockOfferReader)
	svc := newJobService(repo, offers, nil)
	ctx := context.Background()
	p := companyPrincipal()

	job := activeJob(uuid.New())
	repo.On("GetByID", ctx, job.ID).Return(job, nil)
	offers.On("GetByCompanyAndJob", ctx, p.Company.ID, job.ID).Return(nil, apperror.ErrOfferNotFound)

	detail, err := svc.Get(ctx, p, job.ID)
	assert.NoError(t, err)
	assert.False(t, detail.LeadUnlocked)
	assert.Nil(t, detail.Customer)
}

func TestJobRequestService_Get_CompanyUnlockedLeadShowsContact(t *testing.T) {
	repo := new(mockJobRepo)
	offers := new(mockOfferReader)
	identities := new(mockIdentityReader)
	svc := newJobServiceWithIdentities(repo, offers, identities, nil)
	ctx := context.Background()
	p := companyPrincipal()

	customerUserID := uuid.New()
	job := activeJob(uuid.New())
	repo.On("GetByID", ctx, job.ID).Return(job, nil)
	offers.On("GetByCompanyAndJob", ctx, p.Company.ID, job.ID).Return(&models.Offer{
		ID: uuid.New(), CompanyID: p.Company.ID, JobRequestID: job.ID, LeadUnlocked: true,
	}, nil)
	identities.On("GetCustomerByID", ctx, job.CustomerID).Return(&models.Customer{
		ID: job.CustomerID, UserID: customerUserID, Phone: "+46701234567",
	}, nil)
	identities.On("GetUserByID", ctx, customerUserID).Return(&models.User{
		ID: customerUserID, Email: "anna@example.com", FirstName: "Анна", LastName: "Линдгрен",
	}, nil)

	detail, err := svc.Get(ctx, p, job.ID)
	assert.NoError(t, err)
	assert.True(t, detail.LeadUnlocked)
	if assert.NotNil(t, detail.Customer) {
		assert.Equal(t, "Анна Линдгрен", detail.Customer.Name)
		assert.Equal(t, "+46701234567", detail.Customer.Phone)
		assert.Equal(t, "anna@example.com", detail.Customer.Email)
	}
}

func TestJobRequestService_AcceptOffer_Success(t *testing.T) {
	repo := new(mockJobRepo)
	offers := new(mockOfferReader)
	notifier := &captureNotifier{}
	svc := newJobService(repo, offers, notifier)
	ctx := context.Background()
	p := customerPrincipal()

	job := activeJob(p.Customer.ID)
	offer := &models.Offer{ID: uuid.New(), JobRequestID: job.ID, Status: models.OfferStatusSigned}
	offers.On("GetByID", ctx, offer.ID).Return(offer, nil)
	repo.On("GetByID", ctx, job.ID).Return(job, nil)

	winner := &models.Offer{ID: offer.ID, JobRequestID: job.ID, Status: models.OfferStatusAccepted}
	closed := &models.JobRequest{ID: job.ID, IsCompleted: true, WinnerOfferID: &offer.ID}
	repo.On("AcceptOffer", ctx, offer.ID).Return(closed, winner, nil)

	gotJob, gotOffer, err := svc.AcceptOffer(ctx, p, offer.ID)
	assert.NoError(t, err)
	assert.True(t, gotJob.IsCompleted)
	assert.Equal(t, models.OfferStatusAccepted, gotOffer.Status)

	if assert.Len(t, notifier.events, 1) {
		assert.Equal(t, "offer_accepted", notifier.events[0].Type)
	}
}

func TestJobRequestService_AcceptOffer_NotSigned(t *testing.T) {
	repo := new(mockJobRepo)
	offers := new(mockOfferReader)
	svc := newJobService(repo, offers, nil)
	ctx := context.Background()
	p := customerPrincipal()

	job := activeJob(p.Customer.ID)
	offer := &models.Offer{ID: uuid.New(), JobRequestID: job.ID, Status: models.OfferStatusDraft}
	offers.On("GetByID", ctx, offer.ID).Return(offer, nil)
	repo.On("GetByID", ctx, job.ID).Return(job, nil)
	repo.On("AcceptOffer", ctx, offer.ID).Return(nil, nil, repository.ErrOfferNotSigned)

	_, _, err := svc.AcceptOffer(ctx, p, offer.ID)
	assert.ErrorIs(t, err, apperror.ErrNotSigned)
}

func TestJobRequestService_AcceptOffer_AlreadyRejected(t *testing.T) {
	repo := new(mockJobRepo)
	offers := new(mockOfferReader)
	svc := newJobService(repo, offers, nil)
	ctx := context.Background()
	p := customerPrincipal()

	job := activeJob(p.Customer.ID)
	offer := &models.Offer{ID: uuid.New(), JobRequestID: job.ID, Status: models.OfferStatusRejected}
	offers.On("GetByID", ctx, offer.ID).Return(offer, nil)
	repo.On("GetByID", ctx, job.ID).Return(job, nil)

	_, _, err := svc.AcceptOffer(ctx, p, offer.ID)
	assert.ErrorIs(t, err, apperror.ErrAlreadyRejected)
	repo.AssertNotCalled(t, "AcceptOffer", mock.Anything, mock.Anything)
}

func TestJobRequestService_AcceptOffer_ForeignJob(t *testing.T) {
	repo := new(mockJobRepo)
	offers := new(mockOfferReader)
	svc := newJobService(repo, offers, nil)
	ctx := context.Background()

	job := activeJob(uuid.New())
	offer := &models.Offer{ID: uuid.New(), JobRequestID: job.ID, Status: models.OfferStatusSigned}
	offers.On("GetByID", ctx, offer.ID).Return(offer, nil)
	repo.On("GetByID", ctx, job.ID).Return(job, nil)

	_, _, err := svc.AcceptOffer(ctx, customerPrincipal(), offer.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestJobRequestService_DeclineOffer_AcceptedOffer(t *testing.T) {
	repo := new(mockJobRepo)
	offers := new(mockOfferReader)
	svc := newJobService(repo, offers, nil)
	ctx := context.Background()
	p := customerPrincipal()

	job := activeJob(p.Customer.ID)
	offer := &models.Offer{ID: uuid.New(), JobRequestID: job.ID, Status: models.OfferStatusAccepted}
	offers.On("GetByID", ctx, offer.ID).Return(offer, nil)
	repo.On("GetByID", ctx, job.ID).Return(job, nil)
	repo.On("DeclineOffer", ctx, offer.ID).Return(nil, repository.ErrWinnerAlreadySelected)

	_, err := svc.DeclineOffer(ctx, p, offer.ID)
	assert.ErrorIs(t, err, apperror.ErrAlreadyAccepted)
}

func TestJobRequestService_Reopen_Mappings(t *testing.T) {
	cases := []struct {
		name     string
		repoErr  error
		expected error
	}{
		{"раунд не заполнен", repository.ErrRoundNotFull, apperror.ErrRoundNotFull},
		{"нет оферт", repository.ErrNoOffers, apperror.ErrRoundNotFull},
		{"уже открывалась повторно", repository.ErrJobAlreadyReopened, apperror.ErrAlreadyReopened},
		{"есть подписанные оферты", repository.ErrSignedOffersPending, apperror.ErrSignedPending},
		{"победитель выбран", repository.ErrWinnerAlreadySelected, apperror.ErrJobCompleted},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := new(mockJobRepo)
			svc := newJobService(repo, new(mockOfferReader), nil)
			ctx := context.Background()
			p := customerPrincipal()

			job := activeJob(p.Customer.ID)
			repo.On("GetByID", ctx, job.ID).Return(job, nil)
			repo.On("Reopen", ctx, job.ID, 5).Return(nil, tc.repoErr)

			_, err := svc.Reopen(ctx, p, job.ID)
			assert.ErrorIs(t, err, tc.expected)
		})
	}
}

func TestJobRequestService_ListAudit_CompanyNeedsUnlockedLead(t *testing.T) {
	repo := new(mockJobRepo)
	offers := new(mockOfferReader)
	svc := newJobService(repo, offers, nil)
	ctx := context.Background()
	p := companyPrincipal()

	job := activeJob(uuid.New())
	repo.On("GetByID", ctx, job.ID).Return(job, nil)
	offers.On("GetByCompanyAndJob", ctx, p.Company.ID, job.ID).Return(&models.Offer{
		ID: uuid.New(), LeadUnlocked: false,
	}, nil)

	_, err := svc.ListAudit(ctx, p, job.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
	repo.AssertNotCalled(t, "ListAudit", mock.Anything, mock.Anything)
}

func TestJobRequestService_SubmitDraft_Incomplete(t *testing.T) {
	repo := new(mockJobRepo)
	svc := newJobService(repo, new(mockOfferReader), nil)
	ctx := context.Background()
	p := customerPrincipal()

	draft := &models.JobRequestDraft{ID: uuid.New(), CustomerID: p.Customer.ID, Title: "Забор"}
	repo.On("GetDraftByID", ctx, draft.ID).Return(draft, nil)

	_, err := svc.SubmitDraft(ctx, p, draft.ID)
	assert.Error(t, err)
	repo.AssertNotCalled(t, "SubmitDraft", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestJobRequestService_CloseExpiredJobs(t *testing.T) {
	repo := new(mockJobRepo)
	svc := newJobService(repo, new(mockOfferReader), nil)
	ctx := context.Background()

	repo.On("CloseExpired", ctx, mock.Anything).Return([]uuid.UUID{uuid.New(), uuid.New()}, nil)

	closed, err := svc.CloseExpiredJobs(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 2, closed)
}

func TestJobRequestService_ReopenStaleJobs_SkipsFailed(t *testing.T) {
	repo := new(mockJobRepo)
	svc := newJobService(repo, new(mockOfferReader), nil)
	ctx := context.Background()

	first, second := uuid.New(), uuid.New()
	repo.On("ListStaleReopenCandidates", ctx, mock.Anything).Return([]uuid.UUID{first, second}, nil)
	// Кандидат мог измениться между выборкой и повторным открытием.
	repo.On("Reopen", ctx, first, 5).Return(nil, errors.New("конкурентное изменение"))
	repo.On("Reopen", ctx, second, 5).Return(&models.JobRequest{ID: second, IsReopened: true}, nil)

	reopened, err := svc.ReopenStaleJobs(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, reopened)
	repo.AssertExpectations(t)
}
