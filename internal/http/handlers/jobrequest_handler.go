package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ndertimnet/leadengine/internal/http/dto"
	"github.com/ndertimnet/leadengine/internal/http/handlers/common"
	"github.com/ndertimnet/leadengine/internal/repository"
	"github.com/ndertimnet/leadengine/internal/service"
)

type JobRequestHandler struct {
	jobs *service.JobRequestService
}

func NewJobRequestHandler(jobs *service.JobRequestService) *JobRequestHandler {
	return &JobRequestHandler{jobs: jobs}
}

// Create POST /jobrequests
func (h *JobRequestHandler) Create(c *gin.Context) {
	customer, ok := common.CurrentCustomer(c)
	if !ok {
		return
	}

	var req dto.CreateJobRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	job, err := h.jobs.Create(c.Request.Context(), customer, service.CreateJobInput{
		Title:        req.Title,
		Description:  req.Description,
		Budget:       req.Budget,
		CityID:       req.CityID,
		ProfessionID: req.ProfessionID,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusCreated, job)
}

// Browse GET /jobrequests — лента открытых заявок. С параметром mine=1
// возвращает заявки текущего клиента.
func (h *JobRequestHandler) Browse(c *gin.Context) {
	if c.Query("mine") == "1" {
		h.ListMy(c)
		return
	}

	cityID, err := common.ParseUUIDQuery(c, "city_id")
	if err != nil {
		common.RespondBadRequest(c, "неверный city_id")
		return
	}
	professionID, err := common.ParseUUIDQuery(c, "profession_id")
	if err != nil {
		common.RespondBadRequest(c, "неверный profession_id")
		return
	}
	limit, offset := common.GetPagination(c)

	jobs, err := h.jobs.Browse(c.Request.Context(), cityID, professionID, limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusOK, jobs)
}

// ListMy GET /jobrequests/my — заявки клиента.
func (h *JobRequestHandler) ListMy(c *gin.Context) {
	customer, ok := common.CurrentCustomer(c)
	if !ok {
		return
	}

	jobs, err := h.jobs.ListMine(c.Request.Context(), customer)
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusOK, jobs)
}

// Get GET /jobrequests/:id
func (h *JobRequestHandler) Get(c *gin.Context) {
	principal, err := common.CurrentPrincipal(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	job, err := h.jobs.Get(c.Request.Context(), principal, jobID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusOK, job)
}

// Update PATCH /jobrequests/:id
func (h *JobRequestHandler) Update(c *gin.Context) {
	customer, ok := common.CurrentCustomer(c)
	if !ok {
		return
	}

	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.UpdateJobRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	job, err := h.jobs.Update(c.Request.Context(), customer, jobID, repository.UpdateInput{
		Title:        req.Title,
		Description:  req.Description,
		Budget:       req.Budget,
		CityID:       req.CityID,
		ProfessionID: req.ProfessionID,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusOK, job)
}

// Delete DELETE /jobrequests/:id — мягкое удаление.
func (h *JobRequestHandler) Delete(c *gin.Context) {
	customer, ok := common.CurrentCustomer(c)
	if !ok {
		return
	}

	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.jobs.Delete(c.Request.Context(), customer, jobID); err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "заявка удалена", nil)
}

// AcceptOffer POST /jobrequests/:id/accept-offer — выбор победителя.
// Остальные оферты заявки отклоняются каскадом.
func (h *JobRequestHandler) AcceptOffer(c *gin.Context) {
	customer, ok := common.CurrentCustomer(c)
	if !ok {
		return
	}

	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.JobDecisionRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	job, winner, err := h.jobs.AcceptOfferForJob(c.Request.Context(), customer, jobID, req.OfferID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusOK, gin.H{"job_request": job, "offer": winner})
}

// DeclineOffer POST /jobrequests/:id/decline-offer
func (h *JobRequestHandler) DeclineOffer(c *gin.Context) {
	customer, ok := common.CurrentCustomer(c)
	if !ok {
		return
	}

	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.JobDecisionRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	offer, err := h.jobs.DeclineOfferForJob(c.Request.Context(), customer, jobID, req.OfferID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusOK, offer)
}

// Reopen POST /jobrequests/:id/reopen — второй раунд сбора оферт.
func (h *JobRequestHandler) Reopen(c *gin.Context) {
	customer, ok := common.CurrentCustomer(c)
	if !ok {
		return
	}

	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	job, err := h.jobs.Reopen(c.Request.Context(), customer, jobID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusOK, job)
}

// Audit GET /jobrequests/:id/audit — журнал заявки.
func (h *JobRequestHandler) Audit(c *gin.Context) {
	principal, err := common.CurrentPrincipal(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	entries, err := h.jobs.ListAudit(c.Request.Context(), principal, jobID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusOK, entries)
}

// CreateDraft POST /jobrequests/drafts
func (h *JobRequestHandler) CreateDraft(c *gin.Context) {
	customer, ok := common.CurrentCustomer(c)
	if !ok {
		return
	}

	var req dto.DraftRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	draft, err := h.jobs.CreateDraft(c.Request.Context(), customer, service.DraftInput{
		Title:        req.Title,
		Description:  req.Description,
		Budget:       req.Budget,
		CityID:       req.CityID,
		ProfessionID: req.ProfessionID,
		CurrentStep:  req.CurrentStep,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusCreated, draft)
}

// GetDraft GET /jobrequests/drafts/:id
func (h *JobRequestHandler) GetDraft(c *gin.Context) {
	customer, ok := common.CurrentCustomer(c)
	if !ok {
		return
	}

	draftID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	draft, err := h.jobs.GetDraft(c.Request.Context(), customer, draftID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusOK, draft)
}

// UpdateDraft PATCH /jobrequests/drafts/:id
func (h *JobRequestHandler) UpdateDraft(c *gin.Context) {
	customer, ok := common.CurrentCustomer(c)
	if !ok {
		return
	}

	draftID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.DraftRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	draft, err := h.jobs.UpdateDraft(c.Request.Context(), customer, draftID, service.DraftInput{
		Title:        req.Title,
		Description:  req.Description,
		Budget:       req.Budget,
		CityID:       req.CityID,
		ProfessionID: req.ProfessionID,
		CurrentStep:  req.CurrentStep,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusOK, draft)
}

// SubmitDraft POST /jobrequests/drafts/:id/submit — черновик становится заявкой.
func (h *JobRequestHandler) SubmitDraft(c *gin.Context) {
	customer, ok := common.CurrentCustomer(c)
	if !ok {
		return
	}

	draftID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	job, err := h.jobs.SubmitDraft(c.Request.Context(), customer, draftID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusCreated, job)
}
