package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ndertimnet/leadengine/internal/contract"
	"github.com/ndertimnet/leadengine/internal/http/dto"
	"github.com/ndertimnet/leadengine/internal/http/handlers/common"
	"github.com/ndertimnet/leadengine/internal/repository"
	"github.com/ndertimnet/leadengine/internal/service"
)

type OfferHandler struct {
	offers    *service.OfferService
	jobs      *service.JobRequestService
	contracts contract.Renderer
}

func NewOfferHandler(offers *service.OfferService, jobs *service.JobRequestService, contracts contract.Renderer) *OfferHandler {
	return &OfferHandler{offers: offers, jobs: jobs, contracts: contracts}
}

// Create POST /offers — черновик оферты с первой версией.
func (h *OfferHandler) Create(c *gin.Context) {
	company, ok := common.CurrentCompany(c)
	if !ok {
		return
	}

	var req dto.CreateOfferRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	offer, err := h.offers.Create(c.Request.Context(), company, req.JobRequestID, versionInput(req.OfferVersionRequest))
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusCreated, offer)
}

// ListMy GET /offers/my — оферты компании.
func (h *OfferHandler) ListMy(c *gin.Context) {
	company, ok := common.CurrentCompany(c)
	if !ok {
		return
	}

	offers, err := h.offers.ListMine(c.Request.Context(), company)
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusOK, offers)
}

// Get GET /offers/:id
func (h *OfferHandler) Get(c *gin.Context) {
	principal, err := common.CurrentPrincipal(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	offerID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	offer, err := h.offers.Get(c.Request.Context(), principal, offerID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusOK, offer)
}

// ListForJob GET /jobrequests/:id/offers — оферты по заявке.
func (h *OfferHandler) ListForJob(c *gin.Context) {
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

	offers, err := h.offers.ListForJob(c.Request.Context(), principal, jobID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusOK, offers)
}

// CreateVersion PATCH /offers/:id — новая версия условий.
func (h *OfferHandler) CreateVersion(c *gin.Context) {
	company, ok := common.CurrentCompany(c)
	if !ok {
		return
	}

	offerID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.OfferVersionRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	offer, err := h.offers.Edit(c.Request.Context(), company, offerID, versionInput(req))
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusOK, offer)
}

// ListVersions GET /offers/:id/versions — история версий.
func (h *OfferHandler) ListVersions(c *gin.Context) {
	principal, err := common.CurrentPrincipal(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	offerID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	versions, err := h.offers.ListVersions(c.Request.Context(), principal, offerID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusOK, versions)
}

// Sign POST /offers/:id/sign — подпись текущей версии.
func (h *OfferHandler) Sign(c *gin.Context) {
	company, ok := common.CurrentCompany(c)
	if !ok {
		return
	}

	offerID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.SignOfferRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	signature, err := h.offers.Sign(c.Request.Context(), company, offerID, req.Identity, c.ClientIP())
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusCreated, signature)
}

// Decision POST /offers/:id/decision — решение клиента: accept или decline.
func (h *OfferHandler) Decision(c *gin.Context) {
	customer, ok := common.CurrentCustomer(c)
	if !ok {
		return
	}

	offerID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.DecisionRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	switch req.Decision {
	case "accept":
		job, winner, err := h.jobs.AcceptOffer(c.Request.Context(), customer, offerID)
		if err != nil {
			_ = c.Error(err)
			return
		}
		common.RespondJSON(c, http.StatusOK, gin.H{"job_request": job, "offer": winner})
	case "decline":
		offer, err := h.jobs.DeclineOffer(c.Request.Context(), customer, offerID)
		if err != nil {
			_ = c.Error(err)
			return
		}
		common.RespondJSON(c, http.StatusOK, offer)
	default:
		common.RespondBadRequest(c, "неизвестное решение")
	}
}

// Lock POST /offers/:id/lock — административная блокировка.
func (h *OfferHandler) Lock(c *gin.Context) {
	principal, err := common.CurrentPrincipal(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	offerID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	offer, err := h.offers.Lock(c.Request.Context(), principal, offerID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusOK, offer)
}

// UnlockChat POST /offers/:id/unlock-chat
func (h *OfferHandler) UnlockChat(c *gin.Context) {
	company, ok := common.CurrentCompany(c)
	if !ok {
		return
	}

	offerID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	unlock, err := h.offers.UnlockChat(c.Request.Context(), company, offerID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusOK, unlock)
}

// SendMessage POST /offers/:id/messages
func (h *OfferHandler) SendMessage(c *gin.Context) {
	principal, err := common.CurrentPrincipal(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	offerID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.MessageRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	msg, err := h.offers.SendMessage(c.Request.Context(), principal, offerID, req.Message)
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusCreated, msg)
}

// ListMessages GET /offers/:id/messages
func (h *OfferHandler) ListMessages(c *gin.Context) {
	principal, err := common.CurrentPrincipal(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	offerID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)

	messages, err := h.offers.ListMessages(c.Request.Context(), principal, offerID, limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusOK, messages)
}

// Contract GET /offers/:id/pdf — документ по подписанной оферте.
func (h *OfferHandler) Contract(c *gin.Context) {
	principal, err := common.CurrentPrincipal(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	offerID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	doc, err := h.offers.ContractData(c.Request.Context(), principal, offerID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	body, contentType, err := h.contracts.Render(c.Request.Context(), doc)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Data(http.StatusOK, contentType, body)
}

func versionInput(req dto.OfferVersionRequest) repository.VersionInput {
	return repository.VersionInput{
		PresentationText: req.PresentationText,
		CanStartFrom:     req.CanStartFrom,
		DurationText:     req.DurationText,
		PriceType:        req.PriceType,
		PriceAmount:      req.PriceAmount,
		Currency:         req.Currency,
		IncludesText:     req.IncludesText,
		ExcludesText:     req.ExcludesText,
		PaymentTerms:     req.PaymentTerms,
	}
}
