package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ndertimnet/leadengine/internal/http/handlers/common"
	"github.com/ndertimnet/leadengine/internal/service"
)

type LeadHandler struct {
	leads *service.LeadAccessService
}

func NewLeadHandler(leads *service.LeadAccessService) *LeadHandler {
	return &LeadHandler{leads: leads}
}

// Unlock POST /jobrequests/:id/unlock-lead — доступ к контактам заявки.
func (h *LeadHandler) Unlock(c *gin.Context) {
	company, ok := common.CurrentCompany(c)
	if !ok {
		return
	}

	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	access, remaining, err := h.leads.Unlock(c.Request.Context(), company, jobID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	resp := gin.H{"access": access}
	if remaining >= 0 {
		resp["free_leads_remaining"] = remaining
	}
	common.RespondJSON(c, http.StatusCreated, resp)
}

// ListMy GET /leads/my — разблокированные лиды компании.
func (h *LeadHandler) ListMy(c *gin.Context) {
	company, ok := common.CurrentCompany(c)
	if !ok {
		return
	}

	accesses, err := h.leads.ListUnlocked(c.Request.Context(), company)
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusOK, accesses)
}
