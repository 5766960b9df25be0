package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ndertimnet/leadengine/internal/http/dto"
	"github.com/ndertimnet/leadengine/internal/http/handlers/common"
	"github.com/ndertimnet/leadengine/internal/service"
)

type PaymentHandler struct {
	payments *service.PaymentService
}

func NewPaymentHandler(payments *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// UnlockLead POST /payments/unlock-lead — платёж за разблокировку лида,
// заявка адресуется в теле запроса.
func (h *PaymentHandler) UnlockLead(c *gin.Context) {
	company, ok := common.CurrentCompany(c)
	if !ok {
		return
	}

	var req dto.UnlockLeadPaymentRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	payment, err := h.payments.CreateLeadPayment(c.Request.Context(), company, req.JobRequestID, req.Provider, req.ProviderReference)
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusCreated, payment)
}

// CreateLeadPayment POST /jobrequests/:id/payments — платёж за разблокировку лида.
func (h *PaymentHandler) CreateLeadPayment(c *gin.Context) {
	company, ok := common.CurrentCompany(c)
	if !ok {
		return
	}

	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.CreatePaymentRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	payment, err := h.payments.CreateLeadPayment(c.Request.Context(), company, jobID, req.Provider, req.ProviderReference)
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusCreated, payment)
}

// CreateChatPayment POST /offers/:id/payments — платёж за раннее открытие чата.
func (h *PaymentHandler) CreateChatPayment(c *gin.Context) {
	company, ok := common.CurrentCompany(c)
	if !ok {
		return
	}

	offerID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.CreatePaymentRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	payment, err := h.payments.CreateChatPayment(c.Request.Context(), company, offerID, req.Provider, req.ProviderReference)
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusCreated, payment)
}

// Webhook POST /payments/webhook — подтверждение или отказ провайдера.
// Эндпоинт идемпотентен: повторное уведомление не дублирует эффекты.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	var req dto.PaymentWebhookRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var err error
	switch req.Status {
	case "paid":
		_, err = h.payments.ConfirmByReference(c.Request.Context(), req.ProviderReference)
	case "failed":
		_, err = h.payments.FailByReference(c.Request.Context(), req.ProviderReference)
	}
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "обработано", nil)
}

// ListMy GET /payments/my — платежи компании.
func (h *PaymentHandler) ListMy(c *gin.Context) {
	company, ok := common.CurrentCompany(c)
	if !ok {
		return
	}

	payments, err := h.payments.ListMine(c.Request.Context(), company)
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusOK, payments)
}
