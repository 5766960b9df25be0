package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/ndertimnet/leadengine/internal/auth"
	"github.com/ndertimnet/leadengine/internal/http/handlers/common"
	"github.com/ndertimnet/leadengine/internal/http/middleware"
	"github.com/ndertimnet/leadengine/internal/logger"
	"github.com/ndertimnet/leadengine/internal/service"
	"github.com/ndertimnet/leadengine/internal/ws"
)

type WSHandler struct {
	hub      *ws.Hub
	tokens   *service.TokenManager
	resolver middleware.PrincipalResolver
	jobs     *service.JobRequestService
	leads    *service.LeadAccessService
	upgrader websocket.Upgrader
}

func NewWSHandler(hub *ws.Hub, tokens *service.TokenManager, resolver middleware.PrincipalResolver, jobs *service.JobRequestService, leads *service.LeadAccessService) *WSHandler {
	return &WSHandler{
		hub:      hub,
		tokens:   tokens,
		resolver: resolver,
		jobs:     jobs,
		leads:    leads,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Браузерные клиенты проверяются CORS-слоем до апгрейда.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handle GET /ws?job_request_id=...&token=... — подписка на события заявки.
// Токен передаётся в query: браузерный WebSocket не умеет заголовки.
func (h *WSHandler) Handle(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		common.RespondUnauthorized(c, "")
		return
	}

	userID, _, err := h.tokens.ParseAccess(token)
	if err != nil {
		common.RespondUnauthorized(c, "токен невалиден")
		return
	}

	principal, err := middleware.ResolvePrincipal(c.Request.Context(), h.resolver, userID)
	if err != nil || principal == nil {
		common.RespondUnauthorized(c, "токен невалиден")
		return
	}

	jobID, err := common.ParseUUIDQuery(c, "job_request_id")
	if err != nil || jobID == nil {
		common.RespondBadRequest(c, "укажите job_request_id")
		return
	}

	job, err := h.jobs.Get(c.Request.Context(), principal, *jobID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	// Компания подписывается только на заявки с разблокированным лидом.
	if company, ok := auth.AsCompany(principal); ok {
		hasAccess, err := h.leads.HasAccess(c.Request.Context(), company.Company.ID, job.ID)
		if err != nil {
			_ = c.Error(err)
			return
		}
		if !hasAccess {
			common.RespondForbidden(c, "лид не разблокирован")
			return
		}
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.WithError(err).Warn("ws: не удалось выполнить апгрейд соединения")
		return
	}

	client := ws.NewClient(conn, h.hub, job.ID)
	h.hub.Register(client)

	client.Run(c.Request.Context())
}
