package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ndertimnet/leadengine/internal/config"
	"github.com/ndertimnet/leadengine/internal/http/handlers"
	"github.com/ndertimnet/leadengine/internal/http/middleware"
	"github.com/ndertimnet/leadengine/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	jobHandler *handlers.JobRequestHandler,
	offerHandler *handlers.OfferHandler,
	leadHandler *handlers.LeadHandler,
	paymentHandler *handlers.PaymentHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
	resolver middleware.PrincipalResolver,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")
	api.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))

	// WebSocket авторизуется токеном в query, не заголовком.
	api.GET("/ws", wsHandler.Handle)

	// Вебхук платёжного провайдера: аутентификация по ссылке платежа.
	api.POST("/payments/webhook", paymentHandler.Webhook)

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager, resolver))
	{
		// Заявки.
		protected.POST("/jobrequests", jobHandler.Create)
		protected.GET("/jobrequests", jobHandler.Browse)
		protected.GET("/jobrequests/my", jobHandler.ListMy)
		protected.GET("/jobrequests/:id", jobHandler.Get)
		protected.PATCH("/jobrequests/:id", jobHandler.Update)
		protected.DELETE("/jobrequests/:id", jobHandler.Delete)
		protected.POST("/jobrequests/:id/accept-offer", jobHandler.AcceptOffer)
		protected.POST("/jobrequests/:id/decline-offer", jobHandler.DeclineOffer)
		protected.POST("/jobrequests/:id/reopen", jobHandler.Reopen)
		protected.GET("/jobrequests/:id/audit", jobHandler.Audit)
		protected.GET("/jobrequests/:id/offers", offerHandler.ListForJob)
		protected.POST("/jobrequests/:id/unlock-lead", leadHandler.Unlock)
		protected.POST("/jobrequests/:id/payments", paymentHandler.CreateLeadPayment)

		// Черновики заявок.
		protected.POST("/jobrequests/drafts", jobHandler.CreateDraft)
		protected.GET("/jobrequests/drafts/:id", jobHandler.GetDraft)
		protected.PATCH("/jobrequests/drafts/:id", jobHandler.UpdateDraft)
		protected.POST("/jobrequests/drafts/:id/submit", jobHandler.SubmitDraft)

		// Оферты. PATCH создаёт новую версию, старые версии неизменяемы.
		protected.POST("/offers", offerHandler.Create)
		protected.GET("/offers/my", offerHandler.ListMy)
		protected.GET("/offers/:id", offerHandler.Get)
		protected.PATCH("/offers/:id", offerHandler.CreateVersion)
		protected.GET("/offers/:id/versions", offerHandler.ListVersions)
		protected.POST("/offers/:id/sign", offerHandler.Sign)
		protected.POST("/offers/:id/decision", offerHandler.Decision)
		protected.POST("/offers/:id/lock", offerHandler.Lock)
		protected.POST("/offers/:id/unlock-chat", offerHandler.UnlockChat)
		protected.POST("/offers/:id/messages", offerHandler.SendMessage)
		protected.GET("/offers/:id/messages", offerHandler.ListMessages)
		protected.GET("/offers/:id/pdf", offerHandler.Contract)
		protected.POST("/offers/:id/payments", paymentHandler.CreateChatPayment)

		// Лиды и платежи компании.
		protected.GET("/leads/my", leadHandler.ListMy)
		protected.POST("/payments/unlock-lead", paymentHandler.UnlockLead)
		protected.GET("/payments/my", paymentHandler.ListMy)
	}

	return r
}
