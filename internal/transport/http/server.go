package http

import (
	"github.com/gin-gonic/gin"

	"aligncall/internal/bootstrap"
	"aligncall/internal/transport/http/handler"
	"aligncall/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	cfg := app.Config
	svc := app.Services

	healthHandler := handler.NewHealthHandler(app)
	toolHandler := handler.NewToolHandler(svc.Tools)
	webhookHandler := handler.NewWebhookHandler(svc.CallEvents, app.CallEventQueue, app.Logger)
	campaignHandler := handler.NewCampaignHandler(svc.Campaigns, int64(cfg.Campaign.MaxUploadMB)<<20)
	knowledgeHandler := handler.NewKnowledgeHandler(svc.Knowledge, svc.Tools, svc.Geo)
	authHandler := handler.NewAuthHandler(svc.Auth)

	router.GET("/healthz", healthHandler.Check)

	vapi := router.Group("/vapi", middleware.WebhookSecret(cfg.Voice.WebhookSecret))
	vapi.POST("/tools", toolHandler.Handle)
	vapi.POST("/webhooks/call-events", webhookHandler.CallEvents)

	requireOperator := middleware.AuthJWT(cfg.Auth.JWTSecret)
	router.GET("/calls/batch/:batch_id", requireOperator, campaignHandler.BatchCallsPlain)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", requireOperator, authHandler.Me)

	dashboard := v1.Group("", requireOperator)
	dashboard.POST("/campaigns/upload", campaignHandler.Upload)
	dashboard.GET("/batches", campaignHandler.ListBatches)
	dashboard.GET("/batches/:id/calls", campaignHandler.BatchCalls)
	dashboard.POST("/knowledge", knowledgeHandler.Ingest)
	dashboard.POST("/knowledge/search", knowledgeHandler.Search)
	dashboard.POST("/geo", knowledgeHandler.LoadGeo)

	return router
}
