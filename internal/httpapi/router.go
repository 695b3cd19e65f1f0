package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/CijeTheCreator/consultify-assemblyai/internal/common"
	"github.com/CijeTheCreator/consultify-assemblyai/internal/config"
	"github.com/CijeTheCreator/consultify-assemblyai/internal/consultation"
	"github.com/CijeTheCreator/consultify-assemblyai/internal/httpapi/handlers"
	"github.com/CijeTheCreator/consultify-assemblyai/internal/httpapi/middleware"
	"github.com/CijeTheCreator/consultify-assemblyai/internal/store/redisstore"
)

func NewRouter(db *gorm.DB, cfg config.Config, rds *redisstore.Store, mailq consultation.EmailQueue) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	h := handlers.NewHandler(db, cfg, rds, mailq)

	r.GET("/ping", h.Ping)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))

	// Consultations
	authGroup.POST("/consultations", h.CreateConsultation)
	authGroup.GET("/consultations", h.ListConsultations)
	authGroup.GET("/consultations/:id", h.GetConsultation)
	authGroup.PATCH("/consultations/:id/status", h.UpdateConsultationStatus)

	// AI triage (JWT required)
	authGroup.POST("/consultations/ai-triage", h.StartAITriage)
	authGroup.POST("/consultations/:id/triage-turns", h.TriageTurn)
	authGroup.POST("/consultations/:id/complete-triage", h.CompleteTriage)

	// Chat
	authGroup.GET("/consultations/:id/messages", h.ListMessages)
	authGroup.POST("/consultations/:id/messages", h.SendMessage)
	authGroup.POST("/consultations/:id/typing", h.SetTyping)
	authGroup.POST("/messages/:message_id/read", h.MarkMessageRead)

	// Prescriptions
	authGroup.POST("/consultations/:id/prescriptions", h.CreatePrescription)

	// Translation
	authGroup.POST("/translate", h.TranslateMessage)
	authGroup.POST("/translate-text", h.TranslateText)
	authGroup.POST("/translate-messages", h.TranslateMessages)

	// Dashboard
	authGroup.GET("/stats", h.Stats)

	return r
}
