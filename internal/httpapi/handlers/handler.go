package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/CijeTheCreator/consultify-assemblyai/internal/ai"
	"github.com/CijeTheCreator/consultify-assemblyai/internal/common"
	"github.com/CijeTheCreator/consultify-assemblyai/internal/config"
	"github.com/CijeTheCreator/consultify-assemblyai/internal/consultation"
	"github.com/CijeTheCreator/consultify-assemblyai/internal/httpapi/middleware"
	"github.com/CijeTheCreator/consultify-assemblyai/internal/identity"
	"github.com/CijeTheCreator/consultify-assemblyai/internal/store/redisstore"
	"github.com/CijeTheCreator/consultify-assemblyai/internal/translation"
	"github.com/CijeTheCreator/consultify-assemblyai/internal/triage"
)

type Handler struct {
	Cfg config.Config

	Dir        identity.Directory
	Consult    *consultation.Service
	Translator *translation.Service
	Triage     *triage.Conversation
}

func NewHandler(db *gorm.DB, cfg config.Config, rds *redisstore.Store, mailq consultation.EmailQueue) *Handler {
	dir := identity.NewHTTPDirectory(cfg.IdentityBaseURL, cfg.IdentityAPIKey)

	translator := translation.NewService(
		translation.NewRepo(db),
		translation.NewLingoProvider(cfg.TranslateBaseURL, cfg.TranslateAPIKey),
	)

	consultSvc := consultation.NewService(
		consultation.NewRepo(db),
		translator,
		dir,
		triage.NewSelector(dir),
		rds,
		mailq,
	)

	// Provider registry (route by configured provider + model)
	reg := ai.NewRegistry()
	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		_ = ctx
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, m), nil
	})
	reg.Register("openrouter", func(ctx context.Context, model string) (ai.Provider, error) {
		_ = ctx
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OpenRouterModel
		}
		return ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, m, cfg.OpenRouterSiteURL, cfg.OpenRouterAppName), nil
	})

	model := cfg.OllamaModel
	if cfg.AIProvider == "openrouter" {
		model = cfg.OpenRouterModel
	}

	return &Handler{
		Cfg:        cfg,
		Dir:        dir,
		Consult:    consultSvc,
		Translator: translator,
		Triage:     triage.NewConversation(reg, cfg.AIProvider, model),
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"status": "up"})
}

func userIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}
