package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CijeTheCreator/consultify-assemblyai/internal/common"
	"github.com/CijeTheCreator/consultify-assemblyai/internal/identity"
	"github.com/CijeTheCreator/consultify-assemblyai/internal/translation"
)

type translateTextReq struct {
	Text           string `json:"text" binding:"required"`
	SourceLanguage string `json:"source_language" binding:"required"`
	TargetLanguage string `json:"target_language" binding:"required"`
}

// TranslateText translates a raw string through the shared cache.
func (h *Handler) TranslateText(c *gin.Context) {
	if _, okk := userIDFromContext(c); !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req translateTextReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	out, err := h.Translator.Translate(c.Request.Context(), req.Text, req.SourceLanguage, req.TargetLanguage)
	if err != nil {
		log.Printf("[TranslateText] failed src=%s dst=%s err=%v", req.SourceLanguage, req.TargetLanguage, err)
		common.Fail(c, http.StatusInternalServerError, 50004, "translation failed")
		return
	}

	common.OK(c, gin.H{"translated_text": out})
}

type translateMessageReq struct {
	MessageID      string `json:"message_id" binding:"required"`
	Text           string `json:"text" binding:"required"`
	SourceLanguage string `json:"source_language" binding:"required"`
	TargetLanguage string `json:"target_language" binding:"required"`
}

// TranslateMessage translates one chat message through the
// message-scoped cache.
func (h *Handler) TranslateMessage(c *gin.Context) {
	if _, okk := userIDFromContext(c); !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req translateMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	out, err := h.Translator.TranslateMessage(c.Request.Context(), req.MessageID, req.Text, req.SourceLanguage, req.TargetLanguage)
	if err != nil {
		log.Printf("[TranslateMessage] failed message=%s err=%v", req.MessageID, err)
		common.Fail(c, http.StatusInternalServerError, 50004, "translation failed")
		return
	}

	common.OK(c, gin.H{
		"message_id":      req.MessageID,
		"translated_text": out,
	})
}

type translateMessagesReq struct {
	Messages       []translation.MessageInput `json:"messages" binding:"required"`
	TargetLanguage string                     `json:"target_language" binding:"required"`
}

// TranslateMessages translates a batch of chat messages into one target
// language, resolving each sender's locale from the identity provider.
func (h *Handler) TranslateMessages(c *gin.Context) {
	if _, okk := userIDFromContext(c); !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req translateMessagesReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	ctx := c.Request.Context()
	senderLocales := make(map[string]string)
	for _, m := range req.Messages {
		if _, seen := senderLocales[m.SenderID]; seen {
			continue
		}
		locale := identity.DefaultLocale
		if p, err := h.Dir.GetUser(ctx, m.SenderID); err == nil {
			locale = p.Locale
		}
		senderLocales[m.SenderID] = locale
	}

	out, err := h.Translator.TranslateMessages(ctx, req.Messages, req.TargetLanguage, senderLocales)
	if err != nil {
		log.Printf("[TranslateMessages] failed target=%s err=%v", req.TargetLanguage, err)
		common.Fail(c, http.StatusInternalServerError, 50004, "translation failed")
		return
	}

	common.OK(c, gin.H{"messages": out})
}
