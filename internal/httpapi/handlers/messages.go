package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/CijeTheCreator/consultify-assemblyai/internal/common"
	"github.com/CijeTheCreator/consultify-assemblyai/internal/consultation"
)

func (h *Handler) ListMessages(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	list, err := h.Consult.ListMessages(c.Request.Context(), c.Param("id"), uid)
	if err != nil {
		log.Printf("[ListMessages] failed uid=%s consultation=%s err=%v", uid, c.Param("id"), err)
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to list messages")
		return
	}

	common.OK(c, list)
}

type sendMessageReq struct {
	Content string `json:"content" binding:"required"`
}

func (h *Handler) SendMessage(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	msg, err := h.Consult.SendMessage(c.Request.Context(), c.Param("id"), uid, req.Content)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "consultation not found")
			return
		}
		log.Printf("[SendMessage] failed uid=%s consultation=%s err=%v", uid, c.Param("id"), err)
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to send message")
		return
	}

	common.OK(c, gin.H{"message": msg})
}

type typingReq struct {
	IsTyping *bool `json:"is_typing" binding:"required"`
}

func (h *Handler) SetTyping(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req typingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	if err := h.Consult.SetTyping(c.Request.Context(), c.Param("id"), uid, *req.IsTyping); err != nil {
		log.Printf("[SetTyping] failed uid=%s consultation=%s err=%v", uid, c.Param("id"), err)
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to update typing state")
		return
	}

	common.OK(c, gin.H{"is_typing": *req.IsTyping})
}

func (h *Handler) MarkMessageRead(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	if err := h.Consult.MarkRead(c.Request.Context(), c.Param("message_id"), uid); err != nil {
		log.Printf("[MarkMessageRead] failed uid=%s message=%s err=%v", uid, c.Param("message_id"), err)
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to mark message read")
		return
	}

	common.OK(c, gin.H{"message_id": c.Param("message_id")})
}

type createPrescriptionReq struct {
	Medications []consultation.Medication `json:"medications" binding:"required"`
}

func (h *Handler) CreatePrescription(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req createPrescriptionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	p, msg, err := h.Consult.CreatePrescription(c.Request.Context(), c.Param("id"), req.Medications)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			common.Fail(c, http.StatusNotFound, 40401, "consultation not found")
		case errors.Is(err, consultation.ErrNoDoctorAssigned):
			common.Fail(c, http.StatusConflict, 40902, "no doctor assigned")
		case errors.Is(err, consultation.ErrNoValidMedications):
			common.Fail(c, http.StatusBadRequest, 10006, "no valid medications provided")
		default:
			log.Printf("[CreatePrescription] failed uid=%s consultation=%s err=%v", uid, c.Param("id"), err)
			common.Fail(c, http.StatusInternalServerError, 50001, "failed to create prescription")
		}
		return
	}

	common.OK(c, gin.H{
		"prescription": p,
		"message":      msg,
	})
}
