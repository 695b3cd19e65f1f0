package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/CijeTheCreator/consultify-assemblyai/internal/ai"
	"github.com/CijeTheCreator/consultify-assemblyai/internal/common"
	"github.com/CijeTheCreator/consultify-assemblyai/internal/consultation"
	"github.com/CijeTheCreator/consultify-assemblyai/internal/identity"
	"github.com/CijeTheCreator/consultify-assemblyai/internal/triage"
)

type createConsultationReq struct {
	Title string `json:"title" binding:"required"`
}

func (h *Handler) CreateConsultation(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req createConsultationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	view, err := h.Consult.Create(c.Request.Context(), uid, req.Title)
	if err != nil {
		if errors.Is(err, triage.ErrNoDoctorsAvailable) {
			common.Fail(c, http.StatusServiceUnavailable, 50301, "no doctors available")
			return
		}
		log.Printf("[CreateConsultation] failed uid=%s err=%v", uid, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to create consultation")
		return
	}

	common.OK(c, gin.H{"consultation": view})
}

func (h *Handler) ListConsultations(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	role, okk := roleFromQuery(c)
	if !okk {
		common.Fail(c, http.StatusBadRequest, 10007, "invalid role")
		return
	}

	views, err := h.Consult.ListForUser(c.Request.Context(), uid, role)
	if err != nil {
		log.Printf("[ListConsultations] failed uid=%s err=%v", uid, err)
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to list consultations")
		return
	}

	common.OK(c, gin.H{"consultations": views})
}

func (h *Handler) GetConsultation(c *gin.Context) {
	if _, okk := userIDFromContext(c); !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	view, err := h.Consult.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "consultation not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	common.OK(c, gin.H{"consultation": view})
}

type updateStatusReq struct {
	Status consultation.Status `json:"status" binding:"required"`
}

func (h *Handler) UpdateConsultationStatus(c *gin.Context) {
	if _, okk := userIDFromContext(c); !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req updateStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	switch req.Status {
	case consultation.StatusActive, consultation.StatusCompleted, consultation.StatusCancelled:
	default:
		common.Fail(c, http.StatusBadRequest, 10005, "invalid status")
		return
	}

	if err := h.Consult.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "consultation not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	common.OK(c, gin.H{"id": c.Param("id"), "status": req.Status})
}

func (h *Handler) StartAITriage(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	cons, err := h.Consult.StartAITriage(c.Request.Context(), uid)
	if err != nil {
		log.Printf("[StartAITriage] failed uid=%s err=%v", uid, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to start triage")
		return
	}

	common.OK(c, gin.H{"consultation": cons})
}

type triageTurnReq struct {
	Message string `json:"message" binding:"required"`
	// Prior turns of the conversation, oldest first. Roles are "user"
	// and "assistant".
	History []ai.Message `json:"history"`
}

// TriageTurn runs one round of the intake conversation. When the model
// signals completion, the hand-off runs in the same request and the
// result is returned alongside the reply.
func (h *Handler) TriageTurn(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req triageTurnReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	consultationID := c.Param("id")
	ctx := c.Request.Context()

	turns := append(req.History, ai.Message{Role: "user", Content: req.Message})
	reply, completed, err := h.Triage.Respond(ctx, turns)
	if err != nil {
		log.Printf("[TriageTurn] llm failed uid=%s consultation=%s err=%v", uid, consultationID, err)
		common.Fail(c, http.StatusBadGateway, 50201, "assistant unavailable")
		return
	}

	if err := h.Consult.RecordTriageExchange(ctx, consultationID, uid, req.Message, reply); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "consultation not found")
			return
		}
		if errors.Is(err, consultation.ErrTriageNotInProgress) {
			common.Fail(c, http.StatusConflict, 40901, "triage already completed")
			return
		}
		log.Printf("[TriageTurn] record failed uid=%s consultation=%s err=%v", uid, consultationID, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	resp := gin.H{
		"reply":     reply,
		"completed": completed,
	}
	if completed {
		result, err := h.Consult.CompleteTriage(ctx, consultationID, reply)
		if err != nil {
			// The reply is already persisted; report the hand-off
			// failure so the client can retry complete-triage.
			log.Printf("[TriageTurn] hand-off failed uid=%s consultation=%s err=%v", uid, consultationID, err)
			if errors.Is(err, triage.ErrNoDoctorsAvailable) {
				common.Fail(c, http.StatusServiceUnavailable, 50301, "no doctors available")
				return
			}
			common.Fail(c, http.StatusInternalServerError, 50001, "failed to complete triage")
			return
		}
		resp["triage"] = result
	}

	common.OK(c, resp)
}

type completeTriageReq struct {
	AISummary string `json:"ai_summary" binding:"required"`
}

func (h *Handler) CompleteTriage(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req completeTriageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	result, err := h.Consult.CompleteTriage(c.Request.Context(), c.Param("id"), req.AISummary)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			common.Fail(c, http.StatusNotFound, 40401, "consultation not found")
		case errors.Is(err, consultation.ErrTriageNotInProgress):
			common.Fail(c, http.StatusConflict, 40901, "triage not in progress")
		case errors.Is(err, triage.ErrNoDoctorsAvailable):
			common.Fail(c, http.StatusServiceUnavailable, 50301, "no doctors available")
		default:
			log.Printf("[CompleteTriage] failed uid=%s consultation=%s err=%v", uid, c.Param("id"), err)
			common.Fail(c, http.StatusInternalServerError, 50001, "failed to complete triage")
		}
		return
	}

	common.OK(c, result)
}

func (h *Handler) Stats(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	role, okk := roleFromQuery(c)
	if !okk {
		common.Fail(c, http.StatusBadRequest, 10007, "invalid role")
		return
	}

	stats, err := h.Consult.StatsForUser(c.Request.Context(), uid, role)
	if err != nil {
		log.Printf("[Stats] failed uid=%s err=%v", uid, err)
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to load stats")
		return
	}

	common.OK(c, stats)
}

// roleFromQuery reads the role query parameter, defaulting to patient.
// Anything other than the two known roles reports ok=false.
func roleFromQuery(c *gin.Context) (string, bool) {
	switch role := c.Query("role"); role {
	case "":
		return identity.RolePatient, true
	case identity.RolePatient, identity.RoleDoctor:
		return role, true
	default:
		return "", false
	}
}
