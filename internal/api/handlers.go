package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"qrattend/internal/apperr"
	"qrattend/internal/attendance"
	"qrattend/internal/secret"
)

type handlers struct {
	svc    *attendance.Service
	issuer Issuer
	store  Pinger
	log    *zap.Logger
}

func (h *handlers) fail(c *gin.Context, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": apperr.Public(err)})
}

func (h *handlers) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "store": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "store": true})
}

func qrBody(issued secret.Issued) gin.H {
	return gin.H{"success": true, "qrCode": issued.QRCode, "content": issued.Current}
}

func (h *handlers) currentQR(c *gin.Context) {
	issued, err := h.issuer.Latest(c.Request.Context())
	if err != nil {
		h.fail(c, apperr.Internal(err, "load secret"))
		return
	}
	c.JSON(http.StatusOK, qrBody(issued))
}

func (h *handlers) refreshQR(c *gin.Context) {
	issued, err := h.issuer.Rotate(c.Request.Context())
	if err != nil {
		h.fail(c, apperr.Internal(err, "rotate secret"))
		return
	}
	c.JSON(http.StatusOK, qrBody(issued))
}

type checkInRequest struct {
	UserID *int64 `json:"userId" binding:"required"`
	Secret string `json:"secret"`
}

func (h *handlers) checkIn(c *gin.Context) {
	var req checkInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.Validation("userId required"))
		return
	}
	if _, err := h.svc.CheckIn(c.Request.Context(), *req.UserID, req.Secret); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *handlers) reset(c *gin.Context) {
	report, err := h.svc.ResetAll(c.Request.Context())
	if err != nil {
		c.JSON(apperr.Status(err), gin.H{
			"error":  apperr.Public(err),
			"reset":  report.Reset,
			"failed": report.Failed,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "reset": report.Reset, "failed": report.Failed})
}

type recordView struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"userId"`
	User   string `json:"user"`
	Status string `json:"status"`
}

func (h *handlers) records(c *gin.Context) {
	recs, err := h.svc.Records(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]recordView, 0, len(recs))
	for _, r := range recs {
		out = append(out, recordView{ID: r.ID, UserID: r.UserID, User: r.Username, Status: string(r.Status)})
	}
	c.JSON(http.StatusOK, out)
}

type absenceRequest struct {
	Type    string `json:"type" binding:"required"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func (h *handlers) fileAbsence(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || userID <= 0 {
		h.fail(c, apperr.Validation("invalid user id %q", c.Param("id")))
		return
	}
	var req absenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.Validation("type required"))
		return
	}
	saved, err := h.svc.FileAbsence(c.Request.Context(), attendance.Absence{
		UserID:  userID,
		Type:    req.Type,
		Message: req.Message,
		Status:  req.Status,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":          saved.ID,
		"userId":      saved.UserID,
		"absenceType": saved.Type,
		"message":     saved.Message,
		"status":      saved.Status,
	})
}

type messageRequest struct {
	Sender  string `json:"sender" binding:"required"`
	Subject string `json:"subject" binding:"required"`
	Body    string `json:"body" binding:"required"`
}

func (h *handlers) postMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.Validation("sender, subject and body are required"))
		return
	}
	saved, err := h.svc.PostMessage(c.Request.Context(), attendance.Message{
		Sender:  req.Sender,
		Subject: req.Subject,
		Body:    req.Body,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":        saved.ID,
		"sender":    saved.Sender,
		"subject":   saved.Subject,
		"body":      saved.Body,
		"createdAt": saved.CreatedAt,
	})
}
