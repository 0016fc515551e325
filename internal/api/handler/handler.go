package handler

import (
	"context"
	"net/http"
	"time"

	"driftchat/backend/internal/analysis"
	"driftchat/backend/internal/chathub"
	"driftchat/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// StatusSource is satisfied by chathub.ManagerService.
type StatusSource interface {
	Status(ctx context.Context) (models.Status, error)
}

// Handler містить HTTP-поверхню сервісу та посилання на хаб.
type Handler struct {
	Hub    *chathub.ManagerService
	Status StatusSource

	secret []byte
	outbox int
	now    func() time.Time
	log    *logrus.Entry
}

func NewHandler(hub *chathub.ManagerService, jwtSecret string, outbox int) *Handler {
	return &Handler{
		Hub:    hub,
		Status: hub,
		secret: []byte(jwtSecret),
		outbox: outbox,
		now:    time.Now,
		log:    logrus.WithField("component", "http"),
	}
}

// Register монтує всі маршрути на r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/anonid", h.GetAnonID)
	r.GET("/ws", h.ServeWebSocket)
	r.GET("/health", h.Health)
	r.GET("/status", h.GetStatus)
	r.GET("/analytics", h.GetAnalytics)
	r.GET("/performance", h.GetPerformance)
	r.GET("/algorithm-health", h.GetAlgorithmHealth)
	r.GET("/test-algorithm", h.TestAlgorithm)
}

func (h *Handler) snapshot(c *gin.Context) (models.Status, bool) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status, err := h.Status.Status(ctx)
	if err != nil {
		h.log.WithError(err).Warn("Status unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "hub unavailable"})
		return models.Status{}, false
	}
	return status, true
}

// Health повертає стан сервісу разом із повним знімком хаба.
func (h *Handler) Health(c *gin.Context) {
	status, ok := h.snapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"hub":       status,
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) GetStatus(c *gin.Context) {
	if status, ok := h.snapshot(c); ok {
		c.JSON(http.StatusOK, status)
	}
}

func (h *Handler) GetAnalytics(c *gin.Context) {
	if status, ok := h.snapshot(c); ok {
		c.JSON(http.StatusOK, analysis.BuildAnalytics(status))
	}
}

func (h *Handler) GetPerformance(c *gin.Context) {
	if status, ok := h.snapshot(c); ok {
		c.JSON(http.StatusOK, analysis.Summarize(status))
	}
}

func (h *Handler) GetAlgorithmHealth(c *gin.Context) {
	status, ok := h.snapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"algorithm": analysis.CheckAlgorithm(status),
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

// TestAlgorithm запускає самоперевірку алгоритму на поточному знімку хаба.
func (h *Handler) TestAlgorithm(c *gin.Context) {
	status, ok := h.snapshot(c)
	if !ok {
		return
	}
	result := analysis.RunSelfTest(status)
	h.log.WithFields(logrus.Fields{
		"waiting":         result.Queues.TotalUsers,
		"success_rate":    result.Pairing.SuccessRate,
		"recommendations": len(result.Recommendations),
	}).Info("Algorithm self-test")
	c.JSON(http.StatusOK, gin.H{
		"timestamp": h.now().UTC().Format(time.RFC3339),
		"results":   result,
	})
}
