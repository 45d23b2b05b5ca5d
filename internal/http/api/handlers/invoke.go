package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/agrlayush/smart-bedrock-api-load-balancer/internal/dispatch"
	"github.com/agrlayush/smart-bedrock-api-load-balancer/internal/quota"
	"github.com/agrlayush/smart-bedrock-api-load-balancer/internal/usage"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// InvokeHandler serves generation requests through the dispatcher.
type InvokeHandler struct {
	dispatcher *dispatch.Dispatcher
	recorder   *usage.Recorder
	model      string
}

// NewInvokeHandler constructs an InvokeHandler. The recorder may be nil.
func NewInvokeHandler(dispatcher *dispatch.Dispatcher, recorder *usage.Recorder, model string) *InvokeHandler {
	return &InvokeHandler{dispatcher: dispatcher, recorder: recorder, model: model}
}

// invokeRequest is the inbound generation payload.
type invokeRequest struct {
	Prompt string `json:"prompt"` // Prompt text, required.
}

// Invoke validates the request, delegates to the dispatcher, and maps the
// outcome to a response.
func (h *InvokeHandler) Invoke(c *gin.Context) {
	var req invokeRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required"})
		return
	}

	result, errDo := h.dispatcher.Do(c.Request.Context(), req.Prompt)
	if errDo != nil {
		status := http.StatusServiceUnavailable
		switch {
		case errors.Is(errDo, quota.ErrNoAvailableEndpoint):
			log.Warn("invoke: all endpoints exhausted")
		case errors.Is(errDo, quota.ErrStoreUnavailable):
			log.WithError(errDo).Error("invoke: quota store unavailable")
		case errors.Is(errDo, dispatch.ErrUpstreamInvocation):
			log.WithError(errDo).Error("invoke: upstream invocation failed")
		default:
			log.WithError(errDo).Error("invoke: dispatch failed")
		}
		c.JSON(status, gin.H{"error": errDo.Error()})
		return
	}

	if h.recorder != nil {
		h.recorder.Record(result.Region, h.model, result.Attempts, result.Duration, map[string]any{
			"prompt_len": len(req.Prompt),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"response": result.Text,
		"region":   result.Region,
	})
}
