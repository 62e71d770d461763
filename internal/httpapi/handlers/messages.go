package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/chatgate/chatgate/internal/chat"
	"github.com/chatgate/chatgate/internal/common"
	"github.com/chatgate/chatgate/internal/httpapi/middleware"
	"github.com/chatgate/chatgate/internal/quota"
)

// Ping is the liveness check; when the AI provider exposes a probe, the
// response also reports backend reachability so operators see degradation
// before users do.
func (h *Handler) Ping(c *gin.Context) {
	resp := gin.H{"pong": true}
	if h.AIHealth != nil {
		resp["ai_healthy"] = h.AIHealth.Health(c.Request.Context())
	}
	common.OK(c, resp)
}

type sendMessageReq struct {
	ChannelIdentifier string `json:"channel_identifier" binding:"required"`
	UserID            string `json:"user_id" binding:"required"`
	Text              string `json:"text" binding:"required"`
}

// SendMessage is the single inbound endpoint for chat traffic. Anonymous
// callers reach the shared public channel; callers presenting an API key are
// routed through that key's channel, and the identifier in the body must
// belong to it.
func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	var channelID, apiKeyID uint64
	if key := middleware.APIKeyFromContext(c); key != nil {
		channelID = key.ChannelID
		apiKeyID = key.ID
	}

	reply, err := h.ChatSvc.RouteMessage(c.Request.Context(), req.ChannelIdentifier, channelID, apiKeyID, req.UserID, req.Text)
	if err != nil {
		h.failRoute(c, err)
		return
	}
	common.OK(c, reply)
}

func (h *Handler) failRoute(c *gin.Context, err error) {
	var vErr *chat.ValidationError
	var rlErr *chat.RateLimitError
	var qErr *quota.ExceededError

	switch {
	case errors.As(err, &vErr):
		common.Fail(c, http.StatusBadRequest, 10002, vErr.Error())
	case errors.Is(err, chat.ErrAccessDenied):
		common.Fail(c, http.StatusForbidden, 40301, "access denied")
	case errors.As(err, &rlErr):
		c.Header("Retry-After", strconv.Itoa(int(rlErr.RetryAfter.Seconds())+1))
		common.Fail(c, http.StatusTooManyRequests, 42900,
			fmt.Sprintf("rate limit exceeded: %d per window", rlErr.Limit))
	case errors.As(err, &qErr):
		common.Fail(c, http.StatusTooManyRequests, 42901, qErr.Error())
	case errors.Is(err, chat.ErrModelSwitchDenied):
		common.Fail(c, http.StatusBadRequest, 40002, "model not available on this channel")
	case errors.Is(err, chat.ErrAIUnavailable):
		common.Fail(c, http.StatusBadGateway, 50201, "ai backend unavailable")
	case errors.Is(err, gorm.ErrRecordNotFound):
		common.Fail(c, http.StatusNotFound, 40400, "not found")
	default:
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
	}
}

// GetLimits reports the caller's remaining rate window and quota standing.
func (h *Handler) GetLimits(c *gin.Context) {
	identifier := c.Query("channel_identifier")
	userID := c.Query("user_id")
	if identifier == "" || userID == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "channel_identifier and user_id required")
		return
	}

	var channelID uint64
	if key := middleware.APIKeyFromContext(c); key != nil {
		channelID = key.ChannelID
	}

	info, err := h.ChatSvc.Limits(c.Request.Context(), identifier, channelID, userID)
	if err != nil {
		h.failRoute(c, err)
		return
	}
	common.OK(c, info)
}
