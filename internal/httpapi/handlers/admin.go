package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/chatgate/chatgate/internal/auth"
	"github.com/chatgate/chatgate/internal/channel"
	"github.com/chatgate/chatgate/internal/common"
)

type adminLoginReq struct {
	User     string `json:"user" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) AdminLogin(c *gin.Context) {
	var req adminLoginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	token, err := h.Admin.Login(req.User, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrBadCredentials) {
			common.Fail(c, http.StatusUnauthorized, 40104, "bad credentials")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	common.OK(c, gin.H{"token": token})
}

type channelReq struct {
	Identifier       string  `json:"identifier"`
	Title            string  `json:"title"`
	AccessType       string  `json:"access_type"`
	MonthlyQuota     *int    `json:"monthly_quota"`
	DailyQuota       *int    `json:"daily_quota"`
	RateLimit        *int    `json:"rate_limit"`
	MaxHistory       *int    `json:"max_history"`
	DefaultModel     *string `json:"default_model"`
	AvailableModels  *string `json:"available_models"`
	AllowModelSwitch *bool   `json:"allow_model_switch"`
}

func (h *Handler) CreateChannel(c *gin.Context) {
	var req channelReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if req.Identifier == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "identifier required")
		return
	}
	if req.AccessType != channel.AccessPublic && req.AccessType != channel.AccessPrivate {
		common.Fail(c, http.StatusBadRequest, 10002, "access_type must be public or private")
		return
	}

	ch := &channel.Channel{
		Identifier:       req.Identifier,
		Title:            req.Title,
		AccessType:       req.AccessType,
		MonthlyQuota:     req.MonthlyQuota,
		DailyQuota:       req.DailyQuota,
		RateLimit:        req.RateLimit,
		MaxHistory:       req.MaxHistory,
		DefaultModel:     req.DefaultModel,
		AvailableModels:  req.AvailableModels,
		AllowModelSwitch: req.AllowModelSwitch,
		IsActive:         true,
	}
	if err := h.Channels.Create(c.Request.Context(), ch); err != nil {
		common.Fail(c, http.StatusConflict, 40900, "channel create failed")
		return
	}
	common.OK(c, ch)
}

func (h *Handler) ListChannels(c *gin.Context) {
	chs, err := h.Channels.List(c.Request.Context())
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	common.OK(c, gin.H{"channels": chs})
}

func (h *Handler) GetChannel(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10002, "invalid id")
		return
	}
	ch, err := h.Channels.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "channel not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	common.OK(c, ch)
}

// UpdateChannel applies the submitted overrides. The identifier is fixed at
// creation; session keys and stored history hang off it.
func (h *Handler) UpdateChannel(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10002, "invalid id")
		return
	}
	ch, err := h.Channels.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "channel not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	var req struct {
		channelReq
		IsActive *bool `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if req.Identifier != "" && req.Identifier != ch.Identifier {
		common.Fail(c, http.StatusBadRequest, 10003, "identifier is immutable")
		return
	}

	if req.Title != "" {
		ch.Title = req.Title
	}
	if req.AccessType != "" {
		if req.AccessType != channel.AccessPublic && req.AccessType != channel.AccessPrivate {
			common.Fail(c, http.StatusBadRequest, 10002, "access_type must be public or private")
			return
		}
		ch.AccessType = req.AccessType
	}
	if req.MonthlyQuota != nil {
		ch.MonthlyQuota = req.MonthlyQuota
	}
	if req.DailyQuota != nil {
		ch.DailyQuota = req.DailyQuota
	}
	if req.RateLimit != nil {
		ch.RateLimit = req.RateLimit
	}
	if req.MaxHistory != nil {
		ch.MaxHistory = req.MaxHistory
	}
	if req.DefaultModel != nil {
		ch.DefaultModel = req.DefaultModel
	}
	if req.AvailableModels != nil {
		ch.AvailableModels = req.AvailableModels
	}
	if req.AllowModelSwitch != nil {
		ch.AllowModelSwitch = req.AllowModelSwitch
	}
	if req.IsActive != nil {
		ch.IsActive = *req.IsActive
	}

	if err := h.Channels.Update(c.Request.Context(), ch); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	common.OK(c, ch)
}

type createKeyReq struct {
	ChannelID uint64 `json:"channel_id" binding:"required"`
	Name      string `json:"name"`
}

// CreateKey mints an API key for a channel. The raw key is returned exactly
// once; only its hash is stored.
func (h *Handler) CreateKey(c *gin.Context) {
	var req createKeyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if _, err := h.Channels.GetByID(c.Request.Context(), req.ChannelID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "channel not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	raw, key, err := h.Authn.CreateKey(c.Request.Context(), req.ChannelID, req.Name)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	common.OK(c, gin.H{
		"api_key":    raw,
		"key_id":     key.ID,
		"key_prefix": key.KeyPrefix,
	})
}

func (h *Handler) RevokeKey(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10002, "invalid id")
		return
	}
	if err := h.Authn.RevokeKey(c.Request.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, "key not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	common.OK(c, gin.H{"revoked": true})
}

// ChannelStats aggregates a channel's usage over [since, until); defaults to
// the current UTC month.
func (h *Handler) ChannelStats(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10002, "invalid id")
		return
	}

	now := time.Now().UTC()
	since := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	until := now
	if v := c.Query("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			common.Fail(c, http.StatusBadRequest, 10002, "invalid since")
			return
		}
		since = t
	}
	if v := c.Query("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			common.Fail(c, http.StatusBadRequest, 10002, "invalid until")
			return
		}
		until = t
	}

	stats, err := h.Usage.ChannelStats(c.Request.Context(), id, since, until)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	common.OK(c, stats)
}

func (h *Handler) RecentUsage(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10002, "invalid id")
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	logs, err := h.Usage.Recent(c.Request.Context(), id, limit)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	common.OK(c, gin.H{"logs": logs})
}
