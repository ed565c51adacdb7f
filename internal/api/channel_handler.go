package api

import (
	"net/http"
	"strconv"

	"ChannelSync/internal/model"
	"ChannelSync/internal/repository"
	"ChannelSync/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// CacheFlusher 可清空的缓存（匹配缓存、赛程缓存）
type CacheFlusher interface {
	Flush()
}

// ChannelHandler 托管频道、节目单与缓存接口
type ChannelHandler struct {
	channelService *service.ChannelService
	caches         []CacheFlusher
	logger         *logrus.Logger
}

func NewChannelHandler(svc *service.ChannelService, logger *logrus.Logger, caches ...CacheFlusher) *ChannelHandler {
	return &ChannelHandler{channelService: svc, caches: caches, logger: logger}
}

// ListChannels 托管频道列表
// GET /api/channels?group_id=1&state=active
func (h *ChannelHandler) ListChannels(c *gin.Context) {
	var filter repository.ChannelFilter
	if raw := c.Query("group_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "非法的 group_id"})
			return
		}
		filter.GroupID = &id
	}
	if state := model.ChannelState(c.Query("state")); state != "" {
		switch state {
		case model.ChannelPendingCreate, model.ChannelActive, model.ChannelPendingDelete:
			filter.State = state
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "非法的 state"})
			return
		}
	}
	list, err := h.channelService.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, h.logger, "查询托管频道", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// EPG 按频道号排列的节目单
// GET /api/epg
func (h *ChannelHandler) EPG(c *gin.Context) {
	entries, err := h.channelService.EPG(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, "查询节目单", err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// FlushCache 清空匹配缓存和赛程缓存
// POST /api/cache/flush
func (h *ChannelHandler) FlushCache(c *gin.Context) {
	for _, f := range h.caches {
		f.Flush()
	}
	h.logger.Info("匹配缓存已清空")
	c.JSON(http.StatusOK, gin.H{"flushed": len(h.caches)})
}
