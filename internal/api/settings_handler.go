package api

import (
	"net/http"

	"ChannelSync/internal/model"
	"ChannelSync/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SettingsHandler 全局设置接口，改动在下一次运行生效
type SettingsHandler struct {
	settingsService *service.SettingsService
	logger          *logrus.Logger
}

func NewSettingsHandler(svc *service.SettingsService, logger *logrus.Logger) *SettingsHandler {
	return &SettingsHandler{settingsService: svc, logger: logger}
}

// GET /api/settings/numbering
func (h *SettingsHandler) GetNumbering(c *gin.Context) {
	n, err := h.settingsService.GetNumbering(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, "查询编号设置", err)
		return
	}
	c.JSON(http.StatusOK, n)
}

// PUT /api/settings/numbering
func (h *SettingsHandler) UpdateNumbering(c *gin.Context) {
	var req model.ChannelNumberingSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n, err := h.settingsService.UpdateNumbering(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.logger, "保存编号设置", err)
		return
	}
	c.JSON(http.StatusOK, n)
}

// GET /api/settings/lifecycle
func (h *SettingsHandler) GetLifecycle(c *gin.Context) {
	l, err := h.settingsService.GetLifecycle(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, "查询生命周期设置", err)
		return
	}
	c.JSON(http.StatusOK, l)
}

// PUT /api/settings/lifecycle
func (h *SettingsHandler) UpdateLifecycle(c *gin.Context) {
	var req model.LifecycleSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	l, err := h.settingsService.UpdateLifecycle(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.logger, "保存生命周期设置", err)
		return
	}
	c.JSON(http.StatusOK, l)
}

// GET /api/settings/exception-keywords
func (h *SettingsHandler) ListExceptionKeywords(c *gin.Context) {
	list, err := h.settingsService.ListExceptionKeywords(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, "查询例外关键词", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// PUT /api/settings/exception-keywords，整表替换
func (h *SettingsHandler) ReplaceExceptionKeywords(c *gin.Context) {
	var req []model.ExceptionKeyword
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	list, err := h.settingsService.ReplaceExceptionKeywords(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.logger, "保存例外关键词", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GET /api/settings/sort-priorities
func (h *SettingsHandler) ListSortPriorities(c *gin.Context) {
	list, err := h.settingsService.ListSortPriorities(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, "查询排序优先级", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// PUT /api/settings/sort-priorities，整表替换
func (h *SettingsHandler) ReplaceSortPriorities(c *gin.Context) {
	var req []model.SortPriority
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	list, err := h.settingsService.ReplaceSortPriorities(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.logger, "保存排序优先级", err)
		return
	}
	c.JSON(http.StatusOK, list)
}
