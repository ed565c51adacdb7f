package api

import (
	"errors"
	"net/http"
	"strconv"

	"ChannelSync/internal/repository"
	"ChannelSync/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RunTrigger 生成任务调度入口（service.Coordinator）
type RunTrigger interface {
	Trigger(source string) error
	Cancel() bool
	Running() bool
}

// GenerationHandler 触发/取消生成任务，查询运行历史
type GenerationHandler struct {
	trigger RunTrigger
	runs    repository.RunRepository
	logger  *logrus.Logger
}

func NewGenerationHandler(trigger RunTrigger, runs repository.RunRepository, logger *logrus.Logger) *GenerationHandler {
	return &GenerationHandler{trigger: trigger, runs: runs, logger: logger}
}

// TriggerRun 手动触发一次生成；已有运行时合并为补跑
// POST /api/generation/run
func (h *GenerationHandler) TriggerRun(c *gin.Context) {
	err := h.trigger.Trigger("api")
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"queued": false, "message": "生成任务已启动"})
	case errors.Is(err, service.ErrRunQueued):
		c.JSON(http.StatusAccepted, gin.H{"queued": true, "message": err.Error()})
	default:
		h.logger.WithError(err).Error("触发生成任务失败")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	}
}

// CancelRun 取消运行中的生成任务
// POST /api/generation/cancel
func (h *GenerationHandler) CancelRun(c *gin.Context) {
	if !h.trigger.Cancel() {
		c.JSON(http.StatusConflict, gin.H{"error": "当前没有运行中的生成任务"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "已请求取消"})
}

// ListRuns 运行历史，最新在前
// GET /api/generation/runs?limit=20
func (h *GenerationHandler) ListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	runs, err := h.runs.List(c.Request.Context(), limit)
	if err != nil {
		writeError(c, h.logger, "查询运行历史", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"running": h.trigger.Running(), "runs": runs})
}

// LatestRun 最近一次运行及其报告
// GET /api/generation/runs/latest
func (h *GenerationHandler) LatestRun(c *gin.Context) {
	run, err := h.runs.Latest(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, "查询最近运行", err)
		return
	}
	c.JSON(http.StatusOK, run)
}
