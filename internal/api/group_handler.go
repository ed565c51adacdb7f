package api

import (
	"io"
	"net/http"
	"strconv"

	"ChannelSync/internal/model"
	"ChannelSync/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// GroupHandler 赛事组管理接口
type GroupHandler struct {
	groupService *service.GroupService
	logger       *logrus.Logger
}

func NewGroupHandler(svc *service.GroupService, logger *logrus.Logger) *GroupHandler {
	return &GroupHandler{groupService: svc, logger: logger}
}

func parseID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "非法的组 id"})
		return 0, false
	}
	return id, true
}

// ListGroups GET /api/groups
func (h *GroupHandler) ListGroups(c *gin.Context) {
	groups, err := h.groupService.List(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, "查询赛事组", err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

// GetGroup GET /api/groups/:id
func (h *GroupHandler) GetGroup(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	g, err := h.groupService.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, "查询赛事组", err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// CreateGroup POST /api/groups
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	var g model.EventGroup
	if err := c.ShouldBindJSON(&g); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.groupService.Create(c.Request.Context(), &g); err != nil {
		writeError(c, h.logger, "创建赛事组", err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

// UpdateGroup PUT /api/groups/:id，整组覆盖
func (h *GroupHandler) UpdateGroup(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var g model.EventGroup
	if err := c.ShouldBindJSON(&g); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	g.ID = id
	if err := h.groupService.Update(c.Request.Context(), &g); err != nil {
		writeError(c, h.logger, "更新赛事组", err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// DeleteGroup DELETE /api/groups/:id
func (h *GroupHandler) DeleteGroup(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.groupService.Delete(c.Request.Context(), id); err != nil {
		writeError(c, h.logger, "删除赛事组", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ImportGroups 请求体为 YAML，按组名覆盖
// POST /api/groups/import
func (h *GroupHandler) ImportGroups(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n, err := h.groupService.ImportYAML(c.Request.Context(), body)
	if err != nil {
		writeError(c, h.logger, "导入赛事组", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": n})
}
