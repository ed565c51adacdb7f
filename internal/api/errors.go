package api

import (
	"errors"
	"net/http"

	"ChannelSync/internal/repository"
	"ChannelSync/internal/runconfig"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// writeError 配置错误 400，不存在 404，其余 500
func writeError(c *gin.Context, logger *logrus.Logger, op string, err error) {
	var cfgErr *runconfig.ConfigError
	switch {
	case errors.As(err, &cfgErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":    cfgErr.Error(),
			"field":    cfgErr.Field,
			"group_id": cfgErr.GroupID,
		})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		logger.WithError(err).Errorf("%s失败", op)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
