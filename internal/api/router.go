package api

import "github.com/gin-gonic/gin"

// Handlers 全部接口处理器
type Handlers struct {
	Generation *GenerationHandler
	Groups     *GroupHandler
	Settings   *SettingsHandler
	Channels   *ChannelHandler
}

// RegisterRoutes 注册 /api 下的全部路由
func RegisterRoutes(r gin.IRouter, h Handlers) {
	api := r.Group("/api")

	gen := api.Group("/generation")
	gen.POST("/run", h.Generation.TriggerRun)
	gen.POST("/cancel", h.Generation.CancelRun)
	gen.GET("/runs", h.Generation.ListRuns)
	gen.GET("/runs/latest", h.Generation.LatestRun)

	groups := api.Group("/groups")
	groups.GET("", h.Groups.ListGroups)
	groups.POST("", h.Groups.CreateGroup)
	groups.POST("/import", h.Groups.ImportGroups)
	groups.GET("/:id", h.Groups.GetGroup)
	groups.PUT("/:id", h.Groups.UpdateGroup)
	groups.DELETE("/:id", h.Groups.DeleteGroup)

	settings := api.Group("/settings")
	settings.GET("/numbering", h.Settings.GetNumbering)
	settings.PUT("/numbering", h.Settings.UpdateNumbering)
	settings.GET("/lifecycle", h.Settings.GetLifecycle)
	settings.PUT("/lifecycle", h.Settings.UpdateLifecycle)
	settings.GET("/exception-keywords", h.Settings.ListExceptionKeywords)
	settings.PUT("/exception-keywords", h.Settings.ReplaceExceptionKeywords)
	settings.GET("/sort-priorities", h.Settings.ListSortPriorities)
	settings.PUT("/sort-priorities", h.Settings.ReplaceSortPriorities)

	api.GET("/channels", h.Channels.ListChannels)
	api.GET("/epg", h.Channels.EPG)
	api.POST("/cache/flush", h.Channels.FlushCache)
}
