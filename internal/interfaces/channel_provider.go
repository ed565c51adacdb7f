package interfaces

import (
	"context"
	"time"

	"ChannelSync/internal/config"

	"github.com/sirupsen/logrus"
)

// ProviderChannel 下发到频道管理系统的频道，channel_id 作为 tvg-id 保证幂等
type ProviderChannel struct {
	ChannelID      string   // 托管频道 uuid
	ProviderID     *string  // 已创建过时带上对端 id
	Number         int      // 频道号
	Name           string   // 频道名
	StreamIDs      []uint64 // 按优先级排列
	ChannelGroupID *uint64  // 对端频道分组
	ProfileIDs     []uint64 // 对端频道 profile
	TemplateID     *uint64
}

// ChannelProvider 外部频道管理系统（如 Dispatcharr）
type ChannelProvider interface {
	GetName() string
	// UpsertChannel 创建或更新频道，返回对端频道 id
	UpsertChannel(ctx context.Context, ch ProviderChannel) (providerID string, err error)
	// DeleteChannel 删除频道；对端不存在时视为成功
	DeleteChannel(ctx context.Context, providerID string) error
}

// EPGEntry 节目单条目：(频道号, 赛事时间表)
type EPGEntry struct {
	ChannelID   string    `json:"channel_id"`
	Number      int       `json:"channel_number"`
	ChannelName string    `json:"channel_name"`
	Title       string    `json:"title"`
	League      string    `json:"league"`
	Sport       string    `json:"sport"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

// EPGWriter 节目单输出
type EPGWriter interface {
	Write(ctx context.Context, entries []EPGEntry) error
}

// ProviderFactory 频道管理系统适配器工厂函数签名
// 入参：全局配置、日志实例
type ProviderFactory func(cfg *config.Config, logger *logrus.Logger) (ChannelProvider, error)
