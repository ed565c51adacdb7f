package adapter

import (
	"context"
	"fmt"

	"ChannelSync/internal/config"
	"ChannelSync/internal/interfaces"

	"github.com/sirupsen/logrus"
)

func init() {
	Register("noop", func(_ *config.Config, logger *logrus.Logger) (interfaces.ChannelProvider, error) {
		return NewNoopProvider(logger), nil
	})
}

// NewProvider 按配置中的 provider 名称从注册表创建实例
func NewProvider(cfg *config.Config, logger *logrus.Logger) (interfaces.ChannelProvider, error) {
	name := cfg.Provider
	if name == "" {
		name = "noop"
	}
	logger.WithField("factories", ListFactories()).Debug("已注册的频道管理系统适配器")

	factory, ok := GetFactory(name)
	if !ok {
		return nil, fmt.Errorf("未注册的频道管理系统: %s（已注册：%v）", name, ListFactories())
	}
	p, err := factory(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化频道管理系统%s失败: %w", name, err)
	}
	if p == nil {
		return nil, fmt.Errorf("频道管理系统%s的工厂函数返回nil", name)
	}
	logger.WithField("provider", p.GetName()).Info("频道管理系统适配器初始化成功")
	return p, nil
}

// NoopProvider 只记日志的频道管理系统，用于试运行
type NoopProvider struct {
	logger *logrus.Logger
}

func NewNoopProvider(logger *logrus.Logger) *NoopProvider {
	return &NoopProvider{logger: logger}
}

func (n *NoopProvider) GetName() string { return "noop" }

func (n *NoopProvider) UpsertChannel(_ context.Context, ch interfaces.ProviderChannel) (string, error) {
	n.logger.WithFields(logrus.Fields{
		"channel_id": ch.ChannelID,
		"number":     ch.Number,
		"name":       ch.Name,
		"streams":    len(ch.StreamIDs),
	}).Debug("试运行：跳过频道下发")
	if ch.ProviderID != nil {
		return *ch.ProviderID, nil
	}
	return "noop-" + ch.ChannelID, nil
}

func (n *NoopProvider) DeleteChannel(_ context.Context, providerID string) error {
	n.logger.WithField("provider_id", providerID).Debug("试运行：跳过频道删除")
	return nil
}
