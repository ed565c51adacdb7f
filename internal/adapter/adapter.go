package adapter

import (
	"fmt"
	"sort"

	"ChannelSync/internal/interfaces"

	"github.com/sirupsen/logrus"
)

// 频道管理系统工厂注册表，适配器包在 init 中注册
var factoryRegistry = make(map[string]interfaces.ProviderFactory)

// Register 供适配器init函数调用，注册工厂函数
func Register(name string, factory interfaces.ProviderFactory) {
	if factory == nil {
		panic(fmt.Sprintf("频道管理系统%s的工厂函数不能为nil", name))
	}
	if _, exists := factoryRegistry[name]; exists {
		logrus.Warnf("频道管理系统%s的适配器已注册，将覆盖原有实现", name)
	}
	factoryRegistry[name] = factory
}

// GetFactory 获取指定名称的工厂函数
func GetFactory(name string) (interfaces.ProviderFactory, bool) {
	factory, ok := factoryRegistry[name]
	return factory, ok
}

// ListFactories 列出所有已注册的工厂函数，按名称排序
func ListFactories() []string {
	names := make([]string, 0, len(factoryRegistry))
	for n := range factoryRegistry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
