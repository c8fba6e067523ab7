// Package eventsource 行为事件源：主事件源（分析仓库 HTTP 导出）与二级事件源（本地信号表）
package eventsource

import (
	"fmt"
	"sort"

	"IntentEngine/internal/config"
	"IntentEngine/internal/interfaces"

	"github.com/sirupsen/logrus"
)

// 全局工厂函数注册表，各实现在 init 中注册
var factoryRegistry = make(map[string]interfaces.SourceFactory)

// Register 供事件源实现的 init 调用
func Register(kind string, factory interfaces.SourceFactory) {
	if factory == nil {
		panic(fmt.Sprintf("事件源%s的工厂函数不能为nil", kind))
	}
	if _, exists := factoryRegistry[kind]; exists {
		logrus.Warnf("事件源%s已注册，将覆盖原有实现", kind)
	}
	factoryRegistry[kind] = factory
}

// GetFactory 获取指定类型的工厂函数
func GetFactory(kind string) (interfaces.SourceFactory, bool) {
	factory, ok := factoryRegistry[kind]
	return factory, ok
}

// ListFactories 已注册的事件源类型（排序后）
func ListFactories() []string {
	kinds := make([]string, 0, len(factoryRegistry))
	for k := range factoryRegistry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// NewPrimary 按配置的 kind 创建主事件源
func NewPrimary(cfg *config.EventSourceConfig, logger *logrus.Logger) (interfaces.EventSource, error) {
	kind := cfg.Kind
	if kind == "" {
		kind = KindHTTP
	}
	factory, ok := GetFactory(kind)
	if !ok {
		return nil, fmt.Errorf("未知的事件源类型%s（已注册：%v）", kind, ListFactories())
	}
	src := factory(cfg, logger)
	if src == nil {
		return nil, fmt.Errorf("事件源%s工厂函数返回nil", kind)
	}
	logger.WithField("kind", kind).Info("主事件源初始化成功")
	return src, nil
}
