package interfaces

import (
	"context"
	"errors"
	"time"

	"IntentEngine/internal/config"

	"github.com/sirupsen/logrus"
)

// ErrSourceUnavailable 事件源不可用（网络错误、非 2xx、未配置），调用方应回退到二级事件源
var ErrSourceUnavailable = errors.New("event source unavailable")

// EventRow 事件源导出的一行行为事件。
// 主事件源只给原始字段；二级事件源（本地信号）已分类定权，Weight 非空。
type EventRow struct {
	Date              string    `json:"date"`
	AccountKey        string    `json:"account_key"`
	EventName         string    `json:"event_name"`
	ContentType       string    `json:"content_type,omitempty"`
	Lane              string    `json:"lane,omitempty"`
	DistinctVisitorID string    `json:"distinct_visitor_id,omitempty"`
	Path              string    `json:"path"`
	CTAID             string    `json:"cta_id,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
	Weight            *float64  `json:"-"`
}

// EventSource 所有事件源必须实现的接口
type EventSource interface {
	Name() string
	// FetchEvents 拉取最近 rangeDays 天的事件；失败时返回包装了 ErrSourceUnavailable 的错误
	FetchEvents(ctx context.Context, rangeDays int) ([]*EventRow, error)
}

// SourceFactory 主事件源工厂函数签名
type SourceFactory func(cfg *config.EventSourceConfig, logger *logrus.Logger) EventSource
