package scoring

import (
	"fmt"
	"strings"
)

// EventPageView 页面浏览事件名，权重回退逻辑只对它生效
const EventPageView = "page_view"

// ContentTypeOther 未识别内容类型
const ContentTypeOther = "other"

// defaultWeight 权重表里什么都查不到时的兜底
const defaultWeight = 1.0

// WeightKey 权重表主键；ContentType/CTAID 缺省时为空串
type WeightKey struct {
	EventName   string
	ContentType string
	CTAID       string
}

// String 输出管理后台使用的 "event:content_type:cta_id" 格式
func (k WeightKey) String() string {
	return k.EventName + ":" + k.ContentType + ":" + k.CTAID
}

// ParseWeightKey 解析 "event:content_type:cta_id"，必须正好三段
func ParseWeightKey(s string) (WeightKey, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 || parts[0] == "" {
		return WeightKey{}, fmt.Errorf("权重key格式错误: %q", s)
	}
	return WeightKey{EventName: parts[0], ContentType: parts[1], CTAID: parts[2]}, nil
}

// WeightTable 一份 ScoreConfig 下的全部权重
type WeightTable map[WeightKey]float64

var (
	genericPageViewKey = WeightKey{EventName: EventPageView}
	otherPageViewKey   = WeightKey{EventName: EventPageView, ContentType: ContentTypeOther}
)

// Resolve 查找事件权重，顺序固定：
//  1. 精确匹配 (event, content_type, cta_id)
//  2. page_view 且 content_type 非空时，回退到 page_view::
//  3. 回退到 page_view:other:，再没有则为 1
func (t WeightTable) Resolve(eventName, contentType, ctaID string) float64 {
	if w, ok := t[WeightKey{EventName: eventName, ContentType: contentType, CTAID: ctaID}]; ok {
		return w
	}
	if eventName == EventPageView && contentType != "" {
		if w, ok := t[genericPageViewKey]; ok {
			return w
		}
	}
	if w, ok := t[otherPageViewKey]; ok {
		return w
	}
	return defaultWeight
}
