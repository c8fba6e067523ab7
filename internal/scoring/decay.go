// Package scoring 意向打分的纯计算部分：衰减、窗口聚合、归一化、阶段/激增判定、赛道与证据。
// 包内不做任何 I/O，批量任务和实时任务共用同一套函数，保证同样的事件集得到同样的快照。
package scoring

import (
	"math"
	"time"
)

const secondsPerDay = 86400.0

// Decay 衰减系数 exp(-λ·age)，age 单位为天
func Decay(ageDays, lambda float64) float64 {
	return math.Exp(-lambda * ageDays)
}

// Contribution 单个事件的衰减后贡献
func Contribution(weight, ageDays, lambda float64) float64 {
	return weight * Decay(ageDays, lambda)
}

// AgeDays 事件相对 now 的天数；未来时间按 0 处理
func AgeDays(now, occurredAt time.Time) float64 {
	age := now.Sub(occurredAt).Seconds() / secondsPerDay
	if age < 0 {
		return 0
	}
	return age
}
