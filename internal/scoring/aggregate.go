package scoring

import (
	"time"
)

// 窗口边界（天）
const (
	window7d     = 7.0
	windowPrev7d = 14.0
	window30d    = 30.0
)

// Event 已分类、已定权的行为事件（来自主事件源或本地信号）
type Event struct {
	Key        string // 证据/计数用的事件 key
	Lane       string // 为空时记为 other
	Weight     float64
	VisitorID  string
	OccurredAt time.Time
}

// Aggregates 三个窗口的衰减加权和及附带统计
type Aggregates struct {
	Raw7d            float64
	RawPrev7d        float64
	Raw30d           float64
	Lanes7d          map[string]float64
	Lanes30d         map[string]float64
	KeyEventCounts   map[string]int // 30 天窗口内各事件 key 的次数
	UniqueVisitors7d int
	LastEventAt      *time.Time
}

// Aggregate 按事件在 now 时刻的年龄分桶并求和：
// 0≤a<7 计入 7d，7≤a<14 计入 prev7d，0≤a<30 计入 30d；30 天以外的事件忽略。
// 各事件贡献相互独立，结果与事件顺序无关。
func Aggregate(events []Event, lambda float64, now time.Time) Aggregates {
	agg := Aggregates{
		Lanes7d:        make(map[string]float64),
		Lanes30d:       make(map[string]float64),
		KeyEventCounts: make(map[string]int),
	}
	visitors := make(map[string]struct{})

	for _, ev := range events {
		age := AgeDays(now, ev.OccurredAt)
		if age >= window30d {
			continue
		}
		lane := ev.Lane
		if lane == "" {
			lane = LaneOther
		}
		c := Contribution(ev.Weight, age, lambda)

		agg.Raw30d += c
		agg.Lanes30d[lane] += c
		if ev.Key != "" {
			agg.KeyEventCounts[ev.Key]++
		}

		switch {
		case age < window7d:
			agg.Raw7d += c
			agg.Lanes7d[lane] += c
			if ev.VisitorID != "" {
				visitors[ev.VisitorID] = struct{}{}
			}
		case age < windowPrev7d:
			agg.RawPrev7d += c
		}

		if agg.LastEventAt == nil || ev.OccurredAt.After(*agg.LastEventAt) {
			t := ev.OccurredAt
			agg.LastEventAt = &t
		}
	}
	agg.UniqueVisitors7d = len(visitors)
	return agg
}
