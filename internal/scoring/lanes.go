package scoring

import (
	"sort"
)

// LaneOther 未归类赛道
const LaneOther = "other"

// TopLane 取 7 天赛道分最大的赛道；空 map 返回 other。
// 并列时取字典序最小的赛道名，不依赖 map 遍历顺序。
func TopLane(lanes7d map[string]float64) string {
	if len(lanes7d) == 0 {
		return LaneOther
	}
	names := make([]string, 0, len(lanes7d))
	for lane := range lanes7d {
		names = append(names, lane)
	}
	sort.Strings(names)

	top := names[0]
	for _, lane := range names[1:] {
		if lanes7d[lane] > lanes7d[top] {
			top = lane
		}
	}
	return top
}
