package scoring

import (
	"math"
)

// DefaultNormalizeK 归一化常数默认值
const DefaultNormalizeK = 80.0

// surgeSmoothing 激增比的加性平滑常数，避免两周都接近 0 时除零和抖动
const surgeSmoothing = 5.0

// Stage 意向阶段
type Stage string

const (
	StageCold Stage = "Cold"
	StageWarm Stage = "Warm"
	StageHot  Stage = "Hot"
)

// SurgeLevel 周环比动量
type SurgeLevel string

const (
	SurgeNormal    SurgeLevel = "Normal"
	SurgeSurging   SurgeLevel = "Surging"
	SurgeExploding SurgeLevel = "Exploding"
)

// NormalizeRaw 100·(1-exp(-raw/k))，未取整，raw≥0 时落在 [0,100)
func NormalizeRaw(raw30d, k float64) float64 {
	if k <= 0 {
		k = DefaultNormalizeK
	}
	return 100 * (1 - math.Exp(-raw30d/k))
}

// Normalize 30 天原始分 -> 0-100 整数意向分，四舍五入（.5 远离 0）
func Normalize(raw30d, k float64) int {
	score := int(math.Round(NormalizeRaw(raw30d, k)))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// ClassifyStage score<=coldMax 为 Cold，score<=warmMax 为 Warm，其余 Hot
func ClassifyStage(score, coldMax, warmMax int) Stage {
	switch {
	case score <= coldMax:
		return StageCold
	case score <= warmMax:
		return StageWarm
	default:
		return StageHot
	}
}

// SurgeRatio (raw7d+5)/(rawPrev7d+5)
func SurgeRatio(raw7d, rawPrev7d float64) float64 {
	return (raw7d + surgeSmoothing) / (rawPrev7d + surgeSmoothing)
}

// ClassifySurge 先判 Exploding 再判 Surging
func ClassifySurge(ratio, surgingMin, explodingMin float64) SurgeLevel {
	if ratio >= explodingMin {
		return SurgeExploding
	}
	if ratio >= surgingMin {
		return SurgeSurging
	}
	return SurgeNormal
}
