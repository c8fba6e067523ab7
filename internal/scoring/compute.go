package scoring

import (
	"time"
)

// Params 一次计算使用的打分参数（来自 active ScoreConfig，计算期间不变）
type Params struct {
	LambdaDecay       float64
	NormalizeK        float64
	ColdMax           int
	WarmMax           int
	SurgeSurgingMin   float64
	SurgeExplodingMin float64
}

// DefaultParams 新建打分配置未指定参数时的取值
func DefaultParams() Params {
	return Params{
		LambdaDecay:       0.1,
		NormalizeK:        DefaultNormalizeK,
		ColdMax:           34,
		WarmMax:           69,
		SurgeSurgingMin:   1.5,
		SurgeExplodingMin: 2.5,
	}
}

// Result 单个账号一次计算的完整输出，对应一行日快照
type Result struct {
	Aggregates
	IntentScore int
	Stage       Stage
	SurgeRatio  float64
	SurgeLevel  SurgeLevel
	TopLane     string
	WhyHot      []string // 最多 3 条
	Evidence    []string // 最多 6 条
}

// Compute 聚合 -> 归一化 -> 阶段/激增 -> 赛道 -> 证据
func Compute(events []Event, p Params, templates map[string]string, now time.Time) Result {
	agg := Aggregate(events, p.LambdaDecay, now)
	score := Normalize(agg.Raw30d, p.NormalizeK)
	ratio := SurgeRatio(agg.Raw7d, agg.RawPrev7d)

	return Result{
		Aggregates:  agg,
		IntentScore: score,
		Stage:       ClassifyStage(score, p.ColdMax, p.WarmMax),
		SurgeRatio:  ratio,
		SurgeLevel:  ClassifySurge(ratio, p.SurgeSurgingMin, p.SurgeExplodingMin),
		TopLane:     TopLane(agg.Lanes7d),
		WhyHot:      BuildEvidence(agg.KeyEventCounts, templates, WhyHotLimit),
		Evidence:    BuildEvidence(agg.KeyEventCounts, templates, EvidenceLimit),
	}
}
