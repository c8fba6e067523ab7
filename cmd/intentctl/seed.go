package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"IntentEngine/internal/model"

	"gopkg.in/yaml.v3"
)

// SeedFile intentctl seed 的 YAML 结构
type SeedFile struct {
	ScoreConfig      SeedScoreConfig       `yaml:"score_config"`
	Weights          map[string]int        `yaml:"weights"` // key 形如 page_view:pricing:
	EventRules       []SeedEventRule       `yaml:"event_rules"`
	ProgramRules     []SeedProgramRule     `yaml:"program_rules"`
	SuppressionRules []SeedSuppressionRule `yaml:"suppression_rules"`
	Blacklist        []SeedBlacklistEntry  `yaml:"blacklist"`
}

type SeedScoreConfig struct {
	Name              string  `yaml:"name"`
	LambdaDecay       float64 `yaml:"lambda_decay"`
	NormalizeK        float64 `yaml:"normalize_k"`
	ColdMax           int     `yaml:"cold_max"`
	WarmMax           int     `yaml:"warm_max"`
	SurgeSurgingMin   float64 `yaml:"surge_surging_min"`
	SurgeExplodingMin float64 `yaml:"surge_exploding_min"`
}

// SeedEventRule scoped=true 时规则只属于本配置，否则为全局规则
type SeedEventRule struct {
	Priority         int    `yaml:"priority"`
	Enabled          *bool  `yaml:"enabled"`
	Scoped           bool   `yaml:"scoped"`
	EventName        string `yaml:"event_name"`
	MatchType        string `yaml:"match_type"`
	MatchValue       string `yaml:"match_value"`
	ContentType      string `yaml:"content_type"`
	Lane             string `yaml:"lane"`
	WeightOverride   *int   `yaml:"weight_override"`
	EvidenceTemplate string `yaml:"evidence_template"`
}

type SeedProgramRule struct {
	Label       string `yaml:"label"`
	Priority    int    `yaml:"priority"`
	Enabled     *bool  `yaml:"enabled"`
	MatchField  string `yaml:"match_field"`
	MatchType   string `yaml:"match_type"`
	Pattern     string `yaml:"pattern"`
	AddScore    int    `yaml:"add_score"`
	ServiceLane string `yaml:"service_lane"`
	Topic       string `yaml:"topic"`
}

type SeedSuppressionRule struct {
	Label                  string `yaml:"label"`
	Priority               int    `yaml:"priority"`
	Enabled                *bool  `yaml:"enabled"`
	MatchField             string `yaml:"match_field"`
	MatchType              string `yaml:"match_type"`
	Pattern                string `yaml:"pattern"`
	SuppressScoreThreshold *int   `yaml:"suppress_score_threshold"`
}

type SeedBlacklistEntry struct {
	Pattern string `yaml:"pattern"`
	Reason  string `yaml:"reason"`
}

// SeedSummary 导入结果
type SeedSummary struct {
	ScoreConfigID    uint64 `json:"score_config_id"`
	Weights          int    `json:"weights"`
	EventRules       int    `json:"event_rules"`
	ProgramRules     int    `json:"program_rules"`
	SuppressionRules int    `json:"suppression_rules"`
	Blacklist        int    `json:"blacklist"`
}

// SeedTarget 导入用到的管理能力（AdminConfigService 的子集）
type SeedTarget interface {
	CreateScoreConfig(ctx context.Context, cfg *model.ScoreConfig) error
	ActivateScoreConfig(ctx context.Context, id uint64) error
	UpsertWeight(ctx context.Context, scoreConfigID uint64, wireKey string, weight int) (*model.WeightEntry, error)
	CreateEventRule(ctx context.Context, rule *model.EventRule) error
	SaveProgramRule(ctx context.Context, rule *model.ProgramRule) error
	SaveSuppressionRule(ctx context.Context, rule *model.SuppressionRule) error
	AddBlacklistEntry(ctx context.Context, e *model.AgencyBlacklistEntry) error
}

func LoadSeedFile(path string) (*SeedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取种子文件失败: %w", err)
	}
	return ParseSeed(raw)
}

func ParseSeed(raw []byte) (*SeedFile, error) {
	var seed SeedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("解析种子文件失败: %w", err)
	}
	return &seed, nil
}

func enabledOr(v *bool) bool {
	return v == nil || *v
}

// ApplySeed 依次写入配置、权重、规则，全部成功后才激活配置；中途失败时配置保持 draft
func ApplySeed(ctx context.Context, target SeedTarget, seed *SeedFile) (*SeedSummary, error) {
	cfg := &model.ScoreConfig{
		Name:              seed.ScoreConfig.Name,
		LambdaDecay:       seed.ScoreConfig.LambdaDecay,
		NormalizeK:        seed.ScoreConfig.NormalizeK,
		ColdMax:           seed.ScoreConfig.ColdMax,
		WarmMax:           seed.ScoreConfig.WarmMax,
		SurgeSurgingMin:   seed.ScoreConfig.SurgeSurgingMin,
		SurgeExplodingMin: seed.ScoreConfig.SurgeExplodingMin,
	}
	if err := target.CreateScoreConfig(ctx, cfg); err != nil {
		return nil, fmt.Errorf("score_config: %w", err)
	}
	summary := &SeedSummary{ScoreConfigID: cfg.ID}

	keys := make([]string, 0, len(seed.Weights))
	for k := range seed.Weights {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := target.UpsertWeight(ctx, cfg.ID, k, seed.Weights[k]); err != nil {
			return summary, fmt.Errorf("weights[%s]: %w", k, err)
		}
		summary.Weights++
	}

	for i, r := range seed.EventRules {
		rule := &model.EventRule{
			Priority:         r.Priority,
			Enabled:          enabledOr(r.Enabled),
			EventName:        r.EventName,
			MatchType:        r.MatchType,
			MatchValue:       r.MatchValue,
			ContentType:      r.ContentType,
			Lane:             r.Lane,
			WeightOverride:   r.WeightOverride,
			EvidenceTemplate: r.EvidenceTemplate,
		}
		if r.Scoped {
			id := cfg.ID
			rule.ScoreConfigID = &id
		}
		if err := target.CreateEventRule(ctx, rule); err != nil {
			return summary, fmt.Errorf("event_rules[%d]: %w", i, err)
		}
		summary.EventRules++
	}

	for i, r := range seed.ProgramRules {
		rule := &model.ProgramRule{
			Label:       r.Label,
			Priority:    r.Priority,
			Enabled:     enabledOr(r.Enabled),
			MatchField:  r.MatchField,
			MatchType:   r.MatchType,
			Pattern:     r.Pattern,
			AddScore:    r.AddScore,
			ServiceLane: r.ServiceLane,
			Topic:       r.Topic,
		}
		if err := target.SaveProgramRule(ctx, rule); err != nil {
			return summary, fmt.Errorf("program_rules[%d]: %w", i, err)
		}
		summary.ProgramRules++
	}

	for i, r := range seed.SuppressionRules {
		rule := &model.SuppressionRule{
			Label:                  r.Label,
			Priority:               r.Priority,
			Enabled:                enabledOr(r.Enabled),
			MatchField:             r.MatchField,
			MatchType:              r.MatchType,
			Pattern:                r.Pattern,
			SuppressScoreThreshold: r.SuppressScoreThreshold,
		}
		if err := target.SaveSuppressionRule(ctx, rule); err != nil {
			return summary, fmt.Errorf("suppression_rules[%d]: %w", i, err)
		}
		summary.SuppressionRules++
	}

	for i, b := range seed.Blacklist {
		if err := target.AddBlacklistEntry(ctx, &model.AgencyBlacklistEntry{Pattern: b.Pattern, Reason: b.Reason}); err != nil {
			return summary, fmt.Errorf("blacklist[%d]: %w", i, err)
		}
		summary.Blacklist++
	}

	if err := target.ActivateScoreConfig(ctx, cfg.ID); err != nil {
		return summary, fmt.Errorf("激活配置失败: %w", err)
	}
	return summary, nil
}
