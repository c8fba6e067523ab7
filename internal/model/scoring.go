package model

import (
	"time"
)

// ScoreConfig 打分参数配置，同一时刻只允许一条 status=active
// 数值列不设 default，cold_max=0、λ=0 这类零值要原样写入
type ScoreConfig struct {
	ID                uint64    `json:"id" gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	Name              string    `json:"name" gorm:"column:name;type:varchar(64);not null;comment:配置名称"`
	LambdaDecay       float64   `json:"lambda_decay" gorm:"column:lambda_decay;type:numeric(10,6);not null;comment:衰减率λ（每天）"`
	NormalizeK        float64   `json:"normalize_k" gorm:"column:normalize_k;type:numeric(10,4);not null;comment:归一化常数k"`
	ColdMax           int       `json:"cold_max" gorm:"column:cold_max;type:int;not null;comment:Cold上限（含）"`
	WarmMax           int       `json:"warm_max" gorm:"column:warm_max;type:int;not null;comment:Warm上限（含）"`
	SurgeSurgingMin   float64   `json:"surge_surging_min" gorm:"column:surge_surging_min;type:numeric(8,4);not null;comment:Surging阈值"`
	SurgeExplodingMin float64   `json:"surge_exploding_min" gorm:"column:surge_exploding_min;type:numeric(8,4);not null;comment:Exploding阈值"`
	Status            string    `json:"status" gorm:"column:status;type:varchar(16);not null;default:draft;index;comment:状态：draft/active/archived"`
	CreatedAt         time.Time `json:"created_at" gorm:"column:created_at;type:timestamp;default:now();comment:创建时间"`
	UpdatedAt         time.Time `json:"updated_at" gorm:"column:updated_at;type:timestamp;default:now();comment:更新时间"`
}

// ScoreConfig 状态
const (
	ScoreConfigDraft    = "draft"
	ScoreConfigActive   = "active"
	ScoreConfigArchived = "archived"
)

// WeightEntry 事件权重表，按 (event_name, content_type, cta_id) 定位，空字段存空串
type WeightEntry struct {
	ID            uint64    `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	ScoreConfigID uint64    `json:"score_config_id" gorm:"column:score_config_id;type:bigint;not null;uniqueIndex:uq_weight_key"`
	EventName     string    `json:"event_name" gorm:"column:event_name;type:varchar(64);not null;uniqueIndex:uq_weight_key"`
	ContentType   string    `json:"content_type" gorm:"column:content_type;type:varchar(64);not null;default:'';uniqueIndex:uq_weight_key"`
	CTAID         string    `json:"cta_id" gorm:"column:cta_id;type:varchar(64);not null;default:'';uniqueIndex:uq_weight_key"`
	Weight        int       `json:"weight" gorm:"column:weight;type:int;not null"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"column:updated_at;type:timestamp;default:now()"`
}

// EventRule 行为事件分类规则，priority 越小越优先，首个命中生效
// ScoreConfigID 为空表示全局规则，与当前 active 配置的专属规则一起生效
type EventRule struct {
	ID               uint64    `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	ScoreConfigID    *uint64   `json:"score_config_id" gorm:"column:score_config_id;type:bigint;index;comment:为空表示全局规则"`
	Priority         int       `json:"priority" gorm:"column:priority;type:int;not null"`
	Enabled          bool      `json:"enabled" gorm:"column:enabled;type:boolean;not null"`
	EventName        string    `json:"event_name" gorm:"column:event_name;type:varchar(64);not null;comment:精确事件名或含*通配"`
	MatchType        string    `json:"match_type" gorm:"column:match_type;type:varchar(16);not null;comment:path_prefix/contains/equals/path_regex"`
	MatchValue       string    `json:"match_value" gorm:"column:match_value;type:varchar(512);not null"`
	ContentType      string    `json:"content_type" gorm:"column:content_type;type:varchar(64);not null;default:other"`
	Lane             string    `json:"lane" gorm:"column:lane;type:varchar(64);not null;default:other"`
	WeightOverride   *int      `json:"weight_override" gorm:"column:weight_override;type:int"`
	EvidenceTemplate string    `json:"evidence_template" gorm:"column:evidence_template;type:varchar(256);comment:证据文案模板，支持{count}"`
	CreatedAt        time.Time `json:"created_at" gorm:"column:created_at;type:timestamp;default:now()"`
	UpdatedAt        time.Time `json:"updated_at" gorm:"column:updated_at;type:timestamp;default:now()"`
}

func (ScoreConfig) TableName() string { return "score_configs" }
func (WeightEntry) TableName() string { return "weight_entries" }
func (EventRule) TableName() string   { return "event_rules" }
