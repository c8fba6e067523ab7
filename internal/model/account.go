package model

import (
	"time"

	"gorm.io/datatypes"
)

// Account 目标公司（以域名为 key）。intent_* 字段是最新快照的冗余投影，仅作缓存
type Account struct {
	ID          uint64         `json:"id" gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	PublicID    string         `json:"public_id" gorm:"column:public_id;type:varchar(64);uniqueIndex;not null;comment:对外ID"`
	Domain      string         `json:"domain" gorm:"column:domain;type:varchar(255);uniqueIndex;not null;comment:公司域名"`
	Name        string         `json:"name" gorm:"column:name;type:varchar(255);comment:公司名称"`
	IntentScore int            `json:"intent_score" gorm:"column:intent_score;type:int;default:0"`
	IntentStage string         `json:"intent_stage" gorm:"column:intent_stage;type:varchar(16);default:Cold"`
	SurgeLevel  string         `json:"surge_level" gorm:"column:surge_level;type:varchar(16);default:Normal"`
	SurgeRatio  float64        `json:"surge_ratio" gorm:"column:surge_ratio;type:numeric(12,4);default:1"`
	TopLane     string         `json:"top_lane" gorm:"column:top_lane;type:varchar(64);default:other"`
	WhyHot      datatypes.JSON `json:"why_hot" gorm:"column:why_hot;type:jsonb;comment:最多3条的原因"`
	LastSeenAt  *time.Time     `json:"last_seen_at" gorm:"column:last_seen_at;type:timestamp"`
	ScoredAt    *time.Time     `json:"scored_at" gorm:"column:scored_at;type:timestamp"`
	CreatedAt   time.Time      `json:"created_at" gorm:"column:created_at;type:timestamp;default:now()"`
	UpdatedAt   time.Time      `json:"updated_at" gorm:"column:updated_at;type:timestamp;default:now()"`
}

// IntentSignal 本地存储的行为信号（二级事件源 / 实时打分的输入）
type IntentSignal struct {
	ID          uint64    `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	AccountID   uint64    `json:"account_id" gorm:"column:account_id;type:bigint;not null;index:idx_signal_account_time,priority:1"`
	SignalType  string    `json:"signal_type" gorm:"column:signal_type;type:varchar(128);not null;comment:事件key"`
	Topic       string    `json:"topic" gorm:"column:topic;type:varchar(64)"`
	ServiceLane string    `json:"service_lane" gorm:"column:service_lane;type:varchar(64)"`
	Weight      float64   `json:"weight" gorm:"column:weight;type:numeric(10,4);not null"`
	VisitorID   string    `json:"visitor_id" gorm:"column:visitor_id;type:varchar(128)"`
	Path        string    `json:"path" gorm:"column:path;type:varchar(1024)"`
	OccurredAt  time.Time `json:"occurred_at" gorm:"column:occurred_at;type:timestamp;not null;index:idx_signal_account_time,priority:2"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at;type:timestamp;default:now()"`
}

// DailyAccountSnapshot 每个账号每天一条，重复计算时整行覆盖
type DailyAccountSnapshot struct {
	ID               uint64         `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	AccountID        uint64         `json:"account_id" gorm:"column:account_id;type:bigint;not null;uniqueIndex:uq_account_date"`
	SnapshotDate     time.Time      `json:"snapshot_date" gorm:"column:snapshot_date;type:date;not null;uniqueIndex:uq_account_date"`
	RawScore7d       float64        `json:"raw_score_7d" gorm:"column:raw_score_7d;type:double precision;default:0"`
	RawScorePrev7d   float64        `json:"raw_score_prev_7d" gorm:"column:raw_score_prev_7d;type:double precision;default:0"`
	RawScore30d      float64        `json:"raw_score_30d" gorm:"column:raw_score_30d;type:double precision;default:0"`
	IntentScore      int            `json:"intent_score" gorm:"column:intent_score;type:int;default:0"`
	IntentStage      string         `json:"intent_stage" gorm:"column:intent_stage;type:varchar(16);not null"`
	SurgeRatio       float64        `json:"surge_ratio" gorm:"column:surge_ratio;type:double precision;default:1"`
	SurgeLevel       string         `json:"surge_level" gorm:"column:surge_level;type:varchar(16);not null"`
	TopLane          string         `json:"top_lane" gorm:"column:top_lane;type:varchar(64);not null"`
	LaneScores7d     datatypes.JSON `json:"lane_scores_7d" gorm:"column:lane_scores_7d;type:jsonb"`
	LaneScores30d    datatypes.JSON `json:"lane_scores_30d" gorm:"column:lane_scores_30d;type:jsonb"`
	KeyEventCounts   datatypes.JSON `json:"key_event_counts" gorm:"column:key_event_counts;type:jsonb"`
	Evidence         datatypes.JSON `json:"evidence" gorm:"column:evidence;type:jsonb;comment:最多6条证据"`
	UniqueVisitors7d int            `json:"unique_visitors_7d" gorm:"column:unique_visitors_7d;type:int;default:0"`
	LastEventAt      *time.Time     `json:"last_event_at" gorm:"column:last_event_at;type:timestamp"`
	CreatedAt        time.Time      `json:"created_at" gorm:"column:created_at;type:timestamp;default:now()"`
	UpdatedAt        time.Time      `json:"updated_at" gorm:"column:updated_at;type:timestamp;default:now()"`
}

func (Account) TableName() string              { return "accounts" }
func (IntentSignal) TableName() string         { return "intent_signals" }
func (DailyAccountSnapshot) TableName() string { return "daily_account_snapshots" }
