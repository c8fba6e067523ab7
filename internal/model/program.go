package model

import (
	"time"

	"gorm.io/datatypes"
)

// ProgramRule 采购机会正向匹配规则，priority 大的先执行
type ProgramRule struct {
	ID          uint64    `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	Label       string    `json:"label" gorm:"column:label;type:varchar(128);not null"`
	Priority    int       `json:"priority" gorm:"column:priority;type:int;not null;default:0"`
	Enabled     bool      `json:"enabled" gorm:"column:enabled;type:boolean;not null"`
	MatchField  string    `json:"match_field" gorm:"column:match_field;type:varchar(32);not null;default:any;comment:title/description/agency/naics/any"`
	MatchType   string    `json:"match_type" gorm:"column:match_type;type:varchar(16);not null;default:contains;comment:contains/equals/prefix/regex"`
	Pattern     string    `json:"pattern" gorm:"column:pattern;type:varchar(512);not null"`
	AddScore    int       `json:"add_score" gorm:"column:add_score;type:int;not null;default:0"`
	ServiceLane string    `json:"service_lane" gorm:"column:service_lane;type:varchar(64)"`
	Topic       string    `json:"topic" gorm:"column:topic;type:varchar(64)"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at;type:timestamp;default:now()"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"column:updated_at;type:timestamp;default:now()"`
}

// SuppressionRule 抑制规则，priority 大的先执行；SuppressScoreThreshold 非空时只在已累计分数超过阈值时生效
type SuppressionRule struct {
	ID                     uint64    `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	Label                  string    `json:"label" gorm:"column:label;type:varchar(128);not null"`
	Priority               int       `json:"priority" gorm:"column:priority;type:int;not null;default:0"`
	Enabled                bool      `json:"enabled" gorm:"column:enabled;type:boolean;not null"`
	MatchField             string    `json:"match_field" gorm:"column:match_field;type:varchar(32);not null;default:any"`
	MatchType              string    `json:"match_type" gorm:"column:match_type;type:varchar(16);not null;default:contains"`
	Pattern                string    `json:"pattern" gorm:"column:pattern;type:varchar(512);not null"`
	SuppressScoreThreshold *int      `json:"suppress_score_threshold" gorm:"column:suppress_score_threshold;type:int"`
	CreatedAt              time.Time `json:"created_at" gorm:"column:created_at;type:timestamp;default:now()"`
	UpdatedAt              time.Time `json:"updated_at" gorm:"column:updated_at;type:timestamp;default:now()"`
}

// AgencyBlacklistEntry 机构黑名单，对 agency 字段做子串匹配
type AgencyBlacklistEntry struct {
	ID        uint64    `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	Pattern   string    `json:"pattern" gorm:"column:pattern;type:varchar(255);not null;uniqueIndex"`
	Reason    string    `json:"reason" gorm:"column:reason;type:varchar(255)"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;type:timestamp;default:now()"`
}

// Opportunity 外部采购机会，分类结果直接落在记录上
type Opportunity struct {
	ID               uint64         `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	Source           string         `json:"source" gorm:"column:source;type:varchar(32);not null;uniqueIndex:uq_opportunity_source"`
	ExternalID       string         `json:"external_id" gorm:"column:external_id;type:varchar(128);not null;uniqueIndex:uq_opportunity_source"`
	Title            string         `json:"title" gorm:"column:title;type:varchar(512);not null"`
	Description      string         `json:"description" gorm:"column:description;type:text"`
	Agency           string         `json:"agency" gorm:"column:agency;type:varchar(512)"`
	NAICS            string         `json:"naics" gorm:"column:naics;type:varchar(16)"`
	PostedAt         *time.Time     `json:"posted_at" gorm:"column:posted_at;type:timestamp"`
	ServiceLane      *string        `json:"service_lane" gorm:"column:service_lane;type:varchar(64)"`
	Topic            *string        `json:"topic" gorm:"column:topic;type:varchar(64)"`
	RelevanceScore   int            `json:"relevance_score" gorm:"column:relevance_score;type:int;default:0"`
	MatchConfidence  float64        `json:"match_confidence" gorm:"column:match_confidence;type:numeric(6,4);default:0"`
	MatchReasons     datatypes.JSON `json:"match_reasons" gorm:"column:match_reasons;type:jsonb"`
	Suppressed       bool           `json:"suppressed" gorm:"column:suppressed;type:boolean;default:false"`
	SuppressedReason *string        `json:"suppressed_reason" gorm:"column:suppressed_reason;type:varchar(255)"`
	ClassifiedAt     *time.Time     `json:"classified_at" gorm:"column:classified_at;type:timestamp"`
	CreatedAt        time.Time      `json:"created_at" gorm:"column:created_at;type:timestamp;default:now()"`
	UpdatedAt        time.Time      `json:"updated_at" gorm:"column:updated_at;type:timestamp;default:now()"`
}

func (ProgramRule) TableName() string          { return "program_rules" }
func (SuppressionRule) TableName() string      { return "suppression_rules" }
func (AgencyBlacklistEntry) TableName() string { return "agency_blacklist" }
func (Opportunity) TableName() string          { return "opportunities" }
