package model

import (
	"time"
)

// RecomputeRun 一次打分任务的执行记录
type RecomputeRun struct {
	ID              uint64     `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	RunUUID         string     `json:"run_uuid" gorm:"column:run_uuid;type:varchar(64);uniqueIndex;not null"`
	Mode            string     `json:"mode" gorm:"column:mode;type:varchar(16);not null;comment:batch/realtime"`
	State           string     `json:"state" gorm:"column:state;type:varchar(16);not null;comment:running/done/aborted"`
	Source          string     `json:"source" gorm:"column:source;type:varchar(16);comment:primary/secondary/local"`
	RangeDays       int        `json:"range_days" gorm:"column:range_days;type:int"`
	AccountsScored  int        `json:"accounts_scored" gorm:"column:accounts_scored;type:int;default:0"`
	AccountsSkipped int        `json:"accounts_skipped" gorm:"column:accounts_skipped;type:int;default:0"`
	AccountsCreated int        `json:"accounts_created" gorm:"column:accounts_created;type:int;default:0"`
	AccountsFailed  int        `json:"accounts_failed" gorm:"column:accounts_failed;type:int;default:0"`
	Error           *string    `json:"error" gorm:"column:error;type:text"`
	StartedAt       time.Time  `json:"started_at" gorm:"column:started_at;type:timestamp;not null"`
	FinishedAt      *time.Time `json:"finished_at" gorm:"column:finished_at;type:timestamp"`
}

// RecomputeRun 模式与状态
const (
	RunModeBatch    = "batch"
	RunModeRealtime = "realtime"

	RunStateRunning = "running"
	RunStateDone    = "done"
	RunStateAborted = "aborted"
)

func (RecomputeRun) TableName() string { return "recompute_runs" }
