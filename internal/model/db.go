package model

import (
	"gorm.io/gorm"
)

// All 需要自动迁移的全部表，按依赖顺序
func All() []interface{} {
	return []interface{}{
		&ScoreConfig{},
		&WeightEntry{},
		&EventRule{},
		&Account{},
		&IntentSignal{},
		&DailyAccountSnapshot{},
		&RecomputeRun{},
		&ProgramRule{},
		&SuppressionRule{},
		&AgencyBlacklistEntry{},
		&Opportunity{},
	}
}

// Migrate 库表不存在则创建，已存在则补齐缺失的列和索引
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(All()...)
}
