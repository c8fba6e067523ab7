package repository

import (
	"context"

	"IntentEngine/internal/model"

	"gorm.io/gorm"
)

// RunRepository 打分任务执行记录
type RunRepository interface {
	Create(ctx context.Context, run *model.RecomputeRun) error
	// Save 更新计数、状态与结束时间
	Save(ctx context.Context, run *model.RecomputeRun) error
	GetByUUID(ctx context.Context, runUUID string) (*model.RecomputeRun, error)
}

type runRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) RunRepository {
	return &runRepository{db: db}
}

func (r *runRepository) Create(ctx context.Context, run *model.RecomputeRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *runRepository) Save(ctx context.Context, run *model.RecomputeRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

func (r *runRepository) GetByUUID(ctx context.Context, runUUID string) (*model.RecomputeRun, error) {
	var run model.RecomputeRun
	if err := r.db.WithContext(ctx).Where("run_uuid = ?", runUUID).First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}
