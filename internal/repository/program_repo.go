package repository

import (
	"context"

	"IntentEngine/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProgramRuleRepository 采购分类规则：黑名单、抑制规则、正向规则
type ProgramRuleRepository interface {
	ListBlacklist(ctx context.Context) ([]*model.AgencyBlacklistEntry, error)
	CreateBlacklistEntry(ctx context.Context, e *model.AgencyBlacklistEntry) error
	DeleteBlacklistEntry(ctx context.Context, id uint64) error

	ListSuppressionRules(ctx context.Context, onlyEnabled bool) ([]*model.SuppressionRule, error)
	SaveSuppressionRule(ctx context.Context, rule *model.SuppressionRule) error
	DeleteSuppressionRule(ctx context.Context, id uint64) error

	ListProgramRules(ctx context.Context, onlyEnabled bool) ([]*model.ProgramRule, error)
	SaveProgramRule(ctx context.Context, rule *model.ProgramRule) error
	DeleteProgramRule(ctx context.Context, id uint64) error
}

type programRuleRepository struct {
	db *gorm.DB
}

func NewProgramRuleRepository(db *gorm.DB) ProgramRuleRepository {
	return &programRuleRepository{db: db}
}

func (r *programRuleRepository) ListBlacklist(ctx context.Context) ([]*model.AgencyBlacklistEntry, error) {
	var list []*model.AgencyBlacklistEntry
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *programRuleRepository) CreateBlacklistEntry(ctx context.Context, e *model.AgencyBlacklistEntry) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "pattern"}},
		DoUpdates: clause.AssignmentColumns([]string{"reason"}),
	}).Create(e).Error
}

func (r *programRuleRepository) DeleteBlacklistEntry(ctx context.Context, id uint64) error {
	return deleteByID(ctx, r.db, &model.AgencyBlacklistEntry{}, id)
}

func (r *programRuleRepository) ListSuppressionRules(ctx context.Context, onlyEnabled bool) ([]*model.SuppressionRule, error) {
	var list []*model.SuppressionRule
	db := r.db.WithContext(ctx)
	if onlyEnabled {
		db = db.Where("enabled = ?", true)
	}
	if err := db.Order("priority DESC, id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// SaveSuppressionRule id 为 0 时新建，否则整行更新
func (r *programRuleRepository) SaveSuppressionRule(ctx context.Context, rule *model.SuppressionRule) error {
	return r.db.WithContext(ctx).Save(rule).Error
}

func (r *programRuleRepository) DeleteSuppressionRule(ctx context.Context, id uint64) error {
	return deleteByID(ctx, r.db, &model.SuppressionRule{}, id)
}

func (r *programRuleRepository) ListProgramRules(ctx context.Context, onlyEnabled bool) ([]*model.ProgramRule, error) {
	var list []*model.ProgramRule
	db := r.db.WithContext(ctx)
	if onlyEnabled {
		db = db.Where("enabled = ?", true)
	}
	if err := db.Order("priority DESC, id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *programRuleRepository) SaveProgramRule(ctx context.Context, rule *model.ProgramRule) error {
	return r.db.WithContext(ctx).Save(rule).Error
}

func (r *programRuleRepository) DeleteProgramRule(ctx context.Context, id uint64) error {
	return deleteByID(ctx, r.db, &model.ProgramRule{}, id)
}

func deleteByID(ctx context.Context, db *gorm.DB, value interface{}, id uint64) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
