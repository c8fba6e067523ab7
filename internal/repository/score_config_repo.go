package repository

import (
	"context"
	"fmt"

	"IntentEngine/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// reorder 后的 priority 步长
const priorityStep = 10

// ScoreConfigRepository 打分配置、权重表、事件规则
type ScoreConfigRepository interface {
	ListActiveScoreConfigs(ctx context.Context) ([]*model.ScoreConfig, error)
	ListScoreConfigs(ctx context.Context) ([]*model.ScoreConfig, error)
	GetScoreConfig(ctx context.Context, id uint64) (*model.ScoreConfig, error)
	CreateScoreConfig(ctx context.Context, cfg *model.ScoreConfig) error
	// UpdateScoreConfig 只更新参数字段，状态通过 ActivateScoreConfig 变更
	UpdateScoreConfig(ctx context.Context, cfg *model.ScoreConfig) error
	// ActivateScoreConfig 在一个事务里归档其他 active 配置并激活目标配置
	ActivateScoreConfig(ctx context.Context, id uint64) error

	ListWeights(ctx context.Context, scoreConfigID uint64) ([]*model.WeightEntry, error)
	UpsertWeight(ctx context.Context, w *model.WeightEntry) error
	DeleteWeight(ctx context.Context, scoreConfigID uint64, eventName, contentType, ctaID string) error

	// ListEventRules 全局规则（score_config_id 为空）加上该配置的专属规则
	ListEventRules(ctx context.Context, scoreConfigID uint64) ([]*model.EventRule, error)
	ListAllEventRules(ctx context.Context) ([]*model.EventRule, error)
	GetEventRule(ctx context.Context, id uint64) (*model.EventRule, error)
	CreateEventRule(ctx context.Context, rule *model.EventRule) error
	UpdateEventRule(ctx context.Context, rule *model.EventRule) error
	DeleteEventRule(ctx context.Context, id uint64) error
	// ReorderEventRules 按给定顺序把 priority 重排为 10,20,30...
	ReorderEventRules(ctx context.Context, ids []uint64) error
}

type scoreConfigRepository struct {
	db *gorm.DB
}

func NewScoreConfigRepository(db *gorm.DB) ScoreConfigRepository {
	return &scoreConfigRepository{db: db}
}

func (r *scoreConfigRepository) ListActiveScoreConfigs(ctx context.Context) ([]*model.ScoreConfig, error) {
	var list []*model.ScoreConfig
	if err := r.db.WithContext(ctx).Where("status = ?", model.ScoreConfigActive).Order("id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *scoreConfigRepository) ListScoreConfigs(ctx context.Context) ([]*model.ScoreConfig, error) {
	var list []*model.ScoreConfig
	if err := r.db.WithContext(ctx).Order("id DESC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *scoreConfigRepository) GetScoreConfig(ctx context.Context, id uint64) (*model.ScoreConfig, error) {
	var cfg model.ScoreConfig
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&cfg).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *scoreConfigRepository) CreateScoreConfig(ctx context.Context, cfg *model.ScoreConfig) error {
	if cfg.Status == "" {
		cfg.Status = model.ScoreConfigDraft
	}
	return r.db.WithContext(ctx).Create(cfg).Error
}

func (r *scoreConfigRepository) UpdateScoreConfig(ctx context.Context, cfg *model.ScoreConfig) error {
	res := r.db.WithContext(ctx).Model(&model.ScoreConfig{}).Where("id = ?", cfg.ID).Updates(map[string]interface{}{
		"name":                cfg.Name,
		"lambda_decay":        cfg.LambdaDecay,
		"normalize_k":         cfg.NormalizeK,
		"cold_max":            cfg.ColdMax,
		"warm_max":            cfg.WarmMax,
		"surge_surging_min":   cfg.SurgeSurgingMin,
		"surge_exploding_min": cfg.SurgeExplodingMin,
		"updated_at":          gorm.Expr("now()"),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *scoreConfigRepository) ActivateScoreConfig(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target model.ScoreConfig
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&target).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.ScoreConfig{}).
			Where("status = ? AND id <> ?", model.ScoreConfigActive, id).
			Updates(map[string]interface{}{"status": model.ScoreConfigArchived, "updated_at": gorm.Expr("now()")}).Error; err != nil {
			return fmt.Errorf("归档旧配置失败: %w", err)
		}
		return tx.Model(&model.ScoreConfig{}).Where("id = ?", id).
			Updates(map[string]interface{}{"status": model.ScoreConfigActive, "updated_at": gorm.Expr("now()")}).Error
	})
}

func (r *scoreConfigRepository) ListWeights(ctx context.Context, scoreConfigID uint64) ([]*model.WeightEntry, error) {
	var list []*model.WeightEntry
	if err := r.db.WithContext(ctx).Where("score_config_id = ?", scoreConfigID).
		Order("event_name ASC, content_type ASC, cta_id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *scoreConfigRepository) UpsertWeight(ctx context.Context, w *model.WeightEntry) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "score_config_id"}, {Name: "event_name"}, {Name: "content_type"}, {Name: "cta_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"weight", "updated_at"}),
	}).Create(w).Error
}

func (r *scoreConfigRepository) DeleteWeight(ctx context.Context, scoreConfigID uint64, eventName, contentType, ctaID string) error {
	res := r.db.WithContext(ctx).
		Where("score_config_id = ? AND event_name = ? AND content_type = ? AND cta_id = ?", scoreConfigID, eventName, contentType, ctaID).
		Delete(&model.WeightEntry{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *scoreConfigRepository) ListEventRules(ctx context.Context, scoreConfigID uint64) ([]*model.EventRule, error) {
	var list []*model.EventRule
	if err := r.db.WithContext(ctx).
		Where("score_config_id IS NULL OR score_config_id = ?", scoreConfigID).
		Order("priority ASC, id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *scoreConfigRepository) ListAllEventRules(ctx context.Context) ([]*model.EventRule, error) {
	var list []*model.EventRule
	if err := r.db.WithContext(ctx).Order("priority ASC, id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *scoreConfigRepository) GetEventRule(ctx context.Context, id uint64) (*model.EventRule, error) {
	var rule model.EventRule
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rule).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *scoreConfigRepository) CreateEventRule(ctx context.Context, rule *model.EventRule) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

func (r *scoreConfigRepository) UpdateEventRule(ctx context.Context, rule *model.EventRule) error {
	// 显式 Select，enabled=false 与空模板等零值也要写回
	res := r.db.WithContext(ctx).Model(&model.EventRule{}).Where("id = ?", rule.ID).
		Select("score_config_id", "priority", "enabled", "event_name", "match_type", "match_value",
			"content_type", "lane", "weight_override", "evidence_template", "updated_at").
		Updates(rule)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *scoreConfigRepository) DeleteEventRule(ctx context.Context, id uint64) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.EventRule{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *scoreConfigRepository) ReorderEventRules(ctx context.Context, ids []uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, id := range ids {
			res := tx.Model(&model.EventRule{}).Where("id = ?", id).
				Updates(map[string]interface{}{"priority": (i + 1) * priorityStep, "updated_at": gorm.Expr("now()")})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("event rule %d: %w", id, gorm.ErrRecordNotFound)
			}
		}
		return nil
	})
}
