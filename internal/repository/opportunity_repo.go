package repository

import (
	"context"

	"IntentEngine/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OpportunityFilter 采购机会列表筛选
type OpportunityFilter struct {
	ServiceLane    string
	MinScore       int
	ShowSuppressed bool
}

// OpportunityRepository 采购机会仓储
type OpportunityRepository interface {
	// Upsert 按 (source, external_id) 插入或整行更新，返回后 o.ID 有效
	Upsert(ctx context.Context, o *model.Opportunity) error
	List(ctx context.Context, filter OpportunityFilter, page, pageSize int) ([]*model.Opportunity, int64, error)
	// ListBatch 按 id 递增分批读取，afterID 为上一批最后一条的 id
	ListBatch(ctx context.Context, afterID uint64, limit int) ([]*model.Opportunity, error)
}

type opportunityRepository struct {
	db *gorm.DB
}

func NewOpportunityRepository(db *gorm.DB) OpportunityRepository {
	return &opportunityRepository{db: db}
}

func (r *opportunityRepository) Upsert(ctx context.Context, o *model.Opportunity) error {
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "source"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "description", "agency", "naics", "posted_at",
			"service_lane", "topic", "relevance_score", "match_confidence", "match_reasons",
			"suppressed", "suppressed_reason", "classified_at", "updated_at",
		}),
	}).Create(o).Error; err != nil {
		return err
	}
	if o.ID == 0 {
		if err := r.db.WithContext(ctx).Model(o).
			Where("source = ? AND external_id = ?", o.Source, o.ExternalID).
			Select("id").First(o).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *opportunityRepository) List(ctx context.Context, filter OpportunityFilter, page, pageSize int) ([]*model.Opportunity, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	db := r.db.WithContext(ctx).Model(&model.Opportunity{})
	if !filter.ShowSuppressed {
		db = db.Where("suppressed = ?", false)
	}
	if filter.ServiceLane != "" {
		db = db.Where("service_lane = ?", filter.ServiceLane)
	}
	if filter.MinScore > 0 {
		db = db.Where("relevance_score >= ?", filter.MinScore)
	}
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []*model.Opportunity
	if err := db.Order("relevance_score DESC, id DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *opportunityRepository) ListBatch(ctx context.Context, afterID uint64, limit int) ([]*model.Opportunity, error) {
	if limit <= 0 {
		limit = 500
	}
	var list []*model.Opportunity
	if err := r.db.WithContext(ctx).Where("id > ?", afterID).Order("id ASC").Limit(limit).Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
