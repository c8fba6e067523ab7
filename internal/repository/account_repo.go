package repository

import (
	"context"
	"errors"
	"time"

	"IntentEngine/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AccountProjection 写回账号表的最新快照冗余字段
type AccountProjection struct {
	IntentScore int
	IntentStage string
	SurgeLevel  string
	SurgeRatio  float64
	TopLane     string
	WhyHot      []string
	LastSeenAt  *time.Time
	ScoredAt    time.Time
}

// AccountRepository 账号仓储
type AccountRepository interface {
	GetByID(ctx context.Context, id uint64) (*model.Account, error)
	GetByDomain(ctx context.Context, domain string) (*model.Account, error)
	// FindOrCreateByDomain 不存在时创建，created 表示本次新建
	FindOrCreateByDomain(ctx context.Context, domain string) (acc *model.Account, created bool, err error)
	UpdateProjection(ctx context.Context, id uint64, p AccountProjection) error
	ListAccounts(ctx context.Context, stage string, page, pageSize int) ([]*model.Account, int64, error)
}

type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) GetByID(ctx context.Context, id uint64) (*model.Account, error) {
	var acc model.Account
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&acc).Error; err != nil {
		return nil, err
	}
	return &acc, nil
}

func (r *accountRepository) GetByDomain(ctx context.Context, domain string) (*model.Account, error) {
	var acc model.Account
	if err := r.db.WithContext(ctx).Where("domain = ?", domain).First(&acc).Error; err != nil {
		return nil, err
	}
	return &acc, nil
}

func (r *accountRepository) FindOrCreateByDomain(ctx context.Context, domain string) (*model.Account, bool, error) {
	acc, err := r.GetByDomain(ctx, domain)
	if err == nil {
		return acc, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	// 并发创建同一域名时靠唯一索引兜底，冲突方重新查询
	fresh := &model.Account{
		PublicID:    uuid.NewString(),
		Domain:      domain,
		Name:        domain,
		IntentStage: "Cold",
		SurgeLevel:  "Normal",
		SurgeRatio:  1,
		TopLane:     "other",
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "domain"}},
		DoNothing: true,
	}).Create(fresh)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		acc, err := r.GetByDomain(ctx, domain)
		return acc, false, err
	}
	return fresh, true, nil
}

func (r *accountRepository) UpdateProjection(ctx context.Context, id uint64, p AccountProjection) error {
	return r.db.WithContext(ctx).Model(&model.Account{}).Where("id = ?", id).Updates(map[string]interface{}{
		"intent_score": p.IntentScore,
		"intent_stage": p.IntentStage,
		"surge_level":  p.SurgeLevel,
		"surge_ratio":  p.SurgeRatio,
		"top_lane":     p.TopLane,
		"why_hot":      model.ToJSON(p.WhyHot),
		"last_seen_at": p.LastSeenAt,
		"scored_at":    p.ScoredAt,
		"updated_at":   gorm.Expr("now()"),
	}).Error
}

func (r *accountRepository) ListAccounts(ctx context.Context, stage string, page, pageSize int) ([]*model.Account, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	db := r.db.WithContext(ctx).Model(&model.Account{})
	if stage != "" {
		db = db.Where("intent_stage = ?", stage)
	}
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []*model.Account
	if err := db.Order("intent_score DESC, id ASC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}
