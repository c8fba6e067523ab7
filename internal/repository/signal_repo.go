package repository

import (
	"context"
	"time"

	"IntentEngine/internal/model"

	"gorm.io/gorm"
)

// SignalWithDomain 附带账号域名的信号，供二级事件源按账号分组
type SignalWithDomain struct {
	model.IntentSignal
	Domain string `gorm:"column:domain"`
}

// SignalRepository 本地行为信号仓储
type SignalRepository interface {
	Create(ctx context.Context, s *model.IntentSignal) error
	ListByAccountSince(ctx context.Context, accountID uint64, since time.Time) ([]*model.IntentSignal, error)
	ListSince(ctx context.Context, since time.Time) ([]*SignalWithDomain, error)
}

type signalRepository struct {
	db *gorm.DB
}

func NewSignalRepository(db *gorm.DB) SignalRepository {
	return &signalRepository{db: db}
}

func (r *signalRepository) Create(ctx context.Context, s *model.IntentSignal) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *signalRepository) ListByAccountSince(ctx context.Context, accountID uint64, since time.Time) ([]*model.IntentSignal, error) {
	var list []*model.IntentSignal
	if err := r.db.WithContext(ctx).
		Where("account_id = ? AND occurred_at >= ?", accountID, since).
		Order("occurred_at ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *signalRepository) ListSince(ctx context.Context, since time.Time) ([]*SignalWithDomain, error) {
	var list []*SignalWithDomain
	if err := r.db.WithContext(ctx).
		Table("intent_signals").
		Select("intent_signals.*, accounts.domain AS domain").
		Joins("JOIN accounts ON accounts.id = intent_signals.account_id").
		Where("intent_signals.occurred_at >= ?", since).
		Order("intent_signals.account_id ASC, intent_signals.occurred_at ASC").
		Scan(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
