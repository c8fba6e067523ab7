package repository

import (
	"context"
	"time"

	"IntentEngine/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// snapshotUpdateColumns 冲突时整行覆盖的列（不含 id/account_id/snapshot_date/created_at）
var snapshotUpdateColumns = []string{
	"raw_score_7d", "raw_score_prev_7d", "raw_score_30d",
	"intent_score", "intent_stage", "surge_ratio", "surge_level", "top_lane",
	"lane_scores_7d", "lane_scores_30d", "key_event_counts", "evidence",
	"unique_visitors_7d", "last_event_at", "updated_at",
}

// SnapshotRepository 日快照仓储
type SnapshotRepository interface {
	Get(ctx context.Context, accountID uint64, date time.Time) (*model.DailyAccountSnapshot, error)
	// Upsert 单条 INSERT ... ON CONFLICT (account_id, snapshot_date) DO UPDATE，整行替换
	Upsert(ctx context.Context, s *model.DailyAccountSnapshot) error
	Latest(ctx context.Context, accountID uint64) (*model.DailyAccountSnapshot, error)
	ListSince(ctx context.Context, accountID uint64, since time.Time) ([]*model.DailyAccountSnapshot, error)
}

type snapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) SnapshotRepository {
	return &snapshotRepository{db: db}
}

// SnapshotDate 快照日期取 UTC 自然日
func SnapshotDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (r *snapshotRepository) Get(ctx context.Context, accountID uint64, date time.Time) (*model.DailyAccountSnapshot, error) {
	var s model.DailyAccountSnapshot
	if err := r.db.WithContext(ctx).
		Where("account_id = ? AND snapshot_date = ?", accountID, SnapshotDate(date)).
		First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *snapshotRepository) Upsert(ctx context.Context, s *model.DailyAccountSnapshot) error {
	s.SnapshotDate = SnapshotDate(s.SnapshotDate)
	s.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "snapshot_date"}},
		DoUpdates: clause.AssignmentColumns(snapshotUpdateColumns),
	}).Create(s).Error
}

func (r *snapshotRepository) Latest(ctx context.Context, accountID uint64) (*model.DailyAccountSnapshot, error) {
	var s model.DailyAccountSnapshot
	if err := r.db.WithContext(ctx).Where("account_id = ?", accountID).
		Order("snapshot_date DESC").First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *snapshotRepository) ListSince(ctx context.Context, accountID uint64, since time.Time) ([]*model.DailyAccountSnapshot, error) {
	var list []*model.DailyAccountSnapshot
	if err := r.db.WithContext(ctx).
		Where("account_id = ? AND snapshot_date >= ?", accountID, SnapshotDate(since)).
		Order("snapshot_date ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
