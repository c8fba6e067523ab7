package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"IntentEngine/internal/model"
	"IntentEngine/internal/repository"

	"gorm.io/gorm"
)

const maxHistoryDays = 365

// SnapshotView 快照的对外视图，jsonb 列展开为结构化字段
type SnapshotView struct {
	Date             string             `json:"date"`
	RawScore7d       float64            `json:"raw_score_7d"`
	RawScorePrev7d   float64            `json:"raw_score_prev_7d"`
	RawScore30d      float64            `json:"raw_score_30d"`
	IntentScore      int                `json:"intent_score"`
	IntentStage      string             `json:"intent_stage"`
	SurgeRatio       float64            `json:"surge_ratio"`
	SurgeLevel       string             `json:"surge_level"`
	TopLane          string             `json:"top_lane"`
	LaneScores7d     map[string]float64 `json:"lane_scores_7d"`
	LaneScores30d    map[string]float64 `json:"lane_scores_30d"`
	KeyEventCounts   map[string]int     `json:"key_event_counts"`
	Evidence         []string           `json:"evidence"`
	UniqueVisitors7d int                `json:"unique_visitors_7d"`
	LastEventAt      *time.Time         `json:"last_event_at"`
}

// AccountIntent 账号投影 + 最新快照
type AccountIntent struct {
	AccountID   uint64        `json:"account_id"`
	PublicID    string        `json:"public_id"`
	Domain      string        `json:"domain"`
	IntentScore int           `json:"intent_score"`
	IntentStage string        `json:"intent_stage"`
	SurgeLevel  string        `json:"surge_level"`
	SurgeRatio  float64       `json:"surge_ratio"`
	TopLane     string        `json:"top_lane"`
	WhyHot      []string      `json:"why_hot"`
	LastSeenAt  *time.Time    `json:"last_seen_at"`
	ScoredAt    *time.Time    `json:"scored_at"`
	Latest      *SnapshotView `json:"latest_snapshot"`
}

// AccountQueryService 账号意向查询
type AccountQueryService struct {
	accounts  repository.AccountRepository
	snapshots repository.SnapshotRepository
	now       func() time.Time
}

func NewAccountQueryService(accounts repository.AccountRepository, snapshots repository.SnapshotRepository) *AccountQueryService {
	return &AccountQueryService{accounts: accounts, snapshots: snapshots, now: time.Now}
}

func (s *AccountQueryService) GetIntent(ctx context.Context, accountID uint64) (*AccountIntent, error) {
	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrAccountNotFound, accountID)
		}
		return nil, err
	}
	out := &AccountIntent{
		AccountID:   acc.ID,
		PublicID:    acc.PublicID,
		Domain:      acc.Domain,
		IntentScore: acc.IntentScore,
		IntentStage: acc.IntentStage,
		SurgeLevel:  acc.SurgeLevel,
		SurgeRatio:  acc.SurgeRatio,
		TopLane:     acc.TopLane,
		WhyHot:      []string{},
		LastSeenAt:  acc.LastSeenAt,
		ScoredAt:    acc.ScoredAt,
	}
	if err := model.FromJSON(acc.WhyHot, &out.WhyHot); err != nil {
		return nil, fmt.Errorf("解析why_hot失败: %w", err)
	}

	latest, err := s.snapshots.Latest(ctx, accountID)
	switch {
	case err == nil:
		view, err := toSnapshotView(latest)
		if err != nil {
			return nil, err
		}
		out.Latest = view
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}
	return out, nil
}

// ListAccounts 按意向分数倒序分页，stage 为空时不过滤
func (s *AccountQueryService) ListAccounts(ctx context.Context, stage string, page, pageSize int) ([]*model.Account, int64, error) {
	return s.accounts.ListAccounts(ctx, stage, page, pageSize)
}

// ListSnapshots 最近 days 天的快照，按日期升序
func (s *AccountQueryService) ListSnapshots(ctx context.Context, accountID uint64, days int) ([]*SnapshotView, error) {
	if _, err := s.accounts.GetByID(ctx, accountID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrAccountNotFound, accountID)
		}
		return nil, err
	}
	days = ClampRangeDays(days, defaultRangeDays)
	if days > maxHistoryDays {
		days = maxHistoryDays
	}
	list, err := s.snapshots.ListSince(ctx, accountID, s.now().AddDate(0, 0, -(days-1)))
	if err != nil {
		return nil, err
	}
	out := make([]*SnapshotView, 0, len(list))
	for _, snap := range list {
		view, err := toSnapshotView(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, view)
	}
	return out, nil
}

func toSnapshotView(s *model.DailyAccountSnapshot) (*SnapshotView, error) {
	v := &SnapshotView{
		Date:             s.SnapshotDate.Format(dateLayout),
		RawScore7d:       s.RawScore7d,
		RawScorePrev7d:   s.RawScorePrev7d,
		RawScore30d:      s.RawScore30d,
		IntentScore:      s.IntentScore,
		IntentStage:      s.IntentStage,
		SurgeRatio:       s.SurgeRatio,
		SurgeLevel:       s.SurgeLevel,
		TopLane:          s.TopLane,
		LaneScores7d:     map[string]float64{},
		LaneScores30d:    map[string]float64{},
		KeyEventCounts:   map[string]int{},
		Evidence:         []string{},
		UniqueVisitors7d: s.UniqueVisitors7d,
		LastEventAt:      s.LastEventAt,
	}
	for _, col := range []struct {
		raw  []byte
		dest interface{}
	}{
		{s.LaneScores7d, &v.LaneScores7d},
		{s.LaneScores30d, &v.LaneScores30d},
		{s.KeyEventCounts, &v.KeyEventCounts},
		{s.Evidence, &v.Evidence},
	} {
		if err := model.FromJSON(col.raw, col.dest); err != nil {
			return nil, fmt.Errorf("解析快照json列失败: %w", err)
		}
	}
	return v, nil
}
