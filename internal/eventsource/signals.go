package eventsource

import (
	"context"
	"fmt"
	"time"

	"IntentEngine/internal/interfaces"
	"IntentEngine/internal/repository"
)

// SignalSource 二级事件源：本地 intent_signals 表，行已分类定权
type SignalSource struct {
	repo repository.SignalRepository
	now  func() time.Time
}

func NewSignalSource(repo repository.SignalRepository, now func() time.Time) *SignalSource {
	if now == nil {
		now = time.Now
	}
	return &SignalSource{repo: repo, now: now}
}

func (s *SignalSource) Name() string { return "secondary" }

func (s *SignalSource) FetchEvents(ctx context.Context, rangeDays int) ([]*interfaces.EventRow, error) {
	since := s.now().AddDate(0, 0, -rangeDays)
	signals, err := s.repo.ListSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("%w: 查询本地信号失败: %v", interfaces.ErrSourceUnavailable, err)
	}
	rows := make([]*interfaces.EventRow, 0, len(signals))
	for _, sig := range signals {
		w := sig.Weight
		rows = append(rows, &interfaces.EventRow{
			Date:              sig.OccurredAt.UTC().Format(dateLayout),
			AccountKey:        sig.Domain,
			EventName:         sig.SignalType,
			Lane:              sig.ServiceLane,
			DistinctVisitorID: sig.VisitorID,
			Path:              sig.Path,
			Timestamp:         sig.OccurredAt,
			Weight:            &w,
		})
	}
	return rows, nil
}
