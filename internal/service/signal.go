package service

import (
	"context"
	"fmt"
	"time"

	"IntentEngine/internal/model"
	"IntentEngine/internal/registry"
	"IntentEngine/internal/repository"
	"IntentEngine/internal/scoring"

	"github.com/sirupsen/logrus"
)

// 实时信号处理结果
const (
	TrackStored  = "stored"
	TrackSkipped = "skipped"
	TrackFailed  = "failed"
)

// TrackRequest 单条实时行为事件（HTTP 与 kafka 共用）
type TrackRequest struct {
	AccountKey        string    `json:"account_key"`
	Email             string    `json:"email"`
	EventName         string    `json:"event_name"`
	Path              string    `json:"path"`
	URL               string    `json:"url"`
	ContentType       string    `json:"content_type"`
	Lane              string    `json:"lane"`
	Topic             string    `json:"topic"`
	CTAID             string    `json:"cta_id"`
	DistinctVisitorID string    `json:"distinct_visitor_id"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// TrackResult 处理结果
type TrackResult struct {
	Outcome    string                      `json:"outcome"`
	AccountID  uint64                      `json:"account_id,omitempty"`
	SignalID   uint64                      `json:"signal_id,omitempty"`
	Snapshot   *model.DailyAccountSnapshot `json:"-"`
	Rescored   bool                        `json:"rescored"`
	SkipReason string                      `json:"skip_reason,omitempty"`
}

// TrackMetrics 可为 nil
type TrackMetrics interface {
	SignalTracked(outcome string)
}

// Rescorer 实时重算单个账号
type Rescorer interface {
	RecomputeOne(ctx context.Context, accountID uint64) (*model.DailyAccountSnapshot, error)
}

// SignalIngestService 实时信号入库并触发单账号重算
type SignalIngestService struct {
	scoring  ScoringProvider
	accounts repository.AccountRepository
	signals  repository.SignalRepository
	rescorer Rescorer
	metrics  TrackMetrics
	personal domainFilter
	now      func() time.Time
	logger   *logrus.Logger
}

func NewSignalIngestService(scoring ScoringProvider, accounts repository.AccountRepository, signals repository.SignalRepository,
	rescorer Rescorer, personalDomains []string, metrics TrackMetrics, logger *logrus.Logger) *SignalIngestService {
	return &SignalIngestService{
		scoring:  scoring,
		accounts: accounts,
		signals:  signals,
		rescorer: rescorer,
		metrics:  metrics,
		personal: newDomainFilter(personalDomains),
		now:      time.Now,
		logger:   logger,
	}
}

// Track 只有信号本身入库失败才返回错误；打分配置缺失或重算失败都记日志后吞掉
func (s *SignalIngestService) Track(ctx context.Context, req TrackRequest) (*TrackResult, error) {
	res, err := s.track(ctx, req)
	if s.metrics != nil {
		switch {
		case err != nil:
			s.metrics.SignalTracked(TrackFailed)
		case res != nil:
			s.metrics.SignalTracked(res.Outcome)
		}
	}
	return res, err
}

func (s *SignalIngestService) track(ctx context.Context, req TrackRequest) (*TrackResult, error) {
	if req.EventName == "" {
		return nil, fmt.Errorf("%w: event_name 不能为空", ErrInvalidInput)
	}
	key := req.AccountKey
	if key == "" {
		key = req.Email
	}
	domain := NormalizeAccountKey(key)
	if domain == "" {
		return nil, fmt.Errorf("%w: account_key 或 email 不能为空", ErrInvalidInput)
	}
	if s.personal.isPersonal(domain) {
		return &TrackResult{Outcome: TrackSkipped, SkipReason: "personal domain"}, nil
	}

	// 打分配置不可用时信号照样入库，按默认分类记，不做重算
	set, setErr := s.scoring.Current(ctx)
	if setErr != nil {
		s.logger.WithError(setErr).WithField("event", req.EventName).Warn("加载打分配置失败，信号按默认分类保存")
	}
	acc, _, err := s.accounts.FindOrCreateByDomain(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("查找或创建账号失败: %w", err)
	}

	path := req.Path
	if path == "" {
		path = req.URL
	}
	occurred := req.OccurredAt
	if occurred.IsZero() {
		occurred = s.now()
	}
	var c registry.ClassifiedEvent
	if setErr != nil {
		c = defaultClassification(req)
	} else {
		c = set.ClassifyEvent(req.EventName, path, req.ContentType, req.Lane, req.CTAID)
	}
	sig := &model.IntentSignal{
		AccountID:   acc.ID,
		SignalType:  c.Key,
		Topic:       req.Topic,
		ServiceLane: c.Lane,
		Weight:      c.Weight,
		VisitorID:   req.DistinctVisitorID,
		Path:        path,
		OccurredAt:  occurred,
	}
	if err := s.signals.Create(ctx, sig); err != nil {
		return nil, fmt.Errorf("保存信号失败: %w", err)
	}

	res := &TrackResult{Outcome: TrackStored, AccountID: acc.ID, SignalID: sig.ID}
	if setErr != nil {
		return res, nil
	}
	snap, err := s.rescorer.RecomputeOne(ctx, acc.ID)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"account_id": acc.ID,
			"signal":     c.Key,
		}).Warn("实时重算失败，信号已保存")
		return res, nil
	}
	res.Snapshot = snap
	res.Rescored = true
	return res, nil
}

// defaultClassification 没有打分配置时的分类：未给出的类型与赛道记为 other，权重取默认值
func defaultClassification(req TrackRequest) registry.ClassifiedEvent {
	contentType := req.ContentType
	if contentType == "" {
		contentType = scoring.ContentTypeOther
	}
	lane := req.Lane
	if lane == "" {
		lane = scoring.LaneOther
	}
	return registry.ClassifiedEvent{
		Key:         scoring.EventKey(req.EventName, contentType),
		ContentType: contentType,
		Lane:        lane,
		Weight:      scoring.WeightTable(nil).Resolve(req.EventName, contentType, req.CTAID),
	}
}
