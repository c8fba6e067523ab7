package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"IntentEngine/internal/classifier"
	"IntentEngine/internal/model"
	"IntentEngine/internal/scoring"

	"github.com/sirupsen/logrus"
)

// ErrNoActiveConfig 没有或有多条 status=active 的 ScoreConfig，打分任务必须在任何写入前中止
var ErrNoActiveConfig = errors.New("no active score config")

const (
	scoringRegistryName = "scoring"
	// DefaultScoringTTL 打分配置缓存时间
	DefaultScoringTTL = 60 * time.Second
)

// ScoringStore 加载打分配置所需的存储能力
type ScoringStore interface {
	ListActiveScoreConfigs(ctx context.Context) ([]*model.ScoreConfig, error)
	ListWeights(ctx context.Context, scoreConfigID uint64) ([]*model.WeightEntry, error)
	// ListEventRules 返回全局规则与该配置专属规则
	ListEventRules(ctx context.Context, scoreConfigID uint64) ([]*model.EventRule, error)
}

// ScoringSet 一次加载得到的完整打分配置，加载后只读
type ScoringSet struct {
	ConfigID   uint64
	ConfigName string
	Params     scoring.Params
	Weights    scoring.WeightTable
	Rules      *classifier.EventRuleSet
	Templates  map[string]string
	LoadedAt   time.Time
}

// ClassifiedEvent 经过规则分类并定权的单个事件
type ClassifiedEvent struct {
	Key         string
	ContentType string
	Lane        string
	Weight      float64
}

// ClassifyEvent 分类 + 定权。上游已给出的 content_type/lane 优先于规则结果，
// 规则的 weight_override 优先于权重表。
func (s *ScoringSet) ClassifyEvent(eventName, path, contentType, lane, ctaID string) ClassifiedEvent {
	class := s.Rules.Classify(classifier.PathFromURL(path), eventName)
	// 非 page_view 事件未命中规则时不拿兜底的 other 去查权重，demo_request:: 这类键才能精确命中；
	// page_view 一律带上分类结果，未命中时查 page_view:other:
	lookupType := contentType
	if lookupType == "" && (class.RuleID != 0 || eventName == scoring.EventPageView) {
		lookupType = class.ContentType
	}
	if contentType == "" {
		contentType = class.ContentType
	}
	if lane == "" {
		lane = class.Lane
	}
	weight := s.Weights.Resolve(eventName, lookupType, ctaID)
	if class.WeightOverride != nil {
		weight = *class.WeightOverride
	}
	return ClassifiedEvent{
		Key:         scoring.EventKey(eventName, contentType),
		ContentType: contentType,
		Lane:        lane,
		Weight:      weight,
	}
}

// ScoringRegistry 打分配置缓存
type ScoringRegistry struct {
	store    ScoringStore
	logger   *logrus.Logger
	observer Observer
	now      func() time.Time
	cache    *ttlCache[*ScoringSet]
}

// ScoringOption 可选项
type ScoringOption func(*ScoringRegistry)

// WithScoringClock 注入时钟（测试用）
func WithScoringClock(now func() time.Time) ScoringOption {
	return func(r *ScoringRegistry) { r.now = now }
}

// WithScoringObserver 注入观测钩子
func WithScoringObserver(o Observer) ScoringOption {
	return func(r *ScoringRegistry) { r.observer = o }
}

func NewScoringRegistry(store ScoringStore, ttl time.Duration, logger *logrus.Logger, opts ...ScoringOption) *ScoringRegistry {
	if ttl <= 0 {
		ttl = DefaultScoringTTL
	}
	r := &ScoringRegistry{store: store, logger: logger, now: time.Now, observer: noopObserver{}}
	for _, opt := range opts {
		opt(r)
	}
	r.cache = newTTLCache[*ScoringSet](scoringRegistryName, ttl, r.now, r.observer, r.load)
	return r
}

// Current 返回当前生效的打分配置；无唯一 active 配置时返回 ErrNoActiveConfig
func (r *ScoringRegistry) Current(ctx context.Context) (*ScoringSet, error) {
	return r.cache.get(ctx)
}

// Invalidate 配置写入后调用，下一次读取重新加载
func (r *ScoringRegistry) Invalidate() {
	r.cache.invalidate()
}

func (r *ScoringRegistry) load(ctx context.Context) (*ScoringSet, error) {
	configs, err := r.store.ListActiveScoreConfigs(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询active打分配置失败: %w", err)
	}
	if len(configs) != 1 {
		return nil, fmt.Errorf("%w: found %d", ErrNoActiveConfig, len(configs))
	}
	cfg := configs[0]

	weights, err := r.store.ListWeights(ctx, cfg.ID)
	if err != nil {
		return nil, fmt.Errorf("查询权重表失败: %w", err)
	}
	table := make(scoring.WeightTable, len(weights))
	for _, w := range weights {
		table[scoring.WeightKey{EventName: w.EventName, ContentType: w.ContentType, CTAID: w.CTAID}] = float64(w.Weight)
	}

	rules, err := r.store.ListEventRules(ctx, cfg.ID)
	if err != nil {
		return nil, fmt.Errorf("查询事件规则失败: %w", err)
	}
	plain := make([]model.EventRule, 0, len(rules))
	for _, rule := range rules {
		plain = append(plain, *rule)
	}
	ruleSet := classifier.NewEventRuleSet(plain, r.logger)
	if n := len(ruleSet.Malformed()); n > 0 {
		r.observer.MalformedRules(scoringRegistryName, n)
	}

	params := scoring.Params{
		LambdaDecay:       cfg.LambdaDecay,
		NormalizeK:        cfg.NormalizeK,
		ColdMax:           cfg.ColdMax,
		WarmMax:           cfg.WarmMax,
		SurgeSurgingMin:   cfg.SurgeSurgingMin,
		SurgeExplodingMin: cfg.SurgeExplodingMin,
	}
	if params.NormalizeK <= 0 {
		params.NormalizeK = scoring.DefaultNormalizeK
	}

	if r.logger != nil {
		r.logger.WithFields(logrus.Fields{
			"config_id": cfg.ID,
			"weights":   len(table),
			"rules":     ruleSet.Len(),
		}).Info("打分配置已加载")
	}
	return &ScoringSet{
		ConfigID:   cfg.ID,
		ConfigName: cfg.Name,
		Params:     params,
		Weights:    table,
		Rules:      ruleSet,
		Templates:  ruleSet.EvidenceTemplates(),
		LoadedAt:   r.now(),
	}, nil
}
