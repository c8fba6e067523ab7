package registry

import (
	"context"
	"fmt"
	"time"

	"IntentEngine/internal/classifier"
	"IntentEngine/internal/model"

	"github.com/sirupsen/logrus"
)

const (
	classificationRegistryName = "classification"
	// DefaultClassificationTTL 采购分类规则缓存时间
	DefaultClassificationTTL = 5 * time.Minute
)

// ClassificationStore 加载采购分类规则所需的存储能力
type ClassificationStore interface {
	ListBlacklist(ctx context.Context) ([]*model.AgencyBlacklistEntry, error)
	ListSuppressionRules(ctx context.Context, onlyEnabled bool) ([]*model.SuppressionRule, error)
	ListProgramRules(ctx context.Context, onlyEnabled bool) ([]*model.ProgramRule, error)
}

// ClassificationRegistry 采购分类规则缓存
type ClassificationRegistry struct {
	store    ClassificationStore
	logger   *logrus.Logger
	observer Observer
	now      func() time.Time
	cache    *ttlCache[*classifier.ProgramRuleSet]
}

// ClassificationOption 可选项
type ClassificationOption func(*ClassificationRegistry)

// WithClassificationClock 注入时钟（测试用）
func WithClassificationClock(now func() time.Time) ClassificationOption {
	return func(r *ClassificationRegistry) { r.now = now }
}

// WithClassificationObserver 注入观测钩子
func WithClassificationObserver(o Observer) ClassificationOption {
	return func(r *ClassificationRegistry) { r.observer = o }
}

func NewClassificationRegistry(store ClassificationStore, ttl time.Duration, logger *logrus.Logger, opts ...ClassificationOption) *ClassificationRegistry {
	if ttl <= 0 {
		ttl = DefaultClassificationTTL
	}
	r := &ClassificationRegistry{store: store, logger: logger, now: time.Now, observer: noopObserver{}}
	for _, opt := range opts {
		opt(r)
	}
	r.cache = newTTLCache[*classifier.ProgramRuleSet](classificationRegistryName, ttl, r.now, r.observer, r.load)
	return r
}

// Current 当前生效的规则集
func (r *ClassificationRegistry) Current(ctx context.Context) (*classifier.ProgramRuleSet, error) {
	return r.cache.get(ctx)
}

func (r *ClassificationRegistry) Invalidate() {
	r.cache.invalidate()
}

func (r *ClassificationRegistry) load(ctx context.Context) (*classifier.ProgramRuleSet, error) {
	blacklist, err := r.store.ListBlacklist(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询机构黑名单失败: %w", err)
	}
	suppressions, err := r.store.ListSuppressionRules(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("查询抑制规则失败: %w", err)
	}
	positives, err := r.store.ListProgramRules(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("查询正向规则失败: %w", err)
	}

	bl := make([]model.AgencyBlacklistEntry, 0, len(blacklist))
	for _, b := range blacklist {
		bl = append(bl, *b)
	}
	sr := make([]model.SuppressionRule, 0, len(suppressions))
	for _, s := range suppressions {
		sr = append(sr, *s)
	}
	pr := make([]model.ProgramRule, 0, len(positives))
	for _, p := range positives {
		pr = append(pr, *p)
	}

	set := classifier.NewProgramRuleSet(bl, sr, pr, r.logger)
	if n := len(set.Malformed()); n > 0 {
		r.observer.MalformedRules(classificationRegistryName, n)
	}
	if r.logger != nil {
		r.logger.WithFields(logrus.Fields{
			"blacklist":    len(bl),
			"suppressions": len(sr),
			"positives":    len(pr),
		}).Info("采购分类规则已加载")
	}
	return set, nil
}
