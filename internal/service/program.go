package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"IntentEngine/internal/classifier"
	"IntentEngine/internal/model"
	"IntentEngine/internal/repository"

	"github.com/sirupsen/logrus"
)

const reclassifyBatchSize = 500

// ClassificationProvider 当前生效的采购分类规则
type ClassificationProvider interface {
	Current(ctx context.Context) (*classifier.ProgramRuleSet, error)
}

// ClassificationMetrics 可为 nil
type ClassificationMetrics interface {
	Classified(outcome string)
}

// OpportunityInput 外部采购机会
type OpportunityInput struct {
	Source      string     `json:"source"`
	ExternalID  string     `json:"external_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Agency      string     `json:"agency"`
	NAICS       string     `json:"naics"`
	PostedAt    *time.Time `json:"posted_at"`
}

func (in OpportunityInput) record() classifier.Record {
	return classifier.Record{Title: in.Title, Description: in.Description, Agency: in.Agency, NAICS: in.NAICS}
}

// ProgramClassificationService 采购机会分类
type ProgramClassificationService struct {
	rules   ClassificationProvider
	repo    repository.OpportunityRepository
	metrics ClassificationMetrics
	now     func() time.Time
	logger  *logrus.Logger
}

func NewProgramClassificationService(rules ClassificationProvider, repo repository.OpportunityRepository,
	metrics ClassificationMetrics, logger *logrus.Logger) *ProgramClassificationService {
	return &ProgramClassificationService{rules: rules, repo: repo, metrics: metrics, now: time.Now, logger: logger}
}

// Classify 只分类不落库
func (s *ProgramClassificationService) Classify(ctx context.Context, rec classifier.Record) (classifier.ClassificationResult, error) {
	set, err := s.rules.Current(ctx)
	if err != nil {
		return classifier.ClassificationResult{}, fmt.Errorf("加载分类规则失败: %w", err)
	}
	res := set.Classify(rec)
	if s.metrics != nil {
		s.metrics.Classified(res.Outcome())
	}
	return res, nil
}

// ClassifyAndStore 分类后按 (source, external_id) 写入
func (s *ProgramClassificationService) ClassifyAndStore(ctx context.Context, in OpportunityInput) (*model.Opportunity, error) {
	in.Source = strings.TrimSpace(in.Source)
	in.ExternalID = strings.TrimSpace(in.ExternalID)
	if in.Source == "" || in.ExternalID == "" || strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: source、external_id、title 不能为空", ErrInvalidInput)
	}
	res, err := s.Classify(ctx, in.record())
	if err != nil {
		return nil, err
	}
	opp := &model.Opportunity{
		Source:      in.Source,
		ExternalID:  in.ExternalID,
		Title:       in.Title,
		Description: in.Description,
		Agency:      in.Agency,
		NAICS:       in.NAICS,
		PostedAt:    in.PostedAt,
	}
	applyClassification(opp, res, s.now())
	if err := s.repo.Upsert(ctx, opp); err != nil {
		return nil, fmt.Errorf("保存采购机会失败: %w", err)
	}
	return opp, nil
}

// ReclassifyAll 规则变更后重跑全部已入库的采购机会，返回处理条数
func (s *ProgramClassificationService) ReclassifyAll(ctx context.Context) (int, error) {
	set, err := s.rules.Current(ctx)
	if err != nil {
		return 0, fmt.Errorf("加载分类规则失败: %w", err)
	}
	var afterID uint64
	total := 0
	for {
		batch, err := s.repo.ListBatch(ctx, afterID, reclassifyBatchSize)
		if err != nil {
			return total, fmt.Errorf("读取采购机会失败: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		now := s.now()
		for _, opp := range batch {
			afterID = opp.ID
			res := set.Classify(classifier.Record{Title: opp.Title, Description: opp.Description, Agency: opp.Agency, NAICS: opp.NAICS})
			if s.metrics != nil {
				s.metrics.Classified(res.Outcome())
			}
			applyClassification(opp, res, now)
			if err := s.repo.Upsert(ctx, opp); err != nil {
				s.logger.WithError(err).WithField("opportunity_id", opp.ID).Warn("重新分类写入失败，跳过")
				continue
			}
			total++
		}
	}
	s.logger.WithField("count", total).Info("采购机会重新分类完成")
	return total, nil
}

// List 分页查询
func (s *ProgramClassificationService) List(ctx context.Context, filter repository.OpportunityFilter, page, pageSize int) ([]*model.Opportunity, int64, error) {
	return s.repo.List(ctx, filter, page, pageSize)
}

func applyClassification(opp *model.Opportunity, res classifier.ClassificationResult, now time.Time) {
	opp.ServiceLane = res.ServiceLane
	opp.Topic = res.Topic
	opp.RelevanceScore = res.RelevanceScore
	opp.MatchConfidence = res.MatchConfidence
	opp.MatchReasons = model.ToJSON(res.MatchReasons)
	opp.Suppressed = res.Suppressed
	opp.SuppressedReason = res.SuppressedReason
	opp.ClassifiedAt = &now
}
