package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"IntentEngine/internal/classifier"
	"IntentEngine/internal/model"
	"IntentEngine/internal/repository"
	"IntentEngine/internal/scoring"

	"github.com/sirupsen/logrus"
)

// Invalidator 配置缓存失效
type Invalidator interface {
	Invalidate()
}

// AdminConfigService 打分配置与分类规则的管理入口，所有写操作成功后使对应缓存失效
type AdminConfigService struct {
	scoringRepo    repository.ScoreConfigRepository
	programRepo    repository.ProgramRuleRepository
	scoringCache   Invalidator
	classification Invalidator
	logger         *logrus.Logger
}

func NewAdminConfigService(scoringRepo repository.ScoreConfigRepository, programRepo repository.ProgramRuleRepository,
	scoringCache, classification Invalidator, logger *logrus.Logger) *AdminConfigService {
	return &AdminConfigService{
		scoringRepo:    scoringRepo,
		programRepo:    programRepo,
		scoringCache:   scoringCache,
		classification: classification,
		logger:         logger,
	}
}

// ValidateScoreConfig 参数约束：λ≥0、k>0、0≤cold_max<warm_max≤100、0<surging<exploding
func ValidateScoreConfig(cfg *model.ScoreConfig) error {
	switch {
	case strings.TrimSpace(cfg.Name) == "":
		return fmt.Errorf("%w: name 不能为空", ErrInvalidScoreConfig)
	case cfg.LambdaDecay < 0:
		return fmt.Errorf("%w: lambda_decay 不能为负", ErrInvalidScoreConfig)
	case cfg.NormalizeK <= 0:
		return fmt.Errorf("%w: normalize_k 必须大于0", ErrInvalidScoreConfig)
	case cfg.ColdMax < 0 || cfg.WarmMax > 100 || cfg.ColdMax >= cfg.WarmMax:
		return fmt.Errorf("%w: 需满足 0 <= cold_max < warm_max <= 100", ErrInvalidScoreConfig)
	case cfg.SurgeSurgingMin <= 0 || cfg.SurgeSurgingMin >= cfg.SurgeExplodingMin:
		return fmt.Errorf("%w: 需满足 0 < surge_surging_min < surge_exploding_min", ErrInvalidScoreConfig)
	}
	return nil
}

func (s *AdminConfigService) ListScoreConfigs(ctx context.Context) ([]*model.ScoreConfig, error) {
	return s.scoringRepo.ListScoreConfigs(ctx)
}

func (s *AdminConfigService) GetScoreConfig(ctx context.Context, id uint64) (*model.ScoreConfig, error) {
	return s.scoringRepo.GetScoreConfig(ctx, id)
}

// CreateScoreConfig 新配置总是 draft，需显式激活
func (s *AdminConfigService) CreateScoreConfig(ctx context.Context, cfg *model.ScoreConfig) error {
	if err := ValidateScoreConfig(cfg); err != nil {
		return err
	}
	cfg.ID = 0
	cfg.Status = model.ScoreConfigDraft
	return s.scoringRepo.CreateScoreConfig(ctx, cfg)
}

func (s *AdminConfigService) UpdateScoreConfig(ctx context.Context, cfg *model.ScoreConfig) error {
	if err := ValidateScoreConfig(cfg); err != nil {
		return err
	}
	if err := s.scoringRepo.UpdateScoreConfig(ctx, cfg); err != nil {
		return err
	}
	s.scoringCache.Invalidate()
	return nil
}

func (s *AdminConfigService) ActivateScoreConfig(ctx context.Context, id uint64) error {
	if err := s.scoringRepo.ActivateScoreConfig(ctx, id); err != nil {
		return err
	}
	s.scoringCache.Invalidate()
	s.logger.WithField("config_id", id).Info("打分配置已激活")
	return nil
}

func (s *AdminConfigService) ListWeights(ctx context.Context, scoreConfigID uint64) ([]*model.WeightEntry, error) {
	return s.scoringRepo.ListWeights(ctx, scoreConfigID)
}

// UpsertWeight wireKey 形如 "page_view:pricing:"
func (s *AdminConfigService) UpsertWeight(ctx context.Context, scoreConfigID uint64, wireKey string, weight int) (*model.WeightEntry, error) {
	key, err := scoring.ParseWeightKey(wireKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if _, err := s.scoringRepo.GetScoreConfig(ctx, scoreConfigID); err != nil {
		return nil, err
	}
	entry := &model.WeightEntry{
		ScoreConfigID: scoreConfigID,
		EventName:     key.EventName,
		ContentType:   key.ContentType,
		CTAID:         key.CTAID,
		Weight:        weight,
	}
	if err := s.scoringRepo.UpsertWeight(ctx, entry); err != nil {
		return nil, err
	}
	s.scoringCache.Invalidate()
	return entry, nil
}

func (s *AdminConfigService) DeleteWeight(ctx context.Context, scoreConfigID uint64, wireKey string) error {
	key, err := scoring.ParseWeightKey(wireKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.scoringRepo.DeleteWeight(ctx, scoreConfigID, key.EventName, key.ContentType, key.CTAID); err != nil {
		return err
	}
	s.scoringCache.Invalidate()
	return nil
}

// validateEventRule 写入时拒绝读取时会被当作不命中的规则
func validateEventRule(rule *model.EventRule) error {
	if strings.TrimSpace(rule.EventName) == "" {
		return fmt.Errorf("%w: event_name 不能为空", ErrInvalidRule)
	}
	switch rule.MatchType {
	case classifier.MatchPathPrefix, classifier.MatchContains, classifier.MatchEquals:
	case classifier.MatchPathRegex:
		if _, err := regexp.Compile("(?i)" + rule.MatchValue); err != nil {
			return fmt.Errorf("%w: path_regex 无法编译: %v", ErrInvalidRule, err)
		}
	default:
		return fmt.Errorf("%w: 未知 match_type %q", ErrInvalidRule, rule.MatchType)
	}
	if rule.ContentType == "" {
		rule.ContentType = scoring.ContentTypeOther
	}
	if rule.Lane == "" {
		rule.Lane = scoring.LaneOther
	}
	return nil
}

func (s *AdminConfigService) ListEventRules(ctx context.Context) ([]*model.EventRule, error) {
	return s.scoringRepo.ListAllEventRules(ctx)
}

func (s *AdminConfigService) CreateEventRule(ctx context.Context, rule *model.EventRule) error {
	if err := validateEventRule(rule); err != nil {
		return err
	}
	rule.ID = 0
	if err := s.scoringRepo.CreateEventRule(ctx, rule); err != nil {
		return err
	}
	s.scoringCache.Invalidate()
	return nil
}

func (s *AdminConfigService) UpdateEventRule(ctx context.Context, rule *model.EventRule) error {
	if err := validateEventRule(rule); err != nil {
		return err
	}
	if err := s.scoringRepo.UpdateEventRule(ctx, rule); err != nil {
		return err
	}
	s.scoringCache.Invalidate()
	return nil
}

func (s *AdminConfigService) DeleteEventRule(ctx context.Context, id uint64) error {
	if err := s.scoringRepo.DeleteEventRule(ctx, id); err != nil {
		return err
	}
	s.scoringCache.Invalidate()
	return nil
}

// ReorderEventRules ids 的顺序即新的生效顺序，priority 重排为 10,20,30...
func (s *AdminConfigService) ReorderEventRules(ctx context.Context, ids []uint64) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: ids 不能为空", ErrInvalidInput)
	}
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: id %d 重复", ErrInvalidInput, id)
		}
		seen[id] = struct{}{}
	}
	if err := s.scoringRepo.ReorderEventRules(ctx, ids); err != nil {
		return err
	}
	s.scoringCache.Invalidate()
	return nil
}

func validateTextRule(field, matchType, pattern string) error {
	if strings.TrimSpace(pattern) == "" {
		return fmt.Errorf("%w: pattern 不能为空", ErrInvalidRule)
	}
	switch field {
	case "", classifier.FieldTitle, classifier.FieldDescription, classifier.FieldAgency, classifier.FieldNAICS, classifier.FieldAny:
	default:
		return fmt.Errorf("%w: 未知 match_field %q", ErrInvalidRule, field)
	}
	switch matchType {
	case "", classifier.ProgramMatchContains, classifier.ProgramMatchEquals, classifier.ProgramMatchPrefix:
	case classifier.ProgramMatchRegex:
		if _, err := regexp.Compile("(?i)" + pattern); err != nil {
			return fmt.Errorf("%w: regex 无法编译: %v", ErrInvalidRule, err)
		}
	default:
		return fmt.Errorf("%w: 未知 match_type %q", ErrInvalidRule, matchType)
	}
	return nil
}

func (s *AdminConfigService) ListProgramRules(ctx context.Context) ([]*model.ProgramRule, error) {
	return s.programRepo.ListProgramRules(ctx, false)
}

func (s *AdminConfigService) SaveProgramRule(ctx context.Context, rule *model.ProgramRule) error {
	if strings.TrimSpace(rule.Label) == "" {
		return fmt.Errorf("%w: label 不能为空", ErrInvalidRule)
	}
	if err := validateTextRule(rule.MatchField, rule.MatchType, rule.Pattern); err != nil {
		return err
	}
	if err := s.programRepo.SaveProgramRule(ctx, rule); err != nil {
		return err
	}
	s.classification.Invalidate()
	return nil
}

func (s *AdminConfigService) DeleteProgramRule(ctx context.Context, id uint64) error {
	if err := s.programRepo.DeleteProgramRule(ctx, id); err != nil {
		return err
	}
	s.classification.Invalidate()
	return nil
}

func (s *AdminConfigService) ListSuppressionRules(ctx context.Context) ([]*model.SuppressionRule, error) {
	return s.programRepo.ListSuppressionRules(ctx, false)
}

func (s *AdminConfigService) SaveSuppressionRule(ctx context.Context, rule *model.SuppressionRule) error {
	if strings.TrimSpace(rule.Label) == "" {
		return fmt.Errorf("%w: label 不能为空", ErrInvalidRule)
	}
	if err := validateTextRule(rule.MatchField, rule.MatchType, rule.Pattern); err != nil {
		return err
	}
	if err := s.programRepo.SaveSuppressionRule(ctx, rule); err != nil {
		return err
	}
	s.classification.Invalidate()
	return nil
}

func (s *AdminConfigService) DeleteSuppressionRule(ctx context.Context, id uint64) error {
	if err := s.programRepo.DeleteSuppressionRule(ctx, id); err != nil {
		return err
	}
	s.classification.Invalidate()
	return nil
}

func (s *AdminConfigService) ListBlacklist(ctx context.Context) ([]*model.AgencyBlacklistEntry, error) {
	return s.programRepo.ListBlacklist(ctx)
}

func (s *AdminConfigService) AddBlacklistEntry(ctx context.Context, e *model.AgencyBlacklistEntry) error {
	e.Pattern = strings.TrimSpace(e.Pattern)
	if e.Pattern == "" {
		return fmt.Errorf("%w: pattern 不能为空", ErrInvalidRule)
	}
	if err := s.programRepo.CreateBlacklistEntry(ctx, e); err != nil {
		return err
	}
	s.classification.Invalidate()
	return nil
}

func (s *AdminConfigService) DeleteBlacklistEntry(ctx context.Context, id uint64) error {
	if err := s.programRepo.DeleteBlacklistEntry(ctx, id); err != nil {
		return err
	}
	s.classification.Invalidate()
	return nil
}
