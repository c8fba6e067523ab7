package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"IntentEngine/internal/interfaces"
	"IntentEngine/internal/model"
	"IntentEngine/internal/mq"
	"IntentEngine/internal/registry"
	"IntentEngine/internal/repository"
	"IntentEngine/internal/scoring"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	defaultRangeDays = 30
	maxRangeDays     = 365
	dateLayout       = "2006-01-02"
)

// 二级事件源名称，写入 recompute_runs.source
const sourceLocal = "local"

// ScoringProvider 当前生效的打分配置
type ScoringProvider interface {
	Current(ctx context.Context) (*registry.ScoringSet, error)
}

// ScorePublisher 打分结果推送，可为 nil
type ScorePublisher interface {
	PublishScored(ctx context.Context, ev mq.ScoredEvent) error
}

// RecomputeMetrics 打分任务指标，可为 nil
type RecomputeMetrics interface {
	RunFinished(mode, state string)
	AccountScored(mode string, d time.Duration)
	SourceFallback()
}

type noopRecomputeMetrics struct{}

func (noopRecomputeMetrics) RunFinished(string, string)          {}
func (noopRecomputeMetrics) AccountScored(string, time.Duration) {}
func (noopRecomputeMetrics) SourceFallback()                     {}

// RecomputeDeps IntentRecomputeService 的依赖
type RecomputeDeps struct {
	Scoring         ScoringProvider
	Primary         interfaces.EventSource
	Secondary       interfaces.EventSource
	Accounts        repository.AccountRepository
	Snapshots       repository.SnapshotRepository
	Signals         repository.SignalRepository
	Runs            repository.RunRepository
	Publisher       ScorePublisher
	Metrics         RecomputeMetrics
	PersonalDomains []string
	RangeDays       int // 批量任务默认回溯天数
	RealtimeDays    int // 实时任务读取本地信号的天数
	Now             func() time.Time
}

// IntentRecomputeService 账号意向打分任务（批量 + 实时）
type IntentRecomputeService struct {
	scoring      ScoringProvider
	primary      interfaces.EventSource
	secondary    interfaces.EventSource
	accounts     repository.AccountRepository
	snapshots    repository.SnapshotRepository
	signals      repository.SignalRepository
	runs         repository.RunRepository
	publisher    ScorePublisher
	metrics      RecomputeMetrics
	personal     domainFilter
	rangeDays    int
	realtimeDays int
	locks        *keyedLocker
	now          func() time.Time
	logger       *logrus.Logger
}

func NewIntentRecomputeService(deps RecomputeDeps, logger *logrus.Logger) *IntentRecomputeService {
	s := &IntentRecomputeService{
		scoring:      deps.Scoring,
		primary:      deps.Primary,
		secondary:    deps.Secondary,
		accounts:     deps.Accounts,
		snapshots:    deps.Snapshots,
		signals:      deps.Signals,
		runs:         deps.Runs,
		publisher:    deps.Publisher,
		metrics:      deps.Metrics,
		personal:     newDomainFilter(deps.PersonalDomains),
		rangeDays:    deps.RangeDays,
		realtimeDays: deps.RealtimeDays,
		locks:        newKeyedLocker(),
		now:          deps.Now,
		logger:       logger,
	}
	if s.metrics == nil {
		s.metrics = noopRecomputeMetrics{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.rangeDays <= 0 {
		s.rangeDays = defaultRangeDays
	}
	if s.realtimeDays <= 0 {
		s.realtimeDays = defaultRangeDays
	}
	return s
}

// ClampRangeDays 回溯天数限制在 [1, 365]，0 或负数取默认值
func ClampRangeDays(days, def int) int {
	switch {
	case days <= 0:
		return def
	case days > maxRangeDays:
		return maxRangeDays
	}
	return days
}

// RecomputeAll 批量任务：拉取事件（主源失败回退本地信号）、按账号分组、逐个账号打分写快照。
// accountKeys 非空时只处理其中的账号。没有唯一 active 配置时在任何写入前中止。
func (s *IntentRecomputeService) RecomputeAll(ctx context.Context, rangeDays int, accountKeys []string) (*model.RecomputeRun, error) {
	now := s.now()
	rangeDays = ClampRangeDays(rangeDays, s.rangeDays)
	run := s.startRun(ctx, model.RunModeBatch, rangeDays, now)
	log := s.logger.WithFields(logrus.Fields{"run_id": run.RunUUID, "range_days": rangeDays})

	set, err := s.scoring.Current(ctx)
	if err != nil {
		s.abortRun(ctx, run, err)
		return run, fmt.Errorf("加载打分配置失败: %w", err)
	}

	rows, source, err := s.fetchRows(ctx, rangeDays, log)
	if err != nil {
		s.abortRun(ctx, run, err)
		return run, err
	}
	run.Source = source

	allow := make(map[string]struct{}, len(accountKeys))
	for _, k := range accountKeys {
		if k = NormalizeAccountKey(k); k != "" {
			allow[k] = struct{}{}
		}
	}

	grouped := make(map[string][]*interfaces.EventRow)
	skipped := make(map[string]struct{})
	for _, row := range rows {
		key := NormalizeAccountKey(row.AccountKey)
		if key == "" {
			continue
		}
		if len(allow) > 0 {
			if _, ok := allow[key]; !ok {
				continue
			}
		}
		if s.personal.isPersonal(key) {
			skipped[key] = struct{}{}
			continue
		}
		grouped[key] = append(grouped[key], row)
	}
	run.AccountsSkipped = len(skipped)

	keys := make([]string, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	log.WithFields(logrus.Fields{"rows": len(rows), "accounts": len(keys), "source": source}).Info("开始批量打分")

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			s.abortRun(ctx, run, err)
			return run, err
		}
		acc, created, err := s.accounts.FindOrCreateByDomain(ctx, key)
		if err != nil {
			run.AccountsFailed++
			log.WithError(err).WithField("domain", key).Warn("查找或创建账号失败，跳过")
			continue
		}
		if created {
			run.AccountsCreated++
			log.WithField("domain", key).Info("新账号已创建")
		}

		events := make([]scoring.Event, 0, len(grouped[key]))
		for _, row := range grouped[key] {
			events = append(events, eventFromRow(set, row))
		}
		if _, err := s.scoreAccount(ctx, acc, events, set, now, model.RunModeBatch); err != nil {
			run.AccountsFailed++
			log.WithError(err).WithField("account_id", acc.ID).Warn("账号打分失败，跳过")
			continue
		}
		run.AccountsScored++
	}

	s.finishRun(ctx, run)
	log.WithFields(logrus.Fields{
		"scored":  run.AccountsScored,
		"skipped": run.AccountsSkipped,
		"created": run.AccountsCreated,
		"failed":  run.AccountsFailed,
	}).Info("批量打分完成")
	return run, nil
}

// GetRun 按 run_uuid 查询任务记录
func (s *IntentRecomputeService) GetRun(ctx context.Context, runUUID string) (*model.RecomputeRun, error) {
	return s.runs.GetByUUID(ctx, runUUID)
}

// RecomputeOne 实时任务：用本地信号为单个账号重算当天快照
func (s *IntentRecomputeService) RecomputeOne(ctx context.Context, accountID uint64) (*model.DailyAccountSnapshot, error) {
	now := s.now()
	run := s.startRun(ctx, model.RunModeRealtime, s.realtimeDays, now)
	run.Source = sourceLocal

	set, err := s.scoring.Current(ctx)
	if err != nil {
		s.abortRun(ctx, run, err)
		return nil, fmt.Errorf("加载打分配置失败: %w", err)
	}

	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = fmt.Errorf("%w: %d", ErrAccountNotFound, accountID)
		}
		s.abortRun(ctx, run, err)
		return nil, err
	}

	since := now.AddDate(0, 0, -s.realtimeDays)
	signals, err := s.signals.ListByAccountSince(ctx, accountID, since)
	if err != nil {
		err = fmt.Errorf("查询账号信号失败: %w", err)
		s.abortRun(ctx, run, err)
		return nil, err
	}
	events := make([]scoring.Event, 0, len(signals))
	for _, sig := range signals {
		events = append(events, scoring.Event{
			Key:        sig.SignalType,
			Lane:       sig.ServiceLane,
			Weight:     sig.Weight,
			VisitorID:  sig.VisitorID,
			OccurredAt: sig.OccurredAt,
		})
	}

	snap, err := s.scoreAccount(ctx, acc, events, set, now, model.RunModeRealtime)
	if err != nil {
		run.AccountsFailed = 1
		s.abortRun(ctx, run, err)
		return nil, err
	}
	run.AccountsScored = 1
	s.finishRun(ctx, run)
	return snap, nil
}

// fetchRows 主事件源失败时回退到二级事件源
func (s *IntentRecomputeService) fetchRows(ctx context.Context, rangeDays int, log *logrus.Entry) ([]*interfaces.EventRow, string, error) {
	if s.primary != nil {
		rows, err := s.primary.FetchEvents(ctx, rangeDays)
		if err == nil {
			return rows, s.primary.Name(), nil
		}
		log.WithError(err).Warn("主事件源不可用，回退到本地信号")
		s.metrics.SourceFallback()
	}
	if s.secondary == nil {
		return nil, "", fmt.Errorf("%w: 未配置二级事件源", interfaces.ErrSourceUnavailable)
	}
	rows, err := s.secondary.FetchEvents(ctx, rangeDays)
	if err != nil {
		return nil, "", fmt.Errorf("二级事件源拉取失败: %w", err)
	}
	return rows, s.secondary.Name(), nil
}

// eventFromRow 本地信号已定权，直接使用；主事件源的行走规则分类与权重表
func eventFromRow(set *registry.ScoringSet, row *interfaces.EventRow) scoring.Event {
	if row.Weight != nil {
		return scoring.Event{
			Key:        row.EventName,
			Lane:       row.Lane,
			Weight:     *row.Weight,
			VisitorID:  row.DistinctVisitorID,
			OccurredAt: row.Timestamp,
		}
	}
	c := set.ClassifyEvent(row.EventName, row.Path, row.ContentType, row.Lane, row.CTAID)
	return scoring.Event{
		Key:        c.Key,
		Lane:       c.Lane,
		Weight:     c.Weight,
		VisitorID:  row.DistinctVisitorID,
		OccurredAt: row.Timestamp,
	}
}

// scoreAccount 计算并写入 (account, 当天) 快照，同一 key 进程内串行
func (s *IntentRecomputeService) scoreAccount(ctx context.Context, acc *model.Account, events []scoring.Event,
	set *registry.ScoringSet, now time.Time, mode string) (*model.DailyAccountSnapshot, error) {
	start := time.Now()
	date := repository.SnapshotDate(now)
	unlock := s.locks.Lock(fmt.Sprintf("%d:%s", acc.ID, date.Format(dateLayout)))
	defer unlock()

	previous, err := s.snapshots.Get(ctx, acc.ID, date)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("读取当天快照失败: %w", err)
	}

	res := scoring.Compute(events, set.Params, set.Templates, now)
	snap := &model.DailyAccountSnapshot{
		AccountID:        acc.ID,
		SnapshotDate:     date,
		RawScore7d:       res.Raw7d,
		RawScorePrev7d:   res.RawPrev7d,
		RawScore30d:      res.Raw30d,
		IntentScore:      res.IntentScore,
		IntentStage:      string(res.Stage),
		SurgeRatio:       res.SurgeRatio,
		SurgeLevel:       string(res.SurgeLevel),
		TopLane:          res.TopLane,
		LaneScores7d:     model.ToJSON(res.Lanes7d),
		LaneScores30d:    model.ToJSON(res.Lanes30d),
		KeyEventCounts:   model.ToJSON(res.KeyEventCounts),
		Evidence:         model.ToJSON(res.Evidence),
		UniqueVisitors7d: res.UniqueVisitors7d,
		LastEventAt:      res.LastEventAt,
	}
	if err := s.snapshots.Upsert(ctx, snap); err != nil {
		return nil, fmt.Errorf("写入快照失败: %w", err)
	}

	lastSeen := res.LastEventAt
	if lastSeen == nil {
		lastSeen = acc.LastSeenAt
	}
	if err := s.accounts.UpdateProjection(ctx, acc.ID, repository.AccountProjection{
		IntentScore: res.IntentScore,
		IntentStage: string(res.Stage),
		SurgeLevel:  string(res.SurgeLevel),
		SurgeRatio:  res.SurgeRatio,
		TopLane:     res.TopLane,
		WhyHot:      res.WhyHot,
		LastSeenAt:  lastSeen,
		ScoredAt:    now,
	}); err != nil {
		return nil, fmt.Errorf("更新账号投影失败: %w", err)
	}

	if previous != nil && previous.IntentStage != snap.IntentStage {
		s.logger.WithFields(logrus.Fields{
			"account_id": acc.ID,
			"from":       previous.IntentStage,
			"to":         snap.IntentStage,
			"score":      snap.IntentScore,
		}).Info("账号意向阶段变化")
	}
	s.publish(ctx, acc, snap, mode, now)
	s.metrics.AccountScored(mode, time.Since(start))
	return snap, nil
}

func (s *IntentRecomputeService) publish(ctx context.Context, acc *model.Account, snap *model.DailyAccountSnapshot, mode string, now time.Time) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishScored(ctx, mq.ScoredEvent{
		AccountID:   acc.ID,
		Domain:      acc.Domain,
		Date:        snap.SnapshotDate.Format(dateLayout),
		IntentScore: snap.IntentScore,
		IntentStage: snap.IntentStage,
		SurgeLevel:  snap.SurgeLevel,
		TopLane:     snap.TopLane,
		Mode:        mode,
		ScoredAt:    now.UTC(),
	})
	if err != nil {
		s.logger.WithError(err).WithField("account_id", acc.ID).Warn("推送打分结果失败")
	}
}

func (s *IntentRecomputeService) startRun(ctx context.Context, mode string, rangeDays int, now time.Time) *model.RecomputeRun {
	run := &model.RecomputeRun{
		RunUUID:   uuid.NewString(),
		Mode:      mode,
		State:     model.RunStateRunning,
		RangeDays: rangeDays,
		StartedAt: now,
	}
	if s.runs != nil {
		if err := s.runs.Create(ctx, run); err != nil {
			s.logger.WithError(err).WithField("run_id", run.RunUUID).Warn("写入任务记录失败")
		}
	}
	return run
}

func (s *IntentRecomputeService) finishRun(ctx context.Context, run *model.RecomputeRun) {
	s.closeRun(ctx, run, model.RunStateDone, nil)
}

func (s *IntentRecomputeService) abortRun(ctx context.Context, run *model.RecomputeRun, cause error) {
	s.logger.WithError(cause).WithFields(logrus.Fields{"run_id": run.RunUUID, "mode": run.Mode}).Error("打分任务中止")
	s.closeRun(ctx, run, model.RunStateAborted, cause)
}

func (s *IntentRecomputeService) closeRun(ctx context.Context, run *model.RecomputeRun, state string, cause error) {
	finished := s.now()
	run.State = state
	run.FinishedAt = &finished
	if cause != nil {
		msg := cause.Error()
		run.Error = &msg
	}
	s.metrics.RunFinished(run.Mode, state)
	if s.runs == nil || run.ID == 0 {
		return
	}
	// 任务被取消时 ctx 已失效，任务记录仍要落库
	if err := s.runs.Save(context.WithoutCancel(ctx), run); err != nil {
		s.logger.WithError(err).WithField("run_id", run.RunUUID).Warn("更新任务记录失败")
	}
}
