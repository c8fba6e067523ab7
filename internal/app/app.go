// Package app 按配置组装仓储、缓存、事件源与各业务服务，供 HTTP 服务和 intentctl 共用
package app

import (
	"fmt"

	"IntentEngine/internal/config"
	"IntentEngine/internal/eventsource"
	"IntentEngine/internal/mq"
	"IntentEngine/internal/observability"
	"IntentEngine/internal/registry"
	"IntentEngine/internal/repository"
	"IntentEngine/internal/service"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// App 一次组装得到的全部服务
type App struct {
	Metrics        *observability.Metrics
	Scoring        *registry.ScoringRegistry
	Classification *registry.ClassificationRegistry
	Recompute      *service.IntentRecomputeService
	Signals        *service.SignalIngestService
	Programs       *service.ProgramClassificationService
	Accounts       *service.AccountQueryService
	Admin          *service.AdminConfigService

	publisher *mq.ScoredPublisher
	logger    *logrus.Logger
}

// New 组装服务。kafka.enabled 且 scoring.publish_scored 时推送打分结果
func New(cfg *config.Config, db *gorm.DB, logger *logrus.Logger) (*App, error) {
	metrics := observability.NewMetrics()

	scoreRepo := repository.NewScoreConfigRepository(db)
	programRepo := repository.NewProgramRuleRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)
	signalRepo := repository.NewSignalRepository(db)

	scoring := registry.NewScoringRegistry(scoreRepo, cfg.Scoring.RegistryTTL, logger,
		registry.WithScoringObserver(metrics))
	classification := registry.NewClassificationRegistry(programRepo, cfg.Scoring.ClassificationTTL, logger,
		registry.WithClassificationObserver(metrics))

	primary, err := eventsource.NewPrimary(&cfg.EventSource, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化主事件源失败: %w", err)
	}

	a := &App{
		Metrics:        metrics,
		Scoring:        scoring,
		Classification: classification,
		logger:         logger,
	}

	deps := service.RecomputeDeps{
		Scoring:         scoring,
		Primary:         primary,
		Secondary:       eventsource.NewSignalSource(signalRepo, nil),
		Accounts:        accountRepo,
		Snapshots:       snapshotRepo,
		Signals:         signalRepo,
		Runs:            repository.NewRunRepository(db),
		Metrics:         metrics,
		PersonalDomains: cfg.Scoring.PersonalDomains,
		RangeDays:       cfg.Scoring.DefaultRangeDays,
		RealtimeDays:    cfg.Scoring.RealtimeDays,
	}
	if cfg.Kafka.Enabled && cfg.Scoring.PublishScored && len(cfg.Kafka.Brokers) > 0 {
		a.publisher = mq.NewScoredPublisher(cfg.Kafka.Brokers, cfg.Kafka.ScoredTopic)
		deps.Publisher = a.publisher
		logger.WithField("topic", cfg.Kafka.ScoredTopic).Info("打分结果推送已开启")
	}

	a.Recompute = service.NewIntentRecomputeService(deps, logger)
	a.Signals = service.NewSignalIngestService(scoring, accountRepo, signalRepo, a.Recompute,
		cfg.Scoring.PersonalDomains, metrics, logger)
	a.Programs = service.NewProgramClassificationService(classification,
		repository.NewOpportunityRepository(db), metrics, logger)
	a.Accounts = service.NewAccountQueryService(accountRepo, snapshotRepo)
	a.Admin = service.NewAdminConfigService(scoreRepo, programRepo, scoring, classification, logger)
	return a, nil
}

// Close 释放 kafka writer
func (a *App) Close() {
	if a.publisher == nil {
		return
	}
	if err := a.publisher.Close(); err != nil {
		a.logger.WithError(err).Warn("关闭打分结果 writer 失败")
	}
}
