package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"IntentEngine/internal/classifier"
	"IntentEngine/internal/interfaces"
	"IntentEngine/internal/model"
	"IntentEngine/internal/mq"
	"IntentEngine/internal/registry"
	"IntentEngine/internal/repository"
	"IntentEngine/internal/scoring"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func daysAgo(d float64) time.Time {
	return testNow.Add(-time.Duration(d * 24 * float64(time.Hour)))
}

func testScoringSet() *registry.ScoringSet {
	rules := []model.EventRule{
		{ID: 1, Priority: 10, Enabled: true, EventName: "page_view", MatchType: classifier.MatchPathPrefix, MatchValue: "/pricing", ContentType: "pricing", Lane: "sales", EvidenceTemplate: "Viewed pricing {count} times"},
		{ID: 2, Priority: 20, Enabled: true, EventName: "page_view", MatchType: classifier.MatchPathPrefix, MatchValue: "/docs", ContentType: "docs", Lane: "engineering"},
	}
	set := classifier.NewEventRuleSet(rules, nil)
	return &registry.ScoringSet{
		ConfigID: 1,
		Params:   scoring.DefaultParams(),
		Weights: scoring.WeightTable{
			{EventName: "page_view", ContentType: "pricing"}: 8,
			{EventName: "page_view", ContentType: "other"}:   1,
			{EventName: "demo_request"}:                      20,
		},
		Rules:     set,
		Templates: set.EvidenceTemplates(),
	}
}

type fakeScoring struct {
	set *registry.ScoringSet
	err error
}

func (f *fakeScoring) Current(ctx context.Context) (*registry.ScoringSet, error) {
	return f.set, f.err
}

type fakeSource struct {
	name  string
	rows  []*interfaces.EventRow
	err   error
	calls int32
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) FetchEvents(ctx context.Context, rangeDays int) ([]*interfaces.EventRow, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.rows, f.err
}

type fakeAccounts struct {
	mu          sync.Mutex
	nextID      uint64
	byID        map[uint64]*model.Account
	projections map[uint64]repository.AccountProjection
}

func newFakeAccounts(domains ...string) *fakeAccounts {
	f := &fakeAccounts{byID: map[uint64]*model.Account{}, projections: map[uint64]repository.AccountProjection{}}
	for _, d := range domains {
		f.nextID++
		f.byID[f.nextID] = &model.Account{ID: f.nextID, Domain: d}
	}
	return f
}

func (f *fakeAccounts) GetByID(ctx context.Context, id uint64) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *acc
	return &cp, nil
}

func (f *fakeAccounts) GetByDomain(ctx context.Context, domain string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, acc := range f.byID {
		if acc.Domain == domain {
			cp := *acc
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeAccounts) FindOrCreateByDomain(ctx context.Context, domain string) (*model.Account, bool, error) {
	if acc, err := f.GetByDomain(ctx, domain); err == nil {
		return acc, false, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	acc := &model.Account{ID: f.nextID, Domain: domain}
	f.byID[acc.ID] = acc
	cp := *acc
	return &cp, true, nil
}

func (f *fakeAccounts) UpdateProjection(ctx context.Context, id uint64, p repository.AccountProjection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projections[id] = p
	if acc, ok := f.byID[id]; ok {
		acc.IntentScore = p.IntentScore
		acc.IntentStage = p.IntentStage
		acc.SurgeLevel = p.SurgeLevel
		acc.SurgeRatio = p.SurgeRatio
		acc.TopLane = p.TopLane
		acc.WhyHot = model.ToJSON(p.WhyHot)
		acc.LastSeenAt = p.LastSeenAt
		scored := p.ScoredAt
		acc.ScoredAt = &scored
	}
	return nil
}

func (f *fakeAccounts) ListAccounts(ctx context.Context, stage string, page, pageSize int) ([]*model.Account, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var list []*model.Account
	for _, acc := range f.byID {
		list = append(list, acc)
	}
	return list, int64(len(list)), nil
}

func (f *fakeAccounts) domainID(domain string) uint64 {
	acc, err := f.GetByDomain(context.Background(), domain)
	if err != nil {
		return 0
	}
	return acc.ID
}

// fakeSnapshots Upsert 期间短暂停顿，并记录是否有同 key 的写入重叠
type fakeSnapshots struct {
	mu       sync.Mutex
	rows     map[string]*model.DailyAccountSnapshot
	upserts  int
	inFlight map[uint64]int
	overlap  bool
	delay    time.Duration
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{rows: map[string]*model.DailyAccountSnapshot{}, inFlight: map[uint64]int{}}
}

func snapKey(accountID uint64, date time.Time) string {
	return fmt.Sprintf("%d:%s", accountID, repository.SnapshotDate(date).Format(dateLayout))
}

func (f *fakeSnapshots) Get(ctx context.Context, accountID uint64, date time.Time) (*model.DailyAccountSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.rows[snapKey(accountID, date)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSnapshots) Upsert(ctx context.Context, s *model.DailyAccountSnapshot) error {
	f.mu.Lock()
	f.inFlight[s.AccountID]++
	if f.inFlight[s.AccountID] > 1 {
		f.overlap = true
	}
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight[s.AccountID]--
	f.upserts++
	cp := *s
	f.rows[snapKey(s.AccountID, s.SnapshotDate)] = &cp
	return nil
}

func (f *fakeSnapshots) Latest(ctx context.Context, accountID uint64) (*model.DailyAccountSnapshot, error) {
	list, _ := f.ListSince(ctx, accountID, time.Time{})
	if len(list) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return list[len(list)-1], nil
}

func (f *fakeSnapshots) ListSince(ctx context.Context, accountID uint64, since time.Time) ([]*model.DailyAccountSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var list []*model.DailyAccountSnapshot
	for _, s := range f.rows {
		if s.AccountID == accountID && !s.SnapshotDate.Before(repository.SnapshotDate(since)) {
			cp := *s
			list = append(list, &cp)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].SnapshotDate.Before(list[j].SnapshotDate) })
	return list, nil
}

func (f *fakeSnapshots) get(accountID uint64) *model.DailyAccountSnapshot {
	s, _ := f.Get(context.Background(), accountID, testNow)
	return s
}

type fakeSignals struct {
	mu      sync.Mutex
	nextID  uint64
	signals []*model.IntentSignal
	err     error
}

func (f *fakeSignals) Create(ctx context.Context, s *model.IntentSignal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.nextID++
	s.ID = f.nextID
	cp := *s
	f.signals = append(f.signals, &cp)
	return nil
}

func (f *fakeSignals) ListByAccountSince(ctx context.Context, accountID uint64, since time.Time) ([]*model.IntentSignal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.IntentSignal
	for _, s := range f.signals {
		if s.AccountID == accountID && !s.OccurredAt.Before(since) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeSignals) ListSince(ctx context.Context, since time.Time) ([]*repository.SignalWithDomain, error) {
	return nil, nil
}

type fakeRuns struct {
	mu     sync.Mutex
	nextID uint64
	runs   map[uint64]model.RecomputeRun
}

func newFakeRuns() *fakeRuns { return &fakeRuns{runs: map[uint64]model.RecomputeRun{}} }

func (f *fakeRuns) Create(ctx context.Context, run *model.RecomputeRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	run.ID = f.nextID
	f.runs[run.ID] = *run
	return nil
}

func (f *fakeRuns) Save(ctx context.Context, run *model.RecomputeRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[run.ID] = *run
	return nil
}

func (f *fakeRuns) GetByUUID(ctx context.Context, runUUID string) (*model.RecomputeRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.runs {
		if r.RunUUID == runUUID {
			cp := r
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type fakePublisher struct {
	mu     sync.Mutex
	events []mq.ScoredEvent
}

func (f *fakePublisher) PublishScored(ctx context.Context, ev mq.ScoredEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

type fakeMetrics struct {
	mu        sync.Mutex
	runs      map[string]int
	scored    int
	fallbacks int
	tracked   map[string]int
	outcomes  map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{runs: map[string]int{}, tracked: map[string]int{}, outcomes: map[string]int{}}
}

func (f *fakeMetrics) RunFinished(mode, state string) {
	f.mu.Lock()
	f.runs[mode+":"+state]++
	f.mu.Unlock()
}

func (f *fakeMetrics) AccountScored(string, time.Duration) {
	f.mu.Lock()
	f.scored++
	f.mu.Unlock()
}

func (f *fakeMetrics) SourceFallback() {
	f.mu.Lock()
	f.fallbacks++
	f.mu.Unlock()
}

func (f *fakeMetrics) SignalTracked(outcome string) {
	f.mu.Lock()
	f.tracked[outcome]++
	f.mu.Unlock()
}

func (f *fakeMetrics) Classified(outcome string) {
	f.mu.Lock()
	f.outcomes[outcome]++
	f.mu.Unlock()
}

// recomputeFixture 组装一套内存依赖
type recomputeFixture struct {
	scoring   *fakeScoring
	primary   *fakeSource
	secondary *fakeSource
	accounts  *fakeAccounts
	snapshots *fakeSnapshots
	signals   *fakeSignals
	runs      *fakeRuns
	publisher *fakePublisher
	metrics   *fakeMetrics
	svc       *IntentRecomputeService
}

func newRecomputeFixture(primaryRows []*interfaces.EventRow, existing ...string) *recomputeFixture {
	f := &recomputeFixture{
		scoring:   &fakeScoring{set: testScoringSet()},
		primary:   &fakeSource{name: "primary", rows: primaryRows},
		secondary: &fakeSource{name: "secondary"},
		accounts:  newFakeAccounts(existing...),
		snapshots: newFakeSnapshots(),
		signals:   &fakeSignals{},
		runs:      newFakeRuns(),
		publisher: &fakePublisher{},
		metrics:   newFakeMetrics(),
	}
	f.svc = NewIntentRecomputeService(RecomputeDeps{
		Scoring:         f.scoring,
		Primary:         f.primary,
		Secondary:       f.secondary,
		Accounts:        f.accounts,
		Snapshots:       f.snapshots,
		Signals:         f.signals,
		Runs:            f.runs,
		Publisher:       f.publisher,
		Metrics:         f.metrics,
		PersonalDomains: []string{"gmail.com", "yahoo.com"},
		Now:             func() time.Time { return testNow },
	}, quietLogger())
	return f
}
