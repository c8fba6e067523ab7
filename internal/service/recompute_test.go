package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"IntentEngine/internal/interfaces"
	"IntentEngine/internal/model"
	"IntentEngine/internal/registry"
)

func primaryRows() []*interfaces.EventRow {
	return []*interfaces.EventRow{
		{AccountKey: "acme.com", EventName: "page_view", Path: "/pricing", DistinctVisitorID: "v1", Timestamp: daysAgo(1)},
		{AccountKey: "WWW.ACME.COM", EventName: "page_view", Path: "https://acme.com/pricing/teams", DistinctVisitorID: "v2", Timestamp: daysAgo(2)},
		{AccountKey: "acme.com", EventName: "page_view", Path: "/Pricing", DistinctVisitorID: "v1", Timestamp: daysAgo(3)},
		{AccountKey: "acme.com", EventName: "demo_request", Path: "/", Timestamp: daysAgo(1)},
		{AccountKey: "beta.io", EventName: "page_view", Path: "/docs/api", Timestamp: daysAgo(10)},
		{AccountKey: "someone@gmail.com", EventName: "page_view", Path: "/pricing", Timestamp: daysAgo(1)},
		{AccountKey: "", EventName: "page_view", Path: "/pricing", Timestamp: daysAgo(1)},
	}
}

func TestRecomputeAllFromPrimary(t *testing.T) {
	f := newRecomputeFixture(primaryRows(), "acme.com")

	run, err := f.svc.RecomputeAll(context.Background(), 0, nil)
	if err != nil {
		t.Fatalf("RecomputeAll() error = %v", err)
	}
	if run.Source != "primary" || run.State != model.RunStateDone || run.RangeDays != 30 {
		t.Errorf("run = %+v", run)
	}
	if run.AccountsScored != 2 || run.AccountsSkipped != 1 || run.AccountsCreated != 1 {
		t.Errorf("scored/skipped/created = %d/%d/%d, want 2/1/1", run.AccountsScored, run.AccountsSkipped, run.AccountsCreated)
	}
	if stored, _ := f.runs.GetByUUID(context.Background(), run.RunUUID); stored == nil || stored.State != model.RunStateDone {
		t.Errorf("stored run = %+v", stored)
	}

	acme := f.snapshots.get(1)
	if acme == nil {
		t.Fatal("acme snapshot missing")
	}
	if math.Abs(acme.RawScore30d-37.8118) > 1e-3 || acme.IntentScore != 38 || acme.IntentStage != "Warm" {
		t.Errorf("acme raw30=%v score=%d stage=%s", acme.RawScore30d, acme.IntentScore, acme.IntentStage)
	}
	if acme.TopLane != "sales" || acme.SurgeLevel != "Exploding" || acme.UniqueVisitors7d != 2 {
		t.Errorf("acme lane=%s surge=%s visitors=%d", acme.TopLane, acme.SurgeLevel, acme.UniqueVisitors7d)
	}
	var counts map[string]int
	if err := model.FromJSON(acme.KeyEventCounts, &counts); err != nil {
		t.Fatal(err)
	}
	if counts["pricing_page_view"] != 3 || counts["demo_request"] != 1 {
		t.Errorf("key event counts = %v", counts)
	}

	proj := f.accounts.projections[1]
	if len(proj.WhyHot) != 2 || proj.WhyHot[0] != "Viewed pricing 3 times" || proj.WhyHot[1] != "Requested a demo (1x)" {
		t.Errorf("why hot = %v", proj.WhyHot)
	}
	if proj.LastSeenAt == nil || !proj.LastSeenAt.Equal(daysAgo(1)) {
		t.Errorf("last seen = %v", proj.LastSeenAt)
	}

	betaID := f.accounts.domainID("beta.io")
	beta := f.snapshots.get(betaID)
	if beta == nil || beta.IntentScore != 0 || beta.IntentStage != "Cold" || beta.TopLane != "other" || beta.SurgeLevel != "Normal" {
		t.Errorf("beta snapshot = %+v", beta)
	}
	if f.accounts.domainID("gmail.com") != 0 {
		t.Error("personal domain must not create an account")
	}
	if len(f.publisher.events) != 2 {
		t.Errorf("published = %d, want 2", len(f.publisher.events))
	}
	if f.secondary.calls != 0 {
		t.Error("secondary source should not be used when primary succeeds")
	}
}

func TestRecomputeAllFallsBackToSecondary(t *testing.T) {
	f := newRecomputeFixture(nil, "acme.com")
	f.primary.err = fmt.Errorf("%w: 502", interfaces.ErrSourceUnavailable)
	w := 8.0
	f.secondary.rows = []*interfaces.EventRow{
		{AccountKey: "acme.com", EventName: "pricing_page_view", Lane: "sales", Weight: &w, Timestamp: daysAgo(0.5)},
	}

	run, err := f.svc.RecomputeAll(context.Background(), 14, nil)
	if err != nil {
		t.Fatalf("RecomputeAll() error = %v", err)
	}
	if run.Source != "secondary" || run.AccountsScored != 1 || run.RangeDays != 14 {
		t.Errorf("run = %+v", run)
	}
	if f.metrics.fallbacks != 1 {
		t.Errorf("fallbacks = %d", f.metrics.fallbacks)
	}
	snap := f.snapshots.get(1)
	want := 8 * math.Exp(-0.05)
	if snap == nil || math.Abs(snap.RawScore7d-want) > 1e-9 || snap.TopLane != "sales" {
		t.Errorf("snapshot = %+v, want raw7d %v", snap, want)
	}
}

func TestRecomputeAllBothSourcesFail(t *testing.T) {
	f := newRecomputeFixture(nil, "acme.com")
	f.primary.err = interfaces.ErrSourceUnavailable
	f.secondary.err = interfaces.ErrSourceUnavailable

	run, err := f.svc.RecomputeAll(context.Background(), 30, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if run.State != model.RunStateAborted || run.Error == nil {
		t.Errorf("run = %+v", run)
	}
	if f.snapshots.upserts != 0 {
		t.Errorf("upserts = %d, want 0", f.snapshots.upserts)
	}
}

func TestRecomputeAllAllowList(t *testing.T) {
	f := newRecomputeFixture(primaryRows(), "acme.com")

	run, err := f.svc.RecomputeAll(context.Background(), 30, []string{"https://www.Beta.io/"})
	if err != nil {
		t.Fatal(err)
	}
	if run.AccountsScored != 1 || run.AccountsSkipped != 0 {
		t.Errorf("scored/skipped = %d/%d, want 1/0", run.AccountsScored, run.AccountsSkipped)
	}
	if f.snapshots.get(1) != nil {
		t.Error("acme.com is outside the allow-list and must not be scored")
	}
}

func TestRecomputeAllAbortsWithoutActiveConfig(t *testing.T) {
	f := newRecomputeFixture(primaryRows(), "acme.com")
	f.scoring.err = fmt.Errorf("%w: found 0", registry.ErrNoActiveConfig)

	run, err := f.svc.RecomputeAll(context.Background(), 30, nil)
	if !errors.Is(err, registry.ErrNoActiveConfig) {
		t.Fatalf("err = %v, want ErrNoActiveConfig", err)
	}
	if run.State != model.RunStateAborted {
		t.Errorf("run state = %s", run.State)
	}
	if f.primary.calls != 0 || f.snapshots.upserts != 0 || len(f.accounts.projections) != 0 {
		t.Error("nothing may be fetched or written before the config is loaded")
	}
	if f.accounts.domainID("beta.io") != 0 {
		t.Error("no account may be created")
	}
	if f.metrics.runs["batch:aborted"] != 1 {
		t.Errorf("metrics = %v", f.metrics.runs)
	}
}

func TestRecomputeAllIsIdempotent(t *testing.T) {
	f := newRecomputeFixture(primaryRows(), "acme.com")
	ctx := context.Background()

	if _, err := f.svc.RecomputeAll(ctx, 30, nil); err != nil {
		t.Fatal(err)
	}
	first := *f.snapshots.get(1)
	if _, err := f.svc.RecomputeAll(ctx, 30, nil); err != nil {
		t.Fatal(err)
	}
	second := *f.snapshots.get(1)

	if len(f.snapshots.rows) != 2 {
		t.Errorf("rows = %d, want one per account and date", len(f.snapshots.rows))
	}
	if first.RawScore30d != second.RawScore30d || first.IntentScore != second.IntentScore ||
		string(first.LaneScores7d) != string(second.LaneScores7d) || string(first.Evidence) != string(second.Evidence) {
		t.Errorf("second run changed the snapshot:\n%+v\n%+v", first, second)
	}
}

func TestRecomputeOne(t *testing.T) {
	f := newRecomputeFixture(nil, "acme.com")
	f.signals.signals = []*model.IntentSignal{
		{AccountID: 1, SignalType: "demo_request", ServiceLane: "sales", Weight: 20, OccurredAt: daysAgo(0)},
		{AccountID: 1, SignalType: "pricing_page_view", ServiceLane: "sales", Weight: 8, OccurredAt: daysAgo(40)},
		{AccountID: 2, SignalType: "demo_request", Weight: 20, OccurredAt: daysAgo(0)},
	}

	snap, err := f.svc.RecomputeOne(context.Background(), 1)
	if err != nil {
		t.Fatalf("RecomputeOne() error = %v", err)
	}
	if snap.RawScore30d != 20 || snap.TopLane != "sales" {
		t.Errorf("snapshot = %+v", snap)
	}
	if f.metrics.runs["realtime:done"] != 1 {
		t.Errorf("metrics = %v", f.metrics.runs)
	}

	if _, err := f.svc.RecomputeOne(context.Background(), 99); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("err = %v, want ErrAccountNotFound", err)
	}
}

func TestRecomputeOneAbortsWithoutActiveConfig(t *testing.T) {
	f := newRecomputeFixture(nil, "acme.com")
	f.scoring.err = registry.ErrNoActiveConfig
	if _, err := f.svc.RecomputeOne(context.Background(), 1); !errors.Is(err, registry.ErrNoActiveConfig) {
		t.Fatalf("err = %v", err)
	}
	if f.snapshots.upserts != 0 {
		t.Error("snapshot written without an active config")
	}
}

func TestConcurrentRecomputeSerializesPerAccount(t *testing.T) {
	f := newRecomputeFixture(primaryRows(), "acme.com")
	f.snapshots.delay = 2 * time.Millisecond
	f.signals.signals = []*model.IntentSignal{
		{AccountID: 1, SignalType: "demo_request", Weight: 20, OccurredAt: daysAgo(1)},
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := f.svc.RecomputeOne(context.Background(), 1); err != nil {
				t.Error(err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := f.svc.RecomputeAll(context.Background(), 30, []string{"acme.com"}); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if f.snapshots.overlap {
		t.Fatal("two writers upserted the same (account, date) snapshot concurrently")
	}
	if len(f.snapshots.rows) != 1 {
		t.Errorf("rows = %d, want 1", len(f.snapshots.rows))
	}
}

func TestClampRangeDays(t *testing.T) {
	cases := []struct{ in, want int }{{0, 30}, {-5, 30}, {1, 1}, {90, 90}, {365, 365}, {1000, 365}}
	for _, c := range cases {
		if got := ClampRangeDays(c.in, 30); got != c.want {
			t.Errorf("ClampRangeDays(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

// 同一批事件走批量（主事件源）与走实时（逐条上报后单账号重算）得到的快照必须完全一致
func TestBatchAndRealtimeSnapshotsMatch(t *testing.T) {
	rows := []*interfaces.EventRow{
		{AccountKey: "acme.com", EventName: "demo_request", Path: "/contact", DistinctVisitorID: "v1", Timestamp: daysAgo(0.5)},
		{AccountKey: "acme.com", EventName: "page_view", Path: "/pricing", DistinctVisitorID: "v1", Timestamp: daysAgo(1)},
		{AccountKey: "acme.com", EventName: "page_view", Path: "https://acme.com/pricing/teams", DistinctVisitorID: "v2", Timestamp: daysAgo(2)},
		{AccountKey: "acme.com", EventName: "page_view", Path: "/docs/api", DistinctVisitorID: "v3", Timestamp: daysAgo(3)},
		{AccountKey: "acme.com", EventName: "page_view", Path: "/blog/post", DistinctVisitorID: "v4", Timestamp: daysAgo(9)},
		{AccountKey: "acme.com", EventName: "page_view", Path: "/stories", ContentType: "case_study", Lane: "sales", DistinctVisitorID: "v2", Timestamp: daysAgo(12)},
		{AccountKey: "acme.com", EventName: "cta_click", Path: "/pricing", CTAID: "book_call", DistinctVisitorID: "v5", Timestamp: daysAgo(20)},
	}

	batch := newRecomputeFixture(rows, "acme.com")
	if _, err := batch.svc.RecomputeAll(context.Background(), 30, nil); err != nil {
		t.Fatalf("RecomputeAll() error = %v", err)
	}
	want := batch.snapshots.get(1)

	realtime := newRecomputeFixture(nil, "acme.com")
	ingest, _ := newIngest(realtime, realtime.svc)
	for _, r := range rows {
		res, err := ingest.Track(context.Background(), TrackRequest{
			AccountKey:        r.AccountKey,
			EventName:         r.EventName,
			Path:              r.Path,
			ContentType:       r.ContentType,
			Lane:              r.Lane,
			CTAID:             r.CTAID,
			DistinctVisitorID: r.DistinctVisitorID,
			OccurredAt:        r.Timestamp,
		})
		if err != nil || !res.Rescored {
			t.Fatalf("Track(%s %s) = %+v, %v", r.EventName, r.Path, res, err)
		}
	}
	got := realtime.snapshots.get(1)

	if want == nil || got == nil {
		t.Fatalf("snapshots missing: batch=%v realtime=%v", want, got)
	}
	if got.RawScore7d != want.RawScore7d || got.RawScorePrev7d != want.RawScorePrev7d || got.RawScore30d != want.RawScore30d {
		t.Errorf("raw scores differ: realtime %v/%v/%v batch %v/%v/%v",
			got.RawScore7d, got.RawScorePrev7d, got.RawScore30d, want.RawScore7d, want.RawScorePrev7d, want.RawScore30d)
	}
	if got.IntentScore != want.IntentScore || got.IntentStage != want.IntentStage {
		t.Errorf("intent differs: realtime %d/%s batch %d/%s", got.IntentScore, got.IntentStage, want.IntentScore, want.IntentStage)
	}
	if got.SurgeRatio != want.SurgeRatio || got.SurgeLevel != want.SurgeLevel || got.TopLane != want.TopLane {
		t.Errorf("surge/lane differs: realtime %v/%s/%s batch %v/%s/%s",
			got.SurgeRatio, got.SurgeLevel, got.TopLane, want.SurgeRatio, want.SurgeLevel, want.TopLane)
	}
	jsonFields := []struct {
		name      string
		got, want []byte
	}{
		{"lane_scores_7d", got.LaneScores7d, want.LaneScores7d},
		{"lane_scores_30d", got.LaneScores30d, want.LaneScores30d},
		{"key_event_counts", got.KeyEventCounts, want.KeyEventCounts},
		{"evidence", got.Evidence, want.Evidence},
	}
	for _, f := range jsonFields {
		if string(f.got) != string(f.want) {
			t.Errorf("%s differs:\nrealtime %s\nbatch    %s", f.name, f.got, f.want)
		}
	}
	if got.UniqueVisitors7d != want.UniqueVisitors7d {
		t.Errorf("unique visitors: realtime %d batch %d", got.UniqueVisitors7d, want.UniqueVisitors7d)
	}
	if got.LastEventAt == nil || want.LastEventAt == nil || !got.LastEventAt.Equal(*want.LastEventAt) {
		t.Errorf("last_event_at: realtime %v batch %v", got.LastEventAt, want.LastEventAt)
	}
	if want.RawScore7d == 0 || want.UniqueVisitors7d != 3 {
		t.Errorf("fixture should exercise the 7d window, got raw %v visitors %d", want.RawScore7d, want.UniqueVisitors7d)
	}
}
