package scoring

import (
	"math"
	"testing"
	"time"
)

func TestDecayProperties(t *testing.T) {
	if got := Decay(0, 0.1); got != 1 {
		t.Fatalf("Decay(0) = %v, want 1", got)
	}
	prev := Decay(0, 0.1)
	for age := 0.5; age <= 60; age += 0.5 {
		d := Decay(age, 0.1)
		if d >= prev {
			t.Fatalf("decay not strictly decreasing at age %.1f: %v >= %v", age, d, prev)
		}
		prev = d
	}
	if d := Decay(1000, 0.1); d > 1e-40 {
		t.Fatalf("decay should approach 0, got %v", d)
	}
}

func TestAgeDaysClampsFutureEvents(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if got := AgeDays(now, now.Add(2*time.Hour)); got != 0 {
		t.Fatalf("future event age = %v, want 0", got)
	}
	if got := AgeDays(now, now.Add(-36*time.Hour)); math.Abs(got-1.5) > 1e-9 {
		t.Fatalf("age = %v, want 1.5", got)
	}
}

func TestNormalizeProperties(t *testing.T) {
	if got := Normalize(0, 80); got != 0 {
		t.Fatalf("Normalize(0) = %d, want 0", got)
	}
	prev := -1.0
	for raw := 0.0; raw <= 2000; raw += 7.5 {
		v := NormalizeRaw(raw, 80)
		if v < prev {
			t.Fatalf("NormalizeRaw decreasing at raw=%v", raw)
		}
		if v < 0 || v >= 100 {
			t.Fatalf("NormalizeRaw(%v) = %v out of [0,100)", raw, v)
		}
		prev = v
	}
	if got := Normalize(1e6, 80); got > 100 {
		t.Fatalf("Normalize huge raw = %d, want <= 100", got)
	}
	// k<=0 回退到默认值 80
	if Normalize(22.62, 0) != Normalize(22.62, 80) {
		t.Fatalf("k<=0 should fall back to default")
	}
}

func TestClassifyStageBoundaries(t *testing.T) {
	p := DefaultParams()
	cases := []struct {
		raw  float64
		want int
		st   Stage
	}{
		{33.3, 34, StageCold},
		{34.5, 35, StageWarm},
		{93.7, 69, StageWarm},
		{96.4, 70, StageHot},
	}
	for _, tc := range cases {
		score := Normalize(tc.raw, p.NormalizeK)
		if score != tc.want {
			t.Fatalf("Normalize(%v) = %d, want %d", tc.raw, score, tc.want)
		}
		if got := ClassifyStage(score, p.ColdMax, p.WarmMax); got != tc.st {
			t.Errorf("stage(%d) = %s, want %s", score, got, tc.st)
		}
	}
}

func TestSurgeClassification(t *testing.T) {
	p := DefaultParams()
	ratio := SurgeRatio(0, 0)
	if ratio != 1.0 {
		t.Fatalf("ratio(0,0) = %v, want 1", ratio)
	}
	if got := ClassifySurge(ratio, p.SurgeSurgingMin, p.SurgeExplodingMin); got != SurgeNormal {
		t.Fatalf("level = %s, want Normal", got)
	}

	ratio = SurgeRatio(10, 0)
	if ratio != 3.0 {
		t.Fatalf("ratio(10,0) = %v, want 3", ratio)
	}
	if got := ClassifySurge(ratio, p.SurgeSurgingMin, p.SurgeExplodingMin); got != SurgeExploding {
		t.Fatalf("level = %s, want Exploding", got)
	}

	if got := ClassifySurge(1.5, p.SurgeSurgingMin, p.SurgeExplodingMin); got != SurgeSurging {
		t.Fatalf("ratio 1.5 level = %s, want Surging", got)
	}
	if got := ClassifySurge(2.5, p.SurgeSurgingMin, p.SurgeExplodingMin); got != SurgeExploding {
		t.Fatalf("ratio 2.5 level = %s, want Exploding", got)
	}
}

func TestWeightResolveFallbackOrder(t *testing.T) {
	table := WeightTable{
		{EventName: "page_view", ContentType: "pricing"}:   25,
		{EventName: "page_view"}:                           3,
		{EventName: "page_view", ContentType: "other"}:     2,
		{EventName: "cta_click", CTAID: "hero"}:            12,
		{EventName: "form_submit", ContentType: "contact"}: 40,
	}

	cases := []struct {
		name    string
		event   string
		content string
		ctaID   string
		want    float64
	}{
		{"exact", "page_view", "pricing", "", 25},
		{"exact with cta", "cta_click", "", "hero", 12},
		{"page view generic", "page_view", "careers", "", 3},
		{"page view without content type skips generic", "page_view", "", "x", 2},
		{"unknown event falls to other", "webinar_register", "", "", 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := table.Resolve(tc.event, tc.content, tc.ctaID); got != tc.want {
				t.Fatalf("Resolve = %v, want %v", got, tc.want)
			}
		})
	}

	if got := (WeightTable{}).Resolve("page_view", "pricing", ""); got != 1 {
		t.Fatalf("empty table weight = %v, want 1", got)
	}
}

func TestWeightKeyWireFormat(t *testing.T) {
	k := WeightKey{EventName: "page_view", ContentType: "pricing"}
	if k.String() != "page_view:pricing:" {
		t.Fatalf("String = %q", k.String())
	}
	parsed, err := ParseWeightKey("cta_click::hero")
	if err != nil {
		t.Fatalf("ParseWeightKey: %v", err)
	}
	if parsed != (WeightKey{EventName: "cta_click", CTAID: "hero"}) {
		t.Fatalf("parsed = %+v", parsed)
	}
	for _, bad := range []string{"", "page_view", "a:b", ":x:y", "a:b:c:d"} {
		if _, err := ParseWeightKey(bad); err == nil {
			t.Errorf("ParseWeightKey(%q) should fail", bad)
		}
	}
}

func TestTopLaneDeterministicTieBreak(t *testing.T) {
	if got := TopLane(nil); got != LaneOther {
		t.Fatalf("empty lanes = %q, want other", got)
	}
	lanes := map[string]float64{"Launch": 4, "Ground Station": 4, "Analytics": 1}
	for i := 0; i < 20; i++ {
		if got := TopLane(lanes); got != "Ground Station" {
			t.Fatalf("tie break = %q, want Ground Station", got)
		}
	}
	lanes["Launch"] = 4.5
	if got := TopLane(lanes); got != "Launch" {
		t.Fatalf("argmax = %q, want Launch", got)
	}
}

func TestBuildEvidence(t *testing.T) {
	counts := map[string]int{
		"pricing_page_view": 4,
		"cta_click_hero":    2,
		"demo_request":      1,
		"form_submit":       2,
	}
	templates := map[string]string{
		"demo_request": "Requested {count} demo(s)",
		"form_submit":  "no placeholder here",
	}

	got := BuildEvidence(counts, templates, WhyHotLimit)
	want := []string{
		"Viewed pricing page (4x)",
		"Cta Click Hero (2x)",
		"Submitted a form (2x)",
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("evidence[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	all := BuildEvidence(counts, templates, EvidenceLimit)
	if len(all) != 4 || all[3] != "Requested 1 demo(s)" {
		t.Fatalf("stored evidence = %v", all)
	}
}

func TestHumanize(t *testing.T) {
	if got := Humanize("  cta_click_x_ "); got != "Cta Click X" {
		t.Fatalf("Humanize = %q", got)
	}
	// 多字节首字母整体转大写，不能按字节切开
	if got := Humanize("é_x_über"); got != "É X Über" {
		t.Fatalf("Humanize multibyte = %q", got)
	}
	if got := EventKey("page_view", "pricing"); got != "pricing_page_view" {
		t.Fatalf("EventKey = %q", got)
	}
	if got := EventKey("page_view", "other"); got != "page_view" {
		t.Fatalf("EventKey other = %q", got)
	}
}

func TestAggregateWindows(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	day := 24 * time.Hour
	events := []Event{
		{Key: "a", Lane: "Launch", Weight: 10, VisitorID: "v1", OccurredAt: now},
		{Key: "a", Lane: "Launch", Weight: 10, VisitorID: "v1", OccurredAt: now.Add(-6 * day)},
		{Key: "b", Weight: 10, VisitorID: "v2", OccurredAt: now.Add(-7 * day)},
		{Key: "b", Lane: "Ground", Weight: 10, OccurredAt: now.Add(-20 * day)},
		{Key: "c", Weight: 10, OccurredAt: now.Add(-30 * day)},
	}
	agg := Aggregate(events, 0, now)
	if agg.Raw7d != 20 || agg.RawPrev7d != 10 || agg.Raw30d != 40 {
		t.Fatalf("raw = %v/%v/%v, want 20/10/40", agg.Raw7d, agg.RawPrev7d, agg.Raw30d)
	}
	if agg.Lanes7d["Launch"] != 20 || len(agg.Lanes7d) != 1 {
		t.Fatalf("lanes7d = %v", agg.Lanes7d)
	}
	if agg.Lanes30d["other"] != 10 || agg.Lanes30d["Ground"] != 10 {
		t.Fatalf("lanes30d = %v", agg.Lanes30d)
	}
	if agg.UniqueVisitors7d != 1 {
		t.Fatalf("unique visitors = %d, want 1", agg.UniqueVisitors7d)
	}
	if agg.KeyEventCounts["a"] != 2 || agg.KeyEventCounts["b"] != 2 || agg.KeyEventCounts["c"] != 0 {
		t.Fatalf("counts = %v", agg.KeyEventCounts)
	}
	if agg.LastEventAt == nil || !agg.LastEventAt.Equal(now) {
		t.Fatalf("last event = %v", agg.LastEventAt)
	}
}

func TestAggregateOrderIndependent(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	events := []Event{
		{Key: "x", Lane: "L1", Weight: 3, OccurredAt: now.Add(-30 * time.Hour)},
		{Key: "y", Lane: "L2", Weight: 7, OccurredAt: now.Add(-200 * time.Hour)},
		{Key: "z", Lane: "L1", Weight: 5, OccurredAt: now.Add(-2 * time.Hour)},
	}
	reversed := []Event{events[2], events[1], events[0]}
	a := Compute(events, DefaultParams(), nil, now)
	b := Compute(reversed, DefaultParams(), nil, now)
	if math.Abs(a.Raw30d-b.Raw30d) > 1e-12 || a.TopLane != b.TopLane || a.IntentScore != b.IntentScore {
		t.Fatalf("results differ with event order: %+v vs %+v", a, b)
	}
}

func TestComputePricingScenario(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	weights := WeightTable{{EventName: "page_view", ContentType: "pricing"}: 25}
	events := []Event{{
		Key:        EventKey("page_view", "pricing"),
		Lane:       "Launch",
		Weight:     weights.Resolve("page_view", "pricing", ""),
		OccurredAt: now.Add(-24 * time.Hour),
	}}
	p := DefaultParams()

	res := Compute(events, p, nil, now)
	if math.Abs(res.Raw30d-22.62) > 0.01 {
		t.Fatalf("raw30d = %v, want ≈22.62", res.Raw30d)
	}
	if res.IntentScore != 25 {
		t.Fatalf("score = %d, want 25", res.IntentScore)
	}
	if res.Stage != StageCold {
		t.Fatalf("stage = %s, want Cold", res.Stage)
	}
	if math.Abs(res.SurgeRatio-5.52) > 0.01 {
		t.Fatalf("surge ratio = %v, want ≈5.52", res.SurgeRatio)
	}
	if res.SurgeLevel != SurgeExploding {
		t.Fatalf("surge = %s, want Exploding", res.SurgeLevel)
	}
	if res.TopLane != "Launch" {
		t.Fatalf("top lane = %s", res.TopLane)
	}
	if len(res.WhyHot) != 1 || res.WhyHot[0] != "Viewed pricing page (1x)" {
		t.Fatalf("why hot = %v", res.WhyHot)
	}
}
