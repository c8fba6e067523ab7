package main

import (
	"context"
	"errors"
	"testing"

	"IntentEngine/internal/model"
)

const sampleSeed = `
score_config:
  name: default-v1
  lambda_decay: 0.1
  normalize_k: 80
  cold_max: 34
  warm_max: 69
  surge_surging_min: 1.5
  surge_exploding_min: 2.5
weights:
  "page_view:pricing:": 8
  "demo_request::": 20
  "page_view:other:": 1
event_rules:
  - priority: 10
    event_name: page_view
    match_type: path_prefix
    match_value: /pricing
    content_type: pricing
    lane: sales
    evidence_template: "Viewed pricing {count} times"
  - priority: 20
    scoped: true
    enabled: false
    event_name: "*"
    match_type: contains
    match_value: /demo
    weight_override: 25
program_rules:
  - label: cloud
    priority: 20
    match_field: any
    match_type: contains
    pattern: cloud
    add_score: 40
    service_lane: engineering
suppression_rules:
  - label: construction
    match_field: title
    pattern: construction
    suppress_score_threshold: -1
blacklist:
  - pattern: Department of Defense
    reason: not pursued
`

type recordingTarget struct {
	calls     []string
	activated uint64
	weights   map[string]int
	rules     []*model.EventRule
	failOn    string
}

func (r *recordingTarget) step(name string) error {
	r.calls = append(r.calls, name)
	if name == r.failOn {
		return errors.New(name + " rejected")
	}
	return nil
}

func (r *recordingTarget) CreateScoreConfig(ctx context.Context, cfg *model.ScoreConfig) error {
	cfg.ID = 3
	return r.step("config")
}

func (r *recordingTarget) ActivateScoreConfig(ctx context.Context, id uint64) error {
	r.activated = id
	return r.step("activate")
}

func (r *recordingTarget) UpsertWeight(ctx context.Context, scoreConfigID uint64, wireKey string, weight int) (*model.WeightEntry, error) {
	if r.weights == nil {
		r.weights = map[string]int{}
	}
	r.weights[wireKey] = weight
	return &model.WeightEntry{}, r.step("weight")
}

func (r *recordingTarget) CreateEventRule(ctx context.Context, rule *model.EventRule) error {
	r.rules = append(r.rules, rule)
	return r.step("event_rule")
}

func (r *recordingTarget) SaveProgramRule(ctx context.Context, rule *model.ProgramRule) error {
	return r.step("program_rule")
}

func (r *recordingTarget) SaveSuppressionRule(ctx context.Context, rule *model.SuppressionRule) error {
	if rule.SuppressScoreThreshold == nil || *rule.SuppressScoreThreshold != -1 {
		return errors.New("threshold not parsed")
	}
	return r.step("suppression")
}

func (r *recordingTarget) AddBlacklistEntry(ctx context.Context, e *model.AgencyBlacklistEntry) error {
	return r.step("blacklist")
}

func TestApplySeed(t *testing.T) {
	seed, err := ParseSeed([]byte(sampleSeed))
	if err != nil {
		t.Fatal(err)
	}
	target := &recordingTarget{}
	summary, err := ApplySeed(context.Background(), target, seed)
	if err != nil {
		t.Fatalf("ApplySeed() error = %v", err)
	}

	if summary.ScoreConfigID != 3 || summary.Weights != 3 || summary.EventRules != 2 || summary.ProgramRules != 1 || summary.SuppressionRules != 1 || summary.Blacklist != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if target.activated != 3 || target.calls[len(target.calls)-1] != "activate" {
		t.Errorf("config must be activated last, calls = %v", target.calls)
	}
	if target.weights["demo_request::"] != 20 {
		t.Errorf("weights = %v", target.weights)
	}

	global, scoped := target.rules[0], target.rules[1]
	if global.ScoreConfigID != nil || !global.Enabled || global.EvidenceTemplate == "" {
		t.Errorf("global rule = %+v", global)
	}
	if scoped.ScoreConfigID == nil || *scoped.ScoreConfigID != 3 || scoped.Enabled || *scoped.WeightOverride != 25 {
		t.Errorf("scoped rule = %+v", scoped)
	}
}

func TestApplySeedStopsBeforeActivation(t *testing.T) {
	seed, err := ParseSeed([]byte(sampleSeed))
	if err != nil {
		t.Fatal(err)
	}
	target := &recordingTarget{failOn: "program_rule"}
	if _, err := ApplySeed(context.Background(), target, seed); err == nil {
		t.Fatal("expected error")
	}
	if target.activated != 0 {
		t.Error("config activated despite failed seed")
	}
}

func TestParseSeedRejectsBadYAML(t *testing.T) {
	if _, err := ParseSeed([]byte("weights: [1, 2")); err == nil {
		t.Error("expected parse error")
	}
}
