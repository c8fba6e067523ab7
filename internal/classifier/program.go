package classifier

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"IntentEngine/internal/model"

	"github.com/sirupsen/logrus"
)

// 采购机会规则的匹配字段与方式
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldAgency      = "agency"
	FieldNAICS       = "naics"
	FieldAny         = "any"

	ProgramMatchContains = "contains"
	ProgramMatchEquals   = "equals"
	ProgramMatchPrefix   = "prefix"
	ProgramMatchRegex    = "regex"
)

// 置信度在 relevance_score 达到该值时封顶为 1
const confidenceFullScore = 80.0

// Record 待分类的采购机会
type Record struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Agency      string `json:"agency"`
	NAICS       string `json:"naics"`
}

// MatchReason 一条正向规则的贡献明细
type MatchReason struct {
	RuleID       uint64 `json:"rule_id"`
	Label        string `json:"label"`
	Contribution int    `json:"contribution"`
}

// ClassificationResult 分类输出，被抑制时只有 Suppressed/SuppressedReason 有意义
type ClassificationResult struct {
	ServiceLane      *string       `json:"service_lane"`
	Topic            *string       `json:"topic"`
	RelevanceScore   int           `json:"relevance_score"`
	MatchConfidence  float64       `json:"match_confidence"`
	MatchReasons     []MatchReason `json:"match_reasons"`
	Suppressed       bool          `json:"suppressed"`
	SuppressedReason *string       `json:"suppressed_reason"`
}

// Outcome 用于指标打点：suppressed / matched / unmatched
func (r ClassificationResult) Outcome() string {
	switch {
	case r.Suppressed:
		return "suppressed"
	case len(r.MatchReasons) > 0:
		return "matched"
	default:
		return "unmatched"
	}
}

type textMatcher struct {
	field     string
	matchType string
	pattern   string
	re        *regexp.Regexp
	err       error
}

func newTextMatcher(id uint64, field, matchType, pattern string) textMatcher {
	m := textMatcher{field: field, matchType: matchType, pattern: strings.ToLower(pattern)}
	if m.field == "" {
		m.field = FieldAny
	}
	if m.matchType == "" {
		m.matchType = ProgramMatchContains
	}
	switch m.field {
	case FieldTitle, FieldDescription, FieldAgency, FieldNAICS, FieldAny:
	default:
		m.err = fmt.Errorf("%w: rule %d unknown match_field %q", ErrMalformedRule, id, field)
		return m
	}
	switch m.matchType {
	case ProgramMatchContains, ProgramMatchEquals, ProgramMatchPrefix:
	case ProgramMatchRegex:
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			m.err = fmt.Errorf("%w: rule %d regex %q: %v", ErrMalformedRule, id, pattern, err)
		}
		m.re = re
	default:
		m.err = fmt.Errorf("%w: rule %d unknown match_type %q", ErrMalformedRule, id, matchType)
	}
	return m
}

func (m textMatcher) match(rec Record) bool {
	if m.err != nil {
		return false
	}
	switch m.field {
	case FieldTitle:
		return m.matchText(rec.Title)
	case FieldDescription:
		return m.matchText(rec.Description)
	case FieldAgency:
		return m.matchText(rec.Agency)
	case FieldNAICS:
		return m.matchText(rec.NAICS)
	}
	for _, v := range []string{rec.Title, rec.Description, rec.Agency, rec.NAICS} {
		if m.matchText(v) {
			return true
		}
	}
	return false
}

func (m textMatcher) matchText(v string) bool {
	if v == "" {
		return false
	}
	if m.re != nil {
		return m.re.MatchString(v)
	}
	v = strings.ToLower(v)
	switch m.matchType {
	case ProgramMatchEquals:
		return v == m.pattern
	case ProgramMatchPrefix:
		return strings.HasPrefix(v, m.pattern)
	default:
		return m.pattern != "" && strings.Contains(v, m.pattern)
	}
}

type compiledSuppression struct {
	rule model.SuppressionRule
	m    textMatcher
}

type compiledProgramRule struct {
	rule model.ProgramRule
	m    textMatcher
}

// ProgramRuleSet 黑名单 + 抑制规则 + 正向规则，构造后只读
type ProgramRuleSet struct {
	blacklist    []model.AgencyBlacklistEntry
	suppressions []compiledSuppression
	positives    []compiledProgramRule
	malformed    []uint64
}

// NewProgramRuleSet 抑制与正向规则均按 priority 降序（同 priority 按 id 升序）
func NewProgramRuleSet(blacklist []model.AgencyBlacklistEntry, suppressions []model.SuppressionRule,
	positives []model.ProgramRule, logger *logrus.Logger) *ProgramRuleSet {
	set := &ProgramRuleSet{}
	warn := func(id uint64, err error) {
		set.malformed = append(set.malformed, id)
		if logger != nil {
			logger.WithError(err).WithField("rule_id", id).Warn("采购规则无法编译，按不命中处理")
		}
	}

	for _, b := range blacklist {
		if strings.TrimSpace(b.Pattern) == "" {
			continue
		}
		set.blacklist = append(set.blacklist, b)
	}
	for _, r := range suppressions {
		if !r.Enabled {
			continue
		}
		c := compiledSuppression{rule: r, m: newTextMatcher(r.ID, r.MatchField, r.MatchType, r.Pattern)}
		if c.m.err != nil {
			warn(r.ID, c.m.err)
		}
		set.suppressions = append(set.suppressions, c)
	}
	for _, r := range positives {
		if !r.Enabled {
			continue
		}
		c := compiledProgramRule{rule: r, m: newTextMatcher(r.ID, r.MatchField, r.MatchType, r.Pattern)}
		if c.m.err != nil {
			warn(r.ID, c.m.err)
		}
		set.positives = append(set.positives, c)
	}

	sort.SliceStable(set.suppressions, func(i, j int) bool {
		a, b := set.suppressions[i].rule, set.suppressions[j].rule
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.ID < b.ID
	})
	sort.SliceStable(set.positives, func(i, j int) bool {
		a, b := set.positives[i].rule, set.positives[j].rule
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.ID < b.ID
	})
	return set
}

// Malformed 编译失败的规则 id（抑制与正向规则混合）
func (s *ProgramRuleSet) Malformed() []uint64 { return s.malformed }

// Classify 黑名单 -> 抑制规则 -> 正向规则累加。纯函数，不访问存储。
func (s *ProgramRuleSet) Classify(rec Record) ClassificationResult {
	agency := strings.ToLower(rec.Agency)
	for _, b := range s.blacklist {
		if agency != "" && strings.Contains(agency, strings.ToLower(b.Pattern)) {
			reason := "agency blacklist: " + b.Pattern
			if b.Reason != "" {
				reason = b.Reason
			}
			return suppressed(reason)
		}
	}

	// 抑制规则先于正向规则，此时累计分数为 0，阈值规则只有负阈值才可能生效
	score := 0
	for _, c := range s.suppressions {
		if !c.m.match(rec) {
			continue
		}
		if c.rule.SuppressScoreThreshold != nil && score <= *c.rule.SuppressScoreThreshold {
			continue
		}
		return suppressed("suppression rule: " + c.rule.Label)
	}

	var lane, topic string
	reasons := make([]MatchReason, 0)
	for _, c := range s.positives {
		if !c.m.match(rec) {
			continue
		}
		score += c.rule.AddScore
		reasons = append(reasons, MatchReason{RuleID: c.rule.ID, Label: c.rule.Label, Contribution: c.rule.AddScore})
		if c.rule.ServiceLane != "" && (lane == "" || c.rule.Priority > 0) {
			lane = c.rule.ServiceLane
		}
		if c.rule.Topic != "" && (topic == "" || c.rule.Priority > 0) {
			topic = c.rule.Topic
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	out := ClassificationResult{
		RelevanceScore:  score,
		MatchConfidence: math.Min(1, float64(score)/confidenceFullScore),
		MatchReasons:    reasons,
	}
	if lane != "" {
		out.ServiceLane = &lane
	}
	if topic != "" {
		out.Topic = &topic
	}
	return out
}

func suppressed(reason string) ClassificationResult {
	return ClassificationResult{
		MatchReasons:     []MatchReason{},
		Suppressed:       true,
		SuppressedReason: &reason,
	}
}
