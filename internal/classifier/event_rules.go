package classifier

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"IntentEngine/internal/model"
	"IntentEngine/internal/scoring"

	"github.com/sirupsen/logrus"
)

// ErrMalformedRule 规则无法求值（正则非法、match_type 未知）；该规则按不命中处理
var ErrMalformedRule = errors.New("malformed rule")

// 事件规则匹配方式
const (
	MatchPathPrefix = "path_prefix"
	MatchContains   = "contains"
	MatchEquals     = "equals"
	MatchPathRegex  = "path_regex"
)

const wildcardMarker = "*"

// EventClass 事件分类结果，未命中任何规则时 content_type/lane 均为 other
type EventClass struct {
	ContentType    string
	Lane           string
	WeightOverride *float64
	RuleID         uint64 // 0 表示未命中
}

type compiledEventRule struct {
	rule  model.EventRule
	value string
	re    *regexp.Regexp
	err   error
}

// EventRuleSet 按 priority 升序排好、已预编译的事件规则，可并发只读使用
type EventRuleSet struct {
	rules     []compiledEventRule
	templates map[string]string
	malformed []uint64
}

// NewEventRuleSet 过滤禁用规则，按 priority 升序（同 priority 按 id）排序并预编译。
// 编译失败的规则保留在列表里但永远不命中，并记一条 Warn。
func NewEventRuleSet(rules []model.EventRule, logger *logrus.Logger) *EventRuleSet {
	set := &EventRuleSet{templates: make(map[string]string)}
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		c := compiledEventRule{rule: r, value: strings.ToLower(r.MatchValue)}
		switch r.MatchType {
		case MatchPathPrefix, MatchContains, MatchEquals:
		case MatchPathRegex:
			re, err := regexp.Compile("(?i)" + r.MatchValue)
			if err != nil {
				c.err = fmt.Errorf("%w: rule %d regex %q: %v", ErrMalformedRule, r.ID, r.MatchValue, err)
			}
			c.re = re
		default:
			c.err = fmt.Errorf("%w: rule %d unknown match_type %q", ErrMalformedRule, r.ID, r.MatchType)
		}
		if c.err != nil {
			set.malformed = append(set.malformed, r.ID)
			if logger != nil {
				logger.WithError(c.err).WithField("rule_id", r.ID).Warn("事件规则无法编译，按不命中处理")
			}
		}
		set.rules = append(set.rules, c)
	}
	sort.SliceStable(set.rules, func(i, j int) bool {
		if set.rules[i].rule.Priority != set.rules[j].rule.Priority {
			return set.rules[i].rule.Priority < set.rules[j].rule.Priority
		}
		return set.rules[i].rule.ID < set.rules[j].rule.ID
	})

	// 证据模板：规则产出的事件 key -> 模板，priority 小的优先
	for _, c := range set.rules {
		if c.rule.EvidenceTemplate == "" || c.err != nil {
			continue
		}
		key := scoring.EventKey(eventNameForKey(c.rule.EventName), c.rule.ContentType)
		if _, exists := set.templates[key]; !exists {
			set.templates[key] = c.rule.EvidenceTemplate
		}
	}
	return set
}

// eventNameForKey 通配规则没有确定的事件名，按 page_view 计
func eventNameForKey(name string) string {
	if strings.Contains(name, wildcardMarker) {
		return scoring.EventPageView
	}
	return name
}

// Len 有效规则数
func (s *EventRuleSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

// Malformed 编译失败的规则 id
func (s *EventRuleSet) Malformed() []uint64 { return s.malformed }

// EvidenceTemplates 事件 key -> 证据模板
func (s *EventRuleSet) EvidenceTemplates() map[string]string { return s.templates }

// Classify 首个命中的规则生效；匹配对 path 与 match_value 都不区分大小写
func (s *EventRuleSet) Classify(path, eventName string) EventClass {
	if s == nil {
		return EventClass{ContentType: scoring.ContentTypeOther, Lane: scoring.LaneOther}
	}
	lowerPath := strings.ToLower(path)
	for _, c := range s.rules {
		if c.err != nil {
			continue
		}
		if c.rule.EventName != eventName && !strings.Contains(c.rule.EventName, wildcardMarker) {
			continue
		}
		if !c.matches(lowerPath) {
			continue
		}
		out := EventClass{
			ContentType: orDefault(c.rule.ContentType, scoring.ContentTypeOther),
			Lane:        orDefault(c.rule.Lane, scoring.LaneOther),
			RuleID:      c.rule.ID,
		}
		if c.rule.WeightOverride != nil {
			w := float64(*c.rule.WeightOverride)
			out.WeightOverride = &w
		}
		return out
	}
	return EventClass{ContentType: scoring.ContentTypeOther, Lane: scoring.LaneOther}
}

func (c compiledEventRule) matches(lowerPath string) bool {
	switch c.rule.MatchType {
	case MatchPathPrefix:
		return strings.HasPrefix(lowerPath, c.value)
	case MatchContains:
		return strings.Contains(lowerPath, c.value)
	case MatchEquals:
		return lowerPath == c.value
	case MatchPathRegex:
		return c.re != nil && c.re.MatchString(lowerPath)
	}
	return false
}

// PathFromURL 从完整 URL 取 path；本身就是 path 或解析失败时原样返回
func PathFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.Path == "" {
		return "/"
	}
	return u.Path
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
