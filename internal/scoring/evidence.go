package scoring

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// 证据条数上限
const (
	WhyHotLimit   = 3
	EvidenceLimit = 6
)

const countPlaceholder = "{count}"

// eventLabels 已知事件 key 的展示文案
var eventLabels = map[string]string{
	"pricing_page_view":      "Viewed pricing page",
	"case_study_page_view":   "Read case studies",
	"docs_page_view":         "Browsed documentation",
	"integrations_page_view": "Explored integrations",
	"security_page_view":     "Reviewed security page",
	"careers_page_view":      "Visited careers page",
	"blog_page_view":         "Read blog posts",
	"page_view":              "Viewed site pages",
	"form_submit":            "Submitted a form",
	"demo_request":           "Requested a demo",
	"cta_click":              "Clicked a call-to-action",
	"webinar_register":       "Registered for a webinar",
	"content_download":       "Downloaded content",
	"email_click":            "Clicked an email link",
}

// EventKey 证据与计数使用的事件 key：page_view 带具体内容类型时为 "{content_type}_page_view"
func EventKey(eventName, contentType string) string {
	if eventName == EventPageView && contentType != "" && contentType != ContentTypeOther {
		return contentType + "_" + EventPageView
	}
	return eventName
}

// Humanize 未知 key 的兜底文案：下划线转空格、去首尾空白、单词首字母大写
func Humanize(key string) string {
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// Label 事件 key 的展示文案
func Label(key string) string {
	if l, ok := eventLabels[key]; ok {
		return l
	}
	return Humanize(key)
}

type keyCount struct {
	key   string
	count int
}

// BuildEvidence 按次数倒序取前 limit 条生成证据；次数相同按 key 字典序。
// templates 中含 {count} 的模板优先于通用文案。
func BuildEvidence(counts map[string]int, templates map[string]string, limit int) []string {
	if limit <= 0 || len(counts) == 0 {
		return []string{}
	}
	sorted := make([]keyCount, 0, len(counts))
	for k, c := range counts {
		if c <= 0 {
			continue
		}
		sorted = append(sorted, keyCount{key: k, count: c})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].count != sorted[j].count {
			return sorted[i].count > sorted[j].count
		}
		return sorted[i].key < sorted[j].key
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	out := make([]string, 0, len(sorted))
	for _, kc := range sorted {
		if tpl, ok := templates[kc.key]; ok && strings.Contains(tpl, countPlaceholder) {
			out = append(out, strings.ReplaceAll(tpl, countPlaceholder, strconv.Itoa(kc.count)))
			continue
		}
		out = append(out, fmt.Sprintf("%s (%dx)", Label(kc.key), kc.count))
	}
	return out
}
