package service

import (
	"net/url"
	"strings"
)

// NormalizeAccountKey 统一账号 key：小写、去空白、邮箱取 @ 之后、URL 取 host、去掉 www. 前缀和端口
func NormalizeAccountKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return ""
	}
	if i := strings.LastIndex(key, "@"); i >= 0 {
		key = key[i+1:]
	}
	if strings.Contains(key, "://") {
		if u, err := url.Parse(key); err == nil {
			key = u.Host
		}
	}
	if i := strings.IndexAny(key, "/?#"); i >= 0 {
		key = key[:i]
	}
	if i := strings.LastIndex(key, ":"); i >= 0 {
		key = key[:i]
	}
	key = strings.TrimPrefix(key, "www.")
	return strings.Trim(key, ".")
}

// domainFilter 个人/免费邮箱域名集合
type domainFilter map[string]struct{}

func newDomainFilter(domains []string) domainFilter {
	f := make(domainFilter, len(domains))
	for _, d := range domains {
		if d = NormalizeAccountKey(d); d != "" {
			f[d] = struct{}{}
		}
	}
	return f
}

func (f domainFilter) isPersonal(domain string) bool {
	_, ok := f[domain]
	return ok
}
