package eventsource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"IntentEngine/internal/config"
	"IntentEngine/internal/interfaces"
	"IntentEngine/internal/utils/httpclient"

	"github.com/sirupsen/logrus"
)

// 事件源类型
const (
	KindHTTP = "http"
	KindNone = "none"
)

const (
	dateLayout   = "2006-01-02"
	maxErrorBody = 512
)

func init() {
	Register(KindHTTP, NewHTTPSource)
	Register(KindNone, NewDisabledSource)
}

// HTTPSource 分析仓库的导出接口：GET {base_url}{path}?days=N，返回 EventRow 数组
type HTTPSource struct {
	cfg        *config.EventSourceConfig
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewHTTPSource(cfg *config.EventSourceConfig, logger *logrus.Logger) interfaces.EventSource {
	return &HTTPSource{
		cfg:        cfg,
		httpClient: httpclient.NewHTTPClient(cfg, logger),
		logger:     logger,
	}
}

func (s *HTTPSource) Name() string { return "primary" }

func (s *HTTPSource) FetchEvents(ctx context.Context, rangeDays int) ([]*interfaces.EventRow, error) {
	if s.cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base_url 未配置", interfaces.ErrSourceUnavailable)
	}
	endpoint, err := url.Parse(strings.TrimRight(s.cfg.BaseURL, "/") + s.cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: 地址非法: %v", interfaces.ErrSourceUnavailable, err)
	}
	q := endpoint.Query()
	q.Set("days", strconv.Itoa(rangeDays))
	endpoint.RawQuery = q.Encode()

	attempts := s.cfg.RetryCount + 1
	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", interfaces.ErrSourceUnavailable, err)
		}
		rows, err := s.fetchOnce(ctx, endpoint.String())
		if err == nil {
			s.logger.WithFields(logrus.Fields{"rows": len(rows), "days": rangeDays}).Info("主事件源拉取成功")
			return rows, nil
		}
		lastErr = err
		s.logger.WithError(err).WithField("attempt", i+1).Warn("主事件源拉取失败")
	}
	return nil, fmt.Errorf("%w: %v", interfaces.ErrSourceUnavailable, lastErr)
}

func (s *HTTPSource) fetchOnce(ctx context.Context, endpoint string) ([]*interfaces.EventRow, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求事件源失败: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			s.logger.WithError(err).Warn("关闭事件源响应体失败")
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("事件源返回 %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var rows []*interfaces.EventRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("解析事件源响应失败: %w", err)
	}
	return normalizeRows(rows, s.logger), nil
}

// normalizeRows 补全时间戳（只有 date 时取当天 0 点 UTC），丢弃无法定位账号或时间的行
func normalizeRows(rows []*interfaces.EventRow, logger *logrus.Logger) []*interfaces.EventRow {
	out := rows[:0]
	for _, r := range rows {
		if r == nil || r.AccountKey == "" || r.EventName == "" {
			continue
		}
		if r.Timestamp.IsZero() {
			t, err := time.Parse(dateLayout, r.Date)
			if err != nil {
				logger.WithFields(logrus.Fields{"account_key": r.AccountKey, "date": r.Date}).Warn("事件缺少时间戳，已跳过")
				continue
			}
			r.Timestamp = t
		}
		out = append(out, r)
	}
	return out
}

// DisabledSource 未配置主事件源时使用，总是不可用，任务直接走二级事件源
type DisabledSource struct{}

func NewDisabledSource(_ *config.EventSourceConfig, _ *logrus.Logger) interfaces.EventSource {
	return DisabledSource{}
}

func (DisabledSource) Name() string { return "primary" }

func (DisabledSource) FetchEvents(context.Context, int) ([]*interfaces.EventRow, error) {
	return nil, fmt.Errorf("%w: 主事件源已禁用", interfaces.ErrSourceUnavailable)
}
