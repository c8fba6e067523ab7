package httpclient

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/url"
	"time"

	"IntentEngine/internal/config"

	"github.com/sirupsen/logrus"
)

const defaultTimeout = 30 * time.Second

// NewHTTPClient 事件源共用的 HTTP 客户端：代理、超时、Bearer 鉴权、gzip 解压
func NewHTTPClient(cfg *config.EventSourceConfig, logger *logrus.Logger) *http.Client {
	base := &http.Transport{
		MaxIdleConns:        100,
		IdleConnTimeout:     30 * time.Second,
		DisableCompression:  true,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			logger.WithError(err).WithField("proxy", cfg.Proxy).Warn("代理地址解析失败，将不使用代理")
		} else {
			base.Proxy = http.ProxyURL(proxyURL)
			logger.WithField("proxy", cfg.Proxy).Info("事件源客户端已配置代理")
		}
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &eventSourceTransport{
			next:   base,
			token:  cfg.AuthToken,
			logger: logger,
		},
	}
}

// eventSourceTransport 统一补请求头；标准库的透明解压已关闭，这里自己声明并处理 gzip
type eventSourceTransport struct {
	next   http.RoundTripper
	token  string
	logger *logrus.Logger
}

func (t *eventSourceTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTripper 不能改调用方的请求
	req = req.Clone(req.Context())
	req.Header.Set("Accept-Encoding", "gzip")
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if t.token != "" && req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	t.logger.WithFields(logrus.Fields{
		"host":    req.URL.Host,
		"status":  resp.StatusCode,
		"elapsed": time.Since(start).String(),
	}).Debug("事件源请求完成")

	if resp.Header.Get("Content-Encoding") != "gzip" {
		return resp, nil
	}
	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		t.logger.WithError(err).Warn("gzip解压失败，返回原始响应")
		return resp, nil
	}
	resp.Body = &gzipBody{Reader: gz, raw: resp.Body}
	resp.Header.Del("Content-Encoding")
	resp.ContentLength = -1
	return resp, nil
}

type gzipBody struct {
	*gzip.Reader
	raw io.ReadCloser
}

// Close gzip reader 和原始响应体都要关
func (b *gzipBody) Close() error {
	gzErr := b.Reader.Close()
	if err := b.raw.Close(); err != nil {
		return err
	}
	return gzErr
}
