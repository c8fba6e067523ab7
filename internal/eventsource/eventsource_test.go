package eventsource

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"IntentEngine/internal/config"
	"IntentEngine/internal/interfaces"
	"IntentEngine/internal/model"
	"IntentEngine/internal/repository"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestHTTPSourceFetchEvents(t *testing.T) {
	var gotAuth, gotDays, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotDays = r.URL.Query().Get("days")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[
			{"date":"2026-03-01","account_key":"acme.com","event_name":"page_view","content_type":"pricing","path":"/pricing","distinct_visitor_id":"v1","timestamp":"2026-03-01T10:00:00Z"},
			{"date":"2026-03-02","account_key":"acme.com","event_name":"demo_request","path":"/demo"},
			{"date":"bad","account_key":"acme.com","event_name":"page_view","path":"/"},
			{"date":"2026-03-02","account_key":"","event_name":"page_view","path":"/"}
		]`)
	}))
	defer srv.Close()

	src := NewHTTPSource(&config.EventSourceConfig{BaseURL: srv.URL + "/", Path: "/events/export", AuthToken: "secret", Timeout: 5}, quietLogger())
	rows, err := src.FetchEvents(context.Background(), 14)
	if err != nil {
		t.Fatalf("FetchEvents() error = %v", err)
	}
	if gotAuth != "Bearer secret" || gotDays != "14" || gotPath != "/events/export" {
		t.Errorf("request auth=%q days=%q path=%q", gotAuth, gotDays, gotPath)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].ContentType != "pricing" || rows[0].DistinctVisitorID != "v1" {
		t.Errorf("row[0] = %+v", rows[0])
	}
	want := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if !rows[1].Timestamp.Equal(want) {
		t.Errorf("date-only row timestamp = %v, want %v", rows[1].Timestamp, want)
	}
}

func TestHTTPSourceGzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		_ = json.NewEncoder(gz).Encode([]interfaces.EventRow{{AccountKey: "acme.com", EventName: "cta_click", Timestamp: time.Now().UTC()}})
		_ = gz.Close()
	}))
	defer srv.Close()

	rows, err := NewHTTPSource(&config.EventSourceConfig{BaseURL: srv.URL}, quietLogger()).FetchEvents(context.Background(), 30)
	if err != nil {
		t.Fatalf("FetchEvents() error = %v", err)
	}
	if len(rows) != 1 || rows[0].EventName != "cta_click" {
		t.Errorf("rows = %+v", rows)
	}
}

func TestHTTPSourceUnavailable(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "warehouse offline", http.StatusBadGateway)
	}))
	defer srv.Close()

	src := NewHTTPSource(&config.EventSourceConfig{BaseURL: srv.URL, RetryCount: 2}, quietLogger())
	_, err := src.FetchEvents(context.Background(), 30)
	if !errors.Is(err, interfaces.ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("calls = %d, want 3 (1 + 2 retries)", n)
	}
}

func TestHTTPSourceMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"not":"an array"`)
	}))
	defer srv.Close()

	_, err := NewHTTPSource(&config.EventSourceConfig{BaseURL: srv.URL}, quietLogger()).FetchEvents(context.Background(), 30)
	if !errors.Is(err, interfaces.ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}
}

func TestHTTPSourceNotConfigured(t *testing.T) {
	_, err := NewHTTPSource(&config.EventSourceConfig{}, quietLogger()).FetchEvents(context.Background(), 30)
	if !errors.Is(err, interfaces.ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}
}

func TestNewPrimary(t *testing.T) {
	src, err := NewPrimary(&config.EventSourceConfig{Kind: KindNone}, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := src.FetchEvents(context.Background(), 30); !errors.Is(err, interfaces.ErrSourceUnavailable) {
		t.Errorf("disabled source err = %v", err)
	}
	if _, err := NewPrimary(&config.EventSourceConfig{Kind: "bigquery"}, quietLogger()); err == nil {
		t.Error("expected error for unknown kind")
	}
	kinds := ListFactories()
	if len(kinds) < 2 || kinds[0] != KindHTTP || kinds[1] != KindNone {
		t.Errorf("ListFactories() = %v", kinds)
	}
}

type fakeSignalRepo struct {
	since   time.Time
	signals []*repository.SignalWithDomain
	err     error
}

func (f *fakeSignalRepo) Create(ctx context.Context, s *model.IntentSignal) error { return nil }

func (f *fakeSignalRepo) ListByAccountSince(ctx context.Context, accountID uint64, since time.Time) ([]*model.IntentSignal, error) {
	return nil, nil
}

func (f *fakeSignalRepo) ListSince(ctx context.Context, since time.Time) ([]*repository.SignalWithDomain, error) {
	f.since = since
	return f.signals, f.err
}

func TestSignalSource(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	occurred := now.Add(-48 * time.Hour)
	repo := &fakeSignalRepo{signals: []*repository.SignalWithDomain{{
		IntentSignal: model.IntentSignal{AccountID: 1, SignalType: "pricing_page_view", ServiceLane: "sales", Weight: 8, VisitorID: "v9", OccurredAt: occurred},
		Domain:       "acme.com",
	}}}
	rows, err := NewSignalSource(repo, func() time.Time { return now }).FetchEvents(context.Background(), 30)
	if err != nil {
		t.Fatal(err)
	}
	if !repo.since.Equal(now.AddDate(0, 0, -30)) {
		t.Errorf("since = %v", repo.since)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d", len(rows))
	}
	r := rows[0]
	if r.AccountKey != "acme.com" || r.EventName != "pricing_page_view" || r.Lane != "sales" || r.Weight == nil || *r.Weight != 8 {
		t.Errorf("row = %+v", r)
	}
	if r.Date != "2026-03-08" {
		t.Errorf("date = %s", r.Date)
	}

	repo.err = errors.New("db down")
	if _, err := NewSignalSource(repo, nil).FetchEvents(context.Background(), 30); !errors.Is(err, interfaces.ErrSourceUnavailable) {
		t.Errorf("err = %v, want ErrSourceUnavailable", err)
	}
}
