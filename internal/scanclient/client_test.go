package scanclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, url string, retries int) *Client {
	t.Helper()
	c, err := New(Options{BaseURL: url, RetryMax: retries, RetryWaitMin: time.Millisecond, RetryWaitMax: 2 * time.Millisecond})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestFetchDecodesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/events" || r.URL.Query().Get("n") != "50" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"events":[{"pid":42,"process_name":"curl","laddr":"10.0.0.2:5000","raddr":"1.2.3.4:443","verdict":"RISK"}],"count":1}`))
	}))
	defer srv.Close()

	records, err := newTestClient(t, srv.URL, 0).Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(records) != 1 || records[0].ProcessName != "curl" || records[0].Verdict != "RISK" {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestFetchEmptyBodyIsNoRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	records, err := newTestClient(t, srv.URL, 0).Fetch(context.Background())
	if err != nil || len(records) != 0 {
		t.Fatalf("records=%v err=%v", records, err)
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[{"name":"Router","leak":false}]`))
	}))
	defer srv.Close()

	records, err := newTestClient(t, srv.URL, 3).Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(records) != 1 || hits.Load() != 3 {
		t.Fatalf("records=%d hits=%d", len(records), hits.Load())
	}
}

func TestFetchStatusIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, 0).Fetch(context.Background())
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("err=%v, want ErrTransport", err)
	}
	var te *TransportError
	if !errors.As(err, &te) || te.Status != http.StatusNotFound {
		t.Fatalf("expected status 404 transport error, got %v", err)
	}
}

func TestFetchNonJSONIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>gateway</html>`))
	}))
	defer srv.Close()

	if _, err := newTestClient(t, srv.URL, 0).Fetch(context.Background()); !errors.Is(err, ErrTransport) {
		t.Fatalf("err=%v, want ErrTransport", err)
	}
}

func TestFetchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if _, err := newTestClient(t, url, 0).Fetch(context.Background()); !errors.Is(err, ErrTransport) {
		t.Fatalf("err=%v, want ErrTransport", err)
	}
}

func TestFetchHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := newTestClient(t, srv.URL, 0).Fetch(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err=%v, want deadline exceeded", err)
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	for _, raw := range []string{"", "not a url", "/relative"} {
		if _, err := New(Options{BaseURL: raw}); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestEndpointJoinsPath(t *testing.T) {
	c, err := New(Options{BaseURL: "http://backend:8000/", Path: "api/devices"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if c.Endpoint() != "http://backend:8000/api/devices" {
		t.Fatalf("endpoint=%s", c.Endpoint())
	}
}
