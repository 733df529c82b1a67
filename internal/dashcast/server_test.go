package dashcast

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"

	"github.com/example/leakwatch/internal/alertstore"
	"github.com/example/leakwatch/internal/anim"
	"github.com/example/leakwatch/internal/dashboard"
	"github.com/example/leakwatch/internal/feed"
	"github.com/example/leakwatch/internal/model"
	"github.com/example/leakwatch/internal/render"
)

type fakeScanner struct {
	starts atomic.Int32
}

func (f *fakeScanner) StartScan()             { f.starts.Add(1) }
func (f *fakeScanner) State() dashboard.State { return dashboard.StateResults }
func (f *fakeScanner) Generation() uint64     { return uint64(f.starts.Load()) }

type fakeAlerts struct {
	alerts []alertstore.Alert
	err    error
	n      int
}

func (f *fakeAlerts) Recent(_ context.Context, n int) ([]alertstore.Alert, error) {
	f.n = n
	return f.alerts, f.err
}

func waitForCondition(t *testing.T, ok func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-deadline:
			t.Fatalf("condition not met before timeout")
		case <-ticker.C:
			if ok() {
				return
			}
		}
	}
}

func decodeEnvelope(t *testing.T, raw []byte) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func TestHubBroadcastDeliversMessages(t *testing.T) {
	h := newHub(logr.Discard(), nil)
	c := &client{send: make(chan []byte, 1), logger: logr.Discard()}
	h.Register(c)

	h.Broadcast([]byte("hello"))
	select {
	case got := <-c.send:
		if string(got) != "hello" {
			t.Fatalf("unexpected payload: %q", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for broadcast")
	}
}

func TestHubBroadcastDropsSlowClients(t *testing.T) {
	h := newHub(logr.Discard(), nil)
	c := &client{send: make(chan []byte, 1), logger: logr.Discard()}
	h.Register(c)
	c.send <- []byte("backlog")

	h.Broadcast([]byte("next"))
	waitForCondition(t, func() bool { return h.Len() == 0 })
}

func TestJoinSendsSnapshotThenChanges(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0"})
	s.SeedFeed([]feed.Entry{{Event: model.LiveEvent{ID: "old"}, Fragment: render.Fragment{ID: "old", Title: "dns", Severity: model.SeveritySecure}}})
	s.SetScanEnabled(false)
	s.ShowScanning(render.ScanningView())

	c := &client{send: make(chan []byte, 8), logger: logr.Discard()}
	if err := s.join(c); err != nil {
		t.Fatalf("join: %v", err)
	}
	snap := decodeEnvelope(t, <-c.send)
	if snap.Type != msgSnapshot || snap.View == nil || snap.View.Mode != render.ModeScanning {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.Enabled == nil || *snap.Enabled {
		t.Fatalf("snapshot must carry the hidden scan action")
	}
	if len(snap.Feed) != 1 || snap.Feed[0].ID != "old" {
		t.Fatalf("snapshot feed=%+v", snap.Feed)
	}

	ev := model.LiveEvent{ID: "new", EventType: "http", Details: "<b>risky</b>"}
	if err := s.Prepend(context.Background(), feed.Entry{Event: ev, Fragment: render.Event(ev, render.Options{})}); err != nil {
		t.Fatalf("prepend: %v", err)
	}
	msg := decodeEnvelope(t, <-c.send)
	if msg.Type != msgFeed || len(msg.Feed) != 1 || msg.Feed[0].Severity != "risky" {
		t.Fatalf("unexpected feed message: %+v", msg)
	}
	if strings.Contains(msg.Feed[0].HTML, "<b>") {
		t.Fatalf("feed markup not escaped: %s", msg.Feed[0].HTML)
	}

	s.ShowView(render.Results(nil, dashboard.MessageUnreachable, render.Options{}))
	msg = decodeEnvelope(t, <-c.send)
	if msg.Type != msgView || msg.View.Error != dashboard.MessageUnreachable {
		t.Fatalf("unexpected view message: %+v", msg)
	}
}

func TestDrawSendsQuantizedFrames(t *testing.T) {
	s := New(Config{})
	c := &client{send: make(chan []byte, 4), logger: logr.Discard()}
	s.hub.Register(c)

	frame := anim.Frame{Seq: 3, Width: 12, Height: 6, Gap: 6, Colour: anim.Colour, Cells: []anim.FrameCell{
		{X: 0, Y: 0, Size: 4, Alpha: 0},
		{X: 6, Y: 0, Size: 4, Alpha: 1},
	}}
	if err := s.Draw(frame); err != nil {
		t.Fatalf("draw: %v", err)
	}
	msg := decodeEnvelope(t, <-c.send)
	if msg.Frame == nil || msg.Frame.Seq != 3 || msg.Frame.Size != 4 {
		t.Fatalf("unexpected frame: %+v", msg.Frame)
	}
	if got := msg.Frame.Alpha; len(got) != 2 || got[0] != 0 || got[1] != 255 {
		t.Fatalf("alpha=%v", got)
	}
}

func TestResizeBoundsCanvas(t *testing.T) {
	s := New(Config{})
	if w, h := s.Size(); w != defaultCanvasWidth || h != defaultCanvasHeight {
		t.Fatalf("default size %dx%d", w, h)
	}
	s.handleClientMessage([]byte(`{"type":"resize","width":640,"height":300}`))
	if w, h := s.Size(); w != 640 || h != 300 {
		t.Fatalf("size %dx%d, want 640x300", w, h)
	}
	s.handleClientMessage([]byte(`{"type":"resize","width":0,"height":300}`))
	s.handleClientMessage([]byte(`not json`))
	if w, _ := s.Size(); w != 640 {
		t.Fatalf("invalid resize applied")
	}
	s.handleClientMessage([]byte(`{"type":"resize","width":100000,"height":10}`))
	if w, _ := s.Size(); w != maxCanvasSide {
		t.Fatalf("width=%d, want clamp to %d", w, maxCanvasSide)
	}
}

func TestScanEndpointHonoursAction(t *testing.T) {
	s := New(Config{})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	post := func() int {
		resp, err := http.Post(srv.URL+"/api/scan", "application/json", nil)
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}
	if code := post(); code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d without scanner", code)
	}

	sc := &fakeScanner{}
	s.SetScanner(sc)
	if code := post(); code != http.StatusConflict {
		t.Fatalf("status=%d while action hidden", code)
	}
	s.SetScanEnabled(true)
	if code := post(); code != http.StatusAccepted {
		t.Fatalf("status=%d, want 202", code)
	}
	if sc.starts.Load() != 1 {
		t.Fatalf("starts=%d, want 1", sc.starts.Load())
	}

	resp, err := http.Get(srv.URL + "/api/scan")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET status=%d", resp.StatusCode)
	}
}

func TestFeedEndpointIngests(t *testing.T) {
	var mu sync.Mutex
	var got []model.LiveEvent
	s := New(Config{Ingest: func(_ context.Context, ev model.LiveEvent) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev)
		return nil
	}})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/feed", "application/json", strings.NewReader(`{"event_type":"dns","details":"risky"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	var body map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted || body["id"] == "" {
		t.Fatalf("status=%d body=%v", resp.StatusCode, body)
	}

	resp, err = http.Post(srv.URL+"/api/feed", "application/json", strings.NewReader(`nope`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d for invalid event", resp.StatusCode)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0].EventType != "dns" {
		t.Fatalf("ingested=%+v", got)
	}
}

func TestAlertsEndpoint(t *testing.T) {
	alerts := &fakeAlerts{alerts: []alertstore.Alert{{ID: "a", EventType: "dns", Severity: model.SeverityRisky}}}
	s := New(Config{Alerts: alerts})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/alerts?n=5")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var got []alertstore.Alert
	_ = json.NewDecoder(resp.Body).Decode(&got)
	resp.Body.Close()
	if len(got) != 1 || got[0].ID != "a" || alerts.n != 5 {
		t.Fatalf("alerts=%+v n=%d", got, alerts.n)
	}

	alerts.err = errors.New("disk gone")
	resp, err = http.Get(srv.URL + "/api/alerts")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError || alerts.n != alertstore.DefaultRecent {
		t.Fatalf("status=%d n=%d", resp.StatusCode, alerts.n)
	}
}

func TestStateAndHealth(t *testing.T) {
	s := New(Config{})
	s.SetScanner(&fakeScanner{})
	s.SetScanEnabled(true)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/state")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var st stateResponse
	_ = json.NewDecoder(resp.Body).Decode(&st)
	resp.Body.Close()
	if st.State != "results" || !st.ScanEnabled {
		t.Fatalf("state=%+v", st)
	}

	resp, err = http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status=%d", resp.StatusCode)
	}
}

func TestIndexEscapesTitle(t *testing.T) {
	s := New(Config{Title: `<script>x</script>`})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	body := rec.Body.String()
	if strings.Contains(body, "<script>x</script>") || !strings.Contains(body, "&lt;script&gt;x&lt;/script&gt;") {
		t.Fatalf("title not escaped")
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d for unknown path", rec.Code)
	}
}

func TestWebSocketStream(t *testing.T) {
	s := New(Config{})
	sc := &fakeScanner{}
	s.SetScanner(sc)
	s.SetScanEnabled(true)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if env := decodeEnvelope(t, raw); env.Type != msgSnapshot || env.Enabled == nil || !*env.Enabled {
		t.Fatalf("unexpected first message: %s", raw)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"scan"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitForCondition(t, func() bool { return sc.starts.Load() == 1 })

	s.ShowScanning(render.ScanningView())
	_, raw, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("read view: %v", err)
	}
	if env := decodeEnvelope(t, raw); env.Type != msgView || env.View.Mode != render.ModeScanning {
		t.Fatalf("unexpected view message: %s", raw)
	}
}
