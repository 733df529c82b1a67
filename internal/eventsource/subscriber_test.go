package eventsource

import (
	"context"
	"errors"
	"testing"

	"github.com/go-logr/logr"
	"github.com/nats-io/nats.go"

	"github.com/example/leakwatch/internal/model"
)

type collector struct {
	events []model.LiveEvent
}

func (c *collector) handle(_ context.Context, ev model.LiveEvent) error {
	c.events = append(c.events, ev)
	return nil
}

func newTestSubscriber(t *testing.T, c *collector) *Subscriber {
	t.Helper()
	s, err := NewSubscriber(nil, Options{DedupeSize: 8}, c.handle, nil, logr.Discard())
	if err != nil {
		t.Fatalf("new subscriber: %v", err)
	}
	return s
}

func TestDecode(t *testing.T) {
	ev, err := Decode([]byte(`{"id":"e1","eventType":"dns","details":"risky lookup","timestamp":1700000000}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.ID != "e1" || ev.EventType != "dns" || ev.Details != "risky lookup" || ev.Timestamp != "1700000000" {
		t.Fatalf("unexpected event: %+v", ev)
	}

	ev, err = Decode([]byte(`{"details":"secure"}`))
	if err != nil || ev.ID == "" {
		t.Fatalf("expected generated id, got %+v (err=%v)", ev, err)
	}

	for _, raw := range []string{"", "[]", "nope", `{"details":`} {
		if _, err := Decode([]byte(raw)); !errors.Is(err, ErrInvalidEvent) {
			t.Fatalf("Decode(%q) err=%v, want ErrInvalidEvent", raw, err)
		}
	}
}

func TestHandleMsgDeliversAndDedupes(t *testing.T) {
	c := &collector{}
	s := newTestSubscriber(t, c)

	msg := &nats.Msg{Subject: DefaultSubject, Data: []byte(`{"id":"a","event_type":"http","details":"warning"}`)}
	s.handleMsg(msg)
	s.handleMsg(msg)
	if len(c.events) != 1 {
		t.Fatalf("events=%d, want 1 after redelivery", len(c.events))
	}

	hdr := nats.Header{}
	hdr.Set(nats.MsgIdHdr, "msg-7")
	s.handleMsg(&nats.Msg{Subject: DefaultSubject, Header: hdr, Data: []byte(`{"event_type":"tls"}`)})
	s.handleMsg(&nats.Msg{Subject: DefaultSubject, Header: hdr, Data: []byte(`{"event_type":"tls"}`)})
	if len(c.events) != 2 || c.events[1].ID != "msg-7" {
		t.Fatalf("unexpected events: %+v", c.events)
	}
}

func TestHandleMsgDropsInvalidPayloads(t *testing.T) {
	c := &collector{}
	s := newTestSubscriber(t, c)
	s.handleMsg(&nats.Msg{Subject: DefaultSubject, Data: []byte("not json")})
	if len(c.events) != 0 {
		t.Fatalf("invalid payload reached the handler")
	}
}

func TestEventsWithoutIDAreNotMerged(t *testing.T) {
	c := &collector{}
	s := newTestSubscriber(t, c)
	payload := []byte(`{"event_type":"dns","details":"secure"}`)
	s.handleMsg(&nats.Msg{Data: payload})
	s.handleMsg(&nats.Msg{Data: payload})
	if len(c.events) != 2 {
		t.Fatalf("events=%d, want 2", len(c.events))
	}
}

func TestNewSubscriberRequiresHandler(t *testing.T) {
	if _, err := NewSubscriber(nil, Options{}, nil, nil, logr.Discard()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRunWithoutConnection(t *testing.T) {
	s := newTestSubscriber(t, &collector{})
	if err := s.Run(context.Background()); err == nil {
		t.Fatalf("expected error without a connection")
	}
}
