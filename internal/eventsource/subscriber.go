// File: internal/eventsource/subscriber.go
// Brief: NATS subscriber that feeds decoded live events into a handler.

// Package eventsource receives pushed live events. Messages arrive on a NATS
// subject, are decoded leniently and de-duplicated by message id before they
// reach the feed.
package eventsource

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"github.com/example/leakwatch/internal/metrics"
	"github.com/example/leakwatch/internal/model"
)

const (
	DefaultSubject    = "leakwatch.events"
	DefaultDedupeSize = 4096
)

// Handler consumes a decoded event.
type Handler func(ctx context.Context, ev model.LiveEvent) error

// Options configure a Subscriber.
type Options struct {
	Subject string
	// Queue joins a queue group when set.
	Queue      string
	DedupeSize int
}

// Subscriber delivers NATS messages to a Handler.
type Subscriber struct {
	nc      *nats.Conn
	opts    Options
	handler Handler
	logger  logr.Logger
	metrics *metrics.Metrics
	seen    *lru.Cache[string, struct{}]

	// ctx is the Run context; handlers use it for back-pressure.
	ctx context.Context
}

// NewSubscriber prepares a subscriber; nc may be nil in tests that drive
// messages directly.
func NewSubscriber(nc *nats.Conn, opts Options, handler Handler, m *metrics.Metrics, logger logr.Logger) (*Subscriber, error) {
	if handler == nil {
		return nil, errors.New("eventsource: handler is required")
	}
	if opts.Subject == "" {
		opts.Subject = DefaultSubject
	}
	if opts.DedupeSize <= 0 {
		opts.DedupeSize = DefaultDedupeSize
	}
	seen, err := lru.New[string, struct{}](opts.DedupeSize)
	if err != nil {
		return nil, errors.Wrap(err, "eventsource: dedupe cache")
	}
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}
	return &Subscriber{
		nc:      nc,
		opts:    opts,
		handler: handler,
		logger:  logger,
		metrics: m,
		seen:    seen,
		ctx:     context.Background(),
	}, nil
}

// Connect dials NATS with reconnect logging.
func Connect(url string, logger logr.Logger) (*nats.Conn, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url,
		nats.Name("leakwatch"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Info("nats disconnected", "err", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "connect to nats at %s", url)
	}
	return nc, nil
}

// Run subscribes and blocks until ctx is done, then drains the subscription.
func (s *Subscriber) Run(ctx context.Context) error {
	if s.nc == nil {
		return errors.New("eventsource: no nats connection")
	}
	s.ctx = ctx
	var (
		sub *nats.Subscription
		err error
	)
	if s.opts.Queue != "" {
		sub, err = s.nc.QueueSubscribe(s.opts.Subject, s.opts.Queue, s.handleMsg)
	} else {
		sub, err = s.nc.Subscribe(s.opts.Subject, s.handleMsg)
	}
	if err != nil {
		return errors.Wrapf(err, "subscribe %s", s.opts.Subject)
	}
	s.logger.Info("subscribed to live events", "subject", s.opts.Subject, "queue", s.opts.Queue)

	<-ctx.Done()
	if err := sub.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return errors.Wrap(err, "drain subscription")
	}
	s.logger.V(1).Info("live event subscription drained", "subject", s.opts.Subject)
	return nil
}

func (s *Subscriber) handleMsg(msg *nats.Msg) {
	ev, err := Decode(msg.Data)
	if err != nil {
		s.metrics.IncInvalidEvents()
		s.logger.V(1).Info("dropping undecodable live event", "subject", msg.Subject, "bytes", len(msg.Data))
		return
	}
	if id := messageID(msg); id != "" {
		ev.ID = id
	}
	if s.seen.Contains(ev.ID) {
		s.metrics.IncDuplicateEvents()
		s.logger.V(1).Info("duplicate live event", "id", ev.ID)
		return
	}
	s.seen.Add(ev.ID, struct{}{})
	if err := s.handler(s.ctx, ev); err != nil {
		s.logger.Error(err, "live event not delivered", "id", ev.ID)
	}
}

func messageID(msg *nats.Msg) string {
	if msg.Header == nil {
		return ""
	}
	return msg.Header.Get(nats.MsgIdHdr)
}
