// Package bus mirrors every session event onto a NATS JetStream stream so other
// processes can consume the game timeline.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/scatter/go/internal/events"
)

// JetStreamConfig configures the connection and the events stream.
type JetStreamConfig struct {
	URL             string
	StreamName      string
	SubjectPrefix   string
	MaxReconnects   int
	ReconnectWait   time.Duration
	MaxAge          time.Duration
	MaxMsgs         int64
	Replicas        int
	DuplicateWindow time.Duration
	MaxPending      int
	StallWait       time.Duration
}

func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:             nats.DefaultURL,
		StreamName:      "GAME_EVENTS",
		SubjectPrefix:   "game.events",
		MaxReconnects:   -1,
		ReconnectWait:   2 * time.Second,
		MaxAge:          24 * time.Hour,
		MaxMsgs:         -1,
		Replicas:        1,
		DuplicateWindow: 2 * time.Minute,
		MaxPending:      4096,
		StallWait:       50 * time.Millisecond,
	}
}

// asyncPublisher is the part of jetstream.JetStream used for publishing.
type asyncPublisher interface {
	PublishMsgAsync(msg *nats.Msg, opts ...jetstream.PublishOpt) (jetstream.PubAckFuture, error)
}

// JetStreamPublisher implements events.Publisher on top of JetStream.
type JetStreamPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	pub    asyncPublisher
	config JetStreamConfig
}

var _ events.Publisher = (*JetStreamPublisher)(nil)

func NewJetStreamPublisher(ctx context.Context, cfg JetStreamConfig) (*JetStreamPublisher, error) {
	opts := []nats.Option{
		nats.Name("scatter"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc,
		jetstream.WithPublishAsyncMaxPending(cfg.MaxPending),
		jetstream.WithPublishAsyncErrHandler(func(_ jetstream.JetStream, msg *nats.Msg, err error) {
			log.Error().Err(err).Str("subject", msg.Subject).Msg("JetStream publish failed")
		}),
	)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	p := &JetStreamPublisher{nc: nc, js: js, pub: js, config: cfg}
	if err := p.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}
	return p, nil
}

func (p *JetStreamPublisher) streamConfig() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        p.config.StreamName,
		Description: "Game session events",
		Subjects:    []string{p.config.SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      p.config.MaxAge,
		MaxMsgs:     p.config.MaxMsgs,
		Storage:     jetstream.FileStorage,
		Replicas:    p.config.Replicas,
		Duplicates:  p.config.DuplicateWindow,
	}
}

func (p *JetStreamPublisher) ensureStream(ctx context.Context) error {
	sc := p.streamConfig()

	stream, err := p.js.Stream(ctx, sc.Name)
	if err != nil {
		if _, err = p.js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		log.Info().Str("stream", sc.Name).Msg("created JetStream stream")
		return nil
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("get stream info: %w", err)
	}
	if !isStreamConfigEqual(info.Config, sc) {
		if _, err = p.js.UpdateStream(ctx, sc); err != nil {
			return fmt.Errorf("update stream: %w", err)
		}
		log.Info().Str("stream", sc.Name).Msg("updated JetStream stream")
	}
	return nil
}

// Publish hands ev to JetStream without waiting for the ack. Failures are logged
// by the async error handler or here when the pending window is full.
func (p *JetStreamPublisher) Publish(_ context.Context, ev *events.Event) {
	msg, err := newMsg(p.config.SubjectPrefix, ev)
	if err != nil {
		log.Error().Err(err).Str("event_id", ev.ID).Msg("failed to encode event")
		return
	}

	_, err = p.pub.PublishMsgAsync(msg,
		jetstream.WithMsgID(ev.ID),
		jetstream.WithExpectStream(p.config.StreamName),
		jetstream.WithStallWait(p.config.StallWait),
	)
	if err != nil {
		log.Warn().
			Err(err).
			Str("subject", msg.Subject).
			Str("event_id", ev.ID).
			Msg("dropping event for JetStream")
		return
	}

	log.Debug().Str("subject", msg.Subject).Str("event_id", ev.ID).Msg("queued for JetStream")
}

// Close waits up to timeout for pending acks and closes the connection.
func (p *JetStreamPublisher) Close(timeout time.Duration) {
	if p.js != nil {
		select {
		case <-p.js.PublishAsyncComplete():
		case <-time.After(timeout):
			log.Warn().Int("pending", p.js.PublishAsyncPending()).Msg("closing NATS with unacknowledged events")
		}
	}
	if p.nc != nil {
		p.nc.Close()
	}
}

// Subject returns the subject an event is published on:
// <prefix>.<pin>.<type>.
func Subject(prefix string, ev *events.Event) string {
	return prefix + "." + strconv.Itoa(ev.SessionPin) + "." + string(ev.Type)
}

func newMsg(prefix string, ev *events.Event) (*nats.Msg, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return &nats.Msg{
		Subject: Subject(prefix, ev),
		Data:    data,
		Header: nats.Header{
			"Event-Type":  []string{string(ev.Type)},
			"Session-Pin": []string{strconv.Itoa(ev.SessionPin)},
			"Event-ID":    []string{ev.ID},
		},
	}, nil
}

func isStreamConfigEqual(a, b jetstream.StreamConfig) bool {
	return a.Name == b.Name &&
		a.MaxAge == b.MaxAge &&
		a.MaxMsgs == b.MaxMsgs &&
		a.Replicas == b.Replicas &&
		a.Duplicates == b.Duplicates
}
