// Package bidi speaks the Gemini Live BidiGenerateContent protocol directly
// over a websocket, without the SDK.
package bidi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"ai-voice-tutor/internal/observability/metrics"
	"ai-voice-tutor/internal/service/codec"
	"ai-voice-tutor/internal/service/live"
)

const (
	transport = "websocket"

	// DefaultEndpoint is the public Gemini Live websocket endpoint.
	DefaultEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	writeTimeout = 10 * time.Second
)

// Dialer implements live.Dialer over a raw websocket.
type Dialer struct {
	endpoint string
	apiKey   string
	queueLen int
	logger   zerolog.Logger
	metrics  *metrics.Metrics

	// HandshakeTimeout bounds the websocket upgrade.
	HandshakeTimeout time.Duration
}

// New creates a websocket dialer. An empty endpoint selects DefaultEndpoint.
func New(endpoint, apiKey string, logger zerolog.Logger) *Dialer {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Dialer{
		endpoint:         endpoint,
		apiKey:           apiKey,
		queueLen:         live.DefaultQueueLen,
		logger:           logger.With().Str("transport", transport).Logger(),
		metrics:          metrics.DefaultMetrics,
		HandshakeTimeout: 15 * time.Second,
	}
}

func (d *Dialer) url() (string, error) {
	u, err := url.Parse(d.endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	if d.apiKey != "" {
		q := u.Query()
		q.Set("key", d.apiKey)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// WithQueueLen sets how many outbound frames may wait for the writer.
func (d *Dialer) WithQueueLen(n int) *Dialer {
	if n > 0 {
		d.queueLen = n
	}
	return d
}

// Connect dials the endpoint and sends the setup message. OnOpen fires when
// the server answers with setupComplete.
func (d *Dialer) Connect(ctx context.Context, cfg live.Config, cb live.Callback) (live.Handle, error) {
	start := time.Now()

	target, err := d.url()
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{HandshakeTimeout: d.HandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, target, http.Header{})
	if err != nil {
		d.metrics.RecordLiveError(transport, "connect")
		if resp != nil {
			return nil, fmt.Errorf("bidi: connect failed with HTTP %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("bidi: connect: %w", err)
	}

	if err := conn.WriteJSON(newSetup(cfg)); err != nil {
		conn.Close()
		d.metrics.RecordLiveError(transport, "setup")
		return nil, fmt.Errorf("bidi: send setup: %w", err)
	}
	d.metrics.RecordLiveConnect(transport, time.Since(start).Seconds())
	d.logger.Info().Str("model", cfg.Model).Msg("Live websocket connected")

	h := &handle{
		conn:    conn,
		cb:      cb,
		outbox:  live.NewOutbox(d.queueLen),
		logger:  d.logger,
		metrics: d.metrics,
	}
	go h.writeLoop()
	go h.readLoop()
	return h, nil
}

type handle struct {
	conn    *websocket.Conn
	cb      live.Callback
	outbox  *live.Outbox
	logger  zerolog.Logger
	metrics *metrics.Metrics

	closing   atomic.Bool
	closeOnce sync.Once
	sendErr   atomic.Pointer[error]
	opened    bool
}

func (h *handle) Send(frame codec.Blob) error {
	if h.closing.Load() {
		return live.ErrClosed
	}
	return h.outbox.Push(frame)
}

func (h *handle) Close() error {
	if !h.closing.CompareAndSwap(false, true) {
		return nil
	}
	// The writer sends the close frame and drops the connection.
	h.outbox.Close()
	return nil
}

// sayGoodbye sends a normal close frame, then closes the connection. Runs on
// the writer goroutine.
func (h *handle) sayGoodbye() {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := h.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		h.logger.Debug().Err(err).Msg("Failed to send close frame")
	}
	h.shutdown()
}

func (h *handle) shutdown() {
	h.closeOnce.Do(func() {
		h.outbox.Close()
		h.conn.Close()
	})
}

func (h *handle) readLoop() {
	defer h.cb.OnClose()
	defer h.shutdown()

	for {
		_, data, err := h.conn.ReadMessage()
		if err != nil {
			if h.closing.Load() {
				return
			}
			if p := h.sendErr.Load(); p != nil {
				err = *p
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				h.logger.Info().Msg("Server closed live websocket")
				return
			}
			h.metrics.RecordLiveError(transport, "receive")
			h.logger.Error().Err(err).Msg("Live websocket failed")
			h.cb.OnError(fmt.Errorf("bidi: %w", err))
			return
		}

		// The server sends JSON in both text and binary frames.
		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.metrics.RecordLiveError(transport, "parse")
			h.logger.Warn().Err(err).Int("bytes", len(data)).Msg("Ignoring unparseable server message")
			continue
		}

		if msg.SetupComplete != nil {
			h.open()
			continue
		}
		if msg.GoAway != nil {
			h.logger.Warn().Str("timeLeft", msg.GoAway.TimeLeft).Msg("Server requested disconnect")
			continue
		}

		h.open()
		for _, m := range msg.ServerContent.messages() {
			h.metrics.RecordLiveMessage(transport, m.Type())
			h.cb.OnMessage(m)
		}
	}
}

func (h *handle) open() {
	if h.opened {
		return
	}
	h.opened = true
	h.cb.OnOpen()
}

func (h *handle) writeLoop() {
	for {
		select {
		case <-h.outbox.Done():
			if h.closing.Load() {
				h.sayGoodbye()
			}
			return
		case frame := <-h.outbox.Frames():
			h.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := h.conn.WriteJSON(realtimeInputMessage{RealtimeInput: realtimeInput{Audio: &frame}})
			if err != nil {
				if h.closing.Load() || errors.Is(err, websocket.ErrCloseSent) {
					h.shutdown()
					return
				}
				err = fmt.Errorf("send realtime input: %w", err)
				h.sendErr.Store(&err)
				h.metrics.RecordLiveError(transport, "send")
				// Closing the connection unblocks the reader, which reports sendErr.
				h.shutdown()
				return
			}
		}
	}
}

var _ live.Dialer = (*Dialer)(nil)
var _ live.Handle = (*handle)(nil)
