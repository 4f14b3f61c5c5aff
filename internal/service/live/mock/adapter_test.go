package mock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ai-voice-tutor/internal/service/codec"
	"ai-voice-tutor/internal/service/live"
)

// testCallback implements live.Callback for testing
type testCallback struct {
	mu       sync.Mutex
	opens    int
	messages []live.Message
	errors   []error
	closed   chan struct{}
}

func newTestCallback() *testCallback {
	return &testCallback{closed: make(chan struct{})}
}

func (c *testCallback) OnOpen() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opens++
}

func (c *testCallback) OnMessage(msg live.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
}

func (c *testCallback) OnError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, err)
}

func (c *testCallback) OnClose() {
	close(c.closed)
}

func (c *testCallback) getMessages() []live.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]live.Message{}, c.messages...)
}

func (c *testCallback) getOpens() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func countTurnCompletes(msgs []live.Message) int {
	n := 0
	for _, m := range msgs {
		if m.TurnComplete {
			n++
		}
	}
	return n
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Delay = time.Millisecond
	opts.ToneDuration = 10 * time.Millisecond
	return opts
}

func connect(t *testing.T, opts Options) (*Handle, *testCallback) {
	t.Helper()
	cb := newTestCallback()
	h, err := New(opts, zerolog.Nop()).Connect(context.Background(), live.DefaultConfig("English (US)", "Spanish"), cb)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h.(*Handle), cb
}

func TestHandle_GreetsAfterOpen(t *testing.T) {
	_, cb := connect(t, testOptions())

	waitFor(t, "greeting", func() bool { return countTurnCompletes(cb.getMessages()) == 1 })

	if cb.getOpens() != 1 {
		t.Errorf("expected 1 open, got %d", cb.getOpens())
	}

	var text string
	audio := 0
	for _, m := range cb.getMessages() {
		if m.InputTranscription != nil {
			t.Error("unexpected user transcription during greeting")
		}
		if m.OutputTranscription != nil {
			text += m.OutputTranscription.Text
		}
		if m.Audio != nil {
			audio++
			raw, err := codec.Decode(m.Audio.Data)
			if err != nil {
				t.Fatalf("decode audio: %v", err)
			}
			if _, err := codec.DecodeAudioData(raw, codec.OutputSampleRate, 1); err != nil {
				t.Errorf("undecodable tone: %v", err)
			}
		}
	}
	if text != "¡Hola! Soy Kai. \"Hola\" means \"hello\". Now you try!" {
		t.Errorf("unexpected greeting %q", text)
	}
	if audio != len(DefaultGreeting) {
		t.Errorf("expected %d audio chunks, got %d", len(DefaultGreeting), audio)
	}
}

func TestHandle_UserFragmentPerFrame(t *testing.T) {
	opts := testOptions()
	opts.Greeting = nil
	h, cb := connect(t, opts)

	waitFor(t, "open", func() bool { return cb.getOpens() == 1 })

	frame := codec.EncodeFrame(make([]float32, 16))
	h.Send(frame)
	waitFor(t, "first fragment", func() bool { return len(cb.getMessages()) == 1 })

	first := cb.getMessages()[0]
	if first.InputTranscription == nil || first.InputTranscription.Text != "Ho" || first.InputTranscription.Finished {
		t.Fatalf("unexpected first fragment %+v", first.InputTranscription)
	}

	h.Send(frame)
	waitFor(t, "reply", func() bool { return countTurnCompletes(cb.getMessages()) == 1 })

	msgs := cb.getMessages()
	second := msgs[1]
	if second.InputTranscription == nil || second.InputTranscription.Text != "la" || !second.InputTranscription.Finished {
		t.Errorf("expected finished fragment \"la\", got %+v", second.InputTranscription)
	}
	if msgs[2].OutputTranscription == nil {
		t.Errorf("expected tutor reply after user turn, got %+v", msgs[2])
	}
	if h.Received() != 2 {
		t.Errorf("expected 2 frames received, got %d", h.Received())
	}
}

func TestHandle_Close(t *testing.T) {
	h, cb := connect(t, testOptions())

	if err := h.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("unexpected error on second close: %v", err)
	}

	select {
	case <-cb.closed:
	case <-time.After(time.Second):
		t.Fatal("expected OnClose after Close")
	}
	if err := h.Send(codec.Blob{}); err != live.ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if len(cb.errors) != 0 {
		t.Errorf("expected no errors, got %v", cb.errors)
	}
}

func TestHandle_CloseWithoutUserTurns(t *testing.T) {
	opts := testOptions()
	opts.Greeting = nil
	opts.Exchanges = []Exchange{{Tutor: []string{"Nobody asked."}}, {}}
	h, cb := connect(t, opts)

	waitFor(t, "open", func() bool { return cb.getOpens() == 1 })
	h.Close()

	select {
	case <-cb.closed:
	case <-time.After(time.Second):
		t.Fatal("expected OnClose after Close")
	}
	if msgs := cb.getMessages(); len(msgs) != 0 {
		t.Errorf("expected no messages, got %d", len(msgs))
	}
}

func TestPlayable(t *testing.T) {
	tests := []struct {
		name      string
		exchanges []Exchange
		want      int
	}{
		{"nil", nil, 0},
		{"no user fragments", []Exchange{{Tutor: []string{"a"}}, {}}, 0},
		{"mixed", []Exchange{{Tutor: []string{"a"}}, {User: []string{"b"}}}, 1},
		{"defaults", DefaultExchanges, len(DefaultExchanges)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(playable(tt.exchanges)); got != tt.want {
				t.Errorf("playable() = %d exchanges, want %d", got, tt.want)
			}
		})
	}
}

func TestConnect_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := New(testOptions(), zerolog.Nop()).Connect(ctx, live.Config{}, newTestCallback()); err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestDefaultExchanges(t *testing.T) {
	if len(DefaultExchanges) == 0 {
		t.Fatal("expected default exchanges")
	}
	for i, ex := range DefaultExchanges {
		if len(ex.User) == 0 {
			t.Errorf("exchange %d has no user fragments", i)
		}
		if len(ex.Tutor) == 0 {
			t.Errorf("exchange %d has no tutor fragments", i)
		}
	}
}

func TestHandle_ThreadSafety(t *testing.T) {
	h, _ := connect(t, testOptions())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				h.Send(codec.Blob{})
				time.Sleep(time.Millisecond)
			}
		}()
	}

	wg.Wait()
	h.Close()

	if h.Received() != 50 {
		t.Errorf("expected 50 frames counted, got %d", h.Received())
	}
}
