package playback

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"ai-voice-tutor/internal/service/codec"
)

// Sink consumes samples in playback order (a speaker, a file, nothing).
type Sink interface {
	Write(unit *codec.PlaybackUnit) error
}

// TimelineOutput is a wall-clock Output: each unit is written to the sink
// when its start time arrives and reported ended after its duration.
type TimelineOutput struct {
	sink   Sink
	logger zerolog.Logger
	origin time.Time

	// Serializes sink writes from concurrent timers.
	writeMu sync.Mutex
}

// NewTimelineOutput starts a clock at zero that feeds sink.
func NewTimelineOutput(sink Sink, logger zerolog.Logger) *TimelineOutput {
	return &TimelineOutput{
		sink:   sink,
		logger: logger.With().Str("component", "playback").Logger(),
		origin: time.Now(),
	}
}

// CurrentTime returns the time elapsed since the output was created.
func (o *TimelineOutput) CurrentTime() time.Duration {
	return time.Since(o.origin)
}

// Start implements Output.
func (o *TimelineOutput) Start(unit *codec.PlaybackUnit, at time.Duration, onEnded func()) (Voice, error) {
	delay := at - o.CurrentTime()
	if delay < 0 {
		delay = 0
	}

	v := &timelineVoice{}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.startTimer = time.AfterFunc(delay, func() {
		if v.done.Load() {
			return
		}
		o.writeMu.Lock()
		defer o.writeMu.Unlock()
		if err := o.sink.Write(unit); err != nil {
			o.logger.Warn().Err(err).Msg("Failed to write playback unit")
		}
	})
	v.endTimer = time.AfterFunc(delay+unit.Duration(), func() {
		if v.done.CompareAndSwap(false, true) {
			onEnded()
		}
	})
	return v, nil
}

type timelineVoice struct {
	mu         sync.Mutex
	startTimer *time.Timer
	endTimer   *time.Timer
	done       atomic.Bool
}

func (v *timelineVoice) Stop() {
	if !v.done.CompareAndSwap(false, true) {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.startTimer.Stop()
	v.endTimer.Stop()
}
