package session

import (
	"context"
	"time"

	"ai-voice-tutor/internal/models"
	"ai-voice-tutor/internal/service/codec"
	"ai-voice-tutor/internal/service/live"
	"ai-voice-tutor/internal/service/transcript"
)

// dispatch applies one inbound message. Caller holds s.mu.
func (s *Session) dispatch(msg live.Message) {
	if msg.InputTranscription != nil {
		s.onInputTranscription(*msg.InputTranscription)
	}
	if msg.OutputTranscription != nil {
		s.onOutputTranscription(*msg.OutputTranscription)
	}
	if msg.Interrupted {
		s.onInterrupted()
	}
	if msg.Audio != nil {
		s.onAudio(*msg.Audio)
	}
	if msg.TurnComplete {
		s.onTurnComplete()
	}
}

func (s *Session) onInputTranscription(t live.Transcription) {
	if err := s.tracker.AddUser(t.Text); err != nil {
		s.logger.Debug().Err(err).Str("turnId", s.tracker.TurnId()).Msg("User speech outside a turn")
	}
	s.appendLocked(transcript.SpeakerUser, t.Text)

	// The user finished an utterance; the tutor is about to answer.
	if t.Finished {
		s.status = StatusWaiting
	} else {
		s.status = StatusListening
	}
}

func (s *Session) onOutputTranscription(t live.Transcription) {
	s.beginTutorLocked()
	if err := s.tracker.AddTutor(t.Text); err != nil {
		s.logger.Debug().Err(err).Str("turnId", s.tracker.TurnId()).Msg("Tutor speech outside a turn")
	}
	s.appendLocked(transcript.SpeakerAI, t.Text)
	s.status = StatusSpeaking
}

func (s *Session) onAudio(blob codec.Blob) {
	raw, err := codec.Decode(blob.Data)
	if err != nil {
		s.metrics.RecordDecodeError()
		s.logger.Warn().Err(err).Str("mimeType", blob.MIMEType).Msg("Dropping undecodable audio")
		return
	}
	unit, err := codec.DecodeAudioData(raw, codec.OutputSampleRate, 1)
	if err != nil {
		s.metrics.RecordDecodeError()
		s.logger.Warn().Err(err).Int("bytes", len(raw)).Msg("Dropping malformed audio")
		return
	}
	if unit.Frames() == 0 {
		return
	}

	s.beginTutorLocked()
	at, err := s.scheduler.Enqueue(unit)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to schedule audio")
		return
	}
	s.status = StatusSpeaking
	s.metrics.RecordPlayback(unit.Duration().Seconds())
	s.logger.Debug().
		Dur("at", at).
		Dur("duration", unit.Duration()).
		Msg("Scheduled audio")
}

// onInterrupted handles barge-in: queued tutor audio is discarded.
func (s *Session) onInterrupted() {
	s.scheduler.StopAll()
	s.finalizeLocked(transcript.SpeakerAI)
	s.tracker.StopTutor()
	s.status = StatusListening
	s.metrics.RecordInterrupt()
	s.logger.Info().Str("turnId", s.tracker.TurnId()).Msg("Tutor interrupted")
}

func (s *Session) onTurnComplete() {
	s.finalizeLocked(transcript.SpeakerAI)
	s.finalizeLocked(transcript.SpeakerUser)

	summary, err := s.tracker.Complete()
	if err == nil {
		s.metrics.RecordTurnComplete()
		s.logger.Info().
			Str("turnId", summary.TurnId).
			Int("userChars", len(summary.User)).
			Int("tutorChars", len(summary.Tutor)).
			Msg("Turn complete")
	}
	s.tracker.Reset(s.turns.Next(s.id))
	s.status = StatusListening
}

// beginTutorLocked seals the user's utterance when the tutor takes the floor.
func (s *Session) beginTutorLocked() {
	began, err := s.tracker.BeginTutor()
	if err != nil {
		return
	}
	if began {
		s.finalizeLocked(transcript.SpeakerUser)
	}
}

func (s *Session) appendLocked(speaker transcript.Speaker, text string) {
	u := s.transcript.AppendFragment(speaker, text)
	if u.Sealed >= 0 {
		s.publishFinalLocked(u.Sealed)
	}
	s.metrics.RecordFragment(string(speaker))

	entry, _ := s.transcript.Entry(u.Index)
	s.publish(func(ctx context.Context, sink Sink) error {
		return sink.PublishPartial(ctx, s.id, models.TranscriptPartial{
			EventType:  models.EventTranscriptPartial,
			SessionID:  s.id,
			TurnID:     s.tracker.TurnId(),
			Timestamp:  time.Now().UnixMilli(),
			Speaker:    string(speaker),
			EntryIndex: u.Index,
			Fragment:   text,
			Text:       entry.Text,
		})
	})
}

func (s *Session) finalizeLocked(speaker transcript.Speaker) {
	if i, ok := s.transcript.Finalize(speaker); ok {
		s.publishFinalLocked(i)
	}
}

func (s *Session) noteLocked(text string) {
	// Note seals an open utterance first.
	open := -1
	if last, ok := s.transcript.Last(); ok && !last.IsFinal {
		open = s.transcript.Len() - 1
	}
	i := s.transcript.Note(text)
	if open >= 0 {
		s.publishFinalLocked(open)
	}
	s.publishFinalLocked(i)
}

func (s *Session) publishFinalLocked(i int) {
	entry, ok := s.transcript.Entry(i)
	if !ok {
		return
	}
	s.metrics.RecordFinal(string(entry.Speaker))
	s.publish(func(ctx context.Context, sink Sink) error {
		return sink.PublishFinal(ctx, s.id, models.TranscriptFinal{
			EventType:      models.EventTranscriptFinal,
			SessionID:      s.id,
			TurnID:         s.tracker.TurnId(),
			Timestamp:      time.Now().UnixMilli(),
			Speaker:        string(entry.Speaker),
			EntryIndex:     i,
			Text:           entry.Text,
			NativeLanguage: s.cfg.Native.Code,
			TargetLanguage: s.cfg.Target.Code,
		})
	})
}

func (s *Session) publish(fn func(ctx context.Context, sink Sink) error) {
	if s.deps.Sink == nil {
		return
	}
	if err := fn(context.Background(), s.deps.Sink); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to publish transcript event")
	}
}
