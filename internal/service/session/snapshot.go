package session

import (
	"ai-voice-tutor/internal/language"
	"ai-voice-tutor/internal/service/transcript"
)

// Snapshot is the observable state of a session.
type Snapshot struct {
	SessionID  string             `json:"sessionId"`
	Status     Status             `json:"status"`
	Error      string             `json:"error,omitempty"`
	Transcript []transcript.Entry `json:"transcript"`
	TurnID     string             `json:"turnId,omitempty"`
	Native     language.Language  `json:"nativeLanguage"`
	Target     language.Language  `json:"targetLanguage"`
	Playing    bool               `json:"playing"`
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionID:  s.id,
		Status:     s.status,
		Error:      s.errMsg,
		Transcript: s.transcript.Entries(),
		Native:     s.cfg.Native,
		Target:     s.cfg.Target,
	}
	if s.status.IsActive() {
		snap.TurnID = s.tracker.TurnId()
	}
	if s.scheduler != nil {
		snap.Playing = s.scheduler.IsPlaying()
	}
	return snap
}

// Subscribe delivers a snapshot after every state change. A slow subscriber
// only sees the latest snapshot. The returned func unsubscribes.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Snapshot, 1)
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.snapshotLocked()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
	}
}

func (s *Session) notifyLocked() {
	if len(s.subs) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		// Replace a stale, unread snapshot.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
