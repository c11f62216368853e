package elevnetwork

import (
	"io"
	"sort"
	"sync"
	"sync/atomic"
)

// session is one connected control client. Replies and pushed events share
// the stream, so writes are serialized by wmu.
type session struct {
	id        uint32
	clientTag uint32
	frameSize int

	wmu        sync.Mutex
	w          io.Writer
	subscribed atomic.Bool
}

func (s *session) send(msg Message) error {
	payload, err := encodeFrame(msg)
	if err != nil {
		return err
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	_, err = WriteFixedFrameQUIC(s.w, payload, s.frameSize, writeTimeout)
	return err
}

type SessionManager struct {
	frameSize int

	mu       sync.RWMutex
	sessions map[uint32]*session
	nextID   uint32
}

func NewSessionManager(frameSize int) *SessionManager {
	if frameSize <= 0 {
		frameSize = QUIC_FRAME_SIZE
	}
	return &SessionManager{
		frameSize: frameSize,
		sessions:  make(map[uint32]*session),
	}
}

func (sm *SessionManager) add(w io.Writer, clientTag uint32) *session {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.nextID++
	s := &session{id: sm.nextID, clientTag: clientTag, frameSize: sm.frameSize, w: w}
	sm.sessions[s.id] = s
	return s
}

func (sm *SessionManager) remove(id uint32) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, id)
}

// Broadcast pushes msg to every subscribed session and returns how many
// writes failed.
func (sm *SessionManager) Broadcast(msg Message) int {
	sm.mu.RLock()
	targets := make([]*session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		if s.subscribed.Load() {
			targets = append(targets, s)
		}
	}
	sm.mu.RUnlock()

	failed := 0
	for _, s := range targets {
		if err := s.send(msg); err != nil {
			failed++
		}
	}
	return failed
}

// SessionInfo pairs a session id with the tag the client sent in HELLO
// (elevctl sends its pid).
type SessionInfo struct {
	ID     uint32 `json:"id"`
	Client uint32 `json:"client"`
}

// Connected returns the open sessions sorted by id, useful for logging.
func (sm *SessionManager) Connected() []SessionInfo {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	out := make([]SessionInfo, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		out = append(out, SessionInfo{ID: s.id, Client: s.clientTag})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (sm *SessionManager) Len() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}
