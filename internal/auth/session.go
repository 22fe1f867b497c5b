package auth

import "sync"

// Session is the per-client "current token" slot. A zero Session is empty
// and ready to use.
type Session struct {
	mu    sync.Mutex
	token string
}

// NewSession returns a session already holding token (which may be empty).
func NewSession(token string) *Session {
	return &Session{token: token}
}

func (s *Session) Token() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *Session) Set(token string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

func (s *Session) Clear() { s.Set("") }
