package service

import (
	"sort"
	"sync"
)

// ParticipantStatus is the externally visible state of one participant.
type ParticipantStatus struct {
	Name     string `json:"name"`
	PID      int    `json:"pid,omitempty"`
	Running  bool   `json:"running"`
	ExitCode *int   `json:"exit_code,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Roster tracks in-process participants for the status API.
type Roster struct {
	mu sync.RWMutex
	m  map[string]*ParticipantStatus
}

func NewRoster() *Roster {
	return &Roster{m: make(map[string]*ParticipantStatus)}
}

func (r *Roster) started(name string) {
	r.mu.Lock()
	r.m[name] = &ParticipantStatus{Name: name, Running: true}
	r.mu.Unlock()
}

func (r *Roster) exited(name string, err error) {
	code := 0
	st := &ParticipantStatus{Name: name, ExitCode: &code}
	if err != nil {
		code = 1
		st.Error = err.Error()
	}
	r.mu.Lock()
	r.m[name] = st
	r.mu.Unlock()
}

// Participants lists every known participant sorted by name.
func (r *Roster) Participants() []ParticipantStatus {
	r.mu.RLock()
	out := make([]ParticipantStatus, 0, len(r.m))
	for _, st := range r.m {
		out = append(out, *st)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Logs reports false: in-process participants log through the shared logger.
func (r *Roster) Logs(string, int) ([]string, bool) { return nil, false }
