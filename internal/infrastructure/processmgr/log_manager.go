package processmgr

import (
	"sort"
	"sync"
)

// LogManager keeps one stderr buffer per participant name.
// Buffers are created lazily and survive the process they belong to.
type LogManager struct {
	mu   sync.RWMutex          // guards bufs
	bufs map[string]*logBuffer // participant name → buffer
}

func NewLogManager() *LogManager {
	return &LogManager{
		bufs: make(map[string]*logBuffer),
	}
}

// Get returns the buffer for name, creating it if missing.
func (lm *LogManager) Get(name string) *logBuffer {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if buf, ok := lm.bufs[name]; ok {
		return buf
	}
	buf := new(logBuffer)
	lm.bufs[name] = buf
	return buf
}

// Lookup returns the buffer for name without creating one.
func (lm *LogManager) Lookup(name string) (*logBuffer, bool) {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	buf, ok := lm.bufs[name]
	return buf, ok
}

// Names lists every participant with a buffer, sorted.
func (lm *LogManager) Names() []string {
	lm.mu.RLock()
	names := make([]string, 0, len(lm.bufs))
	for name := range lm.bufs {
		names = append(names, name)
	}
	lm.mu.RUnlock()
	sort.Strings(names)
	return names
}
