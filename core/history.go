package dialog

import (
	"sync"

	"github.com/evkarin/switchboard/core/llms"
)

// History is the ordered conversation record. Insertion order defines the
// prompt context for generation. Only the orchestrator appends: a user
// message when a turn commits, an assistant message when its reply actually
// reached playback.
type History struct {
	mu       sync.RWMutex
	messages []llms.Message
}

func newHistory() *History {
	return &History{}
}

func (h *History) append(role llms.Role, content string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, llms.NewMessage(role, content))
}

// Messages returns a copy; callers can hold it across engine activity.
func (h *History) Messages() []llms.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	messages := make([]llms.Message, len(h.messages))
	copy(messages, h.messages)
	return messages
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}

func (h *History) clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = nil
}
