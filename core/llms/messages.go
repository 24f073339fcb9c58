package llms

import "time"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged entry of a conversation. Order is significant,
// the sequence is the prompt context for generation.
type Message struct {
	Role      Role
	Content   string
	Timestamp time.Time
}

func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content, Timestamp: time.Now()}
}
