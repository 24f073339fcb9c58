package gemini

import "github.com/evkarin/switchboard/core/llms"

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

// toContents maps conversation messages to Gemini contents. System messages
// have no Gemini role and are folded into the system instruction instead.
func toContents(messages []llms.Message, instructions string) ([]content, *content) {
	contents := make([]content, 0, len(messages))
	systemText := instructions
	for _, message := range messages {
		if message.Role == llms.RoleSystem {
			if systemText != "" {
				systemText += "\n"
			}
			systemText += message.Content
			continue
		}
		role := "user"
		if message.Role == llms.RoleAssistant {
			role = "model"
		}
		contents = append(contents, content{
			Role:  role,
			Parts: []part{{Text: message.Content}},
		})
	}
	var system *content
	if systemText != "" {
		system = &content{Parts: []part{{Text: systemText}}}
	}
	return contents, system
}
