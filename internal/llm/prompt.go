package llm

// Role is the author of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Prompt is what a Provider sends to the model. Both clients map
// SystemPrompt to their native system slot.
type Prompt struct {
	SystemPrompt string    `json:"system_prompt,omitempty"`
	Messages     []Message `json:"messages"`
}

// NewUserPrompt is the single-turn shape every codechart call uses.
func NewUserPrompt(system, user string) *Prompt {
	return &Prompt{
		SystemPrompt: system,
		Messages:     []Message{{Role: RoleUser, Content: user}},
	}
}

// Size is the prompt length in bytes, system text included.
func (p *Prompt) Size() int {
	n := len(p.SystemPrompt)
	for _, m := range p.Messages {
		n += len(m.Content)
	}
	return n
}
