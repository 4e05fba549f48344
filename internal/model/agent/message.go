package agent

// Role identifies the author of a chat turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// ChatMessage is one turn in the visible conversation log. Messages are
// append-only and never mutated or reordered after creation.
type ChatMessage struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
	Visible   bool   `json:"visible"`
}
