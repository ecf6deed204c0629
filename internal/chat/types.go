package chat

// Message represents a chat message
type Message struct {
	Role    string `json:"role"` // user, assistant, system
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Request is the internal completion request structure
type Request struct {
	Messages    []Message
	Model       string
	Temperature *float32 // optional temperature
	MaxTokens   *int     // optional max tokens
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Result is the internal completion result structure
type Result struct {
	Message      Message
	Model        string
	FinishReason string
	Usage        Usage
}
