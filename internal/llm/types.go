package llm

// Role represents the role of a message sender in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Image is a picture attached to a message. Either URL or Data is set;
// MIMEType describes Data.
type Image struct {
	URL      string
	MIMEType string
	Data     []byte
}

// Inline reports whether the image bytes are carried in the message.
func (i Image) Inline() bool {
	return len(i.Data) > 0
}

// Message represents a single message in a conversation.
type Message struct {
	Role    Role
	Content string
	Images  []Image
}

// CompletionRequest contains the parameters for an LLM completion request.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
	JSONMode    bool
}

// CompletionResponse contains the result of an LLM completion request.
type CompletionResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
	Model        string
	FinishReason string
}
