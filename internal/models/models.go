package models

// Roles recognised in the canonical message schema.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is a single conversational message in the canonical schema.
// Every provider adapter lowers a sequence of these into its own wire shape.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// FunctionRef identifies a function visible in the file being edited.
// Signature is preferred for rendering; Name is the fallback.
type FunctionRef struct {
	Name      string `json:"name"`
	Signature string `json:"signature,omitempty"`
}

// CompletionContext carries the code surrounding the cursor plus file-level
// context. It feeds both the fill-in-middle allocator and the chat template
// builder.
type CompletionContext struct {
	Prompt         string
	Suffix         string
	Includes       []string
	OtherFunctions []FunctionRef
}

// BudgetedPrompt is the allocator output: a prompt/suffix pair whose combined
// length fits the upstream budget.
type BudgetedPrompt struct {
	FullPrompt string
	Suffix     string
}

// Suggestion is the canonical completion result returned to clients.
// Label is a single-line preview of Text capped at 33 characters.
type Suggestion struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}
