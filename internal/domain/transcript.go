package domain

// Role is the author of a transcript turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockKind tags the variant held by a ContentBlock.
type BlockKind string

const (
	BlockText       BlockKind = "text"
	BlockToolUse    BlockKind = "tool_use"
	BlockToolResult BlockKind = "tool_result"
)

// ToolInvocation is a model request to run a tool.
type ToolInvocation struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ToolResult answers the ToolInvocation carrying the same ID.
type ToolResult struct {
	ID      string
	Payload string
	IsError bool
}

// ContentBlock is a tagged variant: exactly one of Text, ToolUse or ToolResult
// is meaningful, selected by Kind.
type ContentBlock struct {
	Kind       BlockKind
	Text       string
	ToolUse    *ToolInvocation
	ToolResult *ToolResult
}

func TextBlock(text string) ContentBlock {
	return ContentBlock{Kind: BlockText, Text: text}
}

func ToolUseBlock(id, name string, args map[string]any) ContentBlock {
	if args == nil {
		args = map[string]any{}
	}
	return ContentBlock{Kind: BlockToolUse, ToolUse: &ToolInvocation{ID: id, Name: name, Arguments: args}}
}

func ToolResultBlock(id, payload string, isError bool) ContentBlock {
	return ContentBlock{Kind: BlockToolResult, ToolResult: &ToolResult{ID: id, Payload: payload, IsError: isError}}
}

type Turn struct {
	Role    Role
	Content []ContentBlock
}

// Transcript is the ordered turn history of one top-level query.
type Transcript []Turn

// NewTranscript starts a transcript with a single user text turn.
func NewTranscript(query string) Transcript {
	return Transcript{{Role: RoleUser, Content: []ContentBlock{TextBlock(query)}}}
}

// Append returns the transcript extended with a turn.
func (t Transcript) Append(role Role, blocks ...ContentBlock) Transcript {
	content := make([]ContentBlock, len(blocks))
	copy(content, blocks)
	return append(t, Turn{Role: role, Content: content})
}

// IsFinalResponse reports whether a model response ends the query: exactly
// one block, and that block is text.
func IsFinalResponse(blocks []ContentBlock) bool {
	return len(blocks) == 1 && blocks[0].Kind == BlockText
}

// ToolInvocations returns the tool requests in emission order.
func ToolInvocations(blocks []ContentBlock) []ToolInvocation {
	var out []ToolInvocation
	for _, block := range blocks {
		if block.Kind == BlockToolUse && block.ToolUse != nil {
			out = append(out, *block.ToolUse)
		}
	}
	return out
}
