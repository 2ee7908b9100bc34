package model

// DirectiveKind distinguishes the two routing outcomes for an inbound call.
type DirectiveKind string

const (
	DirectiveTransfer DirectiveKind = "transfer"
	DirectiveScreen   DirectiveKind = "screen"
)

// Directive is the gatekeeper's answer to a call-start webhook. Exactly one
// of Transfer or Assistant is set, matching Kind.
type Directive struct {
	Kind      DirectiveKind    `json:"-"`
	Transfer  *TransferTarget  `json:"destination,omitempty"`
	Assistant *AssistantConfig `json:"assistant,omitempty"`
}

// TransferTarget routes a known caller straight to the office line. Message
// stays empty: the transfer is silent.
type TransferTarget struct {
	Type    string `json:"type"`
	Number  string `json:"number"`
	Message string `json:"message"`
}

// AssistantConfig is the inline screening-assistant configuration returned
// for unknown callers.
type AssistantConfig struct {
	FirstMessage string         `json:"firstMessage"`
	Model        AssistantModel `json:"model"`
}

// AssistantModel bounds the screening assistant: low temperature, short
// responses, a system prompt that rejects solicitation.
type AssistantModel struct {
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	SystemPrompt string  `json:"systemPrompt"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"maxTokens"`
}
