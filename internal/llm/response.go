package llm

// Response is a completion as returned by a provider. Token counts are zero
// when the provider does not report usage.
type Response struct {
	Content      string `json:"content"`
	Model        string `json:"model,omitempty"`
	InputTokens  int    `json:"input_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
	StopReason   string `json:"stop_reason,omitempty"`
}

// Truncated reports whether the provider stopped at the token limit.
// Anthropic reports "max_tokens", OpenAI-compatible APIs "length".
func (r *Response) Truncated() bool {
	return r.StopReason == "max_tokens" || r.StopReason == "length"
}
