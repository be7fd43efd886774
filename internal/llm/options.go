package llm

// RequestOptions tunes a single completion call. Nil fields use the
// provider's defaults.
type RequestOptions struct {
	MaxTokens   *int
	Temperature *float64
	TopP        *float64
	StopSeqs    []string
}

// NewRequestOptions returns options with the given token cap and temperature.
func NewRequestOptions(maxTokens int, temperature float64) *RequestOptions {
	return &RequestOptions{MaxTokens: &maxTokens, Temperature: &temperature}
}

// MaxTokensOr returns the configured token cap or def.
func (o *RequestOptions) MaxTokensOr(def int) int {
	if o == nil || o.MaxTokens == nil || *o.MaxTokens <= 0 {
		return def
	}
	return *o.MaxTokens
}
