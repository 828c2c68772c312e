package types

// Capability flags a model descriptor can carry
type Capability string

const (
	CapabilityText  Capability = "text"
	CapabilityImage Capability = "image"
)

// ModelDescriptor is an immutable catalog entry for one generation endpoint
type ModelDescriptor struct {
	ID              string       `json:"id" yaml:"id"`
	Provider        string       `json:"provider" yaml:"provider"`
	Model           string       `json:"model" yaml:"model"`
	Capabilities    []Capability `json:"capabilities" yaml:"capabilities"`
	MaxInputTokens  int          `json:"max_input_tokens" yaml:"max_input_tokens"`
	MaxOutputTokens int          `json:"max_output_tokens" yaml:"max_output_tokens"`
	Temperature     float64      `json:"temperature" yaml:"temperature"`
	TopP            float64      `json:"top_p,omitempty" yaml:"top_p"`
	TopK            int          `json:"top_k,omitempty" yaml:"top_k"`
	Priority        int          `json:"priority" yaml:"priority"`
	CostWeight      float64      `json:"cost_weight" yaml:"cost_weight"`
	LatencyScore    float64      `json:"latency_score" yaml:"latency_score"`
	QualityScore    float64      `json:"quality_score" yaml:"quality_score"`
}

// Supports reports whether the descriptor carries a capability
func (m ModelDescriptor) Supports(c Capability) bool {
	for _, have := range m.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// SelectionRule maps a story type (or the image pseudo-type) to a priority chain
type SelectionRule struct {
	Name      string   `json:"name"`
	Primary   string   `json:"primary"`
	Fallback  string   `json:"fallback"`
	Tertiary  string   `json:"tertiary"`
	Extra     []string `json:"extra,omitempty"`
	Rationale string   `json:"rationale"`
}
