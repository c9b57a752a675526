package agent

// MergedInput is the canonical input for a step with more than one upstream.
// Outputs maps each upstream step name to that step's output record. An agent
// placed downstream of multiple steps must declare MergedInput as its input
// schema.
type MergedInput struct {
	Outputs map[string]any `json:"outputs"`
}
