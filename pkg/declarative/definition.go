// Package declarative loads workflow definitions from YAML or JSON files and
// compiles them against a registry of agent factories.
package declarative

// WorkflowDefinition is a declarative workflow specification, designed to be
// deserialized from YAML or JSON files.
type WorkflowDefinition struct {
	Name  string           `yaml:"name" json:"name"`
	Steps []StepDefinition `yaml:"steps" json:"steps"`
}

// StepDefinition declares one step: the registered agent type that backs it,
// its upstream dependencies, and an optional retry override.
type StepDefinition struct {
	Name    string   `yaml:"name" json:"name"`
	Agent   string   `yaml:"agent" json:"agent"`
	After   []string `yaml:"after,omitempty" json:"after,omitempty"`
	Retries *int     `yaml:"retries,omitempty" json:"retries,omitempty"`
}
