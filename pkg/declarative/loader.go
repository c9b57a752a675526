package declarative

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/avi3tal/stepflow/pkg/workflow"
)

// Loader parses workflow definitions from files or raw bytes.
type Loader interface {
	// LoadFile reads a file and parses it. Format is auto-detected from the
	// extension (.yaml, .yml, .json).
	LoadFile(path string) (*WorkflowDefinition, error)

	// LoadBytes parses raw bytes. format must be "yaml" or "json".
	LoadBytes(data []byte, format string) (*WorkflowDefinition, error)
}

// YAMLLoader implements Loader for YAML and JSON formats.
type YAMLLoader struct{}

func NewYAMLLoader() *YAMLLoader {
	return &YAMLLoader{}
}

func (l *YAMLLoader) LoadFile(path string) (*WorkflowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read workflow definition file")
	}

	format := detectFormat(path)
	if format == "" {
		return nil, errors.Errorf("unsupported file extension: %s", filepath.Ext(path))
	}
	return l.LoadBytes(data, format)
}

func (l *YAMLLoader) LoadBytes(data []byte, format string) (*WorkflowDefinition, error) {
	var def WorkflowDefinition

	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &def); err != nil {
			return nil, errors.Wrap(err, "parse YAML")
		}
	case "json":
		if err := json.Unmarshal(data, &def); err != nil {
			return nil, errors.Wrap(err, "parse JSON")
		}
	default:
		return nil, errors.Errorf("unsupported format: %s", format)
	}

	if def.Name == "" {
		return nil, errors.New("workflow definition has no name")
	}
	if len(def.Steps) == 0 {
		return nil, errors.New("workflow definition has no steps")
	}
	return &def, nil
}

func detectFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".json":
		return "json"
	default:
		return ""
	}
}

// Compile resolves every step's agent type against the registry and validates
// the result as a workflow definition.
func Compile(def *WorkflowDefinition, registry *Registry) (*workflow.Definition, error) {
	for _, step := range def.Steps {
		if _, ok := registry.Lookup(step.Agent); !ok {
			return nil, errors.Errorf("step %q references unknown agent type %q", step.Name, step.Agent)
		}
	}

	return workflow.Define(def.Name, func(b *workflow.Builder) {
		for _, step := range def.Steps {
			factory, _ := registry.Lookup(step.Agent)
			opts := []workflow.StepOption{workflow.After(step.After...)}
			if step.Retries != nil {
				opts = append(opts, workflow.Retries(*step.Retries))
			}
			b.Step(step.Name, factory, opts...)
		}
	})
}
