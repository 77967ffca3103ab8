package vgroup

import (
	"os"

	"github.com/Velocidex/ordereddict"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"www.velocidex.com/golang/vgroup/types"
)

// A Plan is an ordered list of steps run against one session. Plans
// are written in YAML:
//
//	steps:
//	  - explode_field_in:
//	      field: country
//	      terms: [us, gb]
//	  - get_group_stats:
//	      metrics: ["[count()]"]
type Plan struct {
	Steps []*Step
}

// A Step names a command and carries its arguments in the order they
// were written.
type Step struct {
	Name string
	Args *ordereddict.Dict
}

func NewStep(name string, args *ordereddict.Dict) *Step {
	if args == nil {
		args = ordereddict.NewDict()
	}
	return &Step{Name: name, Args: args}
}

func ParsePlan(data []byte) (*Plan, error) {
	root := &yaml.Node{}
	err := yaml.Unmarshal(data, root)
	if err != nil {
		return nil, errors.Wrapf(types.ErrContract, "plan: %v", err)
	}

	// An empty document.
	if len(root.Content) == 0 {
		return &Plan{}, nil
	}

	doc := root.Content[0]
	var steps *yaml.Node
	switch doc.Kind {
	case yaml.SequenceNode:
		steps = doc

	case yaml.MappingNode:
		for i := 0; i+1 < len(doc.Content); i += 2 {
			if doc.Content[i].Value == "steps" {
				steps = doc.Content[i+1]
			}
		}
		if steps == nil || steps.Kind != yaml.SequenceNode {
			return nil, planError(doc, "expected a list of steps")
		}

	default:
		return nil, planError(doc, "expected a list of steps")
	}

	result := &Plan{}
	for _, item := range steps.Content {
		step, err := parseStep(item)
		if err != nil {
			return nil, err
		}
		result.Steps = append(result.Steps, step)
	}
	return result, nil
}

func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	plan, err := ParsePlan(data)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return plan, nil
}

// A step is either a bare command name or a mapping of the name to
// its arguments.
func parseStep(node *yaml.Node) (*Step, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return NewStep(node.Value, nil), nil

	case yaml.MappingNode:
		if len(node.Content) != 2 {
			return nil, planError(node, "a step must name exactly one command")
		}

		name := node.Content[0].Value
		args_node := node.Content[1]
		if args_node.Tag == "!!null" {
			return NewStep(name, nil), nil
		}
		if args_node.Kind != yaml.MappingNode {
			return nil, planError(args_node, "arguments of %v must be a mapping", name)
		}

		args, err := toDict(args_node)
		if err != nil {
			return nil, err
		}
		return NewStep(name, args), nil
	}

	return nil, planError(node, "expected a step")
}

func toDict(node *yaml.Node) (*ordereddict.Dict, error) {
	result := ordereddict.NewDict()
	for i := 0; i+1 < len(node.Content); i += 2 {
		value, err := toValue(node.Content[i+1])
		if err != nil {
			return nil, err
		}
		result.Set(node.Content[i].Value, value)
	}
	return result, nil
}

func toValue(node *yaml.Node) (types.Any, error) {
	switch node.Kind {
	case yaml.MappingNode:
		return toDict(node)

	case yaml.SequenceNode:
		result := make([]interface{}, 0, len(node.Content))
		for _, item := range node.Content {
			value, err := toValue(item)
			if err != nil {
				return nil, err
			}
			result = append(result, value)
		}
		return result, nil

	case yaml.AliasNode:
		return toValue(node.Alias)
	}

	var result interface{}
	err := node.Decode(&result)
	if err != nil {
		return nil, planError(node, "%v", err)
	}
	return result, nil
}

func planError(node *yaml.Node, format string, args ...interface{}) error {
	return errors.Wrapf(types.Contract(format, args...), "plan line %d", node.Line)
}
